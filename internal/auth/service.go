package auth

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"qrattend/internal/roster"
)

var (
	// ErrEmailTaken is returned when registering an already-used email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrBadCredentials is returned on unknown email or wrong password.
	ErrBadCredentials = errors.New("invalid email or password")
)

// UserStore is the account persistence needed by registration and login.
type UserStore interface {
	FindUserByEmail(ctx context.Context, email string) (*roster.User, error)
	CreateUser(ctx context.Context, email, passwordHash string, name *string, role string) (roster.User, error)
	CountUsers(ctx context.Context) (int64, error)
}

// Service registers and authenticates accounts and issues session tokens.
type Service struct {
	users      UserStore
	issuer     string
	signingKey string
	ttl        time.Duration
}

// NewService creates an auth service.
func NewService(users UserStore, issuer, signingKey string, ttl time.Duration) *Service {
	return &Service{users: users, issuer: issuer, signingKey: signingKey, ttl: ttl}
}

// Register creates an account and returns it with a session token. The very
// first account becomes the admin; everyone after starts as a plain member.
func (s *Service) Register(ctx context.Context, email, password string, name *string) (roster.User, string, error) {
	existing, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return roster.User{}, "", err
	}
	if existing != nil {
		return roster.User{}, "", ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return roster.User{}, "", err
	}

	role := roster.RoleUser
	count, err := s.users.CountUsers(ctx)
	if err != nil {
		return roster.User{}, "", err
	}
	if count == 0 {
		role = roster.RoleAdmin
	}

	user, err := s.users.CreateUser(ctx, email, string(hash), name, role)
	if err != nil {
		return roster.User{}, "", err
	}

	token, _, err := Issue(user.ID, user.Role, s.issuer, s.signingKey, s.ttl)
	if err != nil {
		return roster.User{}, "", err
	}
	log.Info().Int64("user_id", user.ID).Str("role", user.Role).Msg("user registered")
	return user, token, nil
}

// Login verifies credentials and returns the user with a session token.
func (s *Service) Login(ctx context.Context, email, password string) (roster.User, string, error) {
	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return roster.User{}, "", err
	}
	if user == nil {
		return roster.User{}, "", ErrBadCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return roster.User{}, "", ErrBadCredentials
	}

	token, _, err := Issue(user.ID, user.Role, s.issuer, s.signingKey, s.ttl)
	if err != nil {
		return roster.User{}, "", err
	}
	return *user, token, nil
}
