package roster

import (
	"context"
	"database/sql"
	"errors"
)

// ErrNotFound is returned when a user or group does not exist.
var ErrNotFound = errors.New("not found")

// Repository persists roster data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Profile returns role and group associations for the user, or nil when the
// user does not exist.
func (r *Repository) Profile(ctx context.Context, userID int64) (*Profile, error) {
	p := Profile{ID: userID}
	row := r.db.QueryRowContext(ctx, `SELECT role FROM users WHERE id = $1`, userID)
	if err := row.Scan(&p.Role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	row = r.db.QueryRowContext(ctx, `
		SELECT group_id FROM group_members
		WHERE user_id = $1 AND is_active
		LIMIT 1
	`, userID)
	var active int64
	switch err := row.Scan(&active); {
	case err == nil:
		p.ActiveGroupID = &active
	case !errors.Is(err, sql.ErrNoRows):
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM groups WHERE curator_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		p.CuratedGroupIDs = append(p.CuratedGroupIDs, id)
	}
	return &p, rows.Err()
}

// FindUserByEmail returns the user with the given email, or nil.
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, name, role, password_hash, created_at
		FROM users WHERE email = $1
	`, email)
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new account and returns it with the assigned id.
func (r *Repository) CreateUser(ctx context.Context, email, passwordHash string, name *string, role string) (User, error) {
	u := User{Email: email, Name: name, Role: role, PasswordHash: passwordHash}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, email, passwordHash, name, role)
	if err := row.Scan(&u.ID, &u.CreatedAt); err != nil {
		return User{}, err
	}
	return u, nil
}

// CountUsers returns the total number of accounts.
func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// Users lists all accounts without password hashes.
func (r *Repository) Users(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, email, name, role, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// UpdateUserRole sets the role and returns the updated user.
func (r *Repository) UpdateUserRole(ctx context.Context, userID int64, role string) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE users SET role = $2 WHERE id = $1
		RETURNING id, email, name, role, created_at
	`, userID, role)
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// CreateGroup inserts a group.
func (r *Repository) CreateGroup(ctx context.Context, name string) (Group, error) {
	g := Group{Name: name}
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO groups (name) VALUES ($1) RETURNING id`, name)
	if err := row.Scan(&g.ID); err != nil {
		return Group{}, err
	}
	return g, nil
}

// Groups lists groups alphabetically with their active members.
func (r *Repository) Groups(ctx context.Context) ([]Group, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, curator_id FROM groups ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []Group
	index := map[int64]int{}
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.CuratorID); err != nil {
			return nil, err
		}
		index[g.ID] = len(groups)
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	mrows, err := r.db.QueryContext(ctx, `
		SELECT m.group_id, u.id, u.email, u.name
		FROM group_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.is_active
		ORDER BY u.email
	`)
	if err != nil {
		return nil, err
	}
	defer mrows.Close()
	for mrows.Next() {
		var gid int64
		var m Member
		if err := mrows.Scan(&gid, &m.UserID, &m.Email, &m.Name); err != nil {
			return nil, err
		}
		if i, ok := index[gid]; ok {
			groups[i].Members = append(groups[i].Members, m)
		}
	}
	return groups, mrows.Err()
}

// SetCurator assigns a curator to a group.
func (r *Repository) SetCurator(ctx context.Context, groupID, curatorID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE groups SET curator_id = $2 WHERE id = $1`, groupID, curatorID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

// AddMember makes the user an active member of the group, deactivating any
// other active membership first so the one-active-membership invariant holds.
func (r *Repository) AddMember(ctx context.Context, groupID, userID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE group_members SET is_active = FALSE
		WHERE user_id = $1 AND is_active
	`, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO group_members (user_id, group_id, is_active)
		VALUES ($1, $2, TRUE)
		ON CONFLICT (user_id, group_id) DO UPDATE SET is_active = TRUE
	`, userID, groupID); err != nil {
		return err
	}
	return tx.Commit()
}
