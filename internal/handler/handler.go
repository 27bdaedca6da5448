// Package handler wires the HTTP surface to the domain services.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"qrattend/internal/attendance"
	"qrattend/internal/geo"
	"qrattend/internal/roster"
)

// Submitter runs the attendance submission pipeline.
type Submitter interface {
	Submit(ctx context.Context, in attendance.SubmitInput) error
}

// Reports serves the curator views.
type Reports interface {
	CuratorDayStatus(ctx context.Context, curatorID int64, groupID *int64, start, end time.Time) ([]attendance.StudentStatus, error)
	CuratorHistory(ctx context.Context, curatorID int64, f attendance.HistoryFilter) ([]attendance.HistoryRow, error)
}

// Accounts registers and authenticates users.
type Accounts interface {
	Register(ctx context.Context, email, password string, name *string) (roster.User, string, error)
	Login(ctx context.Context, email, password string) (roster.User, string, error)
}

// Roster manages users and groups.
type Roster interface {
	Users(ctx context.Context) ([]roster.User, error)
	UpdateUserRole(ctx context.Context, userID int64, role string) (roster.User, error)
	CreateGroup(ctx context.Context, name string) (roster.Group, error)
	Groups(ctx context.Context) ([]roster.Group, error)
	SetCurator(ctx context.Context, groupID, curatorID int64) error
	AddMember(ctx context.Context, groupID, userID int64) error
}

// LocationSettings reads and updates the reference coordinate.
type LocationSettings interface {
	Reference() geo.Point
	UpdateReference(ctx context.Context, p geo.Point) error
}

// Handler holds the dependencies of all HTTP endpoints.
type Handler struct {
	submitter Submitter
	reports   Reports
	accounts  Accounts
	roster    Roster
	location  LocationSettings
}

// New creates a handler.
func New(submitter Submitter, reports Reports, accounts Accounts, ros Roster, location LocationSettings) *Handler {
	return &Handler{
		submitter: submitter,
		reports:   reports,
		accounts:  accounts,
		roster:    ros,
		location:  location,
	}
}

// writeSubmitError maps a classified submission failure onto the wire format:
// client errors get the specific reason, internal ones a generic message.
func writeSubmitError(c *gin.Context, err error) {
	var aerr *attendance.Error
	if !errors.As(err, &aerr) {
		log.Error().Err(err).Msg("unclassified submission failure")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	status := http.StatusBadRequest
	if aerr.Kind == attendance.KindInternal {
		status = http.StatusInternalServerError
		log.Error().Err(aerr).Msg("submission failed")
	}
	body := gin.H{"error": aerr.Message, "kind": string(aerr.Kind)}
	if aerr.Details != nil {
		body["details"] = aerr.Details
	}
	c.JSON(status, body)
}
