package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"qrattend/internal/geo"
	"qrattend/internal/qrtoken"
	"qrattend/internal/roster"
)

// RecordStore is the persistence needed by the submission pipeline.
type RecordStore interface {
	FindByUserAndDayRange(ctx context.Context, userID int64, start, end time.Time) (*Record, error)
	Insert(ctx context.Context, rec Record) (Record, error)
}

// ProfileStore resolves a user's role and group associations.
type ProfileStore interface {
	Profile(ctx context.Context, userID int64) (*roster.Profile, error)
}

// ReferencePoint supplies the current campus coordinate.
type ReferencePoint interface {
	Reference() geo.Point
}

// Service runs the submission pipeline: coordinate shape, proximity, code
// freshness, duplicate guard, group resolution, insert.
type Service struct {
	records   RecordStore
	profiles  ProfileStore
	ref       ReferencePoint
	tolerance float64
	now       func() time.Time
}

// NewService creates a service. A non-positive tolerance falls back to the
// default ~200m threshold.
func NewService(records RecordStore, profiles ProfileStore, ref ReferencePoint, tolerance float64) *Service {
	if tolerance <= 0 {
		tolerance = geo.DefaultToleranceDegrees
	}
	return &Service{
		records:   records,
		profiles:  profiles,
		ref:       ref,
		tolerance: tolerance,
		now:       time.Now,
	}
}

// SubmitInput is one attendance submission. Latitude and Longitude come
// straight from the JSON body and may be numbers or strings.
type SubmitInput struct {
	UserID    int64
	QRCode    string
	GroupID   *int64
	Latitude  any
	Longitude any
}

// Submit validates a submission and persists the record. Any returned error is
// an *Error carrying the specific rejection kind; no record is written on
// failure.
func (s *Service) Submit(ctx context.Context, in SubmitInput) error {
	lat, latErr := parseCoordinate(in.Latitude)
	lon, lonErr := parseCoordinate(in.Longitude)
	if latErr != nil || lonErr != nil {
		return newError(KindInvalidCoordinate,
			fmt.Sprintf("invalid coordinates: latitude=%v, longitude=%v", in.Latitude, in.Longitude))
	}

	loc := geo.CheckLocation(lat, lon, s.ref.Reference(), s.tolerance)
	if !loc.IsNearby {
		return &Error{
			Kind:    KindLocationOutOfRange,
			Message: "too far from campus to record attendance",
			Details: &LocationDetails{Distance: loc.DistanceInMeters, Message: loc.Message},
		}
	}

	now := s.now()
	if _, err := qrtoken.Validate(in.QRCode, now); err != nil {
		switch {
		case errors.Is(err, qrtoken.ErrMalformedCode):
			return newError(KindMalformedCode, "invalid attendance code format")
		case errors.Is(err, qrtoken.ErrMalformedTimestamp):
			return newError(KindMalformedTimestamp, "invalid date in attendance code")
		default:
			return newError(KindExpiredCode, "attendance code expired, scan a code generated today")
		}
	}

	start, end := DayBounds(now)
	existing, err := s.records.FindByUserAndDayRange(ctx, in.UserID, start, end)
	if err != nil {
		return internalError(err)
	}
	if existing != nil {
		return newError(KindDuplicateAttendance,
			fmt.Sprintf("attendance already recorded today at %s",
				existing.OccurredAt.In(now.Location()).Format("15:04")))
	}

	profile, err := s.profiles.Profile(ctx, in.UserID)
	if err != nil {
		return internalError(err)
	}
	if profile == nil {
		return internalError(fmt.Errorf("user %d not found", in.UserID))
	}
	groupID, gerr := resolveGroup(profile, in.GroupID)
	if gerr != nil {
		return gerr
	}

	rec, err := s.records.Insert(ctx, Record{
		UserID:     in.UserID,
		GroupID:    groupID,
		OccurredAt: now,
		Day:        start,
		Latitude:   lat,
		Longitude:  lon,
		Valid:      true,
	})
	if err != nil {
		// The pre-check above raced with another submission; the constraint is
		// the authoritative guard.
		if errors.Is(err, ErrDuplicateDay) {
			return newError(KindDuplicateAttendance, "attendance already recorded today")
		}
		return internalError(err)
	}

	log.Info().
		Str("record_id", rec.ID).
		Int64("user_id", rec.UserID).
		Int("distance_m", loc.DistanceInMeters).
		Msg("attendance recorded")
	return nil
}

// DayBounds returns [start-of-day, start-of-next-day) for t in its location.
func DayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

// resolveGroup attributes a submission to a group. Members use their active
// membership. Curators of a single group use it; curators of several must
// select one explicitly.
func resolveGroup(p *roster.Profile, selected *int64) (*int64, *Error) {
	switch p.Role {
	case roster.RoleCurator:
		if selected != nil {
			for _, id := range p.CuratedGroupIDs {
				if id == *selected {
					return selected, nil
				}
			}
			return nil, newError(KindGroupAmbiguous, "selected group is not curated by you")
		}
		switch len(p.CuratedGroupIDs) {
		case 0:
			return nil, nil
		case 1:
			id := p.CuratedGroupIDs[0]
			return &id, nil
		default:
			return nil, newError(KindGroupAmbiguous,
				"you curate several groups, pass groupId to choose one")
		}
	case roster.RoleUser:
		return p.ActiveGroupID, nil
	default:
		return nil, nil
	}
}

func parseCoordinate(v any) (float64, error) {
	var f float64
	var err error
	switch t := v.(type) {
	case float64:
		f = t
	case json.Number:
		f, err = t.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(t), 64)
	case nil:
		return 0, errors.New("coordinate missing")
	default:
		return 0, fmt.Errorf("coordinate has unsupported type %T", v)
	}
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("coordinate is not finite")
	}
	return f, nil
}
