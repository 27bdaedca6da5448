package geo

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// ErrInvalidReference is returned when an update carries an out-of-range or
// non-finite coordinate.
var ErrInvalidReference = errors.New("reference coordinate out of range")

// Settings holds the admin-configurable reference coordinate. The value lives
// in the settings table; an atomic in-process snapshot serves the per-request
// reads so submissions never observe a half-updated pair.
type Settings struct {
	db      *sql.DB
	current atomic.Pointer[Point]
}

// NewSettings creates a Settings seeded with the fallback point, which is used
// until Load replaces it with the stored value.
func NewSettings(db *sql.DB, fallback Point) *Settings {
	s := &Settings{db: db}
	s.current.Store(&fallback)
	return s
}

// Load reads the stored reference coordinate. A missing row leaves the
// fallback in place.
func (s *Settings) Load(ctx context.Context) error {
	var p Point
	row := s.db.QueryRowContext(ctx,
		`SELECT ref_latitude, ref_longitude FROM settings WHERE id = 1`)
	if err := row.Scan(&p.Latitude, &p.Longitude); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn().Msg("no stored reference coordinate, using fallback")
			return nil
		}
		return err
	}
	s.current.Store(&p)
	return nil
}

// Reference returns the current reference coordinate.
func (s *Settings) Reference() Point {
	return *s.current.Load()
}

// UpdateReference validates and persists a new reference coordinate, then
// publishes it to readers. Only the admin endpoint calls this.
func (s *Settings) UpdateReference(ctx context.Context, p Point) error {
	if !p.Valid() {
		return ErrInvalidReference
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (id, ref_latitude, ref_longitude, updated_at)
		VALUES (1, $1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET
			ref_latitude = EXCLUDED.ref_latitude,
			ref_longitude = EXCLUDED.ref_longitude,
			updated_at = NOW()
	`, p.Latitude, p.Longitude)
	if err != nil {
		return err
	}
	s.current.Store(&p)
	log.Info().Float64("latitude", p.Latitude).Float64("longitude", p.Longitude).
		Msg("reference coordinate updated")
	return nil
}
