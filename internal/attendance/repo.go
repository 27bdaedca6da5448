package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicateDay is returned by Insert when the (user, day) uniqueness
// constraint fires, i.e. a record for that user and calendar day already
// exists.
var ErrDuplicateDay = errors.New("attendance already recorded for this day")

const uniqueViolation = "23505"

// Record is one persisted attendance check-in. Records are immutable once
// created; reporting may later clear the Valid flag but never rewrites them.
type Record struct {
	ID         string    `json:"id"`
	UserID     int64     `json:"user_id"`
	GroupID    *int64    `json:"group_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Day        time.Time `json:"day"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Valid      bool      `json:"valid"`
	CreatedAt  time.Time `json:"created_at"`
}

// Repository persists attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// FindByUserAndDayRange returns the most recent record for the user within
// [start, end), or nil when there is none. Used for the duplicate pre-check
// diagnostic; the insert constraint is the authoritative guard.
func (r *Repository) FindByUserAndDayRange(ctx context.Context, userID int64, start, end time.Time) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, group_id, occurred_at, day, latitude, longitude, valid, created_at
		FROM attendance_records
		WHERE user_id = $1 AND occurred_at >= $2 AND occurred_at < $3
		ORDER BY occurred_at DESC
		LIMIT 1
	`, userID, start, end)
	var rec Record
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.GroupID, &rec.OccurredAt, &rec.Day,
		&rec.Latitude, &rec.Longitude, &rec.Valid, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// Insert writes a new record. Concurrent submissions for the same user and day
// race on the unique constraint; the loser gets ErrDuplicateDay.
func (r *Repository) Insert(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, user_id, group_id, occurred_at, day, latitude, longitude, valid)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at
	`, rec.ID, rec.UserID, rec.GroupID, rec.OccurredAt, rec.Day, rec.Latitude, rec.Longitude, rec.Valid)
	if err := row.Scan(&rec.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Record{}, ErrDuplicateDay
		}
		return Record{}, err
	}
	return rec, nil
}

// StudentStatus is one row of the curator's same-day view: an active student
// of a curated group and whether they have checked in within the window.
type StudentStatus struct {
	GroupID        int64      `json:"group_id"`
	GroupName      string     `json:"group_name"`
	StudentID      int64      `json:"student_id"`
	StudentEmail   string     `json:"student_email"`
	StudentName    *string    `json:"student_name,omitempty"`
	AttendedToday  bool       `json:"attended_today"`
	AttendanceTime *time.Time `json:"attendance_time,omitempty"`
}

// CuratorDayStatus lists active students of the curator's groups with their
// attendance within [start, end). A non-nil groupID narrows to one group.
func (r *Repository) CuratorDayStatus(ctx context.Context, curatorID int64, groupID *int64, start, end time.Time) ([]StudentStatus, error) {
	query := `
		SELECT g.id, g.name, u.id, u.email, u.name, a.occurred_at
		FROM groups g
		JOIN group_members m ON m.group_id = g.id AND m.is_active
		JOIN users u ON u.id = m.user_id
		LEFT JOIN attendance_records a
			ON a.user_id = u.id AND a.occurred_at >= $2 AND a.occurred_at < $3
		WHERE g.curator_id = $1`
	args := []any{curatorID, start, end}
	if groupID != nil {
		args = append(args, *groupID)
		query += " AND g.id = $4"
	}
	query += " ORDER BY g.name, u.email"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []StudentStatus
	for rows.Next() {
		var st StudentStatus
		if err := rows.Scan(&st.GroupID, &st.GroupName, &st.StudentID, &st.StudentEmail,
			&st.StudentName, &st.AttendanceTime); err != nil {
			return nil, err
		}
		st.AttendedToday = st.AttendanceTime != nil
		res = append(res, st)
	}
	return res, rows.Err()
}

// HistoryFilter narrows the curator history query. Start/End bound occurred_at,
// GroupID and StudentID filter the record's attribution.
type HistoryFilter struct {
	Start     *time.Time
	End       *time.Time
	GroupID   *int64
	StudentID *int64
}

// HistoryRow is one historical attendance record joined with user and group
// names for reporting.
type HistoryRow struct {
	StudentID    int64     `json:"student_id"`
	StudentEmail string    `json:"student_email"`
	StudentName  *string   `json:"student_name,omitempty"`
	GroupName    *string   `json:"group_name,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
	Valid        bool      `json:"valid"`
}

// CuratorHistory returns historical records for students in the curator's
// groups, oldest first.
func (r *Repository) CuratorHistory(ctx context.Context, curatorID int64, f HistoryFilter) ([]HistoryRow, error) {
	query := `
		SELECT u.id, u.email, u.name, g.name, a.occurred_at, a.valid
		FROM attendance_records a
		JOIN users u ON u.id = a.user_id
		LEFT JOIN groups g ON g.id = a.group_id
		WHERE a.user_id IN (
			SELECT m.user_id FROM group_members m
			JOIN groups cg ON cg.id = m.group_id
			WHERE cg.curator_id = $1 AND m.is_active
		)`
	args := []any{curatorID}
	if f.Start != nil {
		args = append(args, *f.Start)
		query += fmt.Sprintf(" AND a.occurred_at >= $%d", len(args))
	}
	if f.End != nil {
		args = append(args, *f.End)
		query += fmt.Sprintf(" AND a.occurred_at < $%d", len(args))
	}
	if f.GroupID != nil {
		args = append(args, *f.GroupID)
		query += fmt.Sprintf(" AND a.group_id = $%d", len(args))
	}
	if f.StudentID != nil {
		args = append(args, *f.StudentID)
		query += fmt.Sprintf(" AND a.user_id = $%d", len(args))
	}
	query += " ORDER BY a.occurred_at ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []HistoryRow
	for rows.Next() {
		var h HistoryRow
		if err := rows.Scan(&h.StudentID, &h.StudentEmail, &h.StudentName,
			&h.GroupName, &h.OccurredAt, &h.Valid); err != nil {
			return nil, err
		}
		res = append(res, h)
	}
	return res, rows.Err()
}
