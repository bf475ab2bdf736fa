package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-attendance/internal/attendance"
)

// AttendanceRepository stores mirrored attendance events.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new repository over pool.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// InsertEvent stores one event. Re-inserting the same session sequence
// number is a no-op.
func (r *AttendanceRepository) InsertEvent(ctx context.Context, sessionID uuid.UUID, e attendance.Event) error {
	query := `
		INSERT INTO attendance_events (
			session_id, sequence_number, identifier, display_name, student_group, subgroup,
			event_time, event_date, day_of_week, subject, instructor, confirmed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (session_id, sequence_number) DO NOTHING
	`
	_, err := r.pool.db.ExecContext(ctx, query,
		sessionID.String(), e.Sequence, e.Identifier, e.DisplayName, e.Group, e.Subgroup,
		e.Time, e.Date, e.Day, e.Subject, e.Instructor, e.At,
	)
	if err != nil {
		return fmt.Errorf("insert attendance event: %w", err)
	}
	return nil
}

// ListSession returns the events of one session in sequence order.
func (r *AttendanceRepository) ListSession(ctx context.Context, sessionID uuid.UUID) ([]attendance.Event, error) {
	query := `
		SELECT sequence_number, identifier, display_name, student_group, subgroup,
		       event_time, event_date, day_of_week, subject, instructor, confirmed_at
		FROM attendance_events
		WHERE session_id = $1
		ORDER BY sequence_number
	`
	rows, err := r.pool.db.QueryContext(ctx, query, sessionID.String())
	if err != nil {
		return nil, fmt.Errorf("query attendance events: %w", err)
	}
	defer rows.Close()

	var events []attendance.Event
	for rows.Next() {
		var e attendance.Event
		if err := rows.Scan(
			&e.Sequence, &e.Identifier, &e.DisplayName, &e.Group, &e.Subgroup,
			&e.Time, &e.Date, &e.Day, &e.Subject, &e.Instructor, &e.At,
		); err != nil {
			return nil, fmt.Errorf("scan attendance event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance events: %w", err)
	}
	return events, nil
}

// DeleteOlderThan removes events confirmed before cutoff and returns how
// many were deleted.
func (r *AttendanceRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.pool.db.ExecContext(ctx, `DELETE FROM attendance_events WHERE confirmed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete attendance events: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// CountOlderThan returns how many events DeleteOlderThan would remove.
func (r *AttendanceRepository) CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.pool.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance_events WHERE confirmed_at < $1`, cutoff).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count attendance events: %w", err)
	}
	return n, nil
}
