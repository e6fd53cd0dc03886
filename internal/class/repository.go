package class

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

var (
	ErrScheduleNotFound  = errors.New("class schedule not found")
	ErrCapacityExhausted = errors.New("class capacity exhausted")
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, req CreateScheduleRequest) (*Schedule, error) {
	query := `
		INSERT INTO class_schedules (venue_id, class_name, day_of_week, start_time, end_time, age_from, age_to, capacity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, venue_id, class_name, day_of_week, start_time, end_time, age_from, age_to, capacity, created_at
	`

	var s Schedule
	err := r.db.GetContext(ctx, &s, query,
		req.VenueID, req.ClassName, req.DayOfWeek, req.StartTime, req.EndTime, req.AgeFrom, req.AgeTo, req.Capacity)
	if err != nil {
		return nil, err
	}

	return &s, nil
}

func (r *Repository) GetByID(ctx context.Context, id int) (*Schedule, error) {
	query := `
		SELECT id, venue_id, class_name, day_of_week, start_time, end_time, age_from, age_to, capacity, created_at
		FROM class_schedules
		WHERE id = $1
	`

	var s Schedule
	err := r.db.GetContext(ctx, &s, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}

	return &s, nil
}

// GetByIDTx reads the schedule inside the caller's transaction.
func (r *Repository) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id int) (*Schedule, error) {
	query := `
		SELECT id, venue_id, class_name, day_of_week, start_time, end_time, age_from, age_to, capacity, created_at
		FROM class_schedules
		WHERE id = $1
	`

	var s Schedule
	err := tx.GetContext(ctx, &s, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}

	return &s, nil
}

func (r *Repository) GetByVenue(ctx context.Context, venueID int) ([]Schedule, error) {
	query := `
		SELECT id, venue_id, class_name, day_of_week, start_time, end_time, age_from, age_to, capacity, created_at
		FROM class_schedules
		WHERE venue_id = $1
		ORDER BY day_of_week, start_time
	`

	var schedules []Schedule
	err := r.db.SelectContext(ctx, &schedules, query, venueID)
	if err != nil {
		return nil, err
	}

	return schedules, nil
}

// DecrementCapacity takes n places atomically. The conditional update is the
// guard against two concurrent bookings both reading the same pre-decrement
// capacity: zero rows affected means the places were gone.
func (r *Repository) DecrementCapacity(ctx context.Context, tx *sqlx.Tx, id, n int) error {
	query := `
		UPDATE class_schedules
		SET capacity = capacity - $1
		WHERE id = $2 AND capacity >= $1
	`

	result, err := tx.ExecContext(ctx, query, n, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrCapacityExhausted
	}

	return nil
}

// RestoreCapacity is an administrative operation only; cancellation does not
// call it automatically.
func (r *Repository) RestoreCapacity(ctx context.Context, tx *sqlx.Tx, id, n int) error {
	query := `
		UPDATE class_schedules
		SET capacity = capacity + $1
		WHERE id = $2
	`

	result, err := tx.ExecContext(ctx, query, n, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrScheduleNotFound
	}

	return nil
}
