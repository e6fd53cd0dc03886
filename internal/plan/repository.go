package plan

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

var ErrPlanNotFound = errors.New("payment plan not found")

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, req CreatePlanRequest) (*Plan, error) {
	query := `
		INSERT INTO payment_plans (name, price_cents, joining_fee_cents, duration_months, interval)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, name, price_cents, joining_fee_cents, duration_months, interval, created_at
	`

	var p Plan
	err := r.db.GetContext(ctx, &p, query, req.Name, req.PriceCents, req.JoiningFeeCents, req.DurationMonths, req.Interval)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

func (r *Repository) GetAll(ctx context.Context) ([]Plan, error) {
	query := `
		SELECT id, name, price_cents, joining_fee_cents, duration_months, interval, created_at
		FROM payment_plans
		ORDER BY price_cents ASC
	`

	var plans []Plan
	err := r.db.SelectContext(ctx, &plans, query)
	if err != nil {
		return nil, err
	}

	return plans, nil
}

func (r *Repository) GetByID(ctx context.Context, id int) (*Plan, error) {
	query := `
		SELECT id, name, price_cents, joining_fee_cents, duration_months, interval, created_at
		FROM payment_plans
		WHERE id = $1
	`

	var p Plan
	err := r.db.GetContext(ctx, &p, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}

	return &p, nil
}

// GetByIDTx reads the plan inside the caller's transaction.
func (r *Repository) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id int) (*Plan, error) {
	query := `
		SELECT id, name, price_cents, joining_fee_cents, duration_months, interval, created_at
		FROM payment_plans
		WHERE id = $1
	`

	var p Plan
	err := tx.GetContext(ctx, &p, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}

	return &p, nil
}
