package payment

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

var ErrNoAttempts = errors.New("no payment attempts for booking")

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// InsertAttempt records one payment attempt inside the caller's transaction.
func (r *Repository) InsertAttempt(ctx context.Context, tx *sqlx.Tx, a *Attempt) (*Attempt, error) {
	query := `
		INSERT INTO booking_payments
			(booking_id, first_name, last_name, email, card_holder_name, card_last4,
			 payment_type, payment_status, amount_cents, gateway_response, gateway_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, booking_id, first_name, last_name, email, card_holder_name, card_last4,
			payment_type, payment_status, amount_cents, gateway_response, gateway_status, created_at, updated_at
	`

	var inserted Attempt
	err := tx.GetContext(ctx, &inserted, query,
		a.BookingID, a.FirstName, a.LastName, a.Email, a.CardHolderName, a.CardLast4,
		a.PaymentType, a.PaymentStatus, a.AmountCents, a.GatewayResponse, a.GatewayStatus)
	if err != nil {
		return nil, err
	}

	return &inserted, nil
}

// LatestByBooking returns the most recent attempt; it is the current paid-state
// truth for the booking.
func (r *Repository) LatestByBooking(ctx context.Context, bookingID int) (*Attempt, error) {
	query := `
		SELECT id, booking_id, first_name, last_name, email, card_holder_name, card_last4,
			payment_type, payment_status, amount_cents, gateway_response, gateway_status, created_at, updated_at
		FROM booking_payments
		WHERE booking_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var a Attempt
	err := r.db.GetContext(ctx, &a, query, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoAttempts
		}
		return nil, err
	}

	return &a, nil
}

// UpdateAttempt overwrites the outcome fields of an existing attempt row
// (retry flow updates the latest row in place).
func (r *Repository) UpdateAttempt(ctx context.Context, tx *sqlx.Tx, id int, status Status, gatewayStatus string, gatewayResponse []byte) error {
	query := `
		UPDATE booking_payments
		SET payment_status = $1, gateway_status = $2, gateway_response = $3, updated_at = NOW()
		WHERE id = $4
	`

	result, err := tx.ExecContext(ctx, query, status, gatewayStatus, gatewayResponse, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNoAttempts
	}

	return nil
}

// HistoryByBooking returns every attempt, newest first.
func (r *Repository) HistoryByBooking(ctx context.Context, bookingID int) ([]Attempt, error) {
	query := `
		SELECT id, booking_id, first_name, last_name, email, card_holder_name, card_last4,
			payment_type, payment_status, amount_cents, gateway_response, gateway_status, created_at, updated_at
		FROM booking_payments
		WHERE booking_id = $1
		ORDER BY created_at DESC, id DESC
	`

	var attempts []Attempt
	err := r.db.SelectContext(ctx, &attempts, query, bookingID)
	if err != nil {
		return nil, err
	}

	return attempts, nil
}
