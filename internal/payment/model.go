package payment

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
)

type Method string

const (
	MethodRRN  Method = "rrn"
	MethodCard Method = "card"
)

// Attempt is one payment attempt against a booking. Every attempt, including
// retries, is kept as history; the latest row by created_at is the current
// truth for whether the booking is paid.
type Attempt struct {
	ID              int             `db:"id" json:"id"`
	BookingID       int             `db:"booking_id" json:"booking_id"`
	FirstName       string          `db:"first_name" json:"first_name"`
	LastName        string          `db:"last_name" json:"last_name"`
	Email           string          `db:"email" json:"email"`
	CardHolderName  string          `db:"card_holder_name" json:"card_holder_name,omitempty"`
	CardLast4       string          `db:"card_last4" json:"card_last4,omitempty"`
	PaymentType     Method          `db:"payment_type" json:"payment_type"`
	PaymentStatus   Status          `db:"payment_status" json:"payment_status"`
	AmountCents     int64           `db:"amount_cents" json:"amount_cents"`
	GatewayResponse json.RawMessage `db:"gateway_response" json:"gateway_response,omitempty"`
	GatewayStatus   string          `db:"gateway_status" json:"gateway_status"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// CardDetails is never stored in full: only the holder name and last four
// digits survive into the attempt row.
type CardDetails struct {
	Pan            string `json:"pan" binding:"required"`
	ExpiryDate     string `json:"expiry_date" binding:"required"`
	CardHolderName string `json:"card_holder_name" binding:"required"`
	CV2            string `json:"cv2" binding:"required"`
}

// ChargeRequest is the gateway-neutral input for one charge.
type ChargeRequest struct {
	AmountCents int64
	Currency    string
	Description string
	MerchantRef string
	Card        *CardDetails
}

// Result is the uniform outcome shape both gateways normalize into.
type Result struct {
	Status  Status
	Message string
	// Raw is the full gateway payload, persisted for audit even on failure.
	Raw json.RawMessage
	// GatewayStatus is the provider's raw status string before normalization.
	GatewayStatus string
}
