package plan

import "time"

// Plan is a membership payment plan: a recurring price plus a one-off joining
// fee, charged per student over the plan duration.
type Plan struct {
	ID              int       `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	PriceCents      int64     `db:"price_cents" json:"price_cents"`
	JoiningFeeCents int64     `db:"joining_fee_cents" json:"joining_fee_cents"`
	DurationMonths  int       `db:"duration_months" json:"duration_months"`
	Interval        string    `db:"interval" json:"interval"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

type CreatePlanRequest struct {
	Name            string `json:"name" binding:"required"`
	PriceCents      int64  `json:"price_cents" binding:"required,gte=0"`
	JoiningFeeCents int64  `json:"joining_fee_cents" binding:"gte=0"`
	DurationMonths  int    `json:"duration_months" binding:"required,min=1"`
	Interval        string `json:"interval" binding:"required,oneof=monthly quarterly annually"`
}
