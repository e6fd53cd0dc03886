package booking

import (
	"time"

	"github.com/rohitwebstep/synco-sub000/internal/payment"
)

type BookingType string

const (
	TypeFree        BookingType = "free"
	TypePaid        BookingType = "paid"
	TypeRemoved     BookingType = "removed"
	TypeWaitingList BookingType = "waiting list"
)

type Status string

const (
	StatusPending         Status = "pending"
	StatusAttended        Status = "attended"
	StatusNotAttend       Status = "not attend"
	StatusCancelled       Status = "cancelled"
	StatusRebooked        Status = "rebooked"
	StatusNoMembership    Status = "no_membership"
	StatusActive          Status = "active"
	StatusFrozen          Status = "frozen"
	StatusWaitingList     Status = "waiting list"
	StatusRequestToCancel Status = "request_to_cancel"
	StatusRemoved         Status = "removed"
)

// EventKind tags a lifecycle event row. One table, one kind column, a payload
// per kind - instead of a flat table of nullable special-purpose columns.
type EventKind string

const (
	EventCancelled    EventKind = "cancelled"
	EventTransferred  EventKind = "transferred"
	EventRemoved      EventKind = "removed"
	EventNoMembership EventKind = "no_membership"
)

type CancellationType string

const (
	CancelImmediate CancellationType = "immediate"
	CancelScheduled CancellationType = "scheduled"
)

// Booking is the aggregate root of the lifecycle. Rows are never deleted;
// cancellation and removal are status changes plus a lifecycle event.
type Booking struct {
	ID              int         `db:"id" json:"id"`
	Reference       string      `db:"reference" json:"reference"`
	BookingType     BookingType `db:"booking_type" json:"booking_type"`
	Status          Status      `db:"status" json:"status"`
	VenueID         int         `db:"venue_id" json:"venue_id"`
	ClassScheduleID int         `db:"class_schedule_id" json:"class_schedule_id"`
	PaymentPlanID   *int        `db:"payment_plan_id" json:"payment_plan_id,omitempty"`
	BookedBy        int         `db:"booked_by" json:"booked_by"`
	TotalStudents   int         `db:"total_students" json:"total_students"`
	TrialDate       *time.Time  `db:"trial_date" json:"trial_date,omitempty"`
	StartDate       *time.Time  `db:"start_date" json:"start_date,omitempty"`
	Interest        string      `db:"interest" json:"interest"`
	AdditionalNote  string      `db:"additional_note" json:"additional_note"`
	NonAttendReason string      `db:"non_attend_reason" json:"non_attend_reason"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`
}

// StudentMeta is one enrolled child, owned by exactly one booking.
type StudentMeta struct {
	ID          int       `db:"id" json:"id"`
	BookingID   int       `db:"booking_id" json:"booking_id"`
	FirstName   string    `db:"first_name" json:"first_name"`
	LastName    string    `db:"last_name" json:"last_name"`
	DateOfBirth time.Time `db:"date_of_birth" json:"date_of_birth"`
	Age         int       `db:"age" json:"age"`
	Gender      string    `db:"gender" json:"gender"`
	MedicalInfo string    `db:"medical_info" json:"medical_info"`
}

// ParentMeta is one parent/guardian, owned by a student row. The email doubles
// as the natural key against existing parents and login accounts.
type ParentMeta struct {
	ID             int    `db:"id" json:"id"`
	StudentID      int    `db:"student_id" json:"student_id"`
	FirstName      string `db:"first_name" json:"first_name"`
	LastName       string `db:"last_name" json:"last_name"`
	Email          string `db:"email" json:"email"`
	Phone          string `db:"phone" json:"phone"`
	Relation       string `db:"relation" json:"relation"`
	ReferralSource string `db:"referral_source" json:"referral_source"`
}

// EmergencyContact is attached to the first student only, by convention.
type EmergencyContact struct {
	ID        int    `db:"id" json:"id"`
	StudentID int    `db:"student_id" json:"student_id"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
	Phone     string `db:"phone" json:"phone"`
	Relation  string `db:"relation" json:"relation"`
}

// LifecycleEvent records a cancellation, transfer, waiting-list removal or
// no-membership determination against a booking.
type LifecycleEvent struct {
	ID               int               `db:"id" json:"id"`
	BookingID        int               `db:"booking_id" json:"booking_id"`
	Kind             EventKind         `db:"kind" json:"kind"`
	CancellationType *CancellationType `db:"cancellation_type" json:"cancellation_type,omitempty"`
	CancelDate       *time.Time        `db:"cancel_date" json:"cancel_date,omitempty"`
	Reason           string            `db:"reason" json:"reason"`
	Note             string            `db:"note" json:"note"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
}

// Freeze is one freeze period. A booking has at most one active freeze.
type Freeze struct {
	ID             int       `db:"id" json:"id"`
	BookingID      int       `db:"booking_id" json:"booking_id"`
	StartDate      time.Time `db:"start_date" json:"start_date"`
	DurationMonths int       `db:"duration_months" json:"duration_months"`
	ReactivateOn   time.Time `db:"reactivate_on" json:"reactivate_on"`
	Reason         string    `db:"reason" json:"reason"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// ---- request shapes ----

type StudentInput struct {
	ID          int    `json:"id,omitempty"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth"`
	Age         int    `json:"age"`
	Gender      string `json:"gender"`
	MedicalInfo string `json:"medical_info"`
}

type ParentInput struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Relation       string `json:"relation"`
	ReferralSource string `json:"referral_source"`
}

type EmergencyInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Relation  string `json:"relation"`
}

// CreateRequest covers the free-trial and waiting-list creation flows.
type CreateRequest struct {
	ClassScheduleID int              `json:"class_schedule_id" binding:"required"`
	TrialDate       string           `json:"trial_date"`
	Interest        string           `json:"interest"`
	AdditionalNote  string           `json:"additional_note"`
	Source          string           `json:"source"`
	Students        []StudentInput   `json:"students" binding:"required,min=1"`
	Parents         []ParentInput    `json:"parents" binding:"required,min=1"`
	Emergency       EmergencyInput   `json:"emergency"`
}

// CreateMembershipRequest adds the plan and payment method to CreateRequest.
type CreateMembershipRequest struct {
	CreateRequest
	PaymentPlanID int                  `json:"payment_plan_id" binding:"required"`
	StartDate     string               `json:"start_date" binding:"required"`
	PaymentMethod payment.Method       `json:"payment_method" binding:"required,oneof=rrn card"`
	Card          *payment.CardDetails `json:"card"`
}

type ConvertRequest struct {
	PaymentPlanID int                  `json:"payment_plan_id" binding:"required"`
	StartDate     string               `json:"start_date" binding:"required"`
	PaymentMethod payment.Method       `json:"payment_method" binding:"required,oneof=rrn card"`
	Card          *payment.CardDetails `json:"card"`
	Students      []StudentInput       `json:"students"`
	Parents       []ParentInput        `json:"parents"`
}

type TransferRequest struct {
	ClassScheduleID int    `json:"class_schedule_id" binding:"required"`
	Reason          string `json:"reason"`
}

type FreezeRequest struct {
	StartDate      string `json:"start_date" binding:"required"`
	DurationMonths int    `json:"duration_months" binding:"required,min=1"`
	Reason         string `json:"reason"`
}

type CancelRequest struct {
	Type       CancellationType `json:"type" binding:"required,oneof=immediate scheduled"`
	CancelDate string           `json:"cancel_date"`
	Reason     string           `json:"reason"`
	Note       string           `json:"note"`
}

type AttendanceRequest struct {
	Outcome string `json:"outcome" binding:"required,oneof=attended not_attend no_membership"`
	Reason  string `json:"reason"`
}

type RetryPaymentRequest struct {
	Card *payment.CardDetails `json:"card"`
}

// ---- read model ----

// Created carries the fresh booking plus the denormalized names the caller
// needs for email composition.
type Created struct {
	Booking          *Booking `json:"booking"`
	StudentFirstName string   `json:"student_first_name"`
	StudentLastName  string   `json:"student_last_name"`
	ParentFirstName  string   `json:"parent_first_name"`
	ParentEmail      string   `json:"parent_email"`
	ClassName        string   `json:"class_name"`
	VenueName        string   `json:"venue_name"`
	PaymentStatus    string   `json:"payment_status,omitempty"`
}

// Detail is the flattened list-endpoint row.
type Detail struct {
	Booking
	ClassName        string  `db:"class_name" json:"class_name"`
	VenueName        string  `db:"venue_name" json:"venue_name"`
	PlanName         *string `db:"plan_name" json:"plan_name,omitempty"`
	PlanPriceCents   *int64  `db:"plan_price_cents" json:"plan_price_cents,omitempty"`
	PlanJoiningCents *int64  `db:"plan_joining_cents" json:"plan_joining_cents,omitempty"`
	PlanDuration     *int    `db:"plan_duration" json:"plan_duration,omitempty"`
	StudentFirstName string  `db:"student_first_name" json:"student_first_name"`
	StudentLastName  string  `db:"student_last_name" json:"student_last_name"`
	ParentEmail      string  `db:"parent_email" json:"parent_email"`
	BookedByEmail    string  `db:"booked_by_email" json:"booked_by_email"`
}

type ListFilter struct {
	Status      string
	VenueID     int
	VenueName   string
	BookedBy    int
	StudentName string
	DateBooked  string
	FromDate    string
	ToDate      string
	DateFrom    string
	DateTo      string
}

// Stats summarizes the filtered result set. Revenue counts plan price plus
// joining fee per enrolled student.
type Stats struct {
	TotalBookings        int     `json:"total_bookings"`
	RevenueCents         int64   `json:"revenue_cents"`
	AvgMonthlyFeeCents   int64   `json:"avg_monthly_fee_cents"`
	AvgLifecycleMonths   float64 `json:"avg_lifecycle_months"`
}

type ListResult struct {
	Bookings []Detail `json:"bookings"`
	Stats    Stats    `json:"stats"`
}
