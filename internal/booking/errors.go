package booking

import (
	"errors"
	"fmt"
)

var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrDuplicateEmail  = errors.New("parent email is already registered")
	ErrSeatsAvailable  = errors.New("seats are still available for this class, waiting list is not open")
	ErrAlreadyFrozen   = errors.New("booking already has an active freeze")
	ErrNotFrozen       = errors.New("booking is not frozen")
	ErrNotWaitingList  = errors.New("booking is not on the waiting list")
	ErrNotPending      = errors.New("booking is not pending")
	ErrNotActive       = errors.New("booking is not active")
)

// CapacityError reports how many places were left when a booking asked for
// more. The message text is load-bearing: the front end shows it verbatim.
type CapacityError struct {
	Remaining int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("Only %d slot(s) left for this class.", e.Remaining)
}

// ValidationError names the first missing required field.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// UnmatchedError reports a conversion payload entry that matches no existing
// row on the booking. Unmatched entries fail the conversion rather than being
// skipped silently.
type UnmatchedError struct {
	What string
}

func (e *UnmatchedError) Error() string {
	return fmt.Sprintf("%s does not match any record on this booking", e.What)
}

// PaymentError carries the gateway's message verbatim.
type PaymentError struct {
	Message string
}

func (e *PaymentError) Error() string {
	return e.Message
}
