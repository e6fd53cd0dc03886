package payment

import (
	"context"
	"encoding/json"
)

// Gateway issues exactly one external charge call per invocation. Network and
// HTTP errors never escape as errors: they are normalized into a failed
// Result so the caller can persist the outcome and roll back deterministically.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) Result
	Method() Method
}

// normalizeRRNStatus maps billing-request statuses onto the internal enum.
func normalizeRRNStatus(raw string) Status {
	switch raw {
	case "submitted", "pending_submission", "pending":
		return StatusPending
	case "confirmed", "paid":
		return StatusPaid
	default:
		return StatusFailed
	}
}

// normalizeCardStatus maps card transaction statuses onto the internal enum.
// "declined" and anything unrecognized count as failed.
func normalizeCardStatus(raw string) Status {
	switch raw {
	case "success", "already_paid":
		return StatusPaid
	case "pending":
		return StatusPending
	default:
		return StatusFailed
	}
}

// failureMessage extracts the most specific human-readable message from a
// gateway error payload: reasonMessage, then error.message, then the
// stringified body, then the transport error.
func failureMessage(body []byte, transportErr error) string {
	if len(body) > 0 {
		var payload struct {
			ReasonMessage string `json:"reasonMessage"`
			Error         struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(body, &payload); err == nil {
			if payload.ReasonMessage != "" {
				return payload.ReasonMessage
			}
			if payload.Error.Message != "" {
				return payload.Error.Message
			}
		}
		return string(body)
	}
	if transportErr != nil {
		return transportErr.Error()
	}
	return "payment failed"
}
