package services

import (
	"errors"
	"fmt"
)

// Sentinel errors for the payment flows. Handlers translate these into HTTP
// status codes; everything else is an unexpected internal failure.
var (
	// ErrBookingNotFound is returned when the referenced booking does not exist
	ErrBookingNotFound = errors.New("booking not found")

	// ErrNotBookingOwner is returned when the caller does not own the booking.
	// Treated as possible tampering, not as a retryable condition.
	ErrNotBookingOwner = errors.New("booking belongs to another guest")

	// ErrIntentMismatch is returned when the supplied intent id does not match
	// the intent attached to the booking
	ErrIntentMismatch = errors.New("payment intent does not match booking")

	// ErrGatewayNotConfigured is returned when no processor credential is set.
	// Callers must be able to tell "not set up" apart from a processor rejection.
	ErrGatewayNotConfigured = errors.New("payment gateway not configured")

	// ErrForbidden is returned when the caller lacks the required role
	ErrForbidden = errors.New("insufficient permissions")

	// ErrAlreadyReviewed is returned when a manual payment decision was already
	// recorded for the booking
	ErrAlreadyReviewed = errors.New("payment has already been reviewed")

	// ErrNoProofUploaded is returned when manual review is requested for a
	// booking without an uploaded proof of payment
	ErrNoProofUploaded = errors.New("no proof of payment uploaded")
)

// ProcessorError wraps an upstream payment processor failure. The message is
// surfaced verbatim to the caller; the backend never retries on its own.
type ProcessorError struct {
	StatusCode int
	Message    string
}

func (e *ProcessorError) Error() string {
	return fmt.Sprintf("payment processor error (status %d): %s", e.StatusCode, e.Message)
}
