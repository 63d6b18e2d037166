package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentRecordStatus is the completion status of a ledger record.
// Failed attempts are never ledgered, so "completed" is the only value.
type PaymentRecordStatus string

const (
	PaymentRecordCompleted PaymentRecordStatus = "completed"
)

// Payment is an immutable ledger record of a completed payment.
// Exactly one row exists per booking per successful payment event; the
// repository enforces this with a conditional insert.
type Payment struct {
	ID        uuid.UUID `json:"id" db:"id"`
	BookingID uuid.UUID `json:"booking_id" db:"booking_id"`

	Amount        float64 `json:"amount" db:"amount"` // major units
	PaymentMethod string  `json:"payment_method" db:"payment_method"`

	// Processor-assigned payment id; nil for manual (bank transfer) payments
	ProviderPaymentID *string `json:"provider_payment_id,omitempty" db:"provider_payment_id"`

	Status    PaymentRecordStatus `json:"status" db:"status"`
	CreatedAt time.Time           `json:"created_at" db:"created_at"`
}
