package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// BOOKING STATUSES (matches DB ENUMs)
// ============================================================================

// BookingStatus represents the lifecycle status of a booking
// Matches PostgreSQL ENUM: booking_status
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

// PaymentStatus represents the payment status of a booking
// Matches PostgreSQL ENUM: payment_status
type PaymentStatus string

const (
	PaymentStatusUnset      PaymentStatus = "unset"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSucceeded  PaymentStatus = "succeeded"
	PaymentStatusFailed     PaymentStatus = "failed"
)

// IsTerminal reports whether no further payment transition is allowed
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSucceeded || s == PaymentStatusFailed
}

// PaymentProvider identifies which processor (or manual method) collects the money
type PaymentProvider string

const (
	ProviderStripe       PaymentProvider = "stripe"
	ProviderPayPal       PaymentProvider = "paypal"
	ProviderBankTransfer PaymentProvider = "bank_transfer"
)

// ============================================================================
// BOOKING MODEL (bookings table)
// ============================================================================

// Booking represents a reservation for a stay/experience/transport/package/event.
// Only the payment-relevant columns live here; inventory details are owned by the
// storefront service.
type Booking struct {
	ID      uuid.UUID `json:"id" db:"id"`
	GuestID uuid.UUID `json:"guest_id" db:"guest_id"`

	// Commercial
	TotalPrice float64 `json:"total_price" db:"total_price"` // major units
	Currency   string  `json:"currency" db:"currency"`

	// Lifecycle
	Status        BookingStatus `json:"status" db:"status"`
	PaymentStatus PaymentStatus `json:"payment_status" db:"payment_status"`

	// Payment linkage
	PaymentIntentID    *string         `json:"payment_intent_id,omitempty" db:"payment_intent_id"`
	PaymentProvider    PaymentProvider `json:"payment_provider,omitempty" db:"payment_provider"`
	PaymentMethod      *string         `json:"payment_method,omitempty" db:"payment_method"`
	PaymentProofURL    *string         `json:"payment_proof_url,omitempty" db:"payment_proof_url"`
	PaymentCompletedAt *time.Time      `json:"payment_completed_at,omitempty" db:"payment_completed_at"`

	// Manual review metadata
	ReviewedBy  *uuid.UUID `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty" db:"reviewed_at"`
	ReviewNotes *string    `json:"review_notes,omitempty" db:"review_notes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasIntent reports whether an intent has already been attached
func (b *Booking) HasIntent() bool {
	return b.PaymentIntentID != nil && *b.PaymentIntentID != ""
}

// AwaitingManualReview reports whether the booking is waiting for an admin
// decision on an uploaded proof of payment
func (b *Booking) AwaitingManualReview() bool {
	return b.PaymentProofURL != nil && !b.PaymentStatus.IsTerminal()
}

// ============================================================================
// REQUEST/RESPONSE STRUCTS
// ============================================================================

// CreateIntentRequest is the checkout request to initiate a payment
type CreateIntentRequest struct {
	BookingID string            `json:"booking_id" binding:"required"`
	Amount    float64           `json:"amount" binding:"required,gt=0"` // major units
	Currency  string            `json:"currency,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// CreateIntentResponse is returned when a payment intent has been created
type CreateIntentResponse struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
	Status          string `json:"status"`
}

// ConfirmPaymentRequest asks the backend to reconcile a completed checkout
type ConfirmPaymentRequest struct {
	PaymentIntentID string `json:"payment_intent_id" binding:"required"`
	BookingID       string `json:"booking_id" binding:"required"`
}

// ConfirmPaymentResponse reports the reconciled state after confirmation
type ConfirmPaymentResponse struct {
	Success       bool                 `json:"success"`
	PaymentStatus PaymentStatus        `json:"paymentStatus"`
	BookingStatus BookingStatus        `json:"bookingStatus"`
	PaymentIntent ConfirmedIntentBrief `json:"paymentIntent"`
}

// ConfirmedIntentBrief echoes the processor-side intent state
type ConfirmedIntentBrief struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"` // minor units, as the processor reports it
	Currency string `json:"currency"`
}

// ReviewPaymentRequest is the admin decision on a manual (bank transfer) payment
type ReviewPaymentRequest struct {
	BookingID string  `json:"booking_id" binding:"required"`
	Action    string  `json:"action" binding:"required,oneof=approve reject"`
	Notes     *string `json:"notes,omitempty"`
}

// ReviewActions accepted by the manual review endpoint
const (
	ReviewActionApprove = "approve"
	ReviewActionReject  = "reject"
)

// BookingPaymentStatusResponse is returned by the status polling endpoint
type BookingPaymentStatusResponse struct {
	BookingID       uuid.UUID     `json:"booking_id"`
	Status          BookingStatus `json:"status"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	PaymentIntentID *string       `json:"payment_intent_id,omitempty"`
	Ledgered        bool          `json:"ledgered"`
}
