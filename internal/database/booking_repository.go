package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wanderstay/payments-backend/internal/models"
)

// BookingRepository handles booking row reads and payment-state transitions.
// Every state change is a conditional UPDATE so that racing writers (user
// confirmation vs webhook) cannot double-apply a transition.
type BookingRepository struct {
	db DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `
	id, guest_id, total_price, currency, status, payment_status,
	payment_intent_id, payment_provider, payment_method, payment_proof_url,
	payment_completed_at, reviewed_by, reviewed_at, review_notes,
	created_at, updated_at`

// scanBooking scans a single booking row
func scanBooking(row interface{ Scan(...interface{}) error }) (*models.Booking, error) {
	var b models.Booking
	var provider sql.NullString

	err := row.Scan(
		&b.ID, &b.GuestID, &b.TotalPrice, &b.Currency, &b.Status, &b.PaymentStatus,
		&b.PaymentIntentID, &provider, &b.PaymentMethod, &b.PaymentProofURL,
		&b.PaymentCompletedAt, &b.ReviewedBy, &b.ReviewedAt, &b.ReviewNotes,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if provider.Valid {
		b.PaymentProvider = models.PaymentProvider(provider.String)
	}
	return &b, nil
}

// GetBookingByID retrieves a booking by id. Returns (nil, nil) when no row exists.
func (r *BookingRepository) GetBookingByID(bookingID uuid.UUID) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(r.db.QueryRow(query, bookingID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// AttachPaymentIntent stores the processor intent id on a booking and moves
// payment_status to processing. The intent id is written only when no intent
// is attached yet; once set it is immutable.
func (r *BookingRepository) AttachPaymentIntent(bookingID uuid.UUID, intentID string, provider models.PaymentProvider) error {
	query := `
		UPDATE bookings
		SET payment_intent_id = $2,
		    payment_provider = $3,
		    payment_status = 'processing',
		    updated_at = NOW()
		WHERE id = $1 AND payment_intent_id IS NULL`

	result, err := r.db.Exec(query, bookingID, intentID, provider)
	if err != nil {
		return fmt.Errorf("failed to attach payment intent: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check attach result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("booking already has a payment intent attached")
	}
	return nil
}

// MarkPaymentSucceeded transitions a booking to payment_status=succeeded and
// advances its lifecycle status to confirmed (completed stays completed).
// Returns whether the transition was applied; a false return means another
// writer already recorded the success.
func (r *BookingRepository) MarkPaymentSucceeded(bookingID uuid.UUID, method string, completedAt time.Time) (bool, error) {
	query := `
		UPDATE bookings
		SET payment_status = 'succeeded',
		    status = CASE WHEN status = 'completed' THEN status ELSE 'confirmed' END,
		    payment_method = COALESCE(payment_method, $2),
		    payment_completed_at = $3,
		    updated_at = NOW()
		WHERE id = $1 AND payment_status <> 'succeeded'`

	result, err := r.db.Exec(query, bookingID, method, completedAt)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment succeeded: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check transition result: %w", err)
	}
	return rows > 0, nil
}

// MarkPaymentFailed records a failed payment attempt. The booking lifecycle
// status is left untouched; a failed card attempt does not cancel a booking.
func (r *BookingRepository) MarkPaymentFailed(bookingID uuid.UUID) (bool, error) {
	query := `
		UPDATE bookings
		SET payment_status = 'failed',
		    updated_at = NOW()
		WHERE id = $1 AND payment_status <> 'succeeded'`

	result, err := r.db.Exec(query, bookingID)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment failed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check transition result: %w", err)
	}
	return rows > 0, nil
}

// ApproveManualPayment applies the admin approval transition: payment succeeded,
// booking confirmed, reviewer identity stamped. Guarded so a booking whose
// payment already reached a terminal state is not restamped.
func (r *BookingRepository) ApproveManualPayment(bookingID, reviewerID uuid.UUID, method string, notes *string, reviewedAt time.Time) (bool, error) {
	query := `
		UPDATE bookings
		SET payment_status = 'succeeded',
		    status = 'confirmed',
		    payment_method = COALESCE(payment_method, $3),
		    payment_completed_at = $5,
		    reviewed_by = $2,
		    reviewed_at = $5,
		    review_notes = $4,
		    updated_at = NOW()
		WHERE id = $1 AND payment_status NOT IN ('succeeded', 'failed')`

	result, err := r.db.Exec(query, bookingID, reviewerID, method, notes, reviewedAt)
	if err != nil {
		return false, fmt.Errorf("failed to approve manual payment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check approval result: %w", err)
	}
	return rows > 0, nil
}

// RejectManualPayment applies the admin rejection transition: payment failed,
// booking cancelled, reviewer identity stamped.
func (r *BookingRepository) RejectManualPayment(bookingID, reviewerID uuid.UUID, notes *string, reviewedAt time.Time) (bool, error) {
	query := `
		UPDATE bookings
		SET payment_status = 'failed',
		    status = 'cancelled',
		    reviewed_by = $2,
		    reviewed_at = $4,
		    review_notes = $3,
		    updated_at = NOW()
		WHERE id = $1 AND payment_status NOT IN ('succeeded', 'failed')`

	result, err := r.db.Exec(query, bookingID, reviewerID, notes, reviewedAt)
	if err != nil {
		return false, fmt.Errorf("failed to reject manual payment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rejection result: %w", err)
	}
	return rows > 0, nil
}

// ListAwaitingReview returns bookings with an uploaded proof of payment whose
// payment status has not reached a terminal state, oldest first.
func (r *BookingRepository) ListAwaitingReview(limit, offset int) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE payment_proof_url IS NOT NULL
		  AND payment_status NOT IN ('succeeded', 'failed')
		ORDER BY created_at ASC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings awaiting review: %w", err)
	}
	defer rows.Close()

	bookings := make([]models.Booking, 0)
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, *booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}
