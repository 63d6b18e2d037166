package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wanderstay/payments-backend/internal/models"
)

// PaymentRepository handles the immutable payment ledger. Rows are inserted
// once and never mutated.
type PaymentRepository struct {
	db DB
}

// NewPaymentRepository creates a new PaymentRepository
func NewPaymentRepository(db DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// CreateForBooking appends a ledger record for a successful payment. The
// insert is conditional on no record existing for the booking yet, which is
// what makes duplicate success notifications (webhook + user confirmation)
// safe. Returns whether a row was actually inserted.
func (r *PaymentRepository) CreateForBooking(payment *models.Payment) (bool, error) {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now()
	}
	if payment.Status == "" {
		payment.Status = models.PaymentRecordCompleted
	}

	query := `
		INSERT INTO payments (id, booking_id, amount, payment_method, provider_payment_id, status, created_at)
		SELECT $1, $2, $3, $4, $5, $6, $7
		WHERE NOT EXISTS (
			SELECT 1 FROM payments WHERE booking_id = $2
		)`

	result, err := r.db.Exec(query,
		payment.ID, payment.BookingID, payment.Amount, payment.PaymentMethod,
		payment.ProviderPaymentID, payment.Status, payment.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create payment record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check payment insert result: %w", err)
	}
	return rows > 0, nil
}

// ExistsForBooking reports whether a ledger record exists for the booking
func (r *PaymentRepository) ExistsForBooking(bookingID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM payments WHERE booking_id = $1)`

	if err := r.db.QueryRow(query, bookingID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check payment existence: %w", err)
	}
	return exists, nil
}

// GetByBooking retrieves the ledger record for a booking, or nil when none exists
func (r *PaymentRepository) GetByBooking(bookingID uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	query := `
		SELECT id, booking_id, amount, payment_method, provider_payment_id, status, created_at
		FROM payments
		WHERE booking_id = $1`

	err := r.db.QueryRow(query, bookingID).Scan(
		&p.ID, &p.BookingID, &p.Amount, &p.PaymentMethod,
		&p.ProviderPaymentID, &p.Status, &p.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment record: %w", err)
	}
	return &p, nil
}
