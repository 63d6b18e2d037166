package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/wanderstay/payments-backend/internal/models"
)

// PaymentAuditRepository persists the immutable payment audit trail
type PaymentAuditRepository struct {
	db     DB
	logger *logrus.Logger
}

// NewPaymentAuditRepository creates a new payment audit repository
func NewPaymentAuditRepository(db DB, logger *logrus.Logger) *PaymentAuditRepository {
	return &PaymentAuditRepository{
		db:     db,
		logger: logger,
	}
}

// Log creates a new payment audit entry.
// Payment events must always leave a trace; a failed insert is logged loudly
// before the error is returned.
func (r *PaymentAuditRepository) Log(audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO payment_audits (
			id, booking_id, payment_intent_id,
			event_type, event_source,
			expected_amount, received_amount, currency, amounts_match,
			gateway_status, gateway_transaction_id,
			payload, raw_body, error_message,
			ip_address, user_agent, device_info,
			created_at
		) VALUES (
			$1, $2, $3,
			$4, $5,
			$6, $7, $8, $9,
			$10, $11,
			$12, $13, $14,
			$15, $16, $17,
			$18
		)`

	_, err := r.db.Exec(query,
		audit.ID, audit.BookingID, audit.PaymentIntentID,
		audit.EventType, audit.EventSource,
		audit.ExpectedAmount, audit.ReceivedAmount, audit.Currency, audit.AmountsMatch,
		audit.GatewayStatus, audit.GatewayTransactionID,
		audit.Payload, audit.RawBody, audit.ErrorMessage,
		audit.IPAddress, audit.UserAgent, audit.DeviceInfo,
		audit.CreatedAt,
	)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": audit.EventType,
			"booking_id": audit.BookingID,
		}).Error("Failed to log payment audit")
		return fmt.Errorf("failed to log payment audit: %w", err)
	}

	return nil
}

// GetByBooking retrieves audit entries for a booking, newest first
func (r *PaymentAuditRepository) GetByBooking(bookingID uuid.UUID, limit int) ([]models.PaymentAudit, error) {
	query := `
		SELECT id, booking_id, payment_intent_id,
		       event_type, event_source,
		       expected_amount, received_amount, currency, amounts_match,
		       gateway_status, gateway_transaction_id,
		       payload, raw_body, error_message,
		       ip_address, user_agent, device_info,
		       created_at
		FROM payment_audits
		WHERE booking_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(query, bookingID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment audits: %w", err)
	}
	defer rows.Close()

	audits := make([]models.PaymentAudit, 0)
	for rows.Next() {
		var a models.PaymentAudit
		err := rows.Scan(
			&a.ID, &a.BookingID, &a.PaymentIntentID,
			&a.EventType, &a.EventSource,
			&a.ExpectedAmount, &a.ReceivedAmount, &a.Currency, &a.AmountsMatch,
			&a.GatewayStatus, &a.GatewayTransactionID,
			&a.Payload, &a.RawBody, &a.ErrorMessage,
			&a.IPAddress, &a.UserAgent, &a.DeviceInfo,
			&a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment audit: %w", err)
		}
		audits = append(audits, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payment audits: %w", err)
	}
	return audits, nil
}
