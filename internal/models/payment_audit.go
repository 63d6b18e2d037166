package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// JSONB is a helper for PostgreSQL jsonb columns
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed for JSONB")
	}
	return json.Unmarshal(bytes, j)
}

// PaymentEventType represents the type of payment event
type PaymentEventType string

const (
	PaymentEventIntentCreated   PaymentEventType = "intent_created"
	PaymentEventIntentReused    PaymentEventType = "intent_reused"
	PaymentEventConfirmRequest  PaymentEventType = "confirm_request"
	PaymentEventWebhookReceived PaymentEventType = "webhook_received"
	PaymentEventSuccess         PaymentEventType = "payment_success"
	PaymentEventFailed          PaymentEventType = "payment_failed"
	PaymentEventManualApproved  PaymentEventType = "manual_approved"
	PaymentEventManualRejected  PaymentEventType = "manual_rejected"
	PaymentEventError           PaymentEventType = "error"
)

// PaymentEventSource identifies where the event originated
type PaymentEventSource string

const (
	PaymentSourceBackend PaymentEventSource = "backend"
	PaymentSourceWebhook PaymentEventSource = "webhook"
	PaymentSourceGateway PaymentEventSource = "gateway_api"
	PaymentSourceAdmin   PaymentEventSource = "admin"
)

// PaymentAudit is an immutable audit log entry for payment events
type PaymentAudit struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	BookingID       *uuid.UUID `json:"booking_id,omitempty" db:"booking_id"`
	PaymentIntentID *string    `json:"payment_intent_id,omitempty" db:"payment_intent_id"`

	EventType   PaymentEventType   `json:"event_type" db:"event_type"`
	EventSource PaymentEventSource `json:"event_source" db:"event_source"`

	// Amount verification
	ExpectedAmount *float64 `json:"expected_amount,omitempty" db:"expected_amount"`
	ReceivedAmount *float64 `json:"received_amount,omitempty" db:"received_amount"`
	Currency       *string  `json:"currency,omitempty" db:"currency"`
	AmountsMatch   *bool    `json:"amounts_match,omitempty" db:"amounts_match"`

	GatewayStatus        *string `json:"gateway_status,omitempty" db:"gateway_status"`
	GatewayTransactionID *string `json:"gateway_transaction_id,omitempty" db:"gateway_transaction_id"`

	// Raw payloads for reconciliation/debugging
	Payload JSONB   `json:"payload,omitempty" db:"payload"`
	RawBody *string `json:"raw_body,omitempty" db:"raw_body"`

	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`

	// Client metadata
	IPAddress  *string `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent  *string `json:"user_agent,omitempty" db:"user_agent"`
	DeviceInfo JSONB   `json:"device_info,omitempty" db:"device_info"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewPaymentAudit creates a new audit entry with required fields
func NewPaymentAudit(eventType PaymentEventType, source PaymentEventSource) *PaymentAudit {
	return &PaymentAudit{
		ID:          uuid.New(),
		EventType:   eventType,
		EventSource: source,
		CreatedAt:   time.Now(),
	}
}

// SetBooking sets the booking reference
func (pa *PaymentAudit) SetBooking(bookingID uuid.UUID) *PaymentAudit {
	pa.BookingID = &bookingID
	return pa
}

// SetIntent sets the processor intent id
func (pa *PaymentAudit) SetIntent(intentID string) *PaymentAudit {
	pa.PaymentIntentID = &intentID
	return pa
}

// SetAmounts records expected vs received amounts and returns whether they match
func (pa *PaymentAudit) SetAmounts(expected, received float64, currency string) bool {
	pa.ExpectedAmount = &expected
	pa.ReceivedAmount = &received
	pa.Currency = &currency

	// Tolerance for float comparison of money values
	const tolerance = 0.01
	diff := expected - received
	if diff < 0 {
		diff = -diff
	}
	match := diff < tolerance
	pa.AmountsMatch = &match
	return match
}

// SetGatewayStatus records the processor's reported status
func (pa *PaymentAudit) SetGatewayStatus(status string) *PaymentAudit {
	pa.GatewayStatus = &status
	return pa
}

// SetGatewayTransaction records the processor transaction id
func (pa *PaymentAudit) SetGatewayTransaction(txnID string) *PaymentAudit {
	pa.GatewayTransactionID = &txnID
	return pa
}

// SetError records error information
func (pa *PaymentAudit) SetError(message string) *PaymentAudit {
	pa.ErrorMessage = &message
	return pa
}

// SetRawBody stores the raw payload before parsing
func (pa *PaymentAudit) SetRawBody(body string) *PaymentAudit {
	pa.RawBody = &body
	return pa
}

// SetClient records request metadata for the audit trail
func (pa *PaymentAudit) SetClient(ip, userAgent string, deviceInfo map[string]interface{}) *PaymentAudit {
	if ip != "" {
		pa.IPAddress = &ip
	}
	if userAgent != "" {
		pa.UserAgent = &userAgent
	}
	if deviceInfo != nil {
		pa.DeviceInfo = JSONB(deviceInfo)
	}
	return pa
}
