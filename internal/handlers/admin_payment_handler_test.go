package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wanderstay/payments-backend/internal/database"
	"github.com/wanderstay/payments-backend/internal/models"
)

// rawDatabase adapts a *sql.DB to the database.DB interface for tests
type rawDatabase struct {
	db *sql.DB
}

func (m *rawDatabase) Get(dest interface{}, query string, args ...interface{}) error {
	return fmt.Errorf("Get not implemented in mock")
}

func (m *rawDatabase) Select(dest interface{}, query string, args ...interface{}) error {
	return fmt.Errorf("Select not implemented in mock")
}

func (m *rawDatabase) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return m.db.Query(query, args...)
}

func (m *rawDatabase) QueryRow(query string, args ...interface{}) *sql.Row {
	return m.db.QueryRow(query, args...)
}

func (m *rawDatabase) Exec(query string, args ...interface{}) (sql.Result, error) {
	return m.db.Exec(query, args...)
}

func (m *rawDatabase) Close() error { return m.db.Close() }
func (m *rawDatabase) Ping() error  { return m.db.Ping() }

func newTestAuditRepo(t *testing.T) (*database.PaymentAuditRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := newHandlerFixture()
	return database.NewPaymentAuditRepository(&rawDatabase{db: db}, f.logger), mock
}

func TestAdminPaymentHandler_ReviewPayment(t *testing.T) {
	adminID := uuid.New()
	guestID := uuid.New()
	proofURL := "https://cdn.wanderstay.test/proofs/slip.jpg"

	setup := func() (*handlerFixture, *AdminPaymentHandler, *models.Booking) {
		f := newHandlerFixture()
		f.authz.admins[adminID] = true
		booking := f.addBooking(guestID)
		f.bookings.bookings[booking.ID].PaymentProofURL = &proofURL
		auditRepo, _ := newTestAuditRepo(t)
		return f, NewAdminPaymentHandler(f.service, auditRepo, f.logger), booking
	}

	t.Run("Approve", func(t *testing.T) {
		f, handler, booking := setup()

		c, w := authedRequest(t, adminID, []string{"admin"}, http.MethodPost, "/api/v1/admin/payments/review", models.ReviewPaymentRequest{
			BookingID: booking.ID.String(),
			Action:    models.ReviewActionApprove,
		})
		handler.ReviewPayment(c)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, true, resp["success"])

		stored, _ := f.bookings.GetBookingByID(booking.ID)
		assert.Equal(t, models.PaymentStatusSucceeded, stored.PaymentStatus)
		assert.Len(t, f.ledger.records, 1)
	})

	t.Run("Reject", func(t *testing.T) {
		f, handler, booking := setup()
		notes := "amount does not match"

		c, w := authedRequest(t, adminID, []string{"admin"}, http.MethodPost, "/api/v1/admin/payments/review", models.ReviewPaymentRequest{
			BookingID: booking.ID.String(),
			Action:    models.ReviewActionReject,
			Notes:     &notes,
		})
		handler.ReviewPayment(c)

		assert.Equal(t, http.StatusOK, w.Code)
		stored, _ := f.bookings.GetBookingByID(booking.ID)
		assert.Equal(t, models.PaymentStatusFailed, stored.PaymentStatus)
		assert.Equal(t, models.BookingStatusCancelled, stored.Status)
		assert.Empty(t, f.ledger.records)
	})

	t.Run("Non Admin Session Is Forbidden By Service", func(t *testing.T) {
		// Session claims say admin but the database does not; the service-level
		// check wins.
		_, handler, booking := setup()
		impostor := uuid.New()

		c, w := authedRequest(t, impostor, []string{"admin"}, http.MethodPost, "/api/v1/admin/payments/review", models.ReviewPaymentRequest{
			BookingID: booking.ID.String(),
			Action:    models.ReviewActionApprove,
		})
		handler.ReviewPayment(c)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Second Decision Conflicts", func(t *testing.T) {
		f, handler, booking := setup()

		c, w := authedRequest(t, adminID, []string{"admin"}, http.MethodPost, "/api/v1/admin/payments/review", models.ReviewPaymentRequest{
			BookingID: booking.ID.String(),
			Action:    models.ReviewActionApprove,
		})
		handler.ReviewPayment(c)
		require.Equal(t, http.StatusOK, w.Code)

		c, w = authedRequest(t, adminID, []string{"admin"}, http.MethodPost, "/api/v1/admin/payments/review", models.ReviewPaymentRequest{
			BookingID: booking.ID.String(),
			Action:    models.ReviewActionReject,
		})
		handler.ReviewPayment(c)
		assert.Equal(t, http.StatusConflict, w.Code)

		stored, _ := f.bookings.GetBookingByID(booking.ID)
		assert.Equal(t, models.PaymentStatusSucceeded, stored.PaymentStatus)
	})

	t.Run("Invalid Action Fails Binding", func(t *testing.T) {
		_, handler, booking := setup()

		c, w := authedRequest(t, adminID, []string{"admin"}, http.MethodPost, "/api/v1/admin/payments/review", map[string]string{
			"booking_id": booking.ID.String(),
			"action":     "escalate",
		})
		handler.ReviewPayment(c)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAdminPaymentHandler_ListPendingReview(t *testing.T) {
	adminID := uuid.New()
	guestID := uuid.New()
	proofURL := "https://cdn.wanderstay.test/proofs/slip.jpg"

	f := newHandlerFixture()
	f.authz.admins[adminID] = true
	booking := f.addBooking(guestID)
	f.bookings.bookings[booking.ID].PaymentProofURL = &proofURL
	f.addBooking(guestID) // no proof, should not appear
	auditRepo, _ := newTestAuditRepo(t)
	handler := NewAdminPaymentHandler(f.service, auditRepo, f.logger)

	c, w := authedRequest(t, adminID, []string{"admin"}, http.MethodGet, "/api/v1/admin/payments/pending-review?limit=10", nil)
	handler.ListPendingReview(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Bookings []models.Booking `json:"bookings"`
		Count    int              `json:"count"`
		Limit    int              `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Bookings, 1)
	assert.Equal(t, booking.ID, resp.Bookings[0].ID)
	assert.Equal(t, 10, resp.Limit)
}

func TestAdminPaymentHandler_GetPaymentAudit(t *testing.T) {
	adminID := uuid.New()
	bookingID := uuid.New()

	auditColumns := []string{
		"id", "booking_id", "payment_intent_id",
		"event_type", "event_source",
		"expected_amount", "received_amount", "currency", "amounts_match",
		"gateway_status", "gateway_transaction_id",
		"payload", "raw_body", "error_message",
		"ip_address", "user_agent", "device_info",
		"created_at",
	}

	t.Run("Success", func(t *testing.T) {
		f := newHandlerFixture()
		auditRepo, mock := newTestAuditRepo(t)
		handler := NewAdminPaymentHandler(f.service, auditRepo, f.logger)

		intentID := "pi_audit_001"
		rows := sqlmock.NewRows(auditColumns).
			AddRow(
				uuid.New(), bookingID, intentID,
				string(models.PaymentEventSuccess), string(models.PaymentSourceWebhook),
				120.00, 120.00, "usd", true,
				"succeeded", "pm_123",
				[]byte(`{"status":"succeeded"}`), nil, nil,
				"203.0.113.9", "Stripe/1.0", nil,
				time.Now(),
			).
			AddRow(
				uuid.New(), bookingID, intentID,
				string(models.PaymentEventIntentCreated), string(models.PaymentSourceBackend),
				nil, nil, nil, nil,
				nil, nil,
				nil, nil, nil,
				nil, nil, nil,
				time.Now().Add(-time.Minute),
			)
		mock.ExpectQuery(`SELECT (.+) FROM payment_audits`).
			WithArgs(bookingID, 50).
			WillReturnRows(rows)

		c, w := authedRequest(t, adminID, []string{"admin"}, http.MethodGet, "/api/v1/admin/payments/audit/"+bookingID.String(), nil)
		c.Params = gin.Params{{Key: "booking_id", Value: bookingID.String()}}
		handler.GetPaymentAudit(c)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			BookingID string                `json:"booking_id"`
			Events    []models.PaymentAudit `json:"events"`
			Count     int                   `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, bookingID.String(), resp.BookingID)
		assert.Equal(t, 2, resp.Count)
		require.Len(t, resp.Events, 2)
		assert.Equal(t, models.PaymentEventSuccess, resp.Events[0].EventType)
		require.NotNil(t, resp.Events[0].AmountsMatch)
		assert.True(t, *resp.Events[0].AmountsMatch)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Invalid Booking ID", func(t *testing.T) {
		f := newHandlerFixture()
		auditRepo, _ := newTestAuditRepo(t)
		handler := NewAdminPaymentHandler(f.service, auditRepo, f.logger)

		c, w := authedRequest(t, adminID, []string{"admin"}, http.MethodGet, "/api/v1/admin/payments/audit/not-a-uuid", nil)
		c.Params = gin.Params{{Key: "booking_id", Value: "not-a-uuid"}}
		handler.GetPaymentAudit(c)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Database Error", func(t *testing.T) {
		f := newHandlerFixture()
		auditRepo, mock := newTestAuditRepo(t)
		handler := NewAdminPaymentHandler(f.service, auditRepo, f.logger)

		mock.ExpectQuery(`SELECT (.+) FROM payment_audits`).
			WithArgs(bookingID, 50).
			WillReturnError(sql.ErrConnDone)

		c, w := authedRequest(t, adminID, []string{"admin"}, http.MethodGet, "/api/v1/admin/payments/audit/"+bookingID.String(), nil)
		c.Params = gin.Params{{Key: "booking_id", Value: bookingID.String()}}
		handler.GetPaymentAudit(c)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
