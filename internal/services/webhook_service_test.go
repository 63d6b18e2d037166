package services

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wanderstay/payments-backend/internal/models"
)

func stripeSucceededBody(intentID, bookingID string) []byte {
	return []byte(fmt.Sprintf(
		`{"type":"payment_intent.succeeded","data":{"object":{"id":%q,"status":"succeeded","amount":12000,"currency":"usd","payment_method":"pm_card_visa","metadata":{"booking_id":%q}}}}`,
		intentID, bookingID,
	))
}

func TestHandleWebhook_Stripe(t *testing.T) {
	guestID := uuid.New()

	setup := func(t *testing.T) (*paymentFixture, *models.Booking, string) {
		f := newPaymentFixture()
		booking := f.addBooking(guestID, 120.00, "usd")
		created, err := f.service.CreateIntent(guestID, &models.CreateIntentRequest{
			BookingID: booking.ID.String(),
			Amount:    120.00,
		})
		require.NoError(t, err)
		return f, booking, created.PaymentIntentID
	}

	t.Run("Succeeded Event Settles Booking", func(t *testing.T) {
		f, booking, intentID := setup(t)

		result, err := f.service.HandleWebhook("stripe", stripeSucceededBody(intentID, booking.ID.String()), "203.0.113.7", "Stripe/1.0")
		require.NoError(t, err)
		assert.True(t, result.Handled)
		assert.Equal(t, "payment_intent.succeeded", result.EventType)

		stored, _ := f.bookings.GetBookingByID(booking.ID)
		assert.Equal(t, models.PaymentStatusSucceeded, stored.PaymentStatus)
		assert.Equal(t, models.BookingStatusConfirmed, stored.Status)

		record := f.ledger.records[booking.ID]
		require.NotNil(t, record)
		assert.Equal(t, 120.00, record.Amount)
		assert.Equal(t, "pm_card_visa", record.PaymentMethod)
	})

	t.Run("Duplicate Delivery Settles Once", func(t *testing.T) {
		f, booking, intentID := setup(t)
		body := stripeSucceededBody(intentID, booking.ID.String())

		_, err := f.service.HandleWebhook("stripe", body, "203.0.113.7", "Stripe/1.0")
		require.NoError(t, err)
		_, err = f.service.HandleWebhook("stripe", body, "203.0.113.7", "Stripe/1.0")
		require.NoError(t, err)

		assert.Len(t, f.ledger.records, 1)
	})

	t.Run("Intent Mismatch Is Ignored", func(t *testing.T) {
		f, booking, _ := setup(t)

		result, err := f.service.HandleWebhook("stripe", stripeSucceededBody("pi_not_ours", booking.ID.String()), "203.0.113.7", "Stripe/1.0")
		require.NoError(t, err)
		assert.False(t, result.Handled)
		assert.Equal(t, "intent does not match booking", result.Reason)

		// Booking state untouched
		stored, _ := f.bookings.GetBookingByID(booking.ID)
		assert.Equal(t, models.PaymentStatusProcessing, stored.PaymentStatus)
		assert.Empty(t, f.ledger.records)
	})

	t.Run("Unknown Booking Is Ignored", func(t *testing.T) {
		f, _, intentID := setup(t)

		result, err := f.service.HandleWebhook("stripe", stripeSucceededBody(intentID, uuid.New().String()), "203.0.113.7", "Stripe/1.0")
		require.NoError(t, err)
		assert.False(t, result.Handled)
		assert.Equal(t, "booking not found", result.Reason)
	})

	t.Run("Failed Event Marks Payment Failed", func(t *testing.T) {
		f, booking, intentID := setup(t)
		body := []byte(fmt.Sprintf(
			`{"type":"payment_intent.payment_failed","data":{"object":{"id":%q,"status":"requires_payment_method","metadata":{"booking_id":%q}}}}`,
			intentID, booking.ID.String(),
		))

		result, err := f.service.HandleWebhook("stripe", body, "203.0.113.7", "Stripe/1.0")
		require.NoError(t, err)
		assert.True(t, result.Handled)

		stored, _ := f.bookings.GetBookingByID(booking.ID)
		assert.Equal(t, models.PaymentStatusFailed, stored.PaymentStatus)
		assert.Empty(t, f.ledger.records)
	})

	t.Run("Unhandled Event Type", func(t *testing.T) {
		f, _, _ := setup(t)

		result, err := f.service.HandleWebhook("stripe", []byte(`{"type":"charge.refunded","data":{"object":{}}}`), "203.0.113.7", "Stripe/1.0")
		require.NoError(t, err)
		assert.False(t, result.Handled)
		assert.Equal(t, "event type not handled", result.Reason)
	})

	t.Run("Malformed Payload", func(t *testing.T) {
		f, _, _ := setup(t)

		result, err := f.service.HandleWebhook("stripe", []byte(`{not json`), "203.0.113.7", "Stripe/1.0")
		require.NoError(t, err)
		assert.False(t, result.Handled)
		assert.Equal(t, "unparseable payload", result.Reason)
	})
}

func TestHandleWebhook_PayPal(t *testing.T) {
	guestID := uuid.New()

	t.Run("Capture Completed Settles Booking", func(t *testing.T) {
		f := newPaymentFixture()
		booking := f.addBooking(guestID, 95.50, "usd")
		orderID := "5O190127TN364715T"
		require.NoError(t, f.bookings.AttachPaymentIntent(booking.ID, orderID, models.ProviderPayPal))

		body := []byte(fmt.Sprintf(
			`{"event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":%q,"status":"COMPLETED","purchase_units":[{"reference_id":%q,"amount":{"currency_code":"USD","value":"95.50"}}]}}`,
			orderID, booking.ID.String(),
		))

		result, err := f.service.HandleWebhook("paypal", body, "203.0.113.7", "PayPal/AUHD-214.0-58057376")
		require.NoError(t, err)
		assert.True(t, result.Handled)

		stored, _ := f.bookings.GetBookingByID(booking.ID)
		assert.Equal(t, models.PaymentStatusSucceeded, stored.PaymentStatus)

		record := f.ledger.records[booking.ID]
		require.NotNil(t, record)
		assert.Equal(t, 95.50, record.Amount)
		assert.Equal(t, "paypal", record.PaymentMethod)
	})

	t.Run("Missing Purchase Units", func(t *testing.T) {
		f := newPaymentFixture()

		result, err := f.service.HandleWebhook("paypal", []byte(`{"event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"X"}}`), "203.0.113.7", "PayPal/AUHD")
		require.NoError(t, err)
		assert.False(t, result.Handled)
		assert.Equal(t, "no purchase units in payload", result.Reason)
	})
}

func TestHandleWebhook_UnknownProvider(t *testing.T) {
	f := newPaymentFixture()

	result, err := f.service.HandleWebhook("square", []byte(`{}`), "203.0.113.7", "curl/8.0")
	require.NoError(t, err)
	assert.False(t, result.Handled)
	assert.Equal(t, "unknown provider", result.Reason)
}

func TestHandleWebhook_AuditsRawBody(t *testing.T) {
	f := newPaymentFixture()

	body := []byte(`{"type":"charge.refunded"}`)
	_, err := f.service.HandleWebhook("stripe", body, "203.0.113.7", "Stripe/1.0")
	require.NoError(t, err)

	require.NotEmpty(t, f.audit.events)
	received := f.audit.events[0]
	assert.Equal(t, models.PaymentEventWebhookReceived, received.EventType)
	require.NotNil(t, received.RawBody)
	assert.Equal(t, string(body), *received.RawBody)
	require.NotNil(t, received.IPAddress)
	assert.Equal(t, "203.0.113.7", *received.IPAddress)
}
