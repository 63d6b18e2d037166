package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/wanderstay/payments-backend/internal/models"
)

// WebhookResult summarizes what a webhook delivery did. Semantic problems
// (unknown event, unknown booking, intent mismatch) are reported here rather
// than as errors so the receiver can still ACK the delivery.
type WebhookResult struct {
	Provider  string `json:"provider"`
	EventType string `json:"event_type"`
	Handled   bool   `json:"handled"`
	Reason    string `json:"reason,omitempty"`
	BookingID string `json:"booking_id,omitempty"`
}

// stripeWebhookEvent is the envelope Stripe posts to webhook endpoints
type stripeWebhookEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID            string            `json:"id"`
			Status        string            `json:"status"`
			Amount        int64             `json:"amount"`
			Currency      string            `json:"currency"`
			PaymentMethod *string           `json:"payment_method"`
			Metadata      map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// paypalWebhookEvent is the envelope PayPal posts to webhook endpoints
type paypalWebhookEvent struct {
	EventType string `json:"event_type"`
	Resource  struct {
		ID            string `json:"id"`
		Status        string `json:"status"`
		PurchaseUnits []struct {
			ReferenceID string `json:"reference_id"`
			Amount      struct {
				CurrencyCode string `json:"currency_code"`
				Value        string `json:"value"`
			} `json:"amount"`
		} `json:"purchase_units"`
	} `json:"resource"`
}

// HandleWebhook processes an asynchronous processor notification. Returns an
// error only on infrastructure failures; everything else resolves to a result
// the receiver can ACK. The raw body is audited before parsing so malformed
// deliveries still leave a trail.
//
// TODO: verify provider signatures (Stripe-Signature / PayPal transmission
// headers) once endpoint secrets are provisioned per environment.
func (s *PaymentService) HandleWebhook(provider string, body []byte, ipAddress, userAgent string) (*WebhookResult, error) {
	audit := models.NewPaymentAudit(models.PaymentEventWebhookReceived, models.PaymentSourceWebhook).
		SetRawBody(string(body)).
		SetClient(ipAddress, userAgent, nil)
	audit.Payload = models.JSONB{"provider": provider}
	s.audit.Record(audit)

	switch provider {
	case string(models.ProviderStripe):
		return s.handleStripeWebhook(body)
	case string(models.ProviderPayPal):
		return s.handlePayPalWebhook(body)
	default:
		s.logger.WithField("provider", provider).Warn("Webhook for unknown provider")
		return &WebhookResult{Provider: provider, Reason: "unknown provider"}, nil
	}
}

func (s *PaymentService) handleStripeWebhook(body []byte) (*WebhookResult, error) {
	var event stripeWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.logger.WithError(err).Warn("Unparseable Stripe webhook payload")
		return &WebhookResult{Provider: string(models.ProviderStripe), Reason: "unparseable payload"}, nil
	}

	result := &WebhookResult{
		Provider:  string(models.ProviderStripe),
		EventType: event.Type,
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.canceled":
	default:
		result.Reason = "event type not handled"
		return result, nil
	}

	intentID := event.Data.Object.ID
	bookingRef := event.Data.Object.Metadata["booking_id"]
	booking, reason, err := s.resolveWebhookBooking(bookingRef, intentID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		result.Reason = reason
		return result, nil
	}
	result.BookingID = booking.ID.String()

	switch event.Type {
	case "payment_intent.succeeded":
		method := string(models.ProviderStripe)
		if event.Data.Object.PaymentMethod != nil && *event.Data.Object.PaymentMethod != "" {
			method = *event.Data.Object.PaymentMethod
		}
		if err := s.settleFromWebhook(booking, intentID, method, toMajorUnits(event.Data.Object.Amount)); err != nil {
			return nil, err
		}
		result.Handled = true

	case "payment_intent.payment_failed", "payment_intent.canceled":
		if _, err := s.bookings.MarkPaymentFailed(booking.ID); err != nil {
			return nil, err
		}
		failed := models.NewPaymentAudit(models.PaymentEventFailed, models.PaymentSourceWebhook).
			SetBooking(booking.ID).
			SetIntent(intentID).
			SetGatewayStatus(event.Data.Object.Status)
		s.audit.Record(failed)
		result.Handled = true
	}

	return result, nil
}

func (s *PaymentService) handlePayPalWebhook(body []byte) (*WebhookResult, error) {
	var event paypalWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.logger.WithError(err).Warn("Unparseable PayPal webhook payload")
		return &WebhookResult{Provider: string(models.ProviderPayPal), Reason: "unparseable payload"}, nil
	}

	result := &WebhookResult{
		Provider:  string(models.ProviderPayPal),
		EventType: event.EventType,
	}

	switch event.EventType {
	case "CHECKOUT.ORDER.APPROVED", "PAYMENT.CAPTURE.COMPLETED":
	default:
		result.Reason = "event type not handled"
		return result, nil
	}

	if len(event.Resource.PurchaseUnits) == 0 {
		result.Reason = "no purchase units in payload"
		return result, nil
	}

	orderID := event.Resource.ID
	bookingRef := event.Resource.PurchaseUnits[0].ReferenceID
	booking, reason, err := s.resolveWebhookBooking(bookingRef, orderID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		result.Reason = reason
		return result, nil
	}
	result.BookingID = booking.ID.String()

	if err := s.settleFromWebhook(booking, orderID, string(models.ProviderPayPal), booking.TotalPrice); err != nil {
		return nil, err
	}
	result.Handled = true
	return result, nil
}

// resolveWebhookBooking looks up the referenced booking and checks the
// processor id against the intent the backend attached. A mismatch means the
// notification is for an intent this backend does not recognize; it is
// audited and dropped, never applied.
func (s *PaymentService) resolveWebhookBooking(bookingRef, processorID string) (*models.Booking, string, error) {
	if bookingRef == "" {
		return nil, "no booking reference in payload", nil
	}
	id, err := uuid.Parse(bookingRef)
	if err != nil {
		return nil, "invalid booking reference", nil
	}

	booking, err := s.bookings.GetBookingByID(id)
	if err != nil {
		return nil, "", err
	}
	if booking == nil {
		s.logger.WithField("booking_id", bookingRef).Warn("Webhook references unknown booking")
		return nil, "booking not found", nil
	}

	if !booking.HasIntent() || *booking.PaymentIntentID != processorID {
		mismatch := models.NewPaymentAudit(models.PaymentEventError, models.PaymentSourceWebhook).
			SetBooking(booking.ID).
			SetIntent(processorID).
			SetError(fmt.Sprintf("webhook intent %s does not match booking intent", processorID))
		s.audit.Record(mismatch)
		s.logger.WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"intent_id":  processorID,
		}).Warn("Webhook intent does not match booking, ignoring")
		return nil, "intent does not match booking", nil
	}

	return booking, "", nil
}

// settleFromWebhook marks the payment succeeded and ledgers it once
func (s *PaymentService) settleFromWebhook(booking *models.Booking, processorID, method string, amount float64) error {
	applied, err := s.bookings.MarkPaymentSucceeded(booking.ID, method, time.Now())
	if err != nil {
		return err
	}
	if !applied {
		// Confirm endpoint or an earlier delivery got here first
		s.logger.WithField("booking_id", booking.ID).
			Info("Webhook arrived after payment already settled")
		return nil
	}

	if err := s.appendLedger(booking.ID, amount, method, &processorID); err != nil {
		return err
	}

	success := models.NewPaymentAudit(models.PaymentEventSuccess, models.PaymentSourceWebhook).
		SetBooking(booking.ID).
		SetIntent(processorID)
	success.SetAmounts(booking.TotalPrice, amount, booking.Currency)
	s.audit.Record(success)
	return nil
}
