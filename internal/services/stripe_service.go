package services

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wanderstay/payments-backend/internal/config"
)

// StripeService talks to the Stripe payment intents API. Stripe expects
// form-encoded requests with bearer auth and amounts in minor units.
type StripeService struct {
	config *config.PaymentConfig
	logger *logrus.Logger
	client *http.Client
}

// StripeIntent is the subset of a Stripe payment intent this backend uses
type StripeIntent struct {
	ID            string            `json:"id"`
	ClientSecret  string            `json:"client_secret"`
	Status        string            `json:"status"`
	Amount        int64             `json:"amount"` // minor units
	Currency      string            `json:"currency"`
	PaymentMethod *string           `json:"payment_method"`
	Metadata      map[string]string `json:"metadata"`
}

// Stripe intent statuses this backend reacts to
const (
	StripeStatusSucceeded             = "succeeded"
	StripeStatusProcessing            = "processing"
	StripeStatusRequiresPaymentMethod = "requires_payment_method"
	StripeStatusCanceled              = "canceled"
)

// stripeErrorBody is the error envelope Stripe returns on non-2xx responses
type stripeErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateIntentParams are the inputs for creating a processor-side intent
type CreateIntentParams struct {
	AmountMinor int64
	Currency    string
	BookingID   string
	UserID      string
	Metadata    map[string]string
}

// NewStripeService creates a new Stripe gateway client
func NewStripeService(cfg *config.PaymentConfig, logger *logrus.Logger) *StripeService {
	return &StripeService{
		config: cfg,
		logger: logger,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Configured reports whether the secret API key is present
func (s *StripeService) Configured() bool {
	return s.config.Configured()
}

// CreatePaymentIntent creates a payment intent on the processor side, tagged
// with booking and user ids for later reconciliation.
func (s *StripeService) CreatePaymentIntent(params *CreateIntentParams) (*StripeIntent, error) {
	if !s.Configured() {
		return nil, ErrGatewayNotConfigured
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(params.AmountMinor, 10))
	form.Set("currency", strings.ToLower(params.Currency))
	form.Set("automatic_payment_methods[enabled]", "true")
	form.Set("metadata[booking_id]", params.BookingID)
	form.Set("metadata[user_id]", params.UserID)
	for k, v := range params.Metadata {
		// Reserved reconciliation keys win over caller-supplied metadata
		if k == "booking_id" || k == "user_id" {
			continue
		}
		form.Set("metadata["+k+"]", v)
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": params.BookingID,
		"amount":     params.AmountMinor,
		"currency":   params.Currency,
	}).Info("Creating Stripe payment intent")

	return s.doIntentRequest(http.MethodPost, "/v1/payment_intents", form)
}

// GetPaymentIntent retrieves the current processor-side state of an intent
func (s *StripeService) GetPaymentIntent(intentID string) (*StripeIntent, error) {
	if !s.Configured() {
		return nil, ErrGatewayNotConfigured
	}
	return s.doIntentRequest(http.MethodGet, "/v1/payment_intents/"+url.PathEscape(intentID), nil)
}

// doIntentRequest performs an authenticated call against the intents API
func (s *StripeService) doIntentRequest(method, path string, form url.Values) (*StripeIntent, error) {
	var bodyReader io.Reader
	if form != nil {
		bodyReader = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequest(method, s.config.StripeBaseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.config.StripeSecretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.WithError(err).Error("Failed to call Stripe API")
		return nil, fmt.Errorf("failed to call payment gateway: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var stripeErr stripeErrorBody
		message := string(body)
		if err := json.Unmarshal(body, &stripeErr); err == nil && stripeErr.Error.Message != "" {
			message = stripeErr.Error.Message
		}
		s.logger.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
			"message":     message,
		}).Warn("Stripe API rejected request")
		return nil, &ProcessorError{StatusCode: resp.StatusCode, Message: message}
	}

	var intent StripeIntent
	if err := json.Unmarshal(body, &intent); err != nil {
		s.logger.WithFields(logrus.Fields{
			"body":  string(body),
			"error": err.Error(),
		}).Error("Failed to parse Stripe response")
		return nil, fmt.Errorf("failed to parse gateway response: %w", err)
	}

	return &intent, nil
}
