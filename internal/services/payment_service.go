package services

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/wanderstay/payments-backend/internal/models"
)

// ============================================================================
// PORTS
// ============================================================================
//
// The service depends on narrow interfaces rather than concrete repositories
// so tests can substitute in-memory fakes and so the processor client can be
// swapped per environment.

// BookingStore is the persistence port for booking rows
type BookingStore interface {
	GetBookingByID(bookingID uuid.UUID) (*models.Booking, error)
	AttachPaymentIntent(bookingID uuid.UUID, intentID string, provider models.PaymentProvider) error
	MarkPaymentSucceeded(bookingID uuid.UUID, method string, completedAt time.Time) (bool, error)
	MarkPaymentFailed(bookingID uuid.UUID) (bool, error)
	ApproveManualPayment(bookingID, reviewerID uuid.UUID, method string, notes *string, reviewedAt time.Time) (bool, error)
	RejectManualPayment(bookingID, reviewerID uuid.UUID, notes *string, reviewedAt time.Time) (bool, error)
	ListAwaitingReview(limit, offset int) ([]models.Booking, error)
}

// LedgerStore is the persistence port for the payment ledger
type LedgerStore interface {
	CreateForBooking(payment *models.Payment) (bool, error)
	ExistsForBooking(bookingID uuid.UUID) (bool, error)
}

// ProcessorClient is the outbound port to the external payment processor
type ProcessorClient interface {
	Configured() bool
	CreatePaymentIntent(params *CreateIntentParams) (*StripeIntent, error)
	GetPaymentIntent(intentID string) (*StripeIntent, error)
}

// AuthorizationPort answers role questions for a caller identity
type AuthorizationPort interface {
	HasRole(userID uuid.UUID, role string) (bool, error)
}

// AuditSink receives payment audit events
type AuditSink interface {
	Record(audit *models.PaymentAudit)
}

// ============================================================================
// SERVICE
// ============================================================================

// PaymentService drives the payment-intent / booking-confirmation state
// machine. All paths (checkout confirmation, webhooks, manual review)
// converge on the same booking transitions and the same exactly-once ledger.
type PaymentService struct {
	bookings BookingStore
	ledger   LedgerStore
	gateway  ProcessorClient
	authz    AuthorizationPort
	audit    AuditSink
	logger   *logrus.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	bookings BookingStore,
	ledger LedgerStore,
	gateway ProcessorClient,
	authz AuthorizationPort,
	audit AuditSink,
	logger *logrus.Logger,
) *PaymentService {
	return &PaymentService{
		bookings: bookings,
		ledger:   ledger,
		gateway:  gateway,
		authz:    authz,
		audit:    audit,
		logger:   logger,
	}
}

// toMinorUnits converts a major-unit amount to the processor's minor-unit convention
func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// toMajorUnits converts a processor minor-unit amount back to major units
func toMajorUnits(amount int64) float64 {
	return float64(amount) / 100
}

// loadOwnedBooking fetches a booking and verifies the caller owns it
func (s *PaymentService) loadOwnedBooking(guestID uuid.UUID, bookingID string) (*models.Booking, error) {
	id, err := uuid.Parse(bookingID)
	if err != nil {
		return nil, ErrBookingNotFound
	}

	booking, err := s.bookings.GetBookingByID(id)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	if booking.GuestID != guestID {
		return nil, ErrNotBookingOwner
	}
	return booking, nil
}

// ============================================================================
// PAYMENT INTENT INITIATOR
// ============================================================================

// CreateIntent creates a processor-side payment intent for a booking and
// stamps the booking as processing. Re-initiating while an intent is already
// attached reuses the stored intent instead of minting a second live one.
func (s *PaymentService) CreateIntent(guestID uuid.UUID, req *models.CreateIntentRequest) (*models.CreateIntentResponse, error) {
	booking, err := s.loadOwnedBooking(guestID, req.BookingID)
	if err != nil {
		return nil, err
	}

	if !s.gateway.Configured() {
		return nil, ErrGatewayNotConfigured
	}

	if booking.HasIntent() {
		return s.reuseExistingIntent(booking)
	}

	currency := req.Currency
	if currency == "" {
		currency = booking.Currency
	}

	intent, err := s.gateway.CreatePaymentIntent(&CreateIntentParams{
		AmountMinor: toMinorUnits(req.Amount),
		Currency:    currency,
		BookingID:   booking.ID.String(),
		UserID:      guestID.String(),
		Metadata:    req.Metadata,
	})
	if err != nil {
		audit := models.NewPaymentAudit(models.PaymentEventError, models.PaymentSourceGateway).
			SetBooking(booking.ID).
			SetError(err.Error())
		s.audit.Record(audit)
		return nil, err
	}

	if err := s.bookings.AttachPaymentIntent(booking.ID, intent.ID, models.ProviderStripe); err != nil {
		// Another checkout attempt won the race; the stored intent stays
		// authoritative and this one is abandoned processor-side.
		s.logger.WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"intent_id":  intent.ID,
		}).Warn("Intent already attached to booking, discarding new intent")
		return s.reuseExistingIntent(booking)
	}

	audit := models.NewPaymentAudit(models.PaymentEventIntentCreated, models.PaymentSourceBackend).
		SetBooking(booking.ID).
		SetIntent(intent.ID).
		SetGatewayStatus(intent.Status)
	audit.SetAmounts(booking.TotalPrice, req.Amount, currency)
	s.audit.Record(audit)

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"intent_id":  intent.ID,
		"status":     intent.Status,
	}).Info("Payment intent created")

	return &models.CreateIntentResponse{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		Status:          intent.Status,
	}, nil
}

// reuseExistingIntent returns the client secret of the intent already attached
func (s *PaymentService) reuseExistingIntent(booking *models.Booking) (*models.CreateIntentResponse, error) {
	fresh, err := s.bookings.GetBookingByID(booking.ID)
	if err != nil {
		return nil, err
	}
	if fresh == nil || !fresh.HasIntent() {
		return nil, fmt.Errorf("booking intent disappeared during checkout")
	}

	intent, err := s.gateway.GetPaymentIntent(*fresh.PaymentIntentID)
	if err != nil {
		return nil, err
	}

	audit := models.NewPaymentAudit(models.PaymentEventIntentReused, models.PaymentSourceBackend).
		SetBooking(fresh.ID).
		SetIntent(intent.ID).
		SetGatewayStatus(intent.Status)
	s.audit.Record(audit)

	return &models.CreateIntentResponse{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		Status:          intent.Status,
	}, nil
}

// ============================================================================
// PAYMENT CONFIRMATION HANDLER
// ============================================================================

// ConfirmPayment reads the processor state for an intent and reconciles the
// booking. Idempotent: re-applying the same processor state produces the same
// booking fields and never a second ledger row.
func (s *PaymentService) ConfirmPayment(guestID uuid.UUID, req *models.ConfirmPaymentRequest) (*models.ConfirmPaymentResponse, error) {
	booking, err := s.loadOwnedBooking(guestID, req.BookingID)
	if err != nil {
		return nil, err
	}

	if !booking.HasIntent() || *booking.PaymentIntentID != req.PaymentIntentID {
		return nil, ErrIntentMismatch
	}

	if !s.gateway.Configured() {
		return nil, ErrGatewayNotConfigured
	}

	intent, err := s.gateway.GetPaymentIntent(req.PaymentIntentID)
	if err != nil {
		return nil, err
	}

	audit := models.NewPaymentAudit(models.PaymentEventConfirmRequest, models.PaymentSourceBackend).
		SetBooking(booking.ID).
		SetIntent(intent.ID).
		SetGatewayStatus(intent.Status)
	audit.SetAmounts(booking.TotalPrice, toMajorUnits(intent.Amount), intent.Currency)
	s.audit.Record(audit)

	paymentStatus, bookingStatus, err := s.applyIntentState(booking, intent)
	if err != nil {
		return nil, err
	}

	return &models.ConfirmPaymentResponse{
		Success:       true,
		PaymentStatus: paymentStatus,
		BookingStatus: bookingStatus,
		PaymentIntent: models.ConfirmedIntentBrief{
			ID:       intent.ID,
			Status:   intent.Status,
			Amount:   intent.Amount,
			Currency: intent.Currency,
		},
	}, nil
}

// applyIntentState maps a processor intent status onto booking transitions.
// succeeded -> succeeded/confirmed plus one ledger row; processing -> no
// change; requires_payment_method or canceled -> failed with the booking left
// pending for a retry or a human decision.
func (s *PaymentService) applyIntentState(booking *models.Booking, intent *StripeIntent) (models.PaymentStatus, models.BookingStatus, error) {
	switch intent.Status {
	case StripeStatusSucceeded:
		method := string(models.ProviderStripe)
		if intent.PaymentMethod != nil && *intent.PaymentMethod != "" {
			method = *intent.PaymentMethod
		}

		applied, err := s.bookings.MarkPaymentSucceeded(booking.ID, method, time.Now())
		if err != nil {
			return "", "", err
		}

		if applied {
			if err := s.appendLedger(booking.ID, toMajorUnits(intent.Amount), method, &intent.ID); err != nil {
				return "", "", err
			}
			success := models.NewPaymentAudit(models.PaymentEventSuccess, models.PaymentSourceBackend).
				SetBooking(booking.ID).
				SetIntent(intent.ID).
				SetGatewayStatus(intent.Status)
			s.audit.Record(success)
		}

		bookingStatus := models.BookingStatusConfirmed
		if booking.Status == models.BookingStatusCompleted {
			bookingStatus = models.BookingStatusCompleted
		}
		return models.PaymentStatusSucceeded, bookingStatus, nil

	case StripeStatusProcessing:
		return models.PaymentStatusProcessing, booking.Status, nil

	case StripeStatusRequiresPaymentMethod, StripeStatusCanceled:
		applied, err := s.bookings.MarkPaymentFailed(booking.ID)
		if err != nil {
			return "", "", err
		}
		if !applied {
			// Payment already settled; a stale failure cannot downgrade it
			return models.PaymentStatusSucceeded, models.BookingStatusConfirmed, nil
		}
		failed := models.NewPaymentAudit(models.PaymentEventFailed, models.PaymentSourceBackend).
			SetBooking(booking.ID).
			SetIntent(intent.ID).
			SetGatewayStatus(intent.Status)
		s.audit.Record(failed)
		return models.PaymentStatusFailed, booking.Status, nil

	default:
		// requires_confirmation, requires_action and friends: payment is still
		// in flight from our perspective
		return models.PaymentStatusProcessing, booking.Status, nil
	}
}

// appendLedger inserts the exactly-once ledger record for a successful payment
func (s *PaymentService) appendLedger(bookingID uuid.UUID, amount float64, method string, providerPaymentID *string) error {
	inserted, err := s.ledger.CreateForBooking(&models.Payment{
		BookingID:         bookingID,
		Amount:            amount,
		PaymentMethod:     method,
		ProviderPaymentID: providerPaymentID,
		Status:            models.PaymentRecordCompleted,
	})
	if err != nil {
		return err
	}
	if !inserted {
		s.logger.WithField("booking_id", bookingID).
			Info("Ledger record already exists, skipping duplicate")
	}
	return nil
}

// ============================================================================
// MANUAL PAYMENT REVIEW FLOW
// ============================================================================

// ReviewManualPayment applies an admin decision on an uploaded proof of
// payment. Approve confirms the booking and ledgers booking.total_price; the
// money already moved externally, so the ledger entry is an attestation, not
// a processor confirmation. Reject cancels the booking with no ledger row.
func (s *PaymentService) ReviewManualPayment(adminID uuid.UUID, req *models.ReviewPaymentRequest) (string, error) {
	isAdmin, err := s.authz.HasRole(adminID, models.RoleAdmin)
	if err != nil {
		return "", err
	}
	if !isAdmin {
		return "", ErrForbidden
	}

	id, err := uuid.Parse(req.BookingID)
	if err != nil {
		return "", ErrBookingNotFound
	}
	booking, err := s.bookings.GetBookingByID(id)
	if err != nil {
		return "", err
	}
	if booking == nil {
		return "", ErrBookingNotFound
	}

	if booking.PaymentStatus.IsTerminal() {
		return "", ErrAlreadyReviewed
	}
	if booking.PaymentProofURL == nil {
		return "", ErrNoProofUploaded
	}

	now := time.Now()
	switch req.Action {
	case models.ReviewActionApprove:
		method := string(models.ProviderBankTransfer)
		if booking.PaymentProvider != "" {
			method = string(booking.PaymentProvider)
		}

		applied, err := s.bookings.ApproveManualPayment(booking.ID, adminID, method, req.Notes, now)
		if err != nil {
			return "", err
		}
		if !applied {
			return "", ErrAlreadyReviewed
		}

		if err := s.appendLedger(booking.ID, booking.TotalPrice, method, nil); err != nil {
			return "", err
		}

		audit := models.NewPaymentAudit(models.PaymentEventManualApproved, models.PaymentSourceAdmin).
			SetBooking(booking.ID)
		audit.SetAmounts(booking.TotalPrice, booking.TotalPrice, booking.Currency)
		s.audit.Record(audit)

		s.logger.WithFields(logrus.Fields{
			"booking_id":  booking.ID,
			"reviewed_by": adminID,
		}).Info("Manual payment approved")
		return "Payment approved and booking confirmed", nil

	case models.ReviewActionReject:
		applied, err := s.bookings.RejectManualPayment(booking.ID, adminID, req.Notes, now)
		if err != nil {
			return "", err
		}
		if !applied {
			return "", ErrAlreadyReviewed
		}

		audit := models.NewPaymentAudit(models.PaymentEventManualRejected, models.PaymentSourceAdmin).
			SetBooking(booking.ID)
		s.audit.Record(audit)

		s.logger.WithFields(logrus.Fields{
			"booking_id":  booking.ID,
			"reviewed_by": adminID,
		}).Info("Manual payment rejected")
		return "Payment rejected and booking cancelled", nil

	default:
		return "", fmt.Errorf("invalid review action: %s", req.Action)
	}
}

// ListPaymentsAwaitingReview returns bookings waiting for an admin decision
func (s *PaymentService) ListPaymentsAwaitingReview(adminID uuid.UUID, limit, offset int) ([]models.Booking, error) {
	isAdmin, err := s.authz.HasRole(adminID, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if !isAdmin {
		return nil, ErrForbidden
	}
	return s.bookings.ListAwaitingReview(limit, offset)
}

// ============================================================================
// STATUS POLLING
// ============================================================================

// GetPaymentStatus returns the payment state of a booking for the owning guest
func (s *PaymentService) GetPaymentStatus(guestID uuid.UUID, bookingID string) (*models.BookingPaymentStatusResponse, error) {
	booking, err := s.loadOwnedBooking(guestID, bookingID)
	if err != nil {
		return nil, err
	}

	ledgered, err := s.ledger.ExistsForBooking(booking.ID)
	if err != nil {
		return nil, err
	}

	return &models.BookingPaymentStatusResponse{
		BookingID:       booking.ID,
		Status:          booking.Status,
		PaymentStatus:   booking.PaymentStatus,
		PaymentIntentID: booking.PaymentIntentID,
		Ledgered:        ledgered,
	}, nil
}
