package services

import (
	"github.com/sirupsen/logrus"
	"github.com/wanderstay/payments-backend/internal/database"
	"github.com/wanderstay/payments-backend/internal/models"
)

// AuditService records payment events for reconciliation. Audit failures are
// logged but never fail the payment operation that triggered them.
type AuditService struct {
	repo    *database.PaymentAuditRepository
	logger  *logrus.Logger
	enabled bool
}

// NewAuditService creates a new audit service
func NewAuditService(repo *database.PaymentAuditRepository, logger *logrus.Logger, enabled bool) *AuditService {
	return &AuditService{
		repo:    repo,
		logger:  logger,
		enabled: enabled,
	}
}

// Record persists an audit entry, swallowing (but logging) storage errors
func (s *AuditService) Record(audit *models.PaymentAudit) {
	if !s.enabled || audit == nil {
		return
	}
	if err := s.repo.Log(audit); err != nil {
		s.logger.WithError(err).WithField("event_type", audit.EventType).
			Warn("Dropping payment audit entry")
	}
}
