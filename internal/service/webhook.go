package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/edupay/payment-core/internal/errs"
	"github.com/edupay/payment-core/internal/events"
	"github.com/edupay/payment-core/internal/interfaces"
	"github.com/edupay/payment-core/internal/metrics"
	"github.com/edupay/payment-core/internal/models"
)

// Gateway event types this service reconciles. Anything else is
// acknowledged and ignored.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
	EventChargeRefunded   = "charge.refunded"
)

// WebhookService verifies signed gateway events and applies their state
// transitions idempotently. Events may arrive out of order or more than
// once; every branch reads current status first and re-application is a
// no-op.
type WebhookService struct {
	repo      interfaces.Repository
	gateway   interfaces.Gateway
	publisher events.Publisher
	secret    string
	logger    *zap.Logger
	now       func() time.Time
}

func NewWebhookService(
	repo interfaces.Repository,
	gw interfaces.Gateway,
	publisher events.Publisher,
	secret string,
	logger *zap.Logger,
) *WebhookService {
	return &WebhookService{
		repo:      repo,
		gateway:   gw,
		publisher: publisher,
		secret:    secret,
		logger:    logger,
		now:       time.Now,
	}
}

// VerifyAndParse authenticates the raw body and decodes the event envelope.
// Verification failures fail closed: the event is never processed.
func (s *WebhookService) VerifyAndParse(body []byte, signature string) (*models.WebhookEvent, error) {
	if err := s.gateway.VerifyWebhookSignature(body, signature, s.secret); err != nil {
		s.logger.Warn("webhook signature verification failed", zap.Error(err))
		return nil, errs.InvalidSignature()
	}

	var event models.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, errs.Validation("body")
	}
	return &event, nil
}

// ProcessEvent dispatches on the event type. Unknown types and unknown
// gateway references are logged and swallowed so the gateway stops
// redelivering; repository failures propagate so it retries.
func (s *WebhookService) ProcessEvent(ctx context.Context, event *models.WebhookEvent) error {
	switch event.Type {
	case EventPaymentSucceeded:
		return s.applySucceeded(ctx, event)
	case EventPaymentFailed:
		return s.applyFailed(ctx, event)
	case EventChargeRefunded:
		return s.applyRefunded(ctx, event)
	default:
		metrics.WebhookEvents.WithLabelValues(event.Type, "ignored").Inc()
		s.logger.Info("ignoring unrecognized webhook event",
			zap.String("event_id", event.ID),
			zap.String("type", event.Type),
		)
		return nil
	}
}

func (s *WebhookService) applySucceeded(ctx context.Context, event *models.WebhookEvent) error {
	ref := event.Data.Object.ID
	payment, err := s.lookup(ctx, event, ref)
	if err != nil || payment == nil {
		return err
	}

	if payment.Status != models.StatusPending {
		s.noop(event, payment)
		return nil
	}

	payment.Status = models.StatusSucceeded
	return s.transition(ctx, event, payment, models.StatusPending, events.TypePaymentSucceeded)
}

func (s *WebhookService) applyFailed(ctx context.Context, event *models.WebhookEvent) error {
	ref := event.Data.Object.ID
	payment, err := s.lookup(ctx, event, ref)
	if err != nil || payment == nil {
		return err
	}

	if payment.Status != models.StatusPending {
		s.noop(event, payment)
		return nil
	}

	payment.Status = models.StatusFailed
	if gwErr := event.Data.Object.LastPaymentError; gwErr != nil {
		payment.ErrorCode = gwErr.Code
		payment.ErrorMessage = gwErr.Message
	}
	return s.transition(ctx, event, payment, models.StatusPending, events.TypePaymentFailed)
}

func (s *WebhookService) applyRefunded(ctx context.Context, event *models.WebhookEvent) error {
	// A refunded charge references its parent intent; fall back to the
	// object id for gateways that deliver the intent directly.
	ref := event.Data.Object.PaymentIntent
	if ref == "" {
		ref = event.Data.Object.ID
	}
	payment, err := s.lookup(ctx, event, ref)
	if err != nil || payment == nil {
		return err
	}

	if payment.Status != models.StatusSucceeded {
		s.noop(event, payment)
		return nil
	}

	payment.Status = models.StatusRefunded
	payment.RefundedAmount = event.Data.Object.AmountRefunded
	if payment.RefundedAmount == 0 {
		payment.RefundedAmount = payment.Amount
	}
	return s.transition(ctx, event, payment, models.StatusSucceeded, events.TypePaymentRefunded)
}

// lookup resolves the local payment for a gateway reference. A missing row
// is not an error: events can race ahead of local writes or reference
// transactions this service never created.
func (s *WebhookService) lookup(ctx context.Context, event *models.WebhookEvent, ref string) (*models.Payment, error) {
	payment, err := s.repo.GetPaymentByGatewayReference(ctx, ref)
	if err != nil {
		return nil, errs.Internal(fmt.Errorf("lookup payment for webhook: %w", err))
	}
	if payment == nil {
		metrics.WebhookEvents.WithLabelValues(event.Type, "unknown_reference").Inc()
		s.logger.Info("webhook references unknown payment",
			zap.String("event_id", event.ID),
			zap.String("type", event.Type),
			zap.String("gateway_reference", ref),
		)
		return nil, nil
	}
	return payment, nil
}

func (s *WebhookService) transition(ctx context.Context, event *models.WebhookEvent, payment *models.Payment, expect models.PaymentStatus, eventType events.Type) error {
	applied, err := s.repo.UpdatePayment(ctx, payment, expect)
	if err != nil {
		return errs.Internal(fmt.Errorf("apply webhook transition: %w", err))
	}
	if !applied {
		// Another delivery of the same event got there first.
		s.noop(event, payment)
		return nil
	}

	metrics.WebhookEvents.WithLabelValues(event.Type, "applied").Inc()
	s.logger.Info("webhook transition applied",
		zap.String("event_id", event.ID),
		zap.String("payment_id", payment.ID),
		zap.String("from", string(expect)),
		zap.String("to", string(payment.Status)),
	)

	if err := s.publisher.Publish(ctx, events.PaymentEvent{
		Type:           eventType,
		PaymentID:      payment.ID,
		UserID:         payment.UserID,
		Status:         payment.Status,
		PreviousStatus: expect,
		Amount:         payment.Amount,
		Currency:       payment.Currency,
		OccurredAt:     s.now(),
	}); err != nil {
		s.logger.Warn("failed to publish webhook state change", zap.Error(err))
	}
	return nil
}

func (s *WebhookService) noop(event *models.WebhookEvent, payment *models.Payment) {
	metrics.WebhookEvents.WithLabelValues(event.Type, "noop").Inc()
	s.logger.Info("webhook redelivery is a no-op",
		zap.String("event_id", event.ID),
		zap.String("payment_id", payment.ID),
		zap.String("status", string(payment.Status)),
	)
}
