package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/edupay/payment-core/internal/errs"
	"github.com/edupay/payment-core/internal/events"
	"github.com/edupay/payment-core/internal/interfaces"
	"github.com/edupay/payment-core/internal/metrics"
	"github.com/edupay/payment-core/internal/models"
	"github.com/edupay/payment-core/internal/retry"
)

// DefaultRefundWindow bounds how long after creation a payment stays
// refundable.
const DefaultRefundWindow = 90 * 24 * time.Hour

// RefundService validates refund eligibility and drives refunds against the
// gateway.
type RefundService struct {
	repo      interfaces.Repository
	gateway   interfaces.Gateway
	publisher events.Publisher
	exec      *retry.Executor
	retryCfg  retry.Config
	window    time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewRefundService(
	repo interfaces.Repository,
	gw interfaces.Gateway,
	publisher events.Publisher,
	exec *retry.Executor,
	retryCfg retry.Config,
	window time.Duration,
	logger *zap.Logger,
) *RefundService {
	if window <= 0 {
		window = DefaultRefundWindow
	}
	return &RefundService{
		repo:      repo,
		gateway:   gw,
		publisher: publisher,
		exec:      exec,
		retryCfg:  retryCfg,
		window:    window,
		logger:    logger,
		now:       time.Now,
	}
}

// Eligibility is the outcome of a refund pre-check. Code carries the
// rejection reason when Eligible is false.
type Eligibility struct {
	Eligible bool
	Code     string
	Payment  *models.Payment
}

func (s *RefundService) ValidateEligibility(ctx context.Context, paymentID string) (*Eligibility, error) {
	payment, err := s.repo.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, errs.Internal(fmt.Errorf("lookup payment for refund: %w", err))
	}

	switch {
	case payment == nil:
		return &Eligibility{Code: errs.CodeNotFound}, nil
	case payment.Status == models.StatusRefunded:
		return &Eligibility{Code: errs.CodeAlreadyRefunded, Payment: payment}, nil
	case payment.Status != models.StatusSucceeded:
		return &Eligibility{Code: errs.CodeInvalidStatus, Payment: payment}, nil
	case s.now().Sub(payment.CreatedAt) > s.window:
		return &Eligibility{Code: errs.CodeRefundWindowExpired, Payment: payment}, nil
	default:
		return &Eligibility{Eligible: true, Payment: payment}, nil
	}
}

// ProcessRefund re-validates eligibility, refunds through the gateway, and
// moves the payment to Refunded. Every failure branch comes back as a
// structured result.
func (s *RefundService) ProcessRefund(ctx context.Context, req *models.RefundRequest) (*models.RefundResult, error) {
	elig, err := s.ValidateEligibility(ctx, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if !elig.Eligible {
		metrics.RefundsProcessed.WithLabelValues("rejected").Inc()
		return refundRejected(req.PaymentID, elig.Code), nil
	}
	payment := elig.Payment

	amount := payment.Amount
	if req.Amount != nil {
		amount = *req.Amount
	}
	if amount <= 0 || amount > payment.Amount {
		metrics.RefundsProcessed.WithLabelValues("rejected").Inc()
		return refundRejected(req.PaymentID, errs.CodeInvalidRefundAmount), nil
	}

	res := retry.Execute(s.exec, "gateway.create_refund", s.retryCfg, func() (*models.Refund, error) {
		return s.gateway.CreateRefund(ctx, payment.GatewayReference, amount)
	})
	if res.Err != nil {
		var ge *errs.Error
		if errors.As(res.Err, &ge) {
			metrics.RefundsProcessed.WithLabelValues("gateway_error").Inc()
			s.logger.Warn("gateway rejected refund",
				zap.String("payment_id", payment.ID),
				zap.String("code", ge.Code),
				zap.Int("attempts", res.Attempts),
			)
			return &models.RefundResult{
				Success:   false,
				PaymentID: payment.ID,
				Error: &models.ErrorDetail{
					Code:       ge.Code,
					Message:    ge.Message,
					HTTPStatus: ge.HTTPStatus,
				},
			}, nil
		}
		return nil, errs.Internal(res.Err)
	}

	payment.Status = models.StatusRefunded
	payment.RefundedAmount = amount
	payment.RefundReason = req.Reason
	applied, err := s.repo.UpdatePayment(ctx, payment, models.StatusSucceeded)
	if err != nil {
		return nil, errs.Internal(fmt.Errorf("persist refund: %w", err))
	}
	if !applied {
		// A concurrent refund or a charge.refunded webhook already moved
		// the payment; the money side is settled either way.
		metrics.RefundsProcessed.WithLabelValues("rejected").Inc()
		return refundRejected(req.PaymentID, errs.CodeAlreadyRefunded), nil
	}

	if err := s.publisher.Publish(ctx, events.PaymentEvent{
		Type:           events.TypePaymentRefunded,
		PaymentID:      payment.ID,
		UserID:         payment.UserID,
		Status:         models.StatusRefunded,
		PreviousStatus: models.StatusSucceeded,
		Amount:         payment.Amount,
		Currency:       payment.Currency,
		OccurredAt:     s.now(),
	}); err != nil {
		s.logger.Warn("failed to publish refund event", zap.Error(err))
	}

	metrics.RefundsProcessed.WithLabelValues("succeeded").Inc()
	s.logger.Info("refund processed",
		zap.String("payment_id", payment.ID),
		zap.Int64("refunded_amount", amount),
		zap.String("gateway_refund_id", res.Data.ID),
	)
	return &models.RefundResult{
		Success:        true,
		PaymentID:      payment.ID,
		RefundedAmount: amount,
		Status:         models.StatusRefunded,
	}, nil
}

func refundRejected(paymentID, code string) *models.RefundResult {
	var e *errs.Error
	switch code {
	case errs.CodeNotFound:
		e = errs.NotFound("payment")
	case errs.CodeAlreadyRefunded:
		e = errs.AlreadyRefunded()
	case errs.CodeInvalidStatus:
		e = errs.InvalidStatus("")
		e.Message = "payment is not in a refundable status"
	case errs.CodeRefundWindowExpired:
		e = errs.RefundWindowExpired()
	case errs.CodeInvalidRefundAmount:
		e = errs.InvalidRefundAmount()
	default:
		e = errs.Internal(nil)
	}
	return &models.RefundResult{
		Success:   false,
		PaymentID: paymentID,
		Error: &models.ErrorDetail{
			Code:       e.Code,
			Message:    e.Message,
			HTTPStatus: e.HTTPStatus,
		},
	}
}
