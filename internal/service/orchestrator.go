package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edupay/payment-core/internal/errs"
	"github.com/edupay/payment-core/internal/events"
	"github.com/edupay/payment-core/internal/idempotency"
	"github.com/edupay/payment-core/internal/interfaces"
	"github.com/edupay/payment-core/internal/metrics"
	"github.com/edupay/payment-core/internal/models"
	"github.com/edupay/payment-core/internal/retry"
)

const lockTTL = 30 * time.Second

// PaymentService drives payment-intent creation against the gateway with
// at-most-once semantics per idempotency key.
type PaymentService struct {
	repo      interfaces.Repository
	gateway   interfaces.Gateway
	idem      *idempotency.Store
	locker    idempotency.Locker
	publisher events.Publisher
	exec      *retry.Executor
	retryCfg  retry.Config
	maxAmount int64
	logger    *zap.Logger
	now       func() time.Time
}

func NewPaymentService(
	repo interfaces.Repository,
	gw interfaces.Gateway,
	idem *idempotency.Store,
	locker idempotency.Locker,
	publisher events.Publisher,
	exec *retry.Executor,
	retryCfg retry.Config,
	maxAmount int64,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		repo:      repo,
		gateway:   gw,
		idem:      idem,
		locker:    locker,
		publisher: publisher,
		exec:      exec,
		retryCfg:  retryCfg,
		maxAmount: maxAmount,
		logger:    logger,
		now:       time.Now,
	}
}

// ProcessPayment validates the request, answers duplicates from the
// idempotency ledger, and otherwise creates a gateway intent and persists a
// Pending payment. Domain failures come back inside the result; only
// infrastructure failures are returned as errors.
func (s *PaymentService) ProcessPayment(ctx context.Context, req *models.PaymentRequest) (*models.PaymentResult, error) {
	if violations := validatePaymentRequest(req, s.maxAmount); len(violations) > 0 {
		e := errs.Validation(violations...)
		return &models.PaymentResult{
			Success: false,
			Error: &models.ErrorDetail{
				Code:       e.Code,
				Message:    e.Message,
				Fields:     violations,
				HTTPStatus: e.HTTPStatus,
			},
		}, nil
	}

	key := req.IdempotencyKey
	if key == "" {
		key = s.idem.GenerateKey(req.UserID, req.Amount, requestFingerprint(req))
	}

	locked, err := s.locker.Acquire(ctx, key, lockTTL)
	if err != nil {
		// Lock is a fast-path guard only; the unique constraint still
		// protects the gateway call.
		s.logger.Warn("idempotency lock unavailable", zap.Error(err))
		locked = true
	} else if !locked {
		e := errs.RequestInProgress()
		return &models.PaymentResult{
			Success: false,
			Error: &models.ErrorDetail{
				Code:       e.Code,
				Message:    e.Message,
				HTTPStatus: e.HTTPStatus,
			},
		}, nil
	}
	if locked {
		defer func() {
			if err := s.locker.Release(ctx, key); err != nil {
				s.logger.Warn("failed to release idempotency lock", zap.Error(err))
			}
		}()
	}

	if cached, ok, err := s.idem.GetResult(ctx, key); err != nil {
		return nil, errs.Internal(err)
	} else if ok {
		metrics.IdempotencyHits.Inc()
		s.logger.Info("duplicate payment request answered from ledger",
			zap.String("user_id", req.UserID),
		)
		return decodeResult(cached)
	}

	res := retry.Execute(s.exec, "gateway.create_payment_intent", s.retryCfg, func() (*models.PaymentIntent, error) {
		return s.gateway.CreatePaymentIntent(ctx, interfaces.CreateIntentRequest{
			Amount:          req.Amount,
			Currency:        req.Currency,
			PaymentMethodID: req.PaymentMethodID,
			Metadata:        req.Metadata,
			IdempotencyKey:  key,
		})
	})
	if res.Err != nil {
		var ge *errs.Error
		if errors.As(res.Err, &ge) {
			metrics.PaymentsProcessed.WithLabelValues("gateway_error").Inc()
			s.logger.Warn("gateway rejected payment intent",
				zap.String("user_id", req.UserID),
				zap.String("code", ge.Code),
				zap.Int("attempts", res.Attempts),
			)
			return &models.PaymentResult{
				Success: false,
				Error: &models.ErrorDetail{
					Code:       ge.Code,
					Message:    ge.Message,
					HTTPStatus: ge.HTTPStatus,
				},
			}, nil
		}
		return nil, errs.Internal(res.Err)
	}
	intent := res.Data

	payment := &models.Payment{
		ID:                 uuid.NewString(),
		GatewayReference:   intent.ID,
		UserID:             req.UserID,
		Amount:             req.Amount,
		Currency:           req.Currency,
		Status:             models.StatusPending,
		PaymentMethodID:    req.PaymentMethodID,
		CourseID:           req.CourseID,
		SubscriptionTierID: req.SubscriptionTierID,
		Metadata:           req.Metadata,
		IdempotencyKey:     key,
		CreatedAt:          s.now(),
		UpdatedAt:          s.now(),
	}
	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		return nil, errs.Internal(fmt.Errorf("persist payment: %w", err))
	}

	result := &models.PaymentResult{
		Success:          true,
		PaymentID:        payment.ID,
		GatewayReference: intent.ID,
		Status:           models.StatusPending,
		ClientSecret:     intent.ClientSecret,
	}

	if err := s.idem.StoreResult(ctx, key, req.UserID, result); err != nil {
		if errors.Is(err, interfaces.ErrDuplicateKey) {
			// A concurrent request with the same key won the insert;
			// return its stored result verbatim.
			cached, ok, readErr := s.idem.GetResult(ctx, key)
			if readErr == nil && ok {
				s.logger.Warn("lost idempotency insert race, returning winner's result",
					zap.String("user_id", req.UserID),
				)
				return decodeResult(cached)
			}
		}
		return nil, errs.Internal(fmt.Errorf("record idempotency result: %w", err))
	}

	if err := s.publisher.Publish(ctx, events.PaymentEvent{
		Type:       events.TypePaymentCreated,
		PaymentID:  payment.ID,
		UserID:     payment.UserID,
		Status:     payment.Status,
		Amount:     payment.Amount,
		Currency:   payment.Currency,
		OccurredAt: s.now(),
	}); err != nil {
		s.logger.Warn("failed to publish payment created event", zap.Error(err))
	}

	metrics.PaymentsProcessed.WithLabelValues("accepted").Inc()
	s.logger.Info("payment intent created",
		zap.String("payment_id", payment.ID),
		zap.String("gateway_reference", intent.ID),
		zap.Int64("amount", payment.Amount),
		zap.String("currency", payment.Currency),
	)
	return result, nil
}

// GetPaymentStatus returns the current status, or nil when the payment does
// not exist. Missing ids are not an error.
func (s *PaymentService) GetPaymentStatus(ctx context.Context, paymentID string) (*models.PaymentStatus, error) {
	p, err := s.repo.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, errs.Internal(err)
	}
	if p == nil {
		return nil, nil
	}
	status := p.Status
	return &status, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	p, err := s.repo.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, errs.Internal(err)
	}
	return p, nil
}

func (s *PaymentService) GetPaymentHistory(ctx context.Context, userID string, limit, offset int) ([]*models.Payment, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	payments, err := s.repo.GetPaymentHistory(ctx, userID, limit, offset)
	if err != nil {
		return nil, errs.Internal(err)
	}
	return payments, nil
}

func validatePaymentRequest(req *models.PaymentRequest, maxAmount int64) []string {
	var violations []string
	if strings.TrimSpace(req.UserID) == "" {
		violations = append(violations, "userId")
	}
	if req.Amount <= 0 || req.Amount > maxAmount {
		violations = append(violations, "amount")
	}
	if strings.TrimSpace(req.Currency) == "" {
		violations = append(violations, "currency")
	}
	if strings.TrimSpace(req.PaymentMethodID) == "" {
		violations = append(violations, "paymentMethodId")
	}
	return violations
}

// requestFingerprint is the stable salt for derived idempotency keys: the
// same logical request always fingerprints the same, a different purchase
// target does not.
func requestFingerprint(req *models.PaymentRequest) string {
	return strings.Join([]string{
		req.Currency,
		req.PaymentMethodID,
		req.CourseID,
		req.SubscriptionTierID,
	}, "|")
}

func decodeResult(raw []byte) (*models.PaymentResult, error) {
	var result models.PaymentResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errs.Internal(fmt.Errorf("decode stored result: %w", err))
	}
	return &result, nil
}
