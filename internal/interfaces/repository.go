package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/edupay/payment-core/internal/models"
)

// ErrDuplicateKey is returned when an insert hits a uniqueness constraint.
// The idempotency key column's unique index is the enforcement point for
// at-most-one gateway call per key; the losing writer re-reads the winner's
// stored result.
var ErrDuplicateKey = errors.New("duplicate key")

// Repository defines the contract for durable payment and idempotency
// storage. Lookups return (nil, nil) when no row matches.
type Repository interface {
	CreatePayment(ctx context.Context, p *models.Payment) error
	// UpdatePayment persists p only while the row's current status equals
	// expect. Returns false when the precondition fails, which callers
	// treat as a concurrent transition already applied.
	UpdatePayment(ctx context.Context, p *models.Payment, expect models.PaymentStatus) (bool, error)
	GetPaymentByID(ctx context.Context, id string) (*models.Payment, error)
	GetPaymentByGatewayReference(ctx context.Context, ref string) (*models.Payment, error)
	GetPaymentHistory(ctx context.Context, userID string, limit, offset int) ([]*models.Payment, error)

	StoreIdempotencyKey(ctx context.Context, rec *models.IdempotencyRecord) error
	GetIdempotencyResult(ctx context.Context, key string) (*models.IdempotencyRecord, error)
	DeleteIdempotencyKey(ctx context.Context, key string) error
	CleanupExpiredKeys(ctx context.Context, before time.Time) (int64, error)
}
