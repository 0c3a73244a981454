package interfaces

import (
	"context"

	"github.com/edupay/payment-core/internal/models"
)

type CreateIntentRequest struct {
	Amount          int64
	Currency        string
	PaymentMethodID string
	Metadata        map[string]string
	// IdempotencyKey is forwarded to the gateway so a duplicate create is
	// deduplicated on its side as well.
	IdempotencyKey string
}

// Gateway defines the contract for the external payment provider.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, req CreateIntentRequest) (*models.PaymentIntent, error)
	RetrievePaymentIntent(ctx context.Context, id string) (*models.PaymentIntent, error)
	// CreateRefund refunds amount minor units against the referenced
	// intent; amount zero refunds the full charge.
	CreateRefund(ctx context.Context, gatewayRef string, amount int64) (*models.Refund, error)
	// VerifyWebhookSignature authenticates a raw webhook body against its
	// signature header. Any failure must be treated as fail-closed.
	VerifyWebhookSignature(body []byte, signature, secret string) error
}
