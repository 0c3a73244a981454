// Package events defines the typed state-change events emitted when a
// payment moves through its lifecycle, and the Kafka publisher that carries
// them to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/edupay/payment-core/internal/models"
)

type Type string

const (
	TypePaymentCreated   Type = "payment.created"
	TypePaymentSucceeded Type = "payment.succeeded"
	TypePaymentFailed    Type = "payment.failed"
	TypePaymentRefunded  Type = "payment.refunded"
)

type PaymentEvent struct {
	Type           Type                 `json:"type"`
	PaymentID      string               `json:"payment_id"`
	UserID         string               `json:"user_id"`
	Status         models.PaymentStatus `json:"status"`
	PreviousStatus models.PaymentStatus `json:"previous_status,omitempty"`
	Amount         int64                `json:"amount"`
	Currency       string               `json:"currency"`
	OccurredAt     time.Time            `json:"occurred_at"`
}

// Publisher is the explicit event bus downstream collaborators subscribe to.
type Publisher interface {
	Publish(ctx context.Context, event PaymentEvent) error
}

type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewKafkaPublisher(writer *kafka.Writer, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, logger: logger}
}

// Publish writes the event keyed by payment id so per-payment ordering is
// preserved within a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, event PaymentEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.PaymentID),
		Value: value,
	}); err != nil {
		p.logger.Error("failed to publish payment event",
			zap.String("type", string(event.Type)),
			zap.String("payment_id", event.PaymentID),
			zap.Error(err),
		)
		return err
	}
	return nil
}
