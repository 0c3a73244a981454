package models

import "time"

type PaymentStatus string

const (
	StatusPending   PaymentStatus = "PENDING"
	StatusSucceeded PaymentStatus = "SUCCEEDED"
	StatusFailed    PaymentStatus = "FAILED"
	StatusRefunded  PaymentStatus = "REFUNDED"
)

// IsTerminal reports whether no further transitions are allowed from s.
// Webhook redelivery against a terminal payment is a no-op, never an error.
func (s PaymentStatus) IsTerminal() bool {
	return s == StatusFailed || s == StatusRefunded
}

// CanTransitionTo enforces the monotonic lifecycle:
// Pending -> Succeeded|Failed, Succeeded -> Refunded.
func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	switch s {
	case StatusPending:
		return target == StatusSucceeded || target == StatusFailed
	case StatusSucceeded:
		return target == StatusRefunded
	default:
		return false
	}
}

// Payment is the transaction record. Rows are never physically deleted.
type Payment struct {
	ID                 string            `json:"id"`
	GatewayReference   string            `json:"gateway_reference,omitempty"`
	UserID             string            `json:"user_id"`
	Amount             int64             `json:"amount"` // minor currency units
	Currency           string            `json:"currency"`
	Status             PaymentStatus     `json:"status"`
	PaymentMethodID    string            `json:"payment_method_id"`
	CourseID           string            `json:"course_id,omitempty"`
	SubscriptionTierID string            `json:"subscription_tier_id,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	IdempotencyKey     string            `json:"-"`
	ErrorCode          string            `json:"error_code,omitempty"`
	ErrorMessage       string            `json:"error_message,omitempty"`
	RefundedAmount     int64             `json:"refunded_amount,omitempty"`
	RefundReason       string            `json:"refund_reason,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// IdempotencyRecord is a dedup ledger entry. A key maps to exactly one
// stored result; lookups after expiry behave as not-found.
type IdempotencyRecord struct {
	Key       string
	UserID    string
	Result    []byte
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (r *IdempotencyRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

type PaymentRequest struct {
	UserID             string            `json:"userId"`
	Amount             int64             `json:"amount"`
	Currency           string            `json:"currency"`
	PaymentMethodID    string            `json:"paymentMethodId"`
	CourseID           string            `json:"courseId,omitempty"`
	SubscriptionTierID string            `json:"subscriptionTierId,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	// IdempotencyKey ties retries of the same logical request together.
	// When empty a deterministic key is derived from the request fields.
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

type ErrorDetail struct {
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Fields     []string `json:"fields,omitempty"`
	HTTPStatus int      `json:"-"`
}

type PaymentResult struct {
	Success          bool          `json:"success"`
	PaymentID        string        `json:"paymentId,omitempty"`
	GatewayReference string        `json:"gatewayReference,omitempty"`
	Status           PaymentStatus `json:"status,omitempty"`
	ClientSecret     string        `json:"clientSecret,omitempty"`
	Error            *ErrorDetail  `json:"error,omitempty"`
}

type RefundRequest struct {
	PaymentID string `json:"paymentId"`
	// Amount in minor units. Omitted means refund the full original
	// amount; an explicit zero or negative value is rejected.
	Amount *int64 `json:"amount,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type RefundResult struct {
	Success        bool          `json:"success"`
	PaymentID      string        `json:"paymentId,omitempty"`
	RefundedAmount int64         `json:"refundedAmount,omitempty"`
	Status         PaymentStatus `json:"status,omitempty"`
	Error          *ErrorDetail  `json:"error,omitempty"`
}

// WebhookEvent is the gateway's signed notification envelope.
type WebhookEvent struct {
	ID      string           `json:"id"`
	Type    string           `json:"type"`
	Created int64            `json:"created"`
	Data    WebhookEventData `json:"data"`
}

type WebhookEventData struct {
	Object WebhookObject `json:"object"`
}

// WebhookObject carries the fields this service reads off the event payload.
// For payment_intent.* events ID is the intent id; for charge.refunded the
// parent intent arrives in payment_intent.
type WebhookObject struct {
	ID               string        `json:"id"`
	PaymentIntent    string        `json:"payment_intent,omitempty"`
	AmountRefunded   int64         `json:"amount_refunded,omitempty"`
	LastPaymentError *WebhookError `json:"last_payment_error,omitempty"`
}

type WebhookError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PaymentIntent is the gateway's representation of an in-flight charge.
type PaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// Refund is the gateway's representation of a completed refund.
type Refund struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Status string `json:"status"`
}
