package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/edupay/payment-core/internal/interfaces"
	"github.com/edupay/payment-core/internal/models"
)

// PaymentRepository persists payments and the idempotency ledger in
// PostgreSQL. The unique index on idempotency_keys.key is the enforcement
// point for at-most-one gateway call per key.
type PaymentRepository struct {
	db *sql.DB
}

var _ interfaces.Repository = (*PaymentRepository)(nil)

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) InitDB() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS payments (
			id VARCHAR(64) PRIMARY KEY,
			gateway_reference VARCHAR(255),
			user_id VARCHAR(255) NOT NULL,
			amount BIGINT NOT NULL,
			currency VARCHAR(10) NOT NULL,
			status VARCHAR(20) NOT NULL,
			payment_method_id VARCHAR(255) NOT NULL,
			course_id VARCHAR(255),
			subscription_tier_id VARCHAR(255),
			metadata JSONB,
			idempotency_key VARCHAR(128),
			error_code VARCHAR(100),
			error_message TEXT,
			refunded_amount BIGINT NOT NULL DEFAULT 0,
			refund_reason TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_gateway_reference
			ON payments(gateway_reference) WHERE gateway_reference IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_payments_user_created
			ON payments(user_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS idempotency_keys (
			key VARCHAR(128) PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			result JSONB NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_idempotency_keys_expires
			ON idempotency_keys(expires_at)`,
	}

	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

func (r *PaymentRepository) CreatePayment(ctx context.Context, p *models.Payment) error {
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("marshal payment metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO payments (
			id, gateway_reference, user_id, amount, currency, status,
			payment_method_id, course_id, subscription_tier_id, metadata,
			idempotency_key, created_at, updated_at
		) VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10, $11, $12, $12)
	`, p.ID, p.GatewayReference, p.UserID, p.Amount, p.Currency, p.Status,
		p.PaymentMethodID, p.CourseID, p.SubscriptionTierID, metadata,
		p.IdempotencyKey, p.CreatedAt)
	return translateErr(err)
}

// UpdatePayment writes the mutable payment fields only while the row still
// holds the expected status. The conditional update is the atomic
// single-row compare-and-swap the state machine relies on.
func (r *PaymentRepository) UpdatePayment(ctx context.Context, p *models.Payment, expect models.PaymentStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET status = $1, error_code = NULLIF($2, ''), error_message = NULLIF($3, ''),
			refunded_amount = $4, refund_reason = NULLIF($5, ''), updated_at = NOW()
		WHERE id = $6 AND status = $7
	`, p.Status, p.ErrorCode, p.ErrorMessage, p.RefundedAmount, p.RefundReason, p.ID, expect)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *PaymentRepository) GetPaymentByID(ctx context.Context, id string) (*models.Payment, error) {
	return r.getPayment(ctx, `WHERE id = $1`, id)
}

func (r *PaymentRepository) GetPaymentByGatewayReference(ctx context.Context, ref string) (*models.Payment, error) {
	return r.getPayment(ctx, `WHERE gateway_reference = $1`, ref)
}

const paymentColumns = `
	id, COALESCE(gateway_reference, ''), user_id, amount, currency, status,
	payment_method_id, COALESCE(course_id, ''), COALESCE(subscription_tier_id, ''),
	metadata, COALESCE(idempotency_key, ''), COALESCE(error_code, ''),
	COALESCE(error_message, ''), refunded_amount, COALESCE(refund_reason, ''),
	created_at, updated_at`

func (r *PaymentRepository) getPayment(ctx context.Context, where string, arg any) (*models.Payment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments `+where, arg)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PaymentRepository) GetPaymentHistory(ctx context.Context, userID string, limit, offset int) ([]*models.Payment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPayment(row scanner) (*models.Payment, error) {
	var p models.Payment
	var metadata []byte
	err := row.Scan(
		&p.ID, &p.GatewayReference, &p.UserID, &p.Amount, &p.Currency, &p.Status,
		&p.PaymentMethodID, &p.CourseID, &p.SubscriptionTierID,
		&metadata, &p.IdempotencyKey, &p.ErrorCode,
		&p.ErrorMessage, &p.RefundedAmount, &p.RefundReason,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal payment metadata: %w", err)
		}
	}
	return &p, nil
}

func (r *PaymentRepository) StoreIdempotencyKey(ctx context.Context, rec *models.IdempotencyRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO idempotency_keys (key, user_id, result, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.Key, rec.UserID, rec.Result, rec.ExpiresAt, rec.CreatedAt)
	return translateErr(err)
}

func (r *PaymentRepository) GetIdempotencyResult(ctx context.Context, key string) (*models.IdempotencyRecord, error) {
	var rec models.IdempotencyRecord
	err := r.db.QueryRowContext(ctx, `
		SELECT key, user_id, result, expires_at, created_at
		FROM idempotency_keys WHERE key = $1
	`, key).Scan(&rec.Key, &rec.UserID, &rec.Result, &rec.ExpiresAt, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *PaymentRepository) DeleteIdempotencyKey(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM idempotency_keys WHERE key = $1`, key)
	return err
}

func (r *PaymentRepository) CleanupExpiredKeys(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM idempotency_keys WHERE expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// translateErr maps postgres unique violations onto the repository
// contract's duplicate-key error.
func translateErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return interfaces.ErrDuplicateKey
	}
	return err
}
