// Package idempotency implements the dedup ledger that guarantees a logical
// payment request is applied at most once.
package idempotency

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/edupay/payment-core/internal/interfaces"
	"github.com/edupay/payment-core/internal/models"
)

// DefaultTTL is how long a stored result answers duplicate requests.
const DefaultTTL = 24 * time.Hour

type Store struct {
	repo   interfaces.Repository
	cache  Cache
	secret []byte
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func NewStore(repo interfaces.Repository, cache Cache, secret string, logger *zap.Logger) *Store {
	return &Store{
		repo:   repo,
		cache:  cache,
		secret: []byte(secret),
		ttl:    DefaultTTL,
		logger: logger,
		now:    time.Now,
	}
}

// GenerateKey derives a fixed-length opaque token from the request identity.
// The same (userID, amount, salt) always yields the same key, so a client
// retry of the same logical request lands on the dedup path.
func (s *Store) GenerateKey(userID string, amount int64, salt string) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s|%d|%s", userID, amount, salt)
	return hex.EncodeToString(mac.Sum(nil))
}

// StoreResult writes the serialized result durably and then to the cache.
// The durable write carries the uniqueness constraint: a duplicate insert
// surfaces interfaces.ErrDuplicateKey to the caller.
func (s *Store) StoreResult(ctx context.Context, key, userID string, result any) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal idempotency result: %w", err)
	}

	rec := &models.IdempotencyRecord{
		Key:       key,
		UserID:    userID,
		Result:    payload,
		ExpiresAt: s.now().Add(s.ttl),
		CreatedAt: s.now(),
	}
	if err := s.repo.StoreIdempotencyKey(ctx, rec); err != nil {
		return err
	}

	if err := s.cache.Set(ctx, key, payload, s.ttl); err != nil {
		s.logger.Warn("failed to cache idempotency result", zap.Error(err))
	}
	return nil
}

// GetResult returns the stored result for key, or ok=false when no live
// record exists. Durable hits repopulate the cache with the remaining TTL;
// expired durable records are purged and reported as not found.
func (s *Store) GetResult(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.cache.Get(ctx, key)
	if err == nil {
		return b, true, nil
	}
	if err != ErrCacheMiss {
		s.logger.Warn("idempotency cache read failed, falling back to store", zap.Error(err))
	}

	rec, err := s.repo.GetIdempotencyResult(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("read idempotency record: %w", err)
	}
	if rec == nil {
		return nil, false, nil
	}

	if rec.Expired(s.now()) {
		if err := s.repo.DeleteIdempotencyKey(ctx, key); err != nil {
			s.logger.Warn("failed to purge expired idempotency record",
				zap.String("key", key), zap.Error(err))
		}
		return nil, false, nil
	}

	if err := s.cache.Set(ctx, key, rec.Result, rec.ExpiresAt.Sub(s.now())); err != nil {
		s.logger.Warn("failed to repopulate idempotency cache", zap.Error(err))
	}
	return rec.Result, true, nil
}

// CleanupExpired bulk-deletes every record past its expiry and returns the
// count removed. Scheduled by the caller.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	return s.repo.CleanupExpiredKeys(ctx, s.now())
}
