package service_test

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/edupay/payment-core/internal/events"
	"github.com/edupay/payment-core/internal/idempotency"
	"github.com/edupay/payment-core/internal/interfaces"
	"github.com/edupay/payment-core/internal/models"
	"github.com/edupay/payment-core/internal/retry"
)

// fakeRepo is an in-memory Repository with the same compare-and-swap and
// duplicate-key semantics as the postgres implementation.
type fakeRepo struct {
	mu       sync.Mutex
	payments map[string]*models.Payment
	byRef    map[string]string
	records  map[string]*models.IdempotencyRecord

	createPaymentErr error
	storeIdemErr     error

	// hideRecordsOnce makes the next GetIdempotencyResult miss, simulating
	// a concurrent writer landing between the dedup check and the insert.
	hideRecordsOnce bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		payments: map[string]*models.Payment{},
		byRef:    map[string]string{},
		records:  map[string]*models.IdempotencyRecord{},
	}
}

func (r *fakeRepo) CreatePayment(_ context.Context, p *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createPaymentErr != nil {
		return r.createPaymentErr
	}
	cp := *p
	r.payments[p.ID] = &cp
	if p.GatewayReference != "" {
		r.byRef[p.GatewayReference] = p.ID
	}
	return nil
}

func (r *fakeRepo) UpdatePayment(_ context.Context, p *models.Payment, expect models.PaymentStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.payments[p.ID]
	if !ok || stored.Status != expect {
		return false, nil
	}
	cp := *p
	cp.UpdatedAt = time.Now()
	r.payments[p.ID] = &cp
	return true, nil
}

func (r *fakeRepo) GetPaymentByID(_ context.Context, id string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakeRepo) GetPaymentByGatewayReference(_ context.Context, ref string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byRef[ref]
	if !ok {
		return nil, nil
	}
	cp := *r.payments[id]
	return &cp, nil
}

func (r *fakeRepo) GetPaymentHistory(_ context.Context, userID string, limit, _ int) ([]*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Payment
	for _, p := range r.payments {
		if p.UserID == userID && len(out) < limit {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeRepo) StoreIdempotencyKey(_ context.Context, rec *models.IdempotencyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.storeIdemErr != nil {
		return r.storeIdemErr
	}
	if _, exists := r.records[rec.Key]; exists {
		return interfaces.ErrDuplicateKey
	}
	cp := *rec
	r.records[rec.Key] = &cp
	return nil
}

func (r *fakeRepo) GetIdempotencyResult(_ context.Context, key string) (*models.IdempotencyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hideRecordsOnce {
		r.hideRecordsOnce = false
		return nil, nil
	}
	rec, ok := r.records[key]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeRepo) DeleteIdempotencyKey(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, key)
	return nil
}

func (r *fakeRepo) CleanupExpiredKeys(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	for key, rec := range r.records {
		if rec.ExpiresAt.Before(before) {
			delete(r.records, key)
			removed++
		}
	}
	return removed, nil
}

// fakeGateway counts calls and returns canned responses or errors.
type fakeGateway struct {
	mu sync.Mutex

	createIntentCalls int
	createIntentErr   error
	intent            *models.PaymentIntent

	createRefundCalls int
	createRefundErr   error
	refund            *models.Refund
	refundAmounts     []int64

	verifyErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		intent: &models.PaymentIntent{
			ID:           "pi_test_1",
			ClientSecret: "pi_test_1_secret",
			Status:       "requires_confirmation",
		},
		refund: &models.Refund{ID: "re_test_1", Status: "succeeded"},
	}
}

func (g *fakeGateway) CreatePaymentIntent(_ context.Context, req interfaces.CreateIntentRequest) (*models.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createIntentCalls++
	if g.createIntentErr != nil {
		return nil, g.createIntentErr
	}
	intent := *g.intent
	intent.Amount = req.Amount
	intent.Currency = req.Currency
	return &intent, nil
}

func (g *fakeGateway) RetrievePaymentIntent(_ context.Context, id string) (*models.PaymentIntent, error) {
	intent := *g.intent
	intent.ID = id
	return &intent, nil
}

func (g *fakeGateway) CreateRefund(_ context.Context, _ string, amount int64) (*models.Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createRefundCalls++
	g.refundAmounts = append(g.refundAmounts, amount)
	if g.createRefundErr != nil {
		return nil, g.createRefundErr
	}
	refund := *g.refund
	refund.Amount = amount
	return &refund, nil
}

func (g *fakeGateway) VerifyWebhookSignature([]byte, string, string) error {
	return g.verifyErr
}

// fakePublisher records published events.
type fakePublisher struct {
	mu     sync.Mutex
	events []events.PaymentEvent
}

func (p *fakePublisher) Publish(_ context.Context, event events.PaymentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) published() []events.PaymentEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.PaymentEvent(nil), p.events...)
}

// fakeLocker grants every acquisition unless held is set.
type fakeLocker struct {
	mu       sync.Mutex
	held     bool
	acquires int
}

func (l *fakeLocker) Acquire(_ context.Context, _ string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acquires++
	return !l.held, nil
}

func (l *fakeLocker) Release(context.Context, string) error { return nil }

// fakeCache is a plain map cache for the idempotency store.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string][]byte{}}
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.entries[key]; ok {
		return b, nil
	}
	return nil, idempotency.ErrCacheMiss
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func noDelayExecutor() *retry.Executor {
	return retry.NewExecutor(zap.NewNop(), retry.WithSleep(func(time.Duration) {}))
}
