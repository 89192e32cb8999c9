//go:build !integration

package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"goshopper-backend/internal/domain"
	"goshopper-backend/internal/domain/model"
	"goshopper-backend/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// mockTxManager serializes closures with a mutex, modelling the store's
// transactional isolation for unit tests.
type mockTxManager struct {
	mu sync.Mutex
}

func newMockTxManager() *mockTxManager { return &mockTxManager{} }

func (m *mockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, repository.NoTX)
}

// memPaymentRepo is a small in-memory ledger used by unit tests.
type memPaymentRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.Payment
	saveErr error
	findErr error
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{store: make(map[string]*model.Payment)}
}

func (m *memPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.TransactionID] = &cp
	return nil
}

func (m *memPaymentRepo) FindByTransactionID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPaymentRepo) FindByProviderReference(ctx context.Context, tx repository.Tx, ref string) (*model.Payment, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.StripePaymentIntentID == ref || p.MokoReference == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPaymentRepo) SetProviderReference(ctx context.Context, tx repository.Tx, id string, p *model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	stored.StripePaymentIntentID = p.StripePaymentIntentID
	stored.MokoReference = p.MokoReference
	return nil
}

func (m *memPaymentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, note string, completedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = status
	p.FailureNote = note
	p.UpdatedAt = time.Now()
	if completedAt != nil {
		p.CompletedAt = completedAt
	}
	return nil
}

func (m *memPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Payment
	for _, p := range m.store {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(cutoff) {
			cp := *p
			out = append(out, &cp)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// memSubscriptionRepo is the in-memory subscription document store.
type memSubscriptionRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.Subscription
	saveErr error
}

func newMemSubscriptionRepo() *memSubscriptionRepo {
	return &memSubscriptionRepo{store: make(map[string]*model.Subscription)}
}

func (m *memSubscriptionRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.store[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, sub *model.Subscription) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	m.store[sub.UserID] = &cp
	return nil
}

func (m *memSubscriptionRepo) ListExpiredSubscriptions(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for id, s := range m.store {
		if s.IsSubscribed && s.SubscriptionEndDate != nil && !s.SubscriptionEndDate.After(now) {
			out = append(out, id)
		}
	}
	return capList(out, limit), nil
}

func (m *memSubscriptionRepo) ListExpiredTrials(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for id, s := range m.store {
		if s.Status == model.SubscriptionStatusTrial && !s.TrialEndDate.After(now) {
			out = append(out, id)
		}
	}
	return capList(out, limit), nil
}

func (m *memSubscriptionRepo) ListLapsedBillingPeriods(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for id, s := range m.store {
		if s.IsSubscribed && !s.CurrentBillingPeriodEnd.After(now) {
			out = append(out, id)
		}
	}
	return capList(out, limit), nil
}

func (m *memSubscriptionRepo) ListExpiringSoon(ctx context.Context, tx repository.Tx, now, within time.Time, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for id, s := range m.store {
		if s.Status == model.SubscriptionStatusActive && s.SubscriptionEndDate != nil &&
			s.SubscriptionEndDate.After(now) && !s.SubscriptionEndDate.After(within) {
			out = append(out, id)
		}
	}
	return capList(out, limit), nil
}

func (m *memSubscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[model.SubscriptionStatus]int)
	for _, s := range m.store {
		counts[s.Status]++
	}
	return counts, nil
}

// staleListRepo replays a fixed candidate list, modelling rows that changed
// between the sweep's list query and the row lock.
type staleListRepo struct {
	*memSubscriptionRepo
	candidates []string
}

func (m *staleListRepo) ListExpiredSubscriptions(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]string, error) {
	return m.candidates, nil
}

func (m *staleListRepo) ListExpiredTrials(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]string, error) {
	return m.candidates, nil
}

func (m *staleListRepo) ListLapsedBillingPeriods(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]string, error) {
	return m.candidates, nil
}

func capList(ids []string, limit int) []string {
	if limit > 0 && len(ids) > limit {
		return ids[:limit]
	}
	return ids
}

// mockCardGateway simulates the card processor; override Func fields per test.
type mockCardGateway struct {
	CreateIntentFunc func(ctx context.Context, amount int64, currency, transactionID, userID, email string) (string, string, error)
	QueryIntentFunc  func(ctx context.Context, intentID string) (model.PaymentStatus, error)
}

func (m *mockCardGateway) Name() string { return "stripe" }

func (m *mockCardGateway) CreateIntent(ctx context.Context, amount int64, currency, transactionID, userID, email string) (string, string, error) {
	if m.CreateIntentFunc != nil {
		return m.CreateIntentFunc(ctx, amount, currency, transactionID, userID, email)
	}
	return "pi_test_123", "pi_test_123_secret", nil
}

func (m *mockCardGateway) QueryIntent(ctx context.Context, intentID string) (model.PaymentStatus, error) {
	if m.QueryIntentFunc != nil {
		return m.QueryIntentFunc(ctx, intentID)
	}
	return model.PaymentStatusPending, nil
}

// mockMobileGateway simulates the Moko aggregator.
type mockMobileGateway struct {
	RequestChargeFunc func(ctx context.Context, amount int64, currency, phone string, carrier model.PaymentProvider, transactionID string) (string, error)
	QueryChargeFunc   func(ctx context.Context, reference string) (model.PaymentStatus, error)
}

func (m *mockMobileGateway) Name() string { return "moko" }

func (m *mockMobileGateway) RequestCharge(ctx context.Context, amount int64, currency, phone string, carrier model.PaymentProvider, transactionID string) (string, error) {
	if m.RequestChargeFunc != nil {
		return m.RequestChargeFunc(ctx, amount, currency, phone, carrier, transactionID)
	}
	return "moko-ref-1", nil
}

func (m *mockMobileGateway) QueryCharge(ctx context.Context, reference string) (model.PaymentStatus, error) {
	if m.QueryChargeFunc != nil {
		return m.QueryChargeFunc(ctx, reference)
	}
	return model.PaymentStatusPending, nil
}

// mockNotifier counts dispatches.
type mockNotifier struct {
	mu        sync.Mutex
	succeeded int
	expiring  int
	expired   int
	trials    int
}

func (m *mockNotifier) PaymentSucceeded(ctx context.Context, userID string, p *model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.succeeded++
	return nil
}

func (m *mockNotifier) SubscriptionExpiring(ctx context.Context, userID string, daysLeft int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expiring++
	return nil
}

func (m *mockNotifier) SubscriptionExpired(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expired++
	return nil
}

func (m *mockNotifier) TrialExpired(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trials++
	return nil
}

func (m *mockNotifier) paymentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.succeeded
}

// mockParser returns a canned receipt.
type mockParser struct {
	ParseFunc func(ctx context.Context, imageURL string) (*model.ParsedReceipt, error)
}

func (m *mockParser) Parse(ctx context.Context, imageURL string) (*model.ParsedReceipt, error) {
	if m.ParseFunc != nil {
		return m.ParseFunc(ctx, imageURL)
	}
	return &model.ParsedReceipt{
		StoreName: "Kin Marche",
		Currency:  "CDF",
		Total:     12500,
		Items:     []model.ReceiptItem{{Name: "Fufu flour 1kg", Quantity: 1, UnitPrice: 12500, Total: 12500}},
		ScannedAt: time.Now(),
	}, nil
}
