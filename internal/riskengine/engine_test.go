package riskengine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/collectflow/collectflow/pkg/models"
)

type fakeCustomerStore struct {
	mu           sync.Mutex
	customers    map[string]*models.Customer
	payments     map[string][]models.PaymentRecord
	contacts     map[string][]models.ContactAttempt
	customerErr  error
	historyErr   error
	paymentCalls int
}

func newFakeCustomerStore() *fakeCustomerStore {
	return &fakeCustomerStore{
		customers: make(map[string]*models.Customer),
		payments:  make(map[string][]models.PaymentRecord),
		contacts:  make(map[string][]models.ContactAttempt),
	}
}

func (s *fakeCustomerStore) GetCustomer(_ context.Context, id string) (*models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customers[id], s.customerErr
}

func (s *fakeCustomerStore) ListPayments(_ context.Context, id string, _ time.Time) ([]models.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paymentCalls++
	if s.historyErr != nil {
		return nil, s.historyErr
	}
	return s.payments[id], nil
}

func (s *fakeCustomerStore) ListContactAttempts(_ context.Context, id string, _ time.Time) ([]models.ContactAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.historyErr != nil {
		return nil, s.historyErr
	}
	return s.contacts[id], nil
}

type fakeCache struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string]string)}
}

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[key], c.err
}

func (c *fakeCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.values[key] = value
	return nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	return c.err
}

func newTestEngine(store *fakeCustomerStore, cache *fakeCache) *Engine {
	return New(DefaultConfig(), store, cache, nil, nil)
}

func seedCustomer(store *fakeCustomerStore, id string, now time.Time) {
	store.customers[id] = &models.Customer{
		ID:               id,
		Name:             "Acme Ltd",
		AccountCreatedAt: now.AddDate(-2, 0, 0),
	}
	due := now.AddDate(0, -2, 0)
	paid := due.AddDate(0, 0, 10)
	store.payments[id] = []models.PaymentRecord{
		{ID: "p1", CustomerID: id, DueDate: due, PaidDate: &paid, Status: models.PaymentPaid},
	}
	store.contacts[id] = []models.ContactAttempt{
		{ID: "a1", CustomerID: id, Channel: "email", OccurredAt: now.AddDate(0, -1, 0), Status: models.ContactReplied},
	}
}

func TestGetCustomerContext(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Builds And Caches", func(t *testing.T) {
		store := newFakeCustomerStore()
		cache := newFakeCache()
		seedCustomer(store, "c1", now)
		engine := newTestEngine(store, cache)
		engine.now = func() time.Time { return now }

		built, err := engine.GetCustomerContext(ctx, "c1", false)
		if err != nil {
			t.Fatalf("GetCustomerContext failed: %v", err)
		}
		if built == nil || built.Customer.ID != "c1" {
			t.Fatalf("Expected context for c1, got %+v", built)
		}
		if built.Risk.RiskScore <= 0 {
			t.Error("Expected nonzero risk score")
		}
		if cache.values[contextCacheKey("c1")] == "" {
			t.Error("Expected context written to external cache")
		}

		// Second call must serve the in-process copy.
		if _, err := engine.GetCustomerContext(ctx, "c1", false); err != nil {
			t.Fatalf("Cached lookup failed: %v", err)
		}
		if store.paymentCalls != 1 {
			t.Errorf("Expected 1 history query, got %d", store.paymentCalls)
		}
	})

	t.Run("Force Refresh Rebuilds", func(t *testing.T) {
		store := newFakeCustomerStore()
		cache := newFakeCache()
		seedCustomer(store, "c1", now)
		engine := newTestEngine(store, cache)
		engine.now = func() time.Time { return now }

		if _, err := engine.GetCustomerContext(ctx, "c1", false); err != nil {
			t.Fatalf("GetCustomerContext failed: %v", err)
		}
		if _, err := engine.GetCustomerContext(ctx, "c1", true); err != nil {
			t.Fatalf("Forced rebuild failed: %v", err)
		}
		if store.paymentCalls != 2 {
			t.Errorf("Expected 2 history queries, got %d", store.paymentCalls)
		}
	})

	t.Run("Expired Context Rebuilds", func(t *testing.T) {
		store := newFakeCustomerStore()
		cache := newFakeCache()
		seedCustomer(store, "c1", now)
		engine := newTestEngine(store, cache)

		current := now
		engine.now = func() time.Time { return current }
		if _, err := engine.GetCustomerContext(ctx, "c1", false); err != nil {
			t.Fatalf("GetCustomerContext failed: %v", err)
		}

		current = now.Add(engine.config.ContextExpiry + time.Minute)
		if _, err := engine.GetCustomerContext(ctx, "c1", false); err != nil {
			t.Fatalf("Rebuild after expiry failed: %v", err)
		}
		if store.paymentCalls != 2 {
			t.Errorf("Expected rebuild after expiry, got %d history queries", store.paymentCalls)
		}
	})

	t.Run("Missing Customer Is Not An Error", func(t *testing.T) {
		engine := newTestEngine(newFakeCustomerStore(), newFakeCache())

		built, err := engine.GetCustomerContext(ctx, "ghost", false)
		if err != nil {
			t.Fatalf("Expected no error for missing customer, got %v", err)
		}
		if built != nil {
			t.Errorf("Expected nil context, got %+v", built)
		}
	})

	t.Run("Customer Query Failure Propagates", func(t *testing.T) {
		store := newFakeCustomerStore()
		store.customerErr = errors.New("db down")
		engine := newTestEngine(store, newFakeCache())

		if _, err := engine.GetCustomerContext(ctx, "c1", false); err == nil {
			t.Fatal("Expected error from customer query failure")
		}
	})

	t.Run("History Failure Degrades To Empty", func(t *testing.T) {
		store := newFakeCustomerStore()
		cache := newFakeCache()
		seedCustomer(store, "c1", now)
		store.historyErr = errors.New("timeout")
		engine := newTestEngine(store, cache)
		engine.now = func() time.Time { return now }

		built, err := engine.GetCustomerContext(ctx, "c1", false)
		if err != nil {
			t.Fatalf("Expected degraded build, got error: %v", err)
		}
		if len(built.PaymentHistory) != 0 || len(built.CommunicationHistory) != 0 {
			t.Errorf("Expected empty histories, got %d payments %d contacts",
				len(built.PaymentHistory), len(built.CommunicationHistory))
		}
	})

	t.Run("Cache Failure Does Not Block Rebuild", func(t *testing.T) {
		store := newFakeCustomerStore()
		cache := newFakeCache()
		cache.err = errors.New("redis down")
		seedCustomer(store, "c1", now)
		engine := newTestEngine(store, cache)
		engine.now = func() time.Time { return now }

		built, err := engine.GetCustomerContext(ctx, "c1", false)
		if err != nil {
			t.Fatalf("Expected build despite cache failure, got %v", err)
		}
		if built == nil {
			t.Fatal("Expected context")
		}
	})
}

func TestInvalidateCustomerContext(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	store := newFakeCustomerStore()
	cache := newFakeCache()
	seedCustomer(store, "c1", now)
	engine := newTestEngine(store, cache)
	engine.now = func() time.Time { return now }

	if _, err := engine.GetCustomerContext(ctx, "c1", false); err != nil {
		t.Fatalf("GetCustomerContext failed: %v", err)
	}
	if err := engine.InvalidateCustomerContext(ctx, "c1"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	if cache.values[contextCacheKey("c1")] != "" {
		t.Error("Expected external cache entry evicted")
	}
	if _, err := engine.GetCustomerContext(ctx, "c1", false); err != nil {
		t.Fatalf("Rebuild after invalidate failed: %v", err)
	}
	if store.paymentCalls != 2 {
		t.Errorf("Expected rebuild after invalidation, got %d history queries", store.paymentCalls)
	}
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	store := newFakeCustomerStore()
	seedCustomer(store, "c1", now)
	engine := newTestEngine(store, newFakeCache())
	engine.now = func() time.Time { return now }

	if _, err := engine.GetCustomerContext(ctx, "c1", false); err != nil {
		t.Fatalf("GetCustomerContext failed: %v", err)
	}

	engine.cleanup(now.Add(engine.config.ContextExpiry + time.Minute))

	engine.mu.Lock()
	_, ok := engine.local["c1"]
	engine.mu.Unlock()
	if ok {
		t.Error("Expected expired entry swept from local cache")
	}
}

func TestPriorityForRisk(t *testing.T) {
	cases := []struct {
		level models.RiskLevel
		want  models.Priority
	}{
		{models.RiskCritical, models.UrgentPriority},
		{models.RiskHigh, models.HighPriority},
		{models.RiskMedium, models.MediumPriority},
		{models.RiskLow, models.LowPriority},
	}
	for _, tc := range cases {
		if got := PriorityForRisk(tc.level); got != tc.want {
			t.Errorf("PriorityForRisk(%s) = %s, want %s", tc.level, got, tc.want)
		}
	}
}
