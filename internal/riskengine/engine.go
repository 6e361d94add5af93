// Package riskengine builds and caches per-customer behavioral and risk
// analysis from raw payment and communication history.
package riskengine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/collectflow/collectflow/pkg/cache"
	"github.com/collectflow/collectflow/pkg/logging"
	"github.com/collectflow/collectflow/pkg/metrics"
	"github.com/collectflow/collectflow/pkg/models"
	"github.com/collectflow/collectflow/pkg/store"
)

// Config holds context engine tunables.
type Config struct {
	ContextExpiry       time.Duration
	CleanupInterval     time.Duration
	PaymentWindowMonths int
	ContactWindowMonths int
}

// DefaultConfig returns the standard context engine tunables.
func DefaultConfig() Config {
	return Config{
		ContextExpiry:       30 * time.Minute,
		CleanupInterval:     5 * time.Minute,
		PaymentWindowMonths: 24,
		ContactWindowMonths: 12,
	}
}

// Engine owns the CustomerContext lifecycle. Contexts are derived data:
// rebuilt from history on demand, cached in-process and in the external
// cache, and replaced wholesale rather than mutated.
type Engine struct {
	config  Config
	log     logging.Logger
	store   store.CustomerStore
	cache   cache.Cache
	metrics *metrics.Metrics

	mu    sync.Mutex
	local map[string]*models.CustomerContext

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	now func() time.Time
}

// New creates a context engine.
func New(config Config, customerStore store.CustomerStore, contextCache cache.Cache, m *metrics.Metrics, log logging.Logger) *Engine {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Engine{
		config:  config,
		log:     log,
		store:   customerStore,
		cache:   contextCache,
		metrics: m,
		local:   make(map[string]*models.CustomerContext),
		now:     time.Now,
	}
}

// Start launches the periodic cache cleanup loop.
func (e *Engine) Start(ctx context.Context) {
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.wg.Add(1)
	go e.runCleanup()
}

// Stop halts the cleanup loop.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

func contextCacheKey(customerID string) string { return "context:" + customerID }

// GetCustomerContext returns the analysis bundle for a customer, serving a
// cached copy when one is fresh and forceRefresh is false. The in-process
// map is checked before the external cache. Returns (nil, nil) when the
// customer does not exist.
func (e *Engine) GetCustomerContext(ctx context.Context, customerID string, forceRefresh bool) (*models.CustomerContext, error) {
	ctx = logging.WithCustomerID(ctx, customerID)
	now := e.now()

	if !forceRefresh {
		e.mu.Lock()
		cached, ok := e.local[customerID]
		e.mu.Unlock()
		if ok && cached.Fresh(now, e.config.ContextExpiry) {
			e.countCache("local_hit")
			return cached, nil
		}

		if cached := e.fromExternal(ctx, customerID, now); cached != nil {
			e.mu.Lock()
			e.local[customerID] = cached
			e.mu.Unlock()
			e.countCache("external_hit")
			return cached, nil
		}
		e.countCache("miss")
	}

	return e.rebuild(ctx, customerID, now)
}

// InvalidateCustomerContext evicts a customer from both cache layers.
func (e *Engine) InvalidateCustomerContext(ctx context.Context, customerID string) error {
	e.mu.Lock()
	delete(e.local, customerID)
	e.mu.Unlock()

	if err := e.cache.Delete(ctx, contextCacheKey(customerID)); err != nil {
		return fmt.Errorf("failed to evict context for customer %s: %w", customerID, err)
	}
	return nil
}

// fromExternal tries the external cache. Cache trouble is logged, not
// fatal: a rebuild can always recover.
func (e *Engine) fromExternal(ctx context.Context, customerID string, now time.Time) *models.CustomerContext {
	raw, err := e.cache.Get(ctx, contextCacheKey(customerID))
	if err != nil {
		e.log.WithContext(ctx).Warn("external context cache read failed", logging.Err(err))
		return nil
	}
	if raw == "" {
		return nil
	}

	var cached models.CustomerContext
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		e.log.WithContext(ctx).Warn("discarding corrupt cached context", logging.Err(err))
		return nil
	}
	if !cached.Fresh(now, e.config.ContextExpiry) {
		return nil
	}
	return &cached
}

// rebuild recomputes the full context from history and stores it in both
// cache layers. History sub-query failures degrade to empty history rather
// than failing the build.
func (e *Engine) rebuild(ctx context.Context, customerID string, now time.Time) (*models.CustomerContext, error) {
	customer, err := e.store.GetCustomer(ctx, customerID)
	if err != nil {
		if e.metrics != nil {
			e.metrics.ContextBuildError.Inc()
		}
		return nil, fmt.Errorf("failed to load customer %s: %w", customerID, err)
	}
	if customer == nil {
		return nil, nil
	}

	payments, err := e.store.ListPayments(ctx, customerID, now.AddDate(0, -e.config.PaymentWindowMonths, 0))
	if err != nil {
		e.log.WithContext(ctx).Error("payment history query failed, analyzing without it", logging.Err(err))
		payments = nil
	}
	contacts, err := e.store.ListContactAttempts(ctx, customerID, now.AddDate(0, -e.config.ContactWindowMonths, 0))
	if err != nil {
		e.log.WithContext(ctx).Error("contact history query failed, analyzing without it", logging.Err(err))
		contacts = nil
	}

	behavior := analyzeBehavior(payments, contacts)
	risk := assessRisk(customer, payments, behavior, now)
	recommendations := buildRecommendations(behavior, risk, now)

	built := &models.CustomerContext{
		Customer:             customer,
		PaymentHistory:       payments,
		CommunicationHistory: contacts,
		Behavior:             behavior,
		Risk:                 risk,
		Recommendations:      recommendations,
		LastUpdated:          now,
	}

	e.mu.Lock()
	e.local[customerID] = built
	e.mu.Unlock()

	if data, err := json.Marshal(built); err == nil {
		if err := e.cache.Set(ctx, contextCacheKey(customerID), string(data), e.config.ContextExpiry); err != nil {
			e.log.WithContext(ctx).Warn("failed to cache rebuilt context", logging.Err(err))
		}
	}

	if e.metrics != nil {
		e.metrics.ContextRebuilds.Inc()
		e.metrics.RiskScore.Observe(risk.RiskScore)
	}
	e.log.WithContext(ctx).Info("customer context rebuilt",
		logging.Float64("risk_score", risk.RiskScore),
		logging.String("risk_level", string(risk.CurrentRisk)),
		logging.Int("payments", len(payments)),
		logging.Int("contacts", len(contacts)))

	return built, nil
}

func (e *Engine) countCache(result string) {
	if e.metrics != nil {
		e.metrics.ContextCacheHits.WithLabelValues(result).Inc()
	}
}

// runCleanup sweeps expired entries out of the in-process cache.
func (e *Engine) runCleanup() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.cleanup(e.now())
		}
	}
}

func (e *Engine) cleanup(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, cached := range e.local {
		if !cached.Fresh(now, e.config.ContextExpiry) {
			delete(e.local, id)
		}
	}
}

// PriorityForRisk maps a risk level onto a task priority, letting risk
// analysis steer how outreach work is routed.
func PriorityForRisk(level models.RiskLevel) models.Priority {
	switch level {
	case models.RiskCritical:
		return models.UrgentPriority
	case models.RiskHigh:
		return models.HighPriority
	case models.RiskMedium:
		return models.MediumPriority
	default:
		return models.LowPriority
	}
}
