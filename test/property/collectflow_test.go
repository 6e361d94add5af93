// +build property

package property

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/collectflow/collectflow/internal/coordinator"
	"github.com/collectflow/collectflow/internal/riskengine"
	"github.com/collectflow/collectflow/pkg/models"
)

// **Property 1: Risk score bounds and band consistency**
// *For any* payment/communication history, the risk score stays in [0,100]
// and the risk level always matches its band.

// **Property 2: Agent capacity invariant**
// *For any* sequence of task submissions, no agent ever holds more tasks
// than its configured capacity.

type memStore struct {
	mu        sync.Mutex
	agents    map[string]*models.Agent
	tasks     map[string]*models.Task
	customers map[string]*models.Customer
	payments  map[string][]models.PaymentRecord
	contacts  map[string][]models.ContactAttempt
}

func newMemStore() *memStore {
	return &memStore{
		agents:    make(map[string]*models.Agent),
		tasks:     make(map[string]*models.Task),
		customers: make(map[string]*models.Customer),
		payments:  make(map[string][]models.PaymentRecord),
		contacts:  make(map[string][]models.ContactAttempt),
	}
}

func (s *memStore) SaveAgent(_ context.Context, a *models.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[a.ID] = a
	return nil
}

func (s *memStore) GetAgent(_ context.Context, id string) (*models.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agents[id], nil
}

func (s *memStore) ListAgents(_ context.Context) ([]*models.Agent, error) {
	return nil, nil
}

func (s *memStore) SaveTask(_ context.Context, t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t
	return nil
}

func (s *memStore) GetTask(_ context.Context, id string) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[id], nil
}

func (s *memStore) ListTasksByStatus(_ context.Context, _ models.TaskStatus) ([]*models.Task, error) {
	return nil, nil
}

func (s *memStore) GetCustomer(_ context.Context, id string) (*models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customers[id], nil
}

func (s *memStore) ListPayments(_ context.Context, id string, _ time.Time) ([]models.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payments[id], nil
}

func (s *memStore) ListContactAttempts(_ context.Context, id string, _ time.Time) ([]models.ContactAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contacts[id], nil
}

type memCache struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemCache() *memCache {
	return &memCache{values: make(map[string]string)}
}

func (c *memCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[key], nil
}

func (c *memCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	return nil
}

func (c *memCache) PublishEvent(_ context.Context, _ models.Event) error { return nil }

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(_ context.Context, _ *models.Task) error { return nil }

func TestRiskScoreBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	properties.Property("risk score bounded and band-consistent", prop.ForAll(
		func(delays []int, responded []bool, ageMonths int) bool {
			store := newMemStore()
			store.customers["c"] = &models.Customer{
				ID:               "c",
				AccountCreatedAt: now.AddDate(0, -ageMonths, 0),
			}
			for i, d := range delays {
				due := now.AddDate(0, -i-1, 0)
				paid := due.AddDate(0, 0, d)
				store.payments["c"] = append(store.payments["c"], models.PaymentRecord{
					ID:       fmt.Sprintf("p%d", i),
					DueDate:  due,
					PaidDate: &paid,
					Status:   models.PaymentPaid,
				})
			}
			for i, r := range responded {
				status := models.ContactSent
				if r {
					status = models.ContactReplied
				}
				store.contacts["c"] = append(store.contacts["c"], models.ContactAttempt{
					ID:         fmt.Sprintf("a%d", i),
					OccurredAt: now.AddDate(0, 0, -i),
					Status:     status,
				})
			}

			engine := riskengine.New(riskengine.DefaultConfig(), store, newMemCache(), nil, nil)
			cc, err := engine.GetCustomerContext(context.Background(), "c", true)
			if !assert.NoError(t, err) || !assert.NotNil(t, cc) {
				return false
			}

			score := cc.Risk.RiskScore
			if score < 0 || score > 100 {
				return false
			}
			level := cc.Risk.CurrentRisk
			switch {
			case score >= 75:
				return level == models.RiskCritical
			case score >= 60:
				return level == models.RiskHigh
			case score >= 40:
				return level == models.RiskMedium
			default:
				return level == models.RiskLow
			}
		},
		gen.SliceOf(gen.IntRange(0, 120)),
		gen.SliceOf(gen.Bool()),
		gen.IntRange(0, 60),
	))

	properties.TestingRun(t)
}

func TestAgentCapacityInvariant(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	kinds := []models.TaskKind{
		models.TaskSendEmail, models.TaskMakeCall, models.TaskSendSMS, models.TaskResearchCustomer,
	}
	types := []models.AgentType{
		models.EmailAgentType, models.PhoneAgentType, models.SMSAgentType, models.ResearchAgentType,
	}

	properties.Property("no agent exceeds its capacity", prop.ForAll(
		func(agentSpecs []int, taskKinds []int) bool {
			ctx := context.Background()
			store := newMemStore()
			engine := coordinator.New(coordinator.DefaultConfig(), coordinator.Deps{
				Agents:     store,
				Tasks:      store,
				Cache:      newMemCache(),
				Publisher:  newMemCache(),
				Dispatcher: noopDispatcher{},
			})

			for i, spec := range agentSpecs {
				_, err := engine.RegisterAgent(ctx, models.AgentRegistration{
					Type:               types[i%len(types)],
					MaxConcurrentTasks: spec%4 + 1,
				})
				if !assert.NoError(t, err) {
					return false
				}
			}

			for _, k := range taskKinds {
				task := &models.Task{
					Kind:       kinds[k%len(kinds)],
					CustomerID: "c",
				}
				if !assert.NoError(t, engine.AssignTask(ctx, task)) {
					return false
				}
			}

			status := engine.Status()
			for _, a := range status.Agents {
				if a.ActiveTasks > a.Capacity {
					return false
				}
			}
			total := 0
			for _, a := range status.Agents {
				total += a.ActiveTasks
			}
			return total+status.QueueSize == len(taskKinds)
		},
		gen.SliceOfN(4, gen.IntRange(0, 7)),
		gen.SliceOf(gen.IntRange(0, 3)),
	))

	properties.TestingRun(t)
}

// **Property 3: Retry budget is exact**
// *For any* max-attempts budget, a task that always fails is retried until
// the budget is spent and then terminally fails.
func TestRetryBudgetExhaustion(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("task fails terminally after maxAttempts", prop.ForAll(
		func(maxAttempts int) bool {
			ctx := context.Background()
			store := newMemStore()
			config := coordinator.DefaultConfig()
			config.RetryBaseDelay = 0
			engine := coordinator.New(config, coordinator.Deps{
				Agents:     store,
				Tasks:      store,
				Cache:      newMemCache(),
				Publisher:  newMemCache(),
				Dispatcher: noopDispatcher{},
			})

			_, err := engine.RegisterAgent(ctx, models.AgentRegistration{
				Type:               models.PhoneAgentType,
				MaxConcurrentTasks: 1,
			})
			if !assert.NoError(t, err) {
				return false
			}

			task := &models.Task{
				Kind:        models.TaskMakeCall,
				CustomerID:  "c",
				MaxAttempts: maxAttempts,
			}
			if !assert.NoError(t, engine.AssignTask(ctx, task)) {
				return false
			}

			for attempt := 1; attempt <= maxAttempts; attempt++ {
				if task.Status != models.TaskAssigned {
					return false
				}
				if !assert.NoError(t, engine.FailTask(ctx, task.ID, fmt.Errorf("no answer"))) {
					return false
				}
				if attempt < maxAttempts {
					if task.Status != models.TaskPending {
						return false
					}
					engine.DrainOnce(ctx)
					if task.Status != models.TaskAssigned {
						return false
					}
				}
			}

			return task.Status == models.TaskFailed && task.Attempts == maxAttempts
		},
		gen.IntRange(1, 6),
	))

	properties.TestingRun(t)
}
