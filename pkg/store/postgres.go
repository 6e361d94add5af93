package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/collectflow/collectflow/pkg/models"
)

// Postgres implements AgentStore, TaskStore, and CustomerStore over a
// pgx connection pool. Agent and task records are stored as JSONB documents
// keyed by ID; customer history is read from typed rows.
type Postgres struct {
	pool *pgxpool.Pool
}

// Connect opens a connection pool and verifies connectivity.
func Connect(ctx context.Context, url string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Close releases the pool.
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// SaveAgent upserts an agent record.
func (p *Postgres) SaveAgent(ctx context.Context, agent *models.Agent) error {
	doc, err := json.Marshal(agent)
	if err != nil {
		return fmt.Errorf("failed to serialize agent %s: %w", agent.ID, err)
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO agents (id, status, doc, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET status = $2, doc = $3, updated_at = $4`,
		agent.ID, string(agent.Status), doc, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save agent %s: %w", agent.ID, err)
	}
	return nil
}

// GetAgent retrieves an agent by ID. Returns (nil, nil) when absent.
func (p *Postgres) GetAgent(ctx context.Context, agentID string) (*models.Agent, error) {
	var doc []byte
	err := p.pool.QueryRow(ctx,
		`SELECT doc FROM agents WHERE id = $1`, agentID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent %s: %w", agentID, err)
	}

	var agent models.Agent
	if err := json.Unmarshal(doc, &agent); err != nil {
		return nil, fmt.Errorf("failed to deserialize agent %s: %w", agentID, err)
	}
	return &agent, nil
}

// ListAgents returns all stored agents.
func (p *Postgres) ListAgents(ctx context.Context) ([]*models.Agent, error) {
	rows, err := p.pool.Query(ctx, `SELECT doc FROM agents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	var agents []*models.Agent
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan agent row: %w", err)
		}
		var agent models.Agent
		if err := json.Unmarshal(doc, &agent); err != nil {
			continue
		}
		agents = append(agents, &agent)
	}
	return agents, rows.Err()
}

// SaveTask upserts a task record.
func (p *Postgres) SaveTask(ctx context.Context, task *models.Task) error {
	doc, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to serialize task %s: %w", task.ID, err)
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO tasks (id, status, customer_id, doc, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET status = $2, doc = $4, updated_at = $5`,
		task.ID, string(task.Status), task.CustomerID, doc, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save task %s: %w", task.ID, err)
	}
	return nil
}

// GetTask retrieves a task by ID. Returns (nil, nil) when absent.
func (p *Postgres) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	var doc []byte
	err := p.pool.QueryRow(ctx,
		`SELECT doc FROM tasks WHERE id = $1`, taskID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %s: %w", taskID, err)
	}

	var task models.Task
	if err := json.Unmarshal(doc, &task); err != nil {
		return nil, fmt.Errorf("failed to deserialize task %s: %w", taskID, err)
	}
	return &task, nil
}

// ListTasksByStatus returns tasks in a given status, oldest first.
func (p *Postgres) ListTasksByStatus(ctx context.Context, status models.TaskStatus) ([]*models.Task, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT doc FROM tasks WHERE status = $1 ORDER BY updated_at`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks by status %s: %w", status, err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		var task models.Task
		if err := json.Unmarshal(doc, &task); err != nil {
			continue
		}
		tasks = append(tasks, &task)
	}
	return tasks, rows.Err()
}

// GetCustomer retrieves a customer by ID. Returns (nil, nil) when absent.
func (p *Postgres) GetCustomer(ctx context.Context, customerID string) (*models.Customer, error) {
	var c models.Customer
	err := p.pool.QueryRow(ctx,
		`SELECT id, name, COALESCE(email, ''), COALESCE(phone, ''), outstanding_balance, account_created_at
		 FROM customers WHERE id = $1`, customerID).
		Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.OutstandingBalance, &c.AccountCreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer %s: %w", customerID, err)
	}
	return &c, nil
}

// ListPayments returns payment records for a customer due since the given
// time, oldest first.
func (p *Postgres) ListPayments(ctx context.Context, customerID string, since time.Time) ([]models.PaymentRecord, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, customer_id, amount, due_date, paid_date, status
		 FROM payments WHERE customer_id = $1 AND due_date >= $2
		 ORDER BY due_date`, customerID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments for %s: %w", customerID, err)
	}
	defer rows.Close()

	var records []models.PaymentRecord
	for rows.Next() {
		var r models.PaymentRecord
		var status string
		if err := rows.Scan(&r.ID, &r.CustomerID, &r.Amount, &r.DueDate, &r.PaidDate, &status); err != nil {
			return nil, fmt.Errorf("failed to scan payment row: %w", err)
		}
		r.Status = models.PaymentStatus(status)
		records = append(records, r)
	}
	return records, rows.Err()
}

// ListContactAttempts returns contact attempts for a customer since the
// given time, oldest first.
func (p *Postgres) ListContactAttempts(ctx context.Context, customerID string, since time.Time) ([]models.ContactAttempt, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, customer_id, channel, occurred_at, status, COALESCE(response, ''), escalated
		 FROM contact_attempts WHERE customer_id = $1 AND occurred_at >= $2
		 ORDER BY occurred_at`, customerID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list contact attempts for %s: %w", customerID, err)
	}
	defer rows.Close()

	var attempts []models.ContactAttempt
	for rows.Next() {
		var a models.ContactAttempt
		var status string
		if err := rows.Scan(&a.ID, &a.CustomerID, &a.Channel, &a.OccurredAt, &status, &a.Response, &a.Escalated); err != nil {
			return nil, fmt.Errorf("failed to scan contact attempt row: %w", err)
		}
		a.Status = models.ContactStatus(status)
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
