package store

import (
	"context"
	"time"

	"github.com/collectflow/collectflow/pkg/models"
)

// AgentStore persists agent records.
type AgentStore interface {
	SaveAgent(ctx context.Context, agent *models.Agent) error
	GetAgent(ctx context.Context, agentID string) (*models.Agent, error)
	ListAgents(ctx context.Context) ([]*models.Agent, error)
}

// TaskStore persists task records.
type TaskStore interface {
	SaveTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, taskID string) (*models.Task, error)
	ListTasksByStatus(ctx context.Context, status models.TaskStatus) ([]*models.Task, error)
}

// CustomerStore reads customer records and their bounded histories.
type CustomerStore interface {
	GetCustomer(ctx context.Context, customerID string) (*models.Customer, error)
	ListPayments(ctx context.Context, customerID string, since time.Time) ([]models.PaymentRecord, error)
	ListContactAttempts(ctx context.Context, customerID string, since time.Time) ([]models.ContactAttempt, error)
}
