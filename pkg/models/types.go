package models

import (
	"time"
)

// AgentType defines the outreach channel an agent works.
type AgentType string

const (
	EmailAgentType    AgentType = "email"
	PhoneAgentType    AgentType = "phone"
	SMSAgentType      AgentType = "sms"
	ResearchAgentType AgentType = "research"
)

// AgentStatus represents the operational state of an agent.
type AgentStatus string

const (
	AgentIdle    AgentStatus = "idle"
	AgentActive  AgentStatus = "active"
	AgentBusy    AgentStatus = "busy"
	AgentError   AgentStatus = "error"
	AgentOffline AgentStatus = "offline"
)

// TaskKind is the closed set of outreach work the system routes. Adding a
// kind requires updating the dispatch routing and the agent match table,
// both of which switch exhaustively over these values.
type TaskKind string

const (
	TaskSendEmail        TaskKind = "send_email"
	TaskMakeCall         TaskKind = "make_call"
	TaskSendSMS          TaskKind = "send_sms"
	TaskResearchCustomer TaskKind = "research_customer"
)

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskAssigned   TaskStatus = "assigned"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// Priority defines task urgency.
type Priority string

const (
	LowPriority    Priority = "low"
	MediumPriority Priority = "medium"
	HighPriority   Priority = "high"
	UrgentPriority Priority = "urgent"
)

// Rank returns the sort weight of a priority, higher meaning more urgent.
func (p Priority) Rank() int {
	switch p {
	case UrgentPriority:
		return 4
	case HighPriority:
		return 3
	case MediumPriority:
		return 2
	case LowPriority:
		return 1
	default:
		return 0
	}
}

// WorkingHours is the daily window an agent accepts work, in the agent's
// configured timezone.
type WorkingHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// AgentConfig holds per-agent operating limits and channel settings.
type AgentConfig struct {
	MaxConcurrentTasks int               `json:"max_concurrent_tasks"`
	WorkingHours       WorkingHours      `json:"working_hours"`
	Timezone           string            `json:"timezone"`
	Skills             []string          `json:"skills,omitempty"`
	Templates          map[string]string `json:"templates,omitempty"`
	Integrations       map[string]string `json:"integrations,omitempty"`
}

// AgentPerformance accumulates outcome metrics for an agent.
type AgentPerformance struct {
	TasksCompleted            int       `json:"tasks_completed"`
	TasksSuccessful           int       `json:"tasks_successful"`
	AverageResponseTime       float64   `json:"average_response_time_ms"`
	CustomerSatisfactionScore float64   `json:"customer_satisfaction_score"`
	EscalationRate            float64   `json:"escalation_rate"`
	LastUpdated               time.Time `json:"last_updated"`
}

// Agent is a registered outreach worker. CurrentTasks is exclusively owned
// by the coordination engine while the agent holds the assignment.
type Agent struct {
	ID           string           `json:"id"`
	Type         AgentType        `json:"type"`
	Status       AgentStatus      `json:"status"`
	Capabilities []string         `json:"capabilities"`
	CurrentTasks []string         `json:"current_tasks"`
	Performance  AgentPerformance `json:"performance"`
	Config       AgentConfig      `json:"config"`
	RegisteredAt time.Time        `json:"registered_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// LoadRatio returns the agent's current load as a fraction of capacity.
func (a *Agent) LoadRatio() float64 {
	if a.Config.MaxConcurrentTasks <= 0 {
		return 1.0
	}
	return float64(len(a.CurrentTasks)) / float64(a.Config.MaxConcurrentTasks)
}

// HasCapacity reports whether the agent can accept another task.
func (a *Agent) HasCapacity() bool {
	return len(a.CurrentTasks) < a.Config.MaxConcurrentTasks
}

// RemoveTask drops a task reference from CurrentTasks if present.
func (a *Agent) RemoveTask(taskID string) {
	for i, id := range a.CurrentTasks {
		if id == taskID {
			a.CurrentTasks = append(a.CurrentTasks[:i], a.CurrentTasks[i+1:]...)
			return
		}
	}
}

// AgentRegistration is the inbound request to register a new agent.
type AgentRegistration struct {
	Type               AgentType    `json:"type"`
	Capabilities       []string     `json:"capabilities"`
	MaxConcurrentTasks int          `json:"max_concurrent_tasks"`
	WorkingHours       WorkingHours `json:"working_hours,omitempty"`
	Timezone           string       `json:"timezone,omitempty"`
	Skills             []string     `json:"skills,omitempty"`
}

// Task is a unit of outreach work tied to a customer and optionally a
// campaign. AssignedAgentID is a weak reference used for lookup only.
type Task struct {
	ID              string                 `json:"id"`
	Kind            TaskKind               `json:"kind"`
	Priority        Priority               `json:"priority"`
	CustomerID      string                 `json:"customer_id"`
	CampaignID      string                 `json:"campaign_id,omitempty"`
	AssignedAgentID string                 `json:"assigned_agent_id,omitempty"`
	Status          TaskStatus             `json:"status"`
	Context         map[string]interface{} `json:"context,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
	DueAt           *time.Time             `json:"due_at,omitempty"`
	CompletedAt     *time.Time             `json:"completed_at,omitempty"`
	NotBefore       time.Time              `json:"not_before,omitempty"`
	Attempts        int                    `json:"attempts"`
	MaxAttempts     int                    `json:"max_attempts"`
	LastError       string                 `json:"last_error,omitempty"`
}

// Terminal reports whether the task has reached a final state.
func (t *Task) Terminal() bool {
	return t.Status == TaskCompleted || t.Status == TaskFailed
}

// TaskResult carries the outcome reported by a channel executor.
type TaskResult struct {
	Data     map[string]interface{} `json:"data,omitempty"`
	Duration time.Duration          `json:"duration"`
}

// CoordinatorStatus is a read-only snapshot of the coordination engine.
type CoordinatorStatus struct {
	Running        bool                 `json:"running"`
	AgentCount     int                  `json:"agent_count"`
	QueueSize      int                  `json:"queue_size"`
	InFlightTasks  int                  `json:"in_flight_tasks"`
	TasksAssigned  int64                `json:"tasks_assigned"`
	TasksCompleted int64                `json:"tasks_completed"`
	TasksFailed    int64                `json:"tasks_failed"`
	Utilization    float64              `json:"utilization"`
	StartedAt      time.Time            `json:"started_at"`
	Agents         []AgentStatusSummary `json:"agents"`
}

// AgentStatusSummary is the per-agent slice of a coordinator snapshot.
type AgentStatusSummary struct {
	ID          string      `json:"id"`
	Type        AgentType   `json:"type"`
	Status      AgentStatus `json:"status"`
	ActiveTasks int         `json:"active_tasks"`
	Capacity    int         `json:"capacity"`
	Completed   int         `json:"completed"`
	Successful  int         `json:"successful"`
}
