package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventName identifies a broadcast notification channel.
type EventName string

const (
	EventAgentRegistered        EventName = "agent:registered"
	EventTaskQueued             EventName = "task:queued"
	EventTaskAssigned           EventName = "task:assigned"
	EventTaskCompleted          EventName = "task:completed"
	EventTaskFailed             EventName = "task:failed"
	EventCoordinatorMetrics     EventName = "coordinator:metrics"
	EventCoordinatorInitialized EventName = "coordinator:initialized"
)

// Event is a JSON-serializable notification emitted by state-mutating
// operations and dispatched through the cache/notification gateway.
type Event struct {
	ID        string                 `json:"id"`
	Name      EventName              `json:"name"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewEvent creates an event with a fresh identity and timestamp.
func NewEvent(name EventName, payload map[string]interface{}) Event {
	return Event{
		ID:        uuid.New().String(),
		Name:      name,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// NewAgentRegisteredEvent announces a newly registered agent.
func NewAgentRegisteredEvent(agent *Agent) Event {
	return NewEvent(EventAgentRegistered, map[string]interface{}{
		"agent_id":     agent.ID,
		"agent_type":   string(agent.Type),
		"capabilities": agent.Capabilities,
	})
}

// NewTaskQueuedEvent announces a task deferred for lack of an agent.
func NewTaskQueuedEvent(task *Task, reason string) Event {
	return NewEvent(EventTaskQueued, map[string]interface{}{
		"task_id":  task.ID,
		"kind":     string(task.Kind),
		"priority": string(task.Priority),
		"reason":   reason,
	})
}

// NewTaskAssignedEvent announces a task handed to an agent.
func NewTaskAssignedEvent(task *Task, agent *Agent) Event {
	return NewEvent(EventTaskAssigned, map[string]interface{}{
		"task_id":  task.ID,
		"kind":     string(task.Kind),
		"agent_id": agent.ID,
	})
}

// NewTaskCompletedEvent announces a successfully finished task.
func NewTaskCompletedEvent(task *Task) Event {
	return NewEvent(EventTaskCompleted, map[string]interface{}{
		"task_id":  task.ID,
		"agent_id": task.AssignedAgentID,
		"attempts": task.Attempts,
	})
}

// NewTaskFailedEvent announces a failed task and whether it will retry.
func NewTaskFailedEvent(task *Task, reason string, willRetry bool) Event {
	return NewEvent(EventTaskFailed, map[string]interface{}{
		"task_id":    task.ID,
		"reason":     reason,
		"attempts":   task.Attempts,
		"will_retry": willRetry,
	})
}

// NewCoordinatorMetricsEvent carries a periodic metrics snapshot.
func NewCoordinatorMetricsEvent(status CoordinatorStatus) Event {
	return NewEvent(EventCoordinatorMetrics, map[string]interface{}{
		"agent_count": status.AgentCount,
		"queue_size":  status.QueueSize,
		"in_flight":   status.InFlightTasks,
		"utilization": status.Utilization,
	})
}

// ToJSON serializes the event.
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON deserializes an event.
func EventFromJSON(data []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return e, err
}
