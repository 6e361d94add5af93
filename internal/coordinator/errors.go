package coordinator

import "errors"

var (
	// ErrTaskNotFound is returned when a completion or failure report
	// references a task the engine does not know.
	ErrTaskNotFound = errors.New("task not found")

	// ErrAgentNotFound is returned when a task's assigned agent is missing
	// from the registry.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrTaskTerminal is returned when a completion or failure report
	// arrives for a task that already reached a terminal state. Completed
	// and failed are final; duplicate or late reports must not reopen them.
	ErrTaskTerminal = errors.New("task already in a terminal state")

	// ErrShuttingDown is returned for operations submitted after Shutdown.
	ErrShuttingDown = errors.New("coordinator is shutting down")
)
