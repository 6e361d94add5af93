package coordinator

import (
	"time"

	"github.com/collectflow/collectflow/pkg/models"
)

// taskQueue is the FIFO holding area for tasks that could not be placed.
// It is not safe for concurrent use; the engine's mutex guards it.
type taskQueue struct {
	items []*models.Task
}

func newTaskQueue() *taskQueue {
	return &taskQueue{}
}

// Push appends a task to the tail.
func (q *taskQueue) Push(task *models.Task) {
	q.items = append(q.items, task)
}

// PopEligible removes and returns up to max tasks whose NotBefore has
// passed, in FIFO order. Ineligible tasks keep their positions, so a task
// waiting out a retry backoff does not lose its place.
func (q *taskQueue) PopEligible(now time.Time, max int) []*models.Task {
	if max <= 0 || len(q.items) == 0 {
		return nil
	}

	var popped []*models.Task
	remaining := q.items[:0]

	for _, task := range q.items {
		if len(popped) < max && !task.NotBefore.After(now) {
			popped = append(popped, task)
			continue
		}
		remaining = append(remaining, task)
	}

	q.items = remaining
	return popped
}

// Len returns the number of queued tasks.
func (q *taskQueue) Len() int {
	return len(q.items)
}
