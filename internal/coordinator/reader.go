package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/collectflow/collectflow/pkg/models"
)

func taskCacheKey(id string) string  { return "task:" + id }
func agentCacheKey(id string) string { return "agent:" + id }
func agentBeatKey(id string) string  { return "agent:beat:" + id }

// getTask resolves a task through memory, cache, and store in that order,
// backfilling the faster layers on the way out. Returns (nil, nil) when the
// task does not exist anywhere.
func (e *Engine) getTask(ctx context.Context, taskID string) (*models.Task, error) {
	e.mu.Lock()
	task, ok := e.inflight[taskID]
	e.mu.Unlock()
	if ok {
		return task, nil
	}

	raw, err := e.cache.Get(ctx, taskCacheKey(taskID))
	if err != nil {
		return nil, fmt.Errorf("failed to read task %s from cache: %w", taskID, err)
	}
	if raw != "" {
		task = &models.Task{}
		if err := json.Unmarshal([]byte(raw), task); err == nil {
			return task, nil
		}
		// Corrupt entry, fall through to the store.
	}

	task, err = e.taskStore.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to read task %s from store: %w", taskID, err)
	}
	if task == nil {
		return nil, nil
	}
	if err := e.cacheTask(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (e *Engine) cacheTask(ctx context.Context, task *models.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task %s: %w", task.ID, err)
	}
	if err := e.cache.Set(ctx, taskCacheKey(task.ID), string(data), e.cacheTTL()); err != nil {
		return fmt.Errorf("failed to cache task %s: %w", task.ID, err)
	}
	return nil
}

func (e *Engine) cacheAgent(ctx context.Context, agent *models.Agent) error {
	data, err := json.Marshal(agent)
	if err != nil {
		return fmt.Errorf("failed to marshal agent %s: %w", agent.ID, err)
	}
	if err := e.cache.Set(ctx, agentCacheKey(agent.ID), string(data), e.cacheTTL()); err != nil {
		return fmt.Errorf("failed to cache agent %s: %w", agent.ID, err)
	}
	return nil
}

func (e *Engine) cacheTTL() time.Duration {
	if e.config.CacheTTL > 0 {
		return e.config.CacheTTL
	}
	return time.Hour
}

func statusJSON(status models.CoordinatorStatus) (string, error) {
	data, err := json.Marshal(status)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
