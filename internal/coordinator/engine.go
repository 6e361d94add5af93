package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/collectflow/collectflow/pkg/cache"
	"github.com/collectflow/collectflow/pkg/dispatch"
	"github.com/collectflow/collectflow/pkg/logging"
	"github.com/collectflow/collectflow/pkg/metrics"
	"github.com/collectflow/collectflow/pkg/models"
	"github.com/collectflow/collectflow/pkg/store"
)

// errTaskTimeout marks a task that stayed in flight past the deadline.
var errTaskTimeout = errors.New("task execution timed out")

// Config holds task coordination engine tunables.
type Config struct {
	DrainInterval      time.Duration
	DrainBatch         int
	MetricsInterval    time.Duration
	SweepInterval      time.Duration
	TaskTimeout        time.Duration
	FailoverThreshold  time.Duration
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
	DefaultMaxAttempts int
	CacheTTL           time.Duration
}

// DefaultConfig returns the standard engine tunables.
func DefaultConfig() Config {
	return Config{
		DrainInterval:      time.Second,
		DrainBatch:         10,
		MetricsInterval:    30 * time.Second,
		SweepInterval:      30 * time.Second,
		TaskTimeout:        5 * time.Minute,
		FailoverThreshold:  90 * time.Second,
		RetryBaseDelay:     2 * time.Second,
		RetryMaxDelay:      60 * time.Second,
		DefaultMaxAttempts: 3,
		CacheTTL:           time.Hour,
	}
}

// Deps are the gateway collaborators the engine drives.
type Deps struct {
	Logger     logging.Logger
	Agents     store.AgentStore
	Tasks      store.TaskStore
	Cache      cache.Cache
	Publisher  cache.Publisher
	Dispatcher dispatch.Dispatcher
	Metrics    *metrics.Metrics
}

// Engine owns agent and task lifecycles: it registers agents, places tasks
// with the best-fit agent, absorbs completion and failure reports, retries
// failed work, and drains the backlog as capacity frees up.
//
// A single mutex serializes every read-select-write section, so two
// concurrent AssignTask calls cannot both observe the same agent as free.
// Gateway I/O happens outside the lock, after the state transition commits
// in memory; a crash between the two writes of an operation can leave the
// store one step behind, which the periodic sweep reconciles.
type Engine struct {
	config Config
	log    logging.Logger

	agentStore store.AgentStore
	taskStore  store.TaskStore
	cache      cache.Cache
	publisher  cache.Publisher
	dispatcher dispatch.Dispatcher
	metrics    *metrics.Metrics

	mu        sync.Mutex
	agents    map[string]*models.Agent
	inflight  map[string]*models.Task
	queue     *taskQueue
	lastBeat  map[string]time.Time
	closed    bool
	running   bool
	startedAt time.Time

	assigned  int64
	completed int64
	failed    int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a coordination engine.
func New(config Config, deps Deps) *Engine {
	log := deps.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Engine{
		config:     config,
		log:        log,
		agentStore: deps.Agents,
		taskStore:  deps.Tasks,
		cache:      deps.Cache,
		publisher:  deps.Publisher,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		agents:     make(map[string]*models.Agent),
		inflight:   make(map[string]*models.Task),
		queue:      newTaskQueue(),
		lastBeat:   make(map[string]time.Time),
	}
}

// Start launches the drain, metrics, and sweep loops.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrShuttingDown
	}
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = true
	e.startedAt = time.Now()
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.mu.Unlock()

	e.wg.Add(3)
	go e.runDrain()
	go e.runMetrics()
	go e.runSweep()

	e.publish(ctx, models.NewEvent(models.EventCoordinatorInitialized, map[string]interface{}{
		"started_at": e.startedAt,
	}))
	e.log.Info("coordinator started")
	return nil
}

// RegisterAgent creates a new idle agent from a registration request,
// persists and caches it, and announces it.
func (e *Engine) RegisterAgent(ctx context.Context, reg models.AgentRegistration) (*models.Agent, error) {
	maxTasks := reg.MaxConcurrentTasks
	if maxTasks <= 0 {
		maxTasks = 1
	}

	now := time.Now()
	agent := &models.Agent{
		ID:           uuid.New().String(),
		Type:         reg.Type,
		Status:       models.AgentIdle,
		Capabilities: reg.Capabilities,
		CurrentTasks: []string{},
		Performance:  models.AgentPerformance{LastUpdated: now},
		Config: models.AgentConfig{
			MaxConcurrentTasks: maxTasks,
			WorkingHours:       reg.WorkingHours,
			Timezone:           reg.Timezone,
			Skills:             reg.Skills,
		},
		RegisteredAt: now,
		UpdatedAt:    now,
	}

	if err := e.agentStore.SaveAgent(ctx, agent); err != nil {
		return nil, fmt.Errorf("failed to persist agent registration: %w", err)
	}
	if err := e.cacheAgent(ctx, agent); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrShuttingDown
	}
	e.agents[agent.ID] = agent
	e.lastBeat[agent.ID] = now
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.RegisteredAgents.WithLabelValues(string(agent.Type)).Inc()
	}
	e.publish(ctx, models.NewAgentRegisteredEvent(agent))
	e.log.WithContext(logging.WithAgentID(ctx, agent.ID)).Info("agent registered",
		logging.String("type", string(agent.Type)))

	return agent, nil
}

// AssignTask places a task with the best-fit agent, or queues it when no
// agent qualifies. Queuing is not an error.
func (e *Engine) AssignTask(ctx context.Context, task *models.Task) error {
	start := time.Now()
	e.prepareTask(task)
	ctx = logging.WithTaskID(ctx, task.ID)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrShuttingDown
	}

	agent := selectAgent(e.agents, task)
	if agent == nil {
		task.Status = models.TaskPending
		task.UpdatedAt = time.Now()
		e.queue.Push(task)
		e.inflight[task.ID] = task
		depth := e.queue.Len()
		e.mu.Unlock()

		if e.metrics != nil {
			e.metrics.TasksQueued.Inc()
			e.metrics.QueueDepth.Set(float64(depth))
		}
		if err := e.taskStore.SaveTask(ctx, task); err != nil {
			return fmt.Errorf("failed to persist queued task: %w", err)
		}
		if err := e.cacheTask(ctx, task); err != nil {
			return err
		}
		e.publish(ctx, models.NewTaskQueuedEvent(task, "no_available_agents"))
		e.log.WithContext(ctx).Info("task queued", logging.String("kind", string(task.Kind)))
		return nil
	}

	e.attach(task, agent)
	e.assigned++
	e.mu.Unlock()

	if err := e.persistAssignment(ctx, task, agent); err != nil {
		return err
	}
	if err := e.dispatcher.Dispatch(ctx, task); err != nil {
		return fmt.Errorf("failed to dispatch task %s: %w", task.ID, err)
	}

	if e.metrics != nil {
		e.metrics.TasksAssigned.WithLabelValues(string(task.Kind)).Inc()
		e.metrics.AssignDuration.Observe(time.Since(start).Seconds())
	}
	e.publish(ctx, models.NewTaskAssignedEvent(task, agent))
	e.log.WithContext(logging.WithAgentID(ctx, agent.ID)).Info("task assigned",
		logging.String("kind", string(task.Kind)),
		logging.String("priority", string(task.Priority)))
	return nil
}

// CompleteTask marks a task done, credits its agent, and drains the queue.
func (e *Engine) CompleteTask(ctx context.Context, taskID string, result *models.TaskResult) error {
	ctx = logging.WithTaskID(ctx, taskID)

	task, err := e.getTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	e.mu.Lock()
	if live, ok := e.inflight[task.ID]; ok {
		task = live
	}
	if task.Terminal() {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrTaskTerminal, taskID, task.Status)
	}
	agent, ok := e.agents[task.AssignedAgentID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s (task %s)", ErrAgentNotFound, task.AssignedAgentID, taskID)
	}

	now := time.Now()
	task.Status = models.TaskCompleted
	task.CompletedAt = &now
	task.UpdatedAt = now
	task.AssignedAgentID = ""

	agent.RemoveTask(task.ID)
	if len(agent.CurrentTasks) == 0 {
		agent.Status = models.AgentIdle
	}
	e.creditAgent(agent, task, now, true)
	agent.UpdatedAt = now

	delete(e.inflight, task.ID)
	e.completed++
	e.mu.Unlock()

	if err := e.persistPair(ctx, task, agent); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.TasksCompleted.Inc()
	}
	e.publish(ctx, models.NewTaskCompletedEvent(task))
	fields := []logging.Field{logging.Int("attempts", task.Attempts)}
	if result != nil {
		fields = append(fields, logging.Duration("duration", result.Duration))
	}
	e.log.WithContext(ctx).Info("task completed", fields...)

	e.drainQueue(ctx)
	return nil
}

// FailTask records an execution failure. The task retries until it exhausts
// MaxAttempts, re-entering the queue with an exponential backoff delay;
// after that it fails terminally.
func (e *Engine) FailTask(ctx context.Context, taskID string, taskErr error) error {
	ctx = logging.WithTaskID(ctx, taskID)

	task, err := e.getTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	reason := "unknown error"
	if taskErr != nil {
		reason = taskErr.Error()
	}

	e.mu.Lock()
	if live, ok := e.inflight[task.ID]; ok {
		task = live
	}
	if task.Terminal() {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrTaskTerminal, taskID, task.Status)
	}

	now := time.Now()
	agent := e.agents[task.AssignedAgentID]
	if agent != nil {
		agent.RemoveTask(task.ID)
		if len(agent.CurrentTasks) == 0 {
			agent.Status = models.AgentIdle
		}
		e.creditAgent(agent, task, now, false)
		agent.UpdatedAt = now
	}

	task.Attempts++
	task.LastError = reason
	task.UpdatedAt = now
	willRetry := task.Attempts < task.MaxAttempts

	if willRetry {
		task.Status = models.TaskPending
		task.AssignedAgentID = ""
		task.NotBefore = now.Add(e.backoffDelay(task.Attempts))
		e.queue.Push(task)
		e.inflight[task.ID] = task
	} else {
		task.Status = models.TaskFailed
		task.AssignedAgentID = ""
		delete(e.inflight, task.ID)
		e.failed++
	}
	depth := e.queue.Len()
	e.mu.Unlock()

	if err := e.taskStore.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("failed to persist failed task: %w", err)
	}
	if err := e.cacheTask(ctx, task); err != nil {
		return err
	}
	if agent != nil {
		if err := e.persistAgent(ctx, agent); err != nil {
			return err
		}
	}

	if e.metrics != nil {
		e.metrics.TasksFailed.WithLabelValues(fmt.Sprintf("%t", willRetry)).Inc()
		e.metrics.QueueDepth.Set(float64(depth))
	}
	e.publish(ctx, models.NewTaskFailedEvent(task, reason, willRetry))
	e.log.WithContext(ctx).Warn("task failed",
		logging.String("reason", reason),
		logging.Int("attempts", task.Attempts),
		logging.Bool("will_retry", willRetry))
	return nil
}

// Heartbeat refreshes an agent's liveness. Channel executors call this on
// behalf of the agents doing their work. An agent that was failed over to
// the error state rejoins the pool as idle when it resumes heartbeating.
func (e *Engine) Heartbeat(ctx context.Context, agentID string) error {
	now := time.Now()

	e.mu.Lock()
	agent, ok := e.agents[agentID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	e.lastBeat[agentID] = now
	restored := agent.Status == models.AgentError
	if restored {
		agent.Status = models.AgentIdle
		agent.UpdatedAt = now
	}
	e.mu.Unlock()

	if restored {
		if err := e.persistAgent(ctx, agent); err != nil {
			return err
		}
		e.log.WithContext(logging.WithAgentID(ctx, agentID)).Info("agent rejoined after failover")
		e.drainQueue(ctx)
	}

	return e.cache.Set(ctx, agentBeatKey(agentID), now.Format(time.RFC3339), e.config.FailoverThreshold)
}

// Status returns a read-only snapshot of the engine.
func (e *Engine) Status() models.CoordinatorStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Queued tasks sit in the inflight map for lookups but belong to the
	// backlog, not the in-flight count. Count only tasks an agent holds.
	working := 0
	for _, task := range e.inflight {
		if task.Status == models.TaskAssigned || task.Status == models.TaskInProgress {
			working++
		}
	}

	status := models.CoordinatorStatus{
		Running:        e.running,
		AgentCount:     len(e.agents),
		QueueSize:      e.queue.Len(),
		InFlightTasks:  working,
		TasksAssigned:  e.assigned,
		TasksCompleted: e.completed,
		TasksFailed:    e.failed,
		StartedAt:      e.startedAt,
	}

	active := 0
	for _, agent := range e.agents {
		if agent.Status == models.AgentActive || agent.Status == models.AgentBusy {
			active++
		}
		status.Agents = append(status.Agents, models.AgentStatusSummary{
			ID:          agent.ID,
			Type:        agent.Type,
			Status:      agent.Status,
			ActiveTasks: len(agent.CurrentTasks),
			Capacity:    agent.Config.MaxConcurrentTasks,
			Completed:   agent.Performance.TasksCompleted,
			Successful:  agent.Performance.TasksSuccessful,
		})
	}
	if len(e.agents) > 0 {
		status.Utilization = float64(active) / float64(len(e.agents))
	}
	return status
}

// Shutdown stops the loops, marks every agent offline, and persists that
// state.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.running = false
	if e.cancel != nil {
		e.cancel()
	}
	agents := make([]*models.Agent, 0, len(e.agents))
	for _, agent := range e.agents {
		agent.Status = models.AgentOffline
		agent.UpdatedAt = time.Now()
		agents = append(agents, agent)
	}
	e.mu.Unlock()

	e.wg.Wait()

	var firstErr error
	for _, agent := range agents {
		if err := e.agentStore.SaveAgent(ctx, agent); err != nil {
			e.log.Error("failed to persist agent on shutdown",
				logging.String("agent_id", agent.ID), logging.Err(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	e.log.Info("coordinator stopped")
	return firstErr
}

// prepareTask fills submitter-omitted fields with defaults.
func (e *Engine) prepareTask(task *models.Task) {
	now := time.Now()
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.Priority == "" {
		task.Priority = models.MediumPriority
	}
	if task.MaxAttempts <= 0 {
		task.MaxAttempts = e.config.DefaultMaxAttempts
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.Status = models.TaskPending
	task.UpdatedAt = now
}

// attach transitions a task onto an agent. Caller holds the mutex.
func (e *Engine) attach(task *models.Task, agent *models.Agent) {
	now := time.Now()
	task.Status = models.TaskAssigned
	task.AssignedAgentID = agent.ID
	task.UpdatedAt = now
	agent.CurrentTasks = append(agent.CurrentTasks, task.ID)
	if agent.Status == models.AgentIdle {
		agent.Status = models.AgentActive
	}
	agent.UpdatedAt = now
	e.inflight[task.ID] = task
}

// creditAgent updates an agent's performance counters for a finished
// attempt. Caller holds the mutex.
func (e *Engine) creditAgent(agent *models.Agent, task *models.Task, now time.Time, success bool) {
	perf := &agent.Performance
	perf.TasksCompleted++
	if success {
		perf.TasksSuccessful++
	}
	responseMs := float64(now.Sub(task.CreatedAt).Milliseconds())
	perf.AverageResponseTime = (perf.AverageResponseTime*float64(perf.TasksCompleted-1) + responseMs) /
		float64(perf.TasksCompleted)
	perf.LastUpdated = now
}

// backoffDelay doubles the retry delay per attempt, capped at RetryMaxDelay.
func (e *Engine) backoffDelay(attempt int) time.Duration {
	delay := e.config.RetryBaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= e.config.RetryMaxDelay {
			return e.config.RetryMaxDelay
		}
	}
	if delay > e.config.RetryMaxDelay {
		delay = e.config.RetryMaxDelay
	}
	return delay
}

// drainQueue attempts to place queued tasks that now fit, up to the batch
// limit, preserving FIFO order among eligible entries.
func (e *Engine) drainQueue(ctx context.Context) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}

	batch := e.queue.PopEligible(time.Now(), e.config.DrainBatch)
	type placement struct {
		task  *models.Task
		agent *models.Agent
	}
	var placed []placement
	for _, task := range batch {
		agent := selectAgent(e.agents, task)
		if agent == nil {
			e.queue.Push(task)
			continue
		}
		e.attach(task, agent)
		e.assigned++
		placed = append(placed, placement{task: task, agent: agent})
	}
	depth := e.queue.Len()
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.QueueDepth.Set(float64(depth))
	}

	for _, p := range placed {
		taskCtx := logging.WithTaskID(ctx, p.task.ID)
		if err := e.persistAssignment(taskCtx, p.task, p.agent); err != nil {
			e.log.WithContext(taskCtx).Error("failed to persist drained assignment", logging.Err(err))
			continue
		}
		if err := e.dispatcher.Dispatch(taskCtx, p.task); err != nil {
			// The sweep will time the task out and reschedule it.
			e.log.WithContext(taskCtx).Error("failed to dispatch drained task", logging.Err(err))
			continue
		}
		if e.metrics != nil {
			e.metrics.TasksAssigned.WithLabelValues(string(p.task.Kind)).Inc()
		}
		e.publish(taskCtx, models.NewTaskAssignedEvent(p.task, p.agent))
	}
}

// DrainOnce runs a single drain pass outside the periodic loop.
func (e *Engine) DrainOnce(ctx context.Context) {
	e.drainQueue(ctx)
}

// runDrain periodically retries queued tasks.
func (e *Engine) runDrain() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.drainQueue(e.ctx)
		}
	}
}

// runMetrics periodically recomputes utilization and publishes a snapshot.
// Publication is best effort.
func (e *Engine) runMetrics() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.MetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			status := e.Status()
			if e.metrics != nil {
				e.metrics.AgentUtilization.Set(status.Utilization)
				e.metrics.QueueDepth.Set(float64(status.QueueSize))
			}
			if data, err := statusJSON(status); err == nil {
				if err := e.cache.Set(e.ctx, "coordinator:status", data, 2*e.config.MetricsInterval); err != nil {
					e.log.Warn("failed to cache status snapshot", logging.Err(err))
				}
			}
			e.publish(e.ctx, models.NewCoordinatorMetricsEvent(status))
		}
	}
}

// runSweep times out stalled tasks and fails over agents that stopped
// heartbeating.
func (e *Engine) runSweep() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.sweep(e.ctx)
		}
	}
}

func (e *Engine) sweep(ctx context.Context) {
	now := time.Now()

	e.mu.Lock()
	var timedOut []string
	for id, task := range e.inflight {
		if task.Status != models.TaskAssigned && task.Status != models.TaskInProgress {
			continue
		}
		if now.Sub(task.UpdatedAt) > e.config.TaskTimeout {
			timedOut = append(timedOut, id)
		}
	}
	var stale []string
	for id, beat := range e.lastBeat {
		agent, ok := e.agents[id]
		if !ok || agent.Status == models.AgentOffline || agent.Status == models.AgentError {
			continue
		}
		if now.Sub(beat) > e.config.FailoverThreshold {
			stale = append(stale, id)
		}
	}
	e.mu.Unlock()

	for _, id := range timedOut {
		if err := e.FailTask(ctx, id, errTaskTimeout); err != nil {
			e.log.Error("failed to time out task", logging.String("task_id", id), logging.Err(err))
		}
	}
	for _, id := range stale {
		// Heartbeats may land on another instance of the engine. The beat
		// key in the shared cache expires on the failover threshold, so a
		// live entry means the agent is healthy even when our in-memory
		// clock says otherwise.
		raw, err := e.cache.Get(ctx, agentBeatKey(id))
		if err != nil {
			e.log.Warn("failed to read agent beat key", logging.String("agent_id", id), logging.Err(err))
		}
		if raw != "" {
			e.mu.Lock()
			e.lastBeat[id] = now
			e.mu.Unlock()
			continue
		}
		e.failAgent(ctx, id)
	}
}

// failAgent marks a stale agent errored and requeues its in-flight work.
func (e *Engine) failAgent(ctx context.Context, agentID string) {
	e.mu.Lock()
	agent, ok := e.agents[agentID]
	if !ok {
		e.mu.Unlock()
		return
	}
	agent.Status = models.AgentError
	agent.UpdatedAt = time.Now()

	var requeued []*models.Task
	for _, taskID := range agent.CurrentTasks {
		task, ok := e.inflight[taskID]
		if !ok {
			continue
		}
		task.Status = models.TaskPending
		task.AssignedAgentID = ""
		task.UpdatedAt = time.Now()
		e.queue.Push(task)
		requeued = append(requeued, task)
	}
	agent.CurrentTasks = []string{}
	e.mu.Unlock()

	if err := e.persistAgent(ctx, agent); err != nil {
		e.log.Error("failed to persist errored agent", logging.String("agent_id", agentID), logging.Err(err))
	}
	for _, task := range requeued {
		taskCtx := logging.WithTaskID(ctx, task.ID)
		if err := e.taskStore.SaveTask(taskCtx, task); err != nil {
			e.log.WithContext(taskCtx).Error("failed to persist requeued task", logging.Err(err))
		}
		e.publish(taskCtx, models.NewTaskQueuedEvent(task, "agent_failover"))
	}
	e.log.Warn("agent failed over", logging.String("agent_id", agentID),
		logging.Int("requeued_tasks", len(requeued)))
}

// persistAssignment writes both sides of a placement.
func (e *Engine) persistAssignment(ctx context.Context, task *models.Task, agent *models.Agent) error {
	if err := e.taskStore.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("failed to persist assigned task: %w", err)
	}
	if err := e.persistAgent(ctx, agent); err != nil {
		return err
	}
	return e.cacheTask(ctx, task)
}

// persistPair writes a task and its agent after completion.
func (e *Engine) persistPair(ctx context.Context, task *models.Task, agent *models.Agent) error {
	if err := e.taskStore.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("failed to persist task: %w", err)
	}
	if err := e.cacheTask(ctx, task); err != nil {
		return err
	}
	return e.persistAgent(ctx, agent)
}

func (e *Engine) persistAgent(ctx context.Context, agent *models.Agent) error {
	if err := e.agentStore.SaveAgent(ctx, agent); err != nil {
		return fmt.Errorf("failed to persist agent %s: %w", agent.ID, err)
	}
	return e.cacheAgent(ctx, agent)
}

// publish dispatches events after a state mutation commits. Broadcast is
// informational, so failures are logged and swallowed.
func (e *Engine) publish(ctx context.Context, events ...models.Event) {
	for _, event := range events {
		if err := e.publisher.PublishEvent(ctx, event); err != nil {
			e.log.Warn("failed to publish event",
				logging.String("event", string(event.Name)), logging.Err(err))
		}
	}
}
