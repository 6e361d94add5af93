package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments for both engines.
type Metrics struct {
	registry *prometheus.Registry

	TasksAssigned  *prometheus.CounterVec
	TasksCompleted prometheus.Counter
	TasksFailed    *prometheus.CounterVec
	TasksQueued    prometheus.Counter

	QueueDepth       prometheus.Gauge
	AgentUtilization prometheus.Gauge
	RegisteredAgents *prometheus.GaugeVec

	AssignDuration prometheus.Histogram

	RiskScore         prometheus.Histogram
	ContextCacheHits  *prometheus.CounterVec
	ContextRebuilds   prometheus.Counter
	ContextBuildError prometheus.Counter
}

// New creates and registers the full instrument set on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		TasksAssigned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collectflow_tasks_assigned_total",
			Help: "Tasks assigned to agents, by task kind.",
		}, []string{"kind"}),
		TasksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collectflow_tasks_completed_total",
			Help: "Tasks completed successfully.",
		}),
		TasksFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collectflow_tasks_failed_total",
			Help: "Task failures, by whether a retry was scheduled.",
		}, []string{"retried"}),
		TasksQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collectflow_tasks_queued_total",
			Help: "Tasks deferred because no agent was available.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "collectflow_task_queue_depth",
			Help: "Tasks currently waiting in the queue.",
		}),
		AgentUtilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "collectflow_agent_utilization",
			Help: "Fraction of registered agents currently active.",
		}),
		RegisteredAgents: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "collectflow_registered_agents",
			Help: "Registered agents, by channel type.",
		}, []string{"type"}),
		AssignDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "collectflow_assign_duration_seconds",
			Help:    "Time to place a task with an agent.",
			Buckets: prometheus.DefBuckets,
		}),
		RiskScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "collectflow_risk_score",
			Help:    "Distribution of computed customer risk scores.",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		ContextCacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collectflow_context_cache_total",
			Help: "Customer context cache lookups, by result.",
		}, []string{"result"}),
		ContextRebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collectflow_context_rebuilds_total",
			Help: "Customer contexts rebuilt from history.",
		}),
		ContextBuildError: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collectflow_context_build_errors_total",
			Help: "Customer context rebuilds that failed.",
		}),
	}

	registry.MustRegister(
		m.TasksAssigned,
		m.TasksCompleted,
		m.TasksFailed,
		m.TasksQueued,
		m.QueueDepth,
		m.AgentUtilization,
		m.RegisteredAgents,
		m.AssignDuration,
		m.RiskScore,
		m.ContextCacheHits,
		m.ContextRebuilds,
		m.ContextBuildError,
	)

	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr. Blocks until the server exits.
func (m *Metrics) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}
