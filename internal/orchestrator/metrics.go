package orchestrator

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report workflow activity.
type Metrics struct {
	taskDuration    *prometheus.HistogramVec
	taskFailures    *prometheus.CounterVec
	taskRetries     *prometheus.CounterVec
	workflowsActive prometheus.Gauge
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// defaultMetrics returns the package-level metrics instance registered with
// the global Prometheus registry. The collectors are created only once to
// avoid duplicate registration panics when multiple orchestrators exist in
// one process (the service spawns one per workflow submission).
func defaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Pass a fresh registry when unique metric names are required, for example
// in tests. Registration errors other than duplicates panic.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	taskDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "recast",
			Subsystem: "orchestrator",
			Name:      "task_duration_seconds",
			Help:      "Duration of each agent task execution.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"agent", "status"},
	)
	taskFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recast",
			Subsystem: "orchestrator",
			Name:      "task_failures_total",
			Help:      "Agent task executions that failed after all retries.",
		},
		[]string{"agent"},
	)
	taskRetries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recast",
			Subsystem: "orchestrator",
			Name:      "task_retries_total",
			Help:      "Number of agent task retries.",
		},
		[]string{"agent"},
	)
	workflowsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "recast",
			Subsystem: "orchestrator",
			Name:      "workflows_active",
			Help:      "Workflows currently executing.",
		},
	)

	collectors := []prometheus.Collector{taskDuration, taskFailures, taskRetries, workflowsActive}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				switch target := collector.(type) {
				case *prometheus.HistogramVec:
					taskDuration = already.ExistingCollector.(*prometheus.HistogramVec)
				case *prometheus.CounterVec:
					switch target {
					case taskFailures:
						taskFailures = already.ExistingCollector.(*prometheus.CounterVec)
					case taskRetries:
						taskRetries = already.ExistingCollector.(*prometheus.CounterVec)
					}
				case prometheus.Gauge:
					workflowsActive = already.ExistingCollector.(prometheus.Gauge)
				}
				continue
			}
			panic(err)
		}
	}

	return &Metrics{
		taskDuration:    taskDuration,
		taskFailures:    taskFailures,
		taskRetries:     taskRetries,
		workflowsActive: workflowsActive,
	}
}

// ObserveTaskDuration records the time spent in one agent task.
func (m *Metrics) ObserveTaskDuration(agent, status string, duration time.Duration) {
	if m == nil || m.taskDuration == nil {
		return
	}
	m.taskDuration.WithLabelValues(agent, status).Observe(duration.Seconds())
}

// IncTaskFailure counts a task that failed after exhausting its retries.
func (m *Metrics) IncTaskFailure(agent string) {
	if m == nil || m.taskFailures == nil {
		return
	}
	m.taskFailures.WithLabelValues(agent).Inc()
}

// IncTaskRetry counts a task retry.
func (m *Metrics) IncTaskRetry(agent string) {
	if m == nil || m.taskRetries == nil {
		return
	}
	m.taskRetries.WithLabelValues(agent).Inc()
}

// IncActiveWorkflows marks a workflow as running.
func (m *Metrics) IncActiveWorkflows() {
	if m == nil || m.workflowsActive == nil {
		return
	}
	m.workflowsActive.Inc()
}

// DecActiveWorkflows marks a workflow as finished.
func (m *Metrics) DecActiveWorkflows() {
	if m == nil || m.workflowsActive == nil {
		return
	}
	m.workflowsActive.Dec()
}
