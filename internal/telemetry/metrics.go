package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	TransitionsApplied  = prometheus.NewCounter(prometheus.CounterOpts{Name: "taskboard_transitions_total", Help: "Accepted lifecycle transitions"})
	TransitionsInvalid  = prometheus.NewCounter(prometheus.CounterOpts{Name: "taskboard_invalid_transitions_total", Help: "Transition attempts rejected by the legal-transition table"})
	TransitionConflicts = prometheus.NewCounter(prometheus.CounterOpts{Name: "taskboard_transition_conflicts_total", Help: "Transitions rejected by the optimistic-concurrency check"})
	EventsAppended      = prometheus.NewCounter(prometheus.CounterOpts{Name: "taskboard_events_total", Help: "Lifecycle events appended"})
	EngineCalls         = prometheus.NewCounter(prometheus.CounterOpts{Name: "taskboard_engine_calls_total", Help: "Calls made to the external risk/generation engine"})
	EngineFailures      = prometheus.NewCounter(prometheus.CounterOpts{Name: "taskboard_engine_failures_total", Help: "Engine calls that returned a non-success response"})
	RateLimitRejects    = prometheus.NewCounter(prometheus.CounterOpts{Name: "taskboard_rate_limit_rejects_total", Help: "Engine trigger requests rejected by the rate limiter"})
	OverdueGauge        = prometheus.NewGauge(prometheus.GaugeOpts{Name: "taskboard_overdue_tasks", Help: "Overdue tasks in the last composed board"})
	DueTodayGauge       = prometheus.NewGauge(prometheus.GaugeOpts{Name: "taskboard_due_today_tasks", Help: "Due-today tasks in the last composed board"})
)

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			TransitionsApplied,
			TransitionsInvalid,
			TransitionConflicts,
			EventsAppended,
			EngineCalls,
			EngineFailures,
			RateLimitRejects,
			OverdueGauge,
			DueTodayGauge,
		)
	})
	return promhttp.Handler()
}
