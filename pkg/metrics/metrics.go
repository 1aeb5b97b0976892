package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ReqCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailyforge_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ReqDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "dailyforge_request_duration_seconds",
			Help: "Request duration seconds",
		},
		[]string{"method", "path"},
	)

	ErrorCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailyforge_errors_total",
			Help: "Total app errors",
		},
		[]string{"handler", "code"},
	)

	// CompletionAttempts counts task completion submissions by outcome:
	// credited, already_completed or rejected.
	CompletionAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailyforge_task_completions_total",
			Help: "Task completion submissions by outcome",
		},
		[]string{"outcome"},
	)

	PointsAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailyforge_points_awarded_total",
			Help: "Points credited to users by trigger",
		},
		[]string{"trigger"},
	)
)

var registerOnce sync.Once

// InitMetrics registers the collectors with the default registry. Safe to call twice.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(ReqCount, ReqDuration, ErrorCount, CompletionAttempts, PointsAwarded)
	})
}
