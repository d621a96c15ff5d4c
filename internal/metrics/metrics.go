package metrics

import (
	"net/http"
	"time"
)

// Metrics interface for dependency injection
type Metrics interface {
	RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration)
	RecordClusterRun(status string, assigned, created int, duration time.Duration)
	RecordRiskRun(status string, issuesScored int, duration time.Duration)
	RecordIngestRun(source string, newMentions, skipped int, duration time.Duration)
	SetDBConnectionsActive(count float64)
	RecordDBQuery(operation, status string)
	Handler() http.Handler
}

// NoOpMetrics provides a no-op implementation
type NoOpMetrics struct{}

func (m *NoOpMetrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
}
func (m *NoOpMetrics) RecordClusterRun(status string, assigned, created int, duration time.Duration) {}
func (m *NoOpMetrics) RecordRiskRun(status string, issuesScored int, duration time.Duration)         {}
func (m *NoOpMetrics) RecordIngestRun(source string, newMentions, skipped int, duration time.Duration) {
}
func (m *NoOpMetrics) SetDBConnectionsActive(count float64)   {}
func (m *NoOpMetrics) RecordDBQuery(operation, status string) {}
func (m *NoOpMetrics) Handler() http.Handler                  { return http.NotFoundHandler() }

// Global metrics instance
var globalMetrics Metrics = &NoOpMetrics{}

// Init switches the global instance to Prometheus when enabled
func Init(enabled bool) Metrics {
	if enabled {
		globalMetrics = NewPrometheus()
	} else {
		globalMetrics = &NoOpMetrics{}
	}
	return globalMetrics
}

// Set replaces the global instance
func Set(m Metrics) {
	if m == nil {
		m = &NoOpMetrics{}
	}
	globalMetrics = m
}

// Handler returns the metrics handler
func Handler() http.Handler {
	return globalMetrics.Handler()
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	globalMetrics.RecordHTTPRequest(method, endpoint, statusCode, duration)
}

// RecordClusterRun records one brand clustering run
func RecordClusterRun(status string, assigned, created int, duration time.Duration) {
	globalMetrics.RecordClusterRun(status, assigned, created, duration)
}

// RecordRiskRun records one brand scoring run
func RecordRiskRun(status string, issuesScored int, duration time.Duration) {
	globalMetrics.RecordRiskRun(status, issuesScored, duration)
}

// RecordIngestRun records one source fetch
func RecordIngestRun(source string, newMentions, skipped int, duration time.Duration) {
	globalMetrics.RecordIngestRun(source, newMentions, skipped, duration)
}

// SetDBConnectionsActive sets the number of active database connections
func SetDBConnectionsActive(count float64) {
	globalMetrics.SetDBConnectionsActive(count)
}

// RecordDBQuery records database query metrics
func RecordDBQuery(operation, status string) {
	globalMetrics.RecordDBQuery(operation, status)
}
