package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "issueradar"

// Prometheus implements Metrics on its own registry so several instances can
// coexist (tests, embedded use).
type Prometheus struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	clusterRuns      *prometheus.CounterVec
	clusterDuration  prometheus.Histogram
	mentionsAssigned prometheus.Counter
	issuesCreated    prometheus.Counter

	riskRuns     *prometheus.CounterVec
	riskDuration prometheus.Histogram
	issuesScored prometheus.Counter

	ingestMentions *prometheus.CounterVec
	ingestSkipped  *prometheus.CounterVec
	ingestDuration *prometheus.HistogramVec

	dbConnections prometheus.Gauge
	dbQueries     *prometheus.CounterVec
}

// NewPrometheus registers all collectors on a fresh registry
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Prometheus{
		registry: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "endpoint", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		clusterRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cluster_runs_total",
			Help:      "Brand clustering runs by outcome",
		}, []string{"status"}),
		clusterDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cluster_run_duration_seconds",
			Help:      "Time to cluster one brand",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		mentionsAssigned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mentions_assigned_total",
			Help:      "Mentions attached to an existing issue",
		}),
		issuesCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issues_created_total",
			Help:      "Issues spawned by clustering",
		}),
		riskRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_runs_total",
			Help:      "Brand scoring runs by outcome",
		}, []string{"status"}),
		riskDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "risk_run_duration_seconds",
			Help:      "Time to score one brand",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		issuesScored: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issues_scored_total",
			Help:      "Issues that received a risk score",
		}),
		ingestMentions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_mentions_total",
			Help:      "New mentions stored by source",
		}, []string{"source"}),
		ingestSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_skipped_total",
			Help:      "Feed items skipped as duplicate or off-topic",
		}, []string{"source"}),
		ingestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_fetch_duration_seconds",
			Help:      "Time to fetch and store one source",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		dbConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_active",
			Help:      "Acquired Postgres connections",
		}),
		dbQueries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_queries_total",
			Help:      "Database calls by operation and status",
		}, []string{"operation", "status"}),
	}
}

func (p *Prometheus) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	p.httpRequests.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	p.httpDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func (p *Prometheus) RecordClusterRun(status string, assigned, created int, duration time.Duration) {
	p.clusterRuns.WithLabelValues(status).Inc()
	p.clusterDuration.Observe(duration.Seconds())
	p.mentionsAssigned.Add(float64(assigned))
	p.issuesCreated.Add(float64(created))
}

func (p *Prometheus) RecordRiskRun(status string, issuesScored int, duration time.Duration) {
	p.riskRuns.WithLabelValues(status).Inc()
	p.riskDuration.Observe(duration.Seconds())
	p.issuesScored.Add(float64(issuesScored))
}

func (p *Prometheus) RecordIngestRun(source string, newMentions, skipped int, duration time.Duration) {
	p.ingestMentions.WithLabelValues(source).Add(float64(newMentions))
	p.ingestSkipped.WithLabelValues(source).Add(float64(skipped))
	p.ingestDuration.WithLabelValues(source).Observe(duration.Seconds())
}

func (p *Prometheus) SetDBConnectionsActive(count float64) {
	p.dbConnections.Set(count)
}

func (p *Prometheus) RecordDBQuery(operation, status string) {
	p.dbQueries.WithLabelValues(operation, status).Inc()
}

// Handler serves this instance's registry
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}
