// Package metrics exposes Prometheus collectors for the pipeline stages, the external
// services they call and the HTTP API.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/genepilepsy-guide/internal/domain"
)

// Service labels for calls that do not go through pkg/external.
const (
	ServiceLLM       = "llm"
	ServiceEmbedding = "embedding"
)

// Metrics holds every collector, registered on one registry.
type Metrics struct {
	gatherer prometheus.Gatherer

	stageDuration     *prometheus.HistogramVec
	externalRequests  *prometheus.CounterVec
	syndromesResolved prometheus.Counter

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge
}

// New registers the collectors on a fresh registry that also carries the Go and process
// collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the collectors on reg and serves them from gatherer.
func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		gatherer: gatherer,
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "genepi_stage_duration_seconds",
				Help:    "Pipeline stage duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),
		externalRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "genepi_external_requests_total",
				Help: "Total number of external service requests by outcome",
			},
			[]string{"service", "outcome"},
		),
		syndromesResolved: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "genepi_syndromes_resolved_total",
				Help: "Total number of epilepsy syndromes resolved from variant lookups",
			},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "genepi_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "genepi_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60, 180},
			},
			[]string{"method", "path"},
		),
		httpRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "genepi_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),
	}
}

// Handler returns the Prometheus scrape handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveStage records a pipeline stage duration.
func (m *Metrics) ObserveStage(stage string, elapsed time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// ObserveSyndromes adds resolved syndromes to the running total.
func (m *Metrics) ObserveSyndromes(count int) {
	m.syndromesResolved.Add(float64(count))
}

// ObserveExternal counts one external request outcome.
func (m *Metrics) ObserveExternal(service, outcome string) {
	m.externalRequests.WithLabelValues(service, outcome).Inc()
}

// GinMiddleware records request counts, durations and in-flight requests. Paths are
// labelled with the route template to keep cardinality bounded.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.httpRequestsInFlight.Inc()
		defer m.httpRequestsInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// LanguageModel wraps model so each completion is counted.
func (m *Metrics) LanguageModel(model domain.LanguageModel) domain.LanguageModel {
	return &instrumentedModel{next: model, metrics: m}
}

// Embedder wraps embedder so each embedding request is counted.
func (m *Metrics) Embedder(embedder domain.Embedder) domain.Embedder {
	return &instrumentedEmbedder{next: embedder, metrics: m}
}

type instrumentedModel struct {
	next    domain.LanguageModel
	metrics *Metrics
}

func (i *instrumentedModel) Name() string { return i.next.Name() }

func (i *instrumentedModel) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	out, err := i.next.Complete(ctx, req)
	i.metrics.ObserveExternal(ServiceLLM, outcome(err, out == ""))
	return out, err
}

type instrumentedEmbedder struct {
	next    domain.Embedder
	metrics *Metrics
}

func (i *instrumentedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vector, err := i.next.Embed(ctx, text)
	i.metrics.ObserveExternal(ServiceEmbedding, outcome(err, len(vector) == 0))
	return vector, err
}

func outcome(err error, empty bool) string {
	switch {
	case err != nil:
		return "error"
	case empty:
		return "empty"
	default:
		return "success"
	}
}
