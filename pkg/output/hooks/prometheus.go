package hooks

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/riskgate/riskgate/pkg/defaults"
	"github.com/riskgate/riskgate/pkg/output/dispatcher"
	"github.com/riskgate/riskgate/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*PrometheusHook)(nil)

// PrometheusHook exposes gate metrics for Prometheus scraping.
// It starts an HTTP server that serves metrics at the configured path.
// Metrics include counters for runs/findings/violations/errors, gauges
// for the current risk score and regression delta, and a histogram for
// run duration.
type PrometheusHook struct {
	server   *http.Server
	registry *prometheus.Registry
	opts     PrometheusOptions

	// Counters
	runsTotal       *prometheus.CounterVec
	findingsTotal   *prometheus.CounterVec
	violationsTotal *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec

	// Gauges
	riskScore       *prometheus.GaugeVec
	regressionDelta *prometheus.GaugeVec

	// Histograms
	runDurationSeconds *prometheus.HistogramVec

	// Internal tracking
	startTime time.Time
	mu        sync.Mutex
	closed    bool
}

// PrometheusOptions configures the Prometheus hook behavior.
type PrometheusOptions struct {
	// Addr for the metrics server (default: ":9090").
	Addr string

	// Path for the metrics endpoint (default: "/metrics").
	Path string

	// ReadTimeout for the HTTP server (default: 5s).
	ReadTimeout time.Duration

	// WriteTimeout for the HTTP server (default: 10s).
	WriteTimeout time.Duration
}

// NewPrometheusHook creates a Prometheus hook that exposes metrics at
// the configured endpoint. The metrics server starts immediately and
// runs until Close() is called.
func NewPrometheusHook(opts PrometheusOptions) (*PrometheusHook, error) {
	// Apply defaults
	if opts.Addr == "" {
		opts.Addr = ":9090"
	}
	if opts.Path == "" {
		opts.Path = "/metrics"
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = defaults.TimeoutHTTPRead
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = defaults.TimeoutHTTPWrite
	}

	// Custom registry so gate metrics never mix with a host process
	registry := prometheus.NewRegistry()

	hook := &PrometheusHook{
		registry:  registry,
		opts:      opts,
		startTime: time.Now(),
	}

	if err := hook.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	if err := hook.startServer(); err != nil {
		return nil, fmt.Errorf("failed to start metrics server: %w", err)
	}

	return hook, nil
}

// initMetrics creates and registers all Prometheus metrics.
func (h *PrometheusHook) initMetrics() error {
	// Counters
	h.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskgate_runs_total",
			Help: "Total number of gate runs by verdict",
		},
		[]string{"app", "status"},
	)

	h.findingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskgate_findings_total",
			Help: "Total number of findings evaluated",
		},
		[]string{"app", "severity"},
	)

	h.violationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskgate_violations_total",
			Help: "Total number of policy threshold violations",
		},
		[]string{"app", "tier"},
	)

	h.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskgate_errors_total",
			Help: "Total number of errors during gate runs",
		},
		[]string{"stage", "type"},
	)

	// Gauges
	h.riskScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "riskgate_risk_score",
			Help: "Weighted risk score of the latest evaluation",
		},
		[]string{"app"},
	)

	h.regressionDelta = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "riskgate_regression_delta",
			Help: "Risk score delta against the stored baseline",
		},
		[]string{"app"},
	)

	// Histograms
	h.runDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "riskgate_run_duration_seconds",
			Help:    "Gate run duration distribution in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
		[]string{"app"},
	)

	// Register all metrics
	collectors := []prometheus.Collector{
		h.runsTotal,
		h.findingsTotal,
		h.violationsTotal,
		h.errorsTotal,
		h.riskScore,
		h.regressionDelta,
		h.runDurationSeconds,
	}

	for _, c := range collectors {
		if err := h.registry.Register(c); err != nil {
			return err
		}
	}

	return nil
}

// startServer starts the HTTP server for metrics.
func (h *PrometheusHook) startServer() error {
	mux := http.NewServeMux()
	mux.Handle(h.opts.Path, promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	h.server = &http.Server{
		Addr:         h.opts.Addr,
		Handler:      mux,
		ReadTimeout:  h.opts.ReadTimeout,
		WriteTimeout: h.opts.WriteTimeout,
	}

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("prometheus: metrics server error: %v", err)
		}
	}()

	return nil
}

// OnEvent processes events and updates Prometheus metrics.
func (h *PrometheusHook) OnEvent(ctx context.Context, event events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	switch e := event.(type) {
	case *events.FindingEvent:
		return h.handleFinding(e)
	case *events.EvaluationEvent:
		return h.handleEvaluation(e)
	case *events.ViolationEvent:
		return h.handleViolation(e)
	case *events.RegressionEvent:
		return h.handleRegression(e)
	case *events.SummaryEvent:
		return h.handleSummary(e)
	case *events.ErrorEvent:
		return h.handleError(e)
	default:
		return nil
	}
}

// handleFinding counts one finding into its severity tier.
func (h *PrometheusHook) handleFinding(e *events.FindingEvent) error {
	h.findingsTotal.WithLabelValues(labelValue(e.AppName), string(e.Finding.Severity)).Inc()
	return nil
}

// handleEvaluation records the score of the latest verdict.
func (h *PrometheusHook) handleEvaluation(e *events.EvaluationEvent) error {
	h.riskScore.WithLabelValues(labelValue(e.AppName)).Set(float64(e.RiskScore))
	return nil
}

// handleViolation counts one exceeded threshold. The aggregate risk
// score violation has no tier and lands in "score".
func (h *PrometheusHook) handleViolation(e *events.ViolationEvent) error {
	tier := string(e.Tier)
	if tier == "" {
		tier = "score"
	}
	h.violationsTotal.WithLabelValues(labelValue(e.AppName), tier).Inc()
	return nil
}

// handleRegression records the delta against the baseline.
func (h *PrometheusHook) handleRegression(e *events.RegressionEvent) error {
	h.regressionDelta.WithLabelValues(labelValue(e.AppName)).Set(float64(e.Delta))
	return nil
}

// handleSummary counts the run under its verdict and observes timing.
func (h *PrometheusHook) handleSummary(e *events.SummaryEvent) error {
	app := labelValue(e.AppName)
	h.runsTotal.WithLabelValues(app, string(e.Verdict.Status)).Inc()
	if e.Timing.DurationSec > 0 {
		h.runDurationSeconds.WithLabelValues(app).Observe(e.Timing.DurationSec)
	}
	return nil
}

// handleError counts an error under its stage and type.
func (h *PrometheusHook) handleError(e *events.ErrorEvent) error {
	stage := e.Stage
	if stage == "" {
		stage = "unknown"
	}
	h.errorsTotal.WithLabelValues(stage, e.ErrorType).Inc()
	return nil
}

// EventTypes returns the event types this hook handles.
func (h *PrometheusHook) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventTypeFinding,
		events.EventTypeEvaluation,
		events.EventTypeViolation,
		events.EventTypeRegression,
		events.EventTypeSummary,
		events.EventTypeError,
	}
}

// Close shuts down the metrics server and releases resources.
func (h *PrometheusHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	if h.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), defaults.TimeoutFlush)
		defer cancel()
		return h.server.Shutdown(ctx)
	}

	return nil
}

// MetricsAddr returns the address where metrics are served.
// Useful for testing and logging.
func (h *PrometheusHook) MetricsAddr() string {
	addr := h.opts.Addr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + h.opts.Path
}

// labelValue keeps metric labels non-empty so series stay queryable.
func labelValue(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
