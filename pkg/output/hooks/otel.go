package hooks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/riskgate/riskgate/pkg/defaults"
	"github.com/riskgate/riskgate/pkg/output/dispatcher"
	"github.com/riskgate/riskgate/pkg/output/events"
	"github.com/riskgate/riskgate/pkg/policy"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*OTelHook)(nil)

// OTelHook exports gate telemetry to an OpenTelemetry collector.
// Each run becomes one root span; verdicts, violations, and the
// regression check are recorded as span events with attributes.
type OTelHook struct {
	opts           OTelOptions
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer

	// Active span tracking
	mu       sync.Mutex
	rootSpan trace.Span
	rootCtx  context.Context
	closed   bool

	// Run metadata for attributes
	runID     string
	appName   string
	startTime time.Time
}

// OTelOptions configures the OpenTelemetry hook behavior.
type OTelOptions struct {
	// Endpoint is the OTLP endpoint (e.g., "localhost:4317").
	Endpoint string

	// ServiceName is the service name for traces (default: "riskgate").
	ServiceName string

	// Insecure uses insecure connection (no TLS).
	Insecure bool

	// Headers contains additional headers for the OTLP exporter.
	Headers map[string]string

	// ShutdownTimeout is the timeout for graceful shutdown (default: 5s).
	ShutdownTimeout time.Duration

	// ConnectionTimeout is the timeout for establishing connection (default: 10s).
	ConnectionTimeout time.Duration
}

// NewOTelHook creates a new OpenTelemetry hook that exports telemetry to the configured endpoint.
// The exporter connects immediately but handles connection failures gracefully without blocking runs.
func NewOTelHook(opts OTelOptions) (*OTelHook, error) {
	// Apply defaults
	if opts.ServiceName == "" {
		opts.ServiceName = defaults.ToolName
	}
	if opts.Endpoint == "" {
		opts.Endpoint = "localhost:4317"
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = defaults.TimeoutFlush
	}
	if opts.ConnectionTimeout == 0 {
		opts.ConnectionTimeout = defaults.TimeoutBaselineIO
	}

	// Build gRPC options
	grpcOpts := []grpc.DialOption{}
	if opts.Insecure {
		grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	// Build exporter options
	exporterOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(opts.Endpoint),
		otlptracegrpc.WithDialOption(grpcOpts...),
	}

	if opts.Insecure {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
	}

	if len(opts.Headers) > 0 {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithHeaders(opts.Headers))
	}

	// Create exporter with context timeout for connection
	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectionTimeout)
	defer cancel()

	exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, err
	}

	// Create resource with service info (avoid merging with Default to prevent schema conflicts)
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(opts.ServiceName),
		semconv.ServiceVersion(defaults.Version),
		attribute.String("service.component", "gate"),
	)

	// Create tracer provider with batch processor for efficiency
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	// Set as global provider
	otel.SetTracerProvider(tracerProvider)

	hook := &OTelHook{
		opts:           opts,
		tracerProvider: tracerProvider,
		tracer:         tracerProvider.Tracer("riskgate/gate"),
		startTime:      time.Now(),
	}

	return hook, nil
}

// OnEvent processes events and exports telemetry to the OpenTelemetry collector.
func (h *OTelHook) OnEvent(ctx context.Context, event events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	switch e := event.(type) {
	case *events.StartEvent:
		return h.handleStart(ctx, e)
	case *events.EvaluationEvent:
		return h.handleEvaluation(e)
	case *events.ViolationEvent:
		return h.handleViolation(e)
	case *events.RegressionEvent:
		return h.handleRegression(e)
	case *events.BaselineEvent:
		return h.handleBaseline(e)
	case *events.SummaryEvent:
		return h.handleSummary(e)
	case *events.CompleteEvent:
		return h.handleComplete(e)
	default:
		return nil
	}
}

// handleStart creates the root span for the run.
func (h *OTelHook) handleStart(ctx context.Context, start *events.StartEvent) error {
	h.runID = start.RunID()
	h.appName = start.AppName
	h.startTime = start.Timestamp()

	// Create root span for the entire gate run
	spanCtx, span := h.tracer.Start(ctx, "riskgate.gate",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run_id", h.runID),
			attribute.String("app", h.appName),
			attribute.String("policy_reference", start.PolicyReference),
			attribute.Int("total_findings", start.TotalFindings),
			attribute.Float64("tolerance", start.Config.Tolerance),
			attribute.Bool("tolerance_pct", start.Config.TolerancePct),
			attribute.Bool("fail_on_warn", start.Config.FailOnWarn),
		),
	)

	h.rootSpan = span
	h.rootCtx = spanCtx

	// Add span event for run start
	span.AddEvent("gate_started", trace.WithAttributes(
		attribute.String("app", h.appName),
		attribute.Int("total_findings", start.TotalFindings),
	))

	return nil
}

// handleEvaluation records the verdict as a span event.
func (h *OTelHook) handleEvaluation(eval *events.EvaluationEvent) error {
	if h.rootSpan == nil {
		return nil
	}

	h.rootSpan.AddEvent("verdict_computed", trace.WithAttributes(
		attribute.String("run_id", h.runID),
		attribute.String("app", eval.AppName),
		attribute.String("status", string(eval.Status)),
		attribute.String("rule", eval.Rule),
		attribute.Int("risk_score", eval.RiskScore),
		attribute.Int("critical", eval.SeverityCounts.Critical),
		attribute.Int("high", eval.SeverityCounts.High),
		attribute.Int("medium", eval.SeverityCounts.Medium),
		attribute.Int("low", eval.SeverityCounts.Low),
		attribute.Int("info", eval.SeverityCounts.Info),
	))

	// Set span status to error on a blocking verdict
	if eval.Status == policy.StatusFail {
		h.rootSpan.SetStatus(codes.Error, "Gate verdict FAIL")
	}

	return nil
}

// handleViolation records an exceeded threshold with its priority.
func (h *OTelHook) handleViolation(violation *events.ViolationEvent) error {
	if h.rootSpan == nil {
		return nil
	}

	h.rootSpan.AddEvent("policy_violation", trace.WithAttributes(
		attribute.String("run_id", h.runID),
		attribute.String("app", violation.AppName),
		attribute.String("rule", violation.Rule),
		attribute.String("tier", string(violation.Tier)),
		attribute.String("message", violation.Message),
		attribute.Int("count", violation.Count),
		attribute.String("priority", violation.Priority),
	))

	return nil
}

// handleRegression records the guard outcome as a span event.
func (h *OTelHook) handleRegression(reg *events.RegressionEvent) error {
	if h.rootSpan == nil {
		return nil
	}

	h.rootSpan.AddEvent("regression_check", trace.WithAttributes(
		attribute.String("run_id", h.runID),
		attribute.String("app", reg.AppName),
		attribute.Bool("accepted", reg.Accepted),
		attribute.Bool("first_run", reg.FirstRun),
		attribute.Int("baseline_score", reg.BaselineScore),
		attribute.Int("current_score", reg.CurrentScore),
		attribute.Int("delta", reg.Delta),
		attribute.String("tolerance", reg.Tolerance),
	))

	// Mark span with error status for a rejected run
	if !reg.Accepted {
		h.rootSpan.SetStatus(codes.Error, reg.Summary)
	}

	return nil
}

// handleBaseline records the baseline decision as a span event.
func (h *OTelHook) handleBaseline(b *events.BaselineEvent) error {
	if h.rootSpan == nil {
		return nil
	}

	h.rootSpan.AddEvent("baseline_"+string(b.Action), trace.WithAttributes(
		attribute.String("run_id", h.runID),
		attribute.String("app", b.AppName),
		attribute.Int("risk_score", b.RiskScore),
		attribute.String("reason", b.Reason),
	))

	return nil
}

// handleSummary adds summary attributes to the root span.
func (h *OTelHook) handleSummary(summary *events.SummaryEvent) error {
	if h.rootSpan == nil {
		return nil
	}

	// Add comprehensive summary attributes to root span
	h.rootSpan.SetAttributes(
		attribute.String("verdict.status", string(summary.Verdict.Status)),
		attribute.String("verdict.rule", summary.Verdict.Rule),
		attribute.Int("verdict.risk_score", summary.Verdict.RiskScore),
		attribute.Int("totals.findings", summary.TotalFindings),
		attribute.Int("totals.critical", summary.Totals.Critical),
		attribute.Int("totals.high", summary.Totals.High),
		attribute.Int("totals.medium", summary.Totals.Medium),
		attribute.Int("totals.low", summary.Totals.Low),
		attribute.Int("totals.info", summary.Totals.Info),
		attribute.Int("violations", len(summary.Violations)),
		attribute.String("policy.reference", summary.Policy.Reference),
		attribute.Float64("timing.duration_sec", summary.Timing.DurationSec),
		attribute.Int("exit_code", summary.ExitCode),
		attribute.String("exit_reason", summary.ExitReason),
	)

	// Add summary event
	h.rootSpan.AddEvent("gate_summary", trace.WithAttributes(
		attribute.String("status", string(summary.Verdict.Status)),
		attribute.Int("risk_score", summary.Verdict.RiskScore),
		attribute.Int("findings", summary.TotalFindings),
		attribute.Int("violations", len(summary.Violations)),
		attribute.Float64("duration_sec", summary.Timing.DurationSec),
	))

	// Set final span status based on the verdict
	if summary.Verdict.Status == policy.StatusFail {
		h.rootSpan.SetStatus(codes.Error, "Gate completed with FAIL verdict")
	} else {
		h.rootSpan.SetStatus(codes.Ok, "Gate completed")
	}

	return nil
}

// handleComplete finalizes the run span and flushes telemetry.
func (h *OTelHook) handleComplete(complete *events.CompleteEvent) error {
	if h.rootSpan == nil {
		return nil
	}

	// Add completion event
	h.rootSpan.AddEvent("gate_completed", trace.WithAttributes(
		attribute.Bool("success", complete.Success),
		attribute.Int("exit_code", complete.ExitCode),
		attribute.String("exit_reason", complete.ExitReason),
	))

	// Set final status based on success
	if complete.Success {
		h.rootSpan.SetStatus(codes.Ok, "Completed successfully")
	} else {
		h.rootSpan.SetStatus(codes.Error, complete.ExitReason)
	}

	// End the root span
	h.rootSpan.End()
	h.rootSpan = nil

	return nil
}

// EventTypes returns the event types this hook handles.
func (h *OTelHook) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventTypeStart,
		events.EventTypeEvaluation,
		events.EventTypeViolation,
		events.EventTypeRegression,
		events.EventTypeBaseline,
		events.EventTypeSummary,
		events.EventTypeComplete,
	}
}

// Close shuts down the tracer provider and flushes any pending telemetry.
func (h *OTelHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	// End any active span
	if h.rootSpan != nil {
		h.rootSpan.End()
		h.rootSpan = nil
	}

	// Shutdown tracer provider with timeout
	if h.tracerProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), h.opts.ShutdownTimeout)
		defer cancel()

		if err := h.tracerProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("otel: shutdown tracer provider: %w", err)
		}
	}

	return nil
}

// Endpoint returns the OTLP endpoint being used.
// Useful for testing and logging.
func (h *OTelHook) Endpoint() string {
	return h.opts.Endpoint
}

// ServiceName returns the service name being used.
func (h *OTelHook) ServiceName() string {
	return h.opts.ServiceName
}
