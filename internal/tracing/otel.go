// Package tracing wires OpenTelemetry spans around tool executions, cluster
// API calls, cache lookups and log channel attempts.
package tracing

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Enabled        bool
	// Writer receives exported spans. Defaults to stderr, since stdout
	// carries the MCP protocol.
	Writer io.Writer
}

var (
	tracerMu     sync.RWMutex
	globalTracer trace.Tracer
)

// InitOTel installs a tracer provider exporting to cfg.Writer and returns
// its shutdown function. When tracing is disabled the shutdown is a no-op
// and GetTracer keeps returning a no-op tracer.
func InitOTel(cfg OTelConfig) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	setTracer(tp.Tracer(cfg.ServiceName))

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	}, nil
}

func setTracer(t trace.Tracer) {
	tracerMu.Lock()
	globalTracer = t
	tracerMu.Unlock()
}

// GetTracer returns the global tracer, a no-op one until InitOTel ran.
func GetTracer() trace.Tracer {
	tracerMu.RLock()
	defer tracerMu.RUnlock()
	if globalTracer == nil {
		return otel.Tracer("noop")
	}
	return globalTracer
}

// SpanKind tags spans with the layer that produced them.
type SpanKind string

const (
	SpanKindTool  SpanKind = "tool"
	SpanKindAPI   SpanKind = "api"
	SpanKindCache SpanKind = "cache"
	SpanKindLogs  SpanKind = "logs"
)

const kindKey = attribute.Key("mcp.span.kind")

func start(ctx context.Context, name string, kind SpanKind, otelKind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, kindKey.String(string(kind)))
	return GetTracer().Start(ctx, name, trace.WithSpanKind(otelKind), trace.WithAttributes(attrs...))
}

// ToolSpan starts the span of one MCP tool call.
func ToolSpan(ctx context.Context, toolName string) (context.Context, trace.Span) {
	return start(ctx, "mcp.tool."+toolName, SpanKindTool, trace.SpanKindInternal,
		attribute.String("mcp.tool.name", toolName))
}

// APISpan starts the span of one croit API request.
func APISpan(ctx context.Context, method, path string) (context.Context, trace.Span) {
	return start(ctx, "croit.api."+method, SpanKindAPI, trace.SpanKindClient,
		attribute.String("http.method", method),
		attribute.String("http.url", path))
}

// CacheSpan starts the span of a response cache operation.
func CacheSpan(ctx context.Context, operation string, hit bool) (context.Context, trace.Span) {
	return start(ctx, "croit.cache."+operation, SpanKindCache, trace.SpanKindInternal,
		attribute.String("cache.operation", operation),
		attribute.Bool("cache.hit", hit))
}

// LogChannelSpan starts the span of one attempt on a log channel
// (stream or export).
func LogChannelSpan(ctx context.Context, channel string) (context.Context, trace.Span) {
	return start(ctx, "croit.logs."+channel, SpanKindLogs, trace.SpanKindClient,
		attribute.String("logs.channel", channel))
}

// AddToolAttributes records scalar tool arguments on span. Other values
// are skipped.
func AddToolAttributes(span trace.Span, args map[string]interface{}) {
	attrs := make([]attribute.KeyValue, 0, len(args))
	for k, v := range args {
		key := attribute.Key("mcp.tool.arg." + k)
		switch val := v.(type) {
		case string:
			attrs = append(attrs, key.String(val))
		case int:
			attrs = append(attrs, key.Int(val))
		case int64:
			attrs = append(attrs, key.Int64(val))
		case float64:
			attrs = append(attrs, key.Float64(val))
		case bool:
			attrs = append(attrs, key.Bool(val))
		}
	}
	span.SetAttributes(attrs...)
}

// RecordError marks span as failed with err. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSuccess marks span as successful.
func SetSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// SetToolResult records what a span produced.
func SetToolResult(span trace.Span, resultType string, itemCount int) {
	span.SetAttributes(
		attribute.String("mcp.result.type", resultType),
		attribute.Int("mcp.result.count", itemCount),
	)
}
