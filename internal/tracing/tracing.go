package tracing

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"go.opentelemetry.io/otel/trace"
)

// HTTP headers for trace propagation to the cluster API
const (
	TraceIDHeader   = "X-Trace-ID"
	SpanIDHeader    = "X-Span-ID"
	RequestIDHeader = "X-Request-ID"
)

// TraceInfo contains the identifiers used in audit entries and headers
type TraceInfo struct {
	TraceID string `json:"trace_id"`
	SpanID  string `json:"span_id"`
}

// GenerateID generates a random 32-character hex ID (128 bits)
func GenerateID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "00000000000000000000000000000000"
	}
	return hex.EncodeToString(b)
}

// GenerateShortID generates a random 16-character hex ID (64 bits)
func GenerateShortID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "0000000000000000"
	}
	return hex.EncodeToString(b)
}

// FromContext returns the ids of the active span. Without a recording tracer
// the span context is invalid and fresh ids are generated, so audit entries
// still correlate with request headers.
func FromContext(ctx context.Context) *TraceInfo {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		if info, ok := ctx.Value(traceInfoKey{}).(*TraceInfo); ok {
			return info
		}
		return &TraceInfo{TraceID: GenerateID(), SpanID: GenerateShortID()}
	}
	return &TraceInfo{
		TraceID: sc.TraceID().String(),
		SpanID:  sc.SpanID().String(),
	}
}

type traceInfoKey struct{}

// EnsureTraceContext pins a TraceInfo to ctx when no valid span is active, so
// repeated FromContext calls agree.
func EnsureTraceContext(ctx context.Context) context.Context {
	if trace.SpanFromContext(ctx).SpanContext().IsValid() {
		return ctx
	}
	if _, ok := ctx.Value(traceInfoKey{}).(*TraceInfo); ok {
		return ctx
	}
	return context.WithValue(ctx, traceInfoKey{}, &TraceInfo{TraceID: GenerateID(), SpanID: GenerateShortID()})
}

// Headers returns the trace info as HTTP headers
func (t *TraceInfo) Headers() map[string]string {
	return map[string]string{
		TraceIDHeader:   t.TraceID,
		SpanIDHeader:    t.SpanID,
		RequestIDHeader: t.TraceID,
	}
}
