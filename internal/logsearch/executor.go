package logsearch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/croit/mcp-croit-ceph/internal/tracing"
)

// Channel names reported as result metadata.
const (
	ChannelStream = "stream"
	ChannelExport = "export"

	// ChannelBothFailed is recorded when no channel could serve a query.
	ChannelBothFailed = "both_failed"
)

// LogQuery is one search against the log backend.
type LogQuery struct {
	Where map[string]interface{}
	Start int64 // unix seconds
	End   int64 // unix seconds
	Limit int
	After int
	// Token overrides the configured API token.
	Token string
}

// Message returns the JSON envelope understood by both channels.
func (q LogQuery) Message() map[string]interface{} {
	where := q.Where
	if where == nil {
		where = map[string]interface{}{}
	}
	return map[string]interface{}{
		"type":  "query",
		"start": q.Start,
		"end":   q.End,
		"query": map[string]interface{}{
			"where": where,
			"after": q.After,
			"limit": q.Limit,
		},
	}
}

// TimeRange returns the query window.
func (q LogQuery) TimeRange() TimeRange {
	return FromUnix(q.Start, q.End)
}

// ControlMessage is a backend signal received alongside log data.
type ControlMessage struct {
	Type    string      `json:"type"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Result is the normalized outcome of a log query, whichever channel served
// it.
type Result struct {
	Logs            []Record         `json:"logs"`
	ControlMessages []ControlMessage `json:"control_messages"`
	Channel         string           `json:"channel,omitempty"`
	Hits            interface{}      `json:"hits,omitempty"`
	TooWide         bool             `json:"too_wide,omitempty"`
	Errors          []string         `json:"errors,omitempty"`
	TimeRange       TimeRange        `json:"time_range"`
}

func (r *Result) addControl(cm ControlMessage) {
	r.ControlMessages = append(r.ControlMessages, cm)
	switch cm.Type {
	case ControlTooWide:
		r.TooWide = true
	case ControlHits:
		r.Hits = cm.Data
	case ControlError:
		r.Errors = append(r.Errors, cm.Message)
	}
}

// Channel fetches log records over one transport.
type Channel interface {
	Name() string
	Fetch(ctx context.Context, q LogQuery) (*Result, error)
}

// Outcome is the typed result of one channel attempt: a result or the
// reason it failed.
type Outcome struct {
	Channel string
	Result  *Result
	Reason  error
}

// OK reports a successful attempt.
func (o Outcome) OK() bool {
	return o.Reason == nil && o.Result != nil
}

// BothFailedError is returned when neither channel could serve a query.
type BothFailedError struct {
	StreamReason error
	ExportReason error
}

func (e *BothFailedError) Error() string {
	return fmt.Sprintf("log query failed on both channels: stream: %v; export: %v", e.StreamReason, e.ExportReason)
}

// Reasons returns the per-channel failure messages.
func (e *BothFailedError) Reasons() map[string]string {
	return map[string]string{
		ChannelStream: fmt.Sprint(e.StreamReason),
		ChannelExport: fmt.Sprint(e.ExportReason),
	}
}

// ChannelRecorder receives the channel that served each query.
// *metrics.Metrics implements it.
type ChannelRecorder interface {
	RecordLogChannel(channel string)
}

// Executor runs queries on the streaming channel and falls back to export.
type Executor struct {
	stream   Channel
	export   Channel
	logger   *zap.Logger
	recorder ChannelRecorder
}

// NewExecutor creates an executor. Either channel may be nil, which counts
// as a failed attempt.
func NewExecutor(stream, export Channel, logger *zap.Logger) *Executor {
	return &Executor{stream: stream, export: export, logger: logger}
}

// SetRecorder attaches a metrics recorder.
func (e *Executor) SetRecorder(r ChannelRecorder) {
	e.recorder = r
}

// Execute returns the records of q. When both channels fail the result has
// an empty log list and the error is a *BothFailedError.
func (e *Executor) Execute(ctx context.Context, q LogQuery) (*Result, error) {
	started := time.Now()

	first := e.attempt(ctx, e.stream, ChannelStream, q)
	if first.OK() {
		e.finish(first, started)
		return first.Result, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	e.logger.Warn("Log stream failed, falling back to export",
		zap.Error(first.Reason),
	)

	second := e.attempt(ctx, e.export, ChannelExport, q)
	if second.OK() {
		e.finish(second, started)
		return second.Result, nil
	}

	failed := &BothFailedError{StreamReason: first.Reason, ExportReason: second.Reason}
	e.logger.Error("Log query failed on both channels",
		zap.NamedError("stream_error", first.Reason),
		zap.NamedError("export_error", second.Reason),
	)
	if e.recorder != nil {
		e.recorder.RecordLogChannel(ChannelBothFailed)
	}

	return &Result{
		Logs:            []Record{},
		ControlMessages: []ControlMessage{},
		Errors:          []string{fmt.Sprint(first.Reason), fmt.Sprint(second.Reason)},
		TimeRange:       q.TimeRange(),
	}, failed
}

func (e *Executor) attempt(ctx context.Context, ch Channel, name string, q LogQuery) Outcome {
	if ch == nil {
		return Outcome{Channel: name, Reason: errors.New("channel not configured")}
	}
	ctx, span := tracing.LogChannelSpan(ctx, name)
	defer span.End()

	res, err := ch.Fetch(ctx, q)
	if err == nil && res == nil {
		err = errors.New("channel returned no result")
	}
	if err != nil {
		tracing.RecordError(span, err)
		return Outcome{Channel: name, Reason: err}
	}
	tracing.SetToolResult(span, "logs", len(res.Logs))
	return Outcome{Channel: name, Result: res}
}

func (e *Executor) finish(o Outcome, started time.Time) {
	o.Result.Channel = o.Channel
	if o.Result.Logs == nil {
		o.Result.Logs = []Record{}
	}
	if o.Result.ControlMessages == nil {
		o.Result.ControlMessages = []ControlMessage{}
	}
	if e.recorder != nil {
		e.recorder.RecordLogChannel(o.Channel)
	}
	e.logger.Debug("Log query completed",
		zap.String("channel", o.Channel),
		zap.Int("records", len(o.Result.Logs)),
		zap.Int("control_messages", len(o.Result.ControlMessages)),
		zap.Duration("duration", time.Since(started)),
	)
}
