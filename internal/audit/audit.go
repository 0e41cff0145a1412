// Package audit keeps a bounded record of tool executions, mirrored to the
// structured log.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/croit/mcp-croit-ceph/internal/security"
	"github.com/croit/mcp-croit-ceph/internal/tracing"
)

// DefaultMaxEntries bounds the in-memory history.
const DefaultMaxEntries = 500

// Operation classifies what a tool call did to the cluster.
type Operation string

const (
	OperationRead   Operation = "read"
	OperationWrite  Operation = "write"
	OperationDelete Operation = "delete"
	OperationQuery  Operation = "query"
)

// Entry is one recorded tool execution.
type Entry struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	TraceID   string        `json:"trace_id,omitempty"`
	SpanID    string        `json:"span_id,omitempty"`
	Tool      string        `json:"tool"`
	Operation Operation     `json:"operation"`
	Success   bool          `json:"success"`
	Duration  time.Duration `json:"duration_ms"`
	ErrorMsg  string        `json:"error_message,omitempty"`
	// InputHash identifies identical calls without keeping their arguments.
	InputHash string `json:"input_hash,omitempty"`
}

// Logger records audit entries
type Logger struct {
	enabled bool
	logger  *zap.Logger

	mu         sync.RWMutex
	entries    []Entry
	next       int
	full       bool
	maxEntries int
}

// NewLogger creates an audit logger keeping maxEntries in memory.
func NewLogger(logger *zap.Logger, enabled bool, maxEntries int) *Logger {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Logger{
		enabled:    enabled,
		logger:     logger.Named("audit"),
		entries:    make([]Entry, maxEntries),
		maxEntries: maxEntries,
	}
}

// HashInput returns a short digest of the redacted arguments.
func HashInput(args map[string]interface{}) string {
	if len(args) == 0 {
		return ""
	}
	data, err := json.Marshal(security.RedactArguments(args))
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// Log records an entry, filling id, timestamp and trace ids.
func (l *Logger) Log(ctx context.Context, entry Entry) {
	if !l.enabled {
		return
	}

	info := tracing.FromContext(ctx)
	if entry.TraceID == "" {
		entry.TraceID = info.TraceID
	}
	if entry.SpanID == "" {
		entry.SpanID = info.SpanID
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.ErrorMsg = security.MaskSensitiveData(entry.ErrorMsg)

	fields := []zap.Field{
		zap.String("trace_id", entry.TraceID),
		zap.String("tool", entry.Tool),
		zap.String("operation", string(entry.Operation)),
		zap.Bool("success", entry.Success),
		zap.Duration("duration", entry.Duration),
	}
	if entry.InputHash != "" {
		fields = append(fields, zap.String("input_hash", entry.InputHash))
	}
	if entry.ErrorMsg != "" {
		fields = append(fields, zap.String("error_message", entry.ErrorMsg))
	}
	l.logger.Info("audit", fields...)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[l.next] = entry
	l.next = (l.next + 1) % l.maxEntries
	if l.next == 0 {
		l.full = true
	}
}

// LogToolExecution records one tool call.
func (l *Logger) LogToolExecution(ctx context.Context, tool string, op Operation, args map[string]interface{}, success bool, duration time.Duration, err error) {
	entry := Entry{
		Tool:      tool,
		Operation: op,
		Success:   success,
		Duration:  duration,
		InputHash: HashInput(args),
	}
	if err != nil {
		entry.ErrorMsg = err.Error()
	}
	l.Log(ctx, entry)
}

// Recent returns up to limit entries, newest first. limit <= 0 means all.
func (l *Logger) Recent(limit int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := l.next
	if l.full {
		n = l.maxEntries
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Entry, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (l.next - i + l.maxEntries) % l.maxEntries
		out = append(out, l.entries[idx])
	}
	return out
}

// ByTool returns up to limit entries of one tool, newest first.
func (l *Logger) ByTool(tool string, limit int) []Entry {
	var out []Entry
	for _, e := range l.Recent(0) {
		if e.Tool == tool {
			out = append(out, e)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out
}

// Stats contains aggregated audit statistics
type Stats struct {
	TotalEntries    int               `json:"total_entries"`
	SuccessRate     float64           `json:"success_rate_pct"`
	AverageDuration time.Duration     `json:"average_duration"`
	ToolUsage       map[string]int    `json:"tool_usage"`
	OperationCounts map[Operation]int `json:"operation_counts"`
	Failures        int               `json:"failures"`
}

// GetStats aggregates the retained entries.
func (l *Logger) GetStats() Stats {
	entries := l.Recent(0)
	stats := Stats{
		TotalEntries:    len(entries),
		ToolUsage:       map[string]int{},
		OperationCounts: map[Operation]int{},
	}

	var total time.Duration
	for _, e := range entries {
		stats.ToolUsage[e.Tool]++
		stats.OperationCounts[e.Operation]++
		if !e.Success {
			stats.Failures++
		}
		total += e.Duration
	}
	if len(entries) > 0 {
		stats.SuccessRate = float64(len(entries)-stats.Failures) / float64(len(entries)) * 100
		stats.AverageDuration = total / time.Duration(len(entries))
	}
	return stats
}

// Clear drops all entries.
func (l *Logger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make([]Entry, l.maxEntries)
	l.next = 0
	l.full = false
}

// IsEnabled returns whether audit logging is enabled
func (l *Logger) IsEnabled() bool {
	return l.enabled
}
