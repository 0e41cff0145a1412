package tools

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/croit/mcp-croit-ceph/internal/cache"
	"github.com/croit/mcp-croit-ceph/internal/logsearch"
	"github.com/croit/mcp-croit-ceph/internal/optimizer"
)

// fakeChannel answers log queries with canned records.
type fakeChannel struct {
	name string
	logs []logsearch.Record
	err  error

	mu      sync.Mutex
	queries []logsearch.LogQuery
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Fetch(_ context.Context, q logsearch.LogQuery) (*logsearch.Result, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &logsearch.Result{Logs: f.logs, TimeRange: q.TimeRange()}, nil
}

func newTestLogService(stream, export logsearch.Channel) *logsearch.Service {
	return logsearch.NewService(logsearch.NewExecutor(stream, export, zap.NewNop()), zap.NewNop())
}

func osdRecords(n int) []logsearch.Record {
	out := make([]logsearch.Record, n)
	for i := range out {
		out[i] = logsearch.Record{
			"PRIORITY":             float64(3),
			"MESSAGE":              "osd.1 heartbeat_check: no reply",
			"SYSLOG_IDENTIFIER":    "ceph-osd",
			"__REALTIME_TIMESTAMP": float64(time.Now().Add(-time.Duration(i) * time.Minute).UnixMicro()),
		}
	}
	return out
}

func TestLogSearchTool(t *testing.T) {
	stream := &fakeChannel{name: logsearch.ChannelStream, logs: osdRecords(2)}
	store := cache.NewStore(10, time.Minute)
	tool := NewLogSearchTool(newTestLogService(stream, nil), optimizer.New(store, zap.NewNop()), zap.NewNop())

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"query": "osd errors in the last 2 hours",
	})
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	env := resultJSON(t, result)
	assert.Equal(t, float64(200), env["code"])
	assert.InDelta(t, 2.0, env["hours_searched"], 0.001)
	assert.Contains(t, env, "intent")
	assert.Contains(t, env, "where")

	payload := env["result"].(map[string]interface{})
	assert.Equal(t, float64(2), payload["total_count"])
	assert.Len(t, payload["logs"], 2)
	require.Len(t, stream.queries, 1)
}

func TestLogSearchToolSummarizesManyLogs(t *testing.T) {
	stream := &fakeChannel{name: logsearch.ChannelStream, logs: osdRecords(80)}
	store := cache.NewStore(10, time.Minute)
	tool := NewLogSearchTool(newTestLogService(stream, nil), optimizer.New(store, zap.NewNop()), zap.NewNop())

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"where":   map[string]interface{}{"PRIORITY": map[string]interface{}{"_lte": 3}},
		"analyze": false,
	})
	require.NoError(t, err)

	env := resultJSON(t, result)
	assert.NotContains(t, env, "analysis")
	payload := env["result"].(map[string]interface{})
	assert.Equal(t, float64(80), payload["total_count"])

	logs, ok := payload["logs"].(map[string]interface{})
	require.True(t, ok, "large log results are summarized")
	assert.Equal(t, store.Last(), logs["_response_id"])

	drill := NewSearchLastResultTool(store, zap.NewNop())
	result, err = drill.Execute(context.Background(), map[string]interface{}{
		"filters": map[string]interface{}{"MESSAGE__contains": "heartbeat"},
		"limit":   5,
	})
	require.NoError(t, err)
	found := resultJSON(t, result)
	assert.Equal(t, float64(80), found["matched_count"])
	assert.Len(t, found["results"], 5)
}

func TestLogSearchToolBothChannelsFailed(t *testing.T) {
	stream := &fakeChannel{name: logsearch.ChannelStream, err: errors.New("websocket closed")}
	export := &fakeChannel{name: logsearch.ChannelExport, err: errors.New("export returned 502")}
	tool := NewLogSearchTool(newTestLogService(stream, export), nil, zap.NewNop())

	result, err := tool.Execute(context.Background(), map[string]interface{}{"query": "mon errors today"})
	require.NoError(t, err)
	assert.True(t, result.IsError)

	env := resultJSON(t, result)
	assert.Equal(t, float64(http.StatusServiceUnavailable), env["code"])
	assert.Equal(t, "ALL_CHANNELS_FAILED", env["type"])
	details := env["details"].(map[string]interface{})
	assert.Contains(t, details[logsearch.ChannelStream], "websocket closed")
	assert.Contains(t, details[logsearch.ChannelExport], "export returned 502")
	require.Contains(t, env, "logs")
	assert.Empty(t, env["logs"])
	assert.Equal(t, float64(0), env["total_count"])
}

func TestLogShortcutTool(t *testing.T) {
	stream := &fakeChannel{name: logsearch.ChannelStream, logs: osdRecords(3)}
	tool := NewLogShortcutTool(newTestLogService(stream, nil), zap.NewNop())

	result, err := tool.Execute(context.Background(), map[string]interface{}{"kind": "Errors", "server_id": "4"})
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	env := resultJSON(t, result)
	shortcut := env["result"].(map[string]interface{})
	assert.Equal(t, "errors", shortcut["kind"])
	assert.Equal(t, float64(3), shortcut["total_count"])

	result, err = tool.Execute(context.Background(), map[string]interface{}{"kind": "everything"})
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = tool.Execute(context.Background(), map[string]interface{}{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestLogCheckTool(t *testing.T) {
	stream := &fakeChannel{name: logsearch.ChannelStream, logs: osdRecords(6)}
	tool := NewLogCheckTool(newTestLogService(stream, nil), zap.NewNop())

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"conditions":  []interface{}{"osd failures"},
		"threshold":   5,
		"time_window": 600,
	})
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	report := resultJSON(t, result)["result"].(map[string]interface{})
	checks := report["checks"].([]interface{})
	require.Len(t, checks, 1)
	assert.Equal(t, true, checks[0].(map[string]interface{})["triggered"])

	result, err = tool.Execute(context.Background(), map[string]interface{}{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestDebugTemplatesTool(t *testing.T) {
	stream := &fakeChannel{name: logsearch.ChannelStream, logs: osdRecords(1)}
	tool := NewDebugTemplatesTool(newTestLogService(stream, nil), nil, zap.NewNop())

	result, err := tool.Execute(context.Background(), map[string]interface{}{})
	require.NoError(t, err)
	listing := resultJSON(t, result)
	assert.Equal(t, float64(len(logsearch.DebugTemplates())), listing["count"])

	result, err = tool.Execute(context.Background(), map[string]interface{}{"scenario": "slow_requests"})
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	run := resultJSON(t, result)
	assert.Contains(t, run, "template")
	require.Len(t, stream.queries, 1)

	result, err = tool.Execute(context.Background(), map[string]interface{}{"scenario": "no_such_thing"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestLogToolTimeout(t *testing.T) {
	tool := NewLogSearchTool(newTestLogService(&fakeChannel{name: logsearch.ChannelStream}, nil), nil, zap.NewNop())
	assert.Equal(t, DefaultLogTimeout, tool.DefaultTimeout())
}

func TestLogServersTool(t *testing.T) {
	logs := []logsearch.Record{
		{"_TRANSPORT": "kernel", "MESSAGE": "sd 0:0:0:0: [sda] tag#1 timing out", "PRIORITY": float64(3)},
		{"_TRANSPORT": "kernel", "MESSAGE": "nvme0: I/O timeout", "PRIORITY": float64(4)},
		{"_TRANSPORT": "journal", "MESSAGE": "osd.2 boot", "PRIORITY": float64(6)},
	}
	stream := &fakeChannel{name: logsearch.ChannelStream, logs: logs}
	tool := NewLogServersTool(newTestLogService(stream, nil), zap.NewNop())

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"action":     "transports",
		"hours_back": float64(6),
	})
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	report := resultJSON(t, result)["result"].(map[string]interface{})
	assert.Equal(t, float64(3), report["total_logs_analyzed"])
	dist := report["transport_distribution"].(map[string]interface{})
	assert.Equal(t, float64(2), dist["kernel"])
	assert.Equal(t, float64(1), dist["journal"])

	require.Len(t, stream.queries, 1)
	q := stream.queries[0]
	assert.InDelta(t, 6*3600, q.End-q.Start, 1)

	result, err = tool.Execute(context.Background(), map[string]interface{}{"action": "bogus"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "servers, transports, kernel")
}
