package resources

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/croit/mcp-croit-ceph/internal/audit"
	"github.com/croit/mcp-croit-ceph/internal/cache"
	"github.com/croit/mcp-croit-ceph/internal/config"
	"github.com/croit/mcp-croit-ceph/internal/metrics"
)

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Host = "http://croit.local:8080"
	cfg.APIToken = "abcdefghijklmnopqrstuvwxyz" // #nosec G101 -- test token
	return cfg
}

func readJSON(t *testing.T, res RegisteredResource) map[string]interface{} {
	t.Helper()
	result, err := res.Handler(context.Background(), &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{URI: res.Resource.URI},
	})
	require.NoError(t, err)
	require.Len(t, result.Contents, 1)
	assert.Equal(t, res.Resource.URI, result.Contents[0].URI)
	assert.Equal(t, "application/json", result.Contents[0].MIMEType)

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &data))
	return data
}

func byURI(t *testing.T, r *Registry, uri string) RegisteredResource {
	t.Helper()
	for _, res := range r.GetResources() {
		if res.Resource.URI == uri {
			return res
		}
	}
	t.Fatalf("resource %s not registered", uri)
	return RegisteredResource{}
}

func TestGetResourcesDependsOnSources(t *testing.T) {
	minimal := NewRegistry(testConfig(), nil, Sources{}, zap.NewNop(), "test")
	assert.Len(t, minimal.GetResources(), 2)

	full := NewRegistry(testConfig(), metrics.New(zap.NewNop()), Sources{
		Cache: cache.New(10, time.Minute),
		Store: cache.NewStore(10, time.Minute),
		Audit: audit.NewLogger(zap.NewNop(), true, 10),
	}, zap.NewNop(), "test")

	var uris []string
	for _, res := range full.GetResources() {
		uris = append(uris, res.Resource.URI)
	}
	assert.Equal(t, []string{AboutURI, ConfigURI, MetricsURI, CacheURI, AuditURI}, uris)
}

func TestConfigResourceMasksToken(t *testing.T) {
	r := NewRegistry(testConfig(), nil, Sources{}, zap.NewNop(), "1.2.3")
	data := readJSON(t, byURI(t, r, ConfigURI))

	assert.Equal(t, "http://croit.local:8080", data["host"])
	assert.Equal(t, "abcd...wxyz", data["api_token"])
	assert.Equal(t, "1.2.3", data["server_version"])
}

func TestAboutResource(t *testing.T) {
	r := NewRegistry(testConfig(), nil, Sources{ToolCount: 42}, zap.NewNop(), "1.2.3")
	data := readJSON(t, byURI(t, r, AboutURI))

	surface := data["tool_surface"].(map[string]interface{})
	assert.Equal(t, float64(42), surface["tool_count"])
	assert.Equal(t, true, surface["log_tools"])
}

func TestMetricsResource(t *testing.T) {
	m := metrics.New(zap.NewNop())
	m.RecordRequest(true, 10*time.Millisecond, 200)
	m.RecordToolExecution("croit_log_search", true, time.Second)
	m.RecordLogChannel("stream")

	r := NewRegistry(testConfig(), m, Sources{}, zap.NewNop(), "test")
	data := readJSON(t, byURI(t, r, MetricsURI))

	requests := data["requests"].(map[string]interface{})
	assert.Equal(t, float64(1), requests["total"])
	tools := data["tools"].(map[string]interface{})
	assert.Equal(t, float64(1000), tools["latency"].(map[string]interface{})["croit_log_search"])
	assert.Equal(t, float64(1), data["log_channels"].(map[string]interface{})["stream"])
}

func TestCacheAndAuditResources(t *testing.T) {
	store := cache.NewStore(10, time.Minute)
	id := store.Put([]int{1, 2, 3})
	al := audit.NewLogger(zap.NewNop(), true, 10)
	al.LogToolExecution(context.Background(), "manage_pools", audit.OperationDelete, nil, true, time.Millisecond, nil)

	r := NewRegistry(testConfig(), nil, Sources{Store: store, Audit: al}, zap.NewNop(), "test")

	data := readJSON(t, byURI(t, r, CacheURI))
	assert.Equal(t, id, data["last_response_id"])
	assert.NotContains(t, data, "cache")

	data = readJSON(t, byURI(t, r, AuditURI))
	entries := data["entries"].([]interface{})
	require.Len(t, entries, 1)
	assert.Equal(t, "manage_pools", entries[0].(map[string]interface{})["tool"])
}
