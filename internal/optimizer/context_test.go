package optimizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/croit/mcp-croit-ceph/internal/cache"
)

func TestAddDefaultLimit(t *testing.T) {
	tests := []struct {
		url    string
		params map[string]interface{}
		want   interface{}
	}{
		{"/api/services", nil, 25},
		{"/api/servers/list", nil, 10},
		{"/api/logs", nil, 100},
		{"/api/cluster/stats", nil, 50},
		{"/api/pools", nil, 10},
		{"/api/logs", map[string]interface{}{"offset": 5}, nil},
		{"/api/logs", map[string]interface{}{"limit": 7}, 7},
	}
	for _, tt := range tests {
		got := AddDefaultLimit(tt.url, tt.params)
		assert.Equal(t, tt.want, got["limit"], tt.url)
	}

	params := map[string]interface{}{"pool": "rbd"}
	_ = AddDefaultLimit("/api/pools", params)
	assert.NotContains(t, params, "limit")
}

func TestShouldOptimize(t *testing.T) {
	assert.True(t, ShouldOptimize("/api/servers/list", "GET"))
	assert.True(t, ShouldOptimize("/api/logs/export", "get"))
	assert.False(t, ShouldOptimize("/api/servers/list", "POST"))
	assert.False(t, ShouldOptimize("/api/servers/1", "GET"))
}

func TestOptimizationHints(t *testing.T) {
	assert.Equal(t, "Get a pool", OptimizationHints("Get a pool", "/api/pools/{name}"))

	hinted := OptimizationHints("List services", "/api/services/list")
	assert.Contains(t, hinted, "Token optimization tips")
	assert.Contains(t, hinted, "Filter by service type or status")
}

func TestAnalyzeQueryContext(t *testing.T) {
	qc := AnalyzeQueryContext("How many OSDs are down?")
	assert.True(t, qc.CountOnly)
	assert.True(t, qc.ErrorOnly)
	require.NotNil(t, qc.SuggestedLimit)
	assert.Equal(t, 0, *qc.SuggestedLimit)
	assert.Equal(t, []string{"status:error"}, qc.SuggestedFilters)

	qc = AnalyzeQueryContext("show me everything in detail, all of it")
	assert.True(t, qc.Exploration)
	assert.True(t, qc.DetailedAnalysis)
	assert.Equal(t, 50, *qc.SuggestedLimit)

	qc = AnalyzeQueryContext("zzz")
	assert.Nil(t, qc.SuggestedLimit)
	assert.Empty(t, qc.SuggestedFilters)
}

func TestOptimizeForContext(t *testing.T) {
	data := services(30, func(i int) string {
		if i < 4 {
			return "down"
		}
		return "ok"
	})

	count := OptimizeForContext(data, AnalyzeQueryContext("how many"))
	assert.Equal(t, map[string]interface{}{"count": 30}, count)

	errs := OptimizeForContext(data, QueryContext{ErrorOnly: true}).(map[string]interface{})
	assert.Equal(t, 4, errs["error_count"])
	assert.Equal(t, 30, errs["total_count"])

	status := OptimizeForContext(data, QueryContext{StatusCheck: true}).(map[string]interface{})
	assert.Equal(t, map[string]int{"down": 4, "ok": 26}, status["status_summary"])
	assert.Len(t, status["sample"], 3)

	explore := OptimizeForContext(data, AnalyzeQueryContext("list pools")).(map[string]interface{})
	assert.Len(t, explore["data"], 10)
	meta := explore["_context_optimization"].(map[string]interface{})
	assert.Equal(t, "exploration", meta["query_type"])

	assert.Equal(t, data, OptimizeForContext(data, QueryContext{}))
	assert.Equal(t, "x", OptimizeForContext("x", QueryContext{CountOnly: true}))
}

func TestAddProgressiveLoading(t *testing.T) {
	page := services(25, func(int) string { return "ok" })
	out := AddProgressiveLoading(page, 25).(map[string]interface{})
	prog := out["_progressive"].(map[string]interface{})
	assert.Equal(t, true, prog["has_more"])
	assert.Equal(t, "24", prog["next_cursor"])

	last := AddProgressiveLoading(services(3, func(int) string { return "ok" }), 25).(map[string]interface{})
	prog = last["_progressive"].(map[string]interface{})
	assert.Equal(t, false, prog["has_more"])
	assert.Nil(t, prog["next_cursor"])
	assert.Equal(t, "All data loaded", prog["message"])
}

func TestSearchStoredResponse(t *testing.T) {
	store := cache.NewStore(5, time.Minute)

	missing := Search(store, "", nil, 0)
	assert.Equal(t, "No stored response found", missing["error"])

	data := services(200, func(i int) string {
		if i%2 == 0 {
			return "error"
		}
		return "ok"
	})
	id := store.Put(data)

	res := Search(store, id, map[string]interface{}{"status": "error"}, 10)
	assert.Equal(t, id, res["response_id"])
	assert.Equal(t, 100, res["matched_count"])
	assert.Len(t, res["results"], 10)

	// the most recent response is used when no id is given
	last := Search(store, "", map[string]interface{}{"name__contains": "osd.19"}, 0)
	assert.Equal(t, id, last["response_id"])
	assert.Equal(t, 11, last["matched_count"])

	// filtering is idempotent
	once := Search(store, id, map[string]interface{}{"status": "ok"}, 1000)["results"]
	twiceStore := cache.NewStore(5, time.Minute)
	twiceID := twiceStore.Put(once)
	twice := Search(twiceStore, twiceID, map[string]interface{}{"status": "ok"}, 1000)["results"]
	assert.Equal(t, once, twice)

	obj := store.Put(map[string]interface{}{"status": "ok"})
	single := Search(store, obj, nil, 0)
	assert.Equal(t, 1, single["matched_count"])
}
