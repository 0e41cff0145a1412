package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/croit/mcp-croit-ceph/internal/cache"
	"github.com/croit/mcp-croit-ceph/internal/optimizer"
)

// SearchLastResultTool filters the full data behind a summarized response.
type SearchLastResultTool struct {
	*BaseTool
	store *cache.Store
}

// NewSearchLastResultTool creates the tool over the drill-down store.
func NewSearchLastResultTool(store *cache.Store, logger *zap.Logger) *SearchLastResultTool {
	return &SearchLastResultTool{BaseTool: NewBaseTool(nil, logger), store: store}
}

// Name returns the tool name
func (t *SearchLastResultTool) Name() string { return "search_last_result" }

// Description returns the tool description
func (t *SearchLastResultTool) Description() string {
	return "Search the full data behind a summarized response without calling the cluster again. " +
		"Pass the response_id from the summary (default: the most recent one) and filters such as " +
		"{\"status\": \"error\"}, {\"name__contains\": \"osd\"} or {\"size__gt\": 1000}."
}

// InputSchema returns the input schema
func (t *SearchLastResultTool) InputSchema() interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"response_id": map[string]interface{}{
				"type":        "string",
				"description": "Id from a summary's _response_id; empty means the last stored response",
			},
			"filters": map[string]interface{}{
				"type":        "object",
				"description": "Filters as for call_api_endpoint",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum items returned (default 100)",
			},
		},
	}
}

// Annotations returns tool hints
func (t *SearchLastResultTool) Annotations() *mcp.ToolAnnotations {
	return ReadOnlyAnnotations("Search Stored Result")
}

// Execute searches the store.
func (t *SearchLastResultTool) Execute(_ context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	id, err := GetStringParam(args, "response_id", false)
	if err != nil {
		return NewMissingArgumentResult(err), nil
	}
	filters, err := GetObjectParam(args, "filters", false)
	if err != nil {
		return NewMissingArgumentResult(err), nil
	}
	limit, err := GetIntParam(args, "limit", false)
	if err != nil {
		return NewMissingArgumentResult(err), nil
	}

	found := optimizer.Search(t.store, id, filters, limit)
	result, err := t.FormatResponse(found)
	if err != nil {
		return nil, err
	}
	if _, failed := found["error"]; failed {
		result.IsError = true
	}
	return result, nil
}

// CacheStatsTool reports response cache and drill-down store statistics.
type CacheStatsTool struct {
	*BaseTool
	cache *cache.Cache
	store *cache.Store
}

// NewCacheStatsTool creates the tool. Either cache may be nil.
func NewCacheStatsTool(c *cache.Cache, store *cache.Store, logger *zap.Logger) *CacheStatsTool {
	return &CacheStatsTool{BaseTool: NewBaseTool(nil, logger), cache: c, store: store}
}

// Name returns the tool name
func (t *CacheStatsTool) Name() string { return "cache_stats" }

// Description returns the tool description
func (t *CacheStatsTool) Description() string {
	return "Show response cache and stored-result statistics (size, hit rate, evictions). Set clear=true to empty the response cache."
}

// InputSchema returns the input schema
func (t *CacheStatsTool) InputSchema() interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"clear": map[string]interface{}{
				"type":        "boolean",
				"description": "Empty the response cache after reading the statistics",
			},
		},
	}
}

// Annotations returns tool hints
func (t *CacheStatsTool) Annotations() *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{
		Title:          "Cache Statistics",
		IdempotentHint: true,
		OpenWorldHint:  boolPtr(false),
	}
}

// Execute reports the statistics.
func (t *CacheStatsTool) Execute(_ context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	clearCache, err := GetBoolParam(args, "clear", false)
	if err != nil {
		return NewMissingArgumentResult(err), nil
	}

	out := map[string]interface{}{}
	if t.cache != nil {
		out["response_cache"] = t.cache.Stats()
	}
	if t.store != nil {
		out["stored_results"] = t.store.Stats()
		if last := t.store.Last(); last != "" {
			out["last_response_id"] = last
		}
	}
	if clearCache && t.cache != nil {
		t.cache.Clear()
		out["cleared"] = true
		t.logger.Info("Response cache cleared")
	}
	return t.FormatResponse(out)
}
