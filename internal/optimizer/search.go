package optimizer

import (
	"github.com/croit/mcp-croit-ceph/internal/cache"
	"github.com/croit/mcp-croit-ceph/internal/filter"
)

// DefaultSearchLimit caps drill-down results when the caller sends no limit.
const DefaultSearchLimit = 100

// Search filters a stored response. An empty id means the most recent one.
// A missing or expired id yields an error envelope rather than a Go error.
func Search(store *cache.Store, id string, filters map[string]interface{}, limit int) map[string]interface{} {
	if id == "" {
		id = store.Last()
	}
	data, ok := store.Get(id)
	if id == "" || !ok {
		return map[string]interface{}{
			"error": "No stored response found",
			"hint":  "Make an API call first, then use the response_id from the summary",
		}
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	results := filter.Apply(data, filters)
	matched := 1
	if items, isList := results.([]interface{}); isList {
		matched = len(items)
		if len(items) > limit {
			results = items[:limit]
		}
	}

	return map[string]interface{}{
		"response_id":   id,
		"matched_count": matched,
		"results":       results,
	}
}
