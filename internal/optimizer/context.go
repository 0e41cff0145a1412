package optimizer

import (
	"fmt"
	"strings"
)

// defaultLimits maps URL keywords to the limit added when a caller sends none.
// Checked in order; the first keyword contained in the URL wins.
var defaultLimits = []struct {
	keyword string
	limit   int
}{
	{"list", 10},
	{"get_all", 20},
	{"services", 25},
	{"servers", 25},
	{"osds", 30},
	{"stats", 50},
	{"logs", 100},
	{"audit", 50},
	{"export", 200},
}

const fallbackLimit = 10

var paginationParams = []string{"limit", "max", "size", "offset", "page"}

// AddDefaultLimit returns params with a "limit" added for url unless the
// caller already paginates. params is not modified.
func AddDefaultLimit(url string, params map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	for _, p := range paginationParams {
		if _, ok := params[p]; ok {
			return out
		}
	}

	limit := fallbackLimit
	lower := strings.ToLower(url)
	for _, d := range defaultLimits {
		if strings.Contains(lower, d.keyword) {
			limit = d.limit
			break
		}
	}
	out["limit"] = limit
	return out
}

// ShouldOptimize reports whether a request typically returns bulk data.
func ShouldOptimize(url, method string) bool {
	if !strings.EqualFold(method, "GET") {
		return false
	}
	lower := strings.ToLower(url)
	for _, p := range []string{"/list", "/all", "get_all", "/export"} {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// OptimizationHints appends usage tips to the description of endpoints that
// return large payloads.
func OptimizationHints(description, path string) string {
	lower := strings.ToLower(path)
	large := false
	for _, p := range []string{"/list", "/all", "/export", "/stats", "/logs"} {
		if strings.Contains(lower, p) {
			large = true
			break
		}
	}
	if !large {
		return description
	}

	var b strings.Builder
	b.WriteString(description)
	b.WriteString("\n\nToken optimization tips:\n")
	b.WriteString("- Use 'limit=10' for initial exploration\n")
	b.WriteString("- Add filters to narrow results (e.g., status='error')\n")
	b.WriteString("- Request specific fields if supported\n")
	b.WriteString("- For counts only, check if a summary endpoint exists\n")
	b.WriteString("- Consider pagination for large datasets (offset/limit)\n")
	b.WriteString("- Results are cached for 1-10 minutes to save tokens\n")

	switch {
	case strings.Contains(path, "/services"):
		b.WriteString("- Filter by service type or status for relevant results\n")
	case strings.Contains(path, "/servers"):
		b.WriteString("- Filter by server role or status\n")
	case strings.Contains(path, "/logs"):
		b.WriteString("- Use time ranges and severity filters\n")
	case strings.Contains(path, "/stats"):
		b.WriteString("- Consider using aggregation parameters if available\n")
	}
	return b.String()
}

// QueryContext is the response shaping derived from a caller's question.
type QueryContext struct {
	CountOnly        bool     `json:"count_only"`
	ErrorOnly        bool     `json:"error_only"`
	StatusCheck      bool     `json:"status_check"`
	Exploration      bool     `json:"exploration"`
	DetailedAnalysis bool     `json:"detailed_analysis"`
	SuggestedLimit   *int     `json:"suggested_limit,omitempty"`
	SuggestedFilters []string `json:"suggested_filters"`
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// AnalyzeQueryContext classifies a natural-language question. Later matches
// override the suggested limit of earlier ones.
func AnalyzeQueryContext(query string) QueryContext {
	q := strings.ToLower(query)
	qc := QueryContext{SuggestedFilters: []string{}}
	setLimit := func(n int) { qc.SuggestedLimit = &n }

	if containsAny(q, "how many", "count", "number of", "total") {
		qc.CountOnly = true
		setLimit(0)
	}
	if containsAny(q, "error", "problem", "issue", "failed", "down") {
		qc.ErrorOnly = true
		qc.SuggestedFilters = append(qc.SuggestedFilters, "status:error")
	}
	if containsAny(q, "status", "health", "state", "running") {
		qc.StatusCheck = true
		setLimit(20)
	}
	if containsAny(q, "list", "show", "get", "display") {
		qc.Exploration = true
		setLimit(10)
	}
	if containsAny(q, "analyze", "detailed", "full", "complete", "all") {
		qc.DetailedAnalysis = true
		setLimit(50)
	}
	return qc
}

const maxContextErrors = 10

// OptimizeForContext reshapes a list response for the question behind it.
// Non-list data is returned unchanged.
func OptimizeForContext(data interface{}, qc QueryContext) interface{} {
	items, ok := data.([]interface{})
	if !ok {
		return data
	}

	switch {
	case qc.CountOnly:
		return map[string]interface{}{"count": len(items)}

	case qc.ErrorOnly:
		errs := []interface{}{}
		for _, item := range items {
			obj, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			switch obj["status"] {
			case "error", "failed", "down":
				errs = append(errs, item)
			}
		}
		return map[string]interface{}{
			"error_count": len(errs),
			"errors":      head(errs, maxContextErrors),
			"total_count": len(items),
		}

	case qc.StatusCheck:
		groups := map[string]int{}
		for _, item := range items {
			obj, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			status := "unknown"
			if s, ok := obj["status"]; ok && s != nil {
				status = fmt.Sprint(s)
			}
			groups[status]++
		}
		return map[string]interface{}{
			"status_summary": groups,
			"total_count":    len(items),
			"sample":         head(items, itemSampleSize),
		}
	}

	if qc.SuggestedLimit != nil && len(items) > *qc.SuggestedLimit {
		queryType := "specific"
		if qc.Exploration {
			queryType = "exploration"
		}
		return map[string]interface{}{
			"data": items[:*qc.SuggestedLimit],
			"_context_optimization": map[string]interface{}{
				"original_count": len(items),
				"returned_count": *qc.SuggestedLimit,
				"query_type":     queryType,
				"message":        fmt.Sprintf("Response optimized for %s query. Use pagination for more data.", queryType),
			},
		}
	}
	return data
}

// DefaultPageSize is the page size assumed by AddProgressiveLoading.
const DefaultPageSize = 25

// AddProgressiveLoading wraps a page of results with a cursor for the next
// page. A full page is assumed to have more data behind it.
func AddProgressiveLoading(data interface{}, limit int) interface{} {
	items, ok := data.([]interface{})
	if !ok {
		return data
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}

	hasMore := len(items) == limit
	var cursor interface{}
	if hasMore && len(items) > 0 {
		if last, ok := items[len(items)-1].(map[string]interface{}); ok {
			for _, k := range []string{"id", "timestamp", "name"} {
				if v, ok := last[k]; ok {
					cursor = fmt.Sprint(v)
					break
				}
			}
		}
	}

	message := "All data loaded"
	if hasMore {
		message = "Use next_cursor with limit parameter for progressive loading"
	}
	return map[string]interface{}{
		"data": items,
		"_progressive": map[string]interface{}{
			"has_more":       hasMore,
			"next_cursor":    cursor,
			"current_limit":  limit,
			"returned_count": len(items),
			"message":        message,
		},
	}
}
