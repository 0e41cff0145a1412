// Package optimizer reduces the size of cluster API responses before they are
// handed to the model: field projection, truncation and summaries backed by a
// drill-down store.
package optimizer

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/croit/mcp-croit-ceph/internal/cache"
	"github.com/croit/mcp-croit-ceph/internal/metrics"
)

// Ladder thresholds.
const (
	SmallResponseItems  = 5
	MediumResponseItems = 50
	ProjectionSummaryAt = 100
	MediumTruncateItems = 25
)

// Sample sizes used by SmartSummary.
const (
	criticalSampleSize = 5
	errorSampleSize    = 3
	itemSampleSize     = 3
	primitiveSample    = 5
	fieldScanItems     = 10
)

// Recorder receives optimizer outcomes. *metrics.Metrics satisfies it.
type Recorder interface {
	RecordOptimizerDecision(decision string)
	RecordStoredResult()
}

// Context describes the request a response belongs to.
type Context struct {
	URL        string
	Method     string
	Fields     []string
	NoOptimize bool
}

// Optimizer applies the reduction ladder to decoded JSON responses.
type Optimizer struct {
	store    *cache.Store
	logger   *zap.Logger
	recorder Recorder
}

// New creates an optimizer that keeps full responses in store.
func New(store *cache.Store, logger *zap.Logger) *Optimizer {
	return &Optimizer{store: store, logger: logger}
}

// SetRecorder attaches a metrics recorder.
func (o *Optimizer) SetRecorder(r Recorder) {
	o.recorder = r
}

// Store returns the drill-down store.
func (o *Optimizer) Store() *cache.Store {
	return o.store
}

// Optimize runs the ladder: projection first, then unchanged, truncated or
// summarized depending on the item count.
func (o *Optimizer) Optimize(data interface{}, ctx Context) interface{} {
	if ctx.NoOptimize {
		return data
	}

	if len(ctx.Fields) > 0 {
		projected := ProjectFields(data, ctx.Fields)
		if items, ok := projected.([]interface{}); ok && len(items) > ProjectionSummaryAt {
			o.record(metrics.DecisionSummarized)
			return o.SmartSummary(projected, ctx.URL)
		}
		o.record(metrics.DecisionProjected)
		return projected
	}

	items, ok := listOf(data)
	if !ok {
		o.record(metrics.DecisionUnchanged)
		return data
	}

	switch n := len(items); {
	case n <= SmallResponseItems:
		o.record(metrics.DecisionUnchanged)
		return data
	case n <= MediumResponseItems:
		o.record(metrics.DecisionTruncated)
		return Truncate(data, ctx.URL, MediumTruncateItems)
	default:
		o.logger.Debug("Summarizing large response",
			zap.String("url", ctx.URL),
			zap.Int("items", n),
		)
		o.record(metrics.DecisionSummarized)
		return o.SmartSummary(data, ctx.URL)
	}
}

func (o *Optimizer) record(decision string) {
	if o.recorder != nil {
		o.recorder.RecordOptimizerDecision(decision)
	}
}

// listOf returns the items of a list or of a {"data": [...]} wrapper.
func listOf(data interface{}) ([]interface{}, bool) {
	switch v := data.(type) {
	case []interface{}:
		return v, true
	case map[string]interface{}:
		items, ok := v["data"].([]interface{})
		return items, ok
	}
	return nil, false
}

// truncationCap returns the item cap for url, or fallback.
func truncationCap(url string, fallback int) int {
	lower := strings.ToLower(url)
	switch {
	case strings.Contains(lower, "/log") || strings.Contains(lower, "/audit"):
		return 100
	case strings.Contains(lower, "/stats"):
		return 75
	case strings.Contains(lower, "/services") || strings.Contains(lower, "/servers") || strings.Contains(lower, "/osds"):
		return 25
	}
	return fallback
}

// Truncate cuts lists longer than maxItems down to the cap for url and
// attaches truncation metadata. Wrapped lists keep their other keys.
func Truncate(data interface{}, url string, maxItems int) interface{} {
	items, ok := listOf(data)
	if !ok || len(items) <= maxItems {
		return data
	}

	limit := truncationCap(url, maxItems)
	if limit > len(items) {
		limit = len(items)
	}

	meta := map[string]interface{}{
		"truncated":      true,
		"original_count": len(items),
		"returned_count": limit,
		"truncation_message": fmt.Sprintf(
			"Response truncated from %d to %d items to save tokens. Use pagination (limit/offset) or filters to get specific data.",
			len(items), limit),
	}

	out := map[string]interface{}{}
	if wrapper, isMap := data.(map[string]interface{}); isMap {
		for k, v := range wrapper {
			out[k] = v
		}
	}
	out["data"] = items[:limit]
	out["_truncation_metadata"] = meta
	return out
}

// SmartSummary stores data for drill-down and returns a compact overview.
func (o *Optimizer) SmartSummary(data interface{}, url string) interface{} {
	items, isList := listOf(data)
	if !isList {
		obj, isMap := data.(map[string]interface{})
		if !isMap {
			return data
		}
		id := o.keep(data)
		hasError := false
		for _, k := range []string{"error", "errors", "failed", "status"} {
			if _, ok := obj[k]; ok {
				hasError = true
				break
			}
		}
		summary := "Single object response"
		hint := "This is the complete response (single object)"
		if hasError {
			summary = "Single object response (error detected)"
			hint = "This is the complete response (single object with error)"
		}
		return map[string]interface{}{
			"_summary":     summary,
			"_response_id": id,
			"data":         data,
			"_hint":        hint,
		}
	}

	// drill-down filters operate on the list itself
	id := o.keep(items)

	if len(items) <= SmallResponseItems {
		return map[string]interface{}{
			"_summary":     fmt.Sprintf("Small dataset (%d items) - showing all", len(items)),
			"_response_id": id,
			"items":        items,
			"_hint":        fmt.Sprintf("Complete data shown (<=%d items)", SmallResponseItems),
		}
	}

	summary := map[string]interface{}{
		"_summary":     fmt.Sprintf("Found %d items", len(items)),
		"_response_id": id,
		"total_count":  len(items),
	}

	if first, ok := items[0].(map[string]interface{}); ok {
		if _, hasStatus := first["status"]; hasStatus {
			byStatus := map[string]int{}
			var critical []interface{}
			for _, item := range items {
				status := "unknown"
				if obj, ok := item.(map[string]interface{}); ok {
					if s, ok := obj["status"]; ok && s != nil {
						status = fmt.Sprint(s)
					}
				}
				byStatus[status]++
				switch strings.ToLower(status) {
				case "error", "failed", "down", "critical":
					critical = append(critical, item)
				}
			}
			summary["by_status"] = byStatus
			if len(critical) > 0 {
				summary["critical_items"] = head(critical, criticalSampleSize)
				summary["critical_count"] = len(critical)
			}
		}

		var errs []interface{}
		for _, item := range items {
			if obj, ok := item.(map[string]interface{}); ok && isErrorItem(obj) {
				errs = append(errs, item)
			}
		}
		if len(errs) > 0 {
			summary["errors_found"] = len(errs)
			summary["error_samples"] = head(errs, errorSampleSize)
		}

		summary["sample_items"] = head(items, itemSampleSize)
		summary["available_fields"] = availableFields(items)
	} else {
		summary["sample_items"] = head(items, primitiveSample)
	}

	summary["_hint"] = fmt.Sprintf(
		"This is a summary of %d items. Use search_last_result(response_id='%s') to filter/search the full data. "+
			"Available filters: field=value, field__contains=text, field__gt=number", len(items), id)

	o.logger.Debug("Stored full response for drill-down",
		zap.String("response_id", id),
		zap.String("url", url),
		zap.Int("items", len(items)),
	)
	return summary
}

func (o *Optimizer) keep(data interface{}) string {
	id := o.store.Put(data)
	if o.recorder != nil {
		o.recorder.RecordStoredResult()
	}
	return id
}

func isErrorItem(obj map[string]interface{}) bool {
	if s, ok := obj["status"].(string); ok {
		switch strings.ToLower(s) {
		case "error", "failed", "down":
			return true
		}
	}
	if truthy(obj["error"]) || truthy(obj["has_error"]) {
		return true
	}
	h, _ := obj["health"].(string)
	return h == "ERROR"
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case []interface{}:
		return len(t) > 0
	case map[string]interface{}:
		return len(t) > 0
	}
	return true
}

func availableFields(items []interface{}) []string {
	seen := map[string]struct{}{}
	for _, item := range head(items, fieldScanItems) {
		if obj, ok := item.(map[string]interface{}); ok {
			for k := range obj {
				seen[k] = struct{}{}
			}
		}
	}
	fields := make([]string, 0, len(seen))
	for k := range seen {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

func head(items []interface{}, n int) []interface{} {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// ProjectFields keeps only the named fields of every object.
func ProjectFields(data interface{}, fields []string) interface{} {
	if len(fields) == 0 {
		return data
	}
	switch v := data.(type) {
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = projectItem(item, fields)
		}
		return out
	case map[string]interface{}:
		if items, ok := v["data"].([]interface{}); ok {
			out := make(map[string]interface{}, len(v)+1)
			for k, val := range v {
				out[k] = val
			}
			out["data"] = ProjectFields(items, fields)
			out["_field_projection"] = fmt.Sprintf("Projected to %d fields: %s", len(fields), strings.Join(fields, ", "))
			return out
		}
		return projectItem(v, fields)
	}
	return data
}

func projectItem(item interface{}, fields []string) interface{} {
	obj, ok := item.(map[string]interface{})
	if !ok {
		return item
	}
	out := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		if v, ok := obj[f]; ok {
			out[f] = v
		}
	}
	return out
}

// EssentialFields lists the fields kept per resource type by FilterFields.
var EssentialFields = map[string][]string{
	"servers":  {"id", "hostname", "ip", "status", "role"},
	"services": {"id", "name", "type", "status", "hostname"},
	"osds":     {"id", "osd", "status", "host", "used_percent", "up"},
	"pools":    {"name", "pool_id", "size", "used_bytes", "percent_used"},
	"rbds":     {"name", "pool", "size", "used_size"},
	"s3":       {"bucket", "owner", "size", "num_objects"},
	"tasks":    {"id", "name", "status", "progress", "error"},
	"logs":     {"timestamp", "level", "service", "message"},
}

// FilterFields projects data to the essential fields of resourceType.
// Unknown types are returned unchanged.
func FilterFields(data interface{}, resourceType string) interface{} {
	fields, ok := EssentialFields[resourceType]
	if !ok {
		return data
	}
	return ProjectFields(data, fields)
}
