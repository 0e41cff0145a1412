package tools

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	mcperrors "github.com/croit/mcp-croit-ceph/internal/errors"
	"github.com/croit/mcp-croit-ceph/internal/logsearch"
	"github.com/croit/mcp-croit-ceph/internal/optimizer"
)

// logsURL is the path log results are optimized under, so the log caps apply.
const logsURL = "/logs"

// LogTool is the base of the log search tools.
type LogTool struct {
	*BaseTool
	service   *logsearch.Service
	optimizer *optimizer.Optimizer
}

func newLogTool(service *logsearch.Service, o *optimizer.Optimizer, logger *zap.Logger) *LogTool {
	return &LogTool{BaseTool: NewBaseTool(nil, logger), service: service, optimizer: o}
}

// DefaultTimeout allows for the streaming timeout plus the export fallback.
func (t *LogTool) DefaultTimeout() time.Duration {
	return DefaultLogTimeout
}

// plainRecords converts records for the generic filter and optimizer code,
// which works on map[string]interface{}.
func plainRecords(logs []logsearch.Record) []interface{} {
	out := make([]interface{}, len(logs))
	for i, r := range logs {
		out[i] = map[string]interface{}(r)
	}
	return out
}

// optimizeLogs runs log records through the optimizer ladder.
func (t *LogTool) optimizeLogs(logs []logsearch.Record, fields []string, noOptimize bool) interface{} {
	data := interface{}(plainRecords(logs))
	if t.optimizer == nil || noOptimize {
		return data
	}
	return t.optimizer.Optimize(data, optimizer.Context{URL: logsURL, Method: http.MethodPost, Fields: fields})
}

// handleLogError maps executor errors. Both channels failing is a 503 with
// the per-channel reasons and an empty log list.
func handleLogError(err error, operation string) *mcp.CallToolResult {
	var bf *logsearch.BothFailedError
	if !errors.As(err, &bf) {
		return HandleError(err, operation)
	}
	env := mcperrors.NewChannelsFailed(bf.Reasons()).Envelope()
	env["logs"] = []interface{}{}
	env["total_count"] = 0
	text, ferr := FormatResponse(env)
	if ferr != nil {
		return NewInternalErrorResult(ferr)
	}
	return NewToolResultError(text)
}

func resultPayload(result *logsearch.Result, logs interface{}, query string) map[string]interface{} {
	payload := map[string]interface{}{
		"logs":             logs,
		"total_count":      len(result.Logs),
		"control_messages": result.ControlMessages,
		"time_range":       result.TimeRange,
		"channel":          result.Channel,
	}
	if query != "" {
		payload["query"] = query
	}
	if result.TooWide {
		payload["too_wide"] = true
		payload["hint"] = "The backend reports the query is too wide. Narrow the time range or add filters."
	}
	if result.Hits != nil {
		payload["hits"] = result.Hits
	}
	if len(result.Errors) > 0 {
		payload["errors"] = result.Errors
	}
	return payload
}

// LogSearchTool searches cluster logs from natural language or a where tree.
type LogSearchTool struct {
	*LogTool
}

// NewLogSearchTool creates the tool.
func NewLogSearchTool(service *logsearch.Service, o *optimizer.Optimizer, logger *zap.Logger) *LogSearchTool {
	return &LogSearchTool{LogTool: newLogTool(service, o, logger)}
}

// Name returns the tool name
func (t *LogSearchTool) Name() string { return "croit_log_search" }

// Description returns the tool description
func (t *LogSearchTool) Description() string {
	return "Search Ceph cluster logs. Pass a natural-language query such as 'osd errors in the last 2 hours' " +
		"or 'slow requests on mon since yesterday', or a structured where predicate, e.g. " +
		"{\"_and\": [{\"_SYSTEMD_UNIT\": {\"_contains\": \"ceph-osd\"}}, {\"PRIORITY\": {\"_lte\": 3}}]}. " +
		"Results include pattern analysis and a summary; large result sets are summarized with a response id for search_last_result."
}

// InputSchema returns the input schema
func (t *LogSearchTool) InputSchema() interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Natural-language search, e.g. 'critical rgw errors in the last hour'",
			},
			"where": map[string]interface{}{
				"type":        "object",
				"description": "Structured predicate. Operators: _and, _or, _not, _eq, _neq, _lt, _lte, _gt, _gte, _contains, _exists, _search",
			},
			"_search": map[string]interface{}{
				"type":        "string",
				"description": "Full-text term ANDed with the predicate",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum records (default 1000, max 10000)",
			},
			"after": map[string]interface{}{
				"type":        "integer",
				"description": "Skip this many records (pagination)",
			},
			"hours_back": map[string]interface{}{
				"type":        "number",
				"description": "Search window ending now, in hours (max 168)",
			},
			"start_timestamp": map[string]interface{}{
				"type":        "integer",
				"description": "Window start, unix seconds",
			},
			"end_timestamp": map[string]interface{}{
				"type":        "integer",
				"description": "Window end, unix seconds",
			},
			"api_token": map[string]interface{}{
				"type":        "string",
				"description": "Override the configured API token for this search",
			},
			"analyze": map[string]interface{}{
				"type":        "boolean",
				"description": "Add pattern analysis and a summary (default true)",
			},
			"fields": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Only return these record fields, e.g. [\"MESSAGE\", \"_HOSTNAME\", \"PRIORITY\"]",
			},
			"no_optimize": map[string]interface{}{
				"type":        "boolean",
				"description": "Return every record instead of a truncated or summarized view",
			},
		},
	}
}

// Annotations returns tool hints
func (t *LogSearchTool) Annotations() *mcp.ToolAnnotations {
	return QueryAnnotations("Search Cluster Logs")
}

// Execute runs the search.
func (t *LogSearchTool) Execute(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	req := logsearch.SearchRequest{}
	var err error
	if req.Text, err = GetStringParam(args, "query", false); err != nil {
		return NewMissingArgumentResult(err), nil
	}
	if req.Where, err = GetObjectParam(args, "where", false); err != nil {
		return NewMissingArgumentResult(err), nil
	}
	if req.Search, err = GetStringParam(args, "_search", false); err != nil {
		return NewMissingArgumentResult(err), nil
	}
	if req.Limit, err = GetIntParam(args, "limit", false); err != nil {
		return NewMissingArgumentResult(err), nil
	}
	if req.After, err = GetIntParam(args, "after", false); err != nil {
		return NewMissingArgumentResult(err), nil
	}
	if req.HoursBack, err = GetFloatParam(args, "hours_back", false); err != nil {
		return NewMissingArgumentResult(err), nil
	}
	start, err := GetIntParam(args, "start_timestamp", false)
	if err != nil {
		return NewMissingArgumentResult(err), nil
	}
	end, err := GetIntParam(args, "end_timestamp", false)
	if err != nil {
		return NewMissingArgumentResult(err), nil
	}
	req.StartTimestamp, req.EndTimestamp = int64(start), int64(end)
	if req.Token, err = GetStringParam(args, "api_token", false); err != nil {
		return NewMissingArgumentResult(err), nil
	}
	if req.Analyze, err = GetBoolParamDefault(args, "analyze", true); err != nil {
		return NewMissingArgumentResult(err), nil
	}
	fields, err := GetStringArrayParam(args, "fields", false)
	if err != nil {
		return NewMissingArgumentResult(err), nil
	}
	noOptimize, err := GetBoolParam(args, "no_optimize", false)
	if err != nil {
		return NewMissingArgumentResult(err), nil
	}

	resp, err := t.service.Search(ctx, req)
	if err != nil {
		t.logger.Warn("Log search failed", zap.Error(err))
		return handleLogError(err, t.Name()), nil
	}

	out := Envelope(http.StatusOK, resultPayload(resp.Result, t.optimizeLogs(resp.Result.Logs, fields, noOptimize), resp.Query))
	out["where"] = resp.Where
	out["hours_searched"] = resp.HoursSearched
	if resp.Intent != nil {
		out["intent"] = resp.Intent
	}
	if resp.Analysis != nil {
		out["analysis"] = resp.Analysis
	}
	if resp.Summary != nil {
		out["summary"] = resp.Summary
	}
	return t.FormatResponse(out)
}

// LogCheckTool reports whether conditions occurred in a recent window.
type LogCheckTool struct {
	*LogTool
}

// NewLogCheckTool creates the tool.
func NewLogCheckTool(service *logsearch.Service, logger *zap.Logger) *LogCheckTool {
	return &LogCheckTool{LogTool: newLogTool(service, nil, logger)}
}

// Name returns the tool name
func (t *LogCheckTool) Name() string { return "croit_log_check" }

// Description returns the tool description
func (t *LogCheckTool) Description() string {
	return "Check whether log conditions occurred recently, e.g. ['osd down', 'slow requests']. " +
		"Each condition is counted over the time window and triggers an alert at the threshold."
}

// InputSchema returns the input schema
func (t *LogCheckTool) InputSchema() interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"conditions": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Natural-language conditions to check",
			},
			"threshold": map[string]interface{}{
				"type":        "integer",
				"description": "Matches needed to trigger an alert (default 5)",
			},
			"time_window": map[string]interface{}{
				"type":        "integer",
				"description": "Window in seconds, ending now (default 300)",
			},
			"api_token": map[string]interface{}{
				"type":        "string",
				"description": "Override the configured API token",
			},
		},
		"required": []string{"conditions"},
	}
}

// Annotations returns tool hints
func (t *LogCheckTool) Annotations() *mcp.ToolAnnotations {
	return QueryAnnotations("Check Log Conditions")
}

// Execute runs the check.
func (t *LogCheckTool) Execute(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	conditions, err := GetStringArrayParam(args, "conditions", true)
	if err != nil {
		return NewMissingArgumentResult(err), nil
	}
	threshold, err := GetIntParam(args, "threshold", false)
	if err != nil {
		return NewMissingArgumentResult(err), nil
	}
	window, err := GetIntParam(args, "time_window", false)
	if err != nil {
		return NewMissingArgumentResult(err), nil
	}
	token, err := GetStringParam(args, "api_token", false)
	if err != nil {
		return NewMissingArgumentResult(err), nil
	}

	report, err := t.service.Check(ctx, logsearch.CheckRequest{
		Conditions: conditions,
		Threshold:  threshold,
		TimeWindow: time.Duration(window) * time.Second,
		Token:      token,
	})
	if err != nil {
		return handleLogError(err, t.Name()), nil
	}
	return t.FormatResponse(Envelope(http.StatusOK, report))
}

// LogShortcutTool runs the preset severity searches.
type LogShortcutTool struct {
	*LogTool
}

// NewLogShortcutTool creates the tool.
func NewLogShortcutTool(service *logsearch.Service, logger *zap.Logger) *LogShortcutTool {
	return &LogShortcutTool{LogTool: newLogTool(service, nil, logger)}
}

// Name returns the tool name
func (t *LogShortcutTool) Name() string { return "croit_log_shortcut" }

// Description returns the tool description
func (t *LogShortcutTool) Description() string {
	return "Quick severity searches: errors (priority <= 3, last 24h), warnings (<= 4, 24h), " +
		"info (<= 6, 6h) and critical (<= 2, 48h). Optionally narrowed to a server or a search term."
}

// InputSchema returns the input schema
func (t *LogShortcutTool) InputSchema() interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"kind": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"errors", "warnings", "info", "critical"},
				"description": "Preset to run",
			},
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Full-text term to narrow the search",
			},
			"server_id": map[string]interface{}{
				"type":        "string",
				"description": "Only logs of this croit server id",
			},
			"hours_back": map[string]interface{}{
				"type":        "number",
				"description": "Override the preset window",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Override the preset limit",
			},
			"api_token": map[string]interface{}{
				"type":        "string",
				"description": "Override the configured API token",
			},
		},
		"required": []string{"kind"},
	}
}

// Annotations returns tool hints
func (t *LogShortcutTool) Annotations() *mcp.ToolAnnotations {
	return QueryAnnotations("Severity Log Search")
}

// Execute runs the preset.
func (t *LogShortcutTool) Execute(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	kind, err := GetStringParam(args, "kind", true)
	if err != nil {
		return NewMissingArgumentResult(err), nil
	}
	req := logsearch.ShortcutRequest{Kind: logsearch.ShortcutKind(strings.ToLower(kind))}
	if req.Text, err = GetStringParam(args, "query", false); err != nil {
		return NewMissingArgumentResult(err), nil
	}
	if req.ServerID, err = GetStringParam(args, "server_id", false); err != nil {
		return NewMissingArgumentResult(err), nil
	}
	if req.HoursBack, err = GetFloatParam(args, "hours_back", false); err != nil {
		return NewMissingArgumentResult(err), nil
	}
	if req.Limit, err = GetIntParam(args, "limit", false); err != nil {
		return NewMissingArgumentResult(err), nil
	}
	if req.Token, err = GetStringParam(args, "api_token", false); err != nil {
		return NewMissingArgumentResult(err), nil
	}

	resp, err := t.service.Shortcut(ctx, req)
	if err != nil {
		return handleLogError(err, t.Name()), nil
	}
	return t.FormatResponse(Envelope(http.StatusOK, resp))
}

// DebugTemplatesTool lists and runs the Ceph debugging scenarios.
type DebugTemplatesTool struct {
	*LogTool
}

// NewDebugTemplatesTool creates the tool.
func NewDebugTemplatesTool(service *logsearch.Service, o *optimizer.Optimizer, logger *zap.Logger) *DebugTemplatesTool {
	return &DebugTemplatesTool{LogTool: newLogTool(service, o, logger)}
}

// Name returns the tool name
func (t *DebugTemplatesTool) Name() string { return "croit_debug_templates" }

// Description returns the tool description
func (t *DebugTemplatesTool) Description() string {
	return "Ready-made log searches for common Ceph problems (" + strings.Join(logsearch.TemplateIDs(), ", ") + "). " +
		"Without a scenario the templates are listed; with one it is run against the cluster logs."
}

// InputSchema returns the input schema
func (t *DebugTemplatesTool) InputSchema() interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"scenario": map[string]interface{}{
				"type":        "string",
				"enum":        logsearch.TemplateIDs(),
				"description": "Template to run",
			},
			"search": map[string]interface{}{
				"type":        "string",
				"description": "Only list templates matching this keyword",
			},
			"api_token": map[string]interface{}{
				"type":        "string",
				"description": "Override the configured API token",
			},
		},
	}
}

// Annotations returns tool hints
func (t *DebugTemplatesTool) Annotations() *mcp.ToolAnnotations {
	return QueryAnnotations("Ceph Debug Templates")
}

// Execute lists or runs templates.
func (t *DebugTemplatesTool) Execute(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	scenario, err := GetStringParam(args, "scenario", false)
	if err != nil {
		return NewMissingArgumentResult(err), nil
	}
	if scenario == "" {
		search, err := GetStringParam(args, "search", false)
		if err != nil {
			return NewMissingArgumentResult(err), nil
		}
		templates := logsearch.DebugTemplates()
		if search != "" {
			templates = logsearch.SearchTemplates(search)
		}
		return t.FormatResponse(map[string]interface{}{
			"templates": templates,
			"count":     len(templates),
			"usage":     "Run one with croit_debug_templates(scenario='<id>'), or pass its where to croit_log_search",
		})
	}

	token, err := GetStringParam(args, "api_token", false)
	if err != nil {
		return NewMissingArgumentResult(err), nil
	}
	tmpl, result, err := t.service.RunTemplate(ctx, scenario, token)
	if err != nil {
		return handleLogError(err, t.Name()), nil
	}

	summary := logsearch.Summarize(result.Logs, 15, 10)
	out := Envelope(http.StatusOK, resultPayload(result, t.optimizeLogs(result.Logs, nil, false), ""))
	out["template"] = tmpl
	out["summary"] = summary
	return t.FormatResponse(out)
}

// LogServersTool inspects which servers and transports produce logs.
type LogServersTool struct {
	*LogTool
}

// NewLogServersTool creates the tool.
func NewLogServersTool(service *logsearch.Service, logger *zap.Logger) *LogServersTool {
	return &LogServersTool{LogTool: newLogTool(service, nil, logger)}
}

// Server tool actions.
const (
	serversActionServers    = "servers"
	serversActionTransports = "transports"
	serversActionKernel     = "kernel"
)

// Name returns the tool name
func (t *LogServersTool) Name() string { return "croit_log_servers" }

// Description returns the tool description
func (t *LogServersTool) Description() string {
	return "Discover log sources. servers: log volume per croit server id, with a suggested server filter for a query. " +
		"transports: journal transports (kernel, syslog, stdout) seen recently. " +
		"kernel: try several strategies to find kernel logs."
}

// InputSchema returns the input schema
func (t *LogServersTool) InputSchema() interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action": map[string]interface{}{
				"type":        "string",
				"enum":        []string{serversActionServers, serversActionTransports, serversActionKernel},
				"description": "What to inspect (default servers)",
			},
			"query": map[string]interface{}{
				"type":        "string",
				"description": "servers: question to suggest a server filter for, e.g. 'errors on server 3'",
			},
			"refresh": map[string]interface{}{
				"type":        "boolean",
				"description": "servers: ignore the cached distribution",
			},
			"hours_back": map[string]interface{}{
				"type":        "number",
				"description": "transports/kernel: window in hours (default 24)",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "kernel: records per strategy (default 100)",
			},
			"api_token": map[string]interface{}{
				"type":        "string",
				"description": "Override the configured API token",
			},
		},
	}
}

// Annotations returns tool hints
func (t *LogServersTool) Annotations() *mcp.ToolAnnotations {
	return QueryAnnotations("Log Sources")
}

// Execute runs the selected inspection.
func (t *LogServersTool) Execute(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	action, err := GetStringParam(args, "action", false)
	if err != nil {
		return NewMissingArgumentResult(err), nil
	}
	if action == "" {
		action = serversActionServers
	}
	token, err := GetStringParam(args, "api_token", false)
	if err != nil {
		return NewMissingArgumentResult(err), nil
	}
	hoursBack, err := GetFloatParam(args, "hours_back", false)
	if err != nil {
		return NewMissingArgumentResult(err), nil
	}

	switch action {
	case serversActionServers:
		refresh, err := GetBoolParam(args, "refresh", false)
		if err != nil {
			return NewMissingArgumentResult(err), nil
		}
		query, err := GetStringParam(args, "query", false)
		if err != nil {
			return NewMissingArgumentResult(err), nil
		}
		report, err := t.service.DiscoverServers(ctx, refresh, token)
		if err != nil {
			return handleLogError(err, t.Name()), nil
		}
		out := map[string]interface{}{"servers": report}
		if query != "" {
			if f := logsearch.SuggestServerFilter(query, report); f != nil {
				out["suggested_filter"] = f
			}
		}
		return t.FormatResponse(Envelope(http.StatusOK, out))

	case serversActionTransports:
		report, err := t.service.AnalyzeTransports(ctx, hoursBack, token)
		if err != nil {
			return handleLogError(err, t.Name()), nil
		}
		return t.FormatResponse(Envelope(http.StatusOK, report))

	case serversActionKernel:
		limit, err := GetIntParam(args, "limit", false)
		if err != nil {
			return NewMissingArgumentResult(err), nil
		}
		results, recommendations, err := t.service.FindKernelLogs(ctx, hoursBack, limit, token)
		if err != nil {
			return handleLogError(err, t.Name()), nil
		}
		return t.FormatResponse(Envelope(http.StatusOK, map[string]interface{}{
			"strategies":      results,
			"recommendations": recommendations,
		}))
	}

	return NewStructuredErrorResult(mcperrors.NewInvalidInput("unknown action "+action).
		WithSuggestion("Use one of: servers, transports, kernel")), nil
}
