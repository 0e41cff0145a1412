// Package prompts provides pre-built prompts for common Ceph investigations
// on a croit cluster.
package prompts

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// PromptDefinition represents a prompt with its metadata and handler
type PromptDefinition struct {
	// Prompt is the MCP prompt metadata
	Prompt *mcp.Prompt
	// Handler is the function that generates the prompt content
	Handler mcp.PromptHandler
}

// Registry holds all registered prompts
type Registry struct {
	logger  *zap.Logger
	prompts []*PromptDefinition
}

// NewRegistry creates a prompt registry. Prompts built around the log tools
// are only offered when those tools are enabled.
func NewRegistry(logger *zap.Logger, logTools bool) *Registry {
	r := &Registry{
		logger: logger,
	}
	r.registerPrompts(logTools)
	return r
}

// GetPrompts returns all registered prompt definitions
func (r *Registry) GetPrompts() []*PromptDefinition {
	return r.prompts
}

func (r *Registry) registerPrompts(logTools bool) {
	r.prompts = []*PromptDefinition{
		r.quickStartPrompt(),
		r.clusterHealthPrompt(),
		r.capacityReviewPrompt(),
	}
	if logTools {
		r.prompts = append(r.prompts,
			r.investigateOSDPrompt(),
			r.slowRequestsPrompt(),
			r.incidentTimelinePrompt(),
		)
	}
	r.logger.Debug("Registered prompts", zap.Int("count", len(r.prompts)))
}

// Helper to create a prompt result with user role
func createPromptResult(description, content string) *mcp.GetPromptResult {
	return &mcp.GetPromptResult{
		Description: description,
		Messages: []*mcp.PromptMessage{
			{
				Role: "user",
				Content: &mcp.TextContent{
					Text: content,
				},
			},
		},
	}
}

// getStringArg safely extracts a string argument with a default value
func getStringArg(args map[string]string, key, defaultVal string) string {
	if val, ok := args[key]; ok && val != "" {
		return val
	}
	return defaultVal
}

func (r *Registry) quickStartPrompt() *PromptDefinition {
	return &PromptDefinition{
		Prompt: &mcp.Prompt{
			Name:        "quick_start",
			Title:       "Quick Start",
			Description: "How to find and call the croit cluster API tools",
		},
		Handler: func(_ context.Context, _ *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			content := `You are connected to a croit-managed Ceph cluster.

1. Use search_tools with a few words ("pools", "rbd snapshot", "osd") to find the right tool.
2. Use describe_tools to read its parameters before the first call.
3. Large list responses come back as summaries with a _response_id. Use search_last_result
   with filters such as {"status": "error"} instead of repeating the call.
4. Narrow responses with fields (e.g. ["name", "status"]) and filters.
5. Cluster logs are searched with croit_log_search in plain language, e.g.
   "osd errors in the last 2 hours".

Write operations (create, update, delete) change the production cluster. Confirm them with the user first.`
			return createPromptResult("Getting started with the croit tools", content), nil
		},
	}
}

func (r *Registry) clusterHealthPrompt() *PromptDefinition {
	return &PromptDefinition{
		Prompt: &mcp.Prompt{
			Name:        "cluster_health_check",
			Title:       "Cluster Health Check",
			Description: "Walk through the health of the Ceph cluster: status, OSDs, PGs and servers",
			Arguments: []*mcp.PromptArgument{
				{
					Name:        "focus",
					Description: "Area to focus on (osd, pg, mon, capacity). Default: everything",
					Required:    false,
				},
			},
		},
		Handler: func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			focus := getStringArg(req.Params.Arguments, "focus", "everything")

			content := fmt.Sprintf(`Check the health of the Ceph cluster, focusing on %s.

1. Find the cluster status endpoint with search_tools("status") and call it.
   Report HEALTH_OK, HEALTH_WARN or HEALTH_ERR and list every health check.
2. List OSDs with fields ["id", "status", "host", "up"] and filters {"status": "down"}.
3. List placement groups that are not active+clean.
4. List servers and flag any that are offline.
5. If something is wrong, search the logs of the affected daemons with croit_log_search.

Summarize findings by severity and suggest next steps. Do not change anything without confirmation.`, focus)

			return createPromptResult("Ceph cluster health check", content), nil
		},
	}
}

func (r *Registry) capacityReviewPrompt() *PromptDefinition {
	return &PromptDefinition{
		Prompt: &mcp.Prompt{
			Name:        "capacity_review",
			Title:       "Capacity Review",
			Description: "Review raw and per-pool capacity and spot pools running full",
			Arguments: []*mcp.PromptArgument{
				{
					Name:        "threshold_percent",
					Description: "Usage percentage considered critical (default 80)",
					Required:    false,
				},
			},
		},
		Handler: func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			threshold := getStringArg(req.Params.Arguments, "threshold_percent", "80")

			content := fmt.Sprintf(`Review the storage capacity of the cluster.

1. Get the overall usage (raw capacity, used, available).
2. List pools with fields ["name", "size", "used_bytes", "percent_used"].
3. Flag every pool above %s%% used, and OSDs above their nearfull ratio.
4. For RBD pools, list the largest images.

Present a table sorted by usage and recommend actions (expansion, rebalancing, quotas).`, threshold)

			return createPromptResult("Ceph capacity review", content), nil
		},
	}
}

func (r *Registry) investigateOSDPrompt() *PromptDefinition {
	return &PromptDefinition{
		Prompt: &mcp.Prompt{
			Name:        "investigate_osd",
			Title:       "Investigate OSD Problems",
			Description: "Find out why OSDs are down, flapping or slow using state and logs",
			Arguments: []*mcp.PromptArgument{
				{
					Name:        "osd_id",
					Description: "OSD number, e.g. 12. Default: all OSDs",
					Required:    false,
				},
				{
					Name:        "hours",
					Description: "How far back to search the logs (default 6)",
					Required:    false,
				},
			},
		},
		Handler: func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			osd := getStringArg(req.Params.Arguments, "osd_id", "")
			hours := getStringArg(req.Params.Arguments, "hours", "6")

			target := "all OSDs"
			query := fmt.Sprintf("osd errors in the last %s hours", hours)
			if osd != "" {
				target = "osd." + osd
				query = fmt.Sprintf("osd.%s errors in the last %s hours", osd, hours)
			}

			content := fmt.Sprintf(`Investigate problems of %s.

1. Get the OSD state from the API (up/in, host, device class, usage).
2. Run croit_log_search with query "%s".
3. Run croit_debug_templates with scenario "osd_health_check" for heartbeat and flapping patterns.
4. If a host is involved, run croit_log_servers with action "kernel" to look for disk or controller errors.

Correlate state changes with log events and name the most likely cause.`, target, query)

			return createPromptResult("Investigate OSD problems", content), nil
		},
	}
}

func (r *Registry) slowRequestsPrompt() *PromptDefinition {
	return &PromptDefinition{
		Prompt: &mcp.Prompt{
			Name:        "slow_requests",
			Title:       "Slow Requests",
			Description: "Track down slow or blocked Ceph requests",
		},
		Handler: func(_ context.Context, _ *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			content := `Find the cause of slow or blocked requests.

1. Run croit_debug_templates with scenario "slow_requests".
2. Group the results by OSD and host. A single OSD points to a disk, a single host to network or CPU.
3. Check the state of the OSDs involved through the API.
4. Run croit_log_check with conditions ["slow requests", "osd down"] to see if the problem is ongoing.

Report the affected OSDs, the likely cause and concrete next steps.`
			return createPromptResult("Slow request investigation", content), nil
		},
	}
}

func (r *Registry) incidentTimelinePrompt() *PromptDefinition {
	return &PromptDefinition{
		Prompt: &mcp.Prompt{
			Name:        "incident_timeline",
			Title:       "Incident Timeline",
			Description: "Build a timeline of cluster events around an incident from the logs",
			Arguments: []*mcp.PromptArgument{
				{
					Name:        "description",
					Description: "What happened, in a few words",
					Required:    true,
				},
				{
					Name:        "hours",
					Description: "How far back to look (default 24)",
					Required:    false,
				},
			},
		},
		Handler: func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			desc := getStringArg(req.Params.Arguments, "description", "")
			if desc == "" {
				return nil, fmt.Errorf("description is required")
			}
			hours := getStringArg(req.Params.Arguments, "hours", "24")

			content := fmt.Sprintf(`Build a timeline for this incident: %s

1. Run croit_log_shortcut with kind "critical" and hours_back %s.
2. Run croit_log_search with a query describing the incident and hours_back %s.
3. Use the analysis in the response (repeated errors, bursts, affected services) to order events.
4. Drill into interesting entries with search_last_result.

Present the timeline oldest first with timestamps, daemon and message, and mark the first failure.`, desc, hours, hours)

			return createPromptResult("Incident timeline", content), nil
		},
	}
}
