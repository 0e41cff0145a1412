// Package resources provides MCP resource handlers for the croit Ceph server.
// Resources expose read-only data to MCP clients for context and status information.
package resources

import (
	"context"
	"encoding/json"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/croit/mcp-croit-ceph/internal/audit"
	"github.com/croit/mcp-croit-ceph/internal/cache"
	"github.com/croit/mcp-croit-ceph/internal/config"
	"github.com/croit/mcp-croit-ceph/internal/metrics"
)

// Resource URIs
const (
	AboutURI   = "croit://about"
	ConfigURI  = "croit://config"
	MetricsURI = "croit://metrics"
	CacheURI   = "croit://cache"
	AuditURI   = "croit://audit/recent"
)

// recentAuditEntries is how many audit entries croit://audit/recent shows.
const recentAuditEntries = 50

// Sources are the optional components resources report on.
type Sources struct {
	Cache     *cache.Cache
	Store     *cache.Store
	Audit     *audit.Logger
	ToolCount int
}

// Registry holds all registered resources and their handlers
type Registry struct {
	config  *config.Config
	metrics *metrics.Metrics
	sources Sources
	logger  *zap.Logger
	version string
}

// NewRegistry creates a new resource registry
func NewRegistry(cfg *config.Config, m *metrics.Metrics, src Sources, logger *zap.Logger, version string) *Registry {
	return &Registry{
		config:  cfg,
		metrics: m,
		sources: src,
		logger:  logger,
		version: version,
	}
}

// RegisteredResource represents a resource with its definition and handler
type RegisteredResource struct {
	Resource *mcp.Resource
	Handler  mcp.ResourceHandler
}

// GetResources returns all registered resources with their handlers
func (r *Registry) GetResources() []RegisteredResource {
	resources := []RegisteredResource{
		r.aboutResource(),
		r.configResource(),
	}
	if r.metrics != nil {
		resources = append(resources, r.metricsResource())
	}
	if r.sources.Cache != nil || r.sources.Store != nil {
		resources = append(resources, r.cacheResource())
	}
	if r.sources.Audit != nil && r.sources.Audit.IsEnabled() {
		resources = append(resources, r.auditResource())
	}
	return resources
}

// jsonResource wraps a data producer into a JSON resource.
func (r *Registry) jsonResource(uri, title, description string, data func() interface{}) RegisteredResource {
	return RegisteredResource{
		Resource: &mcp.Resource{
			URI:         uri,
			Name:        uri,
			Title:       title,
			Description: description,
			MIMEType:    "application/json",
		},
		Handler: func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			content, err := json.MarshalIndent(data(), "", "  ")
			if err != nil {
				r.logger.Error("Failed to marshal resource", zap.String("uri", uri), zap.Error(err))
				return nil, err
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{
						URI:      uri,
						MIMEType: "application/json",
						Text:     string(content),
					},
				},
			}, nil
		},
	}
}

func (r *Registry) aboutResource() RegisteredResource {
	return r.jsonResource(AboutURI, "About croit", "Service information, tool surface and capabilities",
		func() interface{} {
			return map[string]interface{}{
				"service": map[string]interface{}{
					"name":        "croit",
					"description": "Ceph cluster management platform with a REST API and centralized log collection",
					"aliases":     []string{"croit", "Ceph", "croit cluster"},
				},
				"tool_surface": map[string]interface{}{
					"endpoints_as_tools": r.config.EndpointsAsTools,
					"category_tools":     r.config.EnableCategoryTools,
					"log_tools":          r.config.EnableLogTools,
					"resolve_references": r.config.ResolveReferences,
					"tool_count":         r.sources.ToolCount,
				},
				"mcp_server": map[string]interface{}{
					"version":      r.version,
					"capabilities": []string{"tools", "prompts", "resources"},
				},
			}
		})
}

func (r *Registry) configResource() RegisteredResource {
	return r.jsonResource(ConfigURI, "Server Configuration",
		"Current croit MCP server configuration (API token masked)",
		func() interface{} {
			c := r.config.Redact()
			return map[string]interface{}{
				"host":                  c.Host,
				"api_token":             c.APIToken,
				"log_port":              c.LogPort,
				"timeout":               c.Timeout.String(),
				"log_search_timeout":    c.LogSearchTimeout.String(),
				"max_retries":           c.MaxRetries,
				"rate_limit":            c.RateLimit,
				"rate_limit_burst":      c.RateLimitBurst,
				"rate_limit_enabled":    c.EnableRateLimit,
				"tls_verify":            c.TLSVerify,
				"cache_max_entries":     c.CacheMaxEntries,
				"cache_default_ttl":     c.CacheDefaultTTL.String(),
				"store_max_entries":     c.StoreMaxEntries,
				"compression_threshold": c.CompressionThreshold,
				"tracing_enabled":       c.EnableTracing,
				"audit_log_enabled":     c.EnableAuditLog,
				"log_level":             c.LogLevel,
				"log_format":            c.LogFormat,
				"server_version":        r.version,
			}
		})
}

func (r *Registry) metricsResource() RegisteredResource {
	return r.jsonResource(MetricsURI, "Server Metrics",
		"Operational metrics including API requests, latency, tool usage and log channels",
		func() interface{} {
			stats := r.metrics.GetStats()
			return map[string]interface{}{
				"requests": map[string]interface{}{
					"total":      stats.TotalRequests,
					"successful": stats.SuccessfulRequests,
					"failed":     stats.FailedRequests,
					"retried":    stats.RetriedRequests,
				},
				"rate_limiting": map[string]interface{}{
					"hits": stats.RateLimitHits,
				},
				"latency": map[string]interface{}{
					"average_ms": stats.AverageLatency.Milliseconds(),
					"max_ms":     stats.MaxLatency.Milliseconds(),
					"min_ms":     stats.MinLatency.Milliseconds(),
				},
				"errors_by_status": stats.ErrorsByStatus,
				"tools": map[string]interface{}{
					"usage":   stats.ToolUsage,
					"errors":  stats.ToolErrors,
					"latency": formatToolLatency(stats.ToolLatency),
				},
				"log_channels":        stats.LogChannels,
				"optimizer_decisions": stats.OptimizerDecisions,
				"timestamp":           time.Now().UTC().Format(time.RFC3339),
			}
		})
}

func (r *Registry) cacheResource() RegisteredResource {
	return r.jsonResource(CacheURI, "Response Cache",
		"Response cache and drill-down store statistics",
		func() interface{} {
			data := map[string]interface{}{}
			if r.sources.Cache != nil {
				data["cache"] = r.sources.Cache.Stats()
			}
			if r.sources.Store != nil {
				data["store"] = r.sources.Store.Stats()
				data["last_response_id"] = r.sources.Store.Last()
			}
			return data
		})
}

func (r *Registry) auditResource() RegisteredResource {
	return r.jsonResource(AuditURI, "Recent Tool Calls",
		"The most recent tool executions with outcome and duration",
		func() interface{} {
			return map[string]interface{}{
				"stats":   r.sources.Audit.GetStats(),
				"entries": r.sources.Audit.Recent(recentAuditEntries),
			}
		})
}

// formatToolLatency converts time.Duration map to milliseconds for JSON
func formatToolLatency(latency map[string]time.Duration) map[string]int64 {
	result := make(map[string]int64, len(latency))
	for tool, duration := range latency {
		result[tool] = duration.Milliseconds()
	}
	return result
}
