package tools

import (
	"go.uber.org/zap"

	"github.com/croit/mcp-croit-ceph/internal/cache"
	"github.com/croit/mcp-croit-ceph/internal/catalog"
	"github.com/croit/mcp-croit-ceph/internal/client"
	"github.com/croit/mcp-croit-ceph/internal/logsearch"
)

// Deps carries everything the tools are built from.
type Deps struct {
	Client   *client.Client
	Pipeline *APIPipeline
	Store    *cache.Store

	// Document is served by the list tool; RawDocument, the unresolved
	// document, backs get_reference_schema.
	Document    *catalog.Document
	RawDocument *catalog.Document
	Registry    *catalog.Registry

	// Logs is nil when log tools are disabled.
	Logs *logsearch.Service

	EndpointsAsTools  bool
	ResolveReferences bool
	OfferWholeSpec    bool

	Logger *zap.Logger
}

// GetAllTools returns all MCP tools for the configured surface, and the index
// search_tools and describe_tools work on.
func GetAllTools(d Deps) ([]Tool, *ToolIndex) {
	index := NewToolIndex()
	var all []Tool
	add := func(t Tool, category ToolCategory) {
		all = append(all, t)
		index.Add(t, category)
	}

	// Generic API tools, unless every endpoint is its own tool
	if !d.EndpointsAsTools {
		add(NewListAPIEndpointsTool(d.Client, d.Document, d.OfferWholeSpec, d.Logger), CategoryAPI)
		add(NewCallAPIEndpointTool(d.Client, d.Pipeline, d.Logger), CategoryAPI)
	}
	if !d.ResolveReferences && d.RawDocument != nil {
		add(NewGetReferenceSchemaTool(d.Client, d.RawDocument, d.Logger), CategoryAPI)
	}

	// Endpoint and category tools
	if d.Registry != nil {
		for _, name := range d.Registry.Names() {
			entry, _ := d.Registry.Lookup(name)
			switch entry.Kind {
			case catalog.KindDirect:
				add(NewEndpointTool(d.Client, entry, d.Pipeline, d.Logger), CategoryEndpoint)
			case catalog.KindCategory:
				add(NewCategoryTool(d.Client, entry, d.Pipeline, d.Logger), CategoryManage)
			}
		}
	}

	// Log tools
	if d.Logs != nil {
		o := d.Pipeline.Optimizer()
		add(NewLogSearchTool(d.Logs, o, d.Logger), CategoryLogs)
		add(NewLogCheckTool(d.Logs, d.Logger), CategoryLogs)
		add(NewLogShortcutTool(d.Logs, d.Logger), CategoryLogs)
		add(NewDebugTemplatesTool(d.Logs, o, d.Logger), CategoryLogs)
		add(NewLogServersTool(d.Logs, d.Logger), CategoryLogs)
	}

	// Drill-down and cache tools
	add(NewSearchLastResultTool(d.Store, d.Logger), CategoryCache)
	add(NewCacheStatsTool(d.Pipeline.Cache(), d.Store, d.Logger), CategoryCache)

	// Meta tools see everything registered above, themselves included
	add(NewSearchToolsTool(index, d.Logger), CategoryMeta)
	add(NewDescribeToolsTool(index, d.Logger), CategoryMeta)

	return all, index
}
