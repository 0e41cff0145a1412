// Package tools provides the MCP tool implementations for croit Ceph clusters.
package tools

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool defines the interface that all MCP tools must implement.
type Tool interface {
	// Name returns the unique identifier for this tool
	Name() string

	// Description returns a human-readable description of what this tool does
	Description() string

	// InputSchema returns the JSON Schema for the tool's input parameters
	InputSchema() interface{}

	// Execute runs the tool with the given arguments and returns the result.
	// Problems the caller can fix are returned as error results, not as Go
	// errors.
	Execute(ctx context.Context, arguments map[string]interface{}) (*mcp.CallToolResult, error)

	// Annotations returns optional hints about tool behavior for LLMs.
	// Returns nil if no annotations are needed (defaults will be used).
	Annotations() *mcp.ToolAnnotations

	// DefaultTimeout returns the recommended timeout for this tool type.
	// Returns 0 to use the server default.
	DefaultTimeout() time.Duration
}

// EnhancedTool extends Tool with discovery metadata used by search_tools.
type EnhancedTool interface {
	Tool

	// Metadata returns semantic metadata for tool discovery
	Metadata() *ToolMetadata
}

// ToolMetadata provides semantic information for tool discovery
type ToolMetadata struct {
	Categories   []ToolCategory `json:"categories"`
	Keywords     []string       `json:"keywords"`
	Complexity   string         `json:"complexity"`
	UseCases     []string       `json:"use_cases"`
	RelatedTools []string       `json:"related_tools"`
}

// ToolCategory represents the functional category of a tool
type ToolCategory string

// Tool categories for functional grouping
const (
	CategoryAPI      ToolCategory = "api"
	CategoryEndpoint ToolCategory = "endpoint"
	CategoryManage   ToolCategory = "manage"
	CategoryLogs     ToolCategory = "logs"
	CategoryCache    ToolCategory = "cache"
	CategoryMeta     ToolCategory = "meta"
)

// ToolComplexity levels
const (
	ComplexitySimple       = "simple"
	ComplexityIntermediate = "intermediate"
	ComplexityAdvanced     = "advanced"
)

// Default timeouts per tool family.
const (
	DefaultAPITimeout = 60 * time.Second
	DefaultLogTimeout = 120 * time.Second
)
