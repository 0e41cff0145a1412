package tools

// Dynamic toolset: with one tool per endpoint a cluster exposes hundreds of
// tools, so agents search, then describe, then execute.

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// ToolBrief provides minimal tool information for search results.
type ToolBrief struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Category    ToolCategory `json:"category"`
	Score       int          `json:"score"`
}

// ToolSchema provides full tool information when explicitly requested.
type ToolSchema struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Category    ToolCategory         `json:"category"`
	InputSchema interface{}          `json:"input_schema"`
	Annotations *mcp.ToolAnnotations `json:"annotations,omitempty"`
	Metadata    *ToolMetadata        `json:"metadata,omitempty"`
}

type indexedTool struct {
	tool     Tool
	category ToolCategory
}

// ToolIndex holds the registered tools for search_tools and describe_tools.
type ToolIndex struct {
	mu    sync.RWMutex
	tools map[string]indexedTool
}

// NewToolIndex creates an empty index.
func NewToolIndex() *ToolIndex {
	return &ToolIndex{tools: map[string]indexedTool{}}
}

// Add indexes a tool under a category.
func (x *ToolIndex) Add(t Tool, category ToolCategory) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.tools[t.Name()] = indexedTool{tool: t, category: category}
}

// Get returns a tool by name.
func (x *ToolIndex) Get(name string) (Tool, ToolCategory, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	it, ok := x.tools[name]
	return it.tool, it.category, ok
}

// Names returns all tool names, sorted.
func (x *ToolIndex) Names() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	names := make([]string, 0, len(x.tools))
	for name := range x.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Search ranks tools against the query terms. A name hit counts three, a
// description hit one. An empty query lists the category.
func (x *ToolIndex) Search(query string, category ToolCategory) []ToolBrief {
	terms := strings.Fields(strings.ToLower(query))

	x.mu.RLock()
	defer x.mu.RUnlock()

	var out []ToolBrief
	for name, it := range x.tools {
		if category != "" && it.category != category {
			continue
		}
		lname := strings.ToLower(name)
		ldesc := strings.ToLower(it.tool.Description())
		score := 0
		for _, term := range terms {
			if strings.Contains(lname, term) {
				score += 3
			}
			if strings.Contains(ldesc, term) {
				score++
			}
		}
		if len(terms) > 0 && score == 0 {
			continue
		}
		out = append(out, ToolBrief{
			Name:        name,
			Description: truncateDescription(it.tool.Description(), 100),
			Category:    it.category,
			Score:       score,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// truncateDescription truncates a description to maxLen characters
func truncateDescription(desc string, maxLen int) string {
	desc = strings.ReplaceAll(desc, "**", "")
	desc = strings.ReplaceAll(desc, "`", "")

	// first line only
	lines := strings.Split(desc, "\n")
	desc = strings.TrimSpace(lines[0])

	if len(desc) <= maxLen {
		return desc
	}

	truncated := desc[:maxLen]
	lastSpace := strings.LastIndex(truncated, " ")
	if lastSpace > maxLen/2 {
		return truncated[:lastSpace] + "..."
	}
	return truncated + "..."
}

var searchCategories = []string{
	string(CategoryAPI), string(CategoryEndpoint), string(CategoryManage),
	string(CategoryLogs), string(CategoryCache), string(CategoryMeta),
}

// SearchToolsTool searches for tools by query, returning minimal info (no schemas).
type SearchToolsTool struct {
	*BaseTool
	index *ToolIndex
}

// NewSearchToolsTool creates a new SearchToolsTool
func NewSearchToolsTool(index *ToolIndex, l *zap.Logger) *SearchToolsTool {
	return &SearchToolsTool{BaseTool: NewBaseTool(nil, l), index: index}
}

// Name returns the tool name
func (t *SearchToolsTool) Name() string { return "search_tools" }

// Description returns a concise description
func (t *SearchToolsTool) Description() string {
	return "Search available tools by intent or category, e.g. 'pool', 'osd', 'logs'. Returns names and brief descriptions only - use describe_tools for full schemas."
}

// InputSchema returns the input schema
func (t *SearchToolsTool) InputSchema() interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Search terms (e.g., 'list pools', 'rbd snapshot')",
			},
			"category": map[string]interface{}{
				"type":        "string",
				"description": "Filter by category",
				"enum":        searchCategories,
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Max results to return (default: 10)",
				"default":     10,
			},
		},
	}
}

// Annotations returns tool annotations
func (t *SearchToolsTool) Annotations() *mcp.ToolAnnotations {
	return ReadOnlyAnnotations("Search Tools")
}

// Execute searches tools and returns brief results
func (t *SearchToolsTool) Execute(_ context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	query, err := GetStringParam(args, "query", false)
	if err != nil {
		return NewMissingArgumentResult(err), nil
	}
	category, err := GetStringParam(args, "category", false)
	if err != nil {
		return NewMissingArgumentResult(err), nil
	}
	limit, err := GetIntParam(args, "limit", false)
	if err != nil {
		return NewMissingArgumentResult(err), nil
	}

	if limit <= 0 {
		limit = 10
	}
	if limit > 25 {
		limit = 25
	}

	if query == "" && category == "" {
		return NewToolResultError("Provide 'query' (what you want to do) or 'category' to search"), nil
	}

	matches := t.index.Search(query, ToolCategory(category))
	briefs := matches
	if len(briefs) > limit {
		briefs = briefs[:limit]
	}

	return t.FormatResponse(map[string]interface{}{
		"tools":       briefs,
		"total_found": len(matches),
		"showing":     len(briefs),
		"hint":        "Use describe_tools to get full schemas for tools you want to use",
	})
}

// DescribeToolsTool returns full schemas for specified tools.
type DescribeToolsTool struct {
	*BaseTool
	index *ToolIndex
}

// NewDescribeToolsTool creates a new DescribeToolsTool
func NewDescribeToolsTool(index *ToolIndex, l *zap.Logger) *DescribeToolsTool {
	return &DescribeToolsTool{BaseTool: NewBaseTool(nil, l), index: index}
}

// Name returns the tool name
func (t *DescribeToolsTool) Name() string { return "describe_tools" }

// Description returns a concise description
func (t *DescribeToolsTool) Description() string {
	return "Get full schemas and documentation for specific tools. Call this before using a tool to understand its parameters."
}

// maxDescribe limits how many schemas one call loads.
const maxDescribe = 5

// InputSchema returns the input schema
func (t *DescribeToolsTool) InputSchema() interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"names": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Tool names to describe (from search_tools results)",
				"maxItems":    maxDescribe,
			},
		},
		"required": []string{"names"},
	}
}

// Annotations returns tool annotations
func (t *DescribeToolsTool) Annotations() *mcp.ToolAnnotations {
	return ReadOnlyAnnotations("Describe Tools")
}

// Execute returns full schemas for requested tools
func (t *DescribeToolsTool) Execute(_ context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	names, err := GetStringArrayParam(args, "names", true)
	if err != nil {
		return NewMissingArgumentResult(err), nil
	}
	if len(names) > maxDescribe {
		names = names[:maxDescribe]
	}

	schemas := make([]ToolSchema, 0, len(names))
	var unknown []string
	for _, name := range names {
		tool, category, ok := t.index.Get(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		schema := ToolSchema{
			Name:        tool.Name(),
			Description: tool.Description(),
			Category:    category,
			InputSchema: tool.InputSchema(),
			Annotations: tool.Annotations(),
		}
		if et, ok := tool.(EnhancedTool); ok {
			schema.Metadata = et.Metadata()
		}
		schemas = append(schemas, schema)
	}

	if len(schemas) == 0 {
		return NewToolResultErrorWithSuggestion(
			fmt.Sprintf("Unknown tools: %s", strings.Join(unknown, ", ")),
			"Use search_tools to find tool names"), nil
	}

	out := map[string]interface{}{"tools": schemas}
	if len(unknown) > 0 {
		out["not_found"] = unknown
	}
	return t.FormatResponse(out)
}
