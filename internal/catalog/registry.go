package catalog

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Kind tells the dispatcher how a tool is served.
type Kind int

// Tool kinds.
const (
	KindDirect Kind = iota
	KindCategory
	KindLogSearch
	KindSchema
)

func (k Kind) String() string {
	switch k {
	case KindDirect:
		return "direct"
	case KindCategory:
		return "category"
	case KindLogSearch:
		return "log_search"
	case KindSchema:
		return "schema"
	}
	return "unknown"
}

// Entry is one registered tool.
type Entry struct {
	Name        string
	Kind        Kind
	Description string
	InputSchema map[string]interface{}

	// KindDirect
	Endpoint *EndpointDescriptor
	Binding  *EndpointBinding

	// KindCategory
	Category *Category
}

// Registry maps tool names to entries. It is filled once at startup and
// read-only afterwards.
type Registry struct {
	entries map[string]Entry
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[string]Entry{}}
}

// Add registers an entry. Names must be unique.
func (r *Registry) Add(e Entry) error {
	if e.Name == "" {
		return fmt.Errorf("tool entry has no name")
	}
	if _, exists := r.entries[e.Name]; exists {
		return fmt.Errorf("tool %s is registered twice", e.Name)
	}
	r.entries[e.Name] = e
	r.order = append(r.order, e.Name)
	return nil
}

// Lookup returns the entry for name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	return len(r.entries)
}

// CountByKind returns the number of entries per kind.
func (r *Registry) CountByKind() map[string]int {
	counts := map[string]int{}
	for _, e := range r.entries {
		counts[e.Kind.String()]++
	}
	return counts
}

// BuildOptions selects which endpoint tools are generated.
type BuildOptions struct {
	EndpointsAsTools bool
	CategoryTools    bool
	MaxCategories    int
	// Describe may decorate endpoint descriptions, e.g. with usage hints.
	Describe func(description, path string) string
}

// Build registers direct endpoint tools and category tools for endpoints.
// Operations without an id are skipped.
func Build(endpoints []EndpointDescriptor, opts BuildOptions, logger *zap.Logger) (*Registry, error) {
	r := NewRegistry()

	if opts.EndpointsAsTools {
		for i := range endpoints {
			e := endpoints[i]
			if e.OperationID == "" {
				continue
			}
			schema, binding := InputSchema(e)
			desc := e.ToolDescription()
			if opts.Describe != nil {
				desc = opts.Describe(desc, e.Path)
			}
			if err := r.Add(Entry{
				Name:        ToolName(e.OperationID),
				Kind:        KindDirect,
				Description: desc,
				InputSchema: schema,
				Endpoint:    &e,
				Binding:     &binding,
			}); err != nil {
				logger.Warn("Skipping duplicate endpoint tool",
					zap.String("operation_id", e.OperationID),
					zap.Error(err),
				)
			}
		}
	}

	if opts.CategoryTools {
		limit := opts.MaxCategories
		if limit <= 0 {
			limit = MaxCategoryTools
		}
		for _, c := range Categorize(endpoints, limit) {
			c := c
			if err := r.Add(Entry{
				Name:        c.ToolName(),
				Kind:        KindCategory,
				Description: c.Description(),
				InputSchema: CategorySchema(c),
				Category:    &c,
			}); err != nil {
				return nil, err
			}
		}
	}

	logger.Info("Built tool registry",
		zap.Int("endpoints", len(endpoints)),
		zap.Int("tools", r.Len()),
	)
	return r, nil
}

// CategorySchema is the input schema shared by category tools.
func CategorySchema(c Category) map[string]interface{} {
	paths := make([]string, 0, len(c.Endpoints))
	seen := map[string]bool{}
	for _, e := range c.Endpoints {
		if !seen[e.Path] {
			seen[e.Path] = true
			paths = append(paths, e.Path)
		}
	}
	sort.Strings(paths)

	actions := make([]interface{}, len(Actions))
	for i, a := range Actions {
		actions[i] = a
	}
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action": map[string]interface{}{
				"type":        "string",
				"enum":        actions,
				"description": "Operation to perform. 'call' requires endpoint.",
			},
			"endpoint": map[string]interface{}{
				"type":        "string",
				"description": "Explicit endpoint path, templated or filled in. One of: " + joinLimited(paths, 20),
			},
			"id": map[string]interface{}{
				"description": "Value for the last path parameter (get, update, delete)",
			},
			"path_params": map[string]interface{}{
				"type":        "object",
				"description": "Values for named path parameters",
			},
			"body": map[string]interface{}{
				"type":        "object",
				"description": "Request body for create/update",
			},
			"params": map[string]interface{}{
				"type":        "object",
				"description": "Query parameters",
			},
			"fields": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Only return these fields of each item",
			},
			"filters": map[string]interface{}{
				"type":        "object",
				"description": "Filter items, e.g. {\"status\": \"error\", \"name\": \"~osd\", \"size\": \">1000\"}",
			},
			"no_optimize": map[string]interface{}{
				"type":        "boolean",
				"description": "Return the full response without truncation or summaries",
			},
		},
		"required": []string{"action"},
	}
}

func joinLimited(items []string, n int) string {
	out := ""
	for i, s := range items {
		if i == n {
			return out + fmt.Sprintf(", ... (%d more)", len(items)-n)
		}
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}
