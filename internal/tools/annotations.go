package tools

import (
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// boolPtr returns a pointer to a bool value
func boolPtr(b bool) *bool {
	return &b
}

// ReadOnlyAnnotations returns annotations for read-only tools (list, get operations).
// These tools don't modify any state and are safe to call repeatedly.
func ReadOnlyAnnotations(title string) *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{
		Title:          title,
		ReadOnlyHint:   true,
		IdempotentHint: true,
		OpenWorldHint:  boolPtr(false), // a single croit cluster
	}
}

// CreateAnnotations returns annotations for create operations.
func CreateAnnotations(title string) *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{
		Title:           title,
		ReadOnlyHint:    false,
		DestructiveHint: boolPtr(false),
		IdempotentHint:  false,
		OpenWorldHint:   boolPtr(false),
	}
}

// UpdateAnnotations returns annotations for update operations.
func UpdateAnnotations(title string) *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{
		Title:           title,
		ReadOnlyHint:    false,
		DestructiveHint: boolPtr(false),
		IdempotentHint:  true,
		OpenWorldHint:   boolPtr(false),
	}
}

// DeleteAnnotations returns annotations for delete operations.
// These tools permanently remove resources and require caution.
func DeleteAnnotations(title string) *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{
		Title:           title,
		ReadOnlyHint:    false,
		DestructiveHint: boolPtr(true),
		IdempotentHint:  true,
		OpenWorldHint:   boolPtr(false),
	}
}

// QueryAnnotations returns annotations for log search tools.
func QueryAnnotations(title string) *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{
		Title:          title,
		ReadOnlyHint:   true,
		IdempotentHint: true,
		OpenWorldHint:  boolPtr(false),
	}
}

// DefaultAnnotations returns default annotations when no specific hints are needed.
// Tools that may call any endpoint use it, since they can be destructive.
func DefaultAnnotations(title string) *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{
		Title:         title,
		OpenWorldHint: boolPtr(false),
	}
}

// MethodAnnotations picks annotations from the HTTP method of an endpoint.
func MethodAnnotations(method, title string) *mcp.ToolAnnotations {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead:
		return ReadOnlyAnnotations(title)
	case http.MethodPost:
		return CreateAnnotations(title)
	case http.MethodPut, http.MethodPatch:
		return UpdateAnnotations(title)
	case http.MethodDelete:
		return DeleteAnnotations(title)
	}
	return DefaultAnnotations(title)
}
