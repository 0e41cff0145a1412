package tools

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// Response size limits
const (
	// MaxResultSize is the size above which a response gets a size warning and
	// list payloads are compressed
	MaxResultSize = 100 * 1024

	// FinalResponseLimit is the absolute maximum size of the text sent over MCP
	FinalResponseLimit = 150 * 1024

	// TruncationBufferSize is reserved for the truncation notice
	TruncationBufferSize = 500
)

// FormatResponse renders v as indented JSON.
func FormatResponse(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format response: %w", err)
	}
	return string(data), nil
}

// Envelope wraps a cluster or log result as {code, result}.
func Envelope(code int, result interface{}) map[string]interface{} {
	return map[string]interface{}{
		"code":   code,
		"result": result,
	}
}

// FormatResponse renders result as the JSON text content of a tool result.
func (t *BaseTool) FormatResponse(result interface{}) (*mcp.CallToolResult, error) {
	if result == nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "(no data returned)"}},
		}, nil
	}

	text, err := FormatResponse(result)
	if err != nil {
		return NewInternalErrorResult(err), nil
	}

	if len(text) > MaxResultSize {
		t.logger.Warn("Tool result exceeds size limit",
			zap.Int("size", len(text)),
			zap.Int("limit", MaxResultSize),
		)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: ensureResponseLimit(text, t.logger)},
		},
	}, nil
}

// ensureResponseLimit is the final guard before text leaves the server.
func ensureResponseLimit(text string, logger *zap.Logger) string {
	if len(text) <= FinalResponseLimit {
		return text
	}

	if logger != nil {
		logger.Warn("Response exceeded final limit, truncating",
			zap.Int("original_size", len(text)),
			zap.Int("limit", FinalResponseLimit),
		)
	}

	truncated := text[:FinalResponseLimit-TruncationBufferSize]
	truncated += "\n\n---\nResponse truncated due to size limits. Use fields, filters or search_last_result to narrow the result."
	return truncated
}
