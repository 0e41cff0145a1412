package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	mcperrors "github.com/croit/mcp-croit-ceph/internal/errors"
)

// NewToolResultError creates a new tool result with an error message
func NewToolResultError(message string) *mcp.CallToolResult {
	// Ensure message is never empty
	if message == "" {
		message = "An unknown error occurred"
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: message,
			},
		},
		IsError: true,
	}
}

// NewToolResultErrorWithSuggestion creates a tool result with an error and recovery guidance
func NewToolResultErrorWithSuggestion(message, suggestion string) *mcp.CallToolResult {
	fullMessage := fmt.Sprintf("%s\n\nSuggestion: %s", message, suggestion)
	return NewToolResultError(fullMessage)
}

// NewStructuredErrorResult renders a structured error as the {code, error}
// envelope.
func NewStructuredErrorResult(se *mcperrors.StructuredError) *mcp.CallToolResult {
	text, err := FormatResponse(se.Envelope())
	if err != nil {
		text = se.ToJSON()
	}
	return NewToolResultError(text)
}

// NewInternalErrorResult is the HTTP-500 equivalent for an unexpected failure.
// The message is bounded so a stack of wrapped errors cannot flood the agent.
func NewInternalErrorResult(err error) *mcp.CallToolResult {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return NewStructuredErrorResult(mcperrors.NewInternalError(
		mcperrors.Truncate(msg, mcperrors.MaxMessageLength)))
}

// HandleError converts any error returned by a dependency into a tool result.
// Structured errors keep their status; timeouts and cancellations get a hint.
func HandleError(err error, operation string) *mcp.CallToolResult {
	var se *mcperrors.StructuredError
	if errors.As(err, &se) {
		return NewStructuredErrorResult(se)
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(err.Error(), "context deadline exceeded") {
		return NewStructuredErrorResult(mcperrors.NewTimeout(operation).
			WithSuggestion("Narrow the request, e.g. a shorter time window or a smaller limit"))
	}
	if errors.Is(err, context.Canceled) {
		return NewToolResultError(fmt.Sprintf("Operation '%s' was cancelled", operation))
	}
	return NewInternalErrorResult(err)
}

// NewMissingArgumentResult reports a parameter problem as a 400 envelope.
func NewMissingArgumentResult(err error) *mcp.CallToolResult {
	return NewStructuredErrorResult(mcperrors.NewInvalidInput(err.Error()))
}
