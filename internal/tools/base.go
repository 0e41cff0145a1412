package tools

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/croit/mcp-croit-ceph/internal/client"
)

// BaseTool provides common functionality for all tools
type BaseTool struct {
	client *client.Client
	logger *zap.Logger
}

// NewBaseTool creates a new base tool
func NewBaseTool(c *client.Client, logger *zap.Logger) *BaseTool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BaseTool{
		client: c,
		logger: logger,
	}
}

// Client returns the client carried by ctx, falling back to the tool's own.
func (t *BaseTool) Client(ctx context.Context) *client.Client {
	if c, err := GetClientFromContext(ctx); err == nil {
		return c
	}
	return t.client
}

// Logger returns the tool logger.
func (t *BaseTool) Logger() *zap.Logger {
	return t.logger
}

// Annotations returns nil so the server applies its defaults.
func (t *BaseTool) Annotations() *mcp.ToolAnnotations {
	return nil
}

// DefaultTimeout returns the timeout for cluster API tools.
func (t *BaseTool) DefaultTimeout() time.Duration {
	return DefaultAPITimeout
}
