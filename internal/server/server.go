// Package server provides the MCP server exposing a croit Ceph cluster.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/croit/mcp-croit-ceph/internal/audit"
	"github.com/croit/mcp-croit-ceph/internal/cache"
	"github.com/croit/mcp-croit-ceph/internal/catalog"
	"github.com/croit/mcp-croit-ceph/internal/client"
	"github.com/croit/mcp-croit-ceph/internal/config"
	"github.com/croit/mcp-croit-ceph/internal/health"
	"github.com/croit/mcp-croit-ceph/internal/logsearch"
	"github.com/croit/mcp-croit-ceph/internal/metrics"
	"github.com/croit/mcp-croit-ceph/internal/optimizer"
	"github.com/croit/mcp-croit-ceph/internal/prompts"
	"github.com/croit/mcp-croit-ceph/internal/resources"
	"github.com/croit/mcp-croit-ceph/internal/tools"
	"github.com/croit/mcp-croit-ceph/internal/tracing"
)

// documentFetchTimeout bounds the OpenAPI download at startup.
const documentFetchTimeout = 30 * time.Second

// Server represents the MCP server
type Server struct {
	mcpServer    *mcp.Server
	apiClient    *client.Client
	config       *config.Config
	logger       *zap.Logger
	metrics      *metrics.Metrics
	audit        *audit.Logger
	cache        *cache.Cache
	store        *cache.Store
	index        *tools.ToolIndex
	version      string
	healthServer *health.Server
	toolCount    int
}

// New creates the MCP server. It downloads the cluster's OpenAPI document,
// so the croit host must be reachable.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, version string) (*Server, error) {
	apiClient, err := client.New(cfg, logger, version)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	metricsTracker := metrics.New(logger)
	apiClient.SetRecorder(metricsTracker)

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "croit Ceph MCP Server",
		Version: version,
	}, &mcp.ServerOptions{
		HasTools:     true,
		HasPrompts:   true,
		HasResources: true,
	})

	s := &Server{
		mcpServer: mcpServer,
		apiClient: apiClient,
		config:    cfg,
		logger:    logger,
		metrics:   metricsTracker,
		audit:     audit.NewLogger(logger, cfg.EnableAuditLog, audit.DefaultMaxEntries),
		version:   version,
	}

	s.cache = cache.New(cfg.CacheMaxEntries, cfg.CacheDefaultTTL,
		cache.WithEvictionHook(func(string) { metricsTracker.RecordCacheEviction() }),
		cache.WithLookupHook(metricsTracker.RecordCacheLookup),
	)
	s.store = cache.NewStore(cfg.StoreMaxEntries, cfg.StoreTTL)

	if cfg.HealthPort > 0 {
		registry := metricsTracker.Registry()
		if !cfg.MetricsEndpoint {
			registry = nil
		}
		s.healthServer = health.NewServer(health.New(apiClient, logger), logger, cfg.HealthPort, cfg.HealthBindAddress, registry)
	}

	if err := s.registerTools(ctx); err != nil {
		_ = apiClient.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	s.registerPrompts()
	s.registerResources()

	return s, nil
}

// loadDocument fetches the OpenAPI document and, unless disabled, a copy
// with every $ref inlined.
func (s *Server) loadDocument(ctx context.Context) (raw, resolved *catalog.Document, err error) {
	ctx, cancel := context.WithTimeout(ctx, documentFetchTimeout)
	defer cancel()

	raw, err = catalog.Fetch(ctx, s.apiClient)
	if err != nil {
		return nil, nil, err
	}
	if !s.config.ResolveReferences {
		return raw, raw, nil
	}
	return raw, catalog.NewResolver(raw, s.logger).ResolveDocument(), nil
}

// newLogService wires both log channels behind the fallback executor.
func (s *Server) newLogService() *logsearch.Service {
	endpoint := s.config.LogEndpoint()
	stream := logsearch.NewStreamChannel(endpoint, s.config.APIToken, s.apiClient.TLSConfig(), s.logger,
		logsearch.WithTimeouts(s.config.StreamSessionTimeout, s.config.StreamMessageTimeout))
	export := logsearch.NewExportChannel(s.apiClient, endpoint, s.logger)

	executor := logsearch.NewExecutor(stream, export, s.logger)
	executor.SetRecorder(s.metrics)
	return logsearch.NewService(executor, s.logger)
}

// registerTools builds the tool surface from the API document and flags.
func (s *Server) registerTools(ctx context.Context) error {
	raw, doc, err := s.loadDocument(ctx)
	if err != nil {
		return err
	}

	endpoints := catalog.Endpoints(doc, s.logger)
	registry, err := catalog.Build(endpoints, catalog.BuildOptions{
		EndpointsAsTools: s.config.EndpointsAsTools,
		CategoryTools:    s.config.EnableCategoryTools,
		Describe:         optimizer.OptimizationHints,
	}, s.logger)
	if err != nil {
		return err
	}

	opt := optimizer.New(s.store, s.logger)
	opt.SetRecorder(s.metrics)

	deps := tools.Deps{
		Client:            s.apiClient,
		Pipeline:          tools.NewAPIPipeline(s.cache, opt, s.config.CompressionThreshold, s.logger),
		Store:             s.store,
		Document:          doc,
		RawDocument:       raw,
		Registry:          registry,
		EndpointsAsTools:  s.config.EndpointsAsTools,
		ResolveReferences: s.config.ResolveReferences,
		OfferWholeSpec:    s.config.OfferWholeSpec,
		Logger:            s.logger,
	}
	if s.config.EnableLogTools {
		deps.Logs = s.newLogService()
	}

	all, index := tools.GetAllTools(deps)
	s.index = index
	for _, t := range all {
		s.registerTool(t)
	}
	s.toolCount = len(all)

	s.logger.Info("Registered all MCP tools",
		zap.Int("count", len(all)),
		zap.Int("endpoints", len(endpoints)),
		zap.Any("by_kind", registry.CountByKind()),
		zap.String("api_title", doc.Title()),
		zap.String("api_version", doc.Version()),
	)
	return nil
}

// registerTool adds a tool with timeout, tracing, metrics, audit and panic
// recovery around its Execute method.
func (s *Server) registerTool(t tools.Tool) {
	toolName := t.Name()

	mcpTool := &mcp.Tool{
		Name:        toolName,
		Description: t.Description(),
		InputSchema: t.InputSchema(),
		Annotations: t.Annotations(),
	}
	op := s.operationOf(t)

	handler := func(ctx context.Context, request *mcp.CallToolRequest) (result *mcp.CallToolResult, err error) {
		start := time.Now()

		ctx = tracing.EnsureTraceContext(ctx)
		ctx, span := tracing.ToolSpan(ctx, toolName)
		defer span.End()

		ctx = tools.WithClient(ctx, s.apiClient)

		timeout := t.DefaultTimeout()
		if timeout <= 0 {
			timeout = s.config.Timeout
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		var (
			args    map[string]interface{}
			failure error
		)
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Tool panicked",
					zap.String("tool", toolName),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
				failure = fmt.Errorf("tool %s panicked: %v", toolName, r)
				result, err = tools.NewInternalErrorResult(failure), nil
			}

			success := failure == nil && err == nil && (result == nil || !result.IsError)
			duration := time.Since(start)
			s.metrics.RecordToolExecution(toolName, success, duration)
			s.audit.LogToolExecution(ctx, toolName, op, args, success, duration, failure)
			if failure != nil {
				tracing.RecordError(span, failure)
			} else if success {
				tracing.SetSuccess(span)
			}
		}()

		if len(request.Params.Arguments) > 0 {
			if failure = json.Unmarshal(request.Params.Arguments, &args); failure != nil {
				return nil, fmt.Errorf("failed to unmarshal arguments: %w", failure)
			}
		}
		tracing.AddToolAttributes(span, args)

		result, failure = t.Execute(ctx, args)
		if failure != nil {
			s.logger.Error("Tool execution failed", zap.String("tool", toolName), zap.Error(failure))
			return tools.NewInternalErrorResult(failure), nil
		}
		return result, nil
	}

	s.mcpServer.AddTool(mcpTool, handler)
	s.logger.Debug("Registered tool", zap.String("tool", toolName))
}

// operationOf classifies a tool for the audit log.
func (s *Server) operationOf(t tools.Tool) audit.Operation {
	if s.index != nil {
		if _, category, ok := s.index.Get(t.Name()); ok && category == tools.CategoryLogs {
			return audit.OperationQuery
		}
	}
	a := t.Annotations()
	switch {
	case a == nil:
		return audit.OperationWrite
	case a.ReadOnlyHint:
		return audit.OperationRead
	case a.DestructiveHint != nil && *a.DestructiveHint:
		return audit.OperationDelete
	}
	return audit.OperationWrite
}

// registerPrompts registers all available MCP prompts
func (s *Server) registerPrompts() {
	registry := prompts.NewRegistry(s.logger, s.config.EnableLogTools)

	for _, p := range registry.GetPrompts() {
		s.mcpServer.AddPrompt(p.Prompt, p.Handler)
		s.logger.Debug("Registered prompt", zap.String("prompt", p.Prompt.Name))
	}

	s.logger.Info("Registered all MCP prompts", zap.Int("count", len(registry.GetPrompts())))
}

// registerResources registers all available MCP resources
func (s *Server) registerResources() {
	registry := resources.NewRegistry(s.config, s.metrics, resources.Sources{
		Cache:     s.cache,
		Store:     s.store,
		Audit:     s.audit,
		ToolCount: s.toolCount,
	}, s.logger, s.version)

	list := registry.GetResources()
	for _, r := range list {
		s.mcpServer.AddResource(r.Resource, r.Handler)
		s.logger.Debug("Registered resource", zap.String("uri", r.Resource.URI))
	}

	s.logger.Info("Registered all MCP resources", zap.Int("count", len(list)))
}

// Start serves MCP over stdio until ctx is done or the client disconnects.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting MCP server")

	if s.healthServer != nil {
		go func() {
			if err := s.healthServer.Start(); err != nil {
				s.logger.Error("Health server error", zap.Error(err))
			}
		}()
		s.healthServer.SetReady(true)
	}

	defer func() {
		s.metrics.LogStats()
		if s.audit.IsEnabled() {
			stats := s.audit.GetStats()
			s.logger.Info("Audit summary",
				zap.Int("tool_calls", stats.TotalEntries),
				zap.Int("failures", stats.Failures),
				zap.Float64("success_rate_pct", stats.SuccessRate),
			)
		}

		if s.healthServer != nil {
			s.healthServer.SetReady(false)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.healthServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("Failed to shutdown health server", zap.Error(err))
			}
		}

		if err := s.apiClient.Close(); err != nil {
			s.logger.Error("Failed to close API client", zap.Error(err))
		}
	}()

	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// GetMetrics returns the server's metrics tracker for external access
func (s *Server) GetMetrics() *metrics.Metrics {
	return s.metrics
}

// ToolCount returns the number of registered tools.
func (s *Server) ToolCount() int {
	return s.toolCount
}
