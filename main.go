// Package main implements the croit Ceph MCP (Model Context Protocol) server.
//
// The server reads the OpenAPI document of a croit cluster and exposes its
// endpoints as MCP tools, together with natural-language search over the
// cluster logs. It communicates over stdio, making it compatible with Claude
// Desktop and other MCP clients.
//
// Configuration is provided through environment variables or a JSON file:
//   - CROIT_HOST: URL of the croit management host (required)
//   - CROIT_API_TOKEN: API token for authentication (required)  // pragma: allowlist secret
//   - CONFIG_FILE: (Optional) config file, default /config/config.json
//   - LOG_FILE: (Optional) also write logs to this rotated file
//   - ENVIRONMENT: (Optional) Set to "production" for production logging
//
// Example usage:
//
//	export CROIT_HOST="https://croit.example.com"
//	export CROIT_API_TOKEN="<your-token>"
//	./mcp-croit-ceph --enable-log-tools
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/croit/mcp-croit-ceph/internal/config"
	"github.com/croit/mcp-croit-ceph/internal/server"
	"github.com/croit/mcp-croit-ceph/internal/tracing"
)

// Build information - set at build time via ldflags
var (
	version = "dev"     // e.g., "v0.4.0" or "dev"
	commit  = "unknown" // Git commit SHA
	builtBy = "manual"  // "goreleaser" or "manual"
)

const shutdownTimeout = 10 * time.Second

// flags override the loaded configuration when set on the command line.
type flags struct {
	endpointsAsTools     bool
	noResolveReferences  bool
	offerWholeSpec       bool
	enableCategoryTools  bool
	disableCategoryTools bool
	enableLogTools       bool
	disableLogTools      bool
	healthPort           int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:           "mcp-croit-ceph",
		Short:         "MCP server for croit Ceph clusters",
		Version:       fmt.Sprintf("%s (commit %s, built by %s)", version, commit, builtBy),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, f)
		},
	}

	fs := cmd.Flags()
	fs.BoolVar(&f.endpointsAsTools, "endpoints-as-tools", false, "Expose every API endpoint as its own tool")
	fs.BoolVar(&f.noResolveReferences, "no-resolve-references", false, "Keep $ref in schemas and offer get_reference_schema")
	fs.BoolVar(&f.offerWholeSpec, "offer-whole-spec", false, "Let list_api_endpoints return the full API document")
	fs.BoolVar(&f.enableCategoryTools, "enable-category-tools", false, "Offer one manage_<category> tool per API category")
	fs.BoolVar(&f.disableCategoryTools, "no-category-tools", false, "Do not offer category tools")
	fs.BoolVar(&f.enableLogTools, "enable-log-tools", false, "Offer the croit_log_* search tools")
	fs.BoolVar(&f.disableLogTools, "no-log-tools", false, "Do not offer log search tools")
	fs.IntVar(&f.healthPort, "health-port", 0, "Serve /health, /ready and /live on this port (0 disables)")
	cmd.MarkFlagsMutuallyExclusive("enable-category-tools", "no-category-tools")
	cmd.MarkFlagsMutuallyExclusive("enable-log-tools", "no-log-tools")

	return cmd
}

// apply copies explicitly set flags onto cfg.
func (f flags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("endpoints-as-tools") {
		cfg.EndpointsAsTools = f.endpointsAsTools
	}
	if changed("no-resolve-references") {
		cfg.ResolveReferences = !f.noResolveReferences
	}
	if changed("offer-whole-spec") {
		cfg.OfferWholeSpec = f.offerWholeSpec
	}
	if changed("enable-category-tools") {
		cfg.EnableCategoryTools = f.enableCategoryTools
	}
	if changed("no-category-tools") {
		cfg.EnableCategoryTools = !f.disableCategoryTools
	}
	if changed("enable-log-tools") {
		cfg.EnableLogTools = f.enableLogTools
	}
	if changed("no-log-tools") {
		cfg.EnableLogTools = !f.disableLogTools
	}
	if changed("health-port") {
		cfg.HealthPort = f.healthPort
	}
}

func run(cmd *cobra.Command, f flags) error {
	// Load .env file if it exists (optional, for development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return err
	}
	f.apply(cmd, cfg)

	logger, err := initLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", zap.Error(err))
		return err
	}

	shutdownTracing, err := tracing.InitOTel(tracing.OTelConfig{
		ServiceName:    "mcp-croit-ceph",
		ServiceVersion: version,
		Environment:    os.Getenv("ENVIRONMENT"),
		Enabled:        cfg.EnableTracing,
	})
	if err != nil {
		logger.Warn("Tracing disabled", zap.Error(err))
	} else {
		defer func() {
			_ = shutdownTracing(context.Background())
		}()
	}

	logger.Info("Starting croit Ceph MCP Server",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("built_by", builtBy),
		zap.String("host", cfg.Host),
		zap.Bool("endpoints_as_tools", cfg.EndpointsAsTools),
		zap.Bool("category_tools", cfg.EnableCategoryTools),
		zap.Bool("log_tools", cfg.EnableLogTools),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mcpServer, err := server.New(ctx, cfg, logger, version)
	if err != nil {
		logger.Error("Failed to create MCP server", zap.Error(err))
		return err
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- mcpServer.Start(ctx)
	}()

	select {
	case err := <-serverDone:
		if err != nil && ctx.Err() == nil {
			logger.Error("Server error", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	select {
	case <-serverDone:
		logger.Info("Server shutdown complete")
	case <-time.After(shutdownTimeout):
		logger.Warn("Shutdown timeout exceeded, forcing exit", zap.Duration("timeout", shutdownTimeout))
	}
	return nil
}

// initLogger builds a zap logger writing to stderr, stdout being reserved
// for the MCP protocol. ENVIRONMENT=production selects the production
// encoder. With LOG_FILE set, entries are also written to a rotated file.
func initLogger(cfg *config.Config) (*zap.Logger, error) {
	var zc zap.Config
	if os.Getenv("ENVIRONMENT") == "production" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	if cfg.LogFormat == "console" || cfg.LogFormat == "json" {
		zc.Encoding = cfg.LogFormat
	}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}
	if cfg.LogFile == "" {
		return logger, nil
	}

	file := zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogFileMaxSizeMB,
		MaxBackups: cfg.LogFileMaxBackups,
		MaxAge:     cfg.LogFileMaxAgeDays,
		Compress:   true,
	})
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), file, zc.Level)
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	})), nil
}
