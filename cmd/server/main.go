package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/vinodismyname/salesdash/config"
	"github.com/vinodismyname/salesdash/internal/dashboard"
	"github.com/vinodismyname/salesdash/internal/httpapi"
	"github.com/vinodismyname/salesdash/internal/registry"
	"github.com/vinodismyname/salesdash/internal/report"
	"github.com/vinodismyname/salesdash/internal/runtime"
	"github.com/vinodismyname/salesdash/internal/security"
	"github.com/vinodismyname/salesdash/internal/snapshots"
	"github.com/vinodismyname/salesdash/internal/source"
	"github.com/vinodismyname/salesdash/internal/telemetry"
	"github.com/vinodismyname/salesdash/pkg/version"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var (
		useStdio   bool
		useHTTP    bool
		configPath string
	)

	flag.BoolVar(&useStdio, "stdio", false, "Run the MCP server over stdio transport")
	flag.BoolVar(&useHTTP, "http", false, "Serve the JSON API over HTTP")
	flag.StringVar(&configPath, "config", config.PathFromEnv(), "Path to the YAML config file")
	flag.Parse()

	// stdout belongs to the MCP transport; log to stderr.
	logger := zlog.Output(os.Stderr).With().Str("service", "salesdash").Logger()
	ctx, stop := signal.NotifyContext(logger.WithContext(context.Background()), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath, true)
	if err != nil {
		logger.Error().Err(err).Str("path", configPath).Msg("config: load failed")
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Local sources and exports are confined to the allow-list; remote
	// sources work without one.
	secMgr, err := security.NewManager(cfg.Security.AllowedDirs, nil)
	if err != nil {
		logger.Error().Err(err).Msg("security: invalid allow-list configuration")
		fmt.Fprintln(os.Stderr, "invalid security configuration; check security.allowed_dirs or SALESDASH_ALLOWED_DIRS")
		os.Exit(1)
	}
	if err := secMgr.ValidateConfig(); err != nil {
		logger.Warn().Err(err).Msg("security: local sources and exports are disabled")
	} else {
		logger.Info().Strs("allowed_dirs", secMgr.Roots()).Msg("security allow-list configured")
	}

	hooks := telemetry.NewHooks(logger)

	limits := runtime.LimitsFromConfig(cfg)
	runtimeController := runtime.NewController(limits)
	runtimeMW := runtime.NewMiddleware(runtimeController)

	loader := source.NewLoader(secMgr, limits.MaxSourceBytes, cfg.Fetch.Timeout)
	loader.Observer = hooks

	svc, err := dashboard.NewService(cfg, loader)
	if err != nil {
		logger.Error().Err(err).Str("schema", cfg.Schema).Msg("dashboard: invalid schema configuration")
		fmt.Fprintf(os.Stderr, "invalid schema configuration: %v\n", err)
		os.Exit(1)
	}
	svc.MaxRows = limits.MaxRows
	svc.Observer = hooks

	store := snapshots.NewStore(config.DefaultSnapshotTTL, config.DefaultSnapshotCleanupPeriod, runtimeController, nil)
	store.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := store.Close(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("snapshot store close timed out")
		}
	}()

	formatter := report.NewFormatter(cfg.Report.Language, cfg.Report.CurrencySymbol)

	toolRegistry := registry.New()
	toolRegistry.WithSummaryBudget(cfg.Summary.Model, cfg.Summary.TokenBudget)

	exportFilter := registry.NewExportToolFilter(cfg.Security.EnableExport)

	srv := server.NewMCPServer(
		"Sales Dashboard Server",
		version.Version(),
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithHooks(hooks.MCPHooks()),
		server.WithToolHandlerMiddleware(runtimeMW.ToolMiddleware),
		server.WithToolFilter(func(ctx context.Context, tools []mcp.Tool) []mcp.Tool { return exportFilter.FilterTools(ctx, tools) }),
	)

	registry.RegisterDashboardTools(srv, toolRegistry, registry.Deps{
		Service:       svc,
		Store:         store,
		Guard:         secMgr,
		Limits:        runtimeController.LimitsSnapshot(),
		Formatter:     formatter,
		ExportEnabled: exportFilter.Enabled(),
	})

	logger.Info().
		Ctx(ctx).
		Str("version", version.Version()).
		Str("schema", cfg.Schema).
		Int("max_concurrent_requests", limits.MaxConcurrentRequests).
		Int("max_snapshots", limits.MaxSnapshots).
		Int("summary_token_budget", toolRegistry.SummaryBudget()).
		Bool("exports", exportFilter.Enabled()).
		Bool("stdio", useStdio).
		Bool("http", useHTTP).
		Msg("server bootstrap configured")

	if !useStdio && !useHTTP {
		fmt.Fprintln(os.Stderr, "no transport selected; use --stdio and/or --http")
		os.Exit(2)
	}

	httpErr := make(chan error, 1)
	if useHTTP {
		e := echo.New()
		e.HideBanner = true
		e.HidePort = true
		e.Use(middleware.Recover())
		e.Use(middleware.CORS())
		e.Use(httpapi.RequestLogger(logger, hooks))
		httpapi.NewHandler(svc, store, formatter).RegisterRoutes(e, runtimeMW.HTTPMiddleware)

		go func() {
			logger.Info().Str("addr", cfg.Server.Addr).Msg("http api listening")
			if err := e.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				httpErr <- err
			}
			close(httpErr)
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := e.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("http shutdown incomplete")
			}
		}()
	}

	if useStdio {
		stdio := server.NewStdioServer(srv)
		if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			// Use stderr for transport errors so clients don't misinterpret output
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err, ok := <-httpErr:
		if ok && err != nil {
			logger.Error().Err(err).Msg("http api failed")
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
	}
}
