// Package main is the HTTP/JSON-RPC server entry point for the
// semantic browser knowledge base, per spec.md §4.13/§6. Bootstrap
// follows the teacher's cmd/nerd/main.go idiom — a cobra root command
// with PersistentPreRunE building a zap console logger plus
// internal/logging's categorized file logging, and PersistentPostRun
// flushing both — generalized from an interactive CLI agent to a
// long-running server with a graceful-shutdown RunE instead of a chat
// loop.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/semanticbrowser/kb/internal/annotator"
	"github.com/semanticbrowser/kb/internal/auth"
	"github.com/semanticbrowser/kb/internal/browser"
	"github.com/semanticbrowser/kb/internal/config"
	"github.com/semanticbrowser/kb/internal/coreops"
	"github.com/semanticbrowser/kb/internal/htmlparser"
	"github.com/semanticbrowser/kb/internal/httpapi"
	"github.com/semanticbrowser/kb/internal/kg"
	"github.com/semanticbrowser/kb/internal/logging"
	"github.com/semanticbrowser/kb/internal/mcpserver"
	"github.com/semanticbrowser/kb/internal/mlinference"
	"github.com/semanticbrowser/kb/internal/ratelimit"
	"github.com/semanticbrowser/kb/internal/telemetry"
	"github.com/semanticbrowser/kb/internal/validator"
)

// version is stamped by the release build; left as a constant here
// since this module has no release pipeline to inject it through
// ldflags.
const version = "0.1.0"

var (
	configPath string
	workspace  string
	verbose    bool

	logger *zap.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "kbserver",
	Short: "semanticbrowser knowledge-base server",
	Long: `kbserver ingests web content into a queryable RDF knowledge base and
serves it over an authenticated, rate-limited HTTP surface, per spec.md.

Run without a subcommand to start the HTTP server. Run "kbserver mcp" to
instead serve the MCP JSON-RPC surface over stdio.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("kbserver: build logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			logger.Error("configuration error", zap.Error(err))
			os.Exit(1)
		}

		ws := workspace
		if ws == "" {
			ws, _ = os.Getwd()
		}
		if err := logging.Initialize(ws, logging.Settings{
			DebugMode:  cfg.Logging.DebugMode,
			Categories: cfg.Logging.Categories,
			Level:      cfg.Logging.Level,
			JSONFormat: cfg.Logging.JSONFormat,
		}); err != nil {
			logger.Warn("failed to initialize file logging", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory for logs (default: current)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug-level console logging")

	rootCmd.AddCommand(mcpCmd)
}

// buildEngine opens the triple store from cfg.KG.PersistPath if set,
// otherwise starts empty, matching internal/kg.Open's own fallback.
func buildEngine() (*kg.Engine, error) {
	if cfg.KG.PersistPath == "" {
		return kg.NewEngine(), nil
	}
	engine, err := kg.Open(cfg.KG.PersistPath)
	if err != nil {
		return nil, fmt.Errorf("open triple store at %s: %w", cfg.KG.PersistPath, err)
	}
	return engine, nil
}

// buildBrowserPool starts a pool if BROWSER_POOL_SIZE (or its config
// default) is positive; a deployment that wants no browser configures
// pool_size: 0 and POST /browse then fails cleanly with a 503.
func buildBrowserPool(ctx context.Context) (*browser.Pool, error) {
	if cfg.Browser.PoolSize <= 0 {
		return nil, nil
	}
	pool := browser.NewPool(browser.Config{
		DebuggerURL:         cfg.Browser.DebuggerURL,
		Headless:            cfg.Browser.Headless,
		PoolSize:            cfg.Browser.PoolSize,
		NavigationTimeoutMs: int(cfg.Browser.Timeout / time.Millisecond),
		DefaultTimeoutMs:    int(cfg.Browser.Timeout / time.Millisecond),
	})
	if err := pool.Start(ctx); err != nil {
		return nil, fmt.Errorf("start browser pool: %w", err)
	}
	return pool, nil
}

// buildPredictor loads the ML inference engine's embedding tables if
// configured; a deployment with no tensors configured runs without
// link prediction, and POST /admin/ml_infer then fails with a 503.
func buildPredictor() (*mlinference.Engine, error) {
	if cfg.Inference.EntityTensorPath == "" {
		return nil, nil
	}
	predictor, err := mlinference.NewEngine(
		cfg.Inference.EntityTensorPath,
		cfg.Inference.EntityMappingPath,
		cfg.Inference.RelationTensorPath,
		cfg.Inference.RelationMappingPath,
		mlinference.EmbeddingType(cfg.Inference.EmbeddingType),
	)
	if err != nil {
		return nil, fmt.Errorf("load ML inference tensors: %w", err)
	}
	return predictor, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := buildEngine()
	if err != nil {
		logger.Error("fatal startup error", zap.Error(err))
		os.Exit(1)
	}

	pool, err := buildBrowserPool(ctx)
	if err != nil {
		logger.Error("fatal startup error", zap.Error(err))
		os.Exit(1)
	}

	predictor, err := buildPredictor()
	if err != nil {
		logger.Error("fatal startup error", zap.Error(err))
		os.Exit(1)
	}

	deps := coreops.Deps{
		Engine:     engine,
		Annotator:  annotator.New(nil),
		Limits:     validator.Limits{MaxHTMLSizeBytes: cfg.Validator.MaxHTMLSizeBytes, MaxQueryLength: cfg.Validator.MaxQueryLength},
		ParserOpts: htmlparser.Options{TextPreviewCapBytes: cfg.Validator.TextPreviewCapBytes},
	}

	revocation := auth.NewMapRevocationStore()
	authenticator := auth.New(cfg.Auth.JWTSecret, cfg.Auth.TokenLifetime, revocation, cfg.Auth.RevocationFailClosed)
	limiter := ratelimit.New(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Window)
	metrics := telemetry.New(prometheus.DefaultRegisterer)

	server := &httpapi.Server{
		Deps:      deps,
		Auth:      authenticator,
		Pool:      pool,
		Metrics:   metrics,
		Predictor: predictor,
		Inference: cfg.Inference,
		Version:   version,
	}

	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	httpapi.SetupRoutes(router, server, authenticator, limiter, metrics, cfg.HTTP.RequestTimeout)

	httpSrv := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}

	gcTicker := time.NewTicker(5 * time.Minute)
	defer gcTicker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-gcTicker.C:
				revocation.GC()
				limiter.GC()
			}
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("kbserver listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		logger.Error("fatal runtime error", zap.Error(err))
		shutdown(httpSrv, pool, engine)
		os.Exit(2)
	}

	shutdown(httpSrv, pool, engine)
	return nil
}

// shutdown drains in-flight requests, releases the browser pool, and
// flushes the triple store's persisted snapshot, in that order, so a
// SIGTERM never drops work a client is still waiting on.
func shutdown(httpSrv *http.Server, pool *browser.Pool, engine *kg.Engine) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", zap.Error(err))
	}
	if pool != nil {
		if err := pool.Shutdown(shutdownCtx); err != nil {
			logger.Warn("browser pool shutdown", zap.Error(err))
		}
	}
	if cfg.KG.PersistPath != "" {
		if err := engine.Snapshot(); err != nil {
			logger.Warn("triple store snapshot", zap.Error(err))
		}
	}
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the MCP JSON-RPC surface over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		engine, err := buildEngine()
		if err != nil {
			logger.Error("fatal startup error", zap.Error(err))
			os.Exit(1)
		}
		pool, err := buildBrowserPool(ctx)
		if err != nil {
			logger.Error("fatal startup error", zap.Error(err))
			os.Exit(1)
		}

		deps := coreops.Deps{
			Engine:     engine,
			Annotator:  annotator.New(nil),
			Limits:     validator.Limits{MaxHTMLSizeBytes: cfg.Validator.MaxHTMLSizeBytes, MaxQueryLength: cfg.Validator.MaxQueryLength},
			ParserOpts: htmlparser.Options{TextPreviewCapBytes: cfg.Validator.TextPreviewCapBytes},
		}
		srv := &mcpserver.Server{Deps: deps, Pool: pool, Version: version}

		err = srv.Serve(ctx, os.Stdin, os.Stdout)
		if pool != nil {
			_ = pool.Shutdown(context.Background())
		}
		if cfg.KG.PersistPath != "" {
			_ = engine.Snapshot()
		}
		if err != nil && err != context.Canceled {
			logger.Error("fatal runtime error", zap.Error(err))
			os.Exit(2)
		}
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
