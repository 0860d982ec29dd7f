// Package main implements kbctl, the operator CLI for local
// experimentation against the semantic browser knowledge base: minting
// tokens, running ad hoc SPARQL, triggering inference passes, probing
// the browser pool, and starting a local HTTP server for quick testing
// without standing up the full cmd/kbserver deployment. It shares
// cmd/kbserver's cobra/zap/internal-logging bootstrap idiom but, like
// the teacher's own cmd/query-kb and cmd/test-research alongside
// cmd/nerd, is its own small entrypoint rather than importing one.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/semanticbrowser/kb/internal/annotator"
	"github.com/semanticbrowser/kb/internal/auth"
	"github.com/semanticbrowser/kb/internal/browser"
	"github.com/semanticbrowser/kb/internal/config"
	"github.com/semanticbrowser/kb/internal/coreops"
	"github.com/semanticbrowser/kb/internal/htmlparser"
	"github.com/semanticbrowser/kb/internal/httpapi"
	"github.com/semanticbrowser/kb/internal/kg"
	"github.com/semanticbrowser/kb/internal/mlinference"
	"github.com/semanticbrowser/kb/internal/ratelimit"
	"github.com/semanticbrowser/kb/internal/telemetry"
	"github.com/semanticbrowser/kb/internal/validator"
)

var (
	configPath string
	logger     *zap.Logger
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "kbctl",
	Short: "operator CLI for the semantic browser knowledge base",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("kbctl: build logger: %w", err)
		}
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("kbctl: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.AddCommand(serveCmd, tokenCmd, kgCmd, browserCmd)
	tokenCmd.AddCommand(tokenMintCmd)
	kgCmd.AddCommand(kgQueryCmd, kgInferCmd)
	browserCmd.AddCommand(browserProbeCmd)
}

func openEngine() (*kg.Engine, error) {
	if cfg.KG.PersistPath == "" {
		return kg.NewEngine(), nil
	}
	return kg.Open(cfg.KG.PersistPath)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a local HTTP server for ad hoc testing (use cmd/kbserver for production)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		engine, err := openEngine()
		if err != nil {
			return fmt.Errorf("open triple store: %w", err)
		}

		var pool *browser.Pool
		if cfg.Browser.PoolSize > 0 {
			pool = browser.NewPool(browser.Config{
				DebuggerURL:         cfg.Browser.DebuggerURL,
				Headless:            cfg.Browser.Headless,
				PoolSize:            cfg.Browser.PoolSize,
				NavigationTimeoutMs: int(cfg.Browser.Timeout / time.Millisecond),
				DefaultTimeoutMs:    int(cfg.Browser.Timeout / time.Millisecond),
			})
			if err := pool.Start(ctx); err != nil {
				return fmt.Errorf("start browser pool: %w", err)
			}
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
		metrics := telemetry.New(prometheus.NewRegistry())

		server := &httpapi.Server{Deps: deps, Auth: authenticator, Pool: pool, Metrics: metrics, Version: "kbctl-serve"}

		gin.SetMode(gin.DebugMode)
		router := gin.New()
		router.Use(gin.Recovery())
		httpapi.SetupRoutes(router, server, authenticator, limiter, metrics, cfg.HTTP.RequestTimeout)

		logger.Info("kbctl serve listening", zap.String("addr", cfg.HTTP.Addr))
		go func() {
			<-ctx.Done()
			logger.Info("shutdown signal received")
			if pool != nil {
				_ = pool.Shutdown(context.Background())
			}
			if cfg.KG.PersistPath != "" {
				_ = engine.Snapshot()
			}
			os.Exit(0)
		}()
		return router.Run(cfg.HTTP.Addr)
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint or inspect bearer tokens",
}

var tokenMintUsername, tokenMintRole string

var tokenMintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Mint a bearer token signed with the configured JWT secret",
	Long: `Mints a token offline, without a running server: any deployment sharing
the same JWT_SECRET accepts it, matching internal/auth's stateless
validation (only revocation is checked against shared state).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		revocation := auth.NewMapRevocationStore()
		authenticator := auth.New(cfg.Auth.JWTSecret, cfg.Auth.TokenLifetime, revocation, false)
		token, expiresIn, err := authenticator.Issue(tokenMintUsername, tokenMintRole)
		if err != nil {
			return err
		}
		fmt.Printf("token: %s\nexpires_in: %ds\n", token, expiresIn)
		return nil
	},
}

func init() {
	tokenMintCmd.Flags().StringVar(&tokenMintUsername, "username", "operator", "Subject to embed in the token")
	tokenMintCmd.Flags().StringVar(&tokenMintRole, "role", "admin", "Role to embed in the token")
}

var kgCmd = &cobra.Command{
	Use:   "kg",
	Short: "Query and maintain the triple store directly",
}

var kgQueryCmd = &cobra.Command{
	Use:   "query [sparql]",
	Short: "Run an ad hoc SPARQL query against the persisted triple store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine()
		if err != nil {
			return fmt.Errorf("open triple store: %w", err)
		}
		result, err := engine.Query(args[0])
		if err != nil {
			return err
		}
		if result.IsBoolean {
			fmt.Println(result.Boolean)
			return nil
		}
		if result.IsUpdate {
			fmt.Printf("affected: %d\n", result.Affected)
			return nil
		}
		for _, binding := range result.Solutions {
			fmt.Println(binding)
		}
		return nil
	},
}

var kgInferUseML bool

var kgInferCmd = &cobra.Command{
	Use:   "infer",
	Short: "Run rule closure to fixpoint (or, with --ml, one ML link-prediction pass) and persist the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine()
		if err != nil {
			return fmt.Errorf("open triple store: %w", err)
		}

		if kgInferUseML {
			if cfg.Inference.EntityTensorPath == "" {
				return fmt.Errorf("kbctl: no ML inference tensors configured (set inference.entity_tensor_path)")
			}
			predictor, err := mlinference.NewEngine(
				cfg.Inference.EntityTensorPath,
				cfg.Inference.EntityMappingPath,
				cfg.Inference.RelationTensorPath,
				cfg.Inference.RelationMappingPath,
				mlinference.EmbeddingType(cfg.Inference.EmbeddingType),
			)
			if err != nil {
				return fmt.Errorf("load ML inference tensors: %w", err)
			}
			inserted, err := engine.MLInfer(predictor, cfg.Inference.SampleSize, cfg.Inference.TopK, cfg.Inference.ConfidenceThreshold, cfg.Inference.MaxInserts)
			if err != nil {
				return err
			}
			fmt.Printf("inserted: %d\n", inserted)
		} else {
			inserted, passes, err := engine.InferRules(cfg.KG.InferMaxIterations)
			if err != nil {
				return err
			}
			fmt.Printf("inserted: %d\npasses: %d\n", inserted, passes)
		}

		if cfg.KG.PersistPath != "" {
			if err := engine.Snapshot(); err != nil {
				return fmt.Errorf("snapshot: %w", err)
			}
		}
		return nil
	},
}

func init() {
	kgInferCmd.Flags().BoolVar(&kgInferUseML, "ml", false, "Run the ML inference engine instead of rule closure")
}

var browserCmd = &cobra.Command{
	Use:   "browser",
	Short: "Probe the browser pool",
}

var browserProbeURL string

var browserProbeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Launch a single-tab pool, navigate to --url, and print the fetched content's length",
	RunE: func(cmd *cobra.Command, args []string) error {
		if browserProbeURL == "" {
			return fmt.Errorf("kbctl: --url is required")
		}
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Browser.Timeout+10*time.Second)
		defer cancel()

		pool := browser.NewPool(browser.Config{
			DebuggerURL:         cfg.Browser.DebuggerURL,
			Headless:            cfg.Browser.Headless,
			PoolSize:            1,
			NavigationTimeoutMs: int(cfg.Browser.Timeout / time.Millisecond),
			DefaultTimeoutMs:    int(cfg.Browser.Timeout / time.Millisecond),
		})
		if err := pool.Start(ctx); err != nil {
			return fmt.Errorf("start browser pool: %w", err)
		}
		defer func() { _ = pool.Shutdown(context.Background()) }()

		tab, release, err := pool.Acquire(ctx)
		if err != nil {
			return err
		}
		defer release()

		if _, err := tab.Navigate(browserProbeURL, browser.NavigateOpts{}); err != nil {
			return err
		}
		content, err := tab.GetContent(browser.ContentHTML)
		if err != nil {
			return err
		}
		fmt.Printf("ok: fetched %d bytes from %s\n", len(content), browserProbeURL)
		return nil
	},
}

func init() {
	browserProbeCmd.Flags().StringVar(&browserProbeURL, "url", "", "URL to navigate to")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
