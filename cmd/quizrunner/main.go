package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"quizrunner/internal/browser"
	"quizrunner/internal/config"
	"quizrunner/internal/pipeline"
	"quizrunner/internal/server"
	"quizrunner/internal/task"
)

var (
	configPath string
	verbose    bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "quizrunner",
	Short: "quizrunner - headless quiz-page solver",
	Long: `quizrunner accepts a task (email, shared secret, target URL), drives a
headless browser to the page, decodes the instruction payload hidden in it,
downloads the referenced resource, computes a numeric answer from its text,
and submits the answer to the callback endpoint.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// serveCmd runs the acceptance endpoint and processes tasks as they arrive.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the task acceptance server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cfg.Server.Secret == "" {
			return fmt.Errorf("no shared secret configured (set server.secret or QUIZRUNNER_SECRET)")
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		nav, cleanup := buildNavigator(cfg)
		defer cleanup()

		orch := pipeline.FromConfig(cfg, nav, logger)
		return server.New(cfg.Server, orch, logger).Run(ctx)
	},
}

// runCmd processes a single task synchronously, without the server.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process one task and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		secret, _ := cmd.Flags().GetString("secret")
		url, _ := cmd.Flags().GetString("url")
		if email == "" || secret == "" || url == "" {
			return fmt.Errorf("--email, --secret and --url are required")
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		nav, cleanup := buildNavigator(cfg)
		defer cleanup()

		orch := pipeline.FromConfig(cfg, nav, logger)
		orch.Process(context.Background(), task.NewRequest(email, secret, url))
		return nil
	},
}

// buildNavigator picks the navigator implementation from config.
func buildNavigator(cfg config.Config) (browser.Navigator, func()) {
	if cfg.Browser.IsStatic() {
		return browser.NewStatic(cfg.Browser, logger), func() {}
	}
	h := browser.NewHeadless(cfg.Browser, logger)
	return h, func() { _ = h.Close() }
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	runCmd.Flags().String("email", "", "submitter email")
	runCmd.Flags().String("secret", "", "shared secret")
	runCmd.Flags().String("url", "", "target page URL")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
