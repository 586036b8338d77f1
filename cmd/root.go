// Package cmd defines the CLI commands of the pitch-ingest executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/pitch-ingest/internal/app"
	"github.com/JakeFAU/pitch-ingest/internal/config"
	"github.com/JakeFAU/pitch-ingest/internal/ingest"
	"github.com/JakeFAU/pitch-ingest/internal/logging"
)

type appKeyType string

const appKey appKeyType = "app"

// Service is what the subcommands drive. Tests swap in a fake.
type Service interface {
	BuildURLIndex(ctx context.Context, years, months, days []string) ingest.Summary
	BuildPitchIndex(ctx context.Context, years, months []string) ingest.Summary
	Config() config.Config
	Logger() *zap.Logger
	Close() error
}

// newApp is the service factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (Service, error) {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return appService{a}, nil
}

type appService struct {
	*app.App
}

func (s appService) BuildURLIndex(ctx context.Context, years, months, days []string) ingest.Summary {
	return s.Pipeline.BuildURLIndex(ctx, years, months, days)
}

func (s appService) BuildPitchIndex(ctx context.Context, years, months []string) ingest.Summary {
	return s.Pipeline.BuildPitchIndex(ctx, years, months)
}

func (s appService) Config() config.Config { return s.App.Config }

func (s appService) Logger() *zap.Logger { return s.App.Logger }

type rootOptions struct {
	configFile string
	envFile    string
	years      []string
	months     []string
	days       []string

	svc Service
}

// shutdown releases the service built by the pre-run hook. Cobra skips post-run
// hooks when a command fails, so callers defer this around ExecuteContext.
func (o *rootOptions) shutdown() {
	if o.svc == nil {
		return
	}
	svc := o.svc
	o.svc = nil
	if err := svc.Close(); err != nil {
		svc.Logger().Warn("shutdown incomplete", zap.Error(err))
	}
	_ = svc.Logger().Sync()
}

func newRootCmd() (*cobra.Command, *rootOptions) {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "pitch-ingest",
		Short: "Crawls per-game pitch statistics into a relational store.",
		Long: `pitch-ingest walks the pitch f/x tool day by day, discovers every
pitcher appearance, and stores each appearance's pitch-type statistics split
by batter handedness.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadEnvFile(opts.envFile); err != nil {
				return err
			}
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			svc, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				_ = logger.Sync()
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			opts.svc = svc
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, svc))
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (YAML, TOML or JSON)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file with PITCHES_* variables; ignored when absent")
	flags.StringSliceVar(&opts.years, "years", nil, "years to crawl, overriding crawl.years")
	flags.StringSliceVar(&opts.months, "months", nil, "months to crawl, overriding crawl.months")
	flags.StringSliceVar(&opts.days, "days", nil, "days to crawl, overriding crawl.days")

	cmd.AddCommand(newURLsCmd(), newPitchesCmd(), newRunCmd())
	return cmd, opts
}

// loadEnvFile exports the variables of path that are not already set.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func loadConfig(cmd *cobra.Command, opts *rootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("years") {
		cfg.Crawl.Years = opts.years
	}
	if flags.Changed("months") {
		cfg.Crawl.Months = opts.months
	}
	if flags.Changed("days") {
		cfg.Crawl.Days = opts.days
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func resolveApp(ctx context.Context) (Service, error) {
	svc, ok := ctx.Value(appKey).(Service)
	if !ok || svc == nil {
		return nil, errors.New("application services not initialized")
	}
	return svc, nil
}

// Execute runs the root command until it finishes or the process is signaled.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root, opts := newRootCmd()
	err := executeRoot(ctx, root, opts)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// executeRoot executes root and closes the service on both the success and error paths.
func executeRoot(ctx context.Context, root *cobra.Command, opts *rootOptions) error {
	defer opts.shutdown()
	return root.ExecuteContext(ctx)
}
