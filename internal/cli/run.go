package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/apiprobe/internal/config"
	"github.com/roach88/apiprobe/internal/harness"
	"github.com/roach88/apiprobe/internal/outcome"
	"github.com/roach88/apiprobe/internal/probes"
	"github.com/roach88/apiprobe/internal/report"
	"github.com/roach88/apiprobe/internal/session"
	"github.com/roach88/apiprobe/internal/store"
	"github.com/roach88/apiprobe/internal/suite"
	"github.com/roach88/apiprobe/internal/transport"
)

// ConfigOptions holds the flags that locate configuration.
type ConfigOptions struct {
	ConfigFile string
	EnvFile    string
}

func (o *ConfigOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.ConfigFile, "config", "c", "", "path to YAML config (default ./"+config.DefaultConfigFile+" if present)")
	cmd.Flags().StringVar(&o.EnvFile, "env-file", "", "path to .env file (default ./"+config.DefaultEnvFile+" if present)")
}

func (o *ConfigOptions) load() (*config.Config, error) {
	return config.Load(config.Options{ConfigFile: o.ConfigFile, EnvFile: o.EnvFile})
}

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ConfigOptions

	Server   string
	Database string
	Only     []string
	Skip     []string
	Delay    time.Duration

	// IDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs harness.IDGenerator

	// Transport allows overriding the HTTP transport (for testing).
	Transport transport.Transport
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the probe suites against a target server",
		Long: `Run the probe suites in order against a running backend.

Suites run sequentially: health, auth, profile, the CRUD suites (tasks, skills,
challenges, pomodoro, moods), oauth, and security. A failing or crashing suite
never stops the run. The exit status is 0 when every suite passed and 1 when
any failed.

Example:
  apiprobe run --server http://localhost:5000
  apiprobe run --only health,auth --format json
  apiprobe run --skip security --db ./apiprobe.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbes(cmd, opts)
		},
	}

	opts.ConfigOptions.bind(cmd)
	cmd.Flags().StringVar(&opts.Server, "server", "", "target base URL (overrides SERVER_URL and config)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite run history (optional)")
	cmd.Flags().StringSliceVar(&opts.Only, "only", nil, "run only these suites")
	cmd.Flags().StringSliceVar(&opts.Skip, "skip", nil, "skip these suites")
	cmd.Flags().DurationVar(&opts.Delay, "delay", config.DefaultSuiteDelay, "pause between suites")

	return cmd
}

func runProbes(cmd *cobra.Command, opts *RunOptions) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	formatter := opts.formatter(cmd)

	cfg, err := opts.ConfigOptions.load()
	if err != nil {
		return commandError(formatter, ErrCodeConfig, "failed to load config", err)
	}
	if opts.Server != "" {
		cfg.ServerURL = opts.Server
	}
	if cmd.Flags().Changed("delay") {
		cfg.SuiteDelay = opts.Delay
	}
	if err := config.Validate(cfg); err != nil {
		return commandError(formatter, ErrCodeConfig, "invalid config", err)
	}

	plan, err := harness.Select(probes.Plan(), opts.Only, opts.Skip)
	if err != nil {
		return commandError(formatter, ErrCodeSelection, "invalid suite selection", err)
	}

	// Open the history database before the run so a bad path fails fast
	var st *store.Store
	if opts.Database != "" {
		logger.Debug("opening database", "path", opts.Database)
		st, err = store.Open(opts.Database)
		if err != nil {
			return commandError(formatter, ErrCodeStore, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
	}

	ctx, cancel := signalContext(cmd, logger)
	defer cancel()

	tr := opts.Transport
	if tr == nil {
		tr = transport.NewHTTPTransport(cfg.RequestTimeout)
	}
	env := &suite.Env{
		Client: outcome.NewClient(cfg.ServerURL, tr, logger),
		State:  session.New(),
		Config: cfg,
		Logger: logger,
	}

	orch := harness.New(plan, cfg.SuiteDelay, logger)
	if opts.IDs != nil {
		orch.IDs = opts.IDs
	}
	formatter.VerboseLog("running %d suite(s) against %s", len(plan), cfg.ServerURL)
	summary := orch.Run(ctx, env)

	if st != nil {
		// Persist even when the run was interrupted
		if err := st.SaveRun(context.WithoutCancel(ctx), summary); err != nil {
			logger.Error("failed to save run", "run_id", summary.RunID, "error", err)
		} else {
			logger.Debug("run saved", "run_id", summary.RunID, "db", opts.Database)
		}
	}

	if opts.Format == "json" {
		err = report.JSON(cmd.OutOrStdout(), summary)
	} else {
		err = report.NewPrinter(cmd.OutOrStdout(), opts.colored()).Summary(summary)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "failed to write report", err)
	}

	if !summary.AllPassed() {
		return NewExitError(ExitFailure,
			fmt.Sprintf("%d of %d suites failed", summary.FailedSuites, summary.TotalSuites))
	}
	return nil
}

// signalContext derives a context cancelled by SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command, logger *slog.Logger) (context.Context, context.CancelFunc) {
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Warn("received signal, finishing current suite", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan) // Prevent signal handler leak
		cancel()
	}
}
