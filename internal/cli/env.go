package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/apiprobe/internal/harness"
	"github.com/roach88/apiprobe/internal/probes"
	"github.com/roach88/apiprobe/internal/report"
	"github.com/roach88/apiprobe/internal/session"
	"github.com/roach88/apiprobe/internal/suite"
)

// EnvOptions holds flags for the env command.
type EnvOptions struct {
	*RootOptions
	ConfigOptions
}

// NewEnvCommand creates the env command.
func NewEnvCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EnvOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "env",
		Short: "Check the target service's environment variables",
		Long: `Check that the variables the backend needs are present and plausible.

Values are read from the .env file and the process environment. No requests
are sent. Missing variables fail; weak secrets and odd URLs warn.

Example:
  apiprobe env --env-file ../server/.env`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnv(cmd, opts)
		},
	}

	opts.ConfigOptions.bind(cmd)
	return cmd
}

func runEnv(cmd *cobra.Command, opts *EnvOptions) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	formatter := opts.formatter(cmd)

	cfg, err := opts.ConfigOptions.load()
	if err != nil {
		return commandError(formatter, ErrCodeConfig, "failed to load config", err)
	}

	rep := suite.NewRunner().Run(cmd.Context(), probes.Env(), &suite.Env{
		State:  session.New(),
		Config: cfg,
		Logger: logger,
	})

	if opts.Format == "json" {
		err = formatter.Success(rep)
	} else {
		res := harness.SuiteResult{
			Name:     rep.Suite,
			Passed:   rep.Passed,
			Warnings: rep.Warnings,
			Checks:   rep.Records,
		}
		if !rep.Passed {
			res.Error = fmt.Sprintf("%d of %d checks failed", rep.Failures, len(rep.Records))
		}
		err = report.NewPrinter(cmd.OutOrStdout(), opts.colored()).Suite(res)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "failed to write report", err)
	}

	if !rep.Passed {
		return NewExitError(ExitFailure, fmt.Sprintf("environment check failed: %d problem(s)", rep.Failures))
	}
	return nil
}
