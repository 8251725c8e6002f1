// Package cli implements the cobra command tree for buildwatch.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/buildwatch/internal/bundler"
	"github.com/hupe1980/buildwatch/internal/config"
	"github.com/hupe1980/buildwatch/internal/logging"
)

// Process exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitConfigError = 2
)

// ExitError wraps an error with a specific process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}

	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Execute builds the command tree, runs it, and returns the exit code.
// The error, if any, is printed to stderr as is.
func Execute() int {
	return run(NewRootCommand(), os.Stderr)
}

func run(cmd *cobra.Command, stderr io.Writer) int {
	err := cmd.Execute()
	if err == nil {
		return exitOK
	}

	if msg := err.Error(); msg != "" {
		_, _ = fmt.Fprintln(stderr, msg)
	}

	return exitCode(err)
}

// exitCode maps an error to a process exit code. Configuration errors,
// including those esbuild reports for the build configuration, exit 2.
func exitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	if errors.Is(err, bundler.ErrConfig) {
		return exitConfigError
	}

	return exitFailure
}

// noArgs is cobra.NoArgs reporting a usage error.
func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return &ExitError{Code: exitConfigError, Err: err}
	}

	return nil
}

// NewRootCommand constructs the top-level cobra.Command with all
// subcommands attached. Run without a subcommand it behaves like watch.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "buildwatch",
		Short: "Bundle a JavaScript/TypeScript project with esbuild and rebuild on change",
		Long: `buildwatch drives esbuild in watch mode.

It bundles, minifies, and source-maps src/index.js into dist-node/index.js
for chrome58, firefox57, safari11, and edge14, prints "Watching..." once the
first build succeeded, and rebuilds whenever a source file changes until it
is interrupted.

Every build setting can be changed with flags, BUILDWATCH_* environment
variables, or a .buildwatch.yaml config file.`,
		Args:          noArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd, cfgFile)
			if err != nil {
				return &ExitError{Code: exitConfigError, Err: err}
			}

			logger := logging.Setup(cfg)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			ctx = config.NewContext(ctx, cfg)
			ctx = logging.NewContext(ctx, logger)
			cmd.SetContext(ctx)

			logger.Debug("configuration loaded",
				slog.String("logLevel", cfg.LogLevel),
				slog.String("logFormat", cfg.LogFormat),
				slog.String("configFile", cfg.ConfigFile),
			)

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd)
		},
	}

	// Global persistent flags.
	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: .buildwatch.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text, json")
	pf.Bool("no-color", false, "disable colored output")
	pf.BoolP("quiet", "q", false, "suppress non-essential output")

	registerBuildFlags(cmd)
	registerFlagCompletions(cmd)

	// Flag parsing errors return exit code 2.
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: exitConfigError, Err: err}
	})

	// Register subcommands.
	cmd.AddCommand(
		newWatchCommand(),
		newBuildCommand(),
		newConfigCommand(),
		newVersionCommand(),
		newCompletionCommand(),
	)

	return cmd
}
