package cli

import (
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hupe1980/buildwatch/internal/bundler"
	"github.com/hupe1980/buildwatch/internal/config"
	"github.com/hupe1980/buildwatch/internal/logging"
	"github.com/hupe1980/buildwatch/internal/output"
)

func newBuildCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Run a single build and exit",
		Long: `Build runs esbuild once with the effective build configuration, prints
the written files with their sizes, and exits. It fails with the same
diagnostics and exit codes as watch.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd)
		},
	}
}

func runBuild(cmd *cobra.Command) error {
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)
	logger := logging.Component(logging.FromContext(ctx), "build")

	build, err := cfg.Build()
	if err != nil {
		return &ExitError{Code: exitConfigError, Err: err}
	}

	bc, err := bundler.Open(build, nil)
	if err != nil {
		return err
	}
	defer bc.Dispose()

	result := bc.Rebuild()

	for _, w := range bundler.FormatWarnings(result.Warnings) {
		logger.Warn("build warning", slog.String("message", w))
	}

	if err := result.Err(); err != nil {
		return err
	}

	if cfg.Metafile != "" {
		w := output.NewFileWriter(build.Resolve(cfg.Metafile), output.WithLogger(logger))
		if err := w.Write([]byte(result.Metafile)); err != nil {
			return fmt.Errorf("writing metafile: %w", err)
		}
	}

	logger.Info("build succeeded",
		slog.Int("outputs", len(result.Outputs)),
		slog.Duration("duration", result.Duration.Round(time.Millisecond)),
	)

	return writeOutputTable(cmd.OutOrStdout(), result.Outputs)
}

func writeOutputTable(w io.Writer, outputs []bundler.Output) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	for _, o := range outputs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", o.Path, humanize.Bytes(uint64(o.Bytes))) //nolint:gosec // sizes are never negative
	}

	return tw.Flush()
}
