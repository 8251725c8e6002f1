package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/buildwatch/internal/buildcfg"
	"github.com/hupe1980/buildwatch/internal/config"
	"github.com/hupe1980/buildwatch/internal/logging"
	"github.com/hupe1980/buildwatch/internal/watch"
)

func newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Build, then rebuild whenever a source file changes",
		Long: `Watch creates an esbuild context for the effective build configuration
and starts esbuild's watch mode. Once the first build succeeded it prints
"Watching..." to stdout exactly once and keeps running until interrupted
with SIGINT or SIGTERM.

If the first build fails, for example because an entry point does not
exist or the source uses syntax the targets cannot run, the diagnostic is
printed to stderr and nothing is written to stdout.

Later rebuilds are reported in the log. With --watch-config a change to
the config file restarts the build with the new settings; a broken config
keeps the running build.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd)
		},
	}
}

func runWatch(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.FromContext(ctx)
	logger := logging.FromContext(ctx)

	build, err := cfg.Build()
	if err != nil {
		return &ExitError{Code: exitConfigError, Err: err}
	}

	opts := watch.Options{
		Build:    build,
		Debounce: cfg.Debounce,
		Color:    !cfg.NoColor,
		Logger:   logging.Component(logger, "watch"),
		Out:      cmd.OutOrStdout(),
	}

	if cfg.Metafile != "" {
		opts.MetafilePath = build.Resolve(cfg.Metafile)
	}

	if cfg.WatchConfig {
		if cfg.ConfigFile == "" {
			logger.Warn("--watch-config ignored: no config file in use")
		} else {
			opts.ConfigFile = cfg.ConfigFile
			opts.Reload = reloader(cmd, cfg.ConfigFile)
		}
	}

	err = watch.Start(ctx, opts)
	if errors.Is(err, context.Canceled) {
		// Interrupted before the first build finished.
		return nil
	}

	return err
}

// reloader re-runs the full config precedence chain against configFile,
// so flags given on the command line still win after a reload.
func reloader(cmd *cobra.Command, configFile string) watch.ReloadFunc {
	return func() (buildcfg.Config, error) {
		cfg, err := config.Load(cmd, configFile)
		if err != nil {
			return buildcfg.Config{}, err
		}

		return cfg.Build()
	}
}
