package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/buildwatch/internal/buildcfg"
	"github.com/hupe1980/buildwatch/internal/config"
	"github.com/hupe1980/buildwatch/internal/output"
)

type configOptions struct {
	jsonOutput bool
	diff       bool
}

// effectiveConfig is the printable form of the merged configuration.
type effectiveConfig struct {
	buildcfg.Settings

	Metafile    string `json:"metafile,omitempty"`
	WatchConfig bool   `json:"watchConfig"`
	Debounce    string `json:"debounce"`
	LogLevel    string `json:"logLevel"`
	LogFormat   string `json:"logFormat"`
}

func newConfigCommand() *cobra.Command {
	opts := &configOptions{}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Config prints the configuration buildwatch would run with after merging
defaults, the config file, BUILDWATCH_* environment variables, and flags.

Use --diff to see only what differs from the built-in defaults.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfig(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.jsonOutput, "json", false, "output as JSON instead of YAML")
	f.BoolVar(&opts.diff, "diff", false, "show a unified diff against the defaults")

	cmd.MarkFlagsMutuallyExclusive("json", "diff")

	return cmd
}

func runConfig(cmd *cobra.Command, opts *configOptions) error {
	cfg := config.FromContext(cmd.Context())

	current, err := newEffectiveConfig(cfg)
	if err != nil {
		return &ExitError{Code: exitConfigError, Err: err}
	}

	w := output.NewStdoutWriter(cmd.OutOrStdout())

	if opts.jsonOutput {
		data, err := output.SerializeJSON(current, "")
		if err != nil {
			return err
		}

		return w.Write(data)
	}

	data, err := output.SerializeYAML(current)
	if err != nil {
		return err
	}

	if !opts.diff {
		if cfg.ConfigFile != "" {
			if err := w.Write(fmt.Appendf(nil, "# config file: %s\n", cfg.ConfigFile)); err != nil {
				return err
			}
		}

		return w.Write(data)
	}

	defaults, err := newEffectiveConfig(config.Default())
	if err != nil {
		return err
	}

	base, err := output.SerializeYAML(defaults)
	if err != nil {
		return err
	}

	result, err := output.ComputeDiff(string(base), string(data), output.DefaultDiffOptions())
	if err != nil {
		return err
	}

	output.WriteDiff(cmd.OutOrStdout(), result, !cfg.NoColor)

	return nil
}

// newEffectiveConfig normalises the build settings through buildcfg, so the
// output shows exactly what esbuild receives.
func newEffectiveConfig(cfg *config.Config) (effectiveConfig, error) {
	build, err := cfg.Build()
	if err != nil {
		return effectiveConfig{}, err
	}

	return effectiveConfig{
		Settings:    build.Settings(),
		Metafile:    cfg.Metafile,
		WatchConfig: cfg.WatchConfig,
		Debounce:    cfg.Debounce.String(),
		LogLevel:    cfg.LogLevel,
		LogFormat:   cfg.LogFormat,
	}, nil
}
