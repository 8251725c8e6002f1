package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/buildwatch/internal/output"
	"github.com/hupe1980/buildwatch/internal/version"
)

type versionOptions struct {
	jsonOutput bool
	short      bool
}

func newVersionCommand() *cobra.Command {
	opts := &versionOptions{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Display the version, git commit, build date, bundled esbuild version, Go version, and platform.",
		Args:  noArgs,
		// Version needs no config; a broken config file must not hide it.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runVersion(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.jsonOutput, "json", false, "output version info as JSON")
	f.BoolVar(&opts.short, "short", false, "print only the version number")

	cmd.MarkFlagsMutuallyExclusive("json", "short")

	return cmd
}

func runVersion(cmd *cobra.Command, opts *versionOptions) error {
	info := version.GetInfo()
	w := output.NewStdoutWriter(cmd.OutOrStdout())

	switch {
	case opts.jsonOutput:
		j, err := info.JSON()
		if err != nil {
			return err
		}

		return w.Write([]byte(j + "\n"))
	case opts.short:
		return w.Write([]byte(info.Version + "\n"))
	default:
		return w.Write(fmt.Appendf(nil, "%s\n", info.String()))
	}
}
