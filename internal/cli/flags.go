package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/buildwatch/internal/buildcfg"
)

// registerBuildFlags adds the build configuration flags as persistent flags
// so every subcommand shares them. Flag names equal the config keys, which
// lets config.Load bind them directly.
func registerBuildFlags(cmd *cobra.Command) {
	d := buildcfg.DefaultSettings()

	pf := cmd.PersistentFlags()
	pf.StringSliceP("entry-points", "e", d.EntryPoints, "entry point files")
	pf.StringP("outfile", "o", d.Outfile, "bundle output file")
	pf.Bool("bundle", d.Bundle, "inline imported dependencies")
	pf.Bool("minify", d.Minify, "minify whitespace, identifiers, and syntax")
	pf.Bool("sourcemap", d.Sourcemap, "write a linked source map next to the bundle")
	pf.StringToString("loader", d.Loader, "loader per file extension (ext=loader)")
	pf.StringSliceP("target", "t", d.Target, "target engines and ECMAScript level")
	pf.String("working-dir", "", "directory relative paths resolve against")

	pf.String("metafile", "", "write esbuild's metafile JSON here after each build")
	pf.Bool("watch-config", false, "rebuild with the new settings when the config file changes")
	pf.Duration("debounce", 500*time.Millisecond, "quiet period before a config change is applied")
}
