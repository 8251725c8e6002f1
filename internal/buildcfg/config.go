// Package buildcfg defines the immutable build configuration handed to
// esbuild: entry points, output file, bundling, minification, source map,
// loader mapping, and target environments.
//
// A [Config] is only obtainable through [Default] or [New], both of which
// validate it. It has no setters; accessors return copies so that a Config
// can be shared by value between goroutines.
package buildcfg

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// ErrInvalid is wrapped by every validation error returned from [New].
var ErrInvalid = errors.New("invalid build configuration")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Settings is the loosely typed form of a build configuration as it comes
// out of flags, environment variables, and the config file.
type Settings struct {
	// EntryPoints are the source files dependency discovery starts from.
	EntryPoints []string `mapstructure:"entry-points" json:"entryPoints"`

	// Outfile is the bundle destination. The source map, when enabled, is
	// written next to it with a ".map" suffix.
	Outfile string `mapstructure:"outfile" json:"outfile"`

	// Bundle inlines all imported dependencies into the output.
	Bundle bool `mapstructure:"bundle" json:"bundle"`

	// Minify enables whitespace, identifier, and syntax minification.
	Minify bool `mapstructure:"minify" json:"minify"`

	// Sourcemap writes a linked source map.
	Sourcemap bool `mapstructure:"sourcemap" json:"sourcemap"`

	// Loader maps a file extension (".ts") to an esbuild loader ("ts").
	Loader map[string]string `mapstructure:"loader" json:"loader,omitempty"`

	// Target lists engine versions ("chrome58") and at most one
	// ECMAScript level ("es2017").
	Target []string `mapstructure:"target" json:"target,omitempty"`

	// WorkingDir is the directory relative paths resolve against.
	// Empty means the process working directory.
	WorkingDir string `mapstructure:"working-dir" json:"workingDir,omitempty"`
}

// DefaultSettings returns the stock configuration: a single src/index.js
// entry bundled, minified, and source-mapped into dist-node/index.js for
// chrome58, firefox57, safari11, and edge14.
func DefaultSettings() Settings {
	return Settings{
		EntryPoints: []string{"src/index.js"},
		Outfile:     "dist-node/index.js",
		Bundle:      true,
		Minify:      true,
		Sourcemap:   true,
		Loader:      map[string]string{".ts": "ts"},
		Target:      []string{"chrome58", "firefox57", "safari11", "edge14"},
	}
}

// Config is a validated, immutable build configuration.
type Config struct {
	entryPoints []string
	outfile     string
	bundle      bool
	minify      bool
	sourcemap   bool
	loader      map[string]string
	targets     []string
	workingDir  string

	// Parsed forms, computed once in New.
	loaders  map[string]api.Loader
	engines  []api.Engine
	esTarget api.Target
}

// Default returns the stock configuration. It panics only if the built-in
// defaults fail their own validation.
func Default() Config {
	cfg, err := New(DefaultSettings())
	if err != nil {
		panic(fmt.Sprintf("buildcfg: default settings are invalid: %v", err))
	}

	return cfg
}

// New validates s and returns the corresponding Config. Slices and maps are
// copied so later changes to s are not observed.
func New(s Settings) (Config, error) {
	if len(s.EntryPoints) == 0 {
		return Config{}, invalidf("at least one entry point is required")
	}

	for i, ep := range s.EntryPoints {
		if strings.TrimSpace(ep) == "" {
			return Config{}, invalidf("entry point %d is empty", i)
		}
	}

	if strings.TrimSpace(s.Outfile) == "" {
		return Config{}, invalidf("outfile is required")
	}

	loaders, err := parseLoaders(s.Loader)
	if err != nil {
		return Config{}, err
	}

	engines, esTarget, err := ParseTargets(s.Target)
	if err != nil {
		return Config{}, err
	}

	workingDir := s.WorkingDir
	if workingDir != "" {
		abs, absErr := filepath.Abs(workingDir)
		if absErr != nil {
			return Config{}, invalidf("resolving working directory %q: %v", workingDir, absErr)
		}

		workingDir = abs
	}

	return Config{
		entryPoints: slices.Clone(s.EntryPoints),
		outfile:     s.Outfile,
		bundle:      s.Bundle,
		minify:      s.Minify,
		sourcemap:   s.Sourcemap,
		loader:      maps.Clone(s.Loader),
		targets:     slices.Clone(s.Target),
		workingDir:  workingDir,
		loaders:     loaders,
		engines:     engines,
		esTarget:    esTarget,
	}, nil
}

// EntryPoints returns a copy of the entry point list.
func (c Config) EntryPoints() []string { return slices.Clone(c.entryPoints) }

// Outfile returns the bundle destination path as configured.
func (c Config) Outfile() string { return c.outfile }

// Bundle reports whether dependencies are inlined.
func (c Config) Bundle() bool { return c.bundle }

// Minify reports whether output is minified.
func (c Config) Minify() bool { return c.minify }

// Sourcemap reports whether a linked source map is written.
func (c Config) Sourcemap() bool { return c.sourcemap }

// Loader returns a copy of the extension to loader mapping.
func (c Config) Loader() map[string]string { return maps.Clone(c.loader) }

// Targets returns a copy of the target environment list.
func (c Config) Targets() []string { return slices.Clone(c.targets) }

// WorkingDir returns the absolute working directory, or "" for the
// process working directory.
func (c Config) WorkingDir() string { return c.workingDir }

// OutputPaths returns the files a successful build writes, resolved
// against the working directory when one is set.
func (c Config) OutputPaths() []string {
	out := c.Resolve(c.outfile)
	if !c.sourcemap {
		return []string{out}
	}

	return []string{out, out + ".map"}
}

// Resolve joins a relative path onto the working directory. Absolute
// paths, and all paths when no working directory is set, are returned
// unchanged.
func (c Config) Resolve(p string) string {
	if filepath.IsAbs(p) || c.workingDir == "" {
		return p
	}

	return filepath.Join(c.workingDir, p)
}

// Settings returns the loosely typed form of c. New(c.Settings()) yields a
// Config equal to c.
func (c Config) Settings() Settings {
	return Settings{
		EntryPoints: c.EntryPoints(),
		Outfile:     c.outfile,
		Bundle:      c.bundle,
		Minify:      c.minify,
		Sourcemap:   c.sourcemap,
		Loader:      c.Loader(),
		Target:      c.Targets(),
		WorkingDir:  c.workingDir,
	}
}

// BuildOptions translates c into esbuild options. Output is written to
// disk, esbuild's own logging is silenced, and a metafile is always
// requested so callers can summarise outputs.
func (c Config) BuildOptions(plugins ...api.Plugin) api.BuildOptions {
	sourcemap := api.SourceMapNone
	if c.sourcemap {
		sourcemap = api.SourceMapLinked
	}

	return api.BuildOptions{
		EntryPoints:       c.EntryPoints(),
		Outfile:           c.outfile,
		Bundle:            c.bundle,
		MinifyWhitespace:  c.minify,
		MinifyIdentifiers: c.minify,
		MinifySyntax:      c.minify,
		Sourcemap:         sourcemap,
		Loader:            maps.Clone(c.loaders),
		Engines:           slices.Clone(c.engines),
		Target:            c.esTarget,
		AbsWorkingDir:     c.workingDir,
		Write:             true,
		Metafile:          true,
		LogLevel:          api.LogLevelSilent,
		Plugins:           plugins,
	}
}

// LogValue implements slog.LogValuer.
func (c Config) LogValue() slog.Value {
	exts := slices.Collect(maps.Keys(c.loader))
	sort.Strings(exts)

	return slog.GroupValue(
		slog.String("entryPoints", strings.Join(c.entryPoints, ",")),
		slog.String("outfile", c.outfile),
		slog.Bool("bundle", c.bundle),
		slog.Bool("minify", c.minify),
		slog.Bool("sourcemap", c.sourcemap),
		slog.String("loaders", strings.Join(exts, ",")),
		slog.String("target", strings.Join(c.targets, ",")),
	)
}
