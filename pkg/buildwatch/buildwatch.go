// Package buildwatch provides a public Go API for bundling a JavaScript or
// TypeScript project with esbuild, once or in watch mode.
//
// Basic usage:
//
//	// Blocks until ctx is cancelled.
//	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
//	defer stop()
//
//	if err := buildwatch.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// With options:
//
//	result, err := buildwatch.Build(ctx,
//	    buildwatch.WithEntryPoints("src/main.ts"),
//	    buildwatch.WithOutfile("dist/app.js"),
//	    buildwatch.WithTargets("es2020"),
//	)
package buildwatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/hupe1980/buildwatch/internal/buildcfg"
	"github.com/hupe1980/buildwatch/internal/bundler"
	"github.com/hupe1980/buildwatch/internal/logging"
	"github.com/hupe1980/buildwatch/internal/output"
	"github.com/hupe1980/buildwatch/internal/watch"
)

// StatusLine is written once a watch session is active.
const StatusLine = watch.StatusLine

// Error sentinels, matched with errors.Is.
var (
	// ErrConfig reports a problem with the build configuration, including
	// entry points that cannot be resolved and syntax the targets do not
	// support.
	ErrConfig = bundler.ErrConfig

	// ErrIO reports a file system failure while reading sources or writing
	// outputs.
	ErrIO = bundler.ErrIO
)

// Option configures a build or watch session.
// Use the With* functions to create Options.
type Option func(*options)

type options struct {
	settings buildcfg.Settings
	metafile string
	logger   *slog.Logger
	out      io.Writer
	color    bool
}

// WithEntryPoints replaces the entry points.
func WithEntryPoints(paths ...string) Option {
	return func(o *options) { o.settings.EntryPoints = slices.Clone(paths) }
}

// WithOutfile sets the bundle destination.
func WithOutfile(path string) Option { return func(o *options) { o.settings.Outfile = path } }

// WithBundle toggles inlining of imported dependencies.
func WithBundle(on bool) Option { return func(o *options) { o.settings.Bundle = on } }

// WithMinify toggles minification.
func WithMinify(on bool) Option { return func(o *options) { o.settings.Minify = on } }

// WithSourcemap toggles the linked source map.
func WithSourcemap(on bool) Option { return func(o *options) { o.settings.Sourcemap = on } }

// WithLoader replaces the extension to loader mapping.
func WithLoader(loader map[string]string) Option {
	return func(o *options) { o.settings.Loader = maps.Clone(loader) }
}

// WithTargets replaces the target engines and ECMAScript level.
func WithTargets(targets ...string) Option {
	return func(o *options) { o.settings.Target = slices.Clone(targets) }
}

// WithWorkingDir sets the directory relative paths resolve against.
func WithWorkingDir(dir string) Option { return func(o *options) { o.settings.WorkingDir = dir } }

// WithMetafile writes esbuild's metafile JSON to path after each build.
func WithMetafile(path string) Option { return func(o *options) { o.metafile = path } }

// WithLogger sets the logger for build reports. The default discards them.
func WithLogger(logger *slog.Logger) Option { return func(o *options) { o.logger = logger } }

// WithOutput sets where Start writes StatusLine. The default is discarded.
func WithOutput(w io.Writer) Option { return func(o *options) { o.out = w } }

// WithColor colors the status line.
func WithColor() Option { return func(o *options) { o.color = true } }

func newOptions(opts []Option) *options {
	o := &options{
		settings: buildcfg.DefaultSettings(),
		logger:   logging.Discard(),
		out:      io.Discard,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Start builds the project and watches it for changes. It returns an error
// matching ErrConfig or ErrIO if the configuration is invalid or the first
// build fails; in that case nothing is written to the output. Otherwise
// StatusLine is written once and Start blocks until ctx is cancelled, then
// returns nil. Start installs no signal handlers; cancel ctx from one.
func Start(ctx context.Context, opts ...Option) error {
	o := newOptions(opts)

	cfg, err := buildcfg.New(o.settings)
	if err != nil {
		return err
	}

	wo := watch.DefaultOptions()
	wo.Build = cfg
	wo.Color = o.color
	wo.Logger = o.logger
	wo.Out = o.out

	if o.metafile != "" {
		wo.MetafilePath = cfg.Resolve(o.metafile)
	}

	return watch.Start(ctx, wo)
}

// Output is one file written by a build.
type Output struct {
	Path  string
	Bytes int
}

// Result summarises a successful build.
type Result struct {
	// Outputs lists the written files, ordered by path and relative to the
	// working directory.
	Outputs []Output

	// Warnings holds esbuild's formatted warnings.
	Warnings []string

	// Metafile is esbuild's metafile JSON.
	Metafile string

	Duration time.Duration
}

// Build runs a single build and returns its outputs.
func Build(ctx context.Context, opts ...Option) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o := newOptions(opts)

	cfg, err := buildcfg.New(o.settings)
	if err != nil {
		return nil, err
	}

	bc, err := bundler.Open(cfg, nil)
	if err != nil {
		return nil, err
	}
	defer bc.Dispose()

	r := bc.Rebuild()
	if err := r.Err(); err != nil {
		return nil, err
	}

	res := &Result{
		Warnings: bundler.FormatWarnings(r.Warnings),
		Metafile: r.Metafile,
		Duration: r.Duration,
	}

	for _, out := range r.Outputs {
		res.Outputs = append(res.Outputs, Output{Path: out.Path, Bytes: out.Bytes})
	}

	for _, w := range res.Warnings {
		o.logger.Warn("build warning", slog.String("message", w))
	}

	if o.metafile != "" {
		if err := writeMetafile(cfg.Resolve(o.metafile), r.Metafile, o.logger); err != nil {
			return nil, err
		}
	}

	return res, nil
}

func writeMetafile(path, data string, logger *slog.Logger) error {
	w := output.NewFileWriter(path, output.WithLogger(logger))
	if err := w.Write([]byte(data)); err != nil {
		return fmt.Errorf("writing metafile: %w", err)
	}

	return nil
}

// IsConfigError reports whether err is a build configuration error.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfig)
}
