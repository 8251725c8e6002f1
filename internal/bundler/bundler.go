// Package bundler adapts esbuild's incremental build API to buildwatch.
//
// [Open] creates an esbuild build context from a [buildcfg.Config] and
// installs a small plugin that reports every finished build as a [Result].
// Failures are returned as [*Error], classified as configuration or I/O
// errors, with esbuild's diagnostics left intact.
package bundler

import (
	"fmt"
	"sync"
	"time"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/hupe1980/buildwatch/internal/buildcfg"
)

// Result summarises one finished build.
type Result struct {
	Errors   []api.Message
	Warnings []api.Message

	// Outputs lists the written files, ordered by path. Empty on failure.
	Outputs []Output

	// Metafile is esbuild's raw metafile JSON. Empty on failure.
	Metafile string

	// Duration is the wall time from build start to build end.
	Duration time.Duration
}

// Err returns nil for a successful build and an [*Error] otherwise.
func (r Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}

	return newError(r.Errors)
}

// OnEndFunc is called on an esbuild goroutine after every build of a
// context, including builds triggered by watch mode.
type OnEndFunc func(Result)

// Context is an esbuild build context bound to one immutable
// configuration.
type Context struct {
	cfg   buildcfg.Config
	ctx   api.BuildContext
	onEnd OnEndFunc

	mu      sync.Mutex
	started time.Time
}

// Open asks esbuild for a build context. Nothing is built or written until
// Watch or Rebuild is called. onEnd may be nil.
func Open(cfg buildcfg.Config, onEnd OnEndFunc) (*Context, error) {
	c := &Context{cfg: cfg, onEnd: onEnd}

	ctx, ctxErr := api.Context(cfg.BuildOptions(c.reporter()))
	if ctxErr != nil {
		return nil, contextError(ctxErr)
	}

	c.ctx = ctx

	return c, nil
}

// Config returns the configuration the context was opened with.
func (c *Context) Config() buildcfg.Config {
	return c.cfg
}

// Watch starts esbuild's watch mode. esbuild runs the first build in the
// background; its result arrives through the OnEndFunc.
func (c *Context) Watch() error {
	if err := c.ctx.Watch(api.WatchOptions{}); err != nil {
		return &Error{Kind: KindConfig, text: err.Error()}
	}

	return nil
}

// Rebuild runs one build synchronously and returns its result.
func (c *Context) Rebuild() Result {
	start := time.Now()
	r := c.ctx.Rebuild()

	return c.summarise(&r, time.Since(start))
}

// Dispose stops watch mode, if active, and releases esbuild resources.
// Calling Dispose more than once is safe.
func (c *Context) Dispose() {
	c.ctx.Dispose()
}

func (c *Context) reporter() api.Plugin {
	return api.Plugin{
		Name: "buildwatch-report",
		Setup: func(build api.PluginBuild) {
			build.OnStart(func() (api.OnStartResult, error) {
				c.mu.Lock()
				c.started = time.Now()
				c.mu.Unlock()

				return api.OnStartResult{}, nil
			})

			build.OnEnd(func(r *api.BuildResult) (api.OnEndResult, error) {
				c.mu.Lock()
				elapsed := time.Since(c.started)
				c.mu.Unlock()

				if c.onEnd != nil {
					c.onEnd(c.summarise(r, elapsed))
				}

				return api.OnEndResult{}, nil
			})
		},
	}
}

func (c *Context) summarise(r *api.BuildResult, elapsed time.Duration) Result {
	res := Result{
		Errors:   r.Errors,
		Warnings: r.Warnings,
		Duration: elapsed,
	}

	if len(r.Errors) > 0 || r.Metafile == "" {
		return res
	}

	res.Metafile = r.Metafile

	mf, err := ParseMetafile(r.Metafile)
	if err != nil {
		res.Warnings = append(res.Warnings, api.Message{
			Text: fmt.Sprintf("ignoring unreadable metafile: %v", err),
		})

		return res
	}

	res.Outputs = mf.SortedOutputs()

	return res
}
