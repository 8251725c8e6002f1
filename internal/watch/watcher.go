package watch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"

	"github.com/hupe1980/buildwatch/internal/buildcfg"
	"github.com/hupe1980/buildwatch/internal/bundler"
	"github.com/hupe1980/buildwatch/internal/output"
)

// StatusLine is printed once the watch session is active.
const StatusLine = "Watching..."

// ReloadFunc re-reads the configuration after the config file changed.
type ReloadFunc func() (buildcfg.Config, error)

// Options configures a watch session.
type Options struct {
	// Build is the configuration the first session is opened with.
	Build buildcfg.Config

	// MetafilePath, when set, receives esbuild's metafile JSON after every
	// successful build.
	MetafilePath string

	// ConfigFile is watched for changes when Reload is set.
	ConfigFile string

	// Reload produces a fresh configuration after ConfigFile changed.
	Reload ReloadFunc

	// Debounce is the quiet period before a config change is acted on.
	Debounce time.Duration

	// Color enables a colored status line on terminals.
	Color bool

	// Logger receives rebuild reports and errors.
	Logger *slog.Logger

	// Out receives the status line.
	Out io.Writer
}

// DefaultOptions returns watch options for the stock build configuration.
func DefaultOptions() Options {
	return Options{
		Build:    buildcfg.Default(),
		Debounce: 500 * time.Millisecond,
		Color:    true,
		Logger:   slog.Default(),
		Out:      os.Stdout,
	}
}

// Start opens an esbuild context for opts.Build, starts watch mode, and
// waits for the first build. If context creation, watch activation, or the
// first build fails, the error is returned and nothing is printed.
// Otherwise StatusLine is written to opts.Out exactly once and Start blocks
// until ctx is cancelled, at which point the esbuild context is disposed and
// nil is returned. Signal handling is left to the caller.
func Start(ctx context.Context, opts Options) error {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Out == nil {
		opts.Out = io.Discard
	}

	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)

	if opts.Reload != nil && opts.ConfigFile != "" {
		fw, err := watchConfigFile(opts.ConfigFile)
		if err != nil {
			return err
		}
		defer fw.Close()

		events, errs = fw.Events, fw.Errors
	}

	first, err := openSession(ctx, opts.Build, opts)
	if err != nil {
		return err
	}

	w := &watcher{ctx: ctx, opts: opts, current: first}
	defer w.dispose()

	printStatus(opts)

	debouncer := NewDebouncer(opts.Debounce, opts.Logger, w.reload)
	defer debouncer.Stop()

	configBase := filepath.Base(opts.ConfigFile)

	for {
		select {
		case <-ctx.Done():
			opts.Logger.Debug("stopping watch session")
			return nil

		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}

			if isRelevant(event) && filepath.Base(event.Name) == configBase {
				debouncer.Trigger(event.Name)
			}

		case watchErr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}

			opts.Logger.Error("config watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

func printStatus(opts Options) {
	c := color.New(color.FgGreen, color.Bold)
	if !opts.Color {
		c.DisableColor()
	}

	_, _ = c.Fprintln(opts.Out, StatusLine)
}

// watchConfigFile watches the directory holding path, since editors
// often replace a file rather than write it in place.
func watchConfigFile(path string) (*fsnotify.Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config file %q: %w", path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating config watcher: %w", err)
	}

	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watching config file %q: %w", abs, err)
	}

	return fw, nil
}

// watcher owns the active session and swaps it on config reload.
type watcher struct {
	ctx  context.Context
	opts Options

	// reloadMu serializes reloads so the last config change always wins.
	reloadMu sync.Mutex

	mu      sync.Mutex
	current *session
}

func (w *watcher) reload(path string) {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	if w.ctx.Err() != nil {
		return
	}

	log := w.opts.Logger.With(slog.String("configFile", path))

	cfg, err := w.opts.Reload()
	if err != nil {
		log.Error("config reload failed, keeping current build", slog.String("error", err.Error()))
		return
	}

	next, err := openSession(w.ctx, cfg, w.opts)
	if err != nil {
		log.Error("rebuild with reloaded config failed, keeping current build", slog.String("error", err.Error()))
		return
	}

	w.mu.Lock()
	if w.ctx.Err() != nil {
		w.mu.Unlock()
		next.dispose()

		return
	}

	prev := w.current
	w.current = next
	w.mu.Unlock()

	prev.dispose()
	log.Info("configuration reloaded", slog.Any("build", cfg))
}

func (w *watcher) dispose() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current != nil {
		w.current.dispose()
		w.current = nil
	}
}

// session is one esbuild context in watch mode.
type session struct {
	bc     *bundler.Context
	cfg    buildcfg.Config
	logger *slog.Logger
	meta   output.Writer

	first     chan bundler.Result
	firstOnce sync.Once

	mu   sync.Mutex
	prev Snapshot
}

// openSession opens a context for cfg, starts watch mode, and waits for
// the first build. The context is disposed on any failure.
func openSession(ctx context.Context, cfg buildcfg.Config, opts Options) (*session, error) {
	s := &session{
		cfg:    cfg,
		logger: opts.Logger,
		first:  make(chan bundler.Result, 1),
	}

	if opts.MetafilePath != "" {
		s.meta = output.NewFileWriter(opts.MetafilePath, output.WithLogger(opts.Logger))
	}

	bc, err := bundler.Open(cfg, s.onEnd)
	if err != nil {
		return nil, err
	}

	if err := bc.Watch(); err != nil {
		bc.Dispose()
		return nil, err
	}

	select {
	case r := <-s.first:
		if buildErr := r.Err(); buildErr != nil {
			bc.Dispose()
			return nil, buildErr
		}
	case <-ctx.Done():
		bc.Dispose()
		return nil, ctx.Err()
	}

	s.bc = bc
	opts.Logger.Debug("watch session started", slog.Any("build", cfg))

	return s, nil
}

func (s *session) dispose() {
	if s != nil && s.bc != nil {
		s.bc.Dispose()
	}
}

// onEnd runs on an esbuild goroutine after every build.
func (s *session) onEnd(r bundler.Result) {
	isFirst := false

	s.firstOnce.Do(func() {
		isFirst = true
		s.first <- r
	})

	s.report(r, isFirst)
}

func (s *session) report(r bundler.Result, isFirst bool) {
	for _, w := range bundler.FormatWarnings(r.Warnings) {
		s.logger.Warn("build warning", slog.String("message", w))
	}

	if err := r.Err(); err != nil {
		if !isFirst {
			s.logger.Error("rebuild failed", slog.String("error", err.Error()))
		}

		return
	}

	snap := TakeSnapshot(r.Outputs, s.cfg.Resolve)

	s.mu.Lock()
	changes := OutputDiff(s.prev, snap)
	s.prev = snap
	s.mu.Unlock()

	if s.meta != nil {
		if err := s.meta.Write([]byte(r.Metafile)); err != nil {
			s.logger.Error("writing metafile", slog.String("error", err.Error()))
		}
	}

	var total int
	for _, o := range r.Outputs {
		total += o.Bytes
	}

	msg := "rebuild succeeded"
	if isFirst {
		msg = "initial build succeeded"
	}

	s.logger.Info(msg,
		slog.Int("outputs", len(r.Outputs)),
		slog.String("size", humanize.Bytes(uint64(total))),
		slog.Duration("duration", r.Duration.Round(time.Millisecond)),
		slog.String("changes", OutputDiffSummary(changes)),
	)

	for _, c := range changes {
		s.logger.Debug("output "+c.Kind, slog.String("path", c.Path), slog.String("detail", c.Detail))
	}
}

// isRelevant filters out events on editor temporary files and pure
// permission changes.
func isRelevant(event fsnotify.Event) bool {
	if event.Op == 0 {
		return false
	}

	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}

	name := filepath.Base(event.Name)

	if strings.HasSuffix(name, "~") || strings.HasSuffix(name, ".swp") ||
		strings.HasPrefix(name, "#") {
		return false
	}

	return true
}
