package watch

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer coalesces rapid events into a single callback invocation.
// Only the last event within the configured interval triggers the callback.
type Debouncer struct {
	interval time.Duration
	logger   *slog.Logger
	callback func(path string)

	mu       sync.Mutex
	timer    *time.Timer
	lastPath string
	stopped  bool
}

// NewDebouncer creates a debouncer that waits for interval of quiet before
// firing callback with the path of the last event. A panicking callback is
// logged to logger, or slog.Default when logger is nil.
func NewDebouncer(interval time.Duration, logger *slog.Logger, callback func(path string)) *Debouncer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Debouncer{
		interval: interval,
		logger:   logger,
		callback: callback,
	}
}

// Trigger records an event for the given path. If no further events arrive
// within the debounce interval, the callback fires with the last path seen.
// Events after Stop are ignored.
func (d *Debouncer) Trigger(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.lastPath = path

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.interval, d.fire)
}

func (d *Debouncer) fire() {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("debouncer callback panicked", slog.Any("error", r))
		}
	}()

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}

	p := d.lastPath
	d.mu.Unlock()

	d.callback(p)
}

// Stop cancels any pending debounced callback and ignores later events.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
