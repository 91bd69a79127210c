package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// ProgressCallback receives batch progress notifications. Implementations
// must be safe for concurrent use; workers report completion from multiple
// goroutines.
type ProgressCallback interface {
	OnStart(total int)
	OnProgress(done, total int)
	OnComplete()
}

// NoOpProgress discards all notifications.
type NoOpProgress struct{}

func (NoOpProgress) OnStart(int)         {}
func (NoOpProgress) OnProgress(int, int) {}
func (NoOpProgress) OnComplete()         {}

// ConsoleProgress writes a progress line to stderr.
type ConsoleProgress struct {
	mu sync.Mutex
}

func (c *ConsoleProgress) OnStart(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(os.Stderr, "Processing %d sheet(s)...\n", total)
}

func (c *ConsoleProgress) OnProgress(done, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(os.Stderr, "\r%d/%d", done, total)
	if done == total {
		fmt.Fprintln(os.Stderr)
	}
}

func (c *ConsoleProgress) OnComplete() {}

// LogProgress reports progress through slog at debug level.
type LogProgress struct{}

func (LogProgress) OnStart(total int) {
	slog.Debug("batch started", "total", total)
}

func (LogProgress) OnProgress(done, total int) {
	slog.Debug("batch progress", "done", done, "total", total)
}

func (LogProgress) OnComplete() {
	slog.Debug("batch complete")
}

// ThrottledProgress rate-limits OnProgress calls to an inner callback.
// Start and completion always pass through.
type ThrottledProgress struct {
	Inner    ProgressCallback
	Interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func (t *ThrottledProgress) OnStart(total int) { t.Inner.OnStart(total) }

func (t *ThrottledProgress) OnProgress(done, total int) {
	t.mu.Lock()
	now := time.Now()
	if done < total && now.Sub(t.last) < t.Interval {
		t.mu.Unlock()
		return
	}
	t.last = now
	t.mu.Unlock()
	t.Inner.OnProgress(done, total)
}

func (t *ThrottledProgress) OnComplete() { t.Inner.OnComplete() }
