// Package fullsync drives repeated extraction passes against the scroll-
// paginated source until the record count stops growing.
package fullsync

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"ordertrack/internal/metrics"
	"ordertrack/internal/notify"
)

// ErrAlreadyRunning is returned when a start request arrives while a run is
// in progress. It is a user-visible notice, not queued work.
var ErrAlreadyRunning = errors.New("full sync already running")

const (
	DefaultTick         = 1300 * time.Millisecond
	DefaultSettle       = 700 * time.Millisecond
	DefaultStableTarget = 3
	DefaultMaxTicks     = 60
)

// Runner is the extraction pass driven on each tick.
type Runner interface {
	Scroll(ctx context.Context) error
	RunPass(ctx context.Context) (written int, err error)
}

// Counter reports the store's current record count.
type Counter interface {
	Count() (int, error)
}

// Coordinator owns the idle -> running -> idle state machine. Only one run is
// permitted at a time.
type Coordinator struct {
	Runner   Runner
	Counter  Counter
	Notifier notify.Notifier
	Metrics  *metrics.Registry

	Tick         time.Duration
	Settle       time.Duration
	StableTarget int
	MaxTicks     int

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// Start launches a run in the background. A start while running is rejected
// with ErrAlreadyRunning.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.running = true
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.run(ctx)
	return nil
}

// Running reports whether a run is in progress.
func (c *Coordinator) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Wait blocks until the current run, if any, finishes.
func (c *Coordinator) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (c *Coordinator) run(ctx context.Context) {
	runID := uuid.NewString()
	start := time.Now()
	if c.Metrics != nil {
		c.Metrics.SyncRunning.Set(1)
	}
	defer func() {
		if c.Metrics != nil {
			c.Metrics.SyncRunning.Set(0)
			c.Metrics.SyncDuration.Observe(time.Since(start).Seconds())
		}
		c.mu.Lock()
		c.running = false
		close(c.done)
		c.mu.Unlock()
	}()

	tick := c.Tick
	if tick <= 0 {
		tick = DefaultTick
	}
	settle := c.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}
	stableTarget := c.StableTarget
	if stableTarget <= 0 {
		stableTarget = DefaultStableTarget
	}
	maxTicks := c.MaxTicks
	if maxTicks <= 0 {
		maxTicks = DefaultMaxTicks
	}

	log.Printf("fullsync %s started tick=%s settle=%s", runID, tick, settle)

	last := 0
	if n, err := c.Counter.Count(); err == nil {
		last = n
	}
	stable := 0
	ticks := 0
	for i := 1; i <= maxTicks; i++ {
		if !sleep(ctx, tick) {
			log.Printf("fullsync %s canceled at tick %d", runID, i)
			return
		}
		ticks = i
		if err := c.Runner.Scroll(ctx); err != nil {
			log.Printf("fullsync %s: scroll failed: %v", runID, err)
		}
		if !sleep(ctx, settle) {
			log.Printf("fullsync %s canceled at tick %d", runID, i)
			return
		}
		if _, err := c.Runner.RunPass(ctx); err != nil {
			log.Printf("fullsync %s: pass failed: %v", runID, err)
		}
		n, err := c.Counter.Count()
		if err != nil {
			log.Printf("fullsync %s: count failed: %v", runID, err)
			continue
		}
		if n > last {
			stable = 0
			last = n
		} else {
			stable++
		}
		if stable >= stableTarget {
			break
		}
	}

	log.Printf("fullsync %s finished ticks=%d orders=%d", runID, ticks, last)
	if c.Notifier != nil {
		if err := c.Notifier.AnalyticsRefresh(runID, last); err != nil {
			log.Printf("fullsync %s: notify failed: %v", runID, err)
		}
	}
}

// sleep waits d or returns false when ctx is canceled first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
