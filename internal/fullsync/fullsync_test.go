package fullsync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeSource plays back a growth schedule: the visible record count after
// each pass is schedule[min(pass, len-1)].
type fakeSource struct {
	mu       sync.Mutex
	schedule []int
	scrolls  int
	passes   int
}

func (f *fakeSource) Scroll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrolls++
	return nil
}

func (f *fakeSource) RunPass(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passes++
	return 0, nil
}

func (f *fakeSource) Count() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.passes
	if i >= len(f.schedule) {
		i = len(f.schedule) - 1
	}
	return f.schedule[i], nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	runIDs []string
	orders []int
}

func (f *fakeNotifier) AnalyticsRefresh(runID string, orders int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runIDs = append(f.runIDs, runID)
	f.orders = append(f.orders, orders)
	return nil
}

func TestCoordinator_StopsAfterStableCycles(t *testing.T) {
	// Counts grow on the first two passes, then plateau. Three consecutive
	// flat reads end the run, so exactly five passes happen.
	src := &fakeSource{schedule: []int{0, 5, 9, 9, 9, 9}}
	notifier := &fakeNotifier{}
	c := &Coordinator{
		Runner:   src,
		Counter:  src,
		Notifier: notifier,
		Tick:     time.Millisecond,
		Settle:   time.Millisecond,
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	c.Wait()

	if src.passes != 5 {
		t.Fatalf("want 5 passes, got %d", src.passes)
	}
	if src.scrolls != 5 {
		t.Fatalf("want 5 scrolls, got %d", src.scrolls)
	}
	if c.Running() {
		t.Fatalf("coordinator should be idle after the run")
	}
	if len(notifier.orders) != 1 || notifier.orders[0] != 9 {
		t.Fatalf("want one refresh notice with 9 orders: %+v", notifier.orders)
	}
	if notifier.runIDs[0] == "" {
		t.Fatalf("refresh notice missing run id")
	}
}

func TestCoordinator_TickCap(t *testing.T) {
	// A count that grows forever hits the tick cap instead of converging.
	src := &fakeSource{}
	c := &Coordinator{
		Runner:   &growForever{src: src},
		Counter:  &growForever{src: src},
		Tick:     time.Millisecond,
		Settle:   time.Millisecond,
		MaxTicks: 7,
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	c.Wait()
	if src.passes != 7 {
		t.Fatalf("want 7 passes at the cap, got %d", src.passes)
	}
}

// growForever reports one more record after every pass.
type growForever struct{ src *fakeSource }

func (g *growForever) Scroll(ctx context.Context) error { return g.src.Scroll(ctx) }
func (g *growForever) RunPass(ctx context.Context) (int, error) {
	return g.src.RunPass(ctx)
}
func (g *growForever) Count() (int, error) {
	g.src.mu.Lock()
	defer g.src.mu.Unlock()
	return g.src.passes, nil
}

func TestCoordinator_RejectsConcurrentStart(t *testing.T) {
	src := &fakeSource{schedule: []int{0, 0, 0, 0}}
	c := &Coordinator{
		Runner:  src,
		Counter: src,
		Tick:    5 * time.Millisecond,
		Settle:  5 * time.Millisecond,
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("want ErrAlreadyRunning, got %v", err)
	}
	c.Wait()
	// Once idle, a new run is accepted again.
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("restart after finish: %v", err)
	}
	c.Wait()
}

func TestCoordinator_CanceledContext(t *testing.T) {
	src := &fakeSource{schedule: []int{0}}
	c := &Coordinator{
		Runner:  src,
		Counter: src,
		Tick:    time.Hour,
		Settle:  time.Hour,
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	cancel()
	c.Wait()
	if src.passes != 0 {
		t.Fatalf("canceled run should not pass, got %d", src.passes)
	}
	if c.Running() {
		t.Fatalf("coordinator should be idle after cancel")
	}
}

func TestDebouncer_CoalescesBursts(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func() { calls.Add(1) })
	defer d.Stop()

	for i := 0; i < 5; i++ {
		d.Trigger()
		time.Sleep(2 * time.Millisecond)
	}

	deadline := time.Now().Add(time.Second)
	for calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("debounced call never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}
	// Give a straggler time to fire if the burst was not coalesced.
	time.Sleep(50 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Fatalf("want exactly 1 invocation, got %d", n)
	}
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(10*time.Millisecond, func() { calls.Add(1) })
	d.Trigger()
	d.Stop()
	time.Sleep(40 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Fatalf("stopped debouncer must not fire, got %d", n)
	}
}
