// Close() must wait for in-flight async hooks and block new dispatches.
// Async hooks were originally fire-and-forget goroutines: Close() would
// flush and close writers while hooks were still running, losing events.
// The hookWg WaitGroup makes Close() block until all async hooks finish,
// and the closed flag drops dispatches that arrive afterwards.
//
// Wait() must also run under the write lock. A concurrent Dispatch()
// that already passed the closed check could otherwise call hookWg.Add
// during Wait(), which panics.
package dispatcher

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/riskgate/riskgate/pkg/output/events"
	"github.com/riskgate/riskgate/pkg/testutil"
)

// TestCloseWaitsForAsyncHooks verifies Close() blocks until all async hooks
// finish, rather than returning immediately.
func TestCloseWaitsForAsyncHooks(t *testing.T) {
	t.Parallel()

	d := New(Config{Async: true})

	h := newMockHook()
	h.shouldBlock = true
	h.blockTime = 200 * time.Millisecond
	d.RegisterHook(h)

	event := newMockEvent(events.EventTypeEvaluation)

	// Dispatch fires the async hook goroutine.
	if err := d.Dispatch(context.Background(), event); err != nil {
		t.Fatal(err)
	}

	// Close should block until the async hook finishes (~200ms).
	start := time.Now()
	_ = d.Close()
	elapsed := time.Since(start)

	// If Close returned without waiting, elapsed would be ~0ms.
	if elapsed < 100*time.Millisecond {
		t.Errorf("Close() returned in %v; expected it to wait for async hook (~200ms)", elapsed)
	}

	// Verify the hook actually processed the event.
	if h.getEventCount() != 1 {
		t.Errorf("hook received %d events after Close(); want 1", h.getEventCount())
	}
}

// TestCloseWaitsForMultipleAsyncHooks verifies Close() waits for ALL hooks,
// not just the first one.
func TestCloseWaitsForMultipleAsyncHooks(t *testing.T) {
	t.Parallel()

	d := New(Config{Async: true})

	const numHooks = 5
	hooks := make([]*mockHook, numHooks)
	for i := range hooks {
		hooks[i] = newMockHook()
		hooks[i].shouldBlock = true
		hooks[i].blockTime = 100 * time.Millisecond
		d.RegisterHook(hooks[i])
	}

	event := newMockEvent(events.EventTypeEvaluation)
	if err := d.Dispatch(context.Background(), event); err != nil {
		t.Fatal(err)
	}

	_ = d.Close()

	for i, h := range hooks {
		if h.getEventCount() != 1 {
			t.Errorf("hook[%d] received %d events; want 1", i, h.getEventCount())
		}
	}
}

// TestAsyncHookError_DoesNotPreventClose verifies that hook errors don't
// cause Close() to hang.
func TestAsyncHookError_DoesNotPreventClose(t *testing.T) {
	t.Parallel()

	d := New(Config{Async: true})

	h := newMockHook()
	h.shouldFail = true
	d.RegisterHook(h)

	event := newMockEvent(events.EventTypeEvaluation)
	_ = d.Dispatch(context.Background(), event)

	// Close must complete promptly even though the hook returned an error.
	testutil.AssertTimeout(t, "Close after hook error", 2*time.Second, func() {
		_ = d.Close()
	})
}

// TestDispatchAfterClose_Dropped verifies that dispatching after Close
// does not panic and does not reach hooks.
func TestDispatchAfterClose_Dropped(t *testing.T) {
	t.Parallel()

	d := New(Config{Async: true})

	var hookCalled int32
	h := &simpleHook{
		onEvent: func(_ context.Context, _ events.Event) error {
			atomic.AddInt32(&hookCalled, 1)
			return nil
		},
		eventTypes: nil, // all events
	}
	d.RegisterHook(h)

	_ = d.Close()

	// Dispatch after close - must not panic and must not process.
	_ = d.Dispatch(context.Background(), newMockEvent(events.EventTypeEvaluation))

	// Give any spawned goroutine time to run.
	time.Sleep(50 * time.Millisecond)

	if atomic.LoadInt32(&hookCalled) != 0 {
		t.Error("hook was called after Close()")
	}
}

// TestConcurrentDispatchAndClose hammers Dispatch() and Close()
// concurrently to shake out WaitGroup misuse.
func TestConcurrentDispatchAndClose(t *testing.T) {
	t.Parallel()

	for i := 0; i < 50; i++ {
		d := New(Config{Async: true})

		h := newMockHook()
		h.shouldBlock = true
		h.blockTime = time.Millisecond
		d.RegisterHook(h)

		event := newMockEvent(events.EventTypeEvaluation)
		ctx := context.Background()

		// Close concurrently while dispatches are in flight.
		go func() {
			time.Sleep(time.Microsecond * 50)
			_ = d.Close()
		}()

		testutil.RunConcurrently(20, func(_ int) {
			_ = d.Dispatch(ctx, event)
		})
		// If we reach here without panic, the WaitGroup handling is sound.
	}
}

// TestClose_BlocksNewDispatches verifies that Close() blocks new Dispatch()
// calls before waiting for outstanding hooks.
func TestClose_BlocksNewDispatches(t *testing.T) {
	t.Parallel()

	d := New(Config{Async: true})

	// Hook that takes 100ms to complete.
	h := newMockHook()
	h.shouldBlock = true
	h.blockTime = 100 * time.Millisecond
	d.RegisterHook(h)

	event := newMockEvent(events.EventTypeEvaluation)
	ctx := context.Background()

	// Dispatch one event (starts async hook).
	if err := d.Dispatch(ctx, event); err != nil {
		t.Fatal(err)
	}

	// Close should wait for the hook and then release.
	start := time.Now()
	_ = d.Close()
	elapsed := time.Since(start)

	if elapsed < 50*time.Millisecond {
		t.Errorf("Close() returned in %v, expected >= 50ms (hook takes 100ms)", elapsed)
	}

	// After close, further dispatches are silently dropped (returns nil).
	// Verify the hook does NOT receive new events after Close().
	preCloseCount := h.getEventCount()
	_ = d.Dispatch(ctx, event)
	if h.getEventCount() != preCloseCount {
		t.Error("hook received event after Close() - dispatch should be dropped")
	}
}

// simpleHook is a minimal Hook implementation for focused tests.
type simpleHook struct {
	onEvent    func(context.Context, events.Event) error
	eventTypes []events.EventType
}

func (h *simpleHook) OnEvent(ctx context.Context, event events.Event) error {
	return h.onEvent(ctx, event)
}

func (h *simpleHook) EventTypes() []events.EventType {
	return h.eventTypes
}
