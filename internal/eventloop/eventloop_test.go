package eventloop

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kalyan02/blogdkr/internal/pipeline"
)

// recordingRunner records which pipeline entry points ran, in order.
type recordingRunner struct {
	mu      sync.Mutex
	calls   []string
	err     error
	started chan string
}

func (r *recordingRunner) record(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
	if r.started != nil {
		r.started <- call
	}
}

func (r *recordingRunner) RunAuto(context.Context) (*pipeline.Outcome, error) {
	r.record("auto")
	return &pipeline.Outcome{Mode: pipeline.ModeIncremental}, r.err
}

func (r *recordingRunner) RunFull(context.Context) (*pipeline.Outcome, error) {
	r.record("full")
	return &pipeline.Outcome{Mode: pipeline.ModeFull}, r.err
}

func (r *recordingRunner) RunIncremental(_ context.Context, cursor string) (*pipeline.Outcome, error) {
	r.record("incremental:" + cursor)
	return &pipeline.Outcome{Mode: pipeline.ModeIncremental}, r.err
}

func (r *recordingRunner) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func waitFor(t *testing.T, ch <-chan string, n int) []string {
	t.Helper()
	var got []string
	for i := 0; i < n; i++ {
		select {
		case call := <-ch:
			got = append(got, call)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for call %d of %d", i+1, n)
		}
	}
	return got
}

func TestEventsProcessedInArrivalOrder(t *testing.T) {
	runner := &recordingRunner{started: make(chan string, 8)}
	loop := New(runner, zap.NewNop())

	// Queue everything before starting the consumer so ordering is the
	// only variable.
	loop.Enqueue(Event{Type: RemoteChanged})
	loop.Enqueue(Event{Type: ForceFullSync})
	loop.Enqueue(Event{Type: RemoteChangedWithCursor, Cursor: "tok"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	got := waitFor(t, runner.started, 3)
	assert.Equal(t, []string{"auto", "full", "incremental:tok"}, got)
}

func TestEnqueueNeverBlocks(t *testing.T) {
	runner := &recordingRunner{}
	loop := New(runner, zap.NewNop())

	// No consumer running: a burst of producers must still return
	// immediately.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			loop.Enqueue(Event{Type: RemoteChanged})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("enqueue blocked without a consumer")
	}
	assert.Equal(t, 1000, loop.Pending())
}

func TestCycleErrorDoesNotStopTheLoop(t *testing.T) {
	runner := &recordingRunner{started: make(chan string, 4), err: fmt.Errorf("build failed")}
	loop := New(runner, zap.NewNop())

	loop.Enqueue(Event{Type: ForceFullSync})
	loop.Enqueue(Event{Type: ForceFullSync})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	got := waitFor(t, runner.started, 2)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"full", "full"}, runner.recorded())
}

func TestRunReturnsOnContextCancel(t *testing.T) {
	runner := &recordingRunner{}
	loop := New(runner, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(stopped)
	}()

	cancel()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop on context cancellation")
	}
}
