// Package eventloop serializes externally triggered sync requests into at
// most one running pipeline cycle.
//
// Events are queued unbounded and FIFO: producers never block, nothing is
// dropped or deduplicated, and a burst of notifications becomes a backlog
// of sequential cycles. There is no mid-cycle cancellation; a newly
// arriving event waits for the running cycle to finish.
package eventloop

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/kalyan02/blogdkr/internal/pipeline"
)

// EventType selects the sync mode for a trigger.
type EventType int

const (
	// RemoteChanged runs an incremental cycle when a cursor is stored,
	// a full cycle otherwise.
	RemoteChanged EventType = iota
	// RemoteChangedWithCursor runs an incremental cycle from an explicit
	// cursor, bypassing the stored one.
	RemoteChangedWithCursor
	// ForceFullSync always runs a full cycle.
	ForceFullSync
)

func (t EventType) String() string {
	switch t {
	case RemoteChanged:
		return "remote_changed"
	case RemoteChangedWithCursor:
		return "remote_changed_with_cursor"
	case ForceFullSync:
		return "force_full_sync"
	default:
		return "unknown"
	}
}

// Event is one reconciliation trigger.
type Event struct {
	Type   EventType
	Cursor string // set for RemoteChangedWithCursor only
}

// Runner runs one pipeline cycle per call. Satisfied by
// *pipeline.Pipeline.
type Runner interface {
	RunAuto(ctx context.Context) (*pipeline.Outcome, error)
	RunFull(ctx context.Context) (*pipeline.Outcome, error)
	RunIncremental(ctx context.Context, cursor string) (*pipeline.Outcome, error)
}

// Loop is the single-consumer event queue.
type Loop struct {
	runner Runner
	logger *zap.Logger

	mu    sync.Mutex
	queue []Event
	wake  chan struct{}
}

// New creates a Loop. Call Run to start consuming.
func New(runner Runner, logger *zap.Logger) *Loop {
	return &Loop{
		runner: runner,
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the queue. It never blocks.
func (l *Loop) Enqueue(ev Event) {
	l.mu.Lock()
	l.queue = append(l.queue, ev)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued events not yet started.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Run consumes events in arrival order until ctx is cancelled, running
// each to completion before pulling the next. Every cycle ends in a
// logged terminal outcome; no error escapes the loop.
func (l *Loop) Run(ctx context.Context) {
	for {
		ev, ok := l.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-l.wake:
				continue
			}
		}

		select {
		case <-ctx.Done():
			return
		default:
		}

		l.dispatch(ctx, ev)
	}
}

func (l *Loop) pop() (Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return Event{}, false
	}
	ev := l.queue[0]
	l.queue = l.queue[1:]
	return ev, true
}

func (l *Loop) dispatch(ctx context.Context, ev Event) {
	l.logger.Info("processing sync event", zap.String("event", ev.Type.String()))

	var (
		outcome *pipeline.Outcome
		err     error
	)
	switch ev.Type {
	case RemoteChanged:
		outcome, err = l.runner.RunAuto(ctx)
	case RemoteChangedWithCursor:
		outcome, err = l.runner.RunIncremental(ctx, ev.Cursor)
	case ForceFullSync:
		outcome, err = l.runner.RunFull(ctx)
	default:
		l.logger.Warn("ignoring unknown event type", zap.Int("type", int(ev.Type)))
		return
	}

	if err != nil {
		l.logger.Error("sync cycle aborted",
			zap.String("event", ev.Type.String()),
			zap.Error(err))
		return
	}
	l.logger.Info("sync cycle finished",
		zap.String("event", ev.Type.String()),
		zap.String("mode", string(outcome.Mode)),
		zap.Int("fetched", outcome.Stats.Fetched),
		zap.Int("deleted", outcome.Stats.Deleted))
}
