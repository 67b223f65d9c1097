// Package pipeline runs one sync cycle end to end: list the remote,
// reconcile the local tree, build, mirror-copy, and commit the cursor.
//
// Stage order is fixed: Listing -> Reconciling -> Building -> Mirroring ->
// CommittingCursor. Listing and Building failures abort the cycle and
// leave the stored cursor untouched, so the next trigger retries from the
// same starting state. Reconciling and Mirroring failures are per-entity:
// logged, counted, never fatal. The cursor is committed only after a
// successful build, which guarantees no half-synced, unbuilt tree is ever
// promoted to the mirror destinations.
//
// A Pipeline is not safe for concurrent cycles; the event loop serializes
// invocations.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kalyan02/blogdkr/internal/cursor"
	"github.com/kalyan02/blogdkr/internal/reconcile"
	"github.com/kalyan02/blogdkr/internal/remote"
)

// Mode distinguishes full listings from cursor-based change feeds.
type Mode string

const (
	ModeFull        Mode = "full"
	ModeIncremental Mode = "incremental"
)

// CursorStore persists the opaque change cursor between cycles.
// Satisfied by *cursor.Store.
type CursorStore interface {
	Load() (string, error)
	Save(token string) error
}

// Builder runs the external build step.
type Builder interface {
	Run(ctx context.Context) (output []byte, err error)
}

// Mirror applies the configured copy rules.
type Mirror interface {
	Apply(ctx context.Context) (applied, failed int)
}

// Outcome is the terminal result of one cycle.
type Outcome struct {
	Mode            Mode
	Entries         int
	Stats           reconcile.Stats
	ShortCircuited  bool
	CursorCommitted bool
}

// Pipeline orchestrates one reconciliation cycle.
type Pipeline struct {
	source     remote.Source
	cursors    CursorStore
	reconciler *reconcile.Reconciler
	builder    Builder
	mirror     Mirror
	remoteRoot string
	logger     *zap.Logger
}

// New wires a Pipeline. The reconciler must be rooted at the same base
// directory the cursor store lives in.
func New(source remote.Source, cursors CursorStore, rec *reconcile.Reconciler, builder Builder, mirror Mirror, remoteRoot string, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		source:     source,
		cursors:    cursors,
		reconciler: rec,
		builder:    builder,
		mirror:     mirror,
		remoteRoot: remoteRoot,
		logger:     logger,
	}
}

// RunAuto runs an incremental cycle when a cursor is stored, a full cycle
// otherwise.
func (p *Pipeline) RunAuto(ctx context.Context) (*Outcome, error) {
	token, err := p.cursors.Load()
	if err != nil {
		if errors.Is(err, cursor.ErrNotFound) {
			p.logger.Info("no stored cursor, running full sync")
			return p.RunFull(ctx)
		}
		return nil, fmt.Errorf("load cursor: %w", err)
	}
	return p.RunIncremental(ctx, token)
}

// RunFull lists the entire remote tree, reconciles local deletions, and
// commits the fresh listing cursor on success.
func (p *Pipeline) RunFull(ctx context.Context) (*Outcome, error) {
	started := time.Now()
	outcome := &Outcome{Mode: ModeFull}

	entries, newCursor, err := p.source.List(ctx, p.remoteRoot, true)
	if err != nil {
		recordCycle(ModeFull, outcomeAborted)
		return nil, fmt.Errorf("listing: %w", err)
	}
	outcome.Entries = len(entries)
	p.logger.Info("remote listing complete",
		zap.Int("entries", len(entries)),
		zap.String("mode", string(ModeFull)))

	outcome.Stats = p.reconciler.FullSync(ctx, entries)

	if err := p.finish(ctx, outcome, newCursor); err != nil {
		return nil, err
	}
	p.logCycle(outcome, started)
	return outcome, nil
}

// RunIncremental reconciles the entries changed since token. It never
// deletes: the change feed does not reliably enumerate deletions, so
// destructive cleanup waits for the next full pass. An empty change set
// short-circuits build and mirror but still commits the fresh terminal
// cursor.
func (p *Pipeline) RunIncremental(ctx context.Context, token string) (*Outcome, error) {
	started := time.Now()
	outcome := &Outcome{Mode: ModeIncremental}

	entries, newCursor, err := p.source.ChangesSince(ctx, token)
	if err != nil {
		recordCycle(ModeIncremental, outcomeAborted)
		return nil, fmt.Errorf("listing: %w", err)
	}
	outcome.Entries = len(entries)
	p.logger.Info("change feed complete",
		zap.Int("entries", len(entries)),
		zap.String("mode", string(ModeIncremental)))

	if len(entries) == 0 {
		outcome.ShortCircuited = true
		if err := p.commitCursor(outcome, newCursor); err != nil {
			return nil, err
		}
		recordCycle(ModeIncremental, outcomeSuccess)
		p.logCycle(outcome, started)
		return outcome, nil
	}

	outcome.Stats = p.reconciler.IncrementalSync(ctx, entries)

	if err := p.finish(ctx, outcome, newCursor); err != nil {
		return nil, err
	}
	p.logCycle(outcome, started)
	return outcome, nil
}

// finish runs the Building, Mirroring and CommittingCursor stages shared
// by both modes.
func (p *Pipeline) finish(ctx context.Context, outcome *Outcome, newCursor string) error {
	output, err := p.builder.Run(ctx)
	if err != nil {
		recordBuildFailure()
		recordCycle(outcome.Mode, outcomeAborted)
		p.logger.Error("build failed, aborting cycle",
			zap.Error(err),
			zap.ByteString("output", output))
		return fmt.Errorf("building: %w", err)
	}
	if len(output) > 0 {
		p.logger.Debug("build output", zap.ByteString("output", output))
	}

	applied, failed := p.mirror.Apply(ctx)
	if failed > 0 {
		p.logger.Warn("some copy rules failed",
			zap.Int("applied", applied),
			zap.Int("failed", failed))
	}

	if err := p.commitCursor(outcome, newCursor); err != nil {
		recordCycle(outcome.Mode, outcomeAborted)
		return err
	}
	recordCycle(outcome.Mode, outcomeSuccess)
	recordStats(outcome.Stats)
	return nil
}

func (p *Pipeline) commitCursor(outcome *Outcome, newCursor string) error {
	if newCursor == "" {
		return nil
	}
	if err := p.cursors.Save(newCursor); err != nil {
		return fmt.Errorf("committing cursor: %w", err)
	}
	outcome.CursorCommitted = true
	return nil
}

func (p *Pipeline) logCycle(outcome *Outcome, started time.Time) {
	p.logger.Info("sync cycle complete",
		zap.String("mode", string(outcome.Mode)),
		zap.Int("entries", outcome.Entries),
		zap.Int("fetched", outcome.Stats.Fetched),
		zap.Int("deleted", outcome.Stats.Deleted),
		zap.Int("fetch_errors", outcome.Stats.FetchErrors),
		zap.Bool("short_circuited", outcome.ShortCircuited),
		zap.Bool("cursor_committed", outcome.CursorCommitted),
		zap.Duration("duration", time.Since(started)))
}
