package worker

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/rivulet-lab/rivulet/pkg/domain/interfaces"
	"github.com/rivulet-lab/rivulet/pkg/domain/model"
	"github.com/rivulet-lab/rivulet/pkg/service/stream"
	"github.com/rivulet-lab/rivulet/pkg/utils/logging"
)

// StreamReaper force-finalizes streams stuck in a non-terminal status.
// A stream whose writer died (process crash, lost goroutine) would otherwise
// stay pending/streaming forever and hold its consumers in a live loop.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - For future horizontal scaling, implement distributed locking or leader election
type StreamReaper struct {
	repo         interfaces.Repository
	hub          *stream.Hub
	interval     time.Duration
	ceiling      time.Duration
	fallbackText string
	stopCh       chan struct{}
	doneCh       chan struct{}
}

// ReaperOption configures a StreamReaper
type ReaperOption func(*StreamReaper)

// WithReaperFallbackText overrides the text written when a reaped stream
// has produced no output
func WithReaperFallbackText(text string) ReaperOption {
	return func(r *StreamReaper) {
		r.fallbackText = text
	}
}

// NewStreamReaper creates a reaper that sweeps every interval and finalizes
// streams not updated for longer than ceiling
func NewStreamReaper(repo interfaces.Repository, hub *stream.Hub, interval, ceiling time.Duration, opts ...ReaperOption) *StreamReaper {
	r := &StreamReaper{
		repo:         repo,
		hub:          hub,
		interval:     interval,
		ceiling:      ceiling,
		fallbackText: stream.DefaultFallbackText,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start begins the background sweep loop. Does not block server startup.
func (r *StreamReaper) Start(ctx context.Context) error {
	logging.Default().Info("stream reaper starting",
		"interval", r.interval.String(),
		"ceiling", r.ceiling.String())

	go r.run(ctx)

	return nil
}

// Stop signals the reaper to stop and waits for completion
func (r *StreamReaper) Stop() {
	logging.Default().Info("stream reaper stopping")
	close(r.stopCh)
	<-r.doneCh
	logging.Default().Info("stream reaper stopped")
}

func (r *StreamReaper) run(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				// Log error but continue worker
				logging.Default().Error("stream sweep failed (will retry next interval)",
					"error", err.Error())
			}

		case <-r.stopCh:
			logging.Default().Info("stream reaper received stop signal")
			return

		case <-ctx.Done():
			logging.Default().Info("stream reaper context cancelled")
			return
		}
	}
}

// Sweep performs a single pass: every stream not updated within the ceiling
// is finalized as errored, keeping whatever text it accumulated. Exported so
// tests and operators can trigger a pass directly.
func (r *StreamReaper) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-r.ceiling)

	stalled, err := r.repo.Stream().ListUnfinished(ctx, cutoff)
	if err != nil {
		return goerr.Wrap(err, "failed to list unfinished streams")
	}
	if len(stalled) == 0 {
		return nil
	}

	logging.Default().Info("reaping stalled streams", "count", len(stalled))

	var errs []error
	for _, s := range stalled {
		if err := r.reap(ctx, s); err != nil {
			logging.Default().Error("failed to reap stream",
				"stream_id", s.ID, "error", err.Error())
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (r *StreamReaper) reap(ctx context.Context, s *model.Stream) error {
	// Reap re-reads the stored text under the registry's lock; the text in s
	// is stale by now and a writer may have appended since the list.
	if err := r.repo.Stream().Reap(ctx, s.ID, r.fallbackText); err != nil {
		// the writer finalized between the list and the write; that is fine
		if errors.Is(err, interfaces.ErrStreamTerminal) {
			return nil
		}
		return goerr.Wrap(err, "failed to finalize stalled stream", goerr.V("stream_id", s.ID))
	}

	r.hub.Notify(s.ID)
	return nil
}
