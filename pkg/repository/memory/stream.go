package memory

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/rivulet-lab/rivulet/pkg/domain/interfaces"
	"github.com/rivulet-lab/rivulet/pkg/domain/model"
	"github.com/rivulet-lab/rivulet/pkg/domain/types"
)

type streamRepository struct {
	mu      sync.RWMutex
	streams map[types.StreamID]*model.Stream
}

var _ interfaces.StreamRepository = &streamRepository{}

func newStreamRepository() *streamRepository {
	return &streamRepository{
		streams: make(map[types.StreamID]*model.Stream),
	}
}

func (r *streamRepository) Create(ctx context.Context) (*model.Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := model.NewStream()
	r.streams[created.ID] = created
	return created.Clone(), nil
}

func (r *streamRepository) Get(ctx context.Context, id types.StreamID) (*model.Stream, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.streams[id]
	if !exists {
		return nil, goerr.Wrap(interfaces.ErrStreamNotFound, "stream not found", goerr.V("stream_id", id))
	}
	return s.Clone(), nil
}

func (r *streamRepository) Claim(ctx context.Context, id types.StreamID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.streams[id]
	if !exists {
		return goerr.Wrap(interfaces.ErrStreamNotFound, "stream not found", goerr.V("stream_id", id))
	}
	if s.Status.Normalize() != types.StreamStatusPending {
		return goerr.Wrap(interfaces.ErrStreamClaimed, "stream is not claimable",
			goerr.V("stream_id", id), goerr.V("status", s.Status))
	}

	s.Status = types.StreamStatusStreaming
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *streamRepository) Append(ctx context.Context, id types.StreamID, chunk string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.streams[id]
	if !exists {
		return goerr.Wrap(interfaces.ErrStreamNotFound, "stream not found", goerr.V("stream_id", id))
	}
	if s.IsTerminal() {
		return goerr.Wrap(interfaces.ErrStreamTerminal, "cannot append to terminal stream",
			goerr.V("stream_id", id), goerr.V("status", s.Status))
	}

	s.Text += chunk
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *streamRepository) Finalize(ctx context.Context, id types.StreamID, status types.StreamStatus, finalText string) error {
	if !status.IsTerminal() {
		return goerr.New("finalize requires a terminal status",
			goerr.V("stream_id", id), goerr.V("status", status))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.streams[id]
	if !exists {
		return goerr.Wrap(interfaces.ErrStreamNotFound, "stream not found", goerr.V("stream_id", id))
	}
	if s.IsTerminal() {
		return goerr.Wrap(interfaces.ErrStreamTerminal, "stream is already finalized",
			goerr.V("stream_id", id), goerr.V("status", s.Status))
	}

	s.Status = status
	s.Text = finalText
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *streamRepository) Reap(ctx context.Context, id types.StreamID, fallbackText string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.streams[id]
	if !exists {
		return goerr.Wrap(interfaces.ErrStreamNotFound, "stream not found", goerr.V("stream_id", id))
	}
	if s.IsTerminal() {
		return goerr.Wrap(interfaces.ErrStreamTerminal, "stream is already finalized",
			goerr.V("stream_id", id), goerr.V("status", s.Status))
	}

	if s.Text == "" {
		s.Text = fallbackText
	}
	s.Status = types.StreamStatusErrored
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *streamRepository) ListUnfinished(ctx context.Context, updatedBefore time.Time) ([]*model.Stream, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []*model.Stream{}
	for _, s := range r.streams {
		if s.IsTerminal() {
			continue
		}
		if s.UpdatedAt.Before(updatedBefore) {
			result = append(result, s.Clone())
		}
	}
	return result, nil
}
