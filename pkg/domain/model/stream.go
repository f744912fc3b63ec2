package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/rivulet-lab/rivulet/pkg/domain/types"
)

// Stream is a durable record of incrementally generated text. The record is
// created before any producer activity, mutated only by the single writer
// owning its ID, and never deleted by this subsystem.
type Stream struct {
	ID        types.StreamID
	Text      string
	Status    types.StreamStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewStream allocates a pending stream record with a fresh ID
func NewStream() *Stream {
	now := time.Now().UTC()
	return &Stream{
		ID:        types.NewStreamID(),
		Status:    types.StreamStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks the stream record invariants
func (s *Stream) Validate() error {
	if err := s.ID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid stream")
	}
	if !s.Status.Normalize().IsValid() {
		return goerr.New("invalid stream status", goerr.V("status", s.Status))
	}
	return nil
}

// IsTerminal reports whether the stream has reached a terminal status
func (s *Stream) IsTerminal() bool {
	return s.Status.IsTerminal()
}

// Clone returns a deep copy of the stream record
func (s *Stream) Clone() *Stream {
	if s == nil {
		return nil
	}
	copied := *s
	return &copied
}
