package interfaces

import (
	"context"
	"time"

	"github.com/rivulet-lab/rivulet/pkg/domain/model"
	"github.com/rivulet-lab/rivulet/pkg/domain/types"
)

// Repository defines the interface for data persistence
type Repository interface {
	Stream() StreamRepository
	Message() MessageRepository
	Conversation() ConversationRepository

	Close() error
}

// StreamRepository is the registry of stream records. It is the single
// source of truth for stream text and status, and must serialize concurrent
// writes per stream ID. Reads observe a prefix-consistent view of the text.
type StreamRepository interface {
	// Create allocates a new pending record. It fails only when storage is
	// unavailable.
	Create(ctx context.Context) (*model.Stream, error)

	// Get returns a snapshot of the record.
	// Returns ErrStreamNotFound for unknown IDs.
	Get(ctx context.Context, id types.StreamID) (*model.Stream, error)

	// Claim atomically transitions a record from pending to streaming.
	// Returns ErrStreamClaimed when the record is already claimed or
	// terminal, so generation is triggered at most once per ID.
	Claim(ctx context.Context, id types.StreamID) error

	// Append adds a chunk to the record's text and bumps UpdatedAt.
	// Appending to a terminal record returns ErrStreamTerminal; it is
	// rejected, not silently ignored, so a misbehaving writer is observable.
	Append(ctx context.Context, id types.StreamID, chunk string) error

	// Finalize sets a terminal status and the final text. Finalizing an
	// already terminal record returns ErrStreamTerminal.
	Finalize(ctx context.Context, id types.StreamID, status types.StreamStatus, finalText string) error

	// ListUnfinished returns non-terminal records whose UpdatedAt is older
	// than the given time. Used to force-finalize stalled streams.
	ListUnfinished(ctx context.Context, updatedBefore time.Time) ([]*model.Stream, error)

	// Reap force-finalizes a record as errored, keeping the text currently
	// stored at the moment of the write so the record's text never shrinks
	// below what a reader has already observed. A record with no text gets
	// fallbackText instead. Reaping an already terminal record returns
	// ErrStreamTerminal.
	Reap(ctx context.Context, id types.StreamID, fallbackText string) error
}

// MessageRepository persists conversation messages
type MessageRepository interface {
	// Create saves a new message
	Create(ctx context.Context, msg *model.Message) (*model.Message, error)

	// Get returns a message by ID
	Get(ctx context.Context, convID types.ConversationID, id types.MessageID) (*model.Message, error)

	// List returns the messages of a conversation ordered by creation time
	List(ctx context.Context, convID types.ConversationID) ([]*model.Message, error)

	// GetByStreamID returns the message referencing the given stream.
	// Returns ErrMessageNotFound when no message references it.
	GetByStreamID(ctx context.Context, streamID types.StreamID) (*model.Message, error)

	// UpdateContent replaces the message content after its stream completes
	UpdateContent(ctx context.Context, convID types.ConversationID, id types.MessageID, content string) error
}

// ConversationRepository persists conversations
type ConversationRepository interface {
	Create(ctx context.Context, conv *model.Conversation) (*model.Conversation, error)
	Get(ctx context.Context, id types.ConversationID) (*model.Conversation, error)
	List(ctx context.Context) ([]*model.Conversation, error)
}
