package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/rivulet-lab/rivulet/pkg/domain/types"
)

// Message belongs to a conversation. An assistant message may reference a
// stream record while its content is being generated; once the stream
// completes, Content holds the final text and the stream linkage is
// informational only.
type Message struct {
	ID             types.MessageID
	ConversationID types.ConversationID
	Role           types.MessageRole
	Content        string
	StreamID       types.StreamID
	CreatedAt      time.Time
}

// NewMessage creates a message with a fresh ID
func NewMessage(convID types.ConversationID, role types.MessageRole, content string) *Message {
	return &Message{
		ID:             types.NewMessageID(),
		ConversationID: convID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
}

// Validate checks the message invariants
func (m *Message) Validate() error {
	if err := m.ID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid message")
	}
	if err := m.ConversationID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid message", goerr.V("message_id", m.ID))
	}
	if !m.Role.IsValid() {
		return goerr.New("invalid message role", goerr.V("message_id", m.ID), goerr.V("role", m.Role))
	}
	if m.StreamID != "" {
		if err := m.StreamID.Validate(); err != nil {
			return goerr.Wrap(err, "invalid message stream linkage", goerr.V("message_id", m.ID))
		}
	}
	return nil
}

// Clone returns a deep copy of the message
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	copied := *m
	return &copied
}
