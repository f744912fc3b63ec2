package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/rivulet-lab/rivulet/pkg/domain/types"
)

// Conversation is an ordered collection of messages
type Conversation struct {
	ID        types.ConversationID
	Title     string
	CreatedAt time.Time
}

// NewConversation creates a conversation with a fresh ID
func NewConversation(title string) *Conversation {
	return &Conversation{
		ID:        types.NewConversationID(),
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
}

// Validate checks the conversation invariants
func (c *Conversation) Validate() error {
	if err := c.ID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid conversation")
	}
	return nil
}

// Clone returns a deep copy of the conversation
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	copied := *c
	return &copied
}
