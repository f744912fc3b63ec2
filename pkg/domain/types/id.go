package types

import (
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// StreamID is the opaque identifier of a stream record.
// It is assigned exactly once, at record creation.
type StreamID string

// NewStreamID generates a new time-ordered stream ID
func NewStreamID() StreamID {
	return StreamID(uuid.Must(uuid.NewV7()).String())
}

// String returns the string representation of the stream ID
func (x StreamID) String() string {
	return string(x)
}

// Validate checks if the stream ID is a well-formed UUID
func (x StreamID) Validate() error {
	if x == "" {
		return goerr.New("stream ID is empty")
	}
	if _, err := uuid.Parse(string(x)); err != nil {
		return goerr.Wrap(err, "invalid stream ID", goerr.V("id", string(x)))
	}
	return nil
}

// MessageID is the identifier of a message
type MessageID string

// NewMessageID generates a new time-ordered message ID
func NewMessageID() MessageID {
	return MessageID(uuid.Must(uuid.NewV7()).String())
}

// String returns the string representation of the message ID
func (x MessageID) String() string {
	return string(x)
}

// Validate checks if the message ID is a well-formed UUID
func (x MessageID) Validate() error {
	if x == "" {
		return goerr.New("message ID is empty")
	}
	if _, err := uuid.Parse(string(x)); err != nil {
		return goerr.Wrap(err, "invalid message ID", goerr.V("id", string(x)))
	}
	return nil
}

// ConversationID is the identifier of a conversation
type ConversationID string

// NewConversationID generates a new time-ordered conversation ID
func NewConversationID() ConversationID {
	return ConversationID(uuid.Must(uuid.NewV7()).String())
}

// String returns the string representation of the conversation ID
func (x ConversationID) String() string {
	return string(x)
}

// Validate checks if the conversation ID is a well-formed UUID
func (x ConversationID) Validate() error {
	if x == "" {
		return goerr.New("conversation ID is empty")
	}
	if _, err := uuid.Parse(string(x)); err != nil {
		return goerr.Wrap(err, "invalid conversation ID", goerr.V("id", string(x)))
	}
	return nil
}
