package interfaces

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors shared by all repository backends. Use errors.Is to
// detect them through goerr wrapping.
var (
	ErrStreamNotFound = goerr.New("stream not found")

	// ErrStreamTerminal is returned when a write is attempted against a
	// record that already reached complete or errored status.
	ErrStreamTerminal = goerr.New("stream is already terminal")

	// ErrStreamClaimed is returned when a second producer attempts to claim
	// a stream that is already claimed or terminal.
	ErrStreamClaimed = goerr.New("stream is already claimed")

	// ErrStreamLinked is returned when a second message attempts to
	// reference a stream that is already referenced by another message.
	ErrStreamLinked = goerr.New("stream is already linked to a message")

	ErrMessageNotFound      = goerr.New("message not found")
	ErrConversationNotFound = goerr.New("conversation not found")
)
