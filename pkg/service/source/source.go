package source

import "context"

// Chunk is a single text delta emitted by a generation source. A chunk with
// a non-nil Err is terminal; the channel is closed right after it.
type Chunk struct {
	Text string
	Err  error
}

// Source produces a lazy, finite, non-restartable sequence of text deltas.
// The returned channel is closed when generation ends, whether normally or
// after an error chunk. Cancelling the context stops emission.
type Source interface {
	Generate(ctx context.Context, prompt string) (<-chan Chunk, error)
}
