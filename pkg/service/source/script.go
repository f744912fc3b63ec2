package source

import (
	"context"
	"time"
)

// Scripted replays a fixed text as a chunk sequence. It is the development
// and test source: deterministic output, optional pacing between chunks.
type Scripted struct {
	text        string
	granularity Granularity
	delay       time.Duration
}

var _ Source = &Scripted{}

// ScriptedOption configures a Scripted source
type ScriptedOption func(*Scripted)

// WithGranularity sets the chunk granularity (default: word)
func WithGranularity(g Granularity) ScriptedOption {
	return func(s *Scripted) {
		s.granularity = g
	}
}

// WithDelay sets an artificial pause between chunks. A production source
// emits chunks as they become available and never needs this.
func WithDelay(d time.Duration) ScriptedOption {
	return func(s *Scripted) {
		s.delay = d
	}
}

// NewScripted creates a source that emits the given text
func NewScripted(text string, opts ...ScriptedOption) *Scripted {
	s := &Scripted{
		text:        text,
		granularity: GranularityWord,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scripted) Generate(ctx context.Context, prompt string) (<-chan Chunk, error) {
	chunks := Split(s.text, s.granularity)
	out := make(chan Chunk, 1)

	go func() {
		defer close(out)
		for _, chunk := range chunks {
			if s.delay > 0 {
				select {
				case <-time.After(s.delay):
				case <-ctx.Done():
					sendNonBlocking(out, Chunk{Err: ctx.Err()})
					return
				}
			}

			select {
			case out <- Chunk{Text: chunk}:
			case <-ctx.Done():
				sendNonBlocking(out, Chunk{Err: ctx.Err()})
				return
			}
		}
	}()

	return out, nil
}

// sendNonBlocking delivers the terminal error chunk if a reader is waiting,
// and drops it otherwise so an abandoned channel never leaks the goroutine.
func sendNonBlocking(out chan Chunk, c Chunk) {
	select {
	case out <- c:
	default:
	}
}
