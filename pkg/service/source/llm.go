package source

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
)

// LLM adapts a gollem model client into a chunk source. Deltas are emitted
// as the model produces them, with no artificial pacing.
type LLM struct {
	client       gollem.LLMClient
	systemPrompt string
}

var _ Source = &LLM{}

// LLMOption configures an LLM source
type LLMOption func(*LLM)

// WithSystemPrompt sets the system prompt for generation sessions
func WithSystemPrompt(prompt string) LLMOption {
	return func(l *LLM) {
		l.systemPrompt = prompt
	}
}

// NewLLM creates a source backed by the given model client
func NewLLM(client gollem.LLMClient, opts ...LLMOption) *LLM {
	l := &LLM{client: client}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *LLM) Generate(ctx context.Context, prompt string) (<-chan Chunk, error) {
	var sessionOpts []gollem.SessionOption
	if l.systemPrompt != "" {
		sessionOpts = append(sessionOpts, gollem.WithSessionSystemPrompt(l.systemPrompt))
	}

	session, err := l.client.NewSession(ctx, sessionOpts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create model session")
	}

	respCh, err := session.GenerateStream(ctx, gollem.Text(prompt))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to start model stream")
	}

	out := make(chan Chunk, 1)
	go func() {
		defer close(out)
		for {
			select {
			case resp, ok := <-respCh:
				if !ok {
					return
				}
				if resp == nil {
					continue
				}
				text := strings.Join(resp.Texts, "")
				if text == "" {
					continue
				}
				select {
				case out <- Chunk{Text: text}:
				case <-ctx.Done():
					sendNonBlocking(out, Chunk{Err: ctx.Err()})
					return
				}

			case <-ctx.Done():
				sendNonBlocking(out, Chunk{Err: ctx.Err()})
				return
			}
		}
	}()

	return out, nil
}
