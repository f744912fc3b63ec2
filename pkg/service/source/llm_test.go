package source_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
	"github.com/rivulet-lab/rivulet/pkg/service/source"
)

type mockLLMSession struct {
	generateStreamFn func(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error)
}

func (s *mockLLMSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	return nil, nil
}

func (s *mockLLMSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	if s.generateStreamFn != nil {
		return s.generateStreamFn(ctx, input...)
	}
	return nil, nil
}

func (s *mockLLMSession) Generate(ctx context.Context, input []gollem.Input, options ...gollem.GenerateOption) (*gollem.Response, error) {
	return nil, nil
}

func (s *mockLLMSession) Stream(ctx context.Context, input []gollem.Input, options ...gollem.GenerateOption) (<-chan *gollem.Response, error) {
	if s.generateStreamFn != nil {
		return s.generateStreamFn(ctx, input...)
	}
	return nil, nil
}

func (s *mockLLMSession) History() (*gollem.History, error) {
	return nil, nil
}

func (s *mockLLMSession) AppendHistory(*gollem.History) error {
	return nil
}

func (s *mockLLMSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

type mockLLMClient struct {
	newSessionFn func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error)
}

func (c *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	if c.newSessionFn != nil {
		return c.newSessionFn(ctx, options...)
	}
	return &mockLLMSession{}, nil
}

func (c *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	return nil, nil
}

func streamOf(responses ...*gollem.Response) <-chan *gollem.Response {
	out := make(chan *gollem.Response, len(responses))
	for _, r := range responses {
		out <- r
	}
	close(out)
	return out
}

func TestLLMSource(t *testing.T) {
	ctx := context.Background()

	t.Run("forwards streamed texts as chunks", func(t *testing.T) {
		client := &mockLLMClient{
			newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
				return &mockLLMSession{
					generateStreamFn: func(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
						return streamOf(
							&gollem.Response{Texts: []string{"Hello, "}},
							&gollem.Response{Texts: []string{"wor", "ld"}},
						), nil
					},
				}, nil
			},
		}

		src := source.NewLLM(client)
		chunks, err := src.Generate(ctx, "greet me")
		gt.NoError(t, err).Required()

		var text string
		for chunk := range chunks {
			gt.NoError(t, chunk.Err).Required()
			text += chunk.Text
		}
		gt.Value(t, text).Equal("Hello, world")
	})

	t.Run("session creation failure is returned directly", func(t *testing.T) {
		client := &mockLLMClient{
			newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
				return nil, context.DeadlineExceeded
			},
		}

		src := source.NewLLM(client)
		_, err := src.Generate(ctx, "hi")
		gt.Error(t, err)
	})
}
