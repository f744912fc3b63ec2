package usecase

import (
	"github.com/rivulet-lab/rivulet/pkg/domain/interfaces"
	"github.com/rivulet-lab/rivulet/pkg/service/source"
	"github.com/rivulet-lab/rivulet/pkg/service/stream"
)

type UseCases struct {
	repo   interfaces.Repository
	hub    *stream.Hub
	source source.Source
	writer *stream.Writer

	Chat   *ChatUseCase
	Stream *StreamUseCase
}

type Option func(*UseCases)

// WithWriter overrides the stream writer, mainly for tests
func WithWriter(w *stream.Writer) Option {
	return func(uc *UseCases) {
		uc.writer = w
	}
}

func New(repo interfaces.Repository, hub *stream.Hub, src source.Source, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:   repo,
		hub:    hub,
		source: src,
	}

	for _, opt := range opts {
		opt(uc)
	}

	if uc.writer == nil {
		uc.writer = stream.NewWriter(repo, hub)
	}

	uc.Chat = NewChatUseCase(repo)
	uc.Stream = NewStreamUseCase(repo, uc.hub, uc.source, uc.writer)

	return uc
}
