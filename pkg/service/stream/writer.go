package stream

import (
	"context"
	"errors"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/rivulet-lab/rivulet/pkg/domain/interfaces"
	"github.com/rivulet-lab/rivulet/pkg/domain/types"
	"github.com/rivulet-lab/rivulet/pkg/service/source"
	"github.com/rivulet-lab/rivulet/pkg/utils/errutil"
	"github.com/rivulet-lab/rivulet/pkg/utils/logging"
)

// DefaultFallbackText is appended when generation fails before producing
// any output, so consumers never render an empty errored stream.
const DefaultFallbackText = "An error occurred while generating the response. Please try again."

// Writer drives generation for a single claimed stream. It appends each
// chunk to the registry, notifies the hub, and always reaches exactly one
// terminal Finalize: a stream is never left in streaming status, whatever
// the generation source does.
type Writer struct {
	repo         interfaces.Repository
	hub          *Hub
	fallbackText string
}

// WriterOption configures a Writer
type WriterOption func(*Writer)

// WithFallbackText overrides the text used when generation fails without
// producing output
func WithFallbackText(text string) WriterOption {
	return func(w *Writer) {
		w.fallbackText = text
	}
}

// NewWriter creates a Writer bound to the repository and hub
func NewWriter(repo interfaces.Repository, hub *Hub, opts ...WriterOption) *Writer {
	w := &Writer{
		repo:         repo,
		hub:          hub,
		fallbackText: DefaultFallbackText,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run consumes the source and writes the stream to completion. The caller
// must have claimed the stream ID (registry Claim) before invoking Run, and
// must not invoke Run twice for the same ID.
func (w *Writer) Run(ctx context.Context, id types.StreamID, src source.Source, prompt string) (err error) {
	var accumulated strings.Builder
	finalized := false

	finalize := func(status types.StreamStatus, text string) {
		if finalized {
			return
		}
		finalized = true
		if ferr := w.repo.Stream().Finalize(ctx, id, status, text); ferr != nil {
			// already force-finalized (e.g. by the reaper); nothing to repair
			if !errors.Is(ferr, interfaces.ErrStreamTerminal) {
				errutil.Handle(ctx, ferr, "failed to finalize stream")
			}
		}
		w.hub.Notify(id)
	}

	defer func() {
		if r := recover(); r != nil {
			logging.From(ctx).Error("panic during stream generation", "stream_id", id, "panic", r)
			finalize(types.StreamStatusErrored, w.erroredText(accumulated.String()))
			err = goerr.New("stream generation panicked", goerr.V("stream_id", id), goerr.V("panic", r))
		}
	}()

	chunks, err := src.Generate(ctx, prompt)
	if err != nil {
		finalize(types.StreamStatusErrored, w.erroredText(accumulated.String()))
		return goerr.Wrap(err, "failed to start generation", goerr.V("stream_id", id))
	}

	for chunk := range chunks {
		if chunk.Err != nil {
			logging.From(ctx).Warn("generation source failed",
				"stream_id", id, "error", chunk.Err.Error())
			finalize(types.StreamStatusErrored, w.erroredText(accumulated.String()))
			return goerr.Wrap(chunk.Err, "generation failed", goerr.V("stream_id", id))
		}
		if chunk.Text == "" {
			continue
		}

		if aerr := w.repo.Stream().Append(ctx, id, chunk.Text); aerr != nil {
			if errors.Is(aerr, interfaces.ErrStreamTerminal) {
				// force-finalized underneath us; discard the rest of the sequence
				logging.From(ctx).Warn("stream finalized during generation, discarding remainder",
					"stream_id", id)
				finalized = true
				return nil
			}
			finalize(types.StreamStatusErrored, w.erroredText(accumulated.String()))
			return goerr.Wrap(aerr, "failed to append chunk", goerr.V("stream_id", id))
		}

		accumulated.WriteString(chunk.Text)
		w.hub.Notify(id)
	}

	finalize(types.StreamStatusComplete, accumulated.String())
	return nil
}

func (w *Writer) erroredText(partial string) string {
	if partial == "" {
		return w.fallbackText
	}
	return partial
}
