package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/rivulet-lab/rivulet/pkg/domain/interfaces"
	"github.com/rivulet-lab/rivulet/pkg/domain/model"
	"github.com/rivulet-lab/rivulet/pkg/domain/types"
	"github.com/rivulet-lab/rivulet/pkg/service/source"
	"github.com/rivulet-lab/rivulet/pkg/service/stream"
	"github.com/rivulet-lab/rivulet/pkg/utils/async"
	"github.com/rivulet-lab/rivulet/pkg/utils/errutil"
	"github.com/rivulet-lab/rivulet/pkg/utils/logging"
)

type StreamUseCase struct {
	repo   interfaces.Repository
	hub    *stream.Hub
	source source.Source
	writer *stream.Writer
}

func NewStreamUseCase(repo interfaces.Repository, hub *stream.Hub, src source.Source, writer *stream.Writer) *StreamUseCase {
	return &StreamUseCase{
		repo:   repo,
		hub:    hub,
		source: src,
		writer: writer,
	}
}

// Read returns the current registry snapshot of the stream
func (uc *StreamUseCase) Read(ctx context.Context, id types.StreamID) (*model.Stream, error) {
	s, err := uc.repo.Stream().Get(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read stream", goerr.V("stream_id", id))
	}
	return s, nil
}

// Subscribe registers a wakeup channel for the stream so callers can wait
// for registry changes instead of polling
func (uc *StreamUseCase) Subscribe(id types.StreamID) (<-chan struct{}, func()) {
	return uc.hub.Subscribe(id)
}

// StartGeneration claims the stream and, when this caller wins the claim,
// launches the writer in the background. The claim is atomic in the
// registry, so concurrent callers for the same ID trigger generation at most
// once: losers get (false, nil) and simply observe the stream.
func (uc *StreamUseCase) StartGeneration(ctx context.Context, id types.StreamID) (bool, error) {
	if err := uc.repo.Stream().Claim(ctx, id); err != nil {
		if errors.Is(err, interfaces.ErrStreamClaimed) {
			return false, nil
		}
		return false, goerr.Wrap(err, "failed to claim stream", goerr.V("stream_id", id))
	}

	prompt, err := uc.buildPrompt(ctx, id)
	if err != nil {
		// the claim already happened; finalize so the stream does not stall
		if ferr := uc.repo.Stream().Finalize(ctx, id, types.StreamStatusErrored, stream.DefaultFallbackText); ferr != nil && !errors.Is(ferr, interfaces.ErrStreamTerminal) {
			errutil.Handle(ctx, ferr, "failed to finalize stream after prompt error")
		}
		uc.hub.Notify(id)
		return false, goerr.Wrap(err, "failed to build prompt", goerr.V("stream_id", id))
	}

	logging.From(ctx).Info("starting stream generation", "stream_id", id)

	async.Dispatch(ctx, func(ctx context.Context) error {
		runErr := uc.writer.Run(ctx, id, uc.source, prompt)
		// the writer finalized the record either way; copy whatever text it
		// settled on back to the message
		if err := uc.reconcileMessage(ctx, id); err != nil {
			return errors.Join(runErr, err)
		}
		if runErr != nil {
			return goerr.Wrap(runErr, "stream generation failed", goerr.V("stream_id", id))
		}
		return nil
	})

	return true, nil
}

// buildPrompt assembles the generation prompt from the conversation history
// preceding the assistant placeholder that references the stream
func (uc *StreamUseCase) buildPrompt(ctx context.Context, id types.StreamID) (string, error) {
	placeholder, err := uc.repo.Message().GetByStreamID(ctx, id)
	if err != nil {
		return "", goerr.Wrap(err, "failed to resolve stream message")
	}

	msgs, err := uc.repo.Message().List(ctx, placeholder.ConversationID)
	if err != nil {
		return "", goerr.Wrap(err, "failed to list conversation messages")
	}

	var b strings.Builder
	for _, msg := range msgs {
		if msg.ID == placeholder.ID {
			break
		}
		if msg.Content == "" {
			continue
		}
		b.WriteString(string(msg.Role))
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}

	return b.String(), nil
}

// reconcileMessage copies the finalized stream text back onto the assistant
// message, so conversation history reads do not depend on the stream record
func (uc *StreamUseCase) reconcileMessage(ctx context.Context, id types.StreamID) error {
	s, err := uc.repo.Stream().Get(ctx, id)
	if err != nil {
		return goerr.Wrap(err, "failed to read finalized stream", goerr.V("stream_id", id))
	}

	msg, err := uc.repo.Message().GetByStreamID(ctx, id)
	if err != nil {
		return goerr.Wrap(err, "failed to resolve stream message", goerr.V("stream_id", id))
	}

	if err := uc.repo.Message().UpdateContent(ctx, msg.ConversationID, msg.ID, s.Text); err != nil {
		return goerr.Wrap(err, "failed to update message content",
			goerr.V("message_id", msg.ID), goerr.V("stream_id", id))
	}

	return nil
}
