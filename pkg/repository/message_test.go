package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/rivulet-lab/rivulet/pkg/domain/interfaces"
	"github.com/rivulet-lab/rivulet/pkg/domain/model"
	"github.com/rivulet-lab/rivulet/pkg/domain/types"
)

func runMessageRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()
	ctx := context.Background()

	t.Run("Create and List in creation order", func(t *testing.T) {
		repo := newRepo(t)
		convID := types.NewConversationID()

		now := time.Now().UTC().Truncate(time.Millisecond)
		first := model.NewMessage(convID, types.MessageRoleUser, "hello")
		first.CreatedAt = now.Add(-2 * time.Second)
		second := model.NewMessage(convID, types.MessageRoleAssistant, "hi there")
		second.CreatedAt = now.Add(-1 * time.Second)
		third := model.NewMessage(convID, types.MessageRoleUser, "tell me more")
		third.CreatedAt = now

		for _, m := range []*model.Message{third, first, second} {
			_, err := repo.Message().Create(ctx, m)
			gt.NoError(t, err).Required()
		}

		messages, err := repo.Message().List(ctx, convID)
		gt.NoError(t, err).Required()
		gt.Array(t, messages).Length(3)
		gt.Value(t, messages[0].Content).Equal("hello")
		gt.Value(t, messages[1].Content).Equal("hi there")
		gt.Value(t, messages[2].Content).Equal("tell me more")
	})

	t.Run("Get returns the stored message", func(t *testing.T) {
		repo := newRepo(t)
		convID := types.NewConversationID()

		msg := model.NewMessage(convID, types.MessageRoleUser, "ping")
		created, err := repo.Message().Create(ctx, msg)
		gt.NoError(t, err).Required()

		got, err := repo.Message().Get(ctx, convID, created.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Content).Equal("ping")
		gt.Value(t, got.Role).Equal(types.MessageRoleUser)
	})

	t.Run("Get unknown message returns not found", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.Message().Get(ctx, types.NewConversationID(), types.NewMessageID())
		gt.Error(t, err)
		gt.True(t, errors.Is(err, interfaces.ErrMessageNotFound))
	})

	t.Run("GetByStreamID finds the linked message", func(t *testing.T) {
		repo := newRepo(t)
		convID := types.NewConversationID()
		streamID := types.NewStreamID()

		msg := model.NewMessage(convID, types.MessageRoleAssistant, "")
		msg.StreamID = streamID
		created, err := repo.Message().Create(ctx, msg)
		gt.NoError(t, err).Required()

		got, err := repo.Message().GetByStreamID(ctx, streamID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.ID).Equal(created.ID)
	})

	t.Run("GetByStreamID with no linkage returns not found", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.Message().GetByStreamID(ctx, types.NewStreamID())
		gt.Error(t, err)
		gt.True(t, errors.Is(err, interfaces.ErrMessageNotFound))
	})

	t.Run("second message referencing the same stream is rejected", func(t *testing.T) {
		repo := newRepo(t)
		convID := types.NewConversationID()
		streamID := types.NewStreamID()

		first := model.NewMessage(convID, types.MessageRoleAssistant, "")
		first.StreamID = streamID
		_, err := repo.Message().Create(ctx, first)
		gt.NoError(t, err).Required()

		second := model.NewMessage(convID, types.MessageRoleAssistant, "")
		second.StreamID = streamID
		_, err = repo.Message().Create(ctx, second)
		gt.Error(t, err)
		gt.True(t, errors.Is(err, interfaces.ErrStreamLinked))
	})

	t.Run("UpdateContent reconciles final text", func(t *testing.T) {
		repo := newRepo(t)
		convID := types.NewConversationID()

		msg := model.NewMessage(convID, types.MessageRoleAssistant, "")
		msg.StreamID = types.NewStreamID()
		created, err := repo.Message().Create(ctx, msg)
		gt.NoError(t, err).Required()

		gt.NoError(t, repo.Message().UpdateContent(ctx, convID, created.ID, "final answer")).Required()

		got, err := repo.Message().Get(ctx, convID, created.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Content).Equal("final answer")
		gt.Value(t, got.StreamID).Equal(msg.StreamID)
	})

	t.Run("UpdateContent on unknown message returns not found", func(t *testing.T) {
		repo := newRepo(t)

		err := repo.Message().UpdateContent(ctx, types.NewConversationID(), types.NewMessageID(), "x")
		gt.Error(t, err)
		gt.True(t, errors.Is(err, interfaces.ErrMessageNotFound))
	})
}

func TestMessageRepository_Memory(t *testing.T) {
	runMessageRepositoryTest(t, newMemoryRepo)
}

func TestMessageRepository_Firestore(t *testing.T) {
	runMessageRepositoryTest(t, newFirestoreRepo)
}
