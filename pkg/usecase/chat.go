package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/rivulet-lab/rivulet/pkg/domain/interfaces"
	"github.com/rivulet-lab/rivulet/pkg/domain/model"
	"github.com/rivulet-lab/rivulet/pkg/domain/types"
)

type ChatUseCase struct {
	repo interfaces.Repository
}

func NewChatUseCase(repo interfaces.Repository) *ChatUseCase {
	return &ChatUseCase{
		repo: repo,
	}
}

func (uc *ChatUseCase) CreateConversation(ctx context.Context, title string) (*model.Conversation, error) {
	if title == "" {
		return nil, goerr.New("conversation title is required")
	}

	conv := model.NewConversation(title)
	created, err := uc.repo.Conversation().Create(ctx, conv)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create conversation")
	}

	return created, nil
}

func (uc *ChatUseCase) GetConversation(ctx context.Context, id types.ConversationID) (*model.Conversation, error) {
	conv, err := uc.repo.Conversation().Get(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get conversation", goerr.V("id", id))
	}
	return conv, nil
}

func (uc *ChatUseCase) ListConversations(ctx context.Context) ([]*model.Conversation, error) {
	convs, err := uc.repo.Conversation().List(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list conversations")
	}
	return convs, nil
}

func (uc *ChatUseCase) ListMessages(ctx context.Context, convID types.ConversationID) ([]*model.Message, error) {
	if _, err := uc.repo.Conversation().Get(ctx, convID); err != nil {
		return nil, goerr.Wrap(err, "failed to get conversation", goerr.V("id", convID))
	}

	msgs, err := uc.repo.Message().List(ctx, convID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list messages", goerr.V("conversation_id", convID))
	}
	return msgs, nil
}

// PostMessage records the user's message and an assistant placeholder backed
// by a fresh pending stream. The assistant message is returned so callers can
// subscribe to its StreamID; generation itself starts lazily when the first
// consumer connects.
func (uc *ChatUseCase) PostMessage(ctx context.Context, convID types.ConversationID, content string) (*model.Message, error) {
	if content == "" {
		return nil, goerr.New("message content is required")
	}

	if _, err := uc.repo.Conversation().Get(ctx, convID); err != nil {
		return nil, goerr.Wrap(err, "failed to get conversation", goerr.V("id", convID))
	}

	userMsg := model.NewMessage(convID, types.MessageRoleUser, content)
	if _, err := uc.repo.Message().Create(ctx, userMsg); err != nil {
		return nil, goerr.Wrap(err, "failed to create user message")
	}

	created, err := uc.repo.Stream().Create(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create stream record")
	}

	assistantMsg := model.NewMessage(convID, types.MessageRoleAssistant, "")
	assistantMsg.StreamID = created.ID
	saved, err := uc.repo.Message().Create(ctx, assistantMsg)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create assistant message",
			goerr.V("stream_id", created.ID))
	}

	return saved, nil
}
