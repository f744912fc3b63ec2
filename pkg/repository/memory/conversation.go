package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/rivulet-lab/rivulet/pkg/domain/interfaces"
	"github.com/rivulet-lab/rivulet/pkg/domain/model"
	"github.com/rivulet-lab/rivulet/pkg/domain/types"
)

type conversationRepository struct {
	mu            sync.RWMutex
	conversations map[types.ConversationID]*model.Conversation
}

var _ interfaces.ConversationRepository = &conversationRepository{}

func newConversationRepository() *conversationRepository {
	return &conversationRepository{
		conversations: make(map[types.ConversationID]*model.Conversation),
	}
}

func (r *conversationRepository) Create(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
	if err := conv.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid conversation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	created := conv.Clone()
	r.conversations[created.ID] = created
	return created.Clone(), nil
}

func (r *conversationRepository) Get(ctx context.Context, id types.ConversationID) (*model.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, exists := r.conversations[id]
	if !exists {
		return nil, goerr.Wrap(interfaces.ErrConversationNotFound, "conversation not found",
			goerr.V("conversation_id", id))
	}
	return conv.Clone(), nil
}

func (r *conversationRepository) List(ctx context.Context) ([]*model.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.Conversation, 0, len(r.conversations))
	for _, c := range r.conversations {
		result = append(result, c.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}
