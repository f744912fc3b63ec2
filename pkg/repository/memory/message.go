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

type messageRef struct {
	convID types.ConversationID
	msgID  types.MessageID
}

type messageRepository struct {
	mu       sync.RWMutex
	messages map[types.ConversationID]map[types.MessageID]*model.Message

	// byStream enforces the at-most-one-message-per-stream invariant
	byStream map[types.StreamID]messageRef
}

var _ interfaces.MessageRepository = &messageRepository{}

func newMessageRepository() *messageRepository {
	return &messageRepository{
		messages: make(map[types.ConversationID]map[types.MessageID]*model.Message),
		byStream: make(map[types.StreamID]messageRef),
	}
}

func (r *messageRepository) Create(ctx context.Context, msg *model.Message) (*model.Message, error) {
	if err := msg.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid message")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.StreamID != "" {
		if ref, exists := r.byStream[msg.StreamID]; exists {
			return nil, goerr.Wrap(interfaces.ErrStreamLinked, "stream is already referenced",
				goerr.V("stream_id", msg.StreamID),
				goerr.V("message_id", ref.msgID))
		}
	}

	if _, exists := r.messages[msg.ConversationID]; !exists {
		r.messages[msg.ConversationID] = make(map[types.MessageID]*model.Message)
	}

	created := msg.Clone()
	r.messages[msg.ConversationID][created.ID] = created
	if created.StreamID != "" {
		r.byStream[created.StreamID] = messageRef{convID: created.ConversationID, msgID: created.ID}
	}
	return created.Clone(), nil
}

func (r *messageRepository) Get(ctx context.Context, convID types.ConversationID, id types.MessageID) (*model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket, exists := r.messages[convID]
	if !exists {
		return nil, goerr.Wrap(interfaces.ErrMessageNotFound, "message not found", goerr.V("message_id", id))
	}
	msg, exists := bucket[id]
	if !exists {
		return nil, goerr.Wrap(interfaces.ErrMessageNotFound, "message not found", goerr.V("message_id", id))
	}
	return msg.Clone(), nil
}

func (r *messageRepository) List(ctx context.Context, convID types.ConversationID) ([]*model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket, exists := r.messages[convID]
	if !exists {
		return []*model.Message{}, nil
	}

	result := make([]*model.Message, 0, len(bucket))
	for _, m := range bucket {
		result = append(result, m.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

func (r *messageRepository) GetByStreamID(ctx context.Context, streamID types.StreamID) (*model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ref, exists := r.byStream[streamID]
	if !exists {
		return nil, goerr.Wrap(interfaces.ErrMessageNotFound, "no message references stream",
			goerr.V("stream_id", streamID))
	}
	return r.messages[ref.convID][ref.msgID].Clone(), nil
}

func (r *messageRepository) UpdateContent(ctx context.Context, convID types.ConversationID, id types.MessageID, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, exists := r.messages[convID]
	if !exists {
		return goerr.Wrap(interfaces.ErrMessageNotFound, "message not found", goerr.V("message_id", id))
	}
	msg, exists := bucket[id]
	if !exists {
		return goerr.Wrap(interfaces.ErrMessageNotFound, "message not found", goerr.V("message_id", id))
	}

	msg.Content = content
	return nil
}
