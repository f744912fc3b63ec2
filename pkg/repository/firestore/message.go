package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/rivulet-lab/rivulet/pkg/domain/interfaces"
	"github.com/rivulet-lab/rivulet/pkg/domain/model"
	"github.com/rivulet-lab/rivulet/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type messageRepository struct {
	client *firestore.Client
}

var _ interfaces.MessageRepository = &messageRepository{}

func newMessageRepository(client *firestore.Client) *messageRepository {
	return &messageRepository{client: client}
}

type messageDoc struct {
	ID             string    `firestore:"id"`
	ConversationID string    `firestore:"conversation_id"`
	Role           string    `firestore:"role"`
	Content        string    `firestore:"content"`
	StreamID       string    `firestore:"stream_id"`
	CreatedAt      time.Time `firestore:"created_at"`
}

func toMessageDoc(m *model.Message) *messageDoc {
	return &messageDoc{
		ID:             m.ID.String(),
		ConversationID: m.ConversationID.String(),
		Role:           m.Role.String(),
		Content:        m.Content,
		StreamID:       m.StreamID.String(),
		CreatedAt:      m.CreatedAt,
	}
}

func (d *messageDoc) toModel() *model.Message {
	return &model.Message{
		ID:             types.MessageID(d.ID),
		ConversationID: types.ConversationID(d.ConversationID),
		Role:           types.MessageRole(d.Role),
		Content:        d.Content,
		StreamID:       types.StreamID(d.StreamID),
		CreatedAt:      d.CreatedAt,
	}
}

func (r *messageRepository) docRef(id types.MessageID) *firestore.DocumentRef {
	return r.client.Collection(messagesCollection).Doc(id.String())
}

func (r *messageRepository) Create(ctx context.Context, msg *model.Message) (*model.Message, error) {
	if err := msg.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid message")
	}

	created := msg.Clone()
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		// The linkage check and the create must commit together, or two
		// concurrent creates could both pass the check.
		if created.StreamID != "" {
			query := r.client.Collection(messagesCollection).
				Where("stream_id", "==", created.StreamID.String()).
				Limit(1)
			iter := tx.Documents(query)
			defer iter.Stop()

			snap, err := iter.Next()
			if err != nil && err != iterator.Done {
				return goerr.Wrap(err, "failed to check stream linkage", goerr.V("stream_id", created.StreamID))
			}
			if err == nil {
				return goerr.Wrap(interfaces.ErrStreamLinked, "stream is already referenced",
					goerr.V("stream_id", created.StreamID),
					goerr.V("message_id", snap.Ref.ID))
			}
		}

		return tx.Create(r.docRef(created.ID), toMessageDoc(created))
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *messageRepository) Get(ctx context.Context, convID types.ConversationID, id types.MessageID) (*model.Message, error) {
	snap, err := r.docRef(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(interfaces.ErrMessageNotFound, "message not found", goerr.V("message_id", id))
		}
		return nil, goerr.Wrap(err, "failed to get message", goerr.V("message_id", id))
	}

	var doc messageDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal message", goerr.V("message_id", id))
	}
	if doc.ConversationID != convID.String() {
		return nil, goerr.Wrap(interfaces.ErrMessageNotFound, "message not in conversation",
			goerr.V("message_id", id), goerr.V("conversation_id", convID))
	}
	return doc.toModel(), nil
}

func (r *messageRepository) List(ctx context.Context, convID types.ConversationID) ([]*model.Message, error) {
	query := r.client.Collection(messagesCollection).
		Where("conversation_id", "==", convID.String()).
		OrderBy("created_at", firestore.Asc)

	iter := query.Documents(ctx)
	defer iter.Stop()

	result := []*model.Message{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate messages", goerr.V("conversation_id", convID))
		}

		var doc messageDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal message", goerr.V("doc_id", snap.Ref.ID))
		}
		result = append(result, doc.toModel())
	}
	return result, nil
}

func (r *messageRepository) GetByStreamID(ctx context.Context, streamID types.StreamID) (*model.Message, error) {
	// Ordered so concurrent misuse resolves deterministically to the
	// earliest created message.
	query := r.client.Collection(messagesCollection).
		Where("stream_id", "==", streamID.String()).
		OrderBy("created_at", firestore.Asc).
		Limit(1)

	iter := query.Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return nil, goerr.Wrap(interfaces.ErrMessageNotFound, "no message references stream",
			goerr.V("stream_id", streamID))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query message by stream", goerr.V("stream_id", streamID))
	}

	var doc messageDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal message", goerr.V("doc_id", snap.Ref.ID))
	}
	return doc.toModel(), nil
}

func (r *messageRepository) UpdateContent(ctx context.Context, convID types.ConversationID, id types.MessageID, content string) error {
	if _, err := r.Get(ctx, convID, id); err != nil {
		return err
	}

	if _, err := r.docRef(id).Update(ctx, []firestore.Update{
		{Path: "content", Value: content},
	}); err != nil {
		return goerr.Wrap(err, "failed to update message content", goerr.V("message_id", id))
	}
	return nil
}
