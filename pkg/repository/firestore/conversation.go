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

type conversationRepository struct {
	client *firestore.Client
}

var _ interfaces.ConversationRepository = &conversationRepository{}

func newConversationRepository(client *firestore.Client) *conversationRepository {
	return &conversationRepository{client: client}
}

type conversationDoc struct {
	ID        string    `firestore:"id"`
	Title     string    `firestore:"title"`
	CreatedAt time.Time `firestore:"created_at"`
}

func (r *conversationRepository) docRef(id types.ConversationID) *firestore.DocumentRef {
	return r.client.Collection(conversationsCollection).Doc(id.String())
}

func (r *conversationRepository) Create(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
	if err := conv.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid conversation")
	}

	created := conv.Clone()
	doc := &conversationDoc{
		ID:        created.ID.String(),
		Title:     created.Title,
		CreatedAt: created.CreatedAt,
	}
	if _, err := r.docRef(created.ID).Create(ctx, doc); err != nil {
		return nil, goerr.Wrap(err, "failed to create conversation", goerr.V("conversation_id", created.ID))
	}
	return created, nil
}

func (r *conversationRepository) Get(ctx context.Context, id types.ConversationID) (*model.Conversation, error) {
	snap, err := r.docRef(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(interfaces.ErrConversationNotFound, "conversation not found",
				goerr.V("conversation_id", id))
		}
		return nil, goerr.Wrap(err, "failed to get conversation", goerr.V("conversation_id", id))
	}

	var doc conversationDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal conversation", goerr.V("conversation_id", id))
	}
	return &model.Conversation{
		ID:        types.ConversationID(doc.ID),
		Title:     doc.Title,
		CreatedAt: doc.CreatedAt,
	}, nil
}

func (r *conversationRepository) List(ctx context.Context) ([]*model.Conversation, error) {
	query := r.client.Collection(conversationsCollection).
		OrderBy("created_at", firestore.Desc)

	iter := query.Documents(ctx)
	defer iter.Stop()

	result := []*model.Conversation{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate conversations")
		}

		var doc conversationDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal conversation", goerr.V("doc_id", snap.Ref.ID))
		}
		result = append(result, &model.Conversation{
			ID:        types.ConversationID(doc.ID),
			Title:     doc.Title,
			CreatedAt: doc.CreatedAt,
		})
	}
	return result, nil
}
