package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/rivulet-lab/rivulet/pkg/domain/interfaces"
)

const (
	streamsCollection       = "streams"
	messagesCollection      = "messages"
	conversationsCollection = "conversations"
)

// Firestore is the production repository backend
type Firestore struct {
	client       *firestore.Client
	stream       *streamRepository
	message      *messageRepository
	conversation *conversationRepository
}

var _ interfaces.Repository = &Firestore{}

func New(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	var client *firestore.Client
	var err error
	if databaseID == "" {
		client, err = firestore.NewClient(ctx, projectID)
	} else {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project_id", projectID), goerr.V("database_id", databaseID))
	}

	return &Firestore{
		client:       client,
		stream:       newStreamRepository(client),
		message:      newMessageRepository(client),
		conversation: newConversationRepository(client),
	}, nil
}

func (f *Firestore) Stream() interfaces.StreamRepository {
	return f.stream
}

func (f *Firestore) Message() interfaces.MessageRepository {
	return f.message
}

func (f *Firestore) Conversation() interfaces.ConversationRepository {
	return f.conversation
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}
