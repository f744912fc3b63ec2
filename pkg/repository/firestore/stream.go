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

type streamRepository struct {
	client *firestore.Client
}

var _ interfaces.StreamRepository = &streamRepository{}

func newStreamRepository(client *firestore.Client) *streamRepository {
	return &streamRepository{client: client}
}

type streamDoc struct {
	ID        string    `firestore:"id"`
	Text      string    `firestore:"text"`
	Status    string    `firestore:"status"`
	CreatedAt time.Time `firestore:"created_at"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

func toStreamDoc(s *model.Stream) *streamDoc {
	return &streamDoc{
		ID:        s.ID.String(),
		Text:      s.Text,
		Status:    s.Status.String(),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func (d *streamDoc) toModel() *model.Stream {
	return &model.Stream{
		ID:        types.StreamID(d.ID),
		Text:      d.Text,
		Status:    types.StreamStatus(d.Status).Normalize(),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func (r *streamRepository) docRef(id types.StreamID) *firestore.DocumentRef {
	return r.client.Collection(streamsCollection).Doc(id.String())
}

func (r *streamRepository) Create(ctx context.Context) (*model.Stream, error) {
	created := model.NewStream()
	if _, err := r.docRef(created.ID).Create(ctx, toStreamDoc(created)); err != nil {
		return nil, goerr.Wrap(err, "failed to create stream record", goerr.V("stream_id", created.ID))
	}
	return created, nil
}

func (r *streamRepository) Get(ctx context.Context, id types.StreamID) (*model.Stream, error) {
	snap, err := r.docRef(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(interfaces.ErrStreamNotFound, "stream not found", goerr.V("stream_id", id))
		}
		return nil, goerr.Wrap(err, "failed to get stream record", goerr.V("stream_id", id))
	}

	var doc streamDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal stream record", goerr.V("stream_id", id))
	}
	return doc.toModel(), nil
}

func (r *streamRepository) Claim(ctx context.Context, id types.StreamID) error {
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(r.docRef(id))
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(interfaces.ErrStreamNotFound, "stream not found", goerr.V("stream_id", id))
			}
			return goerr.Wrap(err, "failed to get stream record", goerr.V("stream_id", id))
		}

		var doc streamDoc
		if err := snap.DataTo(&doc); err != nil {
			return goerr.Wrap(err, "failed to unmarshal stream record", goerr.V("stream_id", id))
		}

		if types.StreamStatus(doc.Status).Normalize() != types.StreamStatusPending {
			return goerr.Wrap(interfaces.ErrStreamClaimed, "stream is not claimable",
				goerr.V("stream_id", id), goerr.V("status", doc.Status))
		}

		return tx.Update(r.docRef(id), []firestore.Update{
			{Path: "status", Value: types.StreamStatusStreaming.String()},
			{Path: "updated_at", Value: time.Now().UTC()},
		})
	})
	if err != nil {
		return err
	}
	return nil
}

func (r *streamRepository) Append(ctx context.Context, id types.StreamID, chunk string) error {
	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(r.docRef(id))
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(interfaces.ErrStreamNotFound, "stream not found", goerr.V("stream_id", id))
			}
			return goerr.Wrap(err, "failed to get stream record", goerr.V("stream_id", id))
		}

		var doc streamDoc
		if err := snap.DataTo(&doc); err != nil {
			return goerr.Wrap(err, "failed to unmarshal stream record", goerr.V("stream_id", id))
		}

		if types.StreamStatus(doc.Status).IsTerminal() {
			return goerr.Wrap(interfaces.ErrStreamTerminal, "cannot append to terminal stream",
				goerr.V("stream_id", id), goerr.V("status", doc.Status))
		}

		return tx.Update(r.docRef(id), []firestore.Update{
			{Path: "text", Value: doc.Text + chunk},
			{Path: "updated_at", Value: time.Now().UTC()},
		})
	})
}

func (r *streamRepository) Finalize(ctx context.Context, id types.StreamID, terminal types.StreamStatus, finalText string) error {
	if !terminal.IsTerminal() {
		return goerr.New("finalize requires a terminal status",
			goerr.V("stream_id", id), goerr.V("status", terminal))
	}

	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(r.docRef(id))
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(interfaces.ErrStreamNotFound, "stream not found", goerr.V("stream_id", id))
			}
			return goerr.Wrap(err, "failed to get stream record", goerr.V("stream_id", id))
		}

		var doc streamDoc
		if err := snap.DataTo(&doc); err != nil {
			return goerr.Wrap(err, "failed to unmarshal stream record", goerr.V("stream_id", id))
		}

		if types.StreamStatus(doc.Status).IsTerminal() {
			return goerr.Wrap(interfaces.ErrStreamTerminal, "stream is already finalized",
				goerr.V("stream_id", id), goerr.V("status", doc.Status))
		}

		return tx.Update(r.docRef(id), []firestore.Update{
			{Path: "status", Value: terminal.String()},
			{Path: "text", Value: finalText},
			{Path: "updated_at", Value: time.Now().UTC()},
		})
	})
}

func (r *streamRepository) Reap(ctx context.Context, id types.StreamID, fallbackText string) error {
	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(r.docRef(id))
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(interfaces.ErrStreamNotFound, "stream not found", goerr.V("stream_id", id))
			}
			return goerr.Wrap(err, "failed to get stream record", goerr.V("stream_id", id))
		}

		var doc streamDoc
		if err := snap.DataTo(&doc); err != nil {
			return goerr.Wrap(err, "failed to unmarshal stream record", goerr.V("stream_id", id))
		}

		if types.StreamStatus(doc.Status).IsTerminal() {
			return goerr.Wrap(interfaces.ErrStreamTerminal, "stream is already finalized",
				goerr.V("stream_id", id), goerr.V("status", doc.Status))
		}

		// Keep the text read inside this transaction, not the caller's stale
		// snapshot, so concurrent appends are never lost.
		text := doc.Text
		if text == "" {
			text = fallbackText
		}

		return tx.Update(r.docRef(id), []firestore.Update{
			{Path: "status", Value: types.StreamStatusErrored.String()},
			{Path: "text", Value: text},
			{Path: "updated_at", Value: time.Now().UTC()},
		})
	})
}

func (r *streamRepository) ListUnfinished(ctx context.Context, updatedBefore time.Time) ([]*model.Stream, error) {
	query := r.client.Collection(streamsCollection).
		Where("status", "in", []string{
			types.StreamStatusPending.String(),
			types.StreamStatusStreaming.String(),
		}).
		Where("updated_at", "<", updatedBefore)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var result []*model.Stream
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate unfinished streams")
		}

		var doc streamDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal stream record", goerr.V("doc_id", snap.Ref.ID))
		}
		result = append(result, doc.toModel())
	}
	return result, nil
}
