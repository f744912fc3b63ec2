package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/rivulet-lab/rivulet/pkg/domain/interfaces"
	"github.com/rivulet-lab/rivulet/pkg/domain/model"
	"github.com/rivulet-lab/rivulet/pkg/domain/types"
	"github.com/rivulet-lab/rivulet/pkg/utils/errutil"
	"github.com/rivulet-lab/rivulet/pkg/utils/logging"
	"github.com/rivulet-lab/rivulet/pkg/utils/safe"
)

type streamResponse struct {
	ID        types.StreamID     `json:"id"`
	Text      string             `json:"text"`
	Status    types.StreamStatus `json:"status"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

func newStreamResponse(s *model.Stream) streamResponse {
	return streamResponse{
		ID:        s.ID,
		Text:      s.Text,
		Status:    s.Status,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// streamReplayHandler serves a point-in-time snapshot of the stream record.
// It never triggers generation.
func (s *Server) streamReplayHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id := types.StreamID(chi.URLParam(r, "streamID"))
	if err := id.Validate(); err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "invalid stream ID"), http.StatusBadRequest)
		return
	}

	snapshot, err := s.uc.Stream.Read(ctx, id)
	if err != nil {
		if errors.Is(err, interfaces.ErrStreamNotFound) {
			errutil.HandleHTTP(ctx, w, err, http.StatusNotFound)
			return
		}
		errutil.HandleHTTP(ctx, w, err, http.StatusServiceUnavailable)
		return
	}

	writeJSON(ctx, w, http.StatusOK, newStreamResponse(snapshot))
}

// streamDriveHandler is the driving-mode endpoint: it claims the stream,
// starts the writer when this request wins the claim, and serves the text
// incrementally over SSE until the stream reaches a terminal status. Losers
// of the claim attach as plain readers of the same stream.
func (s *Server) streamDriveHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		StreamID types.StreamID `json:"streamId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to decode request body"), http.StatusBadRequest)
		return
	}
	if err := req.StreamID.Validate(); err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "invalid stream ID"), http.StatusBadRequest)
		return
	}
	id := req.StreamID

	// Subscribe before the first snapshot read so no wakeup between the read
	// and the wait is lost.
	wake, cancel := s.uc.Stream.Subscribe(id)
	defer cancel()

	if _, err := s.uc.Stream.StartGeneration(ctx, id); err != nil {
		if errors.Is(err, interfaces.ErrStreamNotFound) {
			errutil.HandleHTTP(ctx, w, err, http.StatusNotFound)
			return
		}
		errutil.HandleHTTP(ctx, w, err, http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	safe.Flush(w)

	heartbeat := time.NewTicker(s.heartbeatInterval)
	defer heartbeat.Stop()

	lastLen := 0
	for {
		snapshot, err := s.uc.Stream.Read(ctx, id)
		if err != nil {
			// headers are committed; log and drop the connection so the
			// client reconnects against the registry
			errutil.Handle(ctx, err, "failed to read stream during SSE")
			return
		}

		// lastLen must never exceed the snapshot; clamp before slicing
		if lastLen > len(snapshot.Text) {
			lastLen = len(snapshot.Text)
		}
		if delta := snapshot.Text[lastLen:]; delta != "" {
			writeSSEEvent(ctx, w, "delta", delta)
			lastLen = len(snapshot.Text)
		}

		if snapshot.Status.IsTerminal() {
			writeSSEEvent(ctx, w, "done", string(snapshot.Status))
			return
		}

		select {
		case <-wake:
		case <-heartbeat.C:
			safe.Write(ctx, w, []byte(": ping\n\n"))
			safe.Flush(w)
		case <-ctx.Done():
			logging.From(ctx).Debug("SSE client disconnected", "stream_id", id)
			return
		}
	}
}

// writeSSEEvent writes one server-sent event. Multi-line payloads become
// multiple data lines so the wire format stays valid; decoders rejoin them
// with newlines.
func writeSSEEvent(ctx context.Context, w http.ResponseWriter, event, data string) {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(event)
	b.WriteString("\n")
	for _, line := range strings.Split(data, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	safe.Write(ctx, w, []byte(b.String()))
	safe.Flush(w)
}
