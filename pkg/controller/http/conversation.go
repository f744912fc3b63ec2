package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/rivulet-lab/rivulet/pkg/domain/interfaces"
	"github.com/rivulet-lab/rivulet/pkg/domain/model"
	"github.com/rivulet-lab/rivulet/pkg/domain/types"
	"github.com/rivulet-lab/rivulet/pkg/utils/errutil"
	"github.com/rivulet-lab/rivulet/pkg/utils/safe"
)

type conversationResponse struct {
	ID        types.ConversationID `json:"id"`
	Title     string               `json:"title"`
	CreatedAt time.Time            `json:"createdAt"`
}

type messageResponse struct {
	ID             types.MessageID      `json:"id"`
	ConversationID types.ConversationID `json:"conversationId"`
	Role           types.MessageRole    `json:"role"`
	Content        string               `json:"content"`
	StreamID       types.StreamID       `json:"streamId,omitempty"`
	CreatedAt      time.Time            `json:"createdAt"`
}

func newConversationResponse(c *model.Conversation) conversationResponse {
	return conversationResponse{
		ID:        c.ID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
	}
}

func newMessageResponse(m *model.Message) messageResponse {
	return messageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           m.Role,
		Content:        m.Content,
		StreamID:       m.StreamID,
		CreatedAt:      m.CreatedAt,
	}
}

func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to marshal response"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	safe.Write(ctx, w, data)
}

func (s *Server) createConversationHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to decode request body"), http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		errutil.HandleHTTP(ctx, w, goerr.New("title is required"), http.StatusBadRequest)
		return
	}

	conv, err := s.uc.Chat.CreateConversation(ctx, req.Title)
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, http.StatusInternalServerError)
		return
	}

	writeJSON(ctx, w, http.StatusCreated, newConversationResponse(conv))
}

func (s *Server) listConversationsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	convs, err := s.uc.Chat.ListConversations(ctx)
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, http.StatusInternalServerError)
		return
	}

	resp := struct {
		Conversations []conversationResponse `json:"conversations"`
	}{
		Conversations: make([]conversationResponse, len(convs)),
	}
	for i, c := range convs {
		resp.Conversations[i] = newConversationResponse(c)
	}

	writeJSON(ctx, w, http.StatusOK, resp)
}

func (s *Server) listMessagesHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	convID := types.ConversationID(chi.URLParam(r, "conversationID"))
	if err := convID.Validate(); err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "invalid conversation ID"), http.StatusBadRequest)
		return
	}

	msgs, err := s.uc.Chat.ListMessages(ctx, convID)
	if err != nil {
		if errors.Is(err, interfaces.ErrConversationNotFound) {
			errutil.HandleHTTP(ctx, w, err, http.StatusNotFound)
			return
		}
		errutil.HandleHTTP(ctx, w, err, http.StatusInternalServerError)
		return
	}

	resp := struct {
		Messages []messageResponse `json:"messages"`
	}{
		Messages: make([]messageResponse, len(msgs)),
	}
	for i, m := range msgs {
		resp.Messages[i] = newMessageResponse(m)
	}

	writeJSON(ctx, w, http.StatusOK, resp)
}

func (s *Server) postMessageHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	convID := types.ConversationID(chi.URLParam(r, "conversationID"))
	if err := convID.Validate(); err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "invalid conversation ID"), http.StatusBadRequest)
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to decode request body"), http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		errutil.HandleHTTP(ctx, w, goerr.New("content is required"), http.StatusBadRequest)
		return
	}

	assistant, err := s.uc.Chat.PostMessage(ctx, convID, req.Content)
	if err != nil {
		if errors.Is(err, interfaces.ErrConversationNotFound) {
			errutil.HandleHTTP(ctx, w, err, http.StatusNotFound)
			return
		}
		errutil.HandleHTTP(ctx, w, err, http.StatusInternalServerError)
		return
	}

	writeJSON(ctx, w, http.StatusCreated, newMessageResponse(assistant))
}
