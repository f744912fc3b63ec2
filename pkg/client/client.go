package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/rivulet-lab/rivulet/pkg/domain/types"
	"github.com/rivulet-lab/rivulet/pkg/utils/safe"
)

// Client talks to a rivulet server. All methods are safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// Option is a functional option for Client
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithToken sets a bearer token attached to every request
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// New creates a client for the server at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Conversation mirrors the server's conversation representation
type Conversation struct {
	ID        types.ConversationID `json:"id"`
	Title     string               `json:"title"`
	CreatedAt time.Time            `json:"createdAt"`
}

// Message mirrors the server's message representation
type Message struct {
	ID             types.MessageID      `json:"id"`
	ConversationID types.ConversationID `json:"conversationId"`
	Role           types.MessageRole    `json:"role"`
	Content        string               `json:"content"`
	StreamID       types.StreamID       `json:"streamId,omitempty"`
	CreatedAt      time.Time            `json:"createdAt"`
}

// Stream mirrors the server's stream snapshot representation
type Stream struct {
	ID        types.StreamID     `json:"id"`
	Text      string             `json:"text"`
	Status    types.StreamStatus `json:"status"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to marshal request body")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request", goerr.V("path", path))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return goerr.Wrap(err, "request failed", goerr.V("path", path))
	}
	defer safe.Close(ctx, resp.Body)

	if err := checkStatus(resp); err != nil {
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return goerr.Wrap(err, "failed to decode response", goerr.V("path", path))
		}
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024)) //nolint:errcheck // best-effort error body
	err := goerr.New("server returned error",
		goerr.V("status", resp.StatusCode),
		goerr.V("body", string(bytes.TrimSpace(msg))))

	switch resp.StatusCode {
	case http.StatusNotFound:
		return goerr.Wrap(ErrNotFound, err.Error())
	case http.StatusServiceUnavailable:
		return goerr.Wrap(ErrUnavailable, err.Error())
	default:
		return err
	}
}

// CreateConversation creates a conversation with the given title
func (c *Client) CreateConversation(ctx context.Context, title string) (*Conversation, error) {
	var conv Conversation
	req := map[string]string{"title": title}
	if err := c.doJSON(ctx, http.MethodPost, "/api/conversations", req, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListConversations returns all conversations, newest first
func (c *Client) ListConversations(ctx context.Context) ([]*Conversation, error) {
	var out struct {
		Conversations []*Conversation `json:"conversations"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

// ListMessages returns the messages of a conversation in order
func (c *Client) ListMessages(ctx context.Context, convID types.ConversationID) ([]*Message, error) {
	var out struct {
		Messages []*Message `json:"messages"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/conversations/"+string(convID)+"/messages", nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// PostMessage sends a user message and returns the assistant placeholder
// whose StreamID can be subscribed to
func (c *Client) PostMessage(ctx context.Context, convID types.ConversationID, content string) (*Message, error) {
	var msg Message
	req := map[string]string{"content": content}
	if err := c.doJSON(ctx, http.MethodPost, "/api/conversations/"+string(convID)+"/messages", req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetStream reads a point-in-time snapshot of the stream. It never triggers
// generation.
func (c *Client) GetStream(ctx context.Context, id types.StreamID) (*Stream, error) {
	var s Stream
	if err := c.doJSON(ctx, http.MethodGet, "/api/streams/"+string(id), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
