package http_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/rivulet-lab/rivulet/pkg/domain/types"
	"github.com/rivulet-lab/rivulet/pkg/repository/memory"
	"github.com/rivulet-lab/rivulet/pkg/service/source"
	"github.com/rivulet-lab/rivulet/pkg/service/stream"
	"github.com/rivulet-lab/rivulet/pkg/usecase"

	server "github.com/rivulet-lab/rivulet/pkg/controller/http"
)

func newTestServer(t *testing.T, src source.Source, opts ...server.Options) *httptest.Server {
	t.Helper()
	repo := memory.New()
	hub := stream.NewHub()
	uc := usecase.New(repo, hub, src)
	ts := httptest.NewServer(server.New(uc, opts...))
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	gt.NoError(t, err).Required()
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	gt.NoError(t, err).Required()
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	gt.NoError(t, json.NewDecoder(resp.Body).Decode(&v)).Required()
	return v
}

type conversationBody struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type messageBody struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	Role           string `json:"role"`
	Content        string `json:"content"`
	StreamID       string `json:"streamId"`
}

type streamBody struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Status string `json:"status"`
}

// postMessage drives the REST flow to obtain an assistant message with a
// pending stream behind it
func postMessage(t *testing.T, baseURL, content string) messageBody {
	t.Helper()

	resp := postJSON(t, baseURL+"/api/conversations", map[string]string{"title": "test chat"})
	gt.Value(t, resp.StatusCode).Equal(http.StatusCreated)
	conv := decodeJSON[conversationBody](t, resp)

	resp = postJSON(t, fmt.Sprintf("%s/api/conversations/%s/messages", baseURL, conv.ID), map[string]string{"content": content})
	gt.Value(t, resp.StatusCode).Equal(http.StatusCreated)
	return decodeJSON[messageBody](t, resp)
}

// sseEvent is one decoded server-sent event
type sseEvent struct {
	event string
	data  string
}

// readSSE decodes all events from the response body until EOF
func readSSE(t *testing.T, body io.Reader) []sseEvent {
	t.Helper()

	var events []sseEvent
	var event string
	var dataLines []string

	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if event != "" || len(dataLines) > 0 {
				events = append(events, sseEvent{event: event, data: strings.Join(dataLines, "\n")})
			}
			event = ""
			dataLines = nil
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		case strings.HasPrefix(line, ":"):
			// comment (heartbeat), ignore
		}
	}
	gt.NoError(t, scanner.Err())
	return events
}

func driveStream(t *testing.T, baseURL, streamID string) (int, []sseEvent) {
	t.Helper()
	resp := postJSON(t, baseURL+"/api/streams", map[string]string{"streamId": streamID})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return resp.StatusCode, nil
	}
	gt.Value(t, resp.Header.Get("Content-Type")).Equal("text/event-stream")
	return resp.StatusCode, readSSE(t, resp.Body)
}

func assembleDeltas(events []sseEvent) (text string, done string) {
	var b strings.Builder
	for _, ev := range events {
		switch ev.event {
		case "delta":
			b.WriteString(ev.data)
		case "done":
			done = ev.data
		}
	}
	return b.String(), done
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, source.NewScripted("ok"))

	resp, err := http.Get(ts.URL + "/health")
	gt.NoError(t, err).Required()
	defer resp.Body.Close()
	gt.Value(t, resp.StatusCode).Equal(http.StatusOK)
}

func TestConversationEndpoints(t *testing.T) {
	ts := newTestServer(t, source.NewScripted("ok"))

	t.Run("create requires title", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/api/conversations", map[string]string{})
		defer resp.Body.Close()
		gt.Value(t, resp.StatusCode).Equal(http.StatusBadRequest)
	})

	t.Run("post message returns assistant placeholder", func(t *testing.T) {
		assistant := postMessage(t, ts.URL, "hello")
		gt.Value(t, assistant.Role).Equal("assistant")
		gt.Value(t, assistant.Content).Equal("")
		gt.NoError(t, types.StreamID(assistant.StreamID).Validate())
	})

	t.Run("list messages keeps order", func(t *testing.T) {
		assistant := postMessage(t, ts.URL, "first question")

		resp, err := http.Get(fmt.Sprintf("%s/api/conversations/%s/messages", ts.URL, assistant.ConversationID))
		gt.NoError(t, err).Required()
		gt.Value(t, resp.StatusCode).Equal(http.StatusOK)

		body := decodeJSON[struct {
			Messages []messageBody `json:"messages"`
		}](t, resp)
		gt.Array(t, body.Messages).Length(2)
		gt.Value(t, body.Messages[0].Role).Equal("user")
		gt.Value(t, body.Messages[0].Content).Equal("first question")
		gt.Value(t, body.Messages[1].Role).Equal("assistant")
	})

	t.Run("messages of unknown conversation return 404", func(t *testing.T) {
		resp, err := http.Get(fmt.Sprintf("%s/api/conversations/%s/messages", ts.URL, types.NewConversationID()))
		gt.NoError(t, err).Required()
		defer resp.Body.Close()
		gt.Value(t, resp.StatusCode).Equal(http.StatusNotFound)
	})
}

func TestStreamReplayEndpoint(t *testing.T) {
	ts := newTestServer(t, source.NewScripted("ok"))

	t.Run("snapshot of pending stream", func(t *testing.T) {
		assistant := postMessage(t, ts.URL, "hello")

		resp, err := http.Get(ts.URL + "/api/streams/" + assistant.StreamID)
		gt.NoError(t, err).Required()
		gt.Value(t, resp.StatusCode).Equal(http.StatusOK)

		body := decodeJSON[streamBody](t, resp)
		gt.Value(t, body.ID).Equal(assistant.StreamID)
		gt.Value(t, body.Text).Equal("")
		gt.Value(t, body.Status).Equal("pending")
	})

	t.Run("unknown stream returns 404", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/streams/" + string(types.NewStreamID()))
		gt.NoError(t, err).Required()
		defer resp.Body.Close()
		gt.Value(t, resp.StatusCode).Equal(http.StatusNotFound)
	})

	t.Run("malformed stream ID returns 400", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/streams/not-a-uuid")
		gt.NoError(t, err).Required()
		defer resp.Body.Close()
		gt.Value(t, resp.StatusCode).Equal(http.StatusBadRequest)
	})
}

func TestStreamDriveEndpoint(t *testing.T) {
	t.Run("drives generation and delivers full text", func(t *testing.T) {
		ts := newTestServer(t, source.NewScripted("Hello", source.WithGranularity(source.GranularityCharacter)))
		assistant := postMessage(t, ts.URL, "say hello")

		status, events := driveStream(t, ts.URL, assistant.StreamID)
		gt.Value(t, status).Equal(http.StatusOK)

		text, done := assembleDeltas(events)
		gt.Value(t, text).Equal("Hello")
		gt.Value(t, done).Equal("complete")
	})

	t.Run("errored stream still streams partial text", func(t *testing.T) {
		ts := newTestServer(t, &partialFailSource{partial: "Err"})
		assistant := postMessage(t, ts.URL, "fail please")

		status, events := driveStream(t, ts.URL, assistant.StreamID)
		gt.Value(t, status).Equal(http.StatusOK)

		text, done := assembleDeltas(events)
		gt.Value(t, text).Equal("Err")
		gt.Value(t, done).Equal("errored")
	})

	t.Run("multiline text survives SSE framing", func(t *testing.T) {
		ts := newTestServer(t, source.NewScripted("line one\nline two\n\nline four", source.WithGranularity(source.GranularityWord)))
		assistant := postMessage(t, ts.URL, "write lines")

		_, events := driveStream(t, ts.URL, assistant.StreamID)
		text, done := assembleDeltas(events)
		gt.Value(t, text).Equal("line one\nline two\n\nline four")
		gt.Value(t, done).Equal("complete")
	})

	t.Run("concurrent consumers both observe full text", func(t *testing.T) {
		ts := newTestServer(t, source.NewScripted("The quick brown fox", source.WithGranularity(source.GranularityWord), source.WithDelay(time.Millisecond)))
		assistant := postMessage(t, ts.URL, "go")

		var wg sync.WaitGroup
		results := make([]string, 2)
		for i := range results {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, events := driveStream(t, ts.URL, assistant.StreamID)
				results[i], _ = assembleDeltas(events)
			}()
		}
		wg.Wait()

		gt.Value(t, results[0]).Equal("The quick brown fox")
		gt.Value(t, results[1]).Equal("The quick brown fox")
	})

	t.Run("unknown stream returns 404", func(t *testing.T) {
		ts := newTestServer(t, source.NewScripted("ok"))
		status, _ := driveStream(t, ts.URL, string(types.NewStreamID()))
		gt.Value(t, status).Equal(http.StatusNotFound)
	})

	t.Run("malformed body returns 400", func(t *testing.T) {
		ts := newTestServer(t, source.NewScripted("ok"))
		resp, err := http.Post(ts.URL+"/api/streams", "application/json", strings.NewReader("{"))
		gt.NoError(t, err).Required()
		defer resp.Body.Close()
		gt.Value(t, resp.StatusCode).Equal(http.StatusBadRequest)
	})
}

// staticVerifier accepts a single fixed token
type staticVerifier struct {
	token   string
	subject string
}

func (v *staticVerifier) Verify(ctx context.Context, raw string) (string, error) {
	if raw != v.token {
		return "", fmt.Errorf("unknown token")
	}
	return v.subject, nil
}

func TestAuthMiddleware(t *testing.T) {
	verifier := &staticVerifier{token: "valid-token", subject: "user-1"}
	ts := newTestServer(t, source.NewScripted("ok"), server.WithAuth(verifier))

	t.Run("missing token is rejected", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/conversations")
		gt.NoError(t, err).Required()
		defer resp.Body.Close()
		gt.Value(t, resp.StatusCode).Equal(http.StatusUnauthorized)
	})

	t.Run("invalid token is rejected", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/conversations", nil)
		gt.NoError(t, err).Required()
		req.Header.Set("Authorization", "Bearer wrong")
		resp, err := http.DefaultClient.Do(req)
		gt.NoError(t, err).Required()
		defer resp.Body.Close()
		gt.Value(t, resp.StatusCode).Equal(http.StatusUnauthorized)
	})

	t.Run("valid token passes", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/conversations", nil)
		gt.NoError(t, err).Required()
		req.Header.Set("Authorization", "Bearer valid-token")
		resp, err := http.DefaultClient.Do(req)
		gt.NoError(t, err).Required()
		defer resp.Body.Close()
		gt.Value(t, resp.StatusCode).Equal(http.StatusOK)
	})

	t.Run("health bypasses auth", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/health")
		gt.NoError(t, err).Required()
		defer resp.Body.Close()
		gt.Value(t, resp.StatusCode).Equal(http.StatusOK)
	})
}

// partialFailSource emits a partial chunk and then fails
type partialFailSource struct {
	partial string
}

func (s *partialFailSource) Generate(ctx context.Context, prompt string) (<-chan source.Chunk, error) {
	out := make(chan source.Chunk, 2)
	out <- source.Chunk{Text: s.partial}
	out <- source.Chunk{Err: context.DeadlineExceeded}
	close(out)
	return out, nil
}
