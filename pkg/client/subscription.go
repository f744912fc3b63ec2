package client

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/rivulet-lab/rivulet/pkg/domain/types"
	"github.com/rivulet-lab/rivulet/pkg/utils/safe"
)

// State is the consumer-side view of a subscription
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateStreaming  State = "streaming"
	StateComplete   State = "complete"
	StateErrored    State = "errored"
)

// Subscription follows a single stream. A driven subscription connects to
// the driving endpoint and reads live events, triggering generation at most
// once server-side; a non-driven subscription polls replay snapshots and
// never triggers anything. Text grows monotonically and is preserved across
// failures, and nothing mutates it after a terminal state.
type Subscription struct {
	client       *Client
	id           types.StreamID
	driven       bool
	pollInterval time.Duration
	manualStart  bool

	mu      sync.Mutex
	state   State
	text    string
	lastErr error

	changed chan struct{}
}

// SubscribeOption is a functional option for Subscribe
type SubscribeOption func(*Subscription)

// WithManualStart defers connection until Start is called
func WithManualStart() SubscribeOption {
	return func(s *Subscription) {
		s.manualStart = true
	}
}

// WithPollInterval sets the replay polling interval for non-driven
// subscriptions
func WithPollInterval(d time.Duration) SubscribeOption {
	return func(s *Subscription) {
		s.pollInterval = d
	}
}

// Subscribe follows the stream with the given ID. When driven is true the
// subscription drives generation over the live endpoint; otherwise it only
// observes replay snapshots. The subscription starts immediately unless
// WithManualStart is given.
func (c *Client) Subscribe(ctx context.Context, id types.StreamID, driven bool, opts ...SubscribeOption) *Subscription {
	s := &Subscription{
		client:       c,
		id:           id,
		driven:       driven,
		pollInterval: 500 * time.Millisecond,
		state:        StateIdle,
		changed:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}

	if !s.manualStart {
		s.transition(StateIdle, StateConnecting)
		go s.run(ctx)
	}
	return s
}

// Start begins a manually started subscription. It fails unless the
// subscription is idle.
func (s *Subscription) Start(ctx context.Context) error {
	if !s.transition(StateIdle, StateConnecting) {
		return goerr.New("subscription already started", goerr.V("state", s.State()))
	}
	go s.run(ctx)
	return nil
}

// Retry re-enters connecting after a failure. It fails unless the
// subscription is errored. The accumulated text is kept.
func (s *Subscription) Retry(ctx context.Context) error {
	if !s.transition(StateErrored, StateConnecting) {
		return goerr.New("subscription is not errored", goerr.V("state", s.State()))
	}
	go s.run(ctx)
	return nil
}

// State returns the current state
func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Text returns the text observed so far. After a failure it keeps the last
// seen value.
func (s *Subscription) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// Err returns the error that moved the subscription to errored, if any
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Changed returns a channel that receives a coalesced signal whenever the
// subscription's text or state changes
func (s *Subscription) Changed() <-chan struct{} {
	return s.changed
}

// Wait blocks until the subscription reaches a terminal state and returns
// the final text. For an errored stream or transport failure the last-seen
// text is returned together with the error.
func (s *Subscription) Wait(ctx context.Context) (string, error) {
	for {
		switch s.State() {
		case StateComplete:
			return s.Text(), nil
		case StateErrored:
			return s.Text(), s.Err()
		}

		select {
		case <-s.changed:
		case <-ctx.Done():
			return s.Text(), ctx.Err()
		}
	}
}

func (s *Subscription) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// transition moves from one state to another atomically, returning false
// when the subscription is not in the expected state
func (s *Subscription) transition(from, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return false
	}
	s.state = to
	if to == StateConnecting {
		s.lastErr = nil
	}
	s.notify()
	return true
}

func (s *Subscription) isTerminal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateComplete || s.state == StateErrored
}

// observe merges a snapshot of the stream text. Text never shrinks and
// terminal subscriptions ignore late data.
func (s *Subscription) observe(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateComplete || s.state == StateErrored {
		return
	}
	if len(text) <= len(s.text) {
		return
	}
	s.text = text
	s.state = StateStreaming
	s.notify()
}

func (s *Subscription) appendDelta(delta string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateComplete || s.state == StateErrored {
		return
	}
	s.text += delta
	s.state = StateStreaming
	s.notify()
}

func (s *Subscription) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateComplete || s.state == StateErrored {
		return
	}
	s.state = StateComplete
	s.notify()
}

func (s *Subscription) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateComplete || s.state == StateErrored {
		return
	}
	s.state = StateErrored
	s.lastErr = err
	s.notify()
}

func (s *Subscription) run(ctx context.Context) {
	if s.driven {
		s.runDriven(ctx)
	} else {
		s.runReplay(ctx)
	}
}

// runDriven connects to the driving endpoint and consumes live events until
// the stream terminates
func (s *Subscription) runDriven(ctx context.Context) {
	req, err := s.client.newRequest(ctx, http.MethodPost, "/api/streams", map[string]string{"streamId": string(s.id)})
	if err != nil {
		s.fail(err)
		return
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		s.fail(goerr.Wrap(err, "failed to connect stream", goerr.V("stream_id", s.id)))
		return
	}
	defer safe.Close(ctx, resp.Body)

	if err := checkStatus(resp); err != nil {
		s.fail(err)
		return
	}

	err = scanEvents(resp.Body, func(event, data string) error {
		switch event {
		case "delta":
			s.appendDelta(data)
		case "done":
			if types.StreamStatus(data) == types.StreamStatusErrored {
				s.fail(goerr.Wrap(ErrStreamErrored, "stream errored", goerr.V("stream_id", s.id)))
			} else {
				s.finish()
			}
		}
		return nil
	})
	if err != nil {
		s.fail(err)
		return
	}

	// stream ended without a terminal event: connection was interrupted
	if !s.isTerminal() {
		s.fail(goerr.New("connection interrupted before stream end", goerr.V("stream_id", s.id)))
	}
}

// runReplay polls snapshots until the stream terminates. It never drives
// generation.
func (s *Subscription) runReplay(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		snapshot, err := s.client.GetStream(ctx, s.id)
		if err != nil {
			s.fail(err)
			return
		}

		s.observe(snapshot.Text)

		if snapshot.Status.IsTerminal() {
			if snapshot.Status == types.StreamStatusErrored {
				s.fail(goerr.Wrap(ErrStreamErrored, "stream errored", goerr.V("stream_id", s.id)))
			} else {
				s.finish()
			}
			return
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			s.fail(ctx.Err())
			return
		}
	}
}
