package stream_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/rivulet-lab/rivulet/pkg/domain/types"
	"github.com/rivulet-lab/rivulet/pkg/service/stream"
)

func TestHub(t *testing.T) {
	t.Run("notify wakes subscriber", func(t *testing.T) {
		hub := stream.NewHub()
		id := types.NewStreamID()

		ch, cancel := hub.Subscribe(id)
		defer cancel()

		hub.Notify(id)

		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("expected wakeup signal")
		}
	})

	t.Run("notify wakes all subscribers of the same stream", func(t *testing.T) {
		hub := stream.NewHub()
		id := types.NewStreamID()

		ch1, cancel1 := hub.Subscribe(id)
		defer cancel1()
		ch2, cancel2 := hub.Subscribe(id)
		defer cancel2()

		hub.Notify(id)

		for _, ch := range []<-chan struct{}{ch1, ch2} {
			select {
			case <-ch:
			case <-time.After(time.Second):
				t.Fatal("expected wakeup signal on every subscriber")
			}
		}
	})

	t.Run("notify does not cross streams", func(t *testing.T) {
		hub := stream.NewHub()

		ch, cancel := hub.Subscribe(types.NewStreamID())
		defer cancel()

		hub.Notify(types.NewStreamID())

		select {
		case <-ch:
			t.Fatal("unexpected signal from unrelated stream")
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("notify without subscribers never blocks", func(t *testing.T) {
		hub := stream.NewHub()
		id := types.NewStreamID()
		for i := 0; i < 10; i++ {
			hub.Notify(id)
		}
	})

	t.Run("repeated notify does not block on slow subscriber", func(t *testing.T) {
		hub := stream.NewHub()
		id := types.NewStreamID()

		ch, cancel := hub.Subscribe(id)
		defer cancel()

		for i := 0; i < 10; i++ {
			hub.Notify(id)
		}

		// coalesced into a single pending signal
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("expected coalesced wakeup signal")
		}
	})

	t.Run("cancel removes subscription", func(t *testing.T) {
		hub := stream.NewHub()
		id := types.NewStreamID()

		_, cancel := hub.Subscribe(id)
		gt.Value(t, hub.Subscribers(id)).Equal(1)

		cancel()
		gt.Value(t, hub.Subscribers(id)).Equal(0)

		// cancel is idempotent
		cancel()
		gt.Value(t, hub.Subscribers(id)).Equal(0)
	})
}
