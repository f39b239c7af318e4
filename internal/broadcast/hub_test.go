package broadcast_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/simforge/simforge/internal/broadcast"
)

func TestHubDeliversInRegistrationOrder(t *testing.T) {
	t.Parallel()

	hub := broadcast.New[int]()
	var order []string
	hub.Subscribe(func(int) { order = append(order, "first") })
	hub.Subscribe(func(int) { order = append(order, "second") })
	hub.Subscribe(func(int) { order = append(order, "third") })

	hub.Publish(1)
	require.Equal(t, []string{"first", "second", "third"}, order)

	hub.Publish(2)
	require.Equal(t, []string{"first", "second", "third", "first", "second", "third"}, order)
}

func TestHubUnsubscribe(t *testing.T) {
	t.Parallel()

	hub := broadcast.New[int]()
	var got []int
	sub := hub.Subscribe(func(v int) { got = append(got, v) })

	hub.Publish(1)
	sub.Unsubscribe()
	hub.Publish(2)
	require.Equal(t, []int{1}, got)
	require.Zero(t, hub.Len())

	t.Run("idempotent", func(t *testing.T) {
		sub.Unsubscribe()
		sub.Unsubscribe()
		require.Zero(t, hub.Len())
	})
}

// A listener unsubscribed by an earlier listener of the same publish call
// must not see the event: its delivery had not begun yet.
func TestHubUnsubscribeDuringPublish(t *testing.T) {
	t.Parallel()

	hub := broadcast.New[int]()
	var laterCalled bool
	var later *broadcast.Subscription[int]
	hub.Subscribe(func(int) { later.Unsubscribe() })
	later = hub.Subscribe(func(int) { laterCalled = true })

	hub.Publish(42)
	require.False(t, laterCalled)
	require.Equal(t, 1, hub.Len())
}

func TestHubPanickingListenerIsIsolated(t *testing.T) {
	t.Parallel()

	hub := broadcast.New[string]()
	var got []string
	hub.Subscribe(func(string) { panic("listener bug") })
	hub.Subscribe(func(v string) { got = append(got, v) })

	require.NotPanics(t, func() { hub.Publish("evt") })
	require.Equal(t, []string{"evt"}, got)
}

func TestHubNoReplayForLateSubscriber(t *testing.T) {
	t.Parallel()

	hub := broadcast.New[int]()
	hub.Publish(1)
	hub.Publish(2)

	var got []int
	hub.Subscribe(func(v int) { got = append(got, v) })
	require.Empty(t, got)

	hub.Publish(3)
	require.Equal(t, []int{3}, got)
}

func TestHubConcurrentSubscribePublish(t *testing.T) {
	t.Parallel()

	hub := broadcast.New[int]()
	var mx sync.Mutex
	count := 0

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			sub := hub.Subscribe(func(int) {
				mx.Lock()
				count++
				mx.Unlock()
			})
			defer sub.Unsubscribe()
			for range 10 {
				hub.Publish(1)
			}
		})
	}
	wg.Wait()

	mx.Lock()
	defer mx.Unlock()
	// every publisher delivered at least to its own subscriber
	require.GreaterOrEqual(t, count, 80)
	require.Zero(t, hub.Len())
}
