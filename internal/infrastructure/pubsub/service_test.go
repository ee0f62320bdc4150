package pubsub_test

import (
	"sync"
	"testing"

	"github.com/btcconnect/connectkit/internal/core/ports"
	"github.com/btcconnect/connectkit/internal/infrastructure/pubsub"
	"github.com/stretchr/testify/require"
)

const (
	testTopic  = "personalSign"
	otherTopic = "sendUserOp"
)

func TestEventBus(t *testing.T) {
	t.Run("OrderedFanOut", testOrderedFanOut())
	t.Run("Once", testOnce())
	t.Run("OnceRegisteredDuringEmit", testOnceRegisteredDuringEmit())
	t.Run("Off", testOff())
	t.Run("AnyTopic", testAnyTopic())
	t.Run("ListenerCount", testListenerCount())
	t.Run("ConcurrentAccess", testConcurrentAccess())
}

func testOrderedFanOut() func(*testing.T) {
	return func(t *testing.T) {
		bus := pubsub.NewService(0)

		got := make([]int, 0)
		for i := 0; i < 5; i++ {
			i := i
			bus.On(testTopic, func(_ string, _ interface{}) {
				got = append(got, i)
			})
		}

		notified := bus.Emit(testTopic, "payload")
		require.Equal(t, 5, notified)
		require.Equal(t, []int{0, 1, 2, 3, 4}, got)

		require.Zero(t, bus.Emit(otherTopic, nil))
	}
}

func testOnce() func(*testing.T) {
	return func(t *testing.T) {
		bus := pubsub.NewService(0)

		count := 0
		bus.Once(testTopic, func(_ string, payload interface{}) {
			require.Equal(t, "payload", payload)
			count++
		})
		require.Equal(t, 1, bus.ListenerCount(testTopic))

		bus.Emit(testTopic, "payload")
		bus.Emit(testTopic, "payload")
		require.Equal(t, 1, count)
		require.Zero(t, bus.ListenerCount(testTopic))
	}
}

func testOnceRegisteredDuringEmit() func(*testing.T) {
	return func(t *testing.T) {
		bus := pubsub.NewService(0)

		lateCalls := 0
		bus.On(testTopic, func(_ string, _ interface{}) {
			bus.Once(testTopic, func(_ string, _ interface{}) {
				lateCalls++
			})
		})

		bus.Emit(testTopic, nil)
		require.Zero(t, lateCalls)
		require.Equal(t, 2, bus.ListenerCount(testTopic))

		bus.Emit(testTopic, nil)
		require.Equal(t, 1, lateCalls)
	}
}

func testOff() func(*testing.T) {
	return func(t *testing.T) {
		bus := pubsub.NewService(0)

		calls := 0
		id := bus.On(testTopic, func(_ string, _ interface{}) { calls++ })
		require.True(t, bus.Off(testTopic, id))
		require.False(t, bus.Off(testTopic, id))
		require.False(t, bus.Off(otherTopic, "unknown"))

		bus.Emit(testTopic, nil)
		require.Zero(t, calls)

		bus.On(testTopic, func(_ string, _ interface{}) { calls++ })
		bus.On(testTopic, func(_ string, _ interface{}) { calls++ })
		bus.RemoveAllListeners(testTopic)
		require.Zero(t, bus.Emit(testTopic, nil))
	}
}

func testAnyTopic() func(*testing.T) {
	return func(t *testing.T) {
		bus := pubsub.NewService(0)

		topics := make([]string, 0)
		bus.On(ports.AnyTopic, func(topic string, _ interface{}) {
			topics = append(topics, topic)
		})
		bus.On(testTopic, func(_ string, _ interface{}) {
			topics = append(topics, "direct")
		})

		bus.Emit(testTopic, nil)
		bus.Emit(otherTopic, nil)
		require.Equal(t, []string{"direct", testTopic, otherTopic}, topics)
	}
}

func testListenerCount() func(*testing.T) {
	return func(t *testing.T) {
		bus := pubsub.NewService(1)

		bus.Once(testTopic, func(_ string, _ interface{}) {})
		bus.Once(otherTopic, func(_ string, _ interface{}) {})
		bus.On(otherTopic, func(_ string, _ interface{}) {})

		require.Equal(t, 1, bus.ListenerCount(testTopic))
		require.Equal(t, 3, bus.ListenerCount(testTopic, otherTopic))
		require.Zero(t, bus.ListenerCount())
	}
}

func testConcurrentAccess() func(*testing.T) {
	return func(t *testing.T) {
		bus := pubsub.NewService(0)

		var (
			wg    sync.WaitGroup
			lock  sync.Mutex
			calls int
		)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				bus.Once(testTopic, func(_ string, _ interface{}) {
					lock.Lock()
					calls++
					lock.Unlock()
				})
			}()
		}
		wg.Wait()

		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				bus.Emit(testTopic, nil)
			}()
		}
		wg.Wait()

		require.Equal(t, 50, calls)
		require.Zero(t, bus.ListenerCount(testTopic))
	}
}
