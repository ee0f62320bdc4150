package ports

// AnyTopic subscribes a listener to every topic.
const AnyTopic = "*"

// Listener is invoked synchronously with the emitted topic and payload.
type Listener func(topic string, payload interface{})

// EventBus is a process wide publish/subscribe channel. Emission is a
// synchronous fan-out to the listeners registered at the time of the call,
// in registration order, with no buffering or replay.
type EventBus interface {
	// On registers a listener and returns its id.
	On(topic string, listener Listener) string
	// Once registers a listener removed right before its first invocation.
	Once(topic string, listener Listener) string
	// Off removes a listener, returning whether it was registered.
	Off(topic, id string) bool
	// Emit notifies the listeners of the topic and returns how many were
	// notified.
	Emit(topic string, payload interface{}) int
	// ListenerCount returns the number of listeners of the given topics.
	ListenerCount(topics ...string) int
	RemoveAllListeners(topic string)
}
