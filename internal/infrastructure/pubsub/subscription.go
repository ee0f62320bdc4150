package pubsub

import (
	"github.com/btcconnect/connectkit/internal/core/ports"
	"github.com/google/uuid"
)

type subscription struct {
	id       string
	topic    string
	once     bool
	listener ports.Listener
}

type subscriptions []*subscription

func newSubscription(topic string, listener ports.Listener, once bool) *subscription {
	return &subscription{
		id:       uuid.New().String(),
		topic:    topic,
		once:     once,
		listener: listener,
	}
}

func (s subscriptions) indexOf(id string) int {
	for i, sub := range s {
		if sub.id == id {
			return i
		}
	}
	return -1
}

// withoutOnce returns the persistent subscriptions, reusing the backing
// array when there is nothing to drop.
func (s subscriptions) withoutOnce() subscriptions {
	hasOnce := false
	for _, sub := range s {
		if sub.once {
			hasOnce = true
			break
		}
	}
	if !hasOnce {
		return s
	}
	kept := make(subscriptions, 0, len(s))
	for _, sub := range s {
		if !sub.once {
			kept = append(kept, sub)
		}
	}
	return kept
}
