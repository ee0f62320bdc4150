package pubsub

import (
	"sync"

	"github.com/btcconnect/connectkit/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

// DefaultMaxListeners is the per-topic listener count above which a leak
// warning is logged.
const DefaultMaxListeners = 100

type service struct {
	lock         sync.Mutex
	subs         map[string]subscriptions
	maxListeners int
	warned       map[string]bool
}

// NewService returns an in-process event bus. A non positive maxListeners
// falls back to DefaultMaxListeners.
func NewService(maxListeners int) ports.EventBus {
	if maxListeners <= 0 {
		maxListeners = DefaultMaxListeners
	}
	return &service{
		subs:         make(map[string]subscriptions),
		maxListeners: maxListeners,
		warned:       make(map[string]bool),
	}
}

func (s *service) On(topic string, listener ports.Listener) string {
	return s.addSubscription(newSubscription(topic, listener, false))
}

func (s *service) Once(topic string, listener ports.Listener) string {
	return s.addSubscription(newSubscription(topic, listener, true))
}

func (s *service) Off(topic, id string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	subs := s.subs[topic]
	i := subs.indexOf(id)
	if i < 0 {
		return false
	}

	updated := make(subscriptions, 0, len(subs)-1)
	updated = append(updated, subs[:i]...)
	updated = append(updated, subs[i+1:]...)
	s.setSubscriptions(topic, updated)
	return true
}

func (s *service) Emit(topic string, payload interface{}) int {
	subs := s.takeSubscriptionsForTopic(topic)
	for _, sub := range subs {
		sub.listener(topic, payload)
	}
	return len(subs)
}

func (s *service) ListenerCount(topics ...string) int {
	s.lock.Lock()
	defer s.lock.Unlock()

	count := 0
	for _, topic := range topics {
		count += len(s.subs[topic])
	}
	return count
}

func (s *service) RemoveAllListeners(topic string) {
	s.lock.Lock()
	defer s.lock.Unlock()

	delete(s.subs, topic)
	delete(s.warned, topic)
}

func (s *service) addSubscription(sub *subscription) string {
	s.lock.Lock()
	defer s.lock.Unlock()

	subs := s.subs[sub.topic]
	updated := make(subscriptions, 0, len(subs)+1)
	updated = append(updated, subs...)
	updated = append(updated, sub)
	s.subs[sub.topic] = updated

	if len(updated) > s.maxListeners && !s.warned[sub.topic] {
		s.warned[sub.topic] = true
		log.Warnf(
			"possible listener leak: %d listeners registered for topic %s",
			len(updated), sub.topic,
		)
	}
	return sub.id
}

// takeSubscriptionsForTopic snapshots the listeners to notify, topic ones
// first, and drops the one-shot ones before any of them is invoked.
func (s *service) takeSubscriptionsForTopic(topic string) subscriptions {
	s.lock.Lock()
	defer s.lock.Unlock()

	topics := []string{topic}
	if topic != ports.AnyTopic {
		topics = append(topics, ports.AnyTopic)
	}

	snapshot := make(subscriptions, 0)
	for _, t := range topics {
		subs := s.subs[t]
		snapshot = append(snapshot, subs...)
		s.setSubscriptions(t, subs.withoutOnce())
	}
	return snapshot
}

func (s *service) setSubscriptions(topic string, subs subscriptions) {
	if len(subs) <= 0 {
		delete(s.subs, topic)
		return
	}
	s.subs[topic] = subs
}
