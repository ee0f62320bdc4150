package webhookpubsub

import "errors"

var (
	// ErrNullEventBus specifies that an event bus is required.
	ErrNullEventBus = errors.New("event bus must not be null")
	// ErrInvalidTopic is returned whenever attempting to subscribe to an unknown
	// topic.
	ErrInvalidTopic = errors.New("topic is invalid")
	// ErrWebhookNotFound is returned when removing an unknown hook.
	ErrWebhookNotFound = errors.New("webhook not found")
)
