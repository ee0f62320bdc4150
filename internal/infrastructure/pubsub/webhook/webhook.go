package webhookpubsub

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/btcconnect/connectkit/internal/core/domain"
	"github.com/btcconnect/connectkit/internal/core/ports"
	"github.com/google/uuid"
)

var supportedTopics = map[string]bool{
	ports.AnyTopic:                  true,
	domain.TopicSendUserOp:          true,
	domain.TopicSendUserOpResult:    true,
	domain.TopicPersonalSign:        true,
	domain.TopicPersonalSignResult:  true,
	domain.TopicSignTypedData:       true,
	domain.TopicSignTypedDataResult: true,
	domain.TopicCancelOperation:     true,
	domain.TopicCloseConfirmation:   true,
}

// IsSupportedTopic returns whether webhooks can be registered for the given
// event bus topic. AnyTopic matches all of them.
func IsSupportedTopic(topic string) bool {
	return supportedTopics[topic]
}

type Webhook struct {
	ID       string `json:"id"`
	Topic    string `json:"topic"`
	Endpoint string `json:"endpoint"`
	Secret   string `json:"secret,omitempty"`
}

func NewWebhook(topic, endpoint, secret string) (*Webhook, error) {
	if !IsSupportedTopic(topic) {
		return nil, ErrInvalidTopic
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("webhook endpoint must be a valid URI")
	}
	id := uuid.New().String()
	return &Webhook{id, topic, endpoint, secret}, nil
}

func NewWebhookFromBytes(buf []byte) (*Webhook, error) {
	h := &Webhook{}
	if err := json.Unmarshal(buf, h); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Webhook) IsSecured() bool {
	return len(h.Secret) > 0
}

// Info returns a copy of the hook without its secret.
func (h *Webhook) Info() Webhook {
	return Webhook{
		ID:       h.ID,
		Topic:    h.Topic,
		Endpoint: h.Endpoint,
	}
}

func (h *Webhook) Serialize() []byte {
	b, _ := json.Marshal(*h)
	return b
}
