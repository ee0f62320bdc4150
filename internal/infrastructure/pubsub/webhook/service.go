package webhookpubsub

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/btcconnect/connectkit/internal/core/ports"
	"github.com/btcconnect/connectkit/pkg/circuitbreaker"
	"github.com/golang-jwt/jwt"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
)

const defaultRequestTimeout = 15 * time.Second

// Service forwards the events of the confirmation pipeline to the HTTP
// endpoints registered for their topic. Requests to hooks with a secret
// carry a HS256 JWT in the Authorization header.
type Service interface {
	Subscribe(topic, endpoint, secret string) (string, error)
	Unsubscribe(id string) error
	// ListWebhooks returns the hooks invoked for topic, or all of them if
	// topic is empty. Secrets are omitted.
	ListWebhooks(topic string) []Webhook
	Start()
	Stop()
}

// Event is the body posted to webhook endpoints.
type Event struct {
	Topic     string      `json:"topic"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type webhookService struct {
	bus        ports.EventBus
	httpClient *client
	cb         *gobreaker.CircuitBreaker

	lock       sync.RWMutex
	hooks      map[string]*Webhook
	listenerID string
	inflight   sync.WaitGroup
}

func NewWebhookPubSubService(
	bus ports.EventBus, requestTimeout time.Duration,
) (Service, error) {
	if bus == nil {
		return nil, ErrNullEventBus
	}
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	return &webhookService{
		bus:        bus,
		httpClient: newHTTPClient(requestTimeout),
		cb:         circuitbreaker.NewCircuitBreaker("webhook"),
		hooks:      make(map[string]*Webhook),
	}, nil
}

func (ws *webhookService) Subscribe(topic, endpoint, secret string) (string, error) {
	hook, err := NewWebhook(topic, endpoint, secret)
	if err != nil {
		return "", err
	}

	ws.lock.Lock()
	defer ws.lock.Unlock()

	ws.hooks[hook.ID] = hook
	log.WithFields(log.Fields{
		"id":    hook.ID,
		"topic": hook.Topic,
	}).Debug("webhook added")
	return hook.ID, nil
}

func (ws *webhookService) Unsubscribe(id string) error {
	ws.lock.Lock()
	defer ws.lock.Unlock()

	if _, ok := ws.hooks[id]; !ok {
		return ErrWebhookNotFound
	}
	delete(ws.hooks, id)
	log.WithField("id", id).Debug("webhook removed")
	return nil
}

func (ws *webhookService) ListWebhooks(topic string) []Webhook {
	hooks := ws.getHooksForTopic(topic)
	list := make([]Webhook, 0, len(hooks))
	for _, h := range hooks {
		list = append(list, h.Info())
	}
	return list
}

func (ws *webhookService) Start() {
	ws.lock.Lock()
	defer ws.lock.Unlock()

	if ws.listenerID != "" {
		return
	}
	ws.listenerID = ws.bus.On(ports.AnyTopic, ws.onEvent)
}

// Stop detaches from the event bus and waits for the pending deliveries.
func (ws *webhookService) Stop() {
	ws.lock.Lock()
	if ws.listenerID != "" {
		ws.bus.Off(ports.AnyTopic, ws.listenerID)
		ws.listenerID = ""
	}
	ws.lock.Unlock()

	ws.inflight.Wait()
}

func (ws *webhookService) onEvent(topic string, payload interface{}) {
	if topic == ports.AnyTopic || !IsSupportedTopic(topic) {
		return
	}
	hooks := ws.getHooksForTopic(topic)
	if len(hooks) <= 0 {
		return
	}

	body, err := json.Marshal(Event{topic, payload, time.Now().Unix()})
	if err != nil {
		log.WithError(err).WithField("topic", topic).Warn(
			"failed to serialize webhook event",
		)
		return
	}

	ws.inflight.Add(1)
	go func() {
		defer ws.inflight.Done()

		if err := ws.invokeWebhooks(hooks, topic, body); err != nil {
			log.WithError(err).WithField("topic", topic).Warn(
				"failed to invoke some webhooks",
			)
		}
	}()
}

// invokeWebhooks makes a POST request to every given webhook endpoint.
func (ws *webhookService) invokeWebhooks(
	hooks []*Webhook, topic string, body []byte,
) error {
	eg := &errgroup.Group{}
	for i := range hooks {
		hook := hooks[i]
		eg.Go(func() error { return ws.doRequest(hook, topic, body) })
	}
	return eg.Wait()
}

func (ws *webhookService) getHooksForTopic(topic string) []*Webhook {
	ws.lock.RLock()
	defer ws.lock.RUnlock()

	hooks := make([]*Webhook, 0, len(ws.hooks))
	for _, h := range ws.hooks {
		if topic == "" || h.Topic == topic || h.Topic == ports.AnyTopic {
			hooks = append(hooks, h)
		}
	}
	return hooks
}

func (ws *webhookService) doRequest(hook *Webhook, topic string, body []byte) error {
	_, err := ws.cb.Execute(func() (interface{}, error) {
		headers := map[string]string{
			"Content-Type": "application/json",
		}
		if hook.IsSecured() {
			token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
				"topic": topic,
				"iat":   time.Now().Unix(),
			})
			tokenString, err := token.SignedString([]byte(hook.Secret))
			if err != nil {
				return nil, err
			}
			headers["Authorization"] = fmt.Sprintf("Bearer %s", tokenString)
		}

		status, resp, err := ws.httpClient.post(hook.Endpoint, body, headers)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("webhook %s replied with status %d: %s", hook.ID, status, resp)
		}
		return nil, nil
	})

	return err
}
