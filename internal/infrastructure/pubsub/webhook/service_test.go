package webhookpubsub_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/btcconnect/connectkit/internal/core/domain"
	"github.com/btcconnect/connectkit/internal/core/ports"
	"github.com/btcconnect/connectkit/internal/infrastructure/pubsub"
	webhookpubsub "github.com/btcconnect/connectkit/internal/infrastructure/pubsub/webhook"
	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type receivedRequest struct {
	path          string
	authorization string
	event         webhookpubsub.Event
}

type testServer struct {
	*httptest.Server
	lock     sync.Mutex
	requests []receivedRequest
}

func newTestServer(t *testing.T) *testServer {
	s := &testServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				http.Error(w, "Bad method", http.StatusMethodNotAllowed)
				return
			}
			if r.Header.Get("Content-Type") == "" {
				http.Error(w, "Missing Content-Type header", http.StatusUnsupportedMediaType)
				return
			}

			buf, _ := io.ReadAll(r.Body)
			var event webhookpubsub.Event
			if err := json.Unmarshal(buf, &event); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			s.lock.Lock()
			s.requests = append(s.requests, receivedRequest{
				r.URL.Path, r.Header.Get("Authorization"), event,
			})
			s.lock.Unlock()
			w.Write([]byte("Done"))
		},
	))
	t.Cleanup(s.Close)
	return s
}

func (s *testServer) received() []receivedRequest {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]receivedRequest{}, s.requests...)
}

func newTestService(t *testing.T) (webhookpubsub.Service, ports.EventBus) {
	bus := pubsub.NewService(0)
	svc, err := webhookpubsub.NewWebhookPubSubService(bus, time.Second)
	require.NoError(t, err)
	svc.Start()
	t.Cleanup(svc.Stop)
	return svc, bus
}

func TestNewWebhook(t *testing.T) {
	_, err := webhookpubsub.NewWebhook("unknown", "http://localhost/hook", "")
	require.ErrorIs(t, err, webhookpubsub.ErrInvalidTopic)

	_, err = webhookpubsub.NewWebhook(domain.TopicSendUserOpResult, "not an url", "")
	require.Error(t, err)

	hook, err := webhookpubsub.NewWebhook(
		domain.TopicSendUserOpResult, "http://localhost/hook", testSecret,
	)
	require.NoError(t, err)
	require.NotEmpty(t, hook.ID)
	require.True(t, hook.IsSecured())
	require.Empty(t, hook.Info().Secret)

	restored, err := webhookpubsub.NewWebhookFromBytes(hook.Serialize())
	require.NoError(t, err)
	require.Equal(t, hook, restored)
}

func TestNewWebhookPubSubService(t *testing.T) {
	_, err := webhookpubsub.NewWebhookPubSubService(nil, 0)
	require.ErrorIs(t, err, webhookpubsub.ErrNullEventBus)
}

func TestSubscriptions(t *testing.T) {
	svc, _ := newTestService(t)

	resultID, err := svc.Subscribe(
		domain.TopicPersonalSignResult, "http://localhost/result", testSecret,
	)
	require.NoError(t, err)
	anyID, err := svc.Subscribe(ports.AnyTopic, "http://localhost/any", "")
	require.NoError(t, err)

	_, err = svc.Subscribe(domain.EventAccountsChanged, "http://localhost/any", "")
	require.ErrorIs(t, err, webhookpubsub.ErrInvalidTopic)

	require.Len(t, svc.ListWebhooks(""), 2)
	require.Len(t, svc.ListWebhooks(domain.TopicPersonalSignResult), 2)
	require.Len(t, svc.ListWebhooks(domain.TopicSendUserOp), 1)
	for _, h := range svc.ListWebhooks("") {
		require.Empty(t, h.Secret)
	}

	require.NoError(t, svc.Unsubscribe(resultID))
	require.ErrorIs(t, svc.Unsubscribe(resultID), webhookpubsub.ErrWebhookNotFound)
	require.Len(t, svc.ListWebhooks(domain.TopicPersonalSignResult), 1)

	require.NoError(t, svc.Unsubscribe(anyID))
	require.Empty(t, svc.ListWebhooks(""))
}

func TestInvokeWebhooks(t *testing.T) {
	server := newTestServer(t)
	svc, bus := newTestService(t)

	_, err := svc.Subscribe(
		domain.TopicSendUserOpResult, server.URL+"/result", testSecret,
	)
	require.NoError(t, err)
	_, err = svc.Subscribe(ports.AnyTopic, server.URL+"/any", "")
	require.NoError(t, err)

	bus.Emit(domain.TopicSendUserOpResult, domain.NewOperationResult("0xtxhash", nil))
	bus.Emit(domain.TopicCloseConfirmation, nil)
	// not forwarded
	bus.Emit(domain.TopicConfirmationSession, "session")

	require.Eventually(t, func() bool {
		return len(server.received()) == 3
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.Len(t, server.received(), 3)

	byPath := make(map[string][]receivedRequest)
	for _, r := range server.received() {
		byPath[r.path] = append(byPath[r.path], r)
	}
	require.Len(t, byPath["/result"], 1)
	require.Len(t, byPath["/any"], 2)
	for _, r := range byPath["/any"] {
		require.Empty(t, r.authorization)
	}

	secured := byPath["/result"][0]
	require.Equal(t, domain.TopicSendUserOpResult, secured.event.Topic)
	payload, ok := secured.event.Payload.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "0xtxhash", payload["result"])

	tokenString := strings.TrimPrefix(secured.authorization, "Bearer ")
	token, err := jwt.Parse(tokenString, func(*jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)
	claims, ok := token.Claims.(jwt.MapClaims)
	require.True(t, ok)
	require.Equal(t, domain.TopicSendUserOpResult, claims["topic"])
}

func TestStopDetachesFromBus(t *testing.T) {
	server := newTestServer(t)
	bus := pubsub.NewService(0)
	svc, err := webhookpubsub.NewWebhookPubSubService(bus, time.Second)
	require.NoError(t, err)

	_, err = svc.Subscribe(ports.AnyTopic, server.URL+"/any", "")
	require.NoError(t, err)

	svc.Start()
	require.Equal(t, 1, bus.ListenerCount(ports.AnyTopic))

	bus.Emit(domain.TopicCloseConfirmation, nil)
	svc.Stop()
	require.Zero(t, bus.ListenerCount(ports.AnyTopic))
	require.Len(t, server.received(), 1)

	bus.Emit(domain.TopicCloseConfirmation, nil)
	time.Sleep(50 * time.Millisecond)
	require.Len(t, server.received(), 1)
}
