package httpinterface

import (
	"sync"

	"github.com/btcconnect/connectkit/internal/core/domain"
	"github.com/btcconnect/connectkit/internal/core/ports"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultConfirmed = "confirmed"
	resultRejected  = "rejected"
	resultFailed    = "failed"
)

var (
	requestTopics = map[string]bool{
		domain.TopicSendUserOp:    true,
		domain.TopicPersonalSign:  true,
		domain.TopicSignTypedData: true,
	}
	resultTopics = map[string]string{
		domain.TopicSendUserOpResult:    domain.TopicSendUserOp,
		domain.TopicPersonalSignResult:  domain.TopicPersonalSign,
		domain.TopicSignTypedDataResult: domain.TopicSignTypedData,
	}
)

// operationMetrics counts confirmable operations by watching every topic of
// the event bus.
type operationMetrics struct {
	requested *prometheus.CounterVec
	resolved  *prometheus.CounterVec
	closed    prometheus.Counter

	lock       sync.Mutex
	listenerID string
}

func newOperationMetrics(registry prometheus.Registerer) (*operationMetrics, error) {
	m := &operationMetrics{
		requested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "connectkit_operations_requested_total",
			Help: "Number of confirmable operations emitted for confirmation",
		}, []string{"operation"}),
		resolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "connectkit_operations_resolved_total",
			Help: "Number of confirmable operations resolved, by result",
		}, []string{"operation", "result"}),
		closed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "connectkit_confirmations_closed_total",
			Help: "Number of times pending confirmations were torn down",
		}),
	}
	for _, c := range []prometheus.Collector{m.requested, m.resolved, m.closed} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *operationMetrics) subscribe(bus ports.EventBus) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.listenerID != "" {
		return
	}
	m.listenerID = bus.On(ports.AnyTopic, m.observe)
}

func (m *operationMetrics) unsubscribe(bus ports.EventBus) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.listenerID == "" {
		return
	}
	bus.Off(ports.AnyTopic, m.listenerID)
	m.listenerID = ""
}

func (m *operationMetrics) observe(topic string, payload interface{}) {
	if requestTopics[topic] {
		m.requested.WithLabelValues(topic).Inc()
		return
	}
	if topic == domain.TopicCloseConfirmation {
		m.closed.Inc()
		return
	}
	op, ok := resultTopics[topic]
	if !ok {
		return
	}

	result := resultConfirmed
	if res, ok := payload.(domain.OperationResult); ok && res.Error != nil {
		result = resultFailed
		if res.Error.Code == domain.CodeUserRejected {
			result = resultRejected
		}
	}
	m.resolved.WithLabelValues(op, result).Inc()
}
