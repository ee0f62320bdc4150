package connector_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/btcconnect/connectkit/internal/core/domain"
	"github.com/btcconnect/connectkit/internal/core/ports"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type fakeEnv map[string]ports.WalletProvider

func (e fakeEnv) Lookup(path []string) (ports.WalletProvider, bool) {
	p, ok := e[strings.Join(path, ".")]
	return p, ok
}

type panickingEnv struct{}

func (panickingEnv) Lookup([]string) (ports.WalletProvider, bool) {
	panic("cannot read properties of undefined")
}

type call struct {
	method string
	args   []interface{}
}

type fakeProvider struct {
	lock      sync.Mutex
	responses map[string]string
	errors    map[string]error
	calls     []call
	handlers  map[string]map[string]ports.EventHandler
}

func newFakeProvider(responses map[string]string) *fakeProvider {
	return &fakeProvider{
		responses: responses,
		errors:    make(map[string]error),
		handlers:  make(map[string]map[string]ports.EventHandler),
	}
}

func (p *fakeProvider) Call(
	_ context.Context, method string, args ...interface{},
) (json.RawMessage, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.calls = append(p.calls, call{method, args})
	if err := p.errors[method]; err != nil {
		return nil, err
	}
	res, ok := p.responses[method]
	if !ok {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(res), nil
}

func (p *fakeProvider) On(event string, handler ports.EventHandler) string {
	p.lock.Lock()
	defer p.lock.Unlock()

	id := uuid.NewString()
	if p.handlers[event] == nil {
		p.handlers[event] = make(map[string]ports.EventHandler)
	}
	p.handlers[event][id] = handler
	return id
}

func (p *fakeProvider) RemoveListener(event, id string) {
	p.lock.Lock()
	defer p.lock.Unlock()
	delete(p.handlers[event], id)
}

func (p *fakeProvider) emit(event string, payload interface{}) {
	p.lock.Lock()
	handlers := make([]ports.EventHandler, 0, len(p.handlers[event]))
	for _, h := range p.handlers[event] {
		handlers = append(handlers, h)
	}
	p.lock.Unlock()

	for _, h := range handlers {
		h(payload)
	}
}

func (p *fakeProvider) lastCall(method string) (call, bool) {
	p.lock.Lock()
	defer p.lock.Unlock()

	for i := len(p.calls) - 1; i >= 0; i-- {
		if p.calls[i].method == method {
			return p.calls[i], true
		}
	}
	return call{}, false
}

type mockPairingClient struct {
	mock.Mock
}

func (m *mockPairingClient) IsAvailable() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *mockPairingClient) GetAddresses(
	ctx context.Context, network string, purposes []domain.AddressPurpose,
	message string,
) ([]domain.PairedAddress, error) {
	args := m.Called(ctx, network, purposes, message)
	var res []domain.PairedAddress
	if a := args.Get(0); a != nil {
		res = a.([]domain.PairedAddress)
	}
	return res, args.Error(1)
}

func (m *mockPairingClient) SignMessage(
	ctx context.Context, network, address, message string,
) (string, error) {
	args := m.Called(ctx, network, address, message)
	return args.String(0), args.Error(1)
}

func (m *mockPairingClient) SendBtcTransaction(
	ctx context.Context, network, sender string, recipients []ports.BTCRecipient,
) (string, error) {
	args := m.Called(ctx, network, sender, recipients)
	return args.String(0), args.Error(1)
}
