package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/btcconnect/connectkit/internal/core/application"
	"github.com/btcconnect/connectkit/internal/core/domain"
	"github.com/btcconnect/connectkit/internal/core/ports"
	"github.com/btcconnect/connectkit/internal/infrastructure/chainregistry"
	"github.com/btcconnect/connectkit/internal/infrastructure/evmsigner"
	"github.com/btcconnect/connectkit/internal/infrastructure/pubsub"
	"github.com/btcconnect/connectkit/internal/infrastructure/storage/db/inmemory"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testPrvkey   = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	btcAddress   = "tb1qw508d6qejxtdg4y5r3zarvary0c5xw7kxpjzsx"
	smartAddress = "0x1234567890aBcdEF1234567890ABCDEF12345678"
	connectorID  = "unisat"
	testChainID  = uint64(11155111)
	waitFor      = 2 * time.Second
	tick         = 10 * time.Millisecond
)

var (
	contractV1    = domain.AccountContract{Name: "BTC", Version: "1.0.0"}
	contractV2    = domain.AccountContract{Name: "BTC", Version: "2.0.0"}
	testContracts = domain.AccountContracts{
		"BTC": {
			{Version: "1.0.0", ChainIDs: []uint64{testChainID, 4200}},
			{Version: "2.0.0", ChainIDs: []uint64{5003}},
		},
	}
)

type testEnv struct {
	bus       ports.EventBus
	store     ports.StateStore
	aa        *mockAAService
	connector *mockConnector
	registry  application.SmartAccountRegistry
	gate      application.ConfirmationGate
	connect   application.ConnectService
	provider  application.EVMProvider
	sign      application.SignService
}

func newTestEnv(t *testing.T) *testEnv {
	chains, err := chainregistry.LoadRegistry("")
	require.NoError(t, err)

	bus := pubsub.NewService(0)
	store := inmemory.NewStateStore()
	aa := &mockAAService{}
	aa.On(
		"ResolveBTCAccount", mock.Anything, mock.Anything, mock.Anything,
		testPubKey(t), btcAddress,
	).Return(&ports.BTCAccountInfo{SmartAccountAddress: smartAddress}, nil)

	connector := newMockConnector(connectorID)
	connector.Mock.On("IsReady").Return(true)
	connector.Mock.On("RequestAccounts", mock.Anything).Return([]string{btcAddress}, nil)
	connector.Mock.On("GetAccounts", mock.Anything).Return([]string{btcAddress}, nil)
	connector.Mock.On("Disconnect", mock.Anything).Return(nil)

	factory := evmsigner.NewFactory(store, &fakeDialer{balance: "0x3e8"})
	registry := application.NewSmartAccountRegistry(factory, aa, store, testContracts)
	gate := application.NewConfirmationGate(bus, store)

	connectSvc, err := application.NewConnectService(
		[]ports.Connector{connector}, testContracts, chains, store, bus, registry,
	)
	require.NoError(t, err)

	env := &testEnv{
		bus:       bus,
		store:     store,
		aa:        aa,
		connector: connector,
		registry:  registry,
		gate:      gate,
		connect:   connectSvc,
		provider:  application.NewEVMProvider(connectSvc, gate),
		sign:      application.NewSignService(bus, gate, connectSvc),
	}
	t.Cleanup(connectSvc.Close)
	return env
}

func (e *testEnv) connectWallet(t *testing.T) {
	accounts, err := e.connect.Connect(context.Background(), connectorID)
	require.NoError(t, err)
	require.Equal(t, []string{btcAddress}, accounts)

	require.Eventually(t, func() bool {
		return e.connect.EVMAccount() == smartAddress
	}, waitFor, tick)
}

// countEvents counts the emissions on topic.
func (e *testEnv) countEvents(topic string) func() int {
	count := make(chan int, 1)
	count <- 0
	e.bus.On(topic, func(string, interface{}) {
		count <- (<-count + 1)
	})
	return func() int {
		n := <-count
		count <- n
		return n
	}
}

func testPubKey(t *testing.T) string {
	pubKey, err := newMockConnector("").GetPublicKey(context.Background())
	require.NoError(t, err)
	return pubKey
}

func ownerAddress(t *testing.T) string {
	key, err := crypto.HexToECDSA(testPrvkey)
	require.NoError(t, err)
	return crypto.PubkeyToAddress(key.PublicKey).Hex()
}
