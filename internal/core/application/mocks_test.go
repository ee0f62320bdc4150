package application_test

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"sync"

	"github.com/btcconnect/connectkit/internal/core/domain"
	"github.com/btcconnect/connectkit/internal/core/ports"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/mock"
)

// **** AA backend ****

type mockAAService struct {
	mock.Mock
}

func (m *mockAAService) ResolveBTCAccount(
	ctx context.Context, chainID uint64, contract domain.AccountContract,
	btcPublicKey, btcAddress string,
) (*ports.BTCAccountInfo, error) {
	args := m.Called(ctx, chainID, contract, btcPublicKey, btcAddress)

	var res *ports.BTCAccountInfo
	if a := args.Get(0); a != nil {
		info := *(a.(*ports.BTCAccountInfo))
		res = &info
	}
	return res, args.Error(1)
}

func (m *mockAAService) DeserializeUserOp(
	ctx context.Context, chainID uint64, account ports.AccountRef, userOp domain.UserOp,
) ([]domain.DeserializedTx, error) {
	args := m.Called(ctx, chainID, account, userOp)

	var res []domain.DeserializedTx
	if a := args.Get(0); a != nil {
		res = a.([]domain.DeserializedTx)
	}
	return res, args.Error(1)
}

func (m *mockAAService) GetFeeQuotes(
	ctx context.Context, chainID uint64, account ports.AccountRef, txs []domain.Transaction,
) (*domain.FeeQuotesResponse, error) {
	args := m.Called(ctx, chainID, account, txs)

	var res *domain.FeeQuotesResponse
	if a := args.Get(0); a != nil {
		res = a.(*domain.FeeQuotesResponse)
	}
	return res, args.Error(1)
}

func (m *mockAAService) BuildUserOp(
	ctx context.Context, chainID uint64, account ports.AccountRef, params domain.UserOpParams,
) (*domain.UserOpBundle, error) {
	args := m.Called(ctx, chainID, account, params)

	var res *domain.UserOpBundle
	if a := args.Get(0); a != nil {
		res = a.(*domain.UserOpBundle)
	}
	return res, args.Error(1)
}

func (m *mockAAService) SendUserOp(
	ctx context.Context, chainID uint64, account ports.AccountRef, userOp domain.UserOp,
) (string, error) {
	args := m.Called(ctx, chainID, account, userOp)

	var res string
	if a := args.Get(0); a != nil {
		res = a.(string)
	}
	return res, args.Error(1)
}

// **** Connector ****

// mockConnector signs with a real key and dispatches its events, the rest
// is mocked.
type mockConnector struct {
	mock.Mock
	id     string
	prvkey string

	lock     sync.Mutex
	handlers map[string]map[string]ports.EventHandler
	nextID   int
}

func newMockConnector(id string) *mockConnector {
	return &mockConnector{
		id:       id,
		prvkey:   testPrvkey,
		handlers: make(map[string]map[string]ports.EventHandler),
	}
}

func (m *mockConnector) Metadata() domain.WalletMetadata {
	return domain.WalletMetadata{ID: m.id, Name: m.id}
}

func (m *mockConnector) IsReady() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *mockConnector) RequestAccounts(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)

	var res []string
	if a := args.Get(0); a != nil {
		res = a.([]string)
	}
	return res, args.Error(1)
}

func (m *mockConnector) GetAccounts(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)

	var res []string
	if a := args.Get(0); a != nil {
		res = a.([]string)
	}
	return res, args.Error(1)
}

func (m *mockConnector) GetPublicKey(context.Context) (string, error) {
	key, err := crypto.HexToECDSA(m.prvkey)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(crypto.CompressPubkey(&key.PublicKey)), nil
}

func (m *mockConnector) SignMessage(
	_ context.Context, message string, _ domain.SignatureType,
) (string, error) {
	key, err := crypto.HexToECDSA(m.prvkey)
	if err != nil {
		return "", err
	}
	digest, err := hexutil.Decode(message)
	if err != nil {
		return "", err
	}
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return "", err
	}
	compact := append([]byte{27 + 4 + sig[64]}, sig[:64]...)
	return base64.StdEncoding.EncodeToString(compact), nil
}

func (m *mockConnector) GetProvider() ports.WalletProvider {
	return nil
}

func (m *mockConnector) GetNetwork(ctx context.Context) (domain.Network, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.Network), args.Error(1)
}

func (m *mockConnector) SwitchNetwork(ctx context.Context, network domain.Network) error {
	args := m.Called(ctx, network)
	return args.Error(0)
}

func (m *mockConnector) SendBitcoin(
	ctx context.Context, toAddress string, satoshis uint64, opts *domain.SendOptions,
) (string, error) {
	args := m.Called(ctx, toAddress, satoshis, opts)
	return args.String(0), args.Error(1)
}

func (m *mockConnector) SendInscription(
	ctx context.Context, address, inscriptionID string, opts *domain.SendOptions,
) (*domain.InscriptionResult, error) {
	args := m.Called(ctx, address, inscriptionID, opts)

	var res *domain.InscriptionResult
	if a := args.Get(0); a != nil {
		res = a.(*domain.InscriptionResult)
	}
	return res, args.Error(1)
}

func (m *mockConnector) On(event string, handler ports.EventHandler) string {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.nextID++
	id := hexutil.EncodeUint64(uint64(m.nextID))
	if m.handlers[event] == nil {
		m.handlers[event] = make(map[string]ports.EventHandler)
	}
	m.handlers[event][id] = handler
	return id
}

func (m *mockConnector) RemoveListener(event, id string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.handlers[event], id)
}

func (m *mockConnector) Disconnect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockConnector) listenerCount(event string) int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.handlers[event])
}

func (m *mockConnector) emit(event string, payload interface{}) {
	m.lock.Lock()
	handlers := make([]ports.EventHandler, 0, len(m.handlers[event]))
	for _, h := range m.handlers[event] {
		handlers = append(handlers, h)
	}
	m.lock.Unlock()

	for _, h := range handlers {
		h(payload)
	}
}

// **** Chain RPC ****

type fakeClient struct {
	balance string
}

func (c *fakeClient) CallContext(
	_ context.Context, result interface{}, method string, _ ...interface{},
) error {
	switch method {
	case "eth_getBalance":
		return json.Unmarshal([]byte(`"`+c.balance+`"`), result)
	case "eth_blockNumber":
		return json.Unmarshal([]byte(`"0x1"`), result)
	}
	return domain.NewRPCError(-32601, "the method %s does not exist", method)
}

func (c *fakeClient) Close() {}

type fakeDialer struct {
	balance string
}

func (d *fakeDialer) DialChain(context.Context, uint64) (ports.RPCClient, error) {
	return &fakeClient{d.balance}, nil
}
