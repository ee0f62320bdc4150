// Package evmsigner implements the chain facing JSON-RPC provider whose
// signatures are produced by a Bitcoin wallet.
package evmsigner

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/btcconnect/connectkit/internal/core/domain"
	"github.com/btcconnect/connectkit/internal/core/ports"
	"github.com/btcconnect/connectkit/internal/infrastructure/pubsub"
	"github.com/btcconnect/connectkit/pkg/ethutil"
	"github.com/ethereum/go-ethereum/common/hexutil"
	log "github.com/sirupsen/logrus"
)

const (
	// EventChainChanged is emitted with the new hex chain id after a
	// successful wallet_switchEthereumChain.
	EventChainChanged = "chainChanged"

	MethodSendTransaction     = "eth_sendTransaction"
	MethodAddEthereumChain    = "wallet_addEthereumChain"
	MethodWatchAsset          = "wallet_watchAsset"
	MethodSign                = "eth_sign"
	MethodAccounts            = "eth_accounts"
	MethodRequestAccounts     = "eth_requestAccounts"
	MethodChainID             = "eth_chainId"
	MethodPersonalSign        = "personal_sign"
	MethodSignTypedData       = "eth_signTypedData"
	MethodSignTypedDataV4     = "eth_signTypedData_v4"
	MethodSwitchEthereumChain = "wallet_switchEthereumChain"
)

var unsupportedMethods = map[string]bool{
	MethodSendTransaction:  true,
	MethodAddEthereumChain: true,
	MethodWatchAsset:       true,
	MethodSign:             true,
}

var nullResult = json.RawMessage("null")

type provider struct {
	store  ports.StateStore
	dialer ports.RPCDialer
	events ports.EventBus
	// chain switches are notified in order by a single goroutine
	notifier *chainNotifier

	lock         sync.RWMutex
	chainID      uint64
	supported    []uint64
	client       ports.RPCClient
	personalSign ports.SignFunc
	getPublicKey ports.PublicKeyFunc
}

// NewProvider returns a signer provider for the given chains. The initial
// chain is the persisted one when supported, the first supported chain
// otherwise.
func NewProvider(
	ctx context.Context, store ports.StateStore, dialer ports.RPCDialer,
	supportedChainIDs []uint64,
) (ports.EVMSigner, error) {
	if store == nil {
		return nil, fmt.Errorf("missing state store")
	}
	if dialer == nil {
		return nil, fmt.Errorf("missing rpc dialer")
	}

	state, err := store.Get(ctx)
	if err != nil {
		return nil, err
	}

	chainID := state.EVMChainID
	if !contains(supportedChainIDs, chainID) {
		if len(supportedChainIDs) <= 0 {
			return nil, domain.ErrNoSupportedChain
		}
		chainID = supportedChainIDs[0]
		if err := persistChainID(ctx, store, chainID); err != nil {
			return nil, err
		}
	}

	client, err := dialer.DialChain(ctx, chainID)
	if err != nil {
		return nil, err
	}

	events := pubsub.NewService(pubsub.DefaultMaxListeners)
	p := &provider{
		store:     store,
		dialer:    dialer,
		events:    events,
		notifier:  newChainNotifier(events),
		chainID:   chainID,
		supported: append([]uint64(nil), supportedChainIDs...),
		client:    client,
	}
	p.Unbind()
	return p, nil
}

func (p *provider) Request(
	ctx context.Context, args domain.RequestArguments,
) (json.RawMessage, error) {
	if unsupportedMethods[args.Method] {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedMethod, args.Method)
	}

	switch args.Method {
	case MethodAccounts, MethodRequestAccounts:
		return p.accounts(ctx)
	case MethodChainID:
		return json.Marshal(domain.HexChainID(p.ChainID()))
	case MethodPersonalSign:
		return p.signPersonalMessage(ctx, args)
	case MethodSignTypedData, MethodSignTypedDataV4:
		return p.signTypedData(ctx, args)
	case MethodSwitchEthereumChain:
		return p.switchChain(ctx, args)
	default:
		return p.forward(ctx, args)
	}
}

func (p *provider) ChainID() uint64 {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.chainID
}

func (p *provider) SupportedChainIDs() []uint64 {
	return append([]uint64(nil), p.supported...)
}

func (p *provider) Bind(personalSign ports.SignFunc, getPublicKey ports.PublicKeyFunc) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.personalSign = personalSign
	p.getPublicKey = getPublicKey
}

// Unbind restores the callbacks that fail with ErrNotConnected.
func (p *provider) Unbind() {
	p.Bind(
		func(context.Context, string) (string, error) {
			return "", domain.ErrNotConnected
		},
		func(context.Context) (string, error) {
			return "", domain.ErrNotConnected
		},
	)
}

func (p *provider) On(event string, handler ports.EventHandler) string {
	return p.events.On(event, func(_ string, payload interface{}) {
		handler(payload)
	})
}

func (p *provider) RemoveListener(event, id string) {
	p.events.Off(event, id)
}

func (p *provider) Close() {
	p.notifier.stop()
	p.events.RemoveAllListeners(EventChainChanged)

	p.lock.Lock()
	defer p.lock.Unlock()
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
}

func (p *provider) accounts(ctx context.Context) (json.RawMessage, error) {
	p.lock.RLock()
	getPublicKey := p.getPublicKey
	p.lock.RUnlock()

	pubKey, err := getPublicKey(ctx)
	if err != nil {
		return nil, err
	}
	address, err := ethutil.PubKeyToAddress(pubKey)
	if err != nil {
		return nil, err
	}
	return json.Marshal([]string{address})
}

func (p *provider) signPersonalMessage(
	ctx context.Context, args domain.RequestArguments,
) (json.RawMessage, error) {
	var message string
	if err := args.Param(0, &message); err != nil {
		return nil, err
	}
	return p.sign(ctx, ethutil.PersonalMessageHash(message))
}

// signTypedData accepts both the [address, typedData] layout of v4 and the
// [typedData, address] layout of the legacy method.
func (p *provider) signTypedData(
	ctx context.Context, args domain.RequestArguments,
) (json.RawMessage, error) {
	var lastErr error = fmt.Errorf("%w: missing typed data", domain.ErrInvalidParams)
	for _, i := range []int{1, 0} {
		if i >= len(args.Params) {
			continue
		}
		hash, err := ethutil.TypedDataHash(args.Params[i])
		if err != nil {
			lastErr = fmt.Errorf("%w: %s", domain.ErrInvalidParams, err)
			continue
		}
		return p.sign(ctx, hash)
	}
	return nil, lastErr
}

func (p *provider) sign(ctx context.Context, hash []byte) (json.RawMessage, error) {
	p.lock.RLock()
	personalSign := p.personalSign
	p.lock.RUnlock()

	compactSig, err := personalSign(ctx, hexutil.Encode(hash))
	if err != nil {
		return nil, err
	}
	signature, err := ethutil.ConvertSignature(compactSig)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrSignError, err)
	}
	return json.Marshal(signature)
}

type switchChainParams struct {
	ChainID json.RawMessage `json:"chainId"`
}

func (p *provider) switchChain(
	ctx context.Context, args domain.RequestArguments,
) (json.RawMessage, error) {
	chainID, err := parseSwitchChainParams(args)
	if err != nil {
		return nil, err
	}
	if !contains(p.supported, chainID) {
		return nil, fmt.Errorf("%w: %d", domain.ErrUnsupportedChain, chainID)
	}

	client, err := p.dialer.DialChain(ctx, chainID)
	if err != nil {
		return nil, err
	}
	if err := persistChainID(ctx, p.store, chainID); err != nil {
		client.Close()
		return nil, err
	}

	p.lock.Lock()
	prevClient := p.client
	p.chainID = chainID
	p.client = client
	p.notifier.notify(chainID)
	p.lock.Unlock()

	if prevClient != nil {
		prevClient.Close()
	}

	log.WithField("chain_id", chainID).Debug("signer switched chain")

	return nullResult, nil
}

func (p *provider) forward(
	ctx context.Context, args domain.RequestArguments,
) (json.RawMessage, error) {
	p.lock.RLock()
	client := p.client
	p.lock.RUnlock()

	if client == nil {
		return nil, domain.ErrDisconnected
	}

	params := make([]interface{}, 0, len(args.Params))
	for _, param := range args.Params {
		params = append(params, param)
	}

	var result json.RawMessage
	if err := client.CallContext(ctx, &result, args.Method, params...); err != nil {
		return nil, err
	}
	if result == nil {
		return nullResult, nil
	}
	return result, nil
}

func parseSwitchChainParams(args domain.RequestArguments) (uint64, error) {
	var params switchChainParams
	if err := args.Param(0, &params); err != nil {
		return 0, err
	}
	if len(params.ChainID) <= 0 {
		return 0, fmt.Errorf("%w: missing chainId", domain.ErrInvalidParams)
	}

	// chainId is usually a hex string, plain numbers are tolerated
	var quantity string
	if err := json.Unmarshal(params.ChainID, &quantity); err != nil {
		var number json.Number
		if err := json.Unmarshal(params.ChainID, &number); err != nil {
			return 0, fmt.Errorf("%w: malformed chainId", domain.ErrInvalidParams)
		}
		quantity = number.String()
	}

	chainID, err := ethutil.ParseQuantity(quantity)
	if err != nil || quantity == "" || chainID.Sign() <= 0 || !chainID.IsUint64() {
		return 0, fmt.Errorf(
			"%w: invalid chainId %s", domain.ErrInvalidParams, strconv.Quote(quantity),
		)
	}
	return chainID.Uint64(), nil
}

func persistChainID(ctx context.Context, store ports.StateStore, chainID uint64) error {
	return store.Update(ctx, func(s *domain.State) (*domain.State, error) {
		s.EVMChainID = chainID
		return s, nil
	})
}

func contains(chainIDs []uint64, chainID uint64) bool {
	for _, id := range chainIDs {
		if id == chainID {
			return true
		}
	}
	return false
}
