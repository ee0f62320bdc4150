package ports

import (
	"context"
	"encoding/json"

	"github.com/btcconnect/connectkit/internal/core/domain"
)

// BTCAccountInfo is the smart account resolved for a Bitcoin identity.
type BTCAccountInfo struct {
	Name                  string `json:"name"`
	Version               string `json:"version"`
	ChainID               uint64 `json:"chainId"`
	OwnerAddress          string `json:"ownerAddress"`
	SmartAccountAddress   string `json:"smartAccountAddress"`
	BTCPublicKey          string `json:"btcPublicKey"`
	BTCAddress            string `json:"btcAddress"`
	IsDeployed            bool   `json:"isDeployed"`
	FactoryAddress        string `json:"factoryAddress,omitempty"`
	EntryPointAddress     string `json:"entryPointAddress,omitempty"`
	ImplementationAddress string `json:"implementationAddress,omitempty"`
}

// AccountRef identifies a smart account on the AA backend.
type AccountRef struct {
	Name         string `json:"name"`
	Version      string `json:"version"`
	OwnerAddress string `json:"ownerAddress"`
}

// AAService is the remote account-abstraction backend.
type AAService interface {
	ResolveBTCAccount(
		ctx context.Context, chainID uint64, contract domain.AccountContract,
		btcPublicKey, btcAddress string,
	) (*BTCAccountInfo, error)
	DeserializeUserOp(
		ctx context.Context, chainID uint64, account AccountRef, userOp domain.UserOp,
	) ([]domain.DeserializedTx, error)
	GetFeeQuotes(
		ctx context.Context, chainID uint64, account AccountRef, txs []domain.Transaction,
	) (*domain.FeeQuotesResponse, error)
	BuildUserOp(
		ctx context.Context, chainID uint64, account AccountRef, params domain.UserOpParams,
	) (*domain.UserOpBundle, error)
	SendUserOp(
		ctx context.Context, chainID uint64, account AccountRef, userOp domain.UserOp,
	) (string, error)
}

// RPCClient is a JSON-RPC client bound to one endpoint.
type RPCClient interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
	Close()
}

// RPCDialer opens chain scoped JSON-RPC clients.
type RPCDialer interface {
	DialChain(ctx context.Context, chainID uint64) (RPCClient, error)
}

// ChainRegistry maps chain ids to their metadata.
type ChainRegistry interface {
	Get(chainID uint64) (domain.ChainInfo, bool)
	List() []domain.ChainInfo
}

// SignFunc signs a 0x prefixed hex digest with the Bitcoin wallet and
// returns its base64 compact signature.
type SignFunc func(ctx context.Context, hash string) (string, error)

// PublicKeyFunc returns the hex public key of the bound Bitcoin account.
type PublicKeyFunc func(ctx context.Context) (string, error)

// EVMSigner is the chain facing JSON-RPC shim bound to a Bitcoin wallet.
type EVMSigner interface {
	Request(ctx context.Context, args domain.RequestArguments) (json.RawMessage, error)
	ChainID() uint64
	SupportedChainIDs() []uint64
	Bind(personalSign SignFunc, getPublicKey PublicKeyFunc)
	Unbind()
	On(event string, handler EventHandler) string
	RemoveListener(event, id string)
	Close()
}

// EVMSignerFactory creates signer providers for a set of supported chains.
type EVMSignerFactory interface {
	NewSigner(ctx context.Context, supportedChainIDs []uint64) (EVMSigner, error)
}
