package ports

import (
	"context"
	"encoding/json"

	"github.com/btcconnect/connectkit/internal/core/domain"
)

// EventHandler receives the payload of a wallet event.
type EventHandler func(payload interface{})

// Connector is the uniform capability set of a Bitcoin wallet integration.
type Connector interface {
	Metadata() domain.WalletMetadata
	// IsReady probes the environment for the wallet. It never fails.
	IsReady() bool
	RequestAccounts(ctx context.Context) ([]string, error)
	GetAccounts(ctx context.Context) ([]string, error)
	GetPublicKey(ctx context.Context) (string, error)
	SignMessage(
		ctx context.Context, message string, sigType domain.SignatureType,
	) (string, error)
	// GetProvider returns the located wallet provider, nil if absent.
	GetProvider() WalletProvider
	GetNetwork(ctx context.Context) (domain.Network, error)
	SwitchNetwork(ctx context.Context, network domain.Network) error
	SendBitcoin(
		ctx context.Context, toAddress string, satoshis uint64,
		opts *domain.SendOptions,
	) (string, error)
	SendInscription(
		ctx context.Context, address, inscriptionID string,
		opts *domain.SendOptions,
	) (*domain.InscriptionResult, error)
	// On registers a handler for the given event and returns its id.
	On(event string, handler EventHandler) string
	RemoveListener(event, id string)
	Disconnect(ctx context.Context) error
}

// WalletProvider is an injected wallet object, reached through a generic
// method call.
type WalletProvider interface {
	Call(ctx context.Context, method string, args ...interface{}) (json.RawMessage, error)
	On(event string, handler EventHandler) string
	RemoveListener(event, id string)
}

// Environment exposes the global objects injected by wallet extensions.
type Environment interface {
	// Lookup resolves a dotted path of at most two segments.
	Lookup(path []string) (WalletProvider, bool)
}

// BTCRecipient ...
type BTCRecipient struct {
	Address    string `json:"address"`
	AmountSats uint64 `json:"amountSats"`
}

// PairingClient talks to a wallet over an external, event driven pairing
// protocol. Cancellations are reported as domain.ErrUserRejected.
type PairingClient interface {
	IsAvailable() bool
	GetAddresses(
		ctx context.Context, network string, purposes []domain.AddressPurpose,
		message string,
	) ([]domain.PairedAddress, error)
	SignMessage(ctx context.Context, network, address, message string) (string, error)
	SendBtcTransaction(
		ctx context.Context, network, sender string, recipients []BTCRecipient,
	) (string, error)
}
