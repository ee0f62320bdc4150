package connector

import (
	"context"
	"fmt"
	"sync"

	"github.com/btcconnect/connectkit/internal/core/domain"
	"github.com/btcconnect/connectkit/internal/core/ports"
	"github.com/btcconnect/connectkit/internal/infrastructure/pubsub"
	"github.com/btcconnect/connectkit/pkg/ethutil"
	log "github.com/sirupsen/logrus"
)

const (
	PairedNetworkMainnet = "Mainnet"
	PairedNetworkTestnet = "Testnet"

	pairedAddressesKeyPrefix = "btc-connect-xverse-addresses-"
	pairedAddressesMessage   = "Address for receiving Ordinals and payments"
	pairedMaxListeners       = 100
)

var pairedPurposes = []domain.AddressPurpose{
	domain.PurposePayment, domain.PurposeOrdinals,
}

// PairedConnector reaches a wallet through an external pairing protocol.
// Discovered addresses are persisted per network, the first one is the
// account used for signing and sending.
type PairedConnector struct {
	metadata domain.WalletMetadata
	client   ports.PairingClient
	store    ports.StateStore
	events   ports.EventBus

	lock    sync.RWMutex
	network string
}

func NewPairedConnector(
	metadata domain.WalletMetadata, client ports.PairingClient,
	store ports.StateStore, network string,
) (*PairedConnector, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: missing pairing client", domain.ErrInvalidConfiguration)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: missing state store", domain.ErrInvalidConfiguration)
	}
	if network == "" {
		network = PairedNetworkMainnet
	}
	if network != PairedNetworkMainnet && network != PairedNetworkTestnet {
		return nil, fmt.Errorf(
			"%w: unknown paired network %s", domain.ErrInvalidConfiguration, network,
		)
	}

	return &PairedConnector{
		metadata: metadata,
		client:   client,
		store:    store,
		events:   pubsub.NewService(pairedMaxListeners),
		network:  network,
	}, nil
}

func (c *PairedConnector) Metadata() domain.WalletMetadata {
	return c.metadata
}

func (c *PairedConnector) IsReady() (ready bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Warnf("%s availability check failed: %v", c.metadata.Name, r)
			ready = false
		}
	}()
	return c.client.IsAvailable()
}

func (c *PairedConnector) checkReady() error {
	if !c.IsReady() {
		return fmt.Errorf("%w: %s", domain.ErrNotInstalled, c.metadata.Name)
	}
	return nil
}

// GetProvider always returns nil, paired wallets aren't injected objects.
func (c *PairedConnector) GetProvider() ports.WalletProvider {
	return nil
}

func (c *PairedConnector) RequestAccounts(ctx context.Context) ([]string, error) {
	if err := c.checkReady(); err != nil {
		return nil, err
	}

	network := c.currentNetwork()
	addresses, err := c.loadAddresses(ctx, network)
	if err != nil {
		return nil, err
	}
	return toAddressList(addresses), nil
}

func (c *PairedConnector) GetAccounts(ctx context.Context) ([]string, error) {
	if err := c.checkReady(); err != nil {
		return nil, err
	}
	addresses, err := c.storedAddresses(ctx, c.currentNetwork())
	if err != nil {
		return nil, err
	}
	return toAddressList(addresses), nil
}

func (c *PairedConnector) GetPublicKey(ctx context.Context) (string, error) {
	if err := c.checkReady(); err != nil {
		return "", err
	}
	addresses, err := c.storedAddresses(ctx, c.currentNetwork())
	if err != nil {
		return "", err
	}
	if len(addresses) <= 0 {
		return "", nil
	}
	return addresses[0].PublicKey, nil
}

// SignMessage signs with the first address. Headers returned for segwit
// address types are folded into the compressed key range.
func (c *PairedConnector) SignMessage(
	ctx context.Context, message string, _ domain.SignatureType,
) (string, error) {
	network := c.currentNetwork()
	addresses, err := c.storedAddresses(ctx, network)
	if err != nil {
		return "", err
	}
	if len(addresses) <= 0 {
		return "", fmt.Errorf("%w: %s", domain.ErrNotConnected, c.metadata.Name)
	}

	signature, err := c.client.SignMessage(ctx, network, addresses[0].Address, message)
	if err != nil {
		return "", err
	}
	return ethutil.NormalizeCompactHeader(signature)
}

func (c *PairedConnector) GetNetwork(context.Context) (domain.Network, error) {
	if err := c.checkReady(); err != nil {
		return "", err
	}
	if c.currentNetwork() == PairedNetworkMainnet {
		return domain.NetworkLivenet, nil
	}
	return domain.NetworkTestnet, nil
}

// SwitchNetwork derives the addresses of the target network, caches them
// and notifies them as the new accounts.
func (c *PairedConnector) SwitchNetwork(
	ctx context.Context, network domain.Network,
) error {
	target := PairedNetworkMainnet
	switch network {
	case domain.NetworkLivenet:
	case domain.NetworkTestnet:
		target = PairedNetworkTestnet
	default:
		return fmt.Errorf("%w: unknown network %q", domain.ErrInvalidConfiguration, network)
	}

	addresses, err := c.loadAddresses(ctx, target)
	if err != nil {
		return err
	}

	c.lock.Lock()
	c.network = target
	c.lock.Unlock()

	log.Debugf("%s switched to network %s", c.metadata.Name, target)
	c.events.Emit(domain.EventAccountsChanged, toAddressList(addresses))
	return nil
}

func (c *PairedConnector) SendBitcoin(
	ctx context.Context, toAddress string, satoshis uint64, _ *domain.SendOptions,
) (string, error) {
	network := c.currentNetwork()
	addresses, err := c.storedAddresses(ctx, network)
	if err != nil {
		return "", err
	}
	if len(addresses) <= 0 {
		return "", fmt.Errorf("%w: %s", domain.ErrNotConnected, c.metadata.Name)
	}

	return c.client.SendBtcTransaction(
		ctx, network, addresses[0].Address,
		[]ports.BTCRecipient{{Address: toAddress, AmountSats: satoshis}},
	)
}

func (c *PairedConnector) SendInscription(
	context.Context, string, string, *domain.SendOptions,
) (*domain.InscriptionResult, error) {
	return nil, domain.ErrUnsupportedMethod
}

func (c *PairedConnector) On(event string, handler ports.EventHandler) string {
	return c.events.On(event, func(_ string, payload interface{}) {
		handler(payload)
	})
}

func (c *PairedConnector) RemoveListener(event, id string) {
	c.events.Off(event, id)
}

// Disconnect forgets the addresses of every network.
func (c *PairedConnector) Disconnect(ctx context.Context) error {
	return c.store.Update(ctx, func(s *domain.State) (*domain.State, error) {
		s.ClearPairedAddresses()
		return s, nil
	})
}

func (c *PairedConnector) currentNetwork() string {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.network
}

func (c *PairedConnector) loadAddresses(
	ctx context.Context, network string,
) ([]domain.PairedAddress, error) {
	addresses, err := c.client.GetAddresses(
		ctx, network, pairedPurposes, pairedAddressesMessage,
	)
	if err != nil {
		return nil, err
	}

	if err := c.store.Update(ctx, func(s *domain.State) (*domain.State, error) {
		s.SetPairedAddresses(pairedAddressesKey(network), addresses)
		return s, nil
	}); err != nil {
		return nil, err
	}
	return addresses, nil
}

func (c *PairedConnector) storedAddresses(
	ctx context.Context, network string,
) ([]domain.PairedAddress, error) {
	state, err := c.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	return state.PairedAddressesFor(pairedAddressesKey(network)), nil
}

func pairedAddressesKey(network string) string {
	return pairedAddressesKeyPrefix + network
}

func toAddressList(addresses []domain.PairedAddress) []string {
	list := make([]string, 0, len(addresses))
	for _, a := range addresses {
		list = append(list, a.Address)
	}
	return list
}
