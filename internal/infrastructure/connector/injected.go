// Package connector implements the Bitcoin wallet integrations: wallets
// injecting a provider object in the page and wallets reached through an
// external pairing protocol.
package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/btcconnect/connectkit/internal/core/domain"
	"github.com/btcconnect/connectkit/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

const maxPathSegments = 2

// InjectedConnector talks to the wallet provider found at a dotted path of
// the environment, like "okxwallet.bitcoin".
type InjectedConnector struct {
	metadata domain.WalletMetadata
	path     []string
	env      ports.Environment
}

func NewInjectedConnector(
	metadata domain.WalletMetadata, path string, env ports.Environment,
) (*InjectedConnector, error) {
	segments, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	if env == nil {
		return nil, fmt.Errorf("%w: missing environment", domain.ErrInvalidConfiguration)
	}
	return &InjectedConnector{metadata, segments, env}, nil
}

func (c *InjectedConnector) Metadata() domain.WalletMetadata {
	return c.metadata
}

func (c *InjectedConnector) Path() string {
	return strings.Join(c.path, ".")
}

func (c *InjectedConnector) IsReady() bool {
	return c.GetProvider() != nil
}

func (c *InjectedConnector) GetProvider() (provider ports.WalletProvider) {
	defer func() {
		if r := recover(); r != nil {
			log.Warnf("%s provider lookup failed: %v", c.metadata.Name, r)
			provider = nil
		}
	}()

	p, ok := c.env.Lookup(c.path)
	if !ok {
		return nil
	}
	return p
}

func (c *InjectedConnector) RequestAccounts(ctx context.Context) ([]string, error) {
	accounts := make([]string, 0)
	if err := c.call(ctx, &accounts, "requestAccounts"); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (c *InjectedConnector) GetAccounts(ctx context.Context) ([]string, error) {
	accounts := make([]string, 0)
	if err := c.call(ctx, &accounts, "getAccounts"); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (c *InjectedConnector) GetPublicKey(ctx context.Context) (string, error) {
	var pubKey string
	if err := c.call(ctx, &pubKey, "getPublicKey"); err != nil {
		return "", err
	}
	return pubKey, nil
}

func (c *InjectedConnector) SignMessage(
	ctx context.Context, message string, sigType domain.SignatureType,
) (string, error) {
	accounts, err := c.GetAccounts(ctx)
	if err != nil {
		return "", err
	}
	if len(accounts) <= 0 {
		return "", fmt.Errorf("%w: %s", domain.ErrNotConnected, c.metadata.Name)
	}

	args := []interface{}{message}
	if sigType != "" {
		args = append(args, sigType)
	}

	var signature string
	if err := c.call(ctx, &signature, "signMessage", args...); err != nil {
		return "", err
	}
	return signature, nil
}

func (c *InjectedConnector) GetNetwork(ctx context.Context) (domain.Network, error) {
	var network string
	if err := c.call(ctx, &network, "getNetwork"); err != nil {
		return "", err
	}
	return domain.ParseNetwork(network)
}

func (c *InjectedConnector) SwitchNetwork(
	ctx context.Context, network domain.Network,
) error {
	return c.call(ctx, nil, "switchNetwork", network)
}

func (c *InjectedConnector) SendBitcoin(
	ctx context.Context, toAddress string, satoshis uint64, opts *domain.SendOptions,
) (string, error) {
	args := []interface{}{toAddress, satoshis}
	if opts != nil {
		args = append(args, opts)
	}

	var txid string
	if err := c.call(ctx, &txid, "sendBitcoin", args...); err != nil {
		return "", err
	}
	return txid, nil
}

// SendInscription accepts both a bare txid and a {txid} object from the
// wallet.
func (c *InjectedConnector) SendInscription(
	ctx context.Context, address, inscriptionID string, opts *domain.SendOptions,
) (*domain.InscriptionResult, error) {
	args := []interface{}{address, inscriptionID}
	if opts != nil {
		args = append(args, opts)
	}

	var raw json.RawMessage
	if err := c.call(ctx, &raw, "sendInscription", args...); err != nil {
		return nil, err
	}

	var txid string
	if err := json.Unmarshal(raw, &txid); err == nil {
		return &domain.InscriptionResult{Txid: txid}, nil
	}
	var result domain.InscriptionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("invalid sendInscription result: %w", err)
	}
	return &result, nil
}

// On subscribes to the events of the provider. An empty id is returned if
// the wallet is not installed.
func (c *InjectedConnector) On(event string, handler ports.EventHandler) string {
	provider := c.GetProvider()
	if provider == nil {
		return ""
	}
	return provider.On(event, handler)
}

func (c *InjectedConnector) RemoveListener(event, id string) {
	if provider := c.GetProvider(); provider != nil && id != "" {
		provider.RemoveListener(event, id)
	}
}

// Disconnect is a local cleanup, wallet authorizations are not revoked.
func (c *InjectedConnector) Disconnect(context.Context) error {
	return nil
}

func (c *InjectedConnector) providerOrFail() (ports.WalletProvider, error) {
	provider := c.GetProvider()
	if provider == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotInstalled, c.metadata.Name)
	}
	return provider, nil
}

func (c *InjectedConnector) call(
	ctx context.Context, result interface{}, method string, args ...interface{},
) error {
	provider, err := c.providerOrFail()
	if err != nil {
		return err
	}

	raw, err := provider.Call(ctx, method, args...)
	if err != nil {
		return err
	}
	if result == nil || len(raw) <= 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("invalid %s result: %w", method, err)
	}
	return nil
}

func parsePath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty provider path", domain.ErrInvalidConfiguration)
	}
	segments := strings.Split(path, ".")
	if len(segments) > maxPathSegments {
		return nil, fmt.Errorf(
			"%w: provider path %s has more than %d segments",
			domain.ErrInvalidConfiguration, path, maxPathSegments,
		)
	}
	for _, s := range segments {
		if s == "" {
			return nil, fmt.Errorf(
				"%w: malformed provider path %s", domain.ErrInvalidConfiguration, path,
			)
		}
	}
	return segments, nil
}
