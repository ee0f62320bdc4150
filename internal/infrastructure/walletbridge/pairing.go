package walletbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/btcconnect/connectkit/internal/core/domain"
	"github.com/btcconnect/connectkit/internal/core/ports"
)

// IsAvailable returns whether the shim announced the pairing provider.
func (b *bridge) IsAvailable() bool {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.globals[PairingTarget]
}

func (b *bridge) GetAddresses(
	ctx context.Context, network string, purposes []domain.AddressPurpose,
	message string,
) ([]domain.PairedAddress, error) {
	raw, err := b.call(ctx, PairingTarget, "getAddresses", getAddressesParams{
		Purposes: purposes,
		Message:  message,
		Network:  pairingNetwork{network},
	})
	if err != nil {
		return nil, err
	}

	var res getAddressesResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("invalid getAddresses result: %w", err)
	}
	return res.Addresses, nil
}

func (b *bridge) SignMessage(
	ctx context.Context, network, address, message string,
) (string, error) {
	raw, err := b.call(ctx, PairingTarget, "signMessage", signMessageParams{
		Address: address,
		Message: message,
		Network: pairingNetwork{network},
	})
	if err != nil {
		return "", err
	}
	return unmarshalString(raw, "signMessage")
}

func (b *bridge) SendBtcTransaction(
	ctx context.Context, network, sender string, recipients []ports.BTCRecipient,
) (string, error) {
	raw, err := b.call(ctx, PairingTarget, "sendBtcTransaction", sendBtcTransactionParams{
		Recipients:    recipients,
		SenderAddress: sender,
		Network:       pairingNetwork{network},
	})
	if err != nil {
		return "", err
	}
	return unmarshalString(raw, "sendBtcTransaction")
}

func unmarshalString(raw json.RawMessage, method string) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("invalid %s result: %w", method, err)
	}
	return s, nil
}
