package domain

import "fmt"

// WalletMetadata is the static descriptor of a wallet brand.
type WalletMetadata struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	DownloadURL string `json:"downloadUrl"`
}

// Network is the Bitcoin network a wallet is currently using.
type Network string

const (
	NetworkLivenet Network = "livenet"
	NetworkTestnet Network = "testnet"
)

// ParseNetwork ...
func ParseNetwork(s string) (Network, error) {
	switch n := Network(s); n {
	case NetworkLivenet, NetworkTestnet:
		return n, nil
	}
	return "", fmt.Errorf("%w: unknown network %q", ErrInvalidConfiguration, s)
}

// SignatureType selects the message signing scheme requested to the wallet.
type SignatureType string

const (
	SignatureECDSA  SignatureType = "ecdsa"
	SignatureBIP322 SignatureType = "bip322-simple"
)

// SendOptions are the optional parameters of bitcoin and inscription sends.
type SendOptions struct {
	FeeRate float64 `json:"feeRate,omitempty"`
}

// InscriptionResult ...
type InscriptionResult struct {
	Txid string `json:"txid"`
}

// AddressPurpose is the role of an address returned by a paired wallet.
type AddressPurpose string

const (
	PurposePayment  AddressPurpose = "payment"
	PurposeOrdinals AddressPurpose = "ordinals"
)

// PairedAddress is an address discovered through an external pairing
// protocol.
type PairedAddress struct {
	Address   string         `json:"address"`
	PublicKey string         `json:"publicKey"`
	Purpose   AddressPurpose `json:"purpose"`
}

// Event names emitted by connectors.
const (
	EventAccountsChanged = "accountsChanged"
	EventNetworkChanged  = "networkChanged"
)
