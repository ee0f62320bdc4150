package connector

import (
	"github.com/btcconnect/connectkit/internal/core/domain"
	"github.com/btcconnect/connectkit/internal/core/ports"
)

const (
	OKXWalletID         = "okx"
	UnisatWalletID      = "unisat"
	BitgetWalletID      = "bitget"
	BybitWalletID       = "bybit"
	TokenPocketWalletID = "tokenpocket"
	TomoWalletID        = "tomo"
	WizzWalletID        = "wizz"
	XverseWalletID      = "xverse"
)

type injectedWallet struct {
	metadata domain.WalletMetadata
	path     string
}

// The order is the one wallets are listed to the user.
var injectedWallets = []injectedWallet{
	{
		domain.WalletMetadata{
			ID:          OKXWalletID,
			Name:        "OKX Wallet",
			Icon:        "icons/okx.svg",
			DownloadURL: "https://www.okx.com/download",
		},
		"okxwallet.bitcoin",
	},
	{
		domain.WalletMetadata{
			ID:          UnisatWalletID,
			Name:        "Unisat Wallet",
			Icon:        "icons/unisat.svg",
			DownloadURL: "https://unisat.io",
		},
		"unisat",
	},
	{
		domain.WalletMetadata{
			ID:          BitgetWalletID,
			Name:        "Bitget Wallet",
			Icon:        "icons/bitget.svg",
			DownloadURL: "https://web3.bitget.com/en/wallet-download",
		},
		"bitkeep.unisat",
	},
	{
		domain.WalletMetadata{
			ID:          BybitWalletID,
			Name:        "Bybit Wallet",
			Icon:        "icons/bybit.svg",
			DownloadURL: "https://www.bybit.com/download/",
		},
		"bybitWallet.bitcoin",
	},
	{
		domain.WalletMetadata{
			ID:          TokenPocketWalletID,
			Name:        "TokenPocket",
			Icon:        "icons/tokenpocket.svg",
			DownloadURL: "https://www.tokenpocket.pro/en/download/app",
		},
		"tokenpocket.bitcoin",
	},
	{
		domain.WalletMetadata{
			ID:          TomoWalletID,
			Name:        "TOMO Wallet",
			Icon:        "icons/tomo.svg",
			DownloadURL: "https://tomo.inc/",
		},
		"tomo_btc",
	},
	{
		domain.WalletMetadata{
			ID:          WizzWalletID,
			Name:        "Wizz Wallet",
			Icon:        "icons/wizz.svg",
			DownloadURL: "https://wizzwallet.io",
		},
		"wizz",
	},
}

var xverseMetadata = domain.WalletMetadata{
	ID:          XverseWalletID,
	Name:        "Xverse Wallet",
	Icon:        "icons/xverse.svg",
	DownloadURL: "https://www.xverse.app",
}

// InjectedWalletIDs returns the ids of the supported injected wallets.
func InjectedWalletIDs() []string {
	ids := make([]string, 0, len(injectedWallets))
	for _, w := range injectedWallets {
		ids = append(ids, w.metadata.ID)
	}
	return ids
}

// NewInjectedWallets returns a connector for every supported injected
// wallet, all looked up in the given environment.
func NewInjectedWallets(env ports.Environment) ([]ports.Connector, error) {
	connectors := make([]ports.Connector, 0, len(injectedWallets))
	for _, w := range injectedWallets {
		c, err := NewInjectedConnector(w.metadata, w.path, env)
		if err != nil {
			return nil, err
		}
		connectors = append(connectors, c)
	}
	return connectors, nil
}

func NewXverseConnector(
	client ports.PairingClient, store ports.StateStore, network string,
) (*PairedConnector, error) {
	return NewPairedConnector(xverseMetadata, client, store, network)
}

// NewDefaultConnectors returns the whole wallet catalog, injected wallets
// first and then the paired ones.
func NewDefaultConnectors(
	env ports.Environment, client ports.PairingClient, store ports.StateStore,
	pairedNetwork string,
) ([]ports.Connector, error) {
	connectors, err := NewInjectedWallets(env)
	if err != nil {
		return nil, err
	}
	xverse, err := NewXverseConnector(client, store, pairedNetwork)
	if err != nil {
		return nil, err
	}
	return append(connectors, xverse), nil
}
