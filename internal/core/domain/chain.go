package domain

import "fmt"

type NativeCurrency struct {
	Name     string `json:"name" yaml:"name"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	Decimals int    `json:"decimals" yaml:"decimals"`
}

// ChainInfo is the metadata of an EVM chain.
type ChainInfo struct {
	ID               uint64         `json:"id" yaml:"id"`
	Name             string         `json:"name" yaml:"name"`
	FullName         string         `json:"fullname" yaml:"fullname"`
	Icon             string         `json:"icon" yaml:"icon"`
	NativeCurrency   NativeCurrency `json:"nativeCurrency" yaml:"nativeCurrency"`
	RPCURL           string         `json:"rpcUrl" yaml:"rpcUrl"`
	BlockExplorerURL string         `json:"blockExplorerUrl" yaml:"blockExplorerUrl"`
	Testnet          bool           `json:"testnet" yaml:"testnet"`
}

func (c ChainInfo) Validate() error {
	if c.ID == 0 {
		return fmt.Errorf("%w: chain id must not be zero", ErrInvalidConfiguration)
	}
	if c.Name == "" {
		return fmt.Errorf("%w: chain %d has no name", ErrInvalidConfiguration, c.ID)
	}
	if c.NativeCurrency.Symbol == "" {
		return fmt.Errorf(
			"%w: chain %d has no native currency", ErrInvalidConfiguration, c.ID,
		)
	}
	return nil
}

// HexChainID formats a chain id as 0x prefixed hex.
func HexChainID(id uint64) string {
	return fmt.Sprintf("0x%x", id)
}
