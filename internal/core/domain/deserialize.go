package domain

import (
	"encoding/json"
	"math/big"

	"github.com/btcconnect/connectkit/pkg/ethutil"
)

// TransactionSmartType classifies a decoded transaction.
type TransactionSmartType string

const (
	TxNativeTransfer  TransactionSmartType = "native_transfer"
	TxERC20Transfer   TransactionSmartType = "erc20_transfer"
	TxERC20Approve    TransactionSmartType = "erc20_approve"
	TxERC721Transfer  TransactionSmartType = "erc721_transfer"
	TxERC1155Transfer TransactionSmartType = "erc1155_transfer"
	TxOther           TransactionSmartType = "other"
)

// NativeChange is a predicted native balance change, as a signed decimal
// string.
type NativeChange struct {
	Address      string `json:"address"`
	NativeChange string `json:"nativeChange"`
}

type TokenChange struct {
	Address      string      `json:"address"`
	FromAddress  string      `json:"fromAddress"`
	Name         string      `json:"name"`
	Symbol       string      `json:"symbol"`
	Image        string      `json:"image"`
	Decimals     int         `json:"decimals"`
	AmountChange json.Number `json:"amountChange"`
}

type NFTChange struct {
	Address        string      `json:"address"`
	FromAddress    string      `json:"fromAddress"`
	Name           string      `json:"name"`
	Symbol         string      `json:"symbol"`
	Image          string      `json:"image"`
	TokenID        string      `json:"tokenId"`
	Amount         string      `json:"amount,omitempty"`
	AmountChange   json.Number `json:"amountChange"`
	IsSemiFungible bool        `json:"isSemiFungible,omitempty"`
}

type EstimatedChanges struct {
	Natives []NativeChange `json:"natives"`
	NFTs    []NFTChange    `json:"nfts"`
	Tokens  []TokenChange  `json:"tokens"`
}

type EVMParam struct {
	Name  string      `json:"name"`
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

type EVMFunction struct {
	Name   string     `json:"name"`
	Params []EVMParam `json:"params"`
}

// EVMData is the decoded transaction payload.
type EVMData struct {
	From                 string       `json:"from"`
	To                   string       `json:"to"`
	ChainID              string       `json:"chainId"`
	Nonce                string       `json:"nonce"`
	Value                string       `json:"value"`
	Data                 string       `json:"data"`
	GasLimit             string       `json:"gasLimit"`
	GasPrice             string       `json:"gasPrice,omitempty"`
	MaxFeePerGas         string       `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas string       `json:"maxPriorityFeePerGas,omitempty"`
	Function             *EVMFunction `json:"function,omitempty"`
}

type SecurityDetection struct {
	Type     string   `json:"type"`
	Risks    []string `json:"risks,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// DeserializedTx is a transaction decoded from a user operation, with its
// simulated effects.
type DeserializedTx struct {
	Type              TransactionSmartType `json:"type,omitempty"`
	EstimatedChanges  EstimatedChanges     `json:"estimatedChanges"`
	ToVerified        bool                 `json:"toVerified,omitempty"`
	ToTag             string               `json:"toTag,omitempty"`
	Data              EVMData              `json:"data"`
	SecurityDetection []SecurityDetection  `json:"securityDetection,omitempty"`
}

// NativeOutflow returns the absolute sum of the negative native changes.
func (t DeserializedTx) NativeOutflow() *big.Int {
	outflow := new(big.Int)
	for _, change := range t.EstimatedChanges.Natives {
		v := ethutil.MustParseQuantity(change.NativeChange)
		if v.Sign() < 0 {
			outflow.Sub(outflow, v)
		}
	}
	return outflow
}
