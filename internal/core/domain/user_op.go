package domain

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/btcconnect/connectkit/pkg/ethutil"
)

// UserOp is an ERC-4337 user operation in its JSON-RPC hex encoding.
type UserOp struct {
	Sender               string `json:"sender"`
	Nonce                string `json:"nonce"`
	InitCode             string `json:"initCode"`
	CallData             string `json:"callData"`
	CallGasLimit         string `json:"callGasLimit"`
	VerificationGasLimit string `json:"verificationGasLimit"`
	PreVerificationGas   string `json:"preVerificationGas"`
	MaxFeePerGas         string `json:"maxFeePerGas"`
	MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas"`
	PaymasterAndData     string `json:"paymasterAndData"`
	Signature            string `json:"signature"`
}

// HasPaymaster returns whether gas is paid through a paymaster.
func (u UserOp) HasPaymaster() bool {
	return len(u.PaymasterAndData) > 2
}

// NativeFee is the worst case fee of the operation when paying gas in native
// currency.
func (u UserOp) NativeFee() (*big.Int, error) {
	values := make([]*big.Int, 0, 4)
	for _, field := range []struct {
		name, value string
	}{
		{"callGasLimit", u.CallGasLimit},
		{"verificationGasLimit", u.VerificationGasLimit},
		{"preVerificationGas", u.PreVerificationGas},
		{"maxFeePerGas", u.MaxFeePerGas},
	} {
		v, err := ethutil.ParseQuantity(field.value)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", field.name, err)
		}
		values = append(values, v)
	}
	return ethutil.NativeFee(values[0], values[1], values[2], values[3]), nil
}

// UserOpBundle is a built user operation together with the hash the owner
// must sign.
type UserOpBundle struct {
	UserOp     UserOp `json:"userOp"`
	UserOpHash string `json:"userOpHash"`
}

func (b *UserOpBundle) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: missing user operation", ErrInvalidParams)
	}
	if b.UserOp.Sender == "" || b.UserOpHash == "" {
		return fmt.Errorf("%w: user operation must have sender and hash", ErrInvalidParams)
	}
	return nil
}

// Transaction is an EVM call executed by the smart account.
type Transaction struct {
	To       string `json:"to"`
	Value    string `json:"value,omitempty"`
	Data     string `json:"data,omitempty"`
	GasLimit string `json:"gasLimit,omitempty"`
}

// UserOpParams are the inputs to build a user operation, optionally scoped to
// a fee quote.
type UserOpParams struct {
	Txs                   []Transaction `json:"tx"`
	FeeQuote              *FeeQuote     `json:"feeQuote,omitempty"`
	TokenPaymasterAddress string        `json:"tokenPaymasterAddress,omitempty"`
}

func (p UserOpParams) Validate() error {
	if len(p.Txs) <= 0 {
		return fmt.Errorf("%w: missing transactions", ErrInvalidParams)
	}
	for _, tx := range p.Txs {
		if tx.To == "" {
			return fmt.Errorf("%w: transaction without recipient", ErrInvalidParams)
		}
	}
	if p.TokenPaymasterAddress != "" && p.FeeQuote == nil {
		return fmt.Errorf("%w: token paymaster requires a fee quote", ErrInvalidParams)
	}
	return nil
}

// SendUserOpRequest is either a prebuilt bundle or the parameters to build
// one.
type SendUserOpRequest struct {
	Bundle *UserOpBundle
	Params *UserOpParams
}

func (r SendUserOpRequest) Validate() error {
	if r.Bundle != nil {
		return r.Bundle.Validate()
	}
	if r.Params != nil {
		return r.Params.Validate()
	}
	return fmt.Errorf("%w: missing user operation or transactions", ErrInvalidParams)
}

// UnmarshalJSON accepts either a bundle ({userOp, userOpHash}) or build
// parameters ({tx, feeQuote, tokenPaymasterAddress}).
func (r *SendUserOpRequest) UnmarshalJSON(buf []byte) error {
	var probe struct {
		UserOp json.RawMessage `json:"userOp"`
	}
	if err := json.Unmarshal(buf, &probe); err != nil {
		return err
	}

	if len(probe.UserOp) > 0 && string(probe.UserOp) != "null" {
		var bundle UserOpBundle
		if err := json.Unmarshal(buf, &bundle); err != nil {
			return err
		}
		*r = SendUserOpRequest{Bundle: &bundle}
		return nil
	}

	var params UserOpParams
	if err := json.Unmarshal(buf, &params); err != nil {
		return err
	}
	*r = SendUserOpRequest{Params: &params}
	return nil
}

func (r SendUserOpRequest) MarshalJSON() ([]byte, error) {
	if r.Bundle != nil {
		return json.Marshal(r.Bundle)
	}
	return json.Marshal(r.Params)
}
