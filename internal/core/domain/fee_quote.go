package domain

import (
	"math/big"

	"github.com/btcconnect/connectkit/pkg/ethutil"
)

// TokenInfo describes the currency a fee quote is denominated in.
type TokenInfo struct {
	Address  string `json:"address"`
	ChainID  uint64 `json:"chainId"`
	Decimals int    `json:"decimals"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	LogoURI  string `json:"logoURI,omitempty"`
}

// FeeQuote is the fee of an operation in some currency and the wallet
// balance of that currency.
type FeeQuote struct {
	TokenInfo TokenInfo `json:"tokenInfo"`
	Fee       string    `json:"fee"`
	Balance   string    `json:"balance"`
}

// IsSufficient returns whether balance covers the fee. Unparsable amounts
// are treated as zero.
func (q FeeQuote) IsSufficient() bool {
	balance := ethutil.MustParseQuantity(q.Balance)
	fee := ethutil.MustParseQuantity(q.Fee)
	return balance.Cmp(fee) >= 0
}

// NativeQuote is the offer to pay gas in native currency.
type NativeQuote struct {
	UserOp     UserOp   `json:"userOp"`
	UserOpHash string   `json:"userOpHash"`
	FeeQuote   FeeQuote `json:"feeQuote"`
}

// TokenPaymasterQuote is the offer to pay gas with one of several ERC-20
// tokens.
type TokenPaymasterQuote struct {
	TokenPaymasterAddress string     `json:"tokenPaymasterAddress"`
	FeeQuotes             []FeeQuote `json:"feeQuotes"`
}

// FeeQuotesResponse holds up to three mutually exclusive payment offers.
type FeeQuotesResponse struct {
	Gasless *UserOpBundle        `json:"verifyingPaymasterGasless,omitempty"`
	Native  *NativeQuote         `json:"verifyingPaymasterNative,omitempty"`
	Token   *TokenPaymasterQuote `json:"tokenPaymaster,omitempty"`
}

// SelectedFeeQuote is the payment path chosen for a pending operation.
// A nil UserOpBundle means the bundle must be built for the selection.
type SelectedFeeQuote struct {
	Gasless               bool          `json:"gasless"`
	FeeQuote              *FeeQuote     `json:"feeQuote,omitempty"`
	TokenPaymasterAddress string        `json:"tokenPaymasterAddress,omitempty"`
	UserOpBundle          *UserOpBundle `json:"userOpBundle,omitempty"`
	Insufficient          bool          `json:"insufficient"`
}

// IsToken returns whether gas is paid with an ERC-20 token.
func (s SelectedFeeQuote) IsToken() bool {
	return s.TokenPaymasterAddress != ""
}

// Equal compares payment paths, ignoring built bundles.
func (s SelectedFeeQuote) Equal(other SelectedFeeQuote) bool {
	if s.Gasless != other.Gasless ||
		s.TokenPaymasterAddress != other.TokenPaymasterAddress {
		return false
	}
	if s.FeeQuote == nil || other.FeeQuote == nil {
		return s.FeeQuote == nil && other.FeeQuote == nil
	}
	return s.FeeQuote.TokenInfo.Address == other.FeeQuote.TokenInfo.Address
}

// Options lists every offer in display order: gasless, native, then tokens
// in the order provided.
func (r FeeQuotesResponse) Options() []SelectedFeeQuote {
	options := make([]SelectedFeeQuote, 0)
	if r.Gasless != nil {
		bundle := *r.Gasless
		options = append(options, SelectedFeeQuote{
			Gasless:      true,
			UserOpBundle: &bundle,
		})
	}
	if r.Native != nil {
		feeQuote := r.Native.FeeQuote
		options = append(options, SelectedFeeQuote{
			FeeQuote: &feeQuote,
			UserOpBundle: &UserOpBundle{
				UserOp:     r.Native.UserOp,
				UserOpHash: r.Native.UserOpHash,
			},
			Insufficient: !feeQuote.IsSufficient(),
		})
	}
	if r.Token != nil {
		for i := range r.Token.FeeQuotes {
			feeQuote := r.Token.FeeQuotes[i]
			options = append(options, SelectedFeeQuote{
				FeeQuote:              &feeQuote,
				TokenPaymasterAddress: r.Token.TokenPaymasterAddress,
				Insufficient:          !feeQuote.IsSufficient(),
			})
		}
	}
	return options
}

// DefaultSelection arbitrates between the offers: gasless first, then native
// if its balance covers the fee, then the first ERC-20 token whose balance
// covers its fee. When nothing is affordable the native offer (or the first
// offer if there is no native one) is returned marked insufficient.
func (r FeeQuotesResponse) DefaultSelection() (*SelectedFeeQuote, error) {
	options := r.Options()
	if len(options) <= 0 {
		return nil, ErrNoFeeQuotes
	}

	var native *SelectedFeeQuote
	for i := range options {
		opt := options[i]
		if opt.Gasless {
			return &opt, nil
		}
		if !opt.IsToken() && native == nil {
			native = &opt
		}
	}
	if native != nil && !native.Insufficient {
		return native, nil
	}
	for i := range options {
		opt := options[i]
		if opt.IsToken() && !opt.Insufficient {
			return &opt, nil
		}
	}
	if native != nil {
		return native, nil
	}
	opt := options[0]
	return &opt, nil
}

// RequiredNativeBalance returns the native balance needed to confirm an
// operation given its predicted balance changes: the sum of outgoing native
// changes, plus the native fee when gas is not paid by a paymaster.
func RequiredNativeBalance(
	txs []DeserializedTx, userOp UserOp,
) (*big.Int, error) {
	required := new(big.Int)
	for _, tx := range txs {
		required.Add(required, tx.NativeOutflow())
	}
	if userOp.HasPaymaster() {
		return required, nil
	}
	fee, err := userOp.NativeFee()
	if err != nil {
		return nil, err
	}
	return required.Add(required, fee), nil
}
