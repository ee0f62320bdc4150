// Package ethutil bridges Bitcoin wallet primitives to their Ethereum
// counterparts: addresses from secp256k1 public keys, RPC signatures from
// compact recoverable signatures and user operation fee arithmetic.
package ethutil

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const (
	compactSigLen   = 65
	minCompactMagic = 27
	maxCompactMagic = 34
)

// PubKeyToAddress returns the EIP-55 checksummed address of the given hex
// encoded public key. Both compressed and uncompressed keys are accepted,
// with or without the 0x prefix.
func PubKeyToAddress(pubKey string) (string, error) {
	buf, err := hex.DecodeString(strings.TrimPrefix(pubKey, "0x"))
	if err != nil {
		return "", fmt.Errorf("invalid public key encoding: %w", err)
	}
	// raw 64-byte keys lack the uncompressed prefix
	if len(buf) == 64 {
		buf = append([]byte{0x04}, buf...)
	}
	key, err := btcec.ParsePubKey(buf)
	if err != nil {
		return "", fmt.Errorf("invalid public key: %w", err)
	}
	hash := crypto.Keccak256(key.SerializeUncompressed()[1:])
	return common.BytesToAddress(hash[12:]).Hex(), nil
}

// ConvertSignature converts a base64 compact recoverable signature, as
// produced by Bitcoin wallets, into a 0x prefixed r||s||v RPC signature with
// v = recid + 27.
func ConvertSignature(signature string) (string, error) {
	buf, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return "", fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(buf) != compactSigLen {
		return "", fmt.Errorf(
			"invalid signature length: got %d, expected %d", len(buf), compactSigLen,
		)
	}

	header := buf[0]
	if header < minCompactMagic || header > maxCompactMagic {
		return "", fmt.Errorf("invalid signature header byte %d", header)
	}
	recID := (header - minCompactMagic) & 3
	// ids 2 and 3 only occur for r >= n, which wallets never produce
	if recID > 1 {
		return "", fmt.Errorf("unsupported recovery id %d", recID)
	}

	var r, s btcec.ModNScalar
	if overflow := r.SetByteSlice(buf[1:33]); overflow || r.IsZero() {
		return "", fmt.Errorf("invalid signature: r out of range")
	}
	if overflow := s.SetByteSlice(buf[33:65]); overflow || s.IsZero() {
		return "", fmt.Errorf("invalid signature: s out of range")
	}

	sig := make([]byte, 0, compactSigLen)
	sig = append(sig, buf[1:65]...)
	sig = append(sig, recID+minCompactMagic)
	return hexutil.Encode(sig), nil
}

// NormalizeCompactHeader folds BIP-137 headers of segwit addresses (35-42)
// into the compressed P2PKH range (31-34).
func NormalizeCompactHeader(signature string) (string, error) {
	buf, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return "", fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(buf) != compactSigLen {
		return "", fmt.Errorf(
			"invalid signature length: got %d, expected %d", len(buf), compactSigLen,
		)
	}
	if buf[0] >= 31 {
		buf[0] = 31 + (buf[0]-31)%4
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// NativeFee returns the worst case fee of a user operation paid in native
// currency: (callGasLimit + verificationGasLimit + preVerificationGas) *
// maxFeePerGas.
func NativeFee(
	callGasLimit, verificationGasLimit, preVerificationGas, maxFeePerGas *big.Int,
) *big.Int {
	gas := new(big.Int)
	for _, v := range []*big.Int{
		callGasLimit, verificationGasLimit, preVerificationGas,
	} {
		if v != nil {
			gas.Add(gas, v)
		}
	}
	if maxFeePerGas == nil {
		return new(big.Int)
	}
	return gas.Mul(gas, maxFeePerGas)
}

// ParseQuantity parses either a 0x prefixed hex quantity or a base 10
// integer, optionally negative. The empty string and "0x" are zero.
func ParseQuantity(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0x" || s == "0X" {
		return new(big.Int), nil
	}

	neg := strings.HasPrefix(s, "-")
	digits := strings.TrimPrefix(s, "-")
	base := 10
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		digits = digits[2:]
		base = 16
	}

	v, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, fmt.Errorf("invalid quantity %q", s)
	}
	if neg {
		v.Neg(v)
	}
	return v, nil
}

// MustParseQuantity is like ParseQuantity but returns zero on failure.
func MustParseQuantity(s string) *big.Int {
	v, err := ParseQuantity(s)
	if err != nil {
		return new(big.Int)
	}
	return v
}

// PersonalMessageHash returns the digest to be signed for a personal_sign
// message. Hex messages are decoded first, a 32-byte payload is assumed to
// be a hash already, anything else gets the EIP-191 prefix.
func PersonalMessageHash(message string) []byte {
	data := []byte(message)
	if decoded, err := hexutil.Decode(message); err == nil {
		data = decoded
	}
	if len(data) == common.HashLength {
		return data
	}
	return accounts.TextHash(data)
}

// TypedDataHash returns the EIP-712 digest of the given typed data, accepting
// either a JSON object or its string encoding.
func TypedDataHash(raw json.RawMessage) ([]byte, error) {
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		raw = json.RawMessage(encoded)
	}

	var typedData apitypes.TypedData
	if err := json.Unmarshal(raw, &typedData); err != nil {
		return nil, fmt.Errorf("invalid typed data: %w", err)
	}
	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, fmt.Errorf("invalid typed data: %w", err)
	}
	return hash, nil
}
