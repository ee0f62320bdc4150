package domain

import (
	"errors"
	"fmt"
)

const (
	// CodeUserRejected is returned when the user declines an operation.
	CodeUserRejected = 4001
	// CodeUnauthorized is returned when the wallet is missing or not
	// connected.
	CodeUnauthorized = 4100
	// CodeUnsupportedMethod is returned for methods the provider refuses.
	CodeUnsupportedMethod = 4200
	// CodeUnsupportedChain is returned when switching to an unknown chain.
	CodeUnsupportedChain = 4902
	// CodeDisconnected is returned to pending operations when the wallet goes
	// away.
	CodeDisconnected = -32600
	// CodeInvalidParams is the JSON-RPC invalid params code.
	CodeInvalidParams = -32602
	// CodeInternal is used for errors without a code of their own.
	CodeInternal = -32603
)

var (
	// ErrUserRejected is returned when the user rejects a confirmable operation.
	ErrUserRejected = &RPCError{CodeUserRejected, "The user rejected the request."}
	// ErrRequestCancelled is the result of an operation whose caller went
	// away before it was confirmed.
	ErrRequestCancelled = &RPCError{CodeUserRejected, "The request was cancelled."}
	// ErrDisconnected is returned to pending operations when accounts drop to
	// empty.
	ErrDisconnected = &RPCError{CodeDisconnected, "Wallet disconnected"}
	// ErrUnsupportedMethod ...
	ErrUnsupportedMethod = &RPCError{CodeUnsupportedMethod, "The requested method is not supported"}
	// ErrUnsupportedChain ...
	ErrUnsupportedChain = &RPCError{CodeUnsupportedChain, "Unrecognized chain ID"}
	// ErrInvalidParams ...
	ErrInvalidParams = &RPCError{CodeInvalidParams, "Invalid method parameters"}
)

var (
	// ErrNotInstalled is returned when the wallet provider is not available.
	ErrNotInstalled = errors.New("wallet not installed")
	// ErrNotConnected is returned when an operation requires an authorized
	// account.
	ErrNotConnected = errors.New("wallet not connected")
	// ErrInvalidConfiguration is returned for malformed connector paths or
	// account contract selections.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrOperationInProgress is returned when a confirmable operation is
	// already awaiting its result.
	ErrOperationInProgress = errors.New("operation in progress")
	// ErrSignError is returned when a wallet signature can't be converted.
	ErrSignError = errors.New("sign error")
	// ErrNoSupportedChain is returned when a signer provider has no chain to
	// start from.
	ErrNoSupportedChain = errors.New("no supported chain")
	// ErrSmartAccountNotInitialized ...
	ErrSmartAccountNotInitialized = errors.New("smart account not initialized")
	// ErrConnectorNotFound ...
	ErrConnectorNotFound = errors.New("connector not found")
	// ErrNoFeeQuotes is returned when the backend offers no way to pay gas.
	ErrNoFeeQuotes = errors.New("no fee quotes available")
	// ErrSessionNotFound is returned for confirmation commands targeting a
	// closed or unknown session.
	ErrSessionNotFound = errors.New("confirmation session not found")
	// ErrInsufficientBalance is returned when confirming an operation the
	// smart account can't pay for.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrSessionNotReady is returned for commands sent to a confirmation
	// session still loading its data.
	ErrSessionNotReady = errors.New("confirmation session not ready")
)

// RPCError is the {code, message} error shape surfaced to callers of
// confirmable operations and EIP-1193 requests.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// ErrorCode makes RPCError compatible with go-ethereum's rpc.Error.
func (e *RPCError) ErrorCode() int {
	return e.Code
}

// Is matches any RPCError with the same code.
func (e *RPCError) Is(target error) bool {
	t, ok := target.(*RPCError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewRPCError ...
func NewRPCError(code int, format string, args ...interface{}) *RPCError {
	return &RPCError{code, fmt.Sprintf(format, args...)}
}

type codedError interface {
	ErrorCode() int
}

// ToRPCError converts any error to its wire shape. Errors carrying a code
// (including upstream JSON-RPC errors) keep it, everything else becomes an
// internal error.
func ToRPCError(err error) *RPCError {
	if err == nil {
		return nil
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return &RPCError{rpcErr.Code, err.Error()}
	}
	var coded codedError
	if errors.As(err, &coded) {
		return &RPCError{coded.ErrorCode(), err.Error()}
	}
	switch {
	case errors.Is(err, ErrInvalidConfiguration):
		return &RPCError{CodeInvalidParams, err.Error()}
	case errors.Is(err, ErrNotConnected), errors.Is(err, ErrNotInstalled):
		return &RPCError{CodeUnauthorized, err.Error()}
	}
	return &RPCError{CodeInternal, err.Error()}
}
