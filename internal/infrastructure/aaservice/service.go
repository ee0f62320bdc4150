// Package aaservice is the JSON-RPC client of the remote account-abstraction
// backend.
package aaservice

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/btcconnect/connectkit/internal/core/domain"
	"github.com/btcconnect/connectkit/internal/core/ports"
	"github.com/btcconnect/connectkit/pkg/circuitbreaker"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"go.uber.org/ratelimit"
)

const (
	MethodGetBTCAccount     = "particle_aa_getBTCAccount"
	MethodDeserializeUserOp = "particle_aa_deserializeUserOp"
	MethodGetFeeQuotes      = "particle_aa_getFeeQuotes"
	MethodCreateUserOp      = "particle_aa_createUserOp"
	MethodSendUserOp        = "particle_aa_sendUserOp"

	defaultRequestsPerSecond = 10
)

type btcAccountParams struct {
	Name         string `json:"name"`
	Version      string `json:"version"`
	BTCPublicKey string `json:"btcPublicKey"`
	BTCAddress   string `json:"btcAddress"`
}

type createUserOpOptions struct {
	FeeQuote              *domain.FeeQuote `json:"feeQuote,omitempty"`
	TokenPaymasterAddress string           `json:"tokenPaymasterAddress,omitempty"`
}

type service struct {
	dialer  ports.RPCDialer
	cb      *gobreaker.CircuitBreaker
	limiter ratelimit.Limiter

	lock    sync.Mutex
	clients map[uint64]ports.RPCClient
}

// NewService returns an AA backend client reaching each chain through the
// given dialer. Requests are throttled to requestsPerSecond and guarded by a
// circuit breaker.
func NewService(dialer ports.RPCDialer, requestsPerSecond int) (ports.AAService, error) {
	if dialer == nil {
		return nil, fmt.Errorf("missing rpc dialer")
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = defaultRequestsPerSecond
	}
	return &service{
		dialer:  dialer,
		cb:      circuitbreaker.NewCircuitBreaker("aaservice"),
		limiter: ratelimit.New(requestsPerSecond),
		clients: make(map[uint64]ports.RPCClient),
	}, nil
}

func (s *service) ResolveBTCAccount(
	ctx context.Context, chainID uint64, contract domain.AccountContract,
	btcPublicKey, btcAddress string,
) (*ports.BTCAccountInfo, error) {
	params := btcAccountParams{
		Name:         contract.Name,
		Version:      contract.Version,
		BTCPublicKey: btcPublicKey,
		BTCAddress:   btcAddress,
	}

	var raw json.RawMessage
	if err := s.call(ctx, chainID, &raw, MethodGetBTCAccount, params); err != nil {
		return nil, err
	}

	// the backend answers with either a single account or a list of them
	accounts := make([]ports.BTCAccountInfo, 0, 1)
	if err := json.Unmarshal(raw, &accounts); err != nil {
		var account ports.BTCAccountInfo
		if err := json.Unmarshal(raw, &account); err != nil {
			return nil, fmt.Errorf("invalid %s response: %w", MethodGetBTCAccount, err)
		}
		accounts = append(accounts, account)
	}
	if len(accounts) <= 0 || accounts[0].SmartAccountAddress == "" {
		return nil, fmt.Errorf("%s returned no smart account", MethodGetBTCAccount)
	}
	return &accounts[0], nil
}

func (s *service) DeserializeUserOp(
	ctx context.Context, chainID uint64, account ports.AccountRef, userOp domain.UserOp,
) ([]domain.DeserializedTx, error) {
	txs := make([]domain.DeserializedTx, 0)
	if err := s.call(
		ctx, chainID, &txs, MethodDeserializeUserOp, account, userOp,
	); err != nil {
		return nil, err
	}
	return txs, nil
}

func (s *service) GetFeeQuotes(
	ctx context.Context, chainID uint64, account ports.AccountRef, txs []domain.Transaction,
) (*domain.FeeQuotesResponse, error) {
	var quotes domain.FeeQuotesResponse
	if err := s.call(ctx, chainID, &quotes, MethodGetFeeQuotes, account, txs); err != nil {
		return nil, err
	}
	return &quotes, nil
}

func (s *service) BuildUserOp(
	ctx context.Context, chainID uint64, account ports.AccountRef, params domain.UserOpParams,
) (*domain.UserOpBundle, error) {
	opts := createUserOpOptions{
		FeeQuote:              params.FeeQuote,
		TokenPaymasterAddress: params.TokenPaymasterAddress,
	}

	var bundle domain.UserOpBundle
	if err := s.call(
		ctx, chainID, &bundle, MethodCreateUserOp, account, params.Txs, opts,
	); err != nil {
		return nil, err
	}
	return &bundle, nil
}

func (s *service) SendUserOp(
	ctx context.Context, chainID uint64, account ports.AccountRef, userOp domain.UserOp,
) (string, error) {
	var txHash string
	if err := s.call(ctx, chainID, &txHash, MethodSendUserOp, account, userOp); err != nil {
		return "", err
	}
	return txHash, nil
}

// Close releases every chain client.
func (s *service) Close() {
	s.lock.Lock()
	defer s.lock.Unlock()

	for chainID, client := range s.clients {
		client.Close()
		delete(s.clients, chainID)
	}
}

func (s *service) call(
	ctx context.Context, chainID uint64, result interface{}, method string,
	args ...interface{},
) error {
	client, err := s.client(ctx, chainID)
	if err != nil {
		return err
	}

	s.limiter.Take()
	_, err = s.cb.Execute(func() (interface{}, error) {
		return nil, client.CallContext(ctx, result, method, args...)
	})
	if err != nil {
		log.WithError(err).WithField("method", method).Debug("aa request failed")
		return err
	}
	return nil
}

func (s *service) client(ctx context.Context, chainID uint64) (ports.RPCClient, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if client, ok := s.clients[chainID]; ok {
		return client, nil
	}
	client, err := s.dialer.DialChain(ctx, chainID)
	if err != nil {
		return nil, err
	}
	s.clients[chainID] = client
	return client, nil
}
