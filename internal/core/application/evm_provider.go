package application

import (
	"context"
	"encoding/json"

	"github.com/btcconnect/connectkit/internal/core/domain"
	"github.com/btcconnect/connectkit/internal/core/ports"
)

// EVMProvider is the EIP-1193 provider exposed to dApps. Transactions are
// sent as user operations of the smart account and signatures are gated by
// the confirmation gate.
type EVMProvider interface {
	Request(ctx context.Context, args domain.RequestArguments) (json.RawMessage, error)
	// SendUserOp sends a prebuilt bundle or builds one from its params. With
	// forceHideConfirm the confirmation gate is bypassed.
	SendUserOp(
		ctx context.Context, req domain.SendUserOpRequest, forceHideConfirm bool,
	) (string, error)
	BuildUserOp(
		ctx context.Context, params domain.UserOpParams,
	) (*domain.UserOpBundle, error)
	GetFeeQuotes(
		ctx context.Context, txs []domain.Transaction,
	) (*domain.FeeQuotesResponse, error)
	SwitchChain(ctx context.Context, chainID uint64) error
	ChainID(ctx context.Context) (uint64, error)
	GetSmartAccountInfo(ctx context.Context) (*ports.BTCAccountInfo, error)
}

type evmProvider struct {
	source SmartAccountSource
	gate   ConfirmationGate
}

func NewEVMProvider(source SmartAccountSource, gate ConfirmationGate) EVMProvider {
	return &evmProvider{source, gate}
}

func (p *evmProvider) Request(
	ctx context.Context, args domain.RequestArguments,
) (json.RawMessage, error) {
	switch args.Method {
	case "eth_accounts", "eth_requestAccounts":
		return p.accounts(ctx)
	case "eth_sendTransaction":
		var tx domain.Transaction
		if err := args.Param(0, &tx); err != nil {
			return nil, err
		}
		txHash, err := p.SendUserOp(ctx, domain.SendUserOpRequest{
			Params: &domain.UserOpParams{Txs: []domain.Transaction{tx}},
		}, false)
		if err != nil {
			return nil, err
		}
		return json.Marshal(txHash)
	case "personal_sign":
		return p.sign(ctx, domain.OperationPersonalSign, args)
	case "eth_signTypedData", "eth_signTypedData_v4":
		return p.sign(ctx, domain.OperationSignTypedData, args)
	}

	account, err := p.source.SmartAccount(ctx)
	if err != nil {
		return nil, err
	}
	return account.Signer().Request(ctx, args)
}

func (p *evmProvider) SendUserOp(
	ctx context.Context, req domain.SendUserOpRequest, forceHideConfirm bool,
) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	account, err := p.source.SmartAccount(ctx)
	if err != nil {
		return "", err
	}

	direct := func(ctx context.Context) (string, error) {
		bundle := req.Bundle
		if bundle == nil {
			if bundle, err = account.BuildUserOp(ctx, *req.Params); err != nil {
				return "", err
			}
		}
		return account.SendUserOp(ctx, bundle)
	}
	if forceHideConfirm {
		return direct(ctx)
	}

	op := domain.PendingOperation{Kind: domain.OperationSendUserOp, UserOp: &req}
	return p.gate.Run(ctx, op, direct)
}

func (p *evmProvider) BuildUserOp(
	ctx context.Context, params domain.UserOpParams,
) (*domain.UserOpBundle, error) {
	account, err := p.source.SmartAccount(ctx)
	if err != nil {
		return nil, err
	}
	return account.BuildUserOp(ctx, params)
}

func (p *evmProvider) GetFeeQuotes(
	ctx context.Context, txs []domain.Transaction,
) (*domain.FeeQuotesResponse, error) {
	if len(txs) <= 0 {
		return nil, domain.NewRPCError(domain.CodeInvalidParams, "missing transactions")
	}
	account, err := p.source.SmartAccount(ctx)
	if err != nil {
		return nil, err
	}
	return account.GetFeeQuotes(ctx, txs)
}

func (p *evmProvider) SwitchChain(ctx context.Context, chainID uint64) error {
	args, err := domain.NewRequest(
		"wallet_switchEthereumChain",
		map[string]string{"chainId": domain.HexChainID(chainID)},
	)
	if err != nil {
		return err
	}
	_, err = p.Request(ctx, args)
	return err
}

func (p *evmProvider) ChainID(ctx context.Context) (uint64, error) {
	account, err := p.source.SmartAccount(ctx)
	if err != nil {
		return 0, err
	}
	return account.ChainID(), nil
}

func (p *evmProvider) GetSmartAccountInfo(
	ctx context.Context,
) (*ports.BTCAccountInfo, error) {
	if len(p.source.Accounts()) <= 0 {
		return nil, domain.ErrNotConnected
	}
	account, err := p.source.SmartAccount(ctx)
	if err != nil {
		return nil, err
	}
	return account.Info(ctx)
}

func (p *evmProvider) accounts(ctx context.Context) (json.RawMessage, error) {
	if len(p.source.Accounts()) <= 0 {
		return json.Marshal([]string{})
	}
	account, err := p.source.SmartAccount(ctx)
	if err != nil {
		return nil, err
	}
	address, err := account.Address(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal([]string{address})
}

func (p *evmProvider) sign(
	ctx context.Context, kind domain.OperationKind, args domain.RequestArguments,
) (json.RawMessage, error) {
	account, err := p.source.SmartAccount(ctx)
	if err != nil {
		return nil, err
	}

	op := domain.PendingOperation{Kind: kind, Request: &args}
	signature, err := p.gate.Run(ctx, op, func(ctx context.Context) (string, error) {
		return signRequest(ctx, account, args)
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(signature)
}

func signRequest(
	ctx context.Context, account *SmartAccount, args domain.RequestArguments,
) (string, error) {
	res, err := account.Signer().Request(ctx, args)
	if err != nil {
		return "", err
	}
	var signature string
	if err := json.Unmarshal(res, &signature); err != nil {
		return "", err
	}
	return signature, nil
}
