package httpinterface

import (
	"context"
	"encoding/json"

	"github.com/btcconnect/connectkit/internal/core/application"
	"github.com/btcconnect/connectkit/internal/core/domain"
	"github.com/btcconnect/connectkit/internal/core/ports"
	"github.com/stretchr/testify/mock"
)

type mockConnectService struct {
	mock.Mock
}

func (m *mockConnectService) Accounts() []string {
	args := m.Called()
	var res []string
	if a := args.Get(0); a != nil {
		res = a.([]string)
	}
	return res
}

func (m *mockConnectService) SmartAccount(
	ctx context.Context,
) (*application.SmartAccount, error) {
	args := m.Called(ctx)
	var res *application.SmartAccount
	if a := args.Get(0); a != nil {
		res = a.(*application.SmartAccount)
	}
	return res, args.Error(1)
}

func (m *mockConnectService) Connectors() []application.ConnectorInfo {
	args := m.Called()
	var res []application.ConnectorInfo
	if a := args.Get(0); a != nil {
		res = a.([]application.ConnectorInfo)
	}
	return res
}

func (m *mockConnectService) Connect(
	ctx context.Context, connectorID string,
) ([]string, error) {
	args := m.Called(ctx, connectorID)
	var res []string
	if a := args.Get(0); a != nil {
		res = a.([]string)
	}
	return res, args.Error(1)
}

func (m *mockConnectService) Restore(ctx context.Context, autoConnect bool) error {
	args := m.Called(ctx, autoConnect)
	return args.Error(0)
}

func (m *mockConnectService) Disconnect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockConnectService) ActiveConnector() ports.Connector {
	args := m.Called()
	var res ports.Connector
	if a := args.Get(0); a != nil {
		res = a.(ports.Connector)
	}
	return res
}

func (m *mockConnectService) EVMAccount() string {
	args := m.Called()
	return args.String(0)
}

func (m *mockConnectService) AccountContracts() domain.AccountContracts {
	args := m.Called()
	var res domain.AccountContracts
	if a := args.Get(0); a != nil {
		res = a.(domain.AccountContracts)
	}
	return res
}

func (m *mockConnectService) AccountContract() domain.AccountContract {
	args := m.Called()
	return args.Get(0).(domain.AccountContract)
}

func (m *mockConnectService) SelectAccountContract(
	ctx context.Context, contract domain.AccountContract,
) error {
	args := m.Called(ctx, contract)
	return args.Error(0)
}

func (m *mockConnectService) GetPublicKey(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockConnectService) SignMessage(
	ctx context.Context, message string, sigType domain.SignatureType,
) (string, error) {
	args := m.Called(ctx, message, sigType)
	return args.String(0), args.Error(1)
}

func (m *mockConnectService) GetNetwork(ctx context.Context) (domain.Network, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.Network), args.Error(1)
}

func (m *mockConnectService) SwitchNetwork(
	ctx context.Context, network domain.Network,
) error {
	args := m.Called(ctx, network)
	return args.Error(0)
}

func (m *mockConnectService) SendBitcoin(
	ctx context.Context, toAddress string, satoshis uint64, opts *domain.SendOptions,
) (string, error) {
	args := m.Called(ctx, toAddress, satoshis, opts)
	return args.String(0), args.Error(1)
}

func (m *mockConnectService) SendInscription(
	ctx context.Context, address, inscriptionID string, opts *domain.SendOptions,
) (*domain.InscriptionResult, error) {
	args := m.Called(ctx, address, inscriptionID, opts)
	var res *domain.InscriptionResult
	if a := args.Get(0); a != nil {
		res = a.(*domain.InscriptionResult)
	}
	return res, args.Error(1)
}

func (m *mockConnectService) Close() {
	m.Called()
}

type mockEVMProvider struct {
	mock.Mock
}

func (m *mockEVMProvider) Request(
	ctx context.Context, req domain.RequestArguments,
) (json.RawMessage, error) {
	args := m.Called(ctx, req)
	var res json.RawMessage
	if a := args.Get(0); a != nil {
		res = a.(json.RawMessage)
	}
	return res, args.Error(1)
}

func (m *mockEVMProvider) SendUserOp(
	ctx context.Context, req domain.SendUserOpRequest, forceHideConfirm bool,
) (string, error) {
	args := m.Called(ctx, req, forceHideConfirm)
	return args.String(0), args.Error(1)
}

func (m *mockEVMProvider) BuildUserOp(
	ctx context.Context, params domain.UserOpParams,
) (*domain.UserOpBundle, error) {
	args := m.Called(ctx, params)
	var res *domain.UserOpBundle
	if a := args.Get(0); a != nil {
		res = a.(*domain.UserOpBundle)
	}
	return res, args.Error(1)
}

func (m *mockEVMProvider) GetFeeQuotes(
	ctx context.Context, txs []domain.Transaction,
) (*domain.FeeQuotesResponse, error) {
	args := m.Called(ctx, txs)
	var res *domain.FeeQuotesResponse
	if a := args.Get(0); a != nil {
		res = a.(*domain.FeeQuotesResponse)
	}
	return res, args.Error(1)
}

func (m *mockEVMProvider) SwitchChain(ctx context.Context, chainID uint64) error {
	args := m.Called(ctx, chainID)
	return args.Error(0)
}

func (m *mockEVMProvider) ChainID(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockEVMProvider) GetSmartAccountInfo(
	ctx context.Context,
) (*ports.BTCAccountInfo, error) {
	args := m.Called(ctx)
	var res *ports.BTCAccountInfo
	if a := args.Get(0); a != nil {
		res = a.(*ports.BTCAccountInfo)
	}
	return res, args.Error(1)
}

type mockSignService struct {
	mock.Mock
}

func (m *mockSignService) Start() {
	m.Called()
}

func (m *mockSignService) Stop() {
	m.Called()
}

func (m *mockSignService) Sessions() []application.ConfirmationSession {
	args := m.Called()
	var res []application.ConfirmationSession
	if a := args.Get(0); a != nil {
		res = a.([]application.ConfirmationSession)
	}
	return res
}

func (m *mockSignService) GetSession(id string) (*application.ConfirmationSession, error) {
	args := m.Called(id)
	var res *application.ConfirmationSession
	if a := args.Get(0); a != nil {
		res = a.(*application.ConfirmationSession)
	}
	return res, args.Error(1)
}

func (m *mockSignService) SelectFeeQuote(
	ctx context.Context, id string, index int,
) (*application.ConfirmationSession, error) {
	args := m.Called(ctx, id, index)
	var res *application.ConfirmationSession
	if a := args.Get(0); a != nil {
		res = a.(*application.ConfirmationSession)
	}
	return res, args.Error(1)
}

func (m *mockSignService) SetNotRemind(
	ctx context.Context, id string, notRemind bool,
) (*application.ConfirmationSession, error) {
	args := m.Called(ctx, id, notRemind)
	var res *application.ConfirmationSession
	if a := args.Get(0); a != nil {
		res = a.(*application.ConfirmationSession)
	}
	return res, args.Error(1)
}

func (m *mockSignService) Confirm(
	ctx context.Context, id string,
) (*application.ConfirmationSession, error) {
	args := m.Called(ctx, id)
	var res *application.ConfirmationSession
	if a := args.Get(0); a != nil {
		res = a.(*application.ConfirmationSession)
	}
	return res, args.Error(1)
}

func (m *mockSignService) Reject(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
