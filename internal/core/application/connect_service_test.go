package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/btcconnect/connectkit/internal/core/application"
	"github.com/btcconnect/connectkit/internal/core/domain"
	"github.com/btcconnect/connectkit/internal/core/ports"
	"github.com/btcconnect/connectkit/internal/infrastructure/chainregistry"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	t.Run("unknown connector", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.connect.Connect(context.Background(), "nope")
		require.ErrorIs(t, err, domain.ErrConnectorNotFound)
	})

	t.Run("wallet not installed", func(t *testing.T) {
		env := newTestEnv(t)
		connector := newMockConnector("okx")
		connector.Mock.On("IsReady").Return(false)

		svc, err := application.NewConnectService(
			[]ports.Connector{connector}, testContracts, nil, env.store, env.bus, env.registry,
		)
		require.NoError(t, err)

		_, err = svc.Connect(context.Background(), "okx")
		require.ErrorIs(t, err, domain.ErrNotInstalled)
		require.Nil(t, svc.ActiveConnector())
	})

	t.Run("success", func(t *testing.T) {
		env := newTestEnv(t)
		env.connectWallet(t)

		require.Equal(t, []string{btcAddress}, env.connect.Accounts())
		require.Equal(t, connectorID, env.connect.ActiveConnector().Metadata().ID)
		require.Equal(t, contractV1, env.connect.AccountContract())
		require.Equal(t, 1, env.connector.listenerCount(domain.EventAccountsChanged))

		state, err := env.store.Get(context.Background())
		require.NoError(t, err)
		require.Equal(t, connectorID, state.ConnectorID)
		require.Equal(t, contractV1, state.AccountContract)

		infos := env.connect.Connectors()
		require.Len(t, infos, 1)
		require.True(t, infos[0].Ready)
		require.True(t, infos[0].Active)
	})
}

func TestDisconnect(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.connectWallet(t)
	require.NoError(t, env.gate.SetNotRemind(ctx, true))

	require.NoError(t, env.connect.Disconnect(ctx))

	require.Nil(t, env.connect.ActiveConnector())
	require.Empty(t, env.connect.Accounts())
	require.Empty(t, env.connect.EVMAccount())
	require.Zero(t, env.connector.listenerCount(domain.EventAccountsChanged))
	env.connector.AssertCalled(t, "Disconnect", mock.Anything)

	state, err := env.store.Get(ctx)
	require.NoError(t, err)
	require.Empty(t, state.ConnectorID)
	require.False(t, state.NotRemind)

	_, err = env.connect.SignMessage(ctx, "hello", domain.SignatureECDSA)
	require.ErrorIs(t, err, domain.ErrNotConnected)
}

func TestEmptyAccountsCancelPendingOperation(t *testing.T) {
	env := newTestEnv(t)
	env.connectWallet(t)

	closed := env.countEvents(domain.TopicCloseConfirmation)
	pending := runAsync(context.Background(), env.gate, personalSignOp(t), failingDirectCall)
	require.Eventually(t, func() bool {
		return env.gate.PendingSignCount() == 1
	}, waitFor, tick)

	env.connector.emit(domain.EventAccountsChanged, []string{})

	select {
	case res := <-pending:
		require.ErrorIs(t, res.err, domain.ErrDisconnected)
		require.Equal(t, domain.CodeDisconnected, domain.ToRPCError(res.err).Code)
	case <-time.After(waitFor):
		t.Fatal("pending operation not cancelled")
	}
	require.Equal(t, 1, closed())
	require.Zero(t, env.gate.PendingSignCount())
	require.Empty(t, env.connect.Accounts())
	require.Empty(t, env.connect.EVMAccount())
}

func TestAccountsChanged(t *testing.T) {
	env := newTestEnv(t)
	env.connectWallet(t)

	env.connector.emit(domain.EventAccountsChanged, []interface{}{btcAddress})
	require.Equal(t, []string{btcAddress}, env.connect.Accounts())
	require.Eventually(t, func() bool {
		return env.connect.EVMAccount() == smartAddress
	}, waitFor, tick)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid persisted contract falls back to default", func(t *testing.T) {
		env := newTestEnv(t)
		require.NoError(t, env.store.Update(ctx, func(s *domain.State) (*domain.State, error) {
			s.AccountContract = domain.AccountContract{Name: "BTC", Version: "0.0.1"}
			return s, nil
		}))

		require.NoError(t, env.connect.Restore(ctx, true))
		require.Equal(t, contractV1, env.connect.AccountContract())
		require.Nil(t, env.connect.ActiveConnector())

		state, err := env.store.Get(ctx)
		require.NoError(t, err)
		require.Equal(t, contractV1, state.AccountContract)
	})

	t.Run("auto connect", func(t *testing.T) {
		env := newTestEnv(t)
		require.NoError(t, env.store.Update(ctx, func(s *domain.State) (*domain.State, error) {
			s.ConnectorID = connectorID
			s.AccountContract = contractV2
			return s, nil
		}))

		require.NoError(t, env.connect.Restore(ctx, true))
		require.Equal(t, contractV2, env.connect.AccountContract())
		require.Equal(t, connectorID, env.connect.ActiveConnector().Metadata().ID)
		require.Equal(t, []string{btcAddress}, env.connect.Accounts())
		env.connector.AssertNotCalled(t, "RequestAccounts", mock.Anything)

		require.Eventually(t, func() bool {
			return env.connect.EVMAccount() == smartAddress
		}, waitFor, tick)
	})

	t.Run("no auto connect", func(t *testing.T) {
		env := newTestEnv(t)
		require.NoError(t, env.store.Update(ctx, func(s *domain.State) (*domain.State, error) {
			s.ConnectorID = connectorID
			return s, nil
		}))

		require.NoError(t, env.connect.Restore(ctx, false))
		require.Nil(t, env.connect.ActiveConnector())
	})
}

func TestSelectAccountContract(t *testing.T) {
	ctx := context.Background()

	t.Run("switches binding", func(t *testing.T) {
		env := newTestEnv(t)
		env.connectWallet(t)

		before, err := env.connect.SmartAccount(ctx)
		require.NoError(t, err)

		require.NoError(t, env.connect.SelectAccountContract(ctx, contractV2))
		require.Equal(t, contractV2, env.connect.AccountContract())

		after, err := env.connect.SmartAccount(ctx)
		require.NoError(t, err)
		require.NotSame(t, before, after)
		require.Equal(t, contractV2, after.Contract())
		require.Equal(t, uint64(5003), after.ChainID())
	})

	t.Run("unknown contract", func(t *testing.T) {
		env := newTestEnv(t)
		err := env.connect.SelectAccountContract(
			ctx, domain.AccountContract{Name: "ETH", Version: "1.0.0"},
		)
		require.ErrorIs(t, err, domain.ErrInvalidConfiguration)
	})

	t.Run("chain missing from registry", func(t *testing.T) {
		env := newTestEnv(t)
		chains, err := chainregistry.NewRegistry([]domain.ChainInfo{{
			ID:             testChainID,
			Name:           "Sepolia",
			NativeCurrency: domain.NativeCurrency{Symbol: "ETH", Decimals: 18},
		}})
		require.NoError(t, err)

		svc, err := application.NewConnectService(
			[]ports.Connector{env.connector}, testContracts, chains,
			env.store, env.bus, env.registry,
		)
		require.NoError(t, err)

		err = svc.SelectAccountContract(ctx, contractV1)
		require.ErrorIs(t, err, domain.ErrInvalidConfiguration)
		require.ErrorIs(t, svc.Restore(ctx, false), domain.ErrInvalidConfiguration)
	})
}

func TestBitcoinOperations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.connect.GetNetwork(ctx)
	require.ErrorIs(t, err, domain.ErrNotConnected)

	env.connectWallet(t)
	env.connector.Mock.On("GetNetwork", mock.Anything).Return(domain.NetworkTestnet, nil)
	env.connector.Mock.On("SendBitcoin", mock.Anything, btcAddress, uint64(1000), (*domain.SendOptions)(nil)).
		Return("txid", nil)

	network, err := env.connect.GetNetwork(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.NetworkTestnet, network)

	txid, err := env.connect.SendBitcoin(ctx, btcAddress, 1000, nil)
	require.NoError(t, err)
	require.Equal(t, "txid", txid)

	pubKey, err := env.connect.GetPublicKey(ctx)
	require.NoError(t, err)
	require.Equal(t, testPubKey(t), pubKey)
}
