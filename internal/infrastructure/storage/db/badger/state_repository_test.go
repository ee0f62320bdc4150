package dbbadger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/btcconnect/connectkit/internal/core/domain"
	"github.com/btcconnect/connectkit/internal/core/ports"
	dbbadger "github.com/btcconnect/connectkit/internal/infrastructure/storage/db/badger"
	"github.com/stretchr/testify/require"
)

func TestStateStore(t *testing.T) {
	t.Run("EmptyState", testEmptyState())
	t.Run("UpdateState", testUpdateState())
	t.Run("FailingUpdate", testFailingUpdate())
	t.Run("Persistence", testPersistence())
}

func testEmptyState() func(*testing.T) {
	return func(t *testing.T) {
		store := newInMemoryStore(t)

		state, err := store.Get(context.Background())
		require.NoError(t, err)
		require.NotNil(t, state)
		require.Equal(t, domain.StateVersion, state.Version)
		require.Empty(t, state.ConnectorID)
		require.NotNil(t, state.SmartAccounts)
	}
}

func testUpdateState() func(*testing.T) {
	return func(t *testing.T) {
		ctx := context.Background()
		store := newInMemoryStore(t)
		contract := domain.AccountContract{Name: "BTC", Version: "2.0.0"}

		err := store.Update(ctx, func(s *domain.State) (*domain.State, error) {
			s.ConnectorID = "unisat"
			s.AccountContract = contract
			s.EVMChainID = 200901
			s.NotRemind = true
			s.SetSmartAccountAddress(contract, "0xOwner", "0xSmart")
			return s, nil
		})
		require.NoError(t, err)

		state, err := store.Get(ctx)
		require.NoError(t, err)
		require.Equal(t, "unisat", state.ConnectorID)
		require.Equal(t, contract, state.AccountContract)
		require.Equal(t, uint64(200901), state.EVMChainID)
		require.True(t, state.NotRemind)
		addr, ok := state.SmartAccountAddress(contract, "0xOwner")
		require.True(t, ok)
		require.Equal(t, "0xSmart", addr)
	}
}

func testFailingUpdate() func(*testing.T) {
	return func(t *testing.T) {
		ctx := context.Background()
		store := newInMemoryStore(t)

		err := store.Update(ctx, func(s *domain.State) (*domain.State, error) {
			s.ConnectorID = "okx"
			return nil, errors.New("boom")
		})
		require.Error(t, err)

		state, err := store.Get(ctx)
		require.NoError(t, err)
		require.Empty(t, state.ConnectorID)
	}
}

func testPersistence() func(*testing.T) {
	return func(t *testing.T) {
		ctx := context.Background()
		dir := t.TempDir()

		store, err := dbbadger.NewStateStore(dir, nil)
		require.NoError(t, err)
		err = store.Update(ctx, func(s *domain.State) (*domain.State, error) {
			s.SetPairedAddresses("Mainnet", []domain.PairedAddress{
				{Address: "bc1qaddress", PublicKey: "02abcd", Purpose: domain.PurposePayment},
			})
			return s, nil
		})
		require.NoError(t, err)
		store.Close()

		store, err = dbbadger.NewStateStore(dir, nil)
		require.NoError(t, err)
		defer store.Close()

		state, err := store.Get(ctx)
		require.NoError(t, err)
		addresses := state.PairedAddressesFor("Mainnet")
		require.Len(t, addresses, 1)
		require.Equal(t, "bc1qaddress", addresses[0].Address)
	}
}

func newInMemoryStore(t *testing.T) ports.StateStore {
	store, err := dbbadger.NewStateStore("", nil)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}
