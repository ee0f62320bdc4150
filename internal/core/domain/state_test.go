package domain_test

import (
	"testing"

	"github.com/btcconnect/connectkit/internal/core/domain"
	"github.com/stretchr/testify/require"
)

func TestState(t *testing.T) {
	t.Parallel()

	s := domain.NewState()
	contract := domain.AccountContract{Name: "BTC", Version: "1.0.0"}

	_, ok := s.SmartAccountAddress(contract, "0xOwner")
	require.False(t, ok)

	s.SetSmartAccountAddress(contract, "0xOwner", "0xsmart")
	addr, ok := s.SmartAccountAddress(contract, "0xowner")
	require.True(t, ok)
	require.Equal(t, "0xsmart", addr)

	_, ok = s.SmartAccountAddress(
		domain.AccountContract{Name: "BTC", Version: "2.0.0"}, "0xOwner",
	)
	require.False(t, ok)

	s.SetPairedAddresses("Mainnet", []domain.PairedAddress{{Address: "bc1q"}})
	require.Len(t, s.PairedAddressesFor("Mainnet"), 1)
	s.ClearPairedAddresses()
	require.Empty(t, s.PairedAddressesFor("Mainnet"))

	s.ConnectorID = "unisat"
	s.NotRemind = true
	s.ResetSession()
	require.Empty(t, s.ConnectorID)
	require.False(t, s.NotRemind)

	old := &domain.State{}
	old.Migrate()
	require.Equal(t, domain.StateVersion, old.Version)
	require.NotNil(t, old.SmartAccounts)
	require.NotNil(t, old.PairedAddresses)
}
