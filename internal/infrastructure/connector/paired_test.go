package connector_test

import (
	"encoding/base64"
	"testing"

	"github.com/btcconnect/connectkit/internal/core/domain"
	"github.com/btcconnect/connectkit/internal/core/ports"
	"github.com/btcconnect/connectkit/internal/infrastructure/connector"
	"github.com/btcconnect/connectkit/internal/infrastructure/storage/db/inmemory"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const addressesMessage = "Address for receiving Ordinals and payments"

var (
	purposes = []domain.AddressPurpose{domain.PurposePayment, domain.PurposeOrdinals}

	mainnetAddresses = []domain.PairedAddress{
		{Address: "bc1qpayment", PublicKey: testPubKey, Purpose: domain.PurposePayment},
		{Address: "bc1pordinals", PublicKey: "03ordinals", Purpose: domain.PurposeOrdinals},
	}
	testnetAddresses = []domain.PairedAddress{
		{Address: testAccount, PublicKey: testPubKey, Purpose: domain.PurposePayment},
		{Address: "tb1pordinals", PublicKey: "03ordinals", Purpose: domain.PurposeOrdinals},
	}
)

func newPairedConnector(
	t *testing.T, client *mockPairingClient, store ports.StateStore,
) *connector.PairedConnector {
	c, err := connector.NewXverseConnector(client, store, "")
	require.NoError(t, err)
	return c
}

func compactSignature(header byte) string {
	buf := make([]byte, 65)
	buf[0] = header
	for i := 1; i < len(buf); i++ {
		buf[i] = byte(i)
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func TestNewPairedConnector(t *testing.T) {
	store := inmemory.NewStateStore()

	_, err := connector.NewPairedConnector(domain.WalletMetadata{}, nil, store, "")
	require.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	_, err = connector.NewPairedConnector(
		domain.WalletMetadata{}, &mockPairingClient{}, store, "Regtest",
	)
	require.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	client := &mockPairingClient{}
	client.On("IsAvailable").Return(true)
	c, err := connector.NewXverseConnector(client, store, "")
	require.NoError(t, err)
	require.Equal(t, connector.XverseWalletID, c.Metadata().ID)
	require.Nil(t, c.GetProvider())

	network, err := c.GetNetwork(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.NetworkLivenet, network)
}

func TestPairedConnectorIsReady(t *testing.T) {
	client := &mockPairingClient{}
	client.On("IsAvailable").Return(false).Once()
	client.On("IsAvailable").Run(func(mock.Arguments) {
		panic("provider not injected")
	}).Return(false).Once()
	c := newPairedConnector(t, client, inmemory.NewStateStore())

	require.False(t, c.IsReady())
	require.NotPanics(t, func() {
		require.False(t, c.IsReady())
	})

	client.On("IsAvailable").Return(false)
	_, err := c.RequestAccounts(ctx)
	require.ErrorIs(t, err, domain.ErrNotInstalled)
	_, err = c.GetAccounts(ctx)
	require.ErrorIs(t, err, domain.ErrNotInstalled)
	_, err = c.GetPublicKey(ctx)
	require.ErrorIs(t, err, domain.ErrNotInstalled)
	_, err = c.GetNetwork(ctx)
	require.ErrorIs(t, err, domain.ErrNotInstalled)
	client.AssertNotCalled(t, "GetAddresses", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPairedConnectorAccounts(t *testing.T) {
	client := &mockPairingClient{}
	client.On("IsAvailable").Return(true)
	client.On(
		"GetAddresses", mock.Anything, connector.PairedNetworkMainnet, purposes,
		addressesMessage,
	).Return(mainnetAddresses, nil)
	store := inmemory.NewStateStore()
	c := newPairedConnector(t, client, store)

	accounts, err := c.GetAccounts(ctx)
	require.NoError(t, err)
	require.Empty(t, accounts)

	pubKey, err := c.GetPublicKey(ctx)
	require.NoError(t, err)
	require.Empty(t, pubKey)

	accounts, err = c.RequestAccounts(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"bc1qpayment", "bc1pordinals"}, accounts)

	state, err := store.Get(ctx)
	require.NoError(t, err)
	require.Equal(
		t, mainnetAddresses,
		state.PairedAddressesFor("btc-connect-xverse-addresses-Mainnet"),
	)

	accounts, err = c.GetAccounts(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"bc1qpayment", "bc1pordinals"}, accounts)

	pubKey, err = c.GetPublicKey(ctx)
	require.NoError(t, err)
	require.Equal(t, testPubKey, pubKey)

	require.NoError(t, c.Disconnect(ctx))
	accounts, err = c.GetAccounts(ctx)
	require.NoError(t, err)
	require.Empty(t, accounts)
}

func TestPairedConnectorCancel(t *testing.T) {
	client := &mockPairingClient{}
	client.On("IsAvailable").Return(true)
	client.On(
		"GetAddresses", mock.Anything, mock.Anything, mock.Anything, mock.Anything,
	).Return(nil, domain.ErrUserRejected)
	c := newPairedConnector(t, client, inmemory.NewStateStore())

	_, err := c.RequestAccounts(ctx)
	require.ErrorIs(t, err, domain.ErrUserRejected)
	require.Equal(t, domain.CodeUserRejected, domain.ToRPCError(err).Code)
}

func TestPairedConnectorSignMessage(t *testing.T) {
	client := &mockPairingClient{}
	client.On("IsAvailable").Return(true)
	client.On(
		"GetAddresses", mock.Anything, connector.PairedNetworkMainnet, purposes,
		addressesMessage,
	).Return(mainnetAddresses, nil)
	client.On(
		"SignMessage", mock.Anything, connector.PairedNetworkMainnet, "bc1qpayment",
		"0xdeadbeef",
	).Return(compactSignature(40), nil)
	c := newPairedConnector(t, client, inmemory.NewStateStore())

	_, err := c.SignMessage(ctx, "0xdeadbeef", domain.SignatureECDSA)
	require.ErrorIs(t, err, domain.ErrNotConnected)

	_, err = c.RequestAccounts(ctx)
	require.NoError(t, err)

	sig, err := c.SignMessage(ctx, "0xdeadbeef", domain.SignatureECDSA)
	require.NoError(t, err)
	require.Equal(t, compactSignature(32), sig)
}

func TestPairedConnectorSend(t *testing.T) {
	client := &mockPairingClient{}
	client.On("IsAvailable").Return(true)
	client.On(
		"GetAddresses", mock.Anything, connector.PairedNetworkMainnet, purposes,
		addressesMessage,
	).Return(mainnetAddresses, nil)
	client.On(
		"SendBtcTransaction", mock.Anything, connector.PairedNetworkMainnet,
		"bc1qpayment", []ports.BTCRecipient{{Address: "bc1qdest", AmountSats: 1500}},
	).Return("txid", nil)
	c := newPairedConnector(t, client, inmemory.NewStateStore())

	_, err := c.SendBitcoin(ctx, "bc1qdest", 1500, nil)
	require.ErrorIs(t, err, domain.ErrNotConnected)

	_, err = c.RequestAccounts(ctx)
	require.NoError(t, err)

	txid, err := c.SendBitcoin(ctx, "bc1qdest", 1500, nil)
	require.NoError(t, err)
	require.Equal(t, "txid", txid)

	_, err = c.SendInscription(ctx, "bc1qdest", "inscription0", nil)
	require.ErrorIs(t, err, domain.ErrUnsupportedMethod)
}

func TestPairedConnectorSwitchNetwork(t *testing.T) {
	client := &mockPairingClient{}
	client.On("IsAvailable").Return(true)
	client.On(
		"GetAddresses", mock.Anything, connector.PairedNetworkTestnet, purposes,
		addressesMessage,
	).Return(testnetAddresses, nil)
	store := inmemory.NewStateStore()
	c := newPairedConnector(t, client, store)

	received := make([]interface{}, 0)
	id := c.On(domain.EventAccountsChanged, func(payload interface{}) {
		received = append(received, payload)
	})

	require.NoError(t, c.SwitchNetwork(ctx, domain.NetworkTestnet))
	require.Equal(t, []interface{}{[]string{testAccount, "tb1pordinals"}}, received)

	network, err := c.GetNetwork(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.NetworkTestnet, network)

	accounts, err := c.GetAccounts(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{testAccount, "tb1pordinals"}, accounts)

	err = c.SwitchNetwork(ctx, domain.Network("signet"))
	require.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	c.RemoveListener(domain.EventAccountsChanged, id)
	require.NoError(t, c.SwitchNetwork(ctx, domain.NetworkTestnet))
	require.Len(t, received, 1)
}

func TestPairedConnectorManyListeners(t *testing.T) {
	client := &mockPairingClient{}
	client.On(
		"GetAddresses", mock.Anything, connector.PairedNetworkMainnet, purposes,
		addressesMessage,
	).Return(mainnetAddresses, nil)
	c := newPairedConnector(t, client, inmemory.NewStateStore())

	count := 0
	for i := 0; i < 100; i++ {
		c.On(domain.EventAccountsChanged, func(interface{}) { count++ })
	}
	require.NoError(t, c.SwitchNetwork(ctx, domain.NetworkLivenet))
	require.Equal(t, 100, count)
}
