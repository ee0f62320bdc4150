package walletbridge

import (
	"encoding/json"

	"github.com/btcconnect/connectkit/internal/core/domain"
	"github.com/btcconnect/connectkit/internal/core/ports"
)

// Message types exchanged with the browser shim.
const (
	TypeAnnounce = "announce"
	TypeRequest  = "request"
	TypeResponse = "response"
	TypeEvent    = "event"
)

// PairingTarget is the global through which the paired wallet is reached.
const PairingTarget = "BitcoinProvider"

// Message is the envelope of every frame. Announce frames list the wallet
// globals found in the page, request and response frames are correlated by
// id, event frames relay wallet events.
type Message struct {
	Type    string           `json:"type"`
	ID      string           `json:"id,omitempty"`
	Target  string           `json:"target,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  []interface{}    `json:"params,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *domain.RPCError `json:"error,omitempty"`
	Event   string           `json:"event,omitempty"`
	Payload json.RawMessage  `json:"payload,omitempty"`
	Globals []string         `json:"globals,omitempty"`
}

type pairingNetwork struct {
	Type string `json:"type"`
}

type getAddressesParams struct {
	Purposes []domain.AddressPurpose `json:"purposes"`
	Message  string                  `json:"message"`
	Network  pairingNetwork          `json:"network"`
}

type getAddressesResult struct {
	Addresses []domain.PairedAddress `json:"addresses"`
}

type signMessageParams struct {
	Address string         `json:"address"`
	Message string         `json:"message"`
	Network pairingNetwork `json:"network"`
}

type sendBtcTransactionParams struct {
	Recipients    []ports.BTCRecipient `json:"recipients"`
	SenderAddress string               `json:"senderAddress"`
	Network       pairingNetwork       `json:"network"`
}
