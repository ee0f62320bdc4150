package domain

import (
	"fmt"
	"strings"
)

// StateVersion is the current schema version of the persisted state.
const StateVersion = 1

// State is everything persisted across restarts.
type State struct {
	Version         int
	ConnectorID     string
	AccountContract AccountContract
	EVMChainID      uint64
	NotRemind       bool
	// SmartAccounts maps name/version/owner to the derived smart account.
	SmartAccounts map[string]string
	// PairedAddresses maps a paired wallet network to its addresses.
	PairedAddresses map[string][]PairedAddress
}

func NewState() *State {
	return &State{
		Version:         StateVersion,
		SmartAccounts:   make(map[string]string),
		PairedAddresses: make(map[string][]PairedAddress),
	}
}

// Migrate upgrades a state written by an older schema.
func (s *State) Migrate() {
	if s.SmartAccounts == nil {
		s.SmartAccounts = make(map[string]string)
	}
	if s.PairedAddresses == nil {
		s.PairedAddresses = make(map[string][]PairedAddress)
	}
	s.Version = StateVersion
}

func smartAccountKey(c AccountContract, owner string) string {
	return fmt.Sprintf("%s/%s/%s", c.Name, c.Version, strings.ToLower(owner))
}

// SmartAccountAddress returns the cached smart account of the given owner.
func (s *State) SmartAccountAddress(c AccountContract, owner string) (string, bool) {
	addr, ok := s.SmartAccounts[smartAccountKey(c, owner)]
	return addr, ok && addr != ""
}

func (s *State) SetSmartAccountAddress(c AccountContract, owner, address string) {
	s.SmartAccounts[smartAccountKey(c, owner)] = address
}

func (s *State) PairedAddressesFor(network string) []PairedAddress {
	return s.PairedAddresses[network]
}

func (s *State) SetPairedAddresses(network string, addresses []PairedAddress) {
	s.PairedAddresses[network] = addresses
}

func (s *State) ClearPairedAddresses() {
	s.PairedAddresses = make(map[string][]PairedAddress)
}

// ResetSession drops the connector selection and the not-remind flag.
func (s *State) ResetSession() {
	s.ConnectorID = ""
	s.NotRemind = false
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	clone := *s
	clone.SmartAccounts = make(map[string]string, len(s.SmartAccounts))
	for k, v := range s.SmartAccounts {
		clone.SmartAccounts[k] = v
	}
	clone.PairedAddresses = make(map[string][]PairedAddress, len(s.PairedAddresses))
	for k, v := range s.PairedAddresses {
		clone.PairedAddresses[k] = append([]PairedAddress(nil), v...)
	}
	return &clone
}
