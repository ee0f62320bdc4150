package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/btcconnect/connectkit/internal/core/domain"
	"github.com/btcconnect/connectkit/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

// ConnectorInfo describes an installed connector.
type ConnectorInfo struct {
	domain.WalletMetadata
	Ready  bool `json:"ready"`
	Active bool `json:"active"`
}

// SmartAccountSource gives access to the smart account of the connected
// wallet.
type SmartAccountSource interface {
	Accounts() []string
	SmartAccount(ctx context.Context) (*SmartAccount, error)
}

// ConnectService tracks the active connector and its accounts, persists the
// connector and account contract selections and tears down pending
// confirmations when the wallet goes away.
type ConnectService interface {
	SmartAccountSource
	Connectors() []ConnectorInfo
	Connect(ctx context.Context, connectorID string) ([]string, error)
	// Restore loads the persisted selections and, if autoConnect is set,
	// reactivates the last used connector.
	Restore(ctx context.Context, autoConnect bool) error
	Disconnect(ctx context.Context) error
	ActiveConnector() ports.Connector
	// EVMAccount returns the derived smart account address, empty until
	// derived.
	EVMAccount() string
	AccountContracts() domain.AccountContracts
	AccountContract() domain.AccountContract
	SelectAccountContract(ctx context.Context, contract domain.AccountContract) error

	GetPublicKey(ctx context.Context) (string, error)
	SignMessage(
		ctx context.Context, message string, sigType domain.SignatureType,
	) (string, error)
	GetNetwork(ctx context.Context) (domain.Network, error)
	SwitchNetwork(ctx context.Context, network domain.Network) error
	SendBitcoin(
		ctx context.Context, toAddress string, satoshis uint64, opts *domain.SendOptions,
	) (string, error)
	SendInscription(
		ctx context.Context, address, inscriptionID string, opts *domain.SendOptions,
	) (*domain.InscriptionResult, error)
	Close()
}

type connectService struct {
	connectors []ports.Connector
	contracts  domain.AccountContracts
	chains     ports.ChainRegistry
	store      ports.StateStore
	bus        ports.EventBus
	registry   SmartAccountRegistry

	lock       sync.RWMutex
	active     ports.Connector
	listenerID string
	accounts   []string
	contract   domain.AccountContract
	evmAccount string
}

func NewConnectService(
	connectors []ports.Connector,
	contracts domain.AccountContracts,
	chains ports.ChainRegistry,
	store ports.StateStore,
	bus ports.EventBus,
	registry SmartAccountRegistry,
) (ConnectService, error) {
	if err := contracts.Validate(); err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, c := range connectors {
		id := c.Metadata().ID
		if seen[id] {
			return nil, fmt.Errorf(
				"%w: duplicated connector %s", domain.ErrInvalidConfiguration, id,
			)
		}
		seen[id] = true
	}

	return &connectService{
		connectors: connectors,
		contracts:  contracts,
		chains:     chains,
		store:      store,
		bus:        bus,
		registry:   registry,
		accounts:   make([]string, 0),
	}, nil
}

func (s *connectService) Connectors() []ConnectorInfo {
	active := s.ActiveConnector()

	infos := make([]ConnectorInfo, 0, len(s.connectors))
	for _, c := range s.connectors {
		infos = append(infos, ConnectorInfo{
			WalletMetadata: c.Metadata(),
			Ready:          c.IsReady(),
			Active:         active != nil && active.Metadata().ID == c.Metadata().ID,
		})
	}
	return infos
}

func (s *connectService) Connect(
	ctx context.Context, connectorID string,
) ([]string, error) {
	connector, err := s.findConnector(connectorID)
	if err != nil {
		return nil, err
	}
	if !connector.IsReady() {
		return nil, domain.ErrNotInstalled
	}

	accounts, err := connector.RequestAccounts(ctx)
	if err != nil {
		return nil, err
	}
	if len(accounts) <= 0 {
		return accounts, nil
	}

	if err := s.store.Update(ctx, func(st *domain.State) (*domain.State, error) {
		st.ConnectorID = connectorID
		return st, nil
	}); err != nil {
		return nil, err
	}

	s.activate(connector)
	s.setAccounts(ctx, accounts)

	log.Debugf("connected to %s", connectorID)
	return accounts, nil
}

func (s *connectService) Restore(ctx context.Context, autoConnect bool) error {
	if err := s.loadAccountContract(ctx); err != nil {
		return err
	}
	if !autoConnect {
		return nil
	}

	state, err := s.store.Get(ctx)
	if err != nil {
		return err
	}
	if state.ConnectorID == "" {
		return nil
	}

	connector, err := s.findConnector(state.ConnectorID)
	if err != nil {
		log.WithError(err).Warnf("unable to restore connector %s", state.ConnectorID)
		return nil
	}
	if !connector.IsReady() {
		log.Warnf("connector %s is not installed, skipping restore", state.ConnectorID)
		return nil
	}

	s.activate(connector)

	accounts, err := connector.GetAccounts(ctx)
	if err != nil {
		return err
	}
	if len(accounts) <= 0 {
		if accounts, err = connector.RequestAccounts(ctx); err != nil {
			return err
		}
	}
	s.setAccounts(ctx, accounts)

	log.Debugf("restored connection to %s", state.ConnectorID)
	return nil
}

func (s *connectService) Disconnect(ctx context.Context) error {
	s.lock.Lock()
	connector, listenerID := s.active, s.listenerID
	s.active, s.listenerID = nil, ""
	s.lock.Unlock()

	if connector != nil {
		connector.RemoveListener(domain.EventAccountsChanged, listenerID)
		if err := connector.Disconnect(ctx); err != nil {
			log.WithError(err).Warn("connector disconnection failed")
		}
	}

	if err := s.store.Update(ctx, func(st *domain.State) (*domain.State, error) {
		st.ResetSession()
		return st, nil
	}); err != nil {
		return err
	}

	s.setAccounts(ctx, nil)
	return nil
}

func (s *connectService) ActiveConnector() ports.Connector {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.active
}

func (s *connectService) Accounts() []string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return append([]string{}, s.accounts...)
}

func (s *connectService) EVMAccount() string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.evmAccount
}

func (s *connectService) AccountContracts() domain.AccountContracts {
	return s.contracts
}

func (s *connectService) AccountContract() domain.AccountContract {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.contract
}

func (s *connectService) SelectAccountContract(
	ctx context.Context, contract domain.AccountContract,
) error {
	if !s.contracts.IsSupported(contract) {
		return fmt.Errorf(
			"%w: unknown account contract %s", domain.ErrInvalidConfiguration, contract,
		)
	}
	if err := s.validateChains(contract); err != nil {
		return err
	}
	if err := s.persistAccountContract(ctx, contract); err != nil {
		return err
	}

	s.lock.Lock()
	changed := s.contract != contract
	s.contract = contract
	accounts := s.accounts
	s.lock.Unlock()

	if changed && len(accounts) > 0 {
		s.setAccounts(ctx, accounts)
	}
	return nil
}

func (s *connectService) SmartAccount(ctx context.Context) (*SmartAccount, error) {
	s.lock.RLock()
	contract, connector := s.contract, s.active
	hasAccounts := len(s.accounts) > 0
	s.lock.RUnlock()

	if contract.IsZero() {
		if err := s.loadAccountContract(ctx); err != nil {
			return nil, err
		}
		if contract = s.AccountContract(); contract.IsZero() {
			return nil, domain.ErrSmartAccountNotInitialized
		}
	}

	account, err := s.registry.Get(ctx, contract)
	if err != nil {
		return nil, err
	}
	if connector != nil && hasAccounts && account.boundConnector() != connector {
		account.Bind(connector)
	}
	return account, nil
}

func (s *connectService) GetPublicKey(ctx context.Context) (string, error) {
	connector, err := s.requireConnector()
	if err != nil {
		return "", err
	}
	return connector.GetPublicKey(ctx)
}

func (s *connectService) SignMessage(
	ctx context.Context, message string, sigType domain.SignatureType,
) (string, error) {
	connector, err := s.requireConnector()
	if err != nil {
		return "", err
	}
	return connector.SignMessage(ctx, message, sigType)
}

func (s *connectService) GetNetwork(ctx context.Context) (domain.Network, error) {
	connector, err := s.requireConnector()
	if err != nil {
		return "", err
	}
	return connector.GetNetwork(ctx)
}

func (s *connectService) SwitchNetwork(
	ctx context.Context, network domain.Network,
) error {
	connector, err := s.requireConnector()
	if err != nil {
		return err
	}
	return connector.SwitchNetwork(ctx, network)
}

func (s *connectService) SendBitcoin(
	ctx context.Context, toAddress string, satoshis uint64, opts *domain.SendOptions,
) (string, error) {
	connector, err := s.requireConnector()
	if err != nil {
		return "", err
	}
	return connector.SendBitcoin(ctx, toAddress, satoshis, opts)
}

func (s *connectService) SendInscription(
	ctx context.Context, address, inscriptionID string, opts *domain.SendOptions,
) (*domain.InscriptionResult, error) {
	connector, err := s.requireConnector()
	if err != nil {
		return nil, err
	}
	return connector.SendInscription(ctx, address, inscriptionID, opts)
}

func (s *connectService) Close() {
	s.lock.Lock()
	connector, listenerID := s.active, s.listenerID
	s.active, s.listenerID = nil, ""
	s.lock.Unlock()

	if connector != nil {
		connector.RemoveListener(domain.EventAccountsChanged, listenerID)
	}
	s.registry.Close()
}

func (s *connectService) findConnector(id string) (ports.Connector, error) {
	for _, c := range s.connectors {
		if c.Metadata().ID == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrConnectorNotFound, id)
}

func (s *connectService) requireConnector() (ports.Connector, error) {
	connector := s.ActiveConnector()
	if connector == nil {
		return nil, domain.ErrNotConnected
	}
	return connector, nil
}

// activate makes connector the active one, moving the accounts listener
// from the previously active connector.
func (s *connectService) activate(connector ports.Connector) {
	s.lock.Lock()
	prev, prevListenerID := s.active, s.listenerID
	if prev == connector {
		s.lock.Unlock()
		return
	}
	s.active = connector
	s.lock.Unlock()

	if prev != nil {
		prev.RemoveListener(domain.EventAccountsChanged, prevListenerID)
	}

	id := connector.On(domain.EventAccountsChanged, func(payload interface{}) {
		s.setAccounts(context.Background(), toAccounts(payload))
	})

	s.lock.Lock()
	s.listenerID = id
	s.lock.Unlock()
}

// setAccounts propagates an accounts change: a non empty list binds the
// wallet to the smart account and derives its address, an empty one fails
// every pending confirmation and closes the confirmation UI.
func (s *connectService) setAccounts(ctx context.Context, accounts []string) {
	s.lock.Lock()
	s.accounts = append(make([]string, 0, len(accounts)), accounts...)
	s.evmAccount = ""
	s.lock.Unlock()

	if len(accounts) <= 0 {
		s.cancelPendingOperations()
		if account := s.registry.Current(); account != nil {
			account.Unbind()
		}
		return
	}

	account, err := s.SmartAccount(ctx)
	if err != nil {
		log.WithError(err).Warn("unable to bind smart account")
		return
	}
	go s.deriveEVMAccount(account, accounts)
}

func (s *connectService) deriveEVMAccount(account *SmartAccount, accounts []string) {
	address, err := account.Address(context.Background())
	if err != nil {
		log.WithError(err).Warn("unable to derive evm account")
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	// accounts changed in the meantime
	if !equalAccounts(s.accounts, accounts) || s.contract != account.Contract() {
		return
	}
	s.evmAccount = address
}

func (s *connectService) cancelPendingOperations() {
	for _, topic := range domain.ResultTopics {
		if s.bus.ListenerCount(topic) > 0 {
			log.Debugf("wallet disconnected, failing pending %s", topic)
			s.bus.Emit(topic, domain.NewOperationResult("", domain.ErrDisconnected))
		}
	}
	s.bus.Emit(domain.TopicCloseConfirmation, nil)
}

func (s *connectService) loadAccountContract(ctx context.Context) error {
	state, err := s.store.Get(ctx)
	if err != nil {
		return err
	}

	contract := state.AccountContract
	if !s.contracts.IsSupported(contract) {
		if !contract.IsZero() {
			log.Warnf(
				"persisted account contract %s is not supported, using default",
				contract,
			)
		}
		contract = s.contracts.Default()
	}
	if err := s.validateChains(contract); err != nil {
		return err
	}
	if contract != state.AccountContract {
		if err := s.persistAccountContract(ctx, contract); err != nil {
			return err
		}
	}

	s.lock.Lock()
	s.contract = contract
	s.lock.Unlock()
	return nil
}

func (s *connectService) validateChains(contract domain.AccountContract) error {
	if s.chains == nil {
		return nil
	}
	for _, chainID := range s.contracts.ChainIDs(contract) {
		if _, ok := s.chains.Get(chainID); !ok {
			return fmt.Errorf(
				"%w: chain %d of account contract %s is unknown",
				domain.ErrInvalidConfiguration, chainID, contract,
			)
		}
	}
	return nil
}

func (s *connectService) persistAccountContract(
	ctx context.Context, contract domain.AccountContract,
) error {
	return s.store.Update(ctx, func(st *domain.State) (*domain.State, error) {
		st.AccountContract = contract
		return st, nil
	})
}

func toAccounts(payload interface{}) []string {
	switch v := payload.(type) {
	case []string:
		return v
	case []interface{}:
		accounts := make([]string, 0, len(v))
		for _, a := range v {
			if s, ok := a.(string); ok {
				accounts = append(accounts, s)
			}
		}
		return accounts
	case string:
		if v != "" {
			return []string{v}
		}
	}
	return nil
}

func equalAccounts(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
