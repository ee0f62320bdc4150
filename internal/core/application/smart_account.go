package application

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/btcconnect/connectkit/internal/core/domain"
	"github.com/btcconnect/connectkit/internal/core/ports"
	"github.com/btcconnect/connectkit/pkg/ethutil"
	log "github.com/sirupsen/logrus"
)

// SmartAccount binds an EVM signer provider to an account contract and to
// the Bitcoin wallet signing on its behalf.
type SmartAccount struct {
	contract domain.AccountContract
	signer   ports.EVMSigner
	aa       ports.AAService
	store    ports.StateStore

	lock      sync.RWMutex
	connector ports.Connector
	info      map[string]*ports.BTCAccountInfo
}

func newSmartAccount(
	contract domain.AccountContract, signer ports.EVMSigner,
	aa ports.AAService, store ports.StateStore,
) *SmartAccount {
	return &SmartAccount{
		contract: contract,
		signer:   signer,
		aa:       aa,
		store:    store,
		info:     make(map[string]*ports.BTCAccountInfo),
	}
}

func (a *SmartAccount) Contract() domain.AccountContract {
	return a.contract
}

func (a *SmartAccount) Signer() ports.EVMSigner {
	return a.signer
}

func (a *SmartAccount) ChainID() uint64 {
	return a.signer.ChainID()
}

// Bind makes the given connector sign for the smart account.
func (a *SmartAccount) Bind(connector ports.Connector) {
	a.lock.Lock()
	a.connector = connector
	a.lock.Unlock()

	a.signer.Bind(
		func(ctx context.Context, hash string) (string, error) {
			return connector.SignMessage(ctx, hash, domain.SignatureECDSA)
		},
		connector.GetPublicKey,
	)
}

func (a *SmartAccount) Unbind() {
	a.lock.Lock()
	a.connector = nil
	a.lock.Unlock()

	a.signer.Unbind()
}

// Owner returns the EVM address of the bound Bitcoin public key.
func (a *SmartAccount) Owner(ctx context.Context) (string, error) {
	args, _ := domain.NewRequest("eth_accounts")
	res, err := a.signer.Request(ctx, args)
	if err != nil {
		return "", err
	}

	var accounts []string
	if err := json.Unmarshal(res, &accounts); err != nil {
		return "", err
	}
	if len(accounts) <= 0 {
		return "", ErrNoAccounts
	}
	return accounts[0], nil
}

// Address returns the smart account address, resolving it through the AA
// backend only the first time for each contract and owner.
func (a *SmartAccount) Address(ctx context.Context) (string, error) {
	owner, err := a.Owner(ctx)
	if err != nil {
		return "", err
	}

	state, err := a.store.Get(ctx)
	if err != nil {
		return "", err
	}
	if addr, ok := state.SmartAccountAddress(a.contract, owner); ok {
		return addr, nil
	}

	info, err := a.resolve(ctx, owner)
	if err != nil {
		return "", err
	}
	return info.SmartAccountAddress, nil
}

// Info returns the account record resolved by the AA backend.
func (a *SmartAccount) Info(ctx context.Context) (*ports.BTCAccountInfo, error) {
	owner, err := a.Owner(ctx)
	if err != nil {
		return nil, err
	}

	a.lock.RLock()
	info, ok := a.info[strings.ToLower(owner)]
	a.lock.RUnlock()
	if ok {
		return info, nil
	}
	return a.resolve(ctx, owner)
}

func (a *SmartAccount) resolve(
	ctx context.Context, owner string,
) (*ports.BTCAccountInfo, error) {
	a.lock.RLock()
	connector := a.connector
	a.lock.RUnlock()
	if connector == nil {
		return nil, domain.ErrNotConnected
	}

	pubKey, err := connector.GetPublicKey(ctx)
	if err != nil {
		return nil, err
	}
	accounts, err := connector.GetAccounts(ctx)
	if err != nil {
		return nil, err
	}
	if len(accounts) <= 0 {
		return nil, ErrNoAccounts
	}

	info, err := a.aa.ResolveBTCAccount(
		ctx, a.ChainID(), a.contract, pubKey, accounts[0],
	)
	if err != nil {
		return nil, err
	}
	if info.OwnerAddress == "" {
		info.OwnerAddress = owner
	}
	if info.BTCPublicKey == "" {
		info.BTCPublicKey = pubKey
	}
	if info.BTCAddress == "" {
		info.BTCAddress = accounts[0]
	}
	info.Name, info.Version = a.contract.Name, a.contract.Version

	if err := a.store.Update(ctx, func(s *domain.State) (*domain.State, error) {
		s.SetSmartAccountAddress(a.contract, owner, info.SmartAccountAddress)
		return s, nil
	}); err != nil {
		return nil, err
	}

	a.lock.Lock()
	a.info[strings.ToLower(owner)] = info
	a.lock.Unlock()

	log.WithField("contract", a.contract.String()).Debugf(
		"resolved smart account %s for owner %s", info.SmartAccountAddress, owner,
	)
	return info, nil
}

func (a *SmartAccount) accountRef(ctx context.Context) (ports.AccountRef, error) {
	owner, err := a.Owner(ctx)
	if err != nil {
		return ports.AccountRef{}, err
	}
	return ports.AccountRef{
		Name:         a.contract.Name,
		Version:      a.contract.Version,
		OwnerAddress: owner,
	}, nil
}

func (a *SmartAccount) GetFeeQuotes(
	ctx context.Context, txs []domain.Transaction,
) (*domain.FeeQuotesResponse, error) {
	ref, err := a.accountRef(ctx)
	if err != nil {
		return nil, err
	}
	return a.aa.GetFeeQuotes(ctx, a.ChainID(), ref, txs)
}

func (a *SmartAccount) BuildUserOp(
	ctx context.Context, params domain.UserOpParams,
) (*domain.UserOpBundle, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	ref, err := a.accountRef(ctx)
	if err != nil {
		return nil, err
	}
	return a.aa.BuildUserOp(ctx, a.ChainID(), ref, params)
}

func (a *SmartAccount) DeserializeUserOp(
	ctx context.Context, userOp domain.UserOp,
) ([]domain.DeserializedTx, error) {
	ref, err := a.accountRef(ctx)
	if err != nil {
		return nil, err
	}
	return a.aa.DeserializeUserOp(ctx, a.ChainID(), ref, userOp)
}

// SendUserOp signs the hash of the bundle with the Bitcoin wallet and relays
// the operation, returning the transaction hash.
func (a *SmartAccount) SendUserOp(
	ctx context.Context, bundle *domain.UserOpBundle,
) (string, error) {
	if err := bundle.Validate(); err != nil {
		return "", err
	}
	ref, err := a.accountRef(ctx)
	if err != nil {
		return "", err
	}

	args, err := domain.NewRequest("personal_sign", bundle.UserOpHash, ref.OwnerAddress)
	if err != nil {
		return "", err
	}
	res, err := a.signer.Request(ctx, args)
	if err != nil {
		return "", err
	}

	userOp := bundle.UserOp
	if err := json.Unmarshal(res, &userOp.Signature); err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrSignError, err)
	}
	return a.aa.SendUserOp(ctx, a.ChainID(), ref, userOp)
}

// NativeBalance returns the native currency balance of the smart account.
func (a *SmartAccount) NativeBalance(ctx context.Context) (*big.Int, error) {
	address, err := a.Address(ctx)
	if err != nil {
		return nil, err
	}
	args, err := domain.NewRequest("eth_getBalance", address, "latest")
	if err != nil {
		return nil, err
	}
	res, err := a.signer.Request(ctx, args)
	if err != nil {
		return nil, err
	}

	var balance string
	if err := json.Unmarshal(res, &balance); err != nil {
		return nil, err
	}
	return ethutil.ParseQuantity(balance)
}

// Close releases the signer provider and its listeners.
func (a *SmartAccount) Close() {
	a.Unbind()
	a.signer.Close()
}

// SmartAccountRegistry holds the one binding of the active account contract.
// Selecting another contract replaces the binding as a whole.
type SmartAccountRegistry interface {
	Get(ctx context.Context, contract domain.AccountContract) (*SmartAccount, error)
	Current() *SmartAccount
	Close()
}

type smartAccountRegistry struct {
	factory   ports.EVMSignerFactory
	aa        ports.AAService
	store     ports.StateStore
	contracts domain.AccountContracts

	lock    sync.Mutex
	current *SmartAccount
}

func NewSmartAccountRegistry(
	factory ports.EVMSignerFactory, aa ports.AAService, store ports.StateStore,
	contracts domain.AccountContracts,
) SmartAccountRegistry {
	return &smartAccountRegistry{
		factory:   factory,
		aa:        aa,
		store:     store,
		contracts: contracts,
	}
}

func (r *smartAccountRegistry) Get(
	ctx context.Context, contract domain.AccountContract,
) (*SmartAccount, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.current != nil && r.current.contract == contract {
		return r.current, nil
	}
	if !r.contracts.IsSupported(contract) {
		return nil, fmt.Errorf(
			"%w: unknown account contract %s", domain.ErrInvalidConfiguration, contract,
		)
	}

	signer, err := r.factory.NewSigner(ctx, r.contracts.ChainIDs(contract))
	if err != nil {
		return nil, err
	}
	account := newSmartAccount(contract, signer, r.aa, r.store)

	prev := r.current
	r.current = account
	if prev != nil {
		if connector := prev.boundConnector(); connector != nil {
			account.Bind(connector)
		}
		prev.Close()
	}

	log.WithField("contract", contract.String()).Debug("smart account binding replaced")
	return account, nil
}

func (r *smartAccountRegistry) Current() *SmartAccount {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.current
}

func (r *smartAccountRegistry) Close() {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.current != nil {
		r.current.Close()
		r.current = nil
	}
}

func (a *SmartAccount) boundConnector() ports.Connector {
	a.lock.RLock()
	defer a.lock.RUnlock()
	return a.connector
}
