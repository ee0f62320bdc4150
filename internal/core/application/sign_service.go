package application

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/btcconnect/connectkit/internal/core/domain"
	"github.com/btcconnect/connectkit/internal/core/ports"
	"github.com/btcconnect/connectkit/pkg/ethutil"
	"github.com/btcconnect/connectkit/pkg/mathutil"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type SessionStatus string

const (
	SessionLoading SessionStatus = "loading"
	SessionReady   SessionStatus = "ready"
	// SessionSubmitting is set once the user confirmed, until the operation
	// is executed. The session accepts no other command meanwhile.
	SessionSubmitting SessionStatus = "submitting"
	SessionClosed     SessionStatus = "closed"
)

// ConfirmationSession is what the confirmation UI shows for a pending
// operation.
type ConfirmationSession struct {
	ID            string                    `json:"id"`
	Kind          string                    `json:"kind"`
	Status        SessionStatus             `json:"status"`
	ChainID       uint64                    `json:"chainId,omitempty"`
	Request       *domain.RequestArguments  `json:"request,omitempty"`
	UserOp        *domain.SendUserOpRequest `json:"userOp,omitempty"`
	FeeQuotes     *domain.FeeQuotesResponse `json:"feeQuotes,omitempty"`
	FeeOptions    []domain.SelectedFeeQuote `json:"feeOptions,omitempty"`
	Selected      *domain.SelectedFeeQuote  `json:"selectedFeeQuote,omitempty"`
	Bundle        *domain.UserOpBundle      `json:"userOpBundle,omitempty"`
	Txs           []domain.DeserializedTx   `json:"deserializedTxs,omitempty"`
	NativeBalance string                    `json:"nativeBalance,omitempty"`
	RequiredFunds string                    `json:"requiredBalance,omitempty"`
	NativeFee     string                    `json:"nativeFee,omitempty"`
	Insufficient  bool                      `json:"insufficient"`
	NotRemind     bool                      `json:"notRemind"`
	Display       *DisplayAmounts           `json:"display,omitempty"`
	Error         *domain.RPCError          `json:"error,omitempty"`

	kind   domain.OperationKind
	params *domain.UserOpParams
}

// DisplayAmounts are the session amounts formatted in whole units.
type DisplayAmounts struct {
	NativeBalance   string `json:"nativeBalance"`
	RequiredBalance string `json:"requiredBalance"`
	NativeFee       string `json:"nativeFee"`
	TokenFee        string `json:"tokenFee,omitempty"`
	TokenSymbol     string `json:"tokenSymbol,omitempty"`
}

// SignService drives confirmation sessions: it opens one for every
// operation emitted on the bus, loads what the UI needs to show and turns
// the UI commands into result events.
type SignService interface {
	Start()
	Stop()
	Sessions() []ConfirmationSession
	GetSession(id string) (*ConfirmationSession, error)
	// SelectFeeQuote switches the payment path to the option at index,
	// rebuilding the user operation for ERC-20 tokens.
	SelectFeeQuote(ctx context.Context, id string, index int) (*ConfirmationSession, error)
	SetNotRemind(ctx context.Context, id string, notRemind bool) (*ConfirmationSession, error)
	Confirm(ctx context.Context, id string) (*ConfirmationSession, error)
	Reject(ctx context.Context, id string) error
}

type signService struct {
	bus    ports.EventBus
	gate   ConfirmationGate
	source SmartAccountSource

	lock        sync.Mutex
	sessions    map[string]*ConfirmationSession
	listenerIDs map[string]string
}

func NewSignService(
	bus ports.EventBus, gate ConfirmationGate, source SmartAccountSource,
) SignService {
	return &signService{
		bus:         bus,
		gate:        gate,
		source:      source,
		sessions:    make(map[string]*ConfirmationSession),
		listenerIDs: make(map[string]string),
	}
}

func (s *signService) Start() {
	s.lock.Lock()
	defer s.lock.Unlock()

	if len(s.listenerIDs) > 0 {
		return
	}
	for _, kind := range []domain.OperationKind{
		domain.OperationSendUserOp,
		domain.OperationPersonalSign,
		domain.OperationSignTypedData,
	} {
		kind := kind
		s.listenerIDs[kind.Topic()] = s.bus.On(
			kind.Topic(), func(_ string, payload interface{}) {
				op, ok := payload.(domain.PendingOperation)
				if !ok {
					log.Warnf("ignoring %s event with payload %T", kind.Topic(), payload)
					return
				}
				op.Kind = kind
				s.open(op)
			},
		)
	}
	s.listenerIDs[domain.TopicCancelOperation] = s.bus.On(
		domain.TopicCancelOperation, func(_ string, payload interface{}) {
			op, ok := payload.(domain.PendingOperation)
			if !ok {
				log.Warnf("ignoring %s event with payload %T", domain.TopicCancelOperation, payload)
				return
			}
			s.cancel(op)
		},
	)
	s.listenerIDs[domain.TopicCloseConfirmation] = s.bus.On(
		domain.TopicCloseConfirmation, func(string, interface{}) {
			s.closeAll()
		},
	)
}

func (s *signService) Stop() {
	s.lock.Lock()
	defer s.lock.Unlock()

	for topic, id := range s.listenerIDs {
		s.bus.Off(topic, id)
	}
	s.listenerIDs = make(map[string]string)
}

func (s *signService) Sessions() []ConfirmationSession {
	s.lock.Lock()
	defer s.lock.Unlock()

	sessions := make([]ConfirmationSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, *session)
	}
	return sessions
}

func (s *signService) GetSession(id string) (*ConfirmationSession, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	snapshot := *session
	return &snapshot, nil
}

func (s *signService) SelectFeeQuote(
	ctx context.Context, id string, index int,
) (*ConfirmationSession, error) {
	session, err := s.readySession(id)
	if err != nil {
		return nil, err
	}
	if session.kind != domain.OperationSendUserOp {
		return nil, fmt.Errorf("%w: session has no fee quotes", domain.ErrInvalidParams)
	}
	if index < 0 || index >= len(session.FeeOptions) {
		return nil, fmt.Errorf("%w: fee quote %d out of range", domain.ErrInvalidParams, index)
	}

	option := session.FeeOptions[index]
	if session.Selected != nil && session.Selected.Equal(option) {
		return session, nil
	}

	account, err := s.source.SmartAccount(ctx)
	if err != nil {
		return nil, err
	}

	// ERC-20 paymaster data differs per token, the bundle must be rebuilt
	if option.UserOpBundle == nil {
		bundle, err := account.BuildUserOp(ctx, domain.UserOpParams{
			Txs:                   session.params.Txs,
			FeeQuote:              option.FeeQuote,
			TokenPaymasterAddress: option.TokenPaymasterAddress,
		})
		if err != nil {
			return nil, err
		}
		option.UserOpBundle = bundle
	}

	txs, err := account.DeserializeUserOp(ctx, option.UserOpBundle.UserOp)
	if err != nil {
		return nil, err
	}
	balance := ethutil.MustParseQuantity(session.NativeBalance)

	return s.update(id, func(cs *ConfirmationSession) error {
		if cs.Status != SessionReady {
			return domain.ErrSessionNotReady
		}
		cs.Selected = &option
		cs.Bundle = option.UserOpBundle
		cs.Txs = txs
		return applyBalance(cs, balance)
	})
}

func (s *signService) SetNotRemind(
	ctx context.Context, id string, notRemind bool,
) (*ConfirmationSession, error) {
	if _, err := s.GetSession(id); err != nil {
		return nil, err
	}
	if err := s.gate.SetNotRemind(ctx, notRemind); err != nil {
		return nil, err
	}
	return s.update(id, func(cs *ConfirmationSession) error {
		cs.NotRemind = notRemind
		return nil
	})
}

func (s *signService) Confirm(
	ctx context.Context, id string,
) (*ConfirmationSession, error) {
	session, err := s.submit(id)
	if err != nil {
		return nil, err
	}

	result, err := s.execute(ctx, session)
	return s.finish(session, domain.NewOperationResult(result, err)), nil
}

func (s *signService) Reject(_ context.Context, id string) error {
	_, err := s.resolve(
		id, domain.NewOperationResult("", domain.ErrUserRejected),
		SessionLoading, SessionReady,
	)
	return err
}

// submit moves a ready session to submitting, making sure it's executed at
// most once.
func (s *signService) submit(id string) (*ConfirmationSession, error) {
	s.lock.Lock()
	session, ok := s.sessions[id]
	if !ok {
		s.lock.Unlock()
		return nil, domain.ErrSessionNotFound
	}
	if session.Status != SessionReady {
		s.lock.Unlock()
		return nil, domain.ErrSessionNotReady
	}
	if session.Insufficient {
		s.lock.Unlock()
		return nil, domain.ErrInsufficientBalance
	}
	session.Status = SessionSubmitting
	snapshot := *session
	s.lock.Unlock()

	s.bus.Emit(domain.TopicConfirmationSession, snapshot)
	return &snapshot, nil
}

// finish closes a submitted session. The result is emitted even if the UI
// was closed meanwhile, since the caller still waits for it.
func (s *signService) finish(
	session *ConfirmationSession, result domain.OperationResult,
) *ConfirmationSession {
	s.lock.Lock()
	delete(s.sessions, session.ID)
	s.lock.Unlock()

	closed := *session
	closed.Status = SessionClosed
	closed.Error = result.Error

	s.bus.Emit(session.kind.ResultTopic(), result)
	s.bus.Emit(domain.TopicConfirmationSession, closed)

	log.Debugf("closed confirmation session %s", session.ID)
	return &closed
}

// cancel drops the session of an operation whose caller went away, unless
// it's being submitted already.
func (s *signService) cancel(op domain.PendingOperation) {
	s.lock.Lock()
	var session *ConfirmationSession
	for _, cs := range s.sessions {
		if cs.kind == op.Kind {
			session = cs
			break
		}
	}
	if session != nil && session.Status == SessionSubmitting {
		s.lock.Unlock()
		return
	}
	s.lock.Unlock()

	result := domain.NewOperationResult("", domain.ErrRequestCancelled)
	if session == nil {
		// the UI was closed already, the caller only awaits the result
		s.bus.Emit(op.Kind.ResultTopic(), result)
		return
	}
	if _, err := s.resolve(session.ID, result, SessionLoading, SessionReady); err != nil {
		log.WithError(err).Debugf("failed to cancel confirmation session %s", session.ID)
		return
	}
	log.Debugf("cancelled confirmation session %s", session.ID)
}

func (s *signService) execute(
	ctx context.Context, session *ConfirmationSession,
) (string, error) {
	account, err := s.source.SmartAccount(ctx)
	if err != nil {
		return "", err
	}
	if session.kind == domain.OperationSendUserOp {
		return account.SendUserOp(ctx, session.Bundle)
	}
	return signRequest(ctx, account, *session.Request)
}

func (s *signService) open(op domain.PendingOperation) {
	session := &ConfirmationSession{
		ID:      uuid.New().String(),
		Kind:    op.Kind.Topic(),
		Status:  SessionLoading,
		Request: op.Request,
		UserOp:  op.UserOp,
		kind:    op.Kind,
	}
	if op.UserOp != nil {
		session.params = op.UserOp.Params
	}

	s.lock.Lock()
	s.sessions[session.ID] = session
	snapshot := *session
	s.lock.Unlock()

	log.Debugf("opened confirmation session %s for %s", session.ID, op.Kind)
	s.bus.Emit(domain.TopicConfirmationSession, snapshot)

	go s.prepare(session.ID)
}

func (s *signService) prepare(id string) {
	ctx := context.Background()

	session, err := s.GetSession(id)
	if err != nil {
		return
	}
	notRemind, err := s.gate.IsNotRemind(ctx)
	if err != nil {
		s.fail(id, err)
		return
	}

	if session.kind != domain.OperationSendUserOp {
		if _, err := s.update(id, func(cs *ConfirmationSession) error {
			if cs.Status != SessionLoading {
				return domain.ErrSessionNotReady
			}
			cs.NotRemind = notRemind
			cs.Status = SessionReady
			return nil
		}); err != nil {
			log.WithError(err).Debug("confirmation session closed while loading")
		}
		return
	}

	prepared, err := s.prepareUserOp(ctx, session)
	if err != nil {
		s.fail(id, err)
		return
	}
	if _, err := s.update(id, func(cs *ConfirmationSession) error {
		if cs.Status != SessionLoading {
			return domain.ErrSessionNotReady
		}
		*cs = *prepared
		cs.NotRemind = notRemind
		cs.Status = SessionReady
		return nil
	}); err != nil {
		log.WithError(err).Debug("confirmation session closed while loading")
	}
}

// prepareUserOp loads fee quotes when only the transactions are known,
// arbitrates the default payment path, then simulates the operation and
// checks the smart account can afford it.
func (s *signService) prepareUserOp(
	ctx context.Context, session *ConfirmationSession,
) (*ConfirmationSession, error) {
	account, err := s.source.SmartAccount(ctx)
	if err != nil {
		return nil, err
	}
	prepared := *session
	prepared.ChainID = account.ChainID()

	bundle := session.UserOp.Bundle
	if bundle == nil {
		params := *session.params
		if params.FeeQuote != nil || params.TokenPaymasterAddress != "" {
			if bundle, err = account.BuildUserOp(ctx, params); err != nil {
				return nil, err
			}
		} else {
			quotes, err := account.GetFeeQuotes(ctx, params.Txs)
			if err != nil {
				return nil, err
			}
			selected, err := quotes.DefaultSelection()
			if err != nil {
				return nil, err
			}
			if selected.UserOpBundle == nil {
				built, err := account.BuildUserOp(ctx, domain.UserOpParams{
					Txs:                   params.Txs,
					FeeQuote:              selected.FeeQuote,
					TokenPaymasterAddress: selected.TokenPaymasterAddress,
				})
				if err != nil {
					return nil, err
				}
				selected.UserOpBundle = built
			}
			bundle = selected.UserOpBundle
			prepared.FeeQuotes = quotes
			prepared.FeeOptions = quotes.Options()
			prepared.Selected = selected
		}
	}
	prepared.Bundle = bundle

	txs, err := account.DeserializeUserOp(ctx, bundle.UserOp)
	if err != nil {
		return nil, err
	}
	prepared.Txs = txs

	balance, err := account.NativeBalance(ctx)
	if err != nil {
		return nil, err
	}
	if err := applyBalance(&prepared, balance); err != nil {
		return nil, err
	}
	return &prepared, nil
}

// fail emits err as the result of the session's operation.
func (s *signService) fail(id string, err error) {
	log.WithError(err).Warnf("failed to prepare confirmation session %s", id)
	if _, rerr := s.resolve(
		id, domain.NewOperationResult("", err), SessionLoading,
	); rerr != nil {
		log.WithError(rerr).Debug("confirmation session already closed")
	}
}

// resolve closes the session, if it's in one of the given statuses, and
// emits the result awaited by the caller.
func (s *signService) resolve(
	id string, result domain.OperationResult, from ...SessionStatus,
) (*ConfirmationSession, error) {
	s.lock.Lock()
	session, ok := s.sessions[id]
	if !ok {
		s.lock.Unlock()
		return nil, domain.ErrSessionNotFound
	}
	if !hasStatus(session, from) {
		s.lock.Unlock()
		return nil, domain.ErrSessionNotReady
	}
	delete(s.sessions, id)
	session.Status = SessionClosed
	session.Error = result.Error
	snapshot := *session
	s.lock.Unlock()

	s.bus.Emit(session.kind.ResultTopic(), result)
	s.bus.Emit(domain.TopicConfirmationSession, snapshot)

	log.Debugf("closed confirmation session %s", id)
	return &snapshot, nil
}

func (s *signService) closeAll() {
	s.lock.Lock()
	closed := make([]ConfirmationSession, 0, len(s.sessions))
	for id, session := range s.sessions {
		session.Status = SessionClosed
		closed = append(closed, *session)
		delete(s.sessions, id)
	}
	s.lock.Unlock()

	for _, session := range closed {
		s.bus.Emit(domain.TopicConfirmationSession, session)
	}
}

func hasStatus(session *ConfirmationSession, statuses []SessionStatus) bool {
	for _, status := range statuses {
		if session.Status == status {
			return true
		}
	}
	return false
}

func (s *signService) readySession(id string) (*ConfirmationSession, error) {
	session, err := s.GetSession(id)
	if err != nil {
		return nil, err
	}
	if session.Status != SessionReady {
		return nil, domain.ErrSessionNotReady
	}
	return session, nil
}

func (s *signService) update(
	id string, updateFn func(cs *ConfirmationSession) error,
) (*ConfirmationSession, error) {
	s.lock.Lock()
	session, ok := s.sessions[id]
	if !ok {
		s.lock.Unlock()
		return nil, domain.ErrSessionNotFound
	}
	updated := *session
	if err := updateFn(&updated); err != nil {
		s.lock.Unlock()
		return nil, err
	}
	*session = updated
	s.lock.Unlock()

	s.bus.Emit(domain.TopicConfirmationSession, updated)
	return &updated, nil
}

// applyBalance sets the displayed fee and disables confirmation when the
// smart account can't cover the predicted outflow plus, when paying gas
// directly, the native fee.
func applyBalance(cs *ConfirmationSession, balance *big.Int) error {
	userOp := cs.Bundle.UserOp
	required, err := domain.RequiredNativeBalance(cs.Txs, userOp)
	if err != nil {
		return err
	}

	nativeFee := "0"
	switch {
	case cs.Selected == nil:
		fee, err := userOp.NativeFee()
		if err != nil {
			return err
		}
		nativeFee = fee.String()
	case cs.Selected.FeeQuote != nil && !cs.Selected.IsToken():
		nativeFee = cs.Selected.FeeQuote.Fee
	}

	cs.NativeBalance = balance.String()
	cs.RequiredFunds = required.String()
	cs.NativeFee = nativeFee
	cs.Insufficient = balance.Cmp(required) < 0 ||
		(cs.Selected != nil && cs.Selected.Insufficient)
	cs.Display = displayAmounts(cs.Selected, balance, required, nativeFee)
	return nil
}

func displayAmounts(
	selected *domain.SelectedFeeQuote, balance, required *big.Int, nativeFee string,
) *DisplayAmounts {
	display := &DisplayAmounts{
		NativeBalance:   mathutil.FormatUnits(balance, mathutil.DefaultDecimals),
		RequiredBalance: mathutil.FormatUnits(required, mathutil.DefaultDecimals),
		NativeFee: mathutil.FormatUnits(
			ethutil.MustParseQuantity(nativeFee), mathutil.DefaultDecimals,
		),
	}
	if selected != nil && selected.IsToken() && selected.FeeQuote != nil {
		quote := selected.FeeQuote
		display.TokenFee = mathutil.FormatUnits(
			ethutil.MustParseQuantity(quote.Fee), quote.TokenInfo.Decimals,
		)
		display.TokenSymbol = quote.TokenInfo.Symbol
	}
	return display
}
