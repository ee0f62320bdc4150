package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/btcconnect/connectkit/internal/core/domain"
	"github.com/btcconnect/connectkit/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

// DirectCall performs an operation without interactive confirmation.
type DirectCall func(ctx context.Context) (string, error)

// ConfirmationGate decides whether an operation must be confirmed
// interactively and makes sure at most one operation awaits confirmation.
type ConfirmationGate interface {
	// PendingSignCount returns how many callers are awaiting a result event.
	PendingSignCount() int
	IsNotRemind(ctx context.Context) (bool, error)
	SetNotRemind(ctx context.Context, notRemind bool) error
	// Reset restores the remind behaviour.
	Reset(ctx context.Context) error
	// Run executes direct right away if the not-remind flag is set, otherwise
	// emits the operation on the bus and waits for its result event.
	Run(
		ctx context.Context, op domain.PendingOperation, direct DirectCall,
	) (string, error)
}

type confirmationGate struct {
	bus   ports.EventBus
	store ports.StateStore

	// serializes the pending check with the result subscription
	lock sync.Mutex
}

func NewConfirmationGate(bus ports.EventBus, store ports.StateStore) ConfirmationGate {
	return &confirmationGate{bus: bus, store: store}
}

func (g *confirmationGate) PendingSignCount() int {
	return g.bus.ListenerCount(domain.ResultTopics...)
}

func (g *confirmationGate) IsNotRemind(ctx context.Context) (bool, error) {
	state, err := g.store.Get(ctx)
	if err != nil {
		return false, err
	}
	return state.NotRemind, nil
}

func (g *confirmationGate) SetNotRemind(ctx context.Context, notRemind bool) error {
	return g.store.Update(ctx, func(s *domain.State) (*domain.State, error) {
		s.NotRemind = notRemind
		return s, nil
	})
}

func (g *confirmationGate) Reset(ctx context.Context) error {
	return g.SetNotRemind(ctx, false)
}

func (g *confirmationGate) Run(
	ctx context.Context, op domain.PendingOperation, direct DirectCall,
) (string, error) {
	resultCh, subID, err := g.subscribe(ctx, op)
	if err != nil {
		return "", err
	}
	if resultCh == nil {
		return direct(ctx)
	}

	log.Debugf("emitting %s for confirmation", op.Kind)
	g.bus.Emit(op.Kind.Topic(), op)

	select {
	case result := <-resultCh:
		log.Debugf("%s confirmation resolved", op.Kind)
		return result.Unwrap()
	case <-ctx.Done():
		g.cancel(op, subID, resultCh)
		return "", ctx.Err()
	}
}

// cancel asks the confirmation UI to drop the operation of a caller that
// went away. The result subscription is held until the operation is
// resolved, so that no other operation gets in while it's still open.
func (g *confirmationGate) cancel(
	op domain.PendingOperation, subID string, resultCh <-chan domain.OperationResult,
) {
	log.Debugf("%s caller went away, cancelling confirmation", op.Kind)
	g.bus.Emit(domain.TopicCancelOperation, op)

	select {
	case <-resultCh:
		return
	default:
	}

	if g.bus.ListenerCount(domain.TopicCancelOperation) <= 0 {
		g.bus.Off(op.Kind.ResultTopic(), subID)
		return
	}

	// the operation is being submitted, its result is on the way
	go func() {
		result := <-resultCh
		log.Debugf("%s resolved after its caller went away: %+v", op.Kind, result)
	}()
}

// subscribe returns a nil channel when the operation doesn't need
// confirmation.
func (g *confirmationGate) subscribe(
	ctx context.Context, op domain.PendingOperation,
) (<-chan domain.OperationResult, string, error) {
	g.lock.Lock()
	defer g.lock.Unlock()

	if g.PendingSignCount() > 0 {
		return nil, "", domain.ErrOperationInProgress
	}

	notRemind, err := g.IsNotRemind(ctx)
	if err != nil {
		return nil, "", err
	}
	if notRemind {
		return nil, "", nil
	}

	resultCh := make(chan domain.OperationResult, 1)
	id := g.bus.Once(op.Kind.ResultTopic(), func(_ string, payload interface{}) {
		resultCh <- toOperationResult(payload)
	})
	return resultCh, id, nil
}

func toOperationResult(payload interface{}) domain.OperationResult {
	switch v := payload.(type) {
	case domain.OperationResult:
		return v
	case *domain.OperationResult:
		if v != nil {
			return *v
		}
	case error:
		return domain.NewOperationResult("", v)
	case string:
		return domain.OperationResult{Result: v}
	}
	return domain.NewOperationResult(
		"", fmt.Errorf("%w: %T", ErrNoConfirmationResult, payload),
	)
}
