package application_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/btcconnect/connectkit/internal/core/application"
	"github.com/btcconnect/connectkit/internal/core/domain"
	"github.com/btcconnect/connectkit/internal/core/ports"
	"github.com/btcconnect/connectkit/internal/infrastructure/pubsub"
	"github.com/btcconnect/connectkit/internal/infrastructure/storage/db/inmemory"
	"github.com/stretchr/testify/require"
)

func newTestGate() (application.ConfirmationGate, ports.EventBus) {
	bus := pubsub.NewService(0)
	return application.NewConfirmationGate(bus, inmemory.NewStateStore()), bus
}

func personalSignOp(t *testing.T) domain.PendingOperation {
	args, err := domain.NewRequest("personal_sign", "0x68656c6c6f", smartAddress)
	require.NoError(t, err)
	return domain.PendingOperation{Kind: domain.OperationPersonalSign, Request: &args}
}

type runResult struct {
	result string
	err    error
}

func runAsync(
	ctx context.Context, gate application.ConfirmationGate,
	op domain.PendingOperation, direct application.DirectCall,
) <-chan runResult {
	ch := make(chan runResult, 1)
	go func() {
		res, err := gate.Run(ctx, op, direct)
		ch <- runResult{res, err}
	}()
	return ch
}

func failingDirectCall(context.Context) (string, error) {
	return "", fmt.Errorf("direct call not expected")
}

func TestConfirmationGateSingleFlight(t *testing.T) {
	gate, bus := newTestGate()
	ctx := context.Background()

	emitted := 0
	bus.On(domain.TopicPersonalSign, func(string, interface{}) { emitted++ })
	bus.On(domain.TopicSignTypedData, func(string, interface{}) { emitted++ })

	first := runAsync(ctx, gate, personalSignOp(t), failingDirectCall)
	require.Eventually(t, func() bool {
		return gate.PendingSignCount() == 1
	}, waitFor, tick)

	op := personalSignOp(t)
	op.Kind = domain.OperationSignTypedData
	_, err := gate.Run(ctx, op, failingDirectCall)
	require.ErrorIs(t, err, domain.ErrOperationInProgress)

	bus.Emit(domain.TopicPersonalSignResult, domain.OperationResult{Result: "0xsig"})

	select {
	case res := <-first:
		require.NoError(t, res.err)
		require.Equal(t, "0xsig", res.result)
	case <-time.After(waitFor):
		t.Fatal("pending operation not resolved")
	}
	require.Equal(t, 1, emitted)
	require.Zero(t, gate.PendingSignCount())
}

func TestConfirmationGateRejection(t *testing.T) {
	gate, bus := newTestGate()

	pending := runAsync(context.Background(), gate, personalSignOp(t), failingDirectCall)
	require.Eventually(t, func() bool {
		return gate.PendingSignCount() == 1
	}, waitFor, tick)

	bus.Emit(
		domain.TopicPersonalSignResult,
		domain.NewOperationResult("", domain.ErrUserRejected),
	)

	res := <-pending
	require.ErrorIs(t, res.err, domain.ErrUserRejected)
	require.Equal(t, domain.CodeUserRejected, domain.ToRPCError(res.err).Code)
}

func TestConfirmationGateNotRemind(t *testing.T) {
	gate, bus := newTestGate()
	ctx := context.Background()

	notRemind, err := gate.IsNotRemind(ctx)
	require.NoError(t, err)
	require.False(t, notRemind)

	require.NoError(t, gate.SetNotRemind(ctx, true))
	notRemind, err = gate.IsNotRemind(ctx)
	require.NoError(t, err)
	require.True(t, notRemind)

	emitted := 0
	bus.On(ports.AnyTopic, func(string, interface{}) { emitted++ })

	res, err := gate.Run(ctx, personalSignOp(t), func(context.Context) (string, error) {
		return "0xdirect", nil
	})
	require.NoError(t, err)
	require.Equal(t, "0xdirect", res)

	_, err = gate.Run(ctx, personalSignOp(t), func(context.Context) (string, error) {
		return "", domain.NewRPCError(-32000, "execution reverted")
	})
	require.Error(t, err)
	require.Equal(t, -32000, domain.ToRPCError(err).Code)

	require.Zero(t, emitted)

	require.NoError(t, gate.Reset(ctx))
	notRemind, err = gate.IsNotRemind(ctx)
	require.NoError(t, err)
	require.False(t, notRemind)
}

func TestConfirmationGateCancel(t *testing.T) {
	gate, _ := newTestGate()
	ctx, cancel := context.WithCancel(context.Background())

	pending := runAsync(ctx, gate, personalSignOp(t), failingDirectCall)
	require.Eventually(t, func() bool {
		return gate.PendingSignCount() == 1
	}, waitFor, tick)

	cancel()
	res := <-pending
	require.ErrorIs(t, res.err, context.Canceled)
	require.Zero(t, gate.PendingSignCount())
}

func TestConfirmationGateCancelResolvedByUI(t *testing.T) {
	gate, bus := newTestGate()
	ctx, cancel := context.WithCancel(context.Background())

	cancelled := make(chan domain.PendingOperation, 1)
	bus.On(domain.TopicCancelOperation, func(_ string, payload interface{}) {
		op := payload.(domain.PendingOperation)
		cancelled <- op
		bus.Emit(
			op.Kind.ResultTopic(),
			domain.NewOperationResult("", domain.ErrRequestCancelled),
		)
	})

	pending := runAsync(ctx, gate, personalSignOp(t), failingDirectCall)
	require.Eventually(t, func() bool {
		return gate.PendingSignCount() == 1
	}, waitFor, tick)

	cancel()
	res := <-pending
	require.ErrorIs(t, res.err, context.Canceled)
	require.Equal(t, domain.OperationPersonalSign, (<-cancelled).Kind)
	require.Zero(t, gate.PendingSignCount())
}

func TestConfirmationGateCancelKeepsSubmittedOperation(t *testing.T) {
	gate, bus := newTestGate()
	ctx, cancel := context.WithCancel(context.Background())

	// the UI doesn't drop an operation it's submitting
	bus.On(domain.TopicCancelOperation, func(string, interface{}) {})

	pending := runAsync(ctx, gate, personalSignOp(t), failingDirectCall)
	require.Eventually(t, func() bool {
		return gate.PendingSignCount() == 1
	}, waitFor, tick)

	cancel()
	res := <-pending
	require.ErrorIs(t, res.err, context.Canceled)
	require.Equal(t, 1, gate.PendingSignCount())

	_, err := gate.Run(context.Background(), personalSignOp(t), failingDirectCall)
	require.ErrorIs(t, err, domain.ErrOperationInProgress)

	bus.Emit(domain.TopicPersonalSignResult, domain.OperationResult{Result: "0xsig"})
	require.Zero(t, gate.PendingSignCount())
}
