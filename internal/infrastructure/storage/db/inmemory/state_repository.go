package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/btcconnect/connectkit/internal/core/domain"
	"github.com/btcconnect/connectkit/internal/core/ports"
)

type stateRepository struct {
	locker sync.Mutex
	state  *domain.State
}

// NewStateStore returns a volatile state store.
func NewStateStore() ports.StateStore {
	return &stateRepository{state: domain.NewState()}
}

func (r *stateRepository) Get(_ context.Context) (*domain.State, error) {
	r.locker.Lock()
	defer r.locker.Unlock()

	return r.state.Clone(), nil
}

func (r *stateRepository) Update(
	_ context.Context,
	updateFn func(s *domain.State) (*domain.State, error),
) error {
	r.locker.Lock()
	defer r.locker.Unlock()

	updatedState, err := updateFn(r.state.Clone())
	if err != nil {
		return err
	}
	if updatedState == nil {
		return fmt.Errorf("state must not be nil")
	}

	r.state = updatedState.Clone()
	return nil
}

func (r *stateRepository) Close() {}
