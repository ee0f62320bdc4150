package dbbadger

import (
	"context"
	"fmt"
	"sync"

	"github.com/btcconnect/connectkit/internal/core/domain"
	"github.com/btcconnect/connectkit/internal/core/ports"
	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

const stateKey = "connectkit-state"

type stateRepository struct {
	store *badgerhold.Store
	lock  sync.Mutex
}

// NewStateStore opens (or creates) the state store under baseDbDir. An empty
// baseDbDir opens an in-memory store. The logger is optional.
func NewStateStore(baseDbDir string, logger badger.Logger) (ports.StateStore, error) {
	store, err := createDb(baseDbDir, logger)
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}
	return &stateRepository{store: store}, nil
}

func (r *stateRepository) Get(ctx context.Context) (*domain.State, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.getState()
}

func (r *stateRepository) Update(
	ctx context.Context,
	updateFn func(s *domain.State) (*domain.State, error),
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	state, err := r.getState()
	if err != nil {
		return err
	}

	updatedState, err := updateFn(state)
	if err != nil {
		return err
	}
	if updatedState == nil {
		return fmt.Errorf("state must not be nil")
	}

	return r.store.Upsert(stateKey, updatedState)
}

func (r *stateRepository) Close() {
	r.store.Close()
}

func (r *stateRepository) getState() (*domain.State, error) {
	var state domain.State
	if err := r.store.Get(stateKey, &state); err != nil {
		if err == badgerhold.ErrNotFound {
			return domain.NewState(), nil
		}
		return nil, err
	}
	state.Migrate()
	return &state, nil
}
