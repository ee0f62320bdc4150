package ports

import (
	"context"

	"github.com/btcconnect/connectkit/internal/core/domain"
)

// StateStore persists the versioned connection state.
type StateStore interface {
	// Get returns the current state, a fresh one if nothing was persisted.
	Get(ctx context.Context) (*domain.State, error)
	// Update atomically applies updateFn to the current state.
	Update(
		ctx context.Context,
		updateFn func(s *domain.State) (*domain.State, error),
	) error
	Close()
}
