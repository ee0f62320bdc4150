package evmsigner

import (
	"context"

	"github.com/btcconnect/connectkit/internal/core/ports"
)

type factory struct {
	store  ports.StateStore
	dialer ports.RPCDialer
}

// NewFactory returns a factory of providers sharing the given state store
// and dialer.
func NewFactory(store ports.StateStore, dialer ports.RPCDialer) ports.EVMSignerFactory {
	return &factory{store, dialer}
}

func (f *factory) NewSigner(
	ctx context.Context, supportedChainIDs []uint64,
) (ports.EVMSigner, error) {
	return NewProvider(ctx, f.store, f.dialer, supportedChainIDs)
}
