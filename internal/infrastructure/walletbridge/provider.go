package walletbridge

import (
	"context"
	"encoding/json"

	"github.com/btcconnect/connectkit/internal/core/ports"
)

// remoteProvider is a wallet global living in the page the shim runs in.
type remoteProvider struct {
	bridge *bridge
	target string
}

func (p *remoteProvider) Call(
	ctx context.Context, method string, args ...interface{},
) (json.RawMessage, error) {
	return p.bridge.call(ctx, p.target, method, args...)
}

func (p *remoteProvider) On(event string, handler ports.EventHandler) string {
	return p.bridge.on(p.target, event, handler)
}

func (p *remoteProvider) RemoveListener(event, id string) {
	p.bridge.off(p.target, event, id)
}
