// Package chainrpc opens JSON-RPC clients bound to a single EVM chain.
package chainrpc

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/btcconnect/connectkit/internal/core/ports"
	"github.com/ethereum/go-ethereum/rpc"
	log "github.com/sirupsen/logrus"
)

const (
	// ProductionRPCDomain serves the chain and AA JSON-RPC endpoints.
	ProductionRPCDomain = "https://rpc.particle.network"
	// DevelopmentRPCDomain is used when the environment is development.
	DevelopmentRPCDomain = "https://rpc-debug.particle.network"

	EnvironmentProduction  = "production"
	EnvironmentDevelopment = "development"

	defaultTimeout = 30 * time.Second
)

// DialerOpts configures the dialer. When RPCDomain is empty the environment
// default is used; when UseChainRPC is set the chain registry endpoints are
// dialed instead of the project scoped ones.
type DialerOpts struct {
	Environment string
	RPCDomain   string
	ProjectID   string
	ClientKey   string
	Timeout     time.Duration
	UseChainRPC bool
	Registry    ports.ChainRegistry
}

func (o DialerOpts) validate() error {
	if o.UseChainRPC {
		if o.Registry == nil {
			return fmt.Errorf("missing chain registry")
		}
		return nil
	}
	if o.ProjectID == "" {
		return fmt.Errorf("missing project id")
	}
	if o.ClientKey == "" {
		return fmt.Errorf("missing client key")
	}
	if o.RPCDomain != "" {
		if _, err := url.ParseRequestURI(o.RPCDomain); err != nil {
			return fmt.Errorf("invalid rpc domain: %s", err)
		}
	}
	return nil
}

type dialer struct {
	opts       DialerOpts
	rpcDomain  string
	httpClient *http.Client
}

func NewDialer(opts DialerOpts) (ports.RPCDialer, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	rpcDomain := opts.RPCDomain
	if rpcDomain == "" {
		rpcDomain = ProductionRPCDomain
		if opts.Environment == EnvironmentDevelopment {
			rpcDomain = DevelopmentRPCDomain
		}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &dialer{
		opts:       opts,
		rpcDomain:  rpcDomain,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (d *dialer) DialChain(ctx context.Context, chainID uint64) (ports.RPCClient, error) {
	endpoint, err := d.endpoint(chainID)
	if err != nil {
		return nil, err
	}

	client, err := rpc.DialOptions(ctx, endpoint, rpc.WithHTTPClient(d.httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to dial chain %d: %w", chainID, err)
	}

	log.WithField("chain_id", chainID).Debug("dialed chain rpc")
	return client, nil
}

func (d *dialer) endpoint(chainID uint64) (string, error) {
	if d.opts.UseChainRPC {
		chain, ok := d.opts.Registry.Get(chainID)
		if !ok || chain.RPCURL == "" {
			return "", fmt.Errorf("no rpc endpoint for chain %d", chainID)
		}
		return chain.RPCURL, nil
	}
	return ChainURL(d.rpcDomain, chainID, d.opts.ProjectID, d.opts.ClientKey), nil
}

// ChainURL returns the project scoped endpoint of the given chain.
func ChainURL(rpcDomain string, chainID uint64, projectID, clientKey string) string {
	query := url.Values{}
	query.Set("chainId", strconv.FormatUint(chainID, 10))
	query.Set("projectUuid", projectID)
	query.Set("projectKey", clientKey)
	return fmt.Sprintf("%s/evm-chain?%s", rpcDomain, query.Encode())
}
