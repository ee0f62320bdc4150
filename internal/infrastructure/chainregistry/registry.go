// Package chainregistry holds the metadata of the supported EVM chains and
// the account contract catalogue, both loaded from YAML with built-in
// defaults.
package chainregistry

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/btcconnect/connectkit/internal/core/domain"
	"github.com/btcconnect/connectkit/internal/core/ports"
	"gopkg.in/yaml.v3"
)

var (
	//go:embed chains.yaml
	defaultChains []byte
	//go:embed account_contracts.yaml
	defaultAccountContracts []byte
)

type chainsFile struct {
	Chains []domain.ChainInfo `yaml:"chains"`
}

type registry struct {
	chains map[uint64]domain.ChainInfo
	order  []uint64
}

// NewRegistry returns a registry of the given chains, preserving their order.
func NewRegistry(chains []domain.ChainInfo) (ports.ChainRegistry, error) {
	if len(chains) <= 0 {
		return nil, fmt.Errorf("%w: missing chains", domain.ErrInvalidConfiguration)
	}

	r := &registry{
		chains: make(map[uint64]domain.ChainInfo, len(chains)),
		order:  make([]uint64, 0, len(chains)),
	}
	for _, c := range chains {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if _, ok := r.chains[c.ID]; ok {
			return nil, fmt.Errorf(
				"%w: duplicated chain %d", domain.ErrInvalidConfiguration, c.ID,
			)
		}
		r.chains[c.ID] = c
		r.order = append(r.order, c.ID)
	}
	return r, nil
}

// LoadRegistry parses the YAML chains file at path, or the built-in chains
// if path is empty.
func LoadRegistry(path string) (ports.ChainRegistry, error) {
	data := defaultChains
	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read chains file: %w", err)
		}
		data = buf
	}

	var file chainsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse chains file: %w", err)
	}
	return NewRegistry(file.Chains)
}

// LoadAccountContracts parses the YAML account contracts file at path, or
// the built-in catalogue if path is empty.
func LoadAccountContracts(path string) (domain.AccountContracts, error) {
	data := defaultAccountContracts
	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read account contracts file: %w", err)
		}
		data = buf
	}

	contracts := make(domain.AccountContracts)
	if err := yaml.Unmarshal(data, &contracts); err != nil {
		return nil, fmt.Errorf("failed to parse account contracts file: %w", err)
	}
	if err := contracts.Validate(); err != nil {
		return nil, err
	}
	return contracts, nil
}

// ValidateAccountContracts makes sure every chain of every contract is known
// to the registry.
func ValidateAccountContracts(
	registry ports.ChainRegistry, contracts domain.AccountContracts,
) error {
	for _, name := range contracts.Names() {
		for _, cfg := range contracts[name] {
			for _, id := range cfg.ChainIDs {
				if _, ok := registry.Get(id); !ok {
					return fmt.Errorf(
						"%w: chain %d of account contract %s/%s is not configured",
						domain.ErrInvalidConfiguration, id, name, cfg.Version,
					)
				}
			}
		}
	}
	return nil
}

func (r *registry) Get(chainID uint64) (domain.ChainInfo, bool) {
	c, ok := r.chains[chainID]
	return c, ok
}

func (r *registry) List() []domain.ChainInfo {
	chains := make([]domain.ChainInfo, 0, len(r.order))
	for _, id := range r.order {
		chains = append(chains, r.chains[id])
	}
	return chains
}
