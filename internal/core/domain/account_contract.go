package domain

import (
	"fmt"
	"sort"
)

// DefaultAccountContractName is preferred when no valid selection exists.
const DefaultAccountContractName = "BTC"

// AccountContract selects the account-abstraction contract family and
// version governing smart-account derivation.
type AccountContract struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

func (c AccountContract) IsZero() bool {
	return c.Name == "" && c.Version == ""
}

func (c AccountContract) String() string {
	return fmt.Sprintf("%s/%s", c.Name, c.Version)
}

// AccountContractConfig lists the chains where a contract version is deployed.
type AccountContractConfig struct {
	Version  string   `json:"version" yaml:"version"`
	ChainIDs []uint64 `json:"chainIds" yaml:"chainIds"`
}

// AccountContracts is the host supplied mapping name -> versions.
type AccountContracts map[string][]AccountContractConfig

// Validate makes sure every entry has a version and at least one chain.
func (a AccountContracts) Validate() error {
	if len(a) <= 0 {
		return fmt.Errorf("%w: missing account contracts", ErrInvalidConfiguration)
	}
	for name, configs := range a {
		if name == "" {
			return fmt.Errorf("%w: account contract with empty name", ErrInvalidConfiguration)
		}
		if len(configs) <= 0 {
			return fmt.Errorf(
				"%w: account contract %s has no versions", ErrInvalidConfiguration, name,
			)
		}
		for _, c := range configs {
			if c.Version == "" {
				return fmt.Errorf(
					"%w: account contract %s has an empty version",
					ErrInvalidConfiguration, name,
				)
			}
			if len(c.ChainIDs) <= 0 {
				return fmt.Errorf(
					"%w: account contract %s/%s has no chains",
					ErrInvalidConfiguration, name, c.Version,
				)
			}
		}
	}
	return nil
}

// IsSupported returns whether the given selection matches a configured entry.
func (a AccountContracts) IsSupported(c AccountContract) bool {
	for _, cfg := range a[c.Name] {
		if cfg.Version == c.Version {
			return true
		}
	}
	return false
}

// ChainIDs returns the de-duplicated union of the chains of every entry
// matching the selection, in configuration order.
func (a AccountContracts) ChainIDs(c AccountContract) []uint64 {
	seen := make(map[uint64]bool)
	chainIDs := make([]uint64, 0)
	for _, cfg := range a[c.Name] {
		if cfg.Version != c.Version {
			continue
		}
		for _, id := range cfg.ChainIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			chainIDs = append(chainIDs, id)
		}
	}
	return chainIDs
}

// Versions returns the configured versions for the given contract name.
func (a AccountContracts) Versions(name string) []string {
	versions := make([]string, 0, len(a[name]))
	for _, cfg := range a[name] {
		versions = append(versions, cfg.Version)
	}
	return versions
}

// Names returns the sorted contract names.
func (a AccountContracts) Names() []string {
	names := make([]string, 0, len(a))
	for name := range a {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns the first version of the BTC family, or of the first name
// in lexical order if BTC is not configured.
func (a AccountContracts) Default() AccountContract {
	name := DefaultAccountContractName
	if len(a[name]) <= 0 {
		names := a.Names()
		if len(names) <= 0 {
			return AccountContract{}
		}
		name = names[0]
	}
	return AccountContract{name, a[name][0].Version}
}
