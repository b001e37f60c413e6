package fedcoord

import (
	"fmt"
	"os"
	"sync"

	"github.com/pelletier/go-toml"
)

// ClientConfig identifies a federated client together with its
// on-chain settlement address.
type ClientConfig struct {
	ID      string `toml:"id"`
	Address string `toml:"address"`
	Key     string `toml:"key"`
}

type ClientRegistry struct {
	Clients []ClientConfig `toml:"clients"`

	indexOnce sync.Once
	byID      map[string]ClientConfig
}

func LoadClientRegistry(path string) (*ClientRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading registry file: %w", err)
	}

	tree, err := toml.Load(string(data))
	if err != nil {
		return nil, fmt.Errorf("error parsing registry file: %w", err)
	}

	var reg ClientRegistry
	if err := tree.Unmarshal(&reg); err != nil {
		return nil, fmt.Errorf("error unmarshaling registry: %w", err)
	}

	reg.indexOnce.Do(reg.index)

	return &reg, nil
}

func (r *ClientRegistry) index() {
	r.byID = make(map[string]ClientConfig, len(r.Clients))
	for _, c := range r.Clients {
		r.byID[c.ID] = c
	}
}

// Resolve maps a client ID to its settlement address. It satisfies
// ledger.AddressResolver and is safe for concurrent use; the lookup index is
// built once on first access.
func (r *ClientRegistry) Resolve(clientID string) (string, bool) {
	r.indexOnce.Do(r.index)

	c, ok := r.byID[clientID]
	if !ok || c.Address == "" {
		return "", false
	}

	return c.Address, true
}
