package fedcoord_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	fedcoord "github.com/openfed/fedcoord"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const registryTOML = `
[[clients]]
id = "client-a"
address = "0xaaa"
key = "secret-a"

[[clients]]
id = "client-b"
address = "0xbbb"
key = "secret-b"

[[clients]]
id = "client-c"
key = "secret-c"
`

func writeRegistry(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoadClientRegistry(t *testing.T) {
	reg, err := fedcoord.LoadClientRegistry(writeRegistry(t, registryTOML))
	require.NoError(t, err)

	require.Len(t, reg.Clients, 3)
	assert.Equal(t, "client-a", reg.Clients[0].ID)
	assert.Equal(t, "0xaaa", reg.Clients[0].Address)
}

func TestResolve(t *testing.T) {
	reg, err := fedcoord.LoadClientRegistry(writeRegistry(t, registryTOML))
	require.NoError(t, err)

	addr, ok := reg.Resolve("client-b")
	require.True(t, ok)
	assert.Equal(t, "0xbbb", addr)

	_, ok = reg.Resolve("client-z")
	assert.False(t, ok)

	// A registered client without an address cannot settle.
	_, ok = reg.Resolve("client-c")
	assert.False(t, ok)
}

func TestResolveConcurrentFirstUse(t *testing.T) {
	// A registry built without LoadClientRegistry indexes itself on the
	// first Resolve; concurrent first calls must not race.
	reg := &fedcoord.ClientRegistry{
		Clients: []fedcoord.ClientConfig{
			{ID: "client-a", Address: "0xaaa"},
			{ID: "client-b", Address: "0xbbb"},
		},
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			addr, ok := reg.Resolve("client-a")
			assert.True(t, ok)
			assert.Equal(t, "0xaaa", addr)
		}()
	}
	wg.Wait()
}

func TestLoadClientRegistryMissingFile(t *testing.T) {
	_, err := fedcoord.LoadClientRegistry(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestLoadClientRegistryInvalidTOML(t *testing.T) {
	_, err := fedcoord.LoadClientRegistry(writeRegistry(t, "[[clients]\nid="))
	assert.Error(t, err)
}
