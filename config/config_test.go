package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Valid(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Network.DefaultRouteHopCount)
	assert.Equal(t, 32768, cfg.DHT.MaxSubkeySize)
	assert.Equal(t, 10*time.Minute, cfg.DHT.DefaultWatchExpiration.Duration())
}

func TestConfig_ValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty program", func(c *Config) { c.ProgramName = "" }},
		{"zero hop", func(c *Config) { c.Network.DefaultRouteHopCount = 0 }},
		{"max below default", func(c *Config) { c.Network.MaxRouteHopCount = 0 }},
		{"no directory", func(c *Config) { c.TableStore.Directory = "" }},
		{"password without encrypt", func(c *Config) { c.TableStore.DeviceKeyPassword = "x" }},
		{"dh cache", func(c *Config) { c.Crypto.DHCacheSize = 0 }},
		{"subkey size", func(c *Config) { c.DHT.MaxSubkeySize = 0 }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestInMemoryAllowsEmptyDirectory(t *testing.T) {
	cfg := NewConfig()
	cfg.TableStore = cfg.TableStore.WithDirectory("").WithInMemory(true)
	assert.NoError(t, cfg.Validate())
}

func TestFromYAML_PartialKeepsDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte(`
program_name: node-a
dht:
  default_watch_expiration: 30s
logging:
  level: "dht=debug,info"
`))
	require.NoError(t, err)
	assert.Equal(t, "node-a", cfg.ProgramName)
	assert.Equal(t, 30*time.Second, cfg.DHT.DefaultWatchExpiration.Duration())
	assert.Equal(t, 32768, cfg.DHT.MaxSubkeySize)
	assert.Equal(t, []string{"loopback:default"}, cfg.Network.Bootstrap)
}

func TestFromJSON_Duration(t *testing.T) {
	cfg, err := FromJSON([]byte(`{"network":{"rpc_timeout":"2s"},"dht":{"get_timeout":1000000000}}`))
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Network.RPCTimeout.Duration())
	assert.Equal(t, time.Second, cfg.DHT.GetTimeout.Duration())
}

func TestSaveLoadFile(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"c.json", "c.yaml"} {
		cfg := NewConfig()
		cfg.Namespace = "ns"
		cfg.TableStore = cfg.TableStore.WithEncryption("pw")
		path := filepath.Join(dir, name)
		require.NoError(t, SaveFile(cfg, path))

		got, err := LoadFile(path)
		require.NoError(t, err, name)
		assert.Equal(t, cfg, got, name)
	}
}

func TestClone_Independent(t *testing.T) {
	cfg := NewConfig()
	c2 := cfg.Clone()
	c2.Network.Bootstrap[0] = "loopback:other"
	assert.Equal(t, "loopback:default", cfg.Network.Bootstrap[0])
}
