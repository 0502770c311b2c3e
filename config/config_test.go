package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()
	require.NoError(t, Default().Validate())
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.yaml")
	data := `
account:
  id: TEST-1
  cash: 50000
  leverage: 2
  fee_bps: 1
risk:
  max_drawdown: 0.1
  max_single: 0.2
  staleness: 30s
  sector_caps:
    tech: 0.5
journal:
  type: sqlite
  db_path: ./run.sqlite
symbols:
  AAPL:
    sector: tech
    region: amer
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "TEST-1", cfg.Account.ID)
	assert.Equal(t, 50_000.0, cfg.Account.Cash)
	assert.Equal(t, 0.5, cfg.Risk.SectorCaps["tech"])
	assert.Equal(t, "tech", cfg.Symbols["AAPL"].Sector)

	d, err := cfg.Risk.ParseStaleness()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)
}

func TestLoadJSONFallback(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.json")
	data := `{"account":{"id":"J-1","cash":1000,"leverage":1},"journal":{"type":"none"}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "J-1", cfg.Account.ID)
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no cash", func(c *Config) { c.Account.Cash = 0 }},
		{"negative fee", func(c *Config) { c.Account.FeeBps = -1 }},
		{"drawdown over 1", func(c *Config) { c.Risk.MaxDrawdown = 1.5 }},
		{"bad staleness", func(c *Config) { c.Risk.Staleness = "yesterday" }},
		{"csv missing paths", func(c *Config) { c.Journal = JournalConfig{Type: "csv"} }},
		{"sqlite missing path", func(c *Config) { c.Journal = JournalConfig{Type: "sqlite"} }},
		{"unknown journal", func(c *Config) { c.Journal.Type = "parquet" }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, Default().SaveToFile(path))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Account.Cash, cfg.Account.Cash)
}
