package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("BASE_CURRENCY", "eur")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, "EUR", cfg.BaseCurrency)
	require.Equal(t, StorePostgres, cfg.LedgerStore)
	require.Equal(t, 60, cfg.OpsRateLimit)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRequiresBaseCurrency(t *testing.T) {
	t.Setenv("BASE_CURRENCY", "")

	_, err := LoadConfig("")
	require.Error(t, err)
}

func TestLoadConfigReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.env")
	require.NoError(t, os.WriteFile(path, []byte("BASE_CURRENCY=CHF\nLEDGER_STORE=sqlite\nSQLITE_PATH=/tmp/ledger.db\n"), 0o600))
	// godotenv never overrides variables that are already set.
	t.Setenv("BASE_CURRENCY", "")
	os.Unsetenv("BASE_CURRENCY")
	t.Setenv("LEDGER_STORE", "")
	os.Unsetenv("LEDGER_STORE")
	t.Setenv("SQLITE_PATH", "")
	os.Unsetenv("SQLITE_PATH")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "CHF", cfg.BaseCurrency)
	require.Equal(t, StoreSQLite, cfg.LedgerStore)
}

func TestLoadConfigMissingEnvFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			BaseCurrency: "EUR",
			LedgerStore:  StoreSQLite,
			SQLitePath:   "ledger.db",
			LogLevel:     "info",
			OpsRateLimit: 10,
		}
	}
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"lowercase currency", func(c *Config) { c.BaseCurrency = " usd " }, true},
		{"unknown currency", func(c *Config) { c.BaseCurrency = "XXY" }, false},
		{"sqlite without path", func(c *Config) { c.SQLitePath = "" }, false},
		{"postgres without dsn", func(c *Config) { c.LedgerStore = StorePostgres }, false},
		{"unknown store", func(c *Config) { c.LedgerStore = "mysql" }, false},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, false},
		{"zero rate limit", func(c *Config) { c.OpsRateLimit = 0 }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
		})
	}
}
