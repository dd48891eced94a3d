package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalConfig = `
mode = "serve"

[solana]
rpc_url = "https://api.devnet.solana.com"
ws_url = "wss://api.devnet.solana.com"
program_id = "SwivPrgm1111111111111111111111111111111111"

[database]
dsn = "postgres://swivd:pw@localhost:5432/swivd"
`

func TestLoadMergesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	require.Equal(t, "serve", cfg.Mode)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "https://hermes.pyth.network", cfg.Oracle.BaseURL)
	require.Equal(t, 10*time.Minute, cfg.Sync.FullSyncInterval.Duration)
	require.Equal(t, time.Minute, cfg.Resolver.TickInterval.Duration)
	require.Equal(t, 5, cfg.Resolver.SendRetries)
	require.True(t, cfg.Database.RunMigrations)

	require.NoError(t, cfg.Validate())
}

func TestLoadParsesDurations(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
[sync]
full_sync_interval = "3m"

[resolver]
tick_interval = "30s"
`))
	require.NoError(t, err)
	require.Equal(t, 3*time.Minute, cfg.Sync.FullSyncInterval.Duration)
	require.Equal(t, 30*time.Second, cfg.Resolver.TickInterval.Duration)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SWIVD_MODE", "sync")
	t.Setenv("SWIVD_SOLANA_RPC_URL", "https://rpc.example.com")
	t.Setenv("SWIVD_RESOLVER_TICK_INTERVAL", "45s")
	t.Setenv("SWIVD_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	require.Equal(t, "sync", cfg.Mode)
	require.Equal(t, "https://rpc.example.com", cfg.Solana.RPCURL)
	require.Equal(t, 45*time.Second, cfg.Resolver.TickInterval.Duration)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestValidateRejectsBadMode(t *testing.T) {
	cfg := Defaults()
	cfg.Solana.ProgramID = "x"
	cfg.Solana.KeypairPath = "/tmp/key.json"
	cfg.Mode = "turbo"
	require.ErrorContains(t, cfg.Validate(), "unknown mode")
}

func TestValidateRequiresSignerForResolveMode(t *testing.T) {
	cfg := Defaults()
	cfg.Solana.ProgramID = "x"
	cfg.Mode = "resolve"
	require.ErrorContains(t, cfg.Validate(), "keypair_path or encrypted_key_path")

	cfg.Solana.KeypairPath = "/etc/swivd/keypair.json"
	require.NoError(t, cfg.Validate())
}

func TestValidateRequiresProgramID(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "serve"
	require.ErrorContains(t, cfg.Validate(), "program_id")
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "serve"
	cfg.Solana.RPCURL = ""
	cfg.Database.PoolMaxConns = 0
	cfg.Server.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	require.ErrorContains(t, err, "rpc_url")
	require.ErrorContains(t, err, "pool_max_conns")
	require.ErrorContains(t, err, "server: port")
}
