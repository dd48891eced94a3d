// Package config defines the top-level configuration for swivd and provides
// validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by SWIVD_* environment variables.
type Config struct {
	Solana   SolanaConfig   `toml:"solana"`
	Oracle   OracleConfig   `toml:"oracle"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	Sync     SyncConfig     `toml:"sync"`
	Resolver ResolverConfig `toml:"resolver"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// SolanaConfig holds RPC endpoints, the program to mirror, and the backend
// signing key used for resolve transactions.
type SolanaConfig struct {
	RPCURL           string `toml:"rpc_url"`
	WSURL            string `toml:"ws_url"`
	ProgramID        string `toml:"program_id"`
	KeypairPath      string `toml:"keypair_path"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// OracleConfig holds the Hermes price service endpoint.
type OracleConfig struct {
	BaseURL string `toml:"base_url"`
	// CacheTTL bounds how long an oracle reading may be reused.
	CacheTTL duration `toml:"cache_ttl"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// SyncConfig holds reconciliation engine tunables.
type SyncConfig struct {
	// FullSyncInterval is the period of the unconditional market sweep.
	// Zero disables the sweep, leaving reconciliation event-only.
	FullSyncInterval duration `toml:"full_sync_interval"`
	// MarketSyncDelay is the pause between a pool-created event and the
	// market sweep it triggers.
	MarketSyncDelay duration `toml:"market_sync_delay"`
}

// ResolverConfig holds resolution scheduler tunables.
type ResolverConfig struct {
	TickInterval duration `toml:"tick_interval"`
	SendRetries  int      `toml:"send_retries"`
	LockTTL      duration `toml:"lock_ttl"`
}

// ArchiveConfig holds settled-market archival parameters.
type ArchiveConfig struct {
	Enabled        bool     `toml:"enabled"`
	Interval       duration `toml:"interval"`
	Endpoint       string   `toml:"endpoint"`
	Region         string   `toml:"region"`
	Bucket         string   `toml:"bucket"`
	AccessKey      string   `toml:"access_key"`
	SecretKey      string   `toml:"secret_key"`
	ForcePathStyle bool     `toml:"force_path_style"`
}

// ServerConfig holds HTTP API parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	// RateLimit caps requests per client per RateWindow. Zero disables.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration for TOML text (un)marshalling.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Solana: SolanaConfig{
			RPCURL: "https://api.devnet.solana.com",
			WSURL:  "wss://api.devnet.solana.com",
		},
		Oracle: OracleConfig{
			BaseURL:  "https://hermes.pyth.network",
			CacheTTL: duration{30 * time.Second},
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "swivd",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled: true,
			Addr:    "localhost:6379",
		},
		Sync: SyncConfig{
			FullSyncInterval: duration{10 * time.Minute},
			MarketSyncDelay:  duration{2 * time.Second},
		},
		Resolver: ResolverConfig{
			TickInterval: duration{time.Minute},
			SendRetries:  5,
			LockTTL:      duration{50 * time.Second},
		},
		Archive: ArchiveConfig{
			Interval:       duration{time.Hour},
			Region:         "us-east-1",
			Bucket:         "swivd-archive",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:    true,
			Port:       8080,
			RateLimit:  100,
			RateWindow: duration{time.Second},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"full":    true,
	"sync":    true,
	"resolve": true,
	"serve":   true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: full, sync, resolve, serve)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Solana.RPCURL == "" {
		errs = append(errs, "solana: rpc_url must not be empty")
	}
	if c.Solana.ProgramID == "" {
		errs = append(errs, "solana: program_id must not be empty")
	}

	needsSigner := c.Mode == "resolve" || c.Mode == "full"
	if needsSigner {
		if c.Solana.KeypairPath == "" && c.Solana.EncryptedKeyPath == "" {
			errs = append(errs, "solana: either keypair_path or encrypted_key_path must be set for mode "+c.Mode)
		}
		if c.Solana.EncryptedKeyPath != "" && c.Solana.KeypairPath == "" && c.Solana.KeyPassword == "" {
			errs = append(errs, "solana: key_password is required when only encrypted_key_path is set")
		}
	}

	needsWS := c.Mode == "sync" || c.Mode == "full"
	if needsWS && c.Solana.WSURL == "" {
		errs = append(errs, "solana: ws_url must not be empty for mode "+c.Mode)
	}

	if c.Oracle.BaseURL == "" {
		errs = append(errs, "oracle: base_url must not be empty")
	}

	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty when enabled")
	}

	if c.Resolver.TickInterval.Duration < 0 {
		errs = append(errs, "resolver: tick_interval must not be negative")
	}
	if c.Resolver.SendRetries < 0 {
		errs = append(errs, "resolver: send_retries must not be negative")
	}

	if c.Archive.Enabled {
		if c.Archive.Bucket == "" {
			errs = append(errs, "archive: bucket must not be empty when enabled")
		}
		if c.Archive.Region == "" {
			errs = append(errs, "archive: region must not be empty when enabled")
		}
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
