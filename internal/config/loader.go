package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SWIVD_* environment variable overrides, and
// returns the final Config. The result has NOT been validated; callers
// should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env if present; a missing file is not an error.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SWIVD_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Solana.RPCURL, "SWIVD_SOLANA_RPC_URL")
	setStr(&cfg.Solana.WSURL, "SWIVD_SOLANA_WS_URL")
	setStr(&cfg.Solana.ProgramID, "SWIVD_SOLANA_PROGRAM_ID")
	setStr(&cfg.Solana.KeypairPath, "SWIVD_SOLANA_KEYPAIR_PATH")
	setStr(&cfg.Solana.EncryptedKeyPath, "SWIVD_SOLANA_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Solana.KeyPassword, "SWIVD_SOLANA_KEY_PASSWORD")

	setStr(&cfg.Oracle.BaseURL, "SWIVD_ORACLE_BASE_URL")
	setDuration(&cfg.Oracle.CacheTTL, "SWIVD_ORACLE_CACHE_TTL")

	setStr(&cfg.Database.DSN, "SWIVD_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "SWIVD_DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "SWIVD_DATABASE_HOST")
	setInt(&cfg.Database.Port, "SWIVD_DATABASE_PORT")
	setStr(&cfg.Database.Database, "SWIVD_DATABASE_NAME")
	setStr(&cfg.Database.User, "SWIVD_DATABASE_USER")
	setStr(&cfg.Database.Password, "SWIVD_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "SWIVD_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "SWIVD_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "SWIVD_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "SWIVD_DATABASE_RUN_MIGRATIONS")

	setBool(&cfg.Redis.Enabled, "SWIVD_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "SWIVD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SWIVD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SWIVD_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "SWIVD_REDIS_TLS_ENABLED")

	setDuration(&cfg.Sync.FullSyncInterval, "SWIVD_SYNC_FULL_SYNC_INTERVAL")
	setDuration(&cfg.Sync.MarketSyncDelay, "SWIVD_SYNC_MARKET_SYNC_DELAY")

	setDuration(&cfg.Resolver.TickInterval, "SWIVD_RESOLVER_TICK_INTERVAL")
	setInt(&cfg.Resolver.SendRetries, "SWIVD_RESOLVER_SEND_RETRIES")
	setDuration(&cfg.Resolver.LockTTL, "SWIVD_RESOLVER_LOCK_TTL")

	setBool(&cfg.Archive.Enabled, "SWIVD_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "SWIVD_ARCHIVE_INTERVAL")
	setStr(&cfg.Archive.Endpoint, "SWIVD_ARCHIVE_ENDPOINT")
	setStr(&cfg.Archive.Region, "SWIVD_ARCHIVE_REGION")
	setStr(&cfg.Archive.Bucket, "SWIVD_ARCHIVE_BUCKET")
	setStr(&cfg.Archive.AccessKey, "SWIVD_ARCHIVE_ACCESS_KEY")
	setStr(&cfg.Archive.SecretKey, "SWIVD_ARCHIVE_SECRET_KEY")
	setBool(&cfg.Archive.ForcePathStyle, "SWIVD_ARCHIVE_FORCE_PATH_STYLE")

	setBool(&cfg.Server.Enabled, "SWIVD_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SWIVD_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SWIVD_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "SWIVD_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "SWIVD_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "SWIVD_SERVER_RATE_WINDOW")

	setStr(&cfg.Notify.TelegramToken, "SWIVD_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SWIVD_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SWIVD_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SWIVD_NOTIFY_EVENTS")

	setStr(&cfg.Mode, "SWIVD_MODE")
	setStr(&cfg.LogLevel, "SWIVD_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
