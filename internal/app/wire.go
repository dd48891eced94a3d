package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/swivlabs/swivd/internal/blob/s3"
	"github.com/swivlabs/swivd/internal/cache/redis"
	"github.com/swivlabs/swivd/internal/config"
	"github.com/swivlabs/swivd/internal/domain"
	"github.com/swivlabs/swivd/internal/notify"
	"github.com/swivlabs/swivd/internal/platform/pyth"
	"github.com/swivlabs/swivd/internal/platform/solana"
	"github.com/swivlabs/swivd/internal/service"
	"github.com/swivlabs/swivd/internal/store/postgres"
)

// Dependencies bundles everything the operating modes need. Constructed by
// Wire and torn down by the returned cleanup function. Optional fields
// (Redis-backed caches, the signer, the archiver) are nil when their
// configuration is absent.
type Dependencies struct {
	ProgramID solana.PublicKey

	// Stores
	PG       *postgres.Client
	Markets  domain.MarketStore
	Bets     domain.BetStore
	Users    domain.UserStore
	Protocol domain.ProtocolStore
	Board    domain.LeaderboardStore

	// Redis-backed, nil when redis is disabled
	Redis       *redis.Client
	Locks       domain.LockManager
	Prices      domain.PriceCache
	RateLimiter domain.RateLimiter

	// Chain and oracle clients
	Ledger *solana.Client
	Oracle *pyth.Client
	Signer *solana.Keypair

	// Services
	Leaderboard *service.Leaderboard
	Stats       *service.StatsService

	// Blob archival, nil unless archive.enabled
	Archiver *s3blob.Archiver

	Notifier *notify.Notifier
}

// needsSigner returns true for modes that submit resolve transactions.
func needsSigner(mode string) bool {
	return mode == "resolve" || mode == "full"
}

// Wire constructs the concrete dependency implementations from the given
// configuration. The returned cleanup function releases every resource in
// reverse construction order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}
	mode := strings.ToLower(cfg.Mode)

	programID, err := solana.PublicKeyFromBase58(cfg.Solana.ProgramID)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: program id: %w", err)
	}
	deps.ProgramID = programID

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.PG = pgClient
	deps.Markets = postgres.NewMarketStore(pool)
	deps.Bets = postgres.NewBetStore(pool)
	deps.Users = postgres.NewUserStore(pool)
	deps.Protocol = postgres.NewProtocolStore(pool)
	deps.Board = postgres.NewLeaderboardStore(pool)

	// --- Redis (optional) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Redis = redisClient
		deps.Locks = redis.NewLockManager(redisClient)
		deps.Prices = redis.NewPriceCache(redisClient, cfg.Oracle.CacheTTL.Duration)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
	}

	// --- Chain and oracle clients ---
	deps.Ledger = solana.NewClient(cfg.Solana.RPCURL)
	deps.Oracle = pyth.NewClient(cfg.Oracle.BaseURL)

	if needsSigner(mode) {
		signer, err := solana.LoadKeypair(solana.KeypairConfig{
			Path:          cfg.Solana.KeypairPath,
			EncryptedPath: cfg.Solana.EncryptedKeyPath,
			Password:      cfg.Solana.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: signer keypair: %w", err)
		}
		deps.Signer = signer
	}

	// --- Services ---
	deps.Leaderboard = service.NewLeaderboard(deps.Board, deps.Bets, logger)
	deps.Stats = service.NewStatsService(deps.Markets, deps.Bets, deps.Users, deps.Protocol)

	// --- S3 archival (optional) ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.Archive.Endpoint,
			Region:         cfg.Archive.Region,
			Bucket:         cfg.Archive.Bucket,
			AccessKey:      cfg.Archive.AccessKey,
			SecretKey:      cfg.Archive.SecretKey,
			ForcePathStyle: cfg.Archive.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.Markets, deps.Bets, logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
