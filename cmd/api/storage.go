package main

import (
	"context"
	"fmt"

	"glotrade-wallet/config"
	"glotrade-wallet/internal/adapter/storage/memory"
	pgStorage "glotrade-wallet/internal/adapter/storage/postgres"
	redisStorage "glotrade-wallet/internal/adapter/storage/redis"
	"glotrade-wallet/internal/core/ports"

	"github.com/rs/zerolog"
)

// storage bundles the repositories and infrastructure for one driver.
type storage struct {
	wallets   ports.WalletRepository
	ledger    ports.LedgerRepository
	freezes   ports.FreezeRepository
	rewards   ports.RewardStateRepository
	store     ports.LedgerStore
	cache     ports.IdempotencyCache
	lock      ports.JobLock
	rateLimit *redisStorage.RateLimitStore
	health    []ports.HealthChecker
	closers   []func()
}

func (s *storage) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStorage wires the configured driver. The memory driver runs without
// Redis: no receipt cache, no cross-instance lock and no rate limiting.
func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	if cfg.Storage.Driver == config.StorageMemory {
		log.Warn().Msg("Using in-memory storage; balances are lost on restart")
		m := memory.New()
		return &storage{
			wallets: m.Wallets(),
			ledger:  m.Ledger(),
			freezes: m.Freezes(),
			rewards: m.Rewards(),
			store:   m,
		}, nil
	}

	st := &storage{}

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	st.closers = append(st.closers, pool.Close)
	log.Info().Msg("PostgreSQL connected")

	if cfg.Database.AutoMigrate {
		if err := pgStorage.Migrate(ctx, pool, log); err != nil {
			st.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	st.closers = append(st.closers, func() { _ = rdb.Close() })
	log.Info().Msg("Redis connected")

	st.wallets = pgStorage.NewWalletRepo(pool)
	st.ledger = pgStorage.NewLedgerRepo(pool)
	st.freezes = pgStorage.NewFreezeRepo(pool)
	st.rewards = pgStorage.NewRewardStateRepo(pool)
	st.store = pgStorage.NewLedgerStore(pool)
	st.cache = redisStorage.NewIdempotencyCache(rdb)
	st.lock = redisStorage.NewJobLock(rdb)
	st.rateLimit = redisStorage.NewRateLimitStore(rdb)
	st.health = []ports.HealthChecker{
		pgStorage.NewHealthCheck(pool),
		redisStorage.NewHealthCheck(rdb),
	}
	return st, nil
}
