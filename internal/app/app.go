// Package app wires configuration into the stores and services shared by the
// api and billing binaries.
package app

import (
	"context"

	"github.com/nimasrn/rental-billing/internal/config"
	"github.com/nimasrn/rental-billing/internal/events"
	"github.com/nimasrn/rental-billing/internal/idempotency"
	"github.com/nimasrn/rental-billing/internal/repository"
	"github.com/nimasrn/rental-billing/internal/services"
	"github.com/nimasrn/rental-billing/pkg/logger"
	"github.com/nimasrn/rental-billing/pkg/pg"
	"github.com/nimasrn/rental-billing/pkg/redis"
)

type App struct {
	DB    *pg.DB
	Redis redis.RedisAdapter // nil when REDIS_ADDR is unset

	Transactions *repository.TransactionRepository
	Contracts    *repository.ContractRepository

	Ledger     *services.LedgerService
	Settlement *services.SettlementService
	Guard      *idempotency.Guard // nil without redis
}

// New connects to postgres (and redis when configured) and builds the
// service graph.
func New(cfg *config.Config) (*App, error) {
	if cfg.LogLevel != "" {
		if err := logger.SetLevel(cfg.LogLevel); err != nil {
			logger.Warn("ignoring invalid LOG_LEVEL", "value", cfg.LogLevel, "error", err)
		}
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	db, err := pg.CreateReadWrite(readConfig(cfg), WriteConfig(cfg), cfg.AppEnv == "dev")
	if err != nil {
		return nil, err
	}

	var rdb redis.RedisAdapter
	if cfg.RedisEnabled() {
		rdb, err = redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, &redis.Options{
			Addrs:      []string{cfg.RedisAddr},
			ClientName: cfg.AppName,
			DB:         cfg.RedisDatabase,
			Username:   cfg.RedisUsername,
			Password:   cfg.RedisPassword,
		})
		if err != nil {
			return nil, err
		}
	} else {
		logger.Info("redis not configured, event stream and idempotency keys disabled")
	}

	return Assemble(cfg, db, rdb, services.SystemToday(loc)), nil
}

// Assemble builds repositories and services over already opened stores.
// rdb may be nil.
func Assemble(cfg *config.Config, db *pg.DB, rdb redis.RedisAdapter, today services.Today) *App {
	a := &App{DB: db, Redis: rdb}
	a.Transactions = repository.NewTransactionRepository(a.DB)
	a.Contracts = repository.NewContractRepository(a.DB)

	var publisher services.EventPublisher
	if a.Redis != nil {
		publisher = events.NewStream(a.Redis, events.StreamConfig{
			Name:   cfg.EventsStream,
			MaxLen: cfg.EventsStreamMaxLen,
		})
		guardCfg := idempotency.DefaultConfig()
		guardCfg.ResultTTL = cfg.IdempotencyTTL
		guardCfg.LockTTL = cfg.IdempotencyLockTTL
		a.Guard = idempotency.NewGuard(a.Redis, guardCfg)
	}

	sweeper := services.NewSweeper(a.Transactions, today, publisher)
	generator := services.NewChargeGenerator(a.Contracts, a.Transactions, today, publisher)
	deriver := services.NewFeeDeriver(a.Transactions, a.Contracts, today, publisher)

	a.Ledger = services.NewLedgerService(a.Transactions, a.Contracts, sweeper, generator, deriver, publisher)
	a.Settlement = services.NewSettlementService(a.Transactions, today, publisher)
	return a
}

// RedisPing is a health check for the optional redis connection.
func (a *App) RedisPing(ctx context.Context) error {
	return a.Redis.Client().Ping(ctx).Err()
}

func readConfig(cfg *config.Config) pg.Config {
	return pg.Config{
		User:     cfg.PostgresReadUser,
		Host:     cfg.PostgresReadHost,
		Port:     cfg.PostgresReadPort,
		Password: cfg.PostgresReadPassword,
		Database: cfg.PostgresReadDatabase,
	}
}

// WriteConfig is the primary connection, also used for migrations.
func WriteConfig(cfg *config.Config) pg.Config {
	return pg.Config{
		User:     cfg.PostgresWriteUser,
		Host:     cfg.PostgresWriteHost,
		Port:     cfg.PostgresWritePort,
		Password: cfg.PostgresWritePassword,
		Database: cfg.PostgresWriteDatabase,
	}
}
