// Package db opens the service's Postgres pool and Redis client, and scopes
// Postgres transactions to one tenant.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/config"
)

const pingTimeout = 5 * time.Second

// Connect opens a pool for cfg.DatabaseURL and checks it answers.
// It returns nil and no error when no URL is configured.
func Connect(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil
	}
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	log.Infow("postgres ready", "host", pcfg.ConnConfig.Host, "database", pcfg.ConnConfig.Database,
		"max_conns", pcfg.MaxConns)
	return pool, nil
}

// ConnectRedis is Connect for cfg.RedisURL.
func ConnectRedis(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	cli := redis.NewClient(opts)
	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := cli.Ping(pctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	log.Infow("redis ready", "addr", opts.Addr, "db", opts.DB)
	return cli, nil
}
