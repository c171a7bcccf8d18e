// Package usage counts dispatches and tokens per credential per accounting
// window. Counters roll over with the window; nothing is reset explicitly.
package usage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/models"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/quota"
)

var periods = []models.QuotaPeriod{models.QuotaDaily, models.QuotaMonthly}

// Usage is the consumption within one window.
type Usage struct {
	Requests int64
	Tokens   int64
}

type Counter interface {
	// Record adds one request and the given tokens to every window containing now.
	Record(ctx context.Context, credentialID string, tokens int64, now time.Time) error
	Get(ctx context.Context, credentialID string, period models.QuotaPeriod, now time.Time) (Usage, error)
}

func key(credentialID, metric string, period models.QuotaPeriod, now time.Time) string {
	return fmt.Sprintf("usage:%s:%s:%s:%s", credentialID, period, quota.WindowKey(period, now), metric)
}

type memCounter struct {
	mu sync.Mutex
	m  map[string]int64
}

func NewMemory() Counter { return &memCounter{m: map[string]int64{}} }

func (c *memCounter) Record(_ context.Context, credentialID string, tokens int64, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range periods {
		c.m[key(credentialID, "requests", p, now)]++
		if tokens > 0 {
			c.m[key(credentialID, "tokens", p, now)] += tokens
		}
	}
	return nil
}

func (c *memCounter) Get(_ context.Context, credentialID string, period models.QuotaPeriod, now time.Time) (Usage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Usage{
		Requests: c.m[key(credentialID, "requests", period, now)],
		Tokens:   c.m[key(credentialID, "tokens", period, now)],
	}, nil
}

type redisCounter struct {
	rdb *redis.Client
}

// NewRedis keeps counters in redis; keys expire when their window closes.
func NewRedis(rdb *redis.Client) Counter { return &redisCounter{rdb: rdb} }

func (c *redisCounter) Record(ctx context.Context, credentialID string, tokens int64, now time.Time) error {
	pipe := c.rdb.Pipeline()
	for _, p := range periods {
		expire := quota.ResetAt(p, now).Add(time.Hour)
		k := key(credentialID, "requests", p, now)
		pipe.Incr(ctx, k)
		pipe.ExpireAt(ctx, k, expire)
		if tokens > 0 {
			k = key(credentialID, "tokens", p, now)
			pipe.IncrBy(ctx, k, tokens)
			pipe.ExpireAt(ctx, k, expire)
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (c *redisCounter) Get(ctx context.Context, credentialID string, period models.QuotaPeriod, now time.Time) (Usage, error) {
	req, err := c.get(ctx, key(credentialID, "requests", period, now))
	if err != nil {
		return Usage{}, err
	}
	tok, err := c.get(ctx, key(credentialID, "tokens", period, now))
	if err != nil {
		return Usage{}, err
	}
	return Usage{Requests: req, Tokens: tok}, nil
}

func (c *redisCounter) get(ctx context.Context, k string) (int64, error) {
	n, err := c.rdb.Get(ctx, k).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}
