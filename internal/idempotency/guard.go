package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nimasrn/rental-billing/pkg/logger"
	"github.com/nimasrn/rental-billing/pkg/redis"
)

var (
	ErrInFlight   = errors.New("a request with this idempotency key is still being processed")
	ErrInvalidKey = errors.New("idempotency key must be 1 to 255 characters")
)

const maxKeyLen = 255

type Config struct {
	// LockTTL bounds how long a crashed request keeps its key locked.
	LockTTL time.Duration
	// ResultTTL is how long a finished request can be replayed.
	ResultTTL time.Duration

	LockKeyPrefix   string
	ResultKeyPrefix string
}

func DefaultConfig() Config {
	return Config{
		LockTTL:         30 * time.Second,
		ResultTTL:       24 * time.Hour,
		LockKeyPrefix:   "idem:lock:",
		ResultKeyPrefix: "idem:done:",
	}
}

// Guard makes manual creation safe to retry. The first request holding a
// key creates the entry and records its id; replays get that id back.
type Guard struct {
	redis  redis.RedisAdapter
	config Config
}

func NewGuard(adapter redis.RedisAdapter, config Config) *Guard {
	return &Guard{
		redis:  adapter,
		config: config,
	}
}

// Claim is held by the request allowed to do the work for a key.
type Claim struct {
	key   string
	guard *Guard
	done  bool
}

// Begin looks key up. If a previous request finished, its transaction id is
// returned with a nil claim. Otherwise the caller gets the claim and must
// call Complete or Release. ErrInFlight means another request holds the key.
func (g *Guard) Begin(ctx context.Context, key string) (int64, *Claim, error) {
	if key == "" || len(key) > maxKeyLen {
		return 0, nil, ErrInvalidKey
	}

	if id, ok, err := g.result(ctx, key); err != nil || ok {
		return id, nil, err
	}

	acquired, err := g.redis.SetNX(ctx, g.config.LockKeyPrefix+key, []byte(strconv.FormatInt(time.Now().UnixNano(), 10)), g.config.LockTTL)
	if err != nil {
		return 0, nil, fmt.Errorf("acquire idempotency lock: %w", err)
	}
	if !acquired {
		logger.Info("idempotency key in flight", "key", key)
		return 0, nil, ErrInFlight
	}

	// the previous holder may have finished between the lookup and the lock
	if id, ok, err := g.result(ctx, key); err != nil || ok {
		_ = g.redis.Del(ctx, g.config.LockKeyPrefix+key)
		return id, nil, err
	}

	return 0, &Claim{key: key, guard: g}, nil
}

func (g *Guard) result(ctx context.Context, key string) (int64, bool, error) {
	raw, err := g.redis.Get(ctx, g.config.ResultKeyPrefix+key)
	if err != nil {
		if errors.Is(err, redis.NilError) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read idempotency result: %w", err)
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt idempotency result for %q: %w", key, err)
	}
	return id, true, nil
}

// Complete records id as the outcome of the claimed key and frees the lock.
func (c *Claim) Complete(ctx context.Context, id int64) error {
	if c == nil || c.done {
		return nil
	}
	g := c.guard
	if err := g.redis.Set(ctx, g.config.ResultKeyPrefix+c.key, []byte(strconv.FormatInt(id, 10)), g.config.ResultTTL); err != nil {
		logger.Error("failed to store idempotency result", "key", c.key, "id", id, "error", err)
		return err
	}
	c.release(ctx)
	return nil
}

// Release frees the key without recording an outcome, so a retry can run.
func (c *Claim) Release(ctx context.Context) {
	if c == nil || c.done {
		return
	}
	c.release(ctx)
}

func (c *Claim) release(ctx context.Context) {
	if err := c.guard.redis.Del(ctx, c.guard.config.LockKeyPrefix+c.key); err != nil {
		logger.Warn("failed to release idempotency lock", "key", c.key, "error", err)
	}
	c.done = true
}
