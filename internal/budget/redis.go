package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Veraticus/remitos/internal/model"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the hash that holds the shared window.
const DefaultRedisKey = "remitos:ocr:budget"

const (
	fieldWindowStart   = "window_start"
	fieldCallsInWindow = "calls_in_window"
)

// RedisConfig configures the shared budget store.
type RedisConfig struct {
	Addr     string
	Password string
	Key      string
	DB       int
	TTL      time.Duration // Key expiry; zero keeps the key forever
}

// RedisStore shares one budget window between processes through Redis.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	key := cfg.Key
	if key == "" {
		key = DefaultRedisKey
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, key: key, ttl: cfg.TTL}, nil
}

// maxWatchRetries bounds optimistic retries when another process updates the
// window between our read and write.
const maxWatchRetries = 20

// LoadBudget reads the shared window. A missing key yields a zero window.
func (s *RedisStore) LoadBudget(ctx context.Context) (model.BudgetWindow, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return model.BudgetWindow{}, fmt.Errorf("failed to load budget: %w", err)
	}
	return parseWindow(fields)
}

// SaveBudget writes the shared window and refreshes the key expiry.
func (s *RedisStore) SaveBudget(ctx context.Context, window model.BudgetWindow) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.writeWindow(ctx, pipe, window)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save budget: %w", err)
	}
	return nil
}

// AddCall counts one call inside a WATCH transaction on the budget key, so
// calls made by other processes between the read and the write are kept.
func (s *RedisStore) AddCall(ctx context.Context, now time.Time, length time.Duration) (model.BudgetWindow, error) {
	var updated model.BudgetWindow
	txf := func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, s.key).Result()
		if err != nil {
			return err
		}
		current, err := parseWindow(fields)
		if err != nil {
			return err
		}
		updated = current.WithCall(now, length)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.writeWindow(ctx, pipe, updated)
			return nil
		})
		return err
	}

	for range maxWatchRetries {
		err := s.client.Watch(ctx, txf, s.key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return model.BudgetWindow{}, fmt.Errorf("failed to record call: %w", err)
	}
	return model.BudgetWindow{}, fmt.Errorf("failed to record call: budget key contended after %d attempts", maxWatchRetries)
}

func (s *RedisStore) writeWindow(ctx context.Context, pipe redis.Pipeliner, window model.BudgetWindow) {
	var start int64
	if !window.WindowStart.IsZero() {
		start = window.WindowStart.UnixNano()
	}
	pipe.HSet(ctx, s.key,
		fieldWindowStart, strconv.FormatInt(start, 10),
		fieldCallsInWindow, strconv.Itoa(window.CallsInWindow))
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key, s.ttl)
	}
}

func parseWindow(fields map[string]string) (model.BudgetWindow, error) {
	var window model.BudgetWindow
	if raw := fields[fieldWindowStart]; raw != "" {
		nanos, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return model.BudgetWindow{}, fmt.Errorf("invalid %s %q: %w", fieldWindowStart, raw, err)
		}
		if nanos > 0 {
			window.WindowStart = time.Unix(0, nanos)
		}
	}
	if raw := fields[fieldCallsInWindow]; raw != "" {
		calls, err := strconv.Atoi(raw)
		if err != nil {
			return model.BudgetWindow{}, fmt.Errorf("invalid %s %q: %w", fieldCallsInWindow, raw, err)
		}
		window.CallsInWindow = calls
	}
	return window, nil
}

// ResetBudget deletes the shared window.
func (s *RedisStore) ResetBudget(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to reset budget: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
