// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package scorestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/projectrank/internal/metrics"
)

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	URL                string
	WritesPerSecond    float64
	WriteBurst         int
	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration
}

// RedisStore writes sorted sets to Redis with temp-key + RENAME swaps.
type RedisStore struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker[struct{}]
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewRedisStore connects to cfg.URL and verifies the connection.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewRedisStore(ctx context.Context, cfg RedisConfig, logger zerolog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close() //nolint:errcheck // connection never became usable
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStoreFromClient(client, cfg, logger), nil
}

// NewRedisStoreFromClient wraps an existing client. The store owns the
// client and closes it on Close.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewRedisStoreFromClient(client *redis.Client, cfg RedisConfig, logger zerolog.Logger) *RedisStore {
	s := &RedisStore{
		client:  client,
		limiter: newLimiter(cfg.WritesPerSecond, cfg.WriteBurst),
		logger:  logger.With().Str("backend", "redis").Logger(),
	}

	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	timeout := cfg.BreakerTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:    "scorestore-redis",
		Timeout: timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Score store circuit breaker state changed")
		},
	})
	return s
}

// Replace swaps the set at key. Writes go to a unique temporary key that is
// then renamed over the live key inside one MULTI/EXEC.
func (s *RedisStore) Replace(ctx context.Context, key string, entries []Entry) error {
	start := time.Now()
	if err := wait(ctx, s.limiter); err != nil {
		return err
	}

	var fallback bool
	_, err := s.breaker.Execute(func() (struct{}, error) {
		var err error
		fallback, err = s.replace(ctx, key, entries)
		return struct{}{}, err
	})

	switch {
	case err != nil:
		metrics.RecordStoreWrite("redis", time.Since(start), err)
		return fmt.Errorf("replace %s: %w", key, err)
	case fallback:
		metrics.RecordStoreWrite("redis", time.Since(start), metrics.ErrStoreFallback)
	default:
		metrics.RecordStoreWrite("redis", time.Since(start), nil)
	}
	return nil
}

func (s *RedisStore) replace(ctx context.Context, key string, entries []Entry) (fallback bool, err error) {
	entries = dedupe(entries)
	if len(entries) == 0 {
		return false, s.client.Del(ctx, key).Err()
	}

	members := make([]redis.Z, len(entries))
	for i, e := range entries {
		members[i] = redis.Z{Score: e.Score, Member: e.Member}
	}

	tmp := key + ":tmp:" + uuid.NewString()
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, tmp)
		p.ZAdd(ctx, tmp, members...)
		p.Rename(ctx, tmp, key)
		return nil
	})
	if err == nil {
		return false, nil
	}
	if !isNoSuchKey(err) {
		_ = s.client.Del(ctx, tmp).Err() //nolint:errcheck // best-effort cleanup of the temp key
		return false, err
	}

	// The temp key vanished before RENAME; write the live key directly in
	// one transaction so it never stays half-populated.
	s.logger.Warn().Str("key", key).Err(err).Msg("Rename failed, writing live key directly")
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.ZAdd(ctx, key, members...)
		p.Del(ctx, tmp)
		return nil
	})
	if err != nil {
		return true, fmt.Errorf("direct write fallback: %w", err)
	}
	return true, nil
}

func isNoSuchKey(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "no such key")
}

// Range reads up to limit entries ordered by descending score.
func (s *RedisStore) Range(ctx context.Context, key string, limit int) ([]Entry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	zs, err := s.client.ZRevRangeWithScores(ctx, key, 0, stop).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("range %s: %w", key, err)
	}

	out := make([]Entry, 0, len(zs))
	for _, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			member = fmt.Sprint(z.Member)
		}
		out = append(out, Entry{Member: member, Score: z.Score})
	}
	sortEntries(out)
	return out, nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
