// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package scorestore

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/projectrank/internal/config"
)

// Open builds the backend selected by cfg.Backend.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func Open(ctx context.Context, cfg *config.StoreConfig, logger zerolog.Logger) (Store, error) {
	switch cfg.Backend {
	case "redis":
		return NewRedisStore(ctx, RedisConfig{
			URL:                cfg.RedisURL,
			WritesPerSecond:    cfg.WritesPerSecond,
			WriteBurst:         cfg.WriteBurst,
			BreakerMaxFailures: cfg.BreakerMaxFailures,
			BreakerTimeout:     cfg.BreakerTimeout,
		}, logger)
	case "badger":
		return OpenBadgerStore(cfg.BadgerPath, cfg.WritesPerSecond, cfg.WriteBurst)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown score store backend %q", cfg.Backend)
	}
}
