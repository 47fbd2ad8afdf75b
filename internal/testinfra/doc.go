// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

// Package testinfra provides container helpers for integration tests.
//
// Tests that need a real Redis start one with testcontainers-go:
//
//	func TestRedisReplace(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    redis, err := testinfra.NewRedisContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, redis)
//
//	    store, err := scorestore.NewRedisStore(ctx, scorestore.RedisConfig{URL: redis.URL}, logger)
//	    // ...
//	}
//
// Every file carries the integration build tag, so plain unit test runs
// never pull Docker images.
package testinfra
