// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Driver != "duckdb" {
		t.Errorf("Database.Driver = %q, want duckdb", cfg.Database.Driver)
	}
	if cfg.Store.Backend != "redis" {
		t.Errorf("Store.Backend = %q, want redis", cfg.Store.Backend)
	}
	if !cfg.Features.Lock {
		t.Error("Features.Lock should be true by default")
	}
	if cfg.Inference.Temperature != 1.0 {
		t.Errorf("Inference.Temperature = %f, want 1.0", cfg.Inference.Temperature)
	}
	if cfg.Inference.ColdStartOnFullExclusion {
		t.Error("Inference.ColdStartOnFullExclusion should be false by default")
	}
	if cfg.Trending.Mode != "blend" {
		t.Errorf("Trending.Mode = %q, want blend", cfg.Trending.Mode)
	}
	if cfg.Trending.TrendMin != 0.5 || cfg.Trending.TrendMax != 3.0 {
		t.Errorf("Trending clip band = [%f, %f], want [0.5, 3.0]", cfg.Trending.TrendMin, cfg.Trending.TrendMax)
	}
	if cfg.Lock.StaleAfter != 2*time.Hour {
		t.Errorf("Lock.StaleAfter = %v, want 2h", cfg.Lock.StaleAfter)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"REDIS_URL", "store.redis_url"},
		{"EXCLUDE_SEEN", "inference.exclude_seen"},
		{"SCORE_TEMPERATURE", "inference.temperature"},
		{"STORE_TOPK", "inference.top_k"},
		{"STORE_TOPK_TOP", "trending.top_k"},
		{"TREND_MAX", "trending.trend_max"},
		{"TZ", "trending.timezone"},
		{"LOCK_STATIC", "features.lock"},
		{"HTTP_CACHE_TTL", "server.cache_ttl"},
		{"HOME", ""},
		{"PATH", ""},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			if got := envTransformFunc(tt.env); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("EXCLUDE_SEEN", "true")
	t.Setenv("SCORE_TEMPERATURE", "0.5")
	t.Setenv("STORE_TOPK", "25")
	t.Setenv("TRENDING_MODE", "trend_ratio")
	t.Setenv("MODEL_HIDDEN_DIMS", "64, 32")
	t.Setenv("RECENCY_HALF_LIFE", "48h")
	t.Setenv("TZ", "UTC")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !cfg.Inference.ExcludeSeen {
		t.Error("Inference.ExcludeSeen should be true from env")
	}
	if cfg.Inference.Temperature != 0.5 {
		t.Errorf("Inference.Temperature = %f, want 0.5", cfg.Inference.Temperature)
	}
	if cfg.Inference.TopK != 25 {
		t.Errorf("Inference.TopK = %d, want 25", cfg.Inference.TopK)
	}
	if cfg.Trending.Mode != "trend_ratio" {
		t.Errorf("Trending.Mode = %q, want trend_ratio", cfg.Trending.Mode)
	}
	if len(cfg.Model.HiddenDims) != 2 || cfg.Model.HiddenDims[0] != 64 || cfg.Model.HiddenDims[1] != 32 {
		t.Errorf("Model.HiddenDims = %v, want [64 32]", cfg.Model.HiddenDims)
	}
	if cfg.Inference.RecencyHalfLife != 48*time.Hour {
		t.Errorf("Inference.RecencyHalfLife = %v, want 48h", cfg.Inference.RecencyHalfLife)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
store:
  backend: memory
trending:
  mode: blend
  top_k: 10
  timezone: UTC
inference:
  chunk_size: 128
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("Store.Backend = %q, want memory", cfg.Store.Backend)
	}
	if cfg.Trending.TopK != 10 {
		t.Errorf("Trending.TopK = %d, want 10", cfg.Trending.TopK)
	}
	if cfg.Inference.ChunkSize != 128 {
		t.Errorf("Inference.ChunkSize = %d, want 128", cfg.Inference.ChunkSize)
	}
	// Untouched values keep their defaults
	if cfg.Trending.LikeWeight != 3 {
		t.Errorf("Trending.LikeWeight = %f, want 3", cfg.Trending.LikeWeight)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "unknown trending mode",
			mutate:  func(c *Config) { c.Trending.Mode = "mixed" },
			wantErr: "Trending.Mode",
		},
		{
			name:    "zero temperature",
			mutate:  func(c *Config) { c.Inference.Temperature = 0 },
			wantErr: "Inference.Temperature",
		},
		{
			name:    "min score above one",
			mutate:  func(c *Config) { c.Inference.MinScore = 1.5 },
			wantErr: "Inference.MinScore",
		},
		{
			name:    "inverted trend band",
			mutate:  func(c *Config) { c.Trending.TrendMin = 4 },
			wantErr: "trend_max must be greater",
		},
		{
			name: "all blend weights zero",
			mutate: func(c *Config) {
				c.Trending.BaseWeight, c.Trending.PeriodWeight, c.Trending.RecencyWeight = 0, 0, 0
			},
			wantErr: "blend weights",
		},
		{
			name:    "redis without url",
			mutate:  func(c *Config) { c.Store.RedisURL = "" },
			wantErr: "store.redis_url",
		},
		{
			name:    "bad timezone",
			mutate:  func(c *Config) { c.Trending.Timezone = "Mars/Olympus" },
			wantErr: "trending.timezone",
		},
		{
			name:    "negative hidden dim",
			mutate:  func(c *Config) { c.Model.HiddenDims = []int{64, -1} },
			wantErr: "hidden_dims[1]",
		},
		{
			name:    "schedule without crons",
			mutate:  func(c *Config) { c.Schedule.InferenceCron, c.Schedule.DailyCron, c.Schedule.WeeklyCron = "", "", "" },
			wantErr: "cron",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantErr)
			}
		})
	}
}
