// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/projectrank/config.yaml",
	"/etc/projectrank/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with every default applied.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Database: DatabaseConfig{
			Driver:       "duckdb",
			Path:         "/data/projectrank.duckdb",
			MaxMemory:    "1GB",
			Threads:      0,
			QueryTimeout: 2 * time.Minute,
			Tables: TablesConfig{
				Views:       "events_view",
				Likes:       "events_like",
				Comments:    "events_comment",
				Projects:    "projects",
				UserTokens:  "user_tokens",
				TopProjects: "top_projects",
			},
		},
		Store: StoreConfig{
			Backend:            "redis",
			RedisURL:           "redis://localhost:6379/0",
			BadgerPath:         "/data/scores",
			WritesPerSecond:    0,
			WriteBurst:         100,
			BreakerMaxFailures: 5,
			BreakerTimeout:     30 * time.Second,
		},
		Features: FeaturesConfig{
			Dir:  "/data/features",
			Lock: true,
		},
		Model: ModelConfig{
			CheckpointDir: "/data/checkpoints",
			Name:          "two_tower",
			Version:       0,
			EmbeddingDim:  64,
			HiddenDims:    []int{128, 64, 32},
			Seed:          42,
			KeepVersions:  3,
		},
		Inference: InferenceConfig{
			ContentWeight:            1.0,
			ViewWeight:               0.02,
			LikeWeight:               0.05,
			CommentWeight:            0.05,
			PopularityWeight:         0.7,
			RecencyWeight:            0.3,
			RecencyHalfLife:          7 * 24 * time.Hour,
			ExcludeSeen:              false,
			ColdStartOnFullExclusion: false,
			Temperature:              1.0,
			TieBreakEpsilon:          1e-6,
			TieBreakSalt:             "recs",
			MinScore:                 0,
			TopK:                     100,
			ChunkSize:                4096,
		},
		Trending: TrendingConfig{
			Mode:            "blend",
			TopK:            50,
			ViewWeight:      1,
			LikeWeight:      3,
			CommentWeight:   5,
			BaseWeight:      0.2,
			PeriodWeight:    0.6,
			RecencyWeight:   0.2,
			RecencyHalfLife: 24 * time.Hour,
			HistoryWindows:  8,
			EWMAAlpha:       0.3,
			TrendMin:        0.5,
			TrendMax:        3.0,
			AlphaDaily:      0.7,
			AlphaWeekly:     0.6,
			TieBreakEpsilon: 1e-6,
			TieBreakSalt:    "top",
			Timezone:        "Asia/Seoul",
		},
		Schedule: ScheduleConfig{
			Enabled:       true,
			InferenceCron: "0 * * * *",
			DailyCron:     "10 0 * * *",
			WeeklyCron:    "10 0 * * 1",
			RunOnStartup:  false,
			RunTimeout:    45 * time.Minute,
		},
		Lock: LockConfig{
			Path:       "/data/pipeline.lock",
			StaleAfter: 2 * time.Hour,
		},
		Server: ServerConfig{
			Enabled:           true,
			Host:              "0.0.0.0",
			Port:              8089,
			Timeout:           10 * time.Second,
			RequestsPerMinute: 600,
			CacheTTL:          15 * time.Second,
			CacheSize:         4096,
		},
	}
}

// Default returns the built-in configuration without reading any file or
// environment variable.
func Default() *Config {
	return defaultConfig()
}

// Load builds the configuration using Koanf with layered sources:
//
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any mapped setting
//
// The configuration is validated before it is returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"model.hidden_dims",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
// Unmapped variables are ignored so unrelated environment state never leaks
// into the configuration.
var envMappings = map[string]string{
	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Database
	"db_driver":         "database.driver",
	"duckdb_path":       "database.path",
	"db_path":           "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",
	"db_query_timeout":  "database.query_timeout",

	// Score store
	"store_backend":           "store.backend",
	"redis_url":               "store.redis_url",
	"badger_path":             "store.badger_path",
	"store_writes_per_second": "store.writes_per_second",

	// Feature store
	"features_dir": "features.dir",
	"lock_static":  "features.lock",

	// Model
	"checkpoint_dir":    "model.checkpoint_dir",
	"model_name":        "model.name",
	"model_version":     "model.version",
	"model_emb_dim":     "model.embedding_dim",
	"model_hidden_dims": "model.hidden_dims",

	// Inference
	"content_weight":               "inference.content_weight",
	"behavior_view_weight":         "inference.view_weight",
	"behavior_like_weight":         "inference.like_weight",
	"behavior_comment_weight":      "inference.comment_weight",
	"popularity_weight":            "inference.popularity_weight",
	"recency_weight":               "inference.recency_weight",
	"recency_half_life":            "inference.recency_half_life",
	"exclude_seen":                 "inference.exclude_seen",
	"cold_start_on_full_exclusion": "inference.cold_start_on_full_exclusion",
	"score_temperature":            "inference.temperature",
	"tie_break_eps":                "inference.tie_break_epsilon",
	"store_min_score":              "inference.min_score",
	"store_topk":                   "inference.top_k",
	"infer_chunk_size":             "inference.chunk_size",

	// Trending
	"trending_mode":         "trending.mode",
	"store_topk_top":        "trending.top_k",
	"view_w":                "trending.view_weight",
	"like_w":                "trending.like_weight",
	"comment_w":             "trending.comment_weight",
	"top_base_weight":       "trending.base_weight",
	"top_period_weight":     "trending.period_weight",
	"top_recency_weight":    "trending.recency_weight",
	"top_recency_half_life": "trending.recency_half_life",
	"trend_history_windows": "trending.history_windows",
	"ewm_alpha":             "trending.ewma_alpha",
	"trend_min":             "trending.trend_min",
	"trend_max":             "trending.trend_max",
	"blend_alpha_daily":     "trending.alpha_daily",
	"blend_alpha_weekly":    "trending.alpha_weekly",
	"tie_break_eps_top":     "trending.tie_break_epsilon",
	"tz":                    "trending.timezone",

	// Scheduling and lock
	"schedule_enabled":  "schedule.enabled",
	"inference_cron":    "schedule.inference_cron",
	"daily_top_cron":    "schedule.daily_cron",
	"weekly_top_cron":   "schedule.weekly_cron",
	"run_on_startup":    "schedule.run_on_startup",
	"run_timeout":       "schedule.run_timeout",
	"pipeline_lock":     "lock.path",
	"pipeline_lock_ttl": "lock.stale_after",

	// Read API
	"http_enabled":    "server.enabled",
	"http_host":       "server.host",
	"http_port":       "server.port",
	"http_rpm":        "server.requests_per_minute",
	"http_cache_ttl":  "server.cache_ttl",
	"http_cache_size": "server.cache_size",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - REDIS_URL -> store.redis_url
//   - EXCLUDE_SEEN -> inference.exclude_seen
//   - TREND_MAX -> trending.trend_max
//   - TZ -> trending.timezone
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
