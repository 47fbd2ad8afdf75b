// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

// Package config loads the process configuration for Projectrank.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in defaults for every setting
//  2. Config File: Optional YAML file (config.yaml or CONFIG_PATH)
//  3. Environment Variables: Explicitly mapped variables override everything
//
// The returned *Config is built once at process start and handed by pointer to
// the inference engine, the trending aggregator and the scheduler. Nothing
// mutates it after Load returns, so it is safe for concurrent reads.
package config

import (
	"time"
)

// Config holds all application configuration.
type Config struct {
	Logging   LoggingConfig   `koanf:"logging"`
	Database  DatabaseConfig  `koanf:"database"`
	Store     StoreConfig     `koanf:"store"`
	Features  FeaturesConfig  `koanf:"features"`
	Model     ModelConfig     `koanf:"model"`
	Inference InferenceConfig `koanf:"inference"`
	Trending  TrendingConfig  `koanf:"trending"`
	Schedule  ScheduleConfig  `koanf:"schedule"`
	Lock      LockConfig      `koanf:"lock"`
	Server    ServerConfig    `koanf:"server"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// DatabaseConfig describes the relational source of interaction events,
// user profiles and project metadata.
type DatabaseConfig struct {
	// Driver selects the SQL driver: duckdb or sqlite.
	Driver string `koanf:"driver" validate:"oneof=duckdb sqlite"`

	// Path is the database file (":memory:" for an in-memory database).
	Path string `koanf:"path" validate:"required"`

	// MaxMemory caps DuckDB memory usage (ignored by sqlite).
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB worker thread count; 0 = runtime.NumCPU().
	Threads int `koanf:"threads" validate:"gte=0"`

	// QueryTimeout bounds every query issued by the engines.
	QueryTimeout time.Duration `koanf:"query_timeout" validate:"gt=0"`

	// Tables names the source tables. Column names inside each table are
	// resolved against the live schema at startup.
	Tables TablesConfig `koanf:"tables"`
}

// TablesConfig names the source tables.
type TablesConfig struct {
	Views       string `koanf:"views" validate:"required"`
	Likes       string `koanf:"likes" validate:"required"`
	Comments    string `koanf:"comments" validate:"required"`
	Projects    string `koanf:"projects" validate:"required"`
	UserTokens  string `koanf:"user_tokens" validate:"required"`
	TopProjects string `koanf:"top_projects" validate:"required"`
}

// StoreConfig configures the score store that both engines publish to.
type StoreConfig struct {
	// Backend selects the store: redis, badger or memory.
	Backend string `koanf:"backend" validate:"oneof=redis badger memory"`

	// RedisURL is a redis:// URL used when Backend is redis.
	RedisURL string `koanf:"redis_url"`

	// BadgerPath is the directory used when Backend is badger.
	BadgerPath string `koanf:"badger_path"`

	// WritesPerSecond throttles key replacements; 0 disables throttling.
	WritesPerSecond float64 `koanf:"writes_per_second" validate:"gte=0"`

	// WriteBurst is the token bucket burst for WritesPerSecond.
	WriteBurst int `koanf:"write_burst" validate:"gte=0"`

	// BreakerMaxFailures opens the Redis circuit after this many consecutive failures.
	BreakerMaxFailures uint32 `koanf:"breaker_max_failures" validate:"gte=1"`

	// BreakerTimeout is how long the circuit stays open.
	BreakerTimeout time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

// FeaturesConfig locates the feature store on disk.
type FeaturesConfig struct {
	// Dir holds the .npy matrices, vocabularies and the mappings/ directory.
	Dir string `koanf:"dir" validate:"required"`

	// Lock pins the existing vocabularies and id maps during encoding.
	Lock bool `koanf:"lock"`
}

// ModelConfig configures the two-tower scoring model and its checkpoints.
type ModelConfig struct {
	CheckpointDir string `koanf:"checkpoint_dir" validate:"required"`
	Name          string `koanf:"name" validate:"required"`

	// Version selects a checkpoint version; 0 loads the latest.
	Version int `koanf:"version" validate:"gte=0"`

	EmbeddingDim int   `koanf:"embedding_dim" validate:"gte=1"`
	HiddenDims   []int `koanf:"hidden_dims"`
	Seed         int64 `koanf:"seed"`

	// KeepVersions is how many checkpoint versions survive a prune.
	KeepVersions int `koanf:"keep_versions" validate:"gte=1"`
}

// InferenceConfig holds the personalized scoring weights and shaping knobs.
type InferenceConfig struct {
	ContentWeight    float64 `koanf:"content_weight" validate:"gte=0"`
	ViewWeight       float64 `koanf:"view_weight" validate:"gte=0"`
	LikeWeight       float64 `koanf:"like_weight" validate:"gte=0"`
	CommentWeight    float64 `koanf:"comment_weight" validate:"gte=0"`
	PopularityWeight float64 `koanf:"popularity_weight" validate:"gte=0"`
	RecencyWeight    float64 `koanf:"recency_weight" validate:"gte=0"`

	// RecencyHalfLife drives the fallback recency signal.
	RecencyHalfLife time.Duration `koanf:"recency_half_life" validate:"gt=0"`

	// ExcludeSeen pushes already-seen projects to the bottom instead of boosting them.
	ExcludeSeen bool `koanf:"exclude_seen"`

	// ColdStartOnFullExclusion treats a user whose every project is excluded
	// as cold start. Off by default: model scores are kept.
	ColdStartOnFullExclusion bool `koanf:"cold_start_on_full_exclusion"`

	Temperature     float64 `koanf:"temperature" validate:"gt=0"`
	TieBreakEpsilon float64 `koanf:"tie_break_epsilon" validate:"gte=0"`
	TieBreakSalt    string  `koanf:"tie_break_salt"`
	MinScore        float64 `koanf:"min_score" validate:"gte=0,lte=1"`

	// TopK keeps the best K projects per user; 0 keeps all that pass MinScore.
	TopK      int `koanf:"top_k" validate:"gte=0"`
	ChunkSize int `koanf:"chunk_size" validate:"gte=1"`
}

// TrendingConfig holds the trending aggregation settings.
type TrendingConfig struct {
	// Mode selects the scoring formula: blend or trend_ratio.
	// A deployment uses exactly one.
	Mode string `koanf:"mode" validate:"oneof=blend trend_ratio"`

	TopK int `koanf:"top_k" validate:"gte=1"`

	ViewWeight    float64 `koanf:"view_weight" validate:"gte=0"`
	LikeWeight    float64 `koanf:"like_weight" validate:"gte=0"`
	CommentWeight float64 `koanf:"comment_weight" validate:"gte=0"`

	// blend mode
	BaseWeight      float64       `koanf:"base_weight" validate:"gte=0"`
	PeriodWeight    float64       `koanf:"period_weight" validate:"gte=0"`
	RecencyWeight   float64       `koanf:"recency_weight" validate:"gte=0"`
	RecencyHalfLife time.Duration `koanf:"recency_half_life" validate:"gt=0"`

	// trend_ratio mode
	HistoryWindows int     `koanf:"history_windows" validate:"gte=1"`
	EWMAAlpha      float64 `koanf:"ewma_alpha" validate:"gt=0,lte=1"`
	TrendMin       float64 `koanf:"trend_min" validate:"gte=0"`
	TrendMax       float64 `koanf:"trend_max" validate:"gt=0"`
	AlphaDaily     float64 `koanf:"alpha_daily" validate:"gte=0,lte=1"`
	AlphaWeekly    float64 `koanf:"alpha_weekly" validate:"gte=0,lte=1"`

	TieBreakEpsilon float64 `koanf:"tie_break_epsilon" validate:"gte=0"`
	TieBreakSalt    string  `koanf:"tie_break_salt"`

	// Timezone defines local midnight for day and week windows.
	Timezone string `koanf:"timezone" validate:"required"`
}

// ScheduleConfig holds the cron expressions for the periodic jobs.
type ScheduleConfig struct {
	Enabled       bool          `koanf:"enabled"`
	InferenceCron string        `koanf:"inference_cron"`
	DailyCron     string        `koanf:"daily_cron"`
	WeeklyCron    string        `koanf:"weekly_cron"`
	RunOnStartup  bool          `koanf:"run_on_startup"`
	RunTimeout    time.Duration `koanf:"run_timeout" validate:"gt=0"`
}

// LockConfig configures the pipeline lock file.
type LockConfig struct {
	Path       string        `koanf:"path" validate:"required"`
	StaleAfter time.Duration `koanf:"stale_after" validate:"gt=0"`
}

// ServerConfig configures the read API and metrics endpoint.
type ServerConfig struct {
	Enabled           bool          `koanf:"enabled"`
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout           time.Duration `koanf:"timeout" validate:"gt=0"`
	RequestsPerMinute int           `koanf:"requests_per_minute" validate:"gte=0"`

	// CacheTTL is how long a served score range is reused; 0 disables the cache.
	CacheTTL  time.Duration `koanf:"cache_ttl" validate:"gte=0"`
	CacheSize int           `koanf:"cache_size" validate:"gte=0"`
}

// Location resolves the trending timezone.
func (c *TrendingConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}
