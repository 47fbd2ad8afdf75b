// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tomtom215/projectrank/internal/config"
	"github.com/tomtom215/projectrank/internal/database"
	"github.com/tomtom215/projectrank/internal/logging"
	"github.com/tomtom215/projectrank/internal/pipeline"
	"github.com/tomtom215/projectrank/internal/scorestore"
)

// app carries what every subcommand shares once the config is loaded.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "projectrank",
		Short:         "Project recommendations and trending rankings",
		Long:          `Scores projects per user with a two-tower model and ranks daily and weekly trending projects, publishing both to a score store.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file (overrides CONFIG_PATH)")
	rootCmd.PersistentFlags().String("log-level", "", "Override logging.level")

	rootCmd.AddCommand(
		NewServeCmd(a),
		NewEncodeCmd(a),
		NewInferCmd(a),
		NewTrendingCmd(a),
		NewScoreCmd(a),
	)
	return rootCmd
}

// load reads the configuration and initializes logging.
func (a *app) load(cmd *cobra.Command) error {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("config file: %w", err)
		}
		if err := os.Setenv(config.ConfigPathEnvVar, path); err != nil {
			return err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})

	a.cfg = cfg
	a.logger = logging.Logger()
	return nil
}

// clients is the set of opened clients for one command.
type clients struct {
	db       *database.DB
	pipeline *pipeline.Pipeline
}

// open connects the source database and the score store and builds the pipeline.
func (a *app) open(ctx context.Context) (*clients, error) {
	db, err := database.Open(ctx, &a.cfg.Database, a.logger)
	if err != nil {
		return nil, err
	}

	scores, err := scorestore.Open(ctx, &a.cfg.Store, a.logger)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}

	pipe, err := pipeline.New(a.cfg, db, scores, a.logger)
	if err != nil {
		return nil, errors.Join(err, scores.Close(), db.Close())
	}

	logging.Info().
		Str("db_driver", a.cfg.Database.Driver).
		Str("db_path", a.cfg.Database.Path).
		Str("store", a.cfg.Store.Backend).
		Str("trending_mode", a.cfg.Trending.Mode).
		Msg("Configuration loaded")

	return &clients{db: db, pipeline: pipe}, nil
}

// Close releases the score store and the database.
func (r *clients) Close() error {
	return errors.Join(r.pipeline.Close(), r.db.Close())
}

// closeClients logs a failed close; commands have already produced their result.
func closeClients(r *clients) {
	if err := r.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing clients")
	}
}
