// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package main

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/projectrank/internal/api"
	"github.com/tomtom215/projectrank/internal/logging"
	"github.com/tomtom215/projectrank/internal/runlock"
	"github.com/tomtom215/projectrank/internal/supervisor"
	"github.com/tomtom215/projectrank/internal/supervisor/services"
)

// NewServeCmd runs the scheduler and the read API until SIGINT or SIGTERM.
func NewServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled jobs and the read API",
		Long: `Runs the hourly recommendation refresh and the daily and weekly trending
jobs on their cron schedules, and serves the read API and /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	c, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer closeClients(c)

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return err
	}

	if a.cfg.Schedule.Enabled {
		schedCfg, err := services.SchedulerConfigFrom(a.cfg)
		if err != nil {
			return err
		}
		lock := runlock.New(a.cfg.Lock.Path, a.cfg.Lock.StaleAfter, a.logger)
		tree.AddPipelineService(services.NewSchedulerService(c.pipeline, lock, schedCfg, a.logger))
	} else {
		logging.Info().Msg("Scheduler disabled (schedule.enabled=false)")
	}

	if a.cfg.Server.Enabled {
		apiCfg, err := api.ConfigFrom(a.cfg)
		if err != nil {
			return err
		}
		addr := net.JoinHostPort(a.cfg.Server.Host, strconv.Itoa(a.cfg.Server.Port))
		server := api.NewServer(c.pipeline.Scores(), c.db, apiCfg, a.logger).HTTPServer(addr)
		tree.AddAPIService(services.NewAPIServerService(server, addr, 10*time.Second, a.logger))
	} else {
		logging.Info().Msg("Read API disabled (server.enabled=false)")
	}

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	var serveErr error
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
			serveErr = err
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}

	logging.Info().Msg("Stopped")
	return serveErr
}
