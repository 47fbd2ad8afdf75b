// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/tomtom215/projectrank/internal/config"
	"github.com/tomtom215/projectrank/internal/logging"
	"github.com/tomtom215/projectrank/internal/metrics"
	"github.com/tomtom215/projectrank/internal/recommend"
	"github.com/tomtom215/projectrank/internal/runlock"
	"github.com/tomtom215/projectrank/internal/trending"
)

// Job names, used as the job log field and metric label.
const (
	JobInference     = "inference"
	JobTrendingDaily = "trending-daily"
	JobTrendingWeek  = "trending-weekly"
)

// PipelineRunner is the part of the pipeline the scheduler drives.
//
// The interface is satisfied by *pipeline.Pipeline.
type PipelineRunner interface {
	Refresh(ctx context.Context) (*recommend.RunStats, error)
	TrendingPrevious(ctx context.Context, kind trending.WindowKind, at time.Time) (*trending.Result, error)
}

// RunLocker serializes job runs across processes.
//
// The interface is satisfied by *runlock.Lock.
type RunLocker interface {
	Run(ctx context.Context, fn func(context.Context) error) error
}

// SchedulerConfig holds the cron expressions and run limits.
// An empty expression disables that job.
type SchedulerConfig struct {
	InferenceCron string
	DailyCron     string
	WeeklyCron    string
	RunOnStartup  bool
	RunTimeout    time.Duration
	Location      *time.Location
}

// SchedulerConfigFrom builds a SchedulerConfig from the process config.
func SchedulerConfigFrom(cfg *config.Config) (SchedulerConfig, error) {
	loc, err := cfg.Trending.Location()
	if err != nil {
		return SchedulerConfig{}, fmt.Errorf("trending timezone: %w", err)
	}
	return SchedulerConfig{
		InferenceCron: cfg.Schedule.InferenceCron,
		DailyCron:     cfg.Schedule.DailyCron,
		WeeklyCron:    cfg.Schedule.WeeklyCron,
		RunOnStartup:  cfg.Schedule.RunOnStartup,
		RunTimeout:    cfg.Schedule.RunTimeout,
		Location:      loc,
	}, nil
}

// Job is one scheduled unit of work.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// SchedulerService runs the pipeline jobs on cron schedules as a supervised
// service. Every run holds the pipeline lock, so a run that overlaps another
// process's run is skipped rather than queued.
//
// Example usage:
//
//	lock := runlock.New(cfg.Lock.Path, cfg.Lock.StaleAfter, logger)
//	svc := services.NewSchedulerService(pipe, lock, schedCfg, logger)
//	tree.AddPipelineService(svc)
type SchedulerService struct {
	pipeline PipelineRunner
	lock     RunLocker
	config   SchedulerConfig
	logger   zerolog.Logger
	now      func() time.Time
	name     string
}

// NewSchedulerService creates a scheduler over the given pipeline and lock.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSchedulerService(p PipelineRunner, lock RunLocker, cfg SchedulerConfig, logger zerolog.Logger) *SchedulerService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 45 * time.Minute
	}
	return &SchedulerService{
		pipeline: p,
		lock:     lock,
		config:   cfg,
		logger:   logger.With().Str("service", "scheduler").Logger(),
		now:      time.Now,
		name:     "pipeline-scheduler",
	}
}

// Jobs returns the enabled jobs in a fixed order.
func (s *SchedulerService) Jobs() []Job {
	all := []Job{
		{Name: JobInference, Spec: s.config.InferenceCron, Run: s.runInference},
		{Name: JobTrendingDaily, Spec: s.config.DailyCron, Run: s.trendingJob(trending.WindowDay)},
		{Name: JobTrendingWeek, Spec: s.config.WeeklyCron, Run: s.trendingJob(trending.WindowWeek)},
	}
	jobs := make([]Job, 0, len(all))
	for _, j := range all {
		if j.Spec != "" {
			jobs = append(jobs, j)
		}
	}
	return jobs
}

// Serve implements suture.Service.
//
// This method:
//  1. Registers every enabled job with a cron scheduler in the trending timezone
//  2. Optionally runs the inference job once before the first tick
//  3. Blocks until the context is canceled, then waits for running jobs
//
// An invalid cron expression is returned as an error so the supervisor
// reports it.
func (s *SchedulerService) Serve(ctx context.Context) error {
	cl := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithLocation(s.config.Location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	for _, job := range s.Jobs() {
		if _, err := c.AddFunc(job.Spec, func() { _ = s.RunJob(ctx, job) }); err != nil {
			return fmt.Errorf("invalid cron expression %q for %s: %w", job.Spec, job.Name, err)
		}
		s.logger.Info().Str("job", job.Name).Str("spec", job.Spec).Msg("Job scheduled")
	}

	var wg sync.WaitGroup
	if s.config.RunOnStartup {
		for _, job := range s.Jobs() {
			if job.Name != JobInference {
				continue
			}
			wg.Add(1)
			go func(job Job) {
				defer wg.Done()
				_ = s.RunJob(ctx, job)
			}(job)
		}
	}

	c.Start()
	<-ctx.Done()

	stopped := c.Stop()
	<-stopped.Done()
	wg.Wait()

	return ctx.Err()
}

// RunJob runs one job under the pipeline lock with a fresh run id and the
// configured timeout. A held lock is logged and reported as runlock.ErrLocked.
func (s *SchedulerService) RunJob(ctx context.Context, job Job) error {
	ctx = logging.ContextWithNewRunID(ctx)
	ctx = logging.ContextWithJob(ctx, job.Name)
	logger := logging.Ctx(ctx, s.logger)

	ctx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	start := s.now()
	err := s.lock.Run(ctx, job.Run)
	elapsed := s.now().Sub(start)

	switch {
	case errors.Is(err, runlock.ErrLocked):
		metrics.RecordJobRun(job.Name, "locked", elapsed)
		logger.Warn().Msg("Pipeline lock held by another run, skipping")
	case err != nil:
		metrics.RecordJobRun(job.Name, "error", elapsed)
		logger.Error().Err(err).Dur("duration", elapsed).Msg("Job failed")
	default:
		metrics.RecordJobRun(job.Name, "success", elapsed)
		logger.Info().Dur("duration", elapsed).Msg("Job finished")
	}
	return err
}

func (s *SchedulerService) runInference(ctx context.Context) error {
	stats, err := s.pipeline.Refresh(ctx)
	if err != nil {
		return err
	}
	logger := logging.Ctx(ctx, s.logger)
	logger.Info().
		Int("users", stats.Users).
		Int("items", stats.Items).
		Int("published", stats.Published).
		Int("cold_start", stats.ColdStart).
		Int("failed", stats.Failed).
		Msg("Recommendations refreshed")
	return nil
}

// trendingJob scores the last complete window of kind as seen at run time.
func (s *SchedulerService) trendingJob(kind trending.WindowKind) func(context.Context) error {
	return func(ctx context.Context) error {
		res, err := s.pipeline.TrendingPrevious(ctx, kind, s.now().In(s.config.Location))
		if err != nil {
			return err
		}
		logger := logging.Ctx(ctx, s.logger)
		logger.Info().
			Str("window", res.Window.Key()).
			Int("events", res.Events).
			Int("published", len(res.Ranked)).
			Msg("Trending published")
		return nil
	}
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (s *SchedulerService) String() string {
	return s.name
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
