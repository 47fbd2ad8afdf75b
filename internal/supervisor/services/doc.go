// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

/*
Package services provides suture.Service wrappers for Projectrank components.

Each wrapper translates a component's lifecycle into suture's context-aware
Serve pattern:

	type Service interface {
	    Serve(ctx context.Context) error
	}

# Available Services

Pipeline Scheduler (SchedulerService):
  - Runs the hourly recommendation refresh (encode, then infer)
  - Runs the daily and weekly trending jobs on the previous complete window
  - Uses robfig/cron in the trending timezone with SkipIfStillRunning
  - Holds the pipeline lock for every run so overlapping processes skip

Read API (APIServerService):
  - Wraps *http.Server with graceful shutdown
  - http.ErrServerClosed is a clean stop

# Error Handling

Serve returns:
  - ctx.Err() after a requested shutdown
  - a wrapped error when the component fails, so suture restarts it

A failing job does not fail the scheduler. It is logged with its run id and
counted in projectrank_job_runs_total{outcome="error"}.
*/
package services
