// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/projectrank/internal/recommend"
	"github.com/tomtom215/projectrank/internal/runlock"
	"github.com/tomtom215/projectrank/internal/trending"
)

// fakePipeline records the calls made by the scheduler.
type fakePipeline struct {
	mu           sync.Mutex
	refreshes    atomic.Int32
	trendingRuns []trending.WindowKind
	trendingAt   []time.Time
	refreshErr   error
	refreshed    chan struct{}
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{refreshed: make(chan struct{}, 4)}
}

func (f *fakePipeline) Refresh(_ context.Context) (*recommend.RunStats, error) {
	f.refreshes.Add(1)
	select {
	case f.refreshed <- struct{}{}:
	default:
	}
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &recommend.RunStats{Users: 3, Items: 2, Published: 3}, nil
}

func (f *fakePipeline) TrendingPrevious(_ context.Context, kind trending.WindowKind, at time.Time) (*trending.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trendingRuns = append(f.trendingRuns, kind)
	f.trendingAt = append(f.trendingAt, at)
	w, err := trending.WindowBounds(kind, at, at.Location())
	if err != nil {
		return nil, err
	}
	return &trending.Result{Window: w.Previous()}, nil
}

// fakeLock runs fn unless locked is set.
type fakeLock struct {
	locked bool
	runs   atomic.Int32
}

func (l *fakeLock) Run(ctx context.Context, fn func(context.Context) error) error {
	if l.locked {
		return runlock.ErrLocked
	}
	l.runs.Add(1)
	return fn(ctx)
}

func testSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		InferenceCron: "0 * * * *",
		DailyCron:     "10 0 * * *",
		WeeklyCron:    "10 0 * * 1",
		RunTimeout:    time.Minute,
		Location:      time.UTC,
	}
}

func TestSchedulerService_Interface(t *testing.T) {
	var _ suture.Service = (*SchedulerService)(nil)
}

func TestSchedulerService_Jobs(t *testing.T) {
	t.Run("all jobs enabled", func(t *testing.T) {
		svc := NewSchedulerService(newFakePipeline(), &fakeLock{}, testSchedulerConfig(), zerolog.New(io.Discard))
		jobs := svc.Jobs()
		want := []string{JobInference, JobTrendingDaily, JobTrendingWeek}
		if len(jobs) != len(want) {
			t.Fatalf("expected %d jobs, got %d", len(want), len(jobs))
		}
		for i, name := range want {
			if jobs[i].Name != name {
				t.Errorf("jobs[%d] = %q, want %q", i, jobs[i].Name, name)
			}
		}
	})

	t.Run("empty expression disables a job", func(t *testing.T) {
		cfg := testSchedulerConfig()
		cfg.WeeklyCron = ""
		svc := NewSchedulerService(newFakePipeline(), &fakeLock{}, cfg, zerolog.New(io.Discard))
		for _, j := range svc.Jobs() {
			if j.Name == JobTrendingWeek {
				t.Error("weekly job should be disabled")
			}
		}
	})
}

func TestSchedulerService_RunJobLogsRunFields(t *testing.T) {
	var buf bytes.Buffer
	svc := NewSchedulerService(newFakePipeline(), &fakeLock{}, testSchedulerConfig(), zerolog.New(&buf))

	for _, job := range svc.Jobs() {
		if err := svc.RunJob(context.Background(), job); err != nil {
			t.Fatalf("RunJob(%s) error = %v", job.Name, err)
		}
	}

	output := buf.String()
	for _, want := range []string{
		"Recommendations refreshed",
		`"published":3`,
		"Trending published",
		`"job":"trending-weekly"`,
		`"run_id":`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected log output to contain %s, got: %s", want, output)
		}
	}
}

func TestSchedulerService_RunJob(t *testing.T) {
	t.Run("inference job refreshes the pipeline", func(t *testing.T) {
		pipe := newFakePipeline()
		lock := &fakeLock{}
		svc := NewSchedulerService(pipe, lock, testSchedulerConfig(), zerolog.New(io.Discard))

		if err := svc.RunJob(context.Background(), svc.Jobs()[0]); err != nil {
			t.Fatalf("RunJob() error = %v", err)
		}
		if pipe.refreshes.Load() != 1 {
			t.Errorf("expected 1 refresh, got %d", pipe.refreshes.Load())
		}
		if lock.runs.Load() != 1 {
			t.Errorf("expected the job to run under the lock once, got %d", lock.runs.Load())
		}
	})

	t.Run("held lock skips the run", func(t *testing.T) {
		pipe := newFakePipeline()
		svc := NewSchedulerService(pipe, &fakeLock{locked: true}, testSchedulerConfig(), zerolog.New(io.Discard))

		err := svc.RunJob(context.Background(), svc.Jobs()[0])
		if !errors.Is(err, runlock.ErrLocked) {
			t.Fatalf("expected ErrLocked, got %v", err)
		}
		if pipe.refreshes.Load() != 0 {
			t.Error("pipeline should not run while the lock is held")
		}
	})

	t.Run("pipeline error is returned", func(t *testing.T) {
		pipe := newFakePipeline()
		pipe.refreshErr = errors.New("no checkpoint")
		svc := NewSchedulerService(pipe, &fakeLock{}, testSchedulerConfig(), zerolog.New(io.Discard))

		if err := svc.RunJob(context.Background(), svc.Jobs()[0]); err == nil {
			t.Fatal("expected error from failing refresh")
		}
	})

	t.Run("trending jobs use the run time in the schedule location", func(t *testing.T) {
		seoul := time.FixedZone("KST", 9*3600)
		cfg := testSchedulerConfig()
		cfg.Location = seoul
		pipe := newFakePipeline()
		svc := NewSchedulerService(pipe, &fakeLock{}, cfg, zerolog.New(io.Discard))
		fixed := time.Date(2024, 3, 5, 15, 10, 0, 0, time.UTC)
		svc.now = func() time.Time { return fixed }

		for _, j := range svc.Jobs()[1:] {
			if err := svc.RunJob(context.Background(), j); err != nil {
				t.Fatalf("RunJob(%s) error = %v", j.Name, err)
			}
		}

		pipe.mu.Lock()
		defer pipe.mu.Unlock()
		if len(pipe.trendingRuns) != 2 {
			t.Fatalf("expected 2 trending runs, got %d", len(pipe.trendingRuns))
		}
		if pipe.trendingRuns[0] != trending.WindowDay || pipe.trendingRuns[1] != trending.WindowWeek {
			t.Errorf("unexpected window kinds %v", pipe.trendingRuns)
		}
		if pipe.trendingAt[0].Location() != seoul {
			t.Errorf("run time location = %v, want KST", pipe.trendingAt[0].Location())
		}
	})
}

func TestSchedulerService_Serve(t *testing.T) {
	t.Run("runs inference on startup and stops on cancel", func(t *testing.T) {
		cfg := testSchedulerConfig()
		cfg.RunOnStartup = true
		pipe := newFakePipeline()
		svc := NewSchedulerService(pipe, &fakeLock{}, cfg, zerolog.New(io.Discard))

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(ctx) }()

		select {
		case <-pipe.refreshed:
		case <-time.After(2 * time.Second):
			t.Fatal("startup inference did not run")
		}

		cancel()
		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("scheduler did not stop")
		}
	})

	t.Run("invalid cron expression fails", func(t *testing.T) {
		cfg := testSchedulerConfig()
		cfg.DailyCron = "not a cron"
		svc := NewSchedulerService(newFakePipeline(), &fakeLock{}, cfg, zerolog.New(io.Discard))

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := svc.Serve(ctx); err == nil || errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected a cron parse error, got %v", err)
		}
	})
}

func TestSchedulerService_String(t *testing.T) {
	svc := NewSchedulerService(newFakePipeline(), &fakeLock{}, testSchedulerConfig(), zerolog.New(io.Discard))
	if svc.String() != "pipeline-scheduler" {
		t.Errorf("String() = %q, want pipeline-scheduler", svc.String())
	}
}
