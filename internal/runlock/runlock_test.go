// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package runlock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestLock(t *testing.T, staleAfter time.Duration) *Lock {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "nested", "pipeline.lock"), staleAfter, zerolog.Nop())
}

func TestAcquireRelease(t *testing.T) {
	l := newTestLock(t, time.Hour)

	release, err := l.Acquire()
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	data, err := os.ReadFile(l.Path())
	if err != nil {
		t.Fatalf("lock file missing: %v", err)
	}
	if first := strings.SplitN(string(data), "\n", 2)[0]; first != strconv.Itoa(os.Getpid()) {
		t.Errorf("lock pid = %q, want %d", first, os.Getpid())
	}

	if _, err := l.Acquire(); !errors.Is(err, ErrLocked) {
		t.Errorf("second Acquire() error = %v, want ErrLocked", err)
	}

	release()
	if _, err := os.Stat(l.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("lock file still present after release: %v", err)
	}

	release2, err := l.Acquire()
	if err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	release2()
}

func TestAcquire_StaleLockTakenOver(t *testing.T) {
	l := newTestLock(t, 2*time.Hour)

	if _, err := l.Acquire(); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	old := time.Now().Add(-3 * time.Hour)
	if err := os.Chtimes(l.Path(), old, old); err != nil {
		t.Fatalf("Chtimes() error = %v", err)
	}

	release, err := l.Acquire()
	if err != nil {
		t.Fatalf("Acquire() over stale lock error = %v", err)
	}
	release()
}

func TestAcquire_FreshLockKept(t *testing.T) {
	l := newTestLock(t, 2*time.Hour)

	if _, err := l.Acquire(); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	recent := time.Now().Add(-time.Hour)
	if err := os.Chtimes(l.Path(), recent, recent); err != nil {
		t.Fatalf("Chtimes() error = %v", err)
	}
	if _, err := l.Acquire(); !errors.Is(err, ErrLocked) {
		t.Errorf("Acquire() error = %v, want ErrLocked", err)
	}
}

func TestAcquire_NoStaleTakeoverWhenDisabled(t *testing.T) {
	l := newTestLock(t, 0)

	if _, err := l.Acquire(); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(l.Path(), old, old); err != nil {
		t.Fatalf("Chtimes() error = %v", err)
	}
	if _, err := l.Acquire(); !errors.Is(err, ErrLocked) {
		t.Errorf("Acquire() error = %v, want ErrLocked", err)
	}
}

func TestRelease_LeavesTakenOverLock(t *testing.T) {
	l := newTestLock(t, time.Hour)

	release, err := l.Acquire()
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	// Another process took the lock over after ours went stale.
	if err := os.WriteFile(l.Path(), []byte("1\nother-token\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	release()

	if _, err := os.Stat(l.Path()); err != nil {
		t.Errorf("foreign lock removed on release: %v", err)
	}
}

func TestRun(t *testing.T) {
	l := newTestLock(t, time.Hour)

	called := false
	err := l.Run(context.Background(), func(context.Context) error {
		called = true
		if _, err := os.Stat(l.Path()); err != nil {
			t.Errorf("lock not held during Run: %v", err)
		}
		return errors.New("boom")
	})
	if !called {
		t.Fatal("fn was not called")
	}
	if err == nil || err.Error() != "boom" {
		t.Errorf("Run() error = %v, want boom", err)
	}
	if _, err := os.Stat(l.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("lock not released after Run: %v", err)
	}

	release, err := l.Acquire()
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer release()
	if err := l.Run(context.Background(), func(context.Context) error { return nil }); !errors.Is(err, ErrLocked) {
		t.Errorf("Run() while held error = %v, want ErrLocked", err)
	}
}
