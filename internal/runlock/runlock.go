// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

// Package runlock provides a cross-process lock file that keeps scheduled
// pipeline runs from overlapping. A lock older than its stale threshold is
// assumed abandoned by a crashed process and is taken over.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrLocked is returned when another live run holds the lock.
var ErrLocked = errors.New("pipeline lock is held by another run")

// Lock is a lock file at a fixed path.
type Lock struct {
	path       string
	staleAfter time.Duration
	logger     zerolog.Logger
	now        func() time.Time
}

// New creates a lock at path. staleAfter <= 0 disables stale takeover.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func New(path string, staleAfter time.Duration, logger zerolog.Logger) *Lock {
	return &Lock{
		path:       path,
		staleAfter: staleAfter,
		logger:     logger.With().Str("lock", path).Logger(),
		now:        time.Now,
	}
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Acquire creates the lock file. The returned release func removes it, but
// only while it still carries this holder's token.
func (l *Lock) Acquire() (func(), error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	token := uuid.NewString()
	for attempt := 0; attempt < 2; attempt++ {
		err := l.create(token)
		if err == nil {
			return func() { l.release(token) }, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create lock file: %w", err)
		}
		if attempt > 0 || !l.removeIfStale() {
			return nil, ErrLocked
		}
	}
	return nil, ErrLocked
}

// Run acquires the lock, calls fn and releases the lock.
func (l *Lock) Run(ctx context.Context, fn func(context.Context) error) error {
	release, err := l.Acquire()
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

func (l *Lock) create(token string) error {
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	content := fmt.Sprintf("%d\n%s\n%s\n", os.Getpid(), token, l.now().UTC().Format(time.RFC3339))
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		_ = os.Remove(l.path)
		return err
	}
	return f.Close()
}

// removeIfStale deletes the lock when it is older than staleAfter.
func (l *Lock) removeIfStale() bool {
	if l.staleAfter <= 0 {
		return false
	}
	info, err := os.Stat(l.path)
	if err != nil {
		// Vanished between create and stat; let the retry take it.
		return errors.Is(err, os.ErrNotExist)
	}
	age := l.now().Sub(info.ModTime())
	if age <= l.staleAfter {
		return false
	}

	l.logger.Warn().
		Dur("age", age).
		Dur("stale_after", l.staleAfter).
		Str("holder", holderPID(l.path)).
		Msg("Removing stale pipeline lock")
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		l.logger.Error().Err(err).Msg("Failed to remove stale pipeline lock")
		return false
	}
	return true
}

func (l *Lock) release(token string) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			l.logger.Warn().Err(err).Msg("Failed to read pipeline lock on release")
		}
		return
	}
	lines := strings.Split(string(data), "\n")
	if len(lines) < 2 || lines[1] != token {
		l.logger.Warn().Msg("Pipeline lock was taken over, leaving it in place")
		return
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		l.logger.Warn().Err(err).Msg("Failed to remove pipeline lock")
	}
}

// holderPID reads the pid recorded in a lock file, for logging.
func holderPID(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	first, _, _ := strings.Cut(string(data), "\n")
	if _, err := strconv.Atoi(first); err != nil {
		return ""
	}
	return first
}
