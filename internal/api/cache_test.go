// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/projectrank/internal/cache"
	"github.com/tomtom215/projectrank/internal/scorestore"
)

// countingReader counts Range calls and optionally fails.
type countingReader struct {
	calls atomic.Int32
	err   error
}

func (c *countingReader) Range(context.Context, string, int) ([]scorestore.Entry, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return []scorestore.Entry{{Member: "7", Score: 1}}, nil
}

func TestCachedReader(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		keys      []string
		limits    []int
		wantCalls int32
	}{
		{
			name:      "repeat read is served from cache",
			keys:      []string{"recs:1", "recs:1"},
			limits:    []int{10, 10},
			wantCalls: 1,
		},
		{
			name:      "different limit is a different entry",
			keys:      []string{"recs:1", "recs:1"},
			limits:    []int{10, 5},
			wantCalls: 2,
		},
		{
			name:      "errors are not cached",
			err:       errors.New("down"),
			keys:      []string{"recs:1", "recs:1"},
			limits:    []int{10, 10},
			wantCalls: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &countingReader{err: tt.err}
			r := newCachedReader(next, cache.NewLRU[[]scorestore.Entry](16, time.Minute))

			for i, key := range tt.keys {
				_, err := r.Range(context.Background(), key, tt.limits[i])
				if (err != nil) != (tt.err != nil) {
					t.Fatalf("Range() error = %v, want %v", err, tt.err)
				}
			}
			if got := next.calls.Load(); got != tt.wantCalls {
				t.Errorf("underlying calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestServer_CacheBypassedByReadiness(t *testing.T) {
	next := &countingReader{}
	s := NewServer(next, nil, Config{CacheTTL: time.Minute, CacheSize: 8}, zerolog.New(io.Discard))
	h := s.Routes()

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("readyz status = %d", rec.Code)
		}
	}
	if got := next.calls.Load(); got != 2 {
		t.Errorf("readiness reads = %d, want 2", got)
	}

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/recs/1", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("recs status = %d: %s", rec.Code, rec.Body.String())
		}
	}
	if got := next.calls.Load(); got != 3 {
		t.Errorf("total reads = %d, want 3", got)
	}
}
