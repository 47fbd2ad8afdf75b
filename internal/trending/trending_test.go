// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package trending

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/projectrank/internal/features"
	"github.com/tomtom215/projectrank/internal/scorestore"
)

var kst = time.FixedZone("KST", 9*60*60)

func at(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02T15:04:05", s, kst)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts
}

func TestWindowBounds(t *testing.T) {
	tests := []struct {
		name      string
		kind      WindowKind
		at        string
		wantStart string
		wantEnd   string
		wantKey   string
	}{
		{"day midday", WindowDay, "2024-03-05T13:20:00", "2024-03-05T00:00:00", "2024-03-06T00:00:00", "top:day:20240305"},
		{"day at midnight", WindowDay, "2024-03-05T00:00:00", "2024-03-05T00:00:00", "2024-03-06T00:00:00", "top:day:20240305"},
		{"week from tuesday", WindowWeek, "2024-03-05T10:00:00", "2024-03-04T00:00:00", "2024-03-11T00:00:00", "top:week:2024W10"},
		{"week on sunday", WindowWeek, "2024-03-10T23:59:59", "2024-03-04T00:00:00", "2024-03-11T00:00:00", "top:week:2024W10"},
		{"week on monday", WindowWeek, "2024-03-11T00:00:00", "2024-03-11T00:00:00", "2024-03-18T00:00:00", "top:week:2024W11"},
		{"iso year rollover", WindowWeek, "2024-12-31T12:00:00", "2024-12-30T00:00:00", "2025-01-06T00:00:00", "top:week:2025W01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := WindowBounds(tt.kind, at(t, tt.at), kst)
			if err != nil {
				t.Fatalf("WindowBounds() error = %v", err)
			}
			if !w.Start.Equal(at(t, tt.wantStart)) || !w.End.Equal(at(t, tt.wantEnd)) {
				t.Errorf("bounds = %v, want [%s, %s)", w, tt.wantStart, tt.wantEnd)
			}
			if got := w.Key(); got != tt.wantKey {
				t.Errorf("Key() = %q, want %q", got, tt.wantKey)
			}
		})
	}
}

func TestWindowBounds_ConvertsToLocation(t *testing.T) {
	// 2024-03-04T16:30Z is 2024-03-05T01:30 in KST.
	w, err := WindowBounds(WindowDay, time.Date(2024, 3, 4, 16, 30, 0, 0, time.UTC), kst)
	if err != nil {
		t.Fatal(err)
	}
	if w.Key() != "top:day:20240305" {
		t.Errorf("Key() = %q, want top:day:20240305", w.Key())
	}
}

func TestWindowBounds_UnknownKind(t *testing.T) {
	if _, err := WindowBounds("month", time.Now(), kst); err == nil {
		t.Error("expected error for unknown kind")
	}
	if _, err := ParseWindowKind("month"); err == nil {
		t.Error("expected ParseWindowKind error")
	}
}

func TestWindow_History(t *testing.T) {
	w, _ := WindowBounds(WindowWeek, at(t, "2024-03-05T10:00:00"), kst)
	h := w.History(3)
	if len(h) != 3 {
		t.Fatalf("len(History) = %d, want 3", len(h))
	}
	if !h[2].End.Equal(w.Start) {
		t.Errorf("last history window should end at %v, got %v", w.Start, h[2].End)
	}
	if !h[0].Start.Equal(at(t, "2024-02-12T00:00:00")) {
		t.Errorf("oldest history window starts %v, want 2024-02-12", h[0].Start)
	}
	for i := 1; i < len(h); i++ {
		if !h[i-1].End.Equal(h[i].Start) {
			t.Errorf("history windows %d and %d are not contiguous", i-1, i)
		}
	}
}

func TestDayBoundary_ExcludesPreviousDay(t *testing.T) {
	events := []features.Event{
		{UserID: 1, ProjectID: 10, Kind: features.KindView, At: at(t, "2024-03-04T23:59:59")},
		{UserID: 2, ProjectID: 20, Kind: features.KindView, At: at(t, "2024-03-05T00:00:01")},
	}
	w, _ := WindowBounds(WindowDay, at(t, "2024-03-05T12:00:00"), kst)

	raw := RawEngagement(events, w, features.EventWeights{View: 1, Like: 1, Comment: 1})
	if len(raw) != 1 || raw[20] != 1 {
		t.Errorf("RawEngagement = %v, want only project 20", raw)
	}

	cfg := DefaultConfig()
	scored := ScoreBlend(events, w, cfg)
	for _, s := range scored {
		if s.ProjectID == 10 && s.Meta["period"] != 0 {
			t.Errorf("project 10 period = %v, want 0", s.Meta["period"])
		}
		if s.ProjectID == 20 && s.Meta["period"] != 1 {
			t.Errorf("project 20 period = %v, want 1", s.Meta["period"])
		}
	}
}

func TestTrendScore_Clip(t *testing.T) {
	// baseline 10, raw 1000 -> growth clipped to 3.0 -> normalized 1.0
	if got := TrendScore(1000, 10, 0.5, 3.0); got != 1.0 {
		t.Errorf("TrendScore(1000, 10) = %v, want 1.0", got)
	}
	// growth below the band clips to the floor
	if got := TrendScore(1, 10, 0.5, 3.0); got != 0 {
		t.Errorf("TrendScore(1, 10) = %v, want 0", got)
	}
	// growth 1.75 is halfway through [0.5, 3.0]
	if got := TrendScore(17.5, 10, 0.5, 3.0); math.Abs(got-0.5) > 1e-6 {
		t.Errorf("TrendScore(17.5, 10) = %v, want 0.5", got)
	}
}

func TestEWMA(t *testing.T) {
	if got := EWMA(nil, 0.3); got != 0 {
		t.Errorf("EWMA(nil) = %v, want 0", got)
	}
	// s = 10; s = 0.5*20 + 0.5*10 = 15; s = 0.5*30 + 0.5*15 = 22.5
	if got := EWMA([]float64{10, 20, 30}, 0.5); got != 22.5 {
		t.Errorf("EWMA = %v, want 22.5", got)
	}
}

func TestRawEngagement_DistinctUsers(t *testing.T) {
	w, _ := WindowBounds(WindowDay, at(t, "2024-03-05T12:00:00"), kst)
	ts := at(t, "2024-03-05T09:00:00")
	events := []features.Event{
		{UserID: 1, ProjectID: 7, Kind: features.KindView, At: ts},
		{UserID: 1, ProjectID: 7, Kind: features.KindView, At: ts.Add(time.Minute)},
		{UserID: 2, ProjectID: 7, Kind: features.KindView, At: ts},
		{UserID: 1, ProjectID: 7, Kind: features.KindLike, At: ts},
		{UserID: 1, ProjectID: 7, Kind: features.KindLike, At: ts},
		{UserID: 1, ProjectID: 7, Kind: features.KindComment, At: ts},
		{UserID: 1, ProjectID: 7, Kind: features.KindComment, At: ts},
	}
	raw := RawEngagement(events, w, features.EventWeights{View: 1, Like: 3, Comment: 5})
	// 2 viewers + 3*1 liker + 5*2 comments
	if raw[7] != 15 {
		t.Errorf("raw = %v, want 15", raw[7])
	}
}

func TestScoreBlend(t *testing.T) {
	w, _ := WindowBounds(WindowDay, at(t, "2024-03-05T12:00:00"), kst)
	events := []features.Event{
		// project 1: heavy history, nothing today
		{ProjectID: 1, Kind: features.KindComment, At: at(t, "2024-02-01T10:00:00")},
		{ProjectID: 1, Kind: features.KindComment, At: at(t, "2024-02-01T10:00:00")},
		// project 2: one view today
		{ProjectID: 2, Kind: features.KindView, At: at(t, "2024-03-05T10:00:00")},
		// project 3: a like today, later
		{ProjectID: 3, Kind: features.KindLike, At: at(t, "2024-03-05T11:00:00")},
		// after the window: ignored
		{ProjectID: 4, Kind: features.KindLike, At: at(t, "2024-03-06T00:00:00")},
	}
	cfg := DefaultConfig()
	cfg.TieBreakEpsilon = 0

	scored := ScoreBlend(events, w, cfg)
	if len(scored) != 3 {
		t.Fatalf("len(scored) = %d, want 3", len(scored))
	}
	byID := make(map[int64]Scored)
	for _, s := range scored {
		byID[s.ProjectID] = s
		if s.Score < 0 || s.Score > 1 {
			t.Errorf("project %d score %v out of [0,1]", s.ProjectID, s.Score)
		}
	}
	if byID[1].Meta["base"] != 1 || byID[1].Meta["period"] != 0 {
		t.Errorf("project 1 meta = %v, want base 1, period 0", byID[1].Meta)
	}
	if byID[3].Meta["recency"] != 1 {
		t.Errorf("project 3 recency = %v, want 1 (latest event)", byID[3].Meta["recency"])
	}
	if byID[3].Score <= byID[2].Score {
		t.Errorf("project 3 (%v) should outrank project 2 (%v)", byID[3].Score, byID[2].Score)
	}
}

func TestScoreBlend_AllZeroIsSafe(t *testing.T) {
	w, _ := WindowBounds(WindowDay, at(t, "2024-03-05T12:00:00"), kst)
	events := []features.Event{{ProjectID: 1, Kind: features.KindView, At: at(t, "2024-03-05T01:00:00")}}
	cfg := DefaultConfig()
	cfg.Weights = features.EventWeights{}

	for _, s := range ScoreBlend(events, w, cfg) {
		if math.IsNaN(s.Score) || s.Score < 0 || s.Score > 1 {
			t.Errorf("score = %v, want finite in [0,1]", s.Score)
		}
	}
}

func TestScoreTrend(t *testing.T) {
	w, _ := WindowBounds(WindowDay, at(t, "2024-03-05T12:00:00"), kst)
	var events []features.Event
	// Project 1 had 10 comments/day for the prior three days, 100 today.
	for d := 2; d <= 4; d++ {
		ts := time.Date(2024, 3, d, 12, 0, 0, 0, kst)
		for i := 0; i < 2; i++ {
			events = append(events, features.Event{ProjectID: 1, Kind: features.KindComment, At: ts})
		}
	}
	for i := 0; i < 20; i++ {
		events = append(events, features.Event{ProjectID: 1, Kind: features.KindComment, At: at(t, "2024-03-05T09:00:00")})
	}
	// Project 2 is new today with a single view.
	events = append(events, features.Event{UserID: 9, ProjectID: 2, Kind: features.KindView, At: at(t, "2024-03-05T09:00:00")})

	cfg := DefaultConfig()
	cfg.Mode = ModeTrendRatio
	cfg.TieBreakEpsilon = 0

	scored := ScoreTrend(events, w, cfg)
	if len(scored) != 2 {
		t.Fatalf("len(scored) = %d, want 2", len(scored))
	}
	p1, p2 := scored[0], scored[1]
	if p1.ProjectID != 1 || p2.ProjectID != 2 {
		t.Fatalf("unexpected order %d, %d", p1.ProjectID, p2.ProjectID)
	}
	if p1.Meta["baseline"] != 10 {
		t.Errorf("project 1 baseline = %v, want 10", p1.Meta["baseline"])
	}
	if p1.Meta["raw"] != 100 {
		t.Errorf("project 1 raw = %v, want 100", p1.Meta["raw"])
	}
	if p1.Meta["trend"] != 1 {
		t.Errorf("project 1 trend = %v, want 1 (10x growth clipped)", p1.Meta["trend"])
	}
	if p2.Meta["baseline"] != 0 || p2.Meta["trend"] != 1 {
		t.Errorf("project 2 meta = %v, want baseline 0 and trend 1", p2.Meta)
	}
	for _, s := range scored {
		if s.Meta["eng"] < 0 || s.Meta["eng"] > 1 || s.Score < 0 || s.Score > 1 {
			t.Errorf("project %d out of range: %v", s.ProjectID, s)
		}
	}
}

func TestRank_TiesByProjectID(t *testing.T) {
	ranked := rank([]Scored{
		{ProjectID: 30, Score: 0.5},
		{ProjectID: 10, Score: 0.5},
		{ProjectID: 20, Score: 0.9},
		{ProjectID: 40, Score: 0.1},
	}, 3)
	want := []int64{20, 10, 30}
	if len(ranked) != 3 {
		t.Fatalf("len = %d, want 3", len(ranked))
	}
	for i, id := range want {
		if ranked[i].ProjectID != id || ranked[i].Rank != i+1 {
			t.Errorf("ranked[%d] = %+v, want project %d rank %d", i, ranked[i], id, i+1)
		}
	}
}

// fakeSource serves fixed events, filtered by range.
type fakeSource struct {
	events []features.Event
	err    error
	from   time.Time
	to     time.Time
}

func (s *fakeSource) Events(_ context.Context, from, to time.Time) ([]features.Event, error) {
	s.from, s.to = from, to
	if s.err != nil {
		return nil, s.err
	}
	var out []features.Event
	for _, ev := range s.events {
		if (from.IsZero() || !ev.At.Before(from)) && ev.At.Before(to) {
			out = append(out, ev)
		}
	}
	return out, nil
}

type fakeRecorder struct {
	window Window
	rows   []Ranked
	err    error
}

func (r *fakeRecorder) SaveTopProjects(_ context.Context, w Window, rows []Ranked) error {
	r.window, r.rows = w, rows
	return r.err
}

func TestAggregator_Run(t *testing.T) {
	src := &fakeSource{events: []features.Event{
		{UserID: 1, ProjectID: 10, Kind: features.KindView, At: at(t, "2024-03-04T23:59:59")},
		{UserID: 2, ProjectID: 20, Kind: features.KindLike, At: at(t, "2024-03-05T00:00:01")},
		{UserID: 3, ProjectID: 30, Kind: features.KindComment, At: at(t, "2024-03-05T08:00:00")},
	}}
	store := scorestore.NewMemoryStore()
	rec := &fakeRecorder{}

	cfg := DefaultConfig()
	cfg.Mode = ModeTrendRatio
	cfg.HistoryWindows = 2
	agg, err := NewAggregator(cfg, src, store, rec, kst, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewAggregator() error = %v", err)
	}

	res, err := agg.Run(context.Background(), WindowDay, at(t, "2024-03-05T00:10:00"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !src.from.Equal(at(t, "2024-03-03T00:00:00")) || !src.to.Equal(at(t, "2024-03-06T00:00:00")) {
		t.Errorf("source queried [%v, %v), want two history days through window end", src.from, src.to)
	}
	if res.Candidates != 2 {
		t.Errorf("Candidates = %d, want 2 (project 10 is outside the day)", res.Candidates)
	}

	got, err := store.Range(context.Background(), "top:day:20240305", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("published %d entries, want 2", len(got))
	}
	for _, e := range got {
		if e.Member == "10" {
			t.Error("project 10 from the previous day was published")
		}
	}
	if len(rec.rows) != 2 || rec.window.Key() != "top:day:20240305" {
		t.Errorf("recorder got %d rows for %s", len(rec.rows), rec.window.Key())
	}
}

func TestAggregator_BlendReadsAllHistory(t *testing.T) {
	src := &fakeSource{}
	agg, err := NewAggregator(DefaultConfig(), src, scorestore.NewMemoryStore(), nil, kst, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := agg.Run(context.Background(), WindowWeek, at(t, "2024-03-05T00:10:00")); err != nil {
		t.Fatal(err)
	}
	if !src.from.IsZero() {
		t.Errorf("blend mode should read from the beginning, got from=%v", src.from)
	}
}

func TestAggregator_EmptyWindowClearsKey(t *testing.T) {
	store := scorestore.NewMemoryStore()
	ctx := context.Background()
	if err := store.Replace(ctx, "top:week:2024W10", []scorestore.Entry{{Member: "1", Score: 1}}); err != nil {
		t.Fatal(err)
	}

	agg, err := NewAggregator(DefaultConfig(), &fakeSource{}, store, nil, kst, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	res, err := agg.Run(ctx, WindowWeek, at(t, "2024-03-06T00:10:00"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Ranked) != 0 {
		t.Errorf("Ranked = %v, want empty", res.Ranked)
	}
	got, _ := store.Range(ctx, "top:week:2024W10", 0)
	if len(got) != 0 {
		t.Errorf("stale entries left: %v", got)
	}
}

func TestAggregator_Errors(t *testing.T) {
	boom := errors.New("db down")

	agg, err := NewAggregator(DefaultConfig(), &fakeSource{err: boom}, scorestore.NewMemoryStore(), nil, kst, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := agg.Run(context.Background(), WindowDay, time.Now()); !errors.Is(err, boom) {
		t.Errorf("Run() error = %v, want %v", err, boom)
	}

	src := &fakeSource{events: []features.Event{{ProjectID: 1, Kind: features.KindView, At: at(t, "2024-03-05T01:00:00")}}}
	agg, err = NewAggregator(DefaultConfig(), src, scorestore.NewMemoryStore(), &fakeRecorder{err: boom}, kst, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := agg.Run(context.Background(), WindowDay, at(t, "2024-03-05T12:00:00")); !errors.Is(err, boom) {
		t.Errorf("Run() with failing recorder error = %v, want %v", err, boom)
	}

	bad := DefaultConfig()
	bad.Mode = "mixed"
	if _, err := NewAggregator(bad, src, scorestore.NewMemoryStore(), nil, kst, zerolog.Nop()); err == nil {
		t.Error("expected error for unknown mode")
	}
}
