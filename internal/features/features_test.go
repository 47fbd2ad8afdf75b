// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package features

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Go, Python/Rust|SQL  docker", []string{"go", "python", "rust", "sql", "docker"}},
		{"  ", nil},
		{"", nil},
		{",,react,,", []string{"react"}},
	}
	for _, tt := range tests {
		if got := Tokenize(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestVocabulary_Lock(t *testing.T) {
	v := NewVocabulary()
	if col, ok := v.Add("go"); !ok || col != 0 {
		t.Fatalf("Add(go) = %d, %v", col, ok)
	}
	v.Add("rust")
	v.Lock()

	if _, ok := v.Add("zig"); ok {
		t.Error("locked vocabulary accepted a new token")
	}
	if col, ok := v.Add("rust"); !ok || col != 1 {
		t.Errorf("Add(rust) on locked = %d, %v, want 1, true", col, ok)
	}
	if v.Width() != 2 {
		t.Errorf("Width = %d, want 2", v.Width())
	}
}

func TestVocabulary_EnsureNonEmpty(t *testing.T) {
	v := NewVocabulary()
	v.EnsureNonEmpty()
	if col, ok := v.Index(NoneToken); !ok || col != 0 {
		t.Errorf("Index(%s) = %d, %v, want 0, true", NoneToken, col, ok)
	}
	if v.Width() != 1 {
		t.Errorf("Width = %d, want 1", v.Width())
	}
}

func TestIDMap_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	fwd := filepath.Join(dir, "projects.json")
	rev := filepath.Join(dir, "projects_rev.json")

	m := NewIDMap()
	for i, id := range []int64{101, 205, 309, 4000} {
		if _, err := m.Put(id, i); err != nil {
			t.Fatalf("Put(%d): %v", id, err)
		}
	}
	if err := m.Save(fwd, rev); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadIDMap(fwd, rev)
	if err != nil {
		t.Fatalf("LoadIDMap: %v", err)
	}
	for _, id := range m.IDs() {
		idx, ok := loaded.Index(id)
		if !ok {
			t.Fatalf("id %d missing after load", id)
		}
		back, ok := loaded.ID(idx)
		if !ok || back != id {
			t.Errorf("round trip %d -> %d -> %d", id, idx, back)
		}
	}
}

func TestIDMap_Lock(t *testing.T) {
	m := NewIDMap()
	_, _ = m.Put(7, 7)
	m.Lock()

	if _, err := m.Put(8, 8); !errors.Is(err, ErrLocked) {
		t.Errorf("Put on locked map error = %v, want ErrLocked", err)
	}
	if idx, err := m.Put(7, 99); err != nil || idx != 7 {
		t.Errorf("existing id should keep its index, got %d, %v", idx, err)
	}
	if m.Span() != 8 {
		t.Errorf("Span = %d, want 8", m.Span())
	}
}

func TestLoadIDMap_Disagreement(t *testing.T) {
	dir := t.TempDir()
	fwd := filepath.Join(dir, "f.json")
	rev := filepath.Join(dir, "r.json")
	if err := os.WriteFile(fwd, []byte(`{"10": 0}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(rev, []byte(`{"0": 11}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadIDMap(fwd, rev); err == nil {
		t.Error("expected error for disagreeing reverse map")
	}
}

func TestBehaviorIndex(t *testing.T) {
	users := NewIDMap()
	_, _ = users.Put(1, 1)
	projects := NewIDMap()
	_, _ = projects.Put(100, 0)
	_, _ = projects.Put(200, 1)

	events := []Event{
		{UserID: 1, ProjectID: 100, Kind: KindView},
		{UserID: 1, ProjectID: 200, Kind: KindLike},
		{UserID: 1, ProjectID: 200, Kind: KindView},
		{UserID: 1, ProjectID: 999, Kind: KindComment}, // unknown project
		{UserID: 2, ProjectID: 100, Kind: KindView},    // unknown user
	}
	b := BuildBehaviorIndex(events, users, projects)

	if got := b.Items(1, KindView); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Errorf("Items(view) = %v, want [0 1]", got)
	}
	if got := b.Seen(1); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Errorf("Seen = %v, want [0 1]", got)
	}
	if got := b.Kinds(1); !reflect.DeepEqual(got, []Kind{KindView, KindLike}) {
		t.Errorf("Kinds = %v, want [view like]", got)
	}
	if b.Seen(2) != nil {
		t.Error("unknown user should have no behavior")
	}
}

func TestBuildFallbackSignals_Popularity(t *testing.T) {
	projects := NewIDMap()
	for i, id := range []int64{10, 20, 30} {
		_, _ = projects.Put(id, i)
	}
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

	var events []Event
	for i := 0; i < 5; i++ {
		events = append(events, Event{ProjectID: 20, Kind: KindView, At: now.Add(-48 * time.Hour)})
	}
	for i := 0; i < 5; i++ {
		events = append(events, Event{ProjectID: 30, Kind: KindLike, At: now})
	}

	sig := BuildFallbackSignals(events, projects, nil, EventWeights{View: 1, Like: 3, Comment: 5}, now, 24*time.Hour)

	want := []float64{0, 1.0 / 3.0, 1}
	for i := range want {
		if math.Abs(sig.Popularity[i]-want[i]) > 1e-12 {
			t.Errorf("Popularity[%d] = %v, want %v", i, sig.Popularity[i], want[i])
		}
	}
	// Project 30 is freshest; project 20 is two half-lives old.
	if sig.Recency[2] != 1 || math.Abs(sig.Recency[1]-0.25) > 1e-12 || sig.Recency[0] != 0 {
		t.Errorf("Recency = %v, want [0 0.25 1]", sig.Recency)
	}
}

func TestBuildFallbackSignals_CreatedAtAndZero(t *testing.T) {
	projects := NewIDMap()
	_, _ = projects.Put(1, 0)
	_, _ = projects.Put(2, 1)
	now := time.Now()

	sig := BuildFallbackSignals(nil, projects, map[int64]time.Time{1: now}, EventWeights{View: 1}, now, time.Hour)
	for i, p := range sig.Popularity {
		if p != 0 {
			t.Errorf("Popularity[%d] = %v, want 0 with no events", i, p)
		}
	}
	if sig.Recency[0] != 1 || sig.Recency[1] != 0 {
		t.Errorf("Recency = %v, want [1 0]", sig.Recency)
	}
}

func TestEncoder_EncodeAndLock(t *testing.T) {
	store := NewStore(t.TempDir())
	ctx := context.Background()

	users := []UserProfile{
		{ID: 3, Tokens: []string{"Backend", "go"}},
		{ID: 1, Tokens: []string{"frontend"}},
	}
	projects := []ProjectProfile{
		{ID: 50, Fields: []string{"Go, Redis", "#infra"}},
		{ID: 20, Fields: []string{"react/typescript"}},
	}

	snap, stats, err := NewEncoder(store, true, zerolog.Nop()).Encode(ctx, users, projects)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if snap.Users.Rows() != 4 {
		t.Errorf("user rows = %d, want 4 (index == id)", snap.Users.Rows())
	}
	if idx, _ := snap.ProjectIDs.Index(20); idx != 0 {
		t.Errorf("project 20 index = %d, want 0 (ascending id)", idx)
	}
	if !snap.Users.IsZeroRow(0) || !snap.Users.IsZeroRow(2) {
		t.Error("rows of unknown user ids must be zero")
	}
	if stats.UserVocab != 3 {
		t.Errorf("user vocab = %d, want 3", stats.UserVocab)
	}

	// Second run in lock mode: new user, new project and new tokens are ignored.
	users = append(users, UserProfile{ID: 9, Tokens: []string{"ml"}})
	projects = append(projects, ProjectProfile{ID: 5, Fields: []string{"python"}})
	snap2, stats2, err := NewEncoder(store, true, zerolog.Nop()).Encode(ctx, users, projects)
	if err != nil {
		t.Fatalf("Encode (locked): %v", err)
	}
	if snap2.Users.Rows() != 4 || snap2.Items.Rows() != 2 {
		t.Errorf("locked shapes = (%d, %d), want (4, 2)", snap2.Users.Rows(), snap2.Items.Rows())
	}
	if stats2.IgnoredUsers != 1 || stats2.IgnoredProjects != 1 {
		t.Errorf("ignored = (%d, %d), want (1, 1)", stats2.IgnoredUsers, stats2.IgnoredProjects)
	}
	if snap2.ItemVocab.Width() != snap.ItemVocab.Width() {
		t.Errorf("locked item vocab grew from %d to %d", snap.ItemVocab.Width(), snap2.ItemVocab.Width())
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Items.Cols() != snap2.Items.Cols() {
		t.Errorf("reloaded item cols = %d, want %d", loaded.Items.Cols(), snap2.Items.Cols())
	}
}

func TestEncoder_Unlocked_RemapsNewProjects(t *testing.T) {
	store := NewStore(t.TempDir())
	enc := NewEncoder(store, false, zerolog.Nop())

	_, _, err := enc.Encode(context.Background(), nil, []ProjectProfile{{ID: 20}})
	if err != nil {
		t.Fatal(err)
	}
	snap, _, err := enc.Encode(context.Background(), nil, []ProjectProfile{{ID: 20}, {ID: 5}})
	if err != nil {
		t.Fatal(err)
	}
	if idx, _ := snap.ProjectIDs.Index(5); idx != 0 {
		t.Errorf("unlocked encode should remap: project 5 index = %d, want 0", idx)
	}
	if col, ok := snap.ItemVocab.Index(NoneToken); !ok || col != 0 {
		t.Error("empty item vocabulary should be seeded with __none__")
	}
}

func TestStore_LoadMissing(t *testing.T) {
	_, err := NewStore(t.TempDir()).Load()
	if !errors.Is(err, ErrMissingFile) {
		t.Errorf("Load error = %v, want ErrMissingFile", err)
	}
}

func TestSnapshotHolder(t *testing.T) {
	var h SnapshotHolder
	if h.Load() != nil {
		t.Fatal("empty holder should return nil")
	}
	s1 := &Snapshot{}
	h.Publish(s1)
	if h.Load() != s1 {
		t.Error("Load should return the published snapshot")
	}
}
