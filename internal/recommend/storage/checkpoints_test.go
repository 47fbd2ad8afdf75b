// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/tomtom215/projectrank/internal/recommend/model"
)

func testEnvelope(t *testing.T, seed int64) *model.Envelope {
	t.Helper()
	m, err := model.New(model.Config{
		NumUsers: 3, NumItems: 4, UserFeatDim: 2, ItemFeatDim: 2,
		EmbeddingDim: 4, HiddenDims: []int{4}, Seed: seed,
	})
	if err != nil {
		t.Fatalf("model.New: %v", err)
	}
	return model.NewEnvelope(m, model.CheckpointMeta{Epoch: int(seed)})
}

func TestNewStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ckpt")
	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, ok := s.LatestVersion("two_tower"); ok {
		t.Error("empty store should have no versions")
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("directory not created: %v", err)
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s, _ := NewStore(t.TempDir())

	env := testEnvelope(t, 1)
	v, err := s.Save(ctx, "two_tower", 0, env)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if v != 1 {
		t.Errorf("first version = %d, want 1", v)
	}

	loaded, meta, err := s.Load(ctx, "two_tower", 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if meta.Version != 1 || meta.Checksum == "" || meta.Params != len(env.StateDict) {
		t.Errorf("Metadata = %+v", meta)
	}
	if loaded.Meta == nil || loaded.Meta.Epoch != 1 {
		t.Errorf("envelope meta = %+v", loaded.Meta)
	}

	want := env.StateDict["u_emb.weight"]
	got := loaded.StateDict["u_emb.weight"]
	if got == nil || !got.SameShape(want) || got.Data[5] != want.Data[5] {
		t.Error("u_emb.weight did not round trip")
	}
}

func TestStore_LoadLatestAndRescan(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, _ := NewStore(dir)

	for seed := int64(1); seed <= 3; seed++ {
		if _, err := s.Save(ctx, "two_tower", 0, testEnvelope(t, seed)); err != nil {
			t.Fatal(err)
		}
	}

	// A fresh store on the same directory sees the same latest version.
	s2, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := s2.LatestVersion("two_tower"); v != 3 {
		t.Errorf("LatestVersion = %d, want 3", v)
	}
	env, _, err := s2.Load(ctx, "two_tower", 2)
	if err != nil {
		t.Fatal(err)
	}
	if env.Meta.Epoch != 2 {
		t.Errorf("v2 epoch = %d, want 2", env.Meta.Epoch)
	}
}

func TestStore_SeesCheckpointsFromAnotherWriter(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	reader, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	writer, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := reader.Load(ctx, "two_tower", 0); !errors.Is(err, ErrNoCheckpoint) {
		t.Fatalf("Load before any save error = %v, want ErrNoCheckpoint", err)
	}

	if _, err := writer.Save(ctx, "two_tower", 0, testEnvelope(t, 1)); err != nil {
		t.Fatal(err)
	}
	env, meta, err := reader.Load(ctx, "two_tower", 0)
	if err != nil {
		t.Fatalf("Load after external save: %v", err)
	}
	if meta.Version != 1 || env.Meta.Epoch != 1 {
		t.Errorf("loaded v%d epoch %d, want v1 epoch 1", meta.Version, env.Meta.Epoch)
	}

	if _, err := writer.Save(ctx, "two_tower", 0, testEnvelope(t, 2)); err != nil {
		t.Fatal(err)
	}
	if v, ok := reader.LatestVersion("two_tower"); !ok || v != 2 {
		t.Errorf("LatestVersion = %d, %v, want 2, true", v, ok)
	}
	env, _, err = reader.Load(ctx, "two_tower", 0)
	if err != nil {
		t.Fatal(err)
	}
	if env.Meta.Epoch != 2 {
		t.Errorf("latest epoch = %d, want 2", env.Meta.Epoch)
	}

	list, err := reader.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Version != 2 {
		t.Errorf("List() = %+v, want one entry at v2", list)
	}

	// The reader allocates past versions it never wrote itself.
	if v, err := reader.Save(ctx, "two_tower", 0, testEnvelope(t, 3)); err != nil || v != 3 {
		t.Errorf("reader.Save() = %d, %v, want 3", v, err)
	}
}

func TestStore_NoCheckpoint(t *testing.T) {
	s, _ := NewStore(t.TempDir())
	if _, _, err := s.Load(context.Background(), "two_tower", 0); !errors.Is(err, ErrNoCheckpoint) {
		t.Errorf("Load latest error = %v, want ErrNoCheckpoint", err)
	}
	if _, _, err := s.Load(context.Background(), "two_tower", 9); !errors.Is(err, ErrNoCheckpoint) {
		t.Errorf("Load v9 error = %v, want ErrNoCheckpoint", err)
	}
}

func TestStore_Prune(t *testing.T) {
	ctx := context.Background()
	s, _ := NewStore(t.TempDir())
	for seed := int64(1); seed <= 5; seed++ {
		if _, err := s.Save(ctx, "two_tower", 0, testEnvelope(t, seed)); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := s.Prune(ctx, "two_tower", 2)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}
	if _, _, err := s.Load(ctx, "two_tower", 3); !errors.Is(err, ErrNoCheckpoint) {
		t.Errorf("v3 should be pruned, got %v", err)
	}
	if _, _, err := s.Load(ctx, "two_tower", 0); err != nil {
		t.Errorf("latest should survive prune: %v", err)
	}
}

func TestStore_ChecksumValidation(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, _ := NewStore(dir)
	if _, err := s.Save(ctx, "two_tower", 1, testEnvelope(t, 1)); err != nil {
		t.Fatal(err)
	}

	// Flip a byte near the end of the file (inside the compressed payload).
	path := filepath.Join(dir, "two_tower_v1.gob.gz")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)-10] ^= 0xFF
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	if _, _, err := s.Load(ctx, "two_tower", 1); err == nil {
		t.Error("expected error loading corrupted checkpoint")
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s, _ := NewStore(t.TempDir())
	if _, err := s.Save(ctx, "two_tower", 0, testEnvelope(t, 1)); err != nil {
		t.Fatal(err)
	}
	env := testEnvelope(t, 2)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := s.Save(ctx, "two_tower", 0, env); err != nil {
				t.Errorf("Save: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, _, err := s.Load(ctx, "two_tower", 0); err != nil {
				t.Errorf("Load: %v", err)
			}
		}()
	}
	wg.Wait()

	if v, _ := s.LatestVersion("two_tower"); v != 9 {
		t.Errorf("LatestVersion = %d, want 9", v)
	}
}

func TestParseCheckpointFilename(t *testing.T) {
	tests := []struct {
		in      string
		name    string
		version int
	}{
		{"two_tower_v3", "two_tower", 3},
		{"model_v12", "model", 12},
		{"nov", "", 0},
		{"two_tower_vx", "", 0},
		{"_v1", "", 0},
	}
	for _, tt := range tests {
		name, v := parseCheckpointFilename(tt.in)
		if name != tt.name || v != tt.version {
			t.Errorf("parse(%q) = (%q, %d), want (%q, %d)", tt.in, name, v, tt.name, tt.version)
		}
	}
}
