// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package recommend

import (
	"context"
	"errors"
	"testing"

	"github.com/tomtom215/projectrank/internal/config"
	"github.com/tomtom215/projectrank/internal/features"
	"github.com/tomtom215/projectrank/internal/recommend/model"
	"github.com/tomtom215/projectrank/internal/recommend/storage"
)

func snapshotOfSize(t *testing.T, users, items int) *features.Snapshot {
	t.Helper()
	u := features.NewMatrixBuilder(users, 3)
	for r := 0; r < users; r++ {
		u.Set(r, r%3, 1)
	}
	i := features.NewMatrixBuilder(items, 2)
	for r := 0; r < items; r++ {
		i.Set(r, r%2, 1)
	}
	return &features.Snapshot{
		Users:      u.Build(),
		Items:      i.Build(),
		UserIDs:    userIDs(t, users),
		ProjectIDs: projectIDs(t, items),
	}
}

func TestLoadModel_GrownCatalog(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	trained, err := model.New(model.Config{
		NumUsers: 4, NumItems: 6, UserFeatDim: 3, ItemFeatDim: 2,
		EmbeddingDim: 8, HiddenDims: []int{16}, Seed: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Save(ctx, "two_tower", 0, model.NewEnvelope(trained, model.CheckpointMeta{Epoch: 3})); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// The catalog grew by two items since training.
	cfg := &config.ModelConfig{Name: "two_tower", EmbeddingDim: 4, HiddenDims: []int{2}, Seed: 9}
	net, report, err := LoadModel(ctx, store, cfg, snapshotOfSize(t, 4, 8), testLogger())
	if err != nil {
		t.Fatalf("LoadModel() error = %v", err)
	}

	if got := net.Config().EmbeddingDim; got != 8 {
		t.Errorf("EmbeddingDim = %d, want 8 from checkpoint metadata", got)
	}
	if len(report.Partial) != 1 || report.Partial[0].Name != "i_emb.weight" || report.Partial[0].Rows != 6 {
		t.Errorf("Partial = %+v, want i_emb.weight with 6 rows", report.Partial)
	}
	if len(report.Skipped) != 0 || len(report.Missing) != 0 {
		t.Errorf("unexpected skips: skipped=%v missing=%v", report.Skipped, report.Missing)
	}

	src, _ := trained.Param("i_emb.weight")
	dst, _ := net.Param("i_emb.weight")
	for j := 0; j < 8; j++ {
		if src.Row(5)[j] != dst.Row(5)[j] {
			t.Fatalf("row 5 not copied from checkpoint")
		}
	}
}

func TestLoadModel_FeatureWidthChanged(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	trained, err := model.New(model.Config{
		NumUsers: 2, NumItems: 2, UserFeatDim: 5, ItemFeatDim: 2,
		EmbeddingDim: 4, Seed: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Save(ctx, "two_tower", 0, model.NewEnvelope(trained, model.CheckpointMeta{})); err != nil {
		t.Fatal(err)
	}

	cfg := &config.ModelConfig{Name: "two_tower", EmbeddingDim: 4}
	_, report, err := LoadModel(ctx, store, cfg, snapshotOfSize(t, 2, 2), testLogger())
	if err != nil {
		t.Fatalf("LoadModel() should not abort on shape mismatch, got %v", err)
	}
	if len(report.Skipped) != 1 || report.Skipped[0].Name != "u_feat_fc.weight" {
		t.Errorf("Skipped = %+v, want u_feat_fc.weight", report.Skipped)
	}
}

func TestLoadModel_NoCheckpoint(t *testing.T) {
	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cfg := &config.ModelConfig{Name: "two_tower", EmbeddingDim: 4}
	_, _, err = LoadModel(context.Background(), store, cfg, snapshotOfSize(t, 1, 1), testLogger())
	if !errors.Is(err, storage.ErrNoCheckpoint) {
		t.Errorf("LoadModel() error = %v, want ErrNoCheckpoint", err)
	}
}
