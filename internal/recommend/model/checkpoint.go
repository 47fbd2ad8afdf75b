// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// CheckpointKind tags which key layout a checkpoint was saved with.
type CheckpointKind string

const (
	// KindStateDict is {"state_dict": {...}, ...meta}.
	KindStateDict CheckpointKind = "state_dict"
	// KindModelStateDict is {"model_state_dict": {...}, ...meta}.
	KindModelStateDict CheckpointKind = "model_state_dict"
	// KindRaw is a bare name -> tensor mapping.
	KindRaw CheckpointKind = "raw"
)

// dataParallelPrefix is prepended to every name by multi-device training wrappers.
const dataParallelPrefix = "module."

// ErrEmptyCheckpoint is returned when no parameter mapping can be found.
var ErrEmptyCheckpoint = errors.New("checkpoint contains no parameters")

// CheckpointMeta is optional training metadata stored with a checkpoint.
type CheckpointMeta struct {
	EmbeddingDim int
	HiddenDims   []int
	NumUsers     int
	NumItems     int
	UserFeatDim  int
	ItemFeatDim  int
	Epoch        int
	ValLoss      float64
	TrainedAt    time.Time
}

// Envelope is the persisted checkpoint. Exactly one of the three parameter
// mappings is expected to be populated; Resolve decides which.
type Envelope struct {
	StateDict      map[string]*Tensor
	ModelStateDict map[string]*Tensor
	Params         map[string]*Tensor
	Meta           *CheckpointMeta
}

// Checkpoint is a resolved Envelope: one canonical parameter mapping with
// wrapper prefixes stripped.
type Checkpoint struct {
	Kind   CheckpointKind
	Params map[string]*Tensor
	Meta   CheckpointMeta
}

// Resolve picks the parameter mapping (state_dict, then model_state_dict,
// then raw) and canonicalizes names once.
func Resolve(env *Envelope) (*Checkpoint, error) {
	if env == nil {
		return nil, ErrEmptyCheckpoint
	}

	var (
		kind   CheckpointKind
		source map[string]*Tensor
	)
	switch {
	case len(env.StateDict) > 0:
		kind, source = KindStateDict, env.StateDict
	case len(env.ModelStateDict) > 0:
		kind, source = KindModelStateDict, env.ModelStateDict
	case len(env.Params) > 0:
		kind, source = KindRaw, env.Params
	default:
		return nil, ErrEmptyCheckpoint
	}

	ck := &Checkpoint{Kind: kind, Params: make(map[string]*Tensor, len(source))}
	for name, t := range source {
		if t == nil {
			continue
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		ck.Params[strings.TrimPrefix(name, dataParallelPrefix)] = t
	}
	if env.Meta != nil {
		ck.Meta = *env.Meta
	}
	return ck, nil
}

// NewEnvelope wraps the network's current parameters for saving.
func NewEnvelope(m *TwoTower, meta CheckpointMeta) *Envelope {
	cfg := m.Config()
	meta.EmbeddingDim = cfg.EmbeddingDim
	meta.HiddenDims = append([]int(nil), cfg.HiddenDims...)
	meta.NumUsers = cfg.NumUsers
	meta.NumItems = cfg.NumItems
	meta.UserFeatDim = cfg.UserFeatDim
	meta.ItemFeatDim = cfg.ItemFeatDim
	return &Envelope{StateDict: m.StateDict(), Meta: &meta}
}

// PartialCopy records an embedding table whose row count changed.
type PartialCopy struct {
	Name       string
	Rows       int
	Checkpoint []int
	Model      []int
}

// SkippedParam records a parameter that could not be loaded.
type SkippedParam struct {
	Name   string
	Reason string
}

// LoadReport lists what happened to every parameter during LoadLenient.
type LoadReport struct {
	Kind       CheckpointKind
	Copied     []string
	Partial    []PartialCopy
	Skipped    []SkippedParam
	Missing    []string
	Unexpected []string
}

// Clean reports whether every parameter was copied in full.
func (r *LoadReport) Clean() bool {
	return len(r.Partial) == 0 && len(r.Skipped) == 0 && len(r.Missing) == 0 && len(r.Unexpected) == 0
}

// rowGrowable are the tables whose first dimension tracks the catalog size.
var rowGrowable = map[string]bool{
	"u_emb.weight": true,
	"i_emb.weight": true,
}

// LoadLenient copies checkpoint parameters into m.
//
// Exact shape matches are copied. Embedding tables whose row count differs
// copy the overlapping rows and leave the rest at their initialization.
// Every other mismatch is skipped and recorded; loading never aborts.
func (m *TwoTower) LoadLenient(ck *Checkpoint) *LoadReport {
	rep := &LoadReport{Kind: ck.Kind}

	for _, name := range m.order {
		dst := m.params[name]
		src, ok := ck.Params[name]
		if !ok {
			rep.Missing = append(rep.Missing, name)
			continue
		}

		switch {
		case dst.SameShape(src):
			copy(dst.Data, src.Data)
			rep.Copied = append(rep.Copied, name)

		case rowGrowable[name] && len(src.Shape) == 2 && len(dst.Shape) == 2 && src.Shape[1] == dst.Shape[1]:
			rows := min(src.Shape[0], dst.Shape[0])
			copy(dst.Data[:rows*dst.Shape[1]], src.Data[:rows*src.Shape[1]])
			rep.Partial = append(rep.Partial, PartialCopy{
				Name:       name,
				Rows:       rows,
				Checkpoint: append([]int(nil), src.Shape...),
				Model:      append([]int(nil), dst.Shape...),
			})

		default:
			rep.Skipped = append(rep.Skipped, SkippedParam{
				Name:   name,
				Reason: fmt.Sprintf("shape mismatch: checkpoint %v, model %v", src.Shape, dst.Shape),
			})
		}
	}

	for name := range ck.Params {
		if _, ok := m.params[name]; !ok {
			rep.Unexpected = append(rep.Unexpected, name)
		}
	}
	sort.Strings(rep.Unexpected)

	return rep
}
