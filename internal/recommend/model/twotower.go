// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

// Package model implements the feature-based two-tower scoring network used
// by the inference engine.
//
// The network mirrors the trained model's parameter layout so checkpoints can
// be loaded by name:
//
//	u_emb.weight        [num_users, emb]
//	i_emb.weight        [num_items, emb]
//	u_feat_fc.weight    [emb, user_feat_dim]   (+ bias)
//	i_feat_fc.weight    [emb, item_feat_dim]   (+ bias)
//	mlp.{4k}.*          Linear
//	mlp.{4k+1}.*        BatchNorm1d (eval mode: running statistics)
//	out.weight          [1, last_hidden]       (+ bias)
//
// The user and item towers (EncodeUsers, EncodeItems) produce L2-normalized
// embeddings, so a dot product between them is a cosine similarity. Forward
// runs the full pairwise MLP and returns logits.
package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strconv"

	"github.com/tomtom215/projectrank/internal/features"
)

const (
	batchNormEps   = 1e-5
	leakyReLUSlope = 0.01
)

// Config describes the network dimensions.
type Config struct {
	NumUsers     int
	NumItems     int
	UserFeatDim  int
	ItemFeatDim  int
	EmbeddingDim int
	HiddenDims   []int
	Seed         int64
}

// Validate checks the dimensions.
func (c *Config) Validate() error {
	if c.NumUsers < 0 || c.NumItems < 0 {
		return fmt.Errorf("negative entity count (users=%d, items=%d)", c.NumUsers, c.NumItems)
	}
	if c.UserFeatDim < 1 || c.ItemFeatDim < 1 {
		return fmt.Errorf("feature dims must be positive (user=%d, item=%d)", c.UserFeatDim, c.ItemFeatDim)
	}
	if c.EmbeddingDim < 1 {
		return fmt.Errorf("embedding dim must be positive, got %d", c.EmbeddingDim)
	}
	for i, h := range c.HiddenDims {
		if h < 1 {
			return fmt.Errorf("hidden dim %d must be positive, got %d", i, h)
		}
	}
	return nil
}

// mlpBlock is Linear -> BatchNorm -> LeakyReLU -> Dropout (identity at inference).
type mlpBlock struct {
	w, b                    *Tensor
	gamma, beta, mean, vari *Tensor
}

// TwoTower is the scoring network. It is read-only after construction and
// checkpoint loading, and safe for concurrent use.
type TwoTower struct {
	cfg    Config
	params map[string]*Tensor
	order  []string
	blocks []mlpBlock
}

// New builds a randomly initialized network.
//
// Initialization follows the trained framework's defaults: embeddings are
// N(0, 1), linear layers are U(-1/sqrt(in), 1/sqrt(in)), batch norm starts
// as identity.
func New(cfg Config) (*TwoTower, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	//nolint:gosec // G404: math/rand is acceptable for ML initialization (not security)
	rng := rand.New(rand.NewSource(cfg.Seed))

	m := &TwoTower{cfg: cfg, params: make(map[string]*Tensor)}
	emb := cfg.EmbeddingDim

	m.addNormal("u_emb.weight", rng, cfg.NumUsers, emb)
	m.addNormal("i_emb.weight", rng, cfg.NumItems, emb)
	m.addLinear("u_feat_fc", rng, emb, cfg.UserFeatDim)
	m.addLinear("i_feat_fc", rng, emb, cfg.ItemFeatDim)

	in := 4 * emb
	for k, h := range cfg.HiddenDims {
		lin := "mlp." + strconv.Itoa(4*k)
		bn := "mlp." + strconv.Itoa(4*k+1)
		m.addLinear(lin, rng, h, in)

		gamma := m.add(bn+".weight", NewTensor(h))
		beta := m.add(bn+".bias", NewTensor(h))
		mean := m.add(bn+".running_mean", NewTensor(h))
		vari := m.add(bn+".running_var", NewTensor(h))
		m.add(bn+".num_batches_tracked", NewTensor())
		for i := 0; i < h; i++ {
			gamma.Data[i] = 1
			vari.Data[i] = 1
		}

		m.blocks = append(m.blocks, mlpBlock{
			w: m.params[lin+".weight"], b: m.params[lin+".bias"],
			gamma: gamma, beta: beta, mean: mean, vari: vari,
		})
		in = h
	}
	m.addLinear("out", rng, 1, in)

	return m, nil
}

func (m *TwoTower) add(name string, t *Tensor) *Tensor {
	m.params[name] = t
	m.order = append(m.order, name)
	return t
}

func (m *TwoTower) addNormal(name string, rng *rand.Rand, rows, cols int) {
	t := m.add(name, NewTensor(rows, cols))
	for i := range t.Data {
		t.Data[i] = float32(rng.NormFloat64())
	}
}

func (m *TwoTower) addLinear(prefix string, rng *rand.Rand, out, in int) {
	bound := 1 / math.Sqrt(float64(in))
	w := m.add(prefix+".weight", NewTensor(out, in))
	b := m.add(prefix+".bias", NewTensor(out))
	for i := range w.Data {
		w.Data[i] = float32((rng.Float64()*2 - 1) * bound)
	}
	for i := range b.Data {
		b.Data[i] = float32((rng.Float64()*2 - 1) * bound)
	}
}

// Config returns the network dimensions.
func (m *TwoTower) Config() Config { return m.cfg }

// ParamNames returns parameter names in registration order.
func (m *TwoTower) ParamNames() []string { return append([]string(nil), m.order...) }

// Param returns the named parameter.
func (m *TwoTower) Param(name string) (*Tensor, bool) {
	t, ok := m.params[name]
	return t, ok
}

// StateDict returns deep copies of every parameter keyed by name.
func (m *TwoTower) StateDict() map[string]*Tensor {
	out := make(map[string]*Tensor, len(m.params))
	for k, v := range m.params {
		out[k] = v.Clone()
	}
	return out
}

// ErrShape is returned when an input matrix does not fit the network.
var ErrShape = errors.New("input shape does not match model")

// EncodeUsers returns the L2-normalized user tower output for every row of
// feats. Row i uses embedding row i; rows beyond the embedding table use the
// feature projection alone.
func (m *TwoTower) EncodeUsers(feats *features.Matrix) (*features.Matrix, error) {
	return m.encode(feats, m.params["u_emb.weight"], m.params["u_feat_fc.weight"], m.params["u_feat_fc.bias"], m.cfg.UserFeatDim)
}

// EncodeItems returns the L2-normalized item tower output for every row of feats.
func (m *TwoTower) EncodeItems(feats *features.Matrix) (*features.Matrix, error) {
	return m.encode(feats, m.params["i_emb.weight"], m.params["i_feat_fc.weight"], m.params["i_feat_fc.bias"], m.cfg.ItemFeatDim)
}

func (m *TwoTower) encode(feats *features.Matrix, emb, w, b *Tensor, featDim int) (*features.Matrix, error) {
	if feats.Cols() != featDim {
		return nil, fmt.Errorf("%w: %d feature columns, model expects %d", ErrShape, feats.Cols(), featDim)
	}
	d := m.cfg.EmbeddingDim
	rows := feats.Rows()
	out := features.NewMatrixBuilder(rows, d)
	vec := make([]float32, d)

	for r := 0; r < rows; r++ {
		linear(w, b, feats.Row(r), vec)
		if r < emb.Shape[0] {
			for j, e := range emb.Row(r) {
				vec[j] += e
			}
		}
		l2Normalize(vec)
		for j, v := range vec {
			out.Set(r, j, v)
		}
	}
	return out.Build(), nil
}

// Forward returns the pairwise logit for each (users[k], items[k]).
func (m *TwoTower) Forward(users, items []int, userFeats, itemFeats *features.Matrix) ([]float64, error) {
	if len(users) != len(items) {
		return nil, fmt.Errorf("%w: %d users vs %d items", ErrShape, len(users), len(items))
	}
	if userFeats.Cols() != m.cfg.UserFeatDim || itemFeats.Cols() != m.cfg.ItemFeatDim {
		return nil, fmt.Errorf("%w: feature columns (%d, %d), model expects (%d, %d)",
			ErrShape, userFeats.Cols(), itemFeats.Cols(), m.cfg.UserFeatDim, m.cfg.ItemFeatDim)
	}

	d := m.cfg.EmbeddingDim
	uEmb, iEmb := m.params["u_emb.weight"], m.params["i_emb.weight"]
	x := make([]float32, 4*d)
	logits := make([]float64, len(users))

	for k := range users {
		u, it := users[k], items[k]
		if u < 0 || u >= uEmb.Shape[0] || u >= userFeats.Rows() {
			return nil, fmt.Errorf("%w: user index %d out of range", ErrShape, u)
		}
		if it < 0 || it >= iEmb.Shape[0] || it >= itemFeats.Rows() {
			return nil, fmt.Errorf("%w: item index %d out of range", ErrShape, it)
		}

		copy(x[0:d], uEmb.Row(u))
		copy(x[d:2*d], iEmb.Row(it))
		linear(m.params["u_feat_fc.weight"], m.params["u_feat_fc.bias"], userFeats.Row(u), x[2*d:3*d])
		linear(m.params["i_feat_fc.weight"], m.params["i_feat_fc.bias"], itemFeats.Row(it), x[3*d:4*d])

		h := x
		for _, blk := range m.blocks {
			next := make([]float32, blk.w.Shape[0])
			linear(blk.w, blk.b, h, next)
			for i, v := range next {
				v = (v-blk.mean.Data[i])/float32(math.Sqrt(float64(blk.vari.Data[i])+batchNormEps))*blk.gamma.Data[i] + blk.beta.Data[i]
				if v < 0 {
					v *= leakyReLUSlope
				}
				next[i] = v
			}
			h = next
		}

		var out [1]float32
		linear(m.params["out.weight"], m.params["out.bias"], h, out[:])
		logits[k] = float64(out[0])
	}
	return logits, nil
}
