// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package model

import (
	"fmt"
	"math"
)

// Tensor is a dense float32 parameter in row-major order.
// A scalar has an empty Shape and one element.
type Tensor struct {
	Shape []int
	Data  []float32
}

// NewTensor allocates a zero tensor with the given shape.
func NewTensor(shape ...int) *Tensor {
	return &Tensor{Shape: append([]int(nil), shape...), Data: make([]float32, numel(shape))}
}

func numel(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{Shape: append([]int(nil), t.Shape...), Data: append([]float32(nil), t.Data...)}
}

// Validate checks that Data matches Shape.
func (t *Tensor) Validate() error {
	if len(t.Data) != numel(t.Shape) {
		return fmt.Errorf("tensor data length %d does not match shape %v", len(t.Data), t.Shape)
	}
	return nil
}

// SameShape reports whether t and o have identical shapes.
func (t *Tensor) SameShape(o *Tensor) bool {
	if len(t.Shape) != len(o.Shape) {
		return false
	}
	for i := range t.Shape {
		if t.Shape[i] != o.Shape[i] {
			return false
		}
	}
	return true
}

// Row returns row i of a 2-D tensor.
func (t *Tensor) Row(i int) []float32 {
	cols := t.Shape[1]
	return t.Data[i*cols : (i+1)*cols]
}

// linear computes out = W x + b for W of shape [out, in].
func linear(w, b *Tensor, x []float32, out []float32) {
	outDim, inDim := w.Shape[0], w.Shape[1]
	for o := 0; o < outDim; o++ {
		row := w.Data[o*inDim : (o+1)*inDim]
		var sum float32
		for i, xv := range x {
			sum += row[i] * xv
		}
		if b != nil {
			sum += b.Data[o]
		}
		out[o] = sum
	}
}

// l2Normalize scales v to unit length in place. A zero vector stays zero.
func l2Normalize(v []float32) {
	var ss float64
	for _, x := range v {
		ss += float64(x) * float64(x)
	}
	if ss == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(ss))
	for i := range v {
		v[i] *= inv
	}
}

// Dot returns the float64 dot product of two equal-length vectors.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Sigmoid maps a logit to (0, 1).
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
