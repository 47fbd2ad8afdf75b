// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package features

import "fmt"

// Matrix is an immutable row-major float32 matrix.
type Matrix struct {
	rows int
	cols int
	data []float32
}

// NewMatrix wraps data as a rows x cols matrix. The caller hands over
// ownership of data and must not modify it afterwards.
func NewMatrix(rows, cols int, data []float32) (*Matrix, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("invalid matrix shape (%d, %d)", rows, cols)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("matrix data length %d does not match shape (%d, %d)", len(data), rows, cols)
	}
	return &Matrix{rows: rows, cols: cols, data: data}, nil
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *Matrix) Cols() int { return m.cols }

// At returns the element at (r, c).
func (m *Matrix) At(r, c int) float32 { return m.data[r*m.cols+c] }

// Row returns a read-only view of row i. Callers must not write to it.
func (m *Matrix) Row(i int) []float32 {
	return m.data[i*m.cols : (i+1)*m.cols : (i+1)*m.cols]
}

// IsZeroRow reports whether every element of row i is zero.
// Rows outside the matrix are treated as zero.
func (m *Matrix) IsZeroRow(i int) bool {
	if i < 0 || i >= m.rows {
		return true
	}
	for _, v := range m.Row(i) {
		if v != 0 {
			return false
		}
	}
	return true
}

// Column returns a copy of column c as float64.
func (m *Matrix) Column(c int) []float64 {
	out := make([]float64, m.rows)
	for r := 0; r < m.rows; r++ {
		out[r] = float64(m.data[r*m.cols+c])
	}
	return out
}

// MatrixBuilder accumulates a matrix before publication.
// Build hands the backing array to the Matrix; the builder is unusable afterwards.
type MatrixBuilder struct {
	rows int
	cols int
	data []float32
}

// NewMatrixBuilder returns a zero-filled rows x cols builder.
func NewMatrixBuilder(rows, cols int) *MatrixBuilder {
	return &MatrixBuilder{rows: rows, cols: cols, data: make([]float32, rows*cols)}
}

// Set writes v at (r, c). Out-of-range coordinates are ignored.
func (b *MatrixBuilder) Set(r, c int, v float32) {
	if r < 0 || r >= b.rows || c < 0 || c >= b.cols {
		return
	}
	b.data[r*b.cols+c] = v
}

// Build publishes the matrix.
func (b *MatrixBuilder) Build() *Matrix {
	m := &Matrix{rows: b.rows, cols: b.cols, data: b.data}
	b.data = nil
	return m
}
