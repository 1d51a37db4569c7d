// Package tensor defines the explicit array shapes exchanged between the
// inference pipeline, the scaler and the model.
//
// Three shapes are used:
//   - Column:   an N×1 matrix, the layout a fitted scaler operates on
//   - Sequence: a rank-3 tensor [batch, timesteps, features], the model input
//   - Matrix:   a rank-2 tensor [batch, features], the model output
//
// All values are stored row-major in a flat slice. Converting between shapes
// never resamples; constructors only check that the element count matches the
// declared shape and then share the backing slice.
package tensor

import (
	"errors"
	"fmt"
)

// ErrShape is returned when an element count does not agree with a shape.
var ErrShape = errors.New("tensor shape mismatch")

// Column is an N×1 matrix of a single feature.
type Column []float64

// Rows returns the number of rows (N).
func (c Column) Rows() int { return len(c) }

// Clone returns a copy that does not share memory with c.
func (c Column) Clone() Column {
	out := make(Column, len(c))
	copy(out, c)
	return out
}

// Scalar unwraps a 1×1 column.
func (c Column) Scalar() (float64, error) {
	if len(c) != 1 {
		return 0, fmt.Errorf("%w: expected exactly 1 value, got %d", ErrShape, len(c))
	}
	return c[0], nil
}

// Sequence is a rank-3 tensor laid out as [batch, timesteps, features].
type Sequence struct {
	batch, steps, features int
	data                   []float64
}

// NewSequence reinterprets data as a [batch, steps, features] tensor.
// The slice is shared, not copied.
func NewSequence(batch, steps, features int, data []float64) (Sequence, error) {
	if batch <= 0 || steps <= 0 || features <= 0 {
		return Sequence{}, fmt.Errorf("%w: invalid sequence shape [%d,%d,%d]", ErrShape, batch, steps, features)
	}
	if want := batch * steps * features; len(data) != want {
		return Sequence{}, fmt.Errorf("%w: shape [%d,%d,%d] needs %d elements, got %d",
			ErrShape, batch, steps, features, want, len(data))
	}
	return Sequence{batch: batch, steps: steps, features: features, data: data}, nil
}

// Shape returns [batch, timesteps, features].
func (s Sequence) Shape() [3]int { return [3]int{s.batch, s.steps, s.features} }

// Batch returns the batch dimension.
func (s Sequence) Batch() int { return s.batch }

// Steps returns the timesteps dimension.
func (s Sequence) Steps() int { return s.steps }

// Features returns the features dimension.
func (s Sequence) Features() int { return s.features }

// Len returns the total number of elements.
func (s Sequence) Len() int { return len(s.data) }

// At returns the element at batch b, timestep t, feature f.
func (s Sequence) At(b, t, f int) float64 {
	return s.data[(b*s.steps+t)*s.features+f]
}

// Step returns the feature vector of batch b at timestep t.
// The returned slice aliases the tensor and must not be modified.
func (s Sequence) Step(b, t int) []float64 {
	off := (b*s.steps + t) * s.features
	return s.data[off : off+s.features]
}

// Matrix is a rank-2 tensor laid out as [batch, features].
type Matrix struct {
	rows, cols int
	data       []float64
}

// NewMatrix reinterprets data as a [rows, cols] matrix.
func NewMatrix(rows, cols int, data []float64) (Matrix, error) {
	if rows <= 0 || cols <= 0 {
		return Matrix{}, fmt.Errorf("%w: invalid matrix shape [%d,%d]", ErrShape, rows, cols)
	}
	if len(data) != rows*cols {
		return Matrix{}, fmt.Errorf("%w: shape [%d,%d] needs %d elements, got %d",
			ErrShape, rows, cols, rows*cols, len(data))
	}
	return Matrix{rows: rows, cols: cols, data: data}, nil
}

// Shape returns [rows, cols].
func (m Matrix) Shape() [2]int { return [2]int{m.rows, m.cols} }

// At returns the element at row r, column c.
func (m Matrix) At(r, c int) float64 { return m.data[r*m.cols+c] }

// Column views a single-feature matrix as a Column of its rows.
func (m Matrix) Column() (Column, error) {
	if m.cols != 1 {
		return nil, fmt.Errorf("%w: expected 1 feature column, got %d", ErrShape, m.cols)
	}
	return Column(m.data), nil
}
