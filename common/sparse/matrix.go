// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sparse

import (
	"io"
	"slices"
	"sort"

	"github.com/gorse-io/cfeval/common/encoding"
	"github.com/juju/errors"
)

// ErrShapeMismatch is returned when two matrices or sequences have incompatible shapes.
const ErrShapeMismatch = errors.ConstError("shape mismatch")

// Matrix is a sparse matrix in compressed-row storage. Zero means "absent": a stored
// entry is never zero once EliminateZeros has been called, and matrices produced by
// Builder never store zeros.
type Matrix struct {
	rows    int
	cols    int
	indptr  []int
	indices []int32
	values  []float64
}

// NewMatrix creates an empty matrix.
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{
		rows:   rows,
		cols:   cols,
		indptr: make([]int, rows+1),
	}
}

// FromDense creates a matrix from the nonzero entries of a dense matrix.
func FromDense(dense [][]float64) *Matrix {
	cols := 0
	for _, row := range dense {
		cols = max(cols, len(row))
	}
	m := &Matrix{rows: len(dense), cols: cols, indptr: make([]int, len(dense)+1)}
	for i, row := range dense {
		for j, v := range row {
			if v != 0 {
				m.indices = append(m.indices, int32(j))
				m.values = append(m.values, v)
			}
		}
		m.indptr[i+1] = len(m.indices)
	}
	return m
}

// FromRows creates a matrix from sparse rows with strictly increasing indices. Zero
// values are dropped.
func FromRows(cols int, rows []Vector) *Matrix {
	m := NewMatrix(len(rows), cols)
	for i, row := range rows {
		for pos, v := range row.Values {
			if v != 0 {
				m.indices = append(m.indices, row.Indices[pos])
				m.values = append(m.values, v)
			}
		}
		m.indptr[i+1] = len(m.indices)
	}
	return m
}

// Shape returns the number of rows and columns.
func (m *Matrix) Shape() (int, int) {
	return m.rows, m.cols
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int {
	return m.rows
}

// Cols returns the number of columns.
func (m *Matrix) Cols() int {
	return m.cols
}

// NNZ returns the number of stored entries.
func (m *Matrix) NNZ() int {
	return len(m.values)
}

// SameShape returns true if both matrices have the same shape.
func (m *Matrix) SameShape(other *Matrix) bool {
	return m.rows == other.rows && m.cols == other.cols
}

// Row returns a view of the i-th row. The view shares memory with the matrix.
func (m *Matrix) Row(i int) Vector {
	begin, end := m.indptr[i], m.indptr[i+1]
	return Vector{
		Indices: m.indices[begin:end:end],
		Values:  m.values[begin:end:end],
	}
}

// Get returns the value at (i, j), or zero if the entry is absent.
func (m *Matrix) Get(i, j int) float64 {
	v, _ := m.Row(i).Get(j)
	return v
}

// Has returns true if a nonzero value is stored at (i, j).
func (m *Matrix) Has(i, j int) bool {
	v, ok := m.Row(i).Get(j)
	return ok && v != 0
}

// ForEach iterates stored entries in row-major order.
func (m *Matrix) ForEach(f func(i, j int, v float64)) {
	for i := 0; i < m.rows; i++ {
		for pos := m.indptr[i]; pos < m.indptr[i+1]; pos++ {
			f(i, int(m.indices[pos]), m.values[pos])
		}
	}
}

// Copy returns a deep copy.
func (m *Matrix) Copy() *Matrix {
	return &Matrix{
		rows:    m.rows,
		cols:    m.cols,
		indptr:  slices.Clone(m.indptr),
		indices: slices.Clone(m.indices),
		values:  slices.Clone(m.values),
	}
}

// Transpose returns the transposed matrix in compressed-row storage.
func (m *Matrix) Transpose() *Matrix {
	t := &Matrix{
		rows:    m.cols,
		cols:    m.rows,
		indptr:  make([]int, m.cols+1),
		indices: make([]int32, len(m.indices)),
		values:  make([]float64, len(m.values)),
	}
	// count entries per column
	for _, j := range m.indices {
		t.indptr[j+1]++
	}
	for j := 0; j < m.cols; j++ {
		t.indptr[j+1] += t.indptr[j]
	}
	// scatter, rows are visited in order so indices stay sorted
	next := slices.Clone(t.indptr[:m.cols])
	for i := 0; i < m.rows; i++ {
		for pos := m.indptr[i]; pos < m.indptr[i+1]; pos++ {
			j := m.indices[pos]
			t.indices[next[j]] = int32(i)
			t.values[next[j]] = m.values[pos]
			next[j]++
		}
	}
	return t
}

// Multiply returns the elementwise product of two matrices.
func (m *Matrix) Multiply(other *Matrix) (*Matrix, error) {
	if !m.SameShape(other) {
		return nil, errors.Annotatef(ErrShapeMismatch, "(%d, %d) * (%d, %d)", m.rows, m.cols, other.rows, other.cols)
	}
	product := NewMatrix(m.rows, m.cols)
	for i := 0; i < m.rows; i++ {
		m.Row(i).ForIntersection(other.Row(i), func(index int, a, b float64) {
			if v := a * b; v != 0 {
				product.indices = append(product.indices, int32(index))
				product.values = append(product.values, v)
			}
		})
		product.indptr[i+1] = len(product.indices)
	}
	return product, nil
}

// Sum returns the sum of stored values.
func (m *Matrix) Sum() float64 {
	sum := 0.0
	for _, v := range m.values {
		sum += v
	}
	return sum
}

// EliminateZeros removes explicitly stored zeros in place.
func (m *Matrix) EliminateZeros() *Matrix {
	n := 0
	begin := 0
	for i := 0; i < m.rows; i++ {
		end := m.indptr[i+1]
		for pos := begin; pos < end; pos++ {
			if m.values[pos] != 0 {
				m.indices[n] = m.indices[pos]
				m.values[n] = m.values[pos]
				n++
			}
		}
		begin = end
		m.indptr[i+1] = n
	}
	m.indices = m.indices[:n]
	m.values = m.values[:n]
	return m
}

// Equal returns true if both matrices have the same shape and entries.
func (m *Matrix) Equal(other *Matrix) bool {
	return m.SameShape(other) &&
		slices.Equal(m.indptr, other.indptr) &&
		slices.Equal(m.indices, other.indices) &&
		slices.Equal(m.values, other.values)
}

// ToDense converts the matrix to a dense matrix.
func (m *Matrix) ToDense() [][]float64 {
	dense := make([][]float64, m.rows)
	for i := range dense {
		dense[i] = make([]float64, m.cols)
	}
	m.ForEach(func(i, j int, v float64) {
		dense[i][j] = v
	})
	return dense
}

// Marshal writes the matrix to byte stream.
func (m *Matrix) Marshal(w io.Writer) error {
	if err := encoding.WriteInt64(w, int64(m.rows)); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteInt64(w, int64(m.cols)); err != nil {
		return errors.Trace(err)
	}
	indptr := make([]int64, len(m.indptr))
	for i, p := range m.indptr {
		indptr[i] = int64(p)
	}
	if err := encoding.WriteSlice(w, indptr); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteSlice(w, m.indices); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(encoding.WriteSlice(w, m.values))
}

// Unmarshal reads a matrix written by Marshal.
func Unmarshal(r io.Reader) (*Matrix, error) {
	rows, err := encoding.ReadInt64(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	cols, err := encoding.ReadInt64(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	indptr, err := encoding.ReadSlice[int64](r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	indices, err := encoding.ReadSlice[int32](r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	values, err := encoding.ReadSlice[float64](r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if int64(len(indptr)) != rows+1 || len(indices) != len(values) || indptr[rows] != int64(len(values)) {
		return nil, errors.NotValidf("corrupted sparse matrix")
	}
	m := &Matrix{
		rows:    int(rows),
		cols:    int(cols),
		indptr:  make([]int, len(indptr)),
		indices: indices,
		values:  values,
	}
	for i, p := range indptr {
		m.indptr[i] = int(p)
	}
	return m, nil
}

// Builder collects (row, column, value) triples and builds a Matrix. Repeated
// positions are averaged.
type Builder struct {
	rows    int
	cols    int
	triples []triple
}

type triple struct {
	row   int32
	col   int32
	value float64
}

// NewBuilder creates a builder for a rows x cols matrix.
func NewBuilder(rows, cols int) *Builder {
	return &Builder{rows: rows, cols: cols}
}

// Add appends a triple. It returns an error if the position is out of range.
func (b *Builder) Add(i, j int, v float64) error {
	if i < 0 || i >= b.rows || j < 0 || j >= b.cols {
		return errors.NotValidf("position (%d, %d) in (%d, %d) matrix", i, j, b.rows, b.cols)
	}
	b.triples = append(b.triples, triple{row: int32(i), col: int32(j), value: v})
	return nil
}

// Build sorts collected triples, averages repeated positions and drops zeros.
func (b *Builder) Build() *Matrix {
	sort.SliceStable(b.triples, func(x, y int) bool {
		if b.triples[x].row != b.triples[y].row {
			return b.triples[x].row < b.triples[y].row
		}
		return b.triples[x].col < b.triples[y].col
	})
	m := NewMatrix(b.rows, b.cols)
	for begin := 0; begin < len(b.triples); {
		end := begin
		sum := 0.0
		for end < len(b.triples) && b.triples[end].row == b.triples[begin].row && b.triples[end].col == b.triples[begin].col {
			sum += b.triples[end].value
			end++
		}
		if mean := sum / float64(end-begin); mean != 0 {
			m.indices = append(m.indices, b.triples[begin].col)
			m.values = append(m.values, mean)
			m.indptr[b.triples[begin].row+1]++
		}
		begin = end
	}
	for i := 0; i < b.rows; i++ {
		m.indptr[i+1] += m.indptr[i]
	}
	return m
}
