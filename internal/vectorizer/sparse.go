// Package vectorizer provides sparse vectors, row-sparse matrices and
// sklearn-style vectorizers used to featurize dialogue states and messages.
package vectorizer

import (
	"math"
	"sort"
)

// SparseVector represents a sparse float64 vector.
type SparseVector struct {
	Indices []int     `json:"indices"`
	Values  []float64 `json:"values"`
	Dim     int       `json:"dim"`
}

// NewSparseVector creates a sparse vector with given dimension.
func NewSparseVector(dim int) SparseVector {
	return SparseVector{Dim: dim}
}

// Set adds or updates a value at the given index.
func (sv *SparseVector) Set(idx int, val float64) {
	for i, existingIdx := range sv.Indices {
		if existingIdx == idx {
			sv.Values[i] = val
			return
		}
	}
	sv.Indices = append(sv.Indices, idx)
	sv.Values = append(sv.Values, val)
}

// At returns the value stored at idx, or zero.
func (sv SparseVector) At(idx int) float64 {
	for i, existingIdx := range sv.Indices {
		if existingIdx == idx {
			return sv.Values[i]
		}
	}
	return 0
}

// ToDense converts to a dense float64 slice.
func (sv SparseVector) ToDense() []float64 {
	dense := make([]float64, sv.Dim)
	for i, idx := range sv.Indices {
		if idx < sv.Dim {
			dense[idx] = sv.Values[i]
		}
	}
	return dense
}

// Nnz returns the number of non-zero entries.
func (sv SparseVector) Nnz() int {
	return len(sv.Indices)
}

// Clone returns a deep copy.
func (sv SparseVector) Clone() SparseVector {
	out := SparseVector{Dim: sv.Dim}
	if sv.Indices != nil {
		out.Indices = append([]int(nil), sv.Indices...)
		out.Values = append([]float64(nil), sv.Values...)
	}
	return out
}

// Sorted returns a copy with entries ordered by index.
func (sv SparseVector) Sorted() SparseVector {
	out := sv.Clone()
	sort.Sort(byIndex(out))
	return out
}

type byIndex SparseVector

func (b byIndex) Len() int           { return len(b.Indices) }
func (b byIndex) Less(i, j int) bool { return b.Indices[i] < b.Indices[j] }
func (b byIndex) Swap(i, j int) {
	b.Indices[i], b.Indices[j] = b.Indices[j], b.Indices[i]
	b.Values[i], b.Values[j] = b.Values[j], b.Values[i]
}

// L2Norm returns the L2 norm of the sparse vector.
func (sv SparseVector) L2Norm() float64 {
	var sum float64
	for _, v := range sv.Values {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// SparseMatrix is a row-sparse matrix: every row is a SparseVector of
// dimension Cols.
type SparseMatrix struct {
	RowVecs []SparseVector `json:"rows"`
	Cols    int            `json:"cols"`
}

// NewSparseMatrix returns an all-zero rows x cols matrix.
func NewSparseMatrix(rows, cols int) *SparseMatrix {
	m := &SparseMatrix{RowVecs: make([]SparseVector, rows), Cols: cols}
	for i := range m.RowVecs {
		m.RowVecs[i] = NewSparseVector(cols)
	}
	return m
}

// Dims returns the number of rows and columns.
func (m *SparseMatrix) Dims() (int, int) {
	return len(m.RowVecs), m.Cols
}

// Set stores val at (i, j).
func (m *SparseMatrix) Set(i, j int, val float64) {
	m.RowVecs[i].Set(j, val)
}

// At returns the value at (i, j).
func (m *SparseMatrix) At(i, j int) float64 {
	return m.RowVecs[i].At(j)
}

// Nnz returns the number of stored entries.
func (m *SparseMatrix) Nnz() int {
	n := 0
	for _, r := range m.RowVecs {
		n += r.Nnz()
	}
	return n
}

// Clone returns a deep copy.
func (m *SparseMatrix) Clone() *SparseMatrix {
	out := &SparseMatrix{RowVecs: make([]SparseVector, len(m.RowVecs)), Cols: m.Cols}
	for i, r := range m.RowVecs {
		out.RowVecs[i] = r.Clone()
	}
	return out
}

// SumRows collapses all rows into a single vector.
func (m *SparseMatrix) SumRows() SparseVector {
	acc := make(map[int]float64)
	for _, r := range m.RowVecs {
		for i, idx := range r.Indices {
			acc[idx] += r.Values[i]
		}
	}
	out := NewSparseVector(m.Cols)
	for idx, v := range acc {
		if v != 0 {
			out.Set(idx, v)
		}
	}
	return out.Sorted()
}

// ToDense returns the matrix in row-major order.
func (m *SparseMatrix) ToDense() []float64 {
	rows := len(m.RowVecs)
	data := make([]float64, rows*m.Cols)
	for i, r := range m.RowVecs {
		for k, idx := range r.Indices {
			if idx < m.Cols {
				data[i*m.Cols+idx] = r.Values[k]
			}
		}
	}
	return data
}
