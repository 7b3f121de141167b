// Package features defines the numeric blocks a dialogue state is encoded to.
//
// A Features value carries exactly one matrix, either dense (gonum) or sparse
// (row-sparse), tagged with the attribute it describes and whether it is a
// sentence-level or token-level (sequence) representation.
package features

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/happyhackingspace/turnfeat/internal/vectorizer"
)

// Kind distinguishes sentence-level from token-level features.
type Kind string

const (
	Sentence Kind = "sentence"
	Sequence Kind = "sequence"
)

// Attribute names produced by the state featurizer.
const (
	Intent     = "intent"
	Text       = "text"
	Entities   = "entities"
	ActionName = "action_name"
	ActionText = "action_text"
	Slots      = "slots"
	ActiveLoop = "active_loop"
)

// Features is an immutable numeric block for one attribute.
type Features struct {
	dense  *mat.Dense
	sparse *vectorizer.SparseMatrix

	Kind      Kind
	Attribute string
	Origin    string
}

// NewDense wraps a dense matrix. The matrix must not be modified afterwards.
func NewDense(m *mat.Dense, kind Kind, attribute, origin string) Features {
	return Features{dense: m, Kind: kind, Attribute: attribute, Origin: origin}
}

// NewSparse wraps a sparse matrix. The matrix must not be modified afterwards.
func NewSparse(m *vectorizer.SparseMatrix, kind Kind, attribute, origin string) Features {
	return Features{sparse: m, Kind: kind, Attribute: attribute, Origin: origin}
}

// NewSparseRow wraps a single sparse vector as a 1 x dim matrix.
func NewSparseRow(v vectorizer.SparseVector, kind Kind, attribute, origin string) Features {
	m := &vectorizer.SparseMatrix{RowVecs: []vectorizer.SparseVector{v.Clone()}, Cols: v.Dim}
	return NewSparse(m, kind, attribute, origin)
}

// IsDense reports whether the block holds a dense matrix.
func (f Features) IsDense() bool { return f.dense != nil }

// IsSparse reports whether the block holds a sparse matrix.
func (f Features) IsSparse() bool { return f.sparse != nil }

// Dense returns the dense matrix, or nil for sparse features.
func (f Features) Dense() *mat.Dense { return f.dense }

// Sparse returns the sparse matrix, or nil for dense features.
func (f Features) Sparse() *vectorizer.SparseMatrix { return f.sparse }

// Dims returns the matrix shape.
func (f Features) Dims() (int, int) {
	switch {
	case f.dense != nil:
		return f.dense.Dims()
	case f.sparse != nil:
		return f.sparse.Dims()
	}
	return 0, 0
}

// Cols is the feature dimension.
func (f Features) Cols() int {
	_, c := f.Dims()
	return c
}

// Clone returns a deep copy.
func (f Features) Clone() Features {
	out := f
	if f.dense != nil {
		out.dense = copyDense(f.dense)
	}
	if f.sparse != nil {
		out.sparse = f.sparse.Clone()
	}
	return out
}

// Zero returns an all-zero single-row block with the same storage type,
// column count, kind, attribute and origin.
func (f Features) Zero() Features {
	cols := f.Cols()
	out := Features{Kind: f.Kind, Attribute: f.Attribute, Origin: f.Origin}
	if f.sparse != nil {
		out.sparse = vectorizer.NewSparseMatrix(1, cols)
		return out
	}
	if cols == 0 {
		// gonum refuses zero-sized matrices
		out.dense = &mat.Dense{}
		return out
	}
	out.dense = mat.NewDense(1, cols, nil)
	return out
}

// ToDense returns a dense copy of the block regardless of storage.
func (f Features) ToDense() *mat.Dense {
	if f.dense != nil {
		return copyDense(f.dense)
	}
	rows, cols := f.Dims()
	if rows == 0 || cols == 0 {
		return &mat.Dense{}
	}
	return mat.NewDense(rows, cols, f.sparse.ToDense())
}

func copyDense(m *mat.Dense) *mat.Dense {
	if m.IsEmpty() {
		return &mat.Dense{}
	}
	return mat.DenseCopyOf(m)
}

// String describes the block without its values.
func (f Features) String() string {
	rows, cols := f.Dims()
	storage := "dense"
	if f.IsSparse() {
		storage = "sparse"
	}
	return fmt.Sprintf("%s %s %s [%dx%d]", f.Attribute, f.Kind, storage, rows, cols)
}

// StateFeatures maps attribute names to the feature blocks of one state.
type StateFeatures map[string][]Features

// Attributes returns the sorted attribute names present in sf.
func (sf StateFeatures) Attributes() []string {
	out := make([]string, 0, len(sf))
	for k := range sf {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NewZero returns an all-zero single-row block of the given shape.
func NewZero(kind Kind, attribute, origin string, cols int, sparse bool) Features {
	if sparse {
		return NewSparse(vectorizer.NewSparseMatrix(1, cols), kind, attribute, origin)
	}
	if cols == 0 {
		return NewDense(&mat.Dense{}, kind, attribute, origin)
	}
	return NewDense(mat.NewDense(1, cols, nil), kind, attribute, origin)
}
