package subspace

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// rankTolerance is the eigenvalue cutoff, relative to the largest eigenvalue,
// below which an axis is treated as numerically zero.
const rankTolerance = 1e-10

// columnMeans returns the per-column mean of x.
func columnMeans(x *mat.Dense) []float64 {
	n, d := x.Dims()
	means := make([]float64, d)
	col := make([]float64, n)
	for j := range d {
		mat.Col(col, j, x)
		means[j] = stat.Mean(col, nil)
	}
	return means
}

// centered returns a copy of x with mean subtracted from every row.
func centered(x *mat.Dense, mean []float64) *mat.Dense {
	n, d := x.Dims()
	z := mat.NewDense(n, d, nil)
	for i := range n {
		row := z.RawRowView(i)
		mat.Row(row, i, x)
		floats.Sub(row, mean)
	}
	return z
}

// symEigen decomposes a symmetric matrix. Values are ascending, as gonum
// returns them, and column i of vectors pairs with values[i].
func symEigen(a mat.Symmetric) ([]float64, *mat.Dense, error) {
	var eig mat.EigenSym
	if ok := eig.Factorize(a, true); !ok {
		return nil, nil, ErrEigenFailed
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)
	return values, &vectors, nil
}

// generalizedEigen solves a·v = λ·b·v for symmetric a and symmetric positive
// definite b by whitening with the Cholesky factor b = L·Lᵀ:
// M = L⁻¹·a·L⁻ᵀ, M·u = λ·u, v = L⁻ᵀ·u.
func generalizedEigen(a, b mat.Symmetric) ([]float64, *mat.Dense, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(b); !ok {
		return nil, nil, fmt.Errorf("%w: cholesky factorization failed", ErrSingularScatterMatrix)
	}
	var l mat.TriDense
	chol.LTo(&l)

	var lInv mat.TriDense
	if err := lInv.InverseTri(&l); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSingularScatterMatrix, err)
	}

	var tmp, m mat.Dense
	tmp.Mul(&lInv, a)
	m.Mul(&tmp, lInv.T())

	values, u, err := symEigen(symmetrize(&m))
	if err != nil {
		return nil, nil, err
	}

	var v mat.Dense
	v.Mul(lInv.T(), u)
	return values, &v, nil
}

// symmetrize averages m with its transpose.
func symmetrize(m mat.Matrix) *mat.SymDense {
	n, _ := m.Dims()
	s := mat.NewSymDense(n, nil)
	for i := range n {
		for j := i; j < n; j++ {
			s.SetSym(i, j, 0.5*(m.At(i, j)+m.At(j, i)))
		}
	}
	return s
}

// addRidge adds lambda to the diagonal of s in place.
func addRidge(s *mat.SymDense, lambda float64) {
	n := s.SymmetricDim()
	for i := range n {
		s.SetSym(i, i, s.At(i, i)+lambda)
	}
}

// isSingular reports whether a symmetric positive semi-definite matrix has an
// eigenvalue at or below rankTolerance times its largest eigenvalue.
func isSingular(s mat.Symmetric) (bool, error) {
	values, _, err := symEigen(s)
	if err != nil {
		return false, err
	}
	largest := values[len(values)-1]
	if largest <= 0 {
		return true, nil
	}
	return values[0] <= rankTolerance*largest, nil
}

// numericRank counts eigenvalues above rankTolerance times the largest.
func numericRank(values []float64) int {
	largest := floats.Max(values)
	if largest <= 0 {
		return 0
	}
	rank := 0
	for _, v := range values {
		if v > rankTolerance*largest {
			rank++
		}
	}
	return rank
}

// descending returns indices of values ordered by decreasing value. Equal
// values keep their decomposition order.
func descending(values []float64) []int {
	order := identity(len(values))
	sort.SliceStable(order, func(i, j int) bool {
		return values[order[i]] > values[order[j]]
	})
	return order
}

// ascending returns indices of values ordered by increasing value. Equal
// values keep their decomposition order.
func ascending(values []float64) []int {
	order := identity(len(values))
	sort.SliceStable(order, func(i, j int) bool {
		return values[order[i]] < values[order[j]]
	})
	return order
}

func identity(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

// selectColumns copies the given columns of vectors into a new matrix, each
// scaled to unit length with its largest-magnitude coordinate positive.
func selectColumns(vectors mat.Matrix, columns []int) *mat.Dense {
	d, _ := vectors.Dims()
	out := mat.NewDense(d, len(columns), nil)
	col := make([]float64, d)
	for k, j := range columns {
		mat.Col(col, j, vectors)
		canonicalize(col)
		out.SetCol(k, col)
	}
	return out
}

// canonicalize scales v to unit length and flips its sign so the first
// largest-magnitude coordinate is positive.
func canonicalize(v []float64) {
	norm := floats.Norm(v, 2)
	if norm == 0 {
		return
	}
	floats.Scale(1/norm, v)

	pivot := 0
	for i, val := range v {
		if math.Abs(val) > math.Abs(v[pivot]) {
			pivot = i
		}
	}
	if v[pivot] < 0 {
		floats.Scale(-1, v)
	}
}

// pick returns values at the given indices.
func pick(values []float64, indices []int) []float64 {
	out := make([]float64, len(indices))
	for k, i := range indices {
		out[k] = values[i]
	}
	return out
}
