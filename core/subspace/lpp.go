package subspace

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// trivialTolerance bounds the relative spread of a projection Xa below which
// the eigenvector a is treated as the constant (trivial) solution.
const trivialTolerance = 1e-9

// LPP keeps the directions that best preserve local neighborhoods of a
// heat-kernel weighted neighbor graph.
type LPP struct {
	opts Options
}

func (LPP) Kind() Kind { return KindLPP }

// Fit reduces x to its numeric PCA rank m, builds the neighbor graph in that
// space, and solves Xᵀ·L·X·a = λ·Xᵀ·Dg·X·a, keeping the components
// eigenvectors with the smallest nontrivial λ. Labels are ignored.
func (l LPP) Fit(ctx context.Context, x *mat.Dense, labels []string, components int) (*Projection, error) {
	if err := checkFitInput(x, labels, components); err != nil {
		return nil, err
	}
	n, _ := x.Dims()
	mean := columnMeans(x)

	values, vectors, err := principalAxes(ctx, x, mean)
	if err != nil {
		return nil, err
	}
	rank := numericRank(values)
	if components > rank {
		return nil, fmt.Errorf("%w: %d exceeds data rank %d", ErrInvalidComponentCount, components, rank)
	}
	reduce := selectColumns(vectors, descending(values)[:rank])

	var y mat.Dense
	y.Mul(centered(x, mean), reduce)

	weights := l.graph(&y)
	degree := make([]float64, n)
	for i := range n {
		for j := range n {
			degree[i] += weights.At(i, j)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	laplacian := mat.NewSymDense(n, nil)
	for i := range n {
		for j := i; j < n; j++ {
			v := -weights.At(i, j)
			if i == j {
				v += degree[i]
			}
			laplacian.SetSym(i, j, v)
		}
	}

	// a = Yᵀ·L·Y, b = Yᵀ·Dg·Y
	var ly, a mat.Dense
	ly.Mul(laplacian, &y)
	a.Mul(y.T(), &ly)

	dy := mat.DenseCopyOf(&y)
	for i := range n {
		floats.Scale(degree[i], dy.RawRowView(i))
	}
	var b mat.Dense
	b.Mul(y.T(), dy)

	bSym := symmetrize(&b)
	if l.opts.Regularization > 0 {
		addRidge(bSym, l.opts.Regularization)
	}

	eigenvalues, eigenvectors, err := generalizedEigen(symmetrize(&a), bSym)
	if err != nil {
		return nil, err
	}

	var chosen []int
	projected := make([]float64, n)
	column := make([]float64, rank)
	for _, k := range ascending(eigenvalues) {
		mat.Col(column, k, eigenvectors)
		out := mat.NewVecDense(n, projected)
		out.MulVec(&y, mat.NewVecDense(rank, column))
		if isConstant(projected) {
			continue
		}
		chosen = append(chosen, k)
		if len(chosen) == components {
			break
		}
	}
	if len(chosen) < components {
		return nil, fmt.Errorf("%w: only %d nontrivial locality axes", ErrInvalidComponentCount, len(chosen))
	}

	var basis mat.Dense
	basis.Mul(reduce, selectColumns(eigenvectors, chosen))
	return &Projection{
		kind:        KindLPP,
		mean:        mean,
		basis:       selectColumns(&basis, identity(components)),
		eigenvalues: pick(eigenvalues, chosen),
	}, nil
}

// graph builds the symmetric heat-kernel weight matrix over the rows of y.
func (l LPP) graph(y *mat.Dense) *mat.SymDense {
	n, _ := y.Dims()
	sq := make([][]float64, n)
	for i := range n {
		sq[i] = make([]float64, n)
	}
	for i := range n {
		for j := i + 1; j < n; j++ {
			d := floats.Distance(y.RawRowView(i), y.RawRowView(j), 2)
			sq[i][j] = d * d
			sq[j][i] = d * d
		}
	}

	edges := make([][]bool, n)
	for i := range n {
		edges[i] = make([]bool, n)
	}
	if l.opts.GraphRadius > 0 {
		r2 := l.opts.GraphRadius * l.opts.GraphRadius
		for i := range n {
			for j := range n {
				if i != j && sq[i][j] <= r2 {
					edges[i][j] = true
				}
			}
		}
	} else {
		k := l.opts.GraphNeighbors
		if k <= 0 {
			k = DefaultGraphNeighbors
		}
		k = min(k, n-1)
		for i := range n {
			others := make([]int, 0, n-1)
			for j := range n {
				if j != i {
					others = append(others, j)
				}
			}
			sort.SliceStable(others, func(a, b int) bool {
				return sq[i][others[a]] < sq[i][others[b]]
			})
			for _, j := range others[:k] {
				edges[i][j] = true
				edges[j][i] = true
			}
		}
	}

	t := l.opts.HeatKernel
	if t <= 0 {
		var sum float64
		var count int
		for i := range n {
			for j := i + 1; j < n; j++ {
				if edges[i][j] {
					sum += sq[i][j]
					count++
				}
			}
		}
		if count > 0 {
			t = sum / float64(count)
		}
		if t <= 0 {
			t = 1
		}
	}

	w := mat.NewSymDense(n, nil)
	for i := range n {
		for j := i + 1; j < n; j++ {
			if edges[i][j] {
				w.SetSym(i, j, math.Exp(-sq[i][j]/t))
			}
		}
	}
	return w
}

// isConstant reports whether every entry of v is equal within tolerance of
// its magnitude.
func isConstant(v []float64) bool {
	scale := floats.Norm(v, math.Inf(1))
	if scale == 0 {
		return true
	}
	return floats.Max(v)-floats.Min(v) <= trivialTolerance*scale
}
