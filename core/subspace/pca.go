package subspace

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PCA keeps the directions of largest variance.
type PCA struct{}

func (PCA) Kind() Kind { return KindPCA }

// Fit centers x and takes the top components eigenvectors of its covariance
// matrix. Labels are ignored.
func (PCA) Fit(ctx context.Context, x *mat.Dense, labels []string, components int) (*Projection, error) {
	if err := checkFitInput(x, labels, components); err != nil {
		return nil, err
	}
	mean := columnMeans(x)

	values, vectors, err := principalAxes(ctx, x, mean)
	if err != nil {
		return nil, err
	}
	if rank := numericRank(values); components > rank {
		return nil, fmt.Errorf("%w: %d exceeds covariance rank %d", ErrInvalidComponentCount, components, rank)
	}

	order := descending(values)[:components]
	return &Projection{
		kind:        KindPCA,
		mean:        mean,
		basis:       selectColumns(vectors, order),
		eigenvalues: pick(values, order),
	}, nil
}

// principalAxes returns the covariance eigenvalues (ascending) and matching
// eigenvector columns of x around mean. When D > N it decomposes the N×N Gram
// matrix Z·Zᵀ/(N−1) instead and lifts each eigenvector u to Zᵀ·u; the nonzero
// spectrum is identical. Lifted columns are not normalized.
func principalAxes(ctx context.Context, x *mat.Dense, mean []float64) ([]float64, *mat.Dense, error) {
	n, d := x.Dims()

	if d <= n {
		cov := mat.NewSymDense(d, nil)
		stat.CovarianceMatrix(cov, x, nil)
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		return symEigen(cov)
	}

	z := centered(x, mean)
	gram := mat.NewSymDense(n, nil)
	gram.SymOuterK(1/float64(n-1), z)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	values, u, err := symEigen(gram)
	if err != nil {
		return nil, nil, err
	}
	var lifted mat.Dense
	lifted.Mul(z.T(), u)
	return values, &lifted, nil
}
