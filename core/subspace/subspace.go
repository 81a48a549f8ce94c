// Package subspace fits linear projections that map fixed-length sample
// vectors into a compact discriminative subspace.
//
// Three algorithms share one Projection type:
//
//	PCA  variance-maximizing, top eigenvectors of the covariance matrix
//	LDA  class-separating, generalized eigenvectors of (Sb, Sw)
//	LPP  locality-preserving, generalized eigenvectors of a graph Laplacian
//
// Every fitted Projection maps v to basisᵀ·(v − mean) and is immutable.
package subspace

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrInvalidComponentCount indicates the requested subspace dimension is
	// below one or exceeds the rank the training data can support.
	ErrInvalidComponentCount = errors.New("invalid component count")

	// ErrSingularScatterMatrix indicates the scatter matrix on the right-hand
	// side of a generalized eigenproblem is not invertible.
	ErrSingularScatterMatrix = errors.New("singular scatter matrix")

	// ErrTooFewSamples indicates fewer than two training vectors.
	ErrTooFewSamples = errors.New("at least two training samples are required")

	// ErrTooFewClasses indicates class-separating fitting saw a single label.
	ErrTooFewClasses = errors.New("at least two classes are required")

	// ErrDimensionMismatch indicates inconsistent vector or label lengths.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrEigenFailed indicates the eigendecomposition did not converge.
	ErrEigenFailed = errors.New("eigendecomposition failed")

	// ErrUnknownAlgorithm indicates an algorithm name ParseKind does not recognize.
	ErrUnknownAlgorithm = errors.New("unknown subspace algorithm")
)

// =============================================================================
// Algorithm selection
// =============================================================================

// Kind names a subspace algorithm.
type Kind string

const (
	KindPCA Kind = "pca"
	KindLDA Kind = "lda"
	KindLPP Kind = "lpp"
)

// ParseKind maps a configuration name to a Kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "pca", "variance", "eigen":
		return KindPCA, nil
	case "lda", "fisher", "class":
		return KindLDA, nil
	case "lpp", "locality", "laplacian":
		return KindLPP, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
}

// Options tunes the algorithms that need more than a component count.
type Options struct {
	// Regularization is a ridge term added to the diagonal of the right-hand
	// scatter matrix (LDA within-class, LPP degree-weighted). Zero disables it.
	Regularization float64

	// GraphNeighbors is the k of the LPP k-nearest-neighbor graph.
	// Default: 5, capped at N-1.
	GraphNeighbors int

	// GraphRadius switches LPP to an ε-radius graph when positive.
	GraphRadius float64

	// HeatKernel is the LPP heat-kernel width t in exp(-d²/t).
	// Zero derives t from the mean squared edge length.
	HeatKernel float64
}

// DefaultGraphNeighbors is the LPP neighbor count when Options leaves it unset.
const DefaultGraphNeighbors = 5

// Algorithm fits a Projection from a training matrix whose rows are samples.
type Algorithm interface {
	Kind() Kind
	Fit(ctx context.Context, x *mat.Dense, labels []string, components int) (*Projection, error)
}

// New returns the Algorithm for kind.
func New(kind Kind, opts Options) (Algorithm, error) {
	if opts.Regularization < 0 {
		return nil, fmt.Errorf("regularization must be non-negative, got %g", opts.Regularization)
	}
	switch kind {
	case KindPCA:
		return PCA{}, nil
	case KindLDA:
		return LDA{opts: opts}, nil
	case KindLPP:
		return LPP{opts: opts}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, kind)
	}
}

// =============================================================================
// Projection
// =============================================================================

// Projection is a fitted mean vector and D×r basis.
type Projection struct {
	kind        Kind
	mean        []float64
	basis       *mat.Dense
	eigenvalues []float64
}

// NewProjection builds a Projection from an explicit mean and basis.
// Both are copied.
func NewProjection(kind Kind, mean []float64, basis mat.Matrix) (*Projection, error) {
	d, r := basis.Dims()
	if d != len(mean) {
		return nil, fmt.Errorf("%w: basis has %d rows, mean has %d", ErrDimensionMismatch, d, len(mean))
	}
	if r == 0 {
		return nil, fmt.Errorf("%w: empty basis", ErrInvalidComponentCount)
	}
	return &Projection{
		kind:  kind,
		mean:  append([]float64(nil), mean...),
		basis: mat.DenseCopyOf(basis),
	}, nil
}

func (p *Projection) Kind() Kind { return p.kind }

// Dim is the input dimension D.
func (p *Projection) Dim() int { return len(p.mean) }

// Components is the subspace dimension r.
func (p *Projection) Components() int {
	_, r := p.basis.Dims()
	return r
}

// Mean returns a copy of the training mean.
func (p *Projection) Mean() []float64 {
	return append([]float64(nil), p.mean...)
}

// Basis returns a copy of the D×r basis.
func (p *Projection) Basis() *mat.Dense {
	return mat.DenseCopyOf(p.basis)
}

// Eigenvalues returns the eigenvalues of the selected axes in basis order.
func (p *Projection) Eigenvalues() []float64 {
	return append([]float64(nil), p.eigenvalues...)
}

// Project maps v into the subspace: basisᵀ·(v − mean).
func (p *Projection) Project(v []float64) ([]float64, error) {
	if len(v) != len(p.mean) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), len(p.mean))
	}
	centered := make([]float64, len(v))
	for i, val := range v {
		centered[i] = val - p.mean[i]
	}
	out := mat.NewVecDense(p.Components(), nil)
	out.MulVec(p.basis.T(), mat.NewVecDense(len(centered), centered))
	return out.RawVector().Data, nil
}

// ProjectAll projects every row in order. Each row goes through Project so a
// projected training vector is bit-identical to a later Project of the same
// vector.
func (p *Projection) ProjectAll(vectors [][]float64) ([][]float64, error) {
	out := make([][]float64, len(vectors))
	for i, v := range vectors {
		y, err := p.Project(v)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = y
	}
	return out, nil
}

// Reconstruct maps a projected vector back to input space: mean + basis·y.
// The round trip through Project is lossy unless r == D.
func (p *Projection) Reconstruct(y []float64) ([]float64, error) {
	if len(y) != p.Components() {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(y), p.Components())
	}
	out := mat.NewVecDense(len(p.mean), nil)
	out.MulVec(p.basis, mat.NewVecDense(len(y), append([]float64(nil), y...)))
	data := out.RawVector().Data
	for i := range data {
		data[i] += p.mean[i]
	}
	return data, nil
}

// checkFitInput validates the shape of a training matrix and the requested
// component count against min(D, N-1).
func checkFitInput(x *mat.Dense, labels []string, components int) error {
	if x == nil || x.IsEmpty() {
		return ErrTooFewSamples
	}
	n, d := x.Dims()
	if n < 2 {
		return ErrTooFewSamples
	}
	if labels != nil && len(labels) != n {
		return fmt.Errorf("%w: %d samples, %d labels", ErrDimensionMismatch, n, len(labels))
	}
	if components < 1 || components > min(d, n-1) {
		return fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidComponentCount, components, min(d, n-1))
	}
	return nil
}
