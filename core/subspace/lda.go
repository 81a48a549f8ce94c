package subspace

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LDA keeps the directions that maximize between-class scatter relative to
// within-class scatter.
type LDA struct {
	opts Options
}

func (LDA) Kind() Kind { return KindLDA }

// Fit solves Sb·v = λ·Sw·v and keeps the components eigenvectors with the
// largest λ. Sw is the pooled within-class scatter
// (1/N)·Σ_c Σ_{x∈c} (x−μ_c)(x−μ_c)ᵀ and Sb the class-size weighted scatter of
// the class means (1/N)·Σ_c n_c·(μ_c−μ)(μ_c−μ)ᵀ.
func (l LDA) Fit(ctx context.Context, x *mat.Dense, labels []string, components int) (*Projection, error) {
	if labels == nil {
		return nil, fmt.Errorf("%w: labels are required", ErrDimensionMismatch)
	}
	if err := checkFitInput(x, labels, components); err != nil {
		return nil, err
	}
	classes := groupByLabel(labels)
	if len(classes) < 2 {
		return nil, ErrTooFewClasses
	}

	n, d := x.Dims()
	mean := columnMeans(x)
	within, between := scatter(x, mean, classes)
	scale := 1 / float64(n)
	within.ScaleSym(scale, within)
	between.ScaleSym(scale, between)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if l.opts.Regularization > 0 {
		addRidge(within, l.opts.Regularization)
	} else {
		singular, err := isSingular(within)
		if err != nil {
			return nil, err
		}
		if singular {
			return nil, fmt.Errorf("%w: within-class scatter of %d samples in %d dimensions; configure regularization",
				ErrSingularScatterMatrix, n, d)
		}
	}

	values, vectors, err := generalizedEigen(between, within)
	if err != nil {
		return nil, err
	}

	order := descending(values)[:components]
	return &Projection{
		kind:        KindLDA,
		mean:        mean,
		basis:       selectColumns(vectors, order),
		eigenvalues: pick(values, order),
	}, nil
}

// class is one label and the row indices that carry it.
type class struct {
	label string
	rows  []int
}

// groupByLabel groups row indices by label in first-seen order.
func groupByLabel(labels []string) []class {
	index := make(map[string]int)
	var classes []class
	for i, label := range labels {
		k, ok := index[label]
		if !ok {
			k = len(classes)
			index[label] = k
			classes = append(classes, class{label: label})
		}
		classes[k].rows = append(classes[k].rows, i)
	}
	return classes
}

// scatter returns the unscaled within-class and between-class scatter
// matrices of x.
func scatter(x *mat.Dense, mean []float64, classes []class) (*mat.SymDense, *mat.SymDense) {
	n, d := x.Dims()
	deviations := mat.NewDense(n, d, nil)
	between := mat.NewSymDense(d, nil)
	classMean := make([]float64, d)

	for _, c := range classes {
		for j := range classMean {
			classMean[j] = 0
		}
		for _, i := range c.rows {
			floats.Add(classMean, x.RawRowView(i))
		}
		floats.Scale(1/float64(len(c.rows)), classMean)

		for _, i := range c.rows {
			floats.SubTo(deviations.RawRowView(i), x.RawRowView(i), classMean)
		}

		diff := make([]float64, d)
		floats.SubTo(diff, classMean, mean)
		between.SymRankOne(between, float64(len(c.rows)), mat.NewVecDense(d, diff))
	}

	within := mat.NewSymDense(d, nil)
	within.SymOuterK(1, deviations.T())
	return within, between
}
