// Package metric provides the pluggable distance functions used to compare
// vectors in a fitted subspace.
package metric

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/viterin/vek"
)

var (
	// ErrUnknownMetric indicates a metric name that Parse does not recognize.
	ErrUnknownMetric = errors.New("unknown distance metric")
)

// Metric computes a nonnegative, symmetric distance between two vectors of
// equal dimension. Callers are responsible for checking dimensions.
type Metric interface {
	Distance(a, b []float64) float64
	Name() string
}

const (
	NameEuclidean = "euclidean"
	NameManhattan = "manhattan"
	NameCosine    = "cosine"
)

// Euclidean is the root sum of squared differences.
type Euclidean struct{}

func (Euclidean) Name() string { return NameEuclidean }

func (Euclidean) Distance(a, b []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	return vek.Distance(a, b)
}

// Manhattan is the sum of absolute differences.
type Manhattan struct{}

func (Manhattan) Name() string { return NameManhattan }

func (Manhattan) Distance(a, b []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	return vek.ManhattanDistance(a, b)
}

// Cosine is 1 - cosine similarity, clamped to [0, 2]. Two zero vectors are at
// distance 0; a zero vector and a nonzero vector are at distance 1.
// Parallel vectors with different magnitudes are also at distance 0.
type Cosine struct{}

func (Cosine) Name() string { return NameCosine }

func (Cosine) Distance(a, b []float64) float64 {
	if slices.Equal(a, b) {
		return 0
	}
	normA := vek.Norm(a)
	normB := vek.Norm(b)
	if normA == 0 || normB == 0 {
		if normA == normB {
			return 0
		}
		return 1
	}
	d := 1 - vek.Dot(a, b)/(normA*normB)
	return math.Min(2, math.Max(0, d))
}

// Parse maps a configuration name to its Metric. Matching is case-insensitive.
func Parse(name string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NameEuclidean, "l2":
		return Euclidean{}, nil
	case NameManhattan, "l1":
		return Manhattan{}, nil
	case NameCosine:
		return Cosine{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, name)
	}
}

// Names lists the canonical metric names accepted by Parse.
func Names() []string {
	return []string{NameEuclidean, NameManhattan, NameCosine}
}
