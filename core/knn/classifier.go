// Package knn assigns labels by distance-weighted K-nearest-neighbor vote over
// a projected training set.
//
// Classification keeps all per-query state (distances, candidates, votes) in
// call-local slices, so a single []Entry can be shared by any number of
// concurrent queries.
package knn

import (
	"errors"
	"fmt"
	"math"

	"github.com/adalundhe/subspace/core/metric"
)

var (
	// ErrInvalidNeighborCount indicates k < 1 or k larger than the training set.
	ErrInvalidNeighborCount = errors.New("invalid neighbor count")

	// ErrEmptyTrainingSet indicates there are no entries to compare against.
	ErrEmptyTrainingSet = errors.New("empty training set")

	// ErrDimensionMismatch indicates the query and an entry differ in length.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrNilMetric indicates no distance metric was supplied.
	ErrNilMetric = errors.New("nil distance metric")

	// ErrNonFiniteQuery indicates a query component is NaN or infinite.
	ErrNonFiniteQuery = errors.New("query contains NaN or Inf")
)

// Entry is one projected training vector and its label.
type Entry struct {
	Vector []float64
	Label  string
}

// Neighbor is a candidate chosen for one query.
type Neighbor struct {
	Index    int
	Label    string
	Distance float64
}

// Vote is the summed 1/distance weight of one label.
type Vote struct {
	Label  string
	Weight float64
}

// Result is the full outcome of one classification.
type Result struct {
	Label string

	// Exact is set when an entry matched the query at distance zero. The scan
	// stops there and Neighbors holds only that entry.
	Exact bool

	// Neighbors are the final candidates in candidate-slot order.
	Neighbors []Neighbor

	// Votes are per-label weights in first-seen order over Neighbors.
	Votes []Vote
}

// Classify returns the label of query by weighted vote among its k nearest
// entries.
func Classify(entries []Entry, query []float64, k int, m metric.Metric) (string, error) {
	res, err := Neighbors(entries, query, k, m)
	if err != nil {
		return "", err
	}
	return res.Label, nil
}

// Neighbors runs the single-pass search and vote and returns the details.
//
// The first k entries seed the candidate slots. Each later entry replaces the
// first slot holding the current maximum distance when it is strictly closer.
// An entry at distance zero ends the scan with its label. Otherwise each
// candidate adds 1/distance to its label and the heaviest label wins; equal
// weights resolve to the label seen first in slot order.
//
// Exact reports distance zero under m, not equal vectors: under Cosine a
// query parallel to an entry is at distance zero whatever its length.
func Neighbors(entries []Entry, query []float64, k int, m metric.Metric) (Result, error) {
	if m == nil {
		return Result{}, ErrNilMetric
	}
	if len(entries) == 0 {
		return Result{}, ErrEmptyTrainingSet
	}
	if k < 1 || k > len(entries) {
		return Result{}, fmt.Errorf("%w: k=%d with %d training entries", ErrInvalidNeighborCount, k, len(entries))
	}
	for j, v := range query {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Result{}, fmt.Errorf("%w: component %d", ErrNonFiniteQuery, j)
		}
	}

	candidates := make([]Neighbor, k)
	for i, e := range entries {
		if len(e.Vector) != len(query) {
			return Result{}, fmt.Errorf("%w: entry %d has %d components, query has %d",
				ErrDimensionMismatch, i, len(e.Vector), len(query))
		}
		d := m.Distance(e.Vector, query)
		if d == 0 {
			return exactMatch(i, e), nil
		}

		if i < k {
			candidates[i] = Neighbor{Index: i, Label: e.Label, Distance: d}
			continue
		}
		worst := farthest(candidates)
		if d < candidates[worst].Distance {
			candidates[worst] = Neighbor{Index: i, Label: e.Label, Distance: d}
		}
	}

	votes := tally(candidates)
	return Result{
		Label:     winner(votes),
		Neighbors: candidates,
		Votes:     votes,
	}, nil
}

func exactMatch(i int, e Entry) Result {
	return Result{
		Label:     e.Label,
		Exact:     true,
		Neighbors: []Neighbor{{Index: i, Label: e.Label}},
	}
}

// farthest returns the first slot holding the maximum distance.
func farthest(candidates []Neighbor) int {
	worst := 0
	for j := 1; j < len(candidates); j++ {
		if candidates[j].Distance > candidates[worst].Distance {
			worst = j
		}
	}
	return worst
}

// tally sums 1/distance per label in first-seen order.
func tally(candidates []Neighbor) []Vote {
	var votes []Vote
	index := make(map[string]int, len(candidates))
	for _, c := range candidates {
		w := 1 / c.Distance
		if k, ok := index[c.Label]; ok {
			votes[k].Weight += w
			continue
		}
		index[c.Label] = len(votes)
		votes = append(votes, Vote{Label: c.Label, Weight: w})
	}
	return votes
}

// winner returns the first label reaching the maximum weight.
func winner(votes []Vote) string {
	best := 0
	for j := 1; j < len(votes); j++ {
		if votes[j].Weight > votes[best].Weight {
			best = j
		}
	}
	return votes[best].Label
}
