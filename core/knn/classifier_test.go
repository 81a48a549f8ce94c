package knn

import (
	"math"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/adalundhe/subspace/core/metric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(points map[float64]string, order []float64) []Entry {
	entries := make([]Entry, len(order))
	for i, p := range order {
		entries[i] = Entry{Vector: []float64{p}, Label: points[p]}
	}
	return entries
}

func randomEntries(rng *rand.Rand, n, dim int, labels []string) []Entry {
	entries := make([]Entry, n)
	for i := range entries {
		v := make([]float64, dim)
		for j := range v {
			v[j] = rng.Float64()*10 - 5
		}
		entries[i] = Entry{Vector: v, Label: labels[rng.IntN(len(labels))]}
	}
	return entries
}

func TestClassify_K1MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	labels := []string{"a", "b", "c", "d"}

	for _, m := range []metric.Metric{metric.Euclidean{}, metric.Manhattan{}, metric.Cosine{}} {
		t.Run(m.Name(), func(t *testing.T) {
			entries := randomEntries(rng, 50, 4, labels)
			for range 100 {
				query := randomEntries(rng, 1, 4, labels)[0].Vector

				best := 0
				for i, e := range entries {
					if m.Distance(e.Vector, query) < m.Distance(entries[best].Vector, query) {
						best = i
					}
				}

				got, err := Classify(entries, query, 1, m)
				require.NoError(t, err)
				assert.Equal(t, entries[best].Label, got)
			}
		})
	}
}

func TestClassify_ExactMatchShortCircuits(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	entries := randomEntries(rng, 20, 3, []string{"a", "b"})
	entries[7].Label = "needle"

	for k := 1; k <= len(entries); k++ {
		res, err := Neighbors(entries, entries[7].Vector, k, metric.Euclidean{})
		require.NoError(t, err)
		assert.Equal(t, "needle", res.Label, "k=%d", k)
		assert.True(t, res.Exact)
		assert.Equal(t, 7, res.Neighbors[0].Index)
	}
}

func TestClassify_WeightedVote(t *testing.T) {
	// One close "near" outweighs two distant "far" entries.
	entries := line(map[float64]string{1: "near", 3: "far", -3: "far", 10: "far"}, []float64{10, 3, -3, 1})

	res, err := Neighbors(entries, []float64{0}, 3, metric.Euclidean{})
	require.NoError(t, err)
	assert.Equal(t, "near", res.Label)
	require.Len(t, res.Votes, 2)

	weights := map[string]float64{}
	for _, v := range res.Votes {
		weights[v.Label] = v.Weight
	}
	assert.InDelta(t, 1.0, weights["near"], 1e-12)
	assert.InDelta(t, 2.0/3.0, weights["far"], 1e-12)
}

func TestClassify_TieBreakFirstSeenLabel(t *testing.T) {
	points := map[float64]string{2: "x", -2: "y"}

	got, err := Classify(line(points, []float64{2, -2}), []float64{0}, 2, metric.Euclidean{})
	require.NoError(t, err)
	assert.Equal(t, "x", got)

	got, err = Classify(line(points, []float64{-2, 2}), []float64{0}, 2, metric.Euclidean{})
	require.NoError(t, err)
	assert.Equal(t, "y", got)
}

func TestNeighbors_ReplacesFirstFarthestSlot(t *testing.T) {
	points := map[float64]string{5: "p", -5: "q", 1: "r"}
	entries := line(points, []float64{5, -5, 1})

	res, err := Neighbors(entries, []float64{0}, 2, metric.Euclidean{})
	require.NoError(t, err)
	require.Len(t, res.Neighbors, 2)
	assert.Equal(t, 2, res.Neighbors[0].Index, "slot 0 held the first maximum")
	assert.Equal(t, 1, res.Neighbors[1].Index)
	assert.Equal(t, "r", res.Label)
}

func TestNeighbors_KeepsKNearest(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	entries := randomEntries(rng, 40, 2, []string{"a"})
	query := []float64{0.25, -0.5}

	res, err := Neighbors(entries, query, 5, metric.Euclidean{})
	require.NoError(t, err)

	chosen := map[int]bool{}
	maxChosen := 0.0
	for _, n := range res.Neighbors {
		chosen[n.Index] = true
		maxChosen = max(maxChosen, n.Distance)
	}
	for i, e := range entries {
		if !chosen[i] {
			assert.GreaterOrEqual(t, metric.Euclidean{}.Distance(e.Vector, query), maxChosen)
		}
	}
}

func TestNeighbors_Errors(t *testing.T) {
	entries := line(map[float64]string{1: "a", 2: "b"}, []float64{1, 2})

	_, err := Neighbors(entries, []float64{0}, 0, metric.Euclidean{})
	assert.ErrorIs(t, err, ErrInvalidNeighborCount)

	_, err = Neighbors(entries, []float64{0}, 3, metric.Euclidean{})
	assert.ErrorIs(t, err, ErrInvalidNeighborCount)

	_, err = Neighbors(nil, []float64{0}, 1, metric.Euclidean{})
	assert.ErrorIs(t, err, ErrEmptyTrainingSet)

	_, err = Neighbors(entries, []float64{0}, 1, nil)
	assert.ErrorIs(t, err, ErrNilMetric)

	_, err = Neighbors(entries, []float64{0, 0}, 1, metric.Euclidean{})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestNeighbors_NonFiniteQuery(t *testing.T) {
	entries := line(map[float64]string{1: "a", 2: "b"}, []float64{1, 2})

	for _, q := range [][]float64{{math.NaN()}, {math.Inf(1)}, {math.Inf(-1)}} {
		_, err := Neighbors(entries, q, 2, metric.Euclidean{})
		assert.ErrorIs(t, err, ErrNonFiniteQuery, "query %v", q)
	}
}

func TestNeighbors_CosineExactForParallelQuery(t *testing.T) {
	entries := []Entry{{Vector: []float64{1, 2}, Label: "a"}, {Vector: []float64{2, -1}, Label: "b"}}

	res, err := Neighbors(entries, []float64{3, 6}, 2, metric.Cosine{})
	require.NoError(t, err)
	assert.True(t, res.Exact)
	assert.Equal(t, "a", res.Label)
}

func TestClassify_ConcurrentQueriesShareEntries(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 8))
	entries := randomEntries(rng, 100, 3, []string{"a", "b", "c"})
	queries := make([][]float64, 64)
	want := make([]string, len(queries))
	for i := range queries {
		queries[i] = randomEntries(rng, 1, 3, []string{"q"})[0].Vector
		label, err := Classify(entries, queries[i], 7, metric.Euclidean{})
		require.NoError(t, err)
		want[i] = label
	}

	got := make([]string, len(queries))
	var wg sync.WaitGroup
	for i := range queries {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i], _ = Classify(entries, queries[i], 7, metric.Euclidean{})
		}(i)
	}
	wg.Wait()
	assert.Equal(t, want, got)
}
