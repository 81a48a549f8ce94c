package recognizer

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/adalundhe/subspace/core/errors"
	"github.com/adalundhe/subspace/core/dataset"
	"github.com/adalundhe/subspace/core/knn"
	"github.com/adalundhe/subspace/core/metric"
	"github.com/adalundhe/subspace/core/subspace"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func axis(dim, i int, v float64) []float64 {
	out := make([]float64, dim)
	out[i] = v
	return out
}

// threeClassSet is three labels with two 10-dimensional samples each,
// clustered around the first three unit axes.
func threeClassSet(t *testing.T) dataset.TrainingSet {
	t.Helper()
	a1 := axis(10, 0, 1)
	a2 := axis(10, 0, 1.1)
	a2[1] = 0.1
	b1 := axis(10, 1, 1)
	b2 := axis(10, 1, 1.1)
	b2[0] = 0.1
	c1 := axis(10, 2, 1)
	c2 := axis(10, 2, 1.1)
	c2[1] = 0.1
	set, err := dataset.New(
		[][]float64{a1, a2, b1, b2, c1, c2},
		[]string{"A", "A", "B", "B", "C", "C"},
	)
	require.NoError(t, err)
	return set
}

func pcaConfig() Config {
	cfg := DefaultConfig()
	cfg.Components = 2
	cfg.K = 3
	return cfg
}

func trained(t *testing.T, cfg Config) (*Recognizer, dataset.TrainingSet) {
	t.Helper()
	set := threeClassSet(t)
	r := New(WithLogger(quietLogger()))
	require.NoError(t, r.Train(context.Background(), set, cfg))
	return r, set
}

func TestRecognize_TrainingSampleReturnsItsLabel(t *testing.T) {
	r, set := trained(t, pcaConfig())

	label, err := r.Recognize(set.Vectors[3])
	require.NoError(t, err)
	assert.Equal(t, "B", label)
}

func TestRecognize_ExactMatchRegardlessOfK(t *testing.T) {
	for k := 1; k <= 6; k++ {
		cfg := pcaConfig()
		cfg.K = k
		r, set := trained(t, cfg)
		for i, v := range set.Vectors {
			label, err := r.Recognize(v)
			require.NoError(t, err)
			assert.Equal(t, set.Labels[i], label, "k=%d sample=%d", k, i)
		}
	}
}

func TestRecognize_NearbyQuery(t *testing.T) {
	lda := pcaConfig()
	lda.Algorithm = subspace.KindLDA
	lda.Regularization = 0.1

	for _, cfg := range []Config{pcaConfig(), lda} {
		t.Run(string(cfg.Algorithm), func(t *testing.T) {
			r, _ := trained(t, cfg)
			query := axis(10, 1, 1.05)
			query[0] = 0.05
			label, err := r.Recognize(query)
			require.NoError(t, err)
			assert.Equal(t, "B", label)
		})
	}
}

func TestRecognize_NotTrained(t *testing.T) {
	r := New(WithLogger(quietLogger()))

	_, err := r.Recognize(make([]float64, 10))
	require.ErrorIs(t, err, ErrNotTrained)
	assert.Equal(t, coreerrors.TierUserFixable, coreerrors.GetTier(err))
	assert.NotEmpty(t, coreerrors.GetHint(err))
	assert.Nil(t, r.Model())
}

func TestRecognize_DimensionMismatch(t *testing.T) {
	r, _ := trained(t, pcaConfig())

	_, err := r.Recognize([]float64{1, 2, 3})
	assert.ErrorIs(t, err, subspace.ErrDimensionMismatch)
}

func TestRecognize_NonFiniteQuery(t *testing.T) {
	cfg := pcaConfig()
	cfg.CacheSize = 4
	r, _ := trained(t, cfg)

	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		q := axis(10, 1, 1)
		q[4] = bad
		label, err := r.Recognize(q)
		require.ErrorIs(t, err, ErrInvalidSample, "component %v", bad)
		assert.Empty(t, label)
		assert.Equal(t, coreerrors.TierPermanent, coreerrors.GetTier(err))

		_, err = r.Model().Explain(q)
		assert.ErrorIs(t, err, ErrInvalidSample)
	}
	assert.Equal(t, 0, r.Model().cache.Len())

	q := axis(10, 1, 1)
	q[0] = math.NaN()
	_, err := r.RecognizeBatch(context.Background(), [][]float64{axis(10, 0, 1), q})
	assert.ErrorIs(t, err, ErrInvalidSample)
}

func TestTrain_LDASingularWithoutRegularization(t *testing.T) {
	cfg := pcaConfig()
	cfg.Algorithm = subspace.KindLDA
	r := New(WithLogger(quietLogger()))

	err := r.Train(context.Background(), threeClassSet(t), cfg)
	require.ErrorIs(t, err, subspace.ErrSingularScatterMatrix)
	assert.Equal(t, coreerrors.TierNumerical, coreerrors.GetTier(err))
	assert.Nil(t, r.Model())
}

func TestTrain_FailureKeepsPreviousModel(t *testing.T) {
	r, set := trained(t, pcaConfig())
	before := r.Model()
	require.NotNil(t, before)

	cfg := pcaConfig()
	cfg.Algorithm = subspace.KindLDA
	require.Error(t, r.Train(context.Background(), set, cfg))
	assert.Same(t, before, r.Model())

	label, err := r.Recognize(set.Vectors[0])
	require.NoError(t, err)
	assert.Equal(t, "A", label)
}

func TestTrain_ProjectedEntriesMatchProject(t *testing.T) {
	r, set := trained(t, pcaConfig())
	m := r.Model()

	entries := m.Entries()
	require.Len(t, entries, set.Len())
	for i, v := range set.Vectors {
		y, err := m.Projection().Project(v)
		require.NoError(t, err)
		assert.Equal(t, y, entries[i].Vector, "sample %d", i)
		assert.Equal(t, set.Labels[i], entries[i].Label)
	}
	assert.Equal(t, []string{"A", "B", "C"}, m.Classes())
	assert.NotEmpty(t, m.ID)
	assert.False(t, m.TrainedAt.IsZero())
}

func TestTrain_NewModelPerRun(t *testing.T) {
	r, set := trained(t, pcaConfig())
	first := r.Model().ID

	require.NoError(t, r.Train(context.Background(), set, pcaConfig()))
	assert.NotEqual(t, first, r.Model().ID)
}

func TestTrain_ConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"zero components", func(c *Config) { c.Components = 0 }, subspace.ErrInvalidComponentCount},
		{"components above rank", func(c *Config) { c.Components = 6 }, subspace.ErrInvalidComponentCount},
		{"zero k", func(c *Config) { c.K = 0 }, knn.ErrInvalidNeighborCount},
		{"k above samples", func(c *Config) { c.K = 7 }, knn.ErrInvalidNeighborCount},
		{"nil metric", func(c *Config) { c.Metric = nil }, knn.ErrNilMetric},
		{"unknown algorithm", func(c *Config) { c.Algorithm = "ica" }, subspace.ErrUnknownAlgorithm},
		{"negative ridge", func(c *Config) { c.Regularization = -1 }, ErrInvalidConfig},
		{"negative cache", func(c *Config) { c.CacheSize = -1 }, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := pcaConfig()
			tt.mutate(&cfg)
			r := New(WithLogger(quietLogger()))

			err := r.Train(context.Background(), threeClassSet(t), cfg)
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, coreerrors.TierUserFixable, coreerrors.GetTier(err))
			assert.Nil(t, r.Model())
		})
	}
}

func TestTrain_InvalidTrainingSet(t *testing.T) {
	r := New(WithLogger(quietLogger()))
	set := dataset.TrainingSet{
		Vectors: [][]float64{{1, 2}, {3}},
		Labels:  []string{"a", "b"},
	}

	err := r.Train(context.Background(), set, pcaConfig())
	require.ErrorIs(t, err, dataset.ErrRaggedVectors)
	assert.Equal(t, coreerrors.TierPermanent, coreerrors.GetTier(err))
}

func TestTrain_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(WithLogger(quietLogger()))
	err := r.Train(ctx, threeClassSet(t), pcaConfig())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, r.Model())
}

func TestRecognize_CachesResults(t *testing.T) {
	cfg := pcaConfig()
	cfg.CacheSize = 4
	r, set := trained(t, cfg)
	m := r.Model()
	require.NotNil(t, m.cache)

	for range 3 {
		label, err := r.Recognize(set.Vectors[4])
		require.NoError(t, err)
		assert.Equal(t, "C", label)
	}
	assert.Equal(t, 1, m.cache.Len())

	cfg.CacheSize = 0
	r, _ = trained(t, cfg)
	assert.Nil(t, r.Model().cache)
}

func TestCacheKey_DistinguishesBits(t *testing.T) {
	assert.Equal(t, cacheKey([]float64{1, 2}), cacheKey([]float64{1, 2}))
	assert.NotEqual(t, cacheKey([]float64{1, 2}), cacheKey([]float64{2, 1}))
	assert.NotEqual(t, cacheKey([]float64{0}), cacheKey([]float64{math.Copysign(0, -1)}))
}

func TestRecognizeBatch(t *testing.T) {
	cfg := pcaConfig()
	cfg.Workers = 2
	r, set := trained(t, cfg)

	labels, err := r.RecognizeBatch(context.Background(), set.Vectors)
	require.NoError(t, err)
	assert.Equal(t, set.Labels, labels)

	_, err = r.RecognizeBatch(context.Background(), [][]float64{set.Vectors[0], {1}})
	assert.ErrorIs(t, err, subspace.ErrDimensionMismatch)
}

func TestRecognizeBatch_Canceled(t *testing.T) {
	r, set := trained(t, pcaConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.RecognizeBatch(ctx, set.Vectors)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecognizeBatch_NotTrained(t *testing.T) {
	_, err := New().RecognizeBatch(context.Background(), [][]float64{{1}})
	assert.ErrorIs(t, err, ErrNotTrained)
}

func TestAddSample(t *testing.T) {
	cfg := pcaConfig()
	cfg.K = 1
	r, set := trained(t, cfg)
	before := r.Model()

	sample := axis(10, 5, 4)
	require.NoError(t, r.AddSample(sample, "D"))

	after := r.Model()
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, before.Revision+1, after.Revision)
	assert.Equal(t, set.Len(), before.Len())
	assert.Equal(t, set.Len()+1, after.Len())
	assert.Equal(t, before.Projection().Mean(), after.Projection().Mean())

	label, err := r.Recognize(sample)
	require.NoError(t, err)
	assert.Equal(t, "D", label)
}

func TestAddSample_Errors(t *testing.T) {
	err := New().AddSample([]float64{1}, "x")
	assert.ErrorIs(t, err, ErrNotTrained)

	r, _ := trained(t, pcaConfig())
	assert.ErrorIs(t, r.AddSample([]float64{1, 2}, "x"), subspace.ErrDimensionMismatch)
	assert.ErrorIs(t, r.AddSample(make([]float64, 10), ""), ErrInvalidSample)
	bad := make([]float64, 10)
	bad[2] = math.Inf(1)
	assert.ErrorIs(t, r.AddSample(bad, "x"), ErrInvalidSample)
	assert.Equal(t, 0, r.Model().Revision)
}

func TestRecognizer_ConcurrentRecognizeAndAdd(t *testing.T) {
	r, set := trained(t, pcaConfig())

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 20 {
				v := set.Vectors[(i+j)%set.Len()]
				if _, err := r.Recognize(v); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	for i := range 5 {
		require.NoError(t, r.AddSample(axis(10, 6, float64(i+2)), "E"))
	}
	wg.Wait()

	assert.Equal(t, 5, r.Model().Revision)
	assert.Equal(t, set.Len()+5, r.Model().Len())
}

func TestExplain(t *testing.T) {
	r, set := trained(t, pcaConfig())

	res, err := r.Model().Explain(set.Vectors[1])
	require.NoError(t, err)
	assert.True(t, res.Exact)
	assert.Equal(t, "A", res.Label)
}

func TestConfigFromSettings(t *testing.T) {
	cfg, err := ConfigFromSettings(configSettings("LDA", "manhattan"))
	require.NoError(t, err)
	assert.Equal(t, subspace.KindLDA, cfg.Algorithm)
	assert.Equal(t, metric.NameManhattan, cfg.Metric.Name())
	assert.Equal(t, 2, cfg.Components)
	assert.Equal(t, 3, cfg.K)
	assert.Equal(t, 5, cfg.GraphNeighbors)

	_, err = ConfigFromSettings(configSettings("pca", "chebyshev"))
	require.ErrorIs(t, err, metric.ErrUnknownMetric)
	assert.Equal(t, coreerrors.TierUserFixable, coreerrors.GetTier(err))

	_, err = ConfigFromSettings(configSettings("ica", "euclidean"))
	assert.ErrorIs(t, err, subspace.ErrUnknownAlgorithm)
}

func TestConfigValidate(t *testing.T) {
	cfg := pcaConfig()
	assert.NoError(t, cfg.Validate(0))
	assert.NoError(t, cfg.Validate(3))
	assert.ErrorIs(t, cfg.Validate(2), knn.ErrInvalidNeighborCount)

	cfg.GraphRadius = -1
	assert.ErrorIs(t, cfg.Validate(0), ErrInvalidConfig)
}
