package recognizer

import (
	"errors"
	"fmt"

	"github.com/adalundhe/subspace/core/config"
	"github.com/adalundhe/subspace/core/knn"
	"github.com/adalundhe/subspace/core/metric"
	"github.com/adalundhe/subspace/core/subspace"
)

// ErrInvalidConfig indicates a configuration value outside its domain.
var ErrInvalidConfig = errors.New("invalid recognizer configuration")

// Config selects the subspace algorithm, distance metric and neighbor
// count for one training run.
type Config struct {
	Algorithm  subspace.Kind
	Metric     metric.Metric
	Components int
	K          int

	// Regularization is the ridge added to the right-hand scatter matrix.
	Regularization float64

	GraphNeighbors int
	GraphRadius    float64
	HeatKernel     float64

	// CacheSize bounds the per-model result cache. Zero disables caching.
	CacheSize int

	// Workers bounds RecognizeBatch concurrency. Zero means GOMAXPROCS.
	Workers int
}

// DefaultConfig returns PCA with two components, Euclidean distance and k=3.
func DefaultConfig() Config {
	return Config{
		Algorithm:      subspace.KindPCA,
		Metric:         metric.Euclidean{},
		Components:     2,
		K:              3,
		GraphNeighbors: subspace.DefaultGraphNeighbors,
		CacheSize:      1024,
	}
}

// ConfigFromSettings resolves the names in a loaded settings block.
func ConfigFromSettings(s config.RecognizerConfig) (Config, error) {
	kind, err := subspace.ParseKind(s.Algorithm)
	if err != nil {
		return Config{}, classify("recognizer settings", err)
	}
	m, err := metric.Parse(s.Metric)
	if err != nil {
		return Config{}, classify("recognizer settings", err)
	}
	return Config{
		Algorithm:      kind,
		Metric:         m,
		Components:     s.Components,
		K:              s.K,
		Regularization: s.Regularization,
		GraphNeighbors: s.Graph.Neighbors,
		GraphRadius:    s.Graph.Radius,
		HeatKernel:     s.Graph.HeatKernel,
		CacheSize:      s.CacheSize,
		Workers:        s.Workers,
	}, nil
}

// Validate checks c against a training set of n samples. Pass n <= 0 to
// skip the checks that depend on the set size. Rank limits on Components
// are checked during fitting.
func (c Config) Validate(n int) error {
	if _, err := subspace.ParseKind(string(c.Algorithm)); err != nil {
		return err
	}
	if c.Metric == nil {
		return knn.ErrNilMetric
	}
	if c.Components < 1 {
		return fmt.Errorf("%w: %d", subspace.ErrInvalidComponentCount, c.Components)
	}
	if c.K < 1 {
		return fmt.Errorf("%w: k=%d", knn.ErrInvalidNeighborCount, c.K)
	}
	if n > 0 && c.K > n {
		return fmt.Errorf("%w: k=%d exceeds %d training samples", knn.ErrInvalidNeighborCount, c.K, n)
	}
	switch {
	case c.Regularization < 0:
		return fmt.Errorf("%w: regularization %g < 0", ErrInvalidConfig, c.Regularization)
	case c.GraphNeighbors < 0:
		return fmt.Errorf("%w: graph neighbors %d < 0", ErrInvalidConfig, c.GraphNeighbors)
	case c.GraphRadius < 0:
		return fmt.Errorf("%w: graph radius %g < 0", ErrInvalidConfig, c.GraphRadius)
	case c.HeatKernel < 0:
		return fmt.Errorf("%w: heat kernel %g < 0", ErrInvalidConfig, c.HeatKernel)
	case c.CacheSize < 0:
		return fmt.Errorf("%w: cache size %d < 0", ErrInvalidConfig, c.CacheSize)
	case c.Workers < 0:
		return fmt.Errorf("%w: workers %d < 0", ErrInvalidConfig, c.Workers)
	}
	return nil
}

func (c Config) options() subspace.Options {
	return subspace.Options{
		Regularization: c.Regularization,
		GraphNeighbors: c.GraphNeighbors,
		GraphRadius:    c.GraphRadius,
		HeatKernel:     c.HeatKernel,
	}
}
