// Package recognizer trains a subspace projection over labeled samples and
// classifies queries by weighted nearest-neighbor vote in that subspace.
//
// A Recognizer holds at most one fitted Model at a time. Models are
// immutable: Train and AddSample build a successor and swap it in
// atomically, so Recognize never blocks on or observes a partial update.
package recognizer

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	coreerrors "github.com/adalundhe/subspace/core/errors"
	"github.com/adalundhe/subspace/core/dataset"
	"github.com/adalundhe/subspace/core/knn"
	"github.com/adalundhe/subspace/core/metric"
	"github.com/adalundhe/subspace/core/subspace"
)

var (
	// ErrNotTrained indicates Recognize or AddSample ran before any
	// successful Train.
	ErrNotTrained = errors.New("recognizer has not been trained")

	// ErrInvalidSample indicates a vector or label that cannot join the
	// training set.
	ErrInvalidSample = errors.New("invalid sample")
)

// =============================================================================
// Model
// =============================================================================

// Model is one fitted projection plus its projected training entries.
type Model struct {
	ID        string
	Revision  int
	TrainedAt time.Time
	Config    Config

	projection *subspace.Projection
	entries    []knn.Entry
	cache      *lru.Cache[string, string]
}

// Projection returns the fitted subspace.
func (m *Model) Projection() *subspace.Projection { return m.projection }

// Len is the number of projected training entries.
func (m *Model) Len() int { return len(m.entries) }

// Entries returns a copy of the projected training entries in training order.
func (m *Model) Entries() []knn.Entry {
	out := make([]knn.Entry, len(m.entries))
	for i, e := range m.entries {
		out[i] = knn.Entry{Vector: append([]float64(nil), e.Vector...), Label: e.Label}
	}
	return out
}

// Classes returns the distinct labels in first-seen order.
func (m *Model) Classes() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range m.entries {
		if _, ok := seen[e.Label]; ok {
			continue
		}
		seen[e.Label] = struct{}{}
		out = append(out, e.Label)
	}
	return out
}

// Explain projects query and returns the full neighbor search result.
func (m *Model) Explain(query []float64) (knn.Result, error) {
	if err := checkFinite(query); err != nil {
		return knn.Result{}, err
	}
	projected, err := m.projection.Project(query)
	if err != nil {
		return knn.Result{}, err
	}
	return knn.Neighbors(m.entries, projected, m.Config.K, m.Config.Metric)
}

func (m *Model) recognize(query []float64, logger *slog.Logger) (string, error) {
	if err := checkFinite(query); err != nil {
		return "", err
	}

	var key string
	if m.cache != nil {
		key = cacheKey(query)
		if label, ok := m.cache.Get(key); ok {
			logger.Debug("recognize cache hit",
				slog.String("model_id", m.ID),
				slog.String("label", label))
			return label, nil
		}
	}

	projected, err := m.projection.Project(query)
	if err != nil {
		return "", err
	}
	label, err := knn.Classify(m.entries, projected, m.Config.K, m.Config.Metric)
	if err != nil {
		return "", err
	}

	if m.cache != nil {
		m.cache.Add(key, label)
	}
	return label, nil
}

// recognizeBatch classifies queries against m with at most Config.Workers
// goroutines.
func (m *Model) recognizeBatch(ctx context.Context, queries [][]float64, logger *slog.Logger) ([]string, error) {
	workers := m.Config.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	labels := make([]string, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, q := range queries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			label, err := m.recognize(q, logger)
			if err != nil {
				return fmt.Errorf("query %d: %w", i, err)
			}
			labels[i] = label
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, classify("recognize batch", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return labels, nil
}

// checkFinite rejects vectors with NaN or infinite components.
func checkFinite(v []float64) error {
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w: component %d is not finite", ErrInvalidSample, i)
		}
	}
	return nil
}

// successor returns a copy of m with one more entry and a fresh cache.
func (m *Model) successor(entry knn.Entry) (*Model, error) {
	next := &Model{
		ID:         m.ID,
		Revision:   m.Revision + 1,
		TrainedAt:  m.TrainedAt,
		Config:     m.Config,
		projection: m.projection,
		entries:    make([]knn.Entry, len(m.entries), len(m.entries)+1),
	}
	copy(next.entries, m.entries)
	next.entries = append(next.entries, entry)
	cache, err := newCache(m.Config.CacheSize)
	if err != nil {
		return nil, err
	}
	next.cache = cache
	return next, nil
}

func newCache(size int) (*lru.Cache[string, string], error) {
	if size <= 0 {
		return nil, nil
	}
	return lru.New[string, string](size)
}

// cacheKey encodes the exact bit pattern of query.
func cacheKey(query []float64) string {
	buf := make([]byte, 8*len(query))
	for i, v := range query {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return string(buf)
}

// =============================================================================
// Recognizer
// =============================================================================

// Recognizer trains Models and answers classification queries against the
// current one. It is safe for concurrent use.
type Recognizer struct {
	model  atomic.Pointer[Model]
	logger *slog.Logger

	// writeMu serializes Train and AddSample.
	writeMu sync.Mutex
}

// Option configures a Recognizer.
type Option func(*Recognizer)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recognizer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func New(opts ...Option) *Recognizer {
	r := &Recognizer{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Model returns the current model, or nil before the first successful Train.
func (r *Recognizer) Model() *Model {
	return r.model.Load()
}

// Train fits a new model from set under cfg and installs it. Configuration
// and data are validated before any computation. On failure the previous
// model, if any, stays in place.
func (r *Recognizer) Train(ctx context.Context, set dataset.TrainingSet, cfg Config) error {
	if err := set.Validate(); err != nil {
		return classify("invalid training set", err)
	}
	if err := cfg.Validate(set.Len()); err != nil {
		return classify("invalid configuration", err)
	}

	start := time.Now()
	r.logger.Info("training started",
		slog.String("algorithm", string(cfg.Algorithm)),
		slog.String("metric", cfg.Metric.Name()),
		slog.Int("samples", set.Len()),
		slog.Int("dim", set.Dim()),
		slog.Int("components", cfg.Components),
		slog.Int("k", cfg.K))

	alg, err := subspace.New(cfg.Algorithm, cfg.options())
	if err != nil {
		return classify("invalid configuration", err)
	}
	projection, err := alg.Fit(ctx, set.Matrix(), set.Labels, cfg.Components)
	if err != nil {
		r.logger.Warn("training failed",
			slog.String("algorithm", string(cfg.Algorithm)),
			slog.String("error", err.Error()))
		return classify("fit "+string(cfg.Algorithm), err)
	}
	projected, err := projection.ProjectAll(set.Vectors)
	if err != nil {
		return classify("project training set", err)
	}

	entries := make([]knn.Entry, len(projected))
	for i, y := range projected {
		entries[i] = knn.Entry{Vector: y, Label: set.Labels[i]}
	}
	cache, err := newCache(cfg.CacheSize)
	if err != nil {
		return classify("result cache", err)
	}

	model := &Model{
		ID:         uuid.New().String(),
		TrainedAt:  time.Now(),
		Config:     cfg,
		projection: projection,
		entries:    entries,
		cache:      cache,
	}

	r.writeMu.Lock()
	r.model.Store(model)
	r.writeMu.Unlock()

	r.logger.Info("training finished",
		slog.String("model_id", model.ID),
		slog.String("algorithm", string(cfg.Algorithm)),
		slog.Int("classes", len(model.Classes())),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Recognize returns the label of the nearest training samples to query.
func (r *Recognizer) Recognize(query []float64) (string, error) {
	m := r.model.Load()
	if m == nil {
		return "", classify("recognize", ErrNotTrained)
	}
	label, err := m.recognize(query, r.logger)
	if err != nil {
		return "", classify("recognize", err)
	}
	return label, nil
}

// RecognizeBatch classifies every query against one model snapshot and
// returns labels in query order. The first failure cancels the rest.
func (r *Recognizer) RecognizeBatch(ctx context.Context, queries [][]float64) ([]string, error) {
	m := r.model.Load()
	if m == nil {
		return nil, classify("recognize batch", ErrNotTrained)
	}

	return m.recognizeBatch(ctx, queries, r.logger)
}

// AddSample projects vector through the current basis and installs a model
// that also contains it. The mean and basis are not refit.
func (r *Recognizer) AddSample(vector []float64, label string) error {
	if label == "" {
		return classify("add sample", fmt.Errorf("%w: empty label", ErrInvalidSample))
	}
	if err := checkFinite(vector); err != nil {
		return classify("add sample", err)
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	m := r.model.Load()
	if m == nil {
		return classify("add sample", ErrNotTrained)
	}
	projected, err := m.projection.Project(vector)
	if err != nil {
		return classify("add sample", err)
	}
	next, err := m.successor(knn.Entry{Vector: projected, Label: label})
	if err != nil {
		return classify("add sample", err)
	}
	r.model.Store(next)

	r.logger.Debug("sample added",
		slog.String("model_id", next.ID),
		slog.Int("revision", next.Revision),
		slog.String("label", label))
	return nil
}

// =============================================================================
// Error classification
// =============================================================================

var tiers = newTierClassifier()

func newTierClassifier() *coreerrors.ErrorClassifier {
	c := coreerrors.NewErrorClassifier()
	c.Register(ErrNotTrained, coreerrors.TierUserFixable, "train a model before recognizing queries")
	c.Register(subspace.ErrInvalidComponentCount, coreerrors.TierUserFixable, "lower the component count to at most min(dim, samples-1) and the data rank")
	c.Register(knn.ErrInvalidNeighborCount, coreerrors.TierUserFixable, "k must be between 1 and the number of training samples")
	c.Register(subspace.ErrUnknownAlgorithm, coreerrors.TierUserFixable, "algorithm must be one of pca, lda, lpp")
	c.Register(metric.ErrUnknownMetric, coreerrors.TierUserFixable, "metric must be one of euclidean, manhattan, cosine")
	c.Register(subspace.ErrTooFewClasses, coreerrors.TierUserFixable, "lda needs samples from at least two labels")
	c.Register(ErrInvalidSample, coreerrors.TierPermanent, "vectors must contain finite numbers and samples need a label")
	c.Register(ErrInvalidConfig, coreerrors.TierUserFixable, "")
	c.Register(knn.ErrNilMetric, coreerrors.TierUserFixable, "")
	c.Register(knn.ErrNonFiniteQuery, coreerrors.TierPermanent, "")
	c.Register(subspace.ErrSingularScatterMatrix, coreerrors.TierNumerical, "set a positive regularization or reduce dimensionality before training")
	c.Register(subspace.ErrEigenFailed, coreerrors.TierNumerical, "")
	return c
}

// classify wraps err in a TieredError chosen from the sentinel it carries.
// Cancellation passes through untiered.
func classify(message string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", message, err)
	}
	return tiers.Wrap(message, err)
}
