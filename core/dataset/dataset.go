// Package dataset holds labeled sample vectors and the loaders and stores
// that supply them to training.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrEmpty              = errors.New("training set is empty")
	ErrLabelCountMismatch = errors.New("vector and label counts differ")
	ErrRaggedVectors      = errors.New("vectors have different dimensions")
	ErrNonFinite          = errors.New("vector contains NaN or Inf")
	ErrInvalidHoldout     = errors.New("holdout fraction must be in (0, 1)")
)

// TrainingSet is an ordered sequence of (vector, label) pairs. All vectors
// share one dimension.
type TrainingSet struct {
	Vectors [][]float64
	Labels  []string
}

// New copies vectors and labels into a validated TrainingSet.
func New(vectors [][]float64, labels []string) (TrainingSet, error) {
	set := TrainingSet{
		Vectors: make([][]float64, len(vectors)),
		Labels:  append([]string(nil), labels...),
	}
	for i, v := range vectors {
		set.Vectors[i] = append([]float64(nil), v...)
	}
	if err := set.Validate(); err != nil {
		return TrainingSet{}, err
	}
	return set, nil
}

// Validate checks the set invariants: non-empty, parallel labels, one
// dimension, finite values.
func (s TrainingSet) Validate() error {
	if len(s.Vectors) == 0 {
		return ErrEmpty
	}
	if len(s.Vectors) != len(s.Labels) {
		return fmt.Errorf("%w: %d vectors, %d labels", ErrLabelCountMismatch, len(s.Vectors), len(s.Labels))
	}
	dim := len(s.Vectors[0])
	if dim == 0 {
		return fmt.Errorf("%w: vector 0 is empty", ErrRaggedVectors)
	}
	for i, v := range s.Vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has %d components, expected %d", ErrRaggedVectors, i, len(v), dim)
		}
		for j, val := range v {
			if math.IsNaN(val) || math.IsInf(val, 0) {
				return fmt.Errorf("%w: vector %d component %d", ErrNonFinite, i, j)
			}
		}
	}
	return nil
}

func (s TrainingSet) Len() int { return len(s.Vectors) }

// Dim is the shared vector dimension, or 0 for an empty set.
func (s TrainingSet) Dim() int {
	if len(s.Vectors) == 0 {
		return 0
	}
	return len(s.Vectors[0])
}

// Classes returns the distinct labels in first-seen order.
func (s TrainingSet) Classes() []string {
	seen := make(map[string]struct{})
	var classes []string
	for _, label := range s.Labels {
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		classes = append(classes, label)
	}
	return classes
}

// Counts returns the number of samples per label.
func (s TrainingSet) Counts() map[string]int {
	counts := make(map[string]int)
	for _, label := range s.Labels {
		counts[label]++
	}
	return counts
}

// Matrix returns the vectors as an N×D matrix, one sample per row.
func (s TrainingSet) Matrix() *mat.Dense {
	n, d := s.Len(), s.Dim()
	data := make([]float64, 0, n*d)
	for _, v := range s.Vectors {
		data = append(data, v...)
	}
	return mat.NewDense(n, d, data)
}

// Split partitions the set into train and test sets. Each label contributes
// round(holdout·count) samples to test, keeping at least one sample of every
// label in train. Selection is a seeded shuffle, so equal seeds give equal
// splits. Both halves keep the original relative order.
func (s TrainingSet) Split(holdout float64, seed uint64) (TrainingSet, TrainingSet, error) {
	if holdout <= 0 || holdout >= 1 {
		return TrainingSet{}, TrainingSet{}, fmt.Errorf("%w: got %g", ErrInvalidHoldout, holdout)
	}
	if err := s.Validate(); err != nil {
		return TrainingSet{}, TrainingSet{}, err
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	byLabel := make(map[string][]int)
	for i, label := range s.Labels {
		byLabel[label] = append(byLabel[label], i)
	}

	inTest := make([]bool, s.Len())
	for _, label := range s.Classes() {
		rows := byLabel[label]
		take := int(math.Round(holdout * float64(len(rows))))
		take = min(take, len(rows)-1)
		rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
		for _, i := range rows[:take] {
			inTest[i] = true
		}
	}

	var train, test TrainingSet
	for i := range s.Vectors {
		if inTest[i] {
			test.Vectors = append(test.Vectors, s.Vectors[i])
			test.Labels = append(test.Labels, s.Labels[i])
		} else {
			train.Vectors = append(train.Vectors, s.Vectors[i])
			train.Labels = append(train.Labels, s.Labels[i])
		}
	}
	return train, test, nil
}
