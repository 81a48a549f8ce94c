package recognizer

import (
	"context"

	"github.com/adalundhe/subspace/core/dataset"
)

// LabelReport is the holdout outcome for one label.
type LabelReport struct {
	Label    string  `json:"label"`
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

// Miss is one misclassified holdout sample.
type Miss struct {
	Index int    `json:"index"`
	Want  string `json:"want"`
	Got   string `json:"got"`
}

// Report summarizes classification accuracy over a labeled test set.
type Report struct {
	ModelID  string        `json:"model_id"`
	Total    int           `json:"total"`
	Correct  int           `json:"correct"`
	Accuracy float64       `json:"accuracy"`
	Labels   []LabelReport `json:"labels"`
	Misses   []Miss        `json:"misses,omitempty"`
}

// Evaluate classifies every vector in test with one snapshot of r's model and
// compares the result with the expected label. Labels are reported in
// first-seen order of test.
func Evaluate(ctx context.Context, r *Recognizer, test dataset.TrainingSet) (Report, error) {
	if err := test.Validate(); err != nil {
		return Report{}, classify("invalid test set", err)
	}
	m := r.Model()
	if m == nil {
		return Report{}, classify("evaluate", ErrNotTrained)
	}

	got, err := m.recognizeBatch(ctx, test.Vectors, r.logger)
	if err != nil {
		return Report{}, err
	}

	report := Report{ModelID: m.ID, Total: test.Len()}
	index := make(map[string]int)
	for i, want := range test.Labels {
		pos, ok := index[want]
		if !ok {
			pos = len(report.Labels)
			index[want] = pos
			report.Labels = append(report.Labels, LabelReport{Label: want})
		}
		report.Labels[pos].Total++
		if got[i] == want {
			report.Correct++
			report.Labels[pos].Correct++
			continue
		}
		report.Misses = append(report.Misses, Miss{Index: i, Want: want, Got: got[i]})
	}

	report.Accuracy = ratio(report.Correct, report.Total)
	for i := range report.Labels {
		report.Labels[i].Accuracy = ratio(report.Labels[i].Correct, report.Labels[i].Total)
	}
	return report, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
