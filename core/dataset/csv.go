package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// ErrMalformedRow indicates a CSV row that cannot be read as a sample.
var ErrMalformedRow = errors.New("malformed row")

// ReadCSV reads labeled samples, one per row: label first, then the vector
// components. A first row whose second field is not numeric is treated as a
// header and skipped. Lines starting with '#' are comments.
func ReadCSV(r io.Reader) (TrainingSet, error) {
	rows, err := readRows(r)
	if err != nil {
		return TrainingSet{}, err
	}

	var set TrainingSet
	for i, row := range rows {
		if len(row) < 2 {
			return TrainingSet{}, fmt.Errorf("%w: line %d has %d fields", ErrMalformedRow, i+1, len(row))
		}
		if i == 0 && !isNumeric(row[1]) {
			continue
		}
		vec, err := parseFloats(row[1:])
		if err != nil {
			return TrainingSet{}, fmt.Errorf("%w: line %d: %v", ErrMalformedRow, i+1, err)
		}
		set.Vectors = append(set.Vectors, vec)
		set.Labels = append(set.Labels, strings.TrimSpace(row[0]))
	}
	if err := set.Validate(); err != nil {
		return TrainingSet{}, err
	}
	return set, nil
}

// ReadVectorsCSV reads unlabeled query vectors, one per row.
func ReadVectorsCSV(r io.Reader) ([][]float64, error) {
	rows, err := readRows(r)
	if err != nil {
		return nil, err
	}

	var vectors [][]float64
	for i, row := range rows {
		if i == 0 && len(row) > 0 && !isNumeric(row[0]) {
			continue
		}
		vec, err := parseFloats(row)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRow, i+1, err)
		}
		for j, v := range vec {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: line %d component %d", ErrNonFinite, i+1, j+1)
			}
		}
		if len(vectors) > 0 && len(vec) != len(vectors[0]) {
			return nil, fmt.Errorf("%w: line %d has %d components, expected %d",
				ErrRaggedVectors, i+1, len(vec), len(vectors[0]))
		}
		vectors = append(vectors, vec)
	}
	if len(vectors) == 0 {
		return nil, ErrEmpty
	}
	return vectors, nil
}

// LoadCSV reads a labeled sample file from disk.
func LoadCSV(path string) (TrainingSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return TrainingSet{}, fmt.Errorf("open samples: %w", err)
	}
	defer f.Close()

	set, err := ReadCSV(f)
	if err != nil {
		return TrainingSet{}, fmt.Errorf("read %s: %w", path, err)
	}
	return set, nil
}

// LoadVectorsCSV reads an unlabeled query file from disk.
func LoadVectorsCSV(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open queries: %w", err)
	}
	defer f.Close()

	vectors, err := ReadVectorsCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return vectors, nil
}

func readRows(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRow, err)
	}
	return rows, nil
}

func parseFloats(fields []string) ([]float64, error) {
	vec := make([]float64, len(fields))
	for j, field := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", j+1, err)
		}
		vec[j] = v
	}
	return vec, nil
}

func isNumeric(field string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	return err == nil
}
