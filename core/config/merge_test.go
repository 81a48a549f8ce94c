package config

import (
	"reflect"
	"testing"
)

func TestDeepMergeStructs(t *testing.T) {
	type Inner struct {
		Value int
		Name  string
	}
	type Outer struct {
		Inner Inner
		Count int
	}

	dst := &Outer{Inner: Inner{Value: 1, Name: "original"}, Count: 10}
	src := &Outer{Inner: Inner{Value: 2}, Count: 0}

	DeepMerge(dst, src)

	if dst.Inner.Value != 2 {
		t.Errorf("Inner.Value: got %d, want 2", dst.Inner.Value)
	}
	if dst.Inner.Name != "original" {
		t.Errorf("Inner.Name: got %s, want original", dst.Inner.Name)
	}
	if dst.Count != 10 {
		t.Errorf("Count: got %d, want 10 (zero value shouldn't override)", dst.Count)
	}
}

func TestDeepMergeSlices(t *testing.T) {
	type S struct {
		Items []string
	}

	dst := &S{Items: []string{"a", "b"}}
	DeepMerge(dst, &S{Items: []string{}})
	if len(dst.Items) != 2 {
		t.Errorf("Items length: got %d, want 2 (empty slice shouldn't overwrite)", len(dst.Items))
	}

	DeepMerge(dst, &S{Items: []string{"x", "y", "z"}})
	if len(dst.Items) != 3 || dst.Items[0] != "x" {
		t.Errorf("Items: got %v, want [x y z]", dst.Items)
	}
}

func TestDeepMergeMismatchedTypes(t *testing.T) {
	type A struct{ N int }
	type B struct{ N int }

	dst := &A{N: 1}
	DeepMerge(dst, &B{N: 2})
	if dst.N != 1 {
		t.Errorf("N: got %d, want 1", dst.N)
	}

	DeepMerge(dst, A{N: 3})
	if dst.N != 1 {
		t.Errorf("non-pointer src should be ignored: got %d", dst.N)
	}
}

func TestDeepMergeConfig(t *testing.T) {
	dst := DefaultConfig()
	src := &Config{
		Recognizer: RecognizerConfig{
			Algorithm:      "lda",
			K:              5,
			Regularization: 0.01,
		},
	}

	DeepMerge(dst, src)

	if dst.Recognizer.Algorithm != "lda" {
		t.Errorf("Algorithm: got %s, want lda", dst.Recognizer.Algorithm)
	}
	if dst.Recognizer.K != 5 {
		t.Errorf("K: got %d, want 5", dst.Recognizer.K)
	}
	if dst.Recognizer.Regularization != 0.01 {
		t.Errorf("Regularization: got %v, want 0.01", dst.Recognizer.Regularization)
	}
	if dst.Recognizer.Metric != "euclidean" {
		t.Errorf("Metric should retain default: got %s", dst.Recognizer.Metric)
	}
	if dst.Recognizer.Graph.Neighbors != 5 {
		t.Errorf("Graph.Neighbors should retain default: got %d", dst.Recognizer.Graph.Neighbors)
	}
	if dst.Dataset.Seed != 1 {
		t.Errorf("Seed should retain default: got %d", dst.Dataset.Seed)
	}
}

func TestIsZeroValue(t *testing.T) {
	tests := []struct {
		name string
		val  any
		want bool
	}{
		{"empty string", "", true},
		{"non-empty string", "hello", false},
		{"zero int", 0, true},
		{"non-zero int", 5, false},
		{"zero uint", uint64(0), true},
		{"non-zero uint", uint64(7), false},
		{"zero float", 0.0, true},
		{"non-zero float", 1.5, false},
		{"false bool", false, true},
		{"true bool", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isZeroValue(reflect.ValueOf(tt.val)); got != tt.want {
				t.Errorf("isZeroValue(%v) = %v, want %v", tt.val, got, tt.want)
			}
		})
	}
}
