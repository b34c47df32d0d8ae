// Package testutil provides shared test infrastructure for the flowsim engine.
// It consolidates float assertions and testdata helpers used across the
// sim/ sub-package tests.
package testutil

import (
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// AssertFloat64SliceEqual compares two slices element-wise with relative tolerance.
func AssertFloat64SliceEqual(t *testing.T, name string, want, got []float64, relTol float64) {
	t.Helper()
	if len(want) != len(got) {
		t.Errorf("%s: got %d values %v, want %d values %v", name, len(got), got, len(want), want)
		return
	}
	for i := range want {
		AssertFloat64Equal(t, name, want[i], got[i], relTol)
	}
}

// Testdata returns the path of a file in the repository's testdata directory.
// The path is resolved relative to this source file: sim/internal/testutil/ → testdata/.
func Testdata(t *testing.T, name string) string {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", name)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Failed to find testdata file %s: %v", name, err)
	}
	return path
}
