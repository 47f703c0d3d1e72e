// Package failures collects failing test cases from every test task of a
// build hierarchy and prints one consolidated report when the root build
// finishes.
//
// Apply is the entry point: it attaches a Collector to each test task of a
// project. Collectors submit their sorted failures to a single Sink that
// lives on the root build's root project under ExtensionName.
package failures

import (
	"cmp"
	"errors"
	"slices"
)

// ExtensionName is the well-known name of the sink in the root project's
// extension registry.
const ExtensionName = "testResults"

// ErrNotRecorder is returned when the registered extension does not provide
// AddFailures.
var ErrNotRecorder = errors.New("extension does not record test failures")

// TestCase identifies a failed case by its owning class (for Go tests, the
// package import path) and its name.
type TestCase struct {
	ClassName string
	Name      string
}

// Batch is a task's failures, sorted by class name and then case name.
type Batch []TestCase

// Recorder accepts one batch per task. It is the only capability a Collector
// needs from the shared sink.
type Recorder interface {
	AddFailures(taskPath string, batch Batch)
}

func compareCases(a, b TestCase) int {
	if c := cmp.Compare(a.ClassName, b.ClassName); c != 0 {
		return c
	}
	return cmp.Compare(a.Name, b.Name)
}

func sortBatch(b Batch) {
	slices.SortFunc(b, compareCases)
}
