// Package testjson reads go test -json NDJSON streams and replays them as
// build.TestListener events.
package testjson

import "time"

// Actions emitted by go test -json (see go doc test2json).
const (
	ActionStart  = "start"
	ActionRun    = "run"
	ActionPause  = "pause"
	ActionCont   = "cont"
	ActionPass   = "pass"
	ActionBench  = "bench"
	ActionFail   = "fail"
	ActionSkip   = "skip"
	ActionOutput = "output"

	// Emitted by go test -json since Go 1.24 for packages that fail to build.
	ActionBuildOutput = "build-output"
	ActionBuildFail   = "build-fail"
)

// TestEvent represents a single event from go test -json output.
type TestEvent struct {
	Time    time.Time `json:"Time"`
	Action  string    `json:"Action"`
	Package string    `json:"Package"`
	Test    string    `json:"Test"`
	Elapsed float64   `json:"Elapsed"`
	Output  string    `json:"Output"`

	// ImportPath is set instead of Package on build-output events.
	ImportPath string `json:"ImportPath,omitempty"`
}

// IsTerminal reports whether the event ends a test or a package.
func (e TestEvent) IsTerminal() bool {
	switch e.Action {
	case ActionPass, ActionFail, ActionSkip:
		return true
	default:
		return false
	}
}

// ProcessFunc receives each decoded event.
type ProcessFunc func(TestEvent)
