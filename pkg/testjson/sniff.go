package testjson

import (
	"bytes"
	"encoding/json"
)

var knownActions = map[string]bool{
	ActionStart: true, ActionRun: true, ActionPause: true, ActionCont: true,
	ActionPass: true, ActionBench: true, ActionFail: true, ActionOutput: true,
	ActionSkip: true, ActionBuildOutput: true, ActionBuildFail: true,
}

// Sniff reports whether data, the first bytes of a stream, looks like
// go test -json output. Only the first non-blank line is examined, and it
// must be complete.
func Sniff(data []byte) bool {
	data = bytes.TrimLeft(data, " \t\r\n")
	if len(data) == 0 || data[0] != '{' {
		return false
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		data = data[:i]
	}

	var probe struct {
		Action string `json:"Action"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	return knownActions[probe.Action]
}
