package testjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSniff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"start event", `{"Time":"2024-01-01T00:00:00Z","Action":"start","Package":"example.com/pkg"}` + "\n", true},
		{"output event", `{"Action":"output","Package":"example.com/pkg","Output":"=== RUN TestFoo\n"}` + "\n", true},
		{"build output", `{"ImportPath":"example.com/pkg","Action":"build-output","Output":"# example.com/pkg\n"}`, true},
		{"leading whitespace", "  \n" + `{"Action":"pass","Package":"x"}`, true},
		{"only first line counts", `{"Action":"pass"}` + "\nnot json", true},
		{"empty", "", false},
		{"plain text", "ok  \texample.com/pkg\t0.01s", false},
		{"invalid json", "{invalid", false},
		{"unknown action", `{"Action":"compile"}`, false},
		{"sarif document", `{"version":"2.1.0","runs":[]}`, false},
		{"truncated first line", `{"Action":"pa`, false},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Sniff([]byte(tc.input)))
		})
	}
}
