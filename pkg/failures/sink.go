package failures

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/dkoosis/tally/pkg/build"
)

// Sink maps task paths to their failure batches. All methods are safe for
// concurrent use.
type Sink struct {
	w io.Writer

	mu       sync.Mutex
	failures map[string]Batch
}

var _ Recorder = (*Sink)(nil)

// NewSink returns an empty sink that reports to w, or os.Stderr when w is nil.
func NewSink(w io.Writer) *Sink {
	if w == nil {
		w = os.Stderr
	}
	return &Sink{w: w, failures: make(map[string]Batch)}
}

// AddFailures stores batch for taskPath, replacing any earlier batch.
func (s *Sink) AddFailures(taskPath string, batch Batch) {
	stored := append(Batch(nil), batch...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[taskPath] = stored
}

// IsEmpty reports whether no batch has been stored.
func (s *Sink) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.failures) == 0
}

// Len returns the number of tasks with failures.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.failures)
}

// ForEachOrdered calls fn for every task in ascending path order. The sink is
// locked for the whole traversal, so fn must not call back into it.
func (s *Sink) ForEachOrdered(fn func(taskPath string, batch Batch)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eachLocked(fn)
}

func (s *Sink) eachLocked(fn func(string, Batch)) {
	paths := make([]string, 0, len(s.failures))
	for p := range s.failures {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	for _, p := range paths {
		fn(p, s.failures[p])
	}
}

// BuildFinished prints the report to the sink's writer. It is registered on
// the root build by GetOrCreateSink.
func (s *Sink) BuildFinished(build.Result) {
	_ = WriteReport(s.w, s)
}

// WriteReport writes the consolidated failure report for s to w. An empty
// sink writes nothing.
func WriteReport(w io.Writer, s *Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.failures) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Found test failures in %d test %s\n", len(s.failures), taskNoun(len(s.failures)))
	s.eachLocked(func(taskPath string, batch Batch) {
		sb.WriteString("\n")
		sb.WriteString(taskPath)
		sb.WriteString("\n")
		for _, tc := range batch {
			fmt.Fprintf(&sb, "    %s > %s\n", tc.ClassName, tc.Name)
		}
	})

	_, err := io.WriteString(w, sb.String())
	return err
}

func taskNoun(n int) string {
	if n == 1 {
		return "task:"
	}
	return "tasks:"
}
