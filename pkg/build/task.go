package build

import (
	"io"
	"sync"
)

// TaskSpec describes how a test task produces its go test -json stream.
type TaskSpec struct {
	Name    string
	Command []string
	Dir     string
	Env     map[string]string

	// Open, when set, replaces Command: the stream is read from the returned
	// reader instead of a child process.
	Open func() (io.ReadCloser, error)
}

// Task is one test-execution task of a project.
type Task struct {
	project *Project
	spec    TaskSpec
	path    string

	mu        sync.Mutex
	listeners []TestListener
}

func newTask(p *Project, spec TaskSpec) *Task {
	spec.Command = append([]string(nil), spec.Command...)
	return &Task{
		project: p,
		spec:    spec,
		path:    p.build.IdentityPath() + ":" + spec.Name,
	}
}

// Name returns the task name.
func (t *Task) Name() string { return t.spec.Name }

// Path returns the task's hierarchy-unique path, e.g. ":unit" or ":lib:unit".
func (t *Task) Path() string { return t.path }

// Project returns the owning project.
func (t *Task) Project() *Project { return t.project }

// Spec returns the task specification.
func (t *Task) Spec() TaskSpec { return t.spec }

// AddTestListener attaches l to the task's test events.
func (t *Task) AddTestListener(l TestListener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
}

// Listener returns a listener that forwards every event to the attached
// listeners in attachment order. Listeners attached afterwards are not seen.
func (t *Task) Listener() TestListener {
	t.mu.Lock()
	defer t.mu.Unlock()
	return broadcast(append([]TestListener(nil), t.listeners...))
}
