package build

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrDuplicateTask is returned when a project already has a task of that name.
	ErrDuplicateTask = errors.New("duplicate task")

	// ErrInvalidTaskName is returned for empty names and names containing the
	// path separator ':'.
	ErrInvalidTaskName = errors.New("invalid task name")
)

// Project owns tasks and named extensions.
type Project struct {
	build *Build
	name  string
	ext   *Extensions

	mu     sync.Mutex
	tasks  []*Task
	byName map[string]*Task
	hooks  []func(*Task)
}

func newProject(b *Build, name string) *Project {
	return &Project{
		build:  b,
		name:   name,
		ext:    newExtensions(),
		byName: make(map[string]*Task),
	}
}

// Name returns the project name.
func (p *Project) Name() string { return p.name }

// Path is ":" for the root build's project and the build identity path for
// included builds.
func (p *Project) Path() string {
	if id := p.build.IdentityPath(); id != "" {
		return id
	}
	return ":"
}

// Build returns the build the project belongs to.
func (p *Project) Build() *Build { return p.build }

// Extensions returns the project's extension registry.
func (p *Project) Extensions() *Extensions { return p.ext }

// AddTask registers a task. Callbacks registered with EachTask run for it
// before AddTask returns.
func (p *Project) AddTask(spec TaskSpec) (*Task, error) {
	if spec.Name == "" || strings.Contains(spec.Name, ":") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTaskName, spec.Name)
	}

	p.mu.Lock()
	if _, ok := p.byName[spec.Name]; ok {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateTask, p.build.IdentityPath()+":"+spec.Name)
	}
	t := newTask(p, spec)
	p.tasks = append(p.tasks, t)
	p.byName[spec.Name] = t
	hooks := append([]func(*Task){}, p.hooks...)
	p.mu.Unlock()

	for _, fn := range hooks {
		fn(t)
	}
	return t, nil
}

// Tasks returns the project's tasks in registration order.
func (p *Project) Tasks() []*Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Task(nil), p.tasks...)
}

// EachTask calls fn for every task already registered and for every task
// registered later. Each task is visited exactly once per call.
func (p *Project) EachTask(fn func(*Task)) {
	p.mu.Lock()
	existing := append([]*Task(nil), p.tasks...)
	p.hooks = append(p.hooks, fn)
	p.mu.Unlock()

	for _, t := range existing {
		fn(t)
	}
}
