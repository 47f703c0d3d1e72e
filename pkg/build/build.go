// Package build models one tally invocation: a root build, the builds it
// includes, their root projects, and the test tasks those projects own.
//
// A Build is the unit that "finishes": hooks registered with BuildFinished run
// once, when the runner calls Finish after every task of the hierarchy has
// completed.
package build

import (
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
)

// Result is handed to build-finished hooks.
type Result struct {
	// Failure is non-nil when at least one task of the build failed.
	Failure error
}

// Build is a node in a build hierarchy.
type Build struct {
	id     string
	name   string
	parent *Build
	stderr io.Writer
	root   *Project

	mu       sync.Mutex
	included []*Build
	finished []func(Result)
	done     bool
}

// Option configures a root Build.
type Option func(*Build)

// WithStderr sets the error stream shared by the whole hierarchy.
func WithStderr(w io.Writer) Option {
	return func(b *Build) { b.stderr = w }
}

// New creates a root build whose root project is named name.
func New(name string, opts ...Option) *Build {
	b := &Build{id: uuid.NewString(), name: name, stderr: os.Stderr}
	for _, opt := range opts {
		opt(b)
	}
	b.root = newProject(b, name)
	return b
}

// Include adds a child build to b and returns it.
func (b *Build) Include(name string) *Build {
	child := &Build{id: uuid.NewString(), name: name, parent: b, stderr: b.stderr}
	child.root = newProject(child, name)

	b.mu.Lock()
	b.included = append(b.included, child)
	b.mu.Unlock()
	return child
}

// ID returns the invocation-unique identifier of the build.
func (b *Build) ID() string { return b.id }

// Name returns the build name.
func (b *Build) Name() string { return b.name }

// Parent returns the including build, or nil for the root build.
func (b *Build) Parent() *Build { return b.parent }

// RootProject returns the project that owns the build's tasks and extensions.
func (b *Build) RootProject() *Project { return b.root }

// Stderr returns the error stream for build-level output.
func (b *Build) Stderr() io.Writer { return b.stderr }

// Included returns the direct child builds in inclusion order.
func (b *Build) Included() []*Build {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Build(nil), b.included...)
}

// IdentityPath is "" for the root build and ":<name>" appended to the
// parent's identity path for included builds.
func (b *Build) IdentityPath() string {
	if b.parent == nil {
		return ""
	}
	return b.parent.IdentityPath() + ":" + b.name
}

// Walk calls fn for b and every build it includes, depth first, parents
// before children.
func (b *Build) Walk(fn func(*Build)) {
	fn(b)
	for _, child := range b.Included() {
		child.Walk(fn)
	}
}

// BuildFinished registers fn to run when the build finishes. Hooks registered
// after Finish never run.
func (b *Build) BuildFinished(fn func(Result)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.finished = append(b.finished, fn)
}

// Finish runs the build-finished hooks in registration order. Only the first
// call has any effect; it reports whether hooks ran.
func (b *Build) Finish(r Result) bool {
	b.mu.Lock()
	if b.done {
		b.mu.Unlock()
		return false
	}
	b.done = true
	hooks := append([]func(Result){}, b.finished...)
	b.mu.Unlock()

	for _, fn := range hooks {
		fn(r)
	}
	return true
}
