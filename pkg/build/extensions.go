package build

import (
	"errors"
	"fmt"
	"sync"
)

// ErrExtensionExists is returned by Add when the name is taken.
var ErrExtensionExists = errors.New("extension already exists")

// Extensions is a name-keyed registry of values attached to a project.
// Values are stored untyped; consumers assert the capability they need.
type Extensions struct {
	mu     sync.Mutex
	byName map[string]any
}

func newExtensions() *Extensions {
	return &Extensions{byName: make(map[string]any)}
}

// FindByName returns the extension registered under name.
func (e *Extensions) FindByName(name string) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.byName[name]
	return v, ok
}

// Add registers v under name.
func (e *Extensions) Add(name string, v any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.byName[name]; ok {
		return fmt.Errorf("%w: %q", ErrExtensionExists, name)
	}
	e.byName[name] = v
	return nil
}

// FindOrCreate returns the extension registered under name, creating and
// registering it with create if absent. created is true only for the caller
// whose create result was stored.
func (e *Extensions) FindOrCreate(name string, create func() any) (v any, created bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v, ok := e.byName[name]; ok {
		return v, false
	}
	v = create()
	e.byName[name] = v
	return v, true
}
