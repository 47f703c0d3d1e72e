package failures

import (
	"fmt"

	"github.com/dkoosis/tally/pkg/build"
)

// Apply attaches a Collector to every test task of project, including tasks
// added after the call. All collectors of a build hierarchy share one sink.
func Apply(project *build.Project) error {
	recorder, err := GetOrCreateSink(project)
	if err != nil {
		return err
	}
	project.EachTask(func(t *build.Task) {
		t.AddTestListener(NewCollector(t.Path(), recorder))
	})
	return nil
}

// GetOrCreateSink returns the recorder registered on the root project of the
// outermost build containing project. The first call for a hierarchy creates
// a Sink and registers its report on the root build's finished hook; later
// calls return the same value.
//
// The registered value is resolved by capability, so any extension with an
// AddFailures method is accepted.
func GetOrCreateSink(project *build.Project) (Recorder, error) {
	root := rootBuild(project.Build())
	ext := root.RootProject().Extensions()

	v, created := ext.FindOrCreate(ExtensionName, func() any {
		return NewSink(root.Stderr())
	})
	if created {
		root.BuildFinished(v.(*Sink).BuildFinished)
	}

	recorder, ok := v.(Recorder)
	if !ok {
		return nil, fmt.Errorf("resolving %q on %s: %w (got %T)", ExtensionName, root.Name(), ErrNotRecorder, v)
	}
	return recorder, nil
}

// FindSink returns the Sink of b's hierarchy if one has been created.
func FindSink(b *build.Build) (*Sink, bool) {
	v, ok := rootBuild(b).RootProject().Extensions().FindByName(ExtensionName)
	if !ok {
		return nil, false
	}
	s, ok := v.(*Sink)
	return s, ok
}

func rootBuild(b *build.Build) *build.Build {
	if b.Parent() == nil {
		return b
	}
	return rootBuild(b.Parent())
}
