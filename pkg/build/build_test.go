package build

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_Hierarchy(t *testing.T) {
	t.Parallel()

	root := New("app")
	lib := root.Include("lib")
	util := lib.Include("util")

	assert.Nil(t, root.Parent())
	assert.Same(t, root, lib.Parent())
	assert.Same(t, lib, util.Parent())

	assert.Equal(t, "", root.IdentityPath())
	assert.Equal(t, ":lib", lib.IdentityPath())
	assert.Equal(t, ":lib:util", util.IdentityPath())

	assert.Equal(t, ":", root.RootProject().Path())
	assert.Equal(t, ":lib:util", util.RootProject().Path())
	assert.NotEqual(t, root.ID(), lib.ID())

	var visited []string
	root.Walk(func(b *Build) { visited = append(visited, b.Name()) })
	assert.Equal(t, []string{"app", "lib", "util"}, visited)
}

func TestBuild_IncludedBuildsShareStderr(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	root := New("app", WithStderr(&buf))
	assert.Same(t, &buf, root.Include("lib").Stderr())
}

func TestBuild_FinishRunsHooksOnce(t *testing.T) {
	t.Parallel()

	b := New("app")
	var calls []string
	b.BuildFinished(func(Result) { calls = append(calls, "first") })
	b.BuildFinished(func(Result) { calls = append(calls, "second") })

	assert.True(t, b.Finish(Result{}))
	assert.False(t, b.Finish(Result{}))
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestProject_TaskPaths(t *testing.T) {
	t.Parallel()

	root := New("app")
	unit, err := root.RootProject().AddTask(TaskSpec{Name: "unit"})
	require.NoError(t, err)
	nested, err := root.Include("lib").RootProject().AddTask(TaskSpec{Name: "unit"})
	require.NoError(t, err)

	assert.Equal(t, ":unit", unit.Path())
	assert.Equal(t, ":lib:unit", nested.Path())
}

func TestProject_AddTaskRejectsDuplicates(t *testing.T) {
	t.Parallel()

	p := New("app").RootProject()
	_, err := p.AddTask(TaskSpec{Name: "unit"})
	require.NoError(t, err)

	_, err = p.AddTask(TaskSpec{Name: "unit"})
	require.ErrorIs(t, err, ErrDuplicateTask)
	assert.Len(t, p.Tasks(), 1)
}

func TestProject_AddTaskRejectsInvalidNames(t *testing.T) {
	t.Parallel()

	p := New("app").RootProject()
	for _, name := range []string{"", "lib:unit", ":unit"} {
		_, err := p.AddTask(TaskSpec{Name: name})
		assert.ErrorIs(t, err, ErrInvalidTaskName, "name %q", name)
	}
	assert.Empty(t, p.Tasks())
}

func TestProject_EachTaskSeesExistingAndLaterTasks(t *testing.T) {
	t.Parallel()

	p := New("app").RootProject()
	_, err := p.AddTask(TaskSpec{Name: "before"})
	require.NoError(t, err)

	var seen []string
	p.EachTask(func(task *Task) { seen = append(seen, task.Name()) })

	_, err = p.AddTask(TaskSpec{Name: "after"})
	require.NoError(t, err)

	assert.Equal(t, []string{"before", "after"}, seen)
}

func TestExtensions_FindOrCreateIsAtomic(t *testing.T) {
	t.Parallel()

	ext := New("app").RootProject().Extensions()

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	values := make(map[any]struct{})
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, ok := ext.FindOrCreate("results", func() any { return new(int) })
			mu.Lock()
			defer mu.Unlock()
			if ok {
				created++
			}
			values[v] = struct{}{}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, values, 1)
}

func TestExtensions_AddRejectsDuplicates(t *testing.T) {
	t.Parallel()

	ext := New("app").RootProject().Extensions()
	require.NoError(t, ext.Add("results", 1))
	require.ErrorIs(t, ext.Add("results", 2), ErrExtensionExists)

	v, ok := ext.FindByName("results")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = ext.FindByName("missing")
	assert.False(t, ok)
}

type recordingListener struct {
	events []string
}

func (r *recordingListener) BeforeSuite(s *TestDescriptor) { r.events = append(r.events, "beforeSuite:"+s.Name) }
func (r *recordingListener) AfterSuite(s *TestDescriptor, _ TestResult) {
	r.events = append(r.events, "afterSuite:"+s.Name)
}
func (r *recordingListener) BeforeTest(d *TestDescriptor) { r.events = append(r.events, "beforeTest:"+d.Name) }
func (r *recordingListener) AfterTest(d *TestDescriptor, _ TestResult) {
	r.events = append(r.events, "afterTest:"+d.Name)
}

func TestTask_ListenerBroadcastsInAttachmentOrder(t *testing.T) {
	t.Parallel()

	task, err := New("app").RootProject().AddTask(TaskSpec{Name: "unit"})
	require.NoError(t, err)

	first, second := &recordingListener{}, &recordingListener{}
	task.AddTestListener(first)
	task.AddTestListener(second)

	l := task.Listener()
	suite := &TestDescriptor{Name: "root"}
	test := &TestDescriptor{Name: "TestA", ClassName: "pkg", Parent: suite}
	l.BeforeSuite(suite)
	l.BeforeTest(test)
	l.AfterTest(test, TestResult{Type: Success, TestCount: 1, SuccessfulTestCount: 1})
	l.AfterSuite(suite, TestResult{})

	want := []string{"beforeSuite:root", "beforeTest:TestA", "afterTest:TestA", "afterSuite:root"}
	assert.Equal(t, want, first.events)
	assert.Equal(t, want, second.events)
	assert.True(t, suite.IsComposite())
	assert.False(t, test.IsComposite())
}

func TestTestResult_Add(t *testing.T) {
	t.Parallel()

	var total TestResult
	total.Add(TestResult{Type: Success, TestCount: 2, SuccessfulTestCount: 2})
	assert.Equal(t, Success, total.Type)

	total.Add(TestResult{Type: Failure, TestCount: 1, FailedTestCount: 1})
	total.Add(TestResult{Type: Skipped, TestCount: 1, SkippedTestCount: 1})

	assert.Equal(t, Failure, total.Type)
	assert.Equal(t, 4, total.TestCount)
	assert.Equal(t, 2, total.SuccessfulTestCount)
	assert.Equal(t, 1, total.FailedTestCount)
	assert.Equal(t, 1, total.SkippedTestCount)
	assert.Equal(t, "FAILURE", total.Type.String())
}
