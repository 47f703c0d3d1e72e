// Package runner executes the test tasks of a build hierarchy concurrently,
// feeds each task's go test -json stream to the task's listeners, and
// finishes the hierarchy once every task is done.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dkoosis/tally/pkg/build"
)

// Status represents the lifecycle state of a task.
type Status int

const (
	// Pending indicates the task has not started yet.
	Pending Status = iota
	// Running indicates the task is currently executing.
	Running
	// Success indicates the task exited zero with no failing tests.
	Success
	// Failed indicates the task failed to start, exited non-zero, or had
	// failing tests.
	Failed
	// Cancelled indicates the run was cancelled before the task finished.
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Success:
		return "success"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// EventType distinguishes emitted runner events.
type EventType int

const (
	EventTaskStarted EventType = iota
	EventTaskCompleted
)

// Event captures task lifecycle milestones.
type Event struct {
	Type     EventType
	TaskPath string
	When     time.Time
}

// TaskResult is the execution outcome of a task.
type TaskResult struct {
	Path       string
	Status     Status
	ExitCode   int
	Duration   time.Duration
	Tests      build.TestResult
	Malformed  int
	OutputTail []string
	Err        error
}

// RunResult aggregates all task results for a run.
type RunResult struct {
	BuildID    string
	StartedAt  time.Time
	FinishedAt time.Time
	Tasks      map[string]TaskResult
}

// Failed returns the paths of failed tasks in ascending order.
func (r RunResult) Failed() []string {
	var paths []string
	for path, res := range r.Tasks {
		if res.Status == Failed {
			paths = append(paths, path)
		}
	}
	slices.Sort(paths)
	return paths
}

// Totals sums the test counts of every task.
func (r RunResult) Totals() build.TestResult {
	var total build.TestResult
	for _, res := range r.Tasks {
		total.Add(res.Tests)
	}
	return total
}

// TasksFailedError collapses multiple task failures into one error value.
type TasksFailedError struct {
	Paths []string
}

func (e *TasksFailedError) Error() string {
	return fmt.Sprintf("%d task(s) failed: %s", len(e.Paths), strings.Join(e.Paths, ", "))
}

// Option configures a Runner.
type Option func(*config)

// WithStdout overrides the writer for status lines.
func WithStdout(w io.Writer) Option {
	return func(cfg *config) { cfg.stdout = w }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) { cfg.logger = l }
}

// WithParallel bounds the number of tasks running at once. n <= 0 means
// runtime.NumCPU().
func WithParallel(n int) Option {
	return func(cfg *config) { cfg.parallel = n }
}

// WithColor forces styled output on or off. nil means auto-detect from stdout.
func WithColor(force *bool) Option {
	return func(cfg *config) { cfg.forceColor = force }
}

// WithEcho copies every non-event output line to stdout, prefixed with the
// task path.
func WithEcho(echo bool) Option {
	return func(cfg *config) { cfg.echo = echo }
}

// WithMaxTailLines sets how many of a task's last output lines are kept and
// printed under it when it fails without a failing test. n <= 0 means the
// default of 20.
func WithMaxTailLines(n int) Option {
	return func(cfg *config) { cfg.maxTail = n }
}

// WithOnEvent registers a callback for emitted events.
func WithOnEvent(fn func(Event)) Option {
	return func(cfg *config) { cfg.onEvent = fn }
}

const defaultTailLines = 20

type config struct {
	stdout     io.Writer
	logger     *slog.Logger
	parallel   int
	forceColor *bool
	echo       bool
	maxTail    int
	onEvent    func(Event)
}

func defaultConfig() config {
	return config{
		stdout:  os.Stdout,
		logger:  slog.New(slog.DiscardHandler),
		maxTail: defaultTailLines,
	}
}

// Runner executes build hierarchies.
type Runner struct {
	cfg   config
	theme Theme

	writerMu sync.Mutex
}

// New constructs a runner.
func New(opts ...Option) *Runner {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.parallel <= 0 {
		cfg.parallel = runtime.NumCPU()
	}
	if cfg.maxTail <= 0 {
		cfg.maxTail = defaultTailLines
	}
	r := &Runner{cfg: cfg}
	r.theme = r.selectTheme()
	return r
}

// Run executes every task of root and its included builds, then finishes the
// included builds (children before parents) and finally root. Tasks that fail
// do not stop the others. The returned error is a *TasksFailedError when any
// task failed, or the context error when the run was cancelled.
func (r *Runner) Run(ctx context.Context, root *build.Build) (RunResult, error) {
	var tasks []*build.Task
	root.Walk(func(b *build.Build) {
		tasks = append(tasks, b.RootProject().Tasks()...)
	})

	log := r.cfg.logger.With("build.id", root.ID(), "build", root.Name())
	log.Debug("run starting", "tasks", len(tasks), "parallel", r.cfg.parallel)

	result := RunResult{BuildID: root.ID(), StartedAt: time.Now(), Tasks: make(map[string]TaskResult, len(tasks))}
	width := pathWidth(tasks)

	var resultMu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, r.cfg.parallel)

	for _, task := range tasks {
		t := task
		wg.Add(1)
		go func() {
			defer wg.Done()

			var res TaskResult
			select {
			case sem <- struct{}{}:
				res = r.runTask(ctx, t, log)
				<-sem
			case <-ctx.Done():
				res = TaskResult{Path: t.Path(), Status: Cancelled, Err: ctx.Err()}
			}

			resultMu.Lock()
			result.Tasks[t.Path()] = res
			resultMu.Unlock()

			r.printTask(res, width)
		}()
	}

	wg.Wait()
	result.FinishedAt = time.Now()
	r.printSummary(result)

	var runErr error
	if failed := result.Failed(); len(failed) > 0 {
		runErr = &TasksFailedError{Paths: failed}
	}
	if ctx.Err() != nil {
		runErr = ctx.Err()
	}

	finish(root, build.Result{Failure: runErr})
	log.Debug("run finished", "duration", result.FinishedAt.Sub(result.StartedAt), "failed", len(result.Failed()))
	return result, runErr
}

// finish fires the build-finished hooks of b's hierarchy, deepest builds first.
func finish(b *build.Build, res build.Result) {
	for _, child := range b.Included() {
		finish(child, res)
	}
	b.Finish(res)
}

func (r *Runner) emit(evt Event) {
	if r.cfg.onEvent != nil {
		r.cfg.onEvent(evt)
	}
}
