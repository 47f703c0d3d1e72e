package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/dkoosis/tally/pkg/build"
	"github.com/dkoosis/tally/pkg/testjson"
)

var errNoCommand = errors.New("task has no command")

// waitDelay is how long a cancelled task's output may keep flowing after its
// process group has been killed.
const waitDelay = 2 * time.Second

func (r *Runner) runTask(ctx context.Context, task *build.Task, log *slog.Logger) TaskResult {
	start := time.Now()
	res := TaskResult{Path: task.Path(), Status: Running}
	log = log.With("task", task.Path())
	r.emit(Event{Type: EventTaskStarted, TaskPath: task.Path(), When: start})
	log.Debug("task started")

	driver := testjson.NewDriver(task.Path(), task.Listener())
	tail := newTailBuffer(r.cfg.maxTail)

	handle := func(e testjson.TestEvent) {
		driver.Handle(e)
		if e.Action == testjson.ActionBuildOutput || (e.Action == testjson.ActionOutput && e.Test == "") {
			line := strings.TrimRight(e.Output, "\n")
			tail.add(line)
			r.echo(task, line)
		}
	}
	raw := func(line string) {
		tail.add(line)
		r.echo(task, line)
	}

	var streamErr, waitErr error
	spec := task.Spec()
	if spec.Open != nil {
		res.Malformed, streamErr = r.streamFile(ctx, spec, handle, raw)
	} else {
		res.Malformed, streamErr, waitErr = r.streamCommand(ctx, spec, handle, raw)
	}

	res.OutputTail = tail.lines()
	res.Duration = time.Since(start)

	switch {
	case ctx.Err() != nil:
		// The root suite stays open so no partial failures are submitted.
		res.Status = Cancelled
		res.Err = ctx.Err()
		res.Tests = driver.Result()
	case streamErr != nil:
		res.Status = Failed
		res.Err = streamErr
		res.Tests = driver.Finish()
	default:
		res.Tests = driver.Finish()
		res.Status = Success
		if waitErr != nil {
			var exitErr *exec.ExitError
			if errors.As(waitErr, &exitErr) {
				res.ExitCode = exitCode(exitErr)
			}
			res.Status = Failed
			res.Err = waitErr
		}
		if res.Tests.Type == build.Failure {
			res.Status = Failed
		}
	}

	r.emit(Event{Type: EventTaskCompleted, TaskPath: task.Path(), When: time.Now()})
	log.Debug("task finished",
		"status", res.Status.String(),
		"exit_code", res.ExitCode,
		"duration", res.Duration,
		"tests", res.Tests.TestCount,
		"failed", res.Tests.FailedTestCount,
		"malformed", res.Malformed,
	)
	return res
}

func (r *Runner) streamFile(ctx context.Context, spec build.TaskSpec, handle testjson.ProcessFunc, raw func(string)) (int, error) {
	rc, err := spec.Open()
	if err != nil {
		return 0, fmt.Errorf("opening input: %w", err)
	}
	defer func() { _ = rc.Close() }()
	return testjson.StreamLines(ctx, rc, handle, raw)
}

// streamCommand runs the task's command with stdout and stderr merged into
// one stream, as go test interleaves build errors with its JSON events.
func (r *Runner) streamCommand(ctx context.Context, spec build.TaskSpec, handle testjson.ProcessFunc, raw func(string)) (malformed int, streamErr, waitErr error) {
	if len(spec.Command) == 0 || spec.Command[0] == "" {
		return 0, errNoCommand, nil
	}

	cmd := exec.CommandContext(ctx, spec.Command[0], spec.Command[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = mergeEnv(os.Environ(), spec.Env)
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	// Bounds Wait when a process outside the group still holds the output pipe.
	cmd.WaitDelay = waitDelay

	pipeReader, pipeWriter := io.Pipe()
	cmd.Stdout = pipeWriter
	cmd.Stderr = pipeWriter

	if err := cmd.Start(); err != nil {
		_ = pipeWriter.Close()
		_ = pipeReader.Close()
		return 0, err, nil
	}

	type streamOutcome struct {
		malformed int
		err       error
	}
	done := make(chan streamOutcome, 1)
	go func() {
		n, err := testjson.StreamLines(ctx, pipeReader, handle, raw)
		// Unblocks the command's writes if the stream stopped early.
		_ = pipeReader.Close()
		done <- streamOutcome{n, err}
	}()

	waitErr = cmd.Wait()
	_ = pipeWriter.Close()
	out := <-done

	if errors.Is(out.err, context.Canceled) || errors.Is(out.err, context.DeadlineExceeded) {
		out.err = nil
	}
	return out.malformed, out.err, waitErr
}

func (r *Runner) echo(task *build.Task, line string) {
	if !r.cfg.echo {
		return
	}
	r.writerMu.Lock()
	defer r.writerMu.Unlock()
	fmt.Fprintf(r.cfg.stdout, "%s | %s\n", task.Path(), line)
}

func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	env := make([]string, len(base))
	copy(env, base)
	for k, v := range extra {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}

func exitCode(exitErr *exec.ExitError) int {
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
		return status.ExitStatus()
	}
	return 1
}

type tailBuffer struct {
	max    int
	values []string
}

func newTailBuffer(max int) *tailBuffer {
	if max <= 0 {
		max = 1
	}
	return &tailBuffer{max: max}
}

func (t *tailBuffer) add(line string) {
	t.values = append(t.values, line)
	if len(t.values) > t.max {
		drop := len(t.values) - t.max
		t.values = t.values[drop:]
	}
}

func (t *tailBuffer) lines() []string {
	return append([]string(nil), t.values...)
}
