// tally runs the test tasks of a build and its included builds and prints one
// consolidated list of failed tests once everything has finished.
//
// Usage:
//
//	tally run                          # tasks from the nearest .tally.yaml
//	tally run -c ci/.tally.yaml -j 2
//	tally report unit.json race.json   # saved go test -json streams
//	go test -json ./... | tally report -
//
// Exit codes: 0 when every task passed, 1 when a test or task failed, 2 for
// usage and configuration errors.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dkoosis/tally/internal/config"
	"github.com/dkoosis/tally/internal/version"
	"github.com/dkoosis/tally/pkg/build"
	"github.com/dkoosis/tally/pkg/failures"
	"github.com/dkoosis/tally/pkg/runner"
	"github.com/dkoosis/tally/pkg/testjson"
)

// errFailuresFound reports recorded test failures; the report already says which.
var errFailuresFound = errors.New("test failures found")

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), interruptSignals()...)
	defer stop()

	cmd := newRootCmd(stdin, stdout, stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)

	code := exitCode(err)
	if code == 2 {
		fmt.Fprintf(stderr, "tally: %v\n", err)
	}
	return code
}

func exitCode(err error) int {
	var failed *runner.TasksFailedError
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errFailuresFound), errors.As(err, &failed):
		return 1
	case errors.Is(err, context.Canceled):
		return 1
	default:
		return 2
	}
}

type options struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	verbose bool
	noColor bool
	tail    int
	logger  *slog.Logger
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	o := &options{stdin: stdin, stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "tally",
		Short: "Run go test tasks across builds and report every failed test in one place",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			level := slog.LevelWarn
			if o.verbose {
				level = slog.LevelDebug
			}
			o.logger = slog.New(slog.NewTextHandler(o.stderr, &slog.HandlerOptions{Level: level}))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "log task lifecycle to stderr")
	root.PersistentFlags().BoolVar(&o.noColor, "no-color", false, "disable styled output")
	root.PersistentFlags().IntVar(&o.tail, "tail", 20, "output lines shown under a task that failed without a failing test")

	root.AddCommand(newRunCmd(o), newReportCmd(o), newVersionCmd(o))
	return root
}

func newRunCmd(o *options) *cobra.Command {
	var (
		configPath string
		parallel   int
		echo       bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the tasks of .tally.yaml and its includes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := configPath
			if path == "" {
				wd, err := os.Getwd()
				if err != nil {
					return err
				}
				if path, err = config.FindFile(wd); err != nil {
					return err
				}
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			o.logger.Debug("config loaded", "path", cfg.Path, "tasks", len(cfg.Tasks), "includes", len(cfg.Included))

			settings, err := config.Resolve(o.flags(cmd, parallel), cfg)
			if err != nil {
				return err
			}
			root, err := config.NewBuild(cfg, failures.Apply, build.WithStderr(o.stderr))
			if err != nil {
				return err
			}
			return o.execute(cmd.Context(), root, settings, echo)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (default: nearest "+config.FileName+")")
	cmd.Flags().IntVarP(&parallel, "parallel", "j", 0, "maximum tasks running at once (0 = number of CPUs)")
	cmd.Flags().BoolVar(&echo, "echo", false, "copy task output to stdout, prefixed with the task path")
	return cmd
}

func newReportCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "report FILE...",
		Short: "Aggregate saved go test -json streams (- reads stdin)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := build.New("report", build.WithStderr(o.stderr))
			project := root.RootProject()
			if err := failures.Apply(project); err != nil {
				return err
			}
			names, err := reportTaskNames(args)
			if err != nil {
				return err
			}
			for i, input := range args {
				spec := build.TaskSpec{Name: names[i], Open: o.opener(input)}
				if _, err := project.AddTask(spec); err != nil {
					return err
				}
			}
			settings, err := config.Resolve(o.flags(cmd, 0), nil)
			if err != nil {
				return err
			}
			return o.execute(cmd.Context(), root, settings, false)
		},
	}
}

func newVersionCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			_, err := fmt.Fprintf(o.stdout, "tally %s (commit %s, built %s)\n",
				version.Version, version.CommitHash, version.BuildDate)
			return err
		},
	}
}

// flags collects the command-line overrides that were actually given.
func (o *options) flags(cmd *cobra.Command, parallel int) config.Flags {
	var f config.Flags
	if cmd.Flags().Changed("parallel") {
		f.Parallel = &parallel
	}
	if cmd.Flags().Changed("no-color") {
		f.NoColor = &o.noColor
	}
	return f
}

func (o *options) execute(ctx context.Context, root *build.Build, s config.Settings, echo bool) error {
	o.logger.Debug("settings resolved",
		"parallel", s.Parallel, "parallel_source", s.ParallelSource,
		"no_color", s.NoColor, "no_color_source", s.NoColorSource)

	var color *bool
	if s.NoColor {
		off := false
		color = &off
	}
	r := runner.New(
		runner.WithStdout(o.stdout),
		runner.WithLogger(o.logger),
		runner.WithParallel(s.Parallel),
		runner.WithColor(color),
		runner.WithEcho(echo),
		runner.WithMaxTailLines(o.tail),
	)
	if _, err := r.Run(ctx, root); err != nil {
		return err
	}
	if sink, ok := failures.FindSink(root); ok && !sink.IsEmpty() {
		return errFailuresFound
	}
	return nil
}

// opener returns the input of a report task. Input that does not look like
// go test -json is still read, with a warning, since its lines end up in the
// task's output tail.
func (o *options) opener(name string) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		var rc io.ReadCloser = io.NopCloser(o.stdin)
		if name != "-" {
			f, err := os.Open(name) // #nosec G304 - report inputs are named by the user
			if err != nil {
				return nil, err
			}
			rc = f
		}
		br := bufio.NewReaderSize(rc, 64*1024)
		if peeked, _ := br.Peek(4096); len(peeked) > 0 && !testjson.Sniff(peeked) {
			o.logger.Warn("input does not look like go test -json", "input", name)
		}
		return struct {
			io.Reader
			io.Closer
		}{br, rc}, nil
	}
}

// reportTaskNames derives one task name per input. Repeated names get "-2",
// "-3" and so on, in argument order.
func reportTaskNames(inputs []string) ([]string, error) {
	names := make([]string, len(inputs))
	used := make(map[string]bool, len(inputs))
	for i, input := range inputs {
		base := reportTaskName(input)
		if base == "" || strings.Contains(base, ":") {
			return nil, fmt.Errorf("report input %q: cannot derive a task name (rename the file)", input)
		}
		name := base
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s-%d", base, n)
		}
		used[name] = true
		names[i] = name
	}
	return names, nil
}

// reportTaskName turns "out/unit.json" into "unit" and "-" into "stdin".
func reportTaskName(name string) string {
	if name == "-" {
		return "stdin"
	}
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
