package runner

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/dkoosis/tally/pkg/build"
)

var numbers = message.NewPrinter(language.English)

func pathWidth(tasks []*build.Task) int {
	width := 0
	for _, t := range tasks {
		if w := runewidth.StringWidth(t.Path()); w > width {
			width = w
		}
	}
	return width
}

// statusLine formats one task result, e.g. "✗ :unit  10 passed, 2 failed  1.4s".
func (r *Runner) statusLine(res TaskResult, width int) string {
	th := r.theme
	var icon string
	switch res.Status {
	case Success:
		icon = th.render(th.Success, th.Icons.Pass)
	case Cancelled:
		icon = th.render(th.Warning, th.Icons.Cancel)
	default:
		icon = th.render(th.Error, th.Icons.Fail)
	}

	path := runewidth.FillRight(res.Path, width)
	var sb strings.Builder
	sb.WriteString(icon)
	sb.WriteString(" ")
	sb.WriteString(th.render(th.Bold, path))
	sb.WriteString("  ")
	sb.WriteString(countsText(res.Tests))
	if res.ExitCode != 0 {
		sb.WriteString(th.render(th.Error, fmt.Sprintf(" (exit %d)", res.ExitCode)))
	}
	sb.WriteString("  ")
	sb.WriteString(th.render(th.Muted, formatDuration(res.Duration)))
	return sb.String()
}

func countsText(t build.TestResult) string {
	if t.TestCount == 0 {
		return "no tests"
	}
	var parts []string
	if t.SuccessfulTestCount > 0 || t.FailedTestCount == 0 {
		parts = append(parts, numbers.Sprintf("%d passed", t.SuccessfulTestCount))
	}
	if t.FailedTestCount > 0 {
		parts = append(parts, numbers.Sprintf("%d failed", t.FailedTestCount))
	}
	if t.SkippedTestCount > 0 {
		parts = append(parts, numbers.Sprintf("%d skipped", t.SkippedTestCount))
	}
	return strings.Join(parts, ", ")
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(10 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}

func (r *Runner) printTask(res TaskResult, width int) {
	var sb strings.Builder
	sb.WriteString(r.statusLine(res, width))
	sb.WriteString("\n")

	// Tasks that fail with no failing test (build errors, crashes) would
	// otherwise leave nothing in the report.
	if res.Status == Failed && res.Tests.FailedTestCount == 0 {
		if res.Err != nil {
			sb.WriteString("    ")
			sb.WriteString(r.theme.render(r.theme.Error, res.Err.Error()))
			sb.WriteString("\n")
		}
		for _, line := range res.OutputTail {
			sb.WriteString("    ")
			sb.WriteString(r.theme.render(r.theme.Muted, line))
			sb.WriteString("\n")
		}
	}

	r.writerMu.Lock()
	defer r.writerMu.Unlock()
	fmt.Fprint(r.cfg.stdout, sb.String())
}

func (r *Runner) printSummary(result RunResult) {
	if len(result.Tasks) == 0 {
		return
	}
	total := result.Totals()
	line := numbers.Sprintf("%d tasks, %d tests, %d failed, %d skipped in %s",
		len(result.Tasks), total.TestCount, total.FailedTestCount, total.SkippedTestCount,
		formatDuration(result.FinishedAt.Sub(result.StartedAt)))

	style := r.theme.Success
	if len(result.Failed()) > 0 {
		style = r.theme.Error
	}

	r.writerMu.Lock()
	defer r.writerMu.Unlock()
	fmt.Fprintln(r.cfg.stdout, r.theme.render(style, line))
}
