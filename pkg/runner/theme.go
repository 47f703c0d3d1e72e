package runner

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Theme defines colors and icons for status lines.
type Theme struct {
	Name    string
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
	Bold    lipgloss.Style
	Icons   ThemeIcons

	// plain disables styling entirely.
	plain bool
}

// ThemeIcons defines the icon set for a theme.
type ThemeIcons struct {
	Pass   string
	Fail   string
	Cancel string
}

// DefaultTheme returns the colour theme used on terminals.
func DefaultTheme() Theme {
	return Theme{
		Name:    "default",
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("34")),  // green
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")), // orange
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")), // red
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("242")), // gray
		Bold:    lipgloss.NewStyle().Bold(true),
		Icons:   ThemeIcons{Pass: "✓", Fail: "✗", Cancel: "○"},
	}
}

// MonoTheme returns an unstyled theme for pipes, CI logs and NO_COLOR.
func MonoTheme() Theme {
	return Theme{
		Name:  "mono",
		Icons: ThemeIcons{Pass: "✓", Fail: "✗", Cancel: "○"},
		plain: true,
	}
}

func (t Theme) render(style lipgloss.Style, s string) string {
	if t.plain {
		return s
	}
	return style.Render(s)
}

func (r *Runner) selectTheme() Theme {
	if r.cfg.forceColor != nil {
		if *r.cfg.forceColor {
			return DefaultTheme()
		}
		return MonoTheme()
	}
	if f, ok := r.cfg.stdout.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return DefaultTheme()
	}
	return MonoTheme()
}
