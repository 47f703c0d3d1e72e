package magetasks

import (
	"fmt"
)

// QualityCheck runs the linters, the tally test tasks and the build.
func QualityCheck() error {
	PrintH1Header("tally Quality Assurance")

	if err := LintAll(); err != nil {
		PrintWarning("Linting issues found")
	}
	if err := Tally(); err != nil {
		return fmt.Errorf("tests failed: %w", err)
	}
	if err := BuildAll(); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	PrintSuccess("QA complete!")
	return nil
}
