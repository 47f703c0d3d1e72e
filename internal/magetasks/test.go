package magetasks

import (
	"github.com/magefile/mage/sh"
)

// TestAll runs all tests.
func TestAll() error {
	PrintH2Header("Tests")
	if err := sh.RunV("go", "test", "./..."); err != nil {
		PrintError("Tests failed")
		return err
	}
	PrintSuccess("All tests passed")
	return nil
}

// TestCoverage runs tests with coverage and prints the per-function summary.
func TestCoverage() error {
	PrintH2Header("Test Coverage")
	if err := sh.RunV("go", "test", "-coverprofile=coverage.out", "./..."); err != nil {
		PrintError("Tests failed")
		return err
	}
	_ = sh.RunV("go", "tool", "cover", "-func=coverage.out")
	PrintSuccess("Coverage report generated")
	return nil
}

// TestRace runs tests with the race detector.
func TestRace() error {
	PrintH2Header("Race Detector")
	if err := sh.RunV("go", "test", "-race", "./..."); err != nil {
		PrintError("Race detector found issues")
		return err
	}
	PrintSuccess("No race conditions detected")
	return nil
}

// Tally runs the repository's own .tally.yaml through the tally CLI, so every
// failing test across the unit and race tasks is listed once at the end.
func Tally(args ...string) error {
	PrintH2Header("Tally")
	cmd := append([]string{"run", MainPackage, "run"}, args...)
	if err := sh.RunV("go", cmd...); err != nil {
		PrintError("Test tasks failed")
		return err
	}
	PrintSuccess("All test tasks passed")
	return nil
}
