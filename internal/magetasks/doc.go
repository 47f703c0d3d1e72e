// Package magetasks holds the build, test, lint and quality tasks behind the
// Magefile. Targets there stay one-liners that call into this package.
package magetasks
