//go:build unix

package main

import (
	"os"
	"syscall"
)

// interruptSignals returns the signals that cancel a run on Unix. CI runners
// stop jobs with SIGTERM.
func interruptSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM}
}
