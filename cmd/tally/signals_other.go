//go:build !unix

package main

import (
	"os"
)

// interruptSignals returns the signals that cancel a run on non-Unix platforms.
func interruptSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
