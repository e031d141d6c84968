//go:build !windows

// Package shutdown wires the per-platform termination signals into a
// single channel the main loop can select on.
package shutdown

import (
	"os"
	"os/signal"
	"syscall"
)

func Notify(ch chan os.Signal) {
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
}
