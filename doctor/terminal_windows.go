//go:build windows

package doctor

import (
	"os"
	"os/signal"
)

func resetTerminal() {
	// nothing to restore on Windows
}

func setupInterruptHandler() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		println("\nInterrupted")
		os.Exit(1)
	}()
}
