//go:build !linux

package main

import (
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	// x/hotkey and the systray both need the OS main thread.
	mainthread.Init(run)
}
