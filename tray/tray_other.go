//go:build !darwin

package tray

// No native tray outside darwin; the TUI is the status surface.

func Init() <-chan struct{}                          { return quitCh }
func RefreshDevices(names []string, selected string) {}
func updateRecordingIcon(bool)                       {}
func updateWarningIcon(bool)                         {}
func updateTooltip(string)                           {}
func updateCopyLastTitle(string)                     {}
func addUpdateMenuItem(string)                       {}
func disableDevices()                                {}
func enableDevices()                                 {}
func disableBackend()                                {}
func enableBackend()                                 {}
