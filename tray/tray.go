// Package tray is the menu-bar surface: recording indicator, last
// transcript, device/provider/language pickers and the quit item. On
// platforms without a native tray every call is a no-op.
package tray

import (
	"sync"
	"time"
)

type Provider struct {
	Name   string
	Label  string
	HasKey bool
	Active bool
}

var (
	quitCh    = make(chan struct{})
	closeOnce sync.Once

	copyLastFn func()
	recordFn   func()
	stopFn     func()

	recording bool
	warning   bool

	deviceMu    sync.Mutex
	deviceNames []string
	deviceSel   string
	deviceCb    func(string)

	injectMode string
	injectCb   func(string)

	providerMu sync.Mutex
	providers  []Provider
	providerCb func(string)

	isBTFn func(string) bool

	langCode string // current language code ("" = auto-detect)
	langCb   func(string)
)

type Language struct {
	Code  string // ISO-639-1
	Label string
}

// Languages with solid Whisper coverage on both OpenAI and Groq.
var Languages = []Language{
	{"", "Auto-detect"},
	{"bg", "Bulgarian"},
	{"ca", "Catalan"},
	{"zh", "Chinese"},
	{"cs", "Czech"},
	{"da", "Danish"},
	{"nl", "Dutch"},
	{"en", "English"},
	{"et", "Estonian"},
	{"fi", "Finnish"},
	{"fr", "French"},
	{"de", "German"},
	{"el", "Greek"},
	{"hi", "Hindi"},
	{"hu", "Hungarian"},
	{"id", "Indonesian"},
	{"it", "Italian"},
	{"ja", "Japanese"},
	{"ko", "Korean"},
	{"lv", "Latvian"},
	{"lt", "Lithuanian"},
	{"ms", "Malay"},
	{"no", "Norwegian"},
	{"pl", "Polish"},
	{"pt", "Portuguese"},
	{"ro", "Romanian"},
	{"ru", "Russian"},
	{"sk", "Slovak"},
	{"es", "Spanish"},
	{"sv", "Swedish"},
	{"th", "Thai"},
	{"tr", "Turkish"},
	{"uk", "Ukrainian"},
	{"vi", "Vietnamese"},
}

// InjectModes in menu order.
var InjectModes = []struct{ Name, Label string }{
	{"paste", "Paste at cursor"},
	{"type", "Type keystrokes"},
	{"copy", "Clipboard only"},
}

func OnCopyLast(fn func())        { copyLastFn = fn }
func OnRecord(start, stop func()) { recordFn = start; stopFn = stop }

// SetInjectMode sets the checked delivery mode and the switch callback.
func SetInjectMode(mode string, onSwitch func(string)) {
	injectMode = mode
	injectCb = onSwitch
}

func SetRecording(rec bool) {
	recording = rec
	warning = false
	updateRecordingIcon(rec)
	if rec {
		disableDevices()
		disableBackend()
	} else {
		enableDevices()
		enableBackend()
	}
}

func SetWarning(on bool) {
	if !recording {
		return
	}
	warning = on
	updateWarningIcon(on)
}

func SetError(msg string) {
	updateTooltip("voxy – " + msg)
	go func() {
		time.Sleep(10 * time.Second)
		updateTooltip("voxy – dictation")
	}()
}

func Quit() {
	closeOnce.Do(func() { close(quitCh) })
}

func SetDevices(names []string, selected string, onSwitch func(name string)) {
	deviceMu.Lock()
	deviceNames = names
	deviceSel = selected
	if onSwitch != nil {
		deviceCb = onSwitch
	}
	deviceMu.Unlock()
}

func SetProviders(p []Provider, onSwitch func(string)) {
	providerMu.Lock()
	providers = p
	providerCb = onSwitch
	providerMu.Unlock()
}

// SetLastText enables the copy-last item with a snippet of the most
// recent transcript in its title.
func SetLastText(text string) {
	const snippetLen = 40
	snippet := text
	if len(snippet) > snippetLen {
		snippet = snippet[:snippetLen] + "…"
	}
	updateCopyLastTitle("Copy Last Transcript (" + snippet + ")")
}

func SetUpdateAvailable(version string) {
	addUpdateMenuItem(version)
}

func SetLanguage(code string, onSwitch func(string)) {
	langCode = code
	langCb = onSwitch
}

func SetBTCheck(fn func(string) bool) {
	isBTFn = fn
}

func deviceDisplayName(name string) string {
	if isBTFn != nil && isBTFn(name) {
		return name + " [⚠ Lower audio quality]"
	}
	return name
}
