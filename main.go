package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"voxy/audio"
	"voxy/beep"
	"voxy/doctor"
	"voxy/encoder"
	"voxy/hotkey"
	"voxy/inject"
	"voxy/log"
	"voxy/shutdown"
	"voxy/transcriber"
	"voxy/tray"
	"voxy/update"
)

var version = "dev"

// appState holds the pieces a session borrows: capture device,
// transcriber, injector, settings. The tray can swap any of them
// between sessions; the controller reads them through the deps funcs
// at session start, so a swap never touches a live session.
type appState struct {
	mu       sync.Mutex
	settings Settings
	device   audio.CaptureDevice
	trans    transcriber.Transcriber
	injector inject.Injector
}

func (a *appState) Settings() Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

func (a *appState) Device() audio.CaptureDevice {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.device
}

func (a *appState) Transcriber() transcriber.Transcriber {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.trans
}

func (a *appState) Injector() inject.Injector {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.injector
}

func (a *appState) setDevice(dev audio.CaptureDevice) {
	a.mu.Lock()
	a.device = dev
	a.mu.Unlock()
}

func (a *appState) setTranscriber(t transcriber.Transcriber) {
	a.mu.Lock()
	a.trans = t
	a.mu.Unlock()
}

func (a *appState) setInjector(inj inject.Injector, mode string) {
	a.mu.Lock()
	a.injector = inj
	a.settings.InjectMode = mode
	a.mu.Unlock()
}

func (a *appState) setLanguage(code string) {
	a.mu.Lock()
	a.settings.Language = code
	a.trans.SetLanguage(code)
	a.mu.Unlock()
}

func modeLineText(app *appState) string {
	app.mu.Lock()
	defer app.mu.Unlock()
	providerLabel := app.trans.Name()
	if lang := app.trans.GetLanguage(); lang != "" {
		providerLabel += " (" + lang + ")"
	}
	return fmt.Sprintf("[%s | %s | %s]", app.settings.Format, providerLabel, app.settings.InjectMode)
}

func deviceLineText(dev *audio.DeviceInfo) string {
	name := "system default"
	suffix := ""
	if dev != nil {
		name = dev.Name
		if audio.IsBluetooth(dev.Name) {
			suffix = " (BT!)"
		}
	}
	return "mic: " + name + suffix
}

// traySink mirrors session state onto the menu-bar icon.
type traySink struct{}

func (traySink) StateChange(state SessionState) { tray.SetRecording(state == StateListening) }
func (traySink) PhaseChange(SessionPhase)       {}
func (traySink) RecordingTick(float64)          {}
func (traySink) AudioLevel(float64)             {}
func (traySink) NoVoiceWarning()                { tray.SetWarning(true) }
func (traySink) NoVoiceCleared()                { tray.SetWarning(false) }
func (traySink) SessionError(msg string)        { tray.SetError(msg) }
func (traySink) ModeLine(string)                {}
func (traySink) DeviceLine(string)              {}
func (traySink) RateLimit(string)               {}

func (traySink) Transcription(text string, _ []string, _ bool, noSpeech bool) {
	if !noSpeech && text != "" {
		tray.SetLastText(text)
	}
}

var (
	shutdownOnce sync.Once
	triggerChan  = make(chan struct{}, 1)
)

func fireTrigger() {
	select {
	case triggerChan <- struct{}{}:
	default:
	}
}

func gracefulShutdown(ctrl *SessionController) {
	shutdownOnce.Do(func() {
		if ctrl != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := ctrl.Shutdown(ctx); err != nil {
				log.Warnf("shutdown: %v", err)
			}
			cancel()
		}
		if n := transcriptionCount(); n > 0 {
			log.SessionEnd(n)
		}
		log.Close()
		tray.Quit()
		tuiMu.Lock()
		if tuiProgram != nil {
			tuiProgram.Quit()
		}
		tuiMu.Unlock()
		os.Exit(0)
	})
}

func run() {
	settings, err := LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	providerFlag := flag.String("provider", settings.Provider, "Transcription provider: openai or groq (default: auto by API key)")
	langFlag := flag.String("language", settings.Language, "Language code passed to the API (e.g. en, es, fr). Empty = auto-detect")
	hotkeyFlag := flag.String("hotkey", settings.Hotkey.String(), "Global hotkey combination (e.g. ctrl+shift+space)")
	injectFlag := flag.String("inject", settings.InjectMode, "Text delivery mode: paste, type, or copy")
	deviceFlag := flag.String("device", settings.Device, "Preferred capture device (substring match)")
	formatFlag := flag.String("format", settings.Format, "Upload container: wav or flac")
	logDirFlag := flag.String("log-dir", "", "Log directory (default: OS-specific location, use ./ for current dir)")
	notifyFlag := flag.Bool("notify", settings.Notify, "Desktop notification when a transcript lands")
	tuiFlag := flag.Bool("tui", true, "Run with the terminal UI")
	devicesFlag := flag.Bool("devices", false, "List capture devices and exit")
	doctorFlag := flag.Bool("doctor", false, "Run interactive diagnostics and exit")
	updateFlag := flag.Bool("update", false, "Check for a newer release and install it")
	testFlag := flag.Bool("test-mode", false, "Headless test mode, driven over stdin")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	profileFlag := flag.String("profile", "", "Enable pprof server (e.g. localhost:6060)")
	flag.Parse()

	settings.Provider = *providerFlag
	settings.Language = *langFlag
	settings.InjectMode = *injectFlag
	settings.Device = *deviceFlag
	settings.Format = *formatFlag
	settings.Notify = *notifyFlag
	if *hotkeyFlag != settings.Hotkey.String() {
		combo, err := hotkey.ParseCombo(*hotkeyFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: -hotkey: %v\n", err)
			os.Exit(1)
		}
		settings.Hotkey = combo
	}
	if err := settings.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *versionFlag {
		fmt.Printf("voxy %s\n", version)
		os.Exit(0)
	}

	if *updateFlag {
		runUpdate()
		return
	}

	logPath, err := log.ResolveDir(*logDirFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if *doctorFlag {
		os.Exit(doctor.Run(settings.Hotkey))
	}

	if *devicesFlag {
		listDevices(settings.Device)
		return
	}

	if *testFlag {
		runTestMode(settings, flag.Args())
		return
	}

	injector, err := inject.New(settings.InjectMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	trans, err := transcriber.New(settings.Provider)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if settings.Language != "" {
		trans.SetLanguage(settings.Language)
	}

	actx, err := audio.NewContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
		os.Exit(1)
	}
	defer actx.Close()

	selectedDevice, err := audio.Pick(actx, settings.Device)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	captureConfig := audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
		Gain:       settings.Gain,
	}
	captureDevice, err := actx.NewCapture(selectedDevice, captureConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening capture device: %v\n", err)
		os.Exit(1)
	}
	defer captureDevice.Close()

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	} else {
		log.SessionStart(trans.Name(), settings.InjectMode, settings.Format)
	}

	app := &appState{
		settings: settings,
		device:   captureDevice,
		trans:    trans,
		injector: injector,
	}

	sinks := fanoutSink{traySink{}}
	if *tuiFlag {
		sinks = append(sinks, tuiSink{})
	}
	if settings.Notify {
		sinks = append(sinks, newNotifySink())
	}

	ctrl := newSessionController(controllerDeps{
		settings: app.Settings,
		device:   app.Device,
		trans:    app.Transcriber,
		injector: app.Injector,
		sink:     sinks,
	})

	if *tuiFlag {
		tuiMu.Lock()
		tuiProgram = NewTUIProgram(settings.Hotkey.String())
		tuiMu.Unlock()
		go func() {
			if _, err := tuiProgram.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
				os.Exit(1)
			}
			gracefulShutdown(ctrl)
		}()
	}

	wireTray(app, ctrl, actx, captureConfig, selectedDevice)
	trayQuit := tray.Init()

	go pollDevices(app, ctrl, actx, captureConfig, selectedDevice)

	update.StartBackgroundCheck(version, log.Dir(), func(rel update.Release) {
		log.Info("update_available: " + rel.Version)
		tray.SetUpdateAvailable(rel.Version)
	})

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		select {
		case <-sigChan:
		case <-trayQuit:
		}
		gracefulShutdown(ctrl)
	}()

	if !settings.Beep {
		beep.Disable()
	}
	go beep.Init()

	hk := hotkey.New(settings.Hotkey)
	if err := hk.Register(); err != nil {
		log.Errorf("hotkey register error: %v", err)
		fmt.Fprintf(os.Stderr, "Error registering hotkey %s: %v\n", settings.Hotkey, err)
		os.Exit(1)
	}
	defer hk.Unregister()

	sinks.ModeLine(modeLineText(app))
	sinks.DeviceLine(deviceLineText(selectedDevice))
	log.Info("ready hotkey=" + settings.Hotkey.String())

	for {
		select {
		case <-hk.Keydown():
			log.Info("hotkey_trigger")
			ctrl.Trigger()
		case <-hk.Keyup():
			// One press is one trigger; the release carries no meaning.
		case <-triggerChan:
			ctrl.Trigger()
		}
	}
}

// wireTray connects the menu-bar callbacks to the controller and the
// app state. Everything here must be safe to call from the tray's own
// goroutine.
func wireTray(app *appState, ctrl *SessionController, actx audio.Context, captureConfig audio.CaptureConfig, selectedDevice *audio.DeviceInfo) {
	tray.OnCopyLast(func() {
		if text := lastTranscription(); text != "" {
			inject.Copy(text)
		}
	})
	tray.OnRecord(fireTrigger, fireTrigger)

	preferred := ""
	if selectedDevice != nil {
		preferred = selectedDevice.Name
	}
	tray.SetBTCheck(audio.IsBluetooth)
	if devices, err := actx.Devices(); err == nil && len(devices) > 0 {
		names := make([]string, len(devices))
		for i := range devices {
			names[i] = devices[i].Name
		}
		tray.SetDevices(names, preferred, func(name string) {
			switchDevice(app, ctrl, actx, captureConfig, name)
		})
	}

	st := app.Settings()
	openaiKey := os.Getenv("OPENAI_API_KEY")
	groqKey := os.Getenv("GROQ_API_KEY")
	tray.SetProviders([]tray.Provider{
		{Name: "openai", Label: "OpenAI", HasKey: openaiKey != "", Active: app.Transcriber().Name() == "openai"},
		{Name: "groq", Label: "Groq", HasKey: groqKey != "", Active: app.Transcriber().Name() == "groq"},
	}, func(name string) {
		var t transcriber.Transcriber
		switch name {
		case "openai":
			t = transcriber.NewOpenAI(openaiKey)
		case "groq":
			t = transcriber.NewGroq(groqKey)
		default:
			return
		}
		if lang := app.Settings().Language; lang != "" {
			t.SetLanguage(lang)
		}
		app.setTranscriber(t)
		tuiSend(ModeLineMsg{Text: modeLineText(app)})
	})

	tray.SetLanguage(st.Language, func(code string) {
		app.setLanguage(code)
		tuiSend(ModeLineMsg{Text: modeLineText(app)})
	})

	tray.SetInjectMode(st.InjectMode, func(mode string) {
		inj, err := inject.New(mode)
		if err != nil {
			return
		}
		app.setInjector(inj, mode)
		tuiSend(ModeLineMsg{Text: modeLineText(app)})
	})
}

// switchDevice swaps the capture device between sessions. A live
// session keeps the device it started with; the swap takes effect on
// the next trigger.
func switchDevice(app *appState, ctrl *SessionController, actx audio.Context, captureConfig audio.CaptureConfig, name string) {
	if ctrl.State() == StateListening {
		log.Warn("device_switch_ignored_while_recording")
		return
	}
	dev, err := audio.Pick(actx, name)
	if err != nil {
		log.Errorf("device switch: %v", err)
		return
	}
	capture, err := actx.NewCapture(dev, captureConfig)
	if err != nil {
		log.Errorf("device switch: %v", err)
		return
	}
	old := app.Device()
	app.setDevice(capture)
	if old != nil {
		old.Close()
	}
	devName := "system default"
	if dev != nil {
		devName = dev.Name
	}
	log.Info("device_switched: " + devName)
	tuiSend(DeviceLineMsg{Text: deviceLineText(dev)})
}

// pollDevices watches for hotplug: the selected device disappearing
// falls back to the system default, the preferred one reappearing is
// re-adopted.
func pollDevices(app *appState, ctrl *SessionController, actx audio.Context, captureConfig audio.CaptureConfig, selectedDevice *audio.DeviceInfo) {
	preferred := ""
	if selectedDevice != nil {
		preferred = selectedDevice.Name
	}
	current := preferred

	var last []string
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		devices, err := actx.Devices()
		if err != nil {
			continue
		}
		names := make([]string, len(devices))
		for i := range devices {
			names[i] = devices[i].Name
		}
		if slices.Equal(last, names) {
			continue
		}
		last = names

		if current != "" && !slices.Contains(names, current) {
			log.Info("device_disconnected: " + current)
			switchDevice(app, ctrl, actx, captureConfig, "")
			current = ""
		} else if current == "" && preferred != "" && slices.Contains(names, preferred) {
			log.Info("device_reconnected: " + preferred)
			switchDevice(app, ctrl, actx, captureConfig, preferred)
			current = preferred
		}
		tray.RefreshDevices(names, current)
	}
}

func listDevices(preferred string) {
	actx, err := audio.NewContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
		os.Exit(1)
	}
	defer actx.Close()

	devices, err := actx.Devices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing devices: %v\n", err)
		os.Exit(1)
	}
	if len(devices) == 0 {
		fmt.Println("No capture devices found.")
		return
	}
	def, _ := audio.Pick(actx, preferred)
	for _, d := range devices {
		marker := "  "
		if def != nil && d.Name == def.Name {
			marker = "* "
		}
		suffix := ""
		if audio.IsBluetooth(d.Name) {
			suffix = "  [Bluetooth: lower capture quality]"
		}
		fmt.Printf("%s%s%s\n", marker, d.Name, suffix)
	}
}

func runUpdate() {
	if version == "dev" {
		fmt.Println("Dev build, cannot check for updates.")
		os.Exit(0)
	}
	fmt.Printf("voxy %s: checking for updates...\n", version)
	rel, err := update.CheckLatest(version)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if rel == nil {
		fmt.Println("Already up to date.")
		os.Exit(0)
	}
	fmt.Printf("Update available: %s -> %s\n", version, rel.Version)
	fmt.Print("Continue? [y/N] ")
	var answer string
	fmt.Scanln(&answer)
	if answer != "y" && answer != "Y" {
		fmt.Println("Aborted.")
		os.Exit(0)
	}
	fmt.Printf("Downloading %s...\n", rel.Version)
	if err := update.Apply(rel); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Updated to %s\n", rel.Version)
	os.Exit(0)
}
