package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"voxy/audio"
	"voxy/beep"
	"voxy/encoder"
	"voxy/hotkey"
	"voxy/inject"
	"voxy/log"
	"voxy/transcriber"
)

// runTestMode drives the whole pipeline headless, from a stdin script.
// Capture comes from a FakeContext fed by the WAV file given as the
// first positional argument; the hotkey is a FakeHotkey poked by
// KEYDOWN lines. With VOXY_FAKE_TRANSCRIBER set (or no API key in the
// environment) the network is replaced by a FakeTranscriber, so the
// integration harness runs without credentials.
//
// Script commands, one per line:
//
//	KEYDOWN          simulate a hotkey trigger
//	WAIT             block until the current session ends
//	WAIT_AUDIO_DONE  block until the fake capture has fed all audio
//	SLEEP <ms>       pause the script
//	QUIT             flush logs and exit
func runTestMode(settings Settings, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: voxy -test-mode <wav-file>")
		os.Exit(1)
	}
	wavPath := args[0]

	beep.Disable()

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	var trans transcriber.Transcriber
	if fakeText := os.Getenv("VOXY_FAKE_TRANSCRIBER"); fakeText != "" {
		trans = transcriber.NewFake(fakeText, nil)
	} else if t, err := transcriber.New(settings.Provider); err == nil {
		trans = t
	} else {
		trans = transcriber.NewFake("fake transcript", nil)
	}
	if settings.Language != "" {
		trans.SetLanguage(settings.Language)
	}
	log.SessionStart(trans.Name(), settings.InjectMode, settings.Format)

	injector, err := inject.New(settings.InjectMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fakeCtx, err := audio.NewFakeContext(wavPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		os.Exit(1)
	}
	capture, err := fakeCtx.NewCapture(nil, audio.CaptureConfig{
		SampleRate: encoder.SampleRate, Channels: encoder.Channels,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating capture: %v\n", err)
		os.Exit(1)
	}
	defer capture.Close()
	fakeCapture := capture.(*audio.FakeCapture)

	app := &appState{
		settings: settings,
		device:   capture,
		trans:    trans,
		injector: injector,
	}

	sessionDone := make(chan struct{}, 1)
	ctrl := newSessionController(controllerDeps{
		settings: app.Settings,
		device:   app.Device,
		trans:    app.Transcriber,
		injector: app.Injector,
		sink:     testDoneSink{done: sessionDone},
	})

	hk := hotkey.NewFake()
	go func() {
		for {
			select {
			case <-hk.Keydown():
				ctrl.Trigger()
			case <-hk.Keyup():
			}
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		switch cmd {
		case "":
		case "KEYDOWN":
			hk.SimKeydown()
		case "KEYUP":
			hk.SimKeyup()
		case "WAIT":
			<-sessionDone
		case "WAIT_AUDIO_DONE":
			<-fakeCapture.AudioDone()
		case "QUIT":
			log.SessionEnd(transcriptionCount())
			return
		default:
			if strings.HasPrefix(cmd, "SLEEP ") {
				if ms, err := strconv.Atoi(cmd[6:]); err == nil {
					time.Sleep(time.Duration(ms) * time.Millisecond)
				}
			}
		}
	}
}

// testDoneSink signals the script driver whenever a session reaches a
// terminal state.
type testDoneSink struct {
	done chan struct{}
}

func (s testDoneSink) StateChange(state SessionState) {
	// Every session, aborted or not, settles at Idle.
	if state == StateIdle {
		select {
		case s.done <- struct{}{}:
		default:
		}
	}
}

func (testDoneSink) PhaseChange(SessionPhase)                   {}
func (testDoneSink) RecordingTick(float64)                      {}
func (testDoneSink) AudioLevel(float64)                         {}
func (testDoneSink) NoVoiceWarning()                            {}
func (testDoneSink) NoVoiceCleared()                            {}
func (testDoneSink) Transcription(string, []string, bool, bool) {}
func (testDoneSink) SessionError(string)                        {}
func (testDoneSink) ModeLine(string)                            {}
func (testDoneSink) DeviceLine(string)                          {}
func (testDoneSink) RateLimit(string)                           {}
