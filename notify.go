package main

import (
	"github.com/gen2brain/beeep"

	"voxy/log"
)

const notifyTextLimit = 120

// notifySink raises a desktop notification when a session ends, so the
// outcome is visible without the terminal in view. Only terminal
// events notify; state flips and level samples stay silent.
type notifySink struct{}

func newNotifySink() notifySink { return notifySink{} }

func (notifySink) Transcription(text string, _ []string, injected bool, noSpeech bool) {
	title := "voxy"
	if injected {
		title = "voxy: delivered"
	}
	if noSpeech {
		text = "(no speech detected)"
	}
	if len(text) > notifyTextLimit {
		text = text[:notifyTextLimit] + "…"
	}
	if err := beeep.Notify(title, text, ""); err != nil {
		log.Warnf("notify: %v", err)
	}
}

func (notifySink) SessionError(msg string) {
	if err := beeep.Alert("voxy: error", msg, ""); err != nil {
		log.Warnf("notify: %v", err)
	}
}

func (notifySink) StateChange(SessionState) {}
func (notifySink) PhaseChange(SessionPhase) {}
func (notifySink) RecordingTick(float64)    {}
func (notifySink) AudioLevel(float64)       {}
func (notifySink) NoVoiceWarning()          {}
func (notifySink) NoVoiceCleared()          {}
func (notifySink) ModeLine(string)          {}
func (notifySink) DeviceLine(string)        {}
func (notifySink) RateLimit(string)         {}
