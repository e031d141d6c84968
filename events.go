package main

// EventSink abstracts the display layer so the Bubble Tea TUI, the
// menu-bar tray and the audio cues can all receive the same session
// events.
type EventSink interface {
	StateChange(state SessionState)
	PhaseChange(phase SessionPhase)
	RecordingTick(duration float64)
	AudioLevel(level float64)
	NoVoiceWarning()
	NoVoiceCleared()
	Transcription(text string, metrics []string, injected bool, noSpeech bool)
	SessionError(msg string)
	ModeLine(text string)
	DeviceLine(text string)
	RateLimit(text string)
}

// fanoutSink forwards every event to all attached sinks in order.
type fanoutSink []EventSink

func (f fanoutSink) StateChange(state SessionState) {
	for _, s := range f {
		s.StateChange(state)
	}
}

func (f fanoutSink) PhaseChange(phase SessionPhase) {
	for _, s := range f {
		s.PhaseChange(phase)
	}
}

func (f fanoutSink) RecordingTick(duration float64) {
	for _, s := range f {
		s.RecordingTick(duration)
	}
}

func (f fanoutSink) AudioLevel(level float64) {
	for _, s := range f {
		s.AudioLevel(level)
	}
}

func (f fanoutSink) NoVoiceWarning() {
	for _, s := range f {
		s.NoVoiceWarning()
	}
}

func (f fanoutSink) NoVoiceCleared() {
	for _, s := range f {
		s.NoVoiceCleared()
	}
}

func (f fanoutSink) Transcription(text string, metrics []string, injected bool, noSpeech bool) {
	for _, s := range f {
		s.Transcription(text, metrics, injected, noSpeech)
	}
}

func (f fanoutSink) SessionError(msg string) {
	for _, s := range f {
		s.SessionError(msg)
	}
}

func (f fanoutSink) ModeLine(text string) {
	for _, s := range f {
		s.ModeLine(text)
	}
}

func (f fanoutSink) DeviceLine(text string) {
	for _, s := range f {
		s.DeviceLine(text)
	}
}

func (f fanoutSink) RateLimit(text string) {
	for _, s := range f {
		s.RateLimit(text)
	}
}

// nopSink swallows everything; used when a surface is disabled.
type nopSink struct{}

func (nopSink) StateChange(SessionState)                   {}
func (nopSink) PhaseChange(SessionPhase)                   {}
func (nopSink) RecordingTick(float64)                      {}
func (nopSink) AudioLevel(float64)                         {}
func (nopSink) NoVoiceWarning()                            {}
func (nopSink) NoVoiceCleared()                            {}
func (nopSink) Transcription(string, []string, bool, bool) {}
func (nopSink) SessionError(string)                        {}
func (nopSink) ModeLine(string)                            {}
func (nopSink) DeviceLine(string)                          {}
func (nopSink) RateLimit(string)                           {}
