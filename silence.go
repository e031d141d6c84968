package main

import "time"

const (
	tickInterval     = 100 * time.Millisecond
	voiceWarnAfter   = 8 * time.Second
	voiceAutoStopDur = 30 * time.Second
	speechMinRatio   = 0.10
	speechClearRatio = 0.25 // higher threshold to clear warning (hysteresis)
)

// StopReason says why a capture session should end. StopNone means
// keep recording.
type StopReason int

const (
	StopNone StopReason = iota
	StopSilence // quiet for longer than the silence timeout
	StopSession // hard cap on session length
)

// silenceTracker decides when sustained quiet should end a recording.
// Each loudness sample extends or resets a quiet-time accumulator:
// below-threshold samples add the time since the previous sample,
// anything louder resets it to zero. The first sample only establishes
// the baseline and can never stop the session.
type silenceTracker struct {
	threshold  float64
	timeout    time.Duration
	maxSession time.Duration

	started bool
	start   time.Time
	prev    time.Time
	quiet   time.Duration
}

func newSilenceTracker(threshold float64, timeout, maxSession time.Duration) *silenceTracker {
	return &silenceTracker{
		threshold:  threshold,
		timeout:    timeout,
		maxSession: maxSession,
	}
}

func (t *silenceTracker) Observe(loudness float64, now time.Time) StopReason {
	if !t.started {
		t.started = true
		t.start = now
		t.prev = now
		return StopNone
	}

	if t.maxSession > 0 && now.Sub(t.start) >= t.maxSession {
		return StopSession
	}

	if loudness < t.threshold {
		if d := now.Sub(t.prev); d > 0 {
			t.quiet += d
		}
	} else {
		t.quiet = 0
	}
	t.prev = now

	if t.timeout > 0 && t.quiet >= t.timeout {
		return StopSilence
	}
	return StopNone
}

// QuietFor returns the current quiet-time accumulator.
func (t *silenceTracker) QuietFor() time.Duration { return t.quiet }

type VoiceEvent int

const (
	VoiceNone      VoiceEvent = iota
	VoiceWarn                 // no speech detected for a while
	VoiceWarnClear            // speech resumed after warning
	VoiceRepeat               // repeat beep (every 8s)
	VoiceAutoStop             // 30s without speech
)

// voiceMonitor watches the VAD verdict stream for recordings that run
// on ambient noise alone. Loudness keeps the silence tracker from
// stopping such a session, so this is the layer that notices nobody is
// actually speaking: it warns after 8s without speech and gives up
// after 30s.
type voiceMonitor struct {
	warnAt   int
	windowSz int

	ticks       int
	window      []bool
	speechCount int
	warned      bool
	lastBeep    int
}

func newVoiceMonitor() *voiceMonitor {
	warnAt := int(voiceWarnAfter / tickInterval)
	windowSz := int(voiceAutoStopDur / tickInterval)
	return &voiceMonitor{
		warnAt:   warnAt,
		windowSz: windowSz,
		window:   make([]bool, windowSz),
	}
}

func (m *voiceMonitor) ratio(n int) float64 {
	if m.ticks < n {
		n = m.ticks
	}
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i+m.windowSz)%m.windowSz] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *voiceMonitor) Tick(hasSpeech bool) VoiceEvent {
	idx := m.ticks % m.windowSz
	if m.ticks >= m.windowSz && m.window[idx] {
		m.speechCount--
	}
	m.window[idx] = hasSpeech
	if hasSpeech {
		m.speechCount++
	}
	m.ticks++

	r := m.ratio(m.warnAt)

	// Warn: 8s window below threshold
	if m.ticks >= m.warnAt && r < speechMinRatio && !m.warned {
		m.warned = true
		m.lastBeep = m.ticks
		return VoiceWarn
	}
	// Clear: speech ratio above clear threshold
	if m.warned && r >= speechClearRatio {
		m.warned = false
		return VoiceWarnClear
	}

	// Auto-stop: 30s window below threshold (checked before repeat)
	if m.ticks >= m.windowSz && float64(m.speechCount)/float64(m.windowSz) < speechMinRatio {
		return VoiceAutoStop
	}

	// Repeat beep every 8s
	if m.warned && m.ticks-m.lastBeep >= m.warnAt {
		m.lastBeep = m.ticks
		return VoiceRepeat
	}

	return VoiceNone
}
