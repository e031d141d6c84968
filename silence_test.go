package main

import (
	"testing"
	"time"
)

func defaultTracker() *silenceTracker {
	return newSilenceTracker(50, 1500*time.Millisecond, time.Minute)
}

func TestTrackerFirstSampleNeverStops(t *testing.T) {
	tr := newSilenceTracker(50, time.Millisecond, time.Millisecond)
	if got := tr.Observe(0, time.Now()); got != StopNone {
		t.Fatalf("first observation stopped the session: %d", got)
	}
}

func TestTrackerStopsAfterSustainedQuiet(t *testing.T) {
	tr := defaultTracker()
	base := time.Now()
	tr.Observe(200, base) // speaking

	// 100ms cadence: quiet time hits 1.5s on the 15th quiet sample.
	for i := 1; i < 15; i++ {
		if got := tr.Observe(10, base.Add(time.Duration(i)*tickInterval)); got != StopNone {
			t.Fatalf("stopped early at sample %d: %d", i, got)
		}
	}
	if got := tr.Observe(10, base.Add(15*tickInterval)); got != StopSilence {
		t.Fatalf("expected StopSilence at 1.5s of quiet, got %d", got)
	}
}

func TestTrackerLoudResetsQuiet(t *testing.T) {
	tr := defaultTracker()
	base := time.Now()
	i := 0
	next := func(loudness float64) StopReason {
		ev := tr.Observe(loudness, base.Add(time.Duration(i)*tickInterval))
		i++
		return ev
	}

	next(200)
	for j := 0; j < 14; j++ { // 1.4s of quiet
		if got := next(10); got != StopNone {
			t.Fatalf("stopped during first quiet run: %d", got)
		}
	}
	if got := next(200); got != StopNone { // speech resets the clock
		t.Fatalf("stopped on a loud sample: %d", got)
	}
	for j := 0; j < 14; j++ { // another 1.4s of quiet
		if got := next(10); got != StopNone {
			t.Fatalf("reset did not take, stopped at quiet sample %d", j)
		}
	}
	if got := next(10); got != StopSilence {
		t.Fatalf("expected StopSilence once quiet reaccumulated, got %d", got)
	}
}

func TestTrackerAlternatingAudioRunsToSessionCap(t *testing.T) {
	tr := defaultTracker()
	base := time.Now()
	for i := 0; i < 700; i++ {
		loudness := 10.0
		if i%2 == 0 {
			loudness = 200
		}
		ev := tr.Observe(loudness, base.Add(time.Duration(i)*tickInterval))
		switch ev {
		case StopNone:
		case StopSilence:
			t.Fatalf("silence stop fired at sample %d despite alternating speech", i)
		case StopSession:
			if elapsed := time.Duration(i) * tickInterval; elapsed < time.Minute {
				t.Fatalf("session cap fired early at %v", elapsed)
			}
			return
		}
	}
	t.Fatal("session cap never fired")
}

func TestTrackerHardCapDuringSpeech(t *testing.T) {
	tr := defaultTracker()
	base := time.Now()
	for i := 0; i < 700; i++ {
		ev := tr.Observe(500, base.Add(time.Duration(i)*tickInterval))
		if ev == StopSession {
			return
		}
		if ev != StopNone {
			t.Fatalf("unexpected stop %d at sample %d", ev, i)
		}
	}
	t.Fatal("expected StopSession while speaking past the cap")
}

func TestTrackerThresholdBoundary(t *testing.T) {
	tr := defaultTracker()
	base := time.Now()
	tr.Observe(200, base)
	for i := 1; i <= 14; i++ {
		tr.Observe(10, base.Add(time.Duration(i)*tickInterval))
	}
	// Exactly at the threshold counts as sound, so quiet time resets.
	if got := tr.Observe(50, base.Add(15*tickInterval)); got != StopNone {
		t.Fatalf("at-threshold sample stopped the session: %d", got)
	}
	for i := 16; i <= 29; i++ {
		if got := tr.Observe(10, base.Add(time.Duration(i)*tickInterval)); got != StopNone {
			t.Fatalf("stopped early at sample %d: %d", i, got)
		}
	}
	if got := tr.Observe(10, base.Add(30*tickInterval)); got != StopSilence {
		t.Fatalf("expected StopSilence after fresh 1.5s of quiet, got %d", got)
	}
}

func TestTrackerQuietFor(t *testing.T) {
	tr := defaultTracker()
	base := time.Now()
	tr.Observe(200, base)
	tr.Observe(10, base.Add(tickInterval))
	tr.Observe(10, base.Add(2*tickInterval))
	if got := tr.QuietFor(); got != 2*tickInterval {
		t.Errorf("QuietFor() = %v, want %v", got, 2*tickInterval)
	}
	tr.Observe(200, base.Add(3*tickInterval))
	if got := tr.QuietFor(); got != 0 {
		t.Errorf("QuietFor() after speech = %v, want 0", got)
	}
}

func feedVoice(m *voiceMonitor, speech bool, n int) VoiceEvent {
	var last VoiceEvent
	for i := 0; i < n; i++ {
		last = m.Tick(speech)
	}
	return last
}

func TestVoiceWarnAfter8s(t *testing.T) {
	m := newVoiceMonitor()
	// 79 ticks of silence, no warning yet
	for i := 0; i < 79; i++ {
		if ev := m.Tick(false); ev != VoiceNone {
			t.Fatalf("unexpected event at tick %d: %d", i, ev)
		}
	}
	// 80th tick triggers warning (8s)
	if ev := m.Tick(false); ev != VoiceWarn {
		t.Fatalf("expected VoiceWarn at tick 80, got %d", ev)
	}
}

func TestVoiceWarnClearsOnSpeech(t *testing.T) {
	m := newVoiceMonitor()
	feedVoice(m, false, 80) // triggers warn

	// Sustained speech clears warning (need 25% of 80-tick window)
	for i := 0; i < 80; i++ {
		if ev := m.Tick(true); ev == VoiceWarnClear {
			return
		}
	}
	t.Fatal("expected VoiceWarnClear after speech")
}

func TestNoVoiceWarnDuringSpeech(t *testing.T) {
	m := newVoiceMonitor()
	for i := 0; i < 200; i++ {
		if ev := m.Tick(true); ev == VoiceWarn {
			t.Fatalf("unexpected warn during speech at tick %d", i)
		}
	}
}

func TestVoiceRepeatBeep(t *testing.T) {
	m := newVoiceMonitor()
	feedVoice(m, false, 80) // warn at tick 80
	// Next repeat at tick 80 + 80 = 160
	for i := 0; i < 100; i++ {
		if ev := m.Tick(false); ev == VoiceRepeat {
			return
		}
	}
	t.Fatal("expected VoiceRepeat after a sustained warning")
}

func TestVoiceAutoStopPriorityOverRepeat(t *testing.T) {
	m := newVoiceMonitor()
	for i := 0; i < 400; i++ {
		ev := m.Tick(false)
		if ev == VoiceAutoStop {
			return
		}
		if i >= 300 && ev == VoiceRepeat {
			t.Fatalf("VoiceRepeat fired at tick %d instead of VoiceAutoStop", i)
		}
	}
	t.Fatal("expected VoiceAutoStop within 400 ticks")
}

func TestVoiceAutoStopPreventedBySpeech(t *testing.T) {
	m := newVoiceMonitor()
	for i := 0; i < 500; i++ {
		speech := i%10 < 7
		if ev := m.Tick(speech); ev == VoiceAutoStop {
			t.Fatalf("unexpected auto-stop with speech at tick %d", i)
		}
	}
}

func TestVoiceWarnOnlyOnce(t *testing.T) {
	m := newVoiceMonitor()
	warns := 0
	for i := 0; i < 300; i++ {
		if ev := m.Tick(false); ev == VoiceWarn {
			warns++
		}
	}
	if warns != 1 {
		t.Fatalf("expected exactly 1 VoiceWarn, got %d", warns)
	}
}

func TestVoiceWarnStaysDuringNoise(t *testing.T) {
	m := newVoiceMonitor()
	feedVoice(m, false, 80) // triggers warn

	// Occasional VAD false positives (< 25% speech) should NOT clear
	for i := 0; i < 80; i++ {
		speech := i%10 == 0 // 10% speech, below clear threshold
		if ev := m.Tick(speech); ev == VoiceWarnClear {
			t.Fatalf("warning cleared by noise at tick %d", i)
		}
	}
}
