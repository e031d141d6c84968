package main

import (
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"voxy/audio"
	"voxy/beep"
	"voxy/inject"
	"voxy/transcriber"
)

func TestMain(m *testing.M) {
	beep.Disable()
	os.Exit(m.Run())
}

type sinkTranscript struct {
	text     string
	injected bool
	noSpeech bool
}

// testSink records every event a session emits.
type testSink struct {
	mu          sync.Mutex
	phases      []SessionPhase
	states      []SessionState
	errors      []string
	transcripts []sinkTranscript
	warnings    int
	levels      int
	ticks       int
}

func (s *testSink) StateChange(state SessionState) {
	s.mu.Lock()
	s.states = append(s.states, state)
	s.mu.Unlock()
}

func (s *testSink) PhaseChange(phase SessionPhase) {
	s.mu.Lock()
	s.phases = append(s.phases, phase)
	s.mu.Unlock()
}

func (s *testSink) RecordingTick(float64) {
	s.mu.Lock()
	s.ticks++
	s.mu.Unlock()
}

func (s *testSink) AudioLevel(float64) {
	s.mu.Lock()
	s.levels++
	s.mu.Unlock()
}

func (s *testSink) NoVoiceWarning() {
	s.mu.Lock()
	s.warnings++
	s.mu.Unlock()
}

func (s *testSink) NoVoiceCleared() {}

func (s *testSink) Transcription(text string, _ []string, injected bool, noSpeech bool) {
	s.mu.Lock()
	s.transcripts = append(s.transcripts, sinkTranscript{text: text, injected: injected, noSpeech: noSpeech})
	s.mu.Unlock()
}

func (s *testSink) SessionError(msg string) {
	s.mu.Lock()
	s.errors = append(s.errors, msg)
	s.mu.Unlock()
}

func (s *testSink) ModeLine(string)   {}
func (s *testSink) DeviceLine(string) {}
func (s *testSink) RateLimit(string)  {}

func (s *testSink) phaseSeq() []SessionPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SessionPhase(nil), s.phases...)
}

func (s *testSink) stateSeq() []SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SessionState(nil), s.states...)
}

func (s *testSink) errorList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.errors...)
}

func (s *testSink) transcriptList() []sinkTranscript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sinkTranscript(nil), s.transcripts...)
}

func testSettings() Settings {
	return Settings{
		Provider:         "fake",
		Language:         "en",
		InjectMode:       "paste",
		Format:           "wav",
		SilenceThreshold: 50,
		SilenceTimeout:   200 * time.Millisecond,
		MaxSession:       time.Minute,
		NetworkTimeout:   5 * time.Second,
	}
}

func waitDone(t *testing.T, s *dictationSession) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
	}
}

func assertPhases(t *testing.T, sink *testSink, want ...SessionPhase) {
	t.Helper()
	got := sink.phaseSeq()
	if len(got) != len(want) {
		t.Fatalf("phases = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("phases = %v, want %v", got, want)
		}
	}
}

func TestSessionHappyPath(t *testing.T) {
	cap := audio.NewFakeCapture(genTone(300, 500), false)
	tr := transcriber.NewFake("hello world", nil)
	inj := &inject.Fake{}
	sink := &testSink{}

	s := newDictationSession(testSettings(), cap, tr, inj, sink, nil)
	go s.run()

	<-cap.AudioDone()
	s.RequestStop()
	waitDone(t, s)

	if got := s.Phase(); got != PhaseCompleted {
		t.Fatalf("Phase = %v, want completed", got)
	}
	assertPhases(t, sink, PhaseCapturing, PhaseFinalizing, PhaseTranscribing, PhaseDelivering, PhaseCompleted)

	if len(inj.Texts) != 1 || inj.Texts[0] != "hello world" {
		t.Errorf("injected texts = %v, want [hello world]", inj.Texts)
	}
	ts := sink.transcriptList()
	if len(ts) != 1 || ts[0].text != "hello world" || !ts[0].injected || ts[0].noSpeech {
		t.Errorf("transcripts = %+v", ts)
	}
	if errs := sink.errorList(); len(errs) != 0 {
		t.Errorf("unexpected session errors: %v", errs)
	}
	sink.mu.Lock()
	levels := sink.levels
	sink.mu.Unlock()
	if levels == 0 {
		t.Error("no audio level feedback during capture")
	}
}

// The session must end on its own once the speaker goes quiet, without
// any stop request.
func TestSessionSilenceAutoStop(t *testing.T) {
	cap := audio.NewFakeCapture(genTone(300, 300), false)
	tr := transcriber.NewFake("auto stopped", nil)
	inj := &inject.Fake{}
	sink := &testSink{}

	s := newDictationSession(testSettings(), cap, tr, inj, sink, nil)
	go s.run()
	waitDone(t, s)

	if got := s.Phase(); got != PhaseCompleted {
		t.Fatalf("Phase = %v, want completed", got)
	}
	if len(inj.Texts) != 1 {
		t.Errorf("injected texts = %v, want one entry", inj.Texts)
	}
}

func TestSessionDeviceUnavailable(t *testing.T) {
	cap := audio.NewFakeCapture(nil, false)
	cap.FailStart = errors.New("mic busy")
	tr := transcriber.NewFake("never", nil)
	inj := &inject.Fake{}
	sink := &testSink{}

	s := newDictationSession(testSettings(), cap, tr, inj, sink, nil)
	go s.run()
	waitDone(t, s)

	if got := s.Phase(); got != PhaseAborted {
		t.Fatalf("Phase = %v, want aborted", got)
	}
	assertPhases(t, sink, PhaseCapturing, PhaseAborted)
	if len(inj.Texts) != 0 {
		t.Errorf("nothing should be injected, got %v", inj.Texts)
	}
	errs := sink.errorList()
	if len(errs) != 1 {
		t.Fatalf("errors = %v, want one", errs)
	}
}

// A stream that dies mid-capture still delivers whatever was recorded
// before the interruption.
func TestSessionStreamInterruptedKeepsAudio(t *testing.T) {
	cap := audio.NewFakeCapture(genTone(300, 2000), true)
	tr := transcriber.NewFake("partial text", nil)
	inj := &inject.Fake{}
	sink := &testSink{}

	s := newDictationSession(testSettings(), cap, tr, inj, sink, nil)
	s.watchdog = 200 * time.Millisecond
	go s.run()

	time.Sleep(150 * time.Millisecond)
	cap.Stall()
	waitDone(t, s)

	if got := s.Phase(); got != PhaseCompleted {
		t.Fatalf("Phase = %v, want completed", got)
	}
	if len(inj.Texts) != 1 || inj.Texts[0] != "partial text" {
		t.Errorf("injected texts = %v, want [partial text]", inj.Texts)
	}
}

// A stream that dies before delivering anything has nothing to
// transcribe and aborts.
func TestSessionInterruptedEmptyAborts(t *testing.T) {
	cap := audio.NewFakeCapture(genTone(300, 500), true)
	cap.Stall()
	tr := transcriber.NewFake("never", nil)
	inj := &inject.Fake{}
	sink := &testSink{}

	s := newDictationSession(testSettings(), cap, tr, inj, sink, nil)
	s.watchdog = 150 * time.Millisecond
	go s.run()
	waitDone(t, s)

	if got := s.Phase(); got != PhaseAborted {
		t.Fatalf("Phase = %v, want aborted", got)
	}
	assertPhases(t, sink, PhaseCapturing, PhaseFinalizing, PhaseAborted)
	if len(inj.Texts) != 0 {
		t.Errorf("nothing should be injected, got %v", inj.Texts)
	}
}

func TestSessionTranscriptionFailureAborts(t *testing.T) {
	failure := &transcriber.Failure{Kind: transcriber.FailureService, Err: errors.New("401 unauthorized")}
	cap := audio.NewFakeCapture(genTone(300, 400), false)
	tr := transcriber.NewFake("", failure)
	inj := &inject.Fake{}
	sink := &testSink{}

	s := newDictationSession(testSettings(), cap, tr, inj, sink, nil)
	go s.run()
	<-cap.AudioDone()
	s.RequestStop()
	waitDone(t, s)

	if got := s.Phase(); got != PhaseAborted {
		t.Fatalf("Phase = %v, want aborted", got)
	}
	assertPhases(t, sink, PhaseCapturing, PhaseFinalizing, PhaseTranscribing, PhaseAborted)
	if len(inj.Texts) != 0 {
		t.Errorf("no text should reach the injector, got %v", inj.Texts)
	}
	if len(sink.transcriptList()) != 0 {
		t.Error("no transcript event expected on failure")
	}
}

func TestSessionEmptyAudioAborts(t *testing.T) {
	failure := &transcriber.Failure{Kind: transcriber.FailureEmptyAudio, Err: errors.New("recording too short")}
	cap := audio.NewFakeCapture(genSilence(100), false)
	tr := transcriber.NewFake("", failure)
	inj := &inject.Fake{}
	sink := &testSink{}

	s := newDictationSession(testSettings(), cap, tr, inj, sink, nil)
	go s.run()
	<-cap.AudioDone()
	s.RequestStop()
	waitDone(t, s)

	if got := s.Phase(); got != PhaseAborted {
		t.Fatalf("Phase = %v, want aborted", got)
	}
	if len(inj.Texts) != 0 {
		t.Errorf("nothing should be injected, got %v", inj.Texts)
	}
}

// Injection failing must not lose the transcript: the session still
// completes and reports the text, just not as injected.
func TestSessionInjectorFailureStillCompletes(t *testing.T) {
	cap := audio.NewFakeCapture(genTone(300, 400), false)
	tr := transcriber.NewFake("kept text", nil)
	inj := &inject.Fake{Err: errors.New("uinput denied")}
	sink := &testSink{}

	s := newDictationSession(testSettings(), cap, tr, inj, sink, nil)
	go s.run()
	<-cap.AudioDone()
	s.RequestStop()
	waitDone(t, s)

	if got := s.Phase(); got != PhaseCompleted {
		t.Fatalf("Phase = %v, want completed", got)
	}
	ts := sink.transcriptList()
	if len(ts) != 1 || ts[0].text != "kept text" || ts[0].injected {
		t.Errorf("transcripts = %+v, want kept text with injected=false", ts)
	}
	if errs := sink.errorList(); len(errs) != 0 {
		t.Errorf("inject failure must not raise a session error, got %v", errs)
	}
}

func TestSessionRequestStopIdempotent(t *testing.T) {
	cap := audio.NewFakeCapture(genTone(300, 300), false)
	tr := transcriber.NewFake("once", nil)
	inj := &inject.Fake{}
	sink := &testSink{}

	s := newDictationSession(testSettings(), cap, tr, inj, sink, nil)
	go s.run()
	<-cap.AudioDone()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RequestStop()
		}()
	}
	wg.Wait()
	waitDone(t, s)
	s.RequestStop() // after completion: still a no-op

	if got := s.Phase(); got != PhaseCompleted {
		t.Fatalf("Phase = %v, want completed", got)
	}
	if len(inj.Texts) != 1 {
		t.Errorf("injected texts = %v, want exactly one", inj.Texts)
	}
}
