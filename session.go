package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"voxy/audio"
	"voxy/beep"
	"voxy/encoder"
	"voxy/inject"
	"voxy/log"
	"voxy/transcriber"
)

// clipboardRestoreDelay gives the focused app time to consume the
// pasted text before the previous clipboard contents come back.
const clipboardRestoreDelay = 600 * time.Millisecond

// SessionPhase is where a single dictation session is in its life.
// A session passes through the phases in order and ends in exactly one
// of PhaseCompleted or PhaseAborted.
type SessionPhase int

const (
	PhaseCapturing SessionPhase = iota
	PhaseFinalizing
	PhaseTranscribing
	PhaseDelivering
	PhaseCompleted
	PhaseAborted
)

func (p SessionPhase) String() string {
	switch p {
	case PhaseCapturing:
		return "capturing"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseTranscribing:
		return "transcribing"
	case PhaseDelivering:
		return "delivering"
	case PhaseCompleted:
		return "completed"
	case PhaseAborted:
		return "aborted"
	}
	return "unknown"
}

// dictationSession drives one recording from hotkey press to injected
// text: capture with live level feedback and silence auto-stop, then
// freeze the recording, upload it, and deliver the transcript.
//
// The capture device is borrowed for the duration of the session. The
// transcriber session is created up front so the connection warm-up
// overlaps with the user speaking.
type dictationSession struct {
	id   uuid.UUID
	cfg  Settings
	dev  audio.CaptureDevice
	tr   transcriber.Transcriber
	inj  inject.Injector
	sink EventSink

	// onPhase, when set, is told about every phase transition before
	// the sink is. The controller uses it to track session state.
	onPhase func(SessionPhase)

	// watchdog overrides the capture watchdog; tests shorten it.
	watchdog time.Duration

	// ctx covers the whole session, including the transcription
	// upload. Cancelling it tears down an in-flight request.
	ctx    context.Context
	cancel context.CancelFunc

	stopOnce sync.Once
	stopReq  chan struct{}
	done     chan struct{}

	mu    sync.Mutex
	phase SessionPhase
}

func newDictationSession(cfg Settings, dev audio.CaptureDevice, tr transcriber.Transcriber, inj inject.Injector, sink EventSink, onPhase func(SessionPhase)) *dictationSession {
	if sink == nil {
		sink = nopSink{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &dictationSession{
		id:      uuid.New(),
		cfg:     cfg,
		dev:     dev,
		tr:      tr,
		inj:     inj,
		sink:    sink,
		onPhase: onPhase,
		ctx:     ctx,
		cancel:  cancel,
		stopReq: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// RequestStop asks the session to stop capturing and move on to
// transcription. Safe to call from any goroutine, any number of times,
// in any phase; outside of capture it has no effect.
func (s *dictationSession) RequestStop() {
	s.stopOnce.Do(func() { close(s.stopReq) })
}

// Cancel aborts the session outright: capture stops and the session
// context is cancelled, which kills any transcription request still in
// flight. Used by hard shutdown when the graceful wait runs out.
func (s *dictationSession) Cancel() {
	s.RequestStop()
	s.cancel()
}

// Done is closed once the session has reached its terminal phase.
func (s *dictationSession) Done() <-chan struct{} { return s.done }

// Phase reports where the session currently is.
func (s *dictationSession) Phase() SessionPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *dictationSession) setPhase(p SessionPhase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
	if s.onPhase != nil {
		s.onPhase(p)
	}
	s.sink.PhaseChange(p)
}

func (s *dictationSession) abort(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Errorf("session %s: %s", s.shortID(), msg)
	s.sink.SessionError(msg)
	beep.PlayError()
	s.setPhase(PhaseAborted)
}

func (s *dictationSession) shortID() string { return s.id.String()[:8] }

// run executes the whole session and returns when it has completed or
// aborted. Called on its own goroutine by the controller.
func (s *dictationSession) run() {
	defer close(s.done)
	defer s.cancel()

	log.Info("session " + s.shortID() + " start")
	s.setPhase(PhaseCapturing)

	// Created before the device starts so the TLS handshake happens
	// while the user is still talking.
	tsess, err := s.tr.NewSession(s.ctx, transcriber.SessionConfig{
		Format:         s.cfg.Format,
		Language:       s.cfg.Language,
		MinRMS:         s.cfg.SilenceThreshold,
		NetworkTimeout: s.cfg.NetworkTimeout,
	})
	if err != nil {
		s.abort("transcriber: %v", err)
		return
	}

	// Snapshot the clipboard early; by the time the transcript is
	// ready to paste the read has long finished.
	var clipCh chan string
	if s.inj != nil && s.inj.Name() == "paste" {
		clipCh = make(chan string, 1)
		go func() {
			prev, _ := inject.Read()
			clipCh <- prev
		}()
	}

	vp, err := newVADProcessor()
	if err != nil {
		tsess.Close()
		s.abort("VAD init: %v", err)
		return
	}

	rec := audio.NewRecorder(s.dev, audio.RecorderConfig{
		SampleRate:  encoder.SampleRate,
		Channels:    encoder.Channels,
		MaxDuration: s.cfg.MaxSession,
		Watchdog:    s.watchdog,
	})
	chunks, err := rec.Start()
	if err != nil {
		tsess.Close()
		s.abort("microphone: %v", err)
		return
	}
	go beep.PlayStart()

	skipInject := false
	tracker := newSilenceTracker(s.cfg.SilenceThreshold, s.cfg.SilenceTimeout, s.cfg.MaxSession)
	monitor := newVoiceMonitor()
	start := time.Now()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

capture:
	for {
		select {
		case ch, ok := <-chunks:
			if !ok {
				// Stream died; the recorder has already shut down.
				break capture
			}
			vp.Process(ch.Data)
			rms := audio.RMS(ch.Data)
			s.sink.AudioLevel(audio.FeedbackLevel(rms))
			switch tracker.Observe(rms, ch.Time) {
			case StopSilence:
				log.Info("silence_stop")
				break capture
			case StopSession:
				log.Info("session_limit_stop")
				break capture
			}
		case <-s.stopReq:
			log.Info("recording_stop")
			break capture
		case <-ticker.C:
			s.sink.RecordingTick(time.Since(start).Seconds())
			switch monitor.Tick(vp.HasSpeechTick()) {
			case VoiceWarn:
				log.Info("no_voice_warning")
				s.sink.NoVoiceWarning()
				beep.PlayError()
			case VoiceWarnClear:
				s.sink.NoVoiceCleared()
			case VoiceRepeat:
				log.Info("no_voice_repeat")
				s.sink.NoVoiceWarning()
				beep.PlayError()
			case VoiceAutoStop:
				// Half a minute of noise with nobody speaking: stop,
				// but keep whatever text comes back away from the
				// focused window.
				log.Info("no_voice_auto_stop")
				skipInject = true
				break capture
			}
		}
	}

	// The recording ends at the stop decision. Buffers the device
	// delivers while it winds down must not leak into the transcript.
	rec.Freeze()

	s.setPhase(PhaseFinalizing)
	go beep.PlayEnd()

	recording, recErr := rec.Stop()
	if recErr != nil && recording.Empty() {
		tsess.Close()
		s.abort("capture failed: %v", recErr)
		return
	}
	if recErr != nil {
		log.Warnf("capture interrupted, keeping %.1fs of audio", recording.Duration().Seconds())
	}

	s.setPhase(PhaseTranscribing)
	for _, ch := range recording.Chunks {
		tsess.Feed(ch.Data)
	}
	result, closeErr := tsess.Close()
	if closeErr != nil {
		s.abort("transcription: %v", closeErr)
		return
	}

	s.setPhase(PhaseDelivering)
	injected := false
	if s.inj != nil && result.HasText && !skipInject {
		if err := s.inj.Inject(result.Text); err != nil {
			log.Errorf("inject (%s): %v", s.inj.Name(), err)
		} else {
			injected = true
		}
	}
	if clipCh != nil && !skipInject {
		if prev := <-clipCh; prev != "" {
			go func() {
				time.Sleep(clipboardRestoreDelay)
				inject.Copy(prev)
			}()
		}
	}

	s.sink.Transcription(result.Text, result.Metrics, injected, result.NoSpeech)

	if result.RateLimit != "" && result.RateLimit != "?/?" {
		log.Info("rate_limit: " + result.RateLimit)
		s.sink.RateLimit("requests: " + result.RateLimit + " remaining")
	}

	if result.NoSpeech {
		log.Info("no_speech")
	} else {
		log.TranscriptionText(result.Text)
	}

	if result.Batch != nil {
		bs := result.Batch
		recordTranscription(result)
		log.TranscriptionMetrics(log.Metrics{
			AudioLengthS:     bs.AudioLengthS,
			RawSizeKB:        bs.RawSizeKB,
			CompressedSizeKB: bs.CompressedSizeKB,
			CompressionPct:   bs.CompressionPct,
			EncodeTimeMs:     bs.EncodeTimeMs,
			DNSTimeMs:        bs.DNSTimeMs,
			TLSTimeMs:        bs.TLSTimeMs,
			TTFBMs:           bs.TTFBMs,
			TotalTimeMs:      bs.TotalTimeMs,
			MemoryAllocMB:    result.MemoryAllocMB,
			MemoryPeakMB:     result.MemoryPeakMB,
		}, s.cfg.Format, s.tr.Name(), bs.ConnReused, bs.Retried, bs.TLSProtocol)
		log.Confidence(bs.Confidence)
	}

	log.Info("session " + s.shortID() + " done")
	s.setPhase(PhaseCompleted)
}
