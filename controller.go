package main

import (
	"context"
	"sync"

	"voxy/audio"
	"voxy/inject"
	"voxy/log"
	"voxy/transcriber"
)

// SessionState is the app-level state the surfaces display. It is
// coarser than SessionPhase: everything between the end of capture and
// the terminal phase shows as Processing.
type SessionState int

const (
	StateIdle SessionState = iota
	StateListening
	StateProcessing
	StateError
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateError:
		return "error"
	}
	return "unknown"
}

// controllerDeps supplies the controller with everything a new session
// needs. The funcs are called at session start, so the tray can swap
// the device, provider or inject mode between sessions without
// restarting anything.
//
// StateChange may be emitted with the controller lock held; sink
// implementations must not call back into the controller.
type controllerDeps struct {
	settings func() Settings
	device   func() audio.CaptureDevice
	trans    func() transcriber.Transcriber
	injector func() inject.Injector
	sink     EventSink
}

// SessionController serializes dictation sessions behind the hotkey.
// One trigger starts a session, the next stops it; triggers that land
// while a transcript is still in flight are dropped rather than queued,
// so there is never more than one live session.
type SessionController struct {
	deps controllerDeps

	mu      sync.Mutex
	state   SessionState
	current *dictationSession
}

func newSessionController(deps controllerDeps) *SessionController {
	if deps.sink == nil {
		deps.sink = nopSink{}
	}
	return &SessionController{deps: deps, state: StateIdle}
}

// State reports the current app-level state.
func (c *SessionController) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Trigger is the single entry point for the hotkey (and the tray menu
// item). Idle starts a session, Listening stops the current one, and
// Processing ignores the press. Errors are transient: an aborted
// session settles back to Idle, so the next press always starts fresh.
func (c *SessionController) Trigger() {
	c.mu.Lock()
	switch c.state {
	case StateListening:
		cur := c.current
		c.mu.Unlock()
		if cur != nil {
			cur.RequestStop()
		}
		return
	case StateProcessing:
		c.mu.Unlock()
		log.Info("trigger_ignored_busy")
		return
	}

	dev := c.deps.device()
	if dev == nil {
		c.setStateLocked(StateError)
		c.setStateLocked(StateIdle)
		c.mu.Unlock()
		c.deps.sink.SessionError("no capture device available")
		return
	}

	s := newDictationSession(
		c.deps.settings(),
		dev,
		c.deps.trans(),
		c.deps.injector(),
		c.deps.sink,
		c.onPhase,
	)
	c.current = s
	c.setStateLocked(StateListening)
	c.mu.Unlock()

	go s.run()
}

// onPhase folds session phases into app states. Runs on the session
// goroutine.
func (c *SessionController) onPhase(p SessionPhase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch p {
	case PhaseCapturing:
		c.setStateLocked(StateListening)
	case PhaseFinalizing, PhaseTranscribing, PhaseDelivering:
		c.setStateLocked(StateProcessing)
	case PhaseCompleted:
		c.current = nil
		c.setStateLocked(StateIdle)
	case PhaseAborted:
		// Surfaces get the error flash plus the SessionError detail,
		// then the controller is ready for the next press.
		c.current = nil
		c.setStateLocked(StateError)
		c.setStateLocked(StateIdle)
	}
}

func (c *SessionController) setStateLocked(state SessionState) {
	if c.state == state {
		return
	}
	c.state = state
	c.deps.sink.StateChange(state)
}

// Shutdown stops any live session and waits for it to finish
// delivering, so a transcript in flight is not lost on quit. When ctx
// runs out before that happens the session is cancelled outright,
// aborting any transcription request still on the wire.
func (c *SessionController) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()
	if cur == nil {
		return nil
	}
	cur.RequestStop()
	select {
	case <-cur.Done():
		return nil
	case <-ctx.Done():
		cur.Cancel()
		return ctx.Err()
	}
}
