package main

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"voxy/audio"
	"voxy/inject"
	"voxy/transcriber"
)

// guardedCapture fails the test if two sessions ever hold the device
// at the same time.
type guardedCapture struct {
	*audio.FakeCapture
	t      *testing.T
	active atomic.Int32
}

func (g *guardedCapture) Start() error {
	if g.active.Add(1) != 1 {
		g.t.Error("concurrent capture sessions on one device")
	}
	err := g.FakeCapture.Start()
	if err != nil {
		g.active.Add(-1)
	}
	return err
}

func (g *guardedCapture) Stop() {
	g.FakeCapture.Stop()
	g.active.Add(-1)
}

type ctrlFixture struct {
	c     *SessionController
	sink  *testSink
	inj   *inject.Fake
	cap   *guardedCapture
	trans atomic.Int32 // sessions started
}

func newCtrlFixture(t *testing.T, text string, trErr error, delay time.Duration) *ctrlFixture {
	f := &ctrlFixture{
		sink: &testSink{},
		inj:  &inject.Fake{},
		cap:  &guardedCapture{FakeCapture: audio.NewFakeCapture(genTone(300, 200), false), t: t},
	}
	f.c = newSessionController(controllerDeps{
		settings: testSettings,
		device:   func() audio.CaptureDevice { return f.cap },
		trans: func() transcriber.Transcriber {
			f.trans.Add(1)
			tr := transcriber.NewFake(text, trErr)
			tr.Delay = delay
			return tr
		},
		injector: func() inject.Injector { return f.inj },
		sink:     f.sink,
	})
	return f
}

func waitCtrlState(t *testing.T, c *SessionController, want SessionState) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("controller stuck in %v, want %v", c.State(), want)
}

func TestControllerTriggerLifecycle(t *testing.T) {
	f := newCtrlFixture(t, "from hotkey", nil, 0)

	f.c.Trigger()
	if got := f.c.State(); got != StateListening {
		t.Fatalf("state after first trigger = %v, want listening", got)
	}

	f.c.Trigger() // second press stops the capture
	waitCtrlState(t, f.c, StateIdle)

	if n := f.trans.Load(); n != 1 {
		t.Errorf("sessions started = %d, want 1", n)
	}
	if len(f.inj.Texts) != 1 || f.inj.Texts[0] != "from hotkey" {
		t.Errorf("injected = %v, want [from hotkey]", f.inj.Texts)
	}

	f.sink.mu.Lock()
	states := append([]SessionState(nil), f.sink.states...)
	f.sink.mu.Unlock()
	want := []SessionState{StateListening, StateProcessing, StateIdle}
	if len(states) != len(want) {
		t.Fatalf("state changes = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("state changes = %v, want %v", states, want)
		}
	}
}

func TestControllerIgnoresTriggerWhileProcessing(t *testing.T) {
	f := newCtrlFixture(t, "slow result", nil, 400*time.Millisecond)

	f.c.Trigger()
	waitCtrlState(t, f.c, StateListening)
	f.c.Trigger()
	waitCtrlState(t, f.c, StateProcessing)

	for i := 0; i < 5; i++ {
		f.c.Trigger()
	}
	if got := f.c.State(); got != StateProcessing {
		t.Fatalf("state = %v, triggers should be dropped while processing", got)
	}

	waitCtrlState(t, f.c, StateIdle)
	if n := f.trans.Load(); n != 1 {
		t.Errorf("sessions started = %d, want 1 (extra triggers must not queue)", n)
	}
}

func TestControllerErrorStateStartsNextSession(t *testing.T) {
	f := newCtrlFixture(t, "recovered", nil, 0)
	f.cap.FailStart = errors.New("mic unplugged")

	f.c.Trigger()
	waitCtrlState(t, f.c, StateIdle)
	if len(f.sink.errorList()) == 0 {
		t.Error("expected a session error to reach the sink")
	}

	// Device comes back; the failed session must not wedge the hotkey.
	f.cap.FailStart = nil
	f.c.Trigger()
	waitCtrlState(t, f.c, StateListening)
	f.c.Trigger()
	waitCtrlState(t, f.c, StateIdle)

	if len(f.inj.Texts) != 1 || f.inj.Texts[0] != "recovered" {
		t.Errorf("injected = %v, want [recovered]", f.inj.Texts)
	}
}

func TestControllerSettlesToIdleAfterAbort(t *testing.T) {
	f := newCtrlFixture(t, "", errors.New("service unavailable"), 0)

	f.c.Trigger()
	waitCtrlState(t, f.c, StateListening)
	f.c.Trigger()
	waitCtrlState(t, f.c, StateIdle)

	// The abort surfaces as a transient error, never a wedged one.
	want := []SessionState{StateListening, StateProcessing, StateError, StateIdle}
	got := f.sink.stateSeq()
	if len(got) != len(want) {
		t.Fatalf("state changes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("state changes = %v, want %v", got, want)
		}
	}
	if len(f.sink.errorList()) == 0 {
		t.Error("expected a session error to reach the sink")
	}
}

// Hammering the hotkey from several goroutines must never produce two
// concurrent sessions, and the controller must settle back to idle.
func TestControllerTriggerStorm(t *testing.T) {
	f := newCtrlFixture(t, "storm", nil, 0)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				f.c.Trigger()
				time.Sleep(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	// Wind down: keep stopping until the controller is quiet.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		switch f.c.State() {
		case StateIdle, StateError:
			if f.cap.active.Load() != 0 {
				t.Fatal("device still held after controller went quiet")
			}
			return
		case StateListening:
			f.c.Trigger()
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("controller never settled, state %v", f.c.State())
}

func TestControllerShutdown(t *testing.T) {
	t.Run("waits for delivery", func(t *testing.T) {
		f := newCtrlFixture(t, "flushed on quit", nil, 200*time.Millisecond)
		f.c.Trigger()
		waitCtrlState(t, f.c, StateListening)

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := f.c.Shutdown(ctx); err != nil {
			t.Fatalf("Shutdown: %v", err)
		}
		if len(f.inj.Texts) != 1 || f.inj.Texts[0] != "flushed on quit" {
			t.Errorf("injected = %v, want [flushed on quit]", f.inj.Texts)
		}
	})

	t.Run("no session is a no-op", func(t *testing.T) {
		f := newCtrlFixture(t, "", nil, 0)
		if err := f.c.Shutdown(context.Background()); err != nil {
			t.Fatalf("Shutdown: %v", err)
		}
	})

	t.Run("context bounds the wait", func(t *testing.T) {
		f := newCtrlFixture(t, "too slow", nil, 2*time.Second)
		f.c.Trigger()
		waitCtrlState(t, f.c, StateListening)
		f.c.Trigger()
		waitCtrlState(t, f.c, StateProcessing)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		if err := f.c.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("Shutdown = %v, want deadline exceeded", err)
		}
	})

	t.Run("cancels a stalled upload", func(t *testing.T) {
		f := newCtrlFixture(t, "late text", nil, 2*time.Second)
		f.c.Trigger()
		waitCtrlState(t, f.c, StateListening)
		f.c.Trigger()
		waitCtrlState(t, f.c, StateProcessing)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		if err := f.c.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("Shutdown = %v, want deadline exceeded", err)
		}

		// The cancelled request aborts well before its 2s delay, and
		// nothing it would have returned may reach the injector.
		waitCtrlState(t, f.c, StateIdle)
		time.Sleep(150 * time.Millisecond)
		if len(f.inj.Texts) != 0 {
			t.Errorf("injected after shutdown = %v, want none", f.inj.Texts)
		}
	})
}
