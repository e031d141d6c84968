package audio

import (
	"os"
	"sync"
	"time"

	"voxy/encoder"
)

const (
	fakeFrameSize     = 1024
	fakeBytesPerFrame = 2 // 16-bit mono
)

// FakeContext serves captures that replay canned PCM instead of
// touching a microphone. Used by --test-mode and package tests.
type FakeContext struct {
	pcm      []byte
	realtime bool
}

// NewFakeContext reads a WAV file and strips its header; the payload
// becomes the audio every capture from this context will deliver.
// realtime paces delivery at the nominal sample rate, otherwise the
// whole payload is fed synchronously on Start.
func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	if len(data) > WAVHeaderSize {
		data = data[WAVHeaderSize:]
	}
	return &FakeContext{pcm: data, realtime: realtime}, nil
}

// NewFakeContextFromPCM wraps raw PCM already in memory.
func NewFakeContextFromPCM(pcm []byte, realtime bool) *FakeContext {
	return &FakeContext{pcm: pcm, realtime: realtime}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) { return nil, nil }
func (f *FakeContext) Close()                         {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	return NewFakeCapture(f.pcm, f.realtime), nil
}

type FakeCapture struct {
	pcm       []byte
	realtime  bool
	audioDone chan struct{}

	// FailStart, when set, makes Start return that error. Simulates
	// an unopenable device.
	FailStart error

	mu       sync.Mutex
	cb       DataCallback
	stalled  bool
	stopCh   chan struct{}
	feedDone chan struct{}
}

func NewFakeCapture(pcm []byte, realtime bool) *FakeCapture {
	return &FakeCapture{pcm: pcm, realtime: realtime, audioDone: make(chan struct{})}
}

// AudioDone is closed once the canned audio has been fully delivered
// and only silence follows.
func (f *FakeCapture) AudioDone() <-chan struct{} { return f.audioDone }

// Stall freezes delivery without stopping the device, simulating a
// stream that died mid-capture.
func (f *FakeCapture) Stall() {
	f.mu.Lock()
	f.stalled = true
	f.mu.Unlock()
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

// loadCallback returns the callback, or nil when feeding is stalled.
func (f *FakeCapture) loadCallback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stalled {
		return nil
	}
	return f.cb
}

func (f *FakeCapture) feedChunk(cb DataCallback, pos, chunkBytes int) int {
	end := min(pos+chunkBytes, len(f.pcm))
	chunk := make([]byte, end-pos)
	copy(chunk, f.pcm[pos:end])
	cb(chunk, uint32(len(chunk)/fakeBytesPerFrame))
	return end
}

func (f *FakeCapture) Start() error {
	if f.FailStart != nil {
		return f.FailStart
	}

	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	// audioDone is NOT recreated here -- callers may already be waiting on it.
	// It's reset in Stop() for replay.

	chunkBytes := fakeFrameSize * fakeBytesPerFrame

	if !f.realtime {
		if cb := f.loadCallback(); cb != nil {
			for pos := 0; pos < len(f.pcm); {
				pos = f.feedChunk(cb, pos, chunkBytes)
			}
		}
		close(f.audioDone)

		go func() {
			defer close(f.feedDone)
			silence := make([]byte, chunkBytes)
			for {
				select {
				case <-f.stopCh:
					return
				case <-time.After(time.Millisecond):
				}
				if cb := f.loadCallback(); cb != nil {
					cb(silence, fakeFrameSize)
				}
			}
		}()
	} else {
		interval := time.Duration(fakeFrameSize) * time.Second / time.Duration(encoder.SampleRate)
		go func() {
			defer close(f.feedDone)
			pos := 0
			silence := make([]byte, chunkBytes)
			audioFinished := false

			for {
				select {
				case <-f.stopCh:
					return
				default:
				}

				cb := f.loadCallback()
				if cb == nil {
					time.Sleep(time.Millisecond)
					continue
				}

				if pos < len(f.pcm) {
					pos = f.feedChunk(cb, pos, chunkBytes)
				} else {
					if !audioFinished {
						audioFinished = true
						close(f.audioDone)
					}
					cb(silence, fakeFrameSize)
				}

				select {
				case <-f.stopCh:
					return
				case <-time.After(interval):
				}
			}
		}()
	}

	return nil
}

func (f *FakeCapture) Stop() {
	if f.stopCh == nil {
		return
	}
	select {
	case <-f.stopCh:
	default:
		close(f.stopCh)
	}
	if f.feedDone != nil {
		<-f.feedDone
	}
	f.audioDone = make(chan struct{}) // reset for replay
}

func (f *FakeCapture) Close() {}
