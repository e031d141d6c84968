package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrDeviceUnavailable = errors.New("audio: capture device unavailable")
	ErrStreamInterrupted = errors.New("audio: capture stream interrupted")
)

const (
	// A live device delivers buffers every few tens of milliseconds
	// even in total silence, so a long gap means the stream died.
	defaultWatchdog = 2 * time.Second

	// Smallest plausible delivery interval, used to size the chunk
	// queue for a full-length session.
	minDeliveryInterval = 10 * time.Millisecond
)

type RecorderConfig struct {
	SampleRate  int
	Channels    int
	MaxDuration time.Duration // sizes the chunk queue
	Watchdog    time.Duration // 0 means defaultWatchdog
}

// Recorder arms one capture session on a shared device. Every buffer
// the platform delivers is copied, timestamped, appended to the
// session recording and forwarded on the chunk channel. The channel
// holds an entire maximum-length session, so the capture thread never
// blocks on a slow consumer and no chunk is ever dropped.
//
// The device is borrowed, not owned: Stop clears the callback and
// stops the device but never closes it, so the same device serves
// consecutive sessions.
type Recorder struct {
	dev CaptureDevice
	cfg RecorderConfig

	chunks    chan Chunk
	kick      chan struct{}
	stopWatch chan struct{}
	watchOnce sync.Once

	mu      sync.Mutex
	rec     *Recording
	started bool
	frozen  bool
	stopped bool
	err     error
}

func NewRecorder(dev CaptureDevice, cfg RecorderConfig) *Recorder {
	if cfg.Watchdog <= 0 {
		cfg.Watchdog = defaultWatchdog
	}
	capacity := 256
	if n := int(cfg.MaxDuration/minDeliveryInterval) + 16; n > capacity {
		capacity = n
	}
	return &Recorder{
		dev:       dev,
		cfg:       cfg,
		chunks:    make(chan Chunk, capacity),
		kick:      make(chan struct{}, 1),
		stopWatch: make(chan struct{}),
		rec: &Recording{
			SampleRate: cfg.SampleRate,
			Channels:   cfg.Channels,
		},
	}
}

// Start arms the device and returns the live chunk stream. The stream
// is closed when the session stops, or early when the device dies
// mid-capture.
func (r *Recorder) Start() (<-chan Chunk, error) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return nil, errors.New("audio: recorder already started")
	}
	r.started = true
	r.mu.Unlock()

	r.dev.SetCallback(r.deliver)
	if err := r.dev.Start(); err != nil {
		r.dev.ClearCallback()
		r.mu.Lock()
		r.stopped = true
		r.err = fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		err := r.err
		r.mu.Unlock()
		close(r.chunks)
		return nil, err
	}
	go r.watch()
	return r.chunks, nil
}

// Freeze closes the recording to new data: buffers the device delivers
// after the call are discarded instead of appended. The device itself
// keeps running until Stop.
func (r *Recorder) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Stop disarms the device and returns the frozen recording. It is
// idempotent. After a mid-capture stream death it returns
// ErrStreamInterrupted with Truncated set; everything captured up to
// that point is still in the recording.
func (r *Recorder) Stop() (*Recording, error) {
	r.shutdown(nil)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rec, r.err
}

func (r *Recorder) deliver(data []byte, frames uint32) {
	r.mu.Lock()
	if r.stopped || r.frozen {
		r.mu.Unlock()
		return
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	ch := Chunk{Data: buf, Frames: int(frames), Time: time.Now()}
	r.rec.Chunks = append(r.rec.Chunks, ch)
	r.mu.Unlock()

	select {
	case r.kick <- struct{}{}:
	default:
	}
	r.chunks <- ch
}

func (r *Recorder) watch() {
	timer := time.NewTimer(r.cfg.Watchdog)
	defer timer.Stop()
	for {
		select {
		case <-r.stopWatch:
			return
		case <-r.kick:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(r.cfg.Watchdog)
		case <-timer.C:
			r.shutdown(ErrStreamInterrupted)
			return
		}
	}
}

// shutdown performs the single teardown: mark stopped so the callback
// drops further data, quiesce the device (its Stop blocks until no
// callback is running), then close the stream. cause is non-nil only
// on the watchdog path.
func (r *Recorder) shutdown(cause error) {
	r.mu.Lock()
	if !r.started || r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	if cause != nil {
		r.err = cause
		r.rec.Truncated = true
	}
	r.mu.Unlock()

	r.watchOnce.Do(func() { close(r.stopWatch) })
	r.dev.ClearCallback()
	r.dev.Stop()
	close(r.chunks)
}
