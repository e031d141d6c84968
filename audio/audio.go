package audio

import (
	"strings"
	"time"
)

const WAVHeaderSize = 44

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth reports whether a device name looks like a Bluetooth
// headset. Their hands-free profile records at phone-call quality, so
// they are deprioritized when picking a default input.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
	// Gain is a software amplification factor applied to captured
	// samples, clipped to int16 range. 0 or 1 means unamplified.
	Gain int32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
}

// Chunk is one capture buffer: little-endian signed 16-bit mono PCM,
// the frame count, and the wall-clock time it was delivered. Chunks
// are immutable once produced.
type Chunk struct {
	Data   []byte
	Frames int
	Time   time.Time
}

// Recording is the accumulated audio of one capture session. It is
// append-only while the session is armed and frozen by Recorder.Stop.
// Truncated marks a recording cut short by a dead stream rather than
// a stop decision.
type Recording struct {
	Chunks     []Chunk
	SampleRate int
	Channels   int
	Truncated  bool
}

// Frames returns the total number of sample frames recorded.
func (r *Recording) Frames() int {
	n := 0
	for _, c := range r.Chunks {
		n += c.Frames
	}
	return n
}

// Duration returns the recorded length derived from the frame count.
func (r *Recording) Duration() time.Duration {
	if r.SampleRate == 0 {
		return 0
	}
	return time.Duration(r.Frames()) * time.Second / time.Duration(r.SampleRate)
}

// Empty reports whether nothing was captured.
func (r *Recording) Empty() bool {
	return r.Frames() == 0
}
