package encoder

import "time"

// Capture format shared by every encoder: transcription services want
// 16 kHz mono, and capturing at that rate keeps uploads small.
const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

// Encoder turns blocks of int16 PCM into a finished audio container.
// EncodeBlock may be called from a dedicated goroutine; Bytes is valid
// only after Close.
type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
	AddEncodeTime(d time.Duration)
	EncodeTime() time.Duration
}
