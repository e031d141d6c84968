package transcriber

import (
	"runtime"
	"time"
)

func (r *SessionResult) captureMemStats() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	r.MemoryAllocMB = float64(m.Alloc) / 1024 / 1024
	r.MemoryPeakMB = float64(m.TotalAlloc) / 1024 / 1024
}

type SessionConfig struct {
	Format   string // "wav"|"flac"
	Language string
	// MinRMS is the loudness floor below which a recording is
	// rejected locally as empty audio, without a network call.
	MinRMS float64
	// NetworkTimeout bounds the upload, measured from Close. 0 means
	// no deadline beyond the session context.
	NetworkTimeout time.Duration
}

type BatchStats struct {
	AudioLengthS     float64
	RawSizeKB        float64
	CompressedSizeKB float64
	CompressionPct   float64
	EncodeTimeMs     float64
	DNSTimeMs        float64
	TLSTimeMs        float64
	TTFBMs           float64
	TotalTimeMs      float64
	Retried          bool
	ConnReused       bool
	TLSProtocol      string
	Confidence       float64
}

type SessionResult struct {
	Text          string
	HasText       bool
	NoSpeech      bool   // service returned no words
	RateLimit     string // "remaining/limit" or empty
	MemoryAllocMB float64
	MemoryPeakMB  float64
	Batch         *BatchStats // non-nil for batch sessions
	Metrics       []string    // pre-formatted lines for the sink
}

// Session accumulates PCM for one recording and uploads it on Close.
// Feed never blocks on the network; all I/O happens in Close, whose
// error (if any) is a *Failure.
type Session interface {
	Feed(pcm []byte)
	Close() (SessionResult, error)
}
