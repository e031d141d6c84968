package audio

import (
	"encoding/binary"
	"math"
)

// maxExpectedRMS is the loud-speech ceiling used to scale levels for
// display. Normal dictation peaks well below full scale; 700 maps a
// loud voice close to 1.0 on the feedback meter.
const maxExpectedRMS = 700.0

// RMS returns the root-mean-square amplitude of little-endian signed
// 16-bit PCM, in raw sample units (0..32767). An empty buffer is 0.
// A trailing odd byte is ignored.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n*2; i += 2 {
		s := int16(binary.LittleEndian.Uint16(pcm[i:]))
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(n))
}

// FeedbackLevel scales a raw RMS value into [0,1] for level meters.
func FeedbackLevel(rms float64) float64 {
	if rms <= 0 {
		return 0
	}
	level := rms / maxExpectedRMS
	if level > 1 {
		return 1
	}
	return level
}
