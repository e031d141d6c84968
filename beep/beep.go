// Package beep plays short audio cues around a dictation session:
// a high tick when capture starts, a lower tick when it stops, and a
// double-beep on failure. Cues are fire-and-forget and never block.
package beep

var disabled bool

// Disable silences all cues for the lifetime of the process.
func Disable() { disabled = true }

const (
	sampleRate = 44100

	// start: high and short, "listening now"
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// end: a step lower, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// error: low double-beep, hard to mistake for the others
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)
