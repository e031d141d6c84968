//go:build linux

package beep

import (
	"math"
	"sync"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

var (
	startCue []int16
	endCue   []int16
	errorCue []int16
	cueOnce  sync.Once
)

func initSound() {
	startCue = synthTick(sampleRate, startFreq, 0.2, startVolume, startDecay)
	endCue = synthTick(sampleRate, endFreq, 0.2, endVolume, endDecay)
	errorCue = synthDoubleBeep(sampleRate, errorFreq, 0.08, 0.05, errorVolume, errorDecay)
}

// synthTick renders a decaying sine burst as interleaved stereo.
func synthTick(sampleRate int, freq, duration, volume, decay float64) []int16 {
	n := int(float64(sampleRate) * duration)
	samples := make([]int16, n*2)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sampleRate)
		envelope := math.Exp(-t * decay)
		s := int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
		samples[i*2] = s
		samples[i*2+1] = s
	}
	return samples
}

func synthDoubleBeep(sampleRate int, freq, beepDur, gapDur, volume, decay float64) []int16 {
	burst := synthTick(sampleRate, freq, beepDur, volume, decay)
	gap := make([]int16, int(float64(sampleRate)*gapDur)*2)
	out := make([]int16, 0, len(burst)*2+len(gap))
	out = append(out, burst...)
	out = append(out, gap...)
	out = append(out, burst...)
	return out
}

// playCue opens a short-lived PulseAudio playback stream, drains the cue
// and tears the stream down. Any failure is silent; cues are best-effort.
func playCue(samples []int16) {
	if len(samples) == 0 {
		return
	}
	c, err := pulse.NewClient()
	if err != nil {
		return
	}
	defer c.Close()

	pos := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if pos >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[pos:])
		pos += n
		return n, nil
	})
	stream, err := c.NewPlayback(reader,
		pulse.PlaybackStereo,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm), uint32(proto.VolumeNorm)}
		}),
	)
	if err != nil {
		return
	}
	stream.Start()
	stream.Drain()
	stream.Stop()
	stream.Close()
}

func Init() {
	cueOnce.Do(initSound)
}

func PlayStart() {
	if disabled {
		return
	}
	cueOnce.Do(initSound)
	go playCue(startCue)
}

func PlayEnd() {
	if disabled {
		return
	}
	cueOnce.Do(initSound)
	go playCue(endCue)
}

func PlayError() {
	if disabled {
		return
	}
	cueOnce.Do(initSound)
	go playCue(errorCue)
}
