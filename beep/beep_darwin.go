//go:build darwin

package beep

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

var (
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	startCue []byte
	endCue   []byte
	errorCue []byte
	cueOnce  sync.Once

	// playback cursor, read from the realtime callback
	playSamples atomic.Pointer[[]byte]
	playPos     atomic.Uint32
	playMu      sync.Mutex
)

func initDevice() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	callbacks := malgo.DeviceCallbacks{
		Data: dataCallback,
	}

	var err error
	device, err = malgo.InitDevice(malgoCtx.Context, config, callbacks)
	return err
}

func initSound() {
	var err error
	malgoCtx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return
	}

	startCue = synthTickBytes(sampleRate, startFreq, 0.03, startVolume, startDecay)
	endCue = synthTickBytes(sampleRate, endFreq, 0.05, endVolume, endDecay)
	errorCue = synthDoubleBeepBytes(sampleRate, errorFreq, 0.08, 0.05, errorVolume, errorDecay)

	if err := initDevice(); err != nil {
		malgoCtx.Uninit()
		malgoCtx = nil
		return
	}
}

func dataCallback(pOutput, _ []byte, frameCount uint32) {
	samples := playSamples.Load()
	if samples == nil || len(*samples) == 0 {
		for i := range pOutput {
			pOutput[i] = 0
		}
		return
	}

	pos := playPos.Load()
	total := uint32(len(*samples))
	bytesToWrite := frameCount * 2
	remaining := total - pos

	if remaining == 0 {
		playSamples.Store(nil)
		for i := range pOutput {
			pOutput[i] = 0
		}
		return
	}

	if bytesToWrite > remaining {
		bytesToWrite = remaining
	}

	copy(pOutput[:bytesToWrite], (*samples)[pos:pos+bytesToWrite])
	playPos.Store(pos + bytesToWrite)

	for i := bytesToWrite; i < frameCount*2; i++ {
		pOutput[i] = 0
	}
}

func synthTickBytes(sampleRate int, freq, duration, volume, decay float64) []byte {
	n := int(float64(sampleRate) * duration)
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sampleRate)
		envelope := math.Exp(-t * decay)
		s := int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}
	return buf
}

func synthDoubleBeepBytes(sampleRate int, freq, beepDur, gapDur, volume, decay float64) []byte {
	burst := synthTickBytes(sampleRate, freq, beepDur, volume, decay)
	gap := make([]byte, int(float64(sampleRate)*gapDur)*2)
	out := make([]byte, 0, len(burst)*2+len(gap))
	out = append(out, burst...)
	out = append(out, gap...)
	out = append(out, burst...)
	return out
}

func playCue(samples []byte) {
	if malgoCtx == nil || len(samples) == 0 {
		return
	}

	playMu.Lock()
	defer playMu.Unlock()

	if device == nil {
		return
	}

	// no-op if the device is not running
	device.Stop()

	playPos.Store(0)
	playSamples.Store(&samples)

	if err := device.Start(); err != nil {
		// The device handle goes stale across macOS sleep/wake; recreate it.
		device.Uninit()
		if err := initDevice(); err != nil {
			playSamples.Store(nil)
			return
		}
		if err := device.Start(); err != nil {
			playSamples.Store(nil)
			return
		}
	}
}

func Init() {
	cueOnce.Do(initSound)
}

func PlayStart() {
	if disabled {
		return
	}
	cueOnce.Do(initSound)
	playCue(startCue)
}

func PlayEnd() {
	if disabled {
		return
	}
	cueOnce.Do(initSound)
	playCue(endCue)
}

func PlayError() {
	if disabled {
		return
	}
	cueOnce.Do(initSound)
	playCue(errorCue)
}
