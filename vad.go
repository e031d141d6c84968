package main

import (
	"sync"
	"time"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"voxy/encoder"
)

// WebRTC VAD classifies fixed 20ms frames; captured chunks arrive in
// arbitrary sizes, so a small carry buffer reassembles them.
const (
	vadMode       = 3 // most aggressive, fewest false positives on noise
	vadFrameMs    = 20
	vadFrameBytes = encoder.SampleRate * vadFrameMs / 1000 * 2

	// One hot frame is usually a click or a pop. Voice counts only
	// after this many voiced frames in a row.
	voiceConfirmFrames = 3
)

// frameCount is a running tally of classified frames. The difference
// between two tallies gives the speech ratio over a window.
type frameCount struct {
	total  int
	voiced int
}

func (c frameCount) since(mark frameCount) frameCount {
	return frameCount{total: c.total - mark.total, voiced: c.voiced - mark.voiced}
}

// vadProcessor runs captured PCM through WebRTC voice activity
// detection. Loudness alone cannot tell speech from a fan or keyboard;
// this is what feeds the no-voice warning.
type vadProcessor struct {
	vad *webrtcvad.VAD

	mu        sync.Mutex
	carry     []byte
	counts    frameCount
	run       int // consecutive voiced frames, resets on silence
	confirmed bool
	lastVoice time.Time
	deltaMark frameCount // consumed by StatsDelta
	tickMark  frameCount // consumed by HasSpeechTick
}

func newVADProcessor() (*vadProcessor, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, err
	}
	if err := v.SetMode(vadMode); err != nil {
		return nil, err
	}
	return &vadProcessor{vad: v}, nil
}

// Process classifies data frame by frame. A trailing partial frame is
// carried over to the next call.
func (p *vadProcessor) Process(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.carry = append(p.carry, data...)
	for len(p.carry) >= vadFrameBytes {
		p.classify(p.carry[:vadFrameBytes])
		p.carry = p.carry[vadFrameBytes:]
	}
}

func (p *vadProcessor) classify(frame []byte) {
	active, err := p.vad.Process(encoder.SampleRate, frame)
	if err != nil {
		return
	}
	p.counts.total++
	if !active {
		p.run = 0
		return
	}
	p.counts.voiced++
	p.run++
	if p.confirmed || p.run >= voiceConfirmFrames {
		p.confirmed = true
		p.lastVoice = time.Now()
	}
}

// VoiceDetected reports whether confirmed speech has appeared at any
// point since the last Reset.
func (p *vadProcessor) VoiceDetected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.confirmed
}

func (p *vadProcessor) LastVoiceTime() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastVoice
}

// Stats reports the session-wide frame tallies.
func (p *vadProcessor) Stats() (total, speech int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts.total, p.counts.voiced
}

// StatsDelta reports the tallies accumulated since its previous call.
func (p *vadProcessor) StatsDelta() (total, speech int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d := p.counts.since(p.deltaMark)
	p.deltaMark = p.counts
	return d.total, d.voiced
}

// speechRatio is the share of voiced frames within one monitor tick
// that counts as the user speaking.
const speechRatio = 0.10

// HasSpeechTick reports whether the user spoke since the previous
// call. The voice monitor polls it once per tick.
func (p *vadProcessor) HasSpeechTick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	d := p.counts.since(p.tickMark)
	p.tickMark = p.counts
	if d.total == 0 {
		return false
	}
	return float64(d.voiced)/float64(d.total) >= speechRatio
}

// Reset drops all classification state, keeping the underlying VAD
// instance for the next session.
func (p *vadProcessor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.carry = p.carry[:0]
	p.counts = frameCount{}
	p.run = 0
	p.confirmed = false
	p.lastVoice = time.Time{}
	p.deltaMark = frameCount{}
	p.tickMark = frameCount{}
}
