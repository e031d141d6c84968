package transcriber

import (
	"context"
	"fmt"
	"time"
)

// FakeTranscriber returns a canned result (or error) without touching
// the network. Used by --test-mode and package tests.
type FakeTranscriber struct {
	text string
	err  error
	lang string

	// Delay makes Close block, to exercise cancellation paths.
	Delay time.Duration
}

func NewFake(text string, err error) *FakeTranscriber {
	return &FakeTranscriber{text: text, err: err}
}

func (f *FakeTranscriber) Name() string            { return "fake" }
func (f *FakeTranscriber) SetLanguage(lang string) { f.lang = lang }
func (f *FakeTranscriber) GetLanguage() string     { return f.lang }

func (f *FakeTranscriber) NewSession(ctx context.Context, _ SessionConfig) (Session, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return &fakeSession{ctx: ctx, text: f.text, err: f.err, delay: f.Delay}, nil
}

type fakeSession struct {
	ctx   context.Context
	text  string
	err   error
	delay time.Duration
	fed   int
}

func (s *fakeSession) Feed(pcm []byte) { s.fed += len(pcm) }

func (s *fakeSession) Close() (SessionResult, error) {
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return SessionResult{}, s.ctx.Err()
		case <-timer.C:
		}
	}
	if s.err != nil {
		if _, ok := AsFailure(s.err); ok {
			return SessionResult{}, s.err
		}
		return SessionResult{}, fmt.Errorf("fake transcriber error: %w", s.err)
	}
	r := SessionResult{
		Text:    s.text,
		HasText: s.text != "",
		Batch: &BatchStats{
			AudioLengthS: 1.0,
			TotalTimeMs:  10,
		},
		Metrics: []string{"total: 10ms (fake)"},
	}
	r.NoSpeech = s.text == ""
	r.captureMemStats()
	return r, nil
}
