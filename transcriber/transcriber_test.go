package transcriber

import (
	"context"
	"encoding/binary"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"voxy/encoder"
)

func TestNetworkMetricsSum(t *testing.T) {
	m := &NetworkMetrics{
		ConnWait:   10 * time.Millisecond,
		DNS:        20 * time.Millisecond,
		TCP:        30 * time.Millisecond,
		TLS:        40 * time.Millisecond,
		ReqHeaders: 5 * time.Millisecond,
		ReqBody:    15 * time.Millisecond,
		TTFB:       50 * time.Millisecond,
		Download:   25 * time.Millisecond,
	}
	got := m.Sum()
	want := 195 * time.Millisecond
	if got != want {
		t.Errorf("Sum() = %v, want %v", got, want)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	h := http.Header{}
	h.Set("X-Rate-Limit", "100")

	if got := firstNonEmpty(h, "X-Missing", "X-Rate-Limit"); got != "100" {
		t.Errorf("got %q, want %q", got, "100")
	}
	if got := firstNonEmpty(h, "X-A", "X-B"); got != "?" {
		t.Errorf("got %q, want %q", got, "?")
	}
}

func TestApiFormatFromConfig(t *testing.T) {
	for _, tt := range []struct{ input, want string }{
		{"flac", "flac"},
		{"wav", "wav"},
	} {
		t.Run(tt.input, func(t *testing.T) {
			if got := apiFormatFromConfig(tt.input); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewEncoder(t *testing.T) {
	for _, format := range []string{"wav", "flac"} {
		t.Run(format, func(t *testing.T) {
			enc, err := newEncoder(format)
			if err != nil {
				t.Fatalf("newEncoder(%q): %v", format, err)
			}
			if enc == nil {
				t.Fatalf("newEncoder(%q) returned nil", format)
			}
			enc.Close()
		})
	}
	t.Run("unknown", func(t *testing.T) {
		if _, err := newEncoder("ogg"); err == nil {
			t.Error("expected error for unknown format")
		}
	})
}

// loudPCM returns ms milliseconds of full-scale-ish square wave.
func loudPCM(ms int) []byte {
	n := encoder.SampleRate * ms / 1000
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		s := int16(8000)
		if i%32 < 16 {
			s = -8000
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return pcm
}

func TestBatchSessionFeedAndClose(t *testing.T) {
	fakeFn := func(_ context.Context, audio []byte, format string) (*Result, error) {
		if format != "wav" {
			t.Errorf("format = %q, want wav", format)
		}
		if len(audio) < 44 {
			t.Errorf("audio payload too short: %d bytes", len(audio))
		}
		return &Result{
			Text:    "hello world",
			Metrics: &NetworkMetrics{TTFB: 10 * time.Millisecond},
		}, nil
	}

	cfg := SessionConfig{Format: "wav", MinRMS: 50}
	bs, err := newBatchSession(context.Background(), cfg, fakeFn)
	if err != nil {
		t.Fatalf("newBatchSession: %v", err)
	}

	bs.Feed(loudPCM(500))

	result, err := bs.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if result.Text != "hello world" {
		t.Errorf("Text = %q, want %q", result.Text, "hello world")
	}
	if !result.HasText {
		t.Error("HasText should be true")
	}
	if result.Batch == nil {
		t.Fatal("Batch should be non-nil")
	}
	if result.Batch.AudioLengthS <= 0 {
		t.Error("AudioLengthS should be positive")
	}
}

func TestBatchSessionRejectsEmptyAudio(t *testing.T) {
	var calls int32
	fakeFn := func(_ context.Context, _ []byte, _ string) (*Result, error) {
		atomic.AddInt32(&calls, 1)
		return &Result{Text: "x", Metrics: &NetworkMetrics{}}, nil
	}

	t.Run("nothing fed", func(t *testing.T) {
		bs, err := newBatchSession(context.Background(), SessionConfig{Format: "wav"}, fakeFn)
		if err != nil {
			t.Fatalf("newBatchSession: %v", err)
		}
		_, err = bs.Close()
		f, ok := AsFailure(err)
		if !ok || f.Kind != FailureEmptyAudio {
			t.Fatalf("Close err = %v, want empty_audio failure", err)
		}
	})

	t.Run("near-silent", func(t *testing.T) {
		bs, err := newBatchSession(context.Background(), SessionConfig{Format: "wav", MinRMS: 50}, fakeFn)
		if err != nil {
			t.Fatalf("newBatchSession: %v", err)
		}
		// 500ms of zeros: long enough, but below the loudness floor.
		bs.Feed(make([]byte, encoder.SampleRate))
		_, err = bs.Close()
		f, ok := AsFailure(err)
		if !ok || f.Kind != FailureEmptyAudio {
			t.Fatalf("Close err = %v, want empty_audio failure", err)
		}
	})

	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Errorf("transcribe called %d times for empty audio, want 0", n)
	}
}

func TestUploadRetriesOnceOn5xx(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			http.Error(w, "transient", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"text":"ok"}`))
	}))
	defer srv.Close()

	c := NewTracedClient(srv.URL)
	resp, err := c.Upload(context.Background(), "Bearer k", "application/octet-stream", []byte("audio"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if !resp.Metrics.Retried {
		t.Error("Metrics.Retried should be true")
	}
	if n := atomic.LoadInt32(&requests); n != 2 {
		t.Errorf("server saw %d requests, want 2", n)
	}
}

func TestUploadGivesUpAfterSecond5xx(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewTracedClient(srv.URL)
	_, err := c.Upload(context.Background(), "Bearer k", "application/octet-stream", []byte("audio"))
	f, ok := AsFailure(err)
	if !ok || f.Kind != FailureService {
		t.Fatalf("Upload err = %v, want service failure", err)
	}
	if n := atomic.LoadInt32(&requests); n != 2 {
		t.Errorf("server saw %d requests, want exactly 2", n)
	}
}

func TestUploadNeverRetriesServiceRejection(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewTracedClient(srv.URL)
	resp, err := c.Upload(context.Background(), "Bearer bad", "application/octet-stream", []byte("audio"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", resp.StatusCode)
	}
	if n := atomic.LoadInt32(&requests); n != 1 {
		t.Errorf("server saw %d requests, want exactly 1", n)
	}
}

func TestUploadNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // nothing listening: both attempts fail at the transport

	c := NewTracedClient(url)
	_, err := c.Upload(context.Background(), "Bearer k", "application/octet-stream", []byte("audio"))
	f, ok := AsFailure(err)
	if !ok || f.Kind != FailureNetwork {
		t.Fatalf("Upload err = %v, want network failure", err)
	}
}

func TestUploadDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewTracedClient(srv.URL)
	_, err := c.Upload(ctx, "Bearer k", "application/octet-stream", []byte("audio"))
	f, ok := AsFailure(err)
	if !ok || f.Kind != FailureTimeout {
		t.Fatalf("Upload err = %v, want timeout failure", err)
	}
}

func TestUploadCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	c := NewTracedClient(srv.URL)
	_, err := c.Upload(ctx, "Bearer k", "application/octet-stream", []byte("audio"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Upload err = %v, want context.Canceled", err)
	}
}

func TestKindOf(t *testing.T) {
	wrapped := &Failure{Kind: FailureTimeout, Err: context.DeadlineExceeded}
	if got := KindOf(wrapped); got != FailureTimeout {
		t.Errorf("KindOf = %q, want %q", got, FailureTimeout)
	}
	if got := KindOf(errors.New("plain")); got != FailureNetwork {
		t.Errorf("KindOf(plain) = %q, want %q", got, FailureNetwork)
	}
}
