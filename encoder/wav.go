package encoder

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
)

// WavEncoder writes a standard RIFF/WAVE container. The wav package
// needs a seekable writer to patch the header sizes on Close, so the
// container is staged in a uniquely named temp file, read back into
// memory and deleted when the encoder closes.
type WavEncoder struct {
	file *os.File
	path string
	enc  *wav.Encoder

	mu          sync.Mutex
	data        []byte
	totalFrames uint64
	encodeTime  time.Duration
	closed      bool
}

func NewWav() (*WavEncoder, error) {
	path := filepath.Join(os.TempDir(), "voxy-"+uuid.NewString()+".wav")
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating wav temp file: %w", err)
	}
	return &WavEncoder{
		file: f,
		path: path,
		enc:  wav.NewEncoder(f, SampleRate, BitsPerSample, Channels, 1),
	}, nil
}

func (e *WavEncoder) EncodeBlock(block []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return fmt.Errorf("wav encoder already closed")
	}

	ints := make([]int, len(block))
	for i, s := range block {
		ints[i] = int(s)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: Channels, SampleRate: SampleRate},
		Data:           ints,
		SourceBitDepth: BitsPerSample,
	}
	if err := e.enc.Write(buf); err != nil {
		return fmt.Errorf("writing wav block: %w", err)
	}
	e.totalFrames += uint64(len(block))
	return nil
}

func (e *WavEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	defer os.Remove(e.path)

	if err := e.enc.Close(); err != nil {
		e.file.Close()
		return fmt.Errorf("finalizing wav: %w", err)
	}
	if err := e.file.Close(); err != nil {
		return fmt.Errorf("closing wav temp file: %w", err)
	}
	data, err := os.ReadFile(e.path)
	if err != nil {
		return fmt.Errorf("reading wav temp file: %w", err)
	}
	e.data = data
	return nil
}

func (e *WavEncoder) Bytes() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.data
}

func (e *WavEncoder) TotalFrames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalFrames
}

func (e *WavEncoder) AddEncodeTime(d time.Duration) {
	e.mu.Lock()
	e.encodeTime += d
	e.mu.Unlock()
}

func (e *WavEncoder) EncodeTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.encodeTime
}
