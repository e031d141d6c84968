//go:build integration

package test_test

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"voxy/inject"
)

var testBinary string

func TestMain(m *testing.M) {
	testBinary = os.Getenv("VOXY_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "VOXY_TEST_BIN not set; run: make test-integration")
		os.Exit(1)
	}

	if err := os.MkdirAll("data", 0755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create data dir: %v\n", err)
		os.Exit(1)
	}
	if err := generateToneWAV(filepath.Join("data", "speech.wav"), 16000, 2.0); err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate speech.wav: %v\n", err)
		os.Exit(1)
	}
	if err := generateSilenceWAV(filepath.Join("data", "silence.wav"), 16000, 3.0); err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate silence.wav: %v\n", err)
		os.Exit(1)
	}
	code := m.Run()
	os.Remove(filepath.Join("data", "speech.wav"))
	os.Remove(filepath.Join("data", "silence.wav"))
	os.Exit(code)
}

func wavHeader(buf []byte, sampleRate, dataSize int) {
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)  // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
}

// generateToneWAV writes a 440 Hz tone loud enough to defeat the
// silence auto-stop for its whole duration.
func generateToneWAV(path string, sampleRate int, durationS float64) error {
	const headerSize = 44
	numSamples := int(float64(sampleRate) * durationS)
	dataSize := numSamples * 2

	buf := make([]byte, headerSize+dataSize)
	wavHeader(buf, sampleRate, dataSize)
	for i := 0; i < numSamples; i++ {
		s := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
		binary.LittleEndian.PutUint16(buf[headerSize+i*2:], uint16(s))
	}
	return os.WriteFile(path, buf, 0644)
}

func generateSilenceWAV(path string, sampleRate int, durationS float64) error {
	const headerSize = 44
	numSamples := int(float64(sampleRate) * durationS)
	dataSize := numSamples * 2

	buf := make([]byte, headerSize+dataSize)
	wavHeader(buf, sampleRate, dataSize)
	return os.WriteFile(path, buf, 0644)
}

func cmds(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

func runVoxy(t *testing.T, stdin string, args ...string) (logDir string) {
	t.Helper()
	logDir = t.TempDir()
	cmdArgs := append([]string{"-log-dir", logDir, "-test-mode"}, args...)

	cmd := exec.Command(testBinary, cmdArgs...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = append(os.Environ(), "VOXY_FAKE_TRANSCRIBER=integration transcript")

	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("voxy exited with error: %v\noutput: %s", err, out)
	}
	return logDir
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	return string(data)
}

func requireTranscription(t *testing.T, logDir string) string {
	t.Helper()
	text := readLog(t, logDir, "transcribe_log.txt")
	if strings.TrimSpace(text) == "" {
		t.Fatal("transcribe_log.txt is empty, expected transcribed words")
	}
	return text
}

// One trigger, silence auto-stop, fake transcript delivered.
func TestSessionAutoStop(t *testing.T) {
	logDir := runVoxy(t, cmds("KEYDOWN", "WAIT_AUDIO_DONE", "WAIT", "QUIT"),
		"-inject", "copy", "data/speech.wav")
	requireTranscription(t, logDir)

	diag := readLog(t, logDir, "diagnostics_log.txt")
	if !strings.Contains(diag, "silence_stop") {
		t.Error("expected silence_stop in diagnostics")
	}
}

// Second trigger mid-capture stops the session instead of starting a
// new one.
func TestSecondTriggerStops(t *testing.T) {
	logDir := runVoxy(t, cmds("KEYDOWN", "SLEEP 500", "KEYDOWN", "WAIT", "QUIT"),
		"-inject", "copy", "data/speech.wav")
	diag := readLog(t, logDir, "diagnostics_log.txt")
	if !strings.Contains(diag, "recording_stop") {
		t.Error("expected manual recording_stop in diagnostics")
	}
	if strings.Count(diag, " start") > 1 {
		t.Error("second trigger must not start a second session")
	}
}

func TestBackToBackSessions(t *testing.T) {
	logDir := runVoxy(t,
		cmds("KEYDOWN", "WAIT_AUDIO_DONE", "WAIT", "KEYDOWN", "SLEEP 300", "KEYDOWN", "WAIT", "QUIT"),
		"-inject", "copy", "data/speech.wav")
	diag := readLog(t, logDir, "diagnostics_log.txt")
	if n := strings.Count(diag, " done"); n < 2 {
		t.Errorf("expected 2 completed sessions, diagnostics shows %d", n)
	}
}

func TestSilentRecording(t *testing.T) {
	logDir := runVoxy(t, cmds("KEYDOWN", "WAIT", "QUIT"),
		"-inject", "copy", "data/silence.wav")
	diag := readLog(t, logDir, "diagnostics_log.txt")
	if !strings.Contains(diag, "silence_stop") {
		t.Error("expected silence_stop for an all-quiet recording")
	}
}

func TestClipboardDelivery(t *testing.T) {
	sentinel := fmt.Sprintf("voxy-test-%d", time.Now().UnixNano())
	if err := inject.Copy(sentinel); err != nil {
		t.Skip("clipboard not available")
	}

	_ = runVoxy(t, cmds("KEYDOWN", "WAIT_AUDIO_DONE", "WAIT", "QUIT"),
		"-inject", "copy", "data/speech.wav")

	clip, err := inject.Read()
	if err != nil {
		t.Skip("clipboard not available")
	}
	if strings.TrimSpace(clip) != "integration transcript" {
		t.Errorf("clipboard = %q, want the fake transcript", strings.TrimSpace(clip))
	}
}
