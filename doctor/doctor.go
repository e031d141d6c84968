// Package doctor runs interactive system diagnostics: hotkey delivery,
// microphone capture, container encoding, transcription round-trip and
// text injection, each confirmed by the user at the terminal.
package doctor

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"voxy/audio"
	"voxy/encoder"
	"voxy/hotkey"
	"voxy/inject"
	"voxy/transcriber"
)

// Run executes the diagnostic checks in order and returns an exit code
// (0 = all pass, 1 = any fail). Later checks are skipped once one
// fails, so the first broken layer is what the user sees.
func Run(combo hotkey.Combo) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("voxy doctor - interactive system diagnostics")
	fmt.Println("============================================")

	allPass := true

	if !checkHotkey(combo) {
		allPass = false
	}
	if allPass && !checkMicAndTranscription() {
		allPass = false
	}
	if allPass && !checkInjection() {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkHotkey(combo hotkey.Combo) bool {
	fmt.Println()
	fmt.Println("[1/3] Hotkey detection")
	fmt.Printf("Press %s...\n", combo)

	hk := hotkey.New(combo)
	if err := hk.Register(); err != nil {
		fmt.Printf("  FAIL: could not register hotkey: %v\n", err)
		return false
	}
	defer hk.Unregister()

	select {
	case <-hk.Keydown():
		fmt.Println("  PASS: hotkey detected")
		// Drain the release so it cannot leak into the next check.
		select {
		case <-hk.Keyup():
		case <-time.After(5 * time.Second):
		}
		resetTerminal()
		return true
	case <-time.After(10 * time.Second):
		fmt.Println("  FAIL: timeout waiting for hotkey")
		return false
	}
}

func checkMicAndTranscription() bool {
	fmt.Println()
	fmt.Println("[2/3] Microphone, encoding and transcription")

	reader := bufio.NewReader(os.Stdin)

	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer ctx.Close()

	devices, err := ctx.Devices()
	if err != nil {
		fmt.Printf("  FAIL: cannot list devices: %v\n", err)
		return false
	}
	if len(devices) == 0 {
		fmt.Println("  FAIL: no capture devices found")
		return false
	}

	var device *audio.DeviceInfo
	if len(devices) == 1 {
		device = &devices[0]
		fmt.Printf("Using device: %s\n", device.Name)
	} else {
		fmt.Println()
		fmt.Println("Select input device:")
		for i, d := range devices {
			fmt.Printf("  %d. %s\n", i+1, d.Name)
		}
		fmt.Printf("Choice [1-%d]: ", len(devices))

		devChoice, _ := reader.ReadString('\n')
		devChoice = strings.TrimSpace(devChoice)
		idx := 0
		if devChoice != "" {
			fmt.Sscanf(devChoice, "%d", &idx)
			idx--
		}
		if idx < 0 || idx >= len(devices) {
			fmt.Println("  FAIL: invalid choice")
			return false
		}
		device = &devices[idx]
		fmt.Printf("Selected: %s\n", device.Name)
	}

	fmt.Println()
	fmt.Print("Press Enter and speak for 3 seconds...")
	reader.ReadString('\n')

	stop := make(chan struct{})
	go func() {
		time.Sleep(3 * time.Second)
		close(stop)
	}()

	pcm, err := recordAudio(ctx, device, stop)
	if err != nil {
		fmt.Printf("  FAIL: recording error: %v\n", err)
		return false
	}
	if len(pcm) == 0 {
		fmt.Println("  FAIL: no audio captured")
		return false
	}

	rms := audio.RMS(pcm)
	fmt.Printf("  Captured %.1f KB, overall loudness %.0f RMS\n", float64(len(pcm))/1024, rms)
	if rms < 10 {
		fmt.Println("  WARN: the capture is nearly silent - check the microphone gain")
	}

	// Container round-trips before any network is involved.
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	for _, format := range []string{"wav", "flac"} {
		var enc encoder.Encoder
		var err error
		if format == "wav" {
			enc, err = encoder.NewWav()
		} else {
			enc, err = encoder.NewFlac()
		}
		if err != nil {
			fmt.Printf("  FAIL: %s encoder: %v\n", format, err)
			return false
		}
		if err := enc.EncodeBlock(samples); err != nil {
			fmt.Printf("  FAIL: %s encode: %v\n", format, err)
			return false
		}
		if err := enc.Close(); err != nil {
			fmt.Printf("  FAIL: %s finalize: %v\n", format, err)
			return false
		}
		fmt.Printf("  PASS: %s container (%.1f KB)\n", format, float64(len(enc.Bytes()))/1024)
	}

	trans, err := transcriber.New("")
	if err != nil {
		fmt.Printf("  SKIP: transcription (%v)\n", err)
		return true
	}

	fmt.Printf("  Transcribing via %s...\n", trans.Name())
	sess, err := trans.NewSession(context.Background(), transcriber.SessionConfig{
		Format:         "wav",
		NetworkTimeout: 30 * time.Second,
	})
	if err != nil {
		fmt.Printf("  FAIL: session error: %v\n", err)
		return false
	}
	sess.Feed(pcm)
	result, err := sess.Close()
	if err != nil {
		fmt.Printf("  FAIL: transcription error: %v\n", err)
		return false
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		text = "(no speech detected)"
	}
	fmt.Printf("\n  Transcribed text: %s\n\n", text)

	confirmReader := bufio.NewReader(os.Stdin)
	fmt.Print("Is this correct? [y/n]: ")
	confirm, _ := confirmReader.ReadString('\n')
	confirm = strings.TrimSpace(strings.ToLower(confirm))

	if confirm == "y" || confirm == "yes" {
		fmt.Println("  PASS: transcription verified by user")
		return true
	}
	fmt.Println("  FAIL: transcription not confirmed")
	return false
}

func recordAudio(ctx audio.Context, device *audio.DeviceInfo, stop <-chan struct{}) ([]byte, error) {
	var pcmBuf []byte
	var bufMu sync.Mutex
	var stopped bool
	done := make(chan struct{})

	config := audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	}

	captureDevice, err := ctx.NewCapture(device, config)
	if err != nil {
		return nil, err
	}

	captureDevice.SetCallback(func(data []byte, frameCount uint32) {
		bufMu.Lock()
		if !stopped {
			pcmBuf = append(pcmBuf, data...)
		}
		bufMu.Unlock()
	})

	if err := captureDevice.Start(); err != nil {
		captureDevice.Close()
		return nil, err
	}

	fmt.Print("  Recording")
	ticker := time.NewTicker(500 * time.Millisecond)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	<-stop
	close(done)

	captureDevice.Stop()
	fmt.Println(" done")
	captureDevice.Close()

	bufMu.Lock()
	stopped = true
	raw := pcmBuf
	bufMu.Unlock()

	return raw, nil
}

func checkInjection() bool {
	fmt.Println()
	fmt.Println("[3/3] Clipboard and injection")

	msg, err := inject.Verify()
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	fmt.Printf("  PASS: %s\n", msg)

	testStr := fmt.Sprintf("voxy-doctor-%d", time.Now().UnixNano())
	if err := inject.Copy(testStr); err != nil {
		fmt.Printf("  FAIL: clipboard copy failed: %v\n", err)
		return false
	}
	got, err := inject.Read()
	if err != nil {
		fmt.Printf("  FAIL: clipboard read failed: %v\n", err)
		return false
	}
	if got != testStr {
		fmt.Printf("  FAIL: clipboard mismatch: wrote %q, got %q\n", testStr, got)
		return false
	}
	fmt.Println("  PASS: clipboard write/read verified")

	injector, err := inject.New("paste")
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}

	fmt.Println("Focus on a text editor window...")
	for i := 5; i > 0; i-- {
		fmt.Printf("  %d...\n", i)
		time.Sleep(1 * time.Second)
	}

	if err := injector.Inject("voxy-doctor-test"); err != nil {
		fmt.Printf("  FAIL: injection failed: %v\n", err)
		return false
	}

	resetTerminal()
	confirmReader := bufio.NewReader(os.Stdin)
	fmt.Println()
	fmt.Print("Did the text \"voxy-doctor-test\" appear? [y/n]: ")
	confirm, _ := confirmReader.ReadString('\n')
	confirm = strings.TrimSpace(strings.ToLower(confirm))

	if confirm != "y" && confirm != "yes" {
		fmt.Println("  FAIL: injection not confirmed")
		return false
	}
	fmt.Println("  PASS: injection verified by user")
	return true
}
