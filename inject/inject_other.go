//go:build !linux

package inject

import (
	"runtime"
	"sync"

	"github.com/micmonay/keybd_event"
)

var (
	kb     keybd_event.KeyBonding
	kbOnce sync.Once
	kbErr  error
)

func initDevice() error {
	kbOnce.Do(func() {
		kb, kbErr = keybd_event.NewKeyBonding()
	})
	return kbErr
}

func sendPaste() error {
	if err := initDevice(); err != nil {
		return err
	}
	kb.SetKeys(keybd_event.VK_V)
	if runtime.GOOS == "darwin" {
		kb.HasSuper(true) // Cmd+V
	} else {
		kb.HasCTRL(true)
	}
	return kb.Launching()
}

// typeText has no per-character path off Linux; the text is staged on
// the clipboard and pasted instead.
func typeText(text string) error {
	if err := Copy(text); err != nil {
		return err
	}
	return sendPaste()
}

// Verify checks that the keyboard event binding is initialized.
func Verify() (string, error) {
	if err := initDevice(); err != nil {
		return "", err
	}
	if runtime.GOOS == "darwin" {
		return "keyboard event binding OK (Cmd+V)", nil
	}
	return "keyboard event binding OK (Ctrl+V)", nil
}
