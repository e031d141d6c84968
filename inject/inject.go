// Package inject delivers transcribed text into whatever application
// has keyboard focus.
package inject

import (
	"fmt"

	cb "github.com/atotto/clipboard"
)

// Injector places transcribed text where the user is typing. Injecting
// empty text is a successful no-op for every implementation.
type Injector interface {
	Inject(text string) error
	Name() string
}

// New returns the injector for mode: "paste" stages the text on the
// clipboard and sends the platform paste chord, "type" synthesizes
// per-character keystrokes, "copy" only fills the clipboard.
func New(mode string) (Injector, error) {
	switch mode {
	case "paste":
		return pasteInjector{}, nil
	case "type":
		return typeInjector{}, nil
	case "copy":
		return copyInjector{}, nil
	default:
		return nil, fmt.Errorf("unknown injection mode %q", mode)
	}
}

func Copy(text string) error { return cb.WriteAll(text) }

func Read() (string, error) { return cb.ReadAll() }

type copyInjector struct{}

func (copyInjector) Name() string { return "copy" }

func (copyInjector) Inject(text string) error {
	if text == "" {
		return nil
	}
	return Copy(text)
}

type pasteInjector struct{}

func (pasteInjector) Name() string { return "paste" }

func (pasteInjector) Inject(text string) error {
	if text == "" {
		return nil
	}
	if err := Copy(text); err != nil {
		return err
	}
	return sendPaste()
}

type typeInjector struct{}

func (typeInjector) Name() string { return "type" }

func (typeInjector) Inject(text string) error {
	if text == "" {
		return nil
	}
	return typeText(text)
}
