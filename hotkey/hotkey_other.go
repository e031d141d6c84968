//go:build !linux

package hotkey

import (
	"fmt"

	"golang.design/x/hotkey"
)

var xKeys = map[string]hotkey.Key{
	"a": hotkey.KeyA, "b": hotkey.KeyB, "c": hotkey.KeyC,
	"d": hotkey.KeyD, "e": hotkey.KeyE, "f": hotkey.KeyF,
	"g": hotkey.KeyG, "h": hotkey.KeyH, "i": hotkey.KeyI,
	"j": hotkey.KeyJ, "k": hotkey.KeyK, "l": hotkey.KeyL,
	"m": hotkey.KeyM, "n": hotkey.KeyN, "o": hotkey.KeyO,
	"p": hotkey.KeyP, "q": hotkey.KeyQ, "r": hotkey.KeyR,
	"s": hotkey.KeyS, "t": hotkey.KeyT, "u": hotkey.KeyU,
	"v": hotkey.KeyV, "w": hotkey.KeyW, "x": hotkey.KeyX,
	"y": hotkey.KeyY, "z": hotkey.KeyZ,
	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2,
	"3": hotkey.Key3, "4": hotkey.Key4, "5": hotkey.Key5,
	"6": hotkey.Key6, "7": hotkey.Key7, "8": hotkey.Key8,
	"9": hotkey.Key9,
}

// xKey maps a combo key name to the x/hotkey constant.
func xKey(key string) (hotkey.Key, bool) {
	if key == "space" {
		return hotkey.KeySpace, true
	}
	k, ok := xKeys[key]
	return k, ok
}

type xHotkey struct {
	combo   Combo
	hk      *hotkey.Hotkey
	keydown chan struct{}
	keyup   chan struct{}
}

func New(combo Combo) Hotkey {
	return &xHotkey{
		combo:   combo,
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}
}

func (h *xHotkey) Register() error {
	key, ok := xKey(h.combo.Key)
	if !ok {
		return fmt.Errorf("unsupported hotkey key %q", h.combo.Key)
	}
	var mods []hotkey.Modifier
	if h.combo.Ctrl {
		mods = append(mods, hotkey.ModCtrl)
	}
	if h.combo.Shift {
		mods = append(mods, hotkey.ModShift)
	}
	mods = append(mods, platformMods(h.combo)...)

	h.hk = hotkey.New(mods, key)
	if err := h.hk.Register(); err != nil {
		return err
	}
	go func() {
		for {
			<-h.hk.Keydown()
			h.keydown <- struct{}{}
		}
	}()
	go func() {
		for {
			<-h.hk.Keyup()
			h.keyup <- struct{}{}
		}
	}()
	return nil
}

func (h *xHotkey) Unregister() {
	h.hk.Unregister()
}

func (h *xHotkey) Keydown() <-chan struct{} {
	return h.keydown
}

func (h *xHotkey) Keyup() <-chan struct{} {
	return h.keyup
}

func Diagnose() (string, error) {
	return "hotkey support available", nil
}
