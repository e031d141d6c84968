package hotkey

import (
	"errors"
	"fmt"
	"strings"
)

// Combo is a parsed global-hotkey chord: one or more modifiers plus a
// single key (a letter, a digit or "space").
type Combo struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	Super bool
	Key   string
}

// Default is the chord registered when nothing is configured.
var Default = Combo{Ctrl: true, Shift: true, Key: "space"}

// ParseCombo reads a chord like "ctrl+shift+space" or "alt+shift+s".
// Accepted modifiers: ctrl/control, shift, alt/option, super/cmd/win/meta.
// The key must come last.
func ParseCombo(s string) (Combo, error) {
	var c Combo
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		switch p {
		case "ctrl", "control":
			c.Ctrl = true
		case "shift":
			c.Shift = true
		case "alt", "option":
			c.Alt = true
		case "super", "cmd", "win", "meta":
			c.Super = true
		default:
			if i != len(parts)-1 {
				return Combo{}, fmt.Errorf("hotkey %q: key %q must come last", s, p)
			}
			if !validKey(p) {
				return Combo{}, fmt.Errorf("hotkey %q: unsupported key %q", s, p)
			}
			c.Key = p
		}
	}
	if c.Key == "" {
		return Combo{}, fmt.Errorf("hotkey %q: missing a non-modifier key", s)
	}
	if !c.Ctrl && !c.Shift && !c.Alt && !c.Super {
		return Combo{}, errors.New("hotkey needs at least one modifier")
	}
	return c, nil
}

func validKey(k string) bool {
	if k == "space" {
		return true
	}
	if len(k) != 1 {
		return false
	}
	b := k[0]
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

func (c Combo) String() string {
	var parts []string
	if c.Ctrl {
		parts = append(parts, "ctrl")
	}
	if c.Shift {
		parts = append(parts, "shift")
	}
	if c.Alt {
		parts = append(parts, "alt")
	}
	if c.Super {
		parts = append(parts, "super")
	}
	parts = append(parts, c.Key)
	return strings.Join(parts, "+")
}
