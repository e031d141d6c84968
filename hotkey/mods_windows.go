//go:build windows

package hotkey

import "golang.design/x/hotkey"

func platformMods(c Combo) []hotkey.Modifier {
	var mods []hotkey.Modifier
	if c.Alt {
		mods = append(mods, hotkey.ModAlt)
	}
	if c.Super {
		mods = append(mods, hotkey.ModWin)
	}
	return mods
}
