//go:build linux

package hotkey

import (
	"fmt"

	hk "golang.design/x/hotkey"
)

func platformModifier(name string) (hk.Modifier, error) {
	switch name {
	case "ctrl":
		return hk.ModCtrl, nil
	case "shift":
		return hk.ModShift, nil
	case "alt":
		return hk.Mod1, nil
	case "cmd":
		return hk.Mod4, nil
	}
	return 0, fmt.Errorf("unsupported modifier %q", name)
}
