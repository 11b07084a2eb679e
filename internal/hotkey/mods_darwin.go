//go:build darwin

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
		return hk.ModOption, nil
	case "cmd":
		return hk.ModCmd, nil
	}
	return 0, fmt.Errorf("unsupported modifier %q", name)
}
