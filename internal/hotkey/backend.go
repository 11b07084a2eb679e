package hotkey

import (
	"fmt"
	"runtime"

	hk "golang.design/x/hotkey"
)

// SystemBackend registers hotkeys through the OS (Carbon on macOS,
// RegisterHotKey on Windows, X11 elsewhere).
type SystemBackend struct{}

func (SystemBackend) Name() string { return "system" }

// IsAvailable is optimistic; registration itself reports the real failure
// (e.g. Wayland without an X bridge).
func (SystemBackend) IsAvailable() bool {
	return runtime.GOOS == "darwin" || runtime.GOOS == "windows" || runtime.GOOS == "linux"
}

func (SystemBackend) Register(chord string) (Registration, error) {
	modNames, keyName, err := splitChord(chord)
	if err != nil {
		return nil, err
	}

	mods := make([]hk.Modifier, 0, len(modNames))
	for _, name := range modNames {
		m, err := platformModifier(name)
		if err != nil {
			return nil, err
		}
		mods = append(mods, m)
	}

	key, err := lookupKey(keyName)
	if err != nil {
		return nil, err
	}

	h := hk.New(mods, key)
	if err := h.Register(); err != nil {
		return nil, fmt.Errorf("register %q: %w", chord, err)
	}

	reg := &systemRegistration{hk: h, out: make(chan struct{}, 1)}
	go reg.pump()
	return reg, nil
}

type systemRegistration struct {
	hk  *hk.Hotkey
	out chan struct{}
}

func (r *systemRegistration) pump() {
	for range r.hk.Keydown() {
		select {
		case r.out <- struct{}{}:
		default: // toggle pending, drop the repeat
		}
	}
	close(r.out)
}

func (r *systemRegistration) Keydown() <-chan struct{} { return r.out }

func (r *systemRegistration) Close() error { return r.hk.Unregister() }

func lookupKey(name string) (hk.Key, error) {
	switch name {
	case "space":
		return hk.KeySpace, nil
	case "enter", "return":
		return hk.KeyReturn, nil
	case "escape", "esc":
		return hk.KeyEscape, nil
	case "tab":
		return hk.KeyTab, nil
	}
	if len(name) == 1 {
		c := name[0]
		switch {
		case c >= 'a' && c <= 'z':
			return hk.Key(letterKeys[c-'a']), nil
		case c >= '0' && c <= '9':
			return hk.Key(digitKeys[c-'0']), nil
		}
	}
	return 0, fmt.Errorf("unknown key %q", name)
}

var letterKeys = [26]hk.Key{
	hk.KeyA, hk.KeyB, hk.KeyC, hk.KeyD, hk.KeyE, hk.KeyF, hk.KeyG,
	hk.KeyH, hk.KeyI, hk.KeyJ, hk.KeyK, hk.KeyL, hk.KeyM, hk.KeyN,
	hk.KeyO, hk.KeyP, hk.KeyQ, hk.KeyR, hk.KeyS, hk.KeyT, hk.KeyU,
	hk.KeyV, hk.KeyW, hk.KeyX, hk.KeyY, hk.KeyZ,
}

var digitKeys = [10]hk.Key{
	hk.Key0, hk.Key1, hk.Key2, hk.Key3, hk.Key4,
	hk.Key5, hk.Key6, hk.Key7, hk.Key8, hk.Key9,
}
