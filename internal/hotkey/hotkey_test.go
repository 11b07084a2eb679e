package hotkey

import (
	"context"
	"testing"
	"time"
)

type fakeWindow struct {
	shows, hides, focuses int
}

func (w *fakeWindow) Show()  { w.shows++ }
func (w *fakeWindow) Hide()  { w.hides++ }
func (w *fakeWindow) Focus() { w.focuses++ }

type fakeRegistration struct {
	ch     chan struct{}
	closed bool
}

func (r *fakeRegistration) Keydown() <-chan struct{} { return r.ch }
func (r *fakeRegistration) Close() error             { r.closed = true; return nil }

func TestControllerToggle(t *testing.T) {
	win := &fakeWindow{}
	onShows := 0
	c := NewController(win, func() { onShows++ })

	if !c.Visible() {
		t.Fatal("controller should start visible")
	}

	c.Toggle()
	if c.Visible() || win.hides != 1 {
		t.Fatalf("after first toggle: visible=%v hides=%d", c.Visible(), win.hides)
	}

	c.Toggle()
	if !c.Visible() || win.shows != 1 || win.focuses != 1 {
		t.Fatalf("after second toggle: visible=%v shows=%d focuses=%d", c.Visible(), win.shows, win.focuses)
	}
	if onShows != 1 {
		t.Errorf("onShow calls = %d, want 1", onShows)
	}
}

func TestControllerSetVisibleTracksExternalHide(t *testing.T) {
	win := &fakeWindow{}
	c := NewController(win, nil)

	// Close-to-tray hid the window directly.
	c.SetVisible(false)

	c.Toggle()
	if !c.Visible() || win.shows != 1 {
		t.Fatalf("toggle after external hide: visible=%v shows=%d, want show", c.Visible(), win.shows)
	}
}

func TestControllerRunConsumesKeydowns(t *testing.T) {
	win := &fakeWindow{}
	c := NewController(win, nil)
	reg := &fakeRegistration{ch: make(chan struct{})}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, reg)
		close(done)
	}()

	reg.ch <- struct{}{}
	deadline := time.After(time.Second)
	for c.Visible() {
		select {
		case <-deadline:
			t.Fatal("keydown did not toggle the window")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return on cancel")
	}
	if !reg.closed {
		t.Error("registration not closed on exit")
	}
}

func TestSplitChord(t *testing.T) {
	cases := []struct {
		chord   string
		mods    []string
		key     string
		wantErr bool
	}{
		{"ctrl+shift+space", []string{"ctrl", "shift"}, "space", false},
		{"Cmd+K", []string{"cmd"}, "k", false},
		{"alt+enter", []string{"alt"}, "enter", false},
		{"space", nil, "", true},
		{"hyper+x", nil, "", true},
		{"", nil, "", true},
	}

	for _, tc := range cases {
		mods, key, err := splitChord(tc.chord)
		if (err != nil) != tc.wantErr {
			t.Errorf("splitChord(%q) err = %v, wantErr %v", tc.chord, err, tc.wantErr)
			continue
		}
		if err != nil {
			continue
		}
		if key != tc.key || len(mods) != len(tc.mods) {
			t.Errorf("splitChord(%q) = %v %q, want %v %q", tc.chord, mods, key, tc.mods, tc.key)
			continue
		}
		for i := range mods {
			if mods[i] != tc.mods[i] {
				t.Errorf("splitChord(%q) mod[%d] = %q, want %q", tc.chord, i, mods[i], tc.mods[i])
			}
		}
	}
}
