// Package hotkey provides the global show/hide hotkey for the shell window.
package hotkey

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Registration is a live hotkey binding.
type Registration interface {
	// Keydown receives an event each time the chord is pressed.
	Keydown() <-chan struct{}
	// Close releases the binding. The Keydown channel must not be used after.
	Close() error
}

// Backend abstracts the OS hotkey facility so the controller can be tested
// and so an unavailable display server degrades to no hotkey instead of a
// startup failure.
type Backend interface {
	Register(chord string) (Registration, error)
	Name() string
	IsAvailable() bool
}

// Window is the subset of the shell window the controller drives.
type Window interface {
	Show()
	Hide()
	Focus()
}

// Controller owns window visibility state explicitly. Show/hide requests
// from the hotkey, the tray menu and the close-to-tray hook all funnel
// through it, so there is exactly one writer of the visible flag.
type Controller struct {
	mu      sync.Mutex
	win     Window
	visible bool
	onShow  func() // runs after the window regains focus (composer refocus)
}

// NewController wires a controller to a window that starts visible.
func NewController(win Window, onShow func()) *Controller {
	return &Controller{win: win, visible: true, onShow: onShow}
}

// Show makes the window visible and focused.
func (c *Controller) Show() {
	c.mu.Lock()
	c.visible = true
	win, onShow := c.win, c.onShow
	c.mu.Unlock()

	win.Show()
	win.Focus()
	if onShow != nil {
		onShow()
	}
}

// Hide hides the window.
func (c *Controller) Hide() {
	c.mu.Lock()
	c.visible = false
	win := c.win
	c.mu.Unlock()

	win.Hide()
}

// Toggle flips visibility.
func (c *Controller) Toggle() {
	if c.Visible() {
		c.Hide()
	} else {
		c.Show()
	}
}

// Visible reports the tracked visibility state.
func (c *Controller) Visible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visible
}

// SetVisible records a visibility change that happened outside the
// controller (the close-to-tray window hook hides directly).
func (c *Controller) SetVisible(v bool) {
	c.mu.Lock()
	c.visible = v
	c.mu.Unlock()
}

// Run consumes keydown events until ctx is cancelled, toggling the window.
func (c *Controller) Run(ctx context.Context, reg Registration) {
	defer reg.Close()
	for {
		select {
		case _, ok := <-reg.Keydown():
			if !ok {
				return
			}
			c.Toggle()
		case <-ctx.Done():
			return
		}
	}
}

// ParseChord validates a chord like "ctrl+shift+space" without registering
// it, returning the normalized modifier names and key.
func ParseChord(chord string) (mods []string, key string, err error) {
	return splitChord(chord)
}

// splitChord parses "ctrl+shift+space" into modifier names and a key name.
func splitChord(chord string) (mods []string, key string, err error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(chord)), "+")
	if len(parts) < 2 {
		return nil, "", fmt.Errorf("hotkey %q needs at least one modifier", chord)
	}
	for _, p := range parts[:len(parts)-1] {
		switch p {
		case "ctrl", "control":
			mods = append(mods, "ctrl")
		case "shift":
			mods = append(mods, "shift")
		case "alt", "option":
			mods = append(mods, "alt")
		case "cmd", "super", "win", "meta":
			mods = append(mods, "cmd")
		default:
			return nil, "", fmt.Errorf("unknown modifier %q in %q", p, chord)
		}
	}
	key = parts[len(parts)-1]
	if key == "" {
		return nil, "", fmt.Errorf("hotkey %q missing key", chord)
	}
	return mods, key, nil
}
