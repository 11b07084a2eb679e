package imefix

import (
	"github.com/chatdock/chatdock/internal/devlog"
)

// KeySender delivers one synthetic hardware-level Enter key-down/key-up
// pair, no modifiers, to the focused window. Implementations: ExecSender
// (platform input bridge, sender.go) and the CDP Input-domain sender in the
// verify harness.
type KeySender interface {
	SendEnter() error
}

// Reinjector answers resend requests from the content probe. After the
// settle delay it injects a fresh Enter at the OS level; the engine delivers
// it back into the page as trusted input with a clean composition flag.
type Reinjector struct {
	clock  Clock
	sender KeySender
}

func NewReinjector(clock Clock, sender KeySender) *Reinjector {
	return &Reinjector{clock: clock, sender: sender}
}

// OnResendRequest schedules exactly one injection. The delay is not
// cancellable: once a request is in, the key pair will be sent. Duplicate
// requests are prevented upstream by the probe's fix window, not here.
// Injection failure degrades to the user pressing Enter again; it is logged
// and otherwise swallowed.
func (r *Reinjector) OnResendRequest() {
	r.clock.AfterFunc(ResendDelay, func() {
		if r.sender == nil {
			return
		}
		if err := r.sender.SendEnter(); err != nil {
			devlog.Printf("[imefix] enter reinjection skipped: %v\n", err)
		}
	})
}
