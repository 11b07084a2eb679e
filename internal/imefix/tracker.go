// Package imefix works around a rendering-engine defect where the
// composition (IME) flag attached to key events goes stale: the engine
// reports Enter as "composing" after composition has genuinely ended, so the
// embedded chat app either swallows the keystroke or keeps its own
// "just finished composing" guard set and swallows the next one.
//
// The fix is split across two sides. A probe script (script.go) runs inside
// the page, tracks the true composition state and suppresses defective Enter
// events, asking the host for a fresh one over the message channel
// (channel.go). The host-side Reinjector (reinjector.go) answers by
// synthesizing an OS-level Enter after a settle delay, which the engine
// re-delivers as trusted input with a clean composition flag.
//
// Tracker is the canonical statement of the probe's state machine. It is the
// single source of the protocol constants interpolated into the script, it
// backs the doctor scenario runner, and it is what the unit tests exercise
// with a simulated clock.
package imefix

import (
	"sync"
	"time"
)

// Protocol timing. These values are shared verbatim with the probe script.
const (
	// ClearDelay is how long after composition-end the tracker waits for a
	// trusted Enter before dispatching the content-local synthetic clear.
	ClearDelay = 50 * time.Millisecond

	// FixWindow suppresses duplicate resend requests after a defective
	// Enter has been reported to the host.
	FixWindow = 1000 * time.Millisecond

	// ResendDelay is the host-side settle delay before reinjection, giving
	// the engine time to flush its stale composition bookkeeping.
	ResendDelay = 150 * time.Millisecond
)

// KeyEvent is the tracker's view of a key-down event.
type KeyEvent struct {
	Key       string
	Shift     bool
	Trusted   bool // originated from real user or OS-level input
	Composing bool // engine-reported composition flag on the event (may be stale)
	Synthetic bool // the tracker's own clear event, tagged by the probe
}

// Verdict is the tracker's decision for a key-down event. Suppression is
// applied by the caller, synchronously, before the event reaches the app.
type Verdict int

const (
	Pass Verdict = iota
	Suppress
)

// ContentDispatcher dispatches a synthetic Enter key-down/key-up pair inside
// the content context, targeted at the focused element (body fallback). It
// never leaves the page; it exists only to clear the chat app's internal
// just-composed guard.
type ContentDispatcher interface {
	DispatchEnterPair()
}

// Tracker owns all composition bookkeeping. Handlers are serialized by a
// mutex; on the content side the equivalent state machine runs on a single
// event loop, so the only real concurrency concern is timer callbacks.
type Tracker struct {
	clock    Clock
	dispatch ContentDispatcher
	resend   func() // emits a resend request; best-effort, never blocks

	mu                sync.Mutex
	composing         bool
	fixOpen           bool
	fixTimer          Timer
	clearTimer        Timer
	syntheticInFlight bool
}

// NewTracker wires a tracker to a clock, a content-local dispatcher and a
// resend emitter. resend may be nil when no host channel is available.
func NewTracker(clock Clock, dispatch ContentDispatcher, resend func()) *Tracker {
	return &Tracker{clock: clock, dispatch: dispatch, resend: resend}
}

// CompositionStart records that a composition session is genuinely active.
func (t *Tracker) CompositionStart() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.composing = true
}

// CompositionEnd records the end of composition and arms the clear timer.
// A subsequent composition-end replaces any previously armed timer.
func (t *Tracker) CompositionEnd() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.composing = false
	if t.clearTimer != nil {
		t.clearTimer.Stop()
	}
	t.clearTimer = t.clock.AfterFunc(ClearDelay, t.fireClear)
}

// KeyDown evaluates an Enter key-down. Anything that is not plain Enter
// (Shift+Enter inserts a newline) passes through untouched so the common
// path never gains latency.
func (t *Tracker) KeyDown(ev KeyEvent) Verdict {
	if ev.Key != "Enter" || ev.Shift {
		return Pass
	}

	t.mu.Lock()

	// The tracker's own clear event: the app must see it, the defect logic
	// must not.
	if t.syntheticInFlight || ev.Synthetic {
		t.mu.Unlock()
		return Pass
	}

	// A trusted Enter inside the clear window is the IME confirmation
	// keystroke. The app clears its own guard on it, so the scheduled
	// synthetic clear must not fire.
	if t.clearTimer != nil && ev.Trusted {
		t.clearTimer.Stop()
		t.clearTimer = nil
		t.mu.Unlock()
		return Pass
	}

	// The defect: the engine says composing, ground truth says no. Suppress
	// and ask the host for a fresh event. At most one fix in flight.
	if ev.Composing && !t.composing && !t.fixOpen {
		t.fixOpen = true
		t.fixTimer = t.clock.AfterFunc(FixWindow, t.expireFix)
		resend := t.resend
		t.mu.Unlock()
		if resend != nil {
			resend()
		}
		return Suppress
	}

	t.mu.Unlock()
	return Pass
}

// Reset returns the tracker to its initial state. A page navigation tears
// down the content context, which resets the in-page machine the same way.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.composing = false
	t.fixOpen = false
	t.syntheticInFlight = false
	if t.fixTimer != nil {
		t.fixTimer.Stop()
		t.fixTimer = nil
	}
	if t.clearTimer != nil {
		t.clearTimer.Stop()
		t.clearTimer = nil
	}
}

// fireClear runs on clear-timer expiry. The dispatch happens outside the
// lock because synchronous dispatchers re-enter KeyDown with the event they
// deliver; syntheticInFlight makes that re-entry invisible to defect logic.
func (t *Tracker) fireClear() {
	t.mu.Lock()
	t.clearTimer = nil
	t.syntheticInFlight = true
	dispatch := t.dispatch
	t.mu.Unlock()

	if dispatch != nil {
		dispatch.DispatchEnterPair()
	}

	t.mu.Lock()
	t.syntheticInFlight = false
	t.mu.Unlock()
}

func (t *Tracker) expireFix() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fixOpen = false
	t.fixTimer = nil
}
