package imefix

import (
	"testing"
	"time"
)

// recordingDispatcher counts content-local synthetic Enter pairs. When echo
// is set it feeds the dispatched event straight back into the tracker, the
// way the probe's own listener sees the events it dispatches.
type recordingDispatcher struct {
	pairs   int
	echo    *Tracker
	echoOut []Verdict
}

func (d *recordingDispatcher) DispatchEnterPair() {
	d.pairs++
	if d.echo != nil {
		d.echoOut = append(d.echoOut, d.echo.KeyDown(KeyEvent{Key: "Enter", Synthetic: true}))
	}
}

func trustedEnter() KeyEvent {
	return KeyEvent{Key: "Enter", Trusted: true}
}

func defectiveEnter() KeyEvent {
	// Engine-reported composing flag set while ground truth says idle.
	return KeyEvent{Key: "Enter", Trusted: true, Composing: true}
}

func newTestTracker() (*Tracker, *SimClock, *recordingDispatcher, *int) {
	clock := NewSimClock()
	disp := &recordingDispatcher{}
	resends := 0
	tr := NewTracker(clock, disp, func() { resends++ })
	return tr, clock, disp, &resends
}

func TestTrustedEnterWithinClearWindowCancelsSynthetic(t *testing.T) {
	tr, clock, disp, _ := newTestTracker()

	tr.CompositionStart()
	tr.CompositionEnd()
	clock.Advance(20 * time.Millisecond)

	if v := tr.KeyDown(trustedEnter()); v != Pass {
		t.Fatalf("trusted Enter verdict = %v, want Pass", v)
	}

	clock.Advance(time.Second)
	if disp.pairs != 0 {
		t.Errorf("synthetic pairs = %d, want 0 after trusted Enter cancelled the timer", disp.pairs)
	}
}

func TestClearTimerFiresWithoutEnter(t *testing.T) {
	tr, clock, disp, resends := newTestTracker()

	tr.CompositionStart()
	tr.CompositionEnd()

	clock.Advance(49 * time.Millisecond)
	if disp.pairs != 0 {
		t.Fatalf("synthetic fired early at 49ms")
	}
	clock.Advance(1 * time.Millisecond)
	if disp.pairs != 1 {
		t.Fatalf("synthetic pairs = %d, want exactly 1 at 50ms", disp.pairs)
	}

	clock.Advance(time.Second)
	if disp.pairs != 1 {
		t.Errorf("synthetic pairs = %d, want 1 (no refire)", disp.pairs)
	}
	if *resends != 0 {
		t.Errorf("resends = %d, want 0 (clear path never reaches the host)", *resends)
	}
}

func TestCompositionEndReplacesPendingClearTimer(t *testing.T) {
	tr, clock, disp, _ := newTestTracker()

	tr.CompositionStart()
	tr.CompositionEnd()
	clock.Advance(30 * time.Millisecond)

	// Second cycle before the first timer fires: replaces it.
	tr.CompositionStart()
	tr.CompositionEnd()
	clock.Advance(30 * time.Millisecond)
	if disp.pairs != 0 {
		t.Fatalf("old timer fired after replacement")
	}
	clock.Advance(20 * time.Millisecond)
	if disp.pairs != 1 {
		t.Errorf("synthetic pairs = %d, want 1 from the replacement timer", disp.pairs)
	}
}

func TestDefectiveEnterSuppressedAndResendEmitted(t *testing.T) {
	tr, _, _, resends := newTestTracker()

	if v := tr.KeyDown(defectiveEnter()); v != Suppress {
		t.Fatalf("defective Enter verdict = %v, want Suppress", v)
	}
	if *resends != 1 {
		t.Errorf("resends = %d, want exactly 1", *resends)
	}
}

func TestFixWindowSuppressesDuplicateResends(t *testing.T) {
	tr, clock, _, resends := newTestTracker()

	if v := tr.KeyDown(defectiveEnter()); v != Suppress {
		t.Fatalf("first defective Enter verdict = %v, want Suppress", v)
	}

	// Second detection inside the window: passes through, no second request.
	clock.Advance(500 * time.Millisecond)
	if v := tr.KeyDown(defectiveEnter()); v != Pass {
		t.Fatalf("duplicate defective Enter verdict = %v, want Pass while fix open", v)
	}
	if *resends != 1 {
		t.Errorf("resends = %d, want 1", *resends)
	}

	// After expiry a new defect opens a new window.
	clock.Advance(600 * time.Millisecond)
	if v := tr.KeyDown(defectiveEnter()); v != Suppress {
		t.Fatalf("post-expiry defective Enter verdict = %v, want Suppress", v)
	}
	if *resends != 2 {
		t.Errorf("resends = %d, want 2", *resends)
	}
}

func TestActiveCompositionIsNotTheDefect(t *testing.T) {
	tr, _, _, resends := newTestTracker()

	// Composing for real: the event's composing flag agrees with ground
	// truth, so this is the IME consuming Enter, not the stale-flag bug.
	tr.CompositionStart()
	if v := tr.KeyDown(defectiveEnter()); v != Pass {
		t.Fatalf("verdict during genuine composition = %v, want Pass", v)
	}
	if *resends != 0 {
		t.Errorf("resends = %d, want 0", *resends)
	}
}

func TestShiftEnterNeverIntercepted(t *testing.T) {
	tr, clock, disp, resends := newTestTracker()

	cases := []KeyEvent{
		{Key: "Enter", Shift: true, Trusted: true},
		{Key: "Enter", Shift: true, Trusted: true, Composing: true},
	}
	tr.CompositionStart()
	tr.CompositionEnd() // clear timer armed: Shift+Enter must not cancel it
	for _, ev := range cases {
		if v := tr.KeyDown(ev); v != Pass {
			t.Fatalf("Shift+Enter verdict = %v, want Pass (%+v)", v, ev)
		}
	}
	if *resends != 0 {
		t.Errorf("resends = %d, want 0 for Shift+Enter", *resends)
	}

	clock.Advance(50 * time.Millisecond)
	if disp.pairs != 1 {
		t.Errorf("Shift+Enter cancelled the clear timer: pairs = %d, want 1", disp.pairs)
	}
}

func TestNonEnterKeysPassThrough(t *testing.T) {
	tr, _, _, resends := newTestTracker()
	tr.CompositionEnd()
	if v := tr.KeyDown(KeyEvent{Key: "a", Trusted: true, Composing: true}); v != Pass {
		t.Fatalf("non-Enter verdict = %v, want Pass", v)
	}
	if *resends != 0 {
		t.Errorf("resends = %d, want 0", *resends)
	}
}

func TestSyntheticClearEventInvisibleToDefectLogic(t *testing.T) {
	clock := NewSimClock()
	disp := &recordingDispatcher{}
	resends := 0
	tr := NewTracker(clock, disp, func() { resends++ })
	disp.echo = tr

	tr.CompositionStart()
	tr.CompositionEnd()
	clock.Advance(50 * time.Millisecond)

	if disp.pairs != 1 {
		t.Fatalf("pairs = %d, want 1", disp.pairs)
	}
	// The echoed event passed through untouched and triggered nothing.
	for i, v := range disp.echoOut {
		if v != Pass {
			t.Errorf("echoed synthetic event %d verdict = %v, want Pass", i, v)
		}
	}
	if resends != 0 {
		t.Errorf("resends = %d, want 0", resends)
	}
}

func TestUntrustedEnterDoesNotCancelClearTimer(t *testing.T) {
	tr, clock, disp, _ := newTestTracker()

	tr.CompositionStart()
	tr.CompositionEnd()
	tr.KeyDown(KeyEvent{Key: "Enter"}) // script-made, untrusted, unmarked
	clock.Advance(50 * time.Millisecond)

	if disp.pairs != 1 {
		t.Errorf("pairs = %d, want 1 (untrusted Enter must not cancel)", disp.pairs)
	}
}

func TestResetClearsEverything(t *testing.T) {
	tr, clock, disp, resends := newTestTracker()

	tr.KeyDown(defectiveEnter()) // opens the fix window
	tr.CompositionStart()
	tr.CompositionEnd() // arms the clear timer
	tr.Reset()

	clock.Advance(2 * time.Second)
	if disp.pairs != 0 {
		t.Errorf("pairs = %d, want 0 after reset", disp.pairs)
	}

	// Fix window gone: a new defect is reported again.
	if v := tr.KeyDown(defectiveEnter()); v != Suppress {
		t.Errorf("post-reset defective Enter verdict = %v, want Suppress", v)
	}
	if *resends != 2 {
		t.Errorf("resends = %d, want 2", *resends)
	}
}
