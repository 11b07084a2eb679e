package imefix

import (
	"errors"
	"testing"
	"time"
)

type recordingSender struct {
	sentAt []time.Time
	clock  *SimClock
	err    error
}

func (s *recordingSender) SendEnter() error {
	s.sentAt = append(s.sentAt, s.clock.Now())
	return s.err
}

func TestReinjectorDelaysExactlyOneInjection(t *testing.T) {
	clock := NewSimClock()
	sender := &recordingSender{clock: clock}
	r := NewReinjector(clock, sender)

	start := clock.Now()
	r.OnResendRequest()

	clock.Advance(149 * time.Millisecond)
	if len(sender.sentAt) != 0 {
		t.Fatalf("injected early at 149ms")
	}
	clock.Advance(1 * time.Millisecond)
	if len(sender.sentAt) != 1 {
		t.Fatalf("injections = %d, want 1 at 150ms", len(sender.sentAt))
	}
	if got := sender.sentAt[0].Sub(start); got < ResendDelay {
		t.Errorf("injected after %v, want >= %v", got, ResendDelay)
	}

	clock.Advance(10 * time.Second)
	if len(sender.sentAt) != 1 {
		t.Errorf("injections = %d, want 1 (never batched, never repeated)", len(sender.sentAt))
	}
}

func TestReinjectorEachRequestInjectsOnce(t *testing.T) {
	clock := NewSimClock()
	sender := &recordingSender{clock: clock}
	r := NewReinjector(clock, sender)

	r.OnResendRequest()
	clock.Advance(300 * time.Millisecond)
	r.OnResendRequest()
	clock.Advance(300 * time.Millisecond)

	if len(sender.sentAt) != 2 {
		t.Errorf("injections = %d, want 2", len(sender.sentAt))
	}
}

func TestReinjectorSwallowsSenderFailure(t *testing.T) {
	clock := NewSimClock()
	sender := &recordingSender{clock: clock, err: errors.New("no focused window")}
	r := NewReinjector(clock, sender)

	r.OnResendRequest()
	clock.Advance(ResendDelay) // must not panic; failure is non-fatal
	if len(sender.sentAt) != 1 {
		t.Errorf("injections attempted = %d, want 1", len(sender.sentAt))
	}
}

func TestReinjectorNilSender(t *testing.T) {
	clock := NewSimClock()
	r := NewReinjector(clock, nil)
	r.OnResendRequest()
	clock.Advance(ResendDelay) // silently skipped
}
