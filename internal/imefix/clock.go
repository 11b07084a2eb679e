package imefix

import (
	"sort"
	"sync"
	"time"
)

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop cancels the timer. Returns false if it already fired.
	Stop() bool
}

// Clock abstracts wall-clock scheduling so every delay in this package
// (clear timer, fix window, resend settle) can be simulated in tests and
// diagnostics instead of slept in real time.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// RealClock returns the wall-clock implementation used in the shell.
func RealClock() Clock { return realClock{} }

// SimClock is a deterministic clock for tests and the doctor scenario
// runner. Time only moves when Advance is called; due timers fire in
// deadline order on the calling goroutine.
type SimClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*simTimer
}

type simTimer struct {
	clock    *SimClock
	deadline time.Time
	fn       func()
	stopped  bool
	fired    bool
}

func (t *simTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// NewSimClock returns a simulated clock starting at an arbitrary epoch.
func NewSimClock() *SimClock {
	return &SimClock{now: time.Unix(0, 0)}
}

func (c *SimClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *SimClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &simTimer{clock: c, deadline: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves simulated time forward, firing every timer whose deadline
// falls inside the window. Callbacks run outside the clock lock so they may
// arm new timers; a timer armed during Advance fires in the same call if its
// deadline is within the window.
func (c *SimClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		t := c.nextDue(target)
		if t == nil {
			break
		}
		c.mu.Lock()
		c.now = t.deadline
		c.mu.Unlock()
		t.fn()
	}

	c.mu.Lock()
	c.now = target
	c.mu.Unlock()
}

// nextDue pops the earliest unfired, unstopped timer with deadline <= target.
func (c *SimClock) nextDue(target time.Time) *simTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	sort.SliceStable(c.timers, func(i, j int) bool {
		return c.timers[i].deadline.Before(c.timers[j].deadline)
	})
	for _, t := range c.timers {
		if t.fired || t.stopped {
			continue
		}
		if t.deadline.After(target) {
			return nil
		}
		t.fired = true
		return t
	}
	return nil
}
