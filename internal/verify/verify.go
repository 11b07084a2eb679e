// Package verify checks the IME fix protocol end to end against a real
// Chromium engine. It loads a scratch composer page over the Chrome DevTools
// Protocol, installs the same probe script the shell injects, wires the
// channel through a CDP binding, and reinjects Enter through the Input
// domain, which, like the OS-level path, produces trusted events.
package verify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/google/uuid"

	"github.com/chatdock/chatdock/internal/imefix"
)

// Result is the outcome of one live scenario.
type Result struct {
	Name   string
	OK     bool
	Detail string
}

const bindingName = "chatdockBridge"

// seenEvent mirrors the page-side recorder entries.
type seenEvent struct {
	Type      string  `json:"type"`
	Key       string  `json:"key"`
	Trusted   bool    `json:"trusted"`
	Synthetic bool    `json:"synthetic"`
	T         float64 `json:"t"` // ms since page load
}

// Run launches headless Chrome and executes the live scenarios.
func Run(parent context.Context, headless bool) ([]Result, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, opts...)
	defer cancelAlloc()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	h := &harness{ctx: ctx, router: imefix.NewRouter()}

	// Host side: real router, relay and reinjector; the key sender goes
	// through the Input domain on this same tab.
	relay := imefix.NewRelay(nil)
	logSub := h.router.Register(imefix.MsgConsoleLog, relay.Forward)
	defer logSub.Close()

	reinjector := imefix.NewReinjector(imefix.RealClock(), cdpSender{ctx: ctx})
	fixSub := h.router.Register(imefix.MsgEnterFix, func(imefix.Message) {
		h.countFix()
		reinjector.OnResendRequest()
	})
	defer fixSub.Close()

	// Bridge traffic arrives as binding calls.
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		if e, ok := ev.(*cdpruntime.EventBindingCalled); ok && e.Name == bindingName {
			h.router.Dispatch(e.Payload)
		}
	})

	if err := h.loadScratchPage(); err != nil {
		return nil, err
	}

	var results []Result
	for _, s := range []struct {
		name string
		run  func(*harness) (bool, string)
	}{
		{"trusted Enter passes through untouched", scenarioPassthrough},
		{"composition-end alone dispatches one synthetic clear", scenarioSyntheticClear},
		{"trusted Enter within 50ms cancels the clear", scenarioClearCancelled},
		{"defective Enter is suppressed and reinjected after 150ms", scenarioReinjection},
		{"duplicate defects inside the fix window send one request", scenarioFixWindow},
		{"Shift+Enter is never intercepted", scenarioShiftEnter},
	} {
		if err := h.resetPage(); err != nil {
			return results, err
		}
		ok, detail := s.run(h)
		results = append(results, Result{Name: s.name, OK: ok, Detail: detail})
	}
	return results, nil
}

// cdpSender reinjects Enter through the Input domain; the engine delivers
// it to the focused element as a trusted event.
type cdpSender struct{ ctx context.Context }

func (s cdpSender) SendEnter() error {
	return chromedp.Run(s.ctx, chromedp.KeyEvent(kb.Enter))
}

type harness struct {
	ctx    context.Context
	router *imefix.Router

	mu       sync.Mutex
	fixCount int
}

func (h *harness) countFix() {
	h.mu.Lock()
	h.fixCount++
	h.mu.Unlock()
}

func (h *harness) fixRequests() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fixCount
}

// loadScratchPage installs the binding, the bridge shim, the event recorder
// and the probe, then navigates to a minimal composer page.
func (h *harness) loadScratchPage() error {
	runID := uuid.NewString()
	html := fmt.Sprintf(`data:text/html,<html><head><title>chatdock-verify-%s</title></head><body><textarea id="composer" autofocus></textarea></body></html>`, runID)

	// The shim routes the probe's Wails-style invoke into the CDP binding.
	shim := fmt.Sprintf(`window._wails={invoke:function(m){%s(m)}};`, bindingName)
	recorder := `window.__seen=[];
document.addEventListener("keydown",function(e){window.__seen.push({type:"keydown",key:e.key,trusted:e.isTrusted,synthetic:!!e.__chatdockSynthetic,t:performance.now()})},false);
document.addEventListener("keyup",function(e){window.__seen.push({type:"keyup",key:e.key,trusted:e.isTrusted,synthetic:!!e.__chatdockSynthetic,t:performance.now()})},false);`

	return chromedp.Run(h.ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			if err := cdpruntime.AddBinding(bindingName).Do(ctx); err != nil {
				return err
			}
			for _, script := range []string{shim, recorder, imefix.BuildProbeJS(true)} {
				if _, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx); err != nil {
					return err
				}
			}
			return nil
		}),
		chromedp.Navigate(html),
		chromedp.WaitVisible("#composer"),
		chromedp.Focus("#composer"),
	)
}

// resetPage reloads the scratch page so each scenario starts from the
// initial state (navigation resets the in-page machine).
func (h *harness) resetPage() error {
	h.mu.Lock()
	h.fixCount = 0
	h.mu.Unlock()
	return chromedp.Run(h.ctx,
		chromedp.Reload(),
		chromedp.WaitVisible("#composer"),
		chromedp.Focus("#composer"),
	)
}

func (h *harness) seen() ([]seenEvent, error) {
	var events []seenEvent
	err := chromedp.Run(h.ctx, chromedp.Evaluate(`window.__seen`, &events))
	return events, err
}

func (h *harness) eval(js string) error {
	return chromedp.Run(h.ctx, chromedp.Evaluate(js, nil))
}

const compositionEndJS = `document.getElementById("composer").dispatchEvent(new CompositionEvent("compositionend",{bubbles:true}))`

// defectiveEnterJS fabricates the engine defect: a cancelable Enter keydown
// whose isComposing reads true while no composition is active.
const defectiveEnterJS = `(function(){
var e=new KeyboardEvent("keydown",{key:"Enter",code:"Enter",keyCode:13,bubbles:true,cancelable:true});
Object.defineProperty(e,"isComposing",{get:function(){return true}});
document.getElementById("composer").dispatchEvent(e);
})()`

func scenarioPassthrough(h *harness) (bool, string) {
	if err := chromedp.Run(h.ctx, chromedp.KeyEvent(kb.Enter)); err != nil {
		return false, err.Error()
	}
	time.Sleep(200 * time.Millisecond)

	events, err := h.seen()
	if err != nil {
		return false, err.Error()
	}
	downs := filter(events, "keydown", func(e seenEvent) bool { return e.Key == "Enter" && e.Trusted })
	if len(downs) != 1 {
		return false, fmt.Sprintf("trusted Enter keydowns seen = %d, want 1", len(downs))
	}
	if n := h.fixRequests(); n != 0 {
		return false, fmt.Sprintf("resend requests = %d, want 0", n)
	}
	return true, ""
}

func scenarioSyntheticClear(h *harness) (bool, string) {
	if err := h.eval(compositionEndJS); err != nil {
		return false, err.Error()
	}
	time.Sleep(300 * time.Millisecond)

	events, err := h.seen()
	if err != nil {
		return false, err.Error()
	}
	downs := filter(events, "keydown", func(e seenEvent) bool { return e.Synthetic })
	ups := filter(events, "keyup", func(e seenEvent) bool { return e.Synthetic })
	if len(downs) != 1 || len(ups) != 1 {
		return false, fmt.Sprintf("synthetic clear down/up = %d/%d, want 1/1", len(downs), len(ups))
	}
	if n := h.fixRequests(); n != 0 {
		return false, fmt.Sprintf("resend requests = %d, want 0", n)
	}
	return true, ""
}

func scenarioClearCancelled(h *harness) (bool, string) {
	// Back-to-back CDP commands land well inside the 50ms window.
	err := chromedp.Run(h.ctx,
		chromedp.Evaluate(compositionEndJS, nil),
		chromedp.KeyEvent(kb.Enter),
	)
	if err != nil {
		return false, err.Error()
	}
	time.Sleep(300 * time.Millisecond)

	events, err := h.seen()
	if err != nil {
		return false, err.Error()
	}
	if n := len(filter(events, "keydown", func(e seenEvent) bool { return e.Synthetic })); n != 0 {
		return false, fmt.Sprintf("synthetic clears = %d, want 0 after trusted Enter", n)
	}
	if n := len(filter(events, "keydown", func(e seenEvent) bool { return e.Trusted && e.Key == "Enter" })); n != 1 {
		return false, fmt.Sprintf("trusted Enter keydowns = %d, want 1", n)
	}
	return true, ""
}

func scenarioReinjection(h *harness) (bool, string) {
	if err := h.eval(defectiveEnterJS); err != nil {
		return false, err.Error()
	}
	// Settle delay is 150ms; leave room for the engine round trip.
	time.Sleep(600 * time.Millisecond)

	if n := h.fixRequests(); n != 1 {
		return false, fmt.Sprintf("resend requests = %d, want 1", n)
	}
	events, err := h.seen()
	if err != nil {
		return false, err.Error()
	}
	// The defective event was suppressed before it could bubble to the
	// recorder; the only Enter the page sees is the trusted reinjection.
	downs := filter(events, "keydown", func(e seenEvent) bool { return e.Key == "Enter" })
	if len(downs) != 1 || !downs[0].Trusted {
		return false, fmt.Sprintf("Enter keydowns = %+v, want one trusted reinjection", downs)
	}
	return true, ""
}

func scenarioFixWindow(h *harness) (bool, string) {
	for i := 0; i < 3; i++ {
		if err := h.eval(defectiveEnterJS); err != nil {
			return false, err.Error()
		}
	}
	time.Sleep(600 * time.Millisecond)

	if n := h.fixRequests(); n != 1 {
		return false, fmt.Sprintf("resend requests = %d, want 1 inside the fix window", n)
	}
	return true, ""
}

func scenarioShiftEnter(h *harness) (bool, string) {
	if err := chromedp.Run(h.ctx, chromedp.KeyEvent(kb.Enter, chromedp.KeyModifiers(input.ModifierShift))); err != nil {
		return false, err.Error()
	}
	time.Sleep(200 * time.Millisecond)

	if n := h.fixRequests(); n != 0 {
		return false, fmt.Sprintf("resend requests = %d, want 0 for Shift+Enter", n)
	}
	events, err := h.seen()
	if err != nil {
		return false, err.Error()
	}
	if n := len(filter(events, "keydown", func(e seenEvent) bool { return e.Key == "Enter" })); n != 1 {
		return false, fmt.Sprintf("Shift+Enter keydowns = %d, want 1 (never suppressed)", n)
	}
	return true, ""
}

func filter(events []seenEvent, typ string, pred func(seenEvent) bool) []seenEvent {
	var out []seenEvent
	for _, e := range events {
		if e.Type == typ && pred(e) {
			out = append(out, e)
		}
	}
	return out
}
