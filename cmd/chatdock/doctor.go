package cli

import (
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/spf13/cobra"

	"github.com/chatdock/chatdock/internal/config"
	"github.com/chatdock/chatdock/internal/hotkey"
	"github.com/chatdock/chatdock/internal/imefix"
)

type checkResult struct {
	name   string
	ok     bool
	detail string
}

// DoctorCmd diagnoses the environment and exercises the Enter-fix state
// machine offline on a simulated clock.
func DoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment and run the Enter-fix scenarios",
		Run: func(cmd *cobra.Command, args []string) {
			results := environmentChecks()
			results = append(results, fixScenarios()...)

			failed := 0
			for _, r := range results {
				if r.ok {
					fmt.Printf("  \033[32m✓\033[0m %s\n", r.name)
				} else {
					failed++
					fmt.Printf("  \033[31m✗\033[0m %s\n", r.name)
				}
				if r.detail != "" {
					fmt.Printf("      %s\n", r.detail)
				}
			}

			if failed > 0 {
				fmt.Printf("\n\033[31m%d check(s) failed.\033[0m\n", failed)
				os.Exit(1)
			}
			fmt.Println("\n\033[32mAll checks passed.\033[0m")
		},
	}
}

func environmentChecks() []checkResult {
	var results []checkResult

	if dir, err := config.DataDir(); err != nil {
		results = append(results, checkResult{"data directory", false, err.Error()})
	} else if err := os.MkdirAll(dir, 0700); err != nil {
		results = append(results, checkResult{"data directory", false, err.Error()})
	} else {
		results = append(results, checkResult{"data directory", true, dir})
	}

	if cfg, err := config.Load(); err != nil {
		results = append(results, checkResult{"settings file", false, err.Error()})
	} else {
		results = append(results, checkResult{"settings file", true, "chat URL " + cfg.ChatURL})
		if _, _, err := hotkey.ParseChord(cfg.Hotkey); cfg.Hotkey != "" && err != nil {
			results = append(results, checkResult{"hotkey chord", false, err.Error()})
		} else {
			results = append(results, checkResult{"hotkey chord", true, cfg.Hotkey})
		}
	}

	tool := imefix.InputBridgeTool()
	if tool == "" {
		results = append(results, checkResult{"input bridge", false, "no key injection bridge on this platform"})
	} else if path, err := exec.LookPath(tool); err != nil {
		results = append(results, checkResult{"input bridge", false, tool + " not found; Enter reinjection will fail"})
	} else {
		results = append(results, checkResult{"input bridge", true, path})
	}

	return results
}

// doctorRecorder collects synthetic dispatches and reinjected keys from the
// scenario runs.
type doctorRecorder struct {
	mu      sync.Mutex
	clears  int
	resends int
}

func (r *doctorRecorder) DispatchEnterPair() {
	r.mu.Lock()
	r.clears++
	r.mu.Unlock()
}

func (r *doctorRecorder) SendEnter() error {
	r.mu.Lock()
	r.resends++
	r.mu.Unlock()
	return nil
}

func (r *doctorRecorder) counts() (clears, resends int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clears, r.resends
}

// fixScenarios drives the canonical tracker and the reinjector through the
// protocol on a simulated clock. This is the same machine the page-side
// probe runs; a failure here means the shipped script is wrong too.
func fixScenarios() []checkResult {
	type scenario struct {
		name string
		run  func(t *imefix.Tracker, clock *imefix.SimClock, rec *doctorRecorder) (bool, string)
	}

	trustedEnter := imefix.KeyEvent{Key: "Enter", Trusted: true}
	defectiveEnter := imefix.KeyEvent{Key: "Enter", Trusted: true, Composing: true}

	scenarios := []scenario{
		{"trusted Enter passes through", func(t *imefix.Tracker, clock *imefix.SimClock, rec *doctorRecorder) (bool, string) {
			if v := t.KeyDown(trustedEnter); v != imefix.Pass {
				return false, "verdict Suppress, want Pass"
			}
			return true, ""
		}},
		{"composition end dispatches the synthetic clear", func(t *imefix.Tracker, clock *imefix.SimClock, rec *doctorRecorder) (bool, string) {
			t.CompositionStart()
			t.CompositionEnd()
			clock.Advance(imefix.ClearDelay)
			if clears, _ := rec.counts(); clears != 1 {
				return false, fmt.Sprintf("synthetic clears = %d, want 1", clears)
			}
			return true, ""
		}},
		{"trusted Enter cancels the pending clear", func(t *imefix.Tracker, clock *imefix.SimClock, rec *doctorRecorder) (bool, string) {
			t.CompositionStart()
			t.CompositionEnd()
			t.KeyDown(trustedEnter)
			clock.Advance(imefix.ClearDelay * 2)
			if clears, _ := rec.counts(); clears != 0 {
				return false, fmt.Sprintf("synthetic clears = %d, want 0", clears)
			}
			return true, ""
		}},
		{"defective Enter is suppressed and reinjected", func(t *imefix.Tracker, clock *imefix.SimClock, rec *doctorRecorder) (bool, string) {
			if v := t.KeyDown(defectiveEnter); v != imefix.Suppress {
				return false, "verdict Pass, want Suppress"
			}
			_, resends := rec.counts()
			if resends != 0 {
				return false, "reinjection fired before the settle delay"
			}
			clock.Advance(imefix.ResendDelay)
			if _, resends = rec.counts(); resends != 1 {
				return false, fmt.Sprintf("reinjections = %d, want 1", resends)
			}
			return true, ""
		}},
		{"duplicate defects inside the fix window send one request", func(t *imefix.Tracker, clock *imefix.SimClock, rec *doctorRecorder) (bool, string) {
			t.KeyDown(defectiveEnter)
			t.KeyDown(defectiveEnter)
			t.KeyDown(defectiveEnter)
			clock.Advance(imefix.FixWindow)
			if _, resends := rec.counts(); resends != 1 {
				return false, fmt.Sprintf("reinjections = %d, want 1", resends)
			}
			// Window expired; a fresh defect opens a new one.
			t.KeyDown(defectiveEnter)
			clock.Advance(imefix.ResendDelay)
			if _, resends := rec.counts(); resends != 2 {
				return false, fmt.Sprintf("reinjections after expiry = %d, want 2", resends)
			}
			return true, ""
		}},
		{"Shift+Enter is never intercepted", func(t *imefix.Tracker, clock *imefix.SimClock, rec *doctorRecorder) (bool, string) {
			t.CompositionStart()
			t.CompositionEnd()
			shifted := imefix.KeyEvent{Key: "Enter", Shift: true, Trusted: true, Composing: true}
			if v := t.KeyDown(shifted); v != imefix.Pass {
				return false, "verdict Suppress, want Pass"
			}
			clock.Advance(imefix.ClearDelay)
			if clears, _ := rec.counts(); clears != 1 {
				return false, "Shift+Enter cancelled the clear timer"
			}
			return true, ""
		}},
	}

	var results []checkResult
	for _, s := range scenarios {
		clock := imefix.NewSimClock()
		rec := &doctorRecorder{}
		reinjector := imefix.NewReinjector(clock, rec)
		tracker := imefix.NewTracker(clock, rec, reinjector.OnResendRequest)

		ok, detail := s.run(tracker, clock, rec)
		results = append(results, checkResult{"fix: " + s.name, ok, detail})
	}
	return results
}
