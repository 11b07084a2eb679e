package imefix

import (
	"fmt"
	"os/exec"
	"runtime"
)

// ExecSender injects an Enter key pair through the platform's scripting
// input bridge. The event lands on whichever window the OS considers
// focused, so the shell passes a Focused guard that reports whether the
// chat window currently holds focus.
type ExecSender struct {
	// Focused reports whether the shell window is focused. When it returns
	// false the injection is skipped; nil means always inject.
	Focused func() bool
}

// SendEnter delivers one key-down/key-up Enter pair with no modifiers.
func (s *ExecSender) SendEnter() error {
	if s.Focused != nil && !s.Focused() {
		return fmt.Errorf("window not focused")
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		// Key code 36 is Return.
		cmd = exec.Command("osascript", "-e", `tell application "System Events" to key code 36`)
	case "linux":
		cmd = exec.Command("xdotool", "key", "--clearmodifiers", "Return")
	case "windows":
		ps := `$w = New-Object -ComObject WScript.Shell; $w.SendKeys('~')`
		cmd = exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", ps)
	default:
		return fmt.Errorf("no input bridge on %s", runtime.GOOS)
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("input bridge: %w", err)
	}
	return nil
}

// InputBridgeTool returns the external tool SendEnter relies on for the
// current platform. The doctor command checks it is installed.
func InputBridgeTool() string {
	switch runtime.GOOS {
	case "darwin":
		return "osascript"
	case "linux":
		return "xdotool"
	case "windows":
		return "powershell"
	default:
		return ""
	}
}
