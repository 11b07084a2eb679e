// Package devlog is the shell's debug log. Silent unless enabled with
// --verbose or CHATDOCK_DEBUG=1.
package devlog

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

var enabled atomic.Bool

func init() {
	if v := os.Getenv("CHATDOCK_DEBUG"); v == "1" || v == "true" {
		enabled.Store(true)
	}
}

// Enable turns debug logging on for the rest of the process.
func Enable() { enabled.Store(true) }

// Enabled reports whether debug logging is on.
func Enabled() bool { return enabled.Load() }

// Printf prints a timestamped debug message to stdout.
// Format: "15:04:05.000 [Tag] message\n"
func Printf(format string, args ...any) {
	if !enabled.Load() {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Printf("%s %s", time.Now().Format("15:04:05.000"), msg)
}
