// Package crashlog persists recovered panics and errors to a JSON-lines
// file in the data directory, so field reports can include something better
// than "it closed".
package crashlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// Entry is one recorded incident.
type Entry struct {
	Time       time.Time         `json:"time"`
	Level      string            `json:"level"`
	Module     string            `json:"module"`
	Message    string            `json:"message"`
	Stacktrace string            `json:"stacktrace,omitempty"`
	Context    map[string]string `json:"context,omitempty"`
}

// Logger appends entries to a crash log file.
// Safe for concurrent use from multiple goroutines.
type Logger struct {
	path string
	mu   sync.Mutex
}

var (
	global   *Logger
	globalMu sync.Mutex
)

// Init sets up the global crash logger. Call once at startup.
func Init(dataDir string) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = &Logger{path: filepath.Join(dataDir, "crash.log")}
}

// LogPanic records a recovered panic with a full stack trace.
// Safe to call even if Init() was never called (prints to stdout as fallback).
func LogPanic(module string, r any, ctx map[string]string) {
	msg := fmt.Sprintf("%v", r)
	stack := make([]byte, 4096)
	n := runtime.Stack(stack, false)
	stackStr := string(stack[:n])

	// Always print to stdout for immediate visibility
	fmt.Printf("[PANIC] %s: %s\n%s\n", module, msg, stackStr)

	if l := current(); l != nil {
		l.append("panic", module, msg, stackStr, ctx)
	}
}

// LogError records an error with optional context.
func LogError(module string, err error, ctx map[string]string) {
	if err == nil {
		return
	}
	l := current()
	if l == nil {
		fmt.Printf("[ERROR] %s: %v\n", module, err)
		return
	}
	l.append("error", module, err.Error(), "", ctx)
}

func current() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	return global
}

func (l *Logger) append(level, module, message, stacktrace string, ctx map[string]string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := Entry{
		Time:       time.Now().UTC(),
		Level:      level,
		Module:     module,
		Message:    message,
		Stacktrace: stacktrace,
		Context:    ctx,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	f.Write(append(data, '\n'))
}
