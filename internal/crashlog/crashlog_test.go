package crashlog

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readEntries(t *testing.T, path string) []Entry {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read crash log: %v", err)
	}
	var entries []Entry
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("bad entry %q: %v", line, err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestLogPanicWritesStack(t *testing.T) {
	dir := t.TempDir()
	Init(dir)

	LogPanic("desktop", "boom", map[string]string{"phase": "quit"})

	entries := readEntries(t, filepath.Join(dir, "crash.log"))
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Level != "panic" || e.Module != "desktop" || e.Message != "boom" {
		t.Errorf("entry = %+v", e)
	}
	if e.Stacktrace == "" {
		t.Error("panic entry missing stack trace")
	}
	if e.Context["phase"] != "quit" {
		t.Errorf("context = %v, want phase=quit", e.Context)
	}
}

func TestLogErrorAppends(t *testing.T) {
	dir := t.TempDir()
	Init(dir)

	LogError("updater", errors.New("first"), nil)
	LogError("updater", nil, nil) // nil error is a no-op
	LogError("hotkey", errors.New("second"), nil)

	entries := readEntries(t, filepath.Join(dir, "crash.log"))
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Message != "first" || entries[1].Module != "hotkey" {
		t.Errorf("entries = %+v", entries)
	}
}
