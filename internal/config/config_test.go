package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if c.ChatURL == "" {
		t.Error("expected default chat URL")
	}
	if !c.UpdateCheck {
		t.Error("expected update check enabled by default")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("defaults not written to disk: %v", err)
	}
}

func TestLoadFileKeepsDefaultsForMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("chat_url: https://chat.test\n"), 0600); err != nil {
		t.Fatal(err)
	}

	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if c.ChatURL != "https://chat.test" {
		t.Errorf("ChatURL = %q", c.ChatURL)
	}
	if c.Hotkey != DefaultConfig().Hotkey {
		t.Errorf("Hotkey = %q, want default", c.Hotkey)
	}
}

func TestLoadFileRejectsTinyWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "window:\n  width: 10\n  height: 10\n"
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if c.Window.Width < 400 || c.Window.Height < 300 {
		t.Errorf("nonsensical window size kept: %dx%d", c.Window.Width, c.Window.Height)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	c := DefaultConfig()
	c.ChatURL = "https://other.test"
	c.Debug = true
	if err := c.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got.ChatURL != c.ChatURL || got.Debug != c.Debug {
		t.Errorf("round trip = %+v, want %+v", got, c)
	}
}
