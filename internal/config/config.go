// Package config holds ChatDock's persisted settings.
//
// Platform paths:
//
//	macOS:   ~/Library/Application Support/ChatDock/
//	Windows: %AppData%\ChatDock\
//	Linux:   ~/.config/chatdock/
//
// Override with CHATDOCK_DATA_DIR.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config is the user-editable settings file (config.yaml in the data dir).
type Config struct {
	// ChatURL is the hosted chat application the shell embeds.
	ChatURL string `yaml:"chat_url"`

	// Hotkey toggles window visibility globally, e.g. "ctrl+shift+space".
	// Empty disables the hotkey.
	Hotkey string `yaml:"hotkey"`

	Window struct {
		Width  int `yaml:"width"`
		Height int `yaml:"height"`
	} `yaml:"window"`

	// UpdateCheck enables the periodic background release check.
	UpdateCheck bool `yaml:"update_check"`

	// Debug enables devlog output and content-side log forwarding.
	Debug bool `yaml:"debug"`
}

// DefaultConfig returns the settings written on first run.
func DefaultConfig() *Config {
	c := &Config{
		ChatURL:     "https://chat.example.com",
		Hotkey:      "ctrl+shift+space",
		UpdateCheck: true,
	}
	c.Window.Width = 1100
	c.Window.Height = 800
	return c
}

// DataDir returns the platform-appropriate data directory.
func DataDir() (string, error) {
	if dir := os.Getenv("CHATDOCK_DATA_DIR"); dir != "" {
		return dir, nil
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}

	// Linux: lowercase per XDG convention; macOS/Windows: title case.
	if runtime.GOOS == "linux" {
		return filepath.Join(configDir, "chatdock"), nil
	}
	return filepath.Join(configDir, "ChatDock"), nil
}

// Path returns the settings file location inside the data dir.
func Path() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the settings file, creating it with defaults on first run.
// Unknown fields are ignored; missing fields keep their defaults.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads settings from an explicit path, creating defaults if the
// file does not exist.
func LoadFile(path string) (*Config, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		c := DefaultConfig()
		if err := c.SaveTo(path); err != nil {
			return nil, err
		}
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c := DefaultConfig()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if c.Window.Width < 400 || c.Window.Height < 300 {
		c.Window.Width = DefaultConfig().Window.Width
		c.Window.Height = DefaultConfig().Window.Height
	}
	return c, nil
}

// SaveTo persists the settings to path.
func (c *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Save persists the settings to the default location.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}
