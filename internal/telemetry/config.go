// Package telemetry sends anonymous operation analytics to PostHog.
// Events carry counts, durations and token usage only, never task content.
package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"
)

// ConfigFileName is the opt-in state file inside the config dir.
const ConfigFileName = "telemetry.json"

// Config is the persisted opt-in state. Telemetry is off until enabled.
type Config struct {
	Enabled     bool   `json:"enabled"`
	AnonymousID string `json:"anonymous_id"`

	path string
}

// LoadConfig reads dir/telemetry.json. A missing file yields a disabled
// config; an anonymous id is minted whenever none is stored.
func LoadConfig(dir string) (*Config, error) {
	cfg := &Config{path: filepath.Join(dir, ConfigFileName)}

	data, err := os.ReadFile(cfg.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read telemetry config: %w", err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse telemetry config %s: %w", cfg.path, err)
		}
	}
	if cfg.AnonymousID == "" {
		cfg.AnonymousID = uuid.NewString()
	}
	return cfg, nil
}

// Path is where Save writes.
func (c *Config) Path() string { return c.path }

// Save writes the config atomically, readable by the owner only.
func (c *Config) Save() error {
	if c.path == "" {
		return errors.New("telemetry config has no path")
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal telemetry config: %w", err)
	}
	if err := atomic.WriteFile(c.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write telemetry config: %w", err)
	}
	return os.Chmod(c.path, 0o600)
}

func (c *Config) Enable()  { c.Enabled = true }
func (c *Config) Disable() { c.Enabled = false }

// IsEnabled is false for a nil config.
func (c *Config) IsEnabled() bool {
	return c != nil && c.Enabled
}
