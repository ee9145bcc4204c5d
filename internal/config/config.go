// Package config loads sheetsync settings from YAML or TOML, applies
// defaults and environment overrides, and validates the result against an
// embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Config is the merged configuration of the device and host commands.
type Config struct {
	Listen          string `yaml:"listen" toml:"listen" json:"listen"`
	DataDir         string `yaml:"data_dir" toml:"data_dir" json:"data_dir"`
	LongPressMS     int    `yaml:"long_press_ms" toml:"long_press_ms" json:"long_press_ms"`
	Journal         string `yaml:"journal" toml:"journal" json:"journal"`
	Display         string `yaml:"display" toml:"display" json:"display"`
	ScreenWidth     int    `yaml:"screen_width" toml:"screen_width" json:"screen_width"`
	ScreenHeight    int    `yaml:"screen_height" toml:"screen_height" json:"screen_height"`
	LogLevel        string `yaml:"log_level" toml:"log_level" json:"log_level"`
	LogFile         string `yaml:"log_file" toml:"log_file" json:"log_file"`
	DeviceAddr      string `yaml:"device_addr" toml:"device_addr" json:"device_addr"`
	FocusCommand    string `yaml:"focus_command" toml:"focus_command" json:"focus_command"`
	FocusIntervalMS int    `yaml:"focus_interval_ms" toml:"focus_interval_ms" json:"focus_interval_ms"`
	CaptureCommand  string `yaml:"capture_command" toml:"capture_command" json:"capture_command"`
}

// Display modes.
const (
	DisplayTerminal = "terminal"
	DisplayNone     = "none"
)

// DefaultPath is read when no --config is given.
const DefaultPath = "~/.config/sheetsync/config.yaml"

// Environment overrides.
const (
	EnvDeviceAddr = "SHEETSYNC_DEVICE_ADDR"
	EnvDataDir    = "SHEETSYNC_DATA_DIR"
	EnvLogLevel   = "SHEETSYNC_LOG_LEVEL"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:          ":51151",
		DataDir:         "~/.local/share/sheetsync",
		LongPressMS:     1000,
		Journal:         "~/.local/state/sheetsync/journal.db",
		Display:         DisplayTerminal,
		ScreenWidth:     1072,
		ScreenHeight:    1448,
		LogLevel:        "info",
		DeviceAddr:      "127.0.0.1:51151",
		FocusCommand:    "hyprctl -j activewindow",
		FocusIntervalMS: 1000,
		CaptureCommand:  "grim -",
	}
}

// Load reads path over the defaults. An empty path reads DefaultPath, which
// may be absent; an explicit path must exist.
func Load(path string) (Config, error) {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = DefaultPath
	}
	resolved, err := ExpandPath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	data, err := os.ReadFile(resolved)
	switch {
	case err == nil:
		if err := decode(resolved, data, &cfg); err != nil {
			return Config{}, err
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		slog.Debug("no config file, using defaults", "path", resolved)
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	if err := cfg.expand(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvDeviceAddr)); v != "" {
		cfg.DeviceAddr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDataDir)); v != "" {
		cfg.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
}

func (c *Config) expand() error {
	for _, p := range []*string{&c.DataDir, &c.Journal, &c.LogFile} {
		if strings.TrimSpace(*p) == "" {
			continue
		}
		v, err := ExpandPath(*p)
		if err != nil {
			return err
		}
		*p = v
	}
	return nil
}

// Validate checks c against the embedded schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	v := def.Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LongPress is the long-press threshold.
func (c Config) LongPress() time.Duration {
	return time.Duration(c.LongPressMS) * time.Millisecond
}

// FocusInterval is the focus polling cadence.
func (c Config) FocusInterval() time.Duration {
	return time.Duration(c.FocusIntervalMS) * time.Millisecond
}

// Level maps LogLevel to a slog level.
func (c Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ExpandPath resolves a leading ~ and makes path absolute.
func ExpandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
