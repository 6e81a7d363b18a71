// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/chardev/lib/bufferstore"
	"github.com/bureau-foundation/chardev/lib/chardev"
)

// Allocator names accepted by device.allocator.
const (
	AllocatorHeap = "heap"
	AllocatorMmap = "mmap"
)

// Config is the chardev daemon configuration.
type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	Mount   MountConfig   `yaml:"mount"`
	Control ControlConfig `yaml:"control"`
	Log     LogConfig     `yaml:"log"`
}

// DeviceConfig configures the device buffer.
type DeviceConfig struct {
	// Name is the device name and the file name in the mount.
	// Default: custom_char_device
	Name string `yaml:"name"`

	// InitialCapacity is the buffer size at attach time, in bytes.
	// Default: 1024
	InitialCapacity int `yaml:"initial_capacity"`

	// MaxCapacity caps the buffer size a resize may request. Larger
	// requests fail as out of memory. Zero means no cap.
	// Default: 16 MiB
	MaxCapacity int `yaml:"max_capacity"`

	// Allocator selects where buffer regions live: "heap" for Go
	// slices, "mmap" for anonymous mappings outside the Go heap.
	// Default: heap
	Allocator string `yaml:"allocator"`
}

// MountConfig configures the FUSE front end.
type MountConfig struct {
	// Mountpoint is where the device filesystem is mounted. Empty
	// disables the mount; the device is then reachable only through
	// the control socket.
	Mountpoint string `yaml:"mountpoint"`

	// AllowOther lets other users open the device file.
	AllowOther bool `yaml:"allow_other"`
}

// ControlConfig configures the control socket.
type ControlConfig struct {
	// SocketPath is the Unix socket the daemon listens on.
	// Default: /run/chardev/control.sock
	SocketPath string `yaml:"socket_path"`
}

// LogConfig configures daemon logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: info
	Level string `yaml:"level"`

	// Format is text or json. Default: text
	Format string `yaml:"format"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Name:            chardev.DefaultName,
			InitialCapacity: bufferstore.DefaultCapacity,
			MaxCapacity:     16 << 20,
			Allocator:       AllocatorHeap,
		},
		Control: ControlConfig{
			SocketPath: "/run/chardev/control.sock",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from the file named by CHARDEV_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv("CHARDEV_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("CHARDEV_CONFIG environment variable not set; " +
			"set it to the path of your chardev.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from path over the defaults and
// expands variables in paths. It does not validate; call Validate
// after applying any flag overrides.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.expandVariables()
	return cfg, nil
}

// loadFile merges the file at path into c.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// Stripped JSONC is valid YAML.
		data = jsonc.ToJSON(data)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	c.Mount.Mountpoint = expandVars(c.Mount.Mountpoint)
	c.Control.SocketPath = expandVars(c.Control.SocketPath)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Device.Name == "" {
		errs = append(errs, fmt.Errorf("device.name is required"))
	}
	if strings.ContainsRune(c.Device.Name, '/') {
		errs = append(errs, fmt.Errorf("device.name must not contain '/': %q", c.Device.Name))
	}
	if c.Device.InitialCapacity <= 0 {
		errs = append(errs, fmt.Errorf("device.initial_capacity must be positive, got %d", c.Device.InitialCapacity))
	}
	if c.Device.MaxCapacity < 0 {
		errs = append(errs, fmt.Errorf("device.max_capacity must not be negative, got %d", c.Device.MaxCapacity))
	}
	if c.Device.MaxCapacity > 0 && c.Device.InitialCapacity > c.Device.MaxCapacity {
		errs = append(errs, fmt.Errorf("device.initial_capacity %d exceeds device.max_capacity %d",
			c.Device.InitialCapacity, c.Device.MaxCapacity))
	}
	if c.Device.Allocator != AllocatorHeap && c.Device.Allocator != AllocatorMmap {
		errs = append(errs, fmt.Errorf("device.allocator must be %q or %q, got %q",
			AllocatorHeap, AllocatorMmap, c.Device.Allocator))
	}

	if c.Control.SocketPath == "" {
		errs = append(errs, fmt.Errorf("control.socket_path is required"))
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// NewLogger builds a logger writing to w in the configured format and
// level.
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	options := &slog.HandlerOptions{Level: level}

	switch l.Format {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, options)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, options)), nil
	default:
		return nil, fmt.Errorf("log.format must be text or json, got %q", l.Format)
	}
}

func parseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if name == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
