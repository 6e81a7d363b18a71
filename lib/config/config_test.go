// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Device.Name != "custom_char_device" {
		t.Errorf("expected device.name=custom_char_device, got %s", cfg.Device.Name)
	}
	if cfg.Device.InitialCapacity != 1024 {
		t.Errorf("expected device.initial_capacity=1024, got %d", cfg.Device.InitialCapacity)
	}
	if cfg.Device.Allocator != AllocatorHeap {
		t.Errorf("expected device.allocator=heap, got %s", cfg.Device.Allocator)
	}
	if cfg.Mount.Mountpoint != "" {
		t.Errorf("expected no default mountpoint, got %s", cfg.Mount.Mountpoint)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default() does not validate: %v", err)
	}
}

func TestLoad_RequiresChardevConfig(t *testing.T) {
	t.Setenv("CHARDEV_CONFIG", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when CHARDEV_CONFIG not set, got nil")
	}
	if !strings.HasPrefix(err.Error(), "CHARDEV_CONFIG environment variable not set") {
		t.Errorf("unexpected error message: %q", err.Error())
	}
}

func TestLoad_WithChardevConfig(t *testing.T) {
	path := writeConfig(t, "chardev.yaml", `
device:
  name: scratch
  initial_capacity: 4096
  allocator: mmap
control:
  socket_path: /test/control.sock
`)
	t.Setenv("CHARDEV_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Device.Name != "scratch" {
		t.Errorf("expected device.name=scratch, got %s", cfg.Device.Name)
	}
	if cfg.Device.InitialCapacity != 4096 {
		t.Errorf("expected initial_capacity=4096, got %d", cfg.Device.InitialCapacity)
	}
	if cfg.Device.Allocator != AllocatorMmap {
		t.Errorf("expected allocator=mmap, got %s", cfg.Device.Allocator)
	}
	if cfg.Control.SocketPath != "/test/control.sock" {
		t.Errorf("expected socket_path=/test/control.sock, got %s", cfg.Control.SocketPath)
	}
	// Omitted keys keep their defaults.
	if cfg.Device.MaxCapacity != Default().Device.MaxCapacity {
		t.Errorf("expected default max_capacity, got %d", cfg.Device.MaxCapacity)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected default log.level=info, got %s", cfg.Log.Level)
	}
}

func TestLoadFile_JSONC(t *testing.T) {
	path := writeConfig(t, "chardev.jsonc", `{
  // Scratch device for integration runs.
  "device": {
    "name": "jsonc-device",
    "initial_capacity": 2048, /* two pages */
  },
  "log": {"level": "debug", "format": "json",},
}`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Device.Name != "jsonc-device" || cfg.Device.InitialCapacity != 2048 {
		t.Errorf("device = %+v", cfg.Device)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v", cfg.Log)
	}
	if cfg.Control.SocketPath != Default().Control.SocketPath {
		t.Errorf("expected default socket path, got %s", cfg.Control.SocketPath)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadFile_Malformed(t *testing.T) {
	path := writeConfig(t, "bad.yaml", "device: [unterminated\n")
	if _, err := LoadFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestVariableExpansion(t *testing.T) {
	t.Setenv("CHARDEV_TEST_RUNTIME", "/tmp/runtime")
	t.Setenv("CHARDEV_TEST_UNSET", "")

	path := writeConfig(t, "chardev.yaml", `
mount:
  mountpoint: ${CHARDEV_TEST_RUNTIME}/dev
control:
  socket_path: ${CHARDEV_TEST_UNSET:-/run/fallback}/control.sock
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Mount.Mountpoint != "/tmp/runtime/dev" {
		t.Errorf("mountpoint = %s, want /tmp/runtime/dev", cfg.Mount.Mountpoint)
	}
	if cfg.Control.SocketPath != "/run/fallback/control.sock" {
		t.Errorf("socket_path = %s, want /run/fallback/control.sock", cfg.Control.SocketPath)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"empty name", func(c *Config) { c.Device.Name = "" }, "device.name is required"},
		{"slash in name", func(c *Config) { c.Device.Name = "a/b" }, "must not contain"},
		{"zero capacity", func(c *Config) { c.Device.InitialCapacity = 0 }, "initial_capacity must be positive"},
		{"negative max", func(c *Config) { c.Device.MaxCapacity = -1 }, "max_capacity must not be negative"},
		{"initial over max", func(c *Config) { c.Device.MaxCapacity = 512 }, "exceeds device.max_capacity"},
		{"bad allocator", func(c *Config) { c.Device.Allocator = "slab" }, "device.allocator"},
		{"no socket", func(c *Config) { c.Control.SocketPath = "" }, "control.socket_path is required"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			test.modify(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Errorf("error %q does not contain %q", err.Error(), test.want)
			}
		})
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Device.Name = ""
	cfg.Control.SocketPath = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"device.name", "control.socket_path"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err.Error(), want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	var output bytes.Buffer
	logger, err := LogConfig{Level: "warn", Format: "json"}.NewLogger(&output)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	logger.Info("dropped")
	logger.Warn("kept", "device", "test")

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d: %q", len(lines), output.String())
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if record["msg"] != "kept" || record["device"] != "test" {
		t.Errorf("unexpected record: %v", record)
	}

	if _, err := (LogConfig{Format: "xml"}).NewLogger(&output); err == nil {
		t.Error("expected error for unknown format")
	}
}
