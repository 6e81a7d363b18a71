// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/chardev/lib/chardev"
	"github.com/bureau-foundation/chardev/lib/control"
	"github.com/bureau-foundation/chardev/lib/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// startDaemon serves a fresh device on a control socket and returns
// both.
func startDaemon(t *testing.T, capacity int) (*chardev.Device, string) {
	t.Helper()

	device, err := chardev.Attach(chardev.Options{
		Name:            "ctl-test",
		InitialCapacity: capacity,
		Logger:          testLogger(),
	})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}

	socketPath := filepath.Join(testutil.SocketDir(t), "control.sock")
	server := control.NewServer(socketPath, testLogger())
	chardev.RegisterActions(server, device)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		if err := testutil.RequireReceive(t, done, 5*time.Second, "server shutdown"); err != nil {
			t.Errorf("Serve: %v", err)
		}
		device.Detach()
	})

	for {
		if _, err := os.Stat(socketPath); err == nil {
			break
		}
		if t.Context().Err() != nil {
			t.Fatalf("socket %s did not appear", socketPath)
		}
		runtime.Gosched()
	}
	return device, socketPath
}

func TestStatusCommand(t *testing.T) {
	_, socketPath := startDaemon(t, 128)

	var output bytes.Buffer
	if err := run([]string{"--socket", socketPath, "status"}, &output); err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"device:       ctl-test", "capacity:     128 bytes", "digest:       blake3:"} {
		if !strings.Contains(output.String(), want) {
			t.Errorf("status output missing %q:\n%s", want, output.String())
		}
	}

	output.Reset()
	if err := run([]string{"--socket", socketPath, "status", "--json"}, &output); err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(output.Bytes(), &decoded); err != nil {
		t.Fatalf("status --json output is not JSON: %v\n%s", err, output.String())
	}
	if decoded["name"] != "ctl-test" || decoded["capacity"] != float64(128) {
		t.Errorf("unexpected JSON status: %v", decoded)
	}
}

func TestClearAndResizeCommands(t *testing.T) {
	device, socketPath := startDaemon(t, 16)
	if _, err := device.Write([]byte("0123456789abcdef"), 0); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := run([]string{"--socket", socketPath, "clear"}, &bytes.Buffer{}); err != nil {
		t.Fatalf("clear: %v", err)
	}
	buffer := make([]byte, 16)
	if _, err := device.Read(buffer, 0); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(buffer, make([]byte, 16)) {
		t.Errorf("buffer after clear = %v", buffer)
	}

	if err := run([]string{"--socket", socketPath, "resize", "512"}, &bytes.Buffer{}); err != nil {
		t.Fatalf("resize: %v", err)
	}
	if device.Capacity() != 512 {
		t.Errorf("Capacity() = %d, want 512", device.Capacity())
	}
}

func TestResizeRejectsBadCapacityClientSide(t *testing.T) {
	// No daemon: these must fail before any connection is attempted.
	socketPath := filepath.Join(t.TempDir(), "absent.sock")
	for _, argument := range []string{"0", "-4", "abc", "4294967296"} {
		err := run([]string{"--socket", socketPath, "resize", argument}, &bytes.Buffer{})
		if err == nil {
			t.Errorf("resize %s succeeded", argument)
			continue
		}
		if strings.Contains(err.Error(), "absent.sock") {
			t.Errorf("resize %s reached the socket: %v", argument, err)
		}
	}
}

func TestDumpCommand(t *testing.T) {
	device, socketPath := startDaemon(t, 64)
	if _, err := device.Write([]byte("dump me"), 3); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := make([]byte, 64)
	copy(want[3:], "dump me")

	for _, compression := range []string{"zstd", "lz4", "none"} {
		var output bytes.Buffer
		if err := run([]string{"--socket", socketPath, "dump", "--compression", compression}, &output); err != nil {
			t.Fatalf("dump --compression %s: %v", compression, err)
		}
		if !bytes.Equal(output.Bytes(), want) {
			t.Errorf("dump --compression %s wrote %q", compression, output.Bytes())
		}
	}

	outputPath := filepath.Join(t.TempDir(), "buffer.bin")
	if err := run([]string{"--socket", socketPath, "dump", "--output", outputPath}, &bytes.Buffer{}); err != nil {
		t.Fatalf("dump --output: %v", err)
	}
	written, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(written, want) {
		t.Errorf("dump file = %q", written)
	}

	if err := run([]string{"--socket", socketPath, "dump", "--compression", "gzip"}, &bytes.Buffer{}); err == nil {
		t.Error("dump accepted an unknown compression")
	}
}

func TestDeviceFlagRestrictions(t *testing.T) {
	devicePath := filepath.Join(t.TempDir(), "dev")
	for _, command := range []string{"status", "dump"} {
		err := run([]string{"--device", devicePath, command}, &bytes.Buffer{})
		if err == nil || !strings.Contains(err.Error(), "control socket") {
			t.Errorf("%s with --device: err = %v, want socket-only error", command, err)
		}
	}

	// Clear against a path that is not a device reports the open failure.
	if err := run([]string{"--device", devicePath, "clear"}, &bytes.Buffer{}); err == nil {
		t.Error("clear on a missing device file succeeded")
	}
}

func TestUsageErrors(t *testing.T) {
	if err := run(nil, &bytes.Buffer{}); err == nil {
		t.Error("run without a command succeeded")
	}
	if err := run([]string{"frobnicate"}, &bytes.Buffer{}); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("unknown command: err = %v", err)
	}
	if err := run([]string{"clear", "extra"}, &bytes.Buffer{}); err == nil {
		t.Error("clear accepted an argument")
	}

	var output bytes.Buffer
	if err := run([]string{"--version"}, &output); err != nil {
		t.Fatalf("--version: %v", err)
	}
	if !strings.HasPrefix(output.String(), "chardevctl ") {
		t.Errorf("--version wrote %q", output.String())
	}
}
