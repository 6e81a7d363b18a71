// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package integration_test runs the chardev binaries end to end: a real
// chardev-daemon process, driven by the real chardevctl and by ordinary
// file I/O on its FUSE mount.
//
// The binaries are located through environment variables so the tests
// run against whatever the build produced:
//
//	go build -o /tmp/bin/ ./cmd/...
//	CHARDEV_DAEMON_BINARY=/tmp/bin/chardev-daemon \
//	CHARDEVCTL_BINARY=/tmp/bin/chardevctl \
//	    go test ./integration/
//
// Tests skip when a binary is not provided, and mount tests skip when
// /dev/fuse is unavailable.
package integration_test

import (
	"bytes"
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"
)

// resolvedBinary returns the binary path named by envVar, skipping the
// test when it is not set or does not exist.
func resolvedBinary(t *testing.T, envVar string) string {
	t.Helper()

	path := os.Getenv(envVar)
	if path == "" {
		t.Skipf("%s not set", envVar)
	}
	if _, err := os.Stat(path); err != nil {
		t.Skipf("binary not found at %s: %v", path, err)
	}
	return path
}

// startProcess starts a binary as a subprocess, wiring its output to
// the test log. The registered cleanup sends SIGTERM and waits for the
// process to exit, with a 5-second SIGKILL fallback.
func startProcess(t *testing.T, name, binary string, args ...string) {
	t.Helper()

	cmd := exec.Command(binary, args...)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		t.Fatalf("start %s: %v", name, err)
	}

	t.Logf("%s started (pid %d)", name, cmd.Process.Pid)

	t.Cleanup(func() {
		cmd.Process.Signal(syscall.SIGTERM)
		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("%s exited with error: %v", name, err)
			}
		case <-time.After(5 * time.Second):
			cmd.Process.Kill()
			<-done
			t.Errorf("%s killed after timeout", name)
		}
	})
}

// runTool runs a binary to completion and returns its stdout.
func runTool(t *testing.T, binary string, args ...string) ([]byte, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if stderr.Len() > 0 {
		t.Logf("%s stderr: %s", binary, stderr.String())
	}
	return stdout.Bytes(), err
}

// tempSocketDir creates a short-named temporary directory under /tmp
// for Unix sockets, which are limited to 108-byte paths.
func tempSocketDir(t *testing.T) string {
	t.Helper()
	directory, err := os.MkdirTemp("/tmp", "chardev-it-")
	if err != nil {
		t.Fatalf("create socket temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(directory) })
	return directory
}

// waitForFile polls until a file exists on disk.
func waitForFile(t *testing.T, path string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if _, err := os.Stat(path); err == nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out after %s waiting for file: %s", timeout, path)
		}
		time.Sleep(50 * time.Millisecond)
	}
}
