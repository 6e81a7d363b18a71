// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chardev

import (
	"errors"
	"io"
	"syscall"
	"testing"

	"github.com/bureau-foundation/chardev/lib/bufferstore"
)

func TestHandleCursor(t *testing.T) {
	device := attach(t, Options{InitialCapacity: 16})
	handle := device.Open()

	if _, err := io.WriteString(handle, "hello "); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := io.WriteString(handle, "world"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if handle.Offset() != 11 {
		t.Errorf("Offset() = %d, want 11", handle.Offset())
	}

	if _, err := handle.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	buffer := make([]byte, 11)
	if _, err := io.ReadFull(handle, buffer); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if string(buffer) != "hello world" {
		t.Errorf("read %q, want %q", buffer, "hello world")
	}
}

func TestHandlesHaveIndependentOffsets(t *testing.T) {
	device := attach(t, Options{InitialCapacity: 8})
	writer := device.Open()
	reader := device.Open()

	if _, err := writer.Write([]byte("abcd")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	buffer := make([]byte, 2)
	if _, err := reader.Read(buffer); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buffer) != "ab" {
		t.Errorf("reader got %q, want %q", buffer, "ab")
	}
	if writer.Offset() != 4 || reader.Offset() != 2 {
		t.Errorf("offsets = %d, %d; want 4, 2", writer.Offset(), reader.Offset())
	}
}

func TestHandleReadAllStopsAtCapacity(t *testing.T) {
	device := attach(t, Options{InitialCapacity: 100})

	contents, err := io.ReadAll(device.Open())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(contents) != 100 {
		t.Errorf("ReadAll returned %d bytes, want 100", len(contents))
	}
}

func TestHandleWritePastEnd(t *testing.T) {
	device := attach(t, Options{InitialCapacity: 4})
	handle := device.Open()

	n, err := handle.Write([]byte("abcdef"))
	if !errors.Is(err, io.ErrShortWrite) {
		t.Errorf("crossing write error = %v, want io.ErrShortWrite", err)
	}
	if n != 4 {
		t.Errorf("crossing write = %d, want 4", n)
	}

	_, err = handle.Write([]byte("g"))
	if !errors.Is(err, bufferstore.ErrOutOfSpace) {
		t.Errorf("write at end = %v, want ErrOutOfSpace", err)
	}
	if handle.Offset() != 4 {
		t.Errorf("Offset() = %d after failed write, want 4", handle.Offset())
	}
}

func TestHandleSeek(t *testing.T) {
	device := attach(t, Options{InitialCapacity: 10})
	handle := device.Open()

	tests := []struct {
		offset int64
		whence int
		want   int64
	}{
		{3, io.SeekStart, 3},
		{2, io.SeekCurrent, 5},
		{-1, io.SeekEnd, 9},
		{5, io.SeekEnd, 15},
	}
	for _, test := range tests {
		got, err := handle.Seek(test.offset, test.whence)
		if err != nil {
			t.Fatalf("Seek(%d, %d): %v", test.offset, test.whence, err)
		}
		if got != test.want {
			t.Errorf("Seek(%d, %d) = %d, want %d", test.offset, test.whence, got, test.want)
		}
	}

	// Past the end: reads see EOF.
	if _, err := handle.Read(make([]byte, 1)); err != io.EOF {
		t.Errorf("Read past end = %v, want io.EOF", err)
	}

	if _, err := handle.Seek(-1, io.SeekStart); Errno(err) != syscall.EINVAL {
		t.Errorf("Seek to -1 errno = %v, want EINVAL", Errno(err))
	}
	if _, err := handle.Seek(0, 42); Errno(err) != syscall.EINVAL {
		t.Errorf("Seek with bad whence errno = %v, want EINVAL", Errno(err))
	}
}

func TestHandleOffsetSurvivesShrink(t *testing.T) {
	device := attach(t, Options{InitialCapacity: 16})
	handle := device.Open()
	if _, err := handle.Seek(12, io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}

	if err := handle.Ioctl(ResizeBuffer, 8); err != nil {
		t.Fatalf("Ioctl(ResizeBuffer, 8): %v", err)
	}
	if handle.Offset() != 12 {
		t.Errorf("Offset() = %d after resize, want 12", handle.Offset())
	}
	if _, err := handle.Read(make([]byte, 4)); err != io.EOF {
		t.Errorf("Read beyond shrunken buffer = %v, want io.EOF", err)
	}
	if _, err := handle.Write([]byte("x")); Errno(err) != syscall.ENOSPC {
		t.Errorf("Write beyond shrunken buffer errno = %v, want ENOSPC", Errno(err))
	}
}
