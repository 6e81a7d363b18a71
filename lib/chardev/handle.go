// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chardev

import (
	"fmt"
	"io"
	"sync"
)

// Handle is an open file on a device. It keeps its own offset, the way
// each open(2) of a device node gets its own file position. Handles on
// the same device share the buffer.
type Handle struct {
	device *Device

	mu     sync.Mutex
	offset int64
}

// Open returns a handle positioned at offset zero.
func (d *Device) Open() *Handle {
	return &Handle{device: d}
}

// Offset returns the handle's current position.
func (h *Handle) Offset() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.offset
}

// Read reads from the current offset and advances it by the count
// read. At or past the end of the buffer it returns io.EOF.
func (h *Handle) Read(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(p) == 0 {
		return 0, nil
	}
	n, err := h.device.Read(p, h.offset)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	h.offset += int64(n)
	return n, nil
}

// Write writes at the current offset and advances it by the count
// written. A write that crosses the end of the buffer stores what fits
// and returns io.ErrShortWrite; the next write fails with an error
// wrapping bufferstore.ErrOutOfSpace.
func (h *Handle) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	n, err := h.device.Write(p, h.offset)
	if err != nil {
		return 0, err
	}
	h.offset += int64(n)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Seek sets the offset. io.SeekEnd is relative to the current
// capacity. Offsets past the end are allowed; reads there return
// io.EOF and writes fail with out of space.
func (h *Handle) Seek(offset int64, whence int) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = h.offset
	case io.SeekEnd:
		base = int64(h.device.Capacity())
	default:
		return 0, fmt.Errorf("%w: whence %d", ErrInvalidRequest, whence)
	}

	target := base + offset
	if target < 0 {
		return 0, fmt.Errorf("%w: seek to negative offset %d", ErrInvalidRequest, target)
	}
	h.offset = target
	return target, nil
}

// Ioctl executes a control command on the handle's device. The
// handle's offset is unchanged, even when a resize leaves it past the
// new end.
func (h *Handle) Ioctl(command Command, arg int64) error {
	return h.device.Ioctl(command, arg)
}
