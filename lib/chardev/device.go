// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chardev

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/chardev/lib/bufferstore"
	"github.com/bureau-foundation/chardev/lib/clock"
)

// DefaultName is the device name used when Options.Name is empty.
const DefaultName = "custom_char_device"

// Options configures Attach.
type Options struct {
	// Name identifies the device in logs and is the file name under
	// which front ends expose it. Empty uses DefaultName.
	Name string

	// InitialCapacity is the buffer size at attach time. Zero uses
	// bufferstore.DefaultCapacity.
	InitialCapacity int

	// Allocator provides buffer regions. Nil uses an unlimited
	// bufferstore.HeapAllocator.
	Allocator bufferstore.Allocator

	// Clock stamps attach and resize times. Nil uses clock.Real().
	Clock clock.Clock

	// Logger receives diagnostics. If nil, an error-level stderr
	// logger is used.
	Logger *slog.Logger
}

// Device is an attached buffer device. All methods are safe for
// concurrent use.
type Device struct {
	name   string
	store  *bufferstore.Store
	clock  clock.Clock
	logger *slog.Logger

	attachedAt time.Time
	lastResize atomic.Pointer[time.Time]
	detached   atomic.Bool

	counters counters
}

// Attach creates the device's buffer and returns the attached device.
func Attach(options Options) (*Device, error) {
	if options.Name == "" {
		options.Name = DefaultName
	}
	if options.InitialCapacity == 0 {
		options.InitialCapacity = bufferstore.DefaultCapacity
	}
	if options.InitialCapacity < 0 {
		return nil, fmt.Errorf("%w: initial capacity %d", ErrInvalidRequest, options.InitialCapacity)
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	store, err := bufferstore.New(options.InitialCapacity, options.Allocator)
	if err != nil {
		return nil, fmt.Errorf("attaching %s: %w", options.Name, err)
	}

	device := &Device{
		name:       options.Name,
		store:      store,
		clock:      options.Clock,
		logger:     options.Logger.With("device", options.Name),
		attachedAt: options.Clock.Now(),
	}
	store.OnReleaseError(func(err error) {
		device.logger.Warn("releasing replaced buffer region failed", "error", err)
	})
	device.logger.Info("device attached", "capacity", options.InitialCapacity)
	return device, nil
}

// Detach destroys the buffer. Every later operation fails with an
// error that Errno maps to ENODEV. A second Detach returns ErrDetached.
func (d *Device) Detach() error {
	if !d.detached.CompareAndSwap(false, true) {
		return ErrDetached
	}
	if err := d.store.Close(); err != nil {
		return fmt.Errorf("detaching %s: %w", d.name, err)
	}
	d.logger.Info("device detached")
	return nil
}

// Name returns the device name.
func (d *Device) Name() string { return d.name }

// Capacity returns the current buffer size in bytes, zero once
// detached.
func (d *Device) Capacity() int { return d.store.Capacity() }

// ReadTo serves a read of up to length bytes at offset by copying the
// bytes into w, which stands for the caller's memory. It returns the
// number of bytes delivered; the caller advances its offset by that
// amount. At or past the end it returns 0 and no error.
//
// If w fails or accepts fewer bytes than offered, ReadTo returns
// ErrFault and reports nothing delivered.
func (d *Device) ReadTo(w io.Writer, offset int64, length int) (int, error) {
	if offset < 0 || length < 0 {
		return 0, d.fail("read", fmt.Errorf("%w: offset %d length %d", ErrInvalidRequest, offset, length))
	}

	data, err := d.store.Read(offset, length)
	if err != nil {
		return 0, d.fail("read", err)
	}
	if len(data) == 0 {
		return 0, nil
	}

	delivered, err := w.Write(data)
	if err == nil && delivered != len(data) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return 0, d.fail("read", fmt.Errorf("%w: copying %d bytes to caller: %w", ErrFault, len(data), err))
	}

	d.counters.reads.Add(1)
	d.counters.bytesRead.Add(uint64(len(data)))
	return len(data), nil
}

// Read copies bytes at offset directly into dest, which is memory the
// caller already owns, and returns the count copied. It has ReadTo's
// end-of-buffer behavior but no copy step that can fault.
func (d *Device) Read(dest []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, d.fail("read", fmt.Errorf("%w: offset %d", ErrInvalidRequest, offset))
	}

	count, err := d.store.ReadInto(dest, offset)
	if err != nil {
		return 0, d.fail("read", err)
	}
	if count == 0 {
		return 0, nil
	}

	d.counters.reads.Add(1)
	d.counters.bytesRead.Add(uint64(count))
	return count, nil
}

// WriteFrom serves a write of length bytes at offset. The bytes are
// first staged from r, which stands for the caller's memory; a failed
// or short stage returns ErrFault and the buffer is never touched.
// Staged bytes beyond the end of the buffer are dropped and the count
// actually written is returned. An offset at or past the end fails
// with an error wrapping bufferstore.ErrOutOfSpace.
func (d *Device) WriteFrom(r io.Reader, offset int64, length int) (int, error) {
	if offset < 0 || length < 0 {
		return 0, d.fail("write", fmt.Errorf("%w: offset %d length %d", ErrInvalidRequest, offset, length))
	}

	staging := make([]byte, length)
	if _, err := io.ReadFull(r, staging); err != nil {
		return 0, d.fail("write", fmt.Errorf("%w: copying %d bytes from caller: %w", ErrFault, length, err))
	}

	return d.write(staging, offset)
}

// Write stores data at offset. The store copies data into the buffer
// under its guard, so the caller may reuse data as soon as Write
// returns.
func (d *Device) Write(data []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, d.fail("write", fmt.Errorf("%w: offset %d", ErrInvalidRequest, offset))
	}
	return d.write(data, offset)
}

func (d *Device) write(data []byte, offset int64) (int, error) {
	written, err := d.store.Write(offset, data)
	if err != nil {
		return 0, d.fail("write", err)
	}
	d.counters.writes.Add(1)
	d.counters.bytesWritten.Add(uint64(written))
	return written, nil
}

// Clear zeroes the buffer.
func (d *Device) Clear() error {
	if err := d.store.Clear(); err != nil {
		return d.fail("clear", err)
	}
	d.counters.clears.Add(1)
	d.logger.Info("buffer cleared")
	return nil
}

// Resize replaces the buffer with a zeroed one of capacity bytes.
// capacity must be positive. On allocation failure the previous
// buffer and its contents are kept and the error wraps
// bufferstore.ErrOutOfMemory.
func (d *Device) Resize(capacity int) error {
	if capacity <= 0 {
		return d.fail("resize", fmt.Errorf("%w: capacity %d", ErrInvalidRequest, capacity))
	}
	previous := d.store.Capacity()
	if err := d.store.Resize(capacity); err != nil {
		return d.fail("resize", err)
	}
	now := d.clock.Now()
	d.lastResize.Store(&now)
	d.counters.resizes.Add(1)
	d.logger.Info("buffer resized", "previous_capacity", previous, "capacity", capacity)
	return nil
}

// Ioctl executes a control command. arg is ResizeBuffer's requested
// capacity and is ignored for ClearBuffer.
func (d *Device) Ioctl(command Command, arg int64) error {
	switch command {
	case ClearBuffer:
		return d.Clear()
	case ResizeBuffer:
		if arg <= 0 || arg > int64(maxCapacity) {
			return d.fail("ioctl", fmt.Errorf("%w: %s capacity %d", ErrInvalidRequest, command, arg))
		}
		return d.Resize(int(arg))
	default:
		return d.fail("ioctl", fmt.Errorf("%w: unknown command %s", ErrInvalidRequest, command))
	}
}

// maxCapacity is the largest value ResizeBuffer's int argument can
// carry.
const maxCapacity = 1<<31 - 1

// fail records err against op, logs it, and returns it unchanged.
func (d *Device) fail(op string, err error) error {
	d.counters.record(err)
	switch {
	case errors.Is(err, bufferstore.ErrOutOfSpace):
		d.logger.Debug("operation failed", "op", op, "error", err)
	default:
		d.logger.Warn("operation failed", "op", op, "error", err, "errno", Errno(err).Error())
	}
	return err
}
