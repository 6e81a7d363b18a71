// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package chardev adapts a [bufferstore.Store] to the request shapes a
// character device receives: reads and writes at a file offset, and
// ioctl-style control commands.
//
// A [Device] owns one store from [Attach] to [Device.Detach]. It
// validates request shape before the store sees anything, stages
// incoming bytes outside the store's guard, and translates store
// errors into errno values with [Errno] for front ends that speak
// syscall status codes (the FUSE mount in lib/chardev/fuse).
//
// The control channel uses Linux ioctl numbering so the same command
// values work through ioctl(2) on a mounted device file and through
// [Device.Ioctl] directly:
//
//	ClearBuffer   _IO('b', 1)        no argument
//	ResizeBuffer  _IOW('b', 2, int)  requested capacity, must be > 0
//
// Unrecognized commands and non-positive capacities are rejected with
// [ErrInvalidRequest] without touching the store.
//
// [Device.Open] returns a [Handle] that tracks its own file offset and
// implements io.Reader, io.Writer and io.Seeker over the device.
package chardev
