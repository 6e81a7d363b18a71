// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chardev

import (
	"errors"
	"syscall"

	"github.com/bureau-foundation/chardev/lib/bufferstore"
)

var (
	// ErrInvalidRequest is returned for malformed requests: unknown
	// control commands, non-positive resize targets, negative offsets
	// or lengths. The store is never called for these.
	ErrInvalidRequest = errors.New("chardev: invalid request")

	// ErrFault is returned when copying bytes to or from the caller
	// fails. The store's contents are unaffected.
	ErrFault = errors.New("chardev: bad address")

	// ErrDetached is returned by Detach on a device that is already
	// detached.
	ErrDetached = errors.New("chardev: device detached")
)

// Errno maps an error from this package or from bufferstore to the
// status code a character device would return.
func Errno(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, bufferstore.ErrOutOfSpace):
		return syscall.ENOSPC
	case errors.Is(err, bufferstore.ErrOutOfMemory):
		return syscall.ENOMEM
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, bufferstore.ErrInvalidOffset),
		errors.Is(err, bufferstore.ErrInvalidLength),
		errors.Is(err, bufferstore.ErrInvalidCapacity):
		return syscall.EINVAL
	case errors.Is(err, ErrFault):
		return syscall.EFAULT
	case errors.Is(err, ErrDetached), errors.Is(err, bufferstore.ErrDestroyed):
		return syscall.ENODEV
	default:
		return syscall.EIO
	}
}
