// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bufferstore

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Allocator hands out and takes back buffer regions.
//
// Allocate must return a zero-filled slice of exactly size bytes, or
// an error wrapping ErrOutOfMemory when the region cannot be provided.
// Release receives only slices previously returned by Allocate, each
// exactly once.
type Allocator interface {
	Allocate(size int) ([]byte, error)
	Release(region []byte) error
}

// HeapAllocator allocates regions on the Go heap.
type HeapAllocator struct {
	// Limit is the largest region, in bytes, the allocator will hand
	// out. Zero means no limit.
	Limit int
}

// Allocate returns a new zeroed slice.
func (a HeapAllocator) Allocate(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, size)
	}
	if a.Limit > 0 && size > a.Limit {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrOutOfMemory, size, a.Limit)
	}
	return make([]byte, size), nil
}

// Release is a no-op; the garbage collector reclaims the region.
func (HeapAllocator) Release([]byte) error { return nil }

// MmapAllocator allocates regions with anonymous private mappings
// outside the Go heap. The kernel supplies the zero fill. Released
// regions are unmapped, so any later access faults.
type MmapAllocator struct {
	// Limit is the largest region, in bytes, the allocator will map.
	// Zero means no limit beyond what the kernel grants.
	Limit int
}

// Allocate maps size bytes of anonymous memory.
func (a MmapAllocator) Allocate(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, size)
	}
	if a.Limit > 0 && size > a.Limit {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrOutOfMemory, size, a.Limit)
	}

	region, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap of %d bytes: %w", ErrOutOfMemory, size, err)
	}
	return region, nil
}

// Release unmaps a region returned by Allocate.
func (MmapAllocator) Release(region []byte) error {
	if len(region) == 0 {
		return nil
	}
	if err := unix.Munmap(region); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	return nil
}
