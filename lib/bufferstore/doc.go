// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bufferstore implements the byte buffer behind a chardev
// device: a fixed-capacity region that callers read and write at
// offsets, clear, and replace wholesale with a region of a different
// size.
//
// A [Store] exclusively owns its region. Every operation, including
// the capacity check that precedes a read or write, runs under one
// mutex, so the (region, capacity) pair is always observed together.
// A reader can never see a half-installed resize or touch a region
// that a concurrent resize has already released. Data leaves the
// store only as copies.
//
// Regions come from an [Allocator]. [HeapAllocator] uses ordinary Go
// slices and can enforce a size ceiling; [MmapAllocator] maps
// anonymous memory outside the Go heap and unmaps it on release, which
// turns any unguarded access to a released region into a hard fault
// rather than a silent read of stale memory.
//
// Semantics at the edges:
//
//   - Read at or past the end returns an empty result, not an error.
//   - Write at or past the end fails with [ErrOutOfSpace], including a
//     zero-length write. Writes that cross the end are truncated and
//     report the number of bytes actually stored.
//   - Resize(0) is a no-op. Any other resize installs a zero-filled
//     region; previous contents are discarded. A failed allocation
//     leaves the store untouched and reports [ErrOutOfMemory].
//   - After Close every operation returns [ErrDestroyed].
package bufferstore
