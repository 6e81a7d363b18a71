// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bufferstore

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultCapacity is the capacity a device buffer starts with when no
// other size is configured.
const DefaultCapacity = 1024

var (
	// ErrOutOfSpace is returned by Write when the offset is at or past
	// the end of the buffer.
	ErrOutOfSpace = errors.New("bufferstore: no space left in buffer")

	// ErrOutOfMemory is returned when a region cannot be allocated.
	// The store is unchanged when this is returned.
	ErrOutOfMemory = errors.New("bufferstore: cannot allocate buffer region")

	// ErrDestroyed is returned by every operation after Close.
	ErrDestroyed = errors.New("bufferstore: store destroyed")

	// ErrInvalidOffset is returned for negative offsets.
	ErrInvalidOffset = errors.New("bufferstore: invalid offset")

	// ErrInvalidLength is returned for negative read lengths.
	ErrInvalidLength = errors.New("bufferstore: invalid length")

	// ErrInvalidCapacity is returned when creating a store with a
	// non-positive capacity or resizing to a negative one.
	ErrInvalidCapacity = errors.New("bufferstore: invalid capacity")
)

// Store is a resizable byte buffer guarded by a single mutex. The zero
// value is not usable; create stores with New.
type Store struct {
	// allocator is fixed at construction and safe to use without mu.
	allocator Allocator

	mu             sync.Mutex
	data           []byte
	destroyed      bool
	onReleaseError func(error)
}

// New creates a store with a zero-filled region of capacity bytes. A
// nil allocator selects HeapAllocator with no limit.
func New(capacity int, allocator Allocator) (*Store, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	if allocator == nil {
		allocator = HeapAllocator{}
	}

	data, err := allocator.Allocate(capacity)
	if err != nil {
		return nil, fmt.Errorf("allocating initial %d-byte region: %w", capacity, err)
	}

	return &Store{
		allocator: allocator,
		data:      data,
	}, nil
}

// Capacity returns the current size of the buffer in bytes, or zero
// once the store has been destroyed.
func (s *Store) Capacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.data)
}

// Read returns a copy of up to maxLength bytes starting at offset. The
// result holds min(maxLength, capacity-offset) bytes; its length is the
// count transferred. An offset at or past the end yields an empty,
// non-nil slice and no error.
func (s *Store) Read(offset int64, maxLength int) ([]byte, error) {
	if offset < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOffset, offset)
	}
	if maxLength < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, maxLength)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return nil, ErrDestroyed
	}

	count := min(int64(maxLength), s.available(offset))
	if count == 0 {
		return []byte{}, nil
	}
	result := make([]byte, count)
	copy(result, s.data[offset:offset+count])
	return result, nil
}

// ReadInto copies up to len(dest) bytes starting at offset into dest
// and returns the count copied. It has the same end-of-buffer
// behavior as Read and exists so callers with their own buffer avoid
// an allocation.
func (s *Store) ReadInto(dest []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidOffset, offset)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return 0, ErrDestroyed
	}

	if s.available(offset) == 0 {
		return 0, nil
	}
	return copy(dest, s.data[offset:]), nil
}

// Write stores data at offset and returns the number of bytes written.
// Bytes that would land past the end are dropped without error. An
// offset at or past the end fails with ErrOutOfSpace and writes
// nothing, even when data is empty.
func (s *Store) Write(offset int64, data []byte) (int, error) {
	if offset < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidOffset, offset)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return 0, ErrDestroyed
	}

	if s.available(offset) == 0 {
		return 0, ErrOutOfSpace
	}
	return copy(s.data[offset:], data), nil
}

// Clear zeroes every byte of the buffer. Capacity is unchanged.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return ErrDestroyed
	}

	clear(s.data)
	return nil
}

// Resize replaces the buffer with a zero-filled region of newCapacity
// bytes. Previous contents are not carried over. Resize(0) does
// nothing.
//
// The new region is allocated before the guard is taken. If allocation
// fails the store keeps its current region and contents, and the
// returned error wraps ErrOutOfMemory. Once the new region is
// installed the resize has succeeded: the old region is handed back
// to the allocator and a Release failure is reported to the hook set
// with OnReleaseError, never to the caller. Any capacity a caller read
// earlier is stale.
func (s *Store) Resize(newCapacity int) error {
	if newCapacity < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCapacity, newCapacity)
	}
	if newCapacity == 0 {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.destroyed {
			return ErrDestroyed
		}
		return nil
	}

	region, err := s.allocator.Allocate(newCapacity)
	if err != nil {
		return fmt.Errorf("resizing to %d bytes: %w", newCapacity, err)
	}

	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		_ = s.allocator.Release(region)
		return ErrDestroyed
	}
	previous := s.data
	s.data = region
	onReleaseError := s.onReleaseError
	s.mu.Unlock()

	// previous is unreachable from the store now, and nothing outside
	// the guard ever held it.
	if err := s.allocator.Release(previous); err != nil && onReleaseError != nil {
		onReleaseError(fmt.Errorf("releasing previous %d-byte region: %w", len(previous), err))
	}
	return nil
}

// OnReleaseError installs a function that receives errors from
// releasing a region a successful Resize replaced. Without one those
// errors are dropped.
func (s *Store) OnReleaseError(hook func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReleaseError = hook
}

// Snapshot returns a copy of the entire buffer.
func (s *Store) Snapshot() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return nil, ErrDestroyed
	}

	snapshot := make([]byte, len(s.data))
	copy(snapshot, s.data)
	return snapshot, nil
}

// Close destroys the store and releases its region. Every later call,
// including a second Close, returns ErrDestroyed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return ErrDestroyed
	}
	s.destroyed = true

	region := s.data
	s.data = nil
	if err := s.allocator.Release(region); err != nil {
		return fmt.Errorf("releasing %d-byte region: %w", len(region), err)
	}
	return nil
}

// available returns how many bytes lie between offset and the end of
// the buffer. Caller must hold mu.
func (s *Store) available(offset int64) int64 {
	capacity := int64(len(s.data))
	if offset >= capacity {
		return 0
	}
	return capacity - offset
}
