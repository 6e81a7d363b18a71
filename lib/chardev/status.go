// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chardev

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/chardev/lib/bufferstore"
)

type counters struct {
	reads        atomic.Uint64
	writes       atomic.Uint64
	bytesRead    atomic.Uint64
	bytesWritten atomic.Uint64
	clears       atomic.Uint64
	resizes      atomic.Uint64

	outOfSpace      atomic.Uint64
	outOfMemory     atomic.Uint64
	invalidRequests atomic.Uint64
	faults          atomic.Uint64
}

func (c *counters) record(err error) {
	switch {
	case errors.Is(err, bufferstore.ErrOutOfSpace):
		c.outOfSpace.Add(1)
	case errors.Is(err, bufferstore.ErrOutOfMemory):
		c.outOfMemory.Add(1)
	case errors.Is(err, ErrFault):
		c.faults.Add(1)
	case Errno(err) == syscall.EINVAL:
		c.invalidRequests.Add(1)
	}
}

// Counters is a point-in-time copy of a device's operation counts.
type Counters struct {
	Reads        uint64 `json:"reads" cbor:"reads"`
	Writes       uint64 `json:"writes" cbor:"writes"`
	BytesRead    uint64 `json:"bytes_read" cbor:"bytes_read"`
	BytesWritten uint64 `json:"bytes_written" cbor:"bytes_written"`
	Clears       uint64 `json:"clears" cbor:"clears"`
	Resizes      uint64 `json:"resizes" cbor:"resizes"`

	OutOfSpace      uint64 `json:"out_of_space" cbor:"out_of_space"`
	OutOfMemory     uint64 `json:"out_of_memory" cbor:"out_of_memory"`
	InvalidRequests uint64 `json:"invalid_requests" cbor:"invalid_requests"`
	Faults          uint64 `json:"faults" cbor:"faults"`
}

// Status describes a device for the control socket and chardevctl.
type Status struct {
	Name         string     `json:"name" cbor:"name"`
	Capacity     int        `json:"capacity" cbor:"capacity"`
	AttachedAt   time.Time  `json:"attached_at" cbor:"attached_at"`
	LastResizeAt *time.Time `json:"last_resize_at,omitempty" cbor:"last_resize_at,omitempty"`
	Counters     Counters   `json:"counters" cbor:"counters"`

	// Digest is the hex BLAKE3-256 of the buffer contents.
	Digest string `json:"digest" cbor:"digest"`
}

// Status snapshots the buffer and returns the device's status. The
// digest and capacity come from the same snapshot.
func (d *Device) Status() (Status, error) {
	snapshot, err := d.store.Snapshot()
	if err != nil {
		return Status{}, fmt.Errorf("status of %s: %w", d.name, err)
	}
	digest := blake3.Sum256(snapshot)

	status := Status{
		Name:       d.name,
		Capacity:   len(snapshot),
		AttachedAt: d.attachedAt,
		Counters: Counters{
			Reads:           d.counters.reads.Load(),
			Writes:          d.counters.writes.Load(),
			BytesRead:       d.counters.bytesRead.Load(),
			BytesWritten:    d.counters.bytesWritten.Load(),
			Clears:          d.counters.clears.Load(),
			Resizes:         d.counters.resizes.Load(),
			OutOfSpace:      d.counters.outOfSpace.Load(),
			OutOfMemory:     d.counters.outOfMemory.Load(),
			InvalidRequests: d.counters.invalidRequests.Load(),
			Faults:          d.counters.faults.Load(),
		},
		Digest: hex.EncodeToString(digest[:]),
	}
	if last := d.lastResize.Load(); last != nil {
		resized := *last
		status.LastResizeAt = &resized
	}
	return status, nil
}
