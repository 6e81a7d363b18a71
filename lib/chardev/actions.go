// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chardev

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/chardev/lib/codec"
	"github.com/bureau-foundation/chardev/lib/control"
)

// Control socket action names.
const (
	ActionStatus = "status"
	ActionClear  = "clear"
	ActionResize = "resize"
	ActionDump   = "dump"
)

// ResizeRequest is the body of a resize action.
type ResizeRequest struct {
	Capacity int `cbor:"capacity"`
}

// DumpRequest is the body of a dump action.
type DumpRequest struct {
	Compression string `cbor:"compression,omitempty"`
}

// RegisterActions exposes device on server. The clear and resize
// actions go through Device.Ioctl, so they behave exactly like the
// corresponding ioctls on a mounted device file.
func RegisterActions(server *control.Server, device *Device) {
	server.Handle(ActionStatus, func(ctx context.Context, raw []byte) (any, error) {
		return device.Status()
	})

	server.Handle(ActionClear, func(ctx context.Context, raw []byte) (any, error) {
		if err := device.Ioctl(ClearBuffer, 0); err != nil {
			return nil, err
		}
		return nil, nil
	})

	server.Handle(ActionResize, func(ctx context.Context, raw []byte) (any, error) {
		var request ResizeRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, fmt.Errorf("%w: decoding resize request: %w", ErrInvalidRequest, err)
		}
		if err := device.Ioctl(ResizeBuffer, int64(request.Capacity)); err != nil {
			return nil, err
		}
		return nil, nil
	})

	server.Handle(ActionDump, func(ctx context.Context, raw []byte) (any, error) {
		var request DumpRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, fmt.Errorf("%w: decoding dump request: %w", ErrInvalidRequest, err)
		}
		compression, err := ParseCompression(request.Compression)
		if err != nil {
			return nil, err
		}
		return device.Dump(compression)
	})
}
