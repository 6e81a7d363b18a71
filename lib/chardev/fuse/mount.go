// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fuse

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/bureau-foundation/chardev/lib/chardev"
)

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory where the filesystem is mounted.
	// It is created if it does not exist.
	Mountpoint string

	// Device is the device exposed by the mount. Its name becomes
	// the file name.
	Device *chardev.Device

	// AllowOther permits other users (including root) to open the
	// device file. Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Logger receives diagnostic messages. If nil, an error-level
	// stderr logger is used.
	Logger *slog.Logger
}

// Mount mounts the device filesystem at the configured mountpoint. The
// caller must call Unmount on the returned Server when done.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Device == nil {
		return nil, fmt.Errorf("device is required")
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	root := &rootNode{options: &options}

	// Capacity changes on resize, so attributes are never cached.
	var attrTimeout time.Duration
	entryTimeout := 1 * time.Second

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout: &entryTimeout,
		AttrTimeout:  &attrTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     options.Device.Name(),
			Name:       "chardev",
			AllowOther: options.AllowOther,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("device FUSE filesystem mounted",
		"mountpoint", options.Mountpoint,
		"device", options.Device.Name(),
	)
	return server, nil
}

// rootNode is the filesystem root. Its only child is the device file.
type rootNode struct {
	gofuse.Inode
	options *Options
}

var _ gofuse.InodeEmbedder = (*rootNode)(nil)
var _ gofuse.NodeOnAdder = (*rootNode)(nil)

func (r *rootNode) OnAdd(ctx context.Context) {
	file := r.NewPersistentInode(ctx, &deviceNode{
		device: r.options.Device,
		logger: r.options.Logger,
	}, gofuse.StableAttr{Mode: syscall.S_IFREG})
	r.AddChild(r.options.Device.Name(), file, true)
}

// deviceNode is the device file. Every open shares the same device;
// file positions are kept by the kernel and arrive as offsets.
type deviceNode struct {
	gofuse.Inode
	device *chardev.Device
	logger *slog.Logger
}

var _ gofuse.InodeEmbedder = (*deviceNode)(nil)
var _ gofuse.NodeGetattrer = (*deviceNode)(nil)
var _ gofuse.NodeSetattrer = (*deviceNode)(nil)
var _ gofuse.NodeOpener = (*deviceNode)(nil)
var _ gofuse.NodeReader = (*deviceNode)(nil)
var _ gofuse.NodeWriter = (*deviceNode)(nil)
var _ gofuse.NodeIoctler = (*deviceNode)(nil)

func (d *deviceNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	d.fillAttr(out)
	return 0
}

// Setattr accepts truncation without resizing so that "echo x > file"
// works. Mode, owner and time changes are ignored the same way.
func (d *deviceNode) Setattr(_ context.Context, _ gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if size, ok := in.GetSize(); ok {
		d.logger.Debug("ignoring truncate on device file", "size", size)
	}
	d.fillAttr(out)
	return 0
}

func (d *deviceNode) fillAttr(out *fuse.AttrOut) {
	out.Mode = syscall.S_IFREG | 0o666
	out.Size = uint64(d.device.Capacity())
	out.Blocks = (out.Size + 511) / 512
	out.Blksize = 4096
}

func (d *deviceNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	return nil, fuse.FOPEN_DIRECT_IO, 0
}

func (d *deviceNode) Read(ctx context.Context, f gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n, err := d.device.Read(dest, off)
	if err != nil {
		return nil, chardev.Errno(err)
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (d *deviceNode) Write(ctx context.Context, f gofuse.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	n, err := d.device.Write(data, off)
	if err != nil {
		return 0, chardev.Errno(err)
	}
	return uint32(n), 0
}

// Ioctl runs a device command. The kernel hands over the argument
// bytes it copied from the caller in input; when there are none, arg
// itself is taken as the value.
func (d *deviceNode) Ioctl(ctx context.Context, f gofuse.FileHandle, cmd uint32, arg uint64, input []byte, output []byte) (int32, syscall.Errno) {
	command := chardev.Command(cmd)

	var value int64
	if command == chardev.ResizeBuffer {
		if len(input) >= 4 {
			value = int64(int32(binary.NativeEndian.Uint32(input)))
		} else {
			value = int64(int32(uint32(arg)))
		}
	}

	if err := d.device.Ioctl(command, value); err != nil {
		return -1, chardev.Errno(err)
	}
	return 0, 0
}
