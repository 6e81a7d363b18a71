// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fuse exposes a [chardev.Device] as a file in a FUSE mount,
// so ordinary programs can use it with open, read, write, lseek and
// ioctl:
//
//	<mountpoint>/
//	    custom_char_device    the device buffer (mode 0666)
//
// The file's size is the device's current capacity. Reads and writes
// are passed straight through with the kernel-supplied offset
// (FOPEN_DIRECT_IO), so the page cache never holds bytes from before a
// clear or resize. Truncation requests, which shells send for ">"
// redirection, succeed without changing anything: the buffer's size
// only changes through ResizeBuffer.
//
// ioctl(2) on the file reaches [chardev.Device.Ioctl]. FUSE runs
// ioctls in restricted mode, where the kernel copies the argument
// named by the command's size field from the caller's pointer. A
// caller therefore passes ResizeBuffer's capacity by pointer to a C
// int (unix.IoctlSetPointerInt), as _IOW intends.
package fuse
