// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// chardev-daemon attaches one buffer device and serves it until
// SIGINT or SIGTERM.
//
// The device is reachable two ways: as a file in a FUSE mount (when a
// mountpoint is configured), supporting read, write, lseek and the
// ClearBuffer/ResizeBuffer ioctls; and through a CBOR control socket
// that chardevctl talks to. On shutdown the mount is removed first, so
// no new I/O arrives, then the control socket, then the device is
// detached.
package main
