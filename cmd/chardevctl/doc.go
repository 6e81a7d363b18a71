// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// chardevctl drives a running chardev-daemon.
//
//	chardevctl status [--json]
//	chardevctl clear
//	chardevctl resize <bytes>
//	chardevctl dump [--output FILE] [--force] [--compression zstd|lz4|none]
//
// By default requests go to the daemon's control socket (--socket, or
// $CHARDEV_SOCKET). With --device PATH, clear and resize are instead
// issued as ioctl(2) calls on a mounted device file, exactly as any
// other program would.
package main
