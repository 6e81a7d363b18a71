// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads chardev daemon configuration.
//
// Configuration comes from a single file named by either the
// CHARDEV_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no automatic file search. Values the file
// omits keep the values from [Default].
//
// Files ending in .json or .jsonc are read as JSON with comments and
// trailing commas; anything else is read as YAML. Both use the same
// keys:
//
//	device:
//	  name: custom_char_device
//	  initial_capacity: 1024
//	  max_capacity: 1048576
//	  allocator: heap          # or mmap
//	mount:
//	  mountpoint: ${XDG_RUNTIME_DIR:-/run}/chardev
//	  allow_other: false
//	control:
//	  socket_path: /run/chardev/control.sock
//	log:
//	  level: info              # debug, info, warn, error
//	  format: text             # or json
//
// ${VAR} and ${VAR:-default} are expanded in the mountpoint and socket
// path after loading. No other environment variables override config
// values.
//
// This package depends on no other chardev packages.
package config
