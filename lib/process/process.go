// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the exit path shared by the chardev binaries.
// main() calls run() and hands any error to Fatal; this is the one place
// a binary writes to stderr without going through its slog logger,
// because the logger may not exist yet when configuration fails.
package process

import (
	"fmt"
	"os"
)

// Fatal writes "error: err" to stderr and exits with code 1.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
