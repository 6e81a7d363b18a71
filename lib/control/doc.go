// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package control implements the out-of-band request path of a chardev
// daemon: a CBOR request/response protocol on a Unix socket.
//
// Each connection carries exactly one exchange. The client writes one
// CBOR map containing an "action" field plus action-specific fields;
// the server dispatches on the action, writes one [Response], and
// closes the connection. CBOR is self-delimiting, so there is no extra
// framing.
//
//	server := control.NewServer("/run/chardev/control.sock", logger)
//	server.Handle("status", statusHandler)
//	go server.Serve(ctx)
//
//	client := control.NewClient("/run/chardev/control.sock")
//	var status Status
//	err := client.Call(ctx, "status", nil, &status)
//
// Actions that are not registered are answered with an "invalid
// request" error before any handler runs.
package control
