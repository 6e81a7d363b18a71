// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/bureau-foundation/chardev/lib/chardev"
	"github.com/bureau-foundation/chardev/lib/config"
	"github.com/bureau-foundation/chardev/lib/control"
	"github.com/bureau-foundation/chardev/lib/process"
	"github.com/bureau-foundation/chardev/lib/version"
)

// requestTimeout bounds a whole control exchange.
const requestTimeout = 30 * time.Second

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		process.Fatal(err)
	}
}

// target is where a command is sent: the control socket, or a device
// file when devicePath is set.
type target struct {
	socketPath string
	devicePath string
}

func run(args []string, stdout io.Writer) error {
	defaultSocket := os.Getenv("CHARDEV_SOCKET")
	if defaultSocket == "" {
		defaultSocket = config.Default().Control.SocketPath
	}

	flagSet := pflag.NewFlagSet("chardevctl", pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	var destination target
	flagSet.StringVar(&destination.socketPath, "socket", defaultSocket, "daemon control socket ($CHARDEV_SOCKET)")
	flagSet.StringVar(&destination.devicePath, "device", "", "send clear/resize as ioctls to this device file instead")
	showVersion := flagSet.Bool("version", false, "print version information and exit")
	flagSet.Usage = func() { printUsage(stdout, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *showVersion {
		version.Print(stdout, "chardevctl")
		return nil
	}

	remaining := flagSet.Args()
	if len(remaining) == 0 {
		printUsage(stdout, flagSet)
		return fmt.Errorf("no command given")
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	command, commandArgs := remaining[0], remaining[1:]
	switch command {
	case "status":
		return runStatus(ctx, destination, commandArgs, stdout)
	case "clear":
		return runClear(ctx, destination, commandArgs)
	case "resize":
		return runResize(ctx, destination, commandArgs)
	case "dump":
		return runDump(ctx, destination, commandArgs, stdout)
	default:
		return fmt.Errorf("unknown command %q (want status, clear, resize or dump)", command)
	}
}

func printUsage(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprint(w, `chardevctl - control a chardev daemon

USAGE
    chardevctl [flags] status [--json]
    chardevctl [flags] clear
    chardevctl [flags] resize <bytes>
    chardevctl [flags] dump [--output FILE] [--force] [--compression zstd|lz4|none]

FLAGS
`)
	fmt.Fprint(w, flagSet.FlagUsages())
}

// socketOnly rejects --device for commands that have no ioctl form.
func (t target) socketOnly(command string) error {
	if t.devicePath != "" {
		return fmt.Errorf("%s is only available through the control socket; drop --device", command)
	}
	return nil
}

func runStatus(ctx context.Context, destination target, args []string, stdout io.Writer) error {
	flagSet := pflag.NewFlagSet("status", pflag.ContinueOnError)
	asJSON := flagSet.Bool("json", false, "print status as JSON")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if err := destination.socketOnly("status"); err != nil {
		return err
	}

	var status chardev.Status
	if err := control.NewClient(destination.socketPath).Call(ctx, chardev.ActionStatus, nil, &status); err != nil {
		return err
	}

	if *asJSON {
		encoder := json.NewEncoder(stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(status)
	}

	fmt.Fprintf(stdout, "device:       %s\n", status.Name)
	fmt.Fprintf(stdout, "capacity:     %d bytes\n", status.Capacity)
	fmt.Fprintf(stdout, "attached:     %s\n", status.AttachedAt.Format(time.RFC3339))
	if status.LastResizeAt != nil {
		fmt.Fprintf(stdout, "last resize:  %s\n", status.LastResizeAt.Format(time.RFC3339))
	}
	fmt.Fprintf(stdout, "digest:       blake3:%s\n", status.Digest)
	counters := status.Counters
	fmt.Fprintf(stdout, "reads:        %d (%d bytes)\n", counters.Reads, counters.BytesRead)
	fmt.Fprintf(stdout, "writes:       %d (%d bytes)\n", counters.Writes, counters.BytesWritten)
	fmt.Fprintf(stdout, "clears:       %d\n", counters.Clears)
	fmt.Fprintf(stdout, "resizes:      %d\n", counters.Resizes)
	fmt.Fprintf(stdout, "errors:       nospc=%d nomem=%d inval=%d fault=%d\n",
		counters.OutOfSpace, counters.OutOfMemory, counters.InvalidRequests, counters.Faults)
	return nil
}

func runClear(ctx context.Context, destination target, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("clear takes no arguments")
	}
	if destination.devicePath != "" {
		return deviceIoctl(destination.devicePath, func(fd int) error {
			return unix.IoctlSetInt(fd, uint(chardev.ClearBuffer), 0)
		})
	}
	return control.NewClient(destination.socketPath).Call(ctx, chardev.ActionClear, nil, nil)
}

func runResize(ctx context.Context, destination target, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: resize <bytes>")
	}
	capacity, err := parseCapacity(args[0])
	if err != nil {
		return err
	}

	if destination.devicePath != "" {
		return deviceIoctl(destination.devicePath, func(fd int) error {
			return unix.IoctlSetPointerInt(fd, uint(chardev.ResizeBuffer), capacity)
		})
	}
	return control.NewClient(destination.socketPath).Call(ctx, chardev.ActionResize,
		map[string]any{"capacity": capacity}, nil)
}

// parseCapacity accepts a positive size that fits ResizeBuffer's C int
// argument.
func parseCapacity(text string) (int, error) {
	capacity, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid capacity %q: %w", text, err)
	}
	if capacity <= 0 {
		return 0, fmt.Errorf("capacity must be positive, got %d", capacity)
	}
	if capacity > math.MaxInt32 {
		return 0, fmt.Errorf("capacity %d exceeds the ioctl limit of %d", capacity, math.MaxInt32)
	}
	return int(capacity), nil
}

// deviceIoctl opens path and runs issue on its descriptor.
func deviceIoctl(path string, issue func(fd int) error) error {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("opening device: %w", err)
	}
	defer file.Close()

	if err := issue(int(file.Fd())); err != nil {
		return fmt.Errorf("ioctl on %s: %w", path, err)
	}
	return nil
}

func runDump(ctx context.Context, destination target, args []string, stdout io.Writer) error {
	flagSet := pflag.NewFlagSet("dump", pflag.ContinueOnError)
	outputPath := flagSet.StringP("output", "o", "", "write the buffer to FILE instead of stdout")
	force := flagSet.Bool("force", false, "write binary output even when stdout is a terminal")
	compression := flagSet.String("compression", string(chardev.CompressionZstd), "transfer encoding: zstd, lz4 or none")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if err := destination.socketOnly("dump"); err != nil {
		return err
	}
	if _, err := chardev.ParseCompression(*compression); err != nil {
		return err
	}

	if *outputPath == "" && !*force && isTerminal(stdout) {
		return fmt.Errorf("refusing to write binary buffer contents to a terminal; use --output or --force")
	}

	var dump chardev.Dump
	fields := map[string]any{"compression": *compression}
	if err := control.NewClient(destination.socketPath).Call(ctx, chardev.ActionDump, fields, &dump); err != nil {
		return err
	}
	contents, err := dump.Decode()
	if err != nil {
		return fmt.Errorf("decoding dump: %w", err)
	}

	if *outputPath != "" {
		if err := os.WriteFile(*outputPath, contents, 0o644); err != nil {
			return fmt.Errorf("writing dump: %w", err)
		}
		return nil
	}
	_, err = stdout.Write(contents)
	return err
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}
