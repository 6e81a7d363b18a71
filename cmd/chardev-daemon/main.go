// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/chardev/lib/bufferstore"
	"github.com/bureau-foundation/chardev/lib/chardev"
	chardevfuse "github.com/bureau-foundation/chardev/lib/chardev/fuse"
	"github.com/bureau-foundation/chardev/lib/config"
	"github.com/bureau-foundation/chardev/lib/control"
	"github.com/bureau-foundation/chardev/lib/process"
	"github.com/bureau-foundation/chardev/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("chardev-daemon", pflag.ContinueOnError)
	configPath := flagSet.String("config", "", "path to config file (default: $CHARDEV_CONFIG, else built-in defaults)")
	mountpoint := flagSet.String("mountpoint", "", "directory to mount the device file under (overrides mount.mountpoint)")
	socketPath := flagSet.String("socket", "", "control socket path (overrides control.socket_path)")
	capacity := flagSet.Int("capacity", 0, "initial buffer capacity in bytes (overrides device.initial_capacity)")
	showVersion := flagSet.Bool("version", false, "print version information and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *showVersion {
		version.Print(os.Stdout, "chardev-daemon")
		return nil
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", flagSet.Args())
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if flagSet.Changed("mountpoint") {
		cfg.Mount.Mountpoint = *mountpoint
	}
	if flagSet.Changed("socket") {
		cfg.Control.SocketPath = *socketPath
	}
	if flagSet.Changed("capacity") {
		cfg.Device.InitialCapacity = *capacity
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger)
}

// loadConfig reads the config from path, or from CHARDEV_CONFIG when
// path is empty. With neither, the defaults are used.
func loadConfig(path string) (*config.Config, error) {
	switch {
	case path != "":
		return config.LoadFile(path)
	case os.Getenv("CHARDEV_CONFIG") != "":
		return config.Load()
	default:
		return config.Default(), nil
	}
}

// newAllocator builds the allocator named by the device config.
// MaxCapacity becomes the allocator's limit, so oversized resizes fail
// as out of memory and leave the buffer intact.
func newAllocator(device config.DeviceConfig) (bufferstore.Allocator, error) {
	switch device.Allocator {
	case config.AllocatorHeap:
		return bufferstore.HeapAllocator{Limit: device.MaxCapacity}, nil
	case config.AllocatorMmap:
		return bufferstore.MmapAllocator{Limit: device.MaxCapacity}, nil
	default:
		return nil, fmt.Errorf("unknown allocator %q", device.Allocator)
	}
}

// serve attaches the device, exposes it, and blocks until ctx is
// cancelled. Teardown runs in reverse order of setup.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	allocator, err := newAllocator(cfg.Device)
	if err != nil {
		return err
	}

	device, err := chardev.Attach(chardev.Options{
		Name:            cfg.Device.Name,
		InitialCapacity: cfg.Device.InitialCapacity,
		Allocator:       allocator,
		Logger:          logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := device.Detach(); err != nil {
			logger.Error("detaching device", "error", err)
		}
	}()

	if err := os.MkdirAll(filepath.Dir(cfg.Control.SocketPath), 0o755); err != nil {
		return fmt.Errorf("creating control socket directory: %w", err)
	}
	server := control.NewServer(cfg.Control.SocketPath, logger)
	chardev.RegisterActions(server, device)

	serverCtx, cancelServer := context.WithCancel(ctx)
	defer cancelServer()
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Serve(serverCtx)
	}()

	unmount := func() {}
	if cfg.Mount.Mountpoint != "" {
		fuseServer, err := chardevfuse.Mount(chardevfuse.Options{
			Mountpoint: cfg.Mount.Mountpoint,
			Device:     device,
			AllowOther: cfg.Mount.AllowOther,
			Logger:     logger,
		})
		if err != nil {
			cancelServer()
			<-serverDone
			return err
		}
		unmount = func() {
			if err := fuseServer.Unmount(); err != nil {
				logger.Error("unmounting device filesystem", "error", err)
			}
		}
	}
	defer func() { unmount() }()

	logger.Info("chardev daemon running",
		"device", device.Name(),
		"capacity", device.Capacity(),
		"socket", cfg.Control.SocketPath,
		"mountpoint", cfg.Mount.Mountpoint,
	)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("control server: %w", err)
		}
		return nil
	}

	unmount()
	unmount = func() {}
	cancelServer()
	select {
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("control server: %w", err)
		}
	case <-time.After(10 * time.Second):
		return fmt.Errorf("control server did not stop within 10s")
	}
	return nil
}
