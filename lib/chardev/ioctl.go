// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chardev

import "fmt"

// Command is an ioctl request number.
type Command uint32

// Field layout of an ioctl number (asm-generic/ioctl.h).
const (
	iocNumberBits     = 8
	iocTypeBits       = 8
	iocSizeBits       = 14
	iocNumberShift    = 0
	iocTypeShift      = iocNumberShift + iocNumberBits
	iocSizeShift      = iocTypeShift + iocTypeBits
	iocDirectionShift = iocSizeShift + iocSizeBits

	iocNone  = 0
	iocWrite = 1
	iocRead  = 2
)

func ioc(direction, kind, number, size uint32) Command {
	return Command(direction<<iocDirectionShift |
		kind<<iocTypeShift |
		number<<iocNumberShift |
		size<<iocSizeShift)
}

// IO encodes a command that carries no argument.
func IO(kind byte, number uint8) Command {
	return ioc(iocNone, uint32(kind), uint32(number), 0)
}

// IOW encodes a command whose argument of size bytes is written by
// userspace to the device.
func IOW(kind byte, number uint8, size uint32) Command {
	return ioc(iocWrite, uint32(kind), uint32(number), size)
}

// ioctlType is the magic byte shared by the device's commands.
const ioctlType = 'b'

// sizeofInt is sizeof(int) on every Linux ABI Go targets.
const sizeofInt = 4

// Control commands.
var (
	ClearBuffer  = IO(ioctlType, 1)
	ResizeBuffer = IOW(ioctlType, 2, sizeofInt)
)

// Size returns the argument size encoded in the command.
func (c Command) Size() uint32 {
	return (uint32(c) >> iocSizeShift) & (1<<iocSizeBits - 1)
}

func (c Command) String() string {
	switch c {
	case ClearBuffer:
		return "ClearBuffer"
	case ResizeBuffer:
		return "ResizeBuffer"
	default:
		return fmt.Sprintf("Command(%#x)", uint32(c))
	}
}
