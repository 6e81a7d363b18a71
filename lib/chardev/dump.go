// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chardev

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression names the encoding of a dump's payload.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionLZ4  Compression = "lz4"
	CompressionZstd Compression = "zstd"
)

// ParseCompression validates a compression name. Empty selects zstd.
func ParseCompression(name string) (Compression, error) {
	switch Compression(name) {
	case "":
		return CompressionZstd, nil
	case CompressionNone, CompressionLZ4, CompressionZstd:
		return Compression(name), nil
	default:
		return "", fmt.Errorf("%w: unknown compression %q", ErrInvalidRequest, name)
	}
}

// Dump is a compressed copy of a device buffer.
type Dump struct {
	// Size is the uncompressed length, which is the capacity at the
	// time of the snapshot.
	Size        int         `cbor:"size"`
	Compression Compression `cbor:"compression"`
	Data        []byte      `cbor:"data"`
}

// zstd.Encoder and zstd.Decoder are safe for concurrent use with
// EncodeAll and DecodeAll.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("chardev: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("chardev: zstd decoder initialization failed: " + err.Error())
	}
}

// Dump snapshots the buffer and compresses it. Buffers that lz4 cannot
// shrink are stored uncompressed and reported as CompressionNone.
func (d *Device) Dump(compression Compression) (Dump, error) {
	snapshot, err := d.store.Snapshot()
	if err != nil {
		return Dump{}, fmt.Errorf("dumping %s: %w", d.name, err)
	}

	dump := Dump{Size: len(snapshot), Compression: compression}
	switch compression {
	case CompressionNone:
		dump.Data = snapshot
	case CompressionZstd:
		dump.Data = zstdEncoder.EncodeAll(snapshot, nil)
	case CompressionLZ4:
		destination := make([]byte, lz4.CompressBlockBound(len(snapshot)))
		written, err := lz4.CompressBlock(snapshot, destination, nil)
		if err != nil {
			return Dump{}, fmt.Errorf("dumping %s: lz4 compress: %w", d.name, err)
		}
		// CompressBlock returns 0 for incompressible input.
		if written == 0 || written >= len(snapshot) {
			dump.Compression = CompressionNone
			dump.Data = snapshot
		} else {
			dump.Data = destination[:written]
		}
	default:
		return Dump{}, fmt.Errorf("%w: unknown compression %q", ErrInvalidRequest, compression)
	}
	return dump, nil
}

// Decode returns the uncompressed buffer contents. The result must be
// exactly Size bytes.
func (dump Dump) Decode() ([]byte, error) {
	var contents []byte
	switch dump.Compression {
	case CompressionNone:
		contents = dump.Data
	case CompressionZstd:
		result, err := zstdDecoder.DecodeAll(dump.Data, make([]byte, 0, dump.Size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		contents = result
	case CompressionLZ4:
		destination := make([]byte, dump.Size)
		read, err := lz4.UncompressBlock(dump.Data, destination)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		contents = destination[:read]
	default:
		return nil, fmt.Errorf("unknown dump compression %q", dump.Compression)
	}
	if len(contents) != dump.Size {
		return nil, fmt.Errorf("decoded dump is %d bytes, expected %d", len(contents), dump.Size)
	}
	return contents, nil
}
