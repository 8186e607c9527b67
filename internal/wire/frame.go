// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire implements the daemon's transport-level framing:
// length-prefixed, zstd-compressed frames carrying CBOR-encoded
// request/response values, plus the connect-time version and
// shared-secret handshake described in spec.md §6.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// headerLength is the size of the fixed-width length prefix: a single
// big-endian uint64 byte count of the compressed payload that follows
// (spec.md §6).
const headerLength = 8

// maxFrameLength caps the compressed payload size accepted from a
// peer. 64 MB comfortably covers the largest plausible response (a
// Status dump of thousands of tasks, or a full log read) while
// bounding memory use against a malicious or buggy peer.
const maxFrameLength = 64 * 1024 * 1024

var (
	encoderPool = newZstdEncoder()
	decoderPool = newZstdDecoder()
)

func newZstdEncoder() *zstd.Encoder {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		// Construction only fails for invalid static options; a
		// failure here is a programming error, not a runtime one.
		panic("wire: constructing zstd encoder: " + err.Error())
	}
	return enc
}

func newZstdDecoder() *zstd.Decoder {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		panic("wire: constructing zstd decoder: " + err.Error())
	}
	return dec
}

// WriteFrame compresses payload and writes it to w as one frame: an
// 8-byte big-endian length prefix followed by the compressed bytes.
func WriteFrame(w io.Writer, payload []byte) error {
	compressed := encoderPool.EncodeAll(payload, nil)

	var header [headerLength]byte
	binary.BigEndian.PutUint64(header[:], uint64(len(compressed)))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("writing frame header: %w", err)
	}
	if _, err := w.Write(compressed); err != nil {
		return fmt.Errorf("writing frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads one frame from r and returns the decompressed
// payload. Returns an error if the stream is malformed or the frame
// exceeds maxFrameLength.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [headerLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("reading frame header: %w", err)
	}
	length := binary.BigEndian.Uint64(header[:])
	if length > maxFrameLength {
		return nil, fmt.Errorf("frame length %d exceeds maximum %d", length, maxFrameLength)
	}

	compressed := make([]byte, length)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, fmt.Errorf("reading frame payload: %w", err)
	}

	payload, err := decoderPool.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing frame payload: %w", err)
	}
	return payload, nil
}
