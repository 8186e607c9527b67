// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"bytes"
	"testing"
)

func TestWriteReadFrameRoundtrip(t *testing.T) {
	payloads := [][]byte{
		nil,
		[]byte("hello"),
		bytes.Repeat([]byte("x"), 1<<20),
	}

	for _, payload := range payloads {
		var buf bytes.Buffer
		if err := WriteFrame(&buf, payload); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}

		got, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("roundtrip mismatch: got %d bytes, want %d bytes", len(got), len(payload))
		}
	}
}

func TestReadFrameRejectsOversizedHeader(t *testing.T) {
	var buf bytes.Buffer
	var header [headerLength]byte
	for i := range header {
		header[i] = 0xFF
	}
	buf.Write(header[:])

	if _, err := ReadFrame(&buf); err == nil {
		t.Fatal("expected an error for an oversized frame length")
	}
}

func TestReadFrameRejectsTruncatedHeader(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x00})

	if _, err := ReadFrame(&buf); err == nil {
		t.Fatal("expected an error for a truncated header")
	}
}

func TestWriteFrameMultipleFramesAreIndependent(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte("first")); err != nil {
		t.Fatalf("WriteFrame(first): %v", err)
	}
	if err := WriteFrame(&buf, []byte("second")); err != nil {
		t.Fatalf("WriteFrame(second): %v", err)
	}

	first, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame(first): %v", err)
	}
	if string(first) != "first" {
		t.Fatalf("first frame = %q, want %q", first, "first")
	}

	second, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame(second): %v", err)
	}
	if string(second) != "second" {
		t.Fatalf("second frame = %q, want %q", second, "second")
	}
}
