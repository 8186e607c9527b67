// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"
	"io"

	"github.com/Nukesor/pueue/lib/codec"
)

// WriteRequest encodes req as CBOR and writes it as one frame.
func WriteRequest(w io.Writer, req Request) error {
	data, err := codec.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	return WriteFrame(w, data)
}

// ReadRequest reads one frame and decodes it as a Request.
func ReadRequest(r io.Reader) (Request, error) {
	var req Request
	payload, err := ReadFrame(r)
	if err != nil {
		return req, err
	}
	if err := codec.Unmarshal(payload, &req); err != nil {
		return req, fmt.Errorf("decoding request: %w", err)
	}
	return req, nil
}

// WriteResponse encodes resp as CBOR and writes it as one frame.
func WriteResponse(w io.Writer, resp Response) error {
	data, err := codec.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	return WriteFrame(w, data)
}

// ReadResponse reads one frame and decodes it as a Response.
func ReadResponse(r io.Reader) (Response, error) {
	var resp Response
	payload, err := ReadFrame(r)
	if err != nil {
		return resp, err
	}
	if err := codec.Unmarshal(payload, &resp); err != nil {
		return resp, fmt.Errorf("decoding response: %w", err)
	}
	return resp, nil
}

// EncodeData marshals v as CBOR for placement in a Response's Data
// field.
func EncodeData(v any) ([]byte, error) {
	return codec.Marshal(v)
}

// DecodeData unmarshals a Response's Data field into v.
func DecodeData(data []byte, v any) error {
	return codec.Unmarshal(data, v)
}
