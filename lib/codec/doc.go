// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the daemon's standard CBOR encoding
// configuration.
//
// CBOR is used for every on-the-wire and on-disk format this daemon
// owns: the client/daemon request-response protocol and the state
// snapshot persisted to disk. This package provides the shared
// encoding and decoding modes so every package encodes identically
// without duplicating configuration. The encoder uses Core
// Deterministic Encoding (RFC 8949 §4.2): sorted map keys, smallest
// integer encoding, no indefinite-length items. Same logical data
// always produces identical bytes.
//
// For buffer-oriented operations (files, wire payloads):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (sockets):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Every field on a wire or on-disk type carries a `cbor` struct tag;
// none of these types are also serialized as JSON, so there is no
// `json`/`cbor` tag precedence to manage.
package codec
