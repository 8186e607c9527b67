// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tlscert

import "testing"

func TestEnsureKeyPairGeneratesAndReloads(t *testing.T) {
	dir := t.TempDir()

	first, err := EnsureKeyPair(dir, "127.0.0.1")
	if err != nil {
		t.Fatalf("EnsureKeyPair: %v", err)
	}
	if len(first.Certificate) == 0 {
		t.Fatal("expected a certificate chain")
	}

	second, err := EnsureKeyPair(dir, "127.0.0.1")
	if err != nil {
		t.Fatalf("EnsureKeyPair (reload): %v", err)
	}
	if string(second.Certificate[0]) != string(first.Certificate[0]) {
		t.Fatal("second call generated a new certificate instead of reloading")
	}
}
