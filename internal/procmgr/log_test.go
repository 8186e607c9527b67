// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package procmgr

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestLog(t *testing.T, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.log")
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing test log: %v", err)
	}
	return path
}

func TestReadLastLinesFewerThanRequested(t *testing.T) {
	path := writeTestLog(t, []string{"one", "two", "three"})

	data, truncated, err := readLastLines(path, 10)
	if err != nil {
		t.Fatalf("readLastLines: %v", err)
	}
	if truncated {
		t.Fatal("truncated = true, want false (fewer lines than requested)")
	}
	if string(data) != "one\ntwo\nthree\n" {
		t.Fatalf("data = %q", data)
	}
}

func TestReadLastLinesTruncates(t *testing.T) {
	path := writeTestLog(t, []string{"one", "two", "three", "four", "five"})

	data, truncated, err := readLastLines(path, 2)
	if err != nil {
		t.Fatalf("readLastLines: %v", err)
	}
	if !truncated {
		t.Fatal("truncated = false, want true")
	}
	if string(data) != "four\nfive\n" {
		t.Fatalf("data = %q, want %q", data, "four\nfive\n")
	}
}

func TestReadLastLinesSpanningMultipleChunks(t *testing.T) {
	lines := make([]string, 0, 3000)
	for i := 0; i < 3000; i++ {
		lines = append(lines, strings.Repeat("x", 50))
	}
	path := writeTestLog(t, lines)

	data, truncated, err := readLastLines(path, 5)
	if err != nil {
		t.Fatalf("readLastLines: %v", err)
	}
	if !truncated {
		t.Fatal("truncated = false, want true")
	}
	got := strings.Count(string(data), "\n")
	if got != 5 {
		t.Fatalf("line count = %d, want 5", got)
	}
}

func TestReadLastLinesZeroMeansFull(t *testing.T) {
	path := writeTestLog(t, []string{"one", "two"})

	data, truncated, err := readLastLines(path, 0)
	if err != nil {
		t.Fatalf("readLastLines: %v", err)
	}
	if truncated {
		t.Fatal("truncated = true, want false")
	}
	if string(data) != "one\ntwo\n" {
		t.Fatalf("data = %q", data)
	}
}
