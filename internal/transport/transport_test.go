// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Nukesor/pueue/internal/config"
	"github.com/Nukesor/pueue/internal/wire"
)

type stubHandler struct {
	fn func(req wire.Request) wire.Response
}

func (s stubHandler) Handle(req wire.Request) wire.Response {
	return s.fn(req)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.SocketPath = filepath.Join(cfg.DataDir, "pueue.sock")
	cfg.Secret = "test-secret"
	return cfg
}

func dialAndHandshake(t *testing.T, socketPath, secret string) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		t.Fatalf("dialing socket: %v", err)
	}
	if err := wire.ClientHandshake(conn, []byte(secret)); err != nil {
		conn.Close()
		t.Fatalf("handshake: %v", err)
	}
	return conn
}

func TestListenerRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	handler := stubHandler{fn: func(req wire.Request) wire.Response {
		if req.Action != "status" {
			return wire.Response{OK: false, Error: "unexpected action"}
		}
		return wire.Response{OK: true}
	}}

	ln, err := Listen(cfg, handler, testLogger())
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	done := make(chan struct{})
	go func() {
		ln.Serve()
		close(done)
	}()

	conn := dialAndHandshake(t, cfg.SocketPath, cfg.Secret)
	defer conn.Close()

	if err := wire.WriteRequest(conn, wire.Request{Action: "status"}); err != nil {
		t.Fatalf("writing request: %v", err)
	}
	resp, err := wire.ReadResponse(conn)
	if err != nil {
		t.Fatalf("reading response: %v", err)
	}
	if !resp.OK {
		t.Fatalf("response not ok: %s", resp.Error)
	}

	ln.Close()
	<-done
}

func TestListenerRejectsWrongSecret(t *testing.T) {
	cfg := testConfig(t)
	handler := stubHandler{fn: func(req wire.Request) wire.Response {
		return wire.Response{OK: true}
	}}

	ln, err := Listen(cfg, handler, testLogger())
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	done := make(chan struct{})
	go func() {
		ln.Serve()
		close(done)
	}()

	conn, err := net.DialTimeout("unix", cfg.SocketPath, 5*time.Second)
	if err != nil {
		t.Fatalf("dialing socket: %v", err)
	}
	defer conn.Close()

	if err := wire.ClientHandshake(conn, []byte("wrong-secret")); err == nil {
		t.Fatal("expected handshake to fail with wrong secret")
	}

	ln.Close()
	<-done
}

// TestListenerClosesAfterOneRequest confirms spec.md §6's "one
// request, one response, close": a second write on the same
// connection after its first response never gets a second response,
// since the daemon has already closed its end.
func TestListenerClosesAfterOneRequest(t *testing.T) {
	cfg := testConfig(t)
	var seen []string
	handler := stubHandler{fn: func(req wire.Request) wire.Response {
		seen = append(seen, req.Action)
		return wire.Response{OK: true}
	}}

	ln, err := Listen(cfg, handler, testLogger())
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	done := make(chan struct{})
	go func() {
		ln.Serve()
		close(done)
	}()

	conn := dialAndHandshake(t, cfg.SocketPath, cfg.Secret)
	defer conn.Close()

	if err := wire.WriteRequest(conn, wire.Request{Action: "status"}); err != nil {
		t.Fatalf("writing request: %v", err)
	}
	if _, err := wire.ReadResponse(conn); err != nil {
		t.Fatalf("reading response: %v", err)
	}

	if _, err := wire.ReadResponse(conn); err == nil {
		t.Fatal("expected reading a second response on the same connection to fail")
	}

	if len(seen) != 1 || seen[0] != "status" {
		t.Fatalf("handler saw %v, want [status]", seen)
	}

	ln.Close()
	<-done
}

// TestListenerServesSequentialConnections confirms each request opens
// its own connection and handshake, as a real client does per
// spec.md §6.
func TestListenerServesSequentialConnections(t *testing.T) {
	cfg := testConfig(t)
	var seen []string
	handler := stubHandler{fn: func(req wire.Request) wire.Response {
		seen = append(seen, req.Action)
		return wire.Response{OK: true}
	}}

	ln, err := Listen(cfg, handler, testLogger())
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	done := make(chan struct{})
	go func() {
		ln.Serve()
		close(done)
	}()

	for _, action := range []string{"status", "group_list"} {
		conn := dialAndHandshake(t, cfg.SocketPath, cfg.Secret)
		if err := wire.WriteRequest(conn, wire.Request{Action: action}); err != nil {
			t.Fatalf("writing request %q: %v", action, err)
		}
		if _, err := wire.ReadResponse(conn); err != nil {
			t.Fatalf("reading response for %q: %v", action, err)
		}
		conn.Close()
	}

	if len(seen) != 2 || seen[0] != "status" || seen[1] != "group_list" {
		t.Fatalf("handler saw %v, want [status group_list]", seen)
	}

	ln.Close()
	<-done
}

func TestListenRemovesStaleSocket(t *testing.T) {
	cfg := testConfig(t)
	if err := os.WriteFile(cfg.SocketPath, []byte("stale"), 0o600); err != nil {
		t.Fatalf("writing stale socket file: %v", err)
	}

	handler := stubHandler{fn: func(req wire.Request) wire.Response { return wire.Response{OK: true} }}
	ln, err := Listen(cfg, handler, testLogger())
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ln.Close()
}
