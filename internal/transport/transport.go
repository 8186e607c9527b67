// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport serves the daemon's request/response protocol
// over either a Unix domain socket or a TCP+TLS listener (spec.md
// §6), whichever the configuration selects. Each accepted connection
// runs the version/secret handshake once, then handles exactly one
// request/response cycle before closing — spec.md §6 is explicit
// ("Thereafter: one request, one response, close"), matching
// lib/service/socket.go's SocketServer, which this package otherwise
// adapts.
package transport

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/Nukesor/pueue/internal/config"
	"github.com/Nukesor/pueue/internal/tlscert"
	"github.com/Nukesor/pueue/internal/wire"
)

// Handler processes one decoded request and returns the response to
// send back. Implemented by *dispatch.Dispatcher.
type Handler interface {
	Handle(req wire.Request) wire.Response
}

// requestTimeout bounds how long a connection may sit waiting for its
// one request frame, or for its response to be written, once the
// handshake has completed. A "wait" request can legitimately block
// far longer than this inside Handler.Handle — that deadline is reset
// before the write, not held across the handler call.
const requestTimeout = 10 * time.Minute

// handshakeTimeout bounds the version/secret exchange, which a
// well-behaved client completes within a handful of round trips.
const handshakeTimeout = 10 * time.Second

// Listener accepts connections on the configured transport and
// dispatches requests to a Handler.
type Listener struct {
	net.Listener

	secret  []byte
	handler Handler
	logger  *slog.Logger

	wg sync.WaitGroup
}

// Listen opens the transport configured by cfg: a Unix socket at
// cfg.SocketPath, or a TLS listener on cfg.Host:cfg.Port when
// cfg.UseTLS is set. config.Validate has already checked the two are
// mutually exclusive.
func Listen(cfg *config.Config, handler Handler, logger *slog.Logger) (*Listener, error) {
	var ln net.Listener
	var err error

	if cfg.UseTLS {
		ln, err = listenTLS(cfg)
	} else {
		ln, err = listenUnix(cfg)
	}
	if err != nil {
		return nil, err
	}

	return &Listener{
		Listener: ln,
		secret:   []byte(cfg.Secret),
		handler:  handler,
		logger:   logger,
	}, nil
}

func listenUnix(cfg *config.Config) (net.Listener, error) {
	if err := os.Remove(cfg.SocketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale socket %s: %w", cfg.SocketPath, err)
	}
	ln, err := net.Listen("unix", cfg.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", cfg.SocketPath, err)
	}
	perm := os.FileMode(cfg.SocketPermissions)
	if perm == 0 {
		perm = 0o700
	}
	if err := os.Chmod(cfg.SocketPath, perm); err != nil {
		ln.Close()
		return nil, fmt.Errorf("setting socket permissions: %w", err)
	}
	return ln, nil
}

func listenTLS(cfg *config.Config) (net.Listener, error) {
	cert, err := tlscert.EnsureKeyPair(cfg.CertDir(), cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("preparing TLS certificate: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	ln, err := tls.Listen("tcp", addr, &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
	})
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	return ln, nil
}

// Serve accepts connections until Close is called, dispatching each
// to its own goroutine. Returns once the listener has been closed and
// every in-flight connection has finished.
func (l *Listener) Serve() error {
	for {
		conn, err := l.Listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			l.logger.Error("accept failed", "error", err)
			continue
		}

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.serveConn(conn)
		}()
	}
	l.wg.Wait()
	return nil
}

// Close stops accepting new connections. In-flight connections are
// left to finish naturally; Serve's caller should wait on Serve's
// return (which itself waits on them) to know they're done.
func (l *Listener) Close() error {
	err := l.Listener.Close()
	if unix, ok := l.Listener.(*net.UnixListener); ok {
		os.Remove(unix.Addr().String())
	}
	return err
}

func (l *Listener) serveConn(conn net.Conn) {
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(handshakeTimeout))
	if err := wire.ServerHandshake(conn, l.secret); err != nil {
		l.logger.Debug("handshake failed", "remote", conn.RemoteAddr(), "error", err)
		return
	}

	conn.SetReadDeadline(time.Now().Add(requestTimeout))
	req, err := wire.ReadRequest(conn)
	if err != nil {
		if !errors.Is(err, net.ErrClosed) {
			l.logger.Debug("connection closed", "remote", conn.RemoteAddr(), "error", err)
		}
		return
	}

	// The handler itself may block arbitrarily long (the "wait"
	// action), so no deadline is held across Handle.
	conn.SetDeadline(time.Time{})
	resp := l.handler.Handle(req)

	conn.SetWriteDeadline(time.Now().Add(requestTimeout))
	if err := wire.WriteResponse(conn, resp); err != nil {
		l.logger.Debug("failed to write response", "remote", conn.RemoteAddr(), "error", err)
	}
}
