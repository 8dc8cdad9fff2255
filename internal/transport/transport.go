// Package transport provides the io.ReadWriteCloser implementations that
// back the operator console and motion-controller channels: named pipe
// (loopback for local testing), TCP, and websocket. Selection is a
// runtime Kind string rather than a build tag, so one binary can be
// pointed at any transport instead of building three.
package transport

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

// Kind selects which concrete transport Open constructs.
type Kind string

const (
	KindNamedPipe Kind = "pipe"
	KindTCP       Kind = "tcp"
	KindWebsocket Kind = "websocket"
)

// Open constructs the transport named by kind against addr. For KindTCP,
// addr is a host:port to dial if asServer is false, or to listen on and
// accept a single connection from if asServer is true. For KindNamedPipe,
// addr is the path to a pre-created FIFO (mkfifo), opened O_RDWR.
// For KindWebsocket, addr is a ws:// URL to dial.
func Open(kind Kind, addr string, asServer bool) (ReadWriteCloser, error) {
	switch kind {
	case KindNamedPipe:
		return openNamedPipe(addr)
	case KindTCP:
		return openTCP(addr, asServer)
	case KindWebsocket:
		return openWebsocket(addr)
	default:
		return nil, fmt.Errorf("transport: unknown kind %q", kind)
	}
}

// ReadWriteCloser is the transport contract every component depends on:
// plain io.ReadWriteCloser, nothing more. Serial-port bring-up, pipe
// creation, and socket accept/dial sit outside the core orchestrator;
// this interface is the boundary.
type ReadWriteCloser interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// openNamedPipe opens a pre-existing FIFO at path for bidirectional use.
// Real hardware bring-up (mkfifo, serial stty) happens outside the process:
// it is an external collaborator, not this package's responsibility.
func openNamedPipe(path string) (ReadWriteCloser, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("transport: open pipe %s: %w", path, err)
	}
	return f, nil
}

func openTCP(addr string, asServer bool) (ReadWriteCloser, error) {
	if !asServer {
		conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
		if err != nil {
			return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
		}
		return conn, nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	defer ln.Close()
	conn, err := ln.Accept()
	if err != nil {
		return nil, fmt.Errorf("transport: accept on %s: %w", addr, err)
	}
	return conn, nil
}

// openWebsocket dials a websocket URL and wraps the connection as a plain
// byte stream of newline-terminated text frames, one per websocket message,
// the shape every other component in this package expects.
func openWebsocket(url string) (ReadWriteCloser, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: websocket dial %s: %w", url, err)
	}
	return &wsConn{conn: conn}, nil
}

// wsConn adapts a *websocket.Conn to io.ReadWriteCloser by framing each
// Write call as one text message and buffering partially-read messages
// across Read calls.
type wsConn struct {
	conn    *websocket.Conn
	pending []byte
}

func (w *wsConn) Read(p []byte) (int, error) {
	for len(w.pending) == 0 {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		w.pending = append(data, '\n')
	}
	n := copy(p, w.pending)
	w.pending = w.pending[n:]
	return n, nil
}

func (w *wsConn) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsConn) Close() error {
	return w.conn.Close()
}
