// Package singleinstance lets a one-shot capture hand its work to a running
// resident instance.
//
// The resident listens on a loopback port and speaks a line protocol:
//
//	PING\n                -> PONG\n
//	CAPTURE\n             -> SUCCESS\n<saved path> | ERROR\n<message>
//	CAPTURE CLIPBOARD\n   -> same, and the capture is also copied
//
// The resident runs the selection itself, so a CAPTURE connection stays open
// until the user finishes or backs out. A resident that is already selecting
// answers ERROR with "busy, please retry".
package singleinstance

import (
	"context"
)

// Server is the resident side: it owns the port and hands each CAPTURE
// connection to the event loop.
type Server interface {
	// Start binds the first port of PortRange. It fails when that port is
	// taken, which is how a second resident notices the first.
	Start(ctx context.Context) error
	// Port returns the bound port, or 0 before Start.
	Port() int
	// Next blocks until a CAPTURE request arrives or ctx ends. PING is
	// answered internally and never surfaces here.
	Next(ctx context.Context) (Conn, error)
	Close() error
}

// Conn is one pending CAPTURE request. Exactly one of RespondSuccess or
// RespondError should be sent before Close.
type Conn interface {
	Request() Request
	// RespondSuccess reports where the capture was saved; path is empty when
	// the resident has no output directory and only copied it.
	RespondSuccess(path string) error
	RespondError(msg string) error
	Close() error
}

// Request carries the options a client can ask for.
type Request struct {
	// CopyToClipboard selects CAPTURE CLIPBOARD.
	CopyToClipboard bool
}

// Client is the one-shot side.
type Client interface {
	// TryCapture finds a resident by PING, sends the request and waits for
	// the selection to finish. delegated is false with a nil error when no
	// resident answers, so the caller can capture locally.
	TryCapture(ctx context.Context, req Request) (delegated bool, path string, err error)
}

func NewServer() Server { return newTcpServer() }

func NewClient() Client { return newTcpClient() }
