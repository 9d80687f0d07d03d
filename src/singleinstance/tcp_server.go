package singleinstance

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"screen-grab/src/logutil"
)

const (
	residentHost     = "127.0.0.1"
	pingRequest      = "PING\n"
	pongResponse     = "PONG\n"
	captureRequest   = "CAPTURE\n"
	clipboardRequest = "CAPTURE CLIPBOARD\n"
	successStatus    = "SUCCESS\n"
	errorStatus      = "ERROR\n"
)

// tcpServer implements Server over TCP loopback.
type tcpServer struct {
	lis       net.Listener
	incoming  chan *tcpConn
	port      int
	closeOnce sync.Once
}

func newTcpServer() *tcpServer { return &tcpServer{incoming: make(chan *tcpConn, 8)} }

func (s *tcpServer) Start(ctx context.Context) error {
	if s.lis != nil {
		return nil
	}
	log := logutil.WithComponent("singleinstance")
	start, _ := PortRange()
	addr := fmt.Sprintf("%s:%d", residentHost, start)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Error().Err(err).Str("addr", addr).Msg("failed to bind")
		return fmt.Errorf("resident already running or port busy on %s: %w", addr, err)
	}
	s.lis = lis
	s.port = start
	log.Info().Str("addr", addr).Msg("listening")
	go s.acceptLoop(ctx)
	return nil
}

// Port returns the bound port (0 if not started).
func (s *tcpServer) Port() int { return s.port }

func (s *tcpServer) acceptLoop(ctx context.Context) {
	log := logutil.WithComponent("singleinstance")
	for {
		c, err := s.lis.Accept()
		if err != nil {
			return
		}
		remote := c.RemoteAddr().String()
		_ = c.SetDeadline(time.Now().Add(3 * time.Second))
		br := bufio.NewReader(c)
		line, _ := br.ReadString('\n')
		bw := bufio.NewWriter(c)

		switch line {
		case pingRequest:
			log.Debug().Str("remote", remote).Msg("PING -> PONG")
			_, _ = bw.WriteString(pongResponse)
			_ = bw.Flush()
			_ = c.Close()
			continue
		case captureRequest, clipboardRequest:
		default:
			log.Warn().Str("remote", remote).Str("line", line).Msg("unknown request")
			_, _ = bw.WriteString(errorStatus + "unknown request")
			_ = bw.Flush()
			_ = c.Close()
			continue
		}

		// The selection can take as long as the user needs.
		_ = c.SetDeadline(time.Time{})
		req := Request{CopyToClipboard: line == clipboardRequest}
		log.Info().Str("remote", remote).Bool("clipboard", req.CopyToClipboard).Msg("capture request")
		select {
		case s.incoming <- &tcpConn{c: c, r: req, w: bw}:
		case <-ctx.Done():
			_ = c.Close()
			return
		}
	}
}

func (s *tcpServer) Next(ctx context.Context) (Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case tc, ok := <-s.incoming:
		if !ok {
			return nil, net.ErrClosed
		}
		return tc, nil
	}
}

func (s *tcpServer) Close() error {
	s.closeOnce.Do(func() {
		if s.lis != nil {
			_ = s.lis.Close()
		}
	})
	return nil
}

type tcpConn struct {
	c net.Conn
	r Request
	w *bufio.Writer
}

func (tc *tcpConn) Request() Request { return tc.r }

func (tc *tcpConn) RespondSuccess(path string) error {
	if _, err := tc.w.WriteString(successStatus + path); err != nil {
		return err
	}
	return tc.w.Flush()
}

func (tc *tcpConn) RespondError(msg string) error {
	if _, err := tc.w.WriteString(errorStatus + msg); err != nil {
		return err
	}
	return tc.w.Flush()
}

func (tc *tcpConn) Close() error { return tc.c.Close() }
