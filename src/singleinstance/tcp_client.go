package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"time"
)

type tcpClient struct{}

func newTcpClient() *tcpClient { return &tcpClient{} }

func (c *tcpClient) TryCapture(ctx context.Context, req Request) (bool, string, error) {
	port, ok := DetectResidentPort(ctx)
	if !ok {
		return false, "", nil
	}
	addr := net.JoinHostPort(residentHost, strconv.Itoa(port))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false, "", nil
	}
	defer conn.Close()

	// Unblock reads when ctx ends; the user may take a while to select.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	line := captureRequest
	if req.CopyToClipboard {
		line = clipboardRequest
	}
	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(line); err != nil {
		return true, "", err
	}
	if err := w.Flush(); err != nil {
		return true, "", err
	}

	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return true, "", ctxErr
		}
		return true, "", err
	}
	body, _ := io.ReadAll(br)
	switch status {
	case successStatus:
		return true, string(body), nil
	case errorStatus:
		return true, "", errors.New(string(body))
	default:
		return true, "", errors.New("unexpected response from resident")
	}
}

// DetectResidentPort scans the port range and returns (port, true) if a resident responds to PING.
func DetectResidentPort(ctx context.Context) (int, bool) {
	deadline := 300 * time.Millisecond
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 && d < deadline {
			deadline = d
		}
	}
	start, end := PortRange()
	for port := start; port <= end; port++ {
		addr := net.JoinHostPort(residentHost, strconv.Itoa(port))
		if ping(addr, deadline) {
			return port, true
		}
	}
	return 0, false
}

func ping(addr string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))
	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(pingRequest); err != nil {
		return false
	}
	if err := w.Flush(); err != nil {
		return false
	}
	br := bufio.NewReader(conn)
	resp, err := br.ReadString('\n')
	return err == nil && resp == pongResponse
}
