package port

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// TCP is a raw TCP eBUS adapter, e.g. a serial server forwarding the line byte for byte.
type TCP struct {
	conn        net.Conn
	readTimeout time.Duration
}

// DialTCP connects to a raw adapter at addr.
func DialTCP(ctx context.Context, addr string) (*TCP, error) {
	var d net.Dialer

	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("port: dial %s: %w", addr, err)
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		// a byte must reach the line right away, or arbitration misses the SYN boundary
		_ = tcp.SetNoDelay(true)
	}

	return NewTCP(conn), nil
}

// NewTCP wraps an established connection.
func NewTCP(conn net.Conn) *TCP {
	return &TCP{conn: conn}
}

// Read reads received bytes. With a read timeout set, an expired timeout returns 0, nil.
func (t *TCP) Read(p []byte) (int, error) {
	if t.readTimeout > 0 {
		if err := t.conn.SetReadDeadline(time.Now().Add(t.readTimeout)); err != nil {
			return 0, err
		}
	}

	n, err := t.conn.Read(p)
	if err != nil && errors.Is(err, os.ErrDeadlineExceeded) {
		return n, nil
	}

	return n, err
}

// TransmitRaw writes p to the adapter.
func (t *TCP) TransmitRaw(p []byte) error {
	if _, err := t.conn.Write(p); err != nil {
		return fmt.Errorf("port: tcp write: %w", err)
	}

	return nil
}

// ClearBuffer is a no-op: bytes written to the socket cannot be recalled.
func (t *TCP) ClearBuffer() error {
	return nil
}

// SetReadTimeout bounds how long Read waits. Zero waits forever.
func (t *TCP) SetReadTimeout(d time.Duration) error {
	t.readTimeout = d
	if d == 0 {
		return t.conn.SetReadDeadline(time.Time{})
	}

	return nil
}

func (t *TCP) Close() error {
	return t.conn.Close()
}

func (t *TCP) String() string {
	return fmt.Sprintf("tcp %s", t.conn.RemoteAddr())
}
