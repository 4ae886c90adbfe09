package port

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = time.Second
)

// ErrConnectionClosed is returned by Read after the WebSocket connection failed or was closed.
var ErrConnectionClosed = errors.New("port: websocket connection closed")

// WebSocket is a network eBUS bridge that carries raw bus bytes in binary messages.
type WebSocket struct {
	conn *websocket.Conn
	url  string

	// receive side, only touched by the reading goroutine
	buf    []byte
	off    int
	closed bool

	writeMu sync.Mutex
}

// WebSocketConfig configures DialWebSocket.
type WebSocketConfig struct {
	URL      string
	Username string
	Password string

	// InsecureSkipVerify disables certificate checks for wss:// URLs.
	InsecureSkipVerify bool
}

// DialWebSocket connects to a bridge. Credentials are sent with HTTP basic auth when a
// username is set.
func DialWebSocket(ctx context.Context, cfg WebSocketConfig) (*WebSocket, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("port: invalid URL %q: %w", cfg.URL, err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	switch u.Scheme {
	case "ws":
	case "wss":
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify} //nolint:gosec // opt-in
	default:
		return nil, fmt.Errorf("port: unsupported URL scheme %q (use ws:// or wss://)", u.Scheme)
	}

	headers := http.Header{}
	if cfg.Username != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(cfg.Username + ":" + cfg.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	conn, resp, err := dialer.DialContext(ctx, cfg.URL, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("port: websocket handshake failed (HTTP %d): %w", resp.StatusCode, err)
		}

		return nil, fmt.Errorf("port: websocket dial: %w", err)
	}

	return &WebSocket{conn: conn, url: cfg.URL}, nil
}

// Read returns buffered bytes of the last binary message, or waits for the next one.
// Text messages are ignored.
func (w *WebSocket) Read(p []byte) (int, error) {
	if w.off < len(w.buf) {
		n := copy(p, w.buf[w.off:])
		w.off += n

		return n, nil
	}

	if w.closed {
		return 0, ErrConnectionClosed
	}

	for {
		typ, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed = true
			return 0, err
		}

		if typ != websocket.BinaryMessage || len(data) == 0 {
			continue
		}

		w.buf = data
		w.off = copy(p, data)

		return w.off, nil
	}
}

// TransmitRaw sends p as one binary message.
func (w *WebSocket) TransmitRaw(p []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if err := w.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}

	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return fmt.Errorf("port: websocket write: %w", err)
	}

	return nil
}

// ClearBuffer is a no-op: messages handed to the bridge cannot be recalled.
func (w *WebSocket) ClearBuffer() error {
	return nil
}

// Close sends a close frame and closes the connection.
func (w *WebSocket) Close() error {
	w.writeMu.Lock()
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
	w.writeMu.Unlock()

	return w.conn.Close()
}

func (w *WebSocket) String() string {
	return fmt.Sprintf("websocket %s", w.url)
}
