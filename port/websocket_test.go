package port

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newEchoBridge starts a bridge that echoes every binary message, as the bus would.
func newEchoBridge(t *testing.T, user, pass string) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user != "" {
			u, p, ok := r.BasicAuth()
			if !ok || u != user || p != pass {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// a text message first, which the port must skip
		_ = conn.WriteMessage(websocket.TextMessage, []byte("hello"))

		for {
			typ, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(typ, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialCtx(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	return ctx
}

func TestWebSocket_Echo(t *testing.T) {
	url := newEchoBridge(t, "", "")

	p, err := DialWebSocket(dialCtx(t), WebSocketConfig{URL: url})
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.TransmitRaw([]byte{0x31, 0x15, 0x07, 0x04}))
	require.NoError(t, p.ClearBuffer())

	// a small buffer forces the message to be split across reads
	buf := make([]byte, 3)
	n, err := p.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x31, 0x15, 0x07}, buf[:n])

	n, err = p.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x04}, buf[:n])
}

func TestWebSocket_BasicAuth(t *testing.T) {
	url := newEchoBridge(t, "ebus", "secret")

	_, err := DialWebSocket(dialCtx(t), WebSocketConfig{URL: url, Username: "ebus", Password: "wrong"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	p, err := DialWebSocket(dialCtx(t), WebSocketConfig{URL: url, Username: "ebus", Password: "secret"})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestWebSocket_ReadAfterClose(t *testing.T) {
	url := newEchoBridge(t, "", "")

	p, err := DialWebSocket(dialCtx(t), WebSocketConfig{URL: url})
	require.NoError(t, err)
	require.NoError(t, p.Close())

	_, err = p.Read(make([]byte, 1))
	require.Error(t, err)

	_, err = p.Read(make([]byte, 1))
	require.ErrorIs(t, err, ErrConnectionClosed)
}

func TestDialWebSocket_InvalidScheme(t *testing.T) {
	_, err := DialWebSocket(context.Background(), WebSocketConfig{URL: "http://localhost/ebus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported URL scheme")
}
