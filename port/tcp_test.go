package port

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTCP_ReadWrite(t *testing.T) {
	local, remote := net.Pipe()
	p := NewTCP(local)
	defer p.Close()

	go func() {
		buf := make([]byte, 4)
		n, _ := remote.Read(buf)
		_, _ = remote.Write(buf[:n])
	}()

	require.NoError(t, p.TransmitRaw([]byte{0x31, 0x15}))

	buf := make([]byte, 8)
	n, err := p.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x31, 0x15}, buf[:n])
	assert.NoError(t, p.ClearBuffer())
}

func TestTCP_ReadTimeout(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()

	p := NewTCP(local)
	defer p.Close()

	require.NoError(t, p.SetReadTimeout(10*time.Millisecond))

	begin := time.Now()
	n, err := p.Read(make([]byte, 1))
	require.NoError(t, err, "an expired timeout is not an error")
	assert.Zero(t, n)
	assert.GreaterOrEqual(t, time.Since(begin), 10*time.Millisecond)

	require.NoError(t, p.SetReadTimeout(0))
}

func TestTCP_Dial(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	p, desc, err := Open(ctx, Config{TCP: ln.Addr().String()})
	require.NoError(t, err)
	defer p.Close()
	assert.Contains(t, desc, "tcp ")

	conn := <-accepted
	defer conn.Close()

	_, err = conn.Write([]byte{0xAA})
	require.NoError(t, err)

	buf := make([]byte, 1)
	n, err := p.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA}, buf[:n])
}

func TestOpen_NoPort(t *testing.T) {
	_, _, err := Open(context.Background(), Config{})
	require.Error(t, err)
}

func TestSerialMode(t *testing.T) {
	mode := serialMode(DefaultBaudRate)
	assert.Equal(t, 2400, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
}
