package port

import (
	"context"
	"errors"
	"fmt"

	"github.com/arloliu/go-ebus/bus"
)

var (
	_ bus.Port = (*Serial)(nil)
	_ bus.Port = (*WebSocket)(nil)
	_ bus.Port = (*TCP)(nil)
)

// Config selects one kind of port. The first non-empty of WebSocket.URL, TCP and Serial wins.
type Config struct {
	Serial   string
	BaudRate int

	WebSocket WebSocketConfig

	TCP string
}

// Open opens the port described by cfg and returns it with a human readable description.
func Open(ctx context.Context, cfg Config) (bus.Port, string, error) {
	switch {
	case cfg.WebSocket.URL != "":
		p, err := DialWebSocket(ctx, cfg.WebSocket)
		if err != nil {
			return nil, "", err
		}

		return p, p.String(), nil

	case cfg.TCP != "":
		p, err := DialTCP(ctx, cfg.TCP)
		if err != nil {
			return nil, "", err
		}

		return p, p.String(), nil

	case cfg.Serial != "":
		baud := cfg.BaudRate
		if baud == 0 {
			baud = DefaultBaudRate
		}

		p, err := OpenSerial(cfg.Serial, baud)
		if err != nil {
			return nil, "", err
		}

		return p, fmt.Sprintf("%s @ %d baud", p, baud), nil
	}

	return nil, "", errors.New("port: one of serial device, TCP address or WebSocket URL is required")
}
