package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/arloliu/go-ebus/bus"
	"github.com/arloliu/go-ebus/port"
)

const passwordEnv = "EBUS_PASSWORD"

// getPassword reads the WebSocket password from EBUS_PASSWORD or prompts for it.
func getPassword() (string, error) {
	if pw := os.Getenv(passwordEnv); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	defer fmt.Fprintln(os.Stderr)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		pw, err := term.ReadPassword(fd)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}

		return string(pw), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	return strings.TrimSpace(line), nil
}

// portConfig builds the port configuration from the connection flags.
func (o *globalOptions) portConfig() (port.Config, error) {
	cfg := port.Config{
		Serial:   o.portName,
		BaudRate: o.baudRate,
		TCP:      o.tcpAddr,
		WebSocket: port.WebSocketConfig{
			URL:                o.wsURL,
			Username:           o.wsUsername,
			InsecureSkipVerify: o.wsNoSSLVerify,
		},
	}

	if o.wsURL != "" && o.wsUsername != "" {
		pw, err := getPassword()
		if err != nil {
			return port.Config{}, err
		}
		cfg.WebSocket.Password = pw
	}

	return cfg, nil
}

// openPort opens the port selected by the connection flags.
func (o *globalOptions) openPort(ctx context.Context) (bus.Port, string, error) {
	cfg, err := o.portConfig()
	if err != nil {
		return nil, "", err
	}

	return port.Open(ctx, cfg)
}
