package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-ebus/bus"
	"github.com/arloliu/go-ebus/logger"
	"github.com/arloliu/go-ebus/port"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	// serial adapter
	portName string
	baudRate int

	// WebSocket bridge
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// raw TCP adapter
	tcpAddr string

	address  string
	logLevel string
	mqttURL  string

	log logger.Logger
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "ebusctl",
		Short: "eBUS monitor and client",
		Long: `ebusctl - monitor, record and send eBUS telegrams.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 2400]
  TCP:       --tcp host:port
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the EBUS_PASSWORD
environment variable, or prompted interactively if not set.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := logger.ParseLevel(opts.logLevel)
			if err != nil {
				return err
			}
			opts.log = logger.NewSlogWriter(cmd.ErrOrStderr(), level, false)
			logger.SetDefault(opts.log)

			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.portName, "port", "p", "", "Serial port device")
	flags.IntVarP(&opts.baudRate, "baud", "b", port.DefaultBaudRate, "Baud rate (serial only)")
	flags.StringVarP(&opts.wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	flags.StringVar(&opts.wsUsername, "username", "", "Username for HTTP Basic auth")
	flags.BoolVar(&opts.wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
	flags.StringVar(&opts.tcpAddr, "tcp", "", "Raw TCP adapter address (host:port)")
	flags.StringVarP(&opts.address, "address", "a", fmt.Sprintf("%02X", bus.DefaultAddress), "Own master address (hex)")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flags.StringVar(&opts.mqttURL, "mqtt", "", "Publish events to this MQTT broker (mqtt://host:1883/topic/prefix)")

	cmd.AddCommand(
		newCRCCmd(),
		newMonitorCmd(opts),
		newSendCmd(opts),
		newReplayCmd(opts),
	)

	return cmd
}

// masterAddress parses the --address flag.
func (o *globalOptions) masterAddress() (byte, error) {
	addr, err := parseByte(o.address)
	if err != nil {
		return 0, fmt.Errorf("invalid --address: %w", err)
	}

	return addr, nil
}

// logTo returns the configured logger, or a default one for commands run without the root
// pre-run hook.
func (o *globalOptions) logTo() logger.Logger {
	if o.log == nil {
		o.log = logger.NewSlogWriter(os.Stderr, logger.InfoLevel, false)
	}

	return o.log
}
