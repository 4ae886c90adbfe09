package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-ebus/bus"
	"github.com/arloliu/go-ebus/capture"
)

func newMonitorCmd(opts *globalOptions) *cobra.Command {
	var recordPath string

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Print telegrams seen on the bus",
		Long: `Continuously decode and print the eBUS traffic.

Telegrams addressed to the own master address are acknowledged. With --record
the raw bytes are written to a capture file that can be replayed later.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			addr, err := opts.masterAddress()
			if err != nil {
				return err
			}

			pub, closePub, err := opts.publishers(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer closePub()

			p, info, err := opts.openPort(ctx)
			if err != nil {
				return err
			}

			busOpts := []bus.Option{
				bus.WithAddress(addr),
				bus.WithPublisher(pub),
				bus.WithLogger(opts.logTo()),
			}

			if recordPath != "" {
				f, err := os.Create(recordPath)
				if err != nil {
					_ = p.Close()
					return fmt.Errorf("create capture file: %w", err)
				}
				defer f.Close()

				busOpts = append(busOpts, bus.WithRecorder(capture.NewWriter(f)))
			}

			b, err := bus.New(p, busOpts...)
			if err != nil {
				_ = p.Close()
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Connection: %s\nAddress: 0x%02X\nPress Ctrl+C to exit\n\n", info, addr)

			return b.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&recordPath, "record", "r", "", "Write raw bus bytes to a capture file")

	return cmd
}
