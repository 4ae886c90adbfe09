package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-ebus/bus"
	"github.com/arloliu/go-ebus/ebus"
)

func newSendCmd(opts *globalOptions) *cobra.Command {
	var (
		expectReply bool
		dataCRC     bool
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send DEST SERVICE [DATA...]",
		Short: "Send one telegram and print the outcome",
		Long: `Send a telegram from the own master address and wait for its outcome.

DEST is the target address and SERVICE the primary and secondary command byte
in bus order, both in hex. DATA is up to 32 hex bytes of payload.`,
		Example: "  ebusctl send --tcp adapter:9999 --reply 08 0704",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := opts.masterAddress()
			if err != nil {
				return err
			}

			msg, err := buildTelegram(addr, args, expectReply, dataCRC)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			p, _, err := opts.openPort(ctx)
			if err != nil {
				return err
			}

			b, err := bus.New(p,
				bus.WithAddress(addr),
				bus.WithSendTimeout(timeout),
				bus.WithLogger(opts.logTo()),
			)
			if err != nil {
				_ = p.Close()
				return err
			}

			done := make(chan error, 1)
			go func() { done <- b.Run(context.Background()) }()

			out, sendErr := b.Send(ctx, msg)
			_ = b.Close()
			if err := <-done; err != nil && sendErr == nil {
				sendErr = err
			}
			if sendErr != nil {
				return sendErr
			}

			fmt.Fprintln(cmd.OutOrStdout(), out)
			if !out.OK() {
				return fmt.Errorf("telegram to 0x%02X failed: %s", msg.Dest, out.Kind)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&expectReply, "reply", false, "Expect a reply from the target slave")
	cmd.Flags().BoolVar(&dataCRC, "data-crc", false, "Prefix the payload with its data CRC")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 10*time.Second, "Overall timeout")

	return cmd
}

// buildTelegram builds the telegram for the send arguments DEST SERVICE [DATA...].
func buildTelegram(src byte, args []string, expectReply, dataCRC bool) (*ebus.MasterTelegram, error) {
	dest, err := parseByte(args[0])
	if err != nil {
		return nil, fmt.Errorf("invalid destination: %w", err)
	}

	service, err := parseService(args[1])
	if err != nil {
		return nil, err
	}

	payload, err := parseHexBytes(args[2:])
	if err != nil {
		return nil, err
	}

	data, err := ebus.NewBuffer(payload)
	if err != nil {
		return nil, err
	}

	msg := &ebus.MasterTelegram{
		Telegram: ebus.Telegram{Src: src, Dest: dest, Service: service, Data: data},
	}
	if expectReply {
		msg.Flags |= ebus.FlagExpectReply
	}
	if dataCRC {
		msg.Flags |= ebus.FlagNeedsDataCRC
	}

	if err := msg.Validate(); err != nil {
		return nil, err
	}

	return msg, nil
}
