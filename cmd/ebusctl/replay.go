package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-ebus/bus"
	"github.com/arloliu/go-ebus/capture"
	"github.com/arloliu/go-ebus/ebus"
)

func newReplayCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "replay FILE",
		Short: "Decode a capture file written by monitor --record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			d, err := ebus.NewDriver(0, bus.DefaultFramePoly, bus.DefaultDataPoly, ebus.WithLogger(opts.logTo()))
			if err != nil {
				return err
			}

			player, err := capture.NewPlayer(f, d)
			if err != nil {
				return err
			}

			pub, closePub, err := opts.publishers(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer closePub()

			records := player.Remaining()
			player.Run(func(ev capture.Event) {
				out := bus.Event{Time: ev.Time, Kind: ev.Result.Kind}
				if tel, _, ok := ev.Result.AsRequest(); ok {
					out.Telegram = tel
				}
				pub.Publish(out)
			})

			fmt.Fprintf(cmd.ErrOrStderr(), "%d records replayed\n", records)

			return nil
		},
	}
}
