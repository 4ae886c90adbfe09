package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-ebus/bus"
	"github.com/arloliu/go-ebus/ebus"
)

func newCRCCmd() *cobra.Command {
	var (
		poly    string
		escape  bool
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "crc [bytes...]",
		Short: "Calculate the eBUS CRC-8 of hex bytes",
		Long: `Calculate the CRC-8 of the given hex bytes, or of whitespace separated
bytes read from stdin when no arguments are given.

With --escape the bytes are treated as logical values: they are escaped first
and the CRC is calculated over the bytes as they appear on the bus.`,
		Example: "  ebusctl crc --poly 0x9B 1E 0F 00",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseByte(poly)
			if err != nil {
				return fmt.Errorf("invalid --poly: %w", err)
			}

			if len(args) == 0 {
				in, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				args = strings.Fields(string(in))
			}

			data, err := parseHexBytes(args)
			if err != nil {
				return err
			}
			if escape {
				data = ebus.EscapeBytes(data)
			}

			out := cmd.OutOrStdout()
			crc := ebus.NewCRC(p)
			for _, b := range data {
				if verbose {
					fmt.Fprintf(out, "byte 0x%02X\n", b)
				}
				crc.Add(b)
			}
			fmt.Fprintf(out, "0x%02X\n", crc.Value())

			return nil
		},
	}

	cmd.Flags().StringVar(&poly, "poly", fmt.Sprintf("0x%02X", bus.DefaultFramePoly), "Generator polynomial")
	cmd.Flags().BoolVar(&escape, "escape", false, "Escape the input before calculating")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print every byte")

	return cmd
}
