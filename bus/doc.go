/*
Package bus runs an ebus.Driver against a Port.

A Bus owns the only goroutine that touches its driver. It reads bytes from the port, feeds them to
the driver, offers the telegram at the head of its send queue, answers requests addressed to the
device and hands every outcome to the configured Publisher.

	p, err := port.OpenSerial("/dev/ttyUSB0")
	if err != nil {
		return err
	}

	b, err := bus.New(p,
		bus.WithAddress(0x31),
		bus.WithRequestHandler(func(t ebus.Telegram) ([]byte, bool) {
			return []byte{0x01}, true
		}),
	)
	if err != nil {
		return err
	}

	go b.Run(ctx)

	out, err := b.Send(ctx, &ebus.MasterTelegram{
		Telegram: ebus.Telegram{Src: 0x31, Dest: 0x08, Service: 0x0907},
		Flags:    ebus.FlagExpectReply,
	})

Send is safe for concurrent use; outbound telegrams are queued in a lock-free queue and sent one
at a time.
*/
package bus
