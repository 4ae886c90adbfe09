package bus

import (
	"time"

	"github.com/arloliu/go-ebus/ebus"
)

// Event is one outcome observed on the bus.
type Event struct {
	Time time.Time
	Kind ebus.ResultKind

	// Telegram is the telegram the outcome belongs to: ours for own exchanges, the received
	// one for requests. Zero for the remaining kinds.
	Telegram ebus.Telegram

	// Reply is the reply payload of an own exchange.
	Reply []byte

	// Own is set for outcomes that conclude a telegram sent by this device.
	Own bool
}
