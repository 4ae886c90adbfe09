package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/arloliu/go-ebus/bus"
	"github.com/arloliu/go-ebus/ebus"
	"github.com/arloliu/go-ebus/mqttpub"
)

// printer writes one line per event.
type printer struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *printer) Publish(ev bus.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.out, formatEvent(ev))
}

func formatEvent(ev bus.Event) string {
	ts := ev.Time.Format("15:04:05.000")

	switch {
	case ev.Kind == ebus.ResultRequest:
		return fmt.Sprintf("[%s] %-16s %s", ts, ev.Kind, ev.Telegram)
	case ev.Own && len(ev.Reply) > 0:
		return fmt.Sprintf("[%s] %-16s %s reply=%x", ts, ev.Kind, ev.Telegram, ev.Reply)
	case ev.Own:
		return fmt.Sprintf("[%s] %-16s %s", ts, ev.Kind, ev.Telegram)
	}

	return fmt.Sprintf("[%s] %s", ts, ev.Kind)
}

// fanout delivers every event to several publishers.
type fanout []bus.Publisher

func (f fanout) Publish(ev bus.Event) {
	for _, p := range f {
		p.Publish(ev)
	}
}

// publishers returns the event sink for a command: the printer, plus MQTT when --mqtt is set.
// The returned close function disconnects from the broker.
func (o *globalOptions) publishers(out io.Writer) (bus.Publisher, func(), error) {
	pr := &printer{out: out}
	if o.mqttURL == "" {
		return pr, func() {}, nil
	}

	mq, err := mqttpub.New(o.mqttURL, mqttpub.WithLogger(o.logTo()))
	if err != nil {
		return nil, nil, err
	}
	if err := mq.Connect(10 * time.Second); err != nil {
		return nil, nil, err
	}

	return fanout{pr, mq}, func() { _ = mq.Close() }, nil
}
