package bus

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-ebus/ebus"
)

// simWire is a shared eBUS line for tests.
//
// It advances in byte slots. A slot starts once every attached port is blocked in Read, so all
// reactions to the previous byte are queued. Each port then contributes the next byte it has
// queued; the line carries the wired-AND of all contributions, or SYN when nobody sends.
// Every port, senders included, reads the resulting byte.
type simWire struct {
	mu    sync.Mutex
	ports []*simPort
	ready chan struct{}

	// external bytes injected by the test, sent ahead of any port
	inject []byte

	// log of every byte on the line
	history []byte
}

func newSimWire() *simWire {
	return &simWire{ready: make(chan struct{}, 64)}
}

func (w *simWire) attach() *simPort {
	w.mu.Lock()
	defer w.mu.Unlock()

	p := &simPort{wire: w, rx: make(chan byte, 1), closed: make(chan struct{})}
	w.ports = append(w.ports, p)

	return p
}

// injectBytes queues bytes from a device that is not a Bus, e.g. another master.
func (w *simWire) injectBytes(p ...byte) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.inject = append(w.inject, p...)
}

func (w *simWire) lineHistory() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()

	return append([]byte(nil), w.history...)
}

// run clocks the line until ctx is done.
func (w *simWire) run(ctx context.Context, slot time.Duration) {
	w.mu.Lock()
	n := len(w.ports)
	w.mu.Unlock()

	for {
		for range n {
			select {
			case <-w.ready:
			case <-ctx.Done():
				return
			}
		}

		if slot > 0 {
			select {
			case <-time.After(slot):
			case <-ctx.Done():
				return
			}
		}

		b := w.nextByte()
		for _, p := range w.ports {
			select {
			case p.rx <- b:
			case <-p.closed:
			}
		}
	}
}

func (w *simWire) nextByte() byte {
	w.mu.Lock()
	defer w.mu.Unlock()

	var (
		b    byte = 0xFF
		sent bool
	)

	if len(w.inject) > 0 {
		b = w.inject[0]
		w.inject = w.inject[1:]
		sent = true
	}

	for _, p := range w.ports {
		if len(p.tx) == 0 {
			continue
		}
		b &= p.tx[0]
		p.tx = p.tx[1:]
		sent = true
	}

	if !sent {
		b = ebus.Sync
	}
	w.history = append(w.history, b)

	return b
}

// simPort is one device's connection to a simWire.
type simPort struct {
	wire *simWire
	tx   []byte // guarded by wire.mu

	rx        chan byte
	closed    chan struct{}
	closeOnce sync.Once
}

var _ Port = (*simPort)(nil)

func (p *simPort) Read(buf []byte) (int, error) {
	select {
	case <-p.closed:
		return 0, io.EOF
	default:
	}

	select {
	case p.wire.ready <- struct{}{}:
	case <-p.closed:
		return 0, io.EOF
	}

	select {
	case b := <-p.rx:
		buf[0] = b
		return 1, nil
	case <-p.closed:
		return 0, io.EOF
	}
}

func (p *simPort) TransmitRaw(b []byte) error {
	p.wire.mu.Lock()
	defer p.wire.mu.Unlock()

	p.tx = append(p.tx, b...)

	return nil
}

func (p *simPort) ClearBuffer() error {
	p.wire.mu.Lock()
	defer p.wire.mu.Unlock()

	p.tx = nil

	return nil
}

func (p *simPort) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

// startBus creates a bus on a new port of w and runs it until the test ends.
func startBus(t *testing.T, w *simWire, opts ...Option) *Bus {
	t.Helper()

	opts = append([]Option{WithDriverOptions(ebus.WithFairnessMax(1)), WithDelay(nil)}, opts...)

	b, err := New(w.attach(), opts...)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background()) }()

	t.Cleanup(func() {
		_ = b.Close()
		require.NoError(t, <-done)
	})

	return b
}

// startWire clocks w until the test ends. Buses must be attached first.
func startWire(t *testing.T, w *simWire) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go w.run(ctx, 0)
}

// recordingPublisher collects published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingPublisher) Publish(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, ev)
}

func (r *recordingPublisher) kinds() []ebus.ResultKind {
	r.mu.Lock()
	defer r.mu.Unlock()

	kinds := make([]ebus.ResultKind, 0, len(r.events))
	for _, ev := range r.events {
		kinds = append(kinds, ev.Kind)
	}

	return kinds
}

// sendCtx returns a context bounded for a single Send in tests.
func sendCtx(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	return ctx
}
