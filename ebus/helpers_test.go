package ebus

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testFramePoly byte = 0x9B
	testDataPoly  byte = 0x5C
)

var errTestTransmit = errors.New("transmit failed")

// recordingTx captures every TransmitRaw call.
type recordingTx struct {
	frames [][]byte
	clears int
	fail   bool
}

func (r *recordingTx) TransmitRaw(p []byte) error {
	if r.fail {
		return errTestTransmit
	}
	r.frames = append(r.frames, append([]byte(nil), p...))

	return nil
}

func (r *recordingTx) ClearBuffer() error {
	r.clears++
	return nil
}

// last returns the most recent frame, or nil.
func (r *recordingTx) last() []byte {
	if len(r.frames) == 0 {
		return nil
	}

	return r.frames[len(r.frames)-1]
}

func (r *recordingTx) reset() {
	r.frames = nil
	r.clears = 0
}

// delayRecorder records every requested delay.
type delayRecorder struct {
	calls []time.Duration
}

func (r *delayRecorder) delay(d time.Duration) {
	r.calls = append(r.calls, d)
}

func newTestDriver(t *testing.T, opts ...Option) *Driver {
	t.Helper()

	d, err := NewDriver(0, testFramePoly, testDataPoly, opts...)
	require.NoError(t, err)

	return d
}

// feed passes every byte of p through the driver and returns the non-empty results.
func feed(t *testing.T, d *Driver, tx Transmitter, msg *MasterTelegram, p ...byte) []Result {
	t.Helper()

	var results []Result
	for _, b := range p {
		res, err := d.Process(b, tx, nil, msg)
		require.NoError(t, err)

		if !res.IsNone() {
			results = append(results, res)
		}
	}

	return results
}

// feedOne passes a single byte and returns its result.
func feedOne(t *testing.T, d *Driver, tx Transmitter, msg *MasterTelegram, b byte) Result {
	t.Helper()

	res, err := d.Process(b, tx, nil, msg)
	require.NoError(t, err)

	return res
}

// echoLast feeds the most recent transmitted frame back, as the bus would.
func echoLast(t *testing.T, d *Driver, tx *recordingTx, msg *MasterTelegram) []Result {
	t.Helper()

	frame := tx.last()
	require.NotNil(t, frame, "nothing was transmitted")

	return feed(t, d, tx, msg, frame...)
}

// syncUntilLocked feeds SYN symbols until the driver sends its arbitration byte.
// It returns the number of SYN symbols that were denied.
func syncUntilLocked(t *testing.T, d *Driver, tx *recordingTx, msg *MasterTelegram) int {
	t.Helper()

	for denied := 0; denied <= 256; denied++ {
		before := len(tx.frames)
		res := feedOne(t, d, tx, msg, Sync)
		require.True(t, res.IsNone())

		if len(tx.frames) > before {
			require.Equal(t, []byte{msg.Src}, tx.last())
			return denied
		}
	}

	require.FailNow(t, "driver never arbitrated")

	return 0
}

// newMasterTelegram builds an outbound telegram.
func newMasterTelegram(src, dest byte, service uint16, data []byte, flags TelegramFlags) *MasterTelegram {
	return &MasterTelegram{
		Telegram: Telegram{
			Src:     src,
			Dest:    dest,
			Service: service,
			Data:    MustBuffer(data),
		},
		Flags: flags,
	}
}

// autoLoopback is a transmitter whose bytes appear on the bus right away, like a device that
// owns the line.
type autoLoopback struct {
	queue []byte
}

func (a *autoLoopback) TransmitRaw(p []byte) error {
	a.queue = append(a.queue, p...)
	return nil
}

func (a *autoLoopback) ClearBuffer() error {
	a.queue = a.queue[:0]
	return nil
}

// run feeds the external bytes of bus one at a time and drains the echo queue after each,
// collecting every result, empty ones included.
func (a *autoLoopback) run(t *testing.T, d *Driver, msg *MasterTelegram, bus ...byte) []ResultKind {
	t.Helper()

	var kinds []ResultKind
	step := func(b byte) {
		res, err := d.Process(b, a, nil, msg)
		require.NoError(t, err)
		kinds = append(kinds, res.Kind)
	}

	drain := func() {
		for len(a.queue) > 0 {
			next := a.queue[0]
			a.queue = a.queue[1:]
			step(next)
		}
	}

	// bytes queued by calls outside Process are on the wire first
	drain()
	for _, b := range bus {
		step(b)
		drain()
	}

	return kinds
}
