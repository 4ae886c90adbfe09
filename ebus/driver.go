package ebus

import (
	"fmt"
	"time"

	"github.com/arloliu/go-ebus/logger"
)

// Transmitter is the byte sink the driver writes to.
type Transmitter interface {
	// TransmitRaw writes bytes to the bus as-is. The bytes must echo back through Process.
	TransmitRaw(p []byte) error
	// ClearBuffer discards bytes that were handed to TransmitRaw but are not on the wire yet.
	ClearBuffer() error
}

// DelayFunc waits for d, or yields, or does nothing; the choice belongs to the caller.
// A nil DelayFunc is treated as a no-op.
type DelayFunc func(d time.Duration)

// maxWireLen is the longest physical frame the driver sends: a master telegram with a data CRC
// and a full payload where every byte needs escaping, plus an escaped CRC.
const maxWireLen = 2*(4+1+MaxDataLen) + 2

type phase uint8

const (
	// phaseIdle: no SYN seen since start-up.
	phaseIdle phase = iota
	// phaseWaitSync: ignore everything until the next SYN.
	phaseWaitSync
	// phaseListen: receiving a telegram sent by another master.
	phaseListen
	// phaseRequested: a Request was delivered and may be answered.
	phaseRequested
	// phaseLockAcquire: our source address was sent, the next byte decides arbitration.
	phaseLockAcquire
	// phaseMasterLoopback: our telegram is echoing back.
	phaseMasterLoopback
	phaseMasterAck
	phaseMasterReplyLen
	phaseMasterReplyData
	phaseMasterReplyCRC
	// phaseMasterDiscard: the reply is unusable, the next SYN reports a timeout.
	phaseMasterDiscard
	// phaseSlaveLoopback: our reply or acknowledgement is echoing back.
	phaseSlaveLoopback
	phaseSlaveAck
)

func (p phase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phaseWaitSync:
		return "wait-sync"
	case phaseListen:
		return "listen"
	case phaseRequested:
		return "requested"
	case phaseLockAcquire:
		return "lock-acquire"
	case phaseMasterLoopback:
		return "master-loopback"
	case phaseMasterAck:
		return "master-ack"
	case phaseMasterReplyLen:
		return "master-reply-len"
	case phaseMasterReplyData:
		return "master-reply-data"
	case phaseMasterReplyCRC:
		return "master-reply-crc"
	case phaseMasterDiscard:
		return "master-discard"
	case phaseSlaveLoopback:
		return "slave-loopback"
	case phaseSlaveAck:
		return "slave-ack"
	default:
		return "unknown"
	}
}

// Driver is the eBUS protocol engine of one device.
//
// Create it with NewDriver, then call Process for every byte received from the bus.
type Driver struct {
	cfg    config
	logger logger.Logger

	phase    phase
	fairness uint8
	dec      Decoder

	// receive state, shared by listen and master-reply phases
	crc       CRC
	pos       uint8
	expectLen uint8
	telegram  Telegram
	data      Buffer

	// own exchange
	lockSrc     byte
	expectReply bool
	broadcast   bool

	// physical bytes sent and still to be echoed back
	wire          [maxWireLen]byte
	wireLen       int
	wireIdx       int
	afterLoopback phase

	reqSeq     uint32
	reqPending bool

	metrics DriverMetrics
}

// NewDriver creates a driver.
//
// arbitrationDelay is waited (through the DelayFunc) between seeing SYN and sending the source
// address; it depends on the UART latency and must place our first bit on the SYN boundary.
// framePoly and dataPoly are the CRC-8 generator polynomials for framing and data CRCs.
//
// The fairness counter starts at its maximum, so a fresh driver waits DefaultFairnessMax SYN
// symbols before its first arbitration.
func NewDriver(arbitrationDelay time.Duration, framePoly, dataPoly byte, opts ...Option) (*Driver, error) {
	if arbitrationDelay < 0 {
		return nil, fmt.Errorf("ebus: arbitration delay %v must not be negative", arbitrationDelay)
	}

	cfg := config{
		arbitrationDelay: arbitrationDelay,
		framePoly:        framePoly,
		dataPoly:         dataPoly,
		fairnessMax:      DefaultFairnessMax,
		syncBackoff:      DefaultSyncBackoff,
		collisionBackoff: DefaultCollisionBackoff,
		logger:           logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(&cfg); err != nil {
			return nil, err
		}
	}

	d := &Driver{
		cfg:      cfg,
		logger:   cfg.logger,
		phase:    phaseIdle,
		fairness: cfg.fairnessMax,
	}

	return d, nil
}

// ArbitrationDelay returns the configured arbitration delay.
func (d *Driver) ArbitrationDelay() time.Duration { return d.cfg.arbitrationDelay }

// FramePoly returns the frame CRC polynomial.
func (d *Driver) FramePoly() byte { return d.cfg.framePoly }

// DataPoly returns the data CRC polynomial.
func (d *Driver) DataPoly() byte { return d.cfg.dataPoly }

// FairnessMax returns the fairness counter maximum.
func (d *Driver) FairnessMax() uint8 { return d.cfg.fairnessMax }

// Fairness returns the current fairness counter.
func (d *Driver) Fairness() uint8 { return d.fairness }

// Metrics returns the driver counters.
func (d *Driver) Metrics() *DriverMetrics { return &d.metrics }

// Process handles one byte received from the bus.
//
// msg is the telegram the caller wants to send next, or nil. It must be offered on every call
// until a result with EndsMasterExchange() == true concludes it.
//
// Protocol anomalies are reported as Result kinds. A non-nil error only comes from tx; the driver
// state is then left as it was when the transmit failed.
func (d *Driver) Process(b byte, tx Transmitter, delay DelayFunc, msg *MasterTelegram) (Result, error) {
	if b == Sync {
		return d.onSync(tx, delay, msg)
	}

	switch d.phase {
	case phaseIdle, phaseWaitSync, phaseRequested, phaseMasterDiscard:
		return Result{}, nil

	case phaseListen:
		return d.onListenByte(b), nil

	case phaseLockAcquire:
		return d.onLockByte(b, tx, delay, msg)

	case phaseMasterLoopback:
		d.onLoopbackByte(b)
		if d.phase == phaseMasterAck && d.broadcast {
			// Nobody acknowledges a broadcast.
			return d.concludeMaster(tx, false, 0, Result{Kind: ResultMasterAckOk})
		}

		return Result{}, nil

	case phaseSlaveLoopback:
		d.onLoopbackByte(b)
		return Result{}, nil

	case phaseMasterAck:
		return d.onMasterAck(b, tx)

	case phaseMasterReplyLen, phaseMasterReplyData, phaseMasterReplyCRC:
		return d.onReplyByte(b, tx)

	case phaseSlaveAck:
		return d.onSlaveAck(b), nil
	}

	return Result{}, nil
}

// InExchange reports whether the driver has put an outbound telegram on the wire and has not
// concluded it yet. From the arbitration byte on, the telegram passed to Process must stay the same.
func (d *Driver) InExchange() bool {
	switch d.phase { //nolint:exhaustive
	case phaseLockAcquire, phaseMasterLoopback, phaseMasterAck,
		phaseMasterReplyLen, phaseMasterReplyData, phaseMasterReplyCRC, phaseMasterDiscard:
		return true
	}

	return false
}

// IsTimeCritical reports whether the next byte is likely a SYN the driver may have to
// arbitrate on. Callers can poll tightly while it returns true and relax otherwise.
func (d *Driver) IsTimeCritical() bool {
	switch d.phase { //nolint:exhaustive
	case phaseIdle, phaseWaitSync, phaseMasterDiscard:
		return true
	case phaseListen:
		return d.pos == 0
	}

	return false
}

// decode runs b through the escape decoder.
func (d *Driver) decode(b byte) (byte, bool, error) {
	return d.dec.Decode(b)
}

// toWaitSync drops all per-exchange state and ignores bytes until the next SYN.
func (d *Driver) toWaitSync() {
	d.phase = phaseWaitSync
	d.dec.Reset()
	d.reqPending = false
	d.wireLen, d.wireIdx = 0, 0
}

// toListen starts receiving a new telegram.
func (d *Driver) toListen() {
	d.phase = phaseListen
	d.dec.Reset()
	d.reqPending = false
	d.crc = NewCRC(d.cfg.framePoly)
	d.pos = listenSrc
	d.expectLen = 0
	d.telegram = Telegram{}
	d.wireLen, d.wireIdx = 0, 0
}

// startLoopback records that the first n bytes of d.wire were sent and must echo back before
// the driver moves on to next.
func (d *Driver) startLoopback(n int, loopback, next phase) {
	d.wireLen = n
	d.wireIdx = 0
	d.phase = loopback
	d.afterLoopback = next
}

func (d *Driver) onLoopbackByte(b byte) {
	if want := d.wire[d.wireIdx]; b != want {
		d.metrics.incLoopbackMismatchCount()
		d.logger.Warn("ebus: loopback mismatch",
			"phase", d.phase.String(),
			"index", d.wireIdx,
			"expected", hexByte(want),
			"got", hexByte(b),
		)
	}

	d.wireIdx++
	if d.wireIdx < d.wireLen {
		return
	}

	next := d.afterLoopback
	d.wireLen, d.wireIdx = 0, 0
	d.dec.Reset()
	d.phase = next
}

func (d *Driver) transmit(tx Transmitter, p []byte) error {
	if err := tx.TransmitRaw(p); err != nil {
		return fmt.Errorf("ebus: transmit: %w", err)
	}

	return nil
}

func hexByte(b byte) string {
	return fmt.Sprintf("0x%02X", b)
}
