package ebus

import (
	"fmt"
	"time"
)

// onSync handles a SYN symbol. SYN ends every exchange window, so it is dispatched before the
// phase-specific handlers.
func (d *Driver) onSync(tx Transmitter, delay DelayFunc, msg *MasterTelegram) (Result, error) {
	d.dec.Reset()

	switch d.phase { //nolint:exhaustive
	case phaseMasterAck, phaseMasterReplyLen, phaseMasterReplyData, phaseMasterReplyCRC, phaseMasterDiscard:
		d.metrics.incTimeoutCount()
		d.logger.Debug("ebus: exchange timed out", "phase", d.phase.String())
		d.toListen()

		return Result{Kind: ResultTimeout}, nil

	case phaseSlaveAck:
		d.logger.Warn("ebus: SYN before our reply was acknowledged")
		d.toListen()

		return Result{Kind: ResultSlaveAckErr}, nil

	case phaseListen:
		if d.pos != listenSrc {
			d.logger.Debug("ebus: incomplete telegram dropped", "src", hexByte(d.telegram.Src), "received", d.pos)
		}
	}

	allowed, err := d.mayAttemptLock(tx)
	if err != nil || !allowed {
		if err == nil && msg != nil {
			d.wait(delay, d.cfg.syncBackoff)
		}

		return Result{}, err
	}

	d.toListen()

	if msg == nil {
		return Result{}, nil
	}

	return d.attemptLock(tx, delay, msg)
}

// mayAttemptLock decides on a SYN whether arbitration may start.
//
// A SYN while we acquire or hold the bus is a protocol violation: pending bytes are discarded
// and the driver waits for the next SYN. Otherwise the fairness counter gates the attempt.
func (d *Driver) mayAttemptLock(tx Transmitter) (bool, error) {
	switch d.phase { //nolint:exhaustive
	case phaseLockAcquire, phaseMasterLoopback, phaseSlaveLoopback:
		d.metrics.incProtocolErrorCount()
		d.logger.Warn("ebus: SYN while holding the bus", "phase", d.phase.String())
		d.toWaitSync()

		if err := tx.ClearBuffer(); err != nil {
			return false, fmt.Errorf("ebus: clear transmit buffer: %w", err)
		}

		return false, nil
	}

	if d.fairness == 0 {
		return true, nil
	}

	d.fairness--
	d.toListen()

	return false, nil
}

// attemptLock sends our source address as the arbitration byte.
func (d *Driver) attemptLock(tx Transmitter, delay DelayFunc, msg *MasterTelegram) (Result, error) {
	d.wait(delay, d.cfg.arbitrationDelay)

	d.metrics.incLockAttemptCount()
	d.lockSrc = msg.Src
	d.phase = phaseLockAcquire
	d.wire[0] = msg.Src

	return Result{}, d.transmit(tx, d.wire[:1])
}

// onLockByte compares the byte that won the wired-AND arbitration with our source address.
func (d *Driver) onLockByte(b byte, tx Transmitter, delay DelayFunc, msg *MasterTelegram) (Result, error) {
	if b == d.lockSrc {
		if msg == nil || msg.Src != d.lockSrc {
			// The caller withdrew the telegram while we were arbitrating. Release the bus.
			d.logger.Warn("ebus: arbitration won without a telegram to send", "src", hexByte(d.lockSrc))
			d.toWaitSync()
			d.wire[0] = Sync

			return Result{}, d.transmit(tx, d.wire[:1])
		}

		d.metrics.incLockWinCount()

		return d.sendTelegram(tx, msg)
	}

	d.metrics.incCollisionCount()

	if PriorityClass(b) == PriorityClass(d.lockSrc) {
		d.logger.Debug("ebus: arbitration lost to same priority class, retrying at next SYN",
			"own", hexByte(d.lockSrc), "winner", hexByte(b))
	} else {
		d.fairness = min(fairnessPenalty, d.cfg.fairnessMax)
		d.logger.Debug("ebus: arbitration lost",
			"own", hexByte(d.lockSrc), "winner", hexByte(b), "fairness", d.fairness)
	}

	if err := tx.ClearBuffer(); err != nil {
		return Result{}, fmt.Errorf("ebus: clear transmit buffer: %w", err)
	}

	d.wait(delay, d.cfg.collisionBackoff)

	// The winning byte is the source address of the telegram that follows.
	d.toListen()
	d.crc.Add(b)
	d.telegram.Src = b
	d.pos = listenDest

	return Result{}, nil
}

func (d *Driver) wait(delay DelayFunc, dur time.Duration) {
	if delay == nil || dur <= 0 {
		return
	}

	delay(dur)
}
