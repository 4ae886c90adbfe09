package ebus

import "fmt"

// Header positions of a telegram received as listener.
const (
	listenSrc uint8 = iota
	listenDest
	listenServiceLow
	listenServiceHigh
	listenLen
	listenData
	listenCRC
)

// onListenByte accumulates a telegram sent by another master. The verification CRC covers the
// physical bytes from the source address through the payload.
func (d *Driver) onListenByte(b byte) Result {
	if d.pos < listenCRC {
		d.crc.Add(b)
	}

	v, ok, err := d.decode(b)
	if err != nil {
		d.metrics.incProtocolErrorCount()
		d.logger.Warn("ebus: invalid escape sequence", "phase", d.phase.String(), "byte", hexByte(b))
		d.toWaitSync()

		return Result{}
	}
	if !ok {
		return Result{}
	}

	switch d.pos {
	case listenSrc:
		d.telegram.Src = v
		d.pos = listenDest

	case listenDest:
		d.telegram.Dest = v
		d.pos = listenServiceLow

	case listenServiceLow:
		d.telegram.Service = uint16(v)
		d.pos = listenServiceHigh

	case listenServiceHigh:
		d.telegram.Service |= uint16(v) << 8
		d.pos = listenLen

	case listenLen:
		if v > MaxDataLen {
			d.metrics.incProtocolErrorCount()
			d.logger.Warn("ebus: telegram length exceeds capacity",
				"src", hexByte(d.telegram.Src), "length", v, "max", MaxDataLen)
			d.toWaitSync()

			return Result{}
		}

		d.expectLen = v
		if v == 0 {
			d.pos = listenCRC
		} else {
			d.pos = listenData
		}

	case listenData:
		d.telegram.Data.append(v)
		if d.telegram.Data.Len() >= int(d.expectLen) {
			d.pos = listenCRC
		}

	case listenCRC:
		return d.completeTelegram(v)
	}

	return Result{}
}

func (d *Driver) completeTelegram(wireCRC byte) Result {
	if wireCRC != d.crc.Value() {
		d.metrics.incCRCErrorCount()
		d.logger.Warn("ebus: telegram CRC mismatch",
			"telegram", d.telegram.String(),
			"wire", hexByte(wireCRC),
			"computed", hexByte(d.crc.Value()),
		)
		d.toWaitSync()

		return Result{Kind: ResultTelegramCRCError}
	}

	d.metrics.incRequestCount()

	d.reqSeq++
	if d.reqSeq == 0 {
		d.reqSeq = 1
	}
	res := Result{
		Kind:     ResultRequest,
		Telegram: d.telegram,
		Token:    RequestToken{seq: d.reqSeq},
	}

	d.toWaitSync()
	d.phase = phaseRequested
	d.reqPending = true

	return res
}

// ReplyAsSlave answers the pending request with payload.
//
// It sends ACK, the length, the payload and the frame CRC, then waits for the echo of these
// bytes and for the requester's acknowledgement, which Process reports as ResultSlaveAckOk or
// ResultSlaveAckErr.
//
// token must come from the Request result being answered. A payload longer than MaxDataLen is
// rejected with ErrPayloadTooLarge before anything is sent and the token stays valid.
func (d *Driver) ReplyAsSlave(payload []byte, tx Transmitter, token RequestToken) error {
	if err := d.checkToken(token); err != nil {
		return err
	}

	if len(payload) > MaxDataLen {
		d.logger.Warn("ebus: reply payload exceeds capacity", "length", len(payload), "max", MaxDataLen)
		return fmt.Errorf("%w: %d bytes, max %d", ErrPayloadTooLarge, len(payload), MaxDataLen)
	}

	crc := NewCRC(d.cfg.framePoly)

	w := d.wire[:0]
	w = appendEscapedByte(w, ACK, &crc)
	w = appendEscapedByte(w, byte(len(payload)), &crc)
	w = AppendEscaped(w, payload, &crc)
	w = appendEscapedByte(w, crc.Value(), nil)

	d.reqPending = false
	d.dec.Reset()
	d.startLoopback(len(w), phaseSlaveLoopback, phaseSlaveAck)
	d.metrics.incSlaveReplyCount()

	return d.transmit(tx, w)
}

// ReplyAck answers the pending request with a bare ACK, as done for telegrams between two
// masters. No acknowledgement from the requester follows.
func (d *Driver) ReplyAck(tx Transmitter, token RequestToken) error {
	if err := d.checkToken(token); err != nil {
		return err
	}

	d.wire[0] = ACK
	d.reqPending = false
	d.dec.Reset()
	d.startLoopback(1, phaseSlaveLoopback, phaseWaitSync)

	return d.transmit(tx, d.wire[:1])
}

func (d *Driver) checkToken(token RequestToken) error {
	if !d.reqPending || d.phase != phaseRequested || token.seq == 0 || token.seq != d.reqSeq {
		return ErrInvalidToken
	}

	return nil
}

// onSlaveAck handles the requester's acknowledgement of our reply.
func (d *Driver) onSlaveAck(b byte) Result {
	v, ok, err := d.decode(b)
	if err != nil {
		d.metrics.incProtocolErrorCount()
		d.logger.Warn("ebus: invalid escape sequence", "phase", d.phase.String(), "byte", hexByte(b))
		d.toWaitSync()

		return Result{}
	}
	if !ok {
		return Result{}
	}

	d.toWaitSync()

	if v == ACK {
		return Result{Kind: ResultSlaveAckOk}
	}

	if v != NACK {
		d.logger.Warn("ebus: unexpected negative acknowledgement", "byte", hexByte(v))
	}

	return Result{Kind: ResultSlaveAckErr}
}
