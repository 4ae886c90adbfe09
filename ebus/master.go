package ebus

// sendTelegram transmits msg after a won arbitration. The source address is already on the wire
// and only seeds the frame CRC here.
func (d *Driver) sendTelegram(tx Transmitter, msg *MasterTelegram) (Result, error) {
	data := msg.Data.Bytes()
	needsDataCRC := msg.Flags.Has(FlagNeedsDataCRC)

	length := byte(len(data))
	if needsDataCRC {
		length++
	}

	crc := NewCRC(d.cfg.framePoly)
	crc.Add(msg.Src)

	w := d.wire[:0]
	w = appendEscapedByte(w, msg.Dest, &crc)
	w = appendEscapedByte(w, byte(msg.Service), &crc)
	w = appendEscapedByte(w, byte(msg.Service>>8), &crc)
	w = appendEscapedByte(w, length, &crc)

	if needsDataCRC {
		w = appendEscapedByte(w, Checksum(d.cfg.dataPoly, data), &crc)
	}

	w = AppendEscaped(w, data, &crc)
	w = appendEscapedByte(w, crc.Value(), nil)

	d.broadcast = msg.Dest == BroadcastAddress
	d.expectReply = msg.Flags.Has(FlagExpectReply) && !d.broadcast
	d.startLoopback(len(w), phaseMasterLoopback, phaseMasterAck)

	d.logger.Debug("ebus: sending telegram", "telegram", msg.Telegram.String(), "wireLen", len(w))

	return Result{}, d.transmit(tx, w)
}

// onMasterAck handles the recipient's acknowledgement of our telegram.
func (d *Driver) onMasterAck(b byte, tx Transmitter) (Result, error) {
	v, ok, err := d.decode(b)
	if err != nil {
		d.discardReply("invalid escape in acknowledgement", b)
		return Result{}, nil
	}
	if !ok {
		return Result{}, nil
	}

	if v != ACK {
		if v != NACK {
			d.logger.Warn("ebus: unexpected negative acknowledgement", "byte", hexByte(v))
		}
		d.metrics.incMasterNackCount()

		return d.concludeMaster(tx, false, 0, Result{Kind: ResultMasterAckErr})
	}

	d.metrics.incMasterAckCount()

	if !d.expectReply {
		return d.concludeMaster(tx, false, 0, Result{Kind: ResultMasterAckOk})
	}

	d.crc = NewCRC(d.cfg.framePoly)
	d.data.Reset()
	d.expectLen = 0
	d.phase = phaseMasterReplyLen

	return Result{}, nil
}

// onReplyByte receives the slave reply to our telegram. The CRC covers the physical bytes from the
// length byte through the payload.
func (d *Driver) onReplyByte(b byte, tx Transmitter) (Result, error) {
	if d.phase != phaseMasterReplyCRC {
		d.crc.Add(b)
	}

	v, ok, err := d.decode(b)
	if err != nil {
		d.discardReply("invalid escape in reply", b)
		return Result{}, nil
	}
	if !ok {
		return Result{}, nil
	}

	switch d.phase { //nolint:exhaustive
	case phaseMasterReplyLen:
		if v > MaxDataLen {
			d.discardReply("reply length exceeds capacity", v)
			return Result{}, nil
		}

		d.expectLen = v
		if v == 0 {
			d.phase = phaseMasterReplyCRC
		} else {
			d.phase = phaseMasterReplyData
		}

	case phaseMasterReplyData:
		d.data.append(v)
		if d.data.Len() >= int(d.expectLen) {
			d.phase = phaseMasterReplyCRC
		}

	case phaseMasterReplyCRC:
		if v != d.crc.Value() {
			d.metrics.incCRCErrorCount()
			d.logger.Warn("ebus: reply CRC mismatch",
				"wire", hexByte(v),
				"computed", hexByte(d.crc.Value()),
				"data", d.data.String(),
			)

			return d.concludeMaster(tx, true, NACK, Result{Kind: ResultReplyCRCError})
		}

		d.metrics.incReplyCount()

		return d.concludeMaster(tx, true, ACK, Result{Kind: ResultReply, Data: d.data})
	}

	return Result{}, nil
}

// discardReply gives up on the current reply. Remaining bytes are ignored and the SYN that ends
// the window reports a timeout.
func (d *Driver) discardReply(reason string, b byte) {
	d.metrics.incProtocolErrorCount()
	d.logger.Warn("ebus: "+reason, "phase", d.phase.String(), "byte", hexByte(b))
	d.dec.Reset()
	d.phase = phaseMasterDiscard
}

// concludeMaster ends our exchange: it optionally acknowledges the reply, releases the bus with
// SYN and restores the fairness counter unless the telegram was refused.
func (d *Driver) concludeMaster(tx Transmitter, withAck bool, ack byte, res Result) (Result, error) {
	w := d.wire[:0]
	if withAck {
		w = append(w, ack)
	}
	w = append(w, Sync)

	if res.Kind != ResultMasterAckErr {
		d.fairness = d.cfg.fairnessMax
	}
	d.toWaitSync()

	if err := d.transmit(tx, w); err != nil {
		return Result{}, err
	}

	return res, nil
}
