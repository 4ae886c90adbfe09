package ebus

import (
	"encoding/hex"
	"fmt"
)

// MaxDataLen is the capacity of a Buffer, and the largest length field the driver accepts.
const MaxDataLen = 32

// Acknowledgement bytes.
const (
	// ACK is the positive acknowledgement.
	ACK byte = 0x00

	// NACK is the canonical negative acknowledgement. Any other non-zero byte is also treated as
	// negative but logged as unexpected.
	NACK byte = 0xFF
)

// BroadcastAddress is the destination of telegrams that are neither acknowledged nor answered. A
// master ends a broadcast with SYN right after sending it.
const BroadcastAddress byte = 0xFE

// Buffer is a fixed-capacity payload of at most MaxDataLen bytes.
//
// It is stored inline so telegrams and results can be copied by value without allocation.
type Buffer struct {
	data [MaxDataLen]byte
	n    uint8
}

// NewBuffer copies p into a Buffer.
func NewBuffer(p []byte) (Buffer, error) {
	var b Buffer
	if len(p) > MaxDataLen {
		return b, fmt.Errorf("%w: %d bytes, max %d", ErrPayloadTooLarge, len(p), MaxDataLen)
	}

	b.n = uint8(copy(b.data[:], p)) //nolint:gosec // bounded by MaxDataLen

	return b, nil
}

// MustBuffer is like NewBuffer but panics if p does not fit.
func MustBuffer(p []byte) Buffer {
	b, err := NewBuffer(p)
	if err != nil {
		panic(err)
	}

	return b
}

// Bytes returns the stored bytes. The slice aliases the buffer.
func (b *Buffer) Bytes() []byte {
	return b.data[:b.n]
}

// Len returns the number of stored bytes.
func (b Buffer) Len() int {
	return int(b.n)
}

// Reset empties the buffer.
func (b *Buffer) Reset() {
	b.n = 0
}

func (b Buffer) String() string {
	return hex.EncodeToString(b.data[:b.n])
}

// append adds v and reports whether there was room for it.
func (b *Buffer) append(v byte) bool {
	if int(b.n) >= MaxDataLen {
		return false
	}

	b.data[b.n] = v
	b.n++

	return true
}

// Telegram is one logical eBUS message.
type Telegram struct {
	// Src is the source (master) address, QQ.
	Src byte
	// Dest is the destination address, ZZ.
	Dest byte
	// Service is the service command. The low byte (PB) is sent first, then the high byte (SB).
	Service uint16
	// Data is the payload, at most MaxDataLen bytes.
	Data Buffer
}

func (t Telegram) String() string {
	return fmt.Sprintf("%02X->%02X service=%04X data=%s", t.Src, t.Dest, t.Service, t.Data)
}

// TelegramFlags are send options of a MasterTelegram.
type TelegramFlags uint8

const (
	// FlagNeedsDataCRC prepends a CRC over the payload, computed with the data polynomial.
	// The length field then counts that extra byte.
	FlagNeedsDataCRC TelegramFlags = 1 << iota

	// FlagExpectReply makes the driver wait for a slave reply after the acknowledgement.
	FlagExpectReply
)

// Has reports whether all bits of flag are set.
func (f TelegramFlags) Has(flag TelegramFlags) bool {
	return f&flag == flag
}

// MasterTelegram is an outbound telegram together with its send options.
//
// The driver only borrows it: the caller must offer the same value on every Process call
// until the exchange concludes.
type MasterTelegram struct {
	Telegram
	Flags TelegramFlags
}

// Validate checks that the telegram fits into the length field the receiver accepts.
func (m *MasterTelegram) Validate() error {
	n := m.Data.Len()
	if m.Flags.Has(FlagNeedsDataCRC) {
		n++
	}

	if n > MaxDataLen {
		return fmt.Errorf("%w: length field %d exceeds %d", ErrPayloadTooLarge, n, MaxDataLen)
	}

	return nil
}

// PriorityClass returns the priority class of an address, its low nibble.
func PriorityClass(addr byte) byte {
	return addr & 0x0F
}

// IsMasterAddress reports whether addr is one of the 25 eBUS master addresses.
// Both nibbles of a master address are one of 0x0, 0x1, 0x3, 0x7 or 0xF.
func IsMasterAddress(addr byte) bool {
	return isMasterNibble(addr>>4) && isMasterNibble(addr&0x0F)
}

func isMasterNibble(n byte) bool {
	switch n {
	case 0x0, 0x1, 0x3, 0x7, 0xF:
		return true
	}

	return false
}

// SlaveAddressOf returns the slave address paired with a master address (master + 5).
func SlaveAddressOf(master byte) byte {
	return master + 5
}
