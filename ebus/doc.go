// Package ebus implements the byte-level protocol engine of the eBUS half-duplex field bus.
//
// The bus is a shared two-wire line: every device sees every byte, including the ones it sends
// itself. A device wins the right to send (arbitration) right after the bus-sync symbol, sends a
// telegram, and the addressed device answers with an acknowledgement and optionally a reply.
//
// # Protocol Overview
//
// Reserved wire values:
//
//   - SYN (0xAA): bus-sync symbol, marks the start of an arbitration window
//   - ESC (0xA9): escape symbol, followed by 0x00 (ESC) or 0x01 (SYN)
//   - ACK (0x00): positive acknowledgement
//   - NACK (0xFF): negative acknowledgement
//
// A master telegram on the wire is
//
//	QQ | ZZ | PB | SB | NN | [data CRC] | DB1..DBn | CRC
//
// and a slave reply is
//
//	ACK | NN | DB1..DBn | CRC
//
// Both CRCs use the frame polynomial and are computed over the physical (escaped) bytes.
//
// # Driver
//
// [Driver] is a synchronous state machine. The embedding application feeds every received byte to
// [Driver.Process], optionally offering the next [MasterTelegram] to send, and gets one [Result]
// back. The driver never blocks on its own: transmitting goes through the [Transmitter] passed to
// the call and waiting through the [DelayFunc]. Neither is retained between calls.
//
// A Driver is NOT goroutine-safe. One goroutine, the byte-ingestion loop, must own it.
package ebus
