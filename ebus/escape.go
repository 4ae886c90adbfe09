package ebus

// Reserved wire symbols.
const (
	// Sync is the bus-sync symbol (SYN). It starts every arbitration window and ends every exchange.
	Sync byte = 0xAA

	// Escape is the escape symbol. It is always followed by one escape code.
	Escape byte = 0xA9

	// EscapeCodeEscape follows Escape to encode a literal 0xA9.
	EscapeCodeEscape byte = 0x00

	// EscapeCodeSync follows Escape to encode a literal 0xAA.
	EscapeCodeSync byte = 0x01
)

// AppendEscaped appends the physical (escaped) form of p to dst and returns the extended slice.
//
// If crc is not nil, every physical byte appended, escape sequences included, is folded into it.
// The number of bytes written is len(result)-len(dst).
func AppendEscaped(dst []byte, p []byte, crc *CRC) []byte {
	for _, b := range p {
		dst = appendEscapedByte(dst, b, crc)
	}

	return dst
}

func appendEscapedByte(dst []byte, b byte, crc *CRC) []byte {
	switch b {
	case Sync:
		dst = append(dst, Escape, EscapeCodeSync)
	case Escape:
		dst = append(dst, Escape, EscapeCodeEscape)
	default:
		dst = append(dst, b)

		if crc != nil {
			crc.Add(b)
		}

		return dst
	}

	if crc != nil {
		crc.Add(Escape)
		crc.Add(dst[len(dst)-1])
	}

	return dst
}

// EscapeBytes returns the physical form of p.
func EscapeBytes(p []byte) []byte {
	return AppendEscaped(make([]byte, 0, EscapedLen(p)), p, nil)
}

// EscapedLen returns the number of physical bytes needed to send p.
func EscapedLen(p []byte) int {
	n := len(p)
	for _, b := range p {
		if b == Sync || b == Escape {
			n++
		}
	}

	return n
}

// Unescape decodes a physical byte sequence back to its logical form.
func Unescape(p []byte) ([]byte, error) {
	var dec Decoder

	out := make([]byte, 0, len(p))
	for _, b := range p {
		v, ok, err := dec.Decode(b)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, v)
		}
	}

	if dec.Pending() {
		return nil, ErrIncompleteEscape
	}

	return out, nil
}

// Decoder undoes byte stuffing one byte at a time.
//
// The zero value is ready to use.
type Decoder struct {
	pending bool
}

// Decode feeds one physical byte.
//
// ok is false while an escape sequence is incomplete; no logical byte is delivered then.
// An escape symbol followed by an unknown code returns ErrInvalidEscape and resets the decoder.
func (d *Decoder) Decode(b byte) (v byte, ok bool, err error) {
	if d.pending {
		d.pending = false

		switch b {
		case EscapeCodeEscape:
			return Escape, true, nil
		case EscapeCodeSync:
			return Sync, true, nil
		default:
			return 0, false, ErrInvalidEscape
		}
	}

	if b == Escape {
		d.pending = true
		return 0, false, nil
	}

	return b, true, nil
}

// Pending reports whether the previous byte was an escape symbol.
func (d *Decoder) Pending() bool {
	return d.pending
}

// Reset clears the escape state.
func (d *Decoder) Reset() {
	d.pending = false
}
