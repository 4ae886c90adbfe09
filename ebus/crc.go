package ebus

// CRC is a bit-serial CRC-8 accumulator with a configurable generator polynomial.
//
// The register starts at zero and bytes are folded in MSB first. eBUS uses two polynomials:
// one for telegram framing (usually 0x9B) and one for the optional data CRC (usually 0x5C).
type CRC struct {
	crc  byte
	poly byte
}

// NewCRC creates an accumulator for the given generator polynomial.
func NewCRC(poly byte) CRC {
	return CRC{poly: poly}
}

// Add folds one byte into the register.
func (c *CRC) Add(b byte) {
	for range 8 {
		var poly byte
		if c.crc&0x80 != 0 {
			poly = c.poly
		}
		c.crc = (c.crc &^ 0x80) << 1
		if b&0x80 != 0 {
			c.crc |= 1
		}
		c.crc ^= poly
		b <<= 1
	}
}

// AddMultiple folds p into the register in order.
func (c *CRC) AddMultiple(p []byte) {
	for _, b := range p {
		c.Add(b)
	}
}

// Value returns the accumulated checksum.
func (c *CRC) Value() byte {
	return c.crc
}

// Checksum computes the CRC of p with the given polynomial.
func Checksum(poly byte, p []byte) byte {
	c := NewCRC(poly)
	c.AddMultiple(p)

	return c.Value()
}
