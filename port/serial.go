package port

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate is the eBUS line speed.
const DefaultBaudRate = 2400

// Serial is a local serial eBUS adapter.
type Serial struct {
	port serial.Port
	name string
}

func serialMode(baudRate int) *serial.Mode {
	return &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// OpenSerial opens the serial device name with 8N1 framing. A baudRate of 0 selects
// DefaultBaudRate.
func OpenSerial(name string, baudRate int) (*Serial, error) {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}

	p, err := serial.Open(name, serialMode(baudRate))
	if err != nil {
		return nil, fmt.Errorf("port: open serial port %s: %w", name, err)
	}

	return &Serial{port: p, name: name}, nil
}

// Read reads received bytes. It returns 0, nil when the read timeout expires.
func (s *Serial) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

// TransmitRaw writes p to the line.
func (s *Serial) TransmitRaw(p []byte) error {
	for len(p) > 0 {
		n, err := s.port.Write(p)
		if err != nil {
			return fmt.Errorf("port: write %s: %w", s.name, err)
		}
		p = p[n:]
	}

	return nil
}

// ClearBuffer drops bytes still waiting in the adapter's transmit buffer.
func (s *Serial) ClearBuffer() error {
	return s.port.ResetOutputBuffer()
}

// SetReadTimeout bounds how long Read waits for a byte.
func (s *Serial) SetReadTimeout(t time.Duration) error {
	return s.port.SetReadTimeout(t)
}

func (s *Serial) Close() error {
	return s.port.Close()
}

func (s *Serial) String() string {
	return fmt.Sprintf("serial %s", s.name)
}

// SerialPorts lists the serial devices present on the system.
func SerialPorts() ([]string, error) {
	return serial.GetPortsList()
}
