package bus

import "errors"

var (
	// ErrBusClosed indicates that the bus was closed before or while a telegram was sent.
	ErrBusClosed = errors.New("bus: closed")

	// ErrSendTimeout indicates that no outcome arrived within the send timeout.
	ErrSendTimeout = errors.New("bus: send timeout")

	// ErrQueueFull indicates that the send queue holds the configured maximum of telegrams.
	ErrQueueFull = errors.New("bus: send queue is full")

	// ErrAlreadyRunning indicates a second call to Run.
	ErrAlreadyRunning = errors.New("bus: already running")

	// ErrSourceMismatch indicates a telegram whose source is not the bus master address.
	ErrSourceMismatch = errors.New("bus: telegram source is not the configured master address")
)
