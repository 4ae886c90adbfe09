package bus

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-ebus/ebus"
	"github.com/arloliu/go-ebus/logger"
)

// Defaults for New.
const (
	// DefaultAddress is the master address used when none is configured.
	DefaultAddress byte = 0x31

	DefaultFramePoly byte = 0x9B
	DefaultDataPoly  byte = 0x5C

	DefaultQueueSize   = 16
	DefaultSendTimeout = 10 * time.Second

	MaxQueueSize = 1024
)

// RequestHandler answers a telegram addressed to the slave address of the device.
//
// It runs on the bus goroutine between two bus bytes and must return quickly. Returning
// ok == false leaves the request unanswered.
type RequestHandler func(t ebus.Telegram) (reply []byte, ok bool)

// Publisher receives every outcome seen on the bus. Publish runs on the bus goroutine and must
// not block.
type Publisher interface {
	Publish(ev Event)
}

// Recorder receives every chunk of bytes read from the port.
type Recorder interface {
	Record(at time.Time, p []byte) error
}

type config struct {
	address byte

	arbitrationDelay time.Duration
	framePoly        byte
	dataPoly         byte
	driverOpts       []ebus.Option

	handler   RequestHandler
	publisher Publisher
	recorder  Recorder
	delay     ebus.DelayFunc

	queueSize   int
	sendTimeout time.Duration

	logger logger.Logger
}

func newConfig() *config {
	return &config{
		address:     DefaultAddress,
		framePoly:   DefaultFramePoly,
		dataPoly:    DefaultDataPoly,
		delay:       spinDelay,
		queueSize:   DefaultQueueSize,
		sendTimeout: DefaultSendTimeout,
		logger:      logger.GetLogger(),
	}
}

// Option is a functional option for New.
type Option interface {
	apply(*config) error
}

type optFunc func(*config) error

func (f optFunc) apply(cfg *config) error { return f(cfg) }

// WithAddress sets the master address of the device. Its slave address is address+5.
func WithAddress(address byte) Option {
	return optFunc(func(cfg *config) error {
		if !ebus.IsMasterAddress(address) {
			return fmt.Errorf("bus: 0x%02X is not a master address", address)
		}
		cfg.address = address

		return nil
	})
}

// WithArbitrationDelay sets the delay between SYN and the arbitration byte.
func WithArbitrationDelay(d time.Duration) Option {
	return optFunc(func(cfg *config) error {
		if d < 0 {
			return fmt.Errorf("bus: arbitration delay %v must not be negative", d)
		}
		cfg.arbitrationDelay = d

		return nil
	})
}

// WithPolynomials sets the frame and data CRC polynomials.
func WithPolynomials(frame, data byte) Option {
	return optFunc(func(cfg *config) error {
		cfg.framePoly = frame
		cfg.dataPoly = data

		return nil
	})
}

// WithDriverOptions passes options through to ebus.NewDriver.
func WithDriverOptions(opts ...ebus.Option) Option {
	return optFunc(func(cfg *config) error {
		cfg.driverOpts = append(cfg.driverOpts, opts...)
		return nil
	})
}

// WithRequestHandler sets the handler for requests to the slave address.
func WithRequestHandler(h RequestHandler) Option {
	return optFunc(func(cfg *config) error {
		cfg.handler = h
		return nil
	})
}

// WithPublisher sets the event publisher.
func WithPublisher(p Publisher) Option {
	return optFunc(func(cfg *config) error {
		cfg.publisher = p
		return nil
	})
}

// WithRecorder sets the raw byte recorder.
func WithRecorder(r Recorder) Option {
	return optFunc(func(cfg *config) error {
		cfg.recorder = r
		return nil
	})
}

// WithDelay replaces the delay primitive handed to the driver. nil disables delays.
func WithDelay(f ebus.DelayFunc) Option {
	return optFunc(func(cfg *config) error {
		cfg.delay = f
		return nil
	})
}

// WithQueueSize sets the maximum number of telegrams waiting to be sent.
func WithQueueSize(n int) Option {
	return optFunc(func(cfg *config) error {
		if n < 1 || n > MaxQueueSize {
			return fmt.Errorf("bus: queue size %d out of range [1, %d]", n, MaxQueueSize)
		}
		cfg.queueSize = n

		return nil
	})
}

// WithSendTimeout sets how long Send waits for the outcome of a telegram, queueing included.
func WithSendTimeout(d time.Duration) Option {
	return optFunc(func(cfg *config) error {
		if d <= 0 {
			return fmt.Errorf("bus: send timeout %v must be positive", d)
		}
		cfg.sendTimeout = d

		return nil
	})
}

// WithLogger sets the logger of the bus and its driver.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *config) error {
		if l == nil {
			return errors.New("bus: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
