package ebus

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-ebus/logger"
)

// Defaults for the arbitration controller.
const (
	// DefaultFairnessMax is the number of SYN symbols a device lets pass after each successful
	// exchange before it may arbitrate again. It also applies after start-up.
	DefaultFairnessMax = 50

	// DefaultSyncBackoff is requested from the DelayFunc when arbitration is denied while a
	// telegram is pending. It roughly matches the interval between two AUTO-SYN symbols.
	DefaultSyncBackoff = 40 * time.Millisecond

	// DefaultCollisionBackoff is requested after a lost arbitration. Zero disables the call,
	// since the winner's telegram follows immediately.
	DefaultCollisionBackoff time.Duration = 0

	// fairnessPenalty is the fairness counter after losing to a different priority class.
	fairnessPenalty = 2
)

// MaxBackoff bounds SyncBackoff and CollisionBackoff.
const MaxBackoff = time.Second

type config struct {
	arbitrationDelay time.Duration
	framePoly        byte
	dataPoly         byte

	fairnessMax      uint8
	syncBackoff      time.Duration
	collisionBackoff time.Duration

	logger logger.Logger
}

// Option is a functional option for NewDriver.
type Option interface {
	apply(*config) error
}

type optFunc func(*config) error

func (f optFunc) apply(cfg *config) error { return f(cfg) }

// WithFairnessMax sets the fairness counter maximum. Must be in [1, 255].
func WithFairnessMax(n int) Option {
	return optFunc(func(cfg *config) error {
		if n < 1 || n > 255 {
			return fmt.Errorf("ebus: fairness maximum %d out of range [1, 255]", n)
		}
		cfg.fairnessMax = uint8(n)

		return nil
	})
}

// WithSyncBackoff sets the delay requested when arbitration is denied while a telegram is pending.
func WithSyncBackoff(d time.Duration) Option {
	return optFunc(func(cfg *config) error {
		if d < 0 || d > MaxBackoff {
			return fmt.Errorf("ebus: sync backoff %v out of range [0, %v]", d, MaxBackoff)
		}
		cfg.syncBackoff = d

		return nil
	})
}

// WithCollisionBackoff sets the delay requested after losing arbitration.
func WithCollisionBackoff(d time.Duration) Option {
	return optFunc(func(cfg *config) error {
		if d < 0 || d > MaxBackoff {
			return fmt.Errorf("ebus: collision backoff %v out of range [0, %v]", d, MaxBackoff)
		}
		cfg.collisionBackoff = d

		return nil
	})
}

// WithLogger sets the logger that receives protocol diagnostics.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *config) error {
		if l == nil {
			return errors.New("ebus: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
