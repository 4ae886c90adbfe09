package bus

import "time"

// maxSpinDelay is the longest delay spinDelay waits for.
const maxSpinDelay = 2 * time.Millisecond

// spinDelay is the default delay primitive.
//
// Short delays (the arbitration delay) are busy-waited, since the arbitration byte must hit the
// SYN boundary within a fraction of a bit time and timer wake-up latency is too coarse for that.
// Longer backoffs are skipped: the bus goroutine is the only reader of the port, and sleeping
// there would stall byte processing. The fairness counter already spaces out attempts.
func spinDelay(d time.Duration) {
	if d <= 0 || d > maxSpinDelay {
		return
	}

	for deadline := time.Now().Add(d); time.Now().Before(deadline); {
	}
}
