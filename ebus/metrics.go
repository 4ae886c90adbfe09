package ebus

import (
	"sync/atomic"
)

// DriverMetrics contains atomic counters of a Driver.
//
// The driver itself is single-goroutine, but the counters may be read from anywhere,
// e.g. as the value of a prometheus CounterFunc.
type DriverMetrics struct {
	// LockAttemptCount indicates the number of times our source address was sent after SYN.
	LockAttemptCount atomic.Uint64
	// LockWinCount indicates the number of won arbitrations.
	LockWinCount atomic.Uint64
	// CollisionCount indicates the number of lost arbitrations.
	CollisionCount atomic.Uint64

	// MasterAckCount indicates the number of our telegrams the recipient acknowledged.
	MasterAckCount atomic.Uint64
	// MasterNackCount indicates the number of our telegrams the recipient rejected.
	MasterNackCount atomic.Uint64
	// ReplyCount indicates the number of valid replies received.
	ReplyCount atomic.Uint64
	// TimeoutCount indicates the number of exchanges abandoned on SYN.
	TimeoutCount atomic.Uint64

	// RequestCount indicates the number of valid telegrams received from other masters.
	RequestCount atomic.Uint64
	// SlaveReplyCount indicates the number of replies we sent as slave.
	SlaveReplyCount atomic.Uint64

	// CRCErrorCount indicates the number of telegram and reply CRC failures.
	CRCErrorCount atomic.Uint64
	// LoopbackMismatchCount indicates the number of sent bytes that did not echo back unchanged.
	LoopbackMismatchCount atomic.Uint64
	// ProtocolErrorCount indicates invalid escapes, oversized lengths and unexpected SYNs.
	ProtocolErrorCount atomic.Uint64
}

func (m *DriverMetrics) incLockAttemptCount()      { m.LockAttemptCount.Add(1) }
func (m *DriverMetrics) incLockWinCount()          { m.LockWinCount.Add(1) }
func (m *DriverMetrics) incCollisionCount()        { m.CollisionCount.Add(1) }
func (m *DriverMetrics) incMasterAckCount()        { m.MasterAckCount.Add(1) }
func (m *DriverMetrics) incMasterNackCount()       { m.MasterNackCount.Add(1) }
func (m *DriverMetrics) incReplyCount()            { m.ReplyCount.Add(1) }
func (m *DriverMetrics) incTimeoutCount()          { m.TimeoutCount.Add(1) }
func (m *DriverMetrics) incRequestCount()          { m.RequestCount.Add(1) }
func (m *DriverMetrics) incSlaveReplyCount()       { m.SlaveReplyCount.Add(1) }
func (m *DriverMetrics) incCRCErrorCount()         { m.CRCErrorCount.Add(1) }
func (m *DriverMetrics) incLoopbackMismatchCount() { m.LoopbackMismatchCount.Add(1) }
func (m *DriverMetrics) incProtocolErrorCount()    { m.ProtocolErrorCount.Add(1) }
