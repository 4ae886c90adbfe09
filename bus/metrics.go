package bus

import "sync/atomic"

// Metrics contains atomic counters of a Bus.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// BytesRead indicates the number of bytes read from the port, own echoes included.
	BytesRead atomic.Uint64

	// SendCount indicates the number of telegrams accepted by Send.
	SendCount atomic.Uint64
	// SendOkCount indicates the number of exchanges that ended with MasterAckOk or Reply.
	SendOkCount atomic.Uint64
	// SendFailCount indicates the number of exchanges that ended with any other outcome.
	SendFailCount atomic.Uint64
	// SendTimeoutCount indicates the number of Send calls that gave up waiting.
	SendTimeoutCount atomic.Uint64
	// QueueFullCount indicates the number of Send calls rejected with ErrQueueFull.
	QueueFullCount atomic.Uint64

	// RequestCount indicates the number of valid telegrams seen from other masters.
	RequestCount atomic.Uint64
	// AnsweredCount indicates the number of requests answered by this device.
	AnsweredCount atomic.Uint64

	// InflightGauge indicates the number of telegrams queued or being sent.
	InflightGauge atomic.Int64
}

func (m *Metrics) incBytesRead(n int) {
	m.BytesRead.Add(uint64(n)) //nolint:gosec // n comes from Read
}

func (m *Metrics) incSendCount() {
	m.SendCount.Add(1)
}

func (m *Metrics) incSendOkCount() {
	m.SendOkCount.Add(1)
}

func (m *Metrics) incSendFailCount() {
	m.SendFailCount.Add(1)
}

func (m *Metrics) incSendTimeoutCount() {
	m.SendTimeoutCount.Add(1)
}

func (m *Metrics) incQueueFullCount() {
	m.QueueFullCount.Add(1)
}

func (m *Metrics) incRequestCount() {
	m.RequestCount.Add(1)
}

func (m *Metrics) incAnsweredCount() {
	m.AnsweredCount.Add(1)
}

func (m *Metrics) incInflightGauge() {
	m.InflightGauge.Add(1)
}

func (m *Metrics) decInflightGauge() {
	m.InflightGauge.Add(-1)
}
