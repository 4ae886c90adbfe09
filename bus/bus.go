package bus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-ebus/ebus"
	"github.com/arloliu/go-ebus/internal/pool"
	"github.com/arloliu/go-ebus/internal/queue"
	"github.com/arloliu/go-ebus/internal/util"
	"github.com/arloliu/go-ebus/logger"
)

const (
	// readBufferSize bounds the bytes taken from the port per Read call. eBUS runs at 2400 baud,
	// so more than a handful of bytes are rarely pending.
	readBufferSize = 64

	// Read timeouts for ports that support them. The short one is used while the driver
	// expects a SYN it may arbitrate on.
	criticalPollTimeout = time.Millisecond
	idlePollTimeout     = 50 * time.Millisecond
)

// Port is a connection to the bus. Every byte written must come back through Read, as on the
// physical wire.
type Port interface {
	io.Reader
	io.Closer
	ebus.Transmitter
}

// readTimeoutSetter is implemented by ports whose Read can return early without data.
type readTimeoutSetter interface {
	SetReadTimeout(t time.Duration) error
}

// Outcome is the result of one telegram sent with Send.
type Outcome struct {
	// Kind is one of MasterAckOk, MasterAckErr, Timeout, ReplyCRCError or Reply.
	Kind ebus.ResultKind
	// Reply is the reply payload for ResultReply.
	Reply []byte
}

// OK reports whether the recipient accepted the telegram.
func (o Outcome) OK() bool {
	return o.Kind == ebus.ResultMasterAckOk || o.Kind == ebus.ResultReply
}

func (o Outcome) String() string {
	if o.Kind == ebus.ResultReply {
		return fmt.Sprintf("Reply(% X)", o.Reply)
	}

	return o.Kind.String()
}

type sendResult struct {
	out Outcome
	err error
}

type sendRequest struct {
	id   uint64
	msg  ebus.MasterTelegram
	done chan sendResult
}

// Bus drives one device on the bus.
type Bus struct {
	cfg    *config
	logger logger.Logger
	port   Port
	driver *ebus.Driver

	queue   queue.Queue[*sendRequest]
	pending *xsync.MapOf[uint64, *sendRequest]
	idGen   atomic.Uint64

	// current is the telegram being offered to the driver. Only the Run goroutine touches it.
	current  *sendRequest
	critical bool

	running   atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}

	metrics Metrics
}

// New creates a Bus on port. The bus owns the port and closes it in Close.
func New(port Port, opts ...Option) (*Bus, error) {
	if port == nil {
		return nil, errors.New("bus: port is nil")
	}

	cfg := newConfig()
	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	driverOpts := append([]ebus.Option{ebus.WithLogger(cfg.logger)}, cfg.driverOpts...)

	driver, err := ebus.NewDriver(cfg.arbitrationDelay, cfg.framePoly, cfg.dataPoly, driverOpts...)
	if err != nil {
		return nil, err
	}

	b := &Bus{
		cfg:     cfg,
		logger:  cfg.logger.With("address", fmt.Sprintf("0x%02X", cfg.address)),
		port:    port,
		driver:  driver,
		queue:   queue.NewLockFreeQueue[*sendRequest](),
		pending: xsync.NewMapOf[uint64, *sendRequest](),
		done:    make(chan struct{}),
	}

	return b, nil
}

// Address returns the master address of the device.
func (b *Bus) Address() byte { return b.cfg.address }

// SlaveAddress returns the slave address of the device.
func (b *Bus) SlaveAddress() byte { return ebus.SlaveAddressOf(b.cfg.address) }

// Metrics returns the bus counters.
func (b *Bus) Metrics() *Metrics { return &b.metrics }

// DriverMetrics returns the protocol counters of the driver.
func (b *Bus) DriverMetrics() *ebus.DriverMetrics { return b.driver.Metrics() }

// Send queues msg and waits for the outcome of its exchange.
//
// msg.Src must be the address of the bus. The returned error is non-nil when no outcome is
// available: the bus is closed, the queue is full, the send timeout or ctx expired, or the port
// failed. A negative outcome (NACK, timeout on the bus, CRC error) is not an error; check
// Outcome.OK.
func (b *Bus) Send(ctx context.Context, msg *ebus.MasterTelegram) (Outcome, error) {
	if b.closed.Load() {
		return Outcome{}, ErrBusClosed
	}

	if msg.Src != b.cfg.address {
		return Outcome{}, fmt.Errorf("%w: 0x%02X", ErrSourceMismatch, msg.Src)
	}

	if err := msg.Validate(); err != nil {
		return Outcome{}, err
	}

	if b.queue.Length() >= b.cfg.queueSize {
		b.metrics.incQueueFullCount()
		return Outcome{}, ErrQueueFull
	}

	req := &sendRequest{
		id:   b.idGen.Add(1),
		msg:  *msg,
		done: make(chan sendResult, 1),
	}

	b.pending.Store(req.id, req)
	b.queue.Enqueue(req)
	b.metrics.incSendCount()
	b.metrics.incInflightGauge()

	timer := pool.GetTimer(b.cfg.sendTimeout)
	defer pool.PutTimer(timer)

	select {
	case res := <-req.done:
		return res.out, res.err

	case <-timer.C:
		if b.abandon(req) {
			b.metrics.incSendTimeoutCount()
			b.logger.Warn("bus: send timeout", "telegram", req.msg.Telegram.String(), "timeout", b.cfg.sendTimeout)

			return Outcome{}, ErrSendTimeout
		}

	case <-ctx.Done():
		if b.abandon(req) {
			return Outcome{}, ctx.Err()
		}

	case <-b.done:
		if b.abandon(req) {
			return Outcome{}, ErrBusClosed
		}
	}

	// the runner completed the request while we gave up
	res := <-req.done

	return res.out, res.err
}

// abandon withdraws req and reports whether it was still pending.
func (b *Bus) abandon(req *sendRequest) bool {
	if _, ok := b.pending.LoadAndDelete(req.id); !ok {
		return false
	}
	b.metrics.decInflightGauge()

	return true
}

// complete delivers the result of req unless its sender gave up.
func (b *Bus) complete(req *sendRequest, out Outcome, err error) {
	if _, ok := b.pending.LoadAndDelete(req.id); !ok {
		b.logger.Debug("bus: outcome without waiting sender", "telegram", req.msg.Telegram.String(), "outcome", out.String())
		return
	}
	b.metrics.decInflightGauge()

	switch {
	case err != nil:
	case out.OK():
		b.metrics.incSendOkCount()
	default:
		b.metrics.incSendFailCount()
	}

	req.done <- sendResult{out: out, err: err}
}

// Run reads from the port and drives the protocol until ctx is done, Close is called or the port
// fails. It returns nil on a requested shutdown.
func (b *Bus) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	stop := context.AfterFunc(ctx, func() { _ = b.Close() })
	defer stop()

	err := b.loop()
	requested := b.closed.Load()

	_ = b.Close()
	b.failPending(ErrBusClosed)

	if requested || err == nil {
		b.logger.Info("bus: stopped")
		return nil
	}

	b.logger.Error("bus: stopped on error", "error", err)

	return err
}

func (b *Bus) loop() error {
	buf := make([]byte, readBufferSize)

	b.logger.Info("bus: running", "slave", fmt.Sprintf("0x%02X", b.SlaveAddress()))

	for {
		b.tunePolling()

		n, readErr := b.port.Read(buf)
		if n > 0 {
			b.metrics.incBytesRead(n)
			b.logger.Debug("bus: read", "bytes", buf[:n])
			b.record(buf[:n])

			for _, c := range buf[:n] {
				if err := b.processByte(c); err != nil {
					return err
				}
			}
		}

		if readErr != nil {
			if b.closed.Load() {
				return nil
			}

			return fmt.Errorf("bus: read: %w", readErr)
		}

		if b.closed.Load() {
			return nil
		}
	}
}

// processByte runs one byte through the driver and dispatches the result.
func (b *Bus) processByte(c byte) error {
	// A sender that gave up before arbitration started must not see its telegram on the wire.
	if b.current != nil && !b.driver.InExchange() {
		if _, ok := b.pending.Load(b.current.id); !ok {
			b.logger.Debug("bus: dropped abandoned telegram", "telegram", b.current.msg.Telegram.String())
			b.current = nil
		}
	}

	if b.current == nil {
		b.current = b.nextRequest()
	}

	var msg *ebus.MasterTelegram
	if b.current != nil {
		msg = &b.current.msg
	}

	res, err := b.driver.Process(c, b.port, b.cfg.delay, msg)
	if err != nil {
		if b.current != nil {
			b.complete(b.current, Outcome{}, err)
			b.current = nil
		}

		return err
	}

	if res.IsNone() {
		return nil
	}

	if res.EndsMasterExchange() && b.current != nil {
		out := Outcome{Kind: res.Kind}
		if data, ok := res.AsReply(); ok {
			out.Reply = util.CloneSlice(data, 0)
		}

		b.publish(res, &b.current.msg.Telegram, out.Reply)
		b.complete(b.current, out, nil)
		b.current = nil

		return nil
	}

	if tel, token, ok := res.AsRequest(); ok {
		b.metrics.incRequestCount()
		b.publish(res, &tel, nil)

		return b.handleRequest(tel, token)
	}

	b.publish(res, nil, nil)

	return nil
}

// nextRequest dequeues the next telegram whose sender is still waiting.
func (b *Bus) nextRequest() *sendRequest {
	for {
		req, ok := b.queue.Dequeue()
		if !ok {
			return nil
		}

		if _, ok := b.pending.Load(req.id); ok {
			return req
		}
	}
}

// handleRequest answers a telegram addressed to this device.
func (b *Bus) handleRequest(tel ebus.Telegram, token ebus.RequestToken) error {
	switch tel.Dest {
	case b.cfg.address:
		// master to master: a bare acknowledgement, no payload
		b.metrics.incAnsweredCount()
		return b.driver.ReplyAck(b.port, token)

	case b.SlaveAddress():
		if b.cfg.handler == nil {
			return nil
		}

		reply, ok := b.cfg.handler(tel)
		if !ok {
			b.logger.Debug("bus: request left unanswered", "telegram", tel.String())
			return nil
		}

		err := b.driver.ReplyAsSlave(reply, b.port, token)
		if errors.Is(err, ebus.ErrPayloadTooLarge) {
			b.logger.Warn("bus: reply dropped", "telegram", tel.String(), "error", err)
			return nil
		}
		if err != nil {
			return err
		}
		b.metrics.incAnsweredCount()
	}

	return nil
}

func (b *Bus) publish(res ebus.Result, tel *ebus.Telegram, reply []byte) {
	if b.cfg.publisher == nil {
		return
	}

	ev := Event{
		Time: time.Now(),
		Kind: res.Kind,
		Own:  res.EndsMasterExchange(),
	}
	if tel != nil {
		ev.Telegram = *tel
	}
	if reply != nil {
		ev.Reply = reply
	}

	b.cfg.publisher.Publish(ev)
}

func (b *Bus) record(p []byte) {
	if b.cfg.recorder == nil {
		return
	}

	if err := b.cfg.recorder.Record(time.Now(), p); err != nil {
		b.logger.Warn("bus: recorder failed, recording disabled", "error", err)
		b.cfg.recorder = nil
	}
}

// tunePolling shortens the port read timeout while a SYN we may arbitrate on is due.
func (b *Bus) tunePolling() {
	setter, ok := b.port.(readTimeoutSetter)
	if !ok {
		return
	}

	critical := b.driver.IsTimeCritical()
	if critical == b.critical {
		return
	}
	b.critical = critical

	timeout := idlePollTimeout
	if critical {
		timeout = criticalPollTimeout
	}

	if err := setter.SetReadTimeout(timeout); err != nil {
		b.logger.Warn("bus: set read timeout", "error", err)
	}
}

func (b *Bus) failPending(err error) {
	if b.current != nil {
		b.complete(b.current, Outcome{}, err)
		b.current = nil
	}

	for {
		req, ok := b.queue.Dequeue()
		if !ok {
			break
		}
		b.complete(req, Outcome{}, err)
	}
}

// Close stops Run and closes the port. Waiting Send calls return ErrBusClosed.
func (b *Bus) Close() error {
	var err error

	b.closeOnce.Do(func() {
		b.closed.Store(true)
		close(b.done)

		if cerr := b.port.Close(); cerr != nil {
			err = fmt.Errorf("bus: close port: %w", cerr)
		}
	})

	return err
}
