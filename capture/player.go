package capture

import (
	"errors"
	"io"
	"time"

	"github.com/arloliu/go-ebus/ebus"
	"github.com/arloliu/go-ebus/internal/queue"
)

// Event is a non-empty driver result found during replay.
type Event struct {
	Time   time.Time
	Result ebus.Result
}

// Player replays recorded bytes through a passive driver.
type Player struct {
	records queue.Queue[Record]
	driver  *ebus.Driver
}

// NewPlayer reads every record from r. The driver must be fresh and is never offered a
// telegram, so it only listens.
func NewPlayer(r io.Reader, driver *ebus.Driver) (*Player, error) {
	p := &Player{
		records: queue.NewSliceQueue[Record](64),
		driver:  driver,
	}

	rd := NewReader(r)
	for {
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		p.records.Enqueue(rec)
	}

	return p, nil
}

// Remaining returns the number of records not replayed yet.
func (p *Player) Remaining() int {
	return p.records.Length()
}

// Step replays the next record and returns the results it produced. ok is false when no
// records are left.
func (p *Player) Step() (events []Event, ok bool) {
	rec, ok := p.records.Dequeue()
	if !ok {
		return nil, false
	}

	at := rec.Time()
	for _, b := range rec.Data {
		// a listening driver never transmits, the discard sink only satisfies the signature
		res, _ := p.driver.Process(b, discard{}, nil, nil)
		if res.IsNone() {
			continue
		}
		events = append(events, Event{Time: at, Result: res})
	}

	return events, true
}

// Run replays every remaining record and calls fn for each result.
func (p *Player) Run(fn func(Event)) {
	for {
		events, ok := p.Step()
		if !ok {
			return
		}
		for _, ev := range events {
			fn(ev)
		}
	}
}

type discard struct{}

func (discard) TransmitRaw([]byte) error { return nil }
func (discard) ClearBuffer() error       { return nil }
