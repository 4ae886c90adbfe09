package capture

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Record is one chunk of bytes read from the bus.
type Record struct {
	_ struct{} `cbor:",toarray"`

	// UnixNano is the read time.
	UnixNano int64
	Data     []byte
}

// Time returns the read time.
func (r Record) Time() time.Time {
	return time.Unix(0, r.UnixNano)
}

// Writer appends records to an io.Writer. It satisfies bus.Recorder.
type Writer struct {
	mu    sync.Mutex
	enc   *cbor.Encoder
	count int
}

// NewWriter returns a Writer encoding to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: cbor.NewEncoder(w)}
}

// Record writes p with its read time. Empty chunks are skipped.
func (w *Writer) Record(at time.Time, p []byte) error {
	if len(p) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.enc.Encode(Record{UnixNano: at.UnixNano(), Data: p}); err != nil {
		return fmt.Errorf("capture: encode record: %w", err)
	}
	w.count++

	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.count
}

// Reader decodes records from an io.Reader.
type Reader struct {
	dec *cbor.Decoder
}

// NewReader returns a Reader decoding from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: cbor.NewDecoder(r)}
}

// Next returns the next record, or io.EOF after the last one.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}

		return Record{}, fmt.Errorf("capture: decode record at offset %d: %w", r.dec.NumBytesRead(), err)
	}

	return rec, nil
}
