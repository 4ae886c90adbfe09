// Package capture records raw eBUS bytes with timestamps and plays them back.
//
// A capture file is a sequence of CBOR encoded records, each a two element array of the read
// time in Unix nanoseconds and the bytes read at that time:
//
//	f, _ := os.Create("boiler.cbor")
//	w := capture.NewWriter(f)
//	b, _ := bus.New(p, bus.WithRecorder(w))
//
// A Player decodes the records again and feeds them through a passive ebus.Driver, which yields
// the telegrams seen on the line.
package capture
