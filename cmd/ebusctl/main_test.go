package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-ebus/bus"
	"github.com/arloliu/go-ebus/capture"
	"github.com/arloliu/go-ebus/ebus"
)

// execute runs the command line args and returns stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()

	return out.String(), err
}

func TestCRCCmd(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{name: "frame poly", args: []string{"crc", "--poly", "0x9B", "1E", "0F", "00"}, want: "0xD1\n"},
		{name: "default poly", args: []string{"crc", "1e0f00"}, want: "0xD1\n"},
		{name: "data poly", args: []string{"crc", "--poly", "5C", "0x0F", "0x00"}, want: "0x90\n"},
		{name: "stdin", stdin: "0x1E 0x0F\n0x00\n", args: []string{"crc"}, want: "0xD1\n"},
		{name: "escaped", args: []string{"crc", "--escape", "02", "AA"}, want: "0xC0\n"},
		{name: "verbose", args: []string{"crc", "-v", "02", "AA"}, want: "byte 0x02\nbyte 0xAA\n0x07\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.stdin, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestCRCCmd_InvalidInput(t *testing.T) {
	_, err := execute(t, "", "crc", "zz")
	require.Error(t, err)

	_, err = execute(t, "", "crc", "--poly", "100", "00")
	require.Error(t, err)
}

func TestParseHexBytes(t *testing.T) {
	p, err := parseHexBytes([]string{"0x1E", "0f00", "A 0XFF"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1E, 0x0F, 0x00, 0x0A, 0xFF}, p)

	_, err = parseHexBytes([]string{"0xGG"})
	require.Error(t, err)

	b, err := parseByte("0xfe")
	require.NoError(t, err)
	assert.Equal(t, byte(0xFE), b)

	svc, err := parseService("0704")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0407), svc)

	_, err = parseService("07")
	require.Error(t, err)
}

func TestBuildTelegram(t *testing.T) {
	msg, err := buildTelegram(0x31, []string{"08", "b509", "0d", "2700"}, true, false)
	require.NoError(t, err)
	assert.Equal(t, byte(0x31), msg.Src)
	assert.Equal(t, byte(0x08), msg.Dest)
	assert.Equal(t, uint16(0x09B5), msg.Service)
	assert.Equal(t, []byte{0x0D, 0x27, 0x00}, msg.Data.Bytes())
	assert.True(t, msg.Flags.Has(ebus.FlagExpectReply))
	assert.False(t, msg.Flags.Has(ebus.FlagNeedsDataCRC))

	_, err = buildTelegram(0x31, []string{"08", "0704", strings.Repeat("00", ebus.MaxDataLen)}, false, true)
	require.ErrorIs(t, err, ebus.ErrPayloadTooLarge)

	_, err = buildTelegram(0x31, []string{"108", "0704"}, false, false)
	require.Error(t, err)
}

func TestFormatEvent(t *testing.T) {
	at := time.Date(2026, 10, 19, 8, 30, 1, 250_000_000, time.Local)

	line := formatEvent(bus.Event{
		Time:     at,
		Kind:     ebus.ResultRequest,
		Telegram: ebus.Telegram{Src: 0x10, Dest: 0x15, Service: 0x0407},
	})
	assert.Equal(t, "[08:30:01.250] Request          10->15 service=0407 data=", line)

	line = formatEvent(bus.Event{
		Time:     at,
		Kind:     ebus.ResultReply,
		Own:      true,
		Telegram: ebus.Telegram{Src: 0x31, Dest: 0x08, Service: 0x0907},
		Reply:    []byte{0x01, 0xAA},
	})
	assert.Equal(t, "[08:30:01.250] Reply            31->08 service=0907 data= reply=01aa", line)

	assert.Equal(t, "[08:30:01.250] Timeout", formatEvent(bus.Event{Time: at, Kind: ebus.ResultTimeout}))
}

func TestReplayCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bus.cbor")

	f, err := os.Create(path)
	require.NoError(t, err)

	w := capture.NewWriter(f)
	require.NoError(t, w.Record(time.Now(), []byte{0xAA, 0x10, 0x15, 0x07, 0x04, 0x00, 0x4D, 0xAA}))
	require.NoError(t, f.Close())

	out, err := execute(t, "", "replay", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Request")
	assert.Contains(t, out, "10->15 service=0407")

	_, err = execute(t, "", "replay", filepath.Join(t.TempDir(), "missing.cbor"))
	require.Error(t, err)
}

func TestOpenPort_NoConnection(t *testing.T) {
	_, err := execute(t, "", "send", "08", "0704")
	require.Error(t, err)

	_, err = execute(t, "", "--address", "zz", "send", "08", "0704")
	require.Error(t, err)
}
