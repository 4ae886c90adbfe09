package ebus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// identRequest is a request from master 0x10 to slave 0x15, service 0x0407, without data.
var identRequest = []byte{0x10, 0x15, 0x07, 0x04, 0x00, 0x4D}

// receiveRequest syncs a listening driver and feeds a complete telegram.
func receiveRequest(t *testing.T, d *Driver, tx *recordingTx, telegram []byte) (Telegram, RequestToken) {
	t.Helper()

	feed(t, d, tx, nil, Sync)
	results := feed(t, d, tx, nil, telegram...)
	require.Len(t, results, 1)

	tel, token, ok := results[0].AsRequest()
	require.True(t, ok, "got %s", results[0])
	assert.False(t, results[0].EndsMasterExchange())

	return tel, token
}

func TestSlave_ReceiveRequest(t *testing.T) {
	d := newTestDriver(t)
	tx := &recordingTx{}

	tel, _ := receiveRequest(t, d, tx, identRequest)

	assert.Equal(t, byte(0x10), tel.Src)
	assert.Equal(t, byte(0x15), tel.Dest)
	assert.Equal(t, uint16(0x0407), tel.Service)
	assert.Equal(t, 0, tel.Data.Len())
	assert.Empty(t, tx.frames)
	assert.EqualValues(t, 1, d.Metrics().RequestCount.Load())
}

func TestSlave_ReceiveEscapedData(t *testing.T) {
	d := newTestDriver(t)
	tx := &recordingTx{}

	tel, _ := receiveRequest(t, d, tx, []byte{0x10, 0x15, 0x07, 0x04, 0x01, 0xA9, 0x01, 0xDE})

	assert.Equal(t, []byte{0xAA}, tel.Data.Bytes())
}

func TestSlave_TelegramCRCError(t *testing.T) {
	d := newTestDriver(t)
	tx := &recordingTx{}

	feed(t, d, tx, nil, Sync)
	results := feed(t, d, tx, nil, 0x10, 0x15, 0x07, 0x04, 0x00, 0x4E)
	require.Len(t, results, 1)
	assert.Equal(t, ResultTelegramCRCError, results[0].Kind)
	assert.EqualValues(t, 1, d.Metrics().CRCErrorCount.Load())
}

func TestSlave_OversizedLength(t *testing.T) {
	d := newTestDriver(t)
	tx := &recordingTx{}

	feed(t, d, tx, nil, Sync)
	assert.Empty(t, feed(t, d, tx, nil, 0x10, 0x15, 0x07, 0x04, MaxDataLen+1, 0x00, 0x01, 0x02))
	assert.EqualValues(t, 1, d.Metrics().ProtocolErrorCount.Load())

	// the next telegram is received normally
	receiveRequest(t, d, tx, identRequest)
}

func TestSlave_IncompleteTelegramDropped(t *testing.T) {
	d := newTestDriver(t)
	tx := &recordingTx{}

	feed(t, d, tx, nil, Sync)
	assert.Empty(t, feed(t, d, tx, nil, 0x10, 0x15, 0x07))

	receiveRequest(t, d, tx, identRequest)
}

func TestSlave_ReplyAndAck(t *testing.T) {
	d := newTestDriver(t)
	tx := &recordingTx{}

	_, token := receiveRequest(t, d, tx, identRequest)

	require.NoError(t, d.ReplyAsSlave([]byte{0xDE, 0xAD, 0xBE, 0xEF}, tx, token))
	assert.Equal(t, []byte{ACK, 0x04, 0xDE, 0xAD, 0xBE, 0xEF, 0x9D}, tx.last())

	assert.Empty(t, echoLast(t, d, tx, nil))
	tx.reset()

	res := feedOne(t, d, tx, nil, ACK)
	assert.Equal(t, ResultSlaveAckOk, res.Kind)
	assert.Empty(t, tx.frames, "nothing is sent after the master's acknowledgement")
	assert.EqualValues(t, 1, d.Metrics().SlaveReplyCount.Load())
}

func TestSlave_ReplyNotAcknowledged(t *testing.T) {
	d := newTestDriver(t)
	tx := &recordingTx{}

	_, token := receiveRequest(t, d, tx, identRequest)
	require.NoError(t, d.ReplyAsSlave([]byte{0xDE, 0xAD, 0xBE, 0xEF}, tx, token))
	echoLast(t, d, tx, nil)

	assert.Equal(t, ResultSlaveAckErr, feedOne(t, d, tx, nil, NACK).Kind)
}

func TestSlave_SyncInsteadOfAck(t *testing.T) {
	d := newTestDriver(t)
	tx := &recordingTx{}

	_, token := receiveRequest(t, d, tx, identRequest)
	require.NoError(t, d.ReplyAsSlave(nil, tx, token))
	assert.Equal(t, []byte{ACK, 0x00, 0x00}, tx.last())
	echoLast(t, d, tx, nil)

	assert.Equal(t, ResultSlaveAckErr, feedOne(t, d, tx, nil, Sync).Kind)
}

func TestSlave_ReplyCRCEscaped(t *testing.T) {
	d := newTestDriver(t)
	tx := &recordingTx{}

	_, token := receiveRequest(t, d, tx, identRequest)
	require.NoError(t, d.ReplyAsSlave([]byte{0x34, 0x12}, tx, token))

	assert.Equal(t, []byte{ACK, 0x02, 0x34, 0x12, 0xA9, 0x00}, tx.last())

	echoLast(t, d, tx, nil)
	assert.Equal(t, ResultSlaveAckOk, feedOne(t, d, tx, nil, ACK).Kind)
}

func TestSlave_ReplyAck(t *testing.T) {
	d := newTestDriver(t)
	tx := &recordingTx{}

	// master to master telegram, answered with a bare acknowledgement
	_, token := receiveRequest(t, d, tx, []byte{0x10, 0x30, 0x07, 0x04, 0x00, 0x1F})
	require.NoError(t, d.ReplyAck(tx, token))
	assert.Equal(t, []byte{ACK}, tx.last())

	assert.Empty(t, echoLast(t, d, tx, nil))
	assert.Equal(t, phaseWaitSync, d.phase)

	require.ErrorIs(t, d.ReplyAck(tx, token), ErrInvalidToken)
}

func TestSlave_InvalidToken(t *testing.T) {
	d := newTestDriver(t)
	tx := &recordingTx{}

	require.ErrorIs(t, d.ReplyAsSlave(nil, tx, RequestToken{}), ErrInvalidToken, "no request pending")

	_, token := receiveRequest(t, d, tx, identRequest)
	require.ErrorIs(t, d.ReplyAsSlave(nil, tx, RequestToken{}), ErrInvalidToken, "zero token")

	require.NoError(t, d.ReplyAsSlave(nil, tx, token))
	require.ErrorIs(t, d.ReplyAsSlave(nil, tx, token), ErrInvalidToken, "token used twice")
}

func TestSlave_TokenExpiresOnSync(t *testing.T) {
	d := newTestDriver(t)
	tx := &recordingTx{}

	_, first := receiveRequest(t, d, tx, identRequest)
	_, second := receiveRequest(t, d, tx, identRequest)

	assert.NotEqual(t, first, second)
	require.ErrorIs(t, d.ReplyAsSlave(nil, tx, first), ErrInvalidToken, "stale token")

	feed(t, d, tx, nil, Sync)
	require.ErrorIs(t, d.ReplyAsSlave(nil, tx, second), ErrInvalidToken, "SYN ends the reply window")
	assert.Empty(t, tx.frames)
}

func TestSlave_PayloadTooLarge(t *testing.T) {
	d := newTestDriver(t)
	tx := &recordingTx{}

	_, token := receiveRequest(t, d, tx, identRequest)

	err := d.ReplyAsSlave(make([]byte, MaxDataLen+1), tx, token)
	require.ErrorIs(t, err, ErrPayloadTooLarge)
	assert.Empty(t, tx.frames)

	require.NoError(t, d.ReplyAsSlave(make([]byte, MaxDataLen), tx, token), "token stays valid")
	assert.Len(t, tx.last(), 1+1+MaxDataLen+1)
}

func TestSlave_AutoLoopback(t *testing.T) {
	d := newTestDriver(t)
	bus := &autoLoopback{}

	var token RequestToken
	for _, b := range append([]byte{Sync}, identRequest...) {
		res, err := d.Process(b, bus, nil, nil)
		require.NoError(t, err)

		if _, tok, ok := res.AsRequest(); ok {
			token = tok
		}
	}

	require.NoError(t, d.ReplyAsSlave([]byte{0xDE, 0xAD, 0xBE, 0xEF}, bus, token))

	kinds := bus.run(t, d, nil, ACK)
	assert.Equal(t, ResultSlaveAckOk, kinds[len(kinds)-1])
}

func TestDriver_IsTimeCritical(t *testing.T) {
	d := newTestDriver(t)
	tx := &recordingTx{}

	assert.True(t, d.IsTimeCritical(), "idle")

	feed(t, d, tx, nil, Sync)
	assert.True(t, d.IsTimeCritical(), "listening before the source address")

	feed(t, d, tx, nil, 0x10)
	assert.False(t, d.IsTimeCritical(), "inside a telegram")

	feed(t, d, tx, nil, identRequest[1:]...)
	assert.False(t, d.IsTimeCritical(), "request pending")
}
