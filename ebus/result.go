package ebus

// ResultKind classifies the outcome of processing one byte.
type ResultKind uint8

const (
	// ResultNone means nothing concluded with this byte.
	ResultNone ResultKind = iota
	// ResultMasterAckOk means our telegram was acknowledged and no reply was expected.
	ResultMasterAckOk
	// ResultMasterAckErr means the recipient did not acknowledge our telegram.
	ResultMasterAckErr
	// ResultTimeout means a SYN arrived while we were still waiting for the recipient.
	ResultTimeout
	// ResultTelegramCRCError means a telegram from another master failed its CRC check.
	ResultTelegramCRCError
	// ResultReplyCRCError means the reply to our telegram failed its CRC check.
	ResultReplyCRCError
	// ResultRequest carries a telegram received from another master and a token to answer it.
	ResultRequest
	// ResultReply carries the reply payload to our telegram.
	ResultReply
	// ResultSlaveAckOk means the master acknowledged our reply.
	ResultSlaveAckOk
	// ResultSlaveAckErr means the master did not acknowledge our reply.
	ResultSlaveAckErr
)

func (k ResultKind) String() string {
	switch k {
	case ResultNone:
		return "None"
	case ResultMasterAckOk:
		return "MasterAckOk"
	case ResultMasterAckErr:
		return "MasterAckErr"
	case ResultTimeout:
		return "Timeout"
	case ResultTelegramCRCError:
		return "TelegramCRCError"
	case ResultReplyCRCError:
		return "ReplyCRCError"
	case ResultRequest:
		return "Request"
	case ResultReply:
		return "Reply"
	case ResultSlaveAckOk:
		return "SlaveAckOk"
	case ResultSlaveAckErr:
		return "SlaveAckErr"
	default:
		return "Unknown"
	}
}

// RequestToken proves that a Request result is pending and has not been answered yet.
//
// Only the driver produces valid tokens; each one is accepted by exactly one ReplyAsSlave or
// ReplyAck call. It only guards against answering twice or answering nothing, and carries no
// binding to the telegram content.
type RequestToken struct {
	seq uint32
}

// Result is the outcome of one Process call.
type Result struct {
	Kind ResultKind

	// Telegram and Token are set for ResultRequest.
	Telegram Telegram
	Token    RequestToken

	// Data is set for ResultReply.
	Data Buffer
}

// IsNone reports whether the result carries no outcome.
func (r Result) IsNone() bool {
	return r.Kind == ResultNone
}

// AsReply returns the reply payload if r is a ResultReply.
func (r Result) AsReply() ([]byte, bool) {
	if r.Kind != ResultReply {
		return nil, false
	}

	return r.Data.Bytes(), true
}

// AsRequest returns the received telegram and its token if r is a ResultRequest.
func (r Result) AsRequest() (Telegram, RequestToken, bool) {
	if r.Kind != ResultRequest {
		return Telegram{}, RequestToken{}, false
	}

	return r.Telegram, r.Token, true
}

// EndsMasterExchange reports whether r concludes an exchange started by our own telegram.
// The caller should stop offering that telegram afterwards.
func (r Result) EndsMasterExchange() bool {
	switch r.Kind { //nolint:exhaustive
	case ResultMasterAckOk, ResultMasterAckErr, ResultTimeout, ResultReplyCRCError, ResultReply:
		return true
	}

	return false
}

func (r Result) String() string {
	switch r.Kind { //nolint:exhaustive
	case ResultRequest:
		return "Request(" + r.Telegram.String() + ")"
	case ResultReply:
		return "Reply(" + r.Data.String() + ")"
	}

	return r.Kind.String()
}
