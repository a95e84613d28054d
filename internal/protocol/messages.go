package protocol

// ClientMessage wraps a ClientPayload with the sequencing information the
// listener uses to detect sequence regressions and reconnects.
type ClientMessage struct {
	Timestamp uint64        `json:"timestamp"`
	SeqNumber uint64        `json:"seq_number"`
	Payload   ClientPayload `json:"payload"`
}

// defaultFilterValue is the "accept everything" sentinel for a filter
// dimension: a device ID space this large will never be reached, so the
// filter is effectively open until narrowed.
const defaultFilterValue uint64 = 0x7FFFFFFF

// FilterFrame is the relay-supplied selection criteria forwarded to the
// connected sources. A zero-value FilterFrame has every dimension at 0;
// NewFilterFrame returns the wide-open defaults.
type FilterFrame struct {
	NC uint64 `json:"NC"`
	ND uint64 `json:"ND"`
	NE uint64 `json:"NE"`
}

// NewFilterFrame returns a FilterFrame with every dimension defaulted to
// accept all traffic.
func NewFilterFrame() FilterFrame {
	return FilterFrame{NC: defaultFilterValue, ND: defaultFilterValue, NE: defaultFilterValue}
}

// FilterAck is sent by a source to confirm it applied a filter update.
type FilterAck struct {
	Kind    string  `json:"kind"`
	Success bool    `json:"success"`
	Reason  *string `json:"reason,omitempty"`
}

// FilterAckKind is the fixed discriminator value on the wire.
const FilterAckKind = "FilterAck"

// replyFrame is the shape of the daemon's response to an inbound
// ClientMessage: either {"success":true,"seq_number":N} or
// {"success":false,"seq_number":N,"error":"..."}.
type replyFrame struct {
	Success   bool   `json:"success"`
	SeqNumber uint64 `json:"seq_number"`
	Error     string `json:"error,omitempty"`
}

// SuccessFrame builds the acknowledgement sent back for a message that
// passed validation and was queued.
func SuccessFrame(seqNumber uint64) (Frame, error) {
	return FrameFromJSON(replyFrame{Success: true, SeqNumber: seqNumber})
}

// ErrorFrame builds the acknowledgement sent back for a message that
// failed validation. reason should be a stable wire error-kind name
// (e.g. "EmptyName", "InvalidRI6"), not a formatted Go error string.
func ErrorFrame(seqNumber uint64, reason string) (Frame, error) {
	return FrameFromJSON(replyFrame{Success: false, SeqNumber: seqNumber, Error: reason})
}

// readyFrame is sent once a source's init handshake is accepted.
type readyFrame struct {
	Ready bool `json:"ready"`
}

// ReadyFrame builds the handshake acknowledgement sent to a newly
// accepted source connection.
func ReadyFrame() (Frame, error) {
	return FrameFromJSON(readyFrame{Ready: true})
}

// initFrame is the first frame a source sends on connect, naming itself.
type initFrame struct {
	Source string `json:"source"`
}

// InitFrame builds the handshake frame a source must send first.
func InitFrame(source string) (Frame, error) {
	return FrameFromJSON(initFrame{Source: source})
}

// DecodeInitFrame parses the handshake frame's source name.
func DecodeInitFrame(f Frame) (string, error) {
	in, err := DecodeFrame[initFrame](f)
	if err != nil {
		return "", err
	}
	return in.Source, nil
}
