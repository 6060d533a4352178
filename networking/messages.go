package networking

import (
	"encoding/binary"
	"errors"
	"io"

	"netstash/constants"
)

const (
	// FixedHeaderSize covers request id, opcode, status, checksum and auth token.
	FixedHeaderSize = 4 + 1 + 1 + 32 + 32
	// MaxFrameBody caps the declared length before any body allocation.
	MaxFrameBody = FixedHeaderSize + constants.MAX_PAYLOAD_SIZE
)

// ErrMalformed means message boundaries could not be determined. Connection-fatal.
var ErrMalformed = errors.New("malformed frame")

// Message is one protocol frame without the leading length prefix.
// Wire layout after the 4-byte big-endian length:
// request_id u32, op_code u8, status u8, checksum [32], auth_token [32], payload.
type Message struct {
	RequestID uint32
	Opcode    uint8
	Status    uint8
	Checksum  [32]byte
	AuthToken [32]byte
	Payload   []byte
}

// NewRequest builds a request message with checksum and auth token filled in
func NewRequest(op uint8, payload []byte, token [32]byte) *Message {
	return &Message{
		Opcode:    op,
		Checksum:  Checksum(payload),
		AuthToken: token,
		Payload:   payload,
	}
}

// NewResponse builds a server response correlated to the request id
func NewResponse(requestID uint32, op, code uint8, payload []byte) *Message {
	return &Message{
		RequestID: requestID,
		Opcode:    op,
		Status:    code,
		Checksum:  Checksum(payload),
		Payload:   payload,
	}
}

// ToBytes encodes the message including the length prefix. The length is
// always recomputed from the actual payload.
func (m *Message) ToBytes() []byte {
	total := uint32(FixedHeaderSize + len(m.Payload))

	out := make([]byte, 0, 4+total)
	out = binary.BigEndian.AppendUint32(out, total)
	out = binary.BigEndian.AppendUint32(out, m.RequestID)
	out = append(out, m.Opcode, m.Status)
	out = append(out, m.Checksum[:]...)
	out = append(out, m.AuthToken[:]...)
	out = append(out, m.Payload...)

	return out
}

// ReadMessage reads exactly one frame from the stream. The reader may deliver
// bytes in arbitrary increments. io.EOF before the first length byte means
// the peer closed cleanly.
func ReadMessage(r io.Reader) (*Message, error) {
	var lenBytes [4]byte
	if _, err := io.ReadFull(r, lenBytes[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(lenBytes[:])
	if length < FixedHeaderSize || length > MaxFrameBody {
		return nil, ErrMalformed
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, ErrMalformed
	}

	return decodeBody(body), nil
}

// decodeBody splits a complete frame body into fixed fields and payload
func decodeBody(body []byte) *Message {
	msg := new(Message)
	msg.RequestID = binary.BigEndian.Uint32(body[0:4])
	msg.Opcode = body[4]
	msg.Status = body[5]
	copy(msg.Checksum[:], body[6:38])
	copy(msg.AuthToken[:], body[38:70])
	msg.Payload = body[FixedHeaderSize:]
	return msg
}
