package icmp

import (
	"encoding/binary"

	"github.com/soygw/softgw/wire"
)

// NewFrame returns a Frame with data set to buf. An error is returned if buf
// is smaller than the 8 byte ICMP header.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < 8 {
		return Frame{}, errShortFrame
	}
	return Frame{buf: buf}, nil
}

// Frame encapsulates the raw data of an ICMP packet and provides methods for
// manipulating, validating and retrieving fields and payload data.
type Frame struct {
	buf []byte
}

func (frm Frame) RawData() []byte { return frm.buf }

func (frm Frame) Type() Type { return Type(frm.buf[0]) }

func (frm Frame) SetType(t Type) { frm.buf[0] = uint8(t) }

func (frm Frame) Code() uint8 { return frm.buf[1] }

func (frm Frame) SetCode(code uint8) { frm.buf[1] = code }

// CRC returns the checksum field of the frame.
func (frm Frame) CRC() uint16 {
	return binary.BigEndian.Uint16(frm.buf[2:4])
}

// SetCRC sets the checksum field of the frame.
func (frm Frame) SetCRC(crc uint16) {
	binary.BigEndian.PutUint16(frm.buf[2:4], crc)
}

// CalculateCRC computes the checksum over the whole ICMP message, treating
// the checksum field itself as zero as required by RFC792.
func (frm Frame) CalculateCRC() uint16 {
	var crc wire.CRC791
	crc.AddUint16(binary.BigEndian.Uint16(frm.buf[0:2]))
	return crc.PayloadSum16(frm.buf[4:])
}

// Rest returns the 4 byte "rest of header" word (unused, or next-hop MTU,
// or identifier+sequence for echo messages), preceding the message body.
func (frm Frame) Rest() uint32 {
	return binary.BigEndian.Uint32(frm.buf[4:8])
}

func (frm Frame) SetRest(v uint32) {
	binary.BigEndian.PutUint32(frm.buf[4:8], v)
}

// Body returns the portion of the message following the 8 byte header: the
// echoed data for echo messages, or the quoted IP header+payload for
// Destination Unreachable/Time Exceeded messages.
func (frm Frame) Body() []byte {
	return frm.buf[8:]
}

// FrameEcho is an ICMP Type 8/0 (echo request/reply) message view.
type FrameEcho struct {
	Frame
}

func (frm FrameEcho) Identifier() uint16 {
	return binary.BigEndian.Uint16(frm.buf[4:6])
}

func (frm FrameEcho) SetIdentifier(id uint16) {
	binary.BigEndian.PutUint16(frm.buf[4:6], id)
}

func (frm FrameEcho) SequenceNumber() uint16 {
	return binary.BigEndian.Uint16(frm.buf[6:8])
}

func (frm FrameEcho) SetSequenceNumber(seq uint16) {
	binary.BigEndian.PutUint16(frm.buf[6:8], seq)
}

func (frm FrameEcho) Data() []byte {
	return frm.buf[8:]
}
