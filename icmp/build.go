package icmp

import "github.com/soygw/softgw/wire"

// sizeDestUnreachable is the wire size of a Type 3 message: 8 byte ICMP
// header (unused word included) plus the quoted offending datagram.
const sizeDestUnreachable = 8 + quotedOctets

// BuildDestinationUnreachable writes a Type 3 ICMP message into dst quoting
// offendingDatagram (the IPv4 header and leading payload bytes of the
// packet that could not be forwarded) and returns the number of bytes
// written. dst must be at least [SizeDestinationUnreachable] bytes.
func BuildDestinationUnreachable(dst []byte, code CodeDestinationUnreachable, offendingDatagram []byte) int {
	frm, err := NewFrame(dst[:sizeDestUnreachable])
	if err != nil {
		panic(err)
	}
	frm.SetType(TypeDestinationUnreachable)
	frm.SetCode(uint8(code))
	frm.SetRest(0)
	n := copy(frm.Body(), offendingDatagram)
	for i := n; i < quotedOctets; i++ {
		frm.Body()[i] = 0
	}
	var crc wire.CRC791
	frm.SetCRC(0)
	crc.AddUint16(uint16(frm.Type())<<8 | uint16(frm.Code()))
	crc.AddUint32(0)
	crc.Write(frm.Body())
	frm.SetCRC(crc.Sum16())
	return sizeDestUnreachable
}

// SizeDestinationUnreachable returns the number of bytes
// [BuildDestinationUnreachable] writes.
func SizeDestinationUnreachable() int { return sizeDestUnreachable }

// BuildTimeExceeded writes a Type 11 ICMP message into dst quoting
// offendingDatagram, mirroring [BuildDestinationUnreachable]'s layout.
func BuildTimeExceeded(dst []byte, offendingDatagram []byte) int {
	frm, err := NewFrame(dst[:sizeDestUnreachable])
	if err != nil {
		panic(err)
	}
	frm.SetType(TypeTimeExceeded)
	frm.SetCode(uint8(CodeExceededInTransit))
	frm.SetRest(0)
	n := copy(frm.Body(), offendingDatagram)
	for i := n; i < quotedOctets; i++ {
		frm.Body()[i] = 0
	}
	var crc wire.CRC791
	frm.SetCRC(0)
	crc.AddUint16(uint16(frm.Type())<<8 | uint16(frm.Code()))
	crc.AddUint32(0)
	crc.Write(frm.Body())
	frm.SetCRC(crc.Sum16())
	return sizeDestUnreachable
}

// BuildEchoReply turns an inbound echo request frame into a reply in place:
// swaps the type field and leaves identifier/sequence/data untouched, then
// recomputes the checksum.
func BuildEchoReply(frm FrameEcho) {
	frm.SetType(TypeEchoReply)
	frm.SetCRC(0)
	frm.SetCRC(frm.CalculateCRC())
}
