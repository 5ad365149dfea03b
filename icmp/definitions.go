// Package icmp implements the ICMPv4 header codec and the error-message
// bodies this router core generates: destination unreachable, echo reply
// and time exceeded. See [RFC792].
//
// [RFC792]: https://tools.ietf.org/html/rfc792
package icmp

import "errors"

type Type uint8

const (
	TypeEchoReply             Type = 0  // echo reply
	TypeDestinationUnreachable Type = 3  // destination unreachable
	TypeEcho                  Type = 8  // echo
	TypeTimeExceeded          Type = 11 // time exceeded
)

func (t Type) String() string {
	switch t {
	case TypeEchoReply:
		return "echo-reply"
	case TypeDestinationUnreachable:
		return "destination-unreachable"
	case TypeEcho:
		return "echo"
	case TypeTimeExceeded:
		return "time-exceeded"
	default:
		return "type(unknown)"
	}
}

// CodeDestinationUnreachable holds the Code field values this core emits for
// Type 3 messages: host-unreachable when a datagram cannot be routed or its
// next hop never resolves, and port-unreachable when a datagram addressed to
// the router carries a protocol other than ICMP.
type CodeDestinationUnreachable uint8

const (
	CodeNetUnreachable     CodeDestinationUnreachable = 0
	CodeHostUnreachable    CodeDestinationUnreachable = 1
	CodeProtoUnreachable   CodeDestinationUnreachable = 2
	CodePortUnreachable    CodeDestinationUnreachable = 3
	CodeFragNeededAndDFSet CodeDestinationUnreachable = 4
)

// CodeTimeExceeded holds the Code field for Type 11 messages; this core only
// ever emits CodeExceededInTransit since it never reassembles fragments.
type CodeTimeExceeded uint8

const (
	CodeExceededInTransit CodeTimeExceeded = 0
)

var errShortFrame = errors.New("icmp: short frame")

// quotedOctets is the number of bytes of the offending IPv4 header and
// payload copied into the body of a Destination Unreachable/Time Exceeded
// message: the 20-byte minimal IPv4 header plus the first 8 bytes of its
// payload, as required by RFC792 for the transport layer to identify the
// failed flow.
const quotedOctets = 28
