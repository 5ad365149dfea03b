package ethernet

import "strconv"

const (
	sizeHeaderNoVLAN = 14
	// minEthPayload is the minimum payload size for an Ethernet frame,
	// assuming no 802.1Q VLAN tag is present.
	minEthPayload = 46
)

// AppendAddr appends the text representation of the hardware address to the destination buffer.
func AppendAddr(dst []byte, hwAddr [6]byte) []byte {
	for i, b := range hwAddr {
		if i != 0 {
			dst = append(dst, ':')
		}
		if b < 16 {
			dst = append(dst, '0')
		}
		dst = strconv.AppendUint(dst, uint64(b), 16)
	}
	return dst
}

// BroadcastAddr returns the all 0xff's broadcast hardware/MAC/EUI/OUI address.
func BroadcastAddr() [6]byte {
	return [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
}

// Type is the EtherType/length field of an Ethernet II header.
type Type uint16

// IsSize returns true if the EtherType is actually the size of the payload
// and should NOT be interpreted as an EtherType.
func (et Type) IsSize() bool { return et <= 1500 }

// EtherTypes this codec names. The ingress pipeline dispatches only on
// TypeARP and TypeIPv4; every other value, IPv6 and VLAN included, is
// dropped at the link layer.
const (
	TypeIPv4 Type = 0x0800 // IPv4
	TypeARP  Type = 0x0806 // ARP
	TypeIPv6 Type = 0x86DD // IPv6
	TypeVLAN Type = 0x8100 // VLAN
)

func (et Type) String() string {
	switch et {
	case TypeIPv4:
		return "IPv4"
	case TypeARP:
		return "ARP"
	case TypeIPv6:
		return "IPv6"
	case TypeVLAN:
		return "VLAN"
	default:
		return "EtherType(0x" + strconv.FormatUint(uint64(et), 16) + ")"
	}
}

// VLANTag holds priority (PCP), drop-eligible indicator (DEI), and VLAN
// ID bits of the VLAN tag field.
type VLANTag uint16

// DropEligibleIndicator returns true if the DEI bit is set.
func (vt VLANTag) DropEligibleIndicator() bool { return vt&(1<<3) != 0 }

// PriorityCodePoint is the 3-bit field mapping to 802.1p class of service.
func (vt VLANTag) PriorityCodePoint() uint8 { return uint8(vt & 0b111) }

// VLANIdentifier is the 12-bit field specifying which VLAN the frame belongs to.
func (vt VLANTag) VLANIdentifier() uint16 { return uint16(vt) >> 4 }
