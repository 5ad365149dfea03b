package pipeline

import (
	"github.com/soygw/softgw/ethernet"
	"github.com/soygw/softgw/icmp"
	"github.com/soygw/softgw/ipv4"
	"github.com/soygw/softgw/metrics"
	"github.com/soygw/softgw/wire"
)

// emitDestUnreachable implements §4.5.5 for Type 3 messages: offendingIP is
// the quoted IPv4 header (plus up to 8 bytes of payload) of the datagram
// that could not be delivered or forwarded.
func (r *Router) emitDestUnreachable(code icmp.CodeDestinationUnreachable, offendingIP []byte) {
	r.emitICMPError(icmp.TypeDestinationUnreachable, uint8(code), offendingIP)
}

// emitTimeExceeded implements §4.5.5 for Type 11 messages.
func (r *Router) emitTimeExceeded(offendingIP []byte) {
	r.emitICMPError(icmp.TypeTimeExceeded, uint8(icmp.CodeExceededInTransit), offendingIP)
}

// emitICMPError builds and forwards a Type 3/11 ICMP error addressed to the
// source of offendingIP, unless that source is one of our own interfaces
// (never answer an error about a datagram we ourselves originated) or the
// offending datagram was itself an ICMP error (avoids reply storms between
// two routers both reporting trouble on the same flow).
func (r *Router) emitICMPError(t icmp.Type, code uint8, offendingIP []byte) {
	if len(offendingIP) < 20 {
		return
	}
	quoted, err := ipv4.NewFrame(append([]byte(nil), offendingIP...))
	if err != nil {
		return
	}
	origSrc := *quoted.SourceAddr()
	if r.isLocalIP(origSrc) {
		return
	}
	// quoted's buffer holds only the first quotedOctets bytes of the
	// offending datagram: do not call Payload(), which trusts the
	// (now-stale) TotalLength field and would slice past this short
	// buffer's end.
	if quoted.Protocol() == wire.IPProtoICMP {
		hdrLen := quoted.HeaderLength()
		if body := quoted.RawData()[min(hdrLen, len(quoted.RawData())):]; len(body) >= 8 {
			if cfrm, err := icmp.NewFrame(body); err == nil {
				switch cfrm.Type() {
				case icmp.TypeDestinationUnreachable, icmp.TypeTimeExceeded:
					return
				}
			}
		}
	}

	route, ok := r.registry.Route(origSrc)
	if !ok {
		return
	}
	egressIfc, ok := r.registry.Interface(route.Interface)
	if !ok {
		return
	}

	bodyLen := icmp.SizeDestinationUnreachable()
	buf := make([]byte, 14+20+bodyLen)
	efrm, err := ethernet.NewFrame(buf)
	if err != nil {
		return
	}
	ifrm, err := ipv4.NewFrame(efrm.Payload())
	if err != nil {
		return
	}
	ifrm.ClearHeader()
	ifrm.SetVersionAndIHL(4, 5)
	ifrm.SetTotalLength(uint16(20 + bodyLen))
	ifrm.SetID(r.nextIdentification())
	ifrm.SetFlags(ipv4.Flags(0x4000))
	ifrm.SetTTL(64)
	ifrm.SetProtocol(wire.IPProtoICMP)
	ifrm.SetSourceAddr(egressIfc.IPv4)
	ifrm.SetDestinationAddr(origSrc)
	ifrm.SetCRC(0)
	ifrm.SetCRC(ifrm.CalculateHeaderCRC())

	switch t {
	case icmp.TypeDestinationUnreachable:
		icmp.BuildDestinationUnreachable(ifrm.Payload(), icmp.CodeDestinationUnreachable(code), offendingIP)
	case icmp.TypeTimeExceeded:
		icmp.BuildTimeExceeded(ifrm.Payload(), offendingIP)
	}

	metrics.ICMPSent.WithLabelValues(t.String()).Inc()
	r.forward(buf, "")
}
