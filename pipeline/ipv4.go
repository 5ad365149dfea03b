package pipeline

import (
	"log/slog"

	"github.com/soygw/softgw/ethernet"
	"github.com/soygw/softgw/iface"
	"github.com/soygw/softgw/icmp"
	"github.com/soygw/softgw/ipv4"
	"github.com/soygw/softgw/metrics"
	"github.com/soygw/softgw/wire"
)

func (r *Router) handleIPv4(efrm ethernet.Frame, ifc iface.Interface) {
	ifrm, err := ipv4.NewFrame(efrm.Payload())
	if err != nil {
		r.drop("short-ipv4", ifc.Name, "ipv4")
		return
	}
	var v wire.Validator
	ifrm.ValidateExceptCRC(&v)
	if v.HasError() {
		r.drop("bad-ipv4-header", ifc.Name, "ipv4")
		return
	}
	gotCRC := ifrm.CRC()
	wantCRC := ifrm.CalculateHeaderCRC()
	if gotCRC != wantCRC {
		r.drop("bad-ipv4-checksum", ifc.Name, "ipv4")
		return
	}

	if r.isLocalIP(*ifrm.DestinationAddr()) {
		if ifrm.Protocol() == wire.IPProtoICMP {
			r.handleICMPToUs(efrm, ifrm, ifc)
			return
		}
		quoteLen := min(ifrm.HeaderLength()+8, len(ifrm.RawData()))
		r.emitDestUnreachable(icmp.CodePortUnreachable, ifrm.RawData()[:quoteLen])
		return
	}

	// Forwarding: decrement TTL first.
	newTTL := ifrm.DecrementTTL()
	if newTTL == 0 {
		// Restore TTL=1 so the quoted header matches what the sender
		// transmitted (their checksum was computed with TTL=1).
		ifrm.SetTTL(1)
		quoteLen := min(ifrm.HeaderLength()+8, len(ifrm.RawData()))
		r.emitTimeExceeded(ifrm.RawData()[:quoteLen])
		return
	}
	ifrm.SetCRC(0)
	ifrm.SetCRC(ifrm.CalculateHeaderCRC())

	totalLen := efrm.HeaderLength() + int(ifrm.TotalLength())
	r.forward(efrm.RawData()[:totalLen], ifc.Name)
}

func (r *Router) handleICMPToUs(efrm ethernet.Frame, ifrm ipv4.Frame, ifc iface.Interface) {
	cfrm, err := icmp.NewFrame(ifrm.Payload())
	if err != nil {
		r.drop("short-icmp", ifc.Name, "icmp")
		return
	}
	if cfrm.CalculateCRC() != cfrm.CRC() {
		r.drop("bad-icmp-checksum", ifc.Name, "icmp")
		return
	}
	if cfrm.Type() != icmp.TypeEcho {
		r.drop("icmp-type-not-handled", ifc.Name, "icmp")
		return
	}

	echo := icmp.FrameEcho{Frame: cfrm}
	icmp.BuildEchoReply(echo)

	src := *ifrm.SourceAddr()
	dst := *ifrm.DestinationAddr()
	ifrm.SetSourceAddr(dst)
	ifrm.SetDestinationAddr(src)
	ifrm.SetTTL(64)
	ifrm.SetID(r.nextIdentification())
	ifrm.SetFlags(ipv4.Flags(0x4000)) // DF set, no fragmentation.
	ifrm.SetCRC(0)
	ifrm.SetCRC(ifrm.CalculateHeaderCRC())

	metrics.ICMPSent.WithLabelValues(icmp.TypeEchoReply.String()).Inc()
	totalLen := efrm.HeaderLength() + int(ifrm.TotalLength())
	r.forward(efrm.RawData()[:totalLen], "")
}

// forward implements §4.5.4's routing decision for a datagram that is
// either being relayed (recvIface is the interface it arrived on) or was
// generated locally by this router (recvIface is "").
func (r *Router) forward(frame []byte, recvIface string) {
	efrm, err := ethernet.NewFrame(frame)
	if err != nil {
		return
	}
	ifrm, err := ipv4.NewFrame(efrm.Payload())
	if err != nil {
		return
	}
	dst := *ifrm.DestinationAddr()
	route, ok := r.registry.Route(dst)
	if !ok || (recvIface != "" && route.Interface == recvIface) {
		quoteLen := min(ifrm.HeaderLength()+8, len(ifrm.RawData()))
		r.emitDestUnreachable(icmp.CodeHostUnreachable, ifrm.RawData()[:quoteLen])
		return
	}
	if err := r.egressSend(frame, route); err != nil {
		r.log.Warn("pipeline: egress send failed", slog.String("error", err.Error()))
	}
	metrics.PacketsForwarded.Inc()
}
