// Package pipeline implements the packet-processing pipeline (component
// C5): link-layer demultiplexing, IPv4 validation, the forwarding
// decision, and ICMP generation. It is the glue between the wire codecs
// (ethernet/arp/ipv4/icmp), the interface registry, the ARP cache and the
// NAT table.
package pipeline

import (
	"log/slog"
	"sync/atomic"

	"github.com/soygw/softgw/arp"
	"github.com/soygw/softgw/arpcache"
	"github.com/soygw/softgw/ethernet"
	"github.com/soygw/softgw/iface"
	"github.com/soygw/softgw/metrics"
	"github.com/soygw/softgw/nat"
	"github.com/soygw/softgw/wire"
)

// SendFunc transmits a complete Ethernet frame out ifaceName. Implemented
// by the embedding application's NIC transport; assumed synchronous,
// non-blocking, and fire-and-forget, matching send_packet in the external
// interfaces.
type SendFunc func(frame []byte, ifaceName string) error

// Router holds everything the pipeline needs to process a frame: the
// immutable interface/route registry, the ARP cache, an optional NAT
// table, and the NIC transport callback.
type Router struct {
	registry *iface.Registry
	arp      *arpcache.Cache
	nat      *nat.Table
	natOn    bool
	send     SendFunc
	log      *slog.Logger
	nextID   atomic.Uint32
}

// New returns a Router ready to process ingress frames.
func New(registry *iface.Registry, arpCache *arpcache.Cache, natTable *nat.Table, natOn bool, send SendFunc, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{registry: registry, arp: arpCache, nat: natTable, natOn: natOn, send: send, log: log}
}

// nextIdentification returns the next value of the process-wide monotonic
// IP Identification counter.
func (r *Router) nextIdentification() uint16 {
	return uint16(r.nextID.Add(1))
}

func (r *Router) isLocalIP(ip [4]byte) bool {
	_, ok := r.registry.InterfaceByIP(ip)
	return ok
}

// HandleFrame is the ingress entrypoint, invoked once per received frame
// with the interface it arrived on. frame is lent by the NIC transport and
// must not be retained past this call's return.
func (r *Router) HandleFrame(frame []byte, ifaceName string) {
	ifc, ok := r.registry.Interface(ifaceName)
	if !ok {
		r.drop("unknown-interface", ifaceName, "unknown")
		return
	}

	efrm, err := ethernet.NewFrame(frame)
	if err != nil {
		r.drop("short-frame", ifaceName, "unknown")
		return
	}
	var v wire.Validator
	efrm.ValidateSize(&v)
	if v.HasError() {
		v.Reset()
		r.drop("bad-ethernet-size", ifaceName, "unknown")
		return
	}

	if *efrm.DestinationHardwareAddr() != ifc.MAC && !efrm.IsBroadcast() {
		r.drop("l2-filter", ifaceName, efrm.EtherTypeOrSize().String())
		return
	}

	et := efrm.EtherTypeOrSize()
	metrics.FramesReceived.WithLabelValues(ifaceName, et.String()).Inc()

	switch et {
	case ethernet.TypeARP:
		r.handleARP(efrm, ifc)
	case ethernet.TypeIPv4:
		r.handleIPv4(efrm, ifc)
	default:
		r.drop("unhandled-ethertype", ifaceName, et.String())
	}
}

func (r *Router) drop(reason, ifaceName, ethertype string) {
	metrics.FramesDropped.WithLabelValues(reason).Inc()
	r.log.Debug("pipeline: drop", slog.String("reason", reason), slog.String("interface", ifaceName), slog.String("ethertype", ethertype))
}

func (r *Router) handleARP(efrm ethernet.Frame, ifc iface.Interface) {
	afrm, err := arp.NewFrame(efrm.Payload())
	if err != nil {
		r.drop("short-arp", ifc.Name, "arp")
		return
	}
	var v wire.Validator
	afrm.ValidateSize(&v)
	if v.HasError() {
		r.drop("bad-arp-size", ifc.Name, "arp")
		return
	}
	htype, hlen := afrm.Hardware()
	ptype, plen := afrm.Protocol()
	if ptype != ethernet.TypeIPv4 || htype != 1 || hlen != 6 || plen != 4 {
		r.drop("bad-arp-fields", ifc.Name, "arp")
		return
	}

	senderMAC, senderIP := afrm.Sender4()
	_, targetIP := afrm.Target4()

	switch afrm.Operation() {
	case arp.OpRequest:
		if *targetIP != ifc.IPv4 {
			return
		}
		// Copy before SwapTargetSender, which overwrites these fields in
		// place: the pointers above alias the same backing buffer.
		requesterMAC := *senderMAC
		requesterIP := *senderIP

		afrm.SwapTargetSender()
		afrm.SetOperation(arp.OpReply)
		newSenderMAC, newSenderIP := afrm.Sender4()
		*newSenderMAC = ifc.MAC
		*newSenderIP = ifc.IPv4
		newTargetMAC, newTargetIP := afrm.Target4()
		*newTargetMAC = requesterMAC
		*newTargetIP = requesterIP

		efrm.SetSourceHardwareAddr(ifc.MAC)
		efrm.SetDestinationHardwareAddr(requesterMAC)
		if err := r.send(efrm.RawData(), ifc.Name); err != nil {
			r.log.Warn("pipeline: send ARP reply failed", slog.String("error", err.Error()))
		}
	case arp.OpReply:
		if *targetIP != ifc.IPv4 {
			return
		}
		learnedMAC, learnedIP := *senderMAC, *senderIP
		req := r.arp.Insert(learnedIP, learnedMAC)
		if req != nil {
			for _, pending := range req.Pending {
				pefrm, err := ethernet.NewFrame(pending.Data)
				if err != nil {
					continue
				}
				pefrm.SetDestinationHardwareAddr(learnedMAC)
				if err := r.send(pending.Data, pending.Interface); err != nil {
					r.log.Warn("pipeline: send pending frame failed", slog.String("error", err.Error()))
				}
			}
		}
	default:
		r.drop("bad-arp-opcode", ifc.Name, "arp")
	}
}
