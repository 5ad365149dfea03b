package pipeline

import (
	"log/slog"

	"github.com/soygw/softgw/arp"
	"github.com/soygw/softgw/ethernet"
	"github.com/soygw/softgw/iface"
)

// egressSend implements §4.5.4 steps 2-4: it assumes route is already a
// valid egress decision and fills in the Ethernet header, then either
// transmits immediately (ARP cache hit) or queues frame behind an ARP
// request for the route's gateway.
func (r *Router) egressSend(frame []byte, route iface.Route) error {
	egressIfc, ok := r.registry.Interface(route.Interface)
	if !ok {
		return errEgressInterfaceMissing
	}
	efrm, err := ethernet.NewFrame(frame)
	if err != nil {
		return err
	}
	efrm.SetSourceHardwareAddr(egressIfc.MAC)
	efrm.SetEtherType(ethernet.TypeIPv4)

	nextHop := route.Gateway
	if mac, ok := r.arp.Lookup(nextHop); ok {
		efrm.SetDestinationHardwareAddr(mac)
		return r.send(frame, egressIfc.Name)
	}

	req, created := r.arp.Queue(nextHop, frame, egressIfc.Name)
	if created {
		if err := r.broadcastARPRequest(nextHop, egressIfc); err != nil {
			r.log.Warn("pipeline: arp broadcast failed", slog.String("error", err.Error()))
		}
		r.arp.MarkSent(req)
	}
	return nil
}

// broadcastARPRequest emits an ARP who-has request for targetIP out ifc.
func (r *Router) broadcastARPRequest(targetIP [4]byte, ifc iface.Interface) error {
	buf := make([]byte, 14+28)
	efrm, err := ethernet.NewFrame(buf)
	if err != nil {
		return err
	}
	efrm.SetDestinationHardwareAddr(ethernet.BroadcastAddr())
	efrm.SetSourceHardwareAddr(ifc.MAC)
	efrm.SetEtherType(ethernet.TypeARP)

	afrm, err := arp.NewFrame(efrm.Payload())
	if err != nil {
		return err
	}
	afrm.ClearHeader()
	afrm.SetHardware(1, 6)
	afrm.SetProtocol(ethernet.TypeIPv4, 4)
	afrm.SetOperation(arp.OpRequest)
	senderMAC, senderIP := afrm.Sender4()
	*senderMAC = ifc.MAC
	*senderIP = ifc.IPv4
	_, tgtIP := afrm.Target4()
	*tgtIP = targetIP

	return r.send(buf, ifc.Name)
}
