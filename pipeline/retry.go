package pipeline

import (
	"github.com/soygw/softgw/arpcache"
	"github.com/soygw/softgw/ethernet"
	"github.com/soygw/softgw/icmp"
	"github.com/soygw/softgw/ipv4"
)

// RetryARP re-broadcasts an ARP request per the timekeeper's retry
// schedule (§4.3/§4.6): one call per [arpcache.RetryAction] in a
// [arpcache.TickResult].
func (r *Router) RetryARP(action arpcache.RetryAction) error {
	ifc, ok := r.registry.Interface(action.Interface)
	if !ok {
		return errEgressInterfaceMissing
	}
	return r.broadcastARPRequest(action.TargetIP, ifc)
}

// ExpireARPRequest synthesizes a Host Unreachable ICMP for every frame
// that was queued behind a next-hop IP which never resolved within
// [arpcache.MaxRetries] attempts (§4.3/§7).
func (r *Router) ExpireARPRequest(expired arpcache.ExpiredRequest) {
	for _, pending := range expired.Pending {
		efrm, err := ethernet.NewFrame(pending.Data)
		if err != nil {
			continue
		}
		ifrm, err := ipv4.NewFrame(efrm.Payload())
		if err != nil {
			continue
		}
		quoteLen := min(ifrm.HeaderLength()+8, len(ifrm.RawData()))
		r.emitDestUnreachable(icmp.CodeHostUnreachable, ifrm.RawData()[:quoteLen])
	}
}
