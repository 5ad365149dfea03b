package pipeline

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"

	"github.com/soygw/softgw/arp"
	"github.com/soygw/softgw/arpcache"
	"github.com/soygw/softgw/ethernet"
	"github.com/soygw/softgw/iface"
	"github.com/soygw/softgw/icmp"
	"github.com/soygw/softgw/ipv4"
	"github.com/soygw/softgw/nat"
)

var (
	lanMAC  = [6]byte{0x02, 0, 0, 0, 0, 1}
	lanIP   = [4]byte{10, 0, 0, 1}
	peerMAC = [6]byte{0x02, 0, 0, 0, 0, 2}
	peerIP  = [4]byte{10, 0, 0, 2}
	wanMAC  = [6]byte{0x02, 0, 0, 0, 1, 1}
	wanIP   = [4]byte{203, 0, 113, 1}
	gwIP    = [4]byte{203, 0, 113, 254}
)

// capture records every frame handed to send, keyed by interface.
type capture struct {
	mu     sync.Mutex
	frames []sentFrame
}

type sentFrame struct {
	iface string
	data  []byte
}

func (c *capture) send(frame []byte, ifaceName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, sentFrame{iface: ifaceName, data: append([]byte(nil), frame...)})
	return nil
}

func (c *capture) last() sentFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames[len(c.frames)-1]
}

func newTestRouter(t *testing.T) (*Router, *capture, clockwork.FakeClock) {
	t.Helper()
	reg, err := iface.NewRegistry(
		[]iface.Interface{
			{Name: "lan", MAC: lanMAC, IPv4: lanIP},
			{Name: "wan", MAC: wanMAC, IPv4: wanIP},
		},
		[]iface.Route{
			{Dest: [4]byte{10, 0, 0, 0}, Mask: [4]byte{255, 255, 255, 0}, Gateway: peerIP, Interface: "lan"},
			{Dest: [4]byte{0, 0, 0, 0}, Mask: [4]byte{0, 0, 0, 0}, Gateway: gwIP, Interface: "wan"},
		},
	)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	clock := clockwork.NewFakeClock()
	cap := &capture{}
	r := New(reg, arpcache.New(clock), nat.New(clock, nat.DefaultConfig()), true, cap.send, slog.Default())
	return r, cap, clock
}

func buildARPRequest(targetIP [4]byte) []byte {
	buf := make([]byte, 14+28)
	efrm, _ := ethernet.NewFrame(buf)
	efrm.SetDestinationHardwareAddr(ethernet.BroadcastAddr())
	efrm.SetSourceHardwareAddr(peerMAC)
	efrm.SetEtherType(ethernet.TypeARP)
	afrm, _ := arp.NewFrame(efrm.Payload())
	afrm.ClearHeader()
	afrm.SetHardware(1, 6)
	afrm.SetProtocol(ethernet.TypeIPv4, 4)
	afrm.SetOperation(arp.OpRequest)
	senderMAC, senderIP := afrm.Sender4()
	*senderMAC = peerMAC
	*senderIP = peerIP
	_, tIP := afrm.Target4()
	*tIP = targetIP
	return buf
}

func buildICMPEcho(dst, src [4]byte, dstMAC, srcMAC [6]byte, ttl uint8) []byte {
	body := []byte("pingdata")
	buf := make([]byte, 14+20+8+len(body))
	efrm, _ := ethernet.NewFrame(buf)
	efrm.SetDestinationHardwareAddr(dstMAC)
	efrm.SetSourceHardwareAddr(srcMAC)
	efrm.SetEtherType(ethernet.TypeIPv4)

	ifrm, _ := ipv4.NewFrame(efrm.Payload())
	ifrm.ClearHeader()
	ifrm.SetVersionAndIHL(4, 5)
	ifrm.SetTotalLength(uint16(20 + 8 + len(body)))
	ifrm.SetTTL(ttl)
	ifrm.SetProtocol(1) // ICMP
	ifrm.SetSourceAddr(src)
	ifrm.SetDestinationAddr(dst)
	ifrm.SetCRC(0)
	ifrm.SetCRC(ifrm.CalculateHeaderCRC())

	cfrm, _ := icmp.NewFrame(ifrm.Payload())
	echo := icmp.FrameEcho{Frame: cfrm}
	echo.SetType(icmp.TypeEcho)
	echo.SetCode(0)
	echo.SetIdentifier(1)
	echo.SetSequenceNumber(1)
	copy(echo.Data(), body)
	echo.SetCRC(0)
	echo.SetCRC(echo.CalculateCRC())

	return buf
}

func TestARPRequestForOurIPGetsReply(t *testing.T) {
	r, cap, _ := newTestRouter(t)
	r.HandleFrame(buildARPRequest(lanIP), "lan")

	if len(cap.frames) != 1 {
		t.Fatalf("expected exactly one reply frame, got %d", len(cap.frames))
	}
	sent := cap.last()
	if sent.iface != "lan" {
		t.Fatalf("expected reply on lan, got %s", sent.iface)
	}
	efrm, err := ethernet.NewFrame(sent.data)
	if err != nil {
		t.Fatal(err)
	}
	if *efrm.DestinationHardwareAddr() != peerMAC {
		t.Fatalf("expected reply addressed to requester MAC, got %v", *efrm.DestinationHardwareAddr())
	}
	afrm, err := arp.NewFrame(efrm.Payload())
	if err != nil {
		t.Fatal(err)
	}
	if afrm.Operation() != arp.OpReply {
		t.Fatalf("expected OpReply, got %v", afrm.Operation())
	}
	senderMAC, senderIP := afrm.Sender4()
	if *senderMAC != lanMAC || *senderIP != lanIP {
		t.Fatalf("expected reply sender to be our interface, got mac=%v ip=%v", *senderMAC, *senderIP)
	}
}

func TestARPRequestForOtherIPIsIgnored(t *testing.T) {
	r, cap, _ := newTestRouter(t)
	r.HandleFrame(buildARPRequest(peerIP), "lan")
	if len(cap.frames) != 0 {
		t.Fatalf("expected no reply for a request not targeting our IP, got %d frames", len(cap.frames))
	}
}

func TestEchoRequestToUsProducesReply(t *testing.T) {
	r, cap, _ := newTestRouter(t)
	r.arp.Insert(peerIP, peerMAC)

	frame := buildICMPEcho(lanIP, peerIP, lanMAC, peerMAC, 64)
	r.HandleFrame(frame, "lan")

	if len(cap.frames) != 1 {
		t.Fatalf("expected one echo reply sent, got %d", len(cap.frames))
	}
	sent := cap.last()
	efrm, _ := ethernet.NewFrame(sent.data)
	ifrm, _ := ipv4.NewFrame(efrm.Payload())
	if *ifrm.SourceAddr() != lanIP || *ifrm.DestinationAddr() != peerIP {
		t.Fatalf("expected reply src=%v dst=%v, got src=%v dst=%v", lanIP, peerIP, *ifrm.SourceAddr(), *ifrm.DestinationAddr())
	}
	cfrm, err := icmp.NewFrame(ifrm.Payload())
	if err != nil {
		t.Fatal(err)
	}
	if cfrm.Type() != icmp.TypeEchoReply {
		t.Fatalf("expected echo reply type, got %v", cfrm.Type())
	}
}

func TestForwardWithARPMissQueuesAndBroadcasts(t *testing.T) {
	r, cap, _ := newTestRouter(t)

	// A datagram from the WAN side destined for a LAN host we have not
	// resolved yet: forward() must broadcast an ARP request and hold the
	// frame rather than drop it.
	farHost := [4]byte{10, 0, 0, 50}
	frame := buildICMPEcho(farHost, wanIP, lanMAC /* arbitrary, overwritten */, wanMAC, 64)
	// Rewrite as arriving on wan addressed to our wan MAC.
	efrm, _ := ethernet.NewFrame(frame)
	efrm.SetDestinationHardwareAddr(wanMAC)

	r.HandleFrame(frame, "wan")

	if len(cap.frames) != 1 {
		t.Fatalf("expected exactly one ARP broadcast, got %d", len(cap.frames))
	}
	sent := cap.last()
	if sent.iface != "lan" {
		t.Fatalf("expected ARP broadcast out lan, got %s", sent.iface)
	}
	aefrm, _ := ethernet.NewFrame(sent.data)
	if aefrm.EtherTypeOrSize() != ethernet.TypeARP {
		t.Fatalf("expected an ARP frame, got ethertype %v", aefrm.EtherTypeOrSize())
	}

	// Resolving the pending request must flush the queued datagram.
	req := r.arp.Insert(peerIP, peerMAC)
	if req == nil {
		t.Fatal("expected a detached request for the lan gateway")
	}
	for _, pending := range req.Pending {
		pefrm, _ := ethernet.NewFrame(pending.Data)
		pefrm.SetDestinationHardwareAddr(peerMAC)
		cap.send(pending.Data, pending.Interface)
	}
	if len(cap.frames) != 2 {
		t.Fatalf("expected the queued datagram to flush after resolution, got %d frames", len(cap.frames))
	}
}

func TestTTLExpiryEmitsTimeExceeded(t *testing.T) {
	r, cap, _ := newTestRouter(t)
	r.arp.Insert(gwIP, [6]byte{0x02, 0, 0, 0, 2, 1})
	// The Time Exceeded goes back to peerIP, which is also the lan route's
	// next hop: resolve it so the ICMP is sent rather than queued behind ARP.
	r.arp.Insert(peerIP, peerMAC)

	frame := buildICMPEcho([4]byte{8, 8, 8, 8}, peerIP, lanMAC, peerMAC, 1)
	r.HandleFrame(frame, "lan")

	if len(cap.frames) != 1 {
		t.Fatalf("expected one Time Exceeded message, got %d", len(cap.frames))
	}
	sent := cap.last()
	efrm, _ := ethernet.NewFrame(sent.data)
	ifrm, _ := ipv4.NewFrame(efrm.Payload())
	if *ifrm.DestinationAddr() != peerIP {
		t.Fatalf("expected Time Exceeded addressed back to original source, got %v", *ifrm.DestinationAddr())
	}
	cfrm, err := icmp.NewFrame(ifrm.Payload())
	if err != nil {
		t.Fatal(err)
	}
	if cfrm.Type() != icmp.TypeTimeExceeded {
		t.Fatalf("expected TypeTimeExceeded, got %v", cfrm.Type())
	}
}

func TestSameInterfaceRouteEmitsHostUnreachable(t *testing.T) {
	r, cap, _ := newTestRouter(t)
	r.arp.Insert(peerIP, peerMAC)

	// 10.0.0.50 matches the lan route, which is also the interface the
	// datagram arrived on: §4.5.4 treats this as undeliverable rather
	// than bouncing it back out where it came from.
	onLanSubnet := [4]byte{10, 0, 0, 50}
	frame := buildICMPEcho(onLanSubnet, peerIP, lanMAC, peerMAC, 64)
	r.HandleFrame(frame, "lan")

	if len(cap.frames) != 1 {
		t.Fatalf("expected one Host Unreachable message, got %d", len(cap.frames))
	}
	sent := cap.last()
	efrm, _ := ethernet.NewFrame(sent.data)
	ifrm, _ := ipv4.NewFrame(efrm.Payload())
	if *ifrm.DestinationAddr() != peerIP {
		t.Fatalf("expected Host Unreachable addressed back to original source, got %v", *ifrm.DestinationAddr())
	}
	cfrm, err := icmp.NewFrame(ifrm.Payload())
	if err != nil {
		t.Fatal(err)
	}
	if cfrm.Type() != icmp.TypeDestinationUnreachable {
		t.Fatalf("expected TypeDestinationUnreachable, got %v", cfrm.Type())
	}
	if icmp.CodeDestinationUnreachable(cfrm.Code()) != icmp.CodeHostUnreachable {
		t.Fatalf("expected CodeHostUnreachable, got %v", cfrm.Code())
	}
}
