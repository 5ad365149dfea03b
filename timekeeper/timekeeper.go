// Package timekeeper runs the router's single background expiry agent
// (component C6): on a fixed cadence it scans the ARP cache and the NAT
// table, applying the ARP retry state machine and NAT idle eviction.
package timekeeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/soygw/softgw/arpcache"
	"github.com/soygw/softgw/nat"
)

// TickInterval is the nominal cadence at which the timekeeper scans the
// ARP cache and NAT table.
const TickInterval = 1 * time.Second

// ARPActions is invoked once per tick with the ARP retry work produced by
// that tick: callers re-broadcast each retry and synthesize a Host
// Unreachable ICMP for each expired request's pending frames.
type ARPActions func(arpcache.TickResult)

// Timekeeper ticks at [TickInterval], scanning an ARP cache and a NAT
// table under their own locks. Ticks never overlap and may be skipped
// under load without correctness impact.
type Timekeeper struct {
	clock   clockwork.Clock
	arp     *arpcache.Cache
	nat     *nat.Table
	onARP   ARPActions
	log     *slog.Logger
}

// New returns a Timekeeper driving arp and nat. onARP is called with the
// result of each ARP tick so the caller can emit broadcasts/ICMPs; nat may
// be nil if NAT is disabled.
func New(clock clockwork.Clock, arp *arpcache.Cache, natTable *nat.Table, onARP ARPActions, log *slog.Logger) *Timekeeper {
	if log == nil {
		log = slog.Default()
	}
	return &Timekeeper{clock: clock, arp: arp, nat: natTable, onARP: onARP, log: log}
}

// Run blocks, ticking until ctx is canceled.
func (tk *Timekeeper) Run(ctx context.Context) {
	ticker := tk.clock.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			tk.tick()
		}
	}
}

func (tk *Timekeeper) tick() {
	result := tk.arp.Tick()
	if tk.onARP != nil && (len(result.Retries) > 0 || len(result.Expired) > 0) {
		tk.onARP(result)
	}
	if tk.nat != nil {
		tk.nat.Tick()
	}
	tk.log.Debug("timekeeper: tick",
		slog.Int("arp_retries", len(result.Retries)),
		slog.Int("arp_expired", len(result.Expired)))
}
