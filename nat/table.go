// Package nat implements the router's NAT mapping table: a bidirectional
// translation between (internal IP, internal aux) and (external IP,
// external aux) for ICMP identifiers and TCP connections, with periodic
// idle expiry.
package nat

import (
	"errors"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/jonboulle/clockwork"
)

// Type distinguishes the protocol a mapping belongs to; external-aux
// counters and timeouts are tracked independently per type.
type Type uint8

const (
	TypeICMP Type = iota
	TypeTCP
)

// external-aux allocation range, shared by both types: 50000-59999
// inclusive, wrapping upward and skipping values currently in use.
const (
	auxRangeStart = 50000
	auxRangeEnd   = 59999
	auxRangeSize  = auxRangeEnd - auxRangeStart + 1
)

// Config holds the per-type idle timeouts. Both TCP timeouts are accepted
// (per the external configuration knobs) but this core applies
// TCPEstablishedTimeout uniformly, per the design note on TCP state
// tracking: the source's stubbed connection-list never distinguishes
// transitory from established state, so there is nothing to key a
// separate transitory timeout off of.
type Config struct {
	ICMPTimeout           time.Duration
	TCPEstablishedTimeout time.Duration
	TCPTransitoryTimeout  time.Duration
}

// DefaultConfig returns the timeouts named in the external configuration
// knobs' defaults.
func DefaultConfig() Config {
	return Config{
		ICMPTimeout:           60 * time.Second,
		TCPEstablishedTimeout: 7440 * time.Second,
		TCPTransitoryTimeout:  300 * time.Second,
	}
}

func (cfg Config) timeoutFor(t Type) time.Duration {
	if t == TypeTCP {
		return cfg.TCPEstablishedTimeout
	}
	return cfg.ICMPTimeout
}

// internalKey identifies a mapping by its internal side.
type internalKey struct {
	typ    Type
	ip     [4]byte
	auxInt uint16
}

// Mapping is a NAT translation entry. ConnList is a TCP-only placeholder:
// this core tracks only the mapping's lifetime, not per-connection state.
type Mapping struct {
	Type        Type
	InternalIP  [4]byte
	InternalAux uint16
	ExternalIP  [4]byte
	ExternalAux uint16
	LastUpdated time.Time
	ConnList    []struct{}
}

var errAuxExhausted = errors.New("nat: external-aux space exhausted")

// Table is the NAT mapping table described by component C4. All exported
// methods are safe for concurrent use.
type Table struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	cfg    Config
	byInt  *ttlcache.Cache[internalKey, *Mapping]
	byExt  map[Type]map[uint16]*Mapping
	nextAux map[Type]uint16
}

// New returns a ready-to-use Table. clock lets tests substitute a fake
// clock; production callers pass clockwork.NewRealClock().
func New(clock clockwork.Clock, cfg Config) *Table {
	return &Table{
		clock: clock,
		cfg:   cfg,
		byInt: ttlcache.New[internalKey, *Mapping](),
		byExt: map[Type]map[uint16]*Mapping{
			TypeICMP: make(map[uint16]*Mapping),
			TypeTCP:  make(map[uint16]*Mapping),
		},
		nextAux: map[Type]uint16{
			TypeICMP: auxRangeStart,
			TypeTCP:  auxRangeStart,
		},
	}
}

// LookupInternal returns a copy of the mapping keyed by (type, internal IP,
// internal aux), refreshing its last-updated time to now.
func (t *Table) LookupInternal(typ Type, ip [4]byte, auxInt uint16) (Mapping, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	item := t.byInt.Get(internalKey{typ: typ, ip: ip, auxInt: auxInt})
	if item == nil {
		return Mapping{}, false
	}
	m := item.Value()
	m.LastUpdated = t.clock.Now()
	return *m, true
}

// LookupExternal returns a copy of the mapping keyed by (type, external
// aux), refreshing its last-updated time to now.
func (t *Table) LookupExternal(typ Type, auxExt uint16) (Mapping, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.byExt[typ][auxExt]
	if !ok {
		return Mapping{}, false
	}
	m.LastUpdated = t.clock.Now()
	return *m, true
}

// Insert allocates a new external-aux for (typ, ipInt, auxInt) from the
// per-type counter and stores the mapping with externalIP as its
// externally-facing address. Returns false if the external-aux space for
// typ is exhausted.
func (t *Table) Insert(typ Type, ipInt [4]byte, auxInt uint16, externalIP [4]byte) (Mapping, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	auxExt, ok := t.allocateAux(typ)
	if !ok {
		return Mapping{}, false
	}
	m := &Mapping{
		Type:        typ,
		InternalIP:  ipInt,
		InternalAux: auxInt,
		ExternalIP:  externalIP,
		ExternalAux: auxExt,
		LastUpdated: t.clock.Now(),
	}
	t.byInt.Set(internalKey{typ: typ, ip: ipInt, auxInt: auxInt}, m, ttlcache.NoTTL)
	t.byExt[typ][auxExt] = m
	return *m, true
}

// allocateAux scans forward from the per-type counter, wrapping at the
// range boundary, skipping values already in use, and gives up after a
// full lap of the range finds nothing free.
func (t *Table) allocateAux(typ Type) (uint16, bool) {
	start := t.nextAux[typ]
	cur := start
	for i := 0; i < auxRangeSize; i++ {
		if _, inUse := t.byExt[typ][cur]; !inUse {
			next := cur + 1
			if next > auxRangeEnd {
				next = auxRangeStart
			}
			t.nextAux[typ] = next
			return cur, true
		}
		cur++
		if cur > auxRangeEnd {
			cur = auxRangeStart
		}
	}
	return 0, false
}

// Tick runs one timekeeper pass: drops mappings whose idle time exceeds
// their type's configured timeout.
func (t *Table) Tick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	for key, item := range t.byInt.Items() {
		m := item.Value()
		if now.Sub(m.LastUpdated) > t.cfg.timeoutFor(key.typ) {
			t.byInt.Delete(key)
			delete(t.byExt[key.typ], m.ExternalAux)
		}
	}
}
