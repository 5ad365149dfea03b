// Package iface holds the set of local router interfaces and the static
// route table, both immutable once built and requiring no locking for
// lookups: they are populated once at startup and never mutated after.
package iface

import (
	"encoding/binary"
	"errors"
	"math/bits"
)

// Interface is a local router interface: a name, a hardware address and an
// IPv4 address. Immutable after registration.
type Interface struct {
	Name string
	MAC  [6]byte
	IPv4 [4]byte
}

// Route is a static forwarding rule: datagrams whose destination matches
// Dest under Mask are sent to Gateway out Interface. Immutable; the set of
// routes is fixed at startup.
type Route struct {
	Dest      [4]byte
	Mask      [4]byte
	Gateway   [4]byte
	Interface string
}

var (
	errDupInterfaceName = errors.New("iface: duplicate interface name")
	errDupInterfaceIP   = errors.New("iface: duplicate interface IP")
	errUnknownInterface = errors.New("iface: route references unknown interface")
)

// Registry holds the interfaces and routes of a router core. The zero value
// is not usable; construct with [NewRegistry].
type Registry struct {
	interfaces []Interface
	routes     []Route
}

// NewRegistry validates and builds an immutable Registry from interfaces
// and routes. Interface names and IPv4 addresses must each be unique; every
// route's Interface field must name a registered interface.
func NewRegistry(interfaces []Interface, routes []Route) (*Registry, error) {
	r := &Registry{
		interfaces: append([]Interface(nil), interfaces...),
		routes:     append([]Route(nil), routes...),
	}
	byName := make(map[string]struct{}, len(r.interfaces))
	byIP := make(map[[4]byte]struct{}, len(r.interfaces))
	for _, ifc := range r.interfaces {
		if _, dup := byName[ifc.Name]; dup {
			return nil, errDupInterfaceName
		}
		if _, dup := byIP[ifc.IPv4]; dup {
			return nil, errDupInterfaceIP
		}
		byName[ifc.Name] = struct{}{}
		byIP[ifc.IPv4] = struct{}{}
	}
	for _, rt := range r.routes {
		if _, ok := byName[rt.Interface]; !ok {
			return nil, errUnknownInterface
		}
	}
	return r, nil
}

// Interface returns the interface registered under name.
func (r *Registry) Interface(name string) (Interface, bool) {
	for _, ifc := range r.interfaces {
		if ifc.Name == name {
			return ifc, true
		}
	}
	return Interface{}, false
}

// InterfaceByIP returns the interface whose IPv4 address exactly matches ip.
func (r *Registry) InterfaceByIP(ip [4]byte) (Interface, bool) {
	for _, ifc := range r.interfaces {
		if ifc.IPv4 == ip {
			return ifc, true
		}
	}
	return Interface{}, false
}

// Interfaces returns every registered interface. The returned slice must
// not be mutated by the caller.
func (r *Registry) Interfaces() []Interface {
	return r.interfaces
}

// Route returns the route matching dst under longest-prefix match: among
// routes whose (dst & mask) == (route.Dest & mask), the one with the
// greatest number of contiguous high mask bits wins; ties are broken by
// registration order.
func (r *Registry) Route(dst [4]byte) (Route, bool) {
	dstU := binary.BigEndian.Uint32(dst[:])
	var (
		best      Route
		bestLen   = -1
		bestFound bool
	)
	for _, rt := range r.routes {
		maskU := binary.BigEndian.Uint32(rt.Mask[:])
		destU := binary.BigEndian.Uint32(rt.Dest[:])
		if dstU&maskU != destU&maskU {
			continue
		}
		prefixLen := bits.OnesCount32(maskU)
		if prefixLen > bestLen {
			best = rt
			bestLen = prefixLen
			bestFound = true
		}
	}
	return best, bestFound
}
