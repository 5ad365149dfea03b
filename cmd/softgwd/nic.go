package main

import (
	"context"
	"errors"
	"sync"
)

// NIC is the minimal transport boundary this router core expects of each
// network interface: send a complete Ethernet frame. Delivering received
// frames to the pipeline is left to the implementation and is not part of
// this interface (loopbackNIC does it through setHandler/deliver). The router core never opens a raw socket or a TAP
// device itself (spec.md §1 places the NIC transport out of scope); this
// interface and the stub below exist only so cmd/softgwd can be wired and
// exercised without a real kernel interface.
type NIC interface {
	Name() string
	Send(frame []byte) error
}

// loopbackNIC is an in-memory stand-in for a real NIC: frames sent to it
// are appended to an internal queue instead of hitting a wire, and tests
// or illustration code can call deliver to simulate an inbound frame. It
// is not a TAP device and does not perform any kernel interaction.
type loopbackNIC struct {
	name string

	mu  sync.Mutex
	out [][]byte

	handler func(frame []byte, ifaceName string)
}

func newLoopbackNIC(name string) *loopbackNIC {
	return &loopbackNIC{name: name}
}

func (n *loopbackNIC) Name() string { return n.name }

func (n *loopbackNIC) Send(frame []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.out = append(n.out, append([]byte(nil), frame...))
	return nil
}

// Sent drains and returns every frame queued by Send since the last call.
func (n *loopbackNIC) Sent() [][]byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.out
	n.out = nil
	return out
}

// setHandler registers the callback invoked for frames arriving on this
// interface; used by deliver to hand an inbound frame to the pipeline.
func (n *loopbackNIC) setHandler(h func(frame []byte, ifaceName string)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handler = h
}

// deliver simulates a frame arriving on the wire.
func (n *loopbackNIC) deliver(ctx context.Context, frame []byte) error {
	n.mu.Lock()
	h := n.handler
	n.mu.Unlock()
	if h == nil {
		return errors.New("softgwd: no handler registered for interface " + n.name)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	h(frame, n.name)
	return nil
}
