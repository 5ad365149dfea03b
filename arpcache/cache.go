// Package arpcache implements the router's IPv4-to-MAC resolution cache:
// resolved entries with a fixed TTL, and pending ARP requests that queue
// egress frames until resolved, retried, or abandoned.
package arpcache

import (
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/jonboulle/clockwork"
)

const (
	// EntryTimeout is how long a resolved entry stays valid before
	// eviction on the next timekeeper tick.
	EntryTimeout = 15 * time.Second
	// RetryInterval is the cadence at which an unresolved request is
	// re-broadcast.
	RetryInterval = 1 * time.Second
	// MaxRetries is the number of ARP broadcasts sent for a target before
	// it is declared host-unreachable.
	MaxRetries = 5
)

// PendingFrame is a complete, egress-ready Ethernet frame held until its
// next-hop IP resolves. Data is an owned copy; Interface is the egress
// interface name the frame should be sent on once resolved.
type PendingFrame struct {
	Data      []byte
	Interface string
}

// Request tracks an unresolved next-hop IP: how many ARP broadcasts have
// been sent so far and the frames waiting on resolution.
type Request struct {
	TargetIP   [4]byte
	TimesSent  int
	LastSentAt time.Time
	Interface  string
	Pending    []PendingFrame
}

type entry struct {
	mac        [6]byte
	insertedAt time.Time
}

// RetryAction instructs the caller to re-broadcast an ARP request for
// TargetIP out Interface.
type RetryAction struct {
	TargetIP  [4]byte
	Interface string
}

// ExpiredRequest is a request that exhausted its retries: the caller must
// synthesize a Host Unreachable ICMP for each pending frame's original
// source and then discard them.
type ExpiredRequest struct {
	TargetIP [4]byte
	Pending  []PendingFrame
}

// TickResult reports the work a [Cache.Tick] call produced.
type TickResult struct {
	Retries []RetryAction
	Expired []ExpiredRequest
}

// Cache is the ARP resolution cache described by component C3. All
// exported methods are safe for concurrent use. The cache never holds its
// lock while a caller transmits a frame: Insert detaches a resolved
// request's pending queue and hands it back to the caller before any send
// happens, so a plain (non-reentrant) mutex suffices even though ARP
// handling re-enters the cache from the same goroutine that triggered it.
type Cache struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	entries  *ttlcache.Cache[[4]byte, entry]
	requests map[[4]byte]*Request
}

// New returns a ready-to-use Cache. clock lets tests substitute a fake
// clock for deterministic expiry; production callers pass
// clockwork.NewRealClock().
func New(clock clockwork.Clock) *Cache {
	return &Cache{
		clock: clock,
		// ttlcache's own active-expiry goroutine is not started; entries
		// are stored with no TTL and expiry is evaluated against clock on
		// every Lookup/Tick so tests can drive time deterministically.
		entries:  ttlcache.New[[4]byte, entry](),
		requests: make(map[[4]byte]*Request),
	}
}

// Insert installs or refreshes a resolved entry for ip. If a pending
// Request existed for ip it is removed from the cache and returned so the
// caller can drain its queued frames after releasing any lock of its own;
// otherwise it returns nil.
func (c *Cache) Insert(ip [4]byte, mac [6]byte) *Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Set(ip, entry{mac: mac, insertedAt: c.clock.Now()}, ttlcache.NoTTL)
	req := c.requests[ip]
	delete(c.requests, ip)
	return req
}

// Lookup returns a copy of the resolved MAC for ip if an unexpired entry
// exists.
func (c *Cache) Lookup(ip [4]byte) (mac [6]byte, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item := c.entries.Get(ip)
	if item == nil {
		return mac, false
	}
	e := item.Value()
	if c.clock.Since(e.insertedAt) >= EntryTimeout {
		c.entries.Delete(ip)
		return mac, false
	}
	return e.mac, true
}

// Queue appends frame (copied) to the pending list of the request for ip,
// creating the request with TimesSent==0 if none exists. created reports
// whether a new request was created, which tells the caller whether to
// immediately broadcast the first ARP request (see the packet pipeline's
// forwarding step).
func (c *Cache) Queue(ip [4]byte, frame []byte, ifaceName string) (req *Request, created bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	req, ok := c.requests[ip]
	if !ok {
		req = &Request{TargetIP: ip, Interface: ifaceName}
		c.requests[ip] = req
		created = true
	}
	owned := append([]byte(nil), frame...)
	req.Pending = append(req.Pending, PendingFrame{Data: owned, Interface: ifaceName})
	return req, created
}

// MarkSent records that an ARP broadcast for req was just sent: increments
// TimesSent and stamps LastSentAt with the current time.
func (c *Cache) MarkSent(req *Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	req.TimesSent++
	req.LastSentAt = c.clock.Now()
}

// Destroy removes req and all its queued frames without sending them.
func (c *Cache) Destroy(req *Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.requests, req.TargetIP)
}

// Tick runs one timekeeper pass: evicts resolved entries older than
// [EntryTimeout], and drives the retry state machine over pending
// requests, returning the ARP broadcasts and host-unreachable
// notifications the caller must perform.
func (c *Cache) Tick() TickResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()

	for ip, item := range c.entries.Items() {
		if now.Sub(item.Value().insertedAt) >= EntryTimeout {
			c.entries.Delete(ip)
		}
	}

	var result TickResult
	for ip, req := range c.requests {
		if now.Sub(req.LastSentAt) < RetryInterval {
			continue
		}
		if req.TimesSent >= MaxRetries {
			result.Expired = append(result.Expired, ExpiredRequest{TargetIP: ip, Pending: req.Pending})
			delete(c.requests, ip)
			continue
		}
		req.TimesSent++
		req.LastSentAt = now
		result.Retries = append(result.Retries, RetryAction{TargetIP: ip, Interface: req.Interface})
	}
	return result
}
