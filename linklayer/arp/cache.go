// Package arp implements the ARP neighbor state machine of spec.md §4.D:
// a fixed-size cache of IPv4-to-MAC neighbor entries cycling through
// INCOMPLETE, REACHABLE, STALE, DELAY and PROBE states, with conflict
// detection and RFC 5227 probing.
//
// Grounded on the teacher's cache.Cache two-generation eviction model
// (cache/cache.go), generalized here from a current/previous map pair
// into a fixed-size slice of State-machine entries, since the ARP cache
// is bounded by spec.md §3 ("default 8 entries") rather than growable.
package arp

import "github.com/netembed/tcpip/tcpip"

// DefaultSize is the default ARP cache capacity per interface.
const DefaultSize = 8

// MaxPending is the maximum number of packets queued awaiting resolution
// of a single incomplete entry (spec.md §4.D).
const MaxPending = 2

// State is a neighbor cache entry's resolution state (spec.md §3).
type State int

const (
	StateNone State = iota
	StateIncomplete
	StateReachable
	StateStale
	StateDelay
	StateProbe
	StatePermanent
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "NONE"
	case StateIncomplete:
		return "INCOMPLETE"
	case StateReachable:
		return "REACHABLE"
	case StateStale:
		return "STALE"
	case StateDelay:
		return "DELAY"
	case StateProbe:
		return "PROBE"
	case StatePermanent:
		return "PERMANENT"
	default:
		return "INVALID"
	}
}

// Entry is a single ARP neighbor cache entry.
type Entry struct {
	IP    [4]byte
	MAC   tcpip.MACAddr
	State State

	// ticksInState counts 200ms state-timer ticks spent in the current
	// state, used to age REACHABLE -> STALE and drive DELAY -> PROBE.
	ticksInState uint32

	// probesSent counts unicast/broadcast probes sent while INCOMPLETE or
	// PROBE, compared against MaxRetries.
	probesSent uint32

	// pending holds outbound packets queued awaiting resolution, oldest
	// first, bounded by MaxPending.
	pending [][]byte
}

// Conflicting parameters, per spec.md §4.D (RFC 5227-style constants).
const (
	ReachableTicks = 150 // 150 * 200ms = 30s base reachable lifetime
	DelayTicks     = 25  // 5s DELAY_FIRST_PROBE_TIME
	MaxRetries     = 3
)

// ConflictObserver receives a one-way signal when the cache detects that
// another host is using our own IPv4 address (spec.md §4.D, RFC 5227).
type ConflictObserver interface {
	OnAddressConflict(ip [4]byte, remoteMAC tcpip.MACAddr)
}

// Cache is a fixed-size ARP neighbor cache bound to one interface.
type Cache struct {
	entries  []Entry
	observer ConflictObserver
}

// NewCache creates a Cache with the given capacity.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	return &Cache{entries: make([]Entry, size)}
}

// SetConflictObserver installs the conflict-detection callback.
func (c *Cache) SetConflictObserver(o ConflictObserver) { c.observer = o }

func (e *Entry) free() bool { return e.State == StateNone }

// find returns the entry for ip, or nil.
func (c *Cache) find(ip [4]byte) *Entry {
	for i := range c.entries {
		if !c.entries[i].free() && c.entries[i].IP == ip {
			return &c.entries[i]
		}
	}
	return nil
}

// Lookup returns the MAC address for ip if the entry is REACHABLE, STALE,
// DELAY, PROBE or PERMANENT (i.e. any state with a usable MAC).
func (c *Cache) Lookup(ip [4]byte) (tcpip.MACAddr, bool) {
	e := c.find(ip)
	if e == nil || e.State == StateIncomplete {
		return tcpip.MACUnspecifiedAddr, false
	}
	return e.MAC, true
}

// allocate finds a free slot, or, if the cache is full, evicts the first
// non-PERMANENT entry in slot order (dropping its pending queue), and
// returns a pointer into the slice. Entry age is not tracked, so the
// evicted entry is not necessarily the oldest one.
func (c *Cache) allocate(ip [4]byte) *Entry {
	for i := range c.entries {
		if c.entries[i].free() {
			c.entries[i] = Entry{IP: ip}
			return &c.entries[i]
		}
	}
	for i := range c.entries {
		if c.entries[i].State != StatePermanent {
			c.entries[i] = Entry{IP: ip}
			return &c.entries[i]
		}
	}
	return nil
}

// StartResolve creates (or returns the existing) INCOMPLETE entry for ip,
// queuing pkt for transmission once resolved, per spec.md's pending-packet
// queue (bounded by MaxPending; oldest dropped when full).
func (c *Cache) StartResolve(ip [4]byte, pkt []byte) (*Entry, bool) {
	e := c.find(ip)
	if e != nil {
		if e.State == StateIncomplete && pkt != nil {
			e.enqueue(pkt)
		}
		return e, e.State != StateIncomplete
	}
	e = c.allocate(ip)
	if e == nil {
		return nil, false
	}
	e.State = StateIncomplete
	if pkt != nil {
		e.enqueue(pkt)
	}
	return e, false
}

func (e *Entry) enqueue(pkt []byte) {
	if len(e.pending) >= MaxPending {
		e.pending = e.pending[1:]
	}
	e.pending = append(e.pending, pkt)
}

// DrainPending removes and returns all packets queued on entry, clearing
// the queue.
func (e *Entry) DrainPending() [][]byte {
	p := e.pending
	e.pending = nil
	return p
}

// Resolve records a learned IP-to-MAC mapping, transitioning the entry to
// REACHABLE and returning any packets that were queued awaiting it. When
// ourAddr is true (the caller has seen another host claim one of our own
// addresses), it reports a conflict via ConflictObserver and leaves the
// cache unchanged.
func (c *Cache) Resolve(ip [4]byte, mac tcpip.MACAddr, ourAddr bool) [][]byte {
	e := c.find(ip)
	if ourAddr {
		if c.observer != nil {
			c.observer.OnAddressConflict(ip, mac)
		}
		return nil
	}
	if e == nil {
		e, _ = c.StartResolve(ip, nil)
		if e == nil {
			return nil
		}
	}
	e.MAC = mac
	e.State = StateReachable
	e.ticksInState = 0
	e.probesSent = 0
	return e.DrainPending()
}

// SetPermanent installs a static, never-aged entry (e.g. our own address
// for loopback/conflict detection, or a statically configured gateway).
func (c *Cache) SetPermanent(ip [4]byte, mac tcpip.MACAddr) {
	e := c.find(ip)
	if e == nil {
		e = c.allocate(ip)
		if e == nil {
			return
		}
	}
	e.MAC = mac
	e.State = StatePermanent
}

// Tick advances every entry's state timer by one 200ms period (spec.md
// §4.D), aging REACHABLE into STALE and driving DELAY into PROBE. It
// returns the set of IPs that now need a probe/request transmitted by the
// caller (the ARP engine proper, which owns the socket).
func (c *Cache) Tick() (needProbe []([4]byte)) {
	for i := range c.entries {
		e := &c.entries[i]
		if e.free() || e.State == StatePermanent {
			continue
		}
		e.ticksInState++
		switch e.State {
		case StateReachable:
			if e.ticksInState >= ReachableTicks {
				e.State = StateStale
				e.ticksInState = 0
			}
		case StateDelay:
			if e.ticksInState >= DelayTicks {
				e.State = StateProbe
				e.ticksInState = 0
				e.probesSent = 0
				needProbe = append(needProbe, e.IP)
			}
		case StateProbe:
			if e.probesSent >= MaxRetries {
				*e = Entry{}
				continue
			}
			needProbe = append(needProbe, e.IP)
		case StateIncomplete:
			if e.probesSent >= MaxRetries {
				*e = Entry{}
				continue
			}
			needProbe = append(needProbe, e.IP)
		}
	}
	return needProbe
}

// MarkProbeSent records that a probe/request was sent for ip, incrementing
// its retry counter.
func (c *Cache) MarkProbeSent(ip [4]byte) {
	if e := c.find(ip); e != nil {
		e.probesSent++
	}
}

// TouchDelay transitions a STALE entry to DELAY the first time it is used
// to send a packet, per spec.md's STALE->DELAY->PROBE cycle triggered by
// upper-layer traffic rather than the timer alone.
func (c *Cache) TouchDelay(ip [4]byte) {
	if e := c.find(ip); e != nil && e.State == StateStale {
		e.State = StateDelay
		e.ticksInState = 0
	}
}

// Entries returns the cache's backing slice for diagnostics/snapshotting.
func (c *Cache) Entries() []Entry { return c.entries }
