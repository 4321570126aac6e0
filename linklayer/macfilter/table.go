// Package macfilter implements the reference-counted MAC-filter table of
// spec.md §3/§4.E: a fixed-size array of entries pushed down to NIC
// hardware through a driver callback.
//
// Grounded on the teacher's cache.go two-generation bookkeeping style
// (cache/cache.go: a fixed map with explicit insert/evict accounting) --
// here reworked into a fixed-size array with refcounts, since the spec
// requires a bounded hardware-sized table rather than a growable map.
package macfilter

import "github.com/netembed/tcpip/tcpip"

// DefaultSize is the default number of MAC filter entries per interface
// (spec.md §3, "fixed-size, default 12 entries").
const DefaultSize = 12

// UpdateFunc pushes the current filter table down to NIC hardware. It is
// called with addPending or deletePending set on the mutated entry, and
// the table clears the pending flag once UpdateFunc returns (spec.md
// §4.E).
type UpdateFunc func(t *Table) error

// Entry is a single MAC filter slot (spec.md §3).
type Entry struct {
	Addr          tcpip.MACAddr
	RefCount      uint32
	AddPending    bool
	DeletePending bool
}

// free reports whether the slot is unused. spec.md's invariant requires
// free slots to have zeroed address bytes.
func (e *Entry) free() bool { return e.RefCount == 0 }

// Table is a fixed-size MAC filter table bound to a single NIC.
type Table struct {
	entries []Entry
	update  UpdateFunc
}

// New creates a Table with the given capacity and driver push callback.
func New(size int, update UpdateFunc) *Table {
	if size <= 0 {
		size = DefaultSize
	}
	return &Table{entries: make([]Entry, size), update: update}
}

// Entries returns the table's backing slice, read-only by convention --
// callers outside this package should not mutate it directly.
func (t *Table) Entries() []Entry { return t.entries }

// find returns the index of addr if present, or -1.
func (t *Table) find(addr tcpip.MACAddr) int {
	for i := range t.entries {
		if !t.entries[i].free() && t.entries[i].Addr == addr {
			return i
		}
	}
	return -1
}

// firstFree returns the index of the first unused slot, or -1 if the
// table is full.
func (t *Table) firstFree() int {
	for i := range t.entries {
		if t.entries[i].free() {
			return i
		}
	}
	return -1
}

// AcceptMACAddr adds addr to the filter, incrementing its refcount if
// already present, or allocating a new slot with refcount 1. Returns
// ErrFailure if the table is full (spec.md §4.E).
func (t *Table) AcceptMACAddr(addr tcpip.MACAddr) error {
	if i := t.find(addr); i >= 0 {
		t.entries[i].RefCount++
		return nil
	}
	i := t.firstFree()
	if i < 0 {
		return tcpip.ErrFailure
	}
	t.entries[i] = Entry{Addr: addr, RefCount: 1, AddPending: true}
	if t.update != nil {
		if err := t.update(t); err != nil {
			// Roll back: the driver rejected the push.
			t.entries[i] = Entry{}
			return err
		}
	}
	t.entries[i].AddPending = false
	return nil
}

// DropMACAddr decrements addr's refcount, removing and zeroing the entry
// once it reaches zero (spec.md §4.E). Dropping an address not present is
// a no-op returning ErrNotFound.
func (t *Table) DropMACAddr(addr tcpip.MACAddr) error {
	i := t.find(addr)
	if i < 0 {
		return tcpip.ErrNotFound
	}
	t.entries[i].RefCount--
	if t.entries[i].RefCount > 0 {
		return nil
	}
	t.entries[i].DeletePending = true
	if t.update != nil {
		if err := t.update(t); err != nil {
			t.entries[i].RefCount = 1
			t.entries[i].DeletePending = false
			return err
		}
	}
	t.entries[i] = Entry{}
	return nil
}

// AcceptsDestination implements the RX destination-MAC check of spec.md
// §4.E: accept the interface's own MAC, the broadcast address, or any
// multicast address present in the table; reject everything else.
func (t *Table) AcceptsDestination(local, dst tcpip.MACAddr) bool {
	if dst == local || dst.IsBroadcast() {
		return true
	}
	if dst.IsMulticast() && t.find(dst) >= 0 {
		return true
	}
	return false
}
