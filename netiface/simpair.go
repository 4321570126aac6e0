package netiface

import (
	"sync"

	"github.com/netembed/tcpip/internal/bufchunk"
	"github.com/netembed/tcpip/linklayer/macfilter"
)

// SimPair is the hosted-test/simulation Driver (spec.md §4.B's
// "real or simulated" controller): two SimPair values connected
// back-to-back feed each other's frames directly, standing in for a
// physical wire when no real NIC is available.
//
// Grounded on the teacher's platform-split driver shape
// (collector_linux.go/collector_darwin.go: one concrete poll-loop
// implementation per environment) generalized to "loopback environment"
// instead of "this OS," and on the fakeDriver test double in
// linklayer/ethernet/pipeline_test.go for the Driver-contract shape
// itself.
type SimPair struct {
	mu      sync.Mutex
	peer    *SimPair
	pending []*bufchunk.Buffer
	onEvent func(*bufchunk.Buffer)
	feat    Features

	dropNext bool
}

// NewSimPair creates two SimPair drivers wired to each other: a frame
// sent on one becomes a pending frame the other's Tick delivers.
func NewSimPair(feat Features) (a, b *SimPair) {
	a = &SimPair{feat: feat}
	b = &SimPair{feat: feat}
	a.peer = b
	b.peer = a
	return a, b
}

// Init implements Driver.
func (d *SimPair) Init() (Features, error) {
	return d.feat, nil
}

// Tick implements Driver: hands any frames queued by the peer's last
// SendPacket to the event handler, in arrival order.
func (d *SimPair) Tick() error {
	d.mu.Lock()
	frames := d.pending
	d.pending = nil
	handler := d.onEvent
	d.mu.Unlock()

	for _, f := range frames {
		if handler != nil {
			handler(f)
		}
	}
	return nil
}

// EnableIRQ / DisableIRQ are no-ops: SimPair delivers only from Tick,
// never from a concurrent goroutine, so there is no critical section to
// protect.
func (d *SimPair) EnableIRQ()  {}
func (d *SimPair) DisableIRQ() {}

// SetEventHandler implements Driver.
func (d *SimPair) SetEventHandler(f func(frame *bufchunk.Buffer)) {
	d.mu.Lock()
	d.onEvent = f
	d.mu.Unlock()
}

// SendPacket hands frame to the peer's pending queue, simulating wire
// transmission. DropNextSend consumes one simulated loss for tests that
// exercise retransmission.
func (d *SimPair) SendPacket(frame *bufchunk.Buffer) error {
	d.mu.Lock()
	drop := d.dropNext
	d.dropNext = false
	d.mu.Unlock()
	if drop {
		return nil
	}

	d.peer.mu.Lock()
	d.peer.pending = append(d.peer.pending, frame)
	d.peer.mu.Unlock()
	return nil
}

// DropNextSend arranges for the next SendPacket to silently discard its
// frame, as if lost in transit.
func (d *SimPair) DropNextSend() {
	d.mu.Lock()
	d.dropNext = true
	d.mu.Unlock()
}

// UpdateMACAddrFilter implements Driver. SimPair has no hardware filter
// to program; software filtering (macfilter.Table's own Accept check)
// still applies upstream.
func (d *SimPair) UpdateMACAddrFilter(*macfilter.Table) error {
	return nil
}
