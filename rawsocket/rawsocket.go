// Package rawsocket implements the RAW_IP and RAW_ETH socket layer of
// spec.md §4.F: bounded per-socket receive queues fed by protocol
// dispatch (RAW_IP) or the Ethernet layer's raw fan-out (RAW_ETH).
//
// Grounded on the teacher's saver.MarshalChan pattern (saver/saver.go):
// a bounded channel a producer writes into and a consumer drains,
// dropping on overflow rather than blocking the producer.
package rawsocket

import (
	"github.com/netembed/tcpip/internal/bufchunk"
	"github.com/netembed/tcpip/internal/metrics"
	"github.com/netembed/tcpip/linklayer/ethernet"
	"github.com/netembed/tcpip/tcpip"
)

// DefaultQueueLen is the default number of queued datagrams per raw
// socket (spec.md §4.F, "default 4").
const DefaultQueueLen = 4

// ProtoAll and ProtoLLC are the special EtherType match values for
// RAW_ETH sockets (spec.md §4.F).
const (
	ProtoAll = 0x0000 // match every EtherType
	ProtoLLC = 0xFFFF // match 802.3 length-field (LLC) frames only
)

// Kind distinguishes a raw socket's demultiplexing domain.
type Kind int

const (
	KindRawIP Kind = iota
	KindRawEth
)

// Datagram is one queued raw-socket delivery: the full frame/packet bytes
// plus the virtual interface it arrived on.
type Datagram struct {
	Iface string
	Data  []byte
}

// Socket is a single raw socket: a bounded FIFO of Datagrams plus the
// match criteria selecting which inbound traffic is delivered to it.
type Socket struct {
	Kind Kind

	// EtherType is the RAW_ETH match value (ProtoAll, ProtoLLC, or a
	// concrete EtherType); ignored for RAW_IP sockets.
	EtherType uint16

	// Protocol is the RAW_IP match value (an IPv4 protocol number, or 0
	// for "unused"/all is not permitted -- RAW_IP requires an explicit
	// protocol per spec.md §4.F).
	Protocol uint8

	queue []Datagram
	cap   int
}

// New creates a Socket with the given queue capacity (DefaultQueueLen if
// <= 0).
func New(kind Kind, capacity int) *Socket {
	if capacity <= 0 {
		capacity = DefaultQueueLen
	}
	return &Socket{Kind: kind, cap: capacity}
}

// enqueue appends d, dropping the oldest queued datagram if full
// (spec.md §4.F: bounded queue, newest delivery wins over oldest).
func (s *Socket) enqueue(d Datagram) {
	if len(s.queue) >= s.cap {
		s.queue = s.queue[1:]
		metrics.IfInDiscards.WithLabelValues(d.Iface).Inc()
	}
	s.queue = append(s.queue, d)
}

// Recv dequeues the oldest pending datagram. ok is false if the queue is
// empty.
func (s *Socket) Recv() (Datagram, bool) {
	if len(s.queue) == 0 {
		return Datagram{}, false
	}
	d := s.queue[0]
	s.queue = s.queue[1:]
	return d, true
}

// Pending reports how many datagrams are queued.
func (s *Socket) Pending() int { return len(s.queue) }

// Demux fans inbound traffic out to raw sockets. It is shared by the
// RAW_ETH path (DeliverEthernet, called from the Ethernet layer's raw
// fan-out) and the RAW_IP path (DeliverIP, called from netdevice's IPv4
// frame handler before protocol dispatch).
type Demux struct {
	sockets []*Socket
}

// NewDemux creates an empty raw-socket demultiplexer.
func NewDemux() *Demux { return &Demux{} }

// Open registers s with the demultiplexer.
func (d *Demux) Open(s *Socket) { d.sockets = append(d.sockets, s) }

// Close unregisters s.
func (d *Demux) Close(s *Socket) {
	for i, cur := range d.sockets {
		if cur == s {
			d.sockets = append(d.sockets[:i], d.sockets[i+1:]...)
			return
		}
	}
}

// DeliverEthernet implements ethernet.RawReceiver: it is invoked for
// every inbound frame on a bound virtual interface, and fans the frame
// out to RAW_ETH sockets whose EtherType filter matches.
func (d *Demux) DeliverEthernet(vif *ethernet.VirtualInterface, frame *bufchunk.Buffer) {
	hdr, err := ethernet.ParseHeader(frame.ReadAt(0, frame.TotalLength()))
	if err != nil {
		return
	}
	raw := frame.ReadAt(0, frame.TotalLength())
	for _, s := range d.sockets {
		if s.Kind != KindRawEth {
			continue
		}
		switch {
		case s.EtherType == ProtoAll:
			s.enqueue(Datagram{Iface: vif.Iface.Name, Data: raw})
		case s.EtherType == ProtoLLC:
			if hdr.EtherType <= ethernet.MTU {
				s.enqueue(Datagram{Iface: vif.Iface.Name, Data: raw})
			}
		case s.EtherType == hdr.EtherType:
			s.enqueue(Datagram{Iface: vif.Iface.Name, Data: raw})
		}
	}
}

// DeliverIP fans an inbound IPv4 datagram out to RAW_IP sockets matching
// protocol, called from the IP layer's protocol dispatch.
func (d *Demux) DeliverIP(ifaceName string, protocol uint8, packet []byte) {
	for _, s := range d.sockets {
		if s.Kind == KindRawIP && s.Protocol == protocol {
			s.enqueue(Datagram{Iface: ifaceName, Data: packet})
		}
	}
}

// Send transmits a raw datagram. For RAW_ETH the caller supplies a full
// frame payload (post Ethernet header) and destination MAC, sent with the
// socket's EtherType; for RAW_IP the caller supplies a complete IPv4
// packet and the destination MAC (resolved by the caller, e.g. via ARP),
// and it is sent with the IPv4 EtherType.
func (s *Socket) Send(vif *ethernet.VirtualInterface, dst tcpip.MACAddr, payload []byte) error {
	etherType := s.EtherType
	if s.Kind == KindRawIP {
		etherType = ethernet.EtherTypeIPv4
	}
	return vif.Send(dst, etherType, bufchunk.FromBytes(payload))
}
