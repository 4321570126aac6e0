package tcpstack

import (
	"log"
	"sync"
	"time"

	"github.com/netembed/tcpip/internal/metrics"
	"github.com/netembed/tcpip/sockevent"
	"github.com/netembed/tcpip/tcpip"
	"github.com/netembed/tcpip/uuid"
)

// fourTuple identifies a connected socket (spec.md §3's socket lookup key).
type fourTuple struct {
	localAddr, remoteAddr [4]byte
	localPort, remotePort uint16
}

// RawSender is the Stack-wide transmit path a single Stack is bound to
// (the IPv4/Ethernet/ARP glue below it): addressed by IP four-tuple
// rather than per-socket, since one Stack multiplexes many sockets over
// one outbound path.
type RawSender interface {
	SendSegment(localAddr, remoteAddr [4]byte, seg *Segment, payload []byte)
}

// socketSender adapts a Stack's RawSender into the per-socket Sender a
// TCB's transmit path calls, stamping the segment's ports and the
// connection's addressing before handing it down.
type socketSender struct {
	raw                    RawSender
	localAddr, remoteAddr  [4]byte
	localPort, remotePort  uint16
}

func (a *socketSender) TransmitSegment(seg *Segment, payload []byte, addToQueue bool) {
	seg.SrcPort = a.localPort
	seg.DstPort = a.remotePort
	a.raw.SendSegment(a.localAddr, a.remoteAddr, seg, payload)
}

// Stack owns every socket on one IPv4 address: the global netMutex of
// spec.md §5, the connected-socket table keyed by four-tuple, the
// listener table keyed by local port, and the ephemeral port allocator.
//
// Grounded on the teacher's collector.Cache two-generation map (adapted
// here from "poll cycle generations" to "four-tuple to socket"), since
// neither repo in the pack ships a TCP connection table proper.
type Stack struct {
	mu sync.Mutex

	LocalAddr [4]byte

	conns     map[fourTuple]*Socket
	listeners map[uint16]*Socket
	ports     *PortAllocator

	Sender RawSender

	secretSeed []byte
	epoch      time.Time
	connSeq    uint64
}

// NewStack creates an empty Stack bound to localAddr, transmitting
// outbound segments through sender.
func NewStack(localAddr [4]byte, portSeed uint32, secretSeed []byte, sender RawSender) *Stack {
	return &Stack{
		LocalAddr:  localAddr,
		conns:      make(map[fourTuple]*Socket),
		listeners:  make(map[uint16]*Socket),
		ports:      NewPortAllocator(portSeed),
		Sender:     sender,
		secretSeed: secretSeed,
		epoch:      time.Now(),
	}
}

// flowCreated assigns sock a ConnID and logs/counts the open event.
// Connected-state notification itself travels through sock.Events (spec.md
// §4.H): setState already raises sockevent.Connected on entry to
// ESTABLISHED, so an external listener gets the lifecycle signal by
// registering on the socket's own event model rather than a side channel.
// Must be called with s.mu held.
func (s *Stack) flowCreated(key fourTuple, sock *Socket, now time.Time) {
	s.connSeq++
	id, err := uuid.FromSeq(s.connSeq)
	if err != nil {
		return
	}
	sock.ConnID = id
	log.Printf("flow open conn=%s %v:%d -> %v:%d", id, key.localAddr, key.localPort, key.remoteAddr, key.remotePort)
	metrics.FlowEventsCounter.WithLabelValues("open").Inc()
}

// flowDeleted logs/counts the close event for a socket the connection
// table is about to drop. Must be called with s.mu held.
func (s *Stack) flowDeleted(key fourTuple, sock *Socket, now time.Time) {
	if sock.ConnID == "" {
		return
	}
	log.Printf("flow close conn=%s %v:%d -> %v:%d", sock.ConnID, key.localAddr, key.localPort, key.remoteAddr, key.remotePort)
	metrics.FlowEventsCounter.WithLabelValues("close").Inc()
}

// Conns returns a snapshot slice of every currently connected socket,
// for introspection tools (e.g. tcbsnapshot) that need to walk the
// connection table without reaching into Stack internals.
func (s *Stack) Conns() []*Socket {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Socket, 0, len(s.conns))
	for _, sock := range s.conns {
		out = append(out, sock)
	}
	return out
}

// Lock/Unlock expose netMutex to callers that must bracket a suspension
// point (sockevent.Events.Wait's unlockNet/lockNet hooks).
func (s *Stack) Lock()   { s.mu.Lock() }
func (s *Stack) Unlock() { s.mu.Unlock() }

func (s *Stack) isn(remoteAddr [4]byte, localPort, remotePort uint16) tcpip.Seq {
	tick := MonotonicTick(s.epoch)
	return GenerateSecureISN(s.LocalAddr, remoteAddr, localPort, remotePort, s.secretSeed, tick)
}

// Listen implements tcpListen (spec.md §6.4): creates a LISTEN socket
// bound to localPort, replacing any prior listener on that port.
func (s *Stack) Listen(localPort uint16, backlog int) *Socket {
	s.mu.Lock()
	defer s.mu.Unlock()

	sock := NewSocket()
	sock.LocalAddr = s.LocalAddr
	sock.LocalPort = localPort
	sock.TCB = &TCB{State: StateListen, SynBacklog: backlog}
	s.listeners[localPort] = sock
	return sock
}

// Connect implements tcpConnect end to end: allocates an ephemeral local
// port, generates the ISN, registers the socket in the connection table
// and sends the initial SYN.
func (s *Stack) Connect(remoteAddr [4]byte, remotePort uint16, smss uint16, txSize, rxSize int, now time.Time) *Socket {
	s.mu.Lock()
	defer s.mu.Unlock()

	localPort := s.ports.Allocate()
	sock := NewSocket()
	sock.LocalAddr = s.LocalAddr
	sock.LocalPort = localPort
	sock.RemoteAddr = remoteAddr
	sock.RemotePort = remotePort
	sock.Sender = &socketSender{raw: s.Sender, localAddr: s.LocalAddr, remoteAddr: remoteAddr, localPort: localPort, remotePort: remotePort}

	isn := s.isn(remoteAddr, localPort, remotePort)
	sock.Connect(smss, txSize, rxSize, isn, now)

	key := fourTuple{s.LocalAddr, remoteAddr, localPort, remotePort}
	s.conns[key] = sock
	s.flowCreated(key, sock, now)
	return sock
}

// Accept implements tcpAccept end to end on listener, registering the
// resulting connected socket in the connection table. The ISN passed to
// Accept comes from the Stack's RFC 6528 secure path (GenerateSecureISN
// over the pending entry's four-tuple), not from GenerateISN.
func (s *Stack) Accept(listener *Socket, smss uint16, txSize, rxSize int, now time.Time) (*Socket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Peek the pending entry's addressing before it's dequeued, so the
	// ISN can be derived from the real four-tuple.
	if len(listener.TCB.SynQueue) == 0 {
		return nil, false
	}
	entry := listener.TCB.SynQueue[0]
	isn := s.isn(entry.SrcAddr, entry.DestPort, entry.SrcPort)

	conn, ok := Accept(listener, smss, txSize, rxSize, isn, now)
	if !ok {
		return nil, false
	}
	conn.Sender = &socketSender{
		raw: s.Sender, localAddr: conn.LocalAddr, remoteAddr: conn.RemoteAddr,
		localPort: conn.LocalPort, remotePort: conn.RemotePort,
	}
	key := fourTuple{conn.LocalAddr, conn.RemoteAddr, conn.LocalPort, conn.RemotePort}
	s.conns[key] = conn
	s.flowCreated(key, conn, now)
	return conn, true
}

// Deliver routes an inbound segment to the matching connected socket, or
// to a listener (queuing the SYN), or emits an RST for an unknown
// four-tuple (spec.md §7), returning the RST to send if any.
func (s *Stack) Deliver(localAddr, remoteAddr [4]byte, seg *Segment, now time.Time) *Segment {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fourTuple{localAddr, remoteAddr, seg.DstPort, seg.SrcPort}
	if sock, ok := s.conns[key]; ok {
		if sock.GetState() == StateSynSent {
			sock.HandleSynSent(seg, now)
		} else {
			sock.HandleSegment(seg, now)
		}
		if sock.GetState() == StateClosed && sock.TCB.ClosedFlag {
			delete(s.conns, key)
			s.flowDeleted(key, sock, now)
		}
		return nil
	}

	if listener, ok := s.listeners[seg.DstPort]; ok && seg.HasFlag(FlagSYN) && !seg.HasFlag(FlagACK) {
		EnqueueSyn(listener.TCB, SynQueueEntry{
			SrcAddr: remoteAddr, SrcPort: seg.SrcPort,
			DestAddr: localAddr, DestPort: seg.DstPort,
			ISN: seg.Seq, MSS: seg.MSS,
		})
		listener.Events.Update(sockevent.Accept)
		return nil
	}

	return RSTForUnknownFourTuple(seg)
}
