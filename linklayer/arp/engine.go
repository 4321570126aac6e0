package arp

import "github.com/netembed/tcpip/tcpip"

// Sender is the collaborator an Engine uses to emit ARP frames; the
// Ethernet layer implements this by wrapping a built packet in a frame
// addressed to dstMAC (or broadcast for requests/probes).
type Sender interface {
	SendARP(dstMAC tcpip.MACAddr, pk *Packet) error
}

// Engine binds a Cache to a local identity (IP, MAC) and a Sender,
// implementing the request/reply/probe protocol of spec.md §4.D on top
// of the cache's pure state machine.
type Engine struct {
	LocalIP  [4]byte
	LocalMAC tcpip.MACAddr
	Cache    *Cache
	Sender   Sender

	// targetFilter, if set, restricts which target IPs this engine will
	// respond to (spec.md §4.D "target filtering" -- e.g. only our own
	// configured addresses, not every address on the segment).
	targetFilter func(ip [4]byte) bool
}

// NewEngine creates an Engine. cache.SetConflictObserver should be called
// separately by the owner if conflict notification is wanted.
func NewEngine(localIP [4]byte, localMAC tcpip.MACAddr, cache *Cache, sender Sender) *Engine {
	return &Engine{LocalIP: localIP, LocalMAC: localMAC, Cache: cache, Sender: sender}
}

// SetTargetFilter installs the predicate used to decide whether an
// incoming request's target address is ours to answer.
func (e *Engine) SetTargetFilter(f func(ip [4]byte) bool) { e.targetFilter = f }

func (e *Engine) isOurs(ip [4]byte) bool {
	if e.targetFilter != nil {
		return e.targetFilter(ip)
	}
	return ip == e.LocalIP
}

// HandleInbound processes a received ARP packet: answering requests for
// our own address, and feeding replies/gratuitous announcements into the
// neighbor cache. Returns packets released from the pending queue once a
// pending entry resolves, for the caller to retransmit.
func (e *Engine) HandleInbound(pk *Packet) [][]byte {
	switch pk.Op {
	case OpRequest:
		if IsProbe(pk) {
			// RFC 5227 probe from a peer: it is neither answered (no
			// sender IP to answer to) nor recorded in the cache, and no
			// conflict is signalled for it.
			return nil
		}
		var released [][]byte
		if pk.SenderIP != ([4]byte{}) {
			released = e.Cache.Resolve(pk.SenderIP, pk.SenderMAC, e.conflicts(pk))
		}
		if e.isOurs(pk.TargetIP) {
			reply := &Packet{
				Op:        OpReply,
				SenderMAC: e.LocalMAC,
				SenderIP:  e.LocalIP,
				TargetMAC: pk.SenderMAC,
				TargetIP:  pk.SenderIP,
			}
			if e.Sender != nil {
				_ = e.Sender.SendARP(pk.SenderMAC, reply)
			}
		}
		return released
	case OpReply:
		return e.Cache.Resolve(pk.SenderIP, pk.SenderMAC, e.conflicts(pk))
	default:
		return nil
	}
}

// conflicts reports whether pk shows another host using our own address:
// the sender IP is ours but the sender MAC is not.
func (e *Engine) conflicts(pk *Packet) bool {
	return pk.SenderIP == e.LocalIP && pk.SenderMAC != e.LocalMAC
}

// Resolve starts (or continues) resolution of ip, queuing pkt. It
// transmits an initial ARP request immediately if this is a new
// INCOMPLETE entry.
func (e *Engine) Resolve(ip [4]byte, pkt []byte) (tcpip.MACAddr, bool) {
	if mac, ok := e.Cache.Lookup(ip); ok {
		e.Cache.TouchDelay(ip)
		return mac, true
	}
	existed := e.Cache.find(ip) != nil
	entry, already := e.Cache.StartResolve(ip, pkt)
	if entry == nil {
		return tcpip.MACUnspecifiedAddr, false
	}
	if !already && !existed {
		e.sendRequest(ip)
		e.Cache.MarkProbeSent(ip)
	}
	return tcpip.MACUnspecifiedAddr, false
}

func (e *Engine) sendRequest(ip [4]byte) {
	if e.Sender == nil {
		return
	}
	req := &Packet{
		Op:        OpRequest,
		SenderMAC: e.LocalMAC,
		SenderIP:  e.LocalIP,
		TargetMAC: tcpip.MACUnspecifiedAddr,
		TargetIP:  ip,
	}
	_ = e.Sender.SendARP(tcpip.MACBroadcastAddr, req)
}

// SendProbe transmits an RFC 5227 probe for ip: sender IP zeroed, used
// both for duplicate-address detection before claiming an address and for
// the PROBE-state cache retries driven by Cache.Tick.
func (e *Engine) SendProbe(ip [4]byte) {
	if e.Sender == nil {
		return
	}
	probe := &Packet{
		Op:        OpRequest,
		SenderMAC: e.LocalMAC,
		SenderIP:  [4]byte{},
		TargetMAC: tcpip.MACUnspecifiedAddr,
		TargetIP:  ip,
	}
	_ = e.Sender.SendARP(tcpip.MACBroadcastAddr, probe)
}

// Tick advances the cache's state timer and retransmits requests/probes
// for any entry that needs one (spec.md's 200ms ARP state-timer
// subdivision of the main periodic driver, §4.I).
func (e *Engine) Tick() {
	for _, ip := range e.Cache.Tick() {
		entry := e.Cache.find(ip)
		if entry == nil {
			continue
		}
		if entry.State == StateProbe {
			e.SendProbe(ip)
		} else {
			e.sendRequest(ip)
		}
		e.Cache.MarkProbeSent(ip)
	}
}
