// Package netdevice wires one physical netiface.Interface into a working
// dual-stack (ARP + IPv4 + TCP) device: the glue spec.md §9 leaves
// unspecified between "a NIC abstraction exists" and "a TCP engine
// exists." It owns the VirtualInterface's EtherType registrations, the
// ARP Engine's Sender, the IPv4 demux's TCP registration, and the
// tcpstack.Stack's RawSender -- each adapting one collaborator interface
// to the next layer down, the way the teacher's collector package
// adapts a raw netlink socket into typed ParsedMessage values for
// saver.Saver to consume.
package netdevice

import (
	"time"

	"github.com/netembed/tcpip/internal/bufchunk"
	"github.com/netembed/tcpip/ipv4"
	"github.com/netembed/tcpip/linklayer/arp"
	"github.com/netembed/tcpip/linklayer/ethernet"
	"github.com/netembed/tcpip/netiface"
	"github.com/netembed/tcpip/rawsocket"
	"github.com/netembed/tcpip/tcpip"
	"github.com/netembed/tcpip/tcpstack"
)

// Device binds together every layer addressed to one local IPv4 address
// on one physical interface.
type Device struct {
	VIF   *ethernet.VirtualInterface
	ARP   *arp.Engine
	IP    *ipv4.Demux
	Stack *tcpstack.Stack
	Raw   *rawsocket.Demux

	localAddr [4]byte
}

// New builds a Device around iface: registers ARP and IPv4 EtherType
// handlers on vif, binds the ARP engine's Sender to vif, and binds the
// TCP stack's RawSender through ipv4/Ethernet framing back to vif.
//
// The ARP engine uses iface's own neighbor cache (iface.Neigh);
// portSeed/secretSeed parameterize the TCP stack's ephemeral port
// allocator / RFC 6528 ISN secret respectively, per spec.md
// §4.G.14/§4.G.3.
func New(iface *netiface.Interface, localAddr [4]byte, portSeed uint32, secretSeed []byte) *Device {
	vif := ethernet.Bind(iface)
	d := &Device{VIF: vif, IP: ipv4.NewDemux(), Raw: rawsocket.NewDemux(), localAddr: localAddr}

	d.ARP = arp.NewEngine(localAddr, iface.LogicalMAC(), iface.Neigh, &arpSender{vif: vif})
	d.Stack = tcpstack.NewStack(localAddr, portSeed, secretSeed, &ipSender{dev: d})

	vif.RegisterHandler(ethernet.EtherTypeARP, d.handleARPFrame)
	vif.RegisterHandler(ethernet.EtherTypeIPv4, d.handleIPv4Frame)
	vif.RegisterRaw(d.Raw)
	d.IP.RegisterHandler(ipv4.ProtoTCP, d.handleTCPDatagram)

	iface.BindOnFrame(func(frame *bufchunk.Buffer) {
		_ = ethernet.Demux(vif, nil, frame.ReadAt(0, frame.TotalLength()))
	})
	return d
}

// handleARPFrame adapts ethernet.ProtoHandler to arp.Engine.HandleInbound,
// retransmitting any packets the cache's pending queue releases once the
// resulting resolution completes.
func (d *Device) handleARPFrame(vif *ethernet.VirtualInterface, payload *bufchunk.Buffer, srcMAC tcpip.MACAddr) {
	pk, err := arp.Parse(payload.ReadAt(0, payload.TotalLength()))
	if err != nil {
		return
	}
	for _, pending := range d.ARP.HandleInbound(pk) {
		if mac, ok := d.ARP.Cache.Lookup(pk.SenderIP); ok {
			_ = d.VIF.Send(mac, ethernet.EtherTypeIPv4, bufchunk.FromBytes(pending))
		}
	}
}

// handleIPv4Frame adapts ethernet.ProtoHandler to ipv4.Demux.Deliver,
// fanning the raw datagram out to RAW_IP sockets before protocol
// dispatch (spec.md §4.F's raw path sees traffic independent of whether
// a protocol handler exists for it).
func (d *Device) handleIPv4Frame(vif *ethernet.VirtualInterface, payload *bufchunk.Buffer, srcMAC tcpip.MACAddr) {
	raw := payload.ReadAt(0, payload.TotalLength())
	if hdr, _, err := ipv4.ParseHeader(raw); err == nil {
		d.Raw.DeliverIP(vif.Iface.Name, hdr.Protocol, raw)
	}
	_, _ = d.IP.Deliver(raw)
}

// handleTCPDatagram adapts ipv4.ProtoHandler to tcpstack.Stack.Deliver,
// parsing the TCP segment and sending back whatever reply (typically an
// RST) the Stack produces.
func (d *Device) handleTCPDatagram(h *ipv4.Header, payload []byte) {
	sum := tcpstack.PseudoHeaderSum(h.Src, h.Dst, len(payload))
	if bufchunk.InternetChecksum(sum, payload) != 0 {
		return
	}
	seg, err := tcpstack.ParseSegment(payload)
	if err != nil {
		return
	}
	// Stack.Deliver's reply (an RST for an unknown four-tuple) is built
	// with no socket behind it, so unlike every other transmit path in
	// tcpstack it never passes through a socketSender to get its ports
	// stamped -- do that here from the inbound segment's ports instead.
	if reply := d.Stack.Deliver(h.Dst, h.Src, seg, time.Now()); reply != nil {
		reply.SrcPort = seg.DstPort
		reply.DstPort = seg.SrcPort
		(&ipSender{dev: d}).SendSegment(h.Dst, h.Src, reply, nil)
	}
}

// Tick drives this device's ARP state timer, invoked from nettimer's
// ARP subdivision callback.
func (d *Device) Tick() {
	d.ARP.Tick()
}

// arpSender adapts ethernet.VirtualInterface.Send to arp.Sender.
type arpSender struct {
	vif *ethernet.VirtualInterface
}

func (s *arpSender) SendARP(dstMAC tcpip.MACAddr, pk *arp.Packet) error {
	return s.vif.Send(dstMAC, ethernet.EtherTypeARP, bufchunk.FromBytes(arp.Build(pk)))
}

// ipSender adapts the Device's ARP-resolved Ethernet send path to
// tcpstack.RawSender: builds the IPv4 header around the TCP segment,
// resolves the destination's link-layer address (queuing the segment
// behind an in-flight ARP resolution if necessary), and transmits.
type ipSender struct {
	dev *Device
}

func (s *ipSender) SendSegment(localAddr, remoteAddr [4]byte, seg *tcpstack.Segment, payload []byte) {
	// BuildSegment's own header+options length isn't known until after a
	// build (options vary with the segment's flags), so the real wire
	// length needed for the pseudo-header is learned from a first pass
	// and only the second pass's checksum is used.
	probe := tcpstack.BuildSegment(seg, 0, payload)
	wire := tcpstack.BuildSegment(seg, tcpstack.PseudoHeaderSum(localAddr, remoteAddr, len(probe)), payload)
	datagram := ipv4.BuildHeader(&ipv4.Header{
		TTL: ipv4.DefaultTTL, Protocol: ipv4.ProtoTCP, Src: localAddr, Dst: remoteAddr,
	}, wire)

	if mac, ok := s.dev.ARP.Cache.Lookup(remoteAddr); ok {
		_ = s.dev.VIF.Send(mac, ethernet.EtherTypeIPv4, bufchunk.FromBytes(datagram))
		return
	}
	s.dev.ARP.Resolve(remoteAddr, datagram)
}
