package ethernet

import (
	"github.com/netembed/tcpip/internal/bufchunk"
	"github.com/netembed/tcpip/internal/metrics"
	"github.com/netembed/tcpip/netiface"
	"github.com/netembed/tcpip/tcpip"
)

// ProtoHandler receives demultiplexed frame payloads for one EtherType on
// one virtual interface (spec.md §4.C "per-virtual-interface ... EtherType
// dispatch"). ARP and the IP/TCP stack both implement this.
type ProtoHandler func(vif *VirtualInterface, payload *bufchunk.Buffer, srcMAC tcpip.MACAddr)

// RawReceiver is implemented by the raw-socket layer to receive every
// frame (RAW_ETH) or every frame of one EtherType fanned out to it,
// independent of the protocol-specific dispatch above.
type RawReceiver interface {
	DeliverEthernet(vif *VirtualInterface, frame *bufchunk.Buffer)
}

// VirtualInterface binds a netiface.Interface (physical or logical) to a
// set of protocol handlers and raw-socket receivers (spec.md §4.C).
type VirtualInterface struct {
	Iface *netiface.Interface

	handlers map[uint16]ProtoHandler
	raw      []RawReceiver

	// softCRC is set when the driver does not declare AutoCRCCalc, i.e.
	// when the outbound CRC has to be computed in software.
	softCRC bool
}

// Bind creates a VirtualInterface over iface. It does not install an
// inbound frame callback: the caller binds one with iface.BindOnFrame that
// hands frames to Demux, and logical interfaces are reached through
// Demux's children map.
func Bind(iface *netiface.Interface) *VirtualInterface {
	vif := &VirtualInterface{
		Iface:    iface,
		handlers: make(map[uint16]ProtoHandler),
		softCRC:  !iface.Features.AutoCRCCalc,
	}
	return vif
}

// RegisterHandler installs the protocol handler for etherType.
func (vif *VirtualInterface) RegisterHandler(etherType uint16, h ProtoHandler) {
	vif.handlers[etherType] = h
}

// RegisterRaw attaches a raw-socket receiver that sees every inbound
// frame on this virtual interface.
func (vif *VirtualInterface) RegisterRaw(r RawReceiver) {
	vif.raw = append(vif.raw, r)
}

// Demux is the inbound frame pipeline of spec.md §4.C: CRC verify/strip,
// VMAN-then-VLAN peel, MAC filter, EtherType dispatch, and raw-socket
// fan-out. Switch-port untagging is not performed. root is the physical
// interface's VirtualInterface; children maps VLAN/VMAN id to the logical
// VirtualInterface it demuxes to (ids with no entry fall through to root
// itself).
func Demux(root *VirtualInterface, children map[uint16]*VirtualInterface, frame []byte) error {
	name := root.Iface.Name
	if !root.Iface.Features.AutoCRCVerif && len(frame) >= CRCLen {
		data, crc := frame[:len(frame)-CRCLen], frame[len(frame)-CRCLen:]
		want := bufchunk.CRC32(data)
		got := uint32(crc[0]) | uint32(crc[1])<<8 | uint32(crc[2])<<16 | uint32(crc[3])<<24
		if want != got {
			metrics.IfInErrors.WithLabelValues(name).Inc()
			return tcpip.ErrWrongChecksum
		}
	}
	if !root.Iface.Features.AutoCRCStrip && !root.Iface.Features.AutoCRCVerif && len(frame) >= CRCLen {
		frame = frame[:len(frame)-CRCLen]
	}

	hdr, err := ParseHeader(frame)
	if err != nil {
		metrics.IfInErrors.WithLabelValues(name).Inc()
		return err
	}
	metrics.IfInOctets.WithLabelValues(name).Add(float64(len(frame)))

	target := root
	if hdr.HasVMAN {
		if c, ok := children[hdr.VMANID]; ok {
			target = c
		}
	} else if hdr.HasVLAN {
		if c, ok := children[hdr.VLANID]; ok {
			target = c
		}
	}

	if !target.Iface.Filter.AcceptsDestination(target.Iface.LogicalMAC(), hdr.Dst) {
		metrics.IfInDiscards.WithLabelValues(name).Inc()
		return nil
	}
	if hdr.Dst == target.Iface.LogicalMAC() {
		metrics.IfInUcastPkts.WithLabelValues(name).Inc()
	} else {
		metrics.IfInNUcastPkts.WithLabelValues(name).Inc()
	}

	payload := bufchunk.FromBytes(frame[hdr.HeaderLen:])

	for _, r := range target.raw {
		r.DeliverEthernet(target, bufchunk.FromBytes(frame))
	}

	h, ok := target.handlers[hdr.EtherType]
	if !ok {
		metrics.IfInUnknownProtos.WithLabelValues(name).Inc()
		return tcpip.ErrProtocolUnreachable
	}
	h(target, payload, hdr.Src)
	return nil
}

// Send builds a frame around payload addressed to dst with the given
// EtherType, applying VLAN/VMAN tagging, padding and CRC append as the
// driver's Features require, and transmits it.
func (vif *VirtualInterface) Send(dst tcpip.MACAddr, etherType uint16, payload *bufchunk.Buffer) error {
	hdr := &Header{
		Dst:       dst,
		Src:       vif.Iface.LogicalMAC(),
		EtherType: etherType,
	}
	if vif.Iface.VMANID != 0 {
		hdr.HasVMAN = true
		hdr.VMANID = uint16(vif.Iface.VMANID)
	}
	if vif.Iface.VLANID != 0 {
		hdr.HasVLAN = true
		hdr.VLANID = uint16(vif.Iface.VLANID)
	}
	out := bufchunk.FromBytes(BuildHeader(hdr))
	out.Concat(payload, 0, payload.TotalLength())

	frame := out.ReadAt(0, out.TotalLength())
	if !vif.Iface.Features.AutoPadding {
		frame = PadToMin(frame)
	}
	if !vif.Iface.Features.AutoCRCCalc {
		crc := bufchunk.CRC32(frame)
		frame = append(frame, byte(crc), byte(crc>>8), byte(crc>>16), byte(crc>>24))
	}

	metrics.IfOutOctets.WithLabelValues(vif.Iface.Name).Add(float64(len(frame)))
	if dst.IsBroadcast() || dst.IsMulticast() {
		metrics.IfOutNUcastPkts.WithLabelValues(vif.Iface.Name).Inc()
	} else {
		metrics.IfOutUcastPkts.WithLabelValues(vif.Iface.Name).Inc()
	}
	return vif.Iface.Send(bufchunk.FromBytes(frame))
}
