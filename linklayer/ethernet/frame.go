// Package ethernet implements the Ethernet frame path of spec.md §4.C:
// parsing and building of 802.1Q/802.1ad tagged frames, CRC handling, and
// the inbound/outbound pipeline binding a NIC driver to virtual
// interfaces.
//
// Header parse/build is grounded on other_examples'
// soypat-lneto internet-stack-ethernet.go (Demux/Encapsulate shape),
// adapted here into pure functions plus a stateful Codec since no example
// repo's go.mod covers Ethernet framing directly.
package ethernet

import (
	"encoding/binary"

	"github.com/netembed/tcpip/tcpip"
)

const (
	MinFrameLen = 60 // excluding CRC
	MaxFrameLen = 1514
	CRCLen      = 4

	TPIDVLAN = 0x8100
	TPIDVMAN = 0x88A8

	EtherTypeIPv4 = 0x0800
	EtherTypeARP  = 0x0806
	EtherTypeIPv6 = 0x86DD

	// MTU is the boundary spec.md §4.C/§6.1 draws between a real EtherType
	// and an 802.2 LLC length field: any value at or below it denotes LLC
	// encapsulation rather than a protocol identifier.
	MTU = 1500
)

// Header is the parsed form of an Ethernet II frame, with up to one VMAN
// (802.1ad) tag and one VLAN (802.1Q) tag, outermost first.
type Header struct {
	Dst tcpip.MACAddr
	Src tcpip.MACAddr

	HasVMAN bool
	VMANID  uint16 // 12-bit VLAN identifier carried in the S-TAG

	HasVLAN bool
	VLANID  uint16 // 12-bit VLAN identifier carried in the C-TAG

	EtherType uint16
	HeaderLen int // total bytes consumed by Dst/Src/tags/EtherType
}

// ParseHeader decodes an Ethernet header from the front of p, including
// any 802.1ad/802.1Q tags. A second 802.1Q tag nested inside the first is
// rejected with ErrInvalidProtocol. It does not touch payload or trailing
// CRC.
func ParseHeader(p []byte) (*Header, error) {
	if len(p) < 14 {
		return nil, tcpip.ErrInvalidLength
	}
	h := &Header{}
	copy(h.Dst[:], p[0:6])
	copy(h.Src[:], p[6:12])
	off := 12

	tpid := binary.BigEndian.Uint16(p[off : off+2])
	if tpid == TPIDVMAN {
		if len(p) < off+4 {
			return nil, tcpip.ErrInvalidLength
		}
		h.HasVMAN = true
		h.VMANID = binary.BigEndian.Uint16(p[off+2:off+4]) & 0x0FFF
		off += 4
		tpid = binary.BigEndian.Uint16(p[off : off+2])
	}
	if tpid == TPIDVLAN {
		if len(p) < off+4 {
			return nil, tcpip.ErrInvalidLength
		}
		h.HasVLAN = true
		h.VLANID = binary.BigEndian.Uint16(p[off+2:off+4]) & 0x0FFF
		off += 4
	}
	if len(p) < off+2 {
		return nil, tcpip.ErrInvalidLength
	}
	h.EtherType = binary.BigEndian.Uint16(p[off : off+2])
	if h.HasVLAN && h.EtherType == TPIDVLAN {
		return nil, tcpip.ErrInvalidProtocol
	}
	off += 2
	h.HeaderLen = off
	return h, nil
}

// BuildHeader encodes h to wire form.
func BuildHeader(h *Header) []byte {
	n := 14
	if h.HasVMAN {
		n += 4
	}
	if h.HasVLAN {
		n += 4
	}
	out := make([]byte, n)
	copy(out[0:6], h.Dst[:])
	copy(out[6:12], h.Src[:])
	off := 12
	if h.HasVMAN {
		binary.BigEndian.PutUint16(out[off:off+2], TPIDVMAN)
		binary.BigEndian.PutUint16(out[off+2:off+4], h.VMANID&0x0FFF)
		off += 4
	}
	if h.HasVLAN {
		binary.BigEndian.PutUint16(out[off:off+2], TPIDVLAN)
		binary.BigEndian.PutUint16(out[off+2:off+4], h.VLANID&0x0FFF)
		off += 4
	}
	binary.BigEndian.PutUint16(out[off:off+2], h.EtherType)
	return out
}

// PadToMin pads frame with zero bytes up to MinFrameLen, per spec.md
// §4.C's auto-padding behavior when the driver doesn't do it in hardware.
func PadToMin(frame []byte) []byte {
	if len(frame) >= MinFrameLen {
		return frame
	}
	out := make([]byte, MinFrameLen)
	copy(out, frame)
	return out
}
