package arp

import (
	"encoding/binary"

	"github.com/netembed/tcpip/tcpip"
)

// Wire format constants (spec.md §6.1, RFC 826 / RFC 5227).
const (
	HeaderLen = 28

	HTypeEthernet = 1
	PTypeIPv4     = 0x0800

	OpRequest = 1
	OpReply   = 2

	EtherType = 0x0806
)

// Packet is the parsed form of an ARP message.
type Packet struct {
	Op       uint16
	SenderMAC tcpip.MACAddr
	SenderIP  [4]byte
	TargetMAC tcpip.MACAddr
	TargetIP  [4]byte
}

// Parse decodes an ARP packet from p, validating hardware/protocol type
// and address lengths (spec.md §4.D).
func Parse(p []byte) (*Packet, error) {
	if len(p) < HeaderLen {
		return nil, tcpip.ErrInvalidLength
	}
	htype := binary.BigEndian.Uint16(p[0:2])
	ptype := binary.BigEndian.Uint16(p[2:4])
	hlen := p[4]
	plen := p[5]
	if htype != HTypeEthernet || ptype != PTypeIPv4 || hlen != 6 || plen != 4 {
		return nil, tcpip.ErrInvalidProtocol
	}
	pk := &Packet{Op: binary.BigEndian.Uint16(p[6:8])}
	copy(pk.SenderMAC[:], p[8:14])
	copy(pk.SenderIP[:], p[14:18])
	copy(pk.TargetMAC[:], p[18:24])
	copy(pk.TargetIP[:], p[24:28])
	return pk, nil
}

// Build encodes an ARP packet to wire form.
func Build(pk *Packet) []byte {
	out := make([]byte, HeaderLen)
	binary.BigEndian.PutUint16(out[0:2], HTypeEthernet)
	binary.BigEndian.PutUint16(out[2:4], PTypeIPv4)
	out[4] = 6
	out[5] = 4
	binary.BigEndian.PutUint16(out[6:8], pk.Op)
	copy(out[8:14], pk.SenderMAC[:])
	copy(out[14:18], pk.SenderIP[:])
	copy(out[18:24], pk.TargetMAC[:])
	copy(out[24:28], pk.TargetIP[:])
	return out
}

// IsProbe reports whether pk is an RFC 5227 probe: sender IP all-zero,
// target IP the address under test.
func IsProbe(pk *Packet) bool {
	return pk.SenderIP == [4]byte{}
}

// IsGratuitous reports whether pk is a gratuitous ARP: sender and target
// IP equal, announcing/refreshing sender's own mapping.
func IsGratuitous(pk *Packet) bool {
	return pk.SenderIP == pk.TargetIP && pk.SenderIP != [4]byte{}
}
