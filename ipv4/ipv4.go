// Package ipv4 implements the minimal IPv4 datagram framing spec.md §9
// leaves to "a glue layer": wrapping TCP segments for transmission over
// linklayer/ethernet, and the inbound protocol demux
// (TCP/ICMP/raw) that routes a parsed datagram to its owner.
//
// Grounded on the teacher's inetdiag byte-layout parsing style
// (fixed-offset binary.BigEndian field reads, a sentinel-error return on
// malformed input) and on Ethernet's own header parse/build pair for
// shape; the checksum reuses internal/bufchunk.InternetChecksum, the same
// primitive the TCP segment codec uses for its own checksum.
package ipv4

import (
	"encoding/binary"

	"github.com/netembed/tcpip/internal/bufchunk"
	"github.com/netembed/tcpip/tcpip"
)

const (
	// ProtoICMP, ProtoTCP and ProtoUDP are the IPv4 protocol-number
	// values this stack recognizes (spec.md §6.3's pseudo-header
	// protocol field, generalized to the full IP header).
	ProtoICMP = 1
	ProtoTCP  = 6
	ProtoUDP  = 17

	// MinHeaderLen is the fixed IPv4 header length with no options.
	MinHeaderLen = 20

	version4 = 4
)

// Header is a parsed IPv4 header (options are not retained; this stack
// never emits or requires them).
type Header struct {
	TOS      byte
	TotalLen int
	ID       uint16
	Flags    uint8
	FragOff  uint16
	TTL      byte
	Protocol byte
	Checksum uint16
	Src      [4]byte
	Dst      [4]byte
}

// DefaultTTL is used for every datagram this stack originates.
const DefaultTTL = 64

// ParseHeader decodes the fixed 20-byte IPv4 header from p, rejecting
// anything that is not version 4, carries options (IHL != 5, since this
// stack never needs to parse them), or whose header checksum fails.
func ParseHeader(p []byte) (*Header, []byte, error) {
	if len(p) < MinHeaderLen {
		return nil, nil, tcpip.ErrInvalidLength
	}
	verIHL := p[0]
	if verIHL>>4 != version4 {
		return nil, nil, tcpip.ErrInvalidProtocol
	}
	ihl := int(verIHL&0x0F) * 4
	if ihl != MinHeaderLen {
		return nil, nil, tcpip.ErrInvalidProtocol
	}
	if bufchunk.InternetChecksum(0, p[:MinHeaderLen]) != 0 {
		return nil, nil, tcpip.ErrWrongChecksum
	}
	h := &Header{
		TOS:      p[1],
		TotalLen: int(binary.BigEndian.Uint16(p[2:4])),
		ID:       binary.BigEndian.Uint16(p[4:6]),
		Flags:    p[6] >> 5,
		FragOff:  binary.BigEndian.Uint16(p[6:8]) & 0x1FFF,
		TTL:      p[8],
		Protocol: p[9],
		Checksum: binary.BigEndian.Uint16(p[10:12]),
	}
	copy(h.Src[:], p[12:16])
	copy(h.Dst[:], p[16:20])
	if h.TotalLen > len(p) || h.TotalLen < MinHeaderLen {
		return nil, nil, tcpip.ErrInvalidLength
	}
	return h, p[MinHeaderLen:h.TotalLen], nil
}

// BuildHeader encodes h plus payload into a full IPv4 datagram, computing
// the header checksum over the fixed 20-byte header (no options emitted).
func BuildHeader(h *Header, payload []byte) []byte {
	out := make([]byte, MinHeaderLen+len(payload))
	out[0] = (version4 << 4) | 5
	out[1] = h.TOS
	binary.BigEndian.PutUint16(out[2:4], uint16(MinHeaderLen+len(payload)))
	binary.BigEndian.PutUint16(out[4:6], h.ID)
	binary.BigEndian.PutUint16(out[6:8], uint16(h.Flags)<<13|h.FragOff)
	out[8] = h.TTL
	out[9] = h.Protocol
	binary.BigEndian.PutUint16(out[10:12], 0)
	copy(out[12:16], h.Src[:])
	copy(out[16:20], h.Dst[:])
	copy(out[MinHeaderLen:], payload)

	csum := bufchunk.InternetChecksum(0, out[:MinHeaderLen])
	binary.BigEndian.PutUint16(out[10:12], csum)
	return out
}

// PseudoHeaderSum returns the TCP/UDP pseudo-header partial checksum seed
// for a datagram with these addresses/protocol/length (RFC 793 §3.1),
// matching tcpstack.PseudoHeaderSum's arithmetic so the two stay in sync.
func PseudoHeaderSum(src, dst [4]byte, protocol byte, length int) uint32 {
	var sum uint32
	sum += uint32(src[0])<<8 | uint32(src[1])
	sum += uint32(src[2])<<8 | uint32(src[3])
	sum += uint32(dst[0])<<8 | uint32(dst[1])
	sum += uint32(dst[2])<<8 | uint32(dst[3])
	sum += uint32(protocol)
	sum += uint32(length)
	return sum
}

// ProtoHandler is invoked for each inbound datagram addressed to a local
// interface address, keyed by protocol number (spec.md §4.C's EtherType
// ProtoHandler, one layer up).
type ProtoHandler func(h *Header, payload []byte)

// Demux dispatches an inbound IPv4 datagram by protocol number to a
// registered handler, dropping (and letting the caller count) anything
// with no registered handler.
type Demux struct {
	handlers map[byte]ProtoHandler
}

// NewDemux creates an empty protocol demux table.
func NewDemux() *Demux {
	return &Demux{handlers: make(map[byte]ProtoHandler)}
}

// RegisterHandler installs the handler for protocol p, replacing any
// previous registration.
func (d *Demux) RegisterHandler(p byte, h ProtoHandler) {
	d.handlers[p] = h
}

// Deliver parses frame as an IPv4 datagram and dispatches it to the
// registered handler for its protocol number. It reports whether a
// handler was found and invoked.
func (d *Demux) Deliver(frame []byte) (bool, error) {
	h, payload, err := ParseHeader(frame)
	if err != nil {
		return false, err
	}
	handler, ok := d.handlers[h.Protocol]
	if !ok {
		return false, nil
	}
	handler(h, payload)
	return true, nil
}
