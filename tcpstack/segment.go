package tcpstack

import (
	"encoding/binary"

	"github.com/netembed/tcpip/internal/bufchunk"
	"github.com/netembed/tcpip/tcpip"
)

// Flag bits (spec.md §6.3: "URG,ACK,PSH,RST,SYN,FIN in low-order order").
const (
	FlagFIN = 1 << 0
	FlagSYN = 1 << 1
	FlagRST = 1 << 2
	FlagPSH = 1 << 3
	FlagACK = 1 << 4
	FlagURG = 1 << 5
)

// TCP option kinds (spec.md §6.3).
const (
	OptEnd          = 0
	OptNOP          = 1
	OptMSS          = 2
	OptWindowScale  = 3
	OptSACKPermit   = 4
	OptSACK         = 5
	OptTimestamp    = 8
)

const headerLen = 20

// Segment is a parsed TCP segment (header fields plus payload view).
type Segment struct {
	SrcPort, DstPort uint16
	Seq, Ack         tcpip.Seq
	DataOffset       int // in 4-byte words
	Flags            uint8
	Window           uint16
	Checksum         uint16
	Urgent           uint16

	MSS            uint16
	HasMSS         bool
	SACKPermitted  bool
	SACKBlocks     []SACKBlock

	Payload []byte
}

func (s *Segment) HasFlag(f uint8) bool { return s.Flags&f != 0 }

// Len is the segment's "logical length" for acceptability/ACK arithmetic:
// payload bytes plus one for SYN plus one for FIN (RFC 793 §3.3).
func (s *Segment) Len() int {
	n := len(s.Payload)
	if s.HasFlag(FlagSYN) {
		n++
	}
	if s.HasFlag(FlagFIN) {
		n++
	}
	return n
}

// ParseSegment decodes a TCP segment from p (header + options + payload),
// not including the IP pseudo-header.
func ParseSegment(p []byte) (*Segment, error) {
	if len(p) < headerLen {
		return nil, tcpip.ErrInvalidLength
	}
	seg := &Segment{
		SrcPort:    binary.BigEndian.Uint16(p[0:2]),
		DstPort:    binary.BigEndian.Uint16(p[2:4]),
		Seq:        tcpip.Seq(binary.BigEndian.Uint32(p[4:8])),
		Ack:        tcpip.Seq(binary.BigEndian.Uint32(p[8:12])),
		DataOffset: int(p[12] >> 4),
		Flags:      p[13],
		Window:     binary.BigEndian.Uint16(p[14:16]),
		Checksum:   binary.BigEndian.Uint16(p[16:18]),
		Urgent:     binary.BigEndian.Uint16(p[18:20]),
	}
	hlen := seg.DataOffset * 4
	if hlen < headerLen || hlen > len(p) {
		return nil, tcpip.ErrInvalidLength
	}
	if err := parseOptions(seg, p[headerLen:hlen]); err != nil {
		return nil, err
	}
	seg.Payload = p[hlen:]
	return seg, nil
}

func parseOptions(seg *Segment, opts []byte) error {
	i := 0
	for i < len(opts) {
		kind := opts[i]
		switch kind {
		case OptEnd:
			return nil
		case OptNOP:
			i++
			continue
		}
		if i+1 >= len(opts) {
			return tcpip.ErrInvalidLength
		}
		l := int(opts[i+1])
		if l < 2 || i+l > len(opts) {
			return tcpip.ErrInvalidLength
		}
		val := opts[i+2 : i+l]
		switch kind {
		case OptMSS:
			if len(val) == 2 {
				seg.MSS = binary.BigEndian.Uint16(val)
				seg.HasMSS = true
			}
		case OptSACKPermit:
			seg.SACKPermitted = true
		case OptSACK:
			for j := 0; j+8 <= len(val); j += 8 {
				seg.SACKBlocks = append(seg.SACKBlocks, SACKBlock{
					Left:  tcpip.Seq(binary.BigEndian.Uint32(val[j : j+4])),
					Right: tcpip.Seq(binary.BigEndian.Uint32(val[j+4 : j+8])),
				})
			}
		}
		i += l
	}
	return nil
}

// buildOptions encodes the options for an outbound segment, 4-byte
// aligned with NOP padding (spec.md §4.G.4, §6.3).
func buildOptions(mss uint16, sackPermitted bool, sackBlocks []SACKBlock) []byte {
	var out []byte
	if mss != 0 {
		out = append(out, OptMSS, 4, byte(mss>>8), byte(mss))
	}
	if sackPermitted {
		out = append(out, OptSACKPermit, 2)
	}
	if len(sackBlocks) > 0 {
		out = append(out, OptSACK, byte(2+8*len(sackBlocks)))
		for _, b := range sackBlocks {
			var buf [8]byte
			binary.BigEndian.PutUint32(buf[0:4], uint32(b.Left))
			binary.BigEndian.PutUint32(buf[4:8], uint32(b.Right))
			out = append(out, buf[:]...)
		}
	}
	for len(out)%4 != 0 {
		out = append(out, OptNOP)
	}
	return out
}

// BuildSegment encodes hdr fields, options and payload to wire form, with
// checksum computed over the given pseudo-header initial sum (spec.md
// §4.G.4, §6.3).
func BuildSegment(seg *Segment, pseudoHeaderSum uint32, payload []byte) []byte {
	opts := buildOptions(boolMSS(seg), boolSACKPerm(seg), seg.SACKBlocks)
	hlen := headerLen + len(opts)
	out := make([]byte, hlen+len(payload))
	binary.BigEndian.PutUint16(out[0:2], seg.SrcPort)
	binary.BigEndian.PutUint16(out[2:4], seg.DstPort)
	binary.BigEndian.PutUint32(out[4:8], uint32(seg.Seq))
	ack := uint32(0)
	if seg.HasFlag(FlagACK) {
		ack = uint32(seg.Ack)
	}
	binary.BigEndian.PutUint32(out[8:12], ack)
	out[12] = byte((hlen / 4) << 4)
	out[13] = seg.Flags
	binary.BigEndian.PutUint16(out[14:16], seg.Window)
	binary.BigEndian.PutUint16(out[18:20], 0) // urgent ptr, always 0
	copy(out[headerLen:hlen], opts)
	copy(out[hlen:], payload)

	binary.BigEndian.PutUint16(out[16:18], 0)
	csum := bufchunk.InternetChecksum(pseudoHeaderSum, out)
	binary.BigEndian.PutUint16(out[16:18], csum)
	return out
}

func boolMSS(seg *Segment) uint16 {
	if seg.HasFlag(FlagSYN) {
		return seg.MSS
	}
	return 0
}

func boolSACKPerm(seg *Segment) bool {
	return seg.HasFlag(FlagSYN) && seg.SACKPermitted
}

// PseudoHeaderSum computes the IPv4 pseudo-header partial checksum (RFC
// 793 §3.1) over src/dst addresses, protocol 6 (TCP), and the segment
// length.
func PseudoHeaderSum(src, dst [4]byte, length int) uint32 {
	var sum uint32
	sum += uint32(src[0])<<8 | uint32(src[1])
	sum += uint32(src[2])<<8 | uint32(src[3])
	sum += uint32(dst[0])<<8 | uint32(dst[1])
	sum += uint32(dst[2])<<8 | uint32(dst[3])
	sum += 6 // protocol
	sum += uint32(length)
	return sum
}
