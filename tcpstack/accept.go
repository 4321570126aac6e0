package tcpstack

import "github.com/netembed/tcpip/tcpip"

// Acceptable implements the RFC 793 §3.3 acceptability test of spec.md
// §4.G.5, given the segment's sequence number, logical length, and the
// TCB's current receive window.
func Acceptable(t *TCB, seq tcpip.Seq, length int) bool {
	w := t.RcvWnd
	switch {
	case length == 0 && w == 0:
		return seq == t.RcvNxt
	case length == 0 && w != 0:
		return seq.GreaterThanEq(t.RcvNxt) && seq.LessThan(t.RcvNxt.Add(int(w)))
	case length != 0 && w == 0:
		return false
	default:
		left := seq
		right := seq.Add(length - 1)
		return tcpip.InWindow(left, t.RcvNxt, w) || tcpip.InWindow(right, t.RcvNxt, w)
	}
}

// bareACK builds the ACK sent when a segment fails the acceptability test
// and RST was not set (spec.md §4.G.5): an unacceptable non-RST segment
// draws a bare ACK advertising the current send state, not an RST; see
// RSTForUnknownFourTuple for the true-RST case.
func bareACK(t *TCB) *Segment {
	return &Segment{
		Seq:    t.SndNxt,
		Ack:    t.RcvNxt,
		Flags:  FlagACK,
		Window: clampWindow(t.RcvWnd),
	}
}

// RSTForSYNInWindow builds the RST reply to an in-window SYN, an error
// per spec.md §4.G.5.
func RSTForSYNInWindow(t *TCB, seg *Segment) *Segment {
	if seg.HasFlag(FlagACK) {
		return &Segment{Seq: seg.Ack, Flags: FlagRST}
	}
	return &Segment{
		Seq:   0,
		Ack:   seg.Seq.Add(seg.Len()),
		Flags: FlagRST | FlagACK,
	}
}

// RSTForUnknownFourTuple builds the RST sent for a segment addressed to
// no known socket (spec.md §7).
func RSTForUnknownFourTuple(seg *Segment) *Segment {
	if seg.HasFlag(FlagRST) {
		return nil
	}
	if seg.HasFlag(FlagACK) {
		return &Segment{Seq: seg.Ack, Flags: FlagRST}
	}
	return &Segment{
		Seq:   0,
		Ack:   seg.Seq.Add(seg.Len()),
		Flags: FlagRST | FlagACK,
	}
}

func clampWindow(w uint32) uint16 {
	if w > 0xFFFF {
		return 0xFFFF
	}
	return uint16(w)
}
