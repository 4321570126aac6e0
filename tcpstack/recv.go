package tcpstack

// RecvOutcome tells the caller whether to emit an ACK after processing
// segment text, and whether it was out-of-order (spec.md §4.G.7: an
// out-of-order segment draws an immediate ACK "to accelerate loss
// recovery").
type RecvOutcome struct {
	SendACK bool
}

// ProcessSegmentText implements spec.md §4.G.7: trims the payload to the
// receive window, writes accepted bytes into the RX ring, updates SACK
// blocks, and advances rcvNxt when the segment is contiguous.
func ProcessSegmentText(t *TCB, seg *Segment) RecvOutcome {
	payload := seg.Payload
	seq := seg.Seq

	if seq.LessThan(t.RcvNxt) {
		skip := int(t.RcvNxt.Diff(seq))
		if skip > len(payload) {
			skip = len(payload)
		}
		payload = payload[skip:]
		seq = t.RcvNxt
	}

	windowEnd := t.RcvNxt.Add(int(t.RcvWnd))
	if end := seq.Add(len(payload)); end.GreaterThan(windowEnd) {
		over := int(end.Diff(windowEnd))
		if over > len(payload) {
			over = len(payload)
		}
		payload = payload[:len(payload)-over]
	}

	if len(payload) == 0 {
		return RecvOutcome{}
	}

	t.RxBuffer.WriteAt(seq, payload)

	if seq.GreaterThan(t.RcvNxt) {
		UpdateSACKBlocks(t, seq, seq.Add(len(payload)))
		return RecvOutcome{SendACK: true}
	}

	// Contiguous: advance rcvNxt by this segment, then absorb any SACK
	// blocks that are now contiguous too.
	advance := len(payload)
	t.RcvNxt = t.RcvNxt.Add(advance)
	t.RcvUser += advance
	t.RcvWnd -= uint32(advance)
	absorbContiguousSACK(t)
	PruneSACKBlocks(t)

	return RecvOutcome{SendACK: true}
}

// absorbContiguousSACK advances rcvNxt across SACK blocks that have
// become contiguous after the cumulative ACK point moved forward.
func absorbContiguousSACK(t *TCB) {
	for {
		advanced := false
		for i, b := range t.SACKBlocks {
			if b.Left.LessThanEq(t.RcvNxt) && b.Right.GreaterThan(t.RcvNxt) {
				n := int(b.Right.Diff(t.RcvNxt))
				t.RcvNxt = b.Right
				t.RcvUser += n
				t.RcvWnd -= uint32(n)
				t.SACKBlocks = append(t.SACKBlocks[:i], t.SACKBlocks[i+1:]...)
				advanced = true
				break
			}
		}
		if !advanced {
			return
		}
	}
}
