package tcpip

// Seq is a TCP sequence or acknowledgment number. All comparisons must be
// done modulo 2^32 with signed-difference semantics (spec.md §3 Global
// invariants), never with plain Go < or >.
type Seq uint32

// Diff returns a-b as a signed 32-bit quantity, i.e. the number of bytes by
// which a is "ahead of" b on the sequence-number circle. A negative result
// means a is behind b.
func (a Seq) Diff(b Seq) int32 {
	return int32(a - b)
}

// LessThan reports whether a precedes b on the sequence circle.
func (a Seq) LessThan(b Seq) bool { return a.Diff(b) < 0 }

// LessThanEq reports whether a precedes or equals b on the sequence circle.
func (a Seq) LessThanEq(b Seq) bool { return a.Diff(b) <= 0 }

// GreaterThan reports whether a follows b on the sequence circle.
func (a Seq) GreaterThan(b Seq) bool { return a.Diff(b) > 0 }

// GreaterThanEq reports whether a follows or equals b on the sequence circle.
func (a Seq) GreaterThanEq(b Seq) bool { return a.Diff(b) >= 0 }

// Add returns a+n.
func (a Seq) Add(n int) Seq { return a + Seq(n) }

// InWindow reports whether seq lies in [start, start+size) on the sequence
// circle, per the RFC 793 acceptability test (spec.md §4.G.5).
func InWindow(seq, start Seq, size uint32) bool {
	if size == 0 {
		return seq == start
	}
	return seq.GreaterThanEq(start) && seq.LessThan(start.Add(int(size)))
}

// Min32 and Max32 are small signed-diff-aware helpers used throughout the
// congestion-control and window code.
func Min32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func Max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

func MinU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func MaxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
