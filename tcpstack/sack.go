package tcpstack

import "github.com/netembed/tcpip/tcpip"

// UpdateSACKBlocks implements spec.md §4.G.8: merge a newly received
// [left, right) range into the existing SACK blocks, keeping at most
// SACKMaxBlocks, newest-first, all strictly above rcvNxt.
func UpdateSACKBlocks(t *TCB, left, right tcpip.Seq) {
	if !right.GreaterThan(t.RcvNxt) {
		return
	}
	if left.LessThanEq(t.RcvNxt) {
		left = t.RcvNxt.Add(1)
	}
	if !right.GreaterThan(left) {
		return
	}

	merged := SACKBlock{Left: left, Right: right}
	var kept []SACKBlock
	for _, b := range t.SACKBlocks {
		if overlaps(b, merged) {
			if b.Left.LessThan(merged.Left) {
				merged.Left = b.Left
			}
			if b.Right.GreaterThan(merged.Right) {
				merged.Right = b.Right
			}
			continue
		}
		kept = append(kept, b)
	}

	t.SACKBlocks = append([]SACKBlock{merged}, kept...)
	if len(t.SACKBlocks) > SACKMaxBlocks {
		t.SACKBlocks = t.SACKBlocks[:SACKMaxBlocks]
	}
}

func overlaps(a, b SACKBlock) bool {
	return a.Left.LessThanEq(b.Right) && b.Left.LessThanEq(a.Right)
}

// PruneSACKBlocks drops any block that has fallen at or below the new
// rcvNxt after cumulative ACK advancement (spec.md's invariant "all
// edges strictly above rcvNxt").
func PruneSACKBlocks(t *TCB) {
	var kept []SACKBlock
	for _, b := range t.SACKBlocks {
		if b.Right.GreaterThan(t.RcvNxt) {
			if b.Left.LessThanEq(t.RcvNxt) {
				b.Left = t.RcvNxt.Add(1)
			}
			kept = append(kept, b)
		}
	}
	t.SACKBlocks = kept
}
