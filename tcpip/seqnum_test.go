package tcpip

import "testing"

func TestDiffWrapsAroundCircle(t *testing.T) {
	var a, b Seq = 10, 0xFFFFFFF0
	if got := a.Diff(b); got != 32 {
		t.Fatalf("expected wraparound diff 32, got %d", got)
	}
}

func TestLessThanAndGreaterThanAcrossWrap(t *testing.T) {
	var before Seq = 0xFFFFFFF0
	var after Seq = 10
	if !before.LessThan(after) {
		t.Fatal("expected before to be LessThan after across the wraparound")
	}
	if !after.GreaterThan(before) {
		t.Fatal("expected after to be GreaterThan before across the wraparound")
	}
}

func TestLessThanEqAndGreaterThanEqAtEquality(t *testing.T) {
	var a Seq = 500
	if !a.LessThanEq(a) || !a.GreaterThanEq(a) {
		t.Fatal("expected a sequence number to be both <= and >= itself")
	}
}

func TestAddWraps(t *testing.T) {
	var a Seq = 0xFFFFFFFE
	if got := a.Add(4); got != 2 {
		t.Fatalf("expected Add to wrap, got %d", got)
	}
}

func TestInWindowZeroSizeOnlyMatchesStart(t *testing.T) {
	if !InWindow(100, 100, 0) {
		t.Fatal("expected seq==start to be in a zero-size window")
	}
	if InWindow(101, 100, 0) {
		t.Fatal("expected any other seq to be outside a zero-size window")
	}
}

func TestInWindowHalfOpenRange(t *testing.T) {
	if !InWindow(100, 100, 10) {
		t.Fatal("expected start itself to be inside the window")
	}
	if !InWindow(109, 100, 10) {
		t.Fatal("expected start+size-1 to be inside the window")
	}
	if InWindow(110, 100, 10) {
		t.Fatal("expected start+size to be outside the window (half-open)")
	}
}

func TestInWindowWrapsAroundCircle(t *testing.T) {
	if !InWindow(5, 0xFFFFFFFE, 10) {
		t.Fatal("expected a window straddling the wraparound to accept a post-wrap seq")
	}
}

func TestMin32Max32(t *testing.T) {
	if Min32(3, -1) != -1 {
		t.Fatal("expected Min32 to pick the smaller signed value")
	}
	if Max32(3, -1) != 3 {
		t.Fatal("expected Max32 to pick the larger signed value")
	}
}

func TestMinU32MaxU32(t *testing.T) {
	if MinU32(3, 7) != 3 {
		t.Fatal("expected MinU32 to pick the smaller value")
	}
	if MaxU32(3, 7) != 7 {
		t.Fatal("expected MaxU32 to pick the larger value")
	}
}
