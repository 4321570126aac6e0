package tcpstack

import "testing"

func TestEnqueueSynRejectsDuplicateFourTuple(t *testing.T) {
	tcb := &TCB{}
	e := SynQueueEntry{SrcAddr: [4]byte{10, 0, 0, 1}, SrcPort: 4000, DestAddr: [4]byte{10, 0, 0, 2}}
	if !EnqueueSyn(tcb, e) {
		t.Fatal("expected first enqueue to succeed")
	}
	if EnqueueSyn(tcb, e) {
		t.Fatal("expected duplicate four-tuple to be rejected")
	}
}

func TestEnqueueSynRespectsBacklog(t *testing.T) {
	tcb := &TCB{SynBacklog: 2}
	for i := 0; i < 2; i++ {
		e := SynQueueEntry{SrcAddr: [4]byte{10, 0, 0, byte(i + 1)}, SrcPort: uint16(4000 + i)}
		if !EnqueueSyn(tcb, e) {
			t.Fatalf("expected enqueue %d to succeed", i)
		}
	}
	overflow := SynQueueEntry{SrcAddr: [4]byte{10, 0, 0, 9}, SrcPort: 4999}
	if EnqueueSyn(tcb, overflow) {
		t.Fatal("expected enqueue beyond backlog to be rejected")
	}
}

func TestEnqueueSynClampsBacklogToMax(t *testing.T) {
	tcb := &TCB{SynBacklog: SynQueueMax + 100}
	for i := 0; i < SynQueueMax; i++ {
		e := SynQueueEntry{SrcAddr: [4]byte{10, 0, 0, byte(i + 1)}, SrcPort: uint16(5000 + i)}
		if !EnqueueSyn(tcb, e) {
			t.Fatalf("expected enqueue %d within max backlog to succeed", i)
		}
	}
	overflow := SynQueueEntry{SrcAddr: [4]byte{10, 0, 1, 1}, SrcPort: 6000}
	if EnqueueSyn(tcb, overflow) {
		t.Fatal("expected backlog clamped to SynQueueMax")
	}
}

func TestDequeueSynFIFO(t *testing.T) {
	tcb := &TCB{}
	first := SynQueueEntry{SrcAddr: [4]byte{1, 1, 1, 1}, SrcPort: 1}
	second := SynQueueEntry{SrcAddr: [4]byte{2, 2, 2, 2}, SrcPort: 2}
	EnqueueSyn(tcb, first)
	EnqueueSyn(tcb, second)

	got, ok := DequeueSyn(tcb)
	if !ok || got.SrcPort != first.SrcPort {
		t.Fatalf("expected first entry dequeued first, got %+v", got)
	}
	got, ok = DequeueSyn(tcb)
	if !ok || got.SrcPort != second.SrcPort {
		t.Fatalf("expected second entry dequeued next, got %+v", got)
	}
	if _, ok := DequeueSyn(tcb); ok {
		t.Fatal("expected queue empty")
	}
}

func TestNegotiatedMSSPicksSmaller(t *testing.T) {
	if got := NegotiatedMSS(1200, 1460); got != 1200 {
		t.Fatalf("got %d, want 1200", got)
	}
	if got := NegotiatedMSS(1460, 1200); got != 1200 {
		t.Fatalf("got %d, want 1200", got)
	}
	if got := NegotiatedMSS(0, 1200); got != DefaultMSS {
		t.Fatalf("zero remote MSS should fall back to DefaultMSS, got %d want %d", got, DefaultMSS)
	}
}
