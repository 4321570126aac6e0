package tcpstack

import (
	"testing"

	"github.com/netembed/tcpip/tcpip"
)

func TestUpdateSACKBlocksNewestFirst(t *testing.T) {
	tcb := &TCB{RcvNxt: tcpip.Seq(100)}
	UpdateSACKBlocks(tcb, tcpip.Seq(200), tcpip.Seq(300))
	UpdateSACKBlocks(tcb, tcpip.Seq(400), tcpip.Seq(500))

	if len(tcb.SACKBlocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(tcb.SACKBlocks))
	}
	if tcb.SACKBlocks[0].Left != tcpip.Seq(400) {
		t.Fatalf("expected newest block first, got %+v", tcb.SACKBlocks[0])
	}
}

func TestUpdateSACKBlocksMergesOverlap(t *testing.T) {
	tcb := &TCB{RcvNxt: tcpip.Seq(100)}
	UpdateSACKBlocks(tcb, tcpip.Seq(200), tcpip.Seq(300))
	UpdateSACKBlocks(tcb, tcpip.Seq(250), tcpip.Seq(400))

	if len(tcb.SACKBlocks) != 1 {
		t.Fatalf("expected merge into 1 block, got %d: %+v", len(tcb.SACKBlocks), tcb.SACKBlocks)
	}
	b := tcb.SACKBlocks[0]
	if b.Left != tcpip.Seq(200) || b.Right != tcpip.Seq(400) {
		t.Fatalf("expected merged [200,400), got %+v", b)
	}
}

func TestUpdateSACKBlocksCapsAtMax(t *testing.T) {
	tcb := &TCB{RcvNxt: tcpip.Seq(0)}
	base := tcpip.Seq(1000)
	for i := 0; i < SACKMaxBlocks+2; i++ {
		left := base.Add(i * 100)
		UpdateSACKBlocks(tcb, left, left.Add(10))
	}
	if len(tcb.SACKBlocks) != SACKMaxBlocks {
		t.Fatalf("expected cap at %d blocks, got %d", SACKMaxBlocks, len(tcb.SACKBlocks))
	}
}

func TestUpdateSACKBlocksClampsAboveRcvNxt(t *testing.T) {
	tcb := &TCB{RcvNxt: tcpip.Seq(500)}
	UpdateSACKBlocks(tcb, tcpip.Seq(400), tcpip.Seq(600))
	if len(tcb.SACKBlocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(tcb.SACKBlocks))
	}
	if !tcb.SACKBlocks[0].Left.GreaterThan(tcb.RcvNxt) {
		t.Fatalf("expected block left strictly above rcvNxt, got %+v", tcb.SACKBlocks[0])
	}
}

func TestPruneSACKBlocksDropsStale(t *testing.T) {
	tcb := &TCB{RcvNxt: tcpip.Seq(100)}
	tcb.SACKBlocks = []SACKBlock{
		{Left: tcpip.Seq(50), Right: tcpip.Seq(90)},
		{Left: tcpip.Seq(150), Right: tcpip.Seq(200)},
	}
	tcb.RcvNxt = tcpip.Seq(95)
	PruneSACKBlocks(tcb)
	if len(tcb.SACKBlocks) != 1 {
		t.Fatalf("expected stale block dropped, got %d: %+v", len(tcb.SACKBlocks), tcb.SACKBlocks)
	}
	if tcb.SACKBlocks[0].Left != tcpip.Seq(150) {
		t.Fatalf("unexpected surviving block: %+v", tcb.SACKBlocks[0])
	}
}
