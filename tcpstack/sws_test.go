package tcpstack

import "testing"

func TestUpdateReceiveWindowHoldsBelowThreshold(t *testing.T) {
	tcb := &TCB{RxBufSize: 4096, RMSS: 1024, RcvUser: 3500, RcvWnd: 100}
	// rcvWnd+reduction = 100+(4096-3500-100) = 596 < threshold(1024) -> hold.
	if sendACK := UpdateReceiveWindow(tcb); sendACK {
		t.Fatal("expected no ACK while window update is withheld")
	}
	if tcb.RcvWnd != 100 {
		t.Fatalf("expected window unchanged, got %d", tcb.RcvWnd)
	}
}

func TestUpdateReceiveWindowOpensAboveThreshold(t *testing.T) {
	tcb := &TCB{RxBufSize: 4096, RMSS: 1024, RcvUser: 1000, RcvWnd: 100}
	// rcvWnd+reduction = 100+(4096-1000-100) = 3096 >= threshold(1024) -> open window.
	sendACK := UpdateReceiveWindow(tcb)
	if !sendACK {
		t.Fatal("expected ACK when window reopens past the SWS threshold")
	}
	if tcb.RcvWnd != uint32(tcb.RxBufSize-tcb.RcvUser) {
		t.Fatalf("expected window set to buffer room, got %d", tcb.RcvWnd)
	}
}

func TestUpdateReceiveWindowUsesHalfBufferWhenSmaller(t *testing.T) {
	// RMSS(4000) exceeds half the buffer (1000), so threshold clamps to
	// rxBufferSize/2.
	tcb := &TCB{RxBufSize: 2000, RMSS: 4000, RcvUser: 100, RcvWnd: 100}
	sendACK := UpdateReceiveWindow(tcb)
	if !sendACK {
		t.Fatal("expected ACK: rcvWnd+reduction (1900) clears the half-buffer threshold (1000)")
	}
}
