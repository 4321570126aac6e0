package tcpstack

import (
	"testing"
	"time"

	"github.com/netembed/tcpip/internal/bufchunk"
	"github.com/netembed/tcpip/tcpip"
)

// newAcceptedSocket drives a passive open through Accept (SYN_RECEIVED)
// the way the listener/dispatch path does, returning the connected socket
// and its recording sender.
func newAcceptedSocket(t *testing.T, now time.Time) (*Socket, *recordingSender) {
	t.Helper()
	listener := NewSocket()
	listener.TCB = &TCB{State: StateListen}
	listener.TCB.SynBacklog = SynQueueDefault
	EnqueueSyn(listener.TCB, SynQueueEntry{
		SrcAddr: [4]byte{10, 0, 0, 9}, SrcPort: 4000,
		DestAddr: [4]byte{10, 0, 0, 2}, DestPort: 80,
		ISN: tcpip.Seq(777), MSS: 1460,
	})

	sender := &recordingSender{}
	conn, ok := Accept(listener, 1460, DefaultBufferSize, DefaultBufferSize, tcpip.Seq(2000), now)
	if !ok {
		t.Fatal("expected Accept to dequeue the pending SYN")
	}
	conn.Sender = sender
	if conn.GetState() != StateSynReceived {
		t.Fatalf("expected SYN_RECEIVED after Accept, got %v", conn.GetState())
	}
	return conn, sender
}

func TestHandleSegmentCompletesPassiveOpen(t *testing.T) {
	now := time.Now()
	conn, _ := newAcceptedSocket(t, now)

	ack := &Segment{
		Seq: tcpip.Seq(777).Add(1), Ack: tcpip.Seq(2000).Add(1),
		Flags: FlagACK, Window: 4096,
	}
	conn.HandleSegment(ack, now)

	if conn.GetState() != StateEstablished {
		t.Fatalf("expected ESTABLISHED after final handshake ACK, got %v", conn.GetState())
	}
	if conn.TCB.SndWnd != 4096 {
		t.Fatalf("expected send window updated from the ACK, got %d", conn.TCB.SndWnd)
	}
}

func TestHandleSegmentRSTClosesConnection(t *testing.T) {
	now := time.Now()
	conn, _ := newAcceptedSocket(t, now)

	rst := &Segment{Seq: tcpip.Seq(778), Flags: FlagRST}
	conn.HandleSegment(rst, now)

	if conn.GetState() != StateClosed {
		t.Fatalf("expected CLOSED after RST, got %v", conn.GetState())
	}
	if !conn.TCB.ResetFlag {
		t.Fatal("expected ResetFlag set on an RST-driven close")
	}
}

func TestHandleSegmentUnacceptableSegmentDrawsBareACK(t *testing.T) {
	now := time.Now()
	conn, sender := newAcceptedSocket(t, now)

	ack := &Segment{Seq: tcpip.Seq(777).Add(1), Ack: tcpip.Seq(2000).Add(1), Flags: FlagACK, Window: 4096}
	conn.HandleSegment(ack, now)
	before := len(sender.segs)

	// A segment whose sequence number lands far outside the receive
	// window fails the RFC793 acceptability test.
	stale := &Segment{Seq: conn.TCB.RcvNxt.Add(-10000), Ack: conn.TCB.SndNxt, Flags: FlagACK, Window: 4096}
	conn.HandleSegment(stale, now)

	if len(sender.segs) != before+1 {
		t.Fatalf("expected exactly one bare ACK drawn for the unacceptable segment, got %d new", len(sender.segs)-before)
	}
	last := sender.segs[len(sender.segs)-1]
	if last.HasFlag(FlagRST) {
		t.Fatal("expected a bare ACK, not an RST, for a non-RST unacceptable segment")
	}
}

func TestHandleSegmentFINTransitionsEstablishedToCloseWait(t *testing.T) {
	now := time.Now()
	conn, _ := newAcceptedSocket(t, now)

	est := &Segment{Seq: tcpip.Seq(777).Add(1), Ack: tcpip.Seq(2000).Add(1), Flags: FlagACK, Window: 4096}
	conn.HandleSegment(est, now)
	conn.TCB.RxBuffer = bufchunk.NewRing(conn.TCB.RxBufSize, conn.TCB.RcvNxt)

	fin := &Segment{Seq: conn.TCB.RcvNxt, Ack: conn.TCB.SndNxt, Flags: FlagFIN | FlagACK, Window: 4096}
	conn.HandleSegment(fin, now)

	if conn.GetState() != StateCloseWait {
		t.Fatalf("expected CLOSE_WAIT after FIN in ESTABLISHED, got %v", conn.GetState())
	}
}

func TestHandleSegmentFINWait2EntersTimeWait(t *testing.T) {
	now := time.Now()
	conn, _ := newAcceptedSocket(t, now)
	est := &Segment{Seq: tcpip.Seq(777).Add(1), Ack: tcpip.Seq(2000).Add(1), Flags: FlagACK, Window: 4096}
	conn.HandleSegment(est, now)
	conn.TCB.RxBuffer = bufchunk.NewRing(conn.TCB.RxBufSize, conn.TCB.RcvNxt)

	conn.setState(StateFinWait2)

	fin := &Segment{Seq: conn.TCB.RcvNxt, Ack: conn.TCB.SndNxt, Flags: FlagFIN | FlagACK, Window: 4096}
	conn.HandleSegment(fin, now)

	if conn.GetState() != StateTimeWait {
		t.Fatalf("expected TIME_WAIT after FIN in FIN_WAIT_2, got %v", conn.GetState())
	}
	if conn.TCB.TimeWaitTimer == nil {
		t.Fatal("expected the 2MSL timer armed on entering TIME_WAIT")
	}
}

func TestApplyTimerActionsSendRST(t *testing.T) {
	now := time.Now()
	conn, sender := newAcceptedSocket(t, now)
	conn.ApplyTimerActions([]TimerAction{{SendRST: true}}, now)

	if len(sender.segs) == 0 || !sender.segs[len(sender.segs)-1].HasFlag(FlagRST) {
		t.Fatal("expected an RST segment transmitted")
	}
}

func TestApplyTimerActionsForceClosedUpdatesEvents(t *testing.T) {
	now := time.Now()
	conn, _ := newAcceptedSocket(t, now)
	conn.TCB.State = StateClosed
	conn.ApplyTimerActions([]TimerAction{{ForceClosed: true}}, now)

	flags := sockEventsForState(StateClosed)
	if conn.Events.Get()&flags != flags {
		t.Fatalf("expected closed-state event flags set, got %v", conn.Events.Get())
	}
}
