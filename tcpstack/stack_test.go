package tcpstack

import (
	"testing"
	"time"

	"github.com/netembed/tcpip/sockevent"
	"github.com/netembed/tcpip/tcpip"
)

// recordingRawSender captures every segment handed to a Stack's transmit
// path, mirroring the recordingSender fake used in handshake_test.go but
// at the Stack's four-tuple-explicit boundary instead of a single
// socket's.
type recordingRawSender struct {
	segs []*Segment
}

func (r *recordingRawSender) SendSegment(localAddr, remoteAddr [4]byte, seg *Segment, payload []byte) {
	r.segs = append(r.segs, seg)
}

func newTestStack(sender *recordingRawSender) *Stack {
	return NewStack([4]byte{10, 0, 0, 1}, 1, []byte("secret"), sender)
}

func TestStackConnectAllocatesPortAndSendsSYN(t *testing.T) {
	sender := &recordingRawSender{}
	s := newTestStack(sender)

	sock := s.Connect([4]byte{10, 0, 0, 2}, 80, 1460, DefaultBufferSize, DefaultBufferSize, time.Now())

	if sock.LocalPort < EphemeralPortMin || sock.LocalPort > EphemeralPortMax {
		t.Fatalf("expected ephemeral local port, got %d", sock.LocalPort)
	}
	if sock.GetState() != StateSynSent {
		t.Fatalf("expected SYN_SENT, got %v", sock.GetState())
	}
	if len(sender.segs) != 1 || !sender.segs[0].HasFlag(FlagSYN) {
		t.Fatalf("expected one SYN segment sent, got %+v", sender.segs)
	}
	if sender.segs[0].SrcPort != sock.LocalPort || sender.segs[0].DstPort != 80 {
		t.Fatalf("expected stamped ports, got src=%d dst=%d", sender.segs[0].SrcPort, sender.segs[0].DstPort)
	}

	key := fourTuple{s.LocalAddr, [4]byte{10, 0, 0, 2}, sock.LocalPort, 80}
	if s.conns[key] != sock {
		t.Fatal("expected connection registered under its four-tuple")
	}
}

func TestStackDeliverCompletesActiveOpen(t *testing.T) {
	sender := &recordingRawSender{}
	s := newTestStack(sender)

	remote := [4]byte{10, 0, 0, 2}
	sock := s.Connect(remote, 80, 1460, DefaultBufferSize, DefaultBufferSize, time.Now())
	iss := sock.TCB.ISS

	synAck := &Segment{
		SrcPort: 80, DstPort: sock.LocalPort,
		Seq: tcpip.Seq(5000), Ack: iss.Add(1),
		Flags: FlagSYN | FlagACK, Window: 4096,
	}
	rst := s.Deliver(s.LocalAddr, remote, synAck, time.Now())
	if rst != nil {
		t.Fatalf("expected no RST, got %+v", rst)
	}
	if sock.GetState() != StateEstablished {
		t.Fatalf("expected ESTABLISHED after SYN-ACK, got %v", sock.GetState())
	}
}

func TestStackListenAndDeliverQueuesSynAndAccepts(t *testing.T) {
	sender := &recordingRawSender{}
	s := newTestStack(sender)

	listener := s.Listen(80, SynQueueDefault)
	remote := [4]byte{10, 0, 0, 9}

	syn := &Segment{
		SrcPort: 12345, DstPort: 80,
		Seq: tcpip.Seq(777), Flags: FlagSYN, Window: 4096,
	}
	rst := s.Deliver(s.LocalAddr, remote, syn, time.Now())
	if rst != nil {
		t.Fatalf("expected no RST for fresh SYN, got %+v", rst)
	}
	if len(listener.TCB.SynQueue) != 1 {
		t.Fatalf("expected one queued SYN, got %d", len(listener.TCB.SynQueue))
	}

	conn, ok := s.Accept(listener, 1460, DefaultBufferSize, DefaultBufferSize, time.Now())
	if !ok {
		t.Fatal("expected Accept to succeed")
	}
	if conn.LocalPort != 80 || conn.RemotePort != 12345 || conn.RemoteAddr != remote {
		t.Fatalf("unexpected accepted four-tuple: %+v", conn)
	}
	if conn.GetState() != StateSynReceived {
		t.Fatalf("expected SYN_RECEIVED, got %v", conn.GetState())
	}

	key := fourTuple{conn.LocalAddr, conn.RemoteAddr, conn.LocalPort, conn.RemotePort}
	if s.conns[key] != conn {
		t.Fatal("expected accepted connection registered under its four-tuple")
	}

	// The SYN-ACK sent during Accept must carry the accepted connection's
	// own ports, not the listener's (the whole point of socketSender).
	last := sender.segs[len(sender.segs)-1]
	if last.SrcPort != 80 || last.DstPort != 12345 {
		t.Fatalf("expected SYN-ACK stamped with accepted ports, got src=%d dst=%d", last.SrcPort, last.DstPort)
	}
}

func TestStackDeliverUnknownFourTupleReturnsRST(t *testing.T) {
	sender := &recordingRawSender{}
	s := newTestStack(sender)

	seg := &Segment{SrcPort: 1, DstPort: 2, Seq: tcpip.Seq(1), Flags: FlagACK, Ack: tcpip.Seq(1)}
	rst := s.Deliver(s.LocalAddr, [4]byte{1, 2, 3, 4}, seg, time.Now())
	if rst == nil || !rst.HasFlag(FlagRST) {
		t.Fatalf("expected RST for unknown four-tuple, got %+v", rst)
	}
}

func TestStackAssignsConnIDAndSignalsClosedEvent(t *testing.T) {
	sender := &recordingRawSender{}
	s := newTestStack(sender)

	remote := [4]byte{10, 0, 0, 2}
	sock := s.Connect(remote, 80, 1460, DefaultBufferSize, DefaultBufferSize, time.Now())
	if sock.ConnID == "" {
		t.Fatal("expected Connect to assign a ConnID")
	}

	var gotClosed bool
	sock.Events.RegisterUserEvent(func(flags sockevent.Flag) {
		if flags&sockevent.Closed != 0 {
			gotClosed = true
		}
	})

	iss := sock.TCB.ISS
	rst := &Segment{
		SrcPort: 80, DstPort: sock.LocalPort,
		Seq: iss.Add(1), Flags: FlagRST | FlagACK, Ack: iss.Add(1),
	}
	s.Deliver(s.LocalAddr, remote, rst, time.Now())
	if sock.GetState() != StateClosed {
		t.Fatalf("expected CLOSED after RST, got %v", sock.GetState())
	}
	if !gotClosed {
		t.Fatal("expected sockevent.Closed to fire via the socket's own event model")
	}
	// RST-induced closure sets ResetFlag, not ClosedFlag, so the
	// connection-table entry is never evicted by this path -- only a
	// graceful TIME_WAIT/LAST_ACK close retires it.
	key := fourTuple{s.LocalAddr, remote, sock.LocalPort, 80}
	if _, ok := s.conns[key]; !ok {
		t.Fatal("expected RST-aborted connection to remain in the table (ResetFlag, not ClosedFlag)")
	}
}

func TestStackConnectGivesDistinctSequentialPorts(t *testing.T) {
	sender := &recordingRawSender{}
	s := newTestStack(sender)

	a := s.Connect([4]byte{10, 0, 0, 2}, 80, 1460, DefaultBufferSize, DefaultBufferSize, time.Now())
	b := s.Connect([4]byte{10, 0, 0, 2}, 81, 1460, DefaultBufferSize, DefaultBufferSize, time.Now())
	if a.LocalPort == b.LocalPort {
		t.Fatal("expected distinct ephemeral ports for concurrent connections")
	}
	if b.LocalPort != a.LocalPort+1 {
		t.Fatalf("expected sequential ephemeral ports, got %d then %d", a.LocalPort, b.LocalPort)
	}
}
