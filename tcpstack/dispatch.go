package tcpstack

import (
	"time"

	"github.com/netembed/tcpip/internal/metrics"
)

// HandleSegment is the inbound-segment entry point for a connected or
// half-closed socket: acceptability (§4.G.5), ACK processing (§4.G.6),
// segment-text processing (§4.G.7) and the state-specific FIN/RST
// transitions of RFC 793, all gated by the state machine of §4.G.2.
func (sock *Socket) HandleSegment(seg *Segment, now time.Time) {
	t := sock.TCB

	if seg.HasFlag(FlagRST) {
		sock.setState(StateClosed)
		return
	}

	if seg.HasFlag(FlagSYN) && t.State.synchronized() {
		if Acceptable(t, seg.Seq, seg.Len()) {
			rst := RSTForSYNInWindow(t, seg)
			sock.transmit(rst, nil, false, now)
			sock.setState(StateClosed)
		}
		return
	}

	if !Acceptable(t, seg.Seq, len(seg.Payload)) {
		if !seg.HasFlag(FlagRST) {
			sock.transmit(bareACK(t), nil, false, now)
		}
		return
	}

	outcome := ProcessAck(t, seg, now)
	if outcome.SendACK {
		sock.transmit(bareACK(t), nil, false, now)
	}
	if outcome.Retransmit && len(t.RetransmitQueue) > 0 {
		sock.retransmitFirst(now)
	}

	if t.State == StateSynReceived && seg.HasFlag(FlagACK) {
		sock.setState(StateEstablished)
	}

	if seg.HasFlag(FlagACK) && t.SndUna.GreaterThanEq(t.SndNxt) {
		switch t.State {
		case StateFinWait1:
			sock.setState(StateFinWait2)
			deadline := now.Add(FinWait2Timeout)
			t.FinWait2Timer = &deadline
		case StateClosing:
			sock.setState(StateTimeWait)
			deadline := now.Add(TimeWaitTimeout)
			t.TimeWaitTimer = &deadline
		case StateLastAck:
			sock.setState(StateClosed)
		}
	}

	UpdateSendWindow(t, seg.Seq, seg.Ack, seg.Window, now)

	if len(seg.Payload) > 0 && (t.State == StateEstablished || t.State == StateFinWait1 || t.State == StateFinWait2) {
		recvOut := ProcessSegmentText(t, seg)
		if UpdateReceiveWindow(t) || recvOut.SendACK {
			sock.transmit(bareACK(t), nil, false, now)
		}
		sock.UpdateRxEvents()
	}

	if seg.HasFlag(FlagFIN) {
		sock.handleFIN(seg, now)
	}

	sock.RunSend(now)
	sock.UpdateTxEvents()
}

func (sock *Socket) handleFIN(seg *Segment, now time.Time) {
	t := sock.TCB
	t.RcvNxt = t.RcvNxt.Add(1)
	sock.transmit(bareACK(t), nil, false, now)

	switch t.State {
	case StateEstablished:
		sock.setState(StateCloseWait)
	case StateFinWait1:
		sock.setState(StateClosing)
	case StateFinWait2:
		sock.setState(StateTimeWait)
		deadline := now.Add(TimeWaitTimeout)
		t.TimeWaitTimer = &deadline
	}
	sock.UpdateRxEvents()
}

// retransmitFirst re-emits the oldest retransmit-queue entry, re-reading
// its payload from the TX ring by sequence number rather than copying it
// into the queue (spec.md §3 "Retransmit queue buffer invariant").
func (sock *Socket) retransmitFirst(now time.Time) {
	t := sock.TCB
	if len(t.RetransmitQueue) == 0 {
		return
	}
	e := t.RetransmitQueue[0]
	payload := t.TxBuffer.ReadAt(e.Seq, e.Length)
	seg := &Segment{Seq: e.Seq, Ack: t.RcvNxt, Flags: FlagACK | FlagPSH, Window: clampWindow(t.RcvWnd)}
	sock.transmit(seg, payload, false, now)
	metrics.TCPRetransSegs.Inc()
}

// ApplyTimerActions runs the side effects RunTimerCycle decided on: it is
// kept separate from timers.go so that package has no Sender dependency.
func (sock *Socket) ApplyTimerActions(actions []TimerAction, now time.Time) {
	t := sock.TCB
	for _, a := range actions {
		switch {
		case a.SendRST:
			sock.transmit(&Segment{Seq: t.SndNxt, Flags: FlagRST}, nil, false, now)
		case a.SendProbe:
			probeSeq := t.SndUna.Add(-1)
			sock.transmit(&Segment{Seq: probeSeq, Ack: t.RcvNxt, Flags: FlagACK, Window: clampWindow(t.RcvWnd)}, []byte{0}, false, now)
		case a.Retransmit:
			sock.retransmitFirst(now)
		case a.FlushOverride:
			// Override expiry flushes sndUser with Nagle gating bypassed.
			noDelay := sock.NoDelay
			sock.NoDelay = true
			sock.RunSend(now)
			sock.NoDelay = noDelay
		}
		if a.ForceClosed {
			// timers.go already set TCB.State directly (it owns no Sender
			// to call back through setState); republish the event flags
			// setState would have for the state it landed on.
			sock.Events.Update(sockEventsForState(t.State))
		}
	}
}
