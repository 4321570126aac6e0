package tcpstack

import (
	"time"

	"github.com/netembed/tcpip/internal/metrics"
	"github.com/netembed/tcpip/tcpip"
)

// AckOutcome reports what ProcessAck decided, so the caller (socket.go's
// segment-arrival handler) knows whether to emit a reply segment or
// retransmit.
type AckOutcome struct {
	Dropped       bool
	SendACK       bool // stale/future ACK: send an informational ACK
	Retransmit    bool // fast retransmit or partial-ACK RTO retransmit fired
	EnteredRecovery bool
}

// ProcessAck implements spec.md §4.G.6 in full: old/future ACK handling,
// duplicate-ACK counting and fast retransmit, new-data ACK bookkeeping,
// RTO (Van Jacobson) update and the congestion-control state machine.
func ProcessAck(t *TCB, seg *Segment, now time.Time) AckOutcome {
	if !seg.HasFlag(FlagACK) {
		return AckOutcome{Dropped: true}
	}
	if seg.Ack.LessThan(t.SndUna) {
		return AckOutcome{Dropped: true}
	}
	if seg.Ack.GreaterThan(t.SndNxt) {
		return AckOutcome{SendACK: true}
	}

	isDup := len(t.RetransmitQueue) > 0 &&
		len(seg.Payload) == 0 &&
		!seg.HasFlag(FlagSYN) && !seg.HasFlag(FlagFIN) &&
		seg.Ack == t.SndUna &&
		uint32(seg.Window) == t.SndWnd

	if isDup {
		return processDupAck(t, seg)
	}

	if seg.Ack.GreaterThan(t.SndUna) {
		return processNewDataAck(t, seg, now)
	}

	return AckOutcome{}
}

func processDupAck(t *TCB, seg *Segment) AckOutcome {
	if t.CongestState != CongestIdle {
		// Already in recovery: subsequent dup ACKs inflate cwnd, per
		// spec.md §4.G.6.
		if t.CongestState == CongestRecovery {
			t.Cwnd += uint32(t.SMSS)
		}
		return AckOutcome{}
	}

	t.DupAckCount++

	threshold := FastRetransmitThres
	// The lowered duplicate-ACK threshold only applies when there is no
	// unsent data to push instead, or the peer's advertised window
	// wouldn't accept a new segment anyway (spec.md §4.G.6) -- otherwise
	// a sender with more data queued just keeps filling the window
	// rather than firing fast retransmit early.
	if t.SndUser == 0 || t.SndWnd <= t.FlightSize() {
		ownd := t.FlightSize()
		switch {
		case ownd <= 3*uint32(t.SMSS):
			threshold = 1
		case ownd <= 4*uint32(t.SMSS):
			threshold = 2
		}
	}

	if t.DupAckCount >= threshold && seg.Ack.GreaterThan(t.Recover.Add(1)) {
		flight := t.FlightSize()
		t.Ssthresh = tcpip.MaxU32(flight/2, 2*uint32(t.SMSS))
		t.Recover = t.SndNxt.Add(-1)
		t.Cwnd = t.Ssthresh + 3*uint32(t.SMSS)
		t.CongestState = CongestRecovery
		metrics.CongestionStateTransitions.WithLabelValues("RECOVERY").Inc()
		return AckOutcome{Retransmit: true, EnteredRecovery: true}
	}
	return AckOutcome{}
}

func processNewDataAck(t *TCB, seg *Segment, now time.Time) AckOutcome {
	n := int(seg.Ack.Diff(t.SndUna))
	synCovered := false
	if t.SndUna == t.ISS && n > 0 {
		synCovered = true
	}
	t.SndUna = seg.Ack

	rttElapsed := updateRTO(t, now)

	removeAcked(t, t.SndUna)
	if len(t.RetransmitQueue) > 0 {
		armRetransmitTimer(t, now)
	} else {
		t.RetransmitTimer = nil
	}

	ackedBytes := n
	if synCovered {
		ackedBytes--
	}
	if ackedBytes < 0 {
		ackedBytes = 0
	}

	out := AckOutcome{}
	switch t.CongestState {
	case CongestRecovery:
		if seg.Ack.GreaterThan(t.Recover) {
			t.Cwnd = t.Ssthresh
			t.CongestState = CongestIdle
			metrics.CongestionStateTransitions.WithLabelValues("IDLE").Inc()
		} else {
			out.Retransmit = true
			if t.Cwnd > uint32(ackedBytes) {
				t.Cwnd -= uint32(ackedBytes)
			} else {
				t.Cwnd = 0
			}
			if uint32(ackedBytes) >= uint32(t.SMSS) {
				t.Cwnd += uint32(t.SMSS)
			}
		}
	case CongestLossRecovery:
		if seg.Ack.GreaterThan(t.Recover) {
			t.CongestState = CongestIdle
			metrics.CongestionStateTransitions.WithLabelValues("IDLE").Inc()
		} else {
			out.Retransmit = true
		}
	default: // CongestIdle
		if t.Cwnd < t.Ssthresh {
			inc := ackedBytes
			if inc > int(t.SMSS) {
				inc = int(t.SMSS)
			}
			t.Cwnd += uint32(inc)
		} else {
			t.ackedThisRTT += ackedBytes
			if rttElapsed {
				inc := t.ackedThisRTT
				if inc > int(t.SMSS) {
					inc = int(t.SMSS)
				}
				t.Cwnd += uint32(inc)
				t.ackedThisRTT = 0
			}
		}
	}

	if t.Cwnd > uint32(t.TxBufSize) {
		t.Cwnd = uint32(t.TxBufSize)
	}

	t.DupAckCount = 0
	return out
}

// updateRTO applies the Van Jacobson SRTT/RTTVAR/RTO formulas of spec.md
// §4.G.6 when an in-flight RTT measurement completes, returning true if a
// sample was taken this call (used to gate congestion-avoidance cwnd
// growth, which only grows once per RTT).
func updateRTO(t *TCB, now time.Time) bool {
	if !t.RTTBusy || !t.SndUna.GreaterThan(t.RTTSeqNum) {
		return false
	}
	r := now.Sub(t.RTTStart)
	if !t.haveRTTSample {
		t.SRTT = r
		t.RTTVar = r / 2
		t.haveRTTSample = true
	} else {
		diff := t.SRTT - r
		if diff < 0 {
			diff = -diff
		}
		t.RTTVar = (3*t.RTTVar + diff) / 4
		t.SRTT = (7*t.SRTT + r) / 8
	}
	rto := t.SRTT + 4*t.RTTVar
	if rto < MinRTO {
		rto = MinRTO
	}
	if rto > MaxRTO {
		rto = MaxRTO
	}
	t.RTO = rto
	metrics.RTOHistogram.Observe(rto.Seconds())
	metrics.SRTTHistogram.Observe(t.SRTT.Seconds())
	t.RTTBusy = false
	return true
}

// removeAcked drops retransmit-queue entries fully covered by the new
// sndUna (spec.md §4.G.6).
func removeAcked(t *TCB, sndUna tcpip.Seq) {
	i := 0
	for i < len(t.RetransmitQueue) {
		e := t.RetransmitQueue[i]
		if e.Seq.Add(e.Length).GreaterThan(sndUna) {
			break
		}
		i++
	}
	t.RetransmitQueue = t.RetransmitQueue[i:]
}

func armRetransmitTimer(t *TCB, now time.Time) {
	deadline := now.Add(t.RTO)
	t.RetransmitTimer = &deadline
	t.RetransmitCount = 0
}
