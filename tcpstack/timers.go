package tcpstack

import (
	"time"

	"github.com/netembed/tcpip/internal/metrics"
)

// TimerAction tells the caller what side-effecting action the timer
// cycle decided on, so socket.go can perform the actual segment
// transmission or socket teardown without timers.go needing a Sender.
// SendProbe actions carry a zero-window or keep-alive probe: the caller
// sends a 1-byte segment with seq = sndUna - 1 for either kind, harmless
// if the peer already reopened the window.
type TimerAction struct {
	SendRST        bool
	SendProbe      bool
	Retransmit     bool
	ForceClosed    bool
	KarnInvalidate bool
	FlushOverride  bool // override timer fired: flush sndUser ignoring Nagle
}

// RunTimerCycle implements spec.md §4.G.12: evaluated every 100ms for
// every STREAM socket's TCB. Each expired timer is handled in turn; the
// caller applies the returned actions (sending segments, closing the
// socket) since timers.go has no transmit path of its own.
func RunTimerCycle(t *TCB, now time.Time) []TimerAction {
	var actions []TimerAction

	if t.RetransmitTimer != nil && !now.Before(*t.RetransmitTimer) {
		actions = append(actions, retransmitExpiry(t, now)...)
	}
	if t.PersistTimer != nil && !now.Before(*t.PersistTimer) {
		actions = append(actions, persistExpiry(t, now)...)
	}
	if t.KeepAliveEnabled && t.State == StateEstablished {
		actions = append(actions, keepAliveExpiry(t, now)...)
	}
	if t.OverrideTimer != nil && !now.Before(*t.OverrideTimer) && t.SndUser > 0 {
		t.OverrideTimer = nil
		actions = append(actions, TimerAction{FlushOverride: true})
	}
	if t.FinWait2Timer != nil && !now.Before(*t.FinWait2Timer) && t.State == StateFinWait2 {
		t.FinWait2Timer = nil
		t.State = StateClosed
		t.ResetFlag = false
		t.ClosedFlag = true
		actions = append(actions, TimerAction{ForceClosed: true})
	}
	if t.TimeWaitTimer != nil && !now.Before(*t.TimeWaitTimer) && t.State == StateTimeWait {
		t.TimeWaitTimer = nil
		t.State = StateClosed
		t.ClosedFlag = true
		actions = append(actions, TimerAction{ForceClosed: true})
	}
	return actions
}

func retransmitExpiry(t *TCB, now time.Time) []TimerAction {
	if len(t.RetransmitQueue) == 0 {
		t.RetransmitTimer = nil
		return nil
	}
	if t.RetransmitCount == 0 {
		flight := t.FlightSize()
		t.Ssthresh = maxU32(flight/2, 2*uint32(t.SMSS))
		t.Cwnd = uint32(LossWindowSMSS) * uint32(t.SMSS)
		t.Recover = t.SndNxt.Add(-1)
		t.CongestState = CongestLossRecovery
		metrics.CongestionStateTransitions.WithLabelValues("LOSS_RECOVERY").Inc()
	}

	t.RTTBusy = false // Karn's rule: invalidate in-flight RTT sample

	if t.RetransmitCount < MaxRetries {
		t.RetransmitCount++
		t.RTO *= 2
		if t.RTO > MaxRTO {
			t.RTO = MaxRTO
		}
		deadline := now.Add(t.RTO)
		t.RetransmitTimer = &deadline
		return []TimerAction{{Retransmit: true, KarnInvalidate: true}}
	}

	t.State = StateClosed
	t.ResetFlag = true
	t.RetransmitTimer = nil
	metrics.TCPOutRsts.Inc()
	return []TimerAction{{SendRST: true, ForceClosed: true}}
}

func persistExpiry(t *TCB, now time.Time) []TimerAction {
	if t.WndProbeCount >= MaxRetries {
		t.State = StateClosed
		t.ResetFlag = true
		t.PersistTimer = nil
		metrics.TCPOutRsts.Inc()
		return []TimerAction{{SendRST: true, ForceClosed: true}}
	}
	t.WndProbeCount++
	t.WndProbeInterval *= 2
	if t.WndProbeInterval > MaxProbeInterval {
		t.WndProbeInterval = MaxProbeInterval
	}
	deadline := now.Add(t.WndProbeInterval)
	t.PersistTimer = &deadline
	return []TimerAction{{SendProbe: true}}
}

func keepAliveExpiry(t *TCB, now time.Time) []TimerAction {
	if t.KeepAliveTimestamp.IsZero() {
		t.KeepAliveTimestamp = now
		return nil
	}
	idle := now.Sub(t.KeepAliveTimestamp)
	var deadline time.Duration
	if t.KeepAliveProbeCount == 0 {
		deadline = t.KeepAliveIdle
	} else {
		deadline = t.KeepAliveIdle + time.Duration(t.KeepAliveProbeCount)*t.KeepAliveInterval
	}
	if idle < deadline {
		return nil
	}
	if t.KeepAliveProbeCount >= t.KeepAliveMaxProbes {
		t.State = StateClosed
		t.ResetFlag = true
		metrics.TCPOutRsts.Inc()
		return []TimerAction{{SendRST: true, ForceClosed: true}}
	}
	t.KeepAliveProbeCount++
	return []TimerAction{{SendProbe: true}}
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
