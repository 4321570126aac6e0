package tcpstack

import (
	"testing"
	"time"
)

func TestRetransmitTimerExhaustionForcesClosed(t *testing.T) {
	now := time.Now()
	tcb := NewTCB(1000, DefaultBufferSize, DefaultBufferSize)
	tcb.State = StateEstablished
	tcb.SndNxt = tcb.SndUna.Add(100)
	tcb.RetransmitQueue = []RetransmitSeg{{Seq: tcb.SndUna, Length: 100}}
	deadline := now
	tcb.RetransmitTimer = &deadline

	for i := 0; i <= MaxRetries; i++ {
		actions := RunTimerCycle(tcb, now)
		now = now.Add(tcb.RTO + time.Millisecond)
		if len(actions) == 0 {
			t.Fatalf("expected an action on retransmit iteration %d", i)
		}
	}

	if tcb.State != StateClosed {
		t.Fatalf("expected CLOSED after MAX_RETRIES exhaustion, got %v", tcb.State)
	}
	if !tcb.ResetFlag {
		t.Fatal("expected resetFlag set on RTO exhaustion")
	}
}

func TestRetransmitTimerFirstExpiryEntersLossRecovery(t *testing.T) {
	now := time.Now()
	tcb := NewTCB(1000, DefaultBufferSize, DefaultBufferSize)
	tcb.State = StateEstablished
	tcb.SndNxt = tcb.SndUna.Add(2000)
	tcb.RetransmitQueue = []RetransmitSeg{{Seq: tcb.SndUna, Length: 2000}}
	deadline := now
	tcb.RetransmitTimer = &deadline
	tcb.RTTBusy = true

	actions := RunTimerCycle(tcb, now)
	if len(actions) != 1 || !actions[0].Retransmit || !actions[0].KarnInvalidate {
		t.Fatalf("expected a KarnInvalidate retransmit action, got %+v", actions)
	}
	if tcb.CongestState != CongestLossRecovery {
		t.Fatalf("expected LOSS_RECOVERY, got %v", tcb.CongestState)
	}
	if tcb.Cwnd != uint32(LossWindowSMSS)*uint32(tcb.SMSS) {
		t.Fatalf("expected cwnd reset to 1*SMSS, got %d", tcb.Cwnd)
	}
	if tcb.RTTBusy {
		t.Fatal("expected Karn's rule to invalidate the in-flight RTT sample")
	}
}

func TestPersistTimerExhaustionForcesClosed(t *testing.T) {
	now := time.Now()
	tcb := NewTCB(1000, DefaultBufferSize, DefaultBufferSize)
	tcb.State = StateEstablished
	tcb.WndProbeCount = MaxRetries
	deadline := now
	tcb.PersistTimer = &deadline

	actions := RunTimerCycle(tcb, now)
	if len(actions) != 1 || !actions[0].SendRST || !actions[0].ForceClosed {
		t.Fatalf("expected RST+ForceClosed, got %+v", actions)
	}
	if tcb.State != StateClosed {
		t.Fatalf("expected CLOSED, got %v", tcb.State)
	}
}

func TestPersistTimerBacksOffExponentially(t *testing.T) {
	now := time.Now()
	tcb := NewTCB(1000, DefaultBufferSize, DefaultBufferSize)
	tcb.State = StateEstablished
	tcb.WndProbeInterval = DefaultProbeInterval
	deadline := now
	tcb.PersistTimer = &deadline

	actions := RunTimerCycle(tcb, now)
	if len(actions) != 1 || !actions[0].SendProbe {
		t.Fatalf("expected a probe action, got %+v", actions)
	}
	if tcb.WndProbeInterval != 2*DefaultProbeInterval {
		t.Fatalf("expected interval doubled, got %v", tcb.WndProbeInterval)
	}
}

func TestFinWait2TimerForcesClosed(t *testing.T) {
	now := time.Now()
	tcb := &TCB{State: StateFinWait2}
	deadline := now
	tcb.FinWait2Timer = &deadline

	actions := RunTimerCycle(tcb, now)
	if len(actions) != 1 || !actions[0].ForceClosed {
		t.Fatalf("expected ForceClosed, got %+v", actions)
	}
	if tcb.State != StateClosed || !tcb.ClosedFlag {
		t.Fatalf("expected CLOSED with closedFlag set, got state=%v closedFlag=%v", tcb.State, tcb.ClosedFlag)
	}
}

func TestOverrideTimerFlushesWithPendingData(t *testing.T) {
	now := time.Now()
	tcb := &TCB{SndUser: 10}
	deadline := now
	tcb.OverrideTimer = &deadline

	actions := RunTimerCycle(tcb, now)
	if len(actions) != 1 || !actions[0].FlushOverride {
		t.Fatalf("expected FlushOverride action, got %+v", actions)
	}
	if tcb.OverrideTimer != nil {
		t.Fatal("expected override timer cleared after firing")
	}
}
