package tcpstack

import (
	"time"

	"github.com/netembed/tcpip/tcpip"
)

// UpdateSendWindow implements spec.md §4.G.9: accept or reject a peer's
// advertised window update, tracking maxSndWnd and arming the persist
// timer when the window collapses to zero.
func UpdateSendWindow(t *TCB, seq, ack tcpip.Seq, win uint16, now time.Time) {
	newWnd := uint32(win)
	accept := false

	if seq == t.SndWl1 && ack == t.SndWl2 {
		accept = newWnd > t.SndWnd
	} else if seq.GreaterThan(t.SndWl1) || ack.GreaterThan(t.SndWl2) {
		accept = true
	}

	if !accept {
		return
	}

	oldWnd := t.SndWnd
	t.SndWnd = newWnd
	t.SndWl1 = seq
	t.SndWl2 = ack

	if newWnd == 0 && oldWnd > 0 {
		t.WndProbeInterval = DefaultProbeInterval
		t.WndProbeCount = 0
		deadline := now.Add(t.WndProbeInterval)
		t.PersistTimer = &deadline
	} else if newWnd > 0 {
		t.PersistTimer = nil
	}

	if newWnd > t.MaxSndWnd {
		t.MaxSndWnd = newWnd
	}
}
