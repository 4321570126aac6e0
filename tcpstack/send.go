package tcpstack

import "time"

// Sender is the collaborator the send path uses to emit a built segment
// (wired by socket.go to the IP/Ethernet transmit path).
type Sender interface {
	TransmitSegment(seg *Segment, payload []byte, addToQueue bool)
}

// SendPath drains t.SndUser into one or more segments via emit, applying
// Nagle/SWS gating. emit is called with the byte length to send; the
// caller is responsible for reading that many bytes from the TX ring at
// t.SndNxt and building/transmitting the segment.
func SendPath(t *TCB, noDelay bool, now time.Time, emit func(n int)) {
	first := true
	for t.SndUser > 0 {
		u := t.UsableWindow()
		if u <= 0 {
			break
		}
		n := u
		if t.SndUser < n {
			n = t.SndUser
		}
		if int(t.SMSS) < n {
			n = int(t.SMSS)
		}

		send := noDelay
		if !send {
			switch {
			case minInt(t.SndUser, u) >= int(t.SMSS):
				send = true
			case t.SndNxt == t.SndUna && t.SndUser <= u:
				send = true
			case t.MaxSndWnd > 0 && minInt(t.SndUser, u) >= int(t.MaxSndWnd)/2:
				send = true
			}
		}
		if !send {
			break
		}

		emit(n)
		t.SndNxt = t.SndNxt.Add(n)
		t.SndUser -= n

		if first {
			deadline := now.Add(OverrideTimeout)
			t.OverrideTimer = &deadline
			first = false
		}
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
