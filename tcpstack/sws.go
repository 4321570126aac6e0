package tcpstack

// UpdateReceiveWindow implements spec.md §4.G.11: receiver-side SWS
// avoidance. It only advertises a new window once rcvWnd plus the
// accumulated reduction (the window it would advertise) reaches
// min(rmss, rxBufferSize/2), and returns whether an explicit ACK should be
// sent to announce the change (true when the old window was below that
// threshold).
func UpdateReceiveWindow(t *TCB) (sendACK bool) {
	reduction := t.RxBufSize - t.RcvUser - int(t.RcvWnd)
	threshold := int(t.RMSS)
	if half := t.RxBufSize / 2; half < threshold {
		threshold = half
	}

	wasSmall := int(t.RcvWnd) < threshold

	if int(t.RcvWnd)+reduction < threshold {
		return false
	}

	newWnd := t.RxBufSize - t.RcvUser
	if newWnd < 0 {
		newWnd = 0
	}
	t.RcvWnd = uint32(newWnd)

	return wasSmall
}
