package tcpstack

// EnqueueSyn implements spec.md §4.G.13's incoming-SYN handling on a
// LISTEN socket: reject duplicates of an already-queued four-tuple,
// drop if the backlog is full, else enqueue. Returns false if the SYN
// was dropped (duplicate or full queue).
func EnqueueSyn(t *TCB, entry SynQueueEntry) bool {
	for _, e := range t.SynQueue {
		if e.SrcAddr == entry.SrcAddr && e.SrcPort == entry.SrcPort && e.DestAddr == entry.DestAddr {
			return false
		}
	}
	backlog := t.SynBacklog
	if backlog <= 0 {
		backlog = SynQueueDefault
	}
	if backlog > SynQueueMax {
		backlog = SynQueueMax
	}
	if len(t.SynQueue) >= backlog {
		return false
	}
	t.SynQueue = append(t.SynQueue, entry)
	return true
}

// DequeueSyn pops the oldest pending entry for accept(), per spec.md
// §4.G.13.
func DequeueSyn(t *TCB) (SynQueueEntry, bool) {
	if len(t.SynQueue) == 0 {
		return SynQueueEntry{}, false
	}
	e := t.SynQueue[0]
	t.SynQueue = t.SynQueue[1:]
	return e, true
}

// NegotiatedMSS picks the smaller of the remote-advertised MSS and our
// own RMSS, per spec.md §4.G.13's "mss := min(remoteMSS, localRMSS)".
func NegotiatedMSS(remoteMSS, localRMSS uint16) uint16 {
	if remoteMSS == 0 {
		remoteMSS = DefaultMSS
	}
	if remoteMSS < localRMSS {
		return remoteMSS
	}
	return localRMSS
}
