package bufchunk

import "github.com/netembed/tcpip/tcpip"

// Ring is a fixed-capacity circular byte buffer addressed by absolute TCP
// sequence number, backing the per-socket txBuffer/rxBuffer of spec.md §3.
// It never copies data out except on demand (WriteAt/ReadAt), so the TCP
// retransmit queue can hold only {seq, length} descriptors and re-read
// payload from here (design note §9).
type Ring struct {
	data []byte
	base tcpip.Seq // sequence number corresponding to data[0]
}

// NewRing allocates a ring of the given capacity, anchored so that
// sequence number base maps to offset 0.
func NewRing(capacity int, base tcpip.Seq) *Ring {
	return &Ring{data: make([]byte, capacity), base: base}
}

// Cap returns the ring's fixed capacity.
func (r *Ring) Cap() int { return len(r.data) }

// offset maps an absolute sequence number to a ring index.
func (r *Ring) offset(seq tcpip.Seq) int {
	d := seq.Diff(r.base)
	n := len(r.data)
	idx := int(d) % n
	if idx < 0 {
		idx += n
	}
	return idx
}

// WriteAt writes p into the ring starting at sequence number seq, wrapping
// as needed. It never grows the ring; at most Cap() bytes of p are
// written and the rest is dropped.
func (r *Ring) WriteAt(seq tcpip.Seq, p []byte) int {
	n := len(r.data)
	written := 0
	idx := r.offset(seq)
	for written < len(p) && written < n {
		r.data[idx] = p[written]
		idx++
		if idx == n {
			idx = 0
		}
		written++
	}
	return written
}

// ReadAt copies length bytes starting at sequence number seq out of the
// ring into a freshly allocated slice.
func (r *Ring) ReadAt(seq tcpip.Seq, length int) []byte {
	n := len(r.data)
	if length > n {
		length = n
	}
	out := make([]byte, length)
	idx := r.offset(seq)
	for i := 0; i < length; i++ {
		out[i] = r.data[idx]
		idx++
		if idx == n {
			idx = 0
		}
	}
	return out
}

// Base returns the sequence number anchoring the ring (iss for a txBuffer,
// irs for an rxBuffer). It never changes after NewRing: the ring's fixed
// capacity is what bounds the reachable window, per the "Retransmit queue
// buffer invariant" in spec.md §3 -- offset = (seq - base) mod capacity.
func (r *Ring) Base() tcpip.Seq { return r.base }
