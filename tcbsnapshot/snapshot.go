// Package tcbsnapshot exports a connection's TCB as a flat, CSV-taggable
// row, for offline debugging and testing the way the teacher's snapshot
// package flattened a kernel INET_DIAG response into a csv-tagged
// Snapshot struct for gocsv to marshal.
//
// There is no kernel route attribute to decode here -- a Socket's TCB is
// already a plain Go struct -- so Decode's job shrinks to a field-by-field
// copy instead of unsafe.Pointer ABI overlays.
package tcbsnapshot

import (
	"fmt"
	"time"

	"github.com/netembed/tcpip/tcpstack"
)

// Snapshot is one CSV row describing a connection's TCB at Timestamp.
type Snapshot struct {
	Timestamp time.Time

	LocalAddr  string `csv:"local_addr"`
	RemoteAddr string `csv:"remote_addr"`
	LocalPort  uint16 `csv:"local_port"`
	RemotePort uint16 `csv:"remote_port"`

	State string `csv:"state"`

	SndUna    uint32 `csv:"snd_una"`
	SndNxt    uint32 `csv:"snd_nxt"`
	SndWnd    uint32 `csv:"snd_wnd"`
	FlightSize uint32 `csv:"flight_size"`

	RcvNxt uint32 `csv:"rcv_nxt"`
	RcvWnd uint32 `csv:"rcv_wnd"`

	SRTT time.Duration `csv:"srtt"`
	RTO  time.Duration `csv:"rto"`

	Cwnd         uint32 `csv:"cwnd"`
	Ssthresh     uint32 `csv:"ssthresh"`
	DupAckCount  int    `csv:"dup_ack_count"`
	CongestState string `csv:"congest_state"`

	RetransmitCount int `csv:"retransmit_count"`

	ClosedFlag bool `csv:"closed"`
	ResetFlag  bool `csv:"reset"`
}

// formatAddr renders a raw IPv4 four-tuple address the way net.IP.String
// would, without pulling in net just for this.
func formatAddr(addr [4]byte) string {
	return fmt.Sprintf("%d.%d.%d.%d", addr[0], addr[1], addr[2], addr[3])
}

// FromSocket flattens sock's current TCB into a Snapshot row timestamped
// now. Grounded on the teacher's snapshot.Decode, generalized from
// "kernel route attributes" to "this stack's own TCB fields".
func FromSocket(sock *tcpstack.Socket, now time.Time) *Snapshot {
	t := sock.TCB
	return &Snapshot{
		Timestamp:  now,
		LocalAddr:  formatAddr(sock.LocalAddr),
		RemoteAddr: formatAddr(sock.RemoteAddr),
		LocalPort:  sock.LocalPort,
		RemotePort: sock.RemotePort,

		State: t.State.String(),

		SndUna:     uint32(t.SndUna),
		SndNxt:     uint32(t.SndNxt),
		SndWnd:     t.SndWnd,
		FlightSize: t.FlightSize(),

		RcvNxt: uint32(t.RcvNxt),
		RcvWnd: t.RcvWnd,

		SRTT: t.SRTT,
		RTO:  t.RTO,

		Cwnd:         t.Cwnd,
		Ssthresh:     t.Ssthresh,
		DupAckCount:  t.DupAckCount,
		CongestState: t.CongestState.String(),

		RetransmitCount: t.RetransmitCount,

		ClosedFlag: t.ClosedFlag,
		ResetFlag:  t.ResetFlag,
	}
}
