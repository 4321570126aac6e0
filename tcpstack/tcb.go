package tcpstack

import (
	"time"

	"github.com/netembed/tcpip/internal/bufchunk"
	"github.com/netembed/tcpip/tcpip"
)

// Tunable constants (spec.md §4.G.1).
const (
	MaxMSS     = 1430
	MinMSS     = 64
	DefaultMSS = 536

	DefaultBufferSize = 2860
	MaxBufferSize     = 22880

	MaxRetries          = 5
	InitialRTO          = 1000 * time.Millisecond
	MinRTO              = 1000 * time.Millisecond
	MaxRTO              = 60 * time.Second
	FastRetransmitThres = 3

	InitialWindowSMSS = 3
	LossWindowSMSS    = 1

	DefaultProbeInterval = 1 * time.Second
	MaxProbeInterval     = 60 * time.Second
	OverrideTimeout      = 500 * time.Millisecond
	FinWait2Timeout      = 4 * time.Second
	TimeWaitTimeout      = 4 * time.Second

	SACKMaxBlocks = 4

	SynQueueDefault = 4
	SynQueueMax     = 16

	EphemeralPortMin = 49152
	EphemeralPortMax = 65535
)

// CongestState is the TCB's congestion-control phase (spec.md §4.G.6).
type CongestState int

const (
	CongestIdle CongestState = iota
	CongestRecovery
	CongestLossRecovery
)

func (s CongestState) String() string {
	switch s {
	case CongestIdle:
		return "IDLE"
	case CongestRecovery:
		return "RECOVERY"
	case CongestLossRecovery:
		return "LOSS_RECOVERY"
	default:
		return "UNKNOWN"
	}
}

// SACKBlock is a disjoint received range above rcvNxt (spec.md §3, §4.G.8).
type SACKBlock struct {
	Left, Right tcpip.Seq
}

// RetransmitSeg is a retransmit-queue descriptor: a header snapshot plus
// the {seq, length} tuple used to re-read payload from the TX ring
// (spec.md §3 "Retransmit queue buffer invariant", design note §9).
type RetransmitSeg struct {
	Seq    tcpip.Seq
	Length int
	Sacked bool
	Header []byte // snapshot of the transmitted TCP header + options
}

// SynQueueEntry is a pending half-open connection on a listening socket
// (spec.md §3, §4.G.13).
type SynQueueEntry struct {
	SrcAddr  [4]byte
	SrcPort  uint16
	DestAddr [4]byte
	DestPort uint16
	ISN      tcpip.Seq
	MSS      uint16
}

// TCB is the TCP Control Block of spec.md §3/§4.G: all per-connection
// state for a STREAM socket once it has left CLOSED/LISTEN.
type TCB struct {
	State State

	// Send side.
	ISS       tcpip.Seq
	SndUna    tcpip.Seq
	SndNxt    tcpip.Seq
	SndWnd    uint32
	MaxSndWnd uint32
	SndWl1    tcpip.Seq
	SndWl2    tcpip.Seq
	SndUser   int // bytes queued by the application, not yet sent
	SMSS      uint16

	// Receive side.
	IRS       tcpip.Seq
	RcvNxt    tcpip.Seq
	RcvWnd    uint32
	RcvUser   int // bytes received, not yet read by the application
	RMSS      uint16
	SACKBlocks []SACKBlock

	// RTO estimation (Van Jacobson).
	SRTT        time.Duration
	RTTVar      time.Duration
	RTO         time.Duration
	RTTSeqNum   tcpip.Seq
	RTTStart    time.Time
	RTTBusy     bool
	haveRTTSample bool

	// Congestion control.
	Cwnd         uint32
	Ssthresh     uint32
	Recover      tcpip.Seq
	DupAckCount  int
	CongestState CongestState
	ackedThisRTT int

	// Timers: each nil when idle, else the deadline.
	RetransmitTimer  *time.Time
	RetransmitCount  int
	PersistTimer     *time.Time
	WndProbeCount    int
	WndProbeInterval time.Duration
	FinWait2Timer    *time.Time
	TimeWaitTimer    *time.Time
	OverrideTimer    *time.Time

	// Keep-alive.
	KeepAliveEnabled    bool
	KeepAliveIdle       time.Duration
	KeepAliveInterval   time.Duration
	KeepAliveMaxProbes  int
	KeepAliveProbeCount int
	KeepAliveTimestamp  time.Time

	// Retransmit queue, oldest first.
	RetransmitQueue []RetransmitSeg

	// SYN queue (listeners only).
	SynQueue    []SynQueueEntry
	SynBacklog  int

	// TX/RX circular buffers, sized at connection creation.
	TxBuffer *bufchunk.Ring
	RxBuffer *bufchunk.Ring
	TxBufSize int
	RxBufSize int

	ClosedFlag bool
	ResetFlag  bool

	LastIdleActivity time.Time
}

// FlightSize is sndNxt - sndUna, the bytes sent but unacknowledged
// (GLOSSARY).
func (t *TCB) FlightSize() uint32 {
	return uint32(t.SndNxt.Diff(t.SndUna))
}

// UsableWindow is min(sndWnd, cwnd, txBufferSize) - flightSize (GLOSSARY).
func (t *TCB) UsableWindow() int {
	u := tcpip.MinU32(t.SndWnd, t.Cwnd)
	u = tcpip.MinU32(u, uint32(t.TxBufSize))
	usable := int(u) - int(t.FlightSize())
	if usable < 0 {
		return 0
	}
	return usable
}

// NewTCB allocates a TCB with default buffer sizes and congestion state
// (spec.md §4.G.1).
func NewTCB(smss uint16, txSize, rxSize int) *TCB {
	if txSize <= 0 {
		txSize = DefaultBufferSize
	}
	if rxSize <= 0 {
		rxSize = DefaultBufferSize
	}
	if smss == 0 {
		smss = DefaultMSS
	}
	t := &TCB{
		SMSS:      smss,
		RMSS:      smss,
		RTO:       InitialRTO,
		Cwnd:      uint32(InitialWindowSMSS) * uint32(smss),
		Ssthresh:  MaxBufferSize,
		TxBufSize: txSize,
		RxBufSize: rxSize,
		RcvWnd:    uint32(rxSize),
	}
	return t
}
