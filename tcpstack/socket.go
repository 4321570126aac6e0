package tcpstack

import (
	"time"

	"github.com/netembed/tcpip/internal/bufchunk"
	"github.com/netembed/tcpip/internal/metrics"
	"github.com/netembed/tcpip/sockevent"
	"github.com/netembed/tcpip/tcpip"
)

// Socket is a STREAM socket: identity, bound addresses, the TCB once
// connected, and the event model of spec.md §4.H. Listening sockets carry
// a nil TCB.TxBuffer/RxBuffer and use TCB.SynQueue instead.
type Socket struct {
	LocalAddr, RemoteAddr [4]byte
	LocalPort, RemotePort uint16

	TCB    *TCB
	Events *sockevent.Events

	// ConnID is a process-relative identifier assigned by Stack.Connect/
	// Accept, for log and metric correlation only (spec.md §3's
	// "Connection identity" addition); never part of wire format or
	// protocol state.
	ConnID string

	NoDelay bool

	Sender Sender
}

// NewSocket creates an unconnected socket with its event model ready.
func NewSocket() *Socket {
	return &Socket{Events: sockevent.NewEvents()}
}

// setState transitions the TCB to s, applying the closedFlag/resetFlag
// and event-flag rules of spec.md §4.G.2.
func (sock *Socket) setState(s State) {
	t := sock.TCB
	prev := t.State
	t.State = s

	if s == StateClosed {
		switch prev {
		case StateLastAck, StateTimeWait:
			t.ClosedFlag = true
		default:
			t.ResetFlag = true
		}
	}

	if flags := sockEventsForState(s); flags != 0 {
		sock.Events.Update(flags)
	}
}

// sockEventsForState computes the event-flag bits spec.md §4.G.2
// attaches to entering state s.
func sockEventsForState(s State) sockevent.Flag {
	switch s {
	case StateEstablished, StateFinWait1:
		return sockevent.Connected
	case StateFinWait2:
		return sockevent.Connected | sockevent.TxShutdown
	case StateCloseWait, StateLastAck, StateClosing:
		return sockevent.Connected | sockevent.RxShutdown
	case StateTimeWait, StateClosed:
		return sockevent.Closed | sockevent.TxShutdown | sockevent.RxShutdown
	default:
		return 0
	}
}

// UpdateTxEvents refreshes TX_READY/TX_DONE/TX_ACKED per spec.md §4.H.
func (sock *Socket) UpdateTxEvents() {
	t := sock.TCB
	var set, clear sockevent.Flag

	txRoom := t.TxBufSize-(t.SndUser+int(t.FlightSize())) > 0
	active := t.State == StateEstablished || t.State == StateCloseWait
	if txRoom && active {
		set |= sockevent.TxReady
	} else {
		clear |= sockevent.TxReady
	}

	if t.SndUser == 0 {
		set |= sockevent.TxDone
	} else {
		clear |= sockevent.TxDone
	}

	if t.SndUser == 0 && t.SndUna.GreaterThanEq(t.SndNxt) {
		set |= sockevent.TxAcked
	} else {
		clear |= sockevent.TxAcked
	}

	sock.Events.Clear(clear)
	sock.Events.Update(set)
}

// UpdateRxEvents refreshes RX_READY per spec.md §4.H.
func (sock *Socket) UpdateRxEvents() {
	t := sock.TCB
	noMoreReads := t.State == StateCloseWait || t.State == StateLastAck ||
		t.State == StateClosing || t.State == StateTimeWait || t.State == StateClosed
	if t.RcvUser > 0 || noMoreReads {
		sock.Events.Update(sockevent.RxReady)
	} else {
		sock.Events.Clear(sockevent.RxReady)
	}
}

// Connect implements tcpConnect (spec.md §6.4): sends the initial SYN and
// transitions CLOSED -> SYN_SENT.
func (sock *Socket) Connect(smss uint16, txSize, rxSize int, isn tcpip.Seq, now time.Time) {
	t := NewTCB(smss, txSize, rxSize)
	t.TxBuffer = bufchunk.NewRing(txSize, isn)
	t.ISS = isn
	t.SndUna = isn
	t.SndNxt = isn.Add(1)
	sock.TCB = t
	sock.setState(StateSynSent)

	seg := &Segment{
		Seq: isn, Flags: FlagSYN, Window: clampWindow(t.RcvWnd),
		MSS: t.RMSS,
	}
	sock.transmit(seg, nil, true, now)
	metrics.TCPActiveOpens.Inc()
}

// HandleSynSent processes an inbound segment while in SYN_SENT (RFC 793
// §3.4, spec.md §4.G.2): accepts SYN+ACK, moves to ESTABLISHED and acks.
func (sock *Socket) HandleSynSent(seg *Segment, now time.Time) {
	t := sock.TCB
	ackOk := seg.HasFlag(FlagACK) && !seg.Ack.LessThanEq(t.ISS) && !seg.Ack.GreaterThan(t.SndNxt)
	if seg.HasFlag(FlagACK) && !ackOk {
		if !seg.HasFlag(FlagRST) {
			sock.transmit(&Segment{Seq: seg.Ack, Flags: FlagRST}, nil, false, now)
		}
		return
	}
	if seg.HasFlag(FlagRST) {
		if seg.HasFlag(FlagACK) {
			t.ResetFlag = true
			sock.setState(StateClosed)
		}
		return
	}
	if !seg.HasFlag(FlagSYN) {
		return
	}
	t.IRS = seg.Seq
	t.RcvNxt = seg.Seq.Add(1)
	t.RxBuffer = bufchunk.NewRing(t.RxBufSize, t.IRS.Add(1))
	if seg.HasMSS {
		t.SMSS = seg.MSS
	}

	t.SndWnd = uint32(seg.Window)
	t.MaxSndWnd = t.SndWnd
	t.SndWl1 = seg.Seq
	t.SndWl2 = seg.Ack

	if seg.HasFlag(FlagACK) {
		t.SndUna = seg.Ack
		sock.setState(StateEstablished)
		ack := &Segment{Seq: t.SndNxt, Ack: t.RcvNxt, Flags: FlagACK, Window: clampWindow(t.RcvWnd)}
		sock.transmit(ack, nil, false, now)
	} else {
		sock.setState(StateSynReceived)
		synack := &Segment{
			Seq: t.ISS, Ack: t.RcvNxt, Flags: FlagSYN | FlagACK,
			Window: clampWindow(t.RcvWnd), MSS: t.RMSS,
		}
		sock.transmit(synack, nil, true, now)
	}
}

// Accept implements tcpAccept (spec.md §4.G.13, §6.4): dequeues a pending
// SYN, allocates a new connected socket in SYN_RECEIVED, sending SYN+ACK.
func Accept(listener *Socket, smss uint16, txSize, rxSize int, isn tcpip.Seq, now time.Time) (*Socket, bool) {
	entry, ok := DequeueSyn(listener.TCB)
	if !ok {
		return nil, false
	}
	conn := NewSocket()
	conn.LocalAddr = entry.DestAddr
	conn.LocalPort = entry.DestPort
	conn.RemoteAddr = entry.SrcAddr
	conn.RemotePort = entry.SrcPort

	t := NewTCB(smss, txSize, rxSize)
	t.IRS = entry.ISN
	t.RcvNxt = entry.ISN.Add(1)
	t.RxBuffer = bufchunk.NewRing(rxSize, t.IRS.Add(1))
	t.ISS = isn
	t.SndUna = isn
	t.SndNxt = isn.Add(1)
	t.TxBuffer = bufchunk.NewRing(txSize, isn)
	if entry.MSS != 0 {
		t.SMSS = entry.MSS
	}
	conn.TCB = t
	conn.setState(StateSynReceived)

	synack := &Segment{
		Seq: isn, Ack: t.RcvNxt, Flags: FlagSYN | FlagACK,
		Window: clampWindow(t.RcvWnd), MSS: t.RMSS,
	}
	conn.transmit(synack, nil, true, now)
	metrics.TCPPassiveOpens.Inc()
	return conn, true
}

// Send implements tcpSend (spec.md §6.4): queues bytes for transmission
// and runs the Nagle-gated send path.
func (sock *Socket) Send(data []byte, now time.Time) (int, error) {
	t := sock.TCB
	if t == nil || !(t.State == StateEstablished || t.State == StateCloseWait) {
		return 0, tcpip.ErrNotConnected
	}
	room := t.TxBufSize - (t.SndUser + int(t.FlightSize()))
	if room <= 0 {
		return 0, nil
	}
	n := len(data)
	if n > room {
		n = room
	}
	t.TxBuffer.WriteAt(t.SndNxt.Add(t.SndUser), data[:n])
	t.SndUser += n

	sock.RunSend(now)
	sock.UpdateTxEvents()
	return n, nil
}

// RunSend drives the Nagle-gated send path, transmitting as many segments
// as the window currently allows.
func (sock *Socket) RunSend(now time.Time) {
	t := sock.TCB
	SendPath(t, sock.NoDelay, now, func(n int) {
		payload := t.TxBuffer.ReadAt(t.SndNxt, n)
		seg := &Segment{
			Seq: t.SndNxt, Ack: t.RcvNxt, Flags: FlagACK,
			Window: clampWindow(t.RcvWnd),
		}
		if n > 0 {
			seg.Flags |= FlagPSH
		}
		sock.transmit(seg, payload, true, now)
	})
}

// transmit builds, queues (if addToQueue) and hands a segment to the
// Sender, and starts an RTT measurement / arms the retransmit timer per
// spec.md §4.G.4.
func (sock *Socket) transmit(seg *Segment, payload []byte, addToQueue bool, now time.Time) {
	t := sock.TCB

	if addToQueue {
		if !t.RTTBusy {
			t.RTTSeqNum = seg.Seq
			t.RTTStart = now
			t.RTTBusy = true
		}
		t.RetransmitQueue = append(t.RetransmitQueue, RetransmitSeg{
			Seq: seg.Seq, Length: seg.Len(), Header: BuildSegment(seg, 0, nil),
		})
		if t.RetransmitTimer == nil {
			deadline := now.Add(t.RTO)
			t.RetransmitTimer = &deadline
			t.RetransmitCount = 0
		}
		if seg.HasFlag(FlagSYN) || len(payload) > 0 {
			t.KeepAliveTimestamp = now
		}
	}

	metrics.TCPOutSegs.Inc()
	if sock.Sender != nil {
		sock.Sender.TransmitSegment(seg, payload, addToQueue)
	}
}

// Shutdown implements tcpShutdown (spec.md §6.4): how selects SEND,
// RECEIVE or BOTH.
type ShutdownHow int

const (
	ShutdownSend ShutdownHow = iota
	ShutdownReceive
	ShutdownBoth
)

// Shutdown sends a FIN for the SEND direction per RFC 793's active-close
// transitions.
func (sock *Socket) Shutdown(how ShutdownHow, now time.Time) error {
	t := sock.TCB
	if t == nil {
		return tcpip.ErrNotConnected
	}
	if how == ShutdownReceive {
		return nil // receive-only shutdown has no wire effect here
	}
	switch t.State {
	case StateEstablished:
		sock.setState(StateFinWait1)
	case StateCloseWait:
		sock.setState(StateLastAck)
	default:
		return tcpip.ErrConnectionClosing
	}
	fin := &Segment{Seq: t.SndNxt, Ack: t.RcvNxt, Flags: FlagFIN | FlagACK, Window: clampWindow(t.RcvWnd)}
	sock.transmit(fin, nil, true, now)
	t.SndNxt = t.SndNxt.Add(1)
	return nil
}

// Abort implements tcpAbort: synthesizes an RST and forces CLOSED.
func (sock *Socket) Abort(now time.Time) {
	t := sock.TCB
	if t == nil {
		return
	}
	rst := &Segment{Seq: t.SndNxt, Flags: FlagRST}
	sock.transmit(rst, nil, false, now)
	t.ResetFlag = true
	sock.setState(StateClosed)
	metrics.TCPOutRsts.Inc()
}

// GetState implements tcpGetState.
func (sock *Socket) GetState() State {
	if sock.TCB == nil {
		return StateClosed
	}
	return sock.TCB.State
}
