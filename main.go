package main

import (
	"context"
	"flag"
	"log"
	"os"
	"runtime"
	"runtime/trace"
	"sync"
	"time"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"

	_ "net/http/pprof" // Support profiling

	"github.com/netembed/tcpip/netdevice"
	"github.com/netembed/tcpip/netiface"
	"github.com/netembed/tcpip/nettimer"
	"github.com/netembed/tcpip/sockevent"
	"github.com/netembed/tcpip/tcbsnapshot"
	"github.com/netembed/tcpip/tcpip"
	"github.com/netembed/tcpip/tcpstack"
)

func init() {
	// Always prepend the filename and line number.
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

var (
	reps        = flag.Int("reps", 0, "How many periodic ticks to run, 0 means continuous")
	enableTrace = flag.Bool("trace", false, "Enable trace")
	promPort    = flag.String("prom", ":9090", "Prometheus metrics export address and port. Default is ':9090'")
	localPort   = flag.Uint("port", 7, "Local TCP port the demonstration listener binds to")
	tcbCSV      = flag.String("tcb.csv", "", "If set, periodically append a CSV snapshot of every open connection's TCB to this file")

	ctx, cancel = context.WithCancel(context.Background())
)

// acceptLoop drains the listener's SYN queue as connections complete
// their handshake, logging each one. A byte-stream read/write API above
// the socket (spec.md's application-layer surface) is out of scope, so
// this only exercises the stack through the handshake and into
// ESTABLISHED.
//
// Each accepted socket gets a connection-lifecycle notification callback
// registered on its own sockevent.Events (spec.md §4.H's internal event
// model is the one place this module publishes connected/closed
// transitions -- there is no separate external broadcaster).
func acceptLoop(stack *tcpstack.Stack, listener *tcpstack.Socket) {
	for {
		now := time.Now()
		if conn, ok := stack.Accept(listener, 1460, tcpstack.DefaultBufferSize, tcpstack.DefaultBufferSize, now); ok {
			log.Printf("accepted connection from %v:%d (conn=%s)", conn.RemoteAddr, conn.RemotePort, conn.ConnID)
			conn.Events.RegisterUserEvent(func(flags sockevent.Flag) {
				if flags&sockevent.Closed != 0 {
					log.Printf("connection %s closed", conn.ConnID)
				}
			})
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// snapshotLoop appends one CSV row per open connection on stacks to recs
// every period, until ctx is canceled.
func snapshotLoop(ctx context.Context, stacks []*tcpstack.Stack, recs tcbsnapshot.RecordChan, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, stack := range stacks {
				for _, sock := range stack.Conns() {
					recs <- tcbsnapshot.FromSocket(sock, now)
				}
			}
		}
	}
}

func main() {
	flag.Parse()
	flagx.ArgsFromEnv(flag.CommandLine)

	// Performance instrumentation.
	runtime.SetBlockProfileRate(1000000) // 1 sample/msec
	runtime.SetMutexProfileFraction(1000)

	// Expose prometheus and pprof metrics on a separate port.
	promSrv := prometheusx.MustStartPrometheus(*promPort)
	defer promSrv.Shutdown(ctx)

	if *enableTrace {
		traceFile, err := os.Create("trace")
		rtx.Must(err, "Could not create trace file")
		rtx.Must(trace.Start(traceFile), "failed to start trace: %v", err)
		defer trace.Stop()
	}

	// No real hardware NIC driver is wired in this build (spec.md's
	// Non-goals exclude platform-specific link drivers); a SimPair
	// loopback pair stands in for two hosts on one wire, the way the
	// teacher's collector falls back to namespace-local netlink sockets
	// when run outside a real network namespace.
	drvLocal, drvPeer := netiface.NewSimPair(netiface.Features{})

	localAddr := [4]byte{127, 0, 0, 1}
	peerAddr := [4]byte{127, 0, 0, 2}

	localIface, err := netiface.New(0, "eth0", drvLocal, 64, 64)
	rtx.Must(err, "could not bring up local interface")
	localIface.MAC = tcpip.MACAddr{0x02, 0, 0, 0, 0, 1}

	peerIface, err := netiface.New(1, "eth0", drvPeer, 64, 64)
	rtx.Must(err, "could not bring up peer interface")
	peerIface.MAC = tcpip.MACAddr{0x02, 0, 0, 0, 0, 2}

	local := netdevice.New(localIface, localAddr, uint32(time.Now().UnixNano()), []byte("netstackd-secret"))
	peer := netdevice.New(peerIface, peerAddr, uint32(time.Now().UnixNano())+1, []byte("netstackd-secret"))

	if *tcbCSV != "" {
		f, err := os.Create(*tcbCSV)
		rtx.Must(err, "could not create %q", *tcbCSV)
		defer f.Close()
		var wg sync.WaitGroup
		recs := tcbsnapshot.NewWriter(f, &wg)
		go snapshotLoop(ctx, []*tcpstack.Stack{local.Stack, peer.Stack}, recs, time.Second)
		defer func() { close(recs); wg.Wait() }()
	}

	listener := local.Stack.Listen(uint16(*localPort), tcpstack.SynQueueDefault)
	log.Printf("listening on %v:%d", localAddr, *localPort)
	go acceptLoop(local.Stack, listener)

	// Drive one demonstration connection from the peer host across the
	// simulated wire, the way a real build's warm-up self-test would.
	peer.Stack.Connect(localAddr, uint16(*localPort), 1460, tcpstack.DefaultBufferSize, tcpstack.DefaultBufferSize, time.Now())

	timers := nettimer.New(
		func(now time.Time) { _ = drvLocal.Tick(); _ = drvPeer.Tick() },
		func(now time.Time) { local.Tick(); peer.Tick() },
		nil,
	)
	timers.Run(ctx, *reps)

	cancel()
	log.Println("netstackd shutting down")
}
