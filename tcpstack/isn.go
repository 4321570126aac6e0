package tcpstack

import (
	"crypto/md5"
	"encoding/binary"
	"math/rand"
	"time"

	"github.com/netembed/tcpip/tcpip"
)

// GenerateISN implements spec.md §4.G.3's default path: a random initial
// sequence number from netGetRand's Go analogue, math/rand.
func GenerateISN() tcpip.Seq {
	return tcpip.Seq(rand.Uint32())
}

// GenerateSecureISN implements spec.md §4.G.3's RFC 6528 secure path:
// MD5(localIP || localPort || remoteIP || remotePort || secretSeed),
// truncated to 32 bits, plus a monotonic tick so two connections to the
// same peer at the same instant still get distinct ISNs.
func GenerateSecureISN(localIP, remoteIP [4]byte, localPort, remotePort uint16, secretSeed []byte, tick uint32) tcpip.Seq {
	h := md5.New()
	h.Write(localIP[:])
	var portBuf [2]byte
	binary.BigEndian.PutUint16(portBuf[:], localPort)
	h.Write(portBuf[:])
	h.Write(remoteIP[:])
	binary.BigEndian.PutUint16(portBuf[:], remotePort)
	h.Write(portBuf[:])
	h.Write(secretSeed)
	sum := h.Sum(nil)
	base := binary.BigEndian.Uint32(sum[:4])
	return tcpip.Seq(base + tick)
}

// MonotonicTick derives the RFC 6528 monotonic component from a fixed
// epoch, incrementing roughly every 4 microseconds the way RFC 6528's
// reference implementation does, scaled down here to 1ms resolution
// since this stack's clock granularity is 100ms ticks (spec.md §4.I).
func MonotonicTick(since time.Time) uint32 {
	return uint32(time.Since(since).Milliseconds())
}
