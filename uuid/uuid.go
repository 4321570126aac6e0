// Package uuid builds a per-process-run, per-connection identifier string
// for tcpstack.Stack's log/metric correlation (spec.md §3's "Connection
// identity" addition).
//
// The teacher's uuid package derived its prefix from a kernel socket's
// SO_COOKIE plus /proc/uptime-derived boot time, since it had to identify
// a connection the kernel itself owned. A Socket here is a pure in-memory
// TCB with no file descriptor and no guarantee of running under Linux, so
// both of those sources are replaced: the suffix comes from
// tcpstack.Stack's own monotonically increasing connSeq ordinal, and the
// prefix from this process's hostname and start time, not the kernel's
// boot time.
package uuid

import (
	"fmt"
	"os"
	"time"
)

var (
	processStart       = time.Now()
	cachedPrefixString = ""
)

// prefix returns a string identifying this process run: hostname plus
// the Unix time it started, constant for the life of the program.
func prefix() (string, error) {
	if cachedPrefixString == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return "", err
		}
		cachedPrefixString = fmt.Sprintf("%s_%d", hostname, processStart.Unix())
	}
	return cachedPrefixString, nil
}

// FromSeq returns a string that globally identifies the connection
// assigned ordinal seq by a Stack, unique across this process's lifetime
// and, via the hostname+start-time prefix, across process restarts too.
func FromSeq(seq uint64) (string, error) {
	p, err := prefix()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%X", p, seq), nil
}
