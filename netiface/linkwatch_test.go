//go:build linux

package netiface

import "testing"

// TestWatchLinkSubscribesAndStops only exercises the subscribe/unsubscribe
// lifecycle against the loopback interface, which exists in every Linux
// environment -- it does not assert on any particular link-state
// transition, since nothing in a test run causes "lo" to change state.
func TestWatchLinkSubscribesAndStops(t *testing.T) {
	w, err := WatchLink("lo", func(up bool, mtu int) {})
	if err != nil {
		t.Fatalf("WatchLink returned error: %v", err)
	}
	w.Stop()
}

func TestMirrorIntoWiresIntoInterface(t *testing.T) {
	iface := &Interface{Name: "lo"}
	w, err := MirrorInto(iface, "lo")
	if err != nil {
		t.Fatalf("MirrorInto returned error: %v", err)
	}
	w.Stop()
}
