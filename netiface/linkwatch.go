//go:build linux

package netiface

import (
	"github.com/vishvananda/netlink"
)

// LinkWatcher mirrors a real Linux interface's link-state into an
// Interface's Link field, for environments where this stack runs hosted
// (test harness, simulation) alongside a real NIC instead of owning bare
// metal outright.
//
// Grounded on the teacher's collector_linux.go, which opens a netlink
// socket to watch kernel state instead of polling; generalized here from
// "watch socket diagnostics" to "watch one link's operational state".
type LinkWatcher struct {
	done chan struct{}
}

// WatchLink subscribes to link updates for the host interface named
// hostIfaceName, calling onChange(up, mtu) whenever its state changes,
// until Stop is called.
func WatchLink(hostIfaceName string, onChange func(up bool, mtu int)) (*LinkWatcher, error) {
	updates := make(chan netlink.LinkUpdate)
	done := make(chan struct{})
	if err := netlink.LinkSubscribe(updates, done); err != nil {
		return nil, err
	}
	go func() {
		for u := range updates {
			attrs := u.Link.Attrs()
			if attrs.Name != hostIfaceName {
				continue
			}
			onChange(attrs.OperState == netlink.OperUp, attrs.MTU)
		}
	}()
	return &LinkWatcher{done: done}, nil
}

// Stop ends the subscription goroutine started by WatchLink.
func (w *LinkWatcher) Stop() {
	close(w.done)
}

// MirrorInto wires WatchLink's callback directly into iface.Link, the
// common case of tracking a real host link's up/down state on an
// Interface that otherwise has no hardware of its own to report it.
func MirrorInto(iface *Interface, hostIfaceName string) (*LinkWatcher, error) {
	return WatchLink(hostIfaceName, func(up bool, mtu int) {
		if up {
			iface.Link = LinkUp
		} else {
			iface.Link = LinkDown
		}
	})
}
