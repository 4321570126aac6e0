// Package netiface implements the NIC abstraction of spec.md §4.B: a
// driver contract any Ethernet controller (real or simulated) implements,
// and the Interface type binding a driver to an address, a MAC filter
// table and an ARP cache.
//
// Grounded on the teacher's collector.Run poll-loop shape for the tick
// contract, and on vishvananda/netlink for the hosted link-state mirror
// in linkwatch.go.
package netiface

import (
	"github.com/netembed/tcpip/internal/bufchunk"
	"github.com/netembed/tcpip/linklayer/arp"
	"github.com/netembed/tcpip/linklayer/macfilter"
	"github.com/netembed/tcpip/tcpip"
)

// Features describes the hardware offloads a Driver exposes, matching
// spec.md §4.B's feature-flag list. When a flag is false, the Ethernet
// layer performs that work in software.
type Features struct {
	AutoPadding  bool // driver pads short frames to 60 bytes
	AutoCRCCalc  bool // driver appends the outbound frame CRC
	AutoCRCVerif bool // driver verifies the inbound frame CRC
	AutoCRCStrip bool // driver strips the trailing CRC before delivery
}

// Driver is the contract spec.md §4.B assigns to a NIC controller driver.
type Driver interface {
	// Init brings the controller up: reset, MAC address load, interrupt
	// enable. Returns the driver's declared Features.
	Init() (Features, error)

	// Tick services controller housekeeping (link state poll, error
	// counter drain) on the periodic driver's schedule (spec.md §4.I).
	Tick() error

	// EnableIRQ / DisableIRQ toggle whether EventHandler will be invoked;
	// used to create critical sections around shared controller state on
	// real hardware.
	EnableIRQ()
	DisableIRQ()

	// SetEventHandler installs the handler invoked (synchronously, from
	// Tick or an interrupt context a real build would have) with received
	// frames.
	SetEventHandler(func(frame *bufchunk.Buffer))

	// SendPacket transmits a single already-framed Ethernet frame.
	SendPacket(frame *bufchunk.Buffer) error

	// UpdateMACAddrFilter pushes the current filter table contents to
	// hardware. Implements macfilter.UpdateFunc.
	UpdateMACAddrFilter(t *macfilter.Table) error
}

// LinkState mirrors spec.md §3's Network interface link fields.
type LinkState int

const (
	LinkDown LinkState = iota
	LinkUp
)

// Interface is the NIC-abstraction record of spec.md §3: identity,
// address, filter table, ARP cache and a driver handle. A physical
// interface has Parent == nil; a logical (VLAN/VMAN/switch-port) child
// interface chains up to its physical parent via Parent.
type Interface struct {
	Index int
	Name  string
	MAC   tcpip.MACAddr

	Link  LinkState
	Speed uint32 // Mbps, 0 if unknown
	Full  bool   // full duplex

	VLANID int // 0 if untagged
	VMANID int // 0 if not a provider-bridged sub-interface
	SwitchPortID int // 0 if not bound to a physical switch port

	Parent *Interface // nil for a physical interface

	Filter *macfilter.Table
	Neigh  *arp.Cache

	Driver   Driver
	Features Features

	// onFrame is installed by the Ethernet layer (linklayer/ethernet,
	// via BindOnFrame) to receive frames the driver hands up.
	onFrame func(frame *bufchunk.Buffer)
}

// New creates a physical Interface bound to drv, bringing the driver up
// via Init and wiring its MAC filter table to drv.UpdateMACAddrFilter.
func New(index int, name string, drv Driver, filterSize, arpCacheSize int) (*Interface, error) {
	feat, err := drv.Init()
	if err != nil {
		return nil, err
	}
	iface := &Interface{
		Index:    index,
		Name:     name,
		Driver:   drv,
		Features: feat,
	}
	iface.Filter = macfilter.New(filterSize, drv.UpdateMACAddrFilter)
	iface.Neigh = arp.NewCache(arpCacheSize)
	drv.SetEventHandler(func(frame *bufchunk.Buffer) {
		if iface.onFrame != nil {
			iface.onFrame(frame)
		}
	})
	return iface, nil
}

// BindOnFrame installs the Ethernet layer's inbound frame callback.
func (iface *Interface) BindOnFrame(f func(frame *bufchunk.Buffer)) {
	iface.onFrame = f
}

// Child creates a logical sub-interface (VLAN, VMAN, or switch-port bound)
// chained to parent. Logical interfaces share the parent's driver and MAC
// address but have their own filter table and ARP cache.
func Child(parent *Interface, index int, name string, vlanID, vmanID, switchPortID int, filterSize, arpCacheSize int) *Interface {
	return &Interface{
		Index:        index,
		Name:         name,
		MAC:          parent.MAC,
		Parent:       parent,
		VLANID:       vlanID,
		VMANID:       vmanID,
		SwitchPortID: switchPortID,
		Driver:       parent.Driver,
		Features:     parent.Features,
		Filter:       macfilter.New(filterSize, parent.Driver.UpdateMACAddrFilter),
		Neigh:        arp.NewCache(arpCacheSize),
	}
}

// Physical walks Parent links to find the physical interface backing
// iface (spec.md §4.B "logical-MAC and physical-interface resolution").
func (iface *Interface) Physical() *Interface {
	cur := iface
	for cur.Parent != nil {
		cur = cur.Parent
	}
	return cur
}

// LogicalMAC resolves the MAC address a logical interface transmits
// with -- always the address owned by its physical root.
func (iface *Interface) LogicalMAC() tcpip.MACAddr {
	return iface.Physical().MAC
}

// Send frames out through the bound driver.
func (iface *Interface) Send(frame *bufchunk.Buffer) error {
	return iface.Physical().Driver.SendPacket(frame)
}
