package tcpip

import (
	"fmt"
	"strconv"
	"strings"
)

// MACAddr is a 6-byte Ethernet hardware address.
type MACAddr [6]byte

// EUI64Addr is an 8-byte EUI-64 identifier, as produced from a MAC address
// via the RFC 4291 rule.
type EUI64Addr [8]byte

// Well-known addresses published by the stack (spec.md §6.4).
var (
	MACUnspecifiedAddr = MACAddr{}
	MACBroadcastAddr    = MACAddr{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	EUI64UnspecifiedAddr = EUI64Addr{}
)

// IsUnspecified reports whether m is the all-zero address.
func (m MACAddr) IsUnspecified() bool { return m == MACUnspecifiedAddr }

// IsBroadcast reports whether m is the all-ones broadcast address.
func (m MACAddr) IsBroadcast() bool { return m == MACBroadcastAddr }

// IsMulticast reports whether m has the multicast bit set in its first
// octet (I/G bit).
func (m MACAddr) IsMulticast() bool { return m[0]&0x01 != 0 }

// String renders m in colon-separated hex, e.g. "00:1b:63:84:45:e6".
func (m MACAddr) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

// MACStringToAddr parses a MAC address formatted as XX-XX-XX-XX-XX-XX or
// XX:XX:XX:XX:XX:XX (hex, case-insensitive). Returns ErrInvalidSyntax for
// anything else.
func MACStringToAddr(s string) (MACAddr, error) {
	var addr MACAddr
	sep := ":"
	if strings.Contains(s, "-") {
		sep = "-"
	}
	parts := strings.Split(s, sep)
	if len(parts) != 6 {
		return addr, ErrInvalidSyntax
	}
	for i, p := range parts {
		if len(p) != 2 {
			return addr, ErrInvalidSyntax
		}
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return addr, ErrInvalidSyntax
		}
		addr[i] = byte(v)
	}
	return addr, nil
}

// MACAddrToString is the inverse of MACStringToAddr, using colon
// separators. Round-trips through MACStringToAddr for any valid MAC.
func MACAddrToString(m MACAddr) string {
	return m.String()
}

// MACAddrToEUI64 derives an EUI-64 identifier from a MAC address per
// RFC 4291: insert FF FE between the OUI and the NIC-specific bytes, and
// toggle the Universal/Local bit (bit 1 of the first octet, 0x02) since a
// 48-bit MAC is a "local" address relative to a true 64-bit EUI.
func MACAddrToEUI64(m MACAddr) EUI64Addr {
	var e EUI64Addr
	e[0] = m[0] ^ 0x02
	e[1] = m[1]
	e[2] = m[2]
	e[3] = 0xFF
	e[4] = 0xFE
	e[5] = m[3]
	e[6] = m[4]
	e[7] = m[5]
	return e
}

// String renders e in colon-separated hex.
func (e EUI64Addr) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x:%02x:%02x",
		e[0], e[1], e[2], e[3], e[4], e[5], e[6], e[7])
}

// EUI64AddrToString is an alias of EUI64Addr.String kept for symmetry with
// the spec's function-based API (spec.md §6.4).
func EUI64AddrToString(e EUI64Addr) string { return e.String() }

// EUI64StringToAddr parses a colon- or hyphen-separated 8-byte hex string
// into an EUI64Addr. Round-trips through EUI64AddrToString.
func EUI64StringToAddr(s string) (EUI64Addr, error) {
	var addr EUI64Addr
	sep := ":"
	if strings.Contains(s, "-") {
		sep = "-"
	}
	parts := strings.Split(s, sep)
	if len(parts) != 8 {
		return addr, ErrInvalidSyntax
	}
	for i, p := range parts {
		if len(p) != 2 {
			return addr, ErrInvalidSyntax
		}
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return addr, ErrInvalidSyntax
		}
		addr[i] = byte(v)
	}
	return addr, nil
}
