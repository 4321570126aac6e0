// Package tcpip holds the types shared by every layer of the stack:
// the error taxonomy, link-layer addresses, and a few byte-order helpers.
// Nothing in this package touches the network; it exists so that
// linklayer/*, rawsocket and tcpstack can agree on vocabulary without
// importing each other.
package tcpip

import "errors"

// These sentinels are the uniform error values every public function in
// the stack returns; there is no dedicated Error type. The taxonomy is fixed by the spec; do not add new
// sentinels outside this list.
var (
	ErrOutOfMemory          = errors.New("out of memory")
	ErrOutOfResources        = errors.New("out of resources")
	ErrInvalidParameter      = errors.New("invalid parameter")
	ErrInvalidInterface      = errors.New("invalid interface")
	ErrInvalidAddress        = errors.New("invalid address")
	ErrInvalidLength         = errors.New("invalid length")
	ErrInvalidProtocol       = errors.New("invalid protocol")
	ErrInvalidSyntax         = errors.New("invalid syntax")
	ErrWrongChecksum         = errors.New("wrong checksum")
	ErrWrongIdentifier       = errors.New("wrong identifier")
	ErrAddressNotFound       = errors.New("address not found")
	ErrAlreadyConnected      = errors.New("already connected")
	ErrNotConnected          = errors.New("not connected")
	ErrConnectionClosing     = errors.New("connection closing")
	ErrConnectionReset       = errors.New("connection reset")
	ErrConnectionFailed      = errors.New("connection failed")
	ErrEndOfStream           = errors.New("end of stream")
	ErrTimeout               = errors.New("timeout")
	ErrInProgress            = errors.New("in progress")
	ErrFailure               = errors.New("failure")
	ErrReceiveQueueFull      = errors.New("receive queue full")
	ErrProtocolUnreachable   = errors.New("protocol unreachable")
	ErrUnexpectedState       = errors.New("unexpected state")
	ErrNotFound              = errors.New("not found")
	ErrBufferEmpty           = errors.New("buffer empty")
	ErrInvalidPacket         = errors.New("invalid packet")
)

// NoError reports that a call succeeded; it exists so that call sites
// mirroring the spec's `NO_ERROR` sentinel read naturally.
var NoError error
