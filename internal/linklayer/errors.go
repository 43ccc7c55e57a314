package linklayer

import "errors"

var (
	// errUnsupportedEtherType is returned by FilterFor for any ethertype
	// other than IP or ARP; the classifier programs only ever cover those
	// two (spec.md §4.C).
	errUnsupportedEtherType = errors.New("linklayer: no classifier program for this ethertype")

	// ErrNoInterface is returned by OpenCapture when Device carries a zero
	// IfIndex; a capture cannot be bound without a resolved interface.
	ErrNoInterface = errors.New("linklayer: device has no resolved interface index")

	// ErrClosed is returned by Capture methods once Close has been called.
	ErrClosed = errors.New("linklayer: capture is closed")

	// ErrBroadcastUnderivable is returned by OpenCapture when a device's
	// hardware type (or lack of broadcast capability) yields no derivable
	// link-layer broadcast address; spec.md §7 configuration error kind 1.
	ErrBroadcastUnderivable = errors.New("linklayer: no derivable broadcast address for device")
)
