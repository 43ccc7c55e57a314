//go:build linux

package linklayer

import "time"

// RetransmitState is the single retransmission deadline owned by a Device
// (spec.md §3). The Device's owner arms and disarms it; the GetTimeout hook
// installed over a Capture's socket only reads it, and the CheckTimeout
// hook disarms it (through Due) when it fires.
type RetransmitState struct {
	// Deadline is the absolute time at which Retransmit should fire.
	// Armed reports whether a deadline is currently pending; a disarmed
	// state never causes CheckTimeout to fire, matching the original
	// "retrans.timeout == 0 means idle" convention but spelled out as an
	// explicit bool rather than a sentinel zero value.
	Deadline time.Time
	Armed    bool
}

// Due reports whether the deadline has passed as of now, and disarms it as
// a side effect if so — each deadline fires at most once, matching
// spec.md §9's "retransmit fires once" guarantee.
func (r *RetransmitState) Due(now time.Time) bool {
	if !r.Armed {
		return false
	}
	if now.Before(r.Deadline) {
		return false
	}
	r.Armed = false
	return true
}

// Arm schedules the deadline for when.
func (r *RetransmitState) Arm(when time.Time) {
	r.Deadline = when
	r.Armed = true
}

// Disarm cancels any pending deadline.
func (r *RetransmitState) Disarm() {
	r.Armed = false
}

// InstallRetransmitHooks wires capture's eventloop.Socket GetTimeout and
// CheckTimeout hooks to dev.Retransmit, calling onRetransmit when the
// deadline fires. Shared by internal/dhcp4 and internal/arp so both
// adapters install the exact same hook-reading-device-state behavior
// spec.md §4.E describes, without either package depending on the other.
func InstallRetransmitHooks(capture *Capture, dev *Device, onRetransmit func(*Device)) {
	sock := capture.Socket()
	sock.GetTimeout = func() (time.Time, bool) {
		return dev.Retransmit.Deadline, dev.Retransmit.Armed
	}
	sock.CheckTimeout = func(now time.Time) {
		if dev.Retransmit.Due(now) {
			onRetransmit(dev)
		}
	}
}

// Device is the per-interface record the client adapters and capture
// handles share (spec.md §3). It is not safe for concurrent use; all
// access happens from the single event-loop goroutine.
type Device struct {
	// IfName and IfIndex identify the bound network interface.
	IfName  string
	IfIndex int

	// HWType is the ARPHRD_* hardware type of the interface (e.g.
	// ARPHRD_ETHER), consulted by OpenCapture to derive the link-layer
	// broadcast address.
	HWType uint16

	// Broadcast reports whether the interface is flagged broadcast-capable
	// (net.FlagBroadcast). OpenCapture refuses to derive a broadcast
	// address, and thus refuses to open a capture, when this is false.
	Broadcast bool

	// MTU sizes the capture's receive buffer (defaultMTU when zero).
	// BuildHeader does not consult it and wraps payloads of any size.
	MTU int

	// ListenFD is the dummy UDP/68 listener's file descriptor, held open
	// for its side effect of reserving the port (spec.md §9's
	// SUPPLEMENTED behavior) and never read from. -1 when not opened
	// (e.g. on an ARP-only device).
	ListenFD int

	// Capture is the at-most-one raw capture handle currently open for
	// this device. nil when no capture has been opened yet.
	Capture *Capture

	// Retransmit is the single outstanding retransmission deadline for
	// this device, consulted by the event-loop hooks the client adapter
	// installs over Capture's socket.
	Retransmit RetransmitState
}
