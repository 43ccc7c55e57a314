//go:build linux

// Package fsmapi declares the boundary between this transport and the
// caller's state machine: the client adapters (internal/dhcp4,
// internal/arp) deliver decoded packets and retransmit notifications
// through the FSM interface, and never hold a reference to anything but
// that interface and a *linklayer.Device. This mirrors spec.md §9's design
// note against client adapters storing raw function pointers: the only
// thing a consumer implements is FSM, and the only thing it is handed back
// is the Device the event occurred on.
package fsmapi

import "github.com/netraw/dhcp4link/internal/linklayer"

// FSM is implemented by the caller's state machine. All three methods are
// called from the single event-loop goroutine; none may block.
type FSM interface {
	// ProcessDHCPPacket delivers a UDP payload already validated and
	// stripped of its IP/UDP headers by internal/dhcp4.
	ProcessDHCPPacket(dev *linklayer.Device, payload []byte)

	// ProcessARPPacket delivers a raw ARP packet (no link-layer header;
	// the capture is cooked) accepted by the ARP classifier.
	ProcessARPPacket(dev *linklayer.Device, frame []byte)

	// Retransmit fires once when dev.Retransmit's deadline has passed.
	Retransmit(dev *linklayer.Device)
}
