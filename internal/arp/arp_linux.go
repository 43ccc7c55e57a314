//go:build linux

// Package arp is the ARP client adapter of spec.md §4.E: it opens and
// idempotently reuses a raw capture bound to EtherTypeARP, classified to
// accept only ARP REPLY frames, and delivers them to the FSM unmodified
// (cooked capture, no link-layer header, no IP header to strip). Grounded
// on ni_arp_socket_recv in original_source/src/dhcp/socket-linux.c.
package arp

import (
	"fmt"

	"github.com/netraw/dhcp4link/internal/eventloop"
	"github.com/netraw/dhcp4link/internal/fsmapi"
	"github.com/netraw/dhcp4link/internal/linklayer"
)

// Open binds dev for ARP traffic. Calling Open again on a device whose
// capture is still healthy is a no-op that returns the existing capture.
func Open(dev *linklayer.Device, loop *eventloop.Loop, fsm fsmapi.FSM) (*linklayer.Capture, error) {
	capture, err := linklayer.OpenCapture(dev, linklayer.EtherTypeARP, loop, func(frame []byte) {
		fsm.ProcessARPPacket(dev, frame)
	})
	if err != nil {
		return nil, err
	}

	linklayer.InstallRetransmitHooks(capture, dev, fsm.Retransmit)

	return capture, nil
}

// Send broadcasts a raw ARP packet (caller-constructed; this package does
// not build ARP packets, only transports them) through dev's capture.
func Send(dev *linklayer.Device, packet []byte) error {
	if dev.Capture == nil {
		return fmt.Errorf("arp: device %s has no open capture", dev.IfName)
	}
	return dev.Capture.Broadcast(packet)
}
