//go:build linux

// Package ifinfo resolves the interface-level facts a linklayer.Device
// needs (index, MTU, hardware type, broadcast presence) before a capture
// can be opened. Interface enumeration itself is out of scope for the core
// transport (spec.md Non-goals); this package is supplemental CLI-side
// wiring, grounded on internal/netlink.Netlink's use of
// github.com/vishvananda/netlink for link attribute queries.
package ifinfo

import (
	"fmt"
	"net"

	nl "github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/netraw/dhcp4link/internal/linklayer"
)

// hwType maps netlink's EncapType string to the ARPHRD_* constant the raw
// capture layer expects. Unrecognized encapsulations map to ARPHRD_VOID;
// ARP is meaningless on such links anyway.
func hwType(encapType string) uint16 {
	switch encapType {
	case "ether":
		return unix.ARPHRD_ETHER
	case "loopback":
		return unix.ARPHRD_LOOPBACK
	case "ppp":
		return unix.ARPHRD_PPP
	case "none":
		return unix.ARPHRD_NONE
	default:
		return unix.ARPHRD_VOID
	}
}

// Info is the subset of interface state a Device needs populated before
// OpenCapture will succeed.
type Info struct {
	Name      string
	Index     int
	MTU       int
	HWType    uint16
	Broadcast bool
}

// Resolve looks up ifName via netlink and returns its Info.
func Resolve(ifName string) (Info, error) {
	link, err := nl.LinkByName(ifName)
	if err != nil {
		return Info{}, fmt.Errorf("ifinfo: link %q: %w", ifName, err)
	}
	attrs := link.Attrs()

	return Info{
		Name:      attrs.Name,
		Index:     attrs.Index,
		MTU:       attrs.MTU,
		HWType:    hwType(attrs.EncapType),
		Broadcast: attrs.Flags&net.FlagBroadcast != 0,
	}, nil
}

// ApplyTo populates dev's interface fields from info. It never touches
// dev.Capture or dev.Retransmit.
func (info Info) ApplyTo(dev *linklayer.Device) {
	dev.IfName = info.Name
	dev.IfIndex = info.Index
	dev.MTU = info.MTU
	dev.HWType = info.HWType
	dev.Broadcast = info.Broadcast
}
