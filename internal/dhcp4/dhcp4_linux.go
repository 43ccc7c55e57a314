//go:build linux

// Package dhcp4 is the DHCPv4 client adapter of spec.md §4.E: it opens and
// idempotently reuses a raw capture bound to EtherTypeIP, strips and
// validates ingress IP/UDP headers before delivering payloads to the FSM,
// and installs the retransmission-deadline hooks on the capture's socket.
// Grounded on __ni_dhcp_common_open / ni_dhcp_socket_open /
// ni_dhcp_socket_recv in original_source/src/dhcp/socket-linux.c.
package dhcp4

import (
	"fmt"
	"log/slog"
	"net"

	"golang.org/x/sys/unix"

	"github.com/netraw/dhcp4link/internal/eventloop"
	"github.com/netraw/dhcp4link/internal/fsmapi"
	"github.com/netraw/dhcp4link/internal/linklayer"
)

// Open binds dev for DHCP traffic: a dummy UDP/68 listener (held open only
// to reserve the port; spec.md §9's SUPPLEMENTED behavior — nothing is ever
// read from it) and a raw capture classified by the DHCP BPF program.
// Calling Open again on a device whose capture is still healthy is a no-op
// that returns the existing capture (spec.md §9 idempotent reopen).
func Open(dev *linklayer.Device, loop *eventloop.Loop, fsm fsmapi.FSM) (*linklayer.Capture, error) {
	if dev.ListenFD <= 0 {
		fd, err := openDummyListener(dev.IfName)
		if err != nil {
			return nil, fmt.Errorf("dhcp4: dummy listener: %w", err)
		}
		dev.ListenFD = fd
	}

	capture, err := linklayer.OpenCapture(dev, linklayer.EtherTypeIP, loop, func(frame []byte) {
		payload, err := linklayer.ValidateAndStrip(frame)
		if err != nil {
			slog.Debug("dhcp4: dropped ingress frame", "ifindex", dev.IfIndex, "err", err)
			return
		}
		fsm.ProcessDHCPPacket(dev, payload)
	})
	if err != nil {
		return nil, err
	}

	linklayer.InstallRetransmitHooks(capture, dev, fsm.Retransmit)

	return capture, nil
}

// Send wraps payload in an IP/UDP header addressed src->dst and broadcasts
// it through dev's capture.
func Send(dev *linklayer.Device, payload []byte, src, dst net.IP) error {
	if dev.Capture == nil {
		return fmt.Errorf("dhcp4: device %s has no open capture", dev.IfName)
	}
	frame := linklayer.BuildHeader(payload, src, dst)
	return dev.Capture.Broadcast(frame)
}

// openDummyListener reserves UDP/68 on ifName so the kernel does not hand
// it to an unrelated process, mirroring ni_dhcp_socket_open's SO_REUSEADDR +
// SO_BINDTODEVICE dummy socket. The returned fd is never read.
func openDummyListener(ifName string) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("socket(AF_INET): %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("SO_REUSEADDR: %w", err)
	}
	if err := unix.BindToDevice(fd, ifName); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("SO_BINDTODEVICE: %w", err)
	}
	addr := &unix.SockaddrInet4{Port: int(linklayer.DHCPClientPort)}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("bind :%d: %w", linklayer.DHCPClientPort, err)
	}
	return fd, nil
}
