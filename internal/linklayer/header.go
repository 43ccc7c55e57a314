package linklayer

import (
	"encoding/binary"
	"errors"
	"net"
)

// DHCP well-known UDP ports (spec.md §6).
const (
	DHCPClientPort uint16 = 68
	DHCPServerPort uint16 = 67
)

const (
	ipHeaderLen  = 20
	udpHeaderLen = 8

	ipTOSLowDelay = 0x10
	ipDF          = 0x4000 // don't-fragment bit within the combined flags+fragoffset field
	ipDefaultTTL  = 64
	ipVersion4    = 4
	ipIHLWords    = 5 // 5 * 4 = 20 bytes, no options
	protoUDP      = 17
)

// ErrDrop is returned by ValidateAndStrip when the frame fails any ingress
// validation check in spec.md §3. Callers must drop the packet silently
// (debug-log only); ErrDrop never surfaces to the FSM.
var ErrDrop = errors.New("linklayer: packet dropped by ingress validation")

// limitedBroadcast is 255.255.255.255, substituted for a caller-supplied
// 0.0.0.0 destination per spec.md §3.
var limitedBroadcast = [4]byte{255, 255, 255, 255}

func to4(ip net.IP) [4]byte {
	var out [4]byte
	v4 := ip.To4()
	copy(out[:], v4)
	return out
}

// BuildHeader prepends a UDP header and an IPv4 header to payload and
// returns the complete, checksummed IP packet ready for transmission
// through a raw L2 socket. dst of 0.0.0.0 is coerced to the limited
// broadcast address.
func BuildHeader(payload []byte, src, dst net.IP) []byte {
	udpLen := udpHeaderLen + len(payload)
	totalLen := ipHeaderLen + udpLen

	out := make([]byte, totalLen)
	ip := out[:ipHeaderLen]
	udp := out[ipHeaderLen : ipHeaderLen+udpHeaderLen]
	copy(out[ipHeaderLen+udpHeaderLen:], payload)

	// UDP header.
	binary.BigEndian.PutUint16(udp[0:2], DHCPClientPort)
	binary.BigEndian.PutUint16(udp[2:4], DHCPServerPort)
	binary.BigEndian.PutUint16(udp[4:6], uint16(udpLen))
	udp[6], udp[7] = 0, 0 // checksum filled below

	// IPv4 header.
	ip[0] = (ipVersion4 << 4) | ipIHLWords
	ip[1] = ipTOSLowDelay
	binary.BigEndian.PutUint16(ip[2:4], uint16(totalLen))
	binary.BigEndian.PutUint16(ip[4:6], 0) // ID = 0
	binary.BigEndian.PutUint16(ip[6:8], ipDF)
	ip[8] = ipDefaultTTL
	ip[9] = protoUDP
	ip[10], ip[11] = 0, 0 // checksum filled below

	srcAddr := to4(src)
	dstAddr := to4(dst)
	if dstAddr == ([4]byte{}) {
		dstAddr = limitedBroadcast
	}
	copy(ip[12:16], srcAddr[:])
	copy(ip[16:20], dstAddr[:])

	binary.BigEndian.PutUint16(ip[10:12], IPChecksum(ip))
	binary.BigEndian.PutUint16(udp[6:8], UDPChecksum(srcAddr, dstAddr, protoUDP, udp, payload))

	return out
}

// ValidateAndStrip validates frame as an IPv4+UDP packet per spec.md §3
// and returns the UDP payload, sized by the IP total-length field (not the
// raw capture length, which may include trailing padding). Any violation
// returns ErrDrop.
func ValidateAndStrip(frame []byte) ([]byte, error) {
	drop := func(reason DropReason) ([]byte, error) {
		PacketsDropped.WithLabelValues(string(reason)).Inc()
		return nil, ErrDrop
	}

	if len(frame) < ipHeaderLen {
		return drop(DropReasonShort)
	}
	ip := frame

	version := ip[0] >> 4
	ihl := int(ip[0]&0x0f) * 4
	if version != ipVersion4 || ihl < ipHeaderLen {
		return drop(DropReasonVersion)
	}
	if len(frame) < ihl {
		return drop(DropReasonShort)
	}

	totalLen := int(binary.BigEndian.Uint16(ip[2:4]))
	if totalLen < ihl || len(frame) < totalLen {
		return drop(DropReasonTotalLen)
	}

	if IPChecksum(ip[:ihl]) != 0 {
		return drop(DropReasonIPChecksum)
	}

	if ip[9] != protoUDP {
		return drop(DropReasonNotUDP)
	}

	rest := frame[ihl:totalLen]
	if len(rest) < udpHeaderLen {
		return drop(DropReasonShortUDP)
	}
	udp := rest[:udpHeaderLen]
	payload := rest[udpHeaderLen:]

	var src, dst [4]byte
	copy(src[:], ip[12:16])
	copy(dst[:], ip[16:20])
	if UDPChecksum(src, dst, protoUDP, udp, payload) != 0 {
		return drop(DropReasonUDPChecksum)
	}

	return payload, nil
}
