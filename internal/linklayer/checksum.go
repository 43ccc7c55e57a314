package linklayer

import "encoding/binary"

// ChecksumPartial accumulates the 16-bit network-byte-order words of data
// into the running one's-complement sum. A trailing odd byte is treated as
// the high byte of a final 16-bit word, matching RFC 1071.
//
// The caller is responsible for zeroing the checksum field of any header
// passed in before accumulating it.
func ChecksumPartial(sum uint32, data []byte) uint32 {
	n := len(data)
	i := 0
	for ; i+1 < n; i += 2 {
		sum += uint32(binary.BigEndian.Uint16(data[i : i+2]))
	}
	if i < n {
		sum += uint32(data[i]) << 8
	}
	return sum
}

// ChecksumFold folds a 32-bit accumulator down to its 16-bit one's-complement
// and returns the complement, ready to be stored in a checksum field.
func ChecksumFold(sum uint32) uint16 {
	sum = (sum >> 16) + (sum & 0xffff)
	sum += sum >> 16
	return ^uint16(sum)
}

// IPChecksum computes the IPv4 header checksum over header (the checksum
// field within it must already be zeroed by the caller).
func IPChecksum(header []byte) uint16 {
	return ChecksumFold(ChecksumPartial(0, header))
}

// pseudoHeaderLen is the size of the IPv4/UDP checksum pseudo-header:
// src addr (4) + dst addr (4) + zero byte (1) + protocol (1) + UDP length (2).
const pseudoHeaderLen = 12

// UDPChecksum computes the UDP checksum over the pseudo-header (src, dst,
// zero byte, protocol, UDP length), the UDP header and the payload. The
// UDP header's checksum field must already be zeroed by the caller.
func UDPChecksum(src, dst [4]byte, protocol uint8, udpHeader, payload []byte) uint16 {
	var pseudo [pseudoHeaderLen]byte
	copy(pseudo[0:4], src[:])
	copy(pseudo[4:8], dst[:])
	pseudo[8] = 0
	pseudo[9] = protocol
	binary.BigEndian.PutUint16(pseudo[10:12], uint16(len(udpHeader)+len(payload)))

	sum := ChecksumPartial(0, pseudo[:])
	sum = ChecksumPartial(sum, udpHeader)
	sum = ChecksumPartial(sum, payload)
	return ChecksumFold(sum)
}
