package linklayer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLinklayer_Checksum_FoldOfValidHeaderIsZero(t *testing.T) {
	t.Parallel()
	header := []byte{
		0x45, 0x10, 0x00, 0x1c,
		0x00, 0x00, 0x40, 0x00,
		0x40, 0x11, 0x00, 0x00,
		192, 168, 1, 1,
		255, 255, 255, 255,
	}
	binary := IPChecksum(header)
	header[10] = byte(binary >> 8)
	header[11] = byte(binary)

	require.Zero(t, ChecksumFold(ChecksumPartial(0, header)))
}

func TestLinklayer_Checksum_SingleBitFlipBreaksChecksum(t *testing.T) {
	t.Parallel()
	header := []byte{
		0x45, 0x10, 0x00, 0x1c,
		0x00, 0x00, 0x40, 0x00,
		0x40, 0x11, 0x00, 0x00,
		192, 168, 1, 1,
		255, 255, 255, 255,
	}
	sum := IPChecksum(header)
	header[10] = byte(sum >> 8)
	header[11] = byte(sum)
	require.Zero(t, ChecksumFold(ChecksumPartial(0, header)))

	header[2] ^= 0x01
	require.NotZero(t, ChecksumFold(ChecksumPartial(0, header)))
}

func TestLinklayer_Checksum_OddLengthTrailingByte(t *testing.T) {
	t.Parallel()
	a := ChecksumPartial(0, []byte{0x01, 0x02, 0x03})
	b := ChecksumPartial(0, []byte{0x01, 0x02, 0x03, 0x00})
	require.Equal(t, b, a)
}

func TestLinklayer_Checksum_UDPChecksumRoundTrip(t *testing.T) {
	t.Parallel()
	src := [4]byte{10, 0, 0, 1}
	dst := [4]byte{10, 0, 0, 2}
	udp := make([]byte, udpHeaderLen)
	payload := []byte("hello dhcp")

	sum := UDPChecksum(src, dst, protoUDP, udp, payload)
	udp[6] = byte(sum >> 8)
	udp[7] = byte(sum)

	require.Zero(t, UDPChecksum(src, dst, protoUDP, udp, payload))

	payload[0] ^= 0xFF
	require.NotZero(t, UDPChecksum(src, dst, protoUDP, udp, payload))
}
