//go:build linux

package arp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/netraw/dhcp4link/internal/linklayer"
)

func TestARP_Send_ErrorsWithoutOpenCapture(t *testing.T) {
	t.Parallel()
	dev := &linklayer.Device{IfName: "eth-test"}
	err := Send(dev, []byte("arp-packet"))
	require.Error(t, err)
}
