//go:build linux

package linklayer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLinklayer_Device_RetransmitFiresOnceThenDisarms(t *testing.T) {
	t.Parallel()
	var r RetransmitState
	now := time.Now()

	require.False(t, r.Due(now), "disarmed deadline never fires")

	r.Arm(now.Add(-time.Second))
	require.True(t, r.Due(now), "past deadline fires")
	require.False(t, r.Due(now), "fired deadline does not fire twice")

	r.Arm(now.Add(time.Hour))
	require.False(t, r.Due(now), "future deadline does not fire early")

	r.Disarm()
	require.False(t, r.Due(now.Add(2*time.Hour)))
}
