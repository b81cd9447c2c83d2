// SPDX-License-Identifier: GPL-3.0-or-later

package mcast_test

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rdmnet-go/rdmnet/mcast"
)

func TestEnumerateFiltersDownLoopbackAndNonMulticast(t *testing.T) {
	in := []net.Interface{
		{Index: 1, Name: "lo", Flags: net.FlagUp | net.FlagLoopback | net.FlagMulticast},
		{Index: 2, Name: "down0", Flags: net.FlagMulticast},
		{Index: 3, Name: "nomcast0", Flags: net.FlagUp},
		{Index: 4, Name: "eth0", Flags: net.FlagUp | net.FlagMulticast, HardwareAddr: net.HardwareAddr{0, 0x11, 0x22, 0x33, 0x44, 0x55}},
	}
	out := mcast.Enumerate(in)
	require.Len(t, out, 1)
	require.Equal(t, "eth0", out[0].Name)
}

func TestLowestMACExcludesZeroAndPicksLowest(t *testing.T) {
	ifaces := []mcast.Interface{
		{Index: 1, HardwareAddr: net.HardwareAddr{0, 0, 0, 0, 0, 0}},
		{Index: 2, HardwareAddr: net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}},
		{Index: 3, HardwareAddr: net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x33}},
	}
	got := mcast.LowestMAC(ifaces)
	require.Equal(t, net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x33}, got)
}

func TestLowestMACAllZeroIsNil(t *testing.T) {
	ifaces := []mcast.Interface{
		{Index: 1, HardwareAddr: net.HardwareAddr{0, 0, 0, 0, 0, 0}},
	}
	require.Nil(t, mcast.LowestMAC(ifaces))
}

func TestAcquireSendSocketRefCounts(t *testing.T) {
	io := mcast.NewIO(nil)
	iface := mcast.Interface{Index: 1, Name: "eth0"}

	conn1, release1, err := io.AcquireSendSocket(iface, 0)
	require.NoError(t, err)
	defer conn1.Close()

	conn2, release2, err := io.AcquireSendSocket(mcast.Interface{Index: 1, Name: "eth0"}, 0)
	require.NoError(t, err)

	require.NoError(t, release1())
	// conn2 still references the same underlying socket until its own release.
	_, err = conn2.LocalAddr(), error(nil)
	require.NoError(t, err)
	require.NoError(t, release2())
}
