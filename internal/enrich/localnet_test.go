package enrich

import (
	"context"
	"errors"
	"net/netip"
	"testing"

	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/stretchr/testify/assert"
)

func TestSlash24(t *testing.T) {
	assert.Equal(t, "192.168.1.0/24", Slash24(netip.MustParseAddr("192.168.1.77")))
	assert.Equal(t, "10.20.30.0/24", Slash24(netip.MustParseAddr("10.20.30.1")))
}

func TestLocalNetworkDetector_InterfaceFallback(t *testing.T) {
	d := &LocalNetworkDetector{
		Interfaces: func(context.Context) (psnet.InterfaceStatList, error) {
			return psnet.InterfaceStatList{
				{Name: "lo", Flags: []string{"up", "loopback"}, Addrs: psnet.InterfaceAddrList{{Addr: "127.0.0.1/8"}}},
				{Name: "eth1", Flags: []string{"broadcast"}, Addrs: psnet.InterfaceAddrList{{Addr: "172.16.0.4/16"}}},
				{Name: "eth0", Flags: []string{"up", "broadcast"}, Addrs: psnet.InterfaceAddrList{
					{Addr: "fe80::1/64"},
					{Addr: "169.254.3.3/16"},
					{Addr: "192.168.50.12/24"},
				}},
			}, nil
		},
	}

	network, ok := d.LocalNetwork(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "192.168.50.0/24", network)
}

func TestLocalNetworkDetector_NothingUsable(t *testing.T) {
	d := &LocalNetworkDetector{
		Interfaces: func(context.Context) (psnet.InterfaceStatList, error) {
			return nil, errors.New("no interfaces")
		},
	}

	_, ok := d.LocalNetwork(context.Background())
	assert.False(t, ok)
}
