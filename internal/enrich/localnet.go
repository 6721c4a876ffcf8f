package enrich

import (
	"context"
	"net"
	"net/netip"
	"slices"

	psnet "github.com/shirou/gopsutil/v3/net"
)

// defaultRouteProbe is only used to pick a source address; connecting a UDP
// socket sends no packets.
const defaultRouteProbe = "8.8.8.8:80"

// LocalNetworkDetector picks the /24 around the address the host would use
// for its default route, and falls back to the first usable interface
// address when there is no route.
type LocalNetworkDetector struct {
	// RouteProbe is the address dialled to select the source address.
	RouteProbe string
	// Interfaces lists network interfaces; replaced in tests.
	Interfaces func(ctx context.Context) (psnet.InterfaceStatList, error)
}

// NewLocalNetworkDetector returns a detector backed by the host's interfaces.
func NewLocalNetworkDetector() *LocalNetworkDetector {
	return &LocalNetworkDetector{
		RouteProbe: defaultRouteProbe,
		Interfaces: psnet.InterfacesWithContext,
	}
}

// LocalNetwork implements NetworkDetector.
func (d *LocalNetworkDetector) LocalNetwork(ctx context.Context) (string, bool) {
	if addr, ok := d.routeSource(ctx); ok {
		return Slash24(addr), true
	}
	if addr, ok := d.firstInterfaceAddr(ctx); ok {
		return Slash24(addr), true
	}
	return "", false
}

func (d *LocalNetworkDetector) routeSource(ctx context.Context) (netip.Addr, bool) {
	if d.RouteProbe == "" {
		return netip.Addr{}, false
	}
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "udp4", d.RouteProbe)
	if err != nil {
		return netip.Addr{}, false
	}
	defer conn.Close()

	udpAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return netip.Addr{}, false
	}
	addr, ok := netip.AddrFromSlice(udpAddr.IP)
	if !ok {
		return netip.Addr{}, false
	}
	addr = addr.Unmap()
	return addr, usable(addr)
}

func (d *LocalNetworkDetector) firstInterfaceAddr(ctx context.Context) (netip.Addr, bool) {
	if d.Interfaces == nil {
		return netip.Addr{}, false
	}
	ifaces, err := d.Interfaces(ctx)
	if err != nil {
		return netip.Addr{}, false
	}
	for _, iface := range ifaces {
		if !slices.Contains(iface.Flags, "up") || slices.Contains(iface.Flags, "loopback") {
			continue
		}
		for _, a := range iface.Addrs {
			prefix, err := netip.ParsePrefix(a.Addr)
			if err != nil {
				continue
			}
			if addr := prefix.Addr(); usable(addr) {
				return addr, true
			}
		}
	}
	return netip.Addr{}, false
}

func usable(addr netip.Addr) bool {
	return addr.Is4() && !addr.IsLoopback() && !addr.IsLinkLocalUnicast() && !addr.IsUnspecified()
}

// Slash24 returns the /24 network containing addr in CIDR form.
func Slash24(addr netip.Addr) string {
	return netip.PrefixFrom(addr, 24).Masked().String()
}
