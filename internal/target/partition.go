// Package target turns target specifications into probe units: a port range
// or port list on one host, the common-ports table, or the host addresses of
// an IPv4 network. Partitioning never blocks and never touches the network.
package target

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/anstrom/netprobe/internal/errors"
	"github.com/anstrom/netprobe/internal/probe"
)

const (
	minPort = 1
	maxPort = 65535

	// MaxHosts caps the addresses enumerated from one network, whatever
	// the prefix length.
	MaxHosts = 254
)

// PortRange returns one port unit per port in [lo, hi], ascending.
func PortRange(host string, lo, hi int, timeout time.Duration) ([]probe.Unit, error) {
	if err := validateHost(host); err != nil {
		return nil, err
	}
	if lo < minPort || hi > maxPort || lo > hi {
		return nil, errors.ErrInvalidPortRange(lo, hi)
	}

	units := make([]probe.Unit, 0, hi-lo+1)
	for port := lo; port <= hi; port++ {
		units = append(units, portUnit(host, port, timeout))
	}
	return units, nil
}

// PortList returns one port unit per distinct port in ascending order.
func PortList(host string, ports []int, timeout time.Duration) ([]probe.Unit, error) {
	if err := validateHost(host); err != nil {
		return nil, err
	}
	if len(ports) == 0 {
		return nil, errors.ErrInvalidTarget(host, "no ports given")
	}

	sorted := uniqueSorted(ports)
	units := make([]probe.Unit, 0, len(sorted))
	for _, port := range sorted {
		if port < minPort || port > maxPort {
			return nil, errors.ErrInvalidPortRange(port, port)
		}
		units = append(units, portUnit(host, port, timeout))
	}
	return units, nil
}

// CommonPortUnits returns one unit per entry of the common-ports table.
func CommonPortUnits(host string, timeout time.Duration) ([]probe.Unit, error) {
	return PortList(host, CommonPortList(), timeout)
}

// ParsePortSpec parses a comma separated list of ports and inclusive ranges,
// such as "22,80,8000-8010", into a sorted list without duplicates.
func ParsePortSpec(spec string) ([]int, error) {
	var ports []int
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		lo, hi, err := parsePortPart(part)
		if err != nil {
			return nil, err
		}
		for p := lo; p <= hi; p++ {
			ports = append(ports, p)
		}
	}

	if len(ports) == 0 {
		return nil, errors.ErrInvalidTarget(spec, "empty port specification")
	}
	return uniqueSorted(ports), nil
}

func parsePortPart(part string) (lo, hi int, err error) {
	loStr, hiStr, isRange := strings.Cut(part, "-")
	if !isRange {
		hiStr = loStr
	}

	lo, err = strconv.Atoi(strings.TrimSpace(loStr))
	if err != nil {
		return 0, 0, errors.ErrInvalidTarget(part, "invalid port")
	}
	hi, err = strconv.Atoi(strings.TrimSpace(hiStr))
	if err != nil {
		return 0, 0, errors.ErrInvalidTarget(part, "invalid port")
	}
	if lo < minPort || hi > maxPort || lo > hi {
		return 0, 0, errors.ErrInvalidPortRange(lo, hi)
	}
	return lo, hi, nil
}

// Hosts enumerates the host addresses of an IPv4 network given in CIDR form.
// The network and broadcast addresses are excluded and at most MaxHosts
// addresses are returned, so /31 and /32 yield none. Host bits set in the
// address are ignored.
func Hosts(cidr string) ([]netip.Addr, error) {
	prefix, err := ParseNetwork(cidr)
	if err != nil {
		return nil, err
	}

	count := HostCount(prefix.Bits())
	base := addrToUint32(prefix.Addr())

	hosts := make([]netip.Addr, 0, count)
	for i := 1; i <= count; i++ {
		hosts = append(hosts, uint32ToAddr(base+uint32(i)))
	}
	return hosts, nil
}

// HostUnits returns one liveness unit per host address of cidr.
func HostUnits(cidr string, timeout time.Duration) ([]probe.Unit, error) {
	hosts, err := Hosts(cidr)
	if err != nil {
		return nil, err
	}

	units := make([]probe.Unit, 0, len(hosts))
	for _, addr := range hosts {
		units = append(units, probe.Unit{
			Kind:    probe.KindHost,
			Host:    addr.String(),
			Timeout: timeout,
		})
	}
	return units, nil
}

// ParseNetwork parses an IPv4 CIDR and masks off any host bits.
func ParseNetwork(cidr string) (netip.Prefix, error) {
	prefix, err := netip.ParsePrefix(strings.TrimSpace(cidr))
	if err != nil {
		return netip.Prefix{}, errors.ErrInvalidTarget(cidr, "malformed CIDR")
	}
	if !prefix.Addr().Is4() {
		return netip.Prefix{}, errors.ErrInvalidTarget(cidr, "only IPv4 networks can be enumerated")
	}
	return prefix.Masked(), nil
}

// HostCount is min(2^(32-bits) - 2, MaxHosts), floored at zero.
func HostCount(bits int) int {
	hostBits := 32 - bits
	if hostBits <= 1 {
		return 0
	}
	if hostBits > 8 {
		return MaxHosts
	}
	return min((1<<hostBits)-2, MaxHosts)
}

func portUnit(host string, port int, timeout time.Duration) probe.Unit {
	return probe.Unit{
		Kind:    probe.KindPort,
		Host:    host,
		Port:    port,
		Service: ServiceName(port),
		Timeout: timeout,
	}
}

func validateHost(host string) error {
	if strings.TrimSpace(host) == "" {
		return errors.ErrInvalidTarget(host, "host is required")
	}
	if strings.ContainsAny(host, " /") {
		return errors.ErrInvalidTarget(host, fmt.Sprintf("%q is not a host name or address", host))
	}
	return nil
}

func uniqueSorted(ports []int) []int {
	out := append([]int(nil), ports...)
	sort.Ints(out)

	n := 0
	for i, p := range out {
		if i > 0 && p == out[n-1] {
			continue
		}
		out[n] = p
		n++
	}
	return out[:n]
}

func addrToUint32(a netip.Addr) uint32 {
	b := a.As4()
	return binary.BigEndian.Uint32(b[:])
}

func uint32ToAddr(v uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b)
}
