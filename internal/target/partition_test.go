package target

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/netprobe/internal/errors"
	"github.com/anstrom/netprobe/internal/probe"
)

func TestPortRange(t *testing.T) {
	units, err := PortRange("127.0.0.1", 20, 25, time.Second)
	require.NoError(t, err)
	require.Len(t, units, 6)

	for i, u := range units {
		assert.Equal(t, 20+i, u.Port)
		assert.Equal(t, probe.KindPort, u.Kind)
		assert.Equal(t, "127.0.0.1", u.Host)
		assert.Equal(t, time.Second, u.Timeout)
	}
	assert.Equal(t, "FTP", units[1].Service)
	assert.Equal(t, "Unknown", units[0].Service)
}

func TestPortRange_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		host   string
		lo, hi int
	}{
		{"low above high", "h", 100, 10},
		{"zero port", "h", 0, 10},
		{"above max", "h", 65000, 65536},
		{"empty host", "", 1, 2},
		{"cidr as host", "10.0.0.0/24", 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			units, err := PortRange(tt.host, tt.lo, tt.hi, time.Second)
			require.Error(t, err)
			assert.Nil(t, units)
			assert.True(t, errors.IsCode(err, errors.CodeTargetInvalid))
		})
	}
}

func TestPortRange_SinglePortAndFullRange(t *testing.T) {
	units, err := PortRange("h", 443, 443, time.Second)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "HTTPS", units[0].Service)

	units, err = PortRange("h", 1, 65535, time.Second)
	require.NoError(t, err)
	assert.Len(t, units, 65535)
}

func TestCommonPortUnits(t *testing.T) {
	units, err := CommonPortUnits("192.0.2.10", 500*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, units, len(CommonPorts))

	for i, u := range units {
		assert.Equal(t, CommonPorts[u.Port], u.Service)
		if i > 0 {
			assert.Less(t, units[i-1].Port, u.Port)
		}
	}
	assert.Equal(t, 21, units[0].Port)
	assert.Equal(t, 27017, units[len(units)-1].Port)
}

func TestServiceName(t *testing.T) {
	assert.Equal(t, "SSH", ServiceName(22))
	assert.Equal(t, "MongoDB", ServiceName(27017))
	assert.Equal(t, UnknownService, ServiceName(20))
	assert.Len(t, CommonPorts, 20)
}

func TestParsePortSpec(t *testing.T) {
	tests := []struct {
		spec    string
		want    []int
		wantErr bool
	}{
		{spec: "22", want: []int{22}},
		{spec: "80,22,443", want: []int{22, 80, 443}},
		{spec: "22, 8000-8003 ,22", want: []int{22, 8000, 8001, 8002, 8003}},
		{spec: "1-3,2-4", want: []int{1, 2, 3, 4}},
		{spec: "", wantErr: true},
		{spec: ",", wantErr: true},
		{spec: "http", wantErr: true},
		{spec: "10-5", wantErr: true},
		{spec: "0", wantErr: true},
		{spec: "65536", wantErr: true},
		{spec: "1-2-3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := ParsePortSpec(tt.spec)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.CodeTargetInvalid))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPortList(t *testing.T) {
	units, err := PortList("h", []int{443, 22, 443}, time.Second)
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, 22, units[0].Port)
	assert.Equal(t, 443, units[1].Port)

	_, err = PortList("h", nil, time.Second)
	assert.Error(t, err)

	_, err = PortList("h", []int{22, 70000}, time.Second)
	assert.Error(t, err)
}

func TestHosts_Slash30(t *testing.T) {
	hosts, err := Hosts("10.0.0.0/30")
	require.NoError(t, err)
	assert.Equal(t, []netip.Addr{
		netip.MustParseAddr("10.0.0.1"),
		netip.MustParseAddr("10.0.0.2"),
	}, hosts)
}

func TestHosts_Counts(t *testing.T) {
	tests := []struct {
		cidr  string
		count int
		first string
		last  string
	}{
		{cidr: "192.168.1.0/24", count: 254, first: "192.168.1.1", last: "192.168.1.254"},
		{cidr: "192.168.1.77/24", count: 254, first: "192.168.1.1", last: "192.168.1.254"},
		{cidr: "10.0.0.0/8", count: 254, first: "10.0.0.1", last: "10.0.0.254"},
		{cidr: "10.0.0.0/25", count: 126, first: "10.0.0.1", last: "10.0.0.126"},
		{cidr: "10.0.0.128/29", count: 6, first: "10.0.0.129", last: "10.0.0.134"},
		{cidr: "10.0.0.0/31", count: 0},
		{cidr: "10.0.0.5/32", count: 0},
	}

	for _, tt := range tests {
		t.Run(tt.cidr, func(t *testing.T) {
			hosts, err := Hosts(tt.cidr)
			require.NoError(t, err)
			require.Len(t, hosts, tt.count)
			if tt.count > 0 {
				assert.Equal(t, tt.first, hosts[0].String())
				assert.Equal(t, tt.last, hosts[len(hosts)-1].String())
			}
		})
	}
}

func TestHosts_Invalid(t *testing.T) {
	for _, cidr := range []string{"", "10.0.0.0", "10.0.0.0/33", "10.0.0.0/-1", "300.0.0.0/24", "fd00::/120", "garbage"} {
		t.Run(cidr, func(t *testing.T) {
			_, err := Hosts(cidr)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.CodeTargetInvalid))
		})
	}
}

func TestHostCount(t *testing.T) {
	for bits := 0; bits <= 32; bits++ {
		count := HostCount(bits)
		assert.GreaterOrEqual(t, count, 0)
		assert.LessOrEqual(t, count, MaxHosts)
	}
	assert.Equal(t, 2, HostCount(30))
	assert.Equal(t, 14, HostCount(28))
	assert.Equal(t, 254, HostCount(24))
	assert.Equal(t, 254, HostCount(0))
}

func TestHostUnits(t *testing.T) {
	units, err := HostUnits("10.0.0.0/30", 250*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, probe.KindHost, units[0].Kind)
	assert.Equal(t, "10.0.0.1", units[0].Host)
	assert.Equal(t, 250*time.Millisecond, units[1].Timeout)
}
