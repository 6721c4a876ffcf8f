// Package probe implements the single bounded-time network operations the
// engine fans out: a TCP connect probe against one port, and a liveness check
// against one host built from an ordered list of strategies.
package probe

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"net"
	"net/netip"
	"strconv"
	"time"
)

// Kind distinguishes port units from host liveness units.
type Kind string

const (
	KindPort Kind = "port"
	KindHost Kind = "host"
)

// Status is the classified result of a probe.
type Status string

const (
	StatusOpen     Status = "open"
	StatusClosed   Status = "closed"
	StatusFiltered Status = "filtered"
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusError    Status = "error"
)

// Unit is one probe to run. Units are values and are never modified after
// the partitioner creates them.
type Unit struct {
	Kind    Kind
	Host    string
	Port    int
	Service string
	Timeout time.Duration
}

// Target returns host:port for port units and the bare host otherwise.
func (u Unit) Target() string {
	if u.Kind == KindPort {
		return net.JoinHostPort(u.Host, strconv.Itoa(u.Port))
	}
	return u.Host
}

// Key is the ranking key of the unit: the port for port units and the
// 32-bit address value for host units.
func (u Unit) Key() uint64 {
	return unitKey(u.Kind, u.Host, u.Port)
}

// String implements fmt.Stringer.
func (u Unit) String() string {
	return fmt.Sprintf("%s %s", u.Kind, u.Target())
}

// Outcome is the immutable result of one unit. Service is set for port
// outcomes and Hostname for live hosts. Banner is only read from open ports
// when service detection is on, and then a recognised banner overrides the
// table name in Service.
type Outcome struct {
	Kind      Kind     `json:"kind" yaml:"kind"`
	Host      string   `json:"host" yaml:"host"`
	Port      int      `json:"port,omitempty" yaml:"port,omitempty"`
	Status    Status   `json:"status" yaml:"status"`
	Service   string   `json:"service,omitempty" yaml:"service,omitempty"`
	Banner    string   `json:"banner,omitempty" yaml:"banner,omitempty"`
	Hostname  string   `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	MAC       string   `json:"mac,omitempty" yaml:"mac,omitempty"`
	Vendor    string   `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	Method    string   `json:"method,omitempty" yaml:"method,omitempty"`
	Error     string   `json:"error,omitempty" yaml:"error,omitempty"`
	LatencyMS *float64 `json:"latency_ms,omitempty" yaml:"latency_ms,omitempty"`
}

// Latency returns the measured latency in milliseconds, if any.
func (o Outcome) Latency() (float64, bool) {
	if o.LatencyMS == nil {
		return 0, false
	}
	return *o.LatencyMS, true
}

// Key is the ranking key of the outcome, see Unit.Key.
func (o Outcome) Key() uint64 {
	return unitKey(o.Kind, o.Host, o.Port)
}

// Positive reports whether the outcome is an open port or a live host.
func (o Outcome) Positive() bool {
	return o.Status == StatusOpen || o.Status == StatusUp
}

// FaultOutcome builds the error outcome recorded for a unit whose probe
// failed unexpectedly.
func FaultOutcome(u Unit, msg string) Outcome {
	return Outcome{
		Kind:    u.Kind,
		Host:    u.Host,
		Port:    u.Port,
		Service: u.Service,
		Status:  StatusError,
		Error:   msg,
	}
}

// Prober runs a single unit and classifies its result. Implementations must
// bound their own duration by the unit's timeout.
type Prober interface {
	Probe(ctx context.Context, u Unit) Outcome
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, u Unit) Outcome

// Probe implements Prober.
func (f ProberFunc) Probe(ctx context.Context, u Unit) Outcome {
	return f(ctx, u)
}

func millis(d time.Duration) *float64 {
	ms := float64(d) / float64(time.Millisecond)
	return &ms
}

// unitKey orders IPv4 hosts by their integer value. Names and IPv6 addresses
// sort after every IPv4 address.
func unitKey(kind Kind, host string, port int) uint64 {
	if kind == KindPort {
		return uint64(port)
	}
	addr, err := netip.ParseAddr(host)
	if err != nil || !addr.Unmap().Is4() {
		return math.MaxUint64
	}
	return uint64(binary.BigEndian.Uint32(addr.Unmap().AsSlice()))
}
