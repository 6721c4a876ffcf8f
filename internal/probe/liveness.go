package probe

import (
	"context"
	stderrors "errors"
	"net"
	"strconv"
	"strings"
	"time"
)

// Verdict is what a liveness strategy concluded about a host.
type Verdict int

const (
	// VerdictUnavailable means the strategy cannot run here, for example
	// ICMP without privilege. The chain moves on to the next strategy.
	VerdictUnavailable Verdict = iota
	// VerdictDown means the strategy ran and got no answer.
	VerdictDown
	// VerdictUp means the host answered.
	VerdictUp
	// VerdictError means the strategy hit a fault other than silence.
	VerdictError
)

func (v Verdict) String() string {
	switch v {
	case VerdictUp:
		return "up"
	case VerdictDown:
		return "down"
	case VerdictError:
		return "error"
	default:
		return "unavailable"
	}
}

// ErrNoStrategy is reported when every strategy in a chain was unavailable.
var ErrNoStrategy = stderrors.New("no liveness strategy available")

// Result is the answer of a single liveness strategy.
type Result struct {
	Verdict Verdict
	Method  string
	Latency time.Duration
	Err     error
}

// Strategy is one way of deciding whether a host is up.
type Strategy interface {
	Name() string
	Check(ctx context.Context, host string, timeout time.Duration) Result
}

// Chain tries strategies in order. Unavailable strategies are skipped and the
// first strategy able to run decides the verdict.
type Chain []Strategy

// DefaultChain is ICMP echo first, then TCP connects to ports in order. A nil
// icmp leaves the echo out.
func DefaultChain(icmp *ICMPStrategy, fallbackPorts []int, d Dialer) Chain {
	var chain Chain
	if icmp != nil {
		chain = append(chain, icmp)
	}
	return append(chain, NewTCPStrategy(fallbackPorts, d))
}

// Name implements Strategy.
func (c Chain) Name() string {
	names := make([]string, 0, len(c))
	for _, s := range c {
		names = append(names, s.Name())
	}
	return strings.Join(names, ",")
}

// Check implements Strategy.
func (c Chain) Check(ctx context.Context, host string, timeout time.Duration) Result {
	for _, s := range c {
		r := s.Check(ctx, host, timeout)
		if r.Verdict == VerdictUnavailable {
			continue
		}
		if r.Method == "" {
			r.Method = s.Name()
		}
		return r
	}
	return Result{Verdict: VerdictDown, Err: ErrNoStrategy}
}

// TCPStrategy declares a host up when a TCP connect to any of its ports
// succeeds. Ports are tried in order and the first success wins and supplies
// the latency. Each connect gets the timeout or what is left of the ctx
// deadline, whichever is shorter, and no port is tried once ctx is done.
type TCPStrategy struct {
	Ports  []int
	Dialer Dialer
}

// NewTCPStrategy builds a TCP strategy; nil d means a plain net.Dialer.
func NewTCPStrategy(ports []int, d Dialer) *TCPStrategy {
	if d == nil {
		d = &net.Dialer{}
	}
	return &TCPStrategy{Ports: ports, Dialer: d}
}

// Name implements Strategy.
func (s *TCPStrategy) Name() string {
	return "tcp"
}

// Check implements Strategy.
func (s *TCPStrategy) Check(ctx context.Context, host string, timeout time.Duration) Result {
	var lastErr error
	for _, port := range s.Ports {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			break
		}
		latency, err := s.connect(ctx, host, port, timeout)
		if err == nil {
			return Result{
				Verdict: VerdictUp,
				Method:  "tcp:" + strconv.Itoa(port),
				Latency: latency,
			}
		}
		var dnsErr *net.DNSError
		if stderrors.As(err, &dnsErr) {
			return Result{Verdict: VerdictError, Method: s.Name(), Err: err}
		}
		lastErr = err
	}
	return Result{Verdict: VerdictDown, Method: s.Name(), Err: lastErr}
}

func (s *TCPStrategy) connect(ctx context.Context, host string, port int, timeout time.Duration) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	conn, err := s.Dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return 0, err
	}
	latency := time.Since(start)
	_ = conn.Close()
	return latency, nil
}
