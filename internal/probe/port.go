package probe

import (
	"context"
	stderrors "errors"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/anstrom/netprobe/internal/errors"
)

// Dialer opens a connection. *net.Dialer satisfies it; tests substitute stubs.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// PortProber probes one TCP port with a full connect handshake.
type PortProber struct {
	Dialer Dialer

	// DetectServices reads a banner from open ports within the unit timeout
	// and names the service from it.
	DetectServices bool
}

// NewPortProber returns a PortProber using d, or a plain net.Dialer when d is nil.
func NewPortProber(d Dialer) *PortProber {
	if d == nil {
		d = &net.Dialer{}
	}
	return &PortProber{Dialer: d}
}

// Probe implements Prober. The connection, if any, is closed before returning.
func (p *PortProber) Probe(ctx context.Context, u Unit) Outcome {
	ctx, cancel := context.WithTimeout(ctx, u.Timeout)
	defer cancel()

	out := Outcome{
		Kind:    KindPort,
		Host:    u.Host,
		Port:    u.Port,
		Service: u.Service,
	}

	start := time.Now()
	conn, err := p.Dialer.DialContext(ctx, "tcp", u.Target())
	out.LatencyMS = millis(time.Since(start))

	if err == nil {
		out.Status = StatusOpen
		if p.DetectServices {
			raw := readBanner(ctx, conn, u.Host, u.Port)
			out.Banner = printableBanner(raw)
			if name, ok := IdentifyService(raw); ok {
				out.Service = name
			}
		}
		_ = conn.Close()
		return out
	}

	out.Status, out.Error = classifyDialError(err)
	return out
}

// classifyDialError maps a dial failure onto a port status and message.
func classifyDialError(err error) (Status, string) {
	switch ErrorCode(err) {
	case errors.CodeConnectionRefused:
		return StatusClosed, ""
	case errors.CodeTimeout:
		return StatusFiltered, "connection timed out"
	case errors.CodeNameResolution:
		return StatusError, "could not resolve hostname"
	default:
		return StatusError, err.Error()
	}
}

// ErrorCode classifies a dial error. Name resolution is checked first since a
// resolver timeout is still a resolution failure.
func ErrorCode(err error) errors.ErrorCode {
	var dnsErr *net.DNSError
	if stderrors.As(err, &dnsErr) {
		return errors.CodeNameResolution
	}
	if isConnectionRefused(err) {
		return errors.CodeConnectionRefused
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.CodeTimeout
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.CodeTimeout
	}
	if stderrors.Is(err, syscall.EPERM) || stderrors.Is(err, syscall.EACCES) {
		return errors.CodePermission
	}
	return errors.CodeProbeFault
}

func isConnectionRefused(err error) bool {
	if stderrors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "actively refused")
}
