package probe

import (
	"context"
	stderrors "errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/anstrom/netprobe/internal/enrich"
)

// HostProber decides liveness with a strategy chain and enriches live hosts
// with a host name, MAC address and MAC vendor.
type HostProber struct {
	Liveness  Strategy
	Hostnames enrich.HostnameResolver
	MACs      enrich.MACResolver

	// EnrichTimeout bounds the hostname and MAC lookups together. They also
	// end with the unit deadline.
	EnrichTimeout time.Duration
}

// Probe implements Prober. The unit timeout is one budget for the whole
// host: every liveness strategy and the enrichment of a live host share it.
func (h *HostProber) Probe(ctx context.Context, u Unit) Outcome {
	ctx, cancel := context.WithTimeout(ctx, u.Timeout)
	defer cancel()

	out := Outcome{Kind: KindHost, Host: u.Host}

	r := h.Liveness.Check(ctx, u.Host, u.Timeout)
	out.Method = r.Method

	switch r.Verdict {
	case VerdictUp:
		out.Status = StatusUp
		out.LatencyMS = millis(r.Latency)
		h.enrich(ctx, &out)
	case VerdictError:
		out.Status = StatusError
		if r.Err != nil {
			out.Error = r.Err.Error()
		}
	default:
		out.Status = StatusDown
		if stderrors.Is(r.Err, ErrNoStrategy) {
			out.Error = r.Err.Error()
		}
	}
	return out
}

func (h *HostProber) enrich(ctx context.Context, out *Outcome) {
	if h.Hostnames == nil && h.MACs == nil {
		return
	}
	if h.EnrichTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.EnrichTimeout)
		defer cancel()
	}

	var hostname, mac string
	g, gctx := errgroup.WithContext(ctx)
	if h.Hostnames != nil {
		g.Go(func() error {
			hostname, _ = h.Hostnames.LookupHostname(gctx, out.Host)
			return nil
		})
	}
	if h.MACs != nil {
		g.Go(func() error {
			mac, _ = h.MACs.LookupMAC(gctx, out.Host)
			return nil
		})
	}
	_ = g.Wait()

	out.Hostname = hostname
	if mac != "" {
		out.MAC = mac
		out.Vendor, _ = enrich.LookupVendor(mac)
	}
}
