// Package enrich holds the collaborators the engine consults for live hosts
// and for auto-detecting the local network. Every lookup reports absence
// with ok=false; a failed lookup never fails a scan.
package enrich

//go:generate mockgen -source=enrich.go -destination=mocks/mock_enrich.go -package=mocks

import "context"

// HostnameResolver finds a host name for an IPv4 address.
type HostnameResolver interface {
	LookupHostname(ctx context.Context, addr string) (string, bool)
}

// MACResolver finds the hardware address of a neighbour.
type MACResolver interface {
	LookupMAC(ctx context.Context, addr string) (string, bool)
}

// NetworkDetector determines the local network to sweep, in CIDR form.
type NetworkDetector interface {
	LocalNetwork(ctx context.Context) (string, bool)
}

// HostnameChain asks each resolver in turn and returns the first name found.
type HostnameChain []HostnameResolver

// LookupHostname implements HostnameResolver.
func (c HostnameChain) LookupHostname(ctx context.Context, addr string) (string, bool) {
	for _, r := range c {
		if ctx.Err() != nil {
			return "", false
		}
		if name, ok := r.LookupHostname(ctx, addr); ok {
			return name, true
		}
	}
	return "", false
}
