package enrich

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const resolvConf = "/etc/resolv.conf"

// DNSResolver performs reverse (PTR) lookups against a fixed set of servers.
type DNSResolver struct {
	servers []string
	client  *dns.Client
}

// NewDNSResolver builds a PTR resolver. With no servers given the system
// nameservers from /etc/resolv.conf are used.
func NewDNSResolver(servers []string, timeout time.Duration) (*DNSResolver, error) {
	if len(servers) == 0 {
		cc, err := dns.ClientConfigFromFile(resolvConf)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", resolvConf, err)
		}
		for _, s := range cc.Servers {
			servers = append(servers, net.JoinHostPort(s, cc.Port))
		}
	}

	normalized := make([]string, 0, len(servers))
	for _, s := range servers {
		if _, _, err := net.SplitHostPort(s); err != nil {
			s = net.JoinHostPort(s, "53")
		}
		normalized = append(normalized, s)
	}
	if len(normalized) == 0 {
		return nil, fmt.Errorf("no nameservers configured")
	}

	return &DNSResolver{
		servers: normalized,
		client:  &dns.Client{Net: "udp", Timeout: timeout},
	}, nil
}

// Servers returns the nameservers queried, in order.
func (r *DNSResolver) Servers() []string {
	return r.servers
}

// LookupHostname implements HostnameResolver.
func (r *DNSResolver) LookupHostname(ctx context.Context, addr string) (string, bool) {
	arpa, err := dns.ReverseAddr(addr)
	if err != nil {
		return "", false
	}

	msg := new(dns.Msg)
	msg.SetQuestion(arpa, dns.TypePTR)

	for _, server := range r.servers {
		resp, _, err := r.client.ExchangeContext(ctx, msg, server)
		if err != nil || resp == nil || resp.Rcode != dns.RcodeSuccess {
			continue
		}
		for _, rr := range resp.Answer {
			if ptr, ok := rr.(*dns.PTR); ok && ptr.Ptr != "" {
				return strings.TrimSuffix(ptr.Ptr, "."), true
			}
		}
		// authoritative empty answer, other servers will agree
		return "", false
	}
	return "", false
}
