package enrich

import (
	"context"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
)

// sysName.0 from SNMPv2-MIB.
const sysNameOID = "1.3.6.1.2.1.1.5.0"

// SNMPResolver reads sysName over SNMP v2c. It is a fallback for hosts that
// have no PTR record, typically switches, printers and access points.
type SNMPResolver struct {
	Community string
	Port      uint16
	Timeout   time.Duration
}

// NewSNMPResolver returns a resolver on the standard agent port.
func NewSNMPResolver(community string, timeout time.Duration) *SNMPResolver {
	return &SNMPResolver{Community: community, Port: 161, Timeout: timeout}
}

// LookupHostname implements HostnameResolver.
func (r *SNMPResolver) LookupHostname(ctx context.Context, addr string) (string, bool) {
	client := &gosnmp.GoSNMP{
		Target:    addr,
		Port:      r.Port,
		Community: r.Community,
		Version:   gosnmp.Version2c,
		Timeout:   r.Timeout,
		Retries:   0,
		Context:   ctx,
	}
	if err := client.Connect(); err != nil {
		return "", false
	}
	defer func() { _ = client.Conn.Close() }()

	packet, err := client.Get([]string{sysNameOID})
	if err != nil {
		return "", false
	}
	for _, v := range packet.Variables {
		if v.Type != gosnmp.OctetString {
			continue
		}
		if b, ok := v.Value.([]byte); ok {
			if name := strings.TrimSpace(string(b)); name != "" {
				return name, true
			}
		}
	}
	return "", false
}
