package enrich

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
)

const zeroMAC = "00:00:00:00:00:00"

// ARPTable reads the kernel neighbour table in /proc/net/arp format. The
// table is re-read on every lookup because probes populate it as they run.
type ARPTable struct {
	Path string
}

// NewARPTable returns a table reader for path, defaulting to /proc/net/arp.
func NewARPTable(path string) *ARPTable {
	if path == "" {
		path = "/proc/net/arp"
	}
	return &ARPTable{Path: path}
}

// LookupMAC implements MACResolver.
func (t *ARPTable) LookupMAC(_ context.Context, addr string) (string, bool) {
	f, err := os.Open(t.Path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	mac, ok := parseARPTable(f)[addr]
	return mac, ok
}

// parseARPTable maps IP to MAC for complete entries. Columns are
// "IP address, HW type, Flags, HW address, Mask, Device".
func parseARPTable(r io.Reader) map[string]string {
	entries := make(map[string]string)
	scanner := bufio.NewScanner(r)
	first := true
	for scanner.Scan() {
		if first {
			first = false
			continue
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		// 0x0 is an incomplete entry
		if fields[2] == "0x0" || fields[3] == zeroMAC {
			continue
		}
		entries[fields[0]] = NormalizeMAC(fields[3])
	}
	return entries
}
