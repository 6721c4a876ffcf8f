package scanning

import (
	"sort"

	"github.com/anstrom/netprobe/internal/probe"
)

// Rank returns the outcomes ordered by ascending port for port scans and by
// ascending numeric IPv4 address for host scans, so "10.0.0.2" precedes
// "10.0.0.10". The input is not modified and ranking is idempotent.
func Rank(outcomes []probe.Outcome) []probe.Outcome {
	ranked := make([]probe.Outcome, len(outcomes))
	copy(ranked, outcomes)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Key() < ranked[j].Key()
	})
	return ranked
}
