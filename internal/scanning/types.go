package scanning

import (
	"time"

	"github.com/anstrom/netprobe/internal/metrics"
	"github.com/anstrom/netprobe/internal/probe"
)

// Kind identifies the type of a scan session.
type Kind string

const (
	KindPortScan   Kind = metrics.KindPortScan
	KindCommonScan Kind = metrics.KindCommonScan
	KindDiscovery  Kind = metrics.KindDiscovery
)

// Report contains the complete results of a scan session.
type Report struct {
	// ID is the session id
	ID   string `json:"id" yaml:"id"`
	Kind Kind   `json:"kind" yaml:"kind"`
	// Target is the scanned host of a port scan
	Target string `json:"target,omitempty" yaml:"target,omitempty"`
	// Network is the swept network of a discovery, in CIDR form
	Network string `json:"network,omitempty" yaml:"network,omitempty"`
	// Outcomes are ranked by port or by address
	Outcomes []probe.Outcome `json:"outcomes" yaml:"outcomes"`
	Summary  Summary         `json:"summary" yaml:"summary"`

	StartTime time.Time     `json:"start_time" yaml:"start_time"`
	EndTime   time.Time     `json:"end_time" yaml:"end_time"`
	Duration  time.Duration `json:"duration" yaml:"duration"`

	// Canceled is set when the scan stopped before every unit ran
	Canceled bool `json:"canceled,omitempty" yaml:"canceled,omitempty"`
}

// Summary contains counts over the outcomes of a scan.
type Summary struct {
	// Total is the number of units the scan was partitioned into
	Total int `json:"total" yaml:"total"`
	// Completed is the number of units that produced an outcome
	Completed int `json:"completed" yaml:"completed"`

	Open     int `json:"open,omitempty" yaml:"open,omitempty"`
	Closed   int `json:"closed,omitempty" yaml:"closed,omitempty"`
	Filtered int `json:"filtered,omitempty" yaml:"filtered,omitempty"`
	Up       int `json:"up,omitempty" yaml:"up,omitempty"`
	Down     int `json:"down,omitempty" yaml:"down,omitempty"`
	Errors   int `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Summarize counts outcomes by status.
func Summarize(total int, outcomes []probe.Outcome) Summary {
	s := Summary{Total: total, Completed: len(outcomes)}
	for _, o := range outcomes {
		switch o.Status {
		case probe.StatusOpen:
			s.Open++
		case probe.StatusClosed:
			s.Closed++
		case probe.StatusFiltered:
			s.Filtered++
		case probe.StatusUp:
			s.Up++
		case probe.StatusDown:
			s.Down++
		case probe.StatusError:
			s.Errors++
		}
	}
	return s
}

// OpenPorts returns the open port outcomes in rank order.
func (r *Report) OpenPorts() []probe.Outcome {
	return r.filter(probe.StatusOpen)
}

// LiveHosts returns the outcomes of hosts found up, in rank order.
func (r *Report) LiveHosts() []probe.Outcome {
	return r.filter(probe.StatusUp)
}

func (r *Report) filter(status probe.Status) []probe.Outcome {
	out := make([]probe.Outcome, 0)
	for _, o := range r.Outcomes {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out
}
