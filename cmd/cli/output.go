package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/anstrom/netprobe/internal/probe"
	"github.com/anstrom/netprobe/internal/scanning"
)

// Output formats.
const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

func validateOutputFormat(format string) error {
	switch format {
	case outputTable, outputJSON, outputYAML:
		return nil
	default:
		return fmt.Errorf("invalid output format %q, valid formats: table, json, yaml", format)
	}
}

// writeStructured encodes v as JSON or YAML.
func writeStructured(w io.Writer, format string, v interface{}) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported structured format %q", format)
	}
}

// writeReport prints a report. Tables list open ports or live hosts unless
// all is set.
func writeReport(w io.Writer, format string, report *scanning.Report, all bool) error {
	if format != outputTable {
		return writeStructured(w, format, report)
	}

	outcomes := report.Outcomes
	if !all {
		if report.Kind == scanning.KindDiscovery {
			outcomes = report.LiveHosts()
		} else {
			outcomes = report.OpenPorts()
		}
	}

	if report.Kind == scanning.KindDiscovery {
		if err := writeHostTable(w, outcomes); err != nil {
			return err
		}
	} else if err := writePortTable(w, outcomes); err != nil {
		return err
	}

	_, err := fmt.Fprintln(w, summaryLine(report))
	return err
}

func writePortTable(w io.Writer, outcomes []probe.Outcome) error {
	banners := false
	for _, o := range outcomes {
		if o.Banner != "" {
			banners = true
			break
		}
	}

	table := tablewriter.NewWriter(w)
	if banners {
		table.Header("Port", "State", "Service", "Latency", "Banner")
	} else {
		table.Header("Port", "State", "Service", "Latency")
	}
	for _, o := range outcomes {
		state := string(o.Status)
		if o.Error != "" {
			state += " (" + o.Error + ")"
		}
		row := []string{strconv.Itoa(o.Port), state, o.Service, formatLatency(o)}
		if banners {
			row = append(row, dash(firstLine(o.Banner)))
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

// firstLine keeps a banner to one row.
func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	line = strings.TrimSpace(line)
	if r := []rune(line); len(r) > 60 {
		line = string(r[:60])
	}
	return line
}

func writeHostTable(w io.Writer, outcomes []probe.Outcome) error {
	table := tablewriter.NewWriter(w)
	table.Header("Address", "State", "Hostname", "MAC", "Vendor", "Method", "Latency")
	for _, o := range outcomes {
		if err := table.Append([]string{
			o.Host,
			string(o.Status),
			dash(o.Hostname),
			dash(o.MAC),
			dash(o.Vendor),
			dash(o.Method),
			formatLatency(o),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

func summaryLine(r *scanning.Report) string {
	s := r.Summary
	var line string
	if r.Kind == scanning.KindDiscovery {
		line = fmt.Sprintf("%s: %d of %d hosts up", r.Network, s.Up, s.Total)
	} else {
		line = fmt.Sprintf("%s: %d open, %d closed, %d filtered of %d ports", r.Target, s.Open, s.Closed, s.Filtered, s.Total)
	}
	if s.Errors > 0 {
		line += fmt.Sprintf(", %d errors", s.Errors)
	}
	line += fmt.Sprintf(" in %s", r.Duration.Round(time.Millisecond))
	if r.Canceled {
		line += fmt.Sprintf(" (canceled after %d units)", s.Completed)
	}
	return line
}

func formatLatency(o probe.Outcome) string {
	ms, ok := o.Latency()
	if !ok {
		return "-"
	}
	return strconv.FormatFloat(ms, 'f', 2, 64) + " ms"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
