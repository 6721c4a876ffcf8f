package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/anstrom/netprobe/internal/logging"
	"github.com/anstrom/netprobe/internal/probe"
	"github.com/anstrom/netprobe/internal/scanning"
)

var (
	pingTimeout  time.Duration
	pingNoEnrich bool
	pingOutput   string
)

// pingCmd represents the ping command.
var pingCmd = &cobra.Command{
	Use:   "ping HOST",
	Short: "Check whether a single host is alive",
	Long: `Check one host with the same liveness strategy used by discover:
an ICMP echo when permitted, TCP connects to the fallback ports otherwise.
The method that decided and its latency are reported.`,
	Example: `  netprobe ping 192.168.1.1
  netprobe ping router.lan --no-enrich -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)

	pingCmd.Flags().DurationVar(&pingTimeout, "timeout", 0, "Liveness timeout (default from config)")
	pingCmd.Flags().BoolVar(&pingNoEnrich, "no-enrich", false, "Skip hostname and MAC lookups")
	pingCmd.Flags().StringVarP(&pingOutput, "output", "o", outputTable, "Output format: table, json, yaml")
}

func runPing(cmd *cobra.Command, args []string) error {
	if err := validateOutputFormat(pingOutput); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if pingTimeout > 0 {
		cfg.Discovery.Timeout = pingTimeout
	}
	if pingNoEnrich {
		cfg.Enrichment.Enabled = false
	}

	scanner, err := scanning.NewFromConfig(cfg, scanning.WithLogger(logging.Default()))
	if err != nil {
		return err
	}

	outcome, err := scanner.Ping(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if pingOutput != outputTable {
		return writeStructured(cmd.OutOrStdout(), pingOutput, outcome)
	}
	return writePingResult(cmd.OutOrStdout(), outcome)
}

func writePingResult(w io.Writer, o probe.Outcome) error {
	switch o.Status {
	case probe.StatusUp:
		line := fmt.Sprintf("%s is up (%s, %s)", o.Host, dash(o.Method), formatLatency(o))
		if o.Hostname != "" {
			line += "\n  hostname: " + o.Hostname
		}
		if o.MAC != "" {
			line += "\n  mac:      " + o.MAC
			if o.Vendor != "" {
				line += " (" + o.Vendor + ")"
			}
		}
		_, err := fmt.Fprintln(w, line)
		return err
	case probe.StatusError:
		_, err := fmt.Fprintf(w, "%s could not be checked: %s\n", o.Host, o.Error)
		return err
	default:
		_, err := fmt.Fprintf(w, "%s is down\n", o.Host)
		return err
	}
}
