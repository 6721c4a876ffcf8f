package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/anstrom/netprobe/internal/config"
	"github.com/anstrom/netprobe/internal/logging"
	"github.com/anstrom/netprobe/internal/scanning"
	"github.com/anstrom/netprobe/internal/target"
)

const defaultPortSpec = "1-1024"

var (
	scanHost    string
	scanPorts   string
	scanCommon  bool
	scanTimeout time.Duration
	scanWorkers int
	scanRate    int
	scanOutput  string
	scanAll     bool
	scanDetect  bool
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan [host]",
	Short: "Scan a host for open TCP ports",
	Long: `Scan one host for TCP ports that accept connections.

Ports are given as a range (1-1024), a list (22,80,443) or a mix of both
(22,80,8000-8010). With --common the built-in table of well-known service
ports is scanned instead. Results are sorted by port number; the table shows
open ports unless --all is given. With --detect each open port is asked for a
banner and the service is named from what it sends.`,
	Example: `  netprobe scan --host 192.168.1.10
  netprobe scan 192.168.1.10 --ports 1-65535 --workers 500
  netprobe scan --host example.com --ports "22,80,443,8000-8100"
  netprobe scan --host 10.0.0.5 --common -o json
  netprobe scan 10.0.0.5 --common --detect`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanHost, "host", "", "Host name or IPv4 address to scan")
	scanCmd.Flags().StringVarP(&scanPorts, "ports", "p", defaultPortSpec, "Ports to scan: range, list or both")
	scanCmd.Flags().BoolVar(&scanCommon, "common", false, "Scan the common service ports")
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 0, "Per-port connect timeout (default from config)")
	scanCmd.Flags().IntVarP(&scanWorkers, "workers", "w", 0, "Concurrent probes (default from config)")
	scanCmd.Flags().IntVar(&scanRate, "rate", 0, "Maximum probes started per second, 0 for no limit")
	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", outputTable, "Output format: table, json, yaml")
	scanCmd.Flags().BoolVar(&scanAll, "all", false, "List closed and filtered ports too")
	scanCmd.Flags().BoolVar(&scanDetect, "detect", false, "Read banners from open ports to name their services")

	scanCmd.MarkFlagsMutuallyExclusive("ports", "common")
}

func runScan(cmd *cobra.Command, args []string) error {
	host := scanHost
	if host == "" && len(args) == 1 {
		host = args[0]
	}
	if host == "" {
		return fmt.Errorf("a host is required, use --host or pass it as an argument")
	}
	if err := validateOutputFormat(scanOutput); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyScanFlags(cmd, cfg)

	scanner, err := scanning.NewFromConfig(cfg, scanning.WithLogger(logging.Default()))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bar, progress := progressFor(progressEnabled(scanOutput), "Scanning "+host, cmd.ErrOrStderr())
	report, err := executePortScan(ctx, scanner, host, progress)
	if bar != nil {
		bar.Stop()
	}
	if err != nil {
		return err
	}

	return writeReport(cmd.OutOrStdout(), scanOutput, report, scanAll)
}

// applyScanFlags copies explicitly set scan flags over the configuration.
func applyScanFlags(cmd *cobra.Command, cfg *config.Config) {
	if scanTimeout > 0 {
		cfg.Scanning.Timeout = scanTimeout
	}
	if scanWorkers > 0 {
		cfg.Scanning.PortWorkers = scanWorkers
		cfg.Scanning.CommonPortWorkers = scanWorkers
	}
	if cmd.Flags().Changed("rate") {
		cfg.Scanning.RateLimit = scanRate
	}
	if scanDetect {
		cfg.Scanning.DetectServices = true
	}
}

func executePortScan(ctx context.Context, scanner *scanning.Scanner, host string,
	progress scanning.ProgressFunc,
) (*scanning.Report, error) {
	var (
		sess *scanning.Session
		err  error
	)
	if scanCommon {
		sess, err = scanner.StartCommonPortScan(host, progress)
	} else {
		lo, hi, list, perr := parsePortSelection(scanPorts)
		if perr != nil {
			return nil, perr
		}
		if list != nil {
			sess, err = scanner.StartPortListScan(host, list, progress)
		} else {
			sess, err = scanner.StartPortScan(host, lo, hi, progress)
		}
	}
	if err != nil {
		return nil, err
	}
	return sess.Run(ctx)
}

// parsePortSelection returns lo and hi for a single "lo-hi" range, or the
// expanded port list for any other spec.
func parsePortSelection(spec string) (lo, hi int, list []int, err error) {
	spec = strings.TrimSpace(spec)
	if before, after, ok := strings.Cut(spec, "-"); ok && !strings.Contains(spec, ",") {
		first, errLo := strconv.Atoi(strings.TrimSpace(before))
		last, errHi := strconv.Atoi(strings.TrimSpace(after))
		if errLo == nil && errHi == nil {
			return first, last, nil, nil
		}
	}
	list, err = target.ParsePortSpec(spec)
	if err != nil {
		return 0, 0, nil, err
	}
	return 0, 0, list, nil
}
