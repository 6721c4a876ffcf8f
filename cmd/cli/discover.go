package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/anstrom/netprobe/internal/config"
	"github.com/anstrom/netprobe/internal/logging"
	"github.com/anstrom/netprobe/internal/scanning"
)

var (
	discoverNetwork  string
	discoverTimeout  time.Duration
	discoverWorkers  int
	discoverNoEnrich bool
	discoverNoICMP   bool
	discoverDgram    bool
	discoverOutput   string
	discoverAll      bool
)

// discoverCmd represents the discover command.
var discoverCmd = &cobra.Command{
	Use:   "discover [network]",
	Short: "Find live hosts on an IPv4 network",
	Long: `Sweep an IPv4 network in CIDR notation for live hosts.

Each host is checked with an ICMP echo when the process may send one, and
with TCP connects to the fallback ports otherwise. The --timeout is the whole
budget of one host, lookups included. Live hosts are named by
reverse DNS (and SNMP when a community is configured) and get their MAC
address and vendor from the neighbour table.

Without a network the configured default is used, or the /24 of the local
interface when none is configured.`,
	Example: `  netprobe discover 192.168.1.0/24
  netprobe discover --network 10.0.0.0/22 --workers 200
  netprobe discover --no-enrich -o json
  netprobe discover 172.16.5.0/24 --no-icmp --timeout 500ms`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().StringVarP(&discoverNetwork, "network", "n", "", "Network to sweep in CIDR notation")
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", 0, "Per-host liveness timeout (default from config)")
	discoverCmd.Flags().IntVarP(&discoverWorkers, "workers", "w", 0, "Concurrent host checks (default from config)")
	discoverCmd.Flags().BoolVar(&discoverNoEnrich, "no-enrich", false, "Skip hostname and MAC lookups")
	discoverCmd.Flags().BoolVar(&discoverNoICMP, "no-icmp", false, "Use TCP connects only")
	discoverCmd.Flags().BoolVar(&discoverDgram, "icmp-unprivileged", false, "Send echoes over a datagram socket, no root needed")
	discoverCmd.Flags().StringVarP(&discoverOutput, "output", "o", outputTable, "Output format: table, json, yaml")
	discoverCmd.Flags().BoolVar(&discoverAll, "all", false, "List hosts found down too")
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	network := discoverNetwork
	if network == "" && len(args) == 1 {
		network = args[0]
	}
	if err := validateOutputFormat(discoverOutput); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyDiscoverFlags(cfg)
	if network == "" {
		network = cfg.Discovery.DefaultNetwork
	}

	scanner, err := scanning.NewFromConfig(cfg, scanning.WithLogger(logging.Default()))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bar, progress := progressFor(progressEnabled(discoverOutput), "Sweeping", cmd.ErrOrStderr())
	sess, err := scanner.StartHostDiscovery(ctx, network, progress)
	if err != nil {
		return err
	}
	if network == "" {
		logging.Info("Using local network", "network", sess.Network())
	}
	if bar != nil {
		bar.title = "Sweeping " + sess.Network()
	}

	report, err := sess.Run(ctx)
	if bar != nil {
		bar.Stop()
	}
	if err != nil {
		return err
	}

	return writeReport(cmd.OutOrStdout(), discoverOutput, report, discoverAll)
}

// applyDiscoverFlags copies explicitly set discovery flags over the configuration.
func applyDiscoverFlags(cfg *config.Config) {
	if discoverTimeout > 0 {
		cfg.Discovery.Timeout = discoverTimeout
	}
	if discoverWorkers > 0 {
		cfg.Discovery.Workers = discoverWorkers
	}
	if discoverNoEnrich {
		cfg.Enrichment.Enabled = false
	}
	if discoverNoICMP {
		cfg.Discovery.ICMP = false
	}
	if discoverDgram {
		cfg.Discovery.ICMPUnprivileged = true
	}
}
