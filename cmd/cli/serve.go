package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anstrom/netprobe/internal/config"
	"github.com/anstrom/netprobe/internal/daemon"
	"github.com/anstrom/netprobe/internal/logging"
	"github.com/anstrom/netprobe/internal/metrics"
	"github.com/anstrom/netprobe/internal/scanning"
)

var (
	serveHost    string
	servePort    int
	servePIDFile string
	serveNoAPI   bool
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and scheduled discovery",
	Long: `Run netprobe as a service.

The HTTP API accepts port scans and discoveries as background jobs, streams
their progress over WebSocket and serves Prometheus metrics. Sweeps listed
under 'schedules' in the config file run on their cron specs. SIGINT or
SIGTERM cancels running jobs and shuts down; SIGUSR1 logs a status dump.`,
	Example: `  netprobe serve
  netprobe serve --host 0.0.0.0 --port 9090
  netprobe serve --config /etc/netprobe/netprobe.yaml --pid-file /run/netprobe.pid
  netprobe serve --no-api    # schedules only`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "API listen address (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "API listen port (overrides config)")
	serveCmd.Flags().StringVar(&servePIDFile, "pid-file", "", "Write the process id to this file")
	serveCmd.Flags().BoolVar(&serveNoAPI, "no-api", false, "Run scheduled discovery only")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyServeFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	pm := metrics.GetGlobalMetrics()
	scanner, err := scanning.NewFromConfig(cfg,
		scanning.WithLogger(logging.Default()),
		scanning.WithMetrics(pm))
	if err != nil {
		return err
	}

	d := daemon.New(cfg, scanner, daemon.WithLogger(logging.Default()), daemon.WithMetrics(pm))
	return d.Start()
}

// applyServeFlags copies serve flags over the configuration.
func applyServeFlags(cfg *config.Config) {
	cfg.API.Enabled = !serveNoAPI
	if serveHost != "" {
		cfg.API.Host = serveHost
	}
	if servePort > 0 {
		cfg.API.Port = servePort
	}
	if servePIDFile != "" {
		cfg.Daemon.PIDFile = servePIDFile
	}
}
