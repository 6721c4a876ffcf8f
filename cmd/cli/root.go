// Package cli provides the command-line interface of netprobe.
// It implements the Cobra command tree for port scans, host discovery,
// single-host liveness checks, the HTTP service and API key management.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/anstrom/netprobe/internal/api/handlers"
	"github.com/anstrom/netprobe/internal/config"
	"github.com/anstrom/netprobe/internal/logging"
)

const (
	envPrefix         = "NETPROBE"
	defaultConfigFile = "netprobe.yaml"
	defaultEnvFile    = ".env"
)

var (
	cfgFile    string
	verbose    bool
	logFormat  string
	noProgress bool
)

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "netprobe",
	Short: "Concurrent host and port prober",
	Long: `netprobe checks which TCP ports of a host accept connections and which
hosts of an IPv4 network are alive. Probes run on a bounded worker pool with
per-probe timeouts, live progress and ranked, deterministic results.

It can also run as a service exposing scans over HTTP and sweeping
networks on a schedule.`,
	Version:       getVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./netprobe.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	flags.StringVar(&logFormat, "log-format", "", "log format: text or json (overrides config)")
	flags.BoolVar(&noProgress, "no-progress", false, "do not draw a progress bar")

	bindFlags(flags, map[string]string{
		"verbose":        "verbose",
		"logging.format": "log-format",
		"no_progress":    "no-progress",
	})
}

// bindFlags binds flags to viper keys, keyed by viper key.
func bindFlags(flags *pflag.FlagSet, bindings map[string]string) {
	for key, name := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to bind %s flag: %v\n", name, err)
		}
	}
}

// initConfig loads a .env file, wires NETPROBE_* environment variables into
// viper and initializes logging.
func initConfig() {
	if err := godotenv.Load(defaultEnvFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load %s: %v\n", defaultEnvFile, err)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	initLogging()
}

// configPath returns the configuration file to load.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if p := viper.GetString("config"); p != "" {
		return p
	}
	return defaultConfigFile
}

// loadConfig loads the configuration file and applies environment and flag
// overrides. A missing file yields the defaults.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyOverrides copies NETPROBE_* variables and bound flags over the
// loaded configuration.
func applyOverrides(cfg *config.Config) {
	if viper.IsSet("logging.level") {
		cfg.Logging.Level = logging.LogLevel(viper.GetString("logging.level"))
	}
	if viper.IsSet("logging.format") && viper.GetString("logging.format") != "" {
		cfg.Logging.Format = logging.LogFormat(viper.GetString("logging.format"))
	}
	if viper.GetBool("verbose") {
		cfg.Logging.Level = logging.LevelDebug
	}
	if viper.IsSet("scanning.timeout") {
		cfg.Scanning.Timeout = viper.GetDuration("scanning.timeout")
	}
	if viper.IsSet("discovery.timeout") {
		cfg.Discovery.Timeout = viper.GetDuration("discovery.timeout")
	}
	if viper.IsSet("discovery.default_network") {
		cfg.Discovery.DefaultNetwork = viper.GetString("discovery.default_network")
	}
	if viper.IsSet("api.host") {
		cfg.API.Host = viper.GetString("api.host")
	}
	if viper.IsSet("api.port") {
		cfg.API.Port = viper.GetInt("api.port")
	}
}

// getVersion returns the version string.
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
	handlers.SetBuildInfo(v, c, bt)
}

// initLogging initializes structured logging based on configuration.
func initLogging() {
	logConfig := logging.DefaultConfig()
	if cfg, err := config.Load(configPath()); err == nil {
		applyOverrides(cfg)
		logConfig = cfg.Logging
	} else if viper.GetBool("verbose") {
		logConfig.Level = logging.LevelDebug
	}
	logConfig.AddSource = logConfig.Level == logging.LevelDebug

	logger, err := logging.New(logConfig)
	if err != nil {
		logger = logging.NewDefault()
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	logging.SetDefault(logger)

	if verbose {
		logging.Debug("Structured logging initialized",
			"level", logConfig.Level,
			"format", logConfig.Format,
			"config", configPath())
	}
}

// progressEnabled reports whether a progress bar should be drawn for the
// given output format.
func progressEnabled(format string) bool {
	return !viper.GetBool("no_progress") && format == outputTable
}
