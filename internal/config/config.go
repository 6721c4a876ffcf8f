// Package config holds the netprobe configuration: probe timeouts and worker
// counts, discovery strategy, enrichment collaborators, logging, the optional
// HTTP service and scheduled discovery sweeps.
package config

import (
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/anstrom/netprobe/internal/errors"
	"github.com/anstrom/netprobe/internal/logging"
)

// Config represents the complete netprobe configuration
type Config struct {
	Scanning   ScanningConfig   `yaml:"scanning" json:"scanning"`
	Discovery  DiscoveryConfig  `yaml:"discovery" json:"discovery"`
	Enrichment EnrichmentConfig `yaml:"enrichment" json:"enrichment"`
	Logging    logging.Config   `yaml:"logging" json:"logging"`
	API        APIConfig        `yaml:"api" json:"api"`
	Daemon     DaemonConfig     `yaml:"daemon" json:"daemon"`
	Schedules  []ScheduleConfig `yaml:"schedules" json:"schedules" validate:"dive"`
}

// ScanningConfig holds port scan settings
type ScanningConfig struct {
	// Workers used for port range scans
	PortWorkers int `yaml:"port_workers" json:"port_workers" validate:"gte=1,lte=4096"`

	// Workers used for the common-ports scan
	CommonPortWorkers int `yaml:"common_port_workers" json:"common_port_workers" validate:"gte=1,lte=4096"`

	// Per-probe connect timeout
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`

	// Read a banner from open ports and name the service from it
	DetectServices bool `yaml:"detect_services" json:"detect_services"`

	// Progress notifications buffered before they are dropped
	ProgressBuffer int `yaml:"progress_buffer" json:"progress_buffer" validate:"gte=1"`

	// Probes dispatched per second in one session, 0 means unlimited
	RateLimit int `yaml:"rate_limit" json:"rate_limit" validate:"gte=0"`

	// Sessions allowed to run at once, 0 means unlimited
	MaxConcurrentSessions int `yaml:"max_concurrent_sessions" json:"max_concurrent_sessions" validate:"gte=0"`
}

// DiscoveryConfig holds host discovery settings
type DiscoveryConfig struct {
	Workers int `yaml:"workers" json:"workers" validate:"gte=1,lte=4096"`

	// Budget of one host, shared by the liveness checks and enrichment
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`

	// Try an ICMP echo before falling back to TCP connects
	ICMP bool `yaml:"icmp" json:"icmp"`

	// Send the echo over a datagram socket instead of a raw one; needs
	// net.ipv4.ping_group_range on Linux
	ICMPUnprivileged bool `yaml:"icmp_unprivileged" json:"icmp_unprivileged"`

	// Ports tried in order by the TCP liveness fallback
	FallbackPorts []int `yaml:"fallback_ports" json:"fallback_ports" validate:"min=1,dive,gte=1,lte=65535"`

	// Network used when none is given; empty means auto-detect the local /24
	DefaultNetwork string `yaml:"default_network" json:"default_network" validate:"omitempty,cidrv4"`
}

// EnrichmentConfig controls the hostname and MAC lookups done for live hosts
type EnrichmentConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Upper bound of the lookups, which also end with the host's discovery timeout
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`

	// Nameservers for PTR lookups; empty means /etc/resolv.conf
	DNSServers []string `yaml:"dns_servers" json:"dns_servers" validate:"dive,hostname_port|ip"`

	// SNMP community for the sysName fallback; empty disables it
	SNMPCommunity string `yaml:"snmp_community" json:"snmp_community"`

	// Kernel neighbour table
	ARPTable string `yaml:"arp_table" json:"arp_table"`
}

// APIConfig holds HTTP service settings
type APIConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Host    string `yaml:"host" json:"host"`
	Port    int    `yaml:"port" json:"port" validate:"gte=1,lte=65535"`

	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	MaxRequestSize  int64         `yaml:"max_request_size" json:"max_request_size" validate:"gte=0"`

	EnableCORS  bool     `yaml:"enable_cors" json:"enable_cors"`
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`

	// bcrypt hashes of accepted API keys, see `netprobe apikey hash`
	AuthEnabled  bool     `yaml:"auth_enabled" json:"auth_enabled"`
	APIKeyHashes []string `yaml:"api_key_hashes" json:"api_key_hashes"`

	// Finished jobs kept in memory for GET /scans/{id}
	MaxRetainedJobs int `yaml:"max_retained_jobs" json:"max_retained_jobs" validate:"gte=1"`
}

// DaemonConfig holds settings of `netprobe serve`
type DaemonConfig struct {
	// Written at startup and removed on exit; empty disables it
	PIDFile string `yaml:"pid_file" json:"pid_file"`

	// Time allowed for running jobs to wind down after a stop signal
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" validate:"gte=0"`

	// How often the daemon logs job and session usage, 0 disables it
	StatusInterval time.Duration `yaml:"status_interval" json:"status_interval" validate:"gte=0"`
}

// ScheduleConfig describes a recurring discovery sweep
type ScheduleConfig struct {
	Name    string `yaml:"name" json:"name" validate:"required"`
	Cron    string `yaml:"cron" json:"cron" validate:"required"`
	Network string `yaml:"network" json:"network" validate:"omitempty,cidrv4"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Scanning: ScanningConfig{
			PortWorkers:           100,
			CommonPortWorkers:     50,
			Timeout:               time.Second,
			ProgressBuffer:        64,
			MaxConcurrentSessions: 4,
		},
		Discovery: DiscoveryConfig{
			Workers:       50,
			Timeout:       time.Second,
			ICMP:          true,
			FallbackPorts: []int{80, 443, 22},
		},
		Enrichment: EnrichmentConfig{
			Enabled:  true,
			Timeout:  2 * time.Second,
			ARPTable: "/proc/net/arp",
		},
		Logging: logging.DefaultConfig(),
		API: APIConfig{
			Enabled:         false,
			Host:            "127.0.0.1",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxRequestSize:  1 << 20,
			EnableCORS:      true,
			CORSOrigins:     []string{"*"},
			MaxRetainedJobs: 100,
		},
		Daemon: DaemonConfig{
			ShutdownTimeout: 30 * time.Second,
			StatusInterval:  time.Minute,
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config (assumed YAML): %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) && len(verrs) > 0 {
			return errors.ErrConfigInvalid(verrs[0].Namespace(), verrs[0].Value())
		}
		return errors.WrapConfigError(errors.CodeValidation, "configuration validation failed", err)
	}

	if c.API.Enabled {
		if c.API.Host == "" {
			return errors.ErrConfigMissing("api.host")
		}
		if c.API.AuthEnabled && len(c.API.APIKeyHashes) == 0 {
			return errors.ErrConfigMissing("api.api_key_hashes")
		}
	}

	seen := make(map[string]bool, len(c.Schedules))
	for _, s := range c.Schedules {
		if seen[s.Name] {
			return errors.ErrConfigInvalid("schedules.name", s.Name)
		}
		seen[s.Name] = true
		if _, err := cron.ParseStandard(s.Cron); err != nil {
			return errors.ErrConfigInvalid("schedules.cron", s.Cron)
		}
	}

	return nil
}

// GetAPIAddress returns the full API listen address
func (c *Config) GetAPIAddress() string {
	return net.JoinHostPort(c.API.Host, fmt.Sprintf("%d", c.API.Port))
}
