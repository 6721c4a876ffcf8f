package scanning

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/netprobe/internal/config"
	"github.com/anstrom/netprobe/internal/enrich"
	"github.com/anstrom/netprobe/internal/errors"
	"github.com/anstrom/netprobe/internal/logging"
	"github.com/anstrom/netprobe/internal/metrics"
	"github.com/anstrom/netprobe/internal/probe"
	"github.com/anstrom/netprobe/internal/target"
	"github.com/anstrom/netprobe/internal/workers"
)

// Default settings of a Scanner built without options.
const (
	DefaultTimeout       = time.Second
	DefaultEnrichTimeout = 2 * time.Second
)

// DefaultFallbackPorts are tried in order when ICMP is unavailable.
var DefaultFallbackPorts = []int{80, 443, 22}

// Scanner creates scan sessions. It is safe for concurrent use.
type Scanner struct {
	portWorkers   int
	commonWorkers int
	hostWorkers   int
	rateLimit     int

	portTimeout   time.Duration
	hostTimeout   time.Duration
	enrichTimeout time.Duration
	buffer        int
	detectSvc     bool

	dialer    probe.Dialer
	liveness  probe.Strategy
	hostnames enrich.HostnameResolver
	macs      enrich.MACResolver
	detector  enrich.NetworkDetector
	limiter   SessionLimiter

	logger  *logging.Logger
	metrics metrics.Recorder
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(s *Scanner) { s.metrics = r }
}

// WithDialer replaces the dialer used by port probes and the default TCP
// liveness strategy.
func WithDialer(d probe.Dialer) Option {
	return func(s *Scanner) { s.dialer = d }
}

// WithLiveness replaces the host liveness strategy.
func WithLiveness(st probe.Strategy) Option {
	return func(s *Scanner) { s.liveness = st }
}

// WithHostnameResolver sets the resolver used to name live hosts.
func WithHostnameResolver(r enrich.HostnameResolver) Option {
	return func(s *Scanner) { s.hostnames = r }
}

// WithMACResolver sets the resolver used for hardware addresses of live hosts.
func WithMACResolver(r enrich.MACResolver) Option {
	return func(s *Scanner) { s.macs = r }
}

// WithNetworkDetector sets the detector used when discovery is started
// without a network.
func WithNetworkDetector(d enrich.NetworkDetector) Option {
	return func(s *Scanner) { s.detector = d }
}

// WithWorkers sets the worker counts of port, common-port and host scans.
// Non-positive values keep the current setting.
func WithWorkers(port, common, host int) Option {
	return func(s *Scanner) {
		if port > 0 {
			s.portWorkers = port
		}
		if common > 0 {
			s.commonWorkers = common
		}
		if host > 0 {
			s.hostWorkers = host
		}
	}
}

// WithTimeouts sets the per-unit timeouts of port probes and liveness checks.
// Non-positive values keep the current setting.
func WithTimeouts(port, host time.Duration) Option {
	return func(s *Scanner) {
		if port > 0 {
			s.portTimeout = port
		}
		if host > 0 {
			s.hostTimeout = host
		}
	}
}

// WithServiceDetection makes port scans read a banner from every open port
// and name the service from it.
func WithServiceDetection(on bool) Option {
	return func(s *Scanner) { s.detectSvc = on }
}

// WithEnrichTimeout bounds the hostname and MAC lookups of one live host.
func WithEnrichTimeout(d time.Duration) Option {
	return func(s *Scanner) { s.enrichTimeout = d }
}

// WithProgressBuffer sets how many snapshots are buffered per session.
func WithProgressBuffer(n int) Option {
	return func(s *Scanner) { s.buffer = n }
}

// WithRateLimit caps units dispatched per second in every session (0 = none).
func WithRateLimit(perSecond int) Option {
	return func(s *Scanner) { s.rateLimit = perSecond }
}

// WithSessionLimiter bounds how many sessions run at once.
func WithSessionLimiter(l SessionLimiter) Option {
	return func(s *Scanner) { s.limiter = l }
}

// New creates a scanner. Without options it uses 100 port workers, 50
// common-port and host workers, one second timeouts, the default liveness
// chain and no enrichment.
func New(opts ...Option) *Scanner {
	s := &Scanner{
		portWorkers:   workers.DefaultPortConfig().Size,
		commonWorkers: workers.DefaultCommonPortConfig().Size,
		hostWorkers:   workers.DefaultHostConfig().Size,
		portTimeout:   DefaultTimeout,
		hostTimeout:   DefaultTimeout,
		enrichTimeout: DefaultEnrichTimeout,
		buffer:        DefaultProgressBuffer,
		logger:        logging.Default(),
		metrics:       metrics.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logging.Default()
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	if s.liveness == nil {
		s.liveness = probe.DefaultChain(&probe.ICMPStrategy{}, DefaultFallbackPorts, s.dialer)
	}
	if s.detector == nil {
		s.detector = enrich.NewLocalNetworkDetector()
	}
	return s
}

// NewFromConfig creates a scanner from the configuration file settings,
// wiring DNS, SNMP and ARP enrichment when enabled. Options are applied
// after the configuration.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Scanner, error) {
	base := []Option{
		WithWorkers(cfg.Scanning.PortWorkers, cfg.Scanning.CommonPortWorkers, cfg.Discovery.Workers),
		WithTimeouts(cfg.Scanning.Timeout, cfg.Discovery.Timeout),
		WithProgressBuffer(cfg.Scanning.ProgressBuffer),
		WithRateLimit(cfg.Scanning.RateLimit),
		WithLiveness(probe.DefaultChain(icmpStrategy(cfg.Discovery), cfg.Discovery.FallbackPorts, nil)),
		WithEnrichTimeout(cfg.Enrichment.Timeout),
		WithServiceDetection(cfg.Scanning.DetectServices),
	}
	if cfg.Scanning.MaxConcurrentSessions > 0 {
		base = append(base, WithSessionLimiter(NewFixedSessionLimiter(cfg.Scanning.MaxConcurrentSessions)))
	}

	if cfg.Enrichment.Enabled {
		var chain enrich.HostnameChain
		dnsResolver, err := enrich.NewDNSResolver(cfg.Enrichment.DNSServers, cfg.Enrichment.Timeout)
		switch {
		case err == nil:
			chain = append(chain, dnsResolver)
		case len(cfg.Enrichment.DNSServers) > 0:
			return nil, errors.WrapConfigError(errors.CodeConfiguration, "failed to set up reverse DNS", err)
		default:
			logging.Warn("Reverse DNS disabled, no resolver configured", "error", err)
		}
		if cfg.Enrichment.SNMPCommunity != "" {
			chain = append(chain, enrich.NewSNMPResolver(cfg.Enrichment.SNMPCommunity, cfg.Enrichment.Timeout))
		}
		base = append(base,
			WithHostnameResolver(chain),
			WithMACResolver(enrich.NewARPTable(cfg.Enrichment.ARPTable)))
	}

	return New(append(base, opts...)...), nil
}

func icmpStrategy(cfg config.DiscoveryConfig) *probe.ICMPStrategy {
	if !cfg.ICMP {
		return nil
	}
	return &probe.ICMPStrategy{Unprivileged: cfg.ICMPUnprivileged}
}

// StartPortScan prepares a scan of every port in [lo, hi] on host.
func (s *Scanner) StartPortScan(host string, lo, hi int, progress ProgressFunc) (*Session, error) {
	units, err := target.PortRange(host, lo, hi, s.portTimeout)
	if err != nil {
		return nil, err
	}
	return s.portSession(KindPortScan, host, units, s.portWorkers, progress), nil
}

// StartPortListScan prepares a scan of the given ports on host.
func (s *Scanner) StartPortListScan(host string, ports []int, progress ProgressFunc) (*Session, error) {
	units, err := target.PortList(host, ports, s.portTimeout)
	if err != nil {
		return nil, err
	}
	return s.portSession(KindPortScan, host, units, s.portWorkers, progress), nil
}

// StartCommonPortScan prepares a scan of the common-ports table on host.
func (s *Scanner) StartCommonPortScan(host string, progress ProgressFunc) (*Session, error) {
	units, err := target.CommonPortUnits(host, s.portTimeout)
	if err != nil {
		return nil, err
	}
	return s.portSession(KindCommonScan, host, units, s.commonWorkers, progress), nil
}

// StartHostDiscovery prepares a liveness sweep of network. An empty network
// means the local /24 reported by the network detector.
func (s *Scanner) StartHostDiscovery(ctx context.Context, network string, progress ProgressFunc) (*Session, error) {
	if network == "" {
		detected, ok := s.detector.LocalNetwork(ctx)
		if !ok {
			return nil, errors.NewDiscoveryError(errors.CodeDiscoveryFailed, "could not determine local network")
		}
		network = detected
	}

	prefix, err := target.ParseNetwork(network)
	if err != nil {
		return nil, err
	}
	units, err := target.HostUnits(prefix.String(), s.hostTimeout)
	if err != nil {
		return nil, err
	}

	sess := s.newSession(KindDiscovery, units, s.hostProber(), s.hostWorkers, progress)
	sess.network = prefix.String()
	return sess, nil
}

// ScanPorts runs a port range scan to completion.
func (s *Scanner) ScanPorts(ctx context.Context, host string, lo, hi int, progress ProgressFunc) (*Report, error) {
	sess, err := s.StartPortScan(host, lo, hi, progress)
	if err != nil {
		return nil, err
	}
	return sess.Run(ctx)
}

// ScanCommonPorts runs a common-ports scan to completion.
func (s *Scanner) ScanCommonPorts(ctx context.Context, host string, progress ProgressFunc) (*Report, error) {
	sess, err := s.StartCommonPortScan(host, progress)
	if err != nil {
		return nil, err
	}
	return sess.Run(ctx)
}

// DiscoverHosts runs a host discovery to completion.
func (s *Scanner) DiscoverHosts(ctx context.Context, network string, progress ProgressFunc) (*Report, error) {
	sess, err := s.StartHostDiscovery(ctx, network, progress)
	if err != nil {
		return nil, err
	}
	return sess.Run(ctx)
}

// Ping checks a single host with the liveness strategy and enriches it when up.
func (s *Scanner) Ping(ctx context.Context, host string) (probe.Outcome, error) {
	if host == "" {
		return probe.Outcome{}, errors.ErrInvalidTarget(host, "host is required")
	}
	u := probe.Unit{Kind: probe.KindHost, Host: host, Timeout: s.hostTimeout}
	return s.hostProber().Probe(ctx, u), nil
}

// Limiter returns the session limiter, or nil.
func (s *Scanner) Limiter() SessionLimiter {
	return s.limiter
}

func (s *Scanner) portSession(kind Kind, host string, units []probe.Unit, size int, progress ProgressFunc) *Session {
	prober := probe.NewPortProber(s.dialer)
	prober.DetectServices = s.detectSvc
	sess := s.newSession(kind, units, prober, size, progress)
	sess.target = host
	return sess
}

func (s *Scanner) newSession(kind Kind, units []probe.Unit, prober probe.Prober, size int, progress ProgressFunc) *Session {
	id := uuid.New().String()
	logger := s.logger.WithComponent("scanner").WithSession(id)

	pool := workers.New(workers.Config{
		Size:      size,
		Kind:      string(kind),
		RateLimit: s.rateLimit,
	}, workers.WithLogger(logger), workers.WithMetrics(s.metrics))

	return &Session{
		id:       id,
		kind:     kind,
		units:    units,
		prober:   prober,
		pool:     pool,
		progress: progress,
		buffer:   s.buffer,
		limiter:  s.limiter,
		logger:   logger,
		metrics:  s.metrics,
	}
}

func (s *Scanner) hostProber() *probe.HostProber {
	return &probe.HostProber{
		Liveness:      s.liveness,
		Hostnames:     s.hostnames,
		MACs:          s.macs,
		EnrichTimeout: s.enrichTimeout,
	}
}
