// Package daemon runs netprobe as a long-lived service. It owns the job
// manager shared by the HTTP API and the discovery scheduler, and tears
// everything down in order when it receives SIGINT or SIGTERM.
package daemon

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/anstrom/netprobe/internal/api"
	"github.com/anstrom/netprobe/internal/config"
	"github.com/anstrom/netprobe/internal/jobs"
	"github.com/anstrom/netprobe/internal/logging"
	"github.com/anstrom/netprobe/internal/metrics"
	"github.com/anstrom/netprobe/internal/scanning"
	"github.com/anstrom/netprobe/internal/scheduler"
)

// File permission constants.
const (
	DefaultDirPermissions  = 0o750
	DefaultFilePermissions = 0o600
)

const defaultShutdownTimeout = 30 * time.Second

// Daemon represents the main daemon process.
type Daemon struct {
	config    *config.Config
	scanner   *scanning.Scanner
	jobs      *jobs.Manager
	scheduler *scheduler.Scheduler
	apiServer *api.Server
	metrics   *metrics.PrometheusMetrics
	listener  net.Listener
	pidFile   string
	logger    *logging.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	ready   chan struct{}
	done    chan struct{}
	started time.Time
	mu      sync.RWMutex
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithLogger sets the daemon logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Daemon) { d.logger = l }
}

// WithMetrics sets the metrics served by the API.
func WithMetrics(pm *metrics.PrometheusMetrics) Option {
	return func(d *Daemon) { d.metrics = pm }
}

// WithListener makes the API serve on ln instead of listening on the
// configured address.
func WithListener(ln net.Listener) Option {
	return func(d *Daemon) { d.listener = ln }
}

// New creates a new daemon instance around scanner.
func New(cfg *config.Config, scanner *scanning.Scanner, opts ...Option) *Daemon {
	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		config:  cfg,
		scanner: scanner,
		pidFile: cfg.Daemon.PIDFile,
		logger:  logging.Default(),
		ctx:     ctx,
		cancel:  cancel,
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.WithComponent("daemon")
	return d
}

// Start initializes the job manager, scheduler and API server and blocks
// until the daemon is stopped by Stop or a termination signal.
func (d *Daemon) Start() error {
	defer close(d.done)
	d.logger.Info("Starting netprobe daemon", "pid", os.Getpid())

	if err := d.config.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if err := d.createPIDFile(); err != nil {
		return fmt.Errorf("failed to create PID file: %w", err)
	}

	d.setupSignalHandlers()

	d.mu.Lock()
	d.started = time.Now()
	d.jobs = jobs.NewManager(d.config.API.MaxRetainedJobs, d.logger)
	d.mu.Unlock()

	if err := d.initScheduler(); err != nil {
		d.cleanup()
		return fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	if err := d.initAPIServer(); err != nil {
		d.cleanup()
		return fmt.Errorf("failed to initialize API server: %w", err)
	}

	d.logger.Info("Daemon started successfully")
	return d.run()
}

// Stop stops the daemon and waits for Start to return.
func (d *Daemon) Stop() error {
	d.logger.Info("Stopping daemon")
	d.cancel()

	timeout := d.shutdownTimeout() + 5*time.Second
	select {
	case <-d.done:
		d.logger.Info("Daemon stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("daemon did not stop within %s", timeout)
	}
}

// Ready is closed once the daemon has finished initialization.
func (d *Daemon) Ready() <-chan struct{} {
	return d.ready
}

// IsRunning checks if the daemon is running.
func (d *Daemon) IsRunning() bool {
	select {
	case <-d.ctx.Done():
		return false
	default:
		return true
	}
}

// GetContext returns the daemon's context.
func (d *Daemon) GetContext() context.Context {
	return d.ctx
}

// GetConfig returns the daemon configuration.
func (d *Daemon) GetConfig() *config.Config {
	return d.config
}

// Jobs returns the job manager, or nil before Start.
func (d *Daemon) Jobs() *jobs.Manager {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.jobs
}

// Scheduler returns the discovery scheduler, or nil before Start.
func (d *Daemon) Scheduler() *scheduler.Scheduler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.scheduler
}

func (d *Daemon) initScheduler() error {
	s, err := scheduler.NewFromConfig(d.config.Schedules, d.jobs, d.scanner, d.logger)
	if err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		return err
	}

	d.mu.Lock()
	d.scheduler = s
	d.mu.Unlock()
	return nil
}

func (d *Daemon) initAPIServer() error {
	if !d.config.API.Enabled {
		d.logger.Info("API server disabled, skipping initialization")
		return nil
	}

	opts := []api.Option{api.WithLogger(d.logger)}
	if d.metrics != nil {
		opts = append(opts, api.WithMetrics(d.metrics))
	}
	server, err := api.New(d.config, d.scanner, d.jobs, opts...)
	if err != nil {
		return fmt.Errorf("API server creation failed: %w", err)
	}

	d.apiServer = server
	d.logger.Info("API server initialized", "address", d.config.GetAPIAddress())
	return nil
}

// setupSignalHandlers cancels the daemon on SIGINT or SIGTERM and dumps
// status on SIGUSR1.
func (d *Daemon) setupSignalHandlers() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGUSR1)

	go func() {
		defer signal.Stop(sigChan)
		for {
			select {
			case <-d.ctx.Done():
				return
			case sig := <-sigChan:
				d.logger.Info("Received signal", "signal", sig.String())
				switch sig {
				case syscall.SIGTERM, syscall.SIGINT:
					d.logger.Info("Initiating graceful shutdown")
					d.cancel()
					return
				case syscall.SIGUSR1:
					d.dumpStatus()
				}
			}
		}
	}()
}

// run serves until the daemon context is cancelled or the API server fails.
func (d *Daemon) run() error {
	apiErr := make(chan error, 1)
	apiDone := make(chan struct{})
	if d.apiServer != nil {
		go func() {
			defer close(apiDone)
			var err error
			if d.listener != nil {
				err = d.apiServer.Serve(d.ctx, d.listener)
			} else {
				err = d.apiServer.Start(d.ctx)
			}
			if err != nil {
				apiErr <- err
			}
		}()
	} else {
		close(apiDone)
		if len(d.config.Schedules) == 0 {
			d.logger.Warn("API disabled and no schedules configured, daemon has nothing to do")
		}
	}

	var tick <-chan time.Time
	if d.config.Daemon.StatusInterval > 0 {
		ticker := time.NewTicker(d.config.Daemon.StatusInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	close(d.ready)

	var runErr error
loop:
	for {
		select {
		case <-d.ctx.Done():
			d.logger.Info("Shutdown signal received")
			break loop
		case err := <-apiErr:
			d.logger.Error("API server error", "error", err)
			runErr = err
			d.cancel()
			break loop
		case <-tick:
			d.performHealthCheck()
		}
	}

	<-apiDone
	d.cleanup()
	return runErr
}

// performHealthCheck logs job and session usage and warns about sessions
// that have held a slot for too long.
func (d *Daemon) performHealthCheck() {
	stats := d.jobs.Stats()
	d.logger.Debug("Daemon status",
		"jobs_running", stats.Running,
		"jobs_retained", stats.Retained,
		"jobs_submitted", stats.Submitted)

	if limiter := d.scanner.Limiter(); limiter != nil {
		if ls := limiter.Stats(); len(ls.Stale) > 0 {
			d.logger.Warn("Long-running scan sessions", "sessions", strings.Join(ls.Stale, ","))
		}
	}
}

// cleanup stops the scheduler and job manager and removes the PID file.
func (d *Daemon) cleanup() {
	d.logger.Info("Performing cleanup")
	d.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), d.shutdownTimeout())
	defer cancel()

	if s := d.Scheduler(); s != nil {
		if err := s.Stop(ctx); err != nil {
			d.logger.Error("Error stopping scheduler", "error", err)
		}
	}

	if m := d.Jobs(); m != nil {
		if err := m.Shutdown(ctx); err != nil {
			d.logger.Error("Jobs did not finish before shutdown timeout", "error", err)
		}
	}

	if limiter := d.scanner.Limiter(); limiter != nil {
		_ = limiter.Close()
	}

	d.removePIDFile()
	d.logger.Info("Cleanup completed")
}

func (d *Daemon) shutdownTimeout() time.Duration {
	if d.config.Daemon.ShutdownTimeout > 0 {
		return d.config.Daemon.ShutdownTimeout
	}
	return defaultShutdownTimeout
}

// createPIDFile creates the PID file.
func (d *Daemon) createPIDFile() error {
	if d.pidFile == "" {
		return nil
	}

	dir := filepath.Dir(d.pidFile)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		return fmt.Errorf("failed to create PID file directory: %w", err)
	}

	if err := d.checkExistingPID(); err != nil {
		return err
	}

	pid := os.Getpid()
	if err := os.WriteFile(d.pidFile, []byte(strconv.Itoa(pid)), DefaultFilePermissions); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	d.logger.Info("Created PID file", "path", d.pidFile, "pid", pid)
	return nil
}

func (d *Daemon) removePIDFile() {
	if d.pidFile == "" {
		return
	}
	if err := os.Remove(d.pidFile); err != nil && !os.IsNotExist(err) {
		d.logger.Error("Error removing PID file", "path", d.pidFile, "error", err)
		return
	}
	d.logger.Debug("Removed PID file", "path", d.pidFile)
}

// checkExistingPID fails if the PID file names a live process and removes
// it otherwise.
func (d *Daemon) checkExistingPID() error {
	data, err := os.ReadFile(d.pidFile)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read existing PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		_ = os.Remove(d.pidFile)
		return nil
	}

	if isProcessRunning(pid) {
		return fmt.Errorf("daemon already running with PID %d", pid)
	}

	d.logger.Warn("Removing stale PID file", "path", d.pidFile, "pid", pid)
	_ = os.Remove(d.pidFile)
	return nil
}

func isProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// dumpStatus logs the current daemon status.
func (d *Daemon) dumpStatus() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	d.mu.RLock()
	started := d.started
	d.mu.RUnlock()

	fields := []any{
		"pid", os.Getpid(),
		"uptime", time.Since(started).Round(time.Second).String(),
		"goroutines", runtime.NumGoroutine(),
		"alloc_kb", m.Alloc / 1024,
		"sys_kb", m.Sys / 1024,
		"num_gc", m.NumGC,
		"api_enabled", d.apiServer != nil,
	}

	if j := d.Jobs(); j != nil {
		stats := j.Stats()
		fields = append(fields,
			"jobs_running", stats.Running,
			"jobs_completed", stats.Completed,
			"jobs_canceled", stats.Canceled,
			"jobs_failed", stats.Failed)
	}
	if limiter := d.scanner.Limiter(); limiter != nil {
		ls := limiter.Stats()
		fields = append(fields, "sessions_active", ls.Active, "sessions_capacity", ls.Capacity)
	}
	if s := d.Scheduler(); s != nil {
		for _, e := range s.Entries() {
			var next string
			if e.NextRun != nil {
				next = e.NextRun.Format(time.RFC3339)
			}
			d.logger.Info("Schedule status",
				"schedule", e.Name,
				"runs", e.Runs,
				"running", e.Running,
				"last_state", e.LastState,
				"next_run", next)
		}
	}

	d.logger.Info("Daemon status", fields...)
}
