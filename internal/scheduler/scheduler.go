// Package scheduler runs recurring host discovery sweeps. Each schedule is a
// cron entry that submits a discovery job to the job manager and waits for it
// to finish, so a sweep that outlasts its interval skips the next tick instead
// of stacking up.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/anstrom/netprobe/internal/config"
	"github.com/anstrom/netprobe/internal/jobs"
	"github.com/anstrom/netprobe/internal/logging"
	"github.com/anstrom/netprobe/internal/scanning"
)

// JobRunner submits jobs and waits for them. *jobs.Manager implements it.
type JobRunner interface {
	Submit(origin string, start jobs.Starter) (jobs.Info, error)
	Wait(ctx context.Context, id string) (jobs.Info, error)
}

// Discoverer prepares discovery sessions. *scanning.Scanner implements it.
type Discoverer interface {
	StartHostDiscovery(ctx context.Context, network string, progress scanning.ProgressFunc) (*scanning.Session, error)
}

// Scheduler manages scheduled discovery sweeps.
type Scheduler struct {
	cron    *cron.Cron
	runner  JobRunner
	scanner Discoverer
	logger  *logging.Logger

	entries map[string]*entry
	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Entry describes one schedule and its last run.
type Entry struct {
	Name    string     `json:"name"`
	Cron    string     `json:"cron"`
	Network string     `json:"network,omitempty"`
	Runs    int        `json:"runs"`
	Running bool       `json:"running"`
	LastRun *time.Time `json:"last_run,omitempty"`
	LastJob string     `json:"last_job,omitempty"`
	// LastState is empty until a sweep has finished
	LastState jobs.State `json:"last_state,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	NextRun   *time.Time `json:"next_run,omitempty"`
}

type entry struct {
	Entry
	cronID cron.EntryID
}

// New creates a scheduler that submits discoveries built by scanner to runner.
func New(runner JobRunner, scanner Discoverer, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.WithComponent("scheduler")
	ctx, cancel := context.WithCancel(context.Background())

	adapter := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
		runner:  runner,
		scanner: scanner,
		logger:  logger,
		entries: make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// NewFromConfig creates a scheduler with every configured schedule added.
func NewFromConfig(schedules []config.ScheduleConfig, runner JobRunner, scanner Discoverer,
	logger *logging.Logger,
) (*Scheduler, error) {
	s := New(runner, scanner, logger)
	for _, sc := range schedules {
		if err := s.Add(sc); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add registers a schedule. Names must be unique.
func (s *Scheduler) Add(sc config.ScheduleConfig) error {
	if sc.Name == "" {
		return fmt.Errorf("schedule name is required")
	}
	if _, err := cron.ParseStandard(sc.Cron); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", sc.Cron, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[sc.Name]; exists {
		return fmt.Errorf("schedule %q already exists", sc.Name)
	}

	name := sc.Name
	id, err := s.cron.AddFunc(sc.Cron, func() { s.execute(name) })
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.entries[name] = &entry{
		Entry:  Entry{Name: name, Cron: sc.Cron, Network: sc.Network},
		cronID: id,
	}
	s.logger.Info("Schedule added", "schedule", name, "cron", sc.Cron, "network", sc.Network)
	return nil
}

// Remove unregisters a schedule. A sweep already running is not interrupted.
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.entries[name]
	if !exists {
		return fmt.Errorf("schedule %q not found", name)
	}
	s.cron.Remove(e.cronID)
	delete(s.entries, name)

	s.logger.Info("Schedule removed", "schedule", name)
	return nil
}

// Start begins firing schedules.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	s.cron.Start()
	s.running = true

	s.logger.Info("Scheduler started", "schedules", len(s.entries))
	return nil
}

// Stop stops firing schedules, abandons the waits of running sweeps and
// blocks until their callbacks return or ctx is done. The discovery jobs
// themselves belong to the job manager.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	stopped := s.cron.Stop()

	select {
	case <-stopped.Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Entries returns the registered schedules ordered by name.
func (s *Scheduler) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		view := e.Entry
		if next := s.cron.Entry(e.cronID).Next; !next.IsZero() {
			view.NextRun = &next
		}
		out = append(out, view)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RunNow runs a schedule once outside its cron timing and blocks until the
// sweep finishes.
func (s *Scheduler) RunNow(name string) (jobs.Info, error) {
	s.mu.RLock()
	_, exists := s.entries[name]
	s.mu.RUnlock()
	if !exists {
		return jobs.Info{}, fmt.Errorf("schedule %q not found", name)
	}
	return s.run(name)
}

func (s *Scheduler) execute(name string) {
	if _, err := s.run(name); err != nil {
		s.logger.Error("Scheduled discovery failed", "schedule", name, "error", err)
	}
}

// run submits the discovery of one schedule and waits for its result.
func (s *Scheduler) run(name string) (jobs.Info, error) {
	s.mu.Lock()
	e, exists := s.entries[name]
	if !exists {
		s.mu.Unlock()
		return jobs.Info{}, fmt.Errorf("schedule %q not found", name)
	}
	if e.Running {
		s.mu.Unlock()
		s.logger.Warn("Discovery still running, skipping", "schedule", name)
		return jobs.Info{}, fmt.Errorf("schedule %q is already running", name)
	}
	now := time.Now().UTC()
	e.Running = true
	e.LastRun = &now
	e.Runs++
	network := e.Network
	s.mu.Unlock()

	info, err := s.runner.Submit(name, func(fn scanning.ProgressFunc) (*scanning.Session, error) {
		return s.scanner.StartHostDiscovery(s.ctx, network, fn)
	})
	if err == nil {
		s.setLastJob(name, info.ID)
		s.logger.InfoDiscovery("Scheduled discovery started", info.Network, "schedule", name, "job_id", info.ID)
		info, err = s.runner.Wait(s.ctx, info.ID)
	}

	s.mu.Lock()
	if e, exists := s.entries[name]; exists {
		e.Running = false
		e.LastError = ""
		if err != nil {
			e.LastError = err.Error()
		} else {
			e.LastState = info.State
			if info.Error != "" {
				e.LastError = info.Error
			}
		}
	}
	s.mu.Unlock()

	if err != nil {
		return info, err
	}
	if info.Report != nil {
		s.logger.InfoDiscovery("Scheduled discovery finished", info.Network,
			"schedule", name,
			"state", info.State,
			"up", info.Report.Summary.Up)
	}
	return info, nil
}

func (s *Scheduler) setLastJob(name, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, exists := s.entries[name]; exists {
		e.LastJob = id
	}
}

// cronLogger routes cron's own messages to the structured logger.
type cronLogger struct {
	logger *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
