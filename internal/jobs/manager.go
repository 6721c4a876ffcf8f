// Package jobs runs scan sessions in the background for the HTTP service and
// the scheduler. Each job wraps one scanning.Session; its progress can be
// followed by subscribers and its report is kept in memory until enough newer
// jobs have finished to evict it.
package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/anstrom/netprobe/internal/errors"
	"github.com/anstrom/netprobe/internal/logging"
	"github.com/anstrom/netprobe/internal/scanning"
)

// DefaultMaxRetained is the number of finished jobs kept when none is configured.
const DefaultMaxRetained = 100

// subscriberBuffer is the number of snapshots queued for one subscriber.
const subscriberBuffer = 16

// State is the lifecycle state of a job.
type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCanceled  State = "canceled"
	StateFailed    State = "failed"
)

// Finished reports whether the job has stopped.
func (s State) Finished() bool {
	return s != StateRunning
}

// Info is a point-in-time view of a job.
type Info struct {
	ID      string        `json:"id"`
	Kind    scanning.Kind `json:"kind"`
	Target  string        `json:"target,omitempty"`
	Network string        `json:"network,omitempty"`
	// Origin is "api" or the name of the schedule that submitted the job
	Origin string `json:"origin"`
	State  State  `json:"state"`

	Completed int `json:"completed"`
	Total     int `json:"total"`

	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	Error  string           `json:"error,omitempty"`
	Report *scanning.Report `json:"report,omitempty"`
}

// Stats holds manager counters.
type Stats struct {
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Canceled  int64 `json:"canceled"`
	Failed    int64 `json:"failed"`
	Running   int   `json:"running"`
	Retained  int   `json:"retained"`
}

// Starter prepares a session whose progress is reported to fn.
type Starter func(fn scanning.ProgressFunc) (*scanning.Session, error)

// job is the mutable state behind an Info.
type job struct {
	mu     sync.Mutex
	info   Info
	cancel context.CancelFunc
	subs   map[chan scanning.Snapshot]struct{}
	done   chan struct{}
}

func (j *job) view() Info {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.info
}

// publish records a snapshot and fans it out without blocking the scan.
func (j *job) publish(s scanning.Snapshot) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.info.Completed = s.Completed
	for ch := range j.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

func (j *job) finish(report *scanning.Report, err error) State {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := time.Now().UTC()
	j.info.FinishedAt = &now
	switch {
	case err != nil:
		j.info.State = StateFailed
		j.info.Error = err.Error()
	case report.Canceled:
		j.info.State = StateCanceled
	default:
		j.info.State = StateCompleted
	}
	if report != nil {
		j.info.Report = report
		j.info.Completed = report.Summary.Completed
	}

	for ch := range j.subs {
		close(ch)
	}
	j.subs = nil
	close(j.done)
	return j.info.State
}

// Manager runs and tracks jobs. It is safe for concurrent use.
type Manager struct {
	ctx  context.Context
	stop context.CancelFunc

	mu          sync.RWMutex
	jobs        map[string]*job
	finished    []string
	maxRetained int
	closed      bool
	stats       Stats

	wg     sync.WaitGroup
	logger *logging.Logger
}

// NewManager creates a manager keeping at most maxRetained finished jobs.
func NewManager(maxRetained int, logger *logging.Logger) *Manager {
	if maxRetained <= 0 {
		maxRetained = DefaultMaxRetained
	}
	if logger == nil {
		logger = logging.Default()
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Manager{
		ctx:         ctx,
		stop:        stop,
		jobs:        make(map[string]*job),
		maxRetained: maxRetained,
		logger:      logger.WithComponent("jobs"),
	}
}

// Submit prepares a session with start and runs it in the background. The
// returned Info describes the job as accepted.
func (m *Manager) Submit(origin string, start Starter) (Info, error) {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return Info{}, errors.NewScanError(errors.CodeServiceUnavailable, "Job manager is shutting down")
	}

	j := &job{
		subs: make(map[chan scanning.Snapshot]struct{}),
		done: make(chan struct{}),
	}
	sess, err := start(j.publish)
	if err != nil {
		return Info{}, err
	}

	ctx, cancel := context.WithCancel(m.ctx)
	j.cancel = cancel
	j.info = Info{
		ID:        sess.ID(),
		Kind:      sess.Kind(),
		Target:    sess.Target(),
		Network:   sess.Network(),
		Origin:    origin,
		State:     StateRunning,
		Total:     sess.Total(),
		CreatedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		return Info{}, errors.NewScanError(errors.CodeServiceUnavailable, "Job manager is shutting down")
	}
	m.jobs[j.info.ID] = j
	m.stats.Submitted++
	m.stats.Running++
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Info("Job submitted",
		"job_id", j.info.ID,
		"kind", j.info.Kind,
		"origin", origin,
		"units", j.info.Total)

	go m.run(ctx, j, sess)
	return j.view(), nil
}

func (m *Manager) run(ctx context.Context, j *job, sess *scanning.Session) {
	defer m.wg.Done()
	defer j.cancel()

	report, err := sess.Run(ctx)
	state := j.finish(report, err)

	if err != nil {
		m.logger.Error("Job failed", "job_id", sess.ID(), "error", err)
	} else {
		m.logger.Info("Job finished", "job_id", sess.ID(), "state", state)
	}
	m.retire(sess.ID(), state)
}

// retire books a finished job and evicts the oldest finished jobs beyond the
// retention limit. Running jobs are never evicted.
func (m *Manager) retire(id string, state State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.Running--
	switch state {
	case StateCompleted:
		m.stats.Completed++
	case StateCanceled:
		m.stats.Canceled++
	case StateFailed:
		m.stats.Failed++
	}

	m.finished = append(m.finished, id)
	for len(m.finished) > m.maxRetained {
		delete(m.jobs, m.finished[0])
		m.finished = m.finished[1:]
	}
}

func (m *Manager) lookup(id string) (*job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, errors.ErrJobNotFound(id)
	}
	return j, nil
}

// Get returns the current view of a job.
func (m *Manager) Get(id string) (Info, error) {
	j, err := m.lookup(id)
	if err != nil {
		return Info{}, err
	}
	return j.view(), nil
}

// List returns every retained job, oldest first. Reports are omitted.
func (m *Manager) List() []Info {
	m.mu.RLock()
	out := make([]Info, 0, len(m.jobs))
	for _, j := range m.jobs {
		info := j.view()
		info.Report = nil
		out = append(out, info)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID < out[b].ID
		}
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	return out
}

// Cancel stops dispatch of the job's remaining units. Cancelling a finished
// job is a no-op.
func (m *Manager) Cancel(id string) error {
	j, err := m.lookup(id)
	if err != nil {
		return err
	}
	j.cancel()
	m.logger.Info("Job cancel requested", "job_id", id)
	return nil
}

// Subscribe returns a channel of progress snapshots for a job. The channel is
// closed when the job finishes; it is closed at once for a finished job.
// Snapshots are dropped for a subscriber that falls behind. The returned
// function releases the subscription.
func (m *Manager) Subscribe(id string) (<-chan scanning.Snapshot, func(), error) {
	j, err := m.lookup(id)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan scanning.Snapshot, subscriberBuffer)

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.subs == nil {
		close(ch)
		return ch, func() {}, nil
	}
	j.subs[ch] = struct{}{}

	release := func() {
		j.mu.Lock()
		defer j.mu.Unlock()
		delete(j.subs, ch)
	}
	return ch, release, nil
}

// Wait blocks until the job finishes or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (Info, error) {
	j, err := m.lookup(id)
	if err != nil {
		return Info{}, err
	}
	select {
	case <-j.done:
		return j.view(), nil
	case <-ctx.Done():
		return j.view(), ctx.Err()
	}
}

// Accepting reports whether new jobs are accepted.
func (m *Manager) Accepting() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.closed
}

// Stats returns the manager counters.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.stats
	s.Retained = len(m.jobs)
	return s
}

// Shutdown rejects new jobs, cancels running ones and waits for them to
// return their partial reports.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.stop()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("Job manager stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
