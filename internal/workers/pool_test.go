package workers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/netprobe/internal/metrics"
	"github.com/anstrom/netprobe/internal/probe"
)

// MockProber implements probe.Prober for testing
type MockProber struct {
	duration time.Duration
	panicOn  int

	executed int32
	inFlight int32
	peak     int32
}

func (m *MockProber) Probe(ctx context.Context, u probe.Unit) probe.Outcome {
	atomic.AddInt32(&m.executed, 1)
	cur := atomic.AddInt32(&m.inFlight, 1)
	defer atomic.AddInt32(&m.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&m.peak)
		if cur <= peak || atomic.CompareAndSwapInt32(&m.peak, peak, cur) {
			break
		}
	}

	if m.panicOn != 0 && u.Port == m.panicOn {
		panic("simulated fault")
	}
	if m.duration > 0 {
		time.Sleep(m.duration)
	}
	return probe.Outcome{Kind: u.Kind, Host: u.Host, Port: u.Port, Status: probe.StatusClosed}
}

func (m *MockProber) ExecutedCount() int32 {
	return atomic.LoadInt32(&m.executed)
}

func (m *MockProber) PeakConcurrency() int32 {
	return atomic.LoadInt32(&m.peak)
}

func makeUnits(n int, timeout time.Duration) []probe.Unit {
	units := make([]probe.Unit, n)
	for i := range units {
		units[i] = probe.Unit{Kind: probe.KindPort, Host: "127.0.0.1", Port: i + 1, Timeout: timeout}
	}
	return units
}

// collector records outcomes delivered to a CompletionFunc.
type collector struct {
	mu       sync.Mutex
	outcomes []probe.Outcome
}

func (c *collector) add(o probe.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, o)
}

func (c *collector) snapshot() []probe.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]probe.Outcome(nil), c.outcomes...)
}

func TestDefaultConfigs(t *testing.T) {
	assert.Equal(t, 100, DefaultPortConfig().Size)
	assert.Equal(t, 50, DefaultCommonPortConfig().Size)
	assert.Equal(t, 50, DefaultHostConfig().Size)
	assert.Equal(t, metrics.KindDiscovery, DefaultHostConfig().Kind)
}

func TestExecute_CompletesEveryUnit(t *testing.T) {
	pool := New(Config{Size: 8, Kind: metrics.KindPortScan})
	prober := &MockProber{duration: time.Millisecond}
	c := &collector{}

	err := pool.Execute(context.Background(), makeUnits(100, time.Second), prober, c.add)
	require.NoError(t, err)

	outcomes := c.snapshot()
	assert.Len(t, outcomes, 100)
	assert.Equal(t, int32(100), prober.ExecutedCount())

	seen := make(map[int]bool, len(outcomes))
	for _, o := range outcomes {
		assert.False(t, seen[o.Port], "port %d completed twice", o.Port)
		seen[o.Port] = true
	}
}

func TestExecute_BoundsConcurrency(t *testing.T) {
	pool := New(Config{Size: 4})
	prober := &MockProber{duration: 10 * time.Millisecond}

	require.NoError(t, pool.Execute(context.Background(), makeUnits(40, time.Second), prober, nil))

	assert.LessOrEqual(t, prober.PeakConcurrency(), int32(4))
	assert.Greater(t, prober.PeakConcurrency(), int32(1), "probes should overlap")
}

func TestExecute_FewerUnitsThanWorkers(t *testing.T) {
	pool := New(Config{Size: 100})
	prober := &MockProber{}
	c := &collector{}

	require.NoError(t, pool.Execute(context.Background(), makeUnits(3, time.Second), prober, c.add))
	assert.Len(t, c.snapshot(), 3)
}

func TestExecute_EmptyBatch(t *testing.T) {
	pool := New(DefaultPortConfig())
	assert.NoError(t, pool.Execute(context.Background(), nil, &MockProber{}, nil))
}

func TestExecute_PanicBecomesErrorOutcome(t *testing.T) {
	pool := New(Config{Size: 4})
	prober := &MockProber{panicOn: 7}
	c := &collector{}

	err := pool.Execute(context.Background(), makeUnits(20, time.Second), prober, c.add)
	require.NoError(t, err)

	outcomes := c.snapshot()
	require.Len(t, outcomes, 20)

	var faults []probe.Outcome
	for _, o := range outcomes {
		if o.Status == probe.StatusError {
			faults = append(faults, o)
		} else {
			assert.Equal(t, probe.StatusClosed, o.Status)
		}
	}
	require.Len(t, faults, 1)
	assert.Equal(t, 7, faults[0].Port)
	assert.Equal(t, "probe panicked: simulated fault", faults[0].Error)
}

func TestExecute_TimeBound(t *testing.T) {
	const (
		units   = 20
		size    = 5
		timeout = 50 * time.Millisecond
	)
	pool := New(Config{Size: size})
	prober := &MockProber{duration: timeout}

	start := time.Now()
	require.NoError(t, pool.Execute(context.Background(), makeUnits(units, timeout), prober, nil))
	elapsed := time.Since(start)

	bound := time.Duration((units+size-1)/size) * timeout
	assert.Less(t, elapsed, bound+150*time.Millisecond)
}

func TestExecute_CancellationStopsDispatch(t *testing.T) {
	pool := New(Config{Size: 2})
	prober := &MockProber{duration: 50 * time.Millisecond}
	c := &collector{}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	err := pool.Execute(ctx, makeUnits(50, time.Second), prober, c.add)
	require.ErrorIs(t, err, context.Canceled)

	executed := prober.ExecutedCount()
	assert.Less(t, executed, int32(50))
	assert.Equal(t, int(executed), len(c.snapshot()), "in-flight probes still complete")
	for _, o := range c.snapshot() {
		assert.Equal(t, probe.StatusClosed, o.Status, "in-flight probes are not interrupted")
	}
}

func TestExecute_InFlightProbesKeepRunningAfterCancel(t *testing.T) {
	pool := New(Config{Size: 1})
	sawCancel := int32(0)
	prober := probe.ProberFunc(func(ctx context.Context, u probe.Unit) probe.Outcome {
		time.Sleep(30 * time.Millisecond)
		if ctx.Err() != nil {
			atomic.StoreInt32(&sawCancel, 1)
		}
		return probe.Outcome{Kind: u.Kind, Port: u.Port, Status: probe.StatusOpen}
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	err := pool.Execute(ctx, makeUnits(3, time.Second), prober, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), atomic.LoadInt32(&sawCancel))
}

func TestExecute_AlreadyCancelled(t *testing.T) {
	pool := New(Config{Size: 4})
	prober := &MockProber{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pool.Execute(ctx, makeUnits(10, time.Second), prober, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), prober.ExecutedCount())
}

func TestExecute_InvalidArguments(t *testing.T) {
	testCases := []struct {
		name   string
		config Config
		prober probe.Prober
	}{
		{name: "nil prober", config: Config{Size: 1}},
		{name: "zero size", config: Config{Size: 0}, prober: &MockProber{}},
		{name: "negative size", config: Config{Size: -3}, prober: &MockProber{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := New(tc.config).Execute(context.Background(), makeUnits(2, time.Second), tc.prober, nil)
			assert.Error(t, err)
		})
	}
}

func TestRateLimiting(t *testing.T) {
	pool := New(Config{Size: 5, RateLimit: 50})
	prober := &MockProber{}

	start := time.Now()
	require.NoError(t, pool.Execute(context.Background(), makeUnits(5, time.Second), prober, nil))

	// each of the 5 units waits for a 20ms tick
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.Equal(t, int32(5), prober.ExecutedCount())
}

func TestExecute_RecordsMetrics(t *testing.T) {
	pm := metrics.NewPrometheusMetrics()
	pool := New(Config{Size: 2, Kind: metrics.KindPortScan}, WithMetrics(pm))

	require.NoError(t, pool.Execute(context.Background(), makeUnits(6, time.Second), &MockProber{}, nil))

	body := scrape(t, pm)
	assert.Contains(t, body, `netprobe_probe_total{kind="port_scan",status="closed"} 6`)
	assert.Contains(t, body, `netprobe_probe_workers_busy{kind="port_scan"} 0`)
}

func scrape(t *testing.T, pm *metrics.PrometheusMetrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	pm.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}
