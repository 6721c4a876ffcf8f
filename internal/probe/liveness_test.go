package probe

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/anstrom/netprobe/internal/enrich/mocks"
)

// fixedStrategy returns a canned result and counts calls.
type fixedStrategy struct {
	name   string
	result Result
	calls  int
}

func (s *fixedStrategy) Name() string { return s.name }

func (s *fixedStrategy) Check(context.Context, string, time.Duration) Result {
	s.calls++
	return s.result
}

func TestChain_SkipsUnavailable(t *testing.T) {
	icmp := &fixedStrategy{name: "icmp", result: Result{Verdict: VerdictUnavailable}}
	tcp := &fixedStrategy{name: "tcp", result: Result{Verdict: VerdictUp, Method: "tcp:443", Latency: 3 * time.Millisecond}}

	r := Chain{icmp, tcp}.Check(context.Background(), "10.0.0.1", time.Second)

	assert.Equal(t, VerdictUp, r.Verdict)
	assert.Equal(t, "tcp:443", r.Method)
	assert.Equal(t, 1, icmp.calls)
	assert.Equal(t, 1, tcp.calls)
}

func TestChain_FirstAvailableDecides(t *testing.T) {
	icmp := &fixedStrategy{name: "icmp", result: Result{Verdict: VerdictDown}}
	tcp := &fixedStrategy{name: "tcp", result: Result{Verdict: VerdictUp}}

	r := Chain{icmp, tcp}.Check(context.Background(), "10.0.0.1", time.Second)

	assert.Equal(t, VerdictDown, r.Verdict)
	assert.Equal(t, "icmp", r.Method, "method defaults to the deciding strategy")
	assert.Equal(t, 0, tcp.calls)
}

func TestChain_AllUnavailable(t *testing.T) {
	r := Chain{&fixedStrategy{name: "icmp"}}.Check(context.Background(), "10.0.0.1", time.Second)

	assert.Equal(t, VerdictDown, r.Verdict)
	assert.ErrorIs(t, r.Err, ErrNoStrategy)
	assert.Equal(t, "icmp", Chain{&fixedStrategy{name: "icmp"}}.Name())
}

func TestTCPStrategy_FirstSuccessWinsInOrder(t *testing.T) {
	d := &recordingDialer{result: map[int]error{80: refusedErr()}}
	s := NewTCPStrategy([]int{80, 443, 22}, d)

	r := s.Check(context.Background(), "10.0.0.1", time.Second)

	assert.Equal(t, VerdictUp, r.Verdict)
	assert.Equal(t, "tcp:443", r.Method)
	assert.Equal(t, []int{80, 443}, d.ports, "22 is never tried once 443 answers")
}

func TestTCPStrategy_NoPortAnswers(t *testing.T) {
	d := &recordingDialer{result: map[int]error{
		80:  refusedErr(),
		443: context.DeadlineExceeded,
		22:  refusedErr(),
	}}
	s := NewTCPStrategy([]int{80, 443, 22}, d)

	r := s.Check(context.Background(), "10.0.0.1", time.Second)

	assert.Equal(t, VerdictDown, r.Verdict)
	assert.Equal(t, []int{80, 443, 22}, d.ports)
}

func TestTCPStrategy_ResolutionFailure(t *testing.T) {
	d := &recordingDialer{result: map[int]error{80: &net.DNSError{Err: "no such host", IsNotFound: true}}}

	r := NewTCPStrategy([]int{80, 443}, d).Check(context.Background(), "nope.invalid", time.Second)

	assert.Equal(t, VerdictError, r.Verdict)
	assert.Equal(t, []int{80}, d.ports)
}

func TestTCPStrategy_RealListener(t *testing.T) {
	open, closed := listenLocal(t)

	r := NewTCPStrategy([]int{closed, open}, nil).Check(context.Background(), "127.0.0.1", time.Second)

	require.Equal(t, VerdictUp, r.Verdict)
	assert.Equal(t, "tcp:"+strconv.Itoa(open), r.Method)
}

func TestICMPStrategy_UnprivilegedIsUnavailable(t *testing.T) {
	if Privileged() {
		t.Skip("running with raw socket privilege")
	}

	r := (&ICMPStrategy{}).Check(context.Background(), "127.0.0.1", time.Second)
	assert.Equal(t, VerdictUnavailable, r.Verdict)
}

func TestICMPStrategy_StopsWithContext(t *testing.T) {
	s := &ICMPStrategy{Unprivileged: true}

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		start := time.Now()
		r := s.Check(ctx, "192.0.2.1", 5*time.Second)
		assert.Less(t, time.Since(start), 100*time.Millisecond)
		assert.Equal(t, VerdictDown, r.Verdict)
		assert.ErrorIs(t, r.Err, context.Canceled)
	})

	t.Run("deadline", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		start := time.Now()
		r := s.Check(ctx, "192.0.2.1", 5*time.Second)
		assert.Less(t, time.Since(start), time.Second)
		assert.NotEqual(t, VerdictUp, r.Verdict)
	})
}

func TestDefaultChain(t *testing.T) {
	chain := DefaultChain(&ICMPStrategy{Unprivileged: true}, []int{80, 443, 22}, nil)
	require.Len(t, chain, 2)
	assert.Equal(t, "icmp,tcp", chain.Name())
	assert.True(t, chain[0].(*ICMPStrategy).Unprivileged)

	chain = DefaultChain(nil, []int{80}, nil)
	assert.Equal(t, "tcp", chain.Name())
}

func TestTCPStrategy_SharesDeadline(t *testing.T) {
	d := &recordingDialer{result: map[int]error{}}
	block := dialerFunc(func(ctx context.Context, network, address string) (net.Conn, error) {
		if c, _ := d.DialContext(ctx, network, address); c != nil {
			_ = c.Close()
		}
		return blockUntilDeadline(ctx, network, address)
	})
	s := NewTCPStrategy([]int{80, 443, 22}, block)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	start := time.Now()
	r := s.Check(ctx, "192.0.2.1", time.Second)
	elapsed := time.Since(start)

	assert.Equal(t, VerdictDown, r.Verdict)
	assert.Less(t, elapsed, 300*time.Millisecond)
	assert.Equal(t, []int{80}, d.ports, "no port is tried after the deadline")
}

func TestHostProber_UnitTimeoutCoversChain(t *testing.T) {
	h := &HostProber{Liveness: NewTCPStrategy([]int{80, 443, 22}, dialerFunc(blockUntilDeadline))}

	start := time.Now()
	out := h.Probe(context.Background(), Unit{Kind: KindHost, Host: "192.0.2.1", Timeout: 60 * time.Millisecond})
	elapsed := time.Since(start)

	assert.Equal(t, StatusDown, out.Status)
	assert.Less(t, elapsed, 200*time.Millisecond)
}

func TestHostProber_RemainingBudgetGoesToNextPort(t *testing.T) {
	d := &recordingDialer{result: map[int]error{80: refusedErr()}}
	h := &HostProber{Liveness: NewTCPStrategy([]int{80, 443}, d)}

	out := h.Probe(context.Background(), Unit{Kind: KindHost, Host: "10.0.0.1", Timeout: time.Second})

	assert.Equal(t, StatusUp, out.Status)
	assert.Equal(t, "tcp:443", out.Method)
}

func TestHostProber_EnrichmentWithinUnitTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	names := mocks.NewMockHostnameResolver(ctrl)
	names.EXPECT().LookupHostname(gomock.Any(), "10.0.0.7").DoAndReturn(
		func(ctx context.Context, _ string) (string, bool) {
			<-ctx.Done()
			return "", false
		})

	h := &HostProber{
		Liveness:      &fixedStrategy{name: "tcp", result: Result{Verdict: VerdictUp, Method: "tcp:80"}},
		Hostnames:     names,
		EnrichTimeout: 5 * time.Second,
	}

	start := time.Now()
	out := h.Probe(context.Background(), Unit{Kind: KindHost, Host: "10.0.0.7", Timeout: 80 * time.Millisecond})
	elapsed := time.Since(start)

	assert.Equal(t, StatusUp, out.Status)
	assert.Empty(t, out.Hostname)
	assert.Less(t, elapsed, 300*time.Millisecond)
}

func TestHostProber_UpIsEnriched(t *testing.T) {
	ctrl := gomock.NewController(t)
	names := mocks.NewMockHostnameResolver(ctrl)
	macs := mocks.NewMockMACResolver(ctrl)

	names.EXPECT().LookupHostname(gomock.Any(), "10.0.0.7").Return("nas.lan", true)
	macs.EXPECT().LookupMAC(gomock.Any(), "10.0.0.7").Return("B8:27:EB:01:02:03", true)

	h := &HostProber{
		Liveness:      &fixedStrategy{name: "tcp", result: Result{Verdict: VerdictUp, Method: "tcp:80", Latency: 2 * time.Millisecond}},
		Hostnames:     names,
		MACs:          macs,
		EnrichTimeout: time.Second,
	}

	out := h.Probe(context.Background(), Unit{Kind: KindHost, Host: "10.0.0.7", Timeout: time.Second})

	assert.Equal(t, StatusUp, out.Status)
	assert.Equal(t, "tcp:80", out.Method)
	assert.Equal(t, "nas.lan", out.Hostname)
	assert.Equal(t, "B8:27:EB:01:02:03", out.MAC)
	assert.Equal(t, "Raspberry Pi", out.Vendor)
	latency, ok := out.Latency()
	assert.True(t, ok)
	assert.InDelta(t, 2.0, latency, 0.0001)
}

func TestHostProber_DownIsNotEnriched(t *testing.T) {
	ctrl := gomock.NewController(t)
	names := mocks.NewMockHostnameResolver(ctrl)
	names.EXPECT().LookupHostname(gomock.Any(), gomock.Any()).Times(0)

	h := &HostProber{
		Liveness:  &fixedStrategy{name: "tcp", result: Result{Verdict: VerdictDown}},
		Hostnames: names,
	}

	out := h.Probe(context.Background(), Unit{Kind: KindHost, Host: "10.0.0.8", Timeout: time.Second})

	assert.Equal(t, StatusDown, out.Status)
	assert.Empty(t, out.Error)
	assert.Nil(t, out.LatencyMS)
}

func TestHostProber_ErrorVerdict(t *testing.T) {
	h := &HostProber{
		Liveness: &fixedStrategy{name: "icmp", result: Result{Verdict: VerdictError, Err: errors.New("sendto: network is unreachable")}},
	}

	out := h.Probe(context.Background(), Unit{Kind: KindHost, Host: "10.0.0.9", Timeout: time.Second})

	assert.Equal(t, StatusError, out.Status)
	assert.Equal(t, "sendto: network is unreachable", out.Error)
}

func TestHostProber_FailedLookupsAreAbsence(t *testing.T) {
	ctrl := gomock.NewController(t)
	names := mocks.NewMockHostnameResolver(ctrl)
	macs := mocks.NewMockMACResolver(ctrl)
	names.EXPECT().LookupHostname(gomock.Any(), gomock.Any()).Return("", false)
	macs.EXPECT().LookupMAC(gomock.Any(), gomock.Any()).Return("", false)

	h := &HostProber{
		Liveness:  &fixedStrategy{name: "icmp", result: Result{Verdict: VerdictUp, Method: "icmp"}},
		Hostnames: names,
		MACs:      macs,
	}

	out := h.Probe(context.Background(), Unit{Kind: KindHost, Host: "10.0.0.10", Timeout: time.Second})

	assert.Equal(t, StatusUp, out.Status)
	assert.Empty(t, out.Hostname)
	assert.Empty(t, out.MAC)
	assert.Empty(t, out.Vendor)
}
