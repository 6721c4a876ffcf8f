package probe

import (
	"context"
	stderrors "errors"
	"os"
	"syscall"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// ICMPStrategy sends a single ICMP echo request.
type ICMPStrategy struct {
	// Unprivileged switches pro-bing to datagram ICMP sockets, which Linux
	// allows for groups listed in net.ipv4.ping_group_range.
	Unprivileged bool
}

// Name implements Strategy.
func (s *ICMPStrategy) Name() string {
	return "icmp"
}

// Check implements Strategy. Missing privilege yields VerdictUnavailable so
// the chain falls back to TCP. The echo stops when ctx is done.
func (s *ICMPStrategy) Check(ctx context.Context, host string, timeout time.Duration) Result {
	if !s.Unprivileged && !Privileged() {
		return Result{Verdict: VerdictUnavailable, Method: s.Name()}
	}
	if err := ctx.Err(); err != nil {
		return Result{Verdict: VerdictDown, Method: s.Name(), Err: err}
	}

	pinger, err := probing.NewPinger(host)
	if err != nil {
		return Result{Verdict: VerdictError, Method: s.Name(), Err: err}
	}
	pinger.SetPrivileged(!s.Unprivileged)
	pinger.Count = 1
	pinger.Timeout = timeout

	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < pinger.Timeout {
			pinger.Timeout = remaining
		}
	}

	runErr := pinger.RunWithContext(ctx)
	stats := pinger.Statistics()
	if stats.PacketsRecv > 0 {
		return Result{Verdict: VerdictUp, Method: s.Name(), Latency: stats.AvgRtt}
	}

	switch {
	case runErr == nil:
		return Result{Verdict: VerdictDown, Method: s.Name()}
	case ctx.Err() != nil:
		return Result{Verdict: VerdictDown, Method: s.Name(), Err: ctx.Err()}
	case isPermissionError(runErr):
		return Result{Verdict: VerdictUnavailable, Method: s.Name(), Err: runErr}
	default:
		return Result{Verdict: VerdictError, Method: s.Name(), Err: runErr}
	}
}

func isPermissionError(err error) bool {
	return stderrors.Is(err, os.ErrPermission) ||
		stderrors.Is(err, syscall.EPERM) ||
		stderrors.Is(err, syscall.EACCES)
}
