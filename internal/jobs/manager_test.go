package jobs

import (
	"bytes"
	"context"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/netprobe/internal/errors"
	"github.com/anstrom/netprobe/internal/logging"
	"github.com/anstrom/netprobe/internal/scanning"
)

// slowDialer refuses every connection after a delay.
type slowDialer struct {
	delay time.Duration
}

func (d slowDialer) DialContext(context.Context, string, string) (net.Conn, error) {
	time.Sleep(d.delay)
	return nil, &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}
}

func quietLogger() *logging.Logger {
	return logging.NewWithWriter(logging.Config{Level: logging.LevelError}, &bytes.Buffer{})
}

func newScanner(delay time.Duration, workers int) *scanning.Scanner {
	return scanning.New(
		scanning.WithDialer(slowDialer{delay: delay}),
		scanning.WithWorkers(workers, workers, workers),
		scanning.WithLogger(quietLogger()))
}

func portScan(s *scanning.Scanner, lo, hi int) Starter {
	return func(fn scanning.ProgressFunc) (*scanning.Session, error) {
		return s.StartPortScan("127.0.0.1", lo, hi, fn)
	}
}

func TestSubmit_RunsToCompletion(t *testing.T) {
	m := NewManager(10, quietLogger())
	s := newScanner(0, 4)

	info, err := m.Submit("api", portScan(s, 1, 10))
	require.NoError(t, err)
	assert.Equal(t, StateRunning, info.State)
	assert.Equal(t, scanning.KindPortScan, info.Kind)
	assert.Equal(t, "127.0.0.1", info.Target)
	assert.Equal(t, 10, info.Total)
	assert.Equal(t, "api", info.Origin)

	done, err := m.Wait(context.Background(), info.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, done.State)
	require.NotNil(t, done.Report)
	assert.Len(t, done.Report.Outcomes, 10)
	assert.Equal(t, 10, done.Completed)
	assert.NotNil(t, done.FinishedAt)

	got, err := m.Get(info.ID)
	require.NoError(t, err)
	assert.Equal(t, info.ID, got.ID)

	list := m.List()
	require.Len(t, list, 1)
	assert.Nil(t, list[0].Report, "listings omit reports")
}

func TestSubmit_StartErrorIsReturned(t *testing.T) {
	m := NewManager(10, quietLogger())

	_, err := m.Submit("api", portScan(newScanner(0, 1), 100, 10))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeTargetInvalid))
	assert.Empty(t, m.List())
}

func TestCancel_ProducesPartialReport(t *testing.T) {
	m := NewManager(10, quietLogger())
	s := newScanner(20*time.Millisecond, 1)

	info, err := m.Submit("api", portScan(s, 1, 200))
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, m.Cancel(info.ID))

	done, err := m.Wait(context.Background(), info.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCanceled, done.State)
	require.NotNil(t, done.Report)
	assert.True(t, done.Report.Canceled)
	assert.Less(t, len(done.Report.Outcomes), 200)
}

func TestSubscribe_StreamsUntilFinished(t *testing.T) {
	m := NewManager(10, quietLogger())
	s := newScanner(5*time.Millisecond, 1)

	info, err := m.Submit("api", portScan(s, 1, 10))
	require.NoError(t, err)

	ch, release, err := m.Subscribe(info.ID)
	require.NoError(t, err)
	defer release()

	last := 0
	for snap := range ch {
		assert.Greater(t, snap.Completed, last)
		assert.Equal(t, 10, snap.Total)
		last = snap.Completed
	}

	done, err := m.Get(info.ID)
	require.NoError(t, err)
	assert.True(t, done.State.Finished())
	assert.Equal(t, 10, done.Completed)
}

func TestSubscribe_FinishedJobClosesImmediately(t *testing.T) {
	m := NewManager(10, quietLogger())

	info, err := m.Submit("api", portScan(newScanner(0, 2), 1, 2))
	require.NoError(t, err)
	_, err = m.Wait(context.Background(), info.ID)
	require.NoError(t, err)

	ch, release, err := m.Subscribe(info.ID)
	require.NoError(t, err)
	defer release()

	_, open := <-ch
	assert.False(t, open)
}

func TestRetention_EvictsOldestFinished(t *testing.T) {
	m := NewManager(2, quietLogger())
	s := newScanner(0, 2)

	var ids []string
	for i := 0; i < 3; i++ {
		info, err := m.Submit("api", portScan(s, 1, 2))
		require.NoError(t, err)
		_, err = m.Wait(context.Background(), info.ID)
		require.NoError(t, err)
		ids = append(ids, info.ID)
	}

	assert.Eventually(t, func() bool {
		_, err := m.Get(ids[0])
		return errors.IsCode(err, errors.CodeNotFound)
	}, time.Second, 5*time.Millisecond)

	for _, id := range ids[1:] {
		_, err := m.Get(id)
		assert.NoError(t, err)
	}
	assert.Eventually(t, func() bool {
		st := m.Stats()
		return st.Completed == 3 && st.Retained == 2 && st.Running == 0
	}, time.Second, 5*time.Millisecond)
}

func TestUnknownJob(t *testing.T) {
	m := NewManager(10, quietLogger())

	_, err := m.Get("missing")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
	assert.True(t, errors.IsCode(m.Cancel("missing"), errors.CodeNotFound))
	_, _, err = m.Subscribe("missing")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
	_, err = m.Wait(context.Background(), "missing")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestShutdown_CancelsRunningAndRejectsNew(t *testing.T) {
	m := NewManager(10, quietLogger())
	s := newScanner(20*time.Millisecond, 1)

	info, err := m.Submit("api", portScan(s, 1, 500))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	done, err := m.Get(info.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCanceled, done.State)

	_, err = m.Submit("api", portScan(s, 1, 2))
	assert.True(t, errors.IsCode(err, errors.CodeServiceUnavailable))
}

func TestStateFinished(t *testing.T) {
	assert.False(t, StateRunning.Finished())
	assert.True(t, StateCompleted.Finished())
	assert.True(t, StateCanceled.Finished())
	assert.True(t, StateFailed.Finished())
}
