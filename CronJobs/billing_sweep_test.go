package CronJobs

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"FalconFreight/Access"
	"FalconFreight/Billing"
	"FalconFreight/Models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	calls   atomic.Int32
	block   chan struct{}
	started chan struct{}
	once    sync.Once
}

func (r *countingRunner) Run(ctx context.Context, _ Access.Identity) (Billing.SweepResult, error) {
	r.calls.Add(1)
	if r.started != nil {
		r.once.Do(func() { close(r.started) })
	}
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return Billing.SweepResult{}, ctx.Err()
		}
	}
	return Billing.SweepResult{Scanned: 1}, nil
}

func TestStartRunsImmediately(t *testing.T) {
	runner := &countingRunner{}
	s := NewBillingSweeper(runner, time.Hour, true)
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestStartWithoutImmediateRun(t *testing.T) {
	runner := &countingRunner{}
	s := NewBillingSweeper(runner, time.Hour, false)
	require.NoError(t, s.Start(context.Background()))
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, runner.calls.Load())

	assert.Error(t, s.Start(context.Background()), "double start")
	require.NoError(t, s.Stop(context.Background()))
}

func TestStopCancelsRunningSweep(t *testing.T) {
	runner := &countingRunner{block: make(chan struct{}), started: make(chan struct{})}
	s := NewBillingSweeper(runner, time.Hour, true)
	require.NoError(t, s.Start(context.Background()))
	<-runner.started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestRunNowConflictsWithRunningSweep(t *testing.T) {
	runner := &countingRunner{block: make(chan struct{}), started: make(chan struct{})}
	s := NewBillingSweeper(runner, time.Hour, true)
	require.NoError(t, s.Start(context.Background()))
	<-runner.started

	_, err := s.RunNow(context.Background(), Access.System)
	assert.True(t, Models.IsConflict(err))

	close(runner.block)
	require.NoError(t, s.Stop(context.Background()))

	result, err := s.RunNow(context.Background(), Access.System)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Scanned)
}

func TestRunNowRequiresAdmin(t *testing.T) {
	s := NewBillingSweeper(&countingRunner{}, time.Hour, false)
	_, err := s.RunNow(context.Background(), Access.Identity{UserID: 3, Role: Models.RoleDriver})
	assert.True(t, Models.IsForbidden(err))
}

func TestLockTTLBounds(t *testing.T) {
	assert.Equal(t, 30*time.Minute, (&BillingSweeper{interval: 24 * time.Hour}).lockTTL())
	assert.Equal(t, time.Minute, (&BillingSweeper{interval: time.Minute}).lockTTL())
	assert.Equal(t, 10*time.Minute, (&BillingSweeper{interval: 20 * time.Minute}).lockTTL())
}

func TestLocalLocker(t *testing.T) {
	var l localLocker
	release, ok, err := l.TryLock(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	release()
	_, ok, _ = l.TryLock(context.Background(), "k", time.Minute)
	assert.True(t, ok)
}
