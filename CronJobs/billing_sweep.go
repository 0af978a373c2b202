package CronJobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"FalconFreight/Access"
	"FalconFreight/Billing"
	"FalconFreight/Models"

	"github.com/robfig/cron/v3"
)

const sweepLockKey = "falcon:billing-sweep"

// SweepRunner is one billing pass.
type SweepRunner interface {
	Run(ctx context.Context, who Access.Identity) (Billing.SweepResult, error)
}

// Locker keeps two sweeps from running at once, possibly across processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// BillingSweeper owns the periodic overdue-invoice sweep. It is started once
// by main and stopped on shutdown; nothing about it is global.
type BillingSweeper struct {
	cronScheduler  *cron.Cron
	sweeper        SweepRunner
	interval       time.Duration
	runImmediately bool
	locker         Locker
	logger         *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running sync.WaitGroup
}

type Option func(*BillingSweeper)

func WithLogger(l *slog.Logger) Option {
	return func(s *BillingSweeper) { s.logger = l }
}

// WithLocker replaces the in-process lock, e.g. with a RedisLocker when
// several instances share a database.
func WithLocker(l Locker) Option {
	return func(s *BillingSweeper) { s.locker = l }
}

func NewBillingSweeper(sweeper SweepRunner, interval time.Duration, runImmediately bool, opts ...Option) *BillingSweeper {
	s := &BillingSweeper{
		cronScheduler:  cron.New(),
		sweeper:        sweeper,
		interval:       interval,
		runImmediately: runImmediately,
		locker:         &localLocker{},
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start schedules the sweep every interval and, if configured, runs it once
// right away in the background. The context bounds every run.
func (s *BillingSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return fmt.Errorf("billing sweeper already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	if _, err := s.cronScheduler.AddFunc(everySpec(s.interval), s.scheduledRun); err != nil {
		s.cancel()
		s.cancel = nil
		return fmt.Errorf("error scheduling billing sweep: %w", err)
	}
	s.cronScheduler.Start()
	s.logger.Info("billing sweep scheduler started", "interval", s.interval.String())

	if s.runImmediately {
		s.running.Add(1)
		go func() {
			defer s.running.Done()
			s.logger.Info("running initial billing sweep")
			s.scheduledRun()
		}()
	}
	return nil
}

// Stop cancels in-flight runs and waits for them, or for ctx to expire.
func (s *BillingSweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	cronDone := s.cronScheduler.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("billing sweep scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow executes a sweep on demand for who. It fails with a ConflictError
// if another sweep holds the lock.
func (s *BillingSweeper) RunNow(ctx context.Context, who Access.Identity) (Billing.SweepResult, error) {
	if err := Access.Check(who, Access.RunBillingSweep); err != nil {
		return Billing.SweepResult{}, err
	}
	release, ok, err := s.locker.TryLock(ctx, sweepLockKey, s.lockTTL())
	if err != nil {
		return Billing.SweepResult{}, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !ok {
		return Billing.SweepResult{}, &Models.ConflictError{Entity: "billing sweep", Reason: "already running"}
	}
	defer release()

	s.logger.Info("running manual billing sweep", "by", who.UserID)
	return s.sweeper.Run(ctx, who)
}

func (s *BillingSweeper) scheduledRun() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	release, ok, err := s.locker.TryLock(ctx, sweepLockKey, s.lockTTL())
	if err != nil {
		s.logger.Error("billing sweep lock failed", "error", err)
		return
	}
	if !ok {
		s.logger.Info("billing sweep skipped, another run holds the lock")
		return
	}
	defer release()

	if _, err := s.sweeper.Run(ctx, Access.System); err != nil {
		s.logger.Error("error in billing sweep", "error", err)
	}
}

// lockTTL bounds how long a crashed holder can block other instances.
func (s *BillingSweeper) lockTTL() time.Duration {
	ttl := s.interval / 2
	if ttl > 30*time.Minute {
		ttl = 30 * time.Minute
	}
	if ttl < time.Minute {
		ttl = time.Minute
	}
	return ttl
}

func everySpec(interval time.Duration) string {
	return "@every " + interval.String()
}

type localLocker struct {
	mu sync.Mutex
}

func (l *localLocker) TryLock(context.Context, string, time.Duration) (func(), bool, error) {
	if !l.mu.TryLock() {
		return nil, false, nil
	}
	return l.mu.Unlock, true, nil
}
