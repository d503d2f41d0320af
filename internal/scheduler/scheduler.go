package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/robfig/cron/v3"
	"github.com/smallbiznis/equiprent/internal/clock"
	"github.com/smallbiznis/equiprent/internal/exchangerate"
	obsmetrics "github.com/smallbiznis/equiprent/internal/observability/metrics"
	rentaldomain "github.com/smallbiznis/equiprent/internal/rental/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobRefreshRates = "refresh_rates"
	JobScanDueLines = "scan_due_lines"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

// RatesRefresher forces a fetch of the daily exchange-rate bulletin.
type RatesRefresher interface {
	Refresh(ctx context.Context) (exchangerate.Rates, error)
}

// DueLister lists active rental lines that are overdue or end soon.
type DueLister interface {
	ListDueLines(ctx context.Context, within int) ([]rentaldomain.DueLine, error)
}

type Params struct {
	fx.In

	Log              *zap.Logger
	GenID            *snowflake.Node
	Clock            clock.Clock
	Config           Config
	Rates            RatesRefresher
	Rentals          DueLister
	Locker           *Locker                     `optional:"true"`
	Metrics          *obsmetrics.Metrics          `optional:"true"`
	SchedulerMetrics *obsmetrics.SchedulerMetrics `optional:"true"`
}

type Scheduler struct {
	log          *zap.Logger
	cfg          Config
	genID        *snowflake.Node
	clock        clock.Clock
	rates        RatesRefresher
	rentals      DueLister
	locker       *Locker
	metrics      *obsmetrics.Metrics
	schedMetrics *obsmetrics.SchedulerMetrics
	cron         *cron.Cron
}

type job struct {
	name string
	spec string
	run  func(ctx context.Context) error
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Rates == nil || p.Rentals == nil {
		return nil, ErrInvalidConfig
	}
	s := &Scheduler{
		log:          p.Log.Named("scheduler"),
		cfg:          p.Config.withDefaults(),
		genID:        p.GenID,
		clock:        p.Clock,
		rates:        p.Rates,
		rentals:      p.Rentals,
		locker:       p.Locker,
		metrics:      p.Metrics,
		schedMetrics: p.SchedulerMetrics,
		cron:         cron.New(cron.WithLocation(time.UTC)),
	}

	for _, j := range s.jobs() {
		j := j
		if _, err := s.cron.AddFunc(j.spec, func() {
			if err := s.runJob(context.Background(), j.name, j.run); err != nil {
				s.log.Warn("scheduled job failed", zap.String("job", j.name), zap.Error(err))
			}
		}); err != nil {
			return nil, fmt.Errorf("%w: %s spec %q: %w", ErrInvalidConfig, j.name, j.spec, err)
		}
	}
	return s, nil
}

func (s *Scheduler) jobs() []job {
	return []job{
		{name: JobRefreshRates, spec: s.cfg.RatesSpec, run: s.RefreshRatesJob},
		{name: JobScanDueLines, spec: s.cfg.DueSpec, run: s.ScanDueLinesJob},
	}
}

// Start begins firing jobs on their cron schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started",
		zap.String("rates_spec", s.cfg.RatesSpec),
		zap.String("due_spec", s.cfg.DueSpec),
	)
}

// Stop prevents new runs and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce runs every job immediately, one after another.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error
	for _, j := range s.jobs() {
		err = errors.Join(err, s.runJob(parent, j.name, j.run))
	}
	return err
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	lockKey := s.cfg.LockPrefix + name
	token, acquired, err := s.locker.TryLock(ctx, lockKey, s.cfg.LockTTL)
	if err != nil {
		s.schedMetrics.IncJobError(name, err)
		return fmt.Errorf("%s: lock: %w", name, err)
	}
	if !acquired {
		s.schedMetrics.IncJobSkipped(name)
		s.log.Debug("job skipped, lock held elsewhere", zap.String("job", name))
		return nil
	}
	defer func() {
		if err := s.locker.Release(context.Background(), lockKey, token); err != nil {
			s.log.Warn("release job lock", zap.String("job", name), zap.Error(err))
		}
	}()

	ctx, run := s.startJobRun(ctx, name)
	s.schedMetrics.IncJobRun(name)
	start := time.Now()

	err = fn(ctx)
	s.schedMetrics.ObserveJobDuration(name, time.Since(start))
	if err != nil && run.errorCount == 0 {
		run.IncError()
	}
	s.logJobFinish(ctx, run)
	if err == nil {
		return nil
	}

	s.schedMetrics.IncJobError(name, err)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.logger(ctx).Warn("job timed out",
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Error(err),
		)
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

// RefreshRatesJob pulls the bulletin so rentals created later find fresh
// rates in the cache.
func (s *Scheduler) RefreshRatesJob(ctx context.Context) error {
	rates, err := s.rates.Refresh(ctx)
	if err != nil {
		return err
	}
	jobRunFromContext(ctx).AddProcessed(1)
	s.logger(ctx).Info("exchange rates refreshed",
		zap.String("usd", rates.USD.StringFixed(4)),
		zap.String("eur", rates.EUR.StringFixed(4)),
	)
	return nil
}

// ScanDueLinesJob counts active lines by due state and publishes the
// counts as gauges.
func (s *Scheduler) ScanDueLinesJob(ctx context.Context) error {
	lines, err := s.rentals.ListDueLines(ctx, -1)
	if err != nil {
		return err
	}

	counts := map[rentaldomain.DueState]int{
		rentaldomain.DueOverdue:    0,
		rentaldomain.DueEndsToday:  0,
		rentaldomain.DueEndingSoon: 0,
	}
	for _, line := range lines {
		if _, ok := counts[line.Due.State]; ok {
			counts[line.Due.State]++
		}
	}
	s.metrics.SetLinesDue(obsmetrics.LineStateOverdue, counts[rentaldomain.DueOverdue])
	s.metrics.SetLinesDue(obsmetrics.LineStateEndsToday, counts[rentaldomain.DueEndsToday])
	s.metrics.SetLinesDue(obsmetrics.LineStateEndingSoon, counts[rentaldomain.DueEndingSoon])

	jobRunFromContext(ctx).AddProcessed(len(lines))
	if n := counts[rentaldomain.DueOverdue]; n > 0 {
		s.logger(ctx).Warn("rental lines overdue", zap.Int("count", n))
	}
	return nil
}
