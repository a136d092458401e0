// Package scheduler triggers the monthly billing run on a cron schedule and
// exposes its health over HTTP.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/rgehrsitz/rentgo/internal/billing"
	apperrors "github.com/rgehrsitz/rentgo/internal/domain/errors"
	"github.com/rgehrsitz/rentgo/internal/lock"
	"github.com/rgehrsitz/rentgo/pkg/dateutil"
)

// Runner bills the current month.
type Runner interface {
	RunMonthlyBilling(ctx context.Context) (*billing.RunResult, error)
}

// Status describes the most recent scheduled run.
type Status struct {
	Schedule  string    `json:"schedule"`
	LastStart time.Time `json:"last_start,omitempty"`
	LastMonth string    `json:"last_month,omitempty"`
	LastRunID string    `json:"last_run_id,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	Next      time.Time `json:"next,omitempty"`
}

// Healthy reports whether the last run, if any, succeeded.
func (s Status) Healthy() bool {
	return s.LastError == ""
}

// Scheduler runs billing on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	entry    cron.EntryID
	schedule string
	runner   Runner
	timeout  time.Duration
	log      logrus.FieldLogger

	mu     sync.Mutex
	status Status
}

// New parses schedule as a standard five-field cron expression evaluated in loc.
// timeout bounds each run; zero means no bound.
func New(runner Runner, schedule string, loc *time.Location, timeout time.Duration, log logrus.FieldLogger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		schedule: schedule,
		runner:   runner,
		timeout:  timeout,
		log:      log.WithField("component", "scheduler"),
		status:   Status{Schedule: schedule},
	}
	id, err := s.cron.AddFunc(schedule, func() {
		// RunNow logs and records its own failures.
		_ = s.RunNow(context.Background())
	})
	if err != nil {
		return nil, apperrors.NewValidationErrorf("invalid billing schedule %q: %v", schedule, err)
	}
	s.entry = id
	return s, nil
}

// Start begins firing scheduled runs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.WithField("next", s.Next()).Infof("billing scheduled: %s", s.schedule)
}

// Stop halts the schedule. The returned context is done once any running
// job has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Next returns the next scheduled fire time, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// RunNow bills the current month immediately and records the outcome. A run
// refused because another holder owns the billing lock is not a failure.
func (s *Scheduler) RunNow(ctx context.Context) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	s.log.Info("starting monthly billing run")
	res, err := s.runner.RunMonthlyBilling(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.LastStart = started
	s.status.LastError = ""

	switch {
	case lock.IsHeld(err):
		s.log.WithError(err).Warn("billing run skipped: lock held elsewhere")
		return nil
	case err != nil:
		s.status.LastError = err.Error()
		s.log.WithError(err).Error("monthly billing run failed")
		return fmt.Errorf("scheduled billing run: %w", err)
	}

	s.status.LastMonth = res.Month.Format(dateutil.MonthLayout)
	s.status.LastRunID = res.RunID
	fields := logrus.Fields{
		"month":    s.status.LastMonth,
		"charges":  len(res.Charges),
		"payments": len(res.Payments),
		"elapsed":  time.Since(started).String(),
	}
	if res.AlreadyBilled {
		s.log.WithFields(fields).Info("month already billed")
	} else {
		s.log.WithFields(fields).WithField("run_id", res.RunID).Info("monthly billing run completed")
	}
	return nil
}

// Status returns a copy of the current run status.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	st := s.status
	s.mu.Unlock()
	st.Next = s.Next()
	return st
}
