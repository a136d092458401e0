// Package billing is the billing period engine: it moves households onto new
// rent terms, generates each month's prorated charges, turns them into
// expected payments and builds household ledgers.
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/rgehrsitz/rentgo/internal/domain"
	apperrors "github.com/rgehrsitz/rentgo/internal/domain/errors"
	"github.com/rgehrsitz/rentgo/internal/lock"
	"github.com/rgehrsitz/rentgo/internal/store"
	"github.com/rgehrsitz/rentgo/pkg/dateutil"
)

// Engine runs billing against a store backend. Every mutating call holds the
// billing lock and commits one unit of work.
type Engine struct {
	backend store.Backend
	locker  lock.Locker
	clock   func() time.Time
	metrics *Metrics
	Logger  Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocker replaces the default in-process lock.
func WithLocker(l lock.Locker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithClock sets the source of "today".
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an engine over backend.
func NewEngine(backend store.Backend, opts ...Option) *Engine {
	e := &Engine{
		backend: backend,
		locker:  lock.NewLocal(),
		clock:   time.Now,
		Logger:  NopLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetLogger sets the engine's logger. nil restores the no-op logger.
func (e *Engine) SetLogger(l Logger) {
	if l == nil {
		l = NopLogger{}
	}
	e.Logger = l
}

// Today returns the engine's current civil date.
func (e *Engine) Today() time.Time {
	return dateutil.Normalize(e.clock())
}

// RunOptions tune a monthly run.
type RunOptions struct {
	// Force reruns a month that already has a completed run. Idempotency
	// keys still keep existing charges and payments from being duplicated.
	Force bool
	// DryRun computes everything but commits nothing.
	DryRun bool
}

// RunResult describes one monthly run.
type RunResult struct {
	RunID             string
	Month             time.Time
	AlreadyBilled     bool
	DryRun            bool
	Transitions       *TransitionResult
	Charges           []domain.Charge
	Payments          []domain.Payment
	Allocations       []domain.PaymentAllocation
	SkippedHouseholds []string
	Duplicates        int
}

// RunMonthlyBilling bills the current month.
func (e *Engine) RunMonthlyBilling(ctx context.Context) (*RunResult, error) {
	return e.RunMonthlyBillingFor(ctx, e.Today(), RunOptions{})
}

// RunMonthlyBillingFor bills the month containing month: pending term
// changes are applied first, then charges are generated and allocated, and
// everything is committed together. A month with a completed run is not
// billed again unless opts.Force is set.
func (e *Engine) RunMonthlyBillingFor(ctx context.Context, month time.Time, opts RunOptions) (*RunResult, error) {
	month = dateutil.FirstDayOfMonth(month)
	started := e.clock()

	var result *RunResult
	err := e.withLock(ctx, func() error {
		var err error
		result, err = e.run(ctx, month, started, opts)
		return err
	})
	e.metrics.observeRun(result, err, time.Since(started))
	if err != nil {
		e.Logger.Errorf("billing run for %s failed: %v", month.Format(dateutil.MonthLayout), err)
		return nil, err
	}
	return result, nil
}

// RunMonthlyBillingRange bills every month from from through to, oldest
// first, stopping at the first failure.
func (e *Engine) RunMonthlyBillingRange(ctx context.Context, from, to time.Time, opts RunOptions) ([]*RunResult, error) {
	months := dateutil.FirstDaysOfMonths(from, to)
	if len(months) == 0 {
		return nil, apperrors.NewValidationErrorf("range end %s is before start %s",
			to.Format(dateutil.MonthLayout), from.Format(dateutil.MonthLayout))
	}
	results := make([]*RunResult, 0, len(months))
	for _, m := range months {
		res, err := e.RunMonthlyBillingFor(ctx, m, opts)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (e *Engine) run(ctx context.Context, month, started time.Time, opts RunOptions) (*RunResult, error) {
	label := month.Format(dateutil.MonthLayout)

	sess, err := store.Open(ctx, e.backend)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to open billing session", err)
	}

	prior, billed := sess.BillingRuns.Find(func(r *domain.BillingRun) bool {
		return r.CompletedAt != nil && dateutil.SameMonth(r.Month, month)
	})
	if billed && !opts.Force {
		e.Logger.Infof("%s was already billed by run %s", label, prior.ID)
		return &RunResult{RunID: prior.ID, Month: month, AlreadyBilled: true}, nil
	}

	transitions, err := ApplyTransitions(sess, e.Today(), e.Logger)
	if err != nil {
		return nil, err
	}
	gen, err := GenerateCharges(sess, month, e.Logger)
	if err != nil {
		return nil, err
	}
	alloc, err := AllocatePayments(sess, gen, e.Logger)
	if err != nil {
		return nil, err
	}

	completed := e.clock().UTC()
	runID, err := sess.BillingRuns.Create(domain.BillingRun{
		Month:           month,
		StartedAt:       started.UTC(),
		CompletedAt:     &completed,
		ChargesCreated:  len(gen.Charges),
		PaymentsCreated: len(alloc.Payments),
	})
	if err != nil {
		return nil, err
	}

	result := &RunResult{
		RunID:             runID,
		Month:             month,
		DryRun:            opts.DryRun,
		Transitions:       transitions,
		Charges:           gen.Charges,
		Payments:          alloc.Payments,
		Allocations:       alloc.Allocations,
		SkippedHouseholds: gen.Skipped,
		Duplicates:        gen.Duplicates + alloc.Duplicates,
	}
	if opts.DryRun {
		e.Logger.Infof("dry run for %s: %d charges, %d payments not committed", label, len(gen.Charges), len(alloc.Payments))
		return result, nil
	}

	if err := sess.Commit(ctx); err != nil {
		return nil, fmt.Errorf("billing run for %s: %w", label, err)
	}
	e.Logger.Infof("billed %s: %d charges, %d payments, %d term changes",
		label, len(gen.Charges), len(alloc.Payments), len(transitions.Households)+len(transitions.Contracts))
	return result, nil
}

// withLock runs fn while holding the billing lock.
func (e *Engine) withLock(ctx context.Context, fn func() error) error {
	release, err := e.locker.Acquire(ctx, lock.BillingLock)
	if err != nil {
		return err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			e.Logger.Warnf("failed to release billing lock: %v", err)
		}
	}()
	return fn()
}

// BuildLedger builds a ledger from a fresh snapshot. It takes no lock.
func (e *Engine) BuildLedger(ctx context.Context, in LedgerInput) (*domain.Ledger, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	sess, err := store.Open(ctx, e.backend)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to open billing session", err)
	}
	return BuildLedger(sess, in)
}

// Import stages every record of ds and commits them together.
func (e *Engine) Import(ctx context.Context, ds *domain.Dataset) error {
	return e.withLock(ctx, func() error {
		sess, err := store.Open(ctx, e.backend)
		if err != nil {
			return apperrors.NewInternalError("failed to open billing session", err)
		}
		if err := sess.Import(ds); err != nil {
			return err
		}
		if err := sess.Commit(ctx); err != nil {
			return err
		}
		e.Logger.Infof("imported %d records", ds.Len())
		return nil
	})
}
