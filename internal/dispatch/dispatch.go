// Package dispatch runs the claim-and-notify cycle: fetch due candidates,
// claim each one through the store's conditional update, send, and roll the
// claim back when the send fails.
//
// There are no in-process locks. The store's compare-and-set admits exactly
// one claimer per block across overlapping cycles and processes.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/domain"
	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/notify"
	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/store"
)

const rollbackTimeout = 10 * time.Second

// Dispatcher runs dispatch cycles. It holds no mutable state between cycles,
// so Run may be called concurrently.
type Dispatcher struct {
	repo        store.Repo
	notifier    notify.Notifier
	window      domain.Window
	log         *zap.Logger
	now         func() time.Time
	concurrency int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// WithConcurrency bounds how many candidates are processed in parallel.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// New creates a Dispatcher.
func New(repo store.Repo, notifier notify.Notifier, window domain.Window, log *zap.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		repo:        repo,
		notifier:    notifier,
		window:      window,
		log:         log,
		now:         time.Now,
		concurrency: 1,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Run performs one cycle. The returned error is non-nil only when the
// candidate fetch fails; per-item failures are reported in the Report.
func (d *Dispatcher) Run(ctx context.Context) (Report, error) {
	started := d.now()
	from, to := d.window.Bounds(started)
	rep := Report{WindowStart: from.UTC(), WindowEnd: to.UTC()}

	candidates, err := d.repo.FindDueCandidates(ctx, from, to)
	if err != nil {
		rep.Status = StatusFetchError
		d.log.Error("fetch candidates failed",
			zap.Time("from", from), zap.Time("to", to), zap.Error(err))
		return rep, fmt.Errorf("fetch candidates: %w", err)
	}
	if len(candidates) == 0 {
		rep.Status = StatusNoWork
		d.log.Debug("no reminders due", zap.Time("from", from), zap.Time("to", to))
		return rep, nil
	}

	outcomes := make([]Outcome, len(candidates))
	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, b := range candidates {
		g.Go(func() error {
			outcomes[i] = d.process(ctx, b)
			return nil
		})
	}
	_ = g.Wait()

	rep.Status = StatusSuccess
	for _, o := range outcomes {
		rep.add(o)
	}
	rep.Duration = d.now().Sub(started)

	d.log.Info("dispatch cycle complete",
		zap.Int("processed", rep.Processed),
		zap.Int("delivered", rep.Delivered),
		zap.Int("skipped", rep.Skipped),
		zap.Int("failed", rep.Failed),
		zap.Duration("took", rep.Duration),
	)
	return rep, nil
}

// process walks one candidate through PENDING → CLAIMED → DELIVERED, or back
// to PENDING when the send fails.
func (d *Dispatcher) process(ctx context.Context, b domain.TimeBlock) Outcome {
	log := d.log.With(zap.String("block_id", b.ID))

	// Fresh reading; the cycle's window may be stale by now.
	now := d.now()
	if !d.window.Accepts(now, b.StartAt) {
		log.Debug("lead time out of tolerance, skipping",
			zap.Duration("lead", b.LeadTime(now)), zap.Stringer("window", d.window))
		return OutcomeSkippedOutOfWindow
	}

	claimed, ok, err := d.repo.TryClaim(ctx, b.ID)
	if err != nil {
		log.Warn("claim failed", zap.Error(err))
		return OutcomeFailedClaim
	}
	if !ok {
		log.Debug("already claimed elsewhere")
		return OutcomeSkippedRace
	}

	if err := d.notifier.Send(ctx, claimed.OwnerContact, claimed); err != nil {
		log.Warn("send failed, rolling back claim", zap.Error(err))

		// The compensation must not be cut short by the cycle's cancellation.
		rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
		defer cancel()
		if uerr := d.repo.Unclaim(rbCtx, claimed.ID); uerr != nil {
			log.Error("rollback failed; block stays marked as reminded without delivery",
				zap.NamedError("send_error", err), zap.Error(uerr))
			return OutcomeFailedPermanent
		}
		return OutcomeFailedRolledBack
	}

	log.Info("sent reminder",
		zap.String("recipient", claimed.OwnerContact),
		zap.Time("start_at", claimed.StartAt))
	return OutcomeDelivered
}
