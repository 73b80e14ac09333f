package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/dispatch"
)

// Cycle is the unit of work fired on every tick. dispatch.Dispatcher
// implements it.
type Cycle interface {
	Run(ctx context.Context) (dispatch.Report, error)
}

// Accepts optional seconds and descriptors such as "@every 1m".
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Scheduler fires a dispatch cycle on a cron schedule. A slow cycle does
// not delay the next one; overlapping cycles are resolved by the store's
// claim.
type Scheduler struct {
	cycle Cycle
	spec  string
	log   *zap.Logger
}

// New validates spec and returns a Scheduler.
func New(cycle Cycle, spec string, log *zap.Logger) (*Scheduler, error) {
	if _, err := parser.Parse(spec); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return &Scheduler{cycle: cycle, spec: spec, log: log}, nil
}

// Run starts the cron loop and blocks until ctx is canceled, then waits for
// in-flight cycles to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	cl := cronLogger{s.log.Sugar()}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl)),
	)
	if _, err := c.AddFunc(s.spec, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("schedule dispatch: %w", err)
	}

	c.Start()
	s.log.Info("scheduler started", zap.String("schedule", s.spec))

	<-ctx.Done()
	s.log.Info("scheduler stopping")
	<-c.Stop().Done()
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	rep, err := s.cycle.Run(ctx)
	if err != nil {
		s.log.Error("dispatch cycle failed", zap.Stringer("status", rep.Status), zap.Error(err))
	}
}

// cronLogger routes cron's internal logging to zap. Scheduling chatter goes
// to debug.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
