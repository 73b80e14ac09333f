package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/config"
	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/dispatch"
	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/notify"
	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/scheduler"
	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/store"
)

type App struct {
	cfg        config.Config
	log        *zap.Logger
	repo       store.Repo
	dispatcher *dispatch.Dispatcher
	httpSrv    *http.Server
}

// New opens the configured store and notifier and wires the dispatcher.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	repo, err := store.Open(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	log.Info("store ready", zap.String("driver", cfg.StoreDriver))

	notifier, err := notify.New(cfg)
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("init notifier: %w", err)
	}

	d := dispatch.New(repo, notifier, cfg.Window(), log,
		dispatch.WithConcurrency(cfg.DispatchConcurrency),
	)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      Router(repo, d, log),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	return &App{cfg: cfg, log: log, repo: repo, dispatcher: d, httpSrv: srv}, nil
}

// Run executes according to RUN_MODE and releases the store on return.
func (a *App) Run(ctx context.Context) error {
	defer func() {
		if err := a.repo.Close(); err != nil {
			a.log.Warn("store close error", zap.Error(err))
		}
	}()

	a.log.Info("starting quiet-hours reminder worker",
		zap.String("mode", a.cfg.RunMode),
		zap.String("notifier", a.cfg.Notifier),
		zap.Stringer("window", a.cfg.Window()),
	)

	if a.cfg.RunMode == "once" {
		return a.runOnce(ctx)
	}
	return a.runLoop(ctx)
}

func (a *App) runOnce(ctx context.Context) error {
	rep, err := a.dispatcher.Run(ctx)
	if err != nil {
		return err
	}
	a.log.Info("single cycle finished", zap.Stringer("status", rep.Status))
	return nil
}

func (a *App) runLoop(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched, err := scheduler.New(a.dispatcher, a.cfg.Schedule(), a.log)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info("http server listening", zap.String("addr", a.cfg.HTTPAddr))
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("shutdown signal received")

		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.httpSrv.Shutdown(shCtx); err != nil {
			a.log.Warn("http server shutdown error", zap.Error(err))
		}
		return nil
	})
	return g.Wait()
}
