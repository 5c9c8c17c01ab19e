package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// sweepTimeout bounds a single reconcile sweep.
const sweepTimeout = 5 * time.Minute

// Reconciler realigns all orders with the catalog.
type Reconciler interface {
	ReconcileAll(ctx context.Context) error
}

// Sweeper runs reconcile sweeps on a single worker goroutine. Triggers that
// arrive while a sweep is running coalesce into one pending sweep, so a
// burst of catalog edits costs at most two passes. A cron schedule covers
// drift from writes the service never saw.
type Sweeper struct {
	reconciler Reconciler
	schedule   string
	trigger    chan struct{}
	cron       *cron.Cron
	log        zerolog.Logger
}

func NewSweeper(reconciler Reconciler, schedule string, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		reconciler: reconciler,
		schedule:   schedule,
		trigger:    make(chan struct{}, 1),
		cron:       cron.New(),
		log:        log.With().Str("component", "sweeper").Logger(),
	}
}

// Trigger schedules a sweep. Never blocks; collapses into an already
// pending trigger.
func (s *Sweeper) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Start launches the worker and the periodic schedule. The worker exits
// when ctx is canceled.
func (s *Sweeper) Start(ctx context.Context) error {
	if s.schedule != "" {
		if _, err := s.cron.AddFunc(s.schedule, s.Trigger); err != nil {
			return err
		}
		s.cron.Start()
	}
	go s.run(ctx)
	s.log.Info().Str("schedule", s.schedule).Msg("reconcile sweeper started")
	return nil
}

// Stop halts the periodic schedule. In-flight sweeps finish on their own.
func (s *Sweeper) Stop() {
	s.cron.Stop()
}

func (s *Sweeper) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.trigger:
			sctx, cancel := context.WithTimeout(ctx, sweepTimeout)
			if err := s.reconciler.ReconcileAll(sctx); err != nil {
				s.log.Warn().Err(err).Msg("reconcile sweep failed")
			}
			cancel()
		}
	}
}
