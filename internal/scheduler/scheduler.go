// Package scheduler runs reconciliation passes on a cron schedule in worker
// mode. A single-flight guard ensures two passes never overlap: a tick that
// fires while a run is still going is dropped, not queued.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fightsync/reconciler/internal/reconcile"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheduler manages cron-driven reconciliation runs.
type Scheduler struct {
	engine *reconcile.Engine
	spec   string
	cron   *cron.Cron
	entry  cron.EntryID
	runMu  sync.Mutex // held for the duration of a run
}

// New creates a scheduler around an engine and a cron expression.
func New(engine *reconcile.Engine, spec string) *Scheduler {
	return &Scheduler{
		engine: engine,
		spec:   spec,
		cron:   cron.New(),
	}
}

// NextRun returns the next fire time for a cron expression. Used by the
// "next" subcommand without starting anything.
func NextRun(spec string, from time.Time) (time.Time, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse cron expression %q: %w", spec, err)
	}
	return schedule.Next(from), nil
}

// Start schedules reconciliation runs and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	entry, err := s.cron.AddFunc(s.spec, func() {
		s.runOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reconciliation: %w", err)
	}
	s.entry = entry

	s.cron.Start()
	log.Info().
		Str("schedule", s.spec).
		Time("next_run", s.cron.Entry(entry).Next).
		Msg("Reconciliation scheduled")

	return nil
}

// Stop stops the cron loop and waits for any in-flight run to finish.
func (s *Scheduler) Stop() {
	log.Info().Msg("Stopping scheduler...")

	if s.cron != nil {
		<-s.cron.Stop().Done()
	}

	s.runMu.Lock()
	s.runMu.Unlock()

	log.Info().Msg("Scheduler stopped")
}

// RunNow triggers a reconciliation pass outside the schedule, subject to
// the same single-flight guard.
func (s *Scheduler) RunNow(ctx context.Context) {
	s.runOnce(ctx)
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if !s.runMu.TryLock() {
		log.Warn().Msg("Previous reconciliation run still in progress, skipping tick")
		return
	}
	defer s.runMu.Unlock()

	start := time.Now()
	summary, err := s.engine.Run(ctx)
	if err != nil {
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("Scheduled reconciliation failed")
		return
	}

	log.Info().
		Str("run_id", summary.RunID).
		Str("status", summary.Status).
		Dur("elapsed", summary.Elapsed).
		Time("next_run", s.cron.Entry(s.entry).Next).
		Msg("Scheduled reconciliation finished")
}
