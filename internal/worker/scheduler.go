package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/windforecast/windforecast/internal/ingest"
)

// Scheduler triggers full ingestion runs on a cron expression.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    *Runner
	spec      string
	logger    zerolog.Logger
}

// NewScheduler creates a scheduler evaluating spec in loc.
func NewScheduler(spec string, loc *time.Location, runner *Runner, logger zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(loc),
		runner:    runner,
		spec:      spec,
		logger:    logger,
	}
}

// Start registers the job and starts the scheduler in the background.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Cron(s.spec).SingletonMode().Do(s.tick)
	if err != nil {
		return fmt.Errorf("scheduling ingestion %q: %w", s.spec, err)
	}

	s.scheduler.StartAsync()

	_, next := s.scheduler.NextRun()
	s.logger.Info().
		Str("cron", s.spec).
		Time("next_run", next).
		Msg("ingestion schedule started")
	return nil
}

// Stop stops the scheduler. Running jobs are not interrupted.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) tick() {
	summary, err := s.runner.Run(context.Background(), ingest.RunOptions{Trigger: ingest.TriggerSchedule})
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.logger.Info().Msg("scheduled run skipped, previous run still active")
	case err != nil:
		s.logger.Error().Err(err).Msg("scheduled ingestion run failed")
	default:
		s.logger.Info().
			Str("run_id", summary.RunID).
			Int("success", len(summary.Success)).
			Msg("scheduled ingestion run finished")
	}
}
