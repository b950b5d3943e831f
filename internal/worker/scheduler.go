package worker

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/driftguard/driftguard/internal/pkg/logger"
	"github.com/driftguard/driftguard/internal/services"
)

// Scheduler runs periodic background jobs: environment drift scans and the
// recommendation expiry sweep
type Scheduler struct {
	scans    *services.ScanService
	recs     *services.RecommendationService
	schedule string
	cron     *cron.Cron
	logger   *logger.Logger
}

// NewScheduler creates a new scheduler. schedule uses cron syntax,
// including @every shorthand.
func NewScheduler(scans *services.ScanService, recs *services.RecommendationService, schedule string, log *logger.Logger) *Scheduler {
	return &Scheduler{
		scans:    scans,
		recs:     recs,
		schedule: schedule,
		cron:     cron.New(),
		logger:   log,
	}
}

// Start registers the jobs, runs one scan cycle immediately and then ticks
// on the configured schedule until the context is cancelled
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.schedule, func() { s.runCycle(ctx) }); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"schedule": s.schedule,
	}).Info("Scheduler started")

	s.runCycle(ctx)
	s.cron.Start()

	<-ctx.Done()

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("Scheduler stopped")

	return nil
}

func (s *Scheduler) runCycle(ctx context.Context) {
	results, err := s.scans.ScanAllActive(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Scheduled scan cycle failed")
	} else {
		opened, closed := 0, 0
		for _, r := range results {
			opened += r.Opened
			closed += r.Closed
		}
		s.logger.WithFields(map[string]interface{}{
			"environments": len(results),
			"opened":       opened,
			"closed":       closed,
		}).Info("Scheduled scan cycle finished")
	}

	if _, err := s.recs.ExpireDue(ctx); err != nil {
		s.logger.WithError(err).Error("Recommendation expiry sweep failed")
	}
}
