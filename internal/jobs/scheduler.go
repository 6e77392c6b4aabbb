// Package jobs manages the background cron work: the nightly analysis
// run over the whole population.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"rewards-engine/internal/features/analysis"
)

// Scheduler runs the daily analysis on a cron schedule.
type Scheduler struct {
	cron            *cron.Cron
	analysisService *analysis.Service
	schedule        string
}

// NewScheduler creates the scheduler. All schedules run in UTC; the
// whole day arithmetic of the engine is UTC-based and the job must
// agree with it.
func NewScheduler(analysisService *analysis.Service, schedule string) *Scheduler {
	return &Scheduler{
		cron:            cron.New(cron.WithLocation(time.UTC)),
		analysisService: analysisService,
		schedule:        schedule,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		log.Info("[CRON] Daily analysis starting")
		if _, err := s.analysisService.Run(ctx); err != nil {
			log.WithError(err).Error("[CRON] Daily analysis failed")
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	log.WithField("schedule", s.schedule).Info("Scheduler started (UTC)")
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Scheduler stopped")
}
