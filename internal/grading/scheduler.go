package grading

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheduler runs the grading sweep on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	grader *Grader
}

// NewScheduler creates a scheduler that sweeps per the cron expression
// (standard 5-field syntax).
func NewScheduler(grader *Grader, schedule string) (*Scheduler, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := grader.Sweep(context.Background()); err != nil {
			log.Error().Err(err).Msg("Scheduled grading sweep failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid grading schedule %q: %w", schedule, err)
	}
	return &Scheduler{cron: c, grader: grader}, nil
}

// Start begins scheduled sweeps in a background goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().Msg("Grading scheduler started")
}

// Stop halts scheduling and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
