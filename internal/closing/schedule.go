package closing

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/academy-cashbook/internal/jobs"
	"github.com/dvloznov/academy-cashbook/internal/logger"
)

// Scheduler enqueues a day-close job once a day at a fixed local time.
type Scheduler struct {
	publisher jobs.Publisher
	loc       *time.Location
	hour      int
	minute    int

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// NewScheduler creates a scheduler closing each day at hour:minute in loc.
func NewScheduler(publisher jobs.Publisher, loc *time.Location, hour, minute int) (*Scheduler, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return nil, fmt.Errorf("NewScheduler: invalid close time %02d:%02d", hour, minute)
	}
	return &Scheduler{
		publisher: publisher,
		loc:       loc,
		hour:      hour,
		minute:    minute,
		now:       time.Now,
		after:     time.After,
	}, nil
}

// ParseClockTime parses "HH:MM".
func ParseClockTime(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("ParseClockTime: %q is not HH:MM", s)
	}
	return t.Hour(), t.Minute(), nil
}

// NextRun returns the first close time strictly after now.
func (s *Scheduler) NextRun(now time.Time) time.Time {
	local := now.In(s.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.minute, 0, 0, s.loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, s.hour, s.minute, 0, 0, s.loc)
	}
	return next
}

// Run enqueues a close of the current business day at every close time
// until ctx is cancelled. Publish failures are logged and do not stop the
// scheduler.
func (s *Scheduler) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)

	for {
		next := s.NextRun(s.now())
		log.Info().Time("next_close", next).Msg("Waiting for next scheduled day close")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.after(next.Sub(s.now())):
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		job := &jobs.CloseDayJob{Date: civil.DateOf(next), RequestedBy: "scheduler"}
		if err := s.publisher.PublishCloseDay(ctx, job); err != nil {
			log.Error().Err(err).Str("date", job.Date.String()).Msg("Failed to enqueue scheduled day close")
			continue
		}
		log.Info().Str("job_id", job.JobID).Str("date", job.Date.String()).Msg("Scheduled day close enqueued")
	}
}
