package orchestrator

import (
	"context"
	"errors"
	"time"
)

// NextDailyRun returns the first time at hour:00 in now's location that is
// strictly after now.
func NextDailyRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// RunSchedule triggers RunDailyCollection every day at hour (local time)
// until ctx ends. A day that already ran is skipped by the daily marker.
func (o *Orchestrator) RunSchedule(ctx context.Context, hour int) error {
	o.logger.InfoContext(ctx, "daily schedule started", "hour", hour)
	for {
		next := NextDailyRun(o.now(), hour)
		o.logger.DebugContext(ctx, "next daily collection", "at", next)

		t := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			t.Stop()
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-t.C:
		}

		res, err := o.RunDailyCollection(ctx, DailyOptions{})
		switch {
		case errors.Is(err, ErrAlreadyRan):
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			o.logger.ErrorContext(ctx, "daily collection failed", "error", err)
		default:
			o.logger.InfoContext(ctx, "daily collection done", "success", res.Success, "steps", len(res.Steps))
		}
	}
}
