package services

import (
	"context"
	"errors"
	"time"

	"shipment-risk-service/internal/platform/logging"
)

// TickRunner is what the scheduler drives. *Engine implements it.
type TickRunner interface {
	TickAll(ctx context.Context) (TickSummary, error)
}

// Scheduler calls TickAll on a wall-clock interval.
type Scheduler struct {
	runner   TickRunner
	interval time.Duration
	log      logging.Logger
}

func NewScheduler(runner TickRunner, interval time.Duration, log logging.Logger) *Scheduler {
	if log == nil {
		log = logging.Noop()
	}
	return &Scheduler{runner: runner, interval: interval, log: log}
}

// Run ticks until ctx is done. A failed tick is logged and the loop carries on.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return errors.New("scheduler: interval must be positive")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info(ctx, "scheduler started", logging.String("interval", s.interval.String()))
	for {
		select {
		case <-ctx.Done():
			s.log.Info(ctx, "scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			sum, err := s.runner.TickAll(ctx)
			if err != nil {
				s.log.Warn(ctx, "tick failed", logging.Int64("tick", sum.Tick), logging.Err(err))
				continue
			}
			if sum.Incidents > 0 || sum.Finished > 0 {
				s.log.Info(ctx, "tick",
					logging.Int64("tick", sum.Tick),
					logging.Int("incidents", sum.Incidents),
					logging.Int("finished", sum.Finished),
					logging.Int("active", sum.Active),
				)
			}
		}
	}
}

// RunTicks drives n ticks back to back and returns their summaries. It stops
// at the first failed tick.
func (s *Scheduler) RunTicks(ctx context.Context, n int) ([]TickSummary, error) {
	out := make([]TickSummary, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		sum, err := s.runner.TickAll(ctx)
		out = append(out, sum)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}
