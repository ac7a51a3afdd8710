package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingRunner struct {
	n    atomic.Int64
	fail bool
}

func (r *countingRunner) TickAll(context.Context) (TickSummary, error) {
	n := r.n.Add(1)
	if r.fail {
		return TickSummary{Tick: n}, errors.New("boom")
	}
	return TickSummary{Tick: n}, nil
}

func TestSchedulerRunStopsOnCancel(t *testing.T) {
	r := &countingRunner{}
	s := NewScheduler(r, time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for r.n.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("scheduler ticked %d times", r.n.Load())
		default:
			time.Sleep(time.Millisecond)
		}
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSchedulerRejectsZeroInterval(t *testing.T) {
	if err := NewScheduler(&countingRunner{}, 0, nil).Run(context.Background()); err == nil {
		t.Fatalf("expected error for zero interval")
	}
}

func TestRunTicks(t *testing.T) {
	r := &countingRunner{}
	sums, err := NewScheduler(r, time.Second, nil).RunTicks(context.Background(), 4)
	if err != nil {
		t.Fatalf("run ticks: %v", err)
	}
	if len(sums) != 4 || sums[3].Tick != 4 {
		t.Fatalf("summaries = %+v", sums)
	}

	failing := &countingRunner{fail: true}
	sums, err = NewScheduler(failing, time.Second, nil).RunTicks(context.Background(), 4)
	if err == nil || len(sums) != 1 {
		t.Fatalf("expected stop after first failure, got %d summaries, err %v", len(sums), err)
	}
}
